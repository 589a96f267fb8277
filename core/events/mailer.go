package events

import "mailboxchain/core/types"

const (
	TypeMailerInitialized    = "mailer.initialized"
	TypeMailSent             = "mailer.sent"
	TypePreparedMailSent     = "mailer.prepared_sent"
	TypeSharesRecorded       = "mailer.shares_recorded"
	TypeRecipientClaimed     = "mailer.recipient_claimed"
	TypeOwnerClaimed         = "mailer.owner_claimed"
	TypeExpiredSharesClaimed = "mailer.expired_claimed"
	TypeSendFeeUpdated       = "mailer.fee_updated"
)

type MailerInitialized struct {
	Owner    [20]byte
	UnitMint string
	SendFee  uint64
}

func (MailerInitialized) EventType() string { return TypeMailerInitialized }

func (e MailerInitialized) Event() *types.Event {
	return &types.Event{
		Type: TypeMailerInitialized,
		Attributes: map[string]string{
			"owner":    addr(e.Owner),
			"unitMint": e.UnitMint,
			"sendFee":  uintToString(e.SendFee),
		},
	}
}

// MailSent carries the message body; bodies are emitted, never stored.
type MailSent struct {
	From    [20]byte
	Subject string
	Body    string
}

func (MailSent) EventType() string { return TypeMailSent }

func (e MailSent) Event() *types.Event {
	return &types.Event{
		Type: TypeMailSent,
		Attributes: map[string]string{
			"from":    addr(e.From),
			"subject": e.Subject,
			"body":    e.Body,
		},
	}
}

type PreparedMailSent struct {
	From   [20]byte
	MailID string
}

func (PreparedMailSent) EventType() string { return TypePreparedMailSent }

func (e PreparedMailSent) Event() *types.Event {
	return &types.Event{
		Type: TypePreparedMailSent,
		Attributes: map[string]string{
			"from":   addr(e.From),
			"mailId": e.MailID,
		},
	}
}

type SharesRecorded struct {
	Sender     [20]byte
	OwnerPart  uint64
	SenderPart uint64
}

func (SharesRecorded) EventType() string { return TypeSharesRecorded }

func (e SharesRecorded) Event() *types.Event {
	return &types.Event{
		Type: TypeSharesRecorded,
		Attributes: map[string]string{
			"sender":     addr(e.Sender),
			"ownerPart":  uintToString(e.OwnerPart),
			"senderPart": uintToString(e.SenderPart),
		},
	}
}

type RecipientClaimed struct {
	Recipient [20]byte
	Amount    uint64
}

func (RecipientClaimed) EventType() string { return TypeRecipientClaimed }

func (e RecipientClaimed) Event() *types.Event {
	return &types.Event{
		Type: TypeRecipientClaimed,
		Attributes: map[string]string{
			"recipient": addr(e.Recipient),
			"amount":    uintToString(e.Amount),
		},
	}
}

type OwnerClaimed struct {
	Owner  [20]byte
	Amount uint64
}

func (OwnerClaimed) EventType() string { return TypeOwnerClaimed }

func (e OwnerClaimed) Event() *types.Event {
	return &types.Event{
		Type: TypeOwnerClaimed,
		Attributes: map[string]string{
			"owner":  addr(e.Owner),
			"amount": uintToString(e.Amount),
		},
	}
}

type ExpiredSharesClaimed struct {
	From   [20]byte
	Amount uint64
}

func (ExpiredSharesClaimed) EventType() string { return TypeExpiredSharesClaimed }

func (e ExpiredSharesClaimed) Event() *types.Event {
	return &types.Event{
		Type: TypeExpiredSharesClaimed,
		Attributes: map[string]string{
			"from":   addr(e.From),
			"amount": uintToString(e.Amount),
		},
	}
}

type SendFeeUpdated struct {
	Old uint64
	New uint64
}

func (SendFeeUpdated) EventType() string { return TypeSendFeeUpdated }

func (e SendFeeUpdated) Event() *types.Event {
	return &types.Event{
		Type: TypeSendFeeUpdated,
		Attributes: map[string]string{
			"old": uintToString(e.Old),
			"new": uintToString(e.New),
		},
	}
}
