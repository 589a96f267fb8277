package mailer

import (
	"mailboxchain/core/events"
	"mailboxchain/core/mailbox"
	"mailboxchain/core/types"
)

// State describes the functionality the mailer engine needs from the
// surrounding state implementation.
type State interface {
	MailerStateGet() (*mailbox.MailerState, bool)
	MailerStatePut(*mailbox.MailerState) error
	RecipientClaimGet(sender [20]byte) (*mailbox.RecipientClaim, bool)
	RecipientClaimPut(*mailbox.RecipientClaim) error
	MailerVaultCredit(payer [20]byte, amount uint64) error
	MailerVaultDebit(to [20]byte, amount uint64, bump uint8) error
	AppendEvent(*types.Event)
}

// ClaimAddressFunc derives the deterministic claim account address and bump
// for a sender.
type ClaimAddressFunc func(sender [20]byte) ([20]byte, uint8, error)

// ModuleAddressFunc derives the mailer singleton address and bump.
type ModuleAddressFunc func() ([20]byte, uint8, error)

// Engine implements the mailer operations: fee collection on both send paths,
// the sender share escrow, and the three claim flows. The claim flows run
// validate, then obligation-reducing state writes, then the token transfer,
// then event emission; the send paths collect the fee first, then record the
// accruals, then emit.
type Engine struct {
	state         State
	moduleAddress ModuleAddressFunc
	claimAddress  ClaimAddressFunc
}

// NewEngine wires the mailer business logic with external state and the
// deterministic address derivations.
func NewEngine(st State, moduleAddress ModuleAddressFunc, claimAddress ClaimAddressFunc) *Engine {
	return &Engine{state: st, moduleAddress: moduleAddress, claimAddress: claimAddress}
}

// Initialize creates the mailer singleton with the caller as owner.
func (e *Engine) Initialize(caller [20]byte, unitMint string) (*mailbox.MailerState, error) {
	if _, ok := e.state.MailerStateGet(); ok {
		return nil, mailbox.ErrAlreadyInitialized
	}
	_, bump, err := e.moduleAddress()
	if err != nil {
		return nil, err
	}
	st := &mailbox.MailerState{
		Owner:    caller,
		UnitMint: unitMint,
		SendFee:  mailbox.DefaultSendFee,
		Bump:     bump,
	}
	if err := e.state.MailerStatePut(st); err != nil {
		return nil, err
	}
	e.state.AppendEvent(events.MailerInitialized{
		Owner:    caller,
		UnitMint: st.UnitMint,
		SendFee:  st.SendFee,
	}.Event())
	return st.Clone(), nil
}

// SendPriority charges the full send fee, escrows the sender share and emits
// the message body.
func (e *Engine) SendPriority(caller [20]byte, subject, body string, now int64) error {
	ownerPart, senderPart, err := e.sendPriorityFee(caller, now)
	if err != nil {
		return err
	}
	e.state.AppendEvent(events.MailSent{From: caller, Subject: subject, Body: body}.Event())
	e.state.AppendEvent(events.SharesRecorded{Sender: caller, OwnerPart: ownerPart, SenderPart: senderPart}.Event())
	return nil
}

// SendPriorityPrepared is the priority path for a message prepared
// out-of-band and referenced by an opaque identifier.
func (e *Engine) SendPriorityPrepared(caller [20]byte, mailID string, now int64) error {
	ownerPart, senderPart, err := e.sendPriorityFee(caller, now)
	if err != nil {
		return err
	}
	e.state.AppendEvent(events.PreparedMailSent{From: caller, MailID: mailID}.Event())
	e.state.AppendEvent(events.SharesRecorded{Sender: caller, OwnerPart: ownerPart, SenderPart: senderPart}.Event())
	return nil
}

// Send is the discount path: the fee equals the owner share only and no
// sender share accrues.
func (e *Engine) Send(caller [20]byte, subject, body string) error {
	if err := e.sendStandardFee(caller); err != nil {
		return err
	}
	e.state.AppendEvent(events.MailSent{From: caller, Subject: subject, Body: body}.Event())
	return nil
}

// SendPrepared is the discount path for a prepared message.
func (e *Engine) SendPrepared(caller [20]byte, mailID string) error {
	if err := e.sendStandardFee(caller); err != nil {
		return err
	}
	e.state.AppendEvent(events.PreparedMailSent{From: caller, MailID: mailID}.Event())
	return nil
}

func (e *Engine) sendPriorityFee(caller [20]byte, now int64) (ownerPart, senderPart uint64, err error) {
	st, ok := e.state.MailerStateGet()
	if !ok {
		return 0, 0, mailbox.ErrNotInitialized
	}
	fee := st.SendFee
	if fee > 0 {
		if err := e.state.MailerVaultCredit(caller, fee); err != nil {
			return 0, 0, err
		}
	}
	ownerPart, senderPart = mailbox.SplitFee(fee)
	st.OwnerClaimable, err = mailbox.AddU64(st.OwnerClaimable, ownerPart)
	if err != nil {
		return 0, 0, err
	}
	if err := e.state.MailerStatePut(st); err != nil {
		return 0, 0, err
	}
	claim, ok := e.state.RecipientClaimGet(caller)
	if !ok {
		_, bump, derr := e.claimAddress(caller)
		if derr != nil {
			return 0, 0, derr
		}
		claim = &mailbox.RecipientClaim{Recipient: caller, Bump: bump}
	}
	claim.Amount, err = mailbox.AddU64(claim.Amount, senderPart)
	if err != nil {
		return 0, 0, err
	}
	// The window anchors to the latest accrual, not the first.
	claim.Timestamp = now
	if err := e.state.RecipientClaimPut(claim); err != nil {
		return 0, 0, err
	}
	return ownerPart, senderPart, nil
}

func (e *Engine) sendStandardFee(caller [20]byte) error {
	st, ok := e.state.MailerStateGet()
	if !ok {
		return mailbox.ErrNotInitialized
	}
	fee, _ := mailbox.SplitFee(st.SendFee)
	if fee > 0 {
		if err := e.state.MailerVaultCredit(caller, fee); err != nil {
			return err
		}
	}
	var err error
	st.OwnerClaimable, err = mailbox.AddU64(st.OwnerClaimable, fee)
	if err != nil {
		return err
	}
	return e.state.MailerStatePut(st)
}

// ClaimRecipientShare pays out the caller's accrued share while the claim
// window is open. The claim record is zeroed before the transfer.
func (e *Engine) ClaimRecipientShare(caller [20]byte, now int64) (uint64, error) {
	st, ok := e.state.MailerStateGet()
	if !ok {
		return 0, mailbox.ErrNotInitialized
	}
	claim, ok := e.state.RecipientClaimGet(caller)
	if !ok || claim.Amount == 0 {
		return 0, mailbox.ErrNoClaimableAmount
	}
	if !mailbox.WindowOpen(claim.Timestamp, now) {
		return 0, mailbox.ErrClaimExpired
	}
	amount := claim.Amount
	claim.Amount = 0
	claim.Timestamp = 0
	if err := e.state.RecipientClaimPut(claim); err != nil {
		return 0, err
	}
	if err := e.state.MailerVaultDebit(caller, amount, st.Bump); err != nil {
		return 0, err
	}
	e.state.AppendEvent(events.RecipientClaimed{Recipient: caller, Amount: amount}.Event())
	return amount, nil
}

// ClaimOwnerShare pays the accumulated protocol share to the owner.
func (e *Engine) ClaimOwnerShare(caller [20]byte) (uint64, error) {
	st, ok := e.state.MailerStateGet()
	if !ok {
		return 0, mailbox.ErrNotInitialized
	}
	if caller != st.Owner {
		return 0, mailbox.ErrOnlyOwner
	}
	if st.OwnerClaimable == 0 {
		return 0, mailbox.ErrNoClaimableAmount
	}
	amount := st.OwnerClaimable
	st.OwnerClaimable = 0
	if err := e.state.MailerStatePut(st); err != nil {
		return 0, err
	}
	if err := e.state.MailerVaultDebit(caller, amount, st.Bump); err != nil {
		return 0, err
	}
	e.state.AppendEvent(events.OwnerClaimed{Owner: caller, Amount: amount}.Event())
	return amount, nil
}

// ClaimExpiredShares lets the owner reclaim a sender share whose claim window
// has lapsed.
func (e *Engine) ClaimExpiredShares(caller, sender [20]byte, now int64) (uint64, error) {
	st, ok := e.state.MailerStateGet()
	if !ok {
		return 0, mailbox.ErrNotInitialized
	}
	if caller != st.Owner {
		return 0, mailbox.ErrOnlyOwner
	}
	claim, ok := e.state.RecipientClaimGet(sender)
	if !ok || claim.Amount == 0 {
		return 0, mailbox.ErrNoClaimableAmount
	}
	if mailbox.WindowOpen(claim.Timestamp, now) {
		return 0, mailbox.ErrClaimPeriodNotExpired
	}
	amount := claim.Amount
	claim.Amount = 0
	claim.Timestamp = 0
	if err := e.state.RecipientClaimPut(claim); err != nil {
		return 0, err
	}
	if err := e.state.MailerVaultDebit(caller, amount, st.Bump); err != nil {
		return 0, err
	}
	e.state.AppendEvent(events.ExpiredSharesClaimed{From: sender, Amount: amount}.Event())
	return amount, nil
}

// SetFee updates the per-message fee. Owner only; no upper bound is enforced.
func (e *Engine) SetFee(caller [20]byte, newFee uint64) error {
	st, ok := e.state.MailerStateGet()
	if !ok {
		return mailbox.ErrNotInitialized
	}
	if caller != st.Owner {
		return mailbox.ErrOnlyOwner
	}
	old := st.SendFee
	st.SendFee = newFee
	if err := e.state.MailerStatePut(st); err != nil {
		return err
	}
	e.state.AppendEvent(events.SendFeeUpdated{Old: old, New: newFee}.Event())
	return nil
}

// State returns the mailer singleton, if initialized.
func (e *Engine) State() (*mailbox.MailerState, bool) {
	st, ok := e.state.MailerStateGet()
	if !ok {
		return nil, false
	}
	return st.Clone(), true
}

// Claim returns the claim record accrued by sender, if any.
func (e *Engine) Claim(sender [20]byte) (*mailbox.RecipientClaim, bool) {
	claim, ok := e.state.RecipientClaimGet(sender)
	if !ok {
		return nil, false
	}
	return claim.Clone(), true
}
