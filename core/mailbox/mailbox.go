package mailbox

import (
	"errors"
	"math/bits"
)

// Fee split applied on the priority send path. The two shares always sum to
// the full fee; flooring leaves any remainder with the sender share.
const (
	RecipientShareBps = 9000
	OwnerShareBps     = 1000
	BpsDenominator    = 10_000
)

// ClaimWindowSecs is the interval after the most recent accrual during which
// the sender may claim the escrowed share. Past it only the owner may reclaim.
const ClaimWindowSecs int64 = 60 * 24 * 3600

// DefaultSendFee is the initial per-message fee in UNIT smallest units.
const DefaultSendFee uint64 = 100_000

var (
	ErrAlreadyInitialized    = errors.New("mailbox: already initialized")
	ErrNotInitialized        = errors.New("mailbox: not initialized")
	ErrOnlyOwner             = errors.New("mailbox: only owner")
	ErrNoClaimableAmount     = errors.New("mailbox: no claimable amount")
	ErrClaimExpired          = errors.New("mailbox: claim expired")
	ErrClaimPeriodNotExpired = errors.New("mailbox: claim period not expired")
	ErrInsufficientFunds     = errors.New("mailbox: insufficient funds")
	ErrMathOverflow          = errors.New("mailbox: math overflow")
)

// MailerState is the singleton administrative record of the mailer module.
type MailerState struct {
	Owner          [20]byte
	UnitMint       string
	SendFee        uint64
	OwnerClaimable uint64
	Bump           uint8
}

func (s *MailerState) Clone() *MailerState {
	if s == nil {
		return nil
	}
	out := *s
	return &out
}

// RecipientClaim accumulates the sender share escrowed by priority sends.
// Timestamp marks the most recent accrual and anchors the claim window; it is
// cleared together with Amount.
type RecipientClaim struct {
	Recipient [20]byte
	Amount    uint64
	Timestamp int64
	Bump      uint8
}

func (c *RecipientClaim) Clone() *RecipientClaim {
	if c == nil {
		return nil
	}
	out := *c
	return &out
}

// SplitFee divides a priority fee into the owner and sender parts. The owner
// part is floored so rounding dust stays with the sender.
func SplitFee(fee uint64) (ownerPart, senderPart uint64) {
	hi, lo := bits.Mul64(fee, OwnerShareBps)
	ownerPart, _ = bits.Div64(hi, lo, BpsDenominator)
	senderPart = fee - ownerPart
	return ownerPart, senderPart
}

// AddU64 adds two u64 quantities, failing instead of wrapping.
func AddU64(a, b uint64) (uint64, error) {
	sum, carry := bits.Add64(a, b, 0)
	if carry != 0 {
		return 0, ErrMathOverflow
	}
	return sum, nil
}

// WindowOpen reports whether a claim accrued at ts is still claimable at now.
// The boundary instant ts+window itself is claimable.
func WindowOpen(ts, now int64) bool {
	return now <= ts+ClaimWindowSecs
}
