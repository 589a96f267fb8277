package mailservice

import "errors"

// Default fees in UNIT smallest units.
const (
	DefaultDelegationFee   uint64 = 10_000_000
	DefaultRegistrationFee uint64 = 100_000_000
)

var (
	ErrAlreadyInitialized   = errors.New("mailservice: already initialized")
	ErrNotInitialized       = errors.New("mailservice: not initialized")
	ErrOnlyOwner            = errors.New("mailservice: only owner")
	ErrSelfDelegation       = errors.New("mailservice: self delegation")
	ErrInvalidDelegate      = errors.New("mailservice: invalid delegate")
	ErrNoDelegationToReject = errors.New("mailservice: no delegation to reject")
	ErrUnauthorizedRejector = errors.New("mailservice: unauthorized rejector")
	ErrEmptyDomain          = errors.New("mailservice: empty domain name")
	ErrInvalidAmount        = errors.New("mailservice: amount must be positive")
	ErrInsufficientFunds    = errors.New("mailservice: insufficient funds")
	ErrMathOverflow         = errors.New("mailservice: math overflow")
)

// State is the singleton administrative record of the mail service module.
// OwnerClaimable mirrors the module vault balance: every delegation and
// registration fee credits it and WithdrawFees debits it, so the recorded
// liability never exceeds custody.
type State struct {
	Owner           [20]byte
	UnitMint        string
	DelegationFee   uint64
	RegistrationFee uint64
	OwnerClaimable  uint64
	Bump            uint8
}

func (s *State) Clone() *State {
	if s == nil {
		return nil
	}
	out := *s
	return &out
}

// Delegation records the delegate chosen by a delegator. An empty Delegate
// slice means "no active delegation"; callers treat a missing record and a
// cleared record as equivalent.
type Delegation struct {
	Delegator [20]byte
	Delegate  []byte
	Bump      uint8
}

func (d *Delegation) Clone() *Delegation {
	if d == nil {
		return nil
	}
	out := *d
	if d.Delegate != nil {
		out.Delegate = append([]byte(nil), d.Delegate...)
	}
	return &out
}

// Active reports whether the record names a live delegate.
func (d *Delegation) Active() bool {
	return d != nil && len(d.Delegate) == 20
}
