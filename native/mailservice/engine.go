package mailservice

import (
	"bytes"
	"strings"

	"mailboxchain/core/events"
	"mailboxchain/core/types"
)

// StateAccess describes the functionality the mail service engine needs from
// the surrounding state implementation.
type StateAccess interface {
	ServiceStateGet() (*State, bool)
	ServiceStatePut(*State) error
	DelegationGet(delegator [20]byte) (*Delegation, bool)
	DelegationPut(*Delegation) error
	ServiceVaultCredit(payer [20]byte, amount uint64) error
	ServiceVaultDebit(to [20]byte, amount uint64, bump uint8) error
	AppendEvent(*types.Event)
}

// DelegationAddressFunc derives the deterministic delegation account address
// and bump for a delegator.
type DelegationAddressFunc func(delegator [20]byte) ([20]byte, uint8, error)

// ModuleAddressFunc derives the service singleton address and bump.
type ModuleAddressFunc func() ([20]byte, uint8, error)

// Engine implements delegation registration and rejection, the degenerate
// domain-registration passthrough, and owner fee administration.
type Engine struct {
	state             StateAccess
	moduleAddress     ModuleAddressFunc
	delegationAddress DelegationAddressFunc
}

// NewEngine wires the mail service business logic with external state and the
// deterministic address derivations.
func NewEngine(st StateAccess, moduleAddress ModuleAddressFunc, delegationAddress DelegationAddressFunc) *Engine {
	return &Engine{state: st, moduleAddress: moduleAddress, delegationAddress: delegationAddress}
}

// Initialize creates the service singleton with the caller as owner.
func (e *Engine) Initialize(caller [20]byte, unitMint string) (*State, error) {
	if _, ok := e.state.ServiceStateGet(); ok {
		return nil, ErrAlreadyInitialized
	}
	_, bump, err := e.moduleAddress()
	if err != nil {
		return nil, err
	}
	st := &State{
		Owner:           caller,
		UnitMint:        unitMint,
		DelegationFee:   DefaultDelegationFee,
		RegistrationFee: DefaultRegistrationFee,
		Bump:            bump,
	}
	if err := e.state.ServiceStatePut(st); err != nil {
		return nil, err
	}
	e.state.AppendEvent(events.ServiceInitialized{
		Owner:           caller,
		UnitMint:        st.UnitMint,
		DelegationFee:   st.DelegationFee,
		RegistrationFee: st.RegistrationFee,
	}.Event())
	return st.Clone(), nil
}

// DelegateTo sets or clears the caller's delegation. Setting a delegate
// charges the delegation fee; clearing is free. Self-delegation is rejected
// before any funds move.
func (e *Engine) DelegateTo(caller [20]byte, delegate []byte) error {
	st, ok := e.state.ServiceStateGet()
	if !ok {
		return ErrNotInitialized
	}
	setting := len(delegate) != 0
	if setting {
		if len(delegate) != 20 {
			return ErrInvalidDelegate
		}
		if bytes.Equal(delegate, caller[:]) {
			return ErrSelfDelegation
		}
		if st.DelegationFee > 0 {
			if err := e.state.ServiceVaultCredit(caller, st.DelegationFee); err != nil {
				return err
			}
			var err error
			st.OwnerClaimable, err = addU64(st.OwnerClaimable, st.DelegationFee)
			if err != nil {
				return err
			}
			if err := e.state.ServiceStatePut(st); err != nil {
				return err
			}
		}
	}
	record, ok := e.state.DelegationGet(caller)
	if !ok {
		_, bump, err := e.delegationAddress(caller)
		if err != nil {
			return err
		}
		record = &Delegation{Delegator: caller, Bump: bump}
	}
	if setting {
		record.Delegate = append([]byte(nil), delegate...)
	} else {
		record.Delegate = nil
	}
	if err := e.state.DelegationPut(record); err != nil {
		return err
	}
	e.state.AppendEvent(events.DelegationSet{Delegator: caller, Delegate: record.Delegate}.Event())
	return nil
}

// RejectDelegation lets the named delegate repudiate an unwanted delegation.
func (e *Engine) RejectDelegation(caller, delegator [20]byte) error {
	if _, ok := e.state.ServiceStateGet(); !ok {
		return ErrNotInitialized
	}
	record, ok := e.state.DelegationGet(delegator)
	if !ok || !record.Active() {
		return ErrNoDelegationToReject
	}
	if !bytes.Equal(record.Delegate, caller[:]) {
		return ErrUnauthorizedRejector
	}
	record.Delegate = nil
	if err := e.state.DelegationPut(record); err != nil {
		return err
	}
	e.state.AppendEvent(events.DelegationSet{Delegator: delegator}.Event())
	return nil
}

// RegisterDomain charges the registration fee and emits the registration
// event. No domain record is persisted; the lifecycle is out of scope.
func (e *Engine) RegisterDomain(caller [20]byte, name string, isExtension bool) error {
	st, ok := e.state.ServiceStateGet()
	if !ok {
		return ErrNotInitialized
	}
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return ErrEmptyDomain
	}
	if st.RegistrationFee > 0 {
		if err := e.state.ServiceVaultCredit(caller, st.RegistrationFee); err != nil {
			return err
		}
		var err error
		st.OwnerClaimable, err = addU64(st.OwnerClaimable, st.RegistrationFee)
		if err != nil {
			return err
		}
		if err := e.state.ServiceStatePut(st); err != nil {
			return err
		}
	}
	e.state.AppendEvent(events.DomainRegistered{Name: trimmed, Registrant: caller, IsExtension: isExtension}.Event())
	return nil
}

// SetRegistrationFee updates the domain registration fee. Owner only.
func (e *Engine) SetRegistrationFee(caller [20]byte, newFee uint64) error {
	st, ok := e.state.ServiceStateGet()
	if !ok {
		return ErrNotInitialized
	}
	if caller != st.Owner {
		return ErrOnlyOwner
	}
	old := st.RegistrationFee
	st.RegistrationFee = newFee
	if err := e.state.ServiceStatePut(st); err != nil {
		return err
	}
	e.state.AppendEvent(events.RegistrationFeeUpdated{Old: old, New: newFee}.Event())
	return nil
}

// SetDelegationFee updates the delegation fee. Owner only.
func (e *Engine) SetDelegationFee(caller [20]byte, newFee uint64) error {
	st, ok := e.state.ServiceStateGet()
	if !ok {
		return ErrNotInitialized
	}
	if caller != st.Owner {
		return ErrOnlyOwner
	}
	old := st.DelegationFee
	st.DelegationFee = newFee
	if err := e.state.ServiceStatePut(st); err != nil {
		return err
	}
	e.state.AppendEvent(events.DelegationFeeUpdated{Old: old, New: newFee}.Event())
	return nil
}

// WithdrawFees pays accumulated fees to the owner. The owner pool mirrors the
// vault balance, so the pool bound is the custody bound.
func (e *Engine) WithdrawFees(caller [20]byte, amount uint64) error {
	st, ok := e.state.ServiceStateGet()
	if !ok {
		return ErrNotInitialized
	}
	if caller != st.Owner {
		return ErrOnlyOwner
	}
	if amount == 0 {
		return ErrInvalidAmount
	}
	if amount > st.OwnerClaimable {
		return ErrInsufficientFunds
	}
	st.OwnerClaimable -= amount
	if err := e.state.ServiceStatePut(st); err != nil {
		return err
	}
	if err := e.state.ServiceVaultDebit(caller, amount, st.Bump); err != nil {
		return err
	}
	e.state.AppendEvent(events.FeesWithdrawn{Owner: caller, Amount: amount}.Event())
	return nil
}

// ServiceState returns the service singleton, if initialized.
func (e *Engine) ServiceState() (*State, bool) {
	st, ok := e.state.ServiceStateGet()
	if !ok {
		return nil, false
	}
	return st.Clone(), true
}

// DelegationFor returns the delegation record of a delegator, if any.
func (e *Engine) DelegationFor(delegator [20]byte) (*Delegation, bool) {
	record, ok := e.state.DelegationGet(delegator)
	if !ok {
		return nil, false
	}
	return record.Clone(), true
}

func addU64(a, b uint64) (uint64, error) {
	sum := a + b
	if sum < a {
		return 0, ErrMathOverflow
	}
	return sum, nil
}
