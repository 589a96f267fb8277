package events

import "mailboxchain/core/types"

const (
	TypeServiceInitialized    = "mailservice.initialized"
	TypeDelegationSet         = "mailservice.delegation_set"
	TypeDomainRegistered      = "mailservice.domain_registered"
	TypeRegistrationFeeUpdate = "mailservice.registration_fee_updated"
	TypeDelegationFeeUpdate   = "mailservice.delegation_fee_updated"
	TypeFeesWithdrawn         = "mailservice.fees_withdrawn"
)

type ServiceInitialized struct {
	Owner           [20]byte
	UnitMint        string
	DelegationFee   uint64
	RegistrationFee uint64
}

func (ServiceInitialized) EventType() string { return TypeServiceInitialized }

func (e ServiceInitialized) Event() *types.Event {
	return &types.Event{
		Type: TypeServiceInitialized,
		Attributes: map[string]string{
			"owner":           addr(e.Owner),
			"unitMint":        e.UnitMint,
			"delegationFee":   uintToString(e.DelegationFee),
			"registrationFee": uintToString(e.RegistrationFee),
		},
	}
}

// DelegationSet covers setting, clearing and rejecting a delegation. A
// cleared or rejected delegation carries an empty delegate attribute.
type DelegationSet struct {
	Delegator [20]byte
	Delegate  []byte
}

func (DelegationSet) EventType() string { return TypeDelegationSet }

func (e DelegationSet) Event() *types.Event {
	attrs := map[string]string{
		"delegator": addr(e.Delegator),
		"delegate":  "",
	}
	if len(e.Delegate) == 20 {
		var delegate [20]byte
		copy(delegate[:], e.Delegate)
		attrs["delegate"] = addr(delegate)
	}
	return &types.Event{Type: TypeDelegationSet, Attributes: attrs}
}

type DomainRegistered struct {
	Name        string
	Registrant  [20]byte
	IsExtension bool
}

func (DomainRegistered) EventType() string { return TypeDomainRegistered }

func (e DomainRegistered) Event() *types.Event {
	extension := "false"
	if e.IsExtension {
		extension = "true"
	}
	return &types.Event{
		Type: TypeDomainRegistered,
		Attributes: map[string]string{
			"name":       e.Name,
			"registrant": addr(e.Registrant),
			"extension":  extension,
		},
	}
}

type RegistrationFeeUpdated struct {
	Old uint64
	New uint64
}

func (RegistrationFeeUpdated) EventType() string { return TypeRegistrationFeeUpdate }

func (e RegistrationFeeUpdated) Event() *types.Event {
	return &types.Event{
		Type: TypeRegistrationFeeUpdate,
		Attributes: map[string]string{
			"old": uintToString(e.Old),
			"new": uintToString(e.New),
		},
	}
}

type DelegationFeeUpdated struct {
	Old uint64
	New uint64
}

func (DelegationFeeUpdated) EventType() string { return TypeDelegationFeeUpdate }

func (e DelegationFeeUpdated) Event() *types.Event {
	return &types.Event{
		Type: TypeDelegationFeeUpdate,
		Attributes: map[string]string{
			"old": uintToString(e.Old),
			"new": uintToString(e.New),
		},
	}
}

type FeesWithdrawn struct {
	Owner  [20]byte
	Amount uint64
}

func (FeesWithdrawn) EventType() string { return TypeFeesWithdrawn }

func (e FeesWithdrawn) Event() *types.Event {
	return &types.Event{
		Type: TypeFeesWithdrawn,
		Attributes: map[string]string{
			"owner":  addr(e.Owner),
			"amount": uintToString(e.Amount),
		},
	}
}
