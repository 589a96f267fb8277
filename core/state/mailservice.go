package state

import (
	"fmt"
	"math/big"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"

	"mailboxchain/native/mailservice"
	"mailboxchain/native/token"
)

func delegationStorageKey(delegator [20]byte) []byte {
	buf := make([]byte, len(serviceDelegationPrefix)+len(delegator))
	copy(buf, serviceDelegationPrefix)
	copy(buf[len(serviceDelegationPrefix):], delegator[:])
	return ethcrypto.Keccak256(buf)
}

type storedServiceState struct {
	Owner           [20]byte
	UnitMint        string
	DelegationFee   uint64
	RegistrationFee uint64
	OwnerClaimable  uint64
	Bump            uint8
}

type storedDelegation struct {
	Delegator [20]byte
	Delegate  []byte
	Bump      uint8
}

// ServiceStatePut persists the mail service singleton record.
func (m *Manager) ServiceStatePut(st *mailservice.State) error {
	if st == nil {
		return fmt.Errorf("state: nil service state")
	}
	normalized, err := token.Normalize(st.UnitMint)
	if err != nil {
		return err
	}
	encoded, err := rlp.EncodeToBytes(&storedServiceState{
		Owner:           st.Owner,
		UnitMint:        normalized,
		DelegationFee:   st.DelegationFee,
		RegistrationFee: st.RegistrationFee,
		OwnerClaimable:  st.OwnerClaimable,
		Bump:            st.Bump,
	})
	if err != nil {
		return err
	}
	return m.trie.Update(serviceStateKeyBytes, encoded)
}

// ServiceStateGet loads the mail service singleton record if created.
func (m *Manager) ServiceStateGet() (*mailservice.State, bool) {
	data, err := m.trie.Get(serviceStateKeyBytes)
	if err != nil || len(data) == 0 {
		return nil, false
	}
	stored := new(storedServiceState)
	if err := rlp.DecodeBytes(data, stored); err != nil {
		return nil, false
	}
	return &mailservice.State{
		Owner:           stored.Owner,
		UnitMint:        stored.UnitMint,
		DelegationFee:   stored.DelegationFee,
		RegistrationFee: stored.RegistrationFee,
		OwnerClaimable:  stored.OwnerClaimable,
		Bump:            stored.Bump,
	}, true
}

// DelegationPut persists a delegator's delegation record.
func (m *Manager) DelegationPut(d *mailservice.Delegation) error {
	if d == nil {
		return fmt.Errorf("state: nil delegation")
	}
	if len(d.Delegate) != 0 && len(d.Delegate) != 20 {
		return mailservice.ErrInvalidDelegate
	}
	encoded, err := rlp.EncodeToBytes(&storedDelegation{
		Delegator: d.Delegator,
		Delegate:  d.Delegate,
		Bump:      d.Bump,
	})
	if err != nil {
		return err
	}
	return m.trie.Update(delegationStorageKey(d.Delegator), encoded)
}

// DelegationGet loads a delegator's delegation record.
func (m *Manager) DelegationGet(delegator [20]byte) (*mailservice.Delegation, bool) {
	data, err := m.trie.Get(delegationStorageKey(delegator))
	if err != nil || len(data) == 0 {
		return nil, false
	}
	stored := new(storedDelegation)
	if err := rlp.DecodeBytes(data, stored); err != nil {
		return nil, false
	}
	return &mailservice.Delegation{
		Delegator: stored.Delegator,
		Delegate:  stored.Delegate,
		Bump:      stored.Bump,
	}, true
}

// ServiceVaultCredit moves amount from the payer into the service custody
// account.
func (m *Manager) ServiceVaultCredit(payer [20]byte, amount uint64) error {
	if amount == 0 {
		return fmt.Errorf("state: amount must be positive")
	}
	vault, _, err := ServiceModuleAddress()
	if err != nil {
		return err
	}
	return m.moveUNIT(payer, vault, new(big.Int).SetUint64(amount), mailservice.ErrInsufficientFunds)
}

// ServiceVaultDebit pays amount out of the service custody account,
// authorized by re-deriving the module address against the persisted bump.
func (m *Manager) ServiceVaultDebit(to [20]byte, amount uint64, bump uint8) error {
	if amount == 0 {
		return fmt.Errorf("state: amount must be positive")
	}
	vault, derivedBump, err := ServiceModuleAddress()
	if err != nil {
		return err
	}
	if bump != derivedBump {
		return fmt.Errorf("state: service authority bump mismatch")
	}
	return m.moveUNIT(vault, to, new(big.Int).SetUint64(amount), mailservice.ErrInsufficientFunds)
}

// ServiceVaultBalance reports the UNIT currently custodied by the service.
func (m *Manager) ServiceVaultBalance() (*big.Int, error) {
	vault, _, err := ServiceModuleAddress()
	if err != nil {
		return nil, err
	}
	account, err := m.GetAccount(vault[:])
	if err != nil {
		return nil, err
	}
	return new(big.Int).Set(account.BalanceUNIT), nil
}
