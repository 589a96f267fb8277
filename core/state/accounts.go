package state

import (
	"errors"
	"fmt"
	"math/big"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"

	"mailboxchain/core/types"
)

// ErrInsufficientBalance is returned when a balance move would drive an
// account negative.
var ErrInsufficientBalance = errors.New("state: insufficient balance")

type storedAccount struct {
	Nonce       uint64
	BalanceUNIT *big.Int
}

func accountStorageKey(addr []byte) []byte {
	buf := make([]byte, len(accountPrefix)+len(addr))
	copy(buf, accountPrefix)
	copy(buf[len(accountPrefix):], addr)
	return ethcrypto.Keccak256(buf)
}

func ensureAccountDefaults(account *types.Account) {
	if account.BalanceUNIT == nil {
		account.BalanceUNIT = big.NewInt(0)
	}
}

func cloneAccount(acc *types.Account) *types.Account {
	if acc == nil {
		return &types.Account{BalanceUNIT: big.NewInt(0)}
	}
	cloned := *acc
	if acc.BalanceUNIT != nil {
		cloned.BalanceUNIT = new(big.Int).Set(acc.BalanceUNIT)
	} else {
		cloned.BalanceUNIT = big.NewInt(0)
	}
	return &cloned
}

// GetAccount loads the account stored for addr. Missing accounts resolve to a
// zeroed account so callers never observe nil balances.
func (m *Manager) GetAccount(addr []byte) (*types.Account, error) {
	data, err := m.trie.Get(accountStorageKey(addr))
	if err != nil || len(data) == 0 {
		account := &types.Account{}
		ensureAccountDefaults(account)
		return account, nil
	}
	stored := new(storedAccount)
	if err := rlp.DecodeBytes(data, stored); err != nil {
		return nil, fmt.Errorf("state: decode account: %w", err)
	}
	account := &types.Account{
		Nonce:       stored.Nonce,
		BalanceUNIT: stored.BalanceUNIT,
	}
	ensureAccountDefaults(account)
	return account, nil
}

// PutAccount persists the account for addr.
func (m *Manager) PutAccount(addr []byte, account *types.Account) error {
	if account == nil {
		return fmt.Errorf("state: nil account")
	}
	ensureAccountDefaults(account)
	encoded, err := rlp.EncodeToBytes(&storedAccount{
		Nonce:       account.Nonce,
		BalanceUNIT: account.BalanceUNIT,
	})
	if err != nil {
		return err
	}
	return m.trie.Update(accountStorageKey(addr), encoded)
}

// MustSubBalance subtracts amt from balance in place and returns a rollback
// closure restoring the previous value. It fails without mutating when the
// balance cannot cover the amount.
func MustSubBalance(balance, amt *big.Int) (func(), error) {
	if balance == nil || amt == nil {
		return nil, fmt.Errorf("state: nil balance operand")
	}
	if amt.Sign() < 0 {
		return nil, fmt.Errorf("state: negative amount")
	}
	if balance.Cmp(amt) < 0 {
		return nil, ErrInsufficientBalance
	}
	balance.Sub(balance, amt)
	return func() { balance.Add(balance, amt) }, nil
}

// MustAddBalance adds amt to balance in place and returns a rollback closure
// restoring the previous value.
func MustAddBalance(balance, amt *big.Int) (func(), error) {
	if balance == nil || amt == nil {
		return nil, fmt.Errorf("state: nil balance operand")
	}
	if amt.Sign() < 0 {
		return nil, fmt.Errorf("state: negative amount")
	}
	balance.Add(balance, amt)
	return func() { balance.Sub(balance, amt) }, nil
}

// moveUNIT transfers amt between two ledger accounts with rollback on partial
// failure. A shortfall on the source account surfaces as insufficientErr.
func (m *Manager) moveUNIT(from, to [20]byte, amt *big.Int, insufficientErr error) error {
	if amt == nil || amt.Sign() <= 0 {
		return fmt.Errorf("state: amount must be positive")
	}
	fromAcc, err := m.GetAccount(from[:])
	if err != nil {
		return err
	}
	toAcc, err := m.GetAccount(to[:])
	if err != nil {
		return err
	}
	originalFrom := cloneAccount(fromAcc)
	originalTo := cloneAccount(toAcc)
	fromAcc = cloneAccount(fromAcc)
	toAcc = cloneAccount(toAcc)

	rollbacks := make([]func(), 0, 2)
	revert := func() {
		for i := len(rollbacks) - 1; i >= 0; i-- {
			if rollbacks[i] != nil {
				rollbacks[i]()
			}
		}
	}
	rollback, subErr := MustSubBalance(fromAcc.BalanceUNIT, amt)
	if subErr != nil {
		if errors.Is(subErr, ErrInsufficientBalance) && insufficientErr != nil {
			return insufficientErr
		}
		return subErr
	}
	rollbacks = append(rollbacks, rollback)
	rollback, addErr := MustAddBalance(toAcc.BalanceUNIT, amt)
	if addErr != nil {
		revert()
		return addErr
	}
	rollbacks = append(rollbacks, rollback)

	if err := m.PutAccount(from[:], fromAcc); err != nil {
		revert()
		return err
	}
	if err := m.PutAccount(to[:], toAcc); err != nil {
		revert()
		if restoreErr := m.PutAccount(from[:], originalFrom); restoreErr != nil {
			return errors.Join(err, fmt.Errorf("state: rollback sender: %w", restoreErr))
		}
		if restoreErr := m.PutAccount(to[:], originalTo); restoreErr != nil {
			return errors.Join(err, fmt.Errorf("state: rollback receiver: %w", restoreErr))
		}
		return err
	}
	return nil
}
