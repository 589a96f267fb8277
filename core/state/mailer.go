package state

import (
	"fmt"
	"math/big"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"

	"mailboxchain/core/mailbox"
	"mailboxchain/native/token"
)

func claimStorageKey(sender [20]byte) []byte {
	buf := make([]byte, len(mailerClaimPrefix)+len(sender))
	copy(buf, mailerClaimPrefix)
	copy(buf[len(mailerClaimPrefix):], sender[:])
	return ethcrypto.Keccak256(buf)
}

type storedMailerState struct {
	Owner          [20]byte
	UnitMint       string
	SendFee        uint64
	OwnerClaimable uint64
	Bump           uint8
}

type storedRecipientClaim struct {
	Recipient [20]byte
	Amount    uint64
	Timestamp uint64
	Bump      uint8
}

// MailerStatePut persists the mailer singleton record.
func (m *Manager) MailerStatePut(st *mailbox.MailerState) error {
	if st == nil {
		return fmt.Errorf("state: nil mailer state")
	}
	normalized, err := token.Normalize(st.UnitMint)
	if err != nil {
		return err
	}
	encoded, err := rlp.EncodeToBytes(&storedMailerState{
		Owner:          st.Owner,
		UnitMint:       normalized,
		SendFee:        st.SendFee,
		OwnerClaimable: st.OwnerClaimable,
		Bump:           st.Bump,
	})
	if err != nil {
		return err
	}
	return m.trie.Update(mailerStateKeyBytes, encoded)
}

// MailerStateGet loads the mailer singleton record if it has been created.
func (m *Manager) MailerStateGet() (*mailbox.MailerState, bool) {
	data, err := m.trie.Get(mailerStateKeyBytes)
	if err != nil || len(data) == 0 {
		return nil, false
	}
	stored := new(storedMailerState)
	if err := rlp.DecodeBytes(data, stored); err != nil {
		return nil, false
	}
	return &mailbox.MailerState{
		Owner:          stored.Owner,
		UnitMint:       stored.UnitMint,
		SendFee:        stored.SendFee,
		OwnerClaimable: stored.OwnerClaimable,
		Bump:           stored.Bump,
	}, true
}

// RecipientClaimPut persists a sender's claim record. Zeroed claims are kept
// so the claim account's bump survives across accrual cycles.
func (m *Manager) RecipientClaimPut(c *mailbox.RecipientClaim) error {
	if c == nil {
		return fmt.Errorf("state: nil claim")
	}
	if c.Timestamp < 0 {
		return fmt.Errorf("state: negative claim timestamp")
	}
	encoded, err := rlp.EncodeToBytes(&storedRecipientClaim{
		Recipient: c.Recipient,
		Amount:    c.Amount,
		Timestamp: uint64(c.Timestamp),
		Bump:      c.Bump,
	})
	if err != nil {
		return err
	}
	return m.trie.Update(claimStorageKey(c.Recipient), encoded)
}

// RecipientClaimGet loads the claim record accrued by sender.
func (m *Manager) RecipientClaimGet(sender [20]byte) (*mailbox.RecipientClaim, bool) {
	data, err := m.trie.Get(claimStorageKey(sender))
	if err != nil || len(data) == 0 {
		return nil, false
	}
	stored := new(storedRecipientClaim)
	if err := rlp.DecodeBytes(data, stored); err != nil {
		return nil, false
	}
	return &mailbox.RecipientClaim{
		Recipient: stored.Recipient,
		Amount:    stored.Amount,
		Timestamp: int64(stored.Timestamp),
		Bump:      stored.Bump,
	}, true
}

// MailerVaultCredit moves amount from the payer into the mailer custody
// account.
func (m *Manager) MailerVaultCredit(payer [20]byte, amount uint64) error {
	if amount == 0 {
		return fmt.Errorf("state: amount must be positive")
	}
	vault, _, err := MailerModuleAddress()
	if err != nil {
		return err
	}
	return m.moveUNIT(payer, vault, new(big.Int).SetUint64(amount), mailbox.ErrInsufficientFunds)
}

// MailerVaultDebit pays amount out of the mailer custody account, authorized
// by re-deriving the module address against the persisted bump.
func (m *Manager) MailerVaultDebit(to [20]byte, amount uint64, bump uint8) error {
	if amount == 0 {
		return fmt.Errorf("state: amount must be positive")
	}
	vault, derivedBump, err := MailerModuleAddress()
	if err != nil {
		return err
	}
	if bump != derivedBump {
		return fmt.Errorf("state: mailer authority bump mismatch")
	}
	return m.moveUNIT(vault, to, new(big.Int).SetUint64(amount), mailbox.ErrInsufficientFunds)
}

// MailerVaultBalance reports the UNIT currently custodied by the mailer.
func (m *Manager) MailerVaultBalance() (*big.Int, error) {
	vault, _, err := MailerModuleAddress()
	if err != nil {
		return nil, err
	}
	account, err := m.GetAccount(vault[:])
	if err != nil {
		return nil, err
	}
	return new(big.Int).Set(account.BalanceUNIT), nil
}
