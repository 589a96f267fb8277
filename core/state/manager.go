package state

import (
	"fmt"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"mailboxchain/core/types"
	"mailboxchain/storage/trie"
)

// Seed labels used for deterministic state-account derivation. The same
// logical key always yields the same account address across deployments.
const (
	SeedMailer      = "mailer"
	SeedMailService = "mail_service"
	SeedClaim       = "claim"
	SeedDelegation  = "delegation"
)

const stateSeedPrefix = "mailbox/state"

var (
	accountPrefix           = []byte("account:")
	mailerStateKeyBytes     = ethcrypto.Keccak256([]byte("mailer/state"))
	mailerClaimPrefix       = []byte("mailer/claim/")
	serviceStateKeyBytes    = ethcrypto.Keccak256([]byte("mailservice/state"))
	serviceDelegationPrefix = []byte("mailservice/delegation/")
)

// Manager provides typed read and write access to the protocol state held in
// the trie. Events appended during an operation are collected here so the node
// can publish them only after the operation commits.
type Manager struct {
	trie   *trie.Trie
	events []*types.Event
}

// NewManager creates a state manager operating on the provided trie.
func NewManager(tr *trie.Trie) *Manager {
	return &Manager{trie: tr}
}

// AppendEvent records an event produced by the current operation.
func (m *Manager) AppendEvent(evt *types.Event) {
	if m == nil || evt == nil {
		return
	}
	m.events = append(m.events, evt)
}

// Events returns the events collected since the last reset.
func (m *Manager) Events() []*types.Event {
	out := make([]*types.Event, len(m.events))
	copy(out, m.events)
	return out
}

// ResetEvents discards collected events, typically after a failed operation.
func (m *Manager) ResetEvents() {
	m.events = m.events[:0]
}

// DeriveStateAddress computes the deterministic account address for a seed
// tuple. Starting from bump 255 and descending, the candidate address is the
// last 20 bytes of keccak256(prefix ‖ len-prefixed seeds ‖ bump); the first
// non-zero candidate wins and its bump is returned for persistence.
func DeriveStateAddress(seeds ...[]byte) ([20]byte, uint8, error) {
	for bump := 255; bump >= 0; bump-- {
		buf := []byte(stateSeedPrefix)
		for _, seed := range seeds {
			buf = append(buf, byte(len(seed)))
			buf = append(buf, seed...)
		}
		buf = append(buf, byte(bump))
		hash := ethcrypto.Keccak256(buf)
		var addr [20]byte
		copy(addr[:], hash[len(hash)-20:])
		if addr != ([20]byte{}) {
			return addr, uint8(bump), nil
		}
	}
	return [20]byte{}, 0, fmt.Errorf("state: address derivation exhausted")
}

// MailerModuleAddress returns the mailer singleton state address. The address
// doubles as the mailer's UNIT custody account.
func MailerModuleAddress() ([20]byte, uint8, error) {
	return DeriveStateAddress([]byte(SeedMailer))
}

// ServiceModuleAddress returns the mail service singleton state address and
// custody account.
func ServiceModuleAddress() ([20]byte, uint8, error) {
	return DeriveStateAddress([]byte(SeedMailService))
}

// ClaimAddress returns the deterministic address of a sender's recipient
// claim account.
func ClaimAddress(sender [20]byte) ([20]byte, uint8, error) {
	return DeriveStateAddress([]byte(SeedClaim), sender[:])
}

// DelegationAddress returns the deterministic address of a delegator's
// delegation account.
func DelegationAddress(delegator [20]byte) ([20]byte, uint8, error) {
	return DeriveStateAddress([]byte(SeedDelegation), delegator[:])
}
