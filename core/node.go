package core

import (
	"errors"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"mailboxchain/core/mailbox"
	"mailboxchain/core/state"
	"mailboxchain/core/types"
	"mailboxchain/native/mailer"
	"mailboxchain/native/mailservice"
	"mailboxchain/observability"
	"mailboxchain/storage"
	"mailboxchain/storage/trie"
)

var stateRootKey = []byte("mailbox/state-root")

// maxEventLog bounds the in-memory tail of emitted events kept for queries.
const maxEventLog = 4096

// Node hosts the two protocol state machines and applies operations one at a
// time. Each operation snapshots the committed trie root, runs against the
// state manager, and either commits a new root or resets to the snapshot, so
// a failed operation leaves zero observable state change.
type Node struct {
	mu       sync.Mutex
	db       storage.Database
	stateTr  *trie.Trie
	manager  *state.Manager
	mailer   *mailer.Engine
	service  *mailservice.Engine
	log      *slog.Logger
	metrics  *observability.Metrics
	clock    func() int64
	height   uint64
	eventLog []*types.Event
}

// Option customises node construction.
type Option func(*Node)

// WithClock overrides the operation timestamp source. Used by tests to pin
// claim-window boundaries.
func WithClock(clock func() int64) Option {
	return func(n *Node) {
		if clock != nil {
			n.clock = clock
		}
	}
}

// WithMetrics attaches Prometheus collectors to the node.
func WithMetrics(m *observability.Metrics) Option {
	return func(n *Node) { n.metrics = m }
}

// NewNode creates a node over the provided storage.
func NewNode(db storage.Database, logger *slog.Logger, opts ...Option) (*Node, error) {
	stateTr, err := trie.NewTrie(db, nil)
	if err != nil {
		return nil, err
	}
	manager := state.NewManager(stateTr)
	if logger == nil {
		logger = slog.Default()
	}
	n := &Node{
		db:      db,
		stateTr: stateTr,
		manager: manager,
		mailer:  mailer.NewEngine(manager, state.MailerModuleAddress, state.ClaimAddress),
		service: mailservice.NewEngine(manager, state.ServiceModuleAddress, state.DelegationAddress),
		log:     logger,
		clock:   func() int64 { return time.Now().Unix() },
	}
	for _, opt := range opts {
		opt(n)
	}
	// State rebuilds from genesis on every boot; a root left by a previous
	// run is surfaced so operators notice the restart.
	if prev, err := db.Get(stateRootKey); err == nil && len(prev) > 0 {
		n.log.Info("previous state root on disk", "root", common.BytesToHash(prev).Hex())
	} else if err != nil && !errors.Is(err, storage.ErrKeyNotFound) {
		n.log.Warn("read persisted state root failed", "err", err)
	}
	return n, nil
}

// apply runs fn as one atomic operation against the state.
func (n *Node) apply(op string, fn func() error) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	prev := n.stateTr.Root()
	n.manager.ResetEvents()
	if err := fn(); err != nil {
		if resetErr := n.stateTr.Reset(prev); resetErr != nil {
			n.log.Error("state reset failed", "op", op, "err", resetErr)
		}
		n.manager.ResetEvents()
		n.metrics.ObserveOperation(op, err)
		return err
	}
	n.height++
	root, err := n.stateTr.Commit(prev, n.height)
	if err != nil {
		if resetErr := n.stateTr.Reset(prev); resetErr != nil {
			n.log.Error("state reset failed", "op", op, "err", resetErr)
		}
		n.manager.ResetEvents()
		n.metrics.ObserveOperation(op, err)
		return err
	}
	if err := n.db.Put(stateRootKey, root.Bytes()); err != nil {
		n.log.Warn("persist state root failed", "err", err)
	}
	for _, evt := range n.manager.Events() {
		n.eventLog = append(n.eventLog, evt)
	}
	if overflow := len(n.eventLog) - maxEventLog; overflow > 0 {
		n.eventLog = append([]*types.Event(nil), n.eventLog[overflow:]...)
	}
	n.manager.ResetEvents()
	n.metrics.ObserveOperation(op, nil)
	n.log.Info("operation applied", "op", op, "height", n.height, "root", root.Hex())
	return nil
}

// --- Mailer operations ---

func (n *Node) MailerInitialize(caller [20]byte, unitMint string) error {
	return n.apply("mailer.initialize", func() error {
		_, err := n.mailer.Initialize(caller, unitMint)
		return err
	})
}

func (n *Node) MailerSendPriority(caller [20]byte, subject, body string) error {
	return n.apply("mailer.send_priority", func() error {
		err := n.mailer.SendPriority(caller, subject, body, n.clock())
		n.observeSendFee(err, true)
		return err
	})
}

func (n *Node) MailerSendPriorityPrepared(caller [20]byte, mailID string) error {
	return n.apply("mailer.send_priority_prepared", func() error {
		err := n.mailer.SendPriorityPrepared(caller, mailID, n.clock())
		n.observeSendFee(err, true)
		return err
	})
}

func (n *Node) MailerSend(caller [20]byte, subject, body string) error {
	return n.apply("mailer.send", func() error {
		err := n.mailer.Send(caller, subject, body)
		n.observeSendFee(err, false)
		return err
	})
}

func (n *Node) MailerSendPrepared(caller [20]byte, mailID string) error {
	return n.apply("mailer.send_prepared", func() error {
		err := n.mailer.SendPrepared(caller, mailID)
		n.observeSendFee(err, false)
		return err
	})
}

func (n *Node) MailerClaimRecipientShare(caller [20]byte) (uint64, error) {
	var amount uint64
	err := n.apply("mailer.claim_recipient_share", func() error {
		var claimErr error
		amount, claimErr = n.mailer.ClaimRecipientShare(caller, n.clock())
		return claimErr
	})
	if err == nil {
		n.metrics.ObserveClaimPayout(amount)
	}
	return amount, err
}

func (n *Node) MailerClaimOwnerShare(caller [20]byte) (uint64, error) {
	var amount uint64
	err := n.apply("mailer.claim_owner_share", func() error {
		var claimErr error
		amount, claimErr = n.mailer.ClaimOwnerShare(caller)
		return claimErr
	})
	if err == nil {
		n.metrics.ObserveClaimPayout(amount)
	}
	return amount, err
}

func (n *Node) MailerClaimExpiredShares(caller, sender [20]byte) (uint64, error) {
	var amount uint64
	err := n.apply("mailer.claim_expired_shares", func() error {
		var claimErr error
		amount, claimErr = n.mailer.ClaimExpiredShares(caller, sender, n.clock())
		return claimErr
	})
	if err == nil {
		n.metrics.ObserveClaimPayout(amount)
	}
	return amount, err
}

func (n *Node) MailerSetFee(caller [20]byte, newFee uint64) error {
	return n.apply("mailer.set_fee", func() error {
		return n.mailer.SetFee(caller, newFee)
	})
}

func (n *Node) observeSendFee(err error, priority bool) {
	if err != nil {
		return
	}
	st, ok := n.manager.MailerStateGet()
	if !ok {
		return
	}
	if priority {
		n.metrics.ObserveFee(st.SendFee)
		return
	}
	ownerPart, _ := mailbox.SplitFee(st.SendFee)
	n.metrics.ObserveFee(ownerPart)
}

// --- Mail service operations ---

func (n *Node) ServiceInitialize(caller [20]byte, unitMint string) error {
	return n.apply("mailservice.initialize", func() error {
		_, err := n.service.Initialize(caller, unitMint)
		return err
	})
}

func (n *Node) ServiceDelegateTo(caller [20]byte, delegate []byte) error {
	return n.apply("mailservice.delegate_to", func() error {
		return n.service.DelegateTo(caller, delegate)
	})
}

func (n *Node) ServiceRejectDelegation(caller, delegator [20]byte) error {
	return n.apply("mailservice.reject_delegation", func() error {
		return n.service.RejectDelegation(caller, delegator)
	})
}

func (n *Node) ServiceRegisterDomain(caller [20]byte, name string, isExtension bool) error {
	return n.apply("mailservice.register_domain", func() error {
		return n.service.RegisterDomain(caller, name, isExtension)
	})
}

func (n *Node) ServiceSetRegistrationFee(caller [20]byte, newFee uint64) error {
	return n.apply("mailservice.set_registration_fee", func() error {
		return n.service.SetRegistrationFee(caller, newFee)
	})
}

func (n *Node) ServiceSetDelegationFee(caller [20]byte, newFee uint64) error {
	return n.apply("mailservice.set_delegation_fee", func() error {
		return n.service.SetDelegationFee(caller, newFee)
	})
}

func (n *Node) ServiceWithdrawFees(caller [20]byte, amount uint64) error {
	return n.apply("mailservice.withdraw_fees", func() error {
		return n.service.WithdrawFees(caller, amount)
	})
}

// --- Queries ---

func (n *Node) MailerState() (*mailbox.MailerState, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.mailer.State()
}

func (n *Node) MailerClaim(sender [20]byte) (*mailbox.RecipientClaim, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.mailer.Claim(sender)
}

func (n *Node) ServiceState() (*mailservice.State, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.service.ServiceState()
}

func (n *Node) Delegation(delegator [20]byte) (*mailservice.Delegation, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.service.DelegationFor(delegator)
}

func (n *Node) Account(addr []byte) (*types.Account, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.manager.GetAccount(addr)
}

func (n *Node) MailerVaultBalance() (*big.Int, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.manager.MailerVaultBalance()
}

func (n *Node) ServiceVaultBalance() (*big.Int, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.manager.ServiceVaultBalance()
}

// Events returns the most recent events, newest last. A non-positive limit
// returns the full retained tail.
func (n *Node) Events(limit int) []*types.Event {
	n.mu.Lock()
	defer n.mu.Unlock()
	if limit <= 0 || limit > len(n.eventLog) {
		limit = len(n.eventLog)
	}
	out := make([]*types.Event, limit)
	copy(out, n.eventLog[len(n.eventLog)-limit:])
	return out
}

// StateRoot returns the last committed state root.
func (n *Node) StateRoot() []byte {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.stateTr.Root().Bytes()
}

// Height returns the number of committed operations.
func (n *Node) Height() uint64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.height
}

// Credit mints UNIT onto an account. It is reserved for genesis allocation
// and tests; production deposits arrive through the bridge, which is out of
// scope here.
func (n *Node) Credit(addr [20]byte, amount *big.Int) error {
	return n.apply("ledger.credit", func() error {
		account, err := n.manager.GetAccount(addr[:])
		if err != nil {
			return err
		}
		if _, err := state.MustAddBalance(account.BalanceUNIT, amount); err != nil {
			return err
		}
		return n.manager.PutAccount(addr[:], account)
	})
}
