package core

import (
	"bytes"
	"errors"
	"math/big"
	"testing"

	"mailboxchain/core/events"
	"mailboxchain/core/mailbox"
	"mailboxchain/native/token"
	"mailboxchain/storage"
)

func newTestNode(t *testing.T, now *int64) *Node {
	t.Helper()
	db := storage.NewMemDB()
	t.Cleanup(func() {
		db.Close()
	})
	node, err := NewNode(db, nil, WithClock(func() int64 { return *now }))
	if err != nil {
		t.Fatalf("new node: %v", err)
	}
	return node
}

func TestNodeFailedOperationLeavesNoTrace(t *testing.T) {
	now := int64(1_700_000_000)
	node := newTestNode(t, &now)
	var owner, sender [20]byte
	owner[19] = 1
	sender[19] = 2

	if err := node.MailerInitialize(owner, token.DenomUNIT); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	rootBefore := node.StateRoot()
	heightBefore := node.Height()
	eventsBefore := len(node.Events(0))

	// Unfunded sender: the whole operation must revert.
	if err := node.MailerSendPriority(sender, "hi", "body"); !errors.Is(err, mailbox.ErrInsufficientFunds) {
		t.Fatalf("expected insufficient funds, got %v", err)
	}
	if !bytes.Equal(node.StateRoot(), rootBefore) {
		t.Fatalf("state root changed after failed operation")
	}
	if node.Height() != heightBefore {
		t.Fatalf("height advanced after failed operation")
	}
	if len(node.Events(0)) != eventsBefore {
		t.Fatalf("events emitted by failed operation")
	}
	if _, ok := node.MailerClaim(sender); ok {
		t.Fatalf("claim created by failed operation")
	}
}

func TestNodeEndToEndClaimFlow(t *testing.T) {
	now := int64(1_700_000_000)
	node := newTestNode(t, &now)
	var owner, sender [20]byte
	owner[19] = 1
	sender[19] = 2

	if err := node.MailerInitialize(owner, token.DenomUNIT); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	if err := node.Credit(sender, big.NewInt(1_000_000)); err != nil {
		t.Fatalf("credit: %v", err)
	}
	if err := node.MailerSendPriority(sender, "hi", "body"); err != nil {
		t.Fatalf("send: %v", err)
	}

	claim, ok := node.MailerClaim(sender)
	if !ok || claim.Amount != 90_000 || claim.Timestamp != now {
		t.Fatalf("unexpected claim: %+v", claim)
	}

	// Advance past the window: the sender is locked out, the owner reclaims.
	now += mailbox.ClaimWindowSecs + 1
	if _, err := node.MailerClaimRecipientShare(sender); !errors.Is(err, mailbox.ErrClaimExpired) {
		t.Fatalf("expected claim expired, got %v", err)
	}
	amount, err := node.MailerClaimExpiredShares(owner, sender)
	if err != nil {
		t.Fatalf("expired reclaim: %v", err)
	}
	if amount != 90_000 {
		t.Fatalf("unexpected reclaimed amount: %d", amount)
	}
	ownerAcc, err := node.Account(owner[:])
	if err != nil {
		t.Fatalf("owner account: %v", err)
	}
	if ownerAcc.BalanceUNIT.Cmp(big.NewInt(90_000)) != 0 {
		t.Fatalf("unexpected owner balance: %s", ownerAcc.BalanceUNIT)
	}
}

func TestNodeCollectsEventsInOrder(t *testing.T) {
	now := int64(1_700_000_000)
	node := newTestNode(t, &now)
	var owner, sender [20]byte
	owner[19] = 1
	sender[19] = 2

	if err := node.MailerInitialize(owner, token.DenomUNIT); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	if err := node.Credit(sender, big.NewInt(1_000_000)); err != nil {
		t.Fatalf("credit: %v", err)
	}
	if err := node.MailerSendPriority(sender, "hi", "body"); err != nil {
		t.Fatalf("send: %v", err)
	}

	evts := node.Events(2)
	if len(evts) != 2 {
		t.Fatalf("expected two trailing events, got %d", len(evts))
	}
	if evts[0].Type != events.TypeMailSent || evts[1].Type != events.TypeSharesRecorded {
		t.Fatalf("unexpected event order: %s, %s", evts[0].Type, evts[1].Type)
	}
}

func TestNodeServiceFlow(t *testing.T) {
	now := int64(1_700_000_000)
	node := newTestNode(t, &now)
	var owner, alice, bob [20]byte
	owner[19] = 1
	alice[19] = 2
	bob[19] = 3

	if err := node.ServiceInitialize(owner, token.DenomUNIT); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	if err := node.Credit(alice, big.NewInt(10_000_000)); err != nil {
		t.Fatalf("credit: %v", err)
	}
	if err := node.ServiceDelegateTo(alice, bob[:]); err != nil {
		t.Fatalf("delegate: %v", err)
	}
	record, ok := node.Delegation(alice)
	if !ok || !record.Active() {
		t.Fatalf("delegation missing: %+v", record)
	}
	if err := node.ServiceRejectDelegation(bob, alice); err != nil {
		t.Fatalf("reject: %v", err)
	}
	record, ok = node.Delegation(alice)
	if !ok || record.Active() {
		t.Fatalf("delegation not cleared: %+v", record)
	}
	if err := node.ServiceWithdrawFees(owner, 10_000_000); err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	vault, err := node.ServiceVaultBalance()
	if err != nil {
		t.Fatalf("vault balance: %v", err)
	}
	if vault.Sign() != 0 {
		t.Fatalf("vault not drained: %s", vault)
	}
}
