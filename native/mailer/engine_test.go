package mailer

import (
	"errors"
	"math/big"
	"testing"

	"mailboxchain/core/events"
	"mailboxchain/core/mailbox"
	"mailboxchain/core/state"
	"mailboxchain/core/types"
	"mailboxchain/native/token"
	"mailboxchain/storage"
	"mailboxchain/storage/trie"
)

const day = int64(86_400)

var baseTime = int64(1_700_000_000)

func newTestEngine(t *testing.T) (*Engine, *state.Manager) {
	t.Helper()
	db := storage.NewMemDB()
	t.Cleanup(func() {
		db.Close()
	})
	tr, err := trie.NewTrie(db, nil)
	if err != nil {
		t.Fatalf("new trie: %v", err)
	}
	manager := state.NewManager(tr)
	return NewEngine(manager, state.MailerModuleAddress, state.ClaimAddress), manager
}

func fund(t *testing.T, manager *state.Manager, addr [20]byte, unit int64) {
	t.Helper()
	account := &types.Account{BalanceUNIT: big.NewInt(unit)}
	if err := manager.PutAccount(addr[:], account); err != nil {
		t.Fatalf("put account: %v", err)
	}
}

func balanceOf(t *testing.T, manager *state.Manager, addr [20]byte) *big.Int {
	t.Helper()
	account, err := manager.GetAccount(addr[:])
	if err != nil {
		t.Fatalf("get account: %v", err)
	}
	return account.BalanceUNIT
}

func initMailer(t *testing.T, engine *Engine, owner [20]byte) {
	t.Helper()
	if _, err := engine.Initialize(owner, token.DenomUNIT); err != nil {
		t.Fatalf("initialize: %v", err)
	}
}

func eventTypes(manager *state.Manager) []string {
	evts := manager.Events()
	out := make([]string, len(evts))
	for i, evt := range evts {
		out[i] = evt.Type
	}
	return out
}

func TestInitializeOnce(t *testing.T) {
	engine, _ := newTestEngine(t)
	var owner [20]byte
	owner[19] = 1

	st, err := engine.Initialize(owner, token.DenomUNIT)
	if err != nil {
		t.Fatalf("initialize: %v", err)
	}
	if st.Owner != owner || st.SendFee != mailbox.DefaultSendFee || st.OwnerClaimable != 0 {
		t.Fatalf("unexpected initial state: %+v", st)
	}
	if _, err := engine.Initialize(owner, token.DenomUNIT); !errors.Is(err, mailbox.ErrAlreadyInitialized) {
		t.Fatalf("expected already initialized, got %v", err)
	}
}

func TestInitializeRejectsUnknownMint(t *testing.T) {
	engine, _ := newTestEngine(t)
	var owner [20]byte
	owner[19] = 1
	if _, err := engine.Initialize(owner, "WEN"); !errors.Is(err, token.ErrInvalidDenom) {
		t.Fatalf("expected invalid denom, got %v", err)
	}
}

func TestSendPriorityHappyPath(t *testing.T) {
	engine, manager := newTestEngine(t)
	var owner, sender [20]byte
	owner[19] = 1
	sender[19] = 2
	initMailer(t, engine, owner)
	fund(t, manager, sender, 1_000_000)
	manager.ResetEvents()

	if err := engine.SendPriority(sender, "hi", "body", baseTime); err != nil {
		t.Fatalf("send priority: %v", err)
	}

	st, ok := engine.State()
	if !ok {
		t.Fatalf("mailer state missing")
	}
	if st.OwnerClaimable != 10_000 {
		t.Fatalf("unexpected owner claimable: %d", st.OwnerClaimable)
	}
	claim, ok := engine.Claim(sender)
	if !ok {
		t.Fatalf("claim missing after priority send")
	}
	if claim.Amount != 90_000 || claim.Timestamp != baseTime {
		t.Fatalf("unexpected claim: %+v", claim)
	}
	vault, err := manager.MailerVaultBalance()
	if err != nil {
		t.Fatalf("vault balance: %v", err)
	}
	if vault.Cmp(big.NewInt(100_000)) != 0 {
		t.Fatalf("unexpected vault balance: %s", vault)
	}
	if got := balanceOf(t, manager, sender); got.Cmp(big.NewInt(900_000)) != 0 {
		t.Fatalf("unexpected sender balance: %s", got)
	}

	got := eventTypes(manager)
	want := []string{events.TypeMailSent, events.TypeSharesRecorded}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("unexpected events: %v", got)
	}
	shares := manager.Events()[1]
	if shares.Attributes["ownerPart"] != "10000" || shares.Attributes["senderPart"] != "90000" {
		t.Fatalf("unexpected share attributes: %v", shares.Attributes)
	}
}

func TestSendStandardNoAccrual(t *testing.T) {
	engine, manager := newTestEngine(t)
	var owner, sender [20]byte
	owner[19] = 1
	sender[19] = 2
	initMailer(t, engine, owner)
	fund(t, manager, sender, 1_000_000)

	if err := engine.Send(sender, "hi", "body"); err != nil {
		t.Fatalf("send: %v", err)
	}
	st, _ := engine.State()
	if st.OwnerClaimable != 10_000 {
		t.Fatalf("unexpected owner claimable: %d", st.OwnerClaimable)
	}
	if _, ok := engine.Claim(sender); ok {
		t.Fatalf("standard send must not create a claim")
	}
	if got := balanceOf(t, manager, sender); got.Cmp(big.NewInt(990_000)) != 0 {
		t.Fatalf("standard path should charge the owner share only, balance %s", got)
	}

	// A pre-existing claim stays untouched by the standard path.
	if err := engine.SendPriority(sender, "a", "b", baseTime); err != nil {
		t.Fatalf("priority send: %v", err)
	}
	before, _ := engine.Claim(sender)
	if err := engine.SendPrepared(sender, "mail-7"); err != nil {
		t.Fatalf("send prepared: %v", err)
	}
	after, _ := engine.Claim(sender)
	if after.Amount != before.Amount || after.Timestamp != before.Timestamp {
		t.Fatalf("standard path mutated claim: %+v vs %+v", before, after)
	}
}

func TestPriorityAccrualResetsTimestamp(t *testing.T) {
	engine, manager := newTestEngine(t)
	var owner, sender [20]byte
	owner[19] = 1
	sender[19] = 2
	initMailer(t, engine, owner)
	fund(t, manager, sender, 1_000_000)

	if err := engine.SendPriority(sender, "one", "", baseTime); err != nil {
		t.Fatalf("first send: %v", err)
	}
	if err := engine.SendPriorityPrepared(sender, "mail-1", baseTime+10*day); err != nil {
		t.Fatalf("second send: %v", err)
	}
	claim, _ := engine.Claim(sender)
	if claim.Amount != 180_000 {
		t.Fatalf("accruals must add up, got %d", claim.Amount)
	}
	if claim.Timestamp != baseTime+10*day {
		t.Fatalf("timestamp must reset to the latest accrual, got %d", claim.Timestamp)
	}
}

func TestClaimRecipientShareInsideWindow(t *testing.T) {
	engine, manager := newTestEngine(t)
	var owner, sender [20]byte
	owner[19] = 1
	sender[19] = 2
	initMailer(t, engine, owner)
	fund(t, manager, sender, 1_000_000)

	if err := engine.SendPriority(sender, "hi", "body", baseTime); err != nil {
		t.Fatalf("send: %v", err)
	}
	amount, err := engine.ClaimRecipientShare(sender, baseTime+30*day)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if amount != 90_000 {
		t.Fatalf("unexpected claimed amount: %d", amount)
	}
	if got := balanceOf(t, manager, sender); got.Cmp(big.NewInt(990_000)) != 0 {
		t.Fatalf("unexpected sender balance after claim: %s", got)
	}
	claim, ok := engine.Claim(sender)
	if !ok {
		t.Fatalf("claim record should persist after payout")
	}
	if claim.Amount != 0 || claim.Timestamp != 0 {
		t.Fatalf("claim must be cleared on zero: %+v", claim)
	}
	if _, err := engine.ClaimRecipientShare(sender, baseTime+30*day); !errors.Is(err, mailbox.ErrNoClaimableAmount) {
		t.Fatalf("expected no claimable amount, got %v", err)
	}
}

func TestClaimWindowBoundary(t *testing.T) {
	engine, manager := newTestEngine(t)
	var owner, sender [20]byte
	owner[19] = 1
	sender[19] = 2
	initMailer(t, engine, owner)
	fund(t, manager, sender, 1_000_000)

	if err := engine.SendPriority(sender, "hi", "body", baseTime); err != nil {
		t.Fatalf("send: %v", err)
	}
	if _, err := engine.ClaimRecipientShare(sender, baseTime+mailbox.ClaimWindowSecs); err != nil {
		t.Fatalf("claim at the boundary instant must succeed: %v", err)
	}

	if err := engine.SendPriority(sender, "hi", "again", baseTime); err != nil {
		t.Fatalf("send: %v", err)
	}
	if _, err := engine.ClaimRecipientShare(sender, baseTime+mailbox.ClaimWindowSecs+1); !errors.Is(err, mailbox.ErrClaimExpired) {
		t.Fatalf("expected claim expired one second past the window, got %v", err)
	}
}

func TestExpiredReclaimFlow(t *testing.T) {
	engine, manager := newTestEngine(t)
	var owner, sender, outsider [20]byte
	owner[19] = 1
	sender[19] = 2
	outsider[19] = 3
	initMailer(t, engine, owner)
	fund(t, manager, sender, 1_000_000)

	if err := engine.SendPriority(sender, "hi", "body", baseTime); err != nil {
		t.Fatalf("send: %v", err)
	}

	if _, err := engine.ClaimExpiredShares(owner, sender, baseTime+30*day); !errors.Is(err, mailbox.ErrClaimPeriodNotExpired) {
		t.Fatalf("expected claim period not expired, got %v", err)
	}
	if _, err := engine.ClaimExpiredShares(outsider, sender, baseTime+61*day); !errors.Is(err, mailbox.ErrOnlyOwner) {
		t.Fatalf("expected only owner, got %v", err)
	}
	if _, err := engine.ClaimRecipientShare(sender, baseTime+61*day); !errors.Is(err, mailbox.ErrClaimExpired) {
		t.Fatalf("expected claim expired for sender, got %v", err)
	}

	amount, err := engine.ClaimExpiredShares(owner, sender, baseTime+61*day)
	if err != nil {
		t.Fatalf("expired reclaim: %v", err)
	}
	if amount != 90_000 {
		t.Fatalf("unexpected reclaimed amount: %d", amount)
	}
	if got := balanceOf(t, manager, owner); got.Cmp(big.NewInt(90_000)) != 0 {
		t.Fatalf("unexpected owner balance: %s", got)
	}
	claim, _ := engine.Claim(sender)
	if claim.Amount != 0 || claim.Timestamp != 0 {
		t.Fatalf("claim must be cleared after reclaim: %+v", claim)
	}
	if _, err := engine.ClaimExpiredShares(owner, sender, baseTime+61*day); !errors.Is(err, mailbox.ErrNoClaimableAmount) {
		t.Fatalf("expected no claimable amount on repeat, got %v", err)
	}
}

func TestClaimOwnerShare(t *testing.T) {
	engine, manager := newTestEngine(t)
	var owner, sender [20]byte
	owner[19] = 1
	sender[19] = 2
	initMailer(t, engine, owner)
	fund(t, manager, sender, 1_000_000)

	if _, err := engine.ClaimOwnerShare(owner); !errors.Is(err, mailbox.ErrNoClaimableAmount) {
		t.Fatalf("expected no claimable amount, got %v", err)
	}
	if err := engine.SendPriority(sender, "hi", "body", baseTime); err != nil {
		t.Fatalf("send: %v", err)
	}
	if _, err := engine.ClaimOwnerShare(sender); !errors.Is(err, mailbox.ErrOnlyOwner) {
		t.Fatalf("expected only owner, got %v", err)
	}
	amount, err := engine.ClaimOwnerShare(owner)
	if err != nil {
		t.Fatalf("owner claim: %v", err)
	}
	if amount != 10_000 {
		t.Fatalf("unexpected owner amount: %d", amount)
	}
	st, _ := engine.State()
	if st.OwnerClaimable != 0 {
		t.Fatalf("owner claimable not zeroed: %d", st.OwnerClaimable)
	}
	if got := balanceOf(t, manager, owner); got.Cmp(big.NewInt(10_000)) != 0 {
		t.Fatalf("unexpected owner balance: %s", got)
	}
}

func TestSetFeeOwnerGated(t *testing.T) {
	engine, manager := newTestEngine(t)
	var owner, outsider [20]byte
	owner[19] = 1
	outsider[19] = 2
	initMailer(t, engine, owner)

	if err := engine.SetFee(outsider, 1); !errors.Is(err, mailbox.ErrOnlyOwner) {
		t.Fatalf("expected only owner, got %v", err)
	}
	manager.ResetEvents()
	if err := engine.SetFee(owner, 1); err != nil {
		t.Fatalf("set fee: %v", err)
	}
	st, _ := engine.State()
	if st.SendFee != 1 {
		t.Fatalf("fee not updated: %d", st.SendFee)
	}
	evts := manager.Events()
	if len(evts) != 1 || evts[0].Type != events.TypeSendFeeUpdated {
		t.Fatalf("unexpected events: %v", eventTypes(manager))
	}
	if evts[0].Attributes["old"] != "100000" || evts[0].Attributes["new"] != "1" {
		t.Fatalf("unexpected fee update attributes: %v", evts[0].Attributes)
	}
}

func TestSendFeeOfOneFavorsSender(t *testing.T) {
	engine, manager := newTestEngine(t)
	var owner, sender [20]byte
	owner[19] = 1
	sender[19] = 2
	initMailer(t, engine, owner)
	fund(t, manager, sender, 10)
	if err := engine.SetFee(owner, 1); err != nil {
		t.Fatalf("set fee: %v", err)
	}

	if err := engine.SendPriority(sender, "s", "b", baseTime); err != nil {
		t.Fatalf("send: %v", err)
	}
	st, _ := engine.State()
	if st.OwnerClaimable != 0 {
		t.Fatalf("flooring must leave the owner part at zero, got %d", st.OwnerClaimable)
	}
	claim, _ := engine.Claim(sender)
	if claim.Amount != 1 {
		t.Fatalf("rounding dust must stay with the sender, got %d", claim.Amount)
	}
}

func TestZeroFeeSendPriority(t *testing.T) {
	engine, manager := newTestEngine(t)
	var owner, sender [20]byte
	owner[19] = 1
	sender[19] = 2
	initMailer(t, engine, owner)
	if err := engine.SetFee(owner, 0); err != nil {
		t.Fatalf("set fee: %v", err)
	}
	manager.ResetEvents()

	if err := engine.SendPriority(sender, "s", "b", baseTime); err != nil {
		t.Fatalf("zero-fee send must succeed: %v", err)
	}
	got := eventTypes(manager)
	if len(got) != 2 || got[0] != events.TypeMailSent || got[1] != events.TypeSharesRecorded {
		t.Fatalf("zero-fee send must still emit events: %v", got)
	}
	if _, err := engine.ClaimRecipientShare(sender, baseTime); !errors.Is(err, mailbox.ErrNoClaimableAmount) {
		t.Fatalf("expected no claimable amount, got %v", err)
	}
}

func TestSendPriorityInsufficientFunds(t *testing.T) {
	engine, manager := newTestEngine(t)
	var owner, sender [20]byte
	owner[19] = 1
	sender[19] = 2
	initMailer(t, engine, owner)
	fund(t, manager, sender, 99_999)

	if err := engine.SendPriority(sender, "hi", "body", baseTime); !errors.Is(err, mailbox.ErrInsufficientFunds) {
		t.Fatalf("expected insufficient funds, got %v", err)
	}
	if _, ok := engine.Claim(sender); ok {
		t.Fatalf("failed send must not create a claim")
	}
}

func TestOperationsRequireInitialization(t *testing.T) {
	engine, _ := newTestEngine(t)
	var caller [20]byte
	caller[19] = 1
	if err := engine.Send(caller, "s", "b"); !errors.Is(err, mailbox.ErrNotInitialized) {
		t.Fatalf("expected not initialized, got %v", err)
	}
	if _, err := engine.ClaimRecipientShare(caller, baseTime); !errors.Is(err, mailbox.ErrNotInitialized) {
		t.Fatalf("expected not initialized, got %v", err)
	}
}

func TestSolvencyInvariant(t *testing.T) {
	engine, manager := newTestEngine(t)
	var owner, alice, bob [20]byte
	owner[19] = 1
	alice[19] = 2
	bob[19] = 3
	initMailer(t, engine, owner)
	fund(t, manager, alice, 10_000_000)
	fund(t, manager, bob, 10_000_000)

	if err := engine.SendPriority(alice, "a", "1", baseTime); err != nil {
		t.Fatalf("send: %v", err)
	}
	if err := engine.SendPriority(bob, "b", "2", baseTime+day); err != nil {
		t.Fatalf("send: %v", err)
	}
	if err := engine.Send(alice, "c", "3"); err != nil {
		t.Fatalf("send: %v", err)
	}
	if _, err := engine.ClaimRecipientShare(alice, baseTime+2*day); err != nil {
		t.Fatalf("claim: %v", err)
	}

	st, _ := engine.State()
	liabilities := new(big.Int).SetUint64(st.OwnerClaimable)
	for _, sender := range [][20]byte{alice, bob} {
		if claim, ok := engine.Claim(sender); ok {
			liabilities.Add(liabilities, new(big.Int).SetUint64(claim.Amount))
		}
	}
	vault, err := manager.MailerVaultBalance()
	if err != nil {
		t.Fatalf("vault balance: %v", err)
	}
	if liabilities.Cmp(vault) > 0 {
		t.Fatalf("solvency violated: liabilities %s exceed custody %s", liabilities, vault)
	}
}
