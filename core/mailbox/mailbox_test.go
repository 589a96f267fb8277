package mailbox

import (
	"errors"
	"math"
	"testing"
)

func TestSplitFeeSumsToFee(t *testing.T) {
	for _, fee := range []uint64{0, 1, 9, 10, 11, 100_000, 123_456_789, math.MaxUint64} {
		ownerPart, senderPart := SplitFee(fee)
		if ownerPart+senderPart != fee {
			t.Fatalf("split of %d does not sum: %d + %d", fee, ownerPart, senderPart)
		}
		if want := fee / 10; ownerPart != want {
			t.Fatalf("owner part of %d = %d, want floor(%d/10) = %d", fee, ownerPart, fee, want)
		}
	}
}

func TestSplitFeeFavorsSender(t *testing.T) {
	ownerPart, senderPart := SplitFee(1)
	if ownerPart != 0 || senderPart != 1 {
		t.Fatalf("fee of 1 must leave the dust with the sender: %d/%d", ownerPart, senderPart)
	}
}

func TestAddU64Overflow(t *testing.T) {
	if _, err := AddU64(math.MaxUint64, 1); !errors.Is(err, ErrMathOverflow) {
		t.Fatalf("expected overflow, got %v", err)
	}
	sum, err := AddU64(math.MaxUint64-1, 1)
	if err != nil || sum != math.MaxUint64 {
		t.Fatalf("unexpected result: %d, %v", sum, err)
	}
}

func TestWindowOpenBoundary(t *testing.T) {
	ts := int64(1_700_000_000)
	if !WindowOpen(ts, ts+ClaimWindowSecs) {
		t.Fatalf("window must be open at the boundary instant")
	}
	if WindowOpen(ts, ts+ClaimWindowSecs+1) {
		t.Fatalf("window must be closed one second past the boundary")
	}
}
