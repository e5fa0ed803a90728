package engine

import (
	"testing"

	"github.com/billygk/perpx/internal/models"
)

func newTestAccount(t *testing.T) *AccountState {
	t.Helper()
	return newAccountState(models.Credentials{Name: "acc1", APIKey: "k", APISecret: "s"})
}

func TestAccountState_RecordPlacementTracksPending(t *testing.T) {
	acc := newTestAccount(t)
	acc.recordPlacement("acc1_limit1_aaaa", 1)
	acc.recordPlacement("acc1_limit2_bbbb", 2)

	if !acc.hasPending() {
		t.Fatal("expected pending orders after placement")
	}
	tier, ok := acc.tierForID("acc1_limit1_aaaa")
	if !ok || tier != 1 {
		t.Errorf("expected tier 1 for acc1_limit1_aaaa, got tier=%d ok=%v", tier, ok)
	}
}

func TestAccountState_MarkTerminal_OnlyOnce(t *testing.T) {
	acc := newTestAccount(t)
	acc.recordPlacement("acc1_limit1_aaaa", 1)

	if !acc.markTerminal("acc1_limit1_aaaa") {
		t.Fatal("expected first markTerminal to succeed")
	}
	if acc.markTerminal("acc1_limit1_aaaa") {
		t.Error("expected second markTerminal for the same id to report false")
	}
	if acc.hasPending() {
		t.Error("expected pending to be empty after markTerminal")
	}
}

func TestAccountState_TryMarkProcessed_AtMostOnce(t *testing.T) {
	acc := newTestAccount(t)

	if !acc.tryMarkProcessed("acc1_limit1_aaaa") {
		t.Fatal("expected first tryMarkProcessed to succeed")
	}
	if acc.tryMarkProcessed("acc1_limit1_aaaa") {
		t.Error("expected repeat tryMarkProcessed for the same id to report false")
	}
}

func TestAccountState_RecordFilledTier_Idempotent(t *testing.T) {
	acc := newTestAccount(t)
	acc.recordFilledTier(1)
	acc.recordFilledTier(1)
	acc.recordFilledTier(2)

	summary := acc.summary()
	if len(summary.Filled) != 2 {
		t.Fatalf("expected 2 distinct filled tiers, got %d (%v)", len(summary.Filled), summary.Filled)
	}
	if !acc.isArmed() {
		t.Error("expected position to be armed after a recorded fill")
	}
}

func TestAccountState_RecordCanceled_Dedupes(t *testing.T) {
	acc := newTestAccount(t)
	acc.recordCanceled("id1", "id2")
	acc.recordCanceled("id1", "id3")

	s := acc.summary()
	if len(s.Canceled) != 3 {
		t.Fatalf("expected 3 distinct canceled ids, got %d (%v)", len(s.Canceled), s.Canceled)
	}
}

func TestAccountState_SnapshotAndClearPending_Empties(t *testing.T) {
	acc := newTestAccount(t)
	acc.recordPlacement("a", 1)
	acc.recordPlacement("b", 2)

	ids := acc.snapshotAndClearPending()
	if len(ids) != 2 {
		t.Fatalf("expected 2 ids in snapshot, got %d", len(ids))
	}
	if acc.hasPending() {
		t.Error("expected pending to be empty after snapshotAndClearPending")
	}
}

func TestAccountState_Summary_FilledOrderMatchesFillOrder(t *testing.T) {
	acc := newTestAccount(t)
	acc.recordFilledTier(3)
	acc.recordFilledTier(1)

	s := acc.summary()
	if len(s.Filled) != 2 || s.Filled[0] != "Limit3" || s.Filled[1] != "Limit1" {
		t.Errorf("expected filled order [Limit3 Limit1], got %v", s.Filled)
	}
}

func TestTierLabel(t *testing.T) {
	cases := map[int]string{1: "Limit1", 2: "Limit2", 3: "Limit3", 9: "Limit?"}
	for tier, want := range cases {
		if got := tierLabel(tier); got != want {
			t.Errorf("tierLabel(%d) = %q, want %q", tier, got, want)
		}
	}
}
