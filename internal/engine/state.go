package engine

import (
	"sync"
	"time"

	"github.com/billygk/perpx/internal/models"
)

// AccountState is the per-account, per-Run record spec §3 defines. All
// mutation happens under the account's own lock rather than exported
// fields, so the at-most-once processed_fills guard (spec §5) can never be
// bypassed by a caller reaching in directly.
type AccountState struct {
	Name  string
	Creds models.Credentials

	mu sync.Mutex

	placed        []string       // ordered ClientOrderId, tier order as accepted
	linkToTier    map[string]int // ClientOrderId -> tier index
	pending       map[string]bool
	processedFill map[string]bool
	filledTiers   []int
	canceled      []string

	positionArmed bool
	placedAt      time.Time

	done       bool
	timeout    bool
	userCancel bool
}

// newAccountState constructs a fresh AccountState for a Run start.
func newAccountState(creds models.Credentials) *AccountState {
	return &AccountState{
		Name:          creds.Name,
		Creds:         creds,
		linkToTier:    make(map[string]int),
		pending:       make(map[string]bool),
		processedFill: make(map[string]bool),
		placedAt:      time.Now(),
	}
}

// recordPlacement records a successfully placed tier order (spec §4.3).
func (a *AccountState) recordPlacement(clientOrderID string, tier int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.placed = append(a.placed, clientOrderID)
	a.linkToTier[clientOrderID] = tier
	a.pending[clientOrderID] = true
}

// pendingSnapshot returns a copy of the pending set's keys, safe to range
// over without holding the lock.
func (a *AccountState) pendingSnapshot() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]string, 0, len(a.pending))
	for id := range a.pending {
		out = append(out, id)
	}
	return out
}

func (a *AccountState) hasPending() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.pending) > 0
}

// tierForID returns the tier index for a ClientOrderId, and whether it is
// known to this account at all.
func (a *AccountState) tierForID(clientOrderID string) (int, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	tier, ok := a.linkToTier[clientOrderID]
	return tier, ok
}

// markTerminal removes a ClientOrderId from pending if it is still
// present, reporting whether it actually did so (so callers only emit one
// FillEvent per transition).
func (a *AccountState) markTerminal(clientOrderID string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.pending[clientOrderID] {
		return false
	}
	delete(a.pending, clientOrderID)
	return true
}

// tryMarkProcessed is the at-most-once guard (spec §4.5, §5): returns true
// only the first time it is called for a given ClientOrderId.
func (a *AccountState) tryMarkProcessed(clientOrderID string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.processedFill[clientOrderID] {
		return false
	}
	a.processedFill[clientOrderID] = true
	return true
}

// recordFilledTier appends a tier to filledTiers if not already present,
// and arms the position (spec §4.5).
func (a *AccountState) recordFilledTier(tier int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, t := range a.filledTiers {
		if t == tier {
			return
		}
	}
	a.filledTiers = append(a.filledTiers, tier)
	a.positionArmed = true
}

func (a *AccountState) isArmed() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.positionArmed
}

func (a *AccountState) clearArmed() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.positionArmed = false
}

// snapshotAndClearPending atomically takes every remaining pending id and
// empties the set, used by cancellation paths (spec §4.6 CLOSING, §4.7).
func (a *AccountState) snapshotAndClearPending() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]string, 0, len(a.pending))
	for id := range a.pending {
		out = append(out, id)
	}
	a.pending = make(map[string]bool)
	return out
}

// recordCanceled appends to canceled, skipping ids already present (spec
// §8 invariant: "each ClientOrderId appears at most once in canceled").
func (a *AccountState) recordCanceled(ids ...string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	seen := make(map[string]bool, len(a.canceled))
	for _, id := range a.canceled {
		seen[id] = true
	}
	for _, id := range ids {
		if !seen[id] {
			a.canceled = append(a.canceled, id)
			seen[id] = true
		}
	}
}

func (a *AccountState) isDone() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.done
}

func (a *AccountState) markDoneTimeout() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.timeout = true
	a.done = true
}

func (a *AccountState) markDoneUserCancel() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.userCancel = true
	a.done = true
}

func (a *AccountState) markDoneComplete() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.done = true
}

func (a *AccountState) placedAtWallclock() time.Time {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.placedAt
}

// summary builds the spec §6 return-value shape for this account. Tier
// labels are emitted in filled order, not tier order (spec §5 ordering
// guarantees).
func (a *AccountState) summary() models.Summary {
	a.mu.Lock()
	defer a.mu.Unlock()

	filled := make([]string, 0, len(a.filledTiers))
	for _, tier := range a.filledTiers {
		filled = append(filled, tierLabel(tier))
	}
	canceled := append([]string(nil), a.canceled...)

	return models.Summary{
		Account:    a.Name,
		Filled:     filled,
		Canceled:   canceled,
		Timeout:    a.timeout,
		Done:       a.done,
		UserCancel: a.userCancel,
	}
}

func tierLabel(tier int) string {
	switch tier {
	case 1:
		return "Limit1"
	case 2:
		return "Limit2"
	case 3:
		return "Limit3"
	default:
		return "Limit?"
	}
}

// FillEvent is produced by the Fill Detector and consumed by the TP/SL
// Worker (spec §3). Delivery is at-least-once; tryMarkProcessed on the
// account enforces at-most-once effect.
type FillEvent struct {
	Account       *AccountState
	ClientOrderID string
}
