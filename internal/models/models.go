package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Side is the direction of a trade instruction.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Opposite returns the side used to reduce-only close a position opened
// with this side.
func (s Side) Opposite() Side {
	if s == SideBuy {
		return SideSell
	}
	return SideBuy
}

// TierCount is the fixed number of laddered tiers per account.
const TierCount = 3

// Tier is one of the three laddered limit orders for an account.
type Tier struct {
	Qty        decimal.Decimal
	LimitPrice decimal.Decimal
}

// Protection is the take-profit / stop-loss pair attached to a tier once
// it fills.
type Protection struct {
	TakeProfit decimal.Decimal
	StopLoss   decimal.Decimal
}

// TradeInstruction is the immutable input to a Run.
type TradeInstruction struct {
	Symbol         string
	Side           Side
	Leverage       int
	Tiers          [TierCount]Tier
	Protections    [TierCount]Protection
	Demo           bool
	MaxWaitSeconds int
}

// Validate checks the structural invariants spec §3 requires. TP/SL
// side-consistency against Side is a warning-only precondition, not a
// rejection (spec §9) — it is checked separately in the engine, which logs
// a warning naming the offending tier.
func (t TradeInstruction) Validate() error {
	if t.Symbol == "" {
		return fmt.Errorf("symbol is required")
	}
	if t.Side != SideBuy && t.Side != SideSell {
		return fmt.Errorf("side must be BUY or SELL, got %q", t.Side)
	}
	if t.Leverage < 1 {
		return fmt.Errorf("leverage must be >= 1, got %d", t.Leverage)
	}
	for i, tier := range t.Tiers {
		if tier.Qty.Sign() <= 0 {
			return fmt.Errorf("tier %d: qty must be > 0", i+1)
		}
		if tier.LimitPrice.Sign() <= 0 {
			return fmt.Errorf("tier %d: limit_price must be > 0", i+1)
		}
	}
	if t.MaxWaitSeconds < 0 {
		return fmt.Errorf("max_wait_seconds must be >= 0, got %d", t.MaxWaitSeconds)
	}
	return nil
}

// Credentials is a single account's API key pair. Name is the stable
// identifier used throughout logs, maps, and the final summary.
type Credentials struct {
	Name      string `json:"-"`
	APIKey    string `json:"api_key"`
	APISecret string `json:"api_secret"`
}

// Summary is the per-account result returned when a Run completes,
// matching the return-value contract.
type Summary struct {
	Account    string   `json:"account"`
	Filled     []string `json:"filled"`
	Canceled   []string `json:"canceled"`
	Timeout    bool     `json:"timeout"`
	Done       bool     `json:"done"`
	UserCancel bool     `json:"user_cancel"`
}

// RunSummary is the full Run result, keyed by account name, plus metadata
// useful for archival (internal/storage).
type RunSummary struct {
	RunID      string             `json:"run_id"`
	StartedAt  time.Time          `json:"started_at"`
	FinishedAt time.Time          `json:"finished_at"`
	Accounts   map[string]Summary `json:"accounts"`
}
