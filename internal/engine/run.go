// Package engine implements the per-run trading state machine and
// concurrency engine: placement, fill detection, TP/SL attachment,
// position monitoring, and the top-level controller that drives teardown.
package engine

import (
	"context"
	"time"

	"github.com/billygk/perpx/internal/market"
	"github.com/billygk/perpx/internal/models"
	"github.com/rs/zerolog"
)

// CancelSignal is the cancellation capability threaded into a Run (spec
// §9's design note: "route cancellation through a capability passed into
// the Run, with stdin being one adapter"). internal/cancel provides stdin
// and Telegram-backed implementations.
type CancelSignal interface {
	Requested() bool
}

// Config carries the Run's tunable cadences, normally sourced from
// internal/config.
type Config struct {
	DetectorPollPeriod time.Duration
	MonitorPollPeriod  time.Duration
	ControllerTick     time.Duration
	InterTierPause     time.Duration
}

// Run owns everything described in spec §2 for one bounded execution of
// one TradeInstruction. It is safe to construct and call Execute multiple
// times in the same process (spec §5 "Reentrancy") — nothing here is a
// package-level variable.
type Run struct {
	ID          string
	Instruction models.TradeInstruction
	Venue       market.VenueClient
	Cancel      CancelSignal
	Config      Config
	Log         zerolog.Logger

	accounts []*AccountState
	stop     *stopSignal

	monitorsMu      chan struct{} // binary semaphore guarding monitorsStarted
	monitorsStarted map[string]bool
}

// NewRun constructs a Run. credentials order becomes the deterministic
// placement fan-out order.
func NewRun(id string, instr models.TradeInstruction, credentials []models.Credentials, venue market.VenueClient, cancelSignal CancelSignal, cfg Config, log zerolog.Logger) *Run {
	accounts := make([]*AccountState, 0, len(credentials))
	for _, creds := range credentials {
		accounts = append(accounts, newAccountState(creds))
	}

	sem := make(chan struct{}, 1)
	sem <- struct{}{}

	return &Run{
		ID:              id,
		Instruction:     instr,
		Venue:           venue,
		Cancel:          cancelSignal,
		Config:          cfg,
		Log:             log.With().Str("run_id", id).Logger(),
		accounts:        accounts,
		stop:            newStopSignal(),
		monitorsMu:      sem,
		monitorsStarted: make(map[string]bool),
	}
}

// Execute runs the full Run lifecycle to completion and returns the final
// per-account summaries (spec §6 "Return value"). It blocks until every
// account reaches done or the global stop fires.
func (r *Run) Execute(ctx context.Context) map[string]models.Summary {
	if err := r.Instruction.Validate(); err != nil {
		r.Log.Error().Err(err).Msg("trade instruction failed validation, aborting run")
		return r.summaries()
	}
	warnOnProtectionDirectionMismatch(r.Instruction, r.Log)

	placeAll(ctx, r.Venue, r.Instruction, r.accounts, r.Config.InterTierPause, r.Log)

	fillEvents := make(chan FillEvent, 64)

	go runDetector(ctx, r.Venue, r.Instruction.Symbol, r.accounts, fillEvents, r.stop, r.Config.DetectorPollPeriod, r.Log)
	go runTPSLWorker(ctx, r.Venue, r.Instruction, fillEvents, r.stop, r.startMonitorOnce(ctx), r.Log)

	r.controllerLoop(ctx)

	return r.summaries()
}

// startMonitorOnce returns a closure that starts exactly one Position
// Monitor goroutine per account, tolerating repeated calls (spec §4.5
// "Arming": "Multiple concurrent starts must be tolerated").
func (r *Run) startMonitorOnce(ctx context.Context) func(*AccountState) {
	return func(acc *AccountState) {
		<-r.monitorsMu
		alreadyStarted := r.monitorsStarted[acc.Name]
		if !alreadyStarted {
			r.monitorsStarted[acc.Name] = true
		}
		r.monitorsMu <- struct{}{}

		if alreadyStarted {
			return
		}
		go runPositionMonitor(ctx, r.Venue, r.Instruction, acc, r.stop, r.Config.MonitorPollPeriod, r.Log)
	}
}

func (r *Run) summaries() map[string]models.Summary {
	out := make(map[string]models.Summary, len(r.accounts))
	for _, acc := range r.accounts {
		out[acc.Name] = acc.summary()
	}
	return out
}

// warnOnProtectionDirectionMismatch implements the precondition check
// spec §9 permits ("Implementations may add a precondition check but MUST
// NOT silently reorder tp and sl"): a warning only, never a correction.
func warnOnProtectionDirectionMismatch(instr models.TradeInstruction, log zerolog.Logger) {
	for i, tier := range instr.Tiers {
		protection := instr.Protections[i]
		switch instr.Side {
		case models.SideBuy:
			if protection.TakeProfit.LessThanOrEqual(tier.LimitPrice) || protection.StopLoss.GreaterThanOrEqual(tier.LimitPrice) {
				log.Warn().Int("tier", i+1).Msg("take-profit/stop-loss on unexpected side of limit price for BUY, proceeding as instructed")
			}
		case models.SideSell:
			if protection.TakeProfit.GreaterThanOrEqual(tier.LimitPrice) || protection.StopLoss.LessThanOrEqual(tier.LimitPrice) {
				log.Warn().Int("tier", i+1).Msg("take-profit/stop-loss on unexpected side of limit price for SELL, proceeding as instructed")
			}
		}
	}
}
