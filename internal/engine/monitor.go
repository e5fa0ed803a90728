package engine

import (
	"context"
	"time"

	"github.com/billygk/perpx/internal/market"
	"github.com/billygk/perpx/internal/models"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

type monitorState int

const (
	waitingForAppear monitorState = iota
	observing
	closing
)

// runPositionMonitor is the Position Monitor (spec §4.6): one goroutine
// per armed account, walking WAITING_FOR_APPEAR -> OBSERVING -> CLOSING.
// Transient read errors are tolerated by retrying on the next tick; they
// never count as a close event.
func runPositionMonitor(ctx context.Context, venue market.VenueClient, instr models.TradeInstruction, acc *AccountState, stop *stopSignal, pollPeriod time.Duration, log zerolog.Logger) {
	state := waitingForAppear

	for !stop.isSet() {
		positions, err := venue.ListPositions(ctx, acc.Creds, instr.Symbol)
		if err != nil {
			log.Warn().Err(err).Str("account", acc.Name).Msg("list-positions failed, retrying next tick")
			sleepInSlices(pollPeriod, stop)
			continue
		}

		size := positionSize(positions)

		switch state {
		case waitingForAppear:
			if size.Sign() > 0 {
				state = observing
				log.Debug().Str("account", acc.Name).Msg("position appeared, observing")
			}
		case observing:
			if size.Sign() == 0 {
				state = closing
				log.Debug().Str("account", acc.Name).Msg("position closed, cleaning up")
			}
		case closing:
			closeAccount(ctx, venue, instr, acc, log)
			return
		}

		sleepInSlices(pollPeriod, stop)
	}
}

func positionSize(positions []models.PositionRecord) decimal.Decimal {
	total := decimal.Zero
	for _, p := range positions {
		total = total.Add(p.Size)
	}
	return total
}

// closeAccount cancels every still-pending tier and clears position_armed
// (spec §4.6 CLOSING).
func closeAccount(ctx context.Context, venue market.VenueClient, instr models.TradeInstruction, acc *AccountState, log zerolog.Logger) {
	ids := acc.snapshotAndClearPending()
	for _, id := range ids {
		req := buildCancelRequest(instr.Symbol, id)
		if err := venue.CancelOrder(ctx, acc.Creds, req); err != nil {
			log.Warn().Err(err).Str("account", acc.Name).Str("client_order_id", id).Msg("cancel-order failed during position close cleanup")
		}
	}
	acc.recordCanceled(ids...)
	acc.clearArmed()
}
