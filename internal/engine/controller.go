package engine

import (
	"context"
	"time"

	"github.com/billygk/perpx/internal/models"
	"github.com/shopspring/decimal"
)

// controllerLoop is the Controller (spec §4.7): the top-level supervisor
// that, for each account not yet done, evaluates cancel_requested, then
// timeout, then empty-pending completion. It sleeps ~1s in 100ms slices
// between passes and signals global stop once every account is done.
func (r *Run) controllerLoop(ctx context.Context) {
	for {
		allDone := true

		for _, acc := range r.accounts {
			if acc.isDone() {
				continue
			}

			switch {
			case r.Cancel != nil && r.Cancel.Requested():
				r.handleUserCancel(ctx, acc)
			case time.Since(acc.placedAtWallclock()) > time.Duration(r.Instruction.MaxWaitSeconds)*time.Second:
				r.handleTimeout(ctx, acc)
			case !acc.hasPending() && !acc.isArmed():
				acc.markDoneComplete()
			default:
				allDone = false
			}
		}

		if allDone {
			r.teardown()
			return
		}

		sleepInSlices(r.Config.ControllerTick, r.stop)
		if r.stop.isSet() {
			return
		}
	}
}

// handleUserCancel cancels every still-pending order and force-closes any
// open position with a reduce-only market order (spec §4.7).
func (r *Run) handleUserCancel(ctx context.Context, acc *AccountState) {
	ids := acc.snapshotAndClearPending()
	for _, id := range ids {
		if err := r.Venue.CancelOrder(ctx, acc.Creds, buildCancelRequest(r.Instruction.Symbol, id)); err != nil {
			r.Log.Warn().Err(err).Str("account", acc.Name).Str("client_order_id", id).Msg("cancel-order failed during user-cancel")
		}
	}
	acc.recordCanceled(ids...)

	positions, err := r.Venue.ListPositions(ctx, acc.Creds, r.Instruction.Symbol)
	if err != nil {
		r.Log.Warn().Err(err).Str("account", acc.Name).Msg("list-positions failed during user-cancel, position may remain open")
	} else {
		for _, pos := range positions {
			if pos.Size.Sign() <= 0 {
				continue
			}
			r.marketCloseReduceOnly(ctx, acc, pos.Size)
		}
	}

	acc.clearArmed()
	acc.markDoneUserCancel()
	r.stop.set()
	r.Log.Info().Str("account", acc.Name).Msg("user-cancel processed")
}

func (r *Run) marketCloseReduceOnly(ctx context.Context, acc *AccountState, size decimal.Decimal) {
	req := models.PlaceOrderRequest{
		Symbol:      r.Instruction.Symbol,
		Side:        string(r.Instruction.Side.Opposite()),
		OrderType:   "Market",
		Qty:         size.String(),
		TimeInForce: "GTC",
		OrderLinkID: newCloseOrderID(acc.Name),
		ReduceOnly:  true,
		PositionIdx: 0,
	}
	if err := r.Venue.PlaceOrder(ctx, acc.Creds, req); err != nil {
		r.Log.Error().Err(err).Str("account", acc.Name).Msg("reduce-only market close failed")
	}
}

// handleTimeout cancels resting orders only — it does NOT force-close
// existing positions. This is the asymmetry flagged and preserved as
// specified in spec §9: a filled tier with TP/SL attached continues to be
// managed by the Position Monitor after timeout.
func (r *Run) handleTimeout(ctx context.Context, acc *AccountState) {
	ids := acc.snapshotAndClearPending()
	for _, id := range ids {
		if err := r.Venue.CancelOrder(ctx, acc.Creds, buildCancelRequest(r.Instruction.Symbol, id)); err != nil {
			r.Log.Warn().Err(err).Str("account", acc.Name).Str("client_order_id", id).Msg("cancel-order failed during timeout")
		}
	}
	acc.recordCanceled(ids...)
	acc.markDoneTimeout()
	r.Log.Info().Str("account", acc.Name).Msg("timeout processed, resting orders canceled")
}

// teardown implements spec §4.8: signal global stop, join workers with a
// bounded wait (the goroutines here are not explicitly joined with a
// WaitGroup — they all observe stop within one poll period, so a short
// grace sleep stands in for a bounded join), and release the Run's HTTP
// connections.
func (r *Run) teardown() {
	r.stop.set()
	time.Sleep(200 * time.Millisecond)
	if closer, ok := r.Venue.(interface{ Close() }); ok {
		closer.Close()
	}
	r.Log.Info().Msg("run complete, teardown finished")
}
