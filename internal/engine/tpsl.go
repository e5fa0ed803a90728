package engine

import (
	"context"
	"time"

	"github.com/billygk/perpx/internal/market"
	"github.com/billygk/perpx/internal/models"
	"github.com/rs/zerolog"
)

// runTPSLWorker is the TP/SL Worker (spec §4.5): consumes FillEvents,
// attaches the tier's protection, and arms the Position Monitor. The
// channel receive times out at 1s so the worker observes stop promptly
// (spec §5). startMonitor must itself be idempotent: multiple concurrent
// arm events for the same account must tolerate multiple calls (spec
// §4.5 "Arming").
func runTPSLWorker(ctx context.Context, venue market.VenueClient, instr models.TradeInstruction, fillEvents <-chan FillEvent, stop *stopSignal, startMonitor func(*AccountState), log zerolog.Logger) {
	for !stop.isSet() {
		select {
		case ev, ok := <-fillEvents:
			if !ok {
				return
			}
			handleFill(ctx, venue, instr, ev, startMonitor, log)
		case <-time.After(1 * time.Second):
		}
	}
}

func handleFill(ctx context.Context, venue market.VenueClient, instr models.TradeInstruction, ev FillEvent, startMonitor func(*AccountState), log zerolog.Logger) {
	acc := ev.Account

	if !acc.tryMarkProcessed(ev.ClientOrderID) {
		return
	}

	tier, ok := acc.tierForID(ev.ClientOrderID)
	if !ok {
		log.Warn().Str("account", acc.Name).Str("client_order_id", ev.ClientOrderID).Msg("fill for unknown client order id, dropping")
		return
	}

	protection := instr.Protections[tier-1]
	req := models.SetTradingStopRequest{
		Symbol:      instr.Symbol,
		TakeProfit:  protection.TakeProfit.String(),
		StopLoss:    protection.StopLoss.String(),
		PositionIdx: 0,
	}

	alreadyCorrect, err := venue.SetTradingStop(ctx, acc.Creds, req)
	if err != nil {
		log.Warn().Err(err).Str("account", acc.Name).Int("tier", tier).Msg("set-trading-stop failed, tier not marked filled")
		return
	}
	if alreadyCorrect {
		log.Info().Str("account", acc.Name).Int("tier", tier).Msg("set-trading-stop already correct")
	}

	acc.recordFilledTier(tier)
	log.Info().Str("account", acc.Name).Int("tier", tier).Msg("tier armed with protection")

	startMonitor(acc)
}
