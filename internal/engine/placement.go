package engine

import (
	"context"
	"time"

	"github.com/billygk/perpx/internal/market"
	"github.com/billygk/perpx/internal/models"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// placeAll runs the Placement Phase (spec §4.3): concurrently across
// accounts, serially within an account. A placement failure for one tier
// never aborts the account — every error is logged and swallowed, so the
// errgroup here is used purely for join ergonomics, not error
// propagation.
func placeAll(ctx context.Context, venue market.VenueClient, instr models.TradeInstruction, accounts []*AccountState, interTierPause time.Duration, log zerolog.Logger) {
	var g errgroup.Group

	for _, acc := range accounts {
		acc := acc
		g.Go(func() error {
			placeOne(ctx, venue, instr, acc, interTierPause, log)
			return nil
		})
	}
	_ = g.Wait()
	log.Info().Msg("all accounts placed orders")
}

func placeOne(ctx context.Context, venue market.VenueClient, instr models.TradeInstruction, acc *AccountState, interTierPause time.Duration, log zerolog.Logger) {
	log.Debug().Str("account", acc.Name).Msg("initializing account session")

	if err := venue.SetLeverage(ctx, acc.Creds, instr.Symbol, instr.Leverage); err != nil {
		log.Warn().Err(err).Str("account", acc.Name).Msg("set-leverage failed, continuing with placement")
	}

	side := string(instr.Side)
	for i := 0; i < models.TierCount; i++ {
		tier := i + 1
		clientOrderID := newClientOrderID(acc.Name, tier)

		req := models.PlaceOrderRequest{
			Symbol:      instr.Symbol,
			Side:        side,
			OrderType:   "Limit",
			Qty:         instr.Tiers[i].Qty.String(),
			Price:       instr.Tiers[i].LimitPrice.String(),
			TimeInForce: "GTC",
			OrderLinkID: clientOrderID,
			PositionIdx: 0,
		}

		if err := venue.PlaceOrder(ctx, acc.Creds, req); err != nil {
			log.Warn().Err(err).Str("account", acc.Name).Int("tier", tier).Msg("placement failed for tier, skipping")
			continue
		}
		acc.recordPlacement(clientOrderID, tier)
		log.Info().Str("account", acc.Name).Int("tier", tier).Str("client_order_id", clientOrderID).Msg("tier placed")

		if i < models.TierCount-1 {
			time.Sleep(interTierPause)
		}
	}
}
