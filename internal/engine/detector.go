package engine

import (
	"context"
	"time"

	"github.com/billygk/perpx/internal/market"
	"github.com/rs/zerolog"
)

// runDetector is the Fill Detector (spec §4.4): a single shared goroutine
// that round-robins every account with a non-empty pending set, checking
// the open-orders view first and falling back to order-history for ids
// that go missing without ever being seen in a terminal status.
func runDetector(ctx context.Context, venue market.VenueClient, symbol string, accounts []*AccountState, fillEvents chan<- FillEvent, stop *stopSignal, pollPeriod time.Duration, log zerolog.Logger) {
	for !stop.isSet() {
		for _, acc := range accounts {
			if stop.isSet() {
				return
			}
			if !acc.hasPending() {
				continue
			}
			scanAccount(ctx, venue, symbol, acc, fillEvents, log)
		}
		sleepInSlices(pollPeriod, stop)
	}
}

func scanAccount(ctx context.Context, venue market.VenueClient, symbol string, acc *AccountState, fillEvents chan<- FillEvent, log zerolog.Logger) {
	seenInOpenOrders := make(map[string]bool)

	openOrders, err := venue.ListOpenOrders(ctx, acc.Creds, symbol)
	if err != nil {
		log.Warn().Err(err).Str("account", acc.Name).Msg("list-open-orders failed, will retry next tick")
	} else {
		for _, rec := range openOrders {
			if _, known := acc.tierForID(rec.OrderLinkID); !known {
				continue
			}
			seenInOpenOrders[rec.OrderLinkID] = true
			if rec.IsTerminalFill() {
				emitFill(acc, rec.OrderLinkID, fillEvents, log)
			}
		}
	}

	for _, id := range acc.pendingSnapshot() {
		if seenInOpenOrders[id] {
			continue
		}
		history, err := venue.OrderHistory(ctx, acc.Creds, symbol, id)
		if err != nil {
			log.Warn().Err(err).Str("account", acc.Name).Str("client_order_id", id).Msg("order-history lookup failed, will retry next tick")
			continue
		}
		for _, rec := range history {
			if rec.OrderLinkID == id && rec.IsTerminalFill() {
				emitFill(acc, id, fillEvents, log)
				break
			}
		}
	}
}

// emitFill removes the id from pending and emits a FillEvent exactly once
// per terminal transition (spec §4.4 step 2/3). markTerminal lets only the
// first of the open-orders and history branches emit for a given id; the
// TP/SL worker's processed_fills guard (spec §5) is a second check on top.
func emitFill(acc *AccountState, clientOrderID string, fillEvents chan<- FillEvent, log zerolog.Logger) {
	if !acc.markTerminal(clientOrderID) {
		return
	}
	log.Info().Str("account", acc.Name).Str("client_order_id", clientOrderID).Msg("fill detected")
	fillEvents <- FillEvent{Account: acc, ClientOrderID: clientOrderID}
}
