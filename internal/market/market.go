// Package market defines the venue-facing contract the engine depends on.
// Concrete implementations live one level down (internal/market/bybit);
// this indirection lets the engine package stay fake-testable without a
// live venue.
package market

import (
	"context"

	"github.com/billygk/perpx/internal/models"
)

// VenueClient is the full set of signed/unsigned calls the engine issues
// against the perpetual-futures venue. One account's Credentials select
// which key signs each call; Category is always "linear" per spec §6.
type VenueClient interface {
	// SetLeverage sets both buy and sell leverage for a symbol ahead of
	// placement.
	SetLeverage(ctx context.Context, creds models.Credentials, symbol string, leverage int) error

	// PlaceOrder submits the single order req describes (a tier's limit
	// order or a reduce-only market close) and returns nil on success. Errors are always wrapped with enough context for the
	// caller to log per spec §7's visibility requirement.
	PlaceOrder(ctx context.Context, creds models.Credentials, req models.PlaceOrderRequest) error

	// CancelOrder cancels a single resting order by ClientOrderId.
	CancelOrder(ctx context.Context, creds models.Credentials, req models.CancelOrderRequest) error

	// SetTradingStop attaches take-profit/stop-loss to the account's open
	// position. Returns (alreadyCorrect, err): alreadyCorrect is true when
	// the venue reports retCode 34040.
	SetTradingStop(ctx context.Context, creds models.Credentials, req models.SetTradingStopRequest) (alreadyCorrect bool, err error)

	// ListOpenOrders returns every currently open order for the symbol.
	ListOpenOrders(ctx context.Context, creds models.Credentials, symbol string) ([]models.OrderRecord, error)

	// OrderHistory looks up a single order's historical record by
	// ClientOrderId, used by the Fill Detector's history-fallback probe.
	OrderHistory(ctx context.Context, creds models.Credentials, symbol, clientOrderID string) ([]models.OrderRecord, error)

	// ListPositions returns the account's open positions for the symbol.
	ListPositions(ctx context.Context, creds models.Credentials, symbol string) ([]models.PositionRecord, error)

	// PublicTime is the unsigned venue time endpoint, used by the Time
	// Anchor as a fallback authoritative clock source.
	PublicTime(ctx context.Context) (int64, error)
}
