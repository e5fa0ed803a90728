package engine

import "github.com/billygk/perpx/internal/models"

// buildCancelRequest builds the /v5/order/cancel request body for a
// single resting order.
func buildCancelRequest(symbol, clientOrderID string) models.CancelOrderRequest {
	return models.CancelOrderRequest{
		Symbol:      symbol,
		OrderLinkID: clientOrderID,
	}
}
