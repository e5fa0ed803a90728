package models

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// OrderRecord is the venue's shape for an order, as returned by the
// open-orders and order-history endpoints. Not every field is populated by
// every endpoint; only OrderLinkID and OrderStatus are load-bearing for the
// Fill Detector.
type OrderRecord struct {
	OrderID     string          `json:"orderId"`
	OrderLinkID string          `json:"orderLinkId"`
	Symbol      string          `json:"symbol"`
	Side        string          `json:"side"`
	OrderType   string          `json:"orderType"`
	Qty         decimal.Decimal `json:"qty"`
	Price       decimal.Decimal `json:"price"`
	OrderStatus string          `json:"orderStatus"`
}

// IsTerminalFill reports whether OrderStatus (case-insensitive) indicates
// the order has fully filled.
func (o OrderRecord) IsTerminalFill() bool {
	switch asciiLower(o.OrderStatus) {
	case "filled", "complete", "closed":
		return true
	default:
		return false
	}
}

func asciiLower(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}

// PositionRecord is the venue's shape for an open position.
type PositionRecord struct {
	Symbol   string          `json:"symbol"`
	Side     string          `json:"side"`
	Size     decimal.Decimal `json:"size"`
	PosIdx   int             `json:"positionIdx"`
	EntryAvg decimal.Decimal `json:"avgPrice"`
}

// PlaceOrderRequest is the request body for /v5/order/create.
type PlaceOrderRequest struct {
	Category    string `json:"category"`
	Symbol      string `json:"symbol"`
	Side        string `json:"side"`
	OrderType   string `json:"orderType"`
	Qty         string `json:"qty"`
	Price       string `json:"price,omitempty"`
	TimeInForce string `json:"timeInForce"`
	OrderLinkID string `json:"orderLinkId"`
	ReduceOnly  bool   `json:"reduceOnly,omitempty"`
	PositionIdx int    `json:"positionIdx"`
}

// CancelOrderRequest is the request body for /v5/order/cancel.
type CancelOrderRequest struct {
	Category    string `json:"category"`
	Symbol      string `json:"symbol"`
	OrderLinkID string `json:"orderLinkId"`
}

// SetTradingStopRequest is the request body for /v5/position/trading-stop.
type SetTradingStopRequest struct {
	Category    string `json:"category"`
	Symbol      string `json:"symbol"`
	TakeProfit  string `json:"takeProfit"`
	StopLoss    string `json:"stopLoss"`
	PositionIdx int    `json:"positionIdx"`
}

// SetLeverageRequest is the request body for /v5/position/set-leverage.
type SetLeverageRequest struct {
	Category     string `json:"category"`
	Symbol       string `json:"symbol"`
	BuyLeverage  string `json:"buyLeverage"`
	SellLeverage string `json:"sellLeverage"`
}

// VenueResponse is the common envelope every signed endpoint returns.
// Result is left as json.RawMessage because its shape varies across
// endpoints and across SDK/venue revisions (list vs data vs bare array);
// normalization happens in internal/market/bybit.
type VenueResponse struct {
	RetCode int             `json:"retCode"`
	RetMsg  string          `json:"retMsg"`
	Result  json.RawMessage `json:"result"`
	Time    int64           `json:"time"`
	raw     []byte
}

// SetRaw stashes the full raw response body for error logging (spec §7:
// "raw response dictionary").
func (v *VenueResponse) SetRaw(b []byte) { v.raw = b }

// Raw returns the full raw response body, used when logging a failed call.
func (v VenueResponse) Raw() string { return string(v.raw) }

// Success reports whether the response satisfies the venue's success
// predicate: retCode == 0, or 34040 ("not modified") specifically for
// set-trading-stop calls.
func (v VenueResponse) Success(allow34040 bool) bool {
	if v.RetCode == 0 {
		return true
	}
	return allow34040 && v.RetCode == 34040
}
