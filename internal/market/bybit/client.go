// Package bybit implements market.VenueClient against a Bybit-shaped
// perpetual-futures API (spec §6): HMAC-signed requests, a "linear"
// category on every call, and a response envelope whose result payload
// shape has drifted across SDK/venue revisions. The Fill Detector's
// SDK-method-tolerance ladder (spec §4.4, §9) collapses here to one
// concrete endpoint per operation; only the response-shape normalizer
// survives as the compatibility seam.
package bybit

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/billygk/perpx/internal/market"
	"github.com/billygk/perpx/internal/models"
)

const category = "linear"

// Client is the concrete market.VenueClient implementation.
type Client struct {
	signer *Signer
	host   string
}

var _ market.VenueClient = (*Client)(nil)

// NewClient builds a Client bound to a Signer already configured for the
// Run's chosen host (demo or production).
func NewClient(signer *Signer, host string) *Client {
	return &Client{signer: signer, host: host}
}

// Close releases the underlying Signer's idle HTTP connections (spec
// §4.8 teardown).
func (c *Client) Close() {
	c.signer.Close()
}

func (c *Client) SetLeverage(ctx context.Context, creds models.Credentials, symbol string, leverage int) error {
	req := models.SetLeverageRequest{
		Category:     category,
		Symbol:       symbol,
		BuyLeverage:  fmt.Sprintf("%d", leverage),
		SellLeverage: fmt.Sprintf("%d", leverage),
	}
	resp, err := c.signer.doSigned(ctx, creds, http.MethodPost, "/v5/position/set-leverage", req)
	if err != nil {
		return err
	}
	if !resp.Success(false) {
		return fmt.Errorf("set-leverage retCode=%d retMsg=%q raw=%s", resp.RetCode, resp.RetMsg, resp.Raw())
	}
	return nil
}

func (c *Client) PlaceOrder(ctx context.Context, creds models.Credentials, req models.PlaceOrderRequest) error {
	req.Category = category
	resp, err := c.signer.doSigned(ctx, creds, http.MethodPost, "/v5/order/create", req)
	if err != nil {
		return err
	}
	if !resp.Success(false) {
		return fmt.Errorf("place-order retCode=%d retMsg=%q raw=%s", resp.RetCode, resp.RetMsg, resp.Raw())
	}
	return nil
}

func (c *Client) CancelOrder(ctx context.Context, creds models.Credentials, req models.CancelOrderRequest) error {
	req.Category = category
	resp, err := c.signer.doSigned(ctx, creds, http.MethodPost, "/v5/order/cancel", req)
	if err != nil {
		return err
	}
	if !resp.Success(false) {
		return fmt.Errorf("cancel-order retCode=%d retMsg=%q raw=%s", resp.RetCode, resp.RetMsg, resp.Raw())
	}
	return nil
}

// SetTradingStop returns alreadyCorrect=true when the venue reports
// retCode 34040 ("not modified" — idempotent re-application, spec §4.2,
// §4.5).
func (c *Client) SetTradingStop(ctx context.Context, creds models.Credentials, req models.SetTradingStopRequest) (bool, error) {
	req.Category = category
	resp, err := c.signer.doSigned(ctx, creds, http.MethodPost, "/v5/position/trading-stop", req)
	if err != nil {
		return false, err
	}
	if resp.RetCode == 34040 {
		return true, nil
	}
	if !resp.Success(true) {
		return false, fmt.Errorf("set-trading-stop retCode=%d retMsg=%q raw=%s", resp.RetCode, resp.RetMsg, resp.Raw())
	}
	return false, nil
}

func (c *Client) ListOpenOrders(ctx context.Context, creds models.Credentials, symbol string) ([]models.OrderRecord, error) {
	params := map[string]string{"category": category, "symbol": symbol}
	resp, err := c.signer.doSigned(ctx, creds, http.MethodGet, "/v5/order/realtime", params)
	if err != nil {
		return nil, err
	}
	if !resp.Success(false) {
		return nil, fmt.Errorf("list-open-orders retCode=%d retMsg=%q raw=%s", resp.RetCode, resp.RetMsg, resp.Raw())
	}
	return normalizeOrderList(resp.Result)
}

func (c *Client) OrderHistory(ctx context.Context, creds models.Credentials, symbol, clientOrderID string) ([]models.OrderRecord, error) {
	params := map[string]string{"category": category, "symbol": symbol, "orderLinkId": clientOrderID}
	resp, err := c.signer.doSigned(ctx, creds, http.MethodGet, "/v5/order/history", params)
	if err != nil {
		return nil, err
	}
	if !resp.Success(false) {
		return nil, fmt.Errorf("order-history retCode=%d retMsg=%q raw=%s", resp.RetCode, resp.RetMsg, resp.Raw())
	}
	return normalizeOrderList(resp.Result)
}

func (c *Client) ListPositions(ctx context.Context, creds models.Credentials, symbol string) ([]models.PositionRecord, error) {
	params := map[string]string{"category": category, "symbol": symbol}
	resp, err := c.signer.doSigned(ctx, creds, http.MethodGet, "/v5/position/list", params)
	if err != nil {
		return nil, err
	}
	if !resp.Success(false) {
		return nil, fmt.Errorf("list-positions retCode=%d retMsg=%q raw=%s", resp.RetCode, resp.RetMsg, resp.Raw())
	}

	items, err := normalizeRawList(resp.Result)
	if err != nil {
		return nil, err
	}
	out := make([]models.PositionRecord, 0, len(items))
	for _, item := range items {
		var rec models.PositionRecord
		if err := json.Unmarshal(item, &rec); err != nil {
			return nil, fmt.Errorf("decoding position record: %w", err)
		}
		out = append(out, rec)
	}
	return out, nil
}

// PublicTime calls the unsigned /v5/public/time endpoint, trying both the
// {result:{timeSecond,timeNano}} and {result:{timeNow}} response shapes
// (spec §4.1).
func (c *Client) PublicTime(ctx context.Context) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.host+"/v5/public/time", nil)
	if err != nil {
		return 0, err
	}
	httpResp, err := http.DefaultClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer httpResp.Body.Close()

	var resp struct {
		Result struct {
			TimeSecond string `json:"timeSecond"`
			TimeNano   string `json:"timeNano"`
			TimeNow    string `json:"timeNow"`
		} `json:"result"`
		Time int64 `json:"time"`
	}
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return 0, fmt.Errorf("decoding public time response: %w", err)
	}

	switch {
	case resp.Result.TimeSecond != "":
		var secs int64
		fmt.Sscanf(resp.Result.TimeSecond, "%d", &secs)
		return normalizeServerTime(secs), nil
	case resp.Result.TimeNow != "":
		var ms float64
		fmt.Sscanf(resp.Result.TimeNow, "%f", &ms)
		return normalizeServerTime(int64(ms * 1000)), nil
	case resp.Time != 0:
		return normalizeServerTime(resp.Time), nil
	default:
		return 0, fmt.Errorf("public time response had no recognizable shape")
	}
}

// normalizeOrderList decodes the result payload across the shapes spec
// §4.4 requires: {list:[...]}, {data:[...]}, or a bare array.
func normalizeOrderList(result json.RawMessage) ([]models.OrderRecord, error) {
	items, err := normalizeRawList(result)
	if err != nil {
		return nil, err
	}
	out := make([]models.OrderRecord, 0, len(items))
	for _, item := range items {
		var rec models.OrderRecord
		if err := json.Unmarshal(item, &rec); err != nil {
			return nil, fmt.Errorf("decoding order record: %w", err)
		}
		out = append(out, rec)
	}
	return out, nil
}

// normalizeRawList extracts the list of raw JSON items from whichever
// shape the result payload takes on: {list:[...]}, {data:[...]}, or a
// bare JSON array.
func normalizeRawList(result json.RawMessage) ([]json.RawMessage, error) {
	if len(result) == 0 {
		return nil, nil
	}

	var asArray []json.RawMessage
	if err := json.Unmarshal(result, &asArray); err == nil {
		return asArray, nil
	}

	var wrapped struct {
		List []json.RawMessage `json:"list"`
		Data []json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(result, &wrapped); err != nil {
		return nil, fmt.Errorf("unrecognized result shape: %w", err)
	}
	if wrapped.List != nil {
		return wrapped.List, nil
	}
	return wrapped.Data, nil
}
