package bybit

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/billygk/perpx/internal/models"
	"github.com/rs/zerolog"
)

// Signer produces signed HTTPS requests for a given account's credentials
// and enforces the per-account 1 req/sec minimum spacing (spec §4.2). A
// Signer is constructed fresh per Run so its rate-limit map never carries
// stale timestamps across Run boundaries (spec §3, §9).
type Signer struct {
	host        string
	recvWindow  int64
	anchor      *TimeAnchor
	httpClient  *http.Client
	rateSpacing time.Duration
	log         zerolog.Logger

	mu       sync.Mutex
	lastSend map[string]time.Time
}

// NewSigner builds a Signer bound to one host (demo or production) for the
// lifetime of a single Run.
func NewSigner(host string, recvWindowMS int64, anchor *TimeAnchor, rateSpacing time.Duration, log zerolog.Logger) *Signer {
	return &Signer{
		host:        host,
		recvWindow:  recvWindowMS,
		anchor:      anchor,
		httpClient:  &http.Client{Timeout: 15 * time.Second},
		rateSpacing: rateSpacing,
		log:         log,
		lastSend:    make(map[string]time.Time),
	}
}

// Close releases the Signer's idle HTTP connections (spec §4.8 teardown).
func (s *Signer) Close() {
	s.httpClient.CloseIdleConnections()
}

// throttle blocks the caller, not the account map, until at least
// rateSpacing has elapsed since this account's last send. The lock is
// released across the sleep so other accounts are never blocked by one
// account's wait (spec §5 "Shared resources").
func (s *Signer) throttle(account string) {
	s.mu.Lock()
	next := time.Now()
	if last, ok := s.lastSend[account]; ok {
		if earliest := last.Add(s.rateSpacing); earliest.After(next) {
			next = earliest
		}
	}
	// Reserve the slot before sleeping so concurrent callers for the same
	// account queue behind it instead of reading the same timestamp.
	s.lastSend[account] = next
	s.mu.Unlock()

	if wait := time.Until(next); wait > 0 {
		time.Sleep(wait)
	}
}

// doSigned issues a signed HTTPS call. For POST, body is marshaled to
// compact JSON and sent as the request body (spec §4.2: "the exact bytes
// signed must equal the bytes sent"). For GET, body must be a
// map[string]string and is instead encoded as a sorted query string, which
// is what gets signed in its place — GET requests carry no body.
func (s *Signer) doSigned(ctx context.Context, creds models.Credentials, method, path string, body interface{}) (models.VenueResponse, error) {
	s.throttle(creds.Name)

	var signedPayload []byte
	var requestBody string
	var fullURL string
	var err error

	switch method {
	case http.MethodGet:
		params, _ := body.(map[string]string)
		qs := encodeSortedQuery(params)
		signedPayload = []byte(qs)
		fullURL = s.host + path
		if qs != "" {
			fullURL += "?" + qs
		}
	default:
		if body != nil {
			signedPayload, err = json.Marshal(body)
			if err != nil {
				return models.VenueResponse{}, fmt.Errorf("marshal request body: %w", err)
			}
		}
		requestBody = string(signedPayload)
		fullURL = s.host + path
	}

	ts := s.anchor.NowMS()
	sign := s.signature(creds.APISecret, ts, creds.APIKey, signedPayload)

	req, err := http.NewRequestWithContext(ctx, method, fullURL, strings.NewReader(requestBody))
	if err != nil {
		return models.VenueResponse{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("X-BAPI-API-KEY", creds.APIKey)
	req.Header.Set("X-BAPI-SIGN", sign)
	req.Header.Set("X-BAPI-SIGN-TYPE", "2")
	req.Header.Set("X-BAPI-TIMESTAMP", strconv.FormatInt(ts, 10))
	req.Header.Set("X-BAPI-RECV-WINDOW", strconv.FormatInt(s.recvWindow, 10))
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return models.VenueResponse{}, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return models.VenueResponse{}, fmt.Errorf("%s %s: reading response: %w", method, path, err)
	}

	var out models.VenueResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return models.VenueResponse{}, fmt.Errorf("%s %s: non-JSON response (http_status=%d): %s", method, path, resp.StatusCode, string(raw))
	}
	out.SetRaw(raw)
	return out, nil
}

// encodeSortedQuery builds a deterministic query string so the same
// parameter set always signs to the same bytes.
func encodeSortedQuery(params map[string]string) string {
	if len(params) == 0 {
		return ""
	}
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(params[k]))
	}
	return b.String()
}

// signature computes HMAC-SHA256(secret, ts ∥ apiKey ∥ recvWindow ∥ body),
// hex-lowercase (spec §4.2, §6).
func (s *Signer) signature(secret string, ts int64, apiKey string, body []byte) string {
	canonical := strconv.FormatInt(ts, 10) + apiKey + strconv.FormatInt(s.recvWindow, 10) + string(body)
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(canonical))
	return hex.EncodeToString(mac.Sum(nil))
}
