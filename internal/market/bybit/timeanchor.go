package bybit

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// TimeAnchor resolves a trusted wall-clock offset once per Run and hands
// out offset-adjusted timestamps to every Signer. The offset is a plain
// struct field rather than a process-global patch (spec §9's design note
// on the source's exception-as-control-flow clock patch).
type TimeAnchor struct {
	offsetMS int64
	log      zerolog.Logger
}

// PublicTimeFunc fetches the venue's unsigned public-time endpoint; it is
// the Time Anchor's fallback source. Satisfied by bybit.Client.PublicTime.
type PublicTimeFunc func(ctx context.Context) (int64, error)

// NewTimeAnchor resolves the offset against, in order: the configured list
// of authoritative time servers (first success wins), then the venue's
// public-time endpoint. All sources failing leaves offset at 0 with a
// warning logged (spec §4.1) — the Run proceeds regardless.
func NewTimeAnchor(ctx context.Context, servers []string, publicTime PublicTimeFunc, log zerolog.Logger) *TimeAnchor {
	anchor := &TimeAnchor{log: log}

	for _, server := range servers {
		if offset, ok := anchor.tryAuthoritative(ctx, server); ok {
			anchor.offsetMS = offset
			log.Debug().Str("server", server).Int64("offset_ms", offset).Msg("time anchor resolved from authoritative server")
			return anchor
		}
	}

	if publicTime != nil {
		if serverMS, err := publicTime(ctx); err == nil {
			anchor.offsetMS = serverMS - time.Now().UnixMilli()
			log.Debug().Int64("offset_ms", anchor.offsetMS).Msg("time anchor resolved from venue public time")
			return anchor
		} else {
			log.Warn().Err(err).Msg("venue public time fallback failed")
		}
	}

	log.Warn().Msg("no time source available, time anchor offset defaults to 0")
	return anchor
}

func (a *TimeAnchor) tryAuthoritative(ctx context.Context, server string) (int64, bool) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, server, nil)
	if err != nil {
		return 0, false
	}
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return 0, false
	}
	defer resp.Body.Close()

	dateHeader := resp.Header.Get("Date")
	if dateHeader == "" {
		return 0, false
	}
	t, err := http.ParseTime(dateHeader)
	if err != nil {
		return 0, false
	}
	return t.UnixMilli() - time.Now().UnixMilli(), true
}

// NowMS returns the Run's offset-adjusted wall clock in milliseconds.
func (a *TimeAnchor) NowMS() int64 {
	return time.Now().UnixMilli() + a.offsetMS
}

// OffsetMS returns the resolved offset, used by callers that want to warn
// when it exceeds the receive window (spec §4.1).
func (a *TimeAnchor) OffsetMS() int64 {
	return a.offsetMS
}

// normalizeServerTime converts a venue-reported timestamp to milliseconds.
// Values below 10^12 are assumed to be seconds (spec §4.1).
func normalizeServerTime(v int64) int64 {
	if v < 1_000_000_000_000 {
		return v * 1000
	}
	return v
}
