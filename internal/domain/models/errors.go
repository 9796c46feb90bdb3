package models

import (
	"errors"
	"fmt"
)

// GatewayReason classifies a gateway failure.
type GatewayReason string

const (
	ReasonBackfillFailed  GatewayReason = "backfill_failed"
	ReasonSubscribeFailed GatewayReason = "subscribe_failed"
	ReasonStreamClosed    GatewayReason = "stream_closed"
)

// GatewayError reports a subscription, backfill or stream failure.
// These are retryable from the caller's point of view.
type GatewayError struct {
	Reason    GatewayReason
	Symbol    string
	Timeframe string
	Err       error
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("gateway %s %s/%s: %v", e.Reason, e.Symbol, e.Timeframe, e.Err)
}

func (e *GatewayError) Unwrap() error { return e.Err }

// NewGatewayError wraps err with gateway context.
func NewGatewayError(reason GatewayReason, symbol, timeframe string, err error) *GatewayError {
	return &GatewayError{Reason: reason, Symbol: symbol, Timeframe: timeframe, Err: err}
}

var (
	// ErrInsufficientData means the buffer is too short for the requested
	// computation. Not retryable; the caller must wait for more candles.
	ErrInsufficientData = errors.New("insufficient candle data")

	// ErrRateLimited is returned by the upstream client when the exchange
	// throttles us and bounded retries were exhausted.
	ErrRateLimited = errors.New("upstream rate limited")

	// ErrAllTimeframesFailed means no timeframe produced a usable signal,
	// so consensus is impossible.
	ErrAllTimeframesFailed = errors.New("all timeframes failed")

	// ErrSettingsUnavailable marks a settings read failure. It is always
	// recovered locally by falling back to defaults and never surfaced.
	ErrSettingsUnavailable = errors.New("settings unavailable")
)
