package repository

import (
	"context"

	"coinsight/internal/domain/models"
)

// HistoryProvider fetches historical candles over REST, used for backfill
// and as the one-shot fallback when a read hits a cold cache.
type HistoryProvider interface {
	Klines(ctx context.Context, symbol string, tf Timeframe, limit int) ([]models.Candle, error)
	Ticker24h(ctx context.Context, symbol string) (models.Ticker, error)
}

// CandleStream is one live per-key subscription. Updates stops when the
// stream dies; Err then yields the terminal error. Close is idempotent.
type CandleStream interface {
	Updates() <-chan models.CandleUpdate
	Err() <-chan error
	Close() error
}

// TickerStream is one live per-symbol ticker subscription.
type TickerStream interface {
	Updates() <-chan models.Ticker
	Err() <-chan error
	Close() error
}

// StreamDialer opens live exchange subscriptions.
type StreamDialer interface {
	DialCandles(ctx context.Context, symbol string, tf Timeframe) (CandleStream, error)
	DialTicker(ctx context.Context, symbol string) (TickerStream, error)
}

// SignalSink is the append-only persistence collaborator for signal history.
type SignalSink interface {
	Append(ctx context.Context, rec models.SignalRecord) error
	Recent(ctx context.Context, symbol string, limit int) ([]models.SignalRecord, error)
}

// RuleStore owns alert rule persistence. The alert engine only ever reads
// a snapshot of active rules per evaluation.
type RuleStore interface {
	ListActive(ctx context.Context) ([]models.AlertRule, error)
	List(ctx context.Context) ([]models.AlertRule, error)
	Get(ctx context.Context, id int64) (models.AlertRule, error)
	Put(ctx context.Context, rule models.AlertRule) (models.AlertRule, error)
	Delete(ctx context.Context, id int64) error
}

// Broadcaster is the fire-and-forget real-time sink for dashboard updates.
type Broadcaster interface {
	SignalUpdate(ctx context.Context, ev models.SignalUpdate)
	Notification(ctx context.Context, n models.Notification)
}

// Metrics records operational measurements.
type Metrics interface {
	RecordSignal(symbol string, action models.Action)
	RecordError(kind string)
	RecordLastPrice(symbol string, price float64)
	RecordLatency(op string, seconds float64)
	RecordBufferDepth(key string, depth int)
	RecordReconnect(key string)
	RecordNotification(priority string)
}
