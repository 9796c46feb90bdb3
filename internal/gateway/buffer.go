package gateway

import (
	"sync"
	"time"

	"coinsight/internal/domain/models"
)

// DefaultBufferCap is the rolling window kept per (symbol, timeframe).
const DefaultBufferCap = 75

// Buffer is a bounded, ordered candle window for one (symbol, timeframe)
// key. Eviction is FIFO; only the last element is ever mutated after
// insertion, and only while its period is still open. Safe for concurrent
// use: the owning stream writes, arbitrary callers read snapshots.
type Buffer struct {
	mu         sync.RWMutex
	capacity   int
	candles    []models.Candle
	lastClosed time.Time // open time of the newest closed candle
}

// NewBuffer creates a buffer with the given capacity (DefaultBufferCap
// when n <= 0).
func NewBuffer(n int) *Buffer {
	if n <= 0 {
		n = DefaultBufferCap
	}
	return &Buffer{capacity: n, candles: make([]models.Candle, 0, n)}
}

// Seed replaces the buffer content with a backfill window, trimming to
// capacity. All bars except the newest are treated as closed.
func (b *Buffer) Seed(candles []models.Candle) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(candles) > b.capacity {
		candles = candles[len(candles)-b.capacity:]
	}
	b.candles = append(b.candles[:0], candles...)
	if len(b.candles) >= 2 {
		b.lastClosed = b.candles[len(b.candles)-2].OpenTime
	}
}

// Apply merges one live update. Open updates replace the forming bar in
// place; closed updates finalize it (or append a new bar) and evict the
// oldest bar past capacity. Updates for periods already closed are
// ignored so closed bars stay immutable.
func (b *Buffer) Apply(u models.CandleUpdate) {
	b.mu.Lock()
	defer b.mu.Unlock()

	c := u.Candle
	if !b.lastClosed.IsZero() && !c.OpenTime.After(b.lastClosed) {
		return
	}

	n := len(b.candles)
	if !u.Closed {
		switch {
		case n == 0:
			b.candles = append(b.candles, c)
		case b.candles[n-1].OpenTime.Equal(c.OpenTime):
			b.candles[n-1] = c
		case c.OpenTime.After(b.candles[n-1].OpenTime):
			b.candles = append(b.candles, c)
		}
		// out-of-order open updates for older periods are dropped
	} else {
		if n > 0 && b.candles[n-1].OpenTime.Equal(c.OpenTime) {
			b.candles[n-1] = c
		} else if n == 0 || c.OpenTime.After(b.candles[n-1].OpenTime) {
			b.candles = append(b.candles, c)
		} else {
			return
		}
		b.lastClosed = c.OpenTime
	}

	if len(b.candles) > b.capacity {
		b.candles = b.candles[len(b.candles)-b.capacity:]
	}
}

// Snapshot returns a copy of up to limit most recent candles in
// chronological order. limit <= 0 returns the whole window.
func (b *Buffer) Snapshot(limit int) []models.Candle {
	b.mu.RLock()
	defer b.mu.RUnlock()

	n := len(b.candles)
	if limit <= 0 || limit > n {
		limit = n
	}
	out := make([]models.Candle, limit)
	copy(out, b.candles[n-limit:])
	return out
}

// Len returns the current number of candles.
func (b *Buffer) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.candles)
}
