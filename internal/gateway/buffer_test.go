package gateway

import (
	"testing"
	"time"

	"coinsight/internal/domain/models"
)

func mkCandle(openTime time.Time, close float64) models.Candle {
	return models.Candle{
		OpenTime: openTime,
		Open:     close,
		High:     close,
		Low:      close,
		Close:    close,
		Volume:   1,
	}
}

func TestBufferNeverExceedsCapacity(t *testing.T) {
	b := NewBuffer(10)
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 100; i++ {
		b.Apply(models.CandleUpdate{
			Candle: mkCandle(base.Add(time.Duration(i)*time.Minute), 100+float64(i)),
			Closed: true,
		})
		if b.Len() > 10 {
			t.Fatalf("buffer length %d exceeds capacity after insert %d", b.Len(), i)
		}
	}
	if b.Len() != 10 {
		t.Fatalf("expected full buffer, got %d", b.Len())
	}

	// oldest evicted first
	snap := b.Snapshot(0)
	if snap[0].Close != 190 {
		t.Fatalf("expected FIFO eviction, oldest close = %v", snap[0].Close)
	}
}

func TestBufferSeedTrimsToCapacity(t *testing.T) {
	b := NewBuffer(5)
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	seed := make([]models.Candle, 20)
	for i := range seed {
		seed[i] = mkCandle(base.Add(time.Duration(i)*time.Minute), float64(i))
	}
	b.Seed(seed)

	if b.Len() != 5 {
		t.Fatalf("expected 5 candles after seed, got %d", b.Len())
	}
	snap := b.Snapshot(0)
	if snap[0].Close != 15 || snap[4].Close != 19 {
		t.Fatalf("expected newest window kept, got %v..%v", snap[0].Close, snap[4].Close)
	}
}

func TestBufferClosedCandleImmutable(t *testing.T) {
	b := NewBuffer(10)
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	b.Apply(models.CandleUpdate{Candle: mkCandle(base, 100), Closed: true})
	b.Apply(models.CandleUpdate{Candle: mkCandle(base.Add(time.Minute), 101), Closed: false})

	// a late "open" update for the already-closed first period must be dropped
	b.Apply(models.CandleUpdate{Candle: mkCandle(base, 999), Closed: false})

	snap := b.Snapshot(0)
	if len(snap) != 2 {
		t.Fatalf("expected 2 candles, got %d", len(snap))
	}
	if snap[0].Close != 100 {
		t.Fatalf("closed candle was mutated: close = %v", snap[0].Close)
	}
}

func TestBufferOpenCandleReplacedInPlace(t *testing.T) {
	b := NewBuffer(10)
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	b.Apply(models.CandleUpdate{Candle: mkCandle(base, 100), Closed: false})
	b.Apply(models.CandleUpdate{Candle: mkCandle(base, 100.5), Closed: false})
	b.Apply(models.CandleUpdate{Candle: mkCandle(base, 101), Closed: false})

	if b.Len() != 1 {
		t.Fatalf("open updates for one period must not grow the buffer, len = %d", b.Len())
	}
	if got := b.Snapshot(0)[0].Close; got != 101 {
		t.Fatalf("expected latest open value 101, got %v", got)
	}

	// closing the period finalizes it
	b.Apply(models.CandleUpdate{Candle: mkCandle(base, 101.5), Closed: true})
	b.Apply(models.CandleUpdate{Candle: mkCandle(base.Add(time.Minute), 102), Closed: false})

	snap := b.Snapshot(0)
	if len(snap) != 2 || snap[0].Close != 101.5 || snap[1].Close != 102 {
		t.Fatalf("unexpected window after close: %+v", snap)
	}
}

func TestBufferSnapshotLimit(t *testing.T) {
	b := NewBuffer(10)
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 6; i++ {
		b.Apply(models.CandleUpdate{
			Candle: mkCandle(base.Add(time.Duration(i)*time.Minute), float64(i)),
			Closed: true,
		})
	}

	snap := b.Snapshot(3)
	if len(snap) != 3 {
		t.Fatalf("expected 3 candles, got %d", len(snap))
	}
	if snap[0].Close != 3 || snap[2].Close != 5 {
		t.Fatalf("expected most recent 3 candles, got %+v", snap)
	}

	// snapshot is a copy
	snap[0].Close = -1
	if b.Snapshot(3)[0].Close == -1 {
		t.Fatalf("snapshot must not alias internal storage")
	}
}
