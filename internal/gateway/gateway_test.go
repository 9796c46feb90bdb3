package gateway

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"coinsight/internal/domain/models"
	domrepo "coinsight/internal/domain/repository"
	"coinsight/pkg/logger"
)

type noopMetrics struct{}

func (noopMetrics) RecordSignal(string, models.Action) {}
func (noopMetrics) RecordError(string)                 {}
func (noopMetrics) RecordLastPrice(string, float64)    {}
func (noopMetrics) RecordLatency(string, float64)      {}
func (noopMetrics) RecordBufferDepth(string, int)      {}
func (noopMetrics) RecordReconnect(string)             {}
func (noopMetrics) RecordNotification(string)          {}

type fakeHistory struct {
	klineCalls int32
	klinesErr  error
	candles    []models.Candle
}

func (f *fakeHistory) Klines(context.Context, string, domrepo.Timeframe, int) ([]models.Candle, error) {
	atomic.AddInt32(&f.klineCalls, 1)
	if f.klinesErr != nil {
		return nil, f.klinesErr
	}
	return f.candles, nil
}

func (f *fakeHistory) Ticker24h(context.Context, string) (models.Ticker, error) {
	return models.Ticker{}, errors.New("not implemented")
}

type fakeCandleStream struct {
	updates chan models.CandleUpdate
	errs    chan error
	once    sync.Once
}

func newFakeCandleStream() *fakeCandleStream {
	return &fakeCandleStream{
		updates: make(chan models.CandleUpdate, 16),
		errs:    make(chan error, 1),
	}
}

func (f *fakeCandleStream) Updates() <-chan models.CandleUpdate { return f.updates }
func (f *fakeCandleStream) Err() <-chan error                   { return f.errs }
func (f *fakeCandleStream) Close() error {
	f.once.Do(func() { close(f.updates) })
	return nil
}

type fakeDialer struct {
	dialCalls int32
	dialErr   error
	mu        sync.Mutex
	streams   []*fakeCandleStream
}

func (f *fakeDialer) DialCandles(context.Context, string, domrepo.Timeframe) (domrepo.CandleStream, error) {
	atomic.AddInt32(&f.dialCalls, 1)
	if f.dialErr != nil {
		return nil, f.dialErr
	}
	s := newFakeCandleStream()
	f.mu.Lock()
	f.streams = append(f.streams, s)
	f.mu.Unlock()
	return s, nil
}

func (f *fakeDialer) DialTicker(context.Context, string) (domrepo.TickerStream, error) {
	return nil, errors.New("not implemented")
}

func seedCandles(n int) []models.Candle {
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]models.Candle, n)
	for i := range out {
		out[i] = models.Candle{
			OpenTime: base.Add(time.Duration(i) * time.Hour),
			Open:     100, High: 101, Low: 99, Close: 100, Volume: 1,
		}
	}
	return out
}

func newTestGateway(history domrepo.HistoryProvider, dialer domrepo.StreamDialer) *Gateway {
	return New(history, dialer, noopMetrics{}, logger.Nop(), DefaultOptions())
}

func TestEnsureSubscriptionIdempotent(t *testing.T) {
	history := &fakeHistory{candles: seedCandles(10)}
	dialer := &fakeDialer{}
	g := newTestGateway(history, dialer)
	defer g.Close()

	ctx := context.Background()
	if err := g.EnsureSubscription(ctx, "BTCUSDT", domrepo.TF1h); err != nil {
		t.Fatalf("first ensure failed: %v", err)
	}
	if err := g.EnsureSubscription(ctx, "BTCUSDT", domrepo.TF1h); err != nil {
		t.Fatalf("second ensure failed: %v", err)
	}

	if n := atomic.LoadInt32(&history.klineCalls); n != 1 {
		t.Fatalf("backfill ran %d times, want 1", n)
	}
	if n := atomic.LoadInt32(&dialer.dialCalls); n != 1 {
		t.Fatalf("dial ran %d times, want 1", n)
	}
}

func TestEnsureSubscriptionConcurrent(t *testing.T) {
	history := &fakeHistory{candles: seedCandles(10)}
	dialer := &fakeDialer{}
	g := newTestGateway(history, dialer)
	defer g.Close()

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = g.EnsureSubscription(context.Background(), "BTCUSDT", domrepo.TF1h)
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("ensure %d failed: %v", i, err)
		}
	}
	if n := atomic.LoadInt32(&history.klineCalls); n != 1 {
		t.Fatalf("backfill ran %d times under contention, want 1", n)
	}
	if n := atomic.LoadInt32(&dialer.dialCalls); n != 1 {
		t.Fatalf("dial ran %d times under contention, want 1", n)
	}
}

func TestEnsureSubscriptionBackfillFailure(t *testing.T) {
	history := &fakeHistory{klinesErr: errors.New("rest down")}
	dialer := &fakeDialer{}
	g := newTestGateway(history, dialer)
	defer g.Close()

	err := g.EnsureSubscription(context.Background(), "BTCUSDT", domrepo.TF1h)
	var gwErr *models.GatewayError
	if !errors.As(err, &gwErr) {
		t.Fatalf("err = %v, want GatewayError", err)
	}
	if gwErr.Reason != models.ReasonBackfillFailed {
		t.Fatalf("reason = %s, want backfill failure", gwErr.Reason)
	}

	// a failed setup must not poison the key
	history.klinesErr = nil
	history.candles = seedCandles(5)
	if err := g.EnsureSubscription(context.Background(), "BTCUSDT", domrepo.TF1h); err != nil {
		t.Fatalf("retry after failure: %v", err)
	}
}

func TestReadCandlesServedFromCache(t *testing.T) {
	history := &fakeHistory{candles: seedCandles(10)}
	dialer := &fakeDialer{}
	g := newTestGateway(history, dialer)
	defer g.Close()

	if err := g.EnsureSubscription(context.Background(), "BTCUSDT", domrepo.TF1h); err != nil {
		t.Fatalf("ensure failed: %v", err)
	}

	got := g.ReadCandles("BTCUSDT", domrepo.TF1h, 0)
	if len(got) != 10 {
		t.Fatalf("cached candles = %d, want 10", len(got))
	}
	if n := atomic.LoadInt32(&history.klineCalls); n != 1 {
		t.Fatalf("read triggered extra history calls: %d", n)
	}

	if got := g.ReadCandles("ETHUSDT", domrepo.TF1h, 0); got != nil {
		t.Fatalf("unknown key must return nil, got %v", got)
	}
}

func TestLiveUpdatesReachBufferAndWatchers(t *testing.T) {
	history := &fakeHistory{candles: seedCandles(3)}
	dialer := &fakeDialer{}
	g := newTestGateway(history, dialer)
	defer g.Close()

	if err := g.EnsureSubscription(context.Background(), "BTCUSDT", domrepo.TF1h); err != nil {
		t.Fatalf("ensure failed: %v", err)
	}
	ch, cancel, ok := g.Watch("BTCUSDT", domrepo.TF1h)
	if !ok {
		t.Fatalf("watch on established subscription failed")
	}
	defer cancel()

	u := models.CandleUpdate{
		Symbol:    "BTCUSDT",
		Timeframe: "1h",
		Candle: models.Candle{
			OpenTime: time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC),
			Close:    123,
		},
		Closed: true,
	}
	dialer.mu.Lock()
	stream := dialer.streams[0]
	dialer.mu.Unlock()
	stream.updates <- u

	select {
	case got := <-ch:
		if got.Candle.Close != 123 {
			t.Fatalf("watcher got close %v, want 123", got.Candle.Close)
		}
	case <-time.After(time.Second):
		t.Fatalf("watcher did not receive the update")
	}

	candles := g.ReadCandles("BTCUSDT", domrepo.TF1h, 0)
	if candles[len(candles)-1].Close != 123 {
		t.Fatalf("buffer missing live update, last close = %v", candles[len(candles)-1].Close)
	}
}

func TestGetOHLCVColdCacheFallback(t *testing.T) {
	history := &fakeHistory{candles: seedCandles(5)}
	dialer := &fakeDialer{}
	g := newTestGateway(history, dialer)
	defer g.Close()

	got, err := g.GetOHLCV(context.Background(), "BTCUSDT", domrepo.TF1h, 5)
	if err != nil {
		t.Fatalf("cold cache fallback failed: %v", err)
	}
	if len(got) != 5 {
		t.Fatalf("fallback returned %d candles, want 5", len(got))
	}
	if n := atomic.LoadInt32(&history.klineCalls); n != 1 {
		t.Fatalf("history calls = %d, want 1", n)
	}
}
