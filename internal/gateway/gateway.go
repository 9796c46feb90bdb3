// Package gateway owns all live exchange connectivity: candle and ticker
// subscriptions, historical backfill, rolling buffers and reconnects.
// Callers only ever read cached snapshots; no read path blocks on
// network I/O once a subscription is established.
package gateway

import (
	"context"
	"sync"
	"time"

	"coinsight/internal/domain/models"
	domrepo "coinsight/internal/domain/repository"
	applogger "coinsight/pkg/logger"
)

// Options tunes gateway behaviour.
type Options struct {
	BufferCap       int
	ReconnectDelay  time.Duration
	BackfillTimeout time.Duration
	Stagger         time.Duration // delay between fan-out connection attempts
}

// DefaultOptions returns production defaults.
func DefaultOptions() Options {
	return Options{
		BufferCap:       DefaultBufferCap,
		ReconnectDelay:  5 * time.Second,
		BackfillTimeout: 10 * time.Second,
		Stagger:         250 * time.Millisecond,
	}
}

// Gateway is the market data gateway.
type Gateway struct {
	history domrepo.HistoryProvider
	dialer  domrepo.StreamDialer
	metrics domrepo.Metrics
	log     *applogger.Logger
	opts    Options

	mu      sync.Mutex
	subs    map[string]*subscription
	tsubs   map[string]*tickerSub
	tickers *TickerCache
}

// New creates a gateway.
func New(history domrepo.HistoryProvider, dialer domrepo.StreamDialer, metrics domrepo.Metrics, log *applogger.Logger, opts Options) *Gateway {
	if opts.BufferCap <= 0 {
		opts.BufferCap = DefaultBufferCap
	}
	if opts.ReconnectDelay <= 0 {
		opts.ReconnectDelay = 5 * time.Second
	}
	if opts.BackfillTimeout <= 0 {
		opts.BackfillTimeout = 10 * time.Second
	}
	return &Gateway{
		history: history,
		dialer:  dialer,
		metrics: metrics,
		log:     log,
		opts:    opts,
		subs:    make(map[string]*subscription),
		tsubs:   make(map[string]*tickerSub),
		tickers: NewTickerCache(),
	}
}

// EnsureSubscription makes sure a live candle subscription exists for
// (symbol, timeframe). Idempotent: the first call backfills once and
// subscribes once; later calls return immediately (or wait for an
// in-flight setup). Backfill and dial failures propagate as GatewayError.
func (g *Gateway) EnsureSubscription(ctx context.Context, symbol string, tf domrepo.Timeframe) error {
	key := models.StreamKey(symbol, string(tf))

	g.mu.Lock()
	if sub, ok := g.subs[key]; ok {
		g.mu.Unlock()
		select {
		case <-sub.ready:
			return sub.setupErr
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	sub := newSubscription(g, symbol, tf)
	g.subs[key] = sub
	g.mu.Unlock()

	err := g.setup(ctx, sub)
	if err != nil {
		g.mu.Lock()
		delete(g.subs, key)
		g.mu.Unlock()
	}
	sub.setupErr = err
	close(sub.ready)
	return err
}

// setup backfills the buffer and opens the live stream.
func (g *Gateway) setup(ctx context.Context, sub *subscription) error {
	bctx, cancel := context.WithTimeout(ctx, g.opts.BackfillTimeout)
	candles, err := g.history.Klines(bctx, sub.symbol, sub.tf, g.opts.BufferCap)
	cancel()
	if err != nil {
		g.metrics.RecordError("backfill")
		return models.NewGatewayError(models.ReasonBackfillFailed, sub.symbol, string(sub.tf), err)
	}
	sub.buffer.Seed(candles)

	stream, err := g.dialer.DialCandles(ctx, sub.symbol, sub.tf)
	if err != nil {
		g.metrics.RecordError("subscribe")
		return models.NewGatewayError(models.ReasonSubscribeFailed, sub.symbol, string(sub.tf), err)
	}

	sub.mu.Lock()
	sub.stream = stream
	sub.mu.Unlock()
	go sub.run(stream)

	g.log.Info("subscription established",
		applogger.String("key", sub.key),
		applogger.Int("backfill", len(candles)),
	)
	return nil
}

// Watch registers an observer for live updates on an established
// subscription. The returned cancel func unregisters it; the last
// release tears the underlying stream down.
func (g *Gateway) Watch(symbol string, tf domrepo.Timeframe) (<-chan models.CandleUpdate, func(), bool) {
	g.mu.Lock()
	sub, ok := g.subs[models.StreamKey(symbol, string(tf))]
	g.mu.Unlock()
	if !ok {
		return nil, nil, false
	}
	id, ch := sub.addWatcher()
	return ch, func() { sub.removeWatcher(id) }, true
}

// Unsubscribe drops the base reference taken by EnsureSubscription.
// With no watchers left this closes the stream and cancels any pending
// reconnect.
func (g *Gateway) Unsubscribe(symbol string, tf domrepo.Timeframe) {
	g.mu.Lock()
	sub, ok := g.subs[models.StreamKey(symbol, string(tf))]
	g.mu.Unlock()
	if ok {
		sub.release()
	}
}

func (g *Gateway) dropSubscription(key string) {
	g.mu.Lock()
	delete(g.subs, key)
	g.mu.Unlock()
}

// ReadCandles returns up to limit cached candles. Never triggers I/O;
// an unknown key yields an empty slice.
func (g *Gateway) ReadCandles(symbol string, tf domrepo.Timeframe, limit int) []models.Candle {
	g.mu.Lock()
	sub, ok := g.subs[models.StreamKey(symbol, string(tf))]
	g.mu.Unlock()
	if !ok {
		return nil
	}
	return sub.buffer.Snapshot(limit)
}

// ReadTicker returns the cached ticker for symbol, if any.
func (g *Gateway) ReadTicker(symbol string) (models.Ticker, bool) {
	return g.tickers.Get(symbol)
}

// GetOHLCV prefers the cache and only falls back to a one-shot
// historical fetch when the key has never been populated. The fallback
// means the subscription step did not complete before the read, so it is
// logged as exceptional.
func (g *Gateway) GetOHLCV(ctx context.Context, symbol string, tf domrepo.Timeframe, limit int) ([]models.Candle, error) {
	g.mu.Lock()
	sub, ok := g.subs[models.StreamKey(symbol, string(tf))]
	g.mu.Unlock()
	if ok {
		return sub.buffer.Snapshot(limit), nil
	}

	g.log.Warn("cold cache read, falling back to one-shot history fetch",
		applogger.String("symbol", symbol),
		applogger.String("timeframe", string(tf)),
	)
	g.metrics.RecordError("cold_cache_fallback")

	n := limit
	if n <= 0 || n > g.opts.BufferCap {
		n = g.opts.BufferCap
	}
	fctx, cancel := context.WithTimeout(ctx, g.opts.BackfillTimeout)
	defer cancel()
	return g.history.Klines(fctx, symbol, tf, n)
}

// Candles implements the signal engine's CandleSource.
func (g *Gateway) Candles(ctx context.Context, symbol string, tf domrepo.Timeframe) ([]models.Candle, error) {
	return g.GetOHLCV(ctx, symbol, tf, 0)
}

// EnsureTicker opens a live ticker subscription for symbol, seeding the
// cache with a REST snapshot first. Idempotent.
func (g *Gateway) EnsureTicker(ctx context.Context, symbol string) error {
	g.mu.Lock()
	if _, ok := g.tsubs[symbol]; ok {
		g.mu.Unlock()
		return nil
	}
	sub := &tickerSub{g: g, symbol: symbol}
	g.tsubs[symbol] = sub
	g.mu.Unlock()

	if t, err := g.history.Ticker24h(ctx, symbol); err == nil {
		g.tickers.Put(t)
	}

	stream, err := g.dialer.DialTicker(ctx, symbol)
	if err != nil {
		g.mu.Lock()
		delete(g.tsubs, symbol)
		g.mu.Unlock()
		g.metrics.RecordError("ticker_subscribe")
		return models.NewGatewayError(models.ReasonSubscribeFailed, symbol, "", err)
	}
	sub.mu.Lock()
	sub.stream = stream
	sub.mu.Unlock()
	go sub.run(stream)
	return nil
}

// AddTrackedSymbols fans out ticker and candle subscriptions with a
// small stagger between symbols so startup does not become a connection
// storm. Per-symbol failures are logged and skipped, never fatal.
func (g *Gateway) AddTrackedSymbols(ctx context.Context, symbols []string, tfs []domrepo.Timeframe) {
	for i, symbol := range symbols {
		if i > 0 && g.opts.Stagger > 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(g.opts.Stagger):
			}
		}

		if err := g.EnsureTicker(ctx, symbol); err != nil {
			g.log.Warn("ticker subscription failed",
				applogger.String("symbol", symbol),
				applogger.Error(err),
			)
		}
		for _, tf := range tfs {
			if err := g.EnsureSubscription(ctx, symbol, tf); err != nil {
				g.log.Warn("candle subscription failed",
					applogger.String("symbol", symbol),
					applogger.String("timeframe", string(tf)),
					applogger.Error(err),
				)
			}
		}
	}
}

// Close tears down every stream and timer.
func (g *Gateway) Close() {
	g.mu.Lock()
	subs := make([]*subscription, 0, len(g.subs))
	for _, s := range g.subs {
		subs = append(subs, s)
	}
	tsubs := make([]*tickerSub, 0, len(g.tsubs))
	for _, s := range g.tsubs {
		tsubs = append(tsubs, s)
	}
	g.subs = make(map[string]*subscription)
	g.tsubs = make(map[string]*tickerSub)
	g.mu.Unlock()

	for _, s := range subs {
		s.mu.Lock()
		s.refs = 0
		s.releaseLocked()
		s.mu.Unlock()
	}
	for _, s := range tsubs {
		s.close()
	}
}
