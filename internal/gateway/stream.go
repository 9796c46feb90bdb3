package gateway

import (
	"context"
	"sync"
	"time"

	"coinsight/internal/domain/models"
	domrepo "coinsight/internal/domain/repository"
	applogger "coinsight/pkg/logger"
)

// subscription owns one live candle stream and its rolling buffer.
// Exactly one reconnect timer may be outstanding at a time; teardown
// happens when the reference count reaches zero.
type subscription struct {
	g      *Gateway
	key    string
	symbol string
	tf     domrepo.Timeframe
	buffer *Buffer

	ready    chan struct{} // closed once setup finished (ok or not)
	setupErr error

	mu          sync.Mutex
	refs        int
	stream      domrepo.CandleStream
	timer       *time.Timer
	released    bool
	watchers    map[int]chan models.CandleUpdate
	nextWatcher int
}

func newSubscription(g *Gateway, symbol string, tf domrepo.Timeframe) *subscription {
	return &subscription{
		g:        g,
		key:      models.StreamKey(symbol, string(tf)),
		symbol:   symbol,
		tf:       tf,
		buffer:   NewBuffer(g.opts.BufferCap),
		ready:    make(chan struct{}),
		refs:     1,
		watchers: make(map[int]chan models.CandleUpdate),
	}
}

// run consumes one stream until it dies. A fresh run goroutine is
// started per successful (re)dial.
func (s *subscription) run(stream domrepo.CandleStream) {
	for {
		select {
		case u, ok := <-stream.Updates():
			if !ok {
				s.onStreamDown(readErr(stream))
				return
			}
			s.buffer.Apply(u)
			s.g.metrics.RecordBufferDepth(s.key, s.buffer.Len())
			s.fanout(u)
		case err := <-stream.Err():
			s.onStreamDown(err)
			return
		}
	}
}

func readErr(stream domrepo.CandleStream) error {
	select {
	case err := <-stream.Err():
		return err
	default:
		return nil
	}
}

func (s *subscription) fanout(u models.CandleUpdate) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ch := range s.watchers {
		select {
		case ch <- u:
		default:
			// slow watcher, drop rather than stall the stream
		}
	}
}

// onStreamDown logs the failure and arms a single reconnect timer.
// Cached data stays intact; only the live feed is interrupted.
func (s *subscription) onStreamDown(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stream = nil
	if s.released {
		return
	}
	s.g.log.Warn("candle stream down, scheduling reconnect",
		applogger.String("key", s.key),
		applogger.Error(err),
	)
	s.g.metrics.RecordError("stream_down")
	s.scheduleReconnectLocked()
}

func (s *subscription) scheduleReconnectLocked() {
	if s.timer != nil {
		return
	}
	s.timer = time.AfterFunc(s.g.opts.ReconnectDelay, s.redial)
}

func (s *subscription) redial() {
	s.mu.Lock()
	s.timer = nil
	if s.released {
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	stream, err := s.g.dialer.DialCandles(context.Background(), s.symbol, s.tf)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.released {
		if err == nil {
			_ = stream.Close()
		}
		return
	}
	if err != nil {
		s.g.log.Warn("reconnect failed",
			applogger.String("key", s.key),
			applogger.Error(err),
		)
		s.g.metrics.RecordError("reconnect_failed")
		s.scheduleReconnectLocked()
		return
	}
	s.stream = stream
	s.g.metrics.RecordReconnect(s.key)
	s.g.log.Info("candle stream reconnected", applogger.String("key", s.key))
	go s.run(stream)
}

// addWatcher registers an observer channel and takes a reference.
func (s *subscription) addWatcher() (int, <-chan models.CandleUpdate) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextWatcher
	s.nextWatcher++
	ch := make(chan models.CandleUpdate, 16)
	s.watchers[id] = ch
	s.refs++
	return id, ch
}

// removeWatcher drops an observer and releases its reference.
func (s *subscription) removeWatcher(id int) {
	s.mu.Lock()
	if ch, ok := s.watchers[id]; ok {
		delete(s.watchers, id)
		close(ch)
		s.refs--
	}
	released := s.releaseLocked()
	s.mu.Unlock()
	if released {
		s.g.dropSubscription(s.key)
	}
}

// release drops the base reference held since EnsureSubscription.
func (s *subscription) release() bool {
	s.mu.Lock()
	s.refs--
	released := s.releaseLocked()
	s.mu.Unlock()
	if released {
		s.g.dropSubscription(s.key)
	}
	return released
}

// releaseLocked tears the stream down once the last reference is gone.
// Returns true when teardown happened.
func (s *subscription) releaseLocked() bool {
	if s.released || s.refs > 0 {
		return false
	}
	s.released = true
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	if s.stream != nil {
		_ = s.stream.Close()
		s.stream = nil
	}
	return true
}

// tickerSub owns one live ticker stream; same reconnect discipline as
// candle subscriptions but it feeds the shared ticker cache.
type tickerSub struct {
	g      *Gateway
	symbol string

	mu       sync.Mutex
	stream   domrepo.TickerStream
	timer    *time.Timer
	released bool
}

func (s *tickerSub) run(stream domrepo.TickerStream) {
	for {
		select {
		case t, ok := <-stream.Updates():
			if !ok {
				s.onStreamDown(nil)
				return
			}
			s.g.tickers.Put(t)
			s.g.metrics.RecordLastPrice(t.Symbol, t.LastPrice)
		case err := <-stream.Err():
			s.onStreamDown(err)
			return
		}
	}
}

func (s *tickerSub) onStreamDown(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stream = nil
	if s.released {
		return
	}
	s.g.log.Warn("ticker stream down, scheduling reconnect",
		applogger.String("symbol", s.symbol),
		applogger.Error(err),
	)
	s.g.metrics.RecordError("ticker_stream_down")
	if s.timer == nil {
		s.timer = time.AfterFunc(s.g.opts.ReconnectDelay, s.redial)
	}
}

func (s *tickerSub) redial() {
	s.mu.Lock()
	s.timer = nil
	if s.released {
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	stream, err := s.g.dialer.DialTicker(context.Background(), s.symbol)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.released {
		if err == nil {
			_ = stream.Close()
		}
		return
	}
	if err != nil {
		s.g.metrics.RecordError("ticker_reconnect_failed")
		if s.timer == nil {
			s.timer = time.AfterFunc(s.g.opts.ReconnectDelay, s.redial)
		}
		return
	}
	s.stream = stream
	s.g.metrics.RecordReconnect("ticker:" + s.symbol)
	go s.run(stream)
}

func (s *tickerSub) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.released = true
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	if s.stream != nil {
		_ = s.stream.Close()
		s.stream = nil
	}
}
