package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"coinsight/internal/domain/models"
	domrepo "coinsight/internal/domain/repository"

	"github.com/gorilla/websocket"
)

const (
	defaultStreamURL    = "wss://stream.binance.com:9443/ws"
	defaultPingInterval = 3 * time.Minute
)

// Dialer opens kline and ticker streams over the combined-stream endpoint.
type Dialer struct {
	streamURL    string
	pingInterval time.Duration
}

// NewDialer creates a stream dialer. streamURL "" uses the production endpoint.
func NewDialer(streamURL string) *Dialer {
	if streamURL == "" {
		streamURL = defaultStreamURL
	}
	return &Dialer{streamURL: streamURL, pingInterval: defaultPingInterval}
}

// DialCandles opens a kline stream for one symbol/timeframe.
func (d *Dialer) DialCandles(ctx context.Context, symbol string, tf domrepo.Timeframe) (domrepo.CandleStream, error) {
	u := fmt.Sprintf("%s/%s@kline_%s", d.streamURL, strings.ToLower(symbol), tf)
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u, nil)
	if err != nil {
		return nil, fmt.Errorf("dial kline %s/%s: %w", symbol, tf, err)
	}
	s := &candleStream{
		conn:    conn,
		symbol:  symbol,
		tf:      tf,
		updates: make(chan models.CandleUpdate, 256),
		errs:    make(chan error, 1),
		done:    make(chan struct{}),
	}
	go s.pingLoop(d.pingInterval)
	go s.readLoop()
	return s, nil
}

// DialTicker opens a 24h ticker stream for one symbol.
func (d *Dialer) DialTicker(ctx context.Context, symbol string) (domrepo.TickerStream, error) {
	u := fmt.Sprintf("%s/%s@ticker", d.streamURL, strings.ToLower(symbol))
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u, nil)
	if err != nil {
		return nil, fmt.Errorf("dial ticker %s: %w", symbol, err)
	}
	s := &tickerStream{
		conn:    conn,
		updates: make(chan models.Ticker, 64),
		errs:    make(chan error, 1),
		done:    make(chan struct{}),
	}
	go s.pingLoop(d.pingInterval)
	go s.readLoop()
	return s, nil
}

type wsKlineEvent struct {
	Event string `json:"e"`
	Kline struct {
		OpenTime int64  `json:"t"`
		Open     string `json:"o"`
		High     string `json:"h"`
		Low      string `json:"l"`
		Close    string `json:"c"`
		Volume   string `json:"v"`
		Closed   bool   `json:"x"`
	} `json:"k"`
}

type candleStream struct {
	conn    *websocket.Conn
	symbol  string
	tf      domrepo.Timeframe
	updates chan models.CandleUpdate
	errs    chan error

	closeOnce sync.Once
	done      chan struct{}
}

func (s *candleStream) Updates() <-chan models.CandleUpdate { return s.updates }
func (s *candleStream) Err() <-chan error                   { return s.errs }

func (s *candleStream) Close() error {
	s.closeOnce.Do(func() {
		close(s.done)
		s.conn.Close()
	})
	return nil
}

func (s *candleStream) pingLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			_ = s.conn.WriteMessage(websocket.PingMessage, nil)
		}
	}
}

func (s *candleStream) readLoop() {
	defer close(s.updates)
	for {
		_, b, err := s.conn.ReadMessage()
		if err != nil {
			select {
			case <-s.done:
				// deliberate close, not a failure
			default:
				s.errs <- fmt.Errorf("kline read %s/%s: %w", s.symbol, s.tf, err)
			}
			return
		}
		var ev wsKlineEvent
		if err := json.Unmarshal(b, &ev); err != nil || ev.Event != "kline" {
			// ignore non-kline frames
			continue
		}
		upd := models.CandleUpdate{
			Symbol:    s.symbol,
			Timeframe: string(s.tf),
			Candle: models.Candle{
				OpenTime: time.UnixMilli(ev.Kline.OpenTime).UTC(),
				Open:     parseF(ev.Kline.Open),
				High:     parseF(ev.Kline.High),
				Low:      parseF(ev.Kline.Low),
				Close:    parseF(ev.Kline.Close),
				Volume:   parseF(ev.Kline.Volume),
			},
			Closed: ev.Kline.Closed,
		}
		select {
		case s.updates <- upd:
		default:
			// drop on backpressure
		}
	}
}

type wsTickerEvent struct {
	Event              string `json:"e"`
	Symbol             string `json:"s"`
	LastPrice          string `json:"c"`
	PriceChangePercent string `json:"P"`
	Volume             string `json:"v"`
	High               string `json:"h"`
	Low                string `json:"l"`
}

type tickerStream struct {
	conn    *websocket.Conn
	updates chan models.Ticker
	errs    chan error

	closeOnce sync.Once
	done      chan struct{}
}

func (s *tickerStream) Updates() <-chan models.Ticker { return s.updates }
func (s *tickerStream) Err() <-chan error             { return s.errs }

func (s *tickerStream) Close() error {
	s.closeOnce.Do(func() {
		close(s.done)
		s.conn.Close()
	})
	return nil
}

func (s *tickerStream) pingLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			_ = s.conn.WriteMessage(websocket.PingMessage, nil)
		}
	}
}

func (s *tickerStream) readLoop() {
	defer close(s.updates)
	for {
		_, b, err := s.conn.ReadMessage()
		if err != nil {
			select {
			case <-s.done:
			default:
				s.errs <- fmt.Errorf("ticker read: %w", err)
			}
			return
		}
		var ev wsTickerEvent
		if err := json.Unmarshal(b, &ev); err != nil || ev.Event != "24hrTicker" {
			continue
		}
		t := models.Ticker{
			Symbol:             ev.Symbol,
			LastPrice:          parseF(ev.LastPrice),
			PriceChangePercent: parseF(ev.PriceChangePercent),
			Volume:             parseF(ev.Volume),
			High:               parseF(ev.High),
			Low:                parseF(ev.Low),
		}
		select {
		case s.updates <- t:
		default:
		}
	}
}
