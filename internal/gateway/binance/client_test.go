package binance

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	domrepo "coinsight/internal/domain/repository"
)

func TestParseKlineRow(t *testing.T) {
	raw := `[1735689600000,"93500.1","94000.0","93000.5","93800.25","123.456",1735693199999]`
	var row []json.RawMessage
	if err := json.Unmarshal([]byte(raw), &row); err != nil {
		t.Fatalf("fixture: %v", err)
	}

	c, err := parseKlineRow(row)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if want := time.UnixMilli(1735689600000).UTC(); !c.OpenTime.Equal(want) {
		t.Fatalf("open time = %v, want %v", c.OpenTime, want)
	}
	if c.Open != 93500.1 || c.High != 94000.0 || c.Low != 93000.5 || c.Close != 93800.25 || c.Volume != 123.456 {
		t.Fatalf("unexpected candle: %+v", c)
	}
}

func TestParseKlineRowMalformed(t *testing.T) {
	for _, raw := range []string{
		`[1735689600000,"93500.1"]`,
		`[1735689600000,"not-a-number","1","1","1","1"]`,
		`["nope","1","1","1","1","1"]`,
	} {
		var row []json.RawMessage
		if err := json.Unmarshal([]byte(raw), &row); err != nil {
			t.Fatalf("fixture %s: %v", raw, err)
		}
		if _, err := parseKlineRow(row); err == nil {
			t.Fatalf("expected parse error for %s", raw)
		}
	}
}

func TestKlines(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v3/klines" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("symbol") != "BTCUSDT" || q.Get("interval") != "1h" || q.Get("limit") != "2" {
			t.Fatalf("unexpected query %v", q)
		}
		w.Write([]byte(`[
			[1735689600000,"100","101","99","100.5","10",1735693199999],
			[1735693200000,"100.5","102","100","101.5","12",1735696799999]
		]`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second)
	candles, err := c.Klines(context.Background(), "BTCUSDT", domrepo.TF1h, 2)
	if err != nil {
		t.Fatalf("klines failed: %v", err)
	}
	if len(candles) != 2 {
		t.Fatalf("got %d candles, want 2", len(candles))
	}
	if candles[1].Close != 101.5 {
		t.Fatalf("last close = %v, want 101.5", candles[1].Close)
	}
}

func TestKlinesRetriesOnRateLimit(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&hits, 1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(`[[1735689600000,"100","101","99","100.5","10",1735693199999]]`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second)
	candles, err := c.Klines(context.Background(), "BTCUSDT", domrepo.TF1h, 1)
	if err != nil {
		t.Fatalf("klines failed after retry: %v", err)
	}
	if len(candles) != 1 {
		t.Fatalf("got %d candles, want 1", len(candles))
	}
	if n := atomic.LoadInt32(&hits); n != 2 {
		t.Fatalf("server hit %d times, want 2", n)
	}
}

func TestKlinesServerErrorIsPermanent(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"code":-1121,"msg":"Invalid symbol."}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second)
	if _, err := c.Klines(context.Background(), "NOPE", domrepo.TF1h, 1); err == nil {
		t.Fatalf("expected error for bad request")
	}
	if n := atomic.LoadInt32(&hits); n != 1 {
		t.Fatalf("bad request retried %d times, want 1 attempt", n)
	}
}

func TestTicker24h(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v3/ticker/24hr" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		w.Write([]byte(`{
			"symbol":"BTCUSDT",
			"lastPrice":"93800.25",
			"priceChangePercent":"-1.25",
			"volume":"12345.6",
			"highPrice":"95000.0",
			"lowPrice":"93000.0"
		}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second)
	tk, err := c.Ticker24h(context.Background(), "BTCUSDT")
	if err != nil {
		t.Fatalf("ticker24h failed: %v", err)
	}
	if tk.Symbol != "BTCUSDT" || tk.LastPrice != 93800.25 || tk.PriceChangePercent != -1.25 {
		t.Fatalf("unexpected ticker: %+v", tk)
	}
	if tk.High != 95000.0 || tk.Low != 93000.0 {
		t.Fatalf("unexpected range: %+v", tk)
	}
}
