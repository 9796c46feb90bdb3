package binance

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// wsTestServer upgrades every connection and replays frames, then keeps
// the connection open until the client disconnects.
func wsTestServer(t *testing.T, frames []string, gotPath chan<- string) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case gotPath <- r.URL.Path:
		default:
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()
		for _, f := range frames {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(f)); err != nil {
				return
			}
		}
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
}

func TestDialCandles(t *testing.T) {
	kline := `{"e":"kline","k":{"t":1735689600000,"o":"100","h":"101","l":"99","c":"100.5","v":"10","x":true}}`
	noise := `{"e":"something-else"}`
	paths := make(chan string, 1)
	srv := wsTestServer(t, []string{noise, kline}, paths)
	defer srv.Close()

	d := NewDialer("ws" + strings.TrimPrefix(srv.URL, "http"))
	stream, err := d.DialCandles(context.Background(), "BTCUSDT", "1h")
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer stream.Close()

	if path := <-paths; path != "/btcusdt@kline_1h" {
		t.Fatalf("stream path = %s, want /btcusdt@kline_1h", path)
	}

	select {
	case u := <-stream.Updates():
		if u.Symbol != "BTCUSDT" || u.Timeframe != "1h" {
			t.Fatalf("unexpected update identity: %+v", u)
		}
		if !u.Closed || u.Candle.Close != 100.5 {
			t.Fatalf("unexpected update: %+v", u)
		}
	case <-time.After(time.Second):
		t.Fatalf("no update received")
	}
}

func TestCandleStreamDeliberateClose(t *testing.T) {
	paths := make(chan string, 1)
	srv := wsTestServer(t, nil, paths)
	defer srv.Close()

	d := NewDialer("ws" + strings.TrimPrefix(srv.URL, "http"))
	stream, err := d.DialCandles(context.Background(), "BTCUSDT", "1h")
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}

	if err := stream.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	// Close is idempotent
	if err := stream.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}

	// a deliberate close must not surface as a stream failure
	select {
	case err := <-stream.Err():
		t.Fatalf("unexpected error after deliberate close: %v", err)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestDialTicker(t *testing.T) {
	frame := `{"e":"24hrTicker","s":"ETHUSDT","c":"3500.5","P":"2.4","v":"9999","h":"3600","l":"3400"}`
	paths := make(chan string, 1)
	srv := wsTestServer(t, []string{frame}, paths)
	defer srv.Close()

	d := NewDialer("ws" + strings.TrimPrefix(srv.URL, "http"))
	stream, err := d.DialTicker(context.Background(), "ETHUSDT")
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer stream.Close()

	if path := <-paths; path != "/ethusdt@ticker" {
		t.Fatalf("stream path = %s, want /ethusdt@ticker", path)
	}

	select {
	case tk := <-stream.Updates():
		if tk.Symbol != "ETHUSDT" || tk.LastPrice != 3500.5 || tk.PriceChangePercent != 2.4 {
			t.Fatalf("unexpected ticker: %+v", tk)
		}
	case <-time.After(time.Second):
		t.Fatalf("no ticker received")
	}
}
