// Package binance implements the exchange adapters: REST kline history
// and websocket kline/ticker streams.
package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"coinsight/internal/domain/models"
	domrepo "coinsight/internal/domain/repository"
	"coinsight/internal/service/ratelimit"
	xhttp "coinsight/pkg/http"

	"github.com/cenkalti/backoff/v4"
)

const (
	defaultBaseURL = "https://api.binance.com"
	maxRetries     = 3
)

// Client is the REST history provider. A local token bucket keeps us
// under the exchange request weight limit before the server ever has to
// throttle us.
type Client struct {
	baseURL string
	http    *xhttp.Client
	limiter *ratelimit.Limiter
}

// NewClient creates a REST client. baseURL "" uses the production API.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		http:    xhttp.NewClient(xhttp.WithTimeout(timeout)),
		limiter: ratelimit.New(),
	}
}

// Klines fetches up to limit most recent candles for symbol/interval.
// Rate-limit responses (429/418) are retried with exponential backoff,
// bounded to maxRetries attempts.
func (c *Client) Klines(ctx context.Context, symbol string, tf domrepo.Timeframe, limit int) ([]models.Candle, error) {
	opts := &xhttp.RequestOptions{
		Method: xhttp.MethodGet,
		URL:    c.baseURL + "/api/v3/klines",
		QueryParams: map[string][]string{
			"symbol":   {symbol},
			"interval": {string(tf)},
			"limit":    {strconv.Itoa(limit)},
		},
	}

	var body []byte
	op := func() error {
		b, err := c.get(ctx, opts)
		body = b
		return err
	}
	bo := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(
			backoff.WithInitialInterval(time.Second),
			backoff.WithMultiplier(2),
			backoff.WithRandomizationFactor(0),
		), maxRetries),
		ctx,
	)
	if err := backoff.Retry(op, bo); err != nil {
		return nil, fmt.Errorf("klines %s/%s: %w", symbol, tf, err)
	}

	var rows [][]json.RawMessage
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("klines decode: %w", err)
	}

	out := make([]models.Candle, 0, len(rows))
	for _, row := range rows {
		candle, err := parseKlineRow(row)
		if err != nil {
			return nil, fmt.Errorf("klines row: %w", err)
		}
		out = append(out, candle)
	}
	return out, nil
}

// Ticker24h fetches the rolling 24h statistics for one symbol.
func (c *Client) Ticker24h(ctx context.Context, symbol string) (models.Ticker, error) {
	opts := &xhttp.RequestOptions{
		Method: xhttp.MethodGet,
		URL:    c.baseURL + "/api/v3/ticker/24hr",
		QueryParams: map[string][]string{
			"symbol": {symbol},
		},
	}
	body, err := c.get(ctx, opts)
	if err != nil {
		return models.Ticker{}, fmt.Errorf("ticker24h %s: %w", symbol, err)
	}

	var raw struct {
		Symbol             string `json:"symbol"`
		LastPrice          string `json:"lastPrice"`
		PriceChangePercent string `json:"priceChangePercent"`
		Volume             string `json:"volume"`
		HighPrice          string `json:"highPrice"`
		LowPrice           string `json:"lowPrice"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return models.Ticker{}, fmt.Errorf("ticker24h decode: %w", err)
	}
	return models.Ticker{
		Symbol:             raw.Symbol,
		LastPrice:          parseF(raw.LastPrice),
		PriceChangePercent: parseF(raw.PriceChangePercent),
		Volume:             parseF(raw.Volume),
		High:               parseF(raw.HighPrice),
		Low:                parseF(raw.LowPrice),
	}, nil
}

// get performs one request. Rate-limit statuses come back as retryable
// errors wrapping ErrRateLimited; other HTTP failures are permanent.
func (c *Client) get(ctx context.Context, opts *xhttp.RequestOptions) ([]byte, error) {
	// 20 request burst, refilling 10/s. Binance allows far more weight
	// but backfill fan-out can spike well past that.
	for !c.limiter.Allow("rest", 20, 10) {
		select {
		case <-ctx.Done():
			return nil, backoff.Permanent(ctx.Err())
		case <-time.After(100 * time.Millisecond):
		}
	}

	resp, err := c.http.SendRequest(ctx, opts)
	if err != nil {
		return nil, err // network errors are retryable
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == 418 {
		return nil, fmt.Errorf("%w: status %d", models.ErrRateLimited, resp.StatusCode)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return nil, backoff.Permanent(fmt.Errorf("unexpected status %d: %s", resp.StatusCode, body))
	}
	return io.ReadAll(resp.Body)
}

// parseKlineRow converts one raw kline array
// [openTime, open, high, low, close, volume, closeTime, ...]
// into a validated Candle.
func parseKlineRow(row []json.RawMessage) (models.Candle, error) {
	if len(row) < 6 {
		return models.Candle{}, fmt.Errorf("short row: %d fields", len(row))
	}

	var openTimeMs int64
	if err := json.Unmarshal(row[0], &openTimeMs); err != nil {
		return models.Candle{}, fmt.Errorf("open time: %w", err)
	}

	vals := make([]float64, 5)
	for i := 1; i <= 5; i++ {
		var s string
		if err := json.Unmarshal(row[i], &s); err != nil {
			return models.Candle{}, fmt.Errorf("field %d: %w", i, err)
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return models.Candle{}, fmt.Errorf("field %d: %w", i, err)
		}
		vals[i-1] = f
	}

	return models.Candle{
		OpenTime: time.UnixMilli(openTimeMs).UTC(),
		Open:     vals[0],
		High:     vals[1],
		Low:      vals[2],
		Close:    vals[3],
		Volume:   vals[4],
	}, nil
}

func parseF(s string) float64 {
	f, _ := strconv.ParseFloat(s, 64)
	return f
}
