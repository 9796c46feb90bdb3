package models

import "time"

// Candle is one OHLCV bar for a (symbol, timeframe) pair.
// OpenTime identifies the bar; the bar for the current period stays
// mutable until the exchange marks it closed.
type Candle struct {
	OpenTime time.Time `json:"openTime"`
	Open     float64   `json:"open"`
	High     float64   `json:"high"`
	Low      float64   `json:"low"`
	Close    float64   `json:"close"`
	Volume   float64   `json:"volume"`
}

// CandleUpdate is a live bar update from the exchange stream.
// Closed reports whether the period has ended; an open update replaces
// the forming bar, a closed update finalizes it.
type CandleUpdate struct {
	Symbol    string
	Timeframe string
	Candle    Candle
	Closed    bool
}

// Ticker is the rolling 24h statistics for one symbol, last-write-wins.
type Ticker struct {
	Symbol             string  `json:"symbol"`
	LastPrice          float64 `json:"lastPrice"`
	PriceChangePercent float64 `json:"priceChangePercent"`
	Volume             float64 `json:"volume"`
	High               float64 `json:"high"`
	Low                float64 `json:"low"`
}

// StreamKey identifies one candle subscription.
func StreamKey(symbol, timeframe string) string {
	return symbol + ":" + timeframe
}
