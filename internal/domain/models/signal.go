package models

import "time"

// Action is the directional call of a signal.
type Action string

const (
	ActionBuy  Action = "BUY"
	ActionSell Action = "SELL"
	ActionHold Action = "HOLD"
)

// RiskLevel classifies how risky acting on a signal would be.
type RiskLevel string

const (
	RiskLow    RiskLevel = "LOW"
	RiskMedium RiskLevel = "MEDIUM"
	RiskHigh   RiskLevel = "HIGH"
)

// MACD holds the MACD line, its signal line and the histogram.
type MACD struct {
	Value     float64 `json:"value"`
	Signal    float64 `json:"signal"`
	Histogram float64 `json:"histogram"`
}

// Bollinger holds the Bollinger band levels.
type Bollinger struct {
	Upper  float64 `json:"upper"`
	Middle float64 `json:"middle"`
	Lower  float64 `json:"lower"`
}

// IndicatorSet is the full set of technical indicators computed from one
// candle window. A value of 0 for the averages means "insufficient data";
// RSI reports 50 in that case.
type IndicatorSet struct {
	RSI       float64   `json:"rsi"`
	MACD      MACD      `json:"macd"`
	Bollinger Bollinger `json:"bollinger"`
	SMA20     float64   `json:"sma20"`
	SMA50     float64   `json:"sma50"`
	EMA12     float64   `json:"ema12"`
	EMA26     float64   `json:"ema26"`
	ADX       float64   `json:"adx"`
	ATR       float64   `json:"atr"`
	Volume    float64   `json:"volume"`
}

// SignalResult is one directional signal for a (symbol, timeframe).
// Immutable once produced.
type SignalResult struct {
	Action     Action    `json:"action"`
	Confidence float64   `json:"confidence"` // [0,1]
	Strength   float64   `json:"strength"`   // [0,100]
	RiskLevel  RiskLevel `json:"riskLevel"`
	Reasoning  []string  `json:"reasoning"`
	Timestamp  time.Time `json:"timestamp"`
}

// ConsensusResult aggregates per-timeframe signals into one overall view.
type ConsensusResult struct {
	Symbol            string                  `json:"symbol"`
	PerTimeframe      map[string]SignalResult `json:"perTimeframe"`
	OverallAction     Action                  `json:"overallAction"`
	OverallConfidence float64                 `json:"overallConfidence"`
	AgreementRatio    float64                 `json:"agreementRatio"` // [0,1]
}

// SignalRecord is the flat row handed to the persistence sink.
// Confidence is on the 0-100 scale the dashboard expects.
type SignalRecord struct {
	Symbol           string    `json:"symbol"`
	Exchange         string    `json:"exchange"`
	Timeframe        string    `json:"timeframe"`
	Action           Action    `json:"action"`
	Confidence       float64   `json:"confidence"`
	Strength         float64   `json:"strength"`
	CurrentPrice     float64   `json:"currentPrice"`
	IndicatorsJSON   string    `json:"indicators"`
	Reasoning        []string  `json:"reasoning"`
	ProcessingTimeMs int64     `json:"processingTimeMs"`
	CreatedAt        time.Time `json:"createdAt"`
}

// ProcessResult reports one orchestrated signal run. Stage failures are
// reflected here rather than propagated: Saved=false when the sink write
// failed, Notifications empty when alerting failed.
type ProcessResult struct {
	Symbol           string         `json:"symbol"`
	Timeframe        string         `json:"timeframe"`
	Signal           *SignalResult  `json:"signal,omitempty"`
	Notifications    []Notification `json:"notifications"`
	Saved            bool           `json:"saved"`
	ProcessingTimeMs int64          `json:"processingTimeMs"`
}

// BatchResult collects per-symbol outcomes of a batch run. A symbol that
// failed is present under Errors, never dropped.
type BatchResult struct {
	Timeframe string                   `json:"timeframe"`
	Results   map[string]ProcessResult `json:"results"`
	Errors    map[string]string        `json:"errors"`
}
