package models

// Requests for the signal HTTP endpoints. Defined in domain for consistency and reuse.

type SignalRequest struct {
	Symbol    string `query:"symbol" json:"symbol" validate:"required"`
	Timeframe string `query:"timeframe" json:"timeframe" default:"1h" validate:"oneof=1m 5m 15m 1h 4h 1d"`
}

type ConsensusRequest struct {
	Symbol     string   `query:"symbol" json:"symbol" validate:"required"`
	Timeframes []string `query:"timeframes" json:"timeframes" validate:"omitempty,dive,oneof=1m 5m 15m 1h 4h 1d"`
}

type BatchRequest struct {
	Symbols   []string `json:"symbols" validate:"required,min=1,max=50,dive,required"`
	Timeframe string   `json:"timeframe" default:"1h" validate:"oneof=1m 5m 15m 1h 4h 1d"`
}

type TickerRequest struct {
	Symbol string `query:"symbol" json:"symbol" validate:"required"`
}

type HistoryRequest struct {
	Symbol string `query:"symbol" json:"symbol" validate:"required"`
	Limit  int    `query:"limit" json:"limit" default:"50" validate:"gte=1,lte=500"`
}

type RuleRequest struct {
	Name              string   `json:"name" validate:"required"`
	IsActive          bool     `json:"isActive" default:"true"`
	MinConfidence     *float64 `json:"minConfidence" validate:"omitempty,gte=0,lte=100"`
	MinStrength       *float64 `json:"minStrength" validate:"omitempty,gte=0,lte=100"`
	RequiredAgreement *int     `json:"requiredTimeframeAgreement" validate:"omitempty,gte=1,lte=6"`
	RequiredAction    *Action  `json:"requiredAction" validate:"omitempty,oneof=BUY SELL HOLD"`
	Priority          string   `json:"priority" default:"medium" validate:"oneof=low medium high"`
}
