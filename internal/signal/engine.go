// Package signal turns indicator sets and raw candle windows into
// directional trading signals and multi-timeframe consensus views.
package signal

import (
	"fmt"
	"math"
	"time"

	"coinsight/internal/domain/models"
)

// Config holds the decision thresholds. Score above Buy yields BUY, below
// Sell yields SELL, anything between is HOLD.
type Config struct {
	BuyThreshold  float64
	SellThreshold float64
}

// DefaultConfig returns the standard +-30 decision band.
func DefaultConfig() Config {
	return Config{BuyThreshold: 30, SellThreshold: -30}
}

// Engine generates signals. Stateless; safe for concurrent use.
type Engine struct {
	cfg Config
}

// NewEngine creates a signal engine with the given thresholds.
func NewEngine(cfg Config) *Engine {
	if cfg.BuyThreshold == 0 && cfg.SellThreshold == 0 {
		cfg = DefaultConfig()
	}
	return &Engine{cfg: cfg}
}

// vote is one indicator's directional opinion.
type vote struct {
	action models.Action
	weight float64
	reason string
}

// Generate combines indicator votes with price-action analysis into one
// SignalResult. It never fails; with a near-empty window it degrades to a
// low-confidence HOLD.
func (e *Engine) Generate(candles []models.Candle, ind models.IndicatorSet) models.SignalResult {
	pa := analyzePriceAction(candles)
	votes := indicatorVotes(candles, ind)

	var indicatorScore float64
	for _, v := range votes {
		if v.action == models.ActionBuy {
			indicatorScore += v.weight
		} else {
			indicatorScore -= v.weight
		}
	}

	combined := indicatorScore + pa.score

	action := models.ActionHold
	switch {
	case combined > e.cfg.BuyThreshold:
		action = models.ActionBuy
	case combined < e.cfg.SellThreshold:
		action = models.ActionSell
	}

	reasons := make([]string, 0, len(pa.reasons)+len(votes)+1)
	reasons = append(reasons, pa.reasons...)
	for _, v := range votes {
		reasons = append(reasons, v.reason)
	}

	confidence := 0.2
	if len(votes) > 0 {
		agree := 0
		for _, v := range votes {
			if v.action == action || (action == models.ActionHold && v.action == models.ActionHold) {
				agree++
			}
		}
		confidence = math.Min(float64(agree)/float64(len(votes))+0.2, 1.0)
	}

	risk := classifyRisk(candles, ind, pa)
	reasons = append(reasons, fmt.Sprintf("Risk assessed as %s", risk))

	return models.SignalResult{
		Action:     action,
		Confidence: confidence,
		Strength:   math.Min(math.Abs(combined), 100),
		RiskLevel:  risk,
		Reasoning:  reasons,
		Timestamp:  time.Now().UTC(),
	}
}

// indicatorVotes casts one weighted vote per indicator that has enough
// data behind it. Sentinel values (0 averages, neutral RSI on short
// windows) never vote.
func indicatorVotes(candles []models.Candle, ind models.IndicatorSet) []vote {
	votes := make([]vote, 0, 8)
	var price float64
	if len(candles) > 0 {
		price = candles[len(candles)-1].Close
	}

	if len(candles) >= 15 { // RSI period + 1
		if ind.RSI < 30 {
			votes = append(votes, vote{models.ActionBuy, 20, fmt.Sprintf("RSI oversold at %.1f", ind.RSI)})
		} else if ind.RSI > 70 {
			votes = append(votes, vote{models.ActionSell, 20, fmt.Sprintf("RSI overbought at %.1f", ind.RSI)})
		}
	}

	if ind.MACD.Value != 0 {
		if ind.MACD.Histogram > 0 {
			votes = append(votes, vote{models.ActionBuy, 15, "MACD histogram positive"})
		} else if ind.MACD.Histogram < 0 {
			votes = append(votes, vote{models.ActionSell, 15, "MACD histogram negative"})
		}
	}

	if ind.SMA20 > 0 && price > 0 {
		if price > ind.SMA20 {
			votes = append(votes, vote{models.ActionBuy, 10, "Price above SMA20"})
		} else if price < ind.SMA20 {
			votes = append(votes, vote{models.ActionSell, 10, "Price below SMA20"})
		}
	}

	if ind.SMA20 > 0 && ind.SMA50 > 0 {
		if ind.SMA20 > ind.SMA50 {
			votes = append(votes, vote{models.ActionBuy, 10, "SMA20 above SMA50"})
		} else if ind.SMA20 < ind.SMA50 {
			votes = append(votes, vote{models.ActionSell, 10, "SMA20 below SMA50"})
		}
	}

	if ind.EMA12 > 0 && ind.EMA26 > 0 {
		if ind.EMA12 > ind.EMA26 {
			votes = append(votes, vote{models.ActionBuy, 10, "EMA12 above EMA26"})
		} else if ind.EMA12 < ind.EMA26 {
			votes = append(votes, vote{models.ActionSell, 10, "EMA12 below EMA26"})
		}
	}

	if ind.Bollinger.Middle > 0 && price > 0 {
		if price < ind.Bollinger.Lower {
			votes = append(votes, vote{models.ActionBuy, 10, "Price below lower Bollinger band"})
		} else if price > ind.Bollinger.Upper {
			votes = append(votes, vote{models.ActionSell, 10, "Price above upper Bollinger band"})
		}
	}

	if ind.ADX > 25 && ind.EMA12 > 0 && ind.EMA26 > 0 {
		if ind.EMA12 > ind.EMA26 {
			votes = append(votes, vote{models.ActionBuy, 5, fmt.Sprintf("ADX %.1f confirms trend strength", ind.ADX)})
		} else {
			votes = append(votes, vote{models.ActionSell, 5, fmt.Sprintf("ADX %.1f confirms trend strength", ind.ADX)})
		}
	}

	return votes
}

// classifyRisk buckets a weighted score over volatility, RSI extremity
// and ATR-to-resistance distance into LOW/MEDIUM/HIGH at 2 and 4 points.
func classifyRisk(candles []models.Candle, ind models.IndicatorSet, pa priceAction) models.RiskLevel {
	score := 0

	switch {
	case pa.volatility > 3:
		score += 2
	case pa.volatility > 1.5:
		score++
	}

	switch {
	case ind.RSI >= 75 || ind.RSI <= 25:
		score += 2
	case ind.RSI >= 70 || ind.RSI <= 30:
		score++
	}

	if ind.ATR > 0 && len(candles) > 0 {
		price := candles[len(candles)-1].Close
		headroom := pa.resistance - price
		if headroom > 0 {
			ratio := ind.ATR / headroom
			switch {
			case ratio > 1:
				score += 2
			case ratio > 0.5:
				score++
			}
		}
	}

	switch {
	case score >= 4:
		return models.RiskHigh
	case score >= 2:
		return models.RiskMedium
	default:
		return models.RiskLow
	}
}
