package signal

import (
	"fmt"
	"math"

	"coinsight/internal/domain/models"
)

const (
	trendWindow      = 5
	momentumWindow   = 10
	extremaWindow    = 20
	volatilityWindow = 20
)

// priceAction is the non-indicator half of a signal: trend direction,
// momentum, support/resistance distances and realized volatility taken
// straight from the candle window.
type priceAction struct {
	score      float64
	reasons    []string
	volatility float64 // realized, in percent
	support    float64
	resistance float64
}

// analyzePriceAction scores recent price behaviour. Works on any window
// length >= 2; shorter lookbacks shrink to what is available.
func analyzePriceAction(candles []models.Candle) priceAction {
	var pa priceAction
	if len(candles) < 2 {
		return pa
	}

	closes := make([]float64, len(candles))
	for i, c := range candles {
		closes[i] = c.Close
	}
	last := closes[len(closes)-1]

	// Trend: direction of the most recent consecutive moves.
	moves := min(trendWindow, len(closes)-1)
	ups, downs := 0, 0
	for i := len(closes) - moves; i < len(closes); i++ {
		switch {
		case closes[i] > closes[i-1]:
			ups++
		case closes[i] < closes[i-1]:
			downs++
		}
	}
	switch {
	case ups == moves:
		pa.score += 20
		pa.reasons = append(pa.reasons, "Price action shows a sustained upward trend")
	case downs == moves:
		pa.score -= 20
		pa.reasons = append(pa.reasons, "Price action shows a sustained downward trend")
	default:
		pa.reasons = append(pa.reasons, "Price action is sideways")
	}

	// Momentum over the 10-period window (or what exists of it).
	span := min(momentumWindow, len(closes)-1)
	base := closes[len(closes)-1-span]
	if base != 0 {
		pct := (last - base) / base * 100
		pa.score += clamp(pct*10, -25, 25)
		if math.Abs(pct) >= 0.5 {
			pa.reasons = append(pa.reasons, fmt.Sprintf("Momentum %+.2f%% over %d periods", pct, span))
		}
	}

	// Support and resistance from recent extrema.
	ext := min(extremaWindow, len(candles))
	pa.support = candles[len(candles)-ext].Low
	pa.resistance = candles[len(candles)-ext].High
	for _, c := range candles[len(candles)-ext:] {
		if c.Low < pa.support {
			pa.support = c.Low
		}
		if c.High > pa.resistance {
			pa.resistance = c.High
		}
	}
	if pa.resistance > 0 && (pa.resistance-last)/pa.resistance < 0.01 {
		pa.score -= 5
		pa.reasons = append(pa.reasons, "Price is testing resistance")
	} else if pa.support > 0 && (last-pa.support)/pa.support < 0.01 {
		pa.score += 5
		pa.reasons = append(pa.reasons, "Price is holding support")
	}

	pa.volatility = realizedVolatility(closes)
	return pa
}

// realizedVolatility is the standard deviation of recent percent returns.
func realizedVolatility(closes []float64) float64 {
	n := min(volatilityWindow, len(closes)-1)
	if n < 2 {
		return 0
	}
	rets := make([]float64, 0, n)
	for i := len(closes) - n; i < len(closes); i++ {
		if closes[i-1] == 0 {
			continue
		}
		rets = append(rets, (closes[i]-closes[i-1])/closes[i-1]*100)
	}
	if len(rets) < 2 {
		return 0
	}
	var mean float64
	for _, r := range rets {
		mean += r
	}
	mean /= float64(len(rets))
	var variance float64
	for _, r := range rets {
		d := r - mean
		variance += d * d
	}
	return math.Sqrt(variance / float64(len(rets)))
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
