// Package indicator computes technical indicators from candle windows.
// All functions are pure and never fail: when a window is too short they
// return a documented sentinel (0 for averages, 50 for RSI) instead of
// NaN or an error.
package indicator

import (
	"math"

	"coinsight/internal/domain/models"
)

const (
	rsiPeriod       = 14
	bollingerPeriod = 20
	bollingerWidth  = 2.0
	atrPeriod       = 14
	adxPeriod       = 14
)

// SMA returns the simple moving average of the last period closes.
// Returns 0 when fewer than period values are available.
func SMA(closes []float64, period int) float64 {
	if period <= 0 || len(closes) < period {
		return 0
	}
	var sum float64
	for _, c := range closes[len(closes)-period:] {
		sum += c
	}
	return sum / float64(period)
}

// EMA returns the exponential moving average of closes, seeded with the
// SMA of the first period values. Returns 0 when fewer than period values
// are available.
func EMA(closes []float64, period int) float64 {
	if period <= 0 || len(closes) < period {
		return 0
	}
	mult := 2.0 / float64(period+1)
	ema := SMA(closes[:period], period)
	for _, c := range closes[period:] {
		ema = (c-ema)*mult + ema
	}
	return ema
}

// RSI returns the Wilder relative strength index over the last period
// deltas. Returns 50 (neutral) when fewer than period+1 closes are
// available, and 100 when the average loss is exactly zero.
func RSI(closes []float64, period int) float64 {
	if period <= 0 || len(closes) < period+1 {
		return 50
	}

	var avgGain, avgLoss float64
	for i := 1; i <= period; i++ {
		change := closes[i] - closes[i-1]
		if change >= 0 {
			avgGain += change
		} else {
			avgLoss -= change
		}
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)

	// Wilder smoothing over the remaining deltas.
	for i := period + 1; i < len(closes); i++ {
		change := closes[i] - closes[i-1]
		gain, loss := 0.0, 0.0
		if change >= 0 {
			gain = change
		} else {
			loss = -change
		}
		avgGain = (avgGain*float64(period-1) + gain) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + loss) / float64(period)
	}

	if avgLoss == 0 {
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs)
}

// MACDLine returns EMA(12)-EMA(26) and a signal line derived from it.
// The signal line is a single EMA(9) update step over the current MACD
// value rather than an EMA over the historical MACD series; the
// simplification is intentional and kept for parity with the dashboard.
func MACDLine(closes []float64) models.MACD {
	ema12 := EMA(closes, 12)
	ema26 := EMA(closes, 26)
	if ema12 == 0 || ema26 == 0 {
		return models.MACD{}
	}
	value := ema12 - ema26
	signal := value * (2.0 / 10.0)
	return models.MACD{
		Value:     value,
		Signal:    signal,
		Histogram: value - signal,
	}
}

// BollingerBands returns the 20-period bands at 2 standard deviations.
// All levels are 0 when fewer than 20 closes are available.
func BollingerBands(closes []float64) models.Bollinger {
	if len(closes) < bollingerPeriod {
		return models.Bollinger{}
	}
	middle := SMA(closes, bollingerPeriod)
	window := closes[len(closes)-bollingerPeriod:]
	var variance float64
	for _, c := range window {
		d := c - middle
		variance += d * d
	}
	sd := math.Sqrt(variance / float64(bollingerPeriod))
	return models.Bollinger{
		Upper:  middle + bollingerWidth*sd,
		Middle: middle,
		Lower:  middle - bollingerWidth*sd,
	}
}

// ATR returns the Wilder-smoothed average true range.
// Returns 0 when fewer than period+1 candles are available.
func ATR(candles []models.Candle, period int) float64 {
	if period <= 0 || len(candles) < period+1 {
		return 0
	}
	trs := trueRanges(candles)
	atr := 0.0
	for _, tr := range trs[:period] {
		atr += tr
	}
	atr /= float64(period)
	for _, tr := range trs[period:] {
		atr = (atr*float64(period-1) + tr) / float64(period)
	}
	return atr
}

// ADX returns the Wilder average directional index. Returns 0 when the
// window is too short or any denominator degenerates to 0/NaN.
func ADX(candles []models.Candle, period int) float64 {
	if period <= 0 || len(candles) < 2*period+1 {
		return 0
	}

	trs := trueRanges(candles)
	plusDM := make([]float64, len(trs))
	minusDM := make([]float64, len(trs))
	for i := 1; i < len(candles); i++ {
		up := candles[i].High - candles[i-1].High
		down := candles[i-1].Low - candles[i].Low
		if up > down && up > 0 {
			plusDM[i-1] = up
		}
		if down > up && down > 0 {
			minusDM[i-1] = down
		}
	}

	smTR := wilderSum(trs, period)
	smPlus := wilderSum(plusDM, period)
	smMinus := wilderSum(minusDM, period)

	dxs := make([]float64, 0, len(smTR))
	for i := range smTR {
		if smTR[i] == 0 {
			dxs = append(dxs, 0)
			continue
		}
		pDI := 100 * smPlus[i] / smTR[i]
		mDI := 100 * smMinus[i] / smTR[i]
		sum := pDI + mDI
		if sum == 0 || math.IsNaN(sum) {
			dxs = append(dxs, 0)
			continue
		}
		dxs = append(dxs, 100*math.Abs(pDI-mDI)/sum)
	}
	if len(dxs) < period {
		return 0
	}

	adx := 0.0
	for _, dx := range dxs[:period] {
		adx += dx
	}
	adx /= float64(period)
	for _, dx := range dxs[period:] {
		adx = (adx*float64(period-1) + dx) / float64(period)
	}
	if math.IsNaN(adx) {
		return 0
	}
	return adx
}

// Compute derives the full indicator set from one candle window.
func Compute(candles []models.Candle) models.IndicatorSet {
	closes := Closes(candles)
	set := models.IndicatorSet{
		RSI:       RSI(closes, rsiPeriod),
		MACD:      MACDLine(closes),
		Bollinger: BollingerBands(closes),
		SMA20:     SMA(closes, 20),
		SMA50:     SMA(closes, 50),
		EMA12:     EMA(closes, 12),
		EMA26:     EMA(closes, 26),
		ADX:       ADX(candles, adxPeriod),
		ATR:       ATR(candles, atrPeriod),
	}
	if len(candles) > 0 {
		set.Volume = candles[len(candles)-1].Volume
	}
	return set
}

// Closes extracts the close-price series from candles.
func Closes(candles []models.Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.Close
	}
	return out
}

// trueRanges returns the TR series; element i covers candles[i] → candles[i+1].
func trueRanges(candles []models.Candle) []float64 {
	trs := make([]float64, len(candles)-1)
	for i := 1; i < len(candles); i++ {
		hl := candles[i].High - candles[i].Low
		hc := math.Abs(candles[i].High - candles[i-1].Close)
		lc := math.Abs(candles[i].Low - candles[i-1].Close)
		trs[i-1] = math.Max(hl, math.Max(hc, lc))
	}
	return trs
}

// wilderSum smooths xs with period-length Wilder accumulation, returning
// one value per step after the initial window.
func wilderSum(xs []float64, period int) []float64 {
	if len(xs) < period {
		return nil
	}
	out := make([]float64, 0, len(xs)-period+1)
	var sum float64
	for _, x := range xs[:period] {
		sum += x
	}
	out = append(out, sum)
	for _, x := range xs[period:] {
		sum = sum - sum/float64(period) + x
		out = append(out, sum)
	}
	return out
}
