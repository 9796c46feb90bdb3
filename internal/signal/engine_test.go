package signal

import (
	"strings"
	"testing"
	"time"

	"coinsight/internal/domain/models"
	"coinsight/internal/indicator"
)

func candlesFromCloses(closes ...float64) []models.Candle {
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]models.Candle, len(closes))
	for i, c := range closes {
		out[i] = models.Candle{
			OpenTime: base.Add(time.Duration(i) * time.Hour),
			Open:     c,
			High:     c,
			Low:      c,
			Close:    c,
			Volume:   1,
		}
	}
	return out
}

func generate(t *testing.T, closes ...float64) models.SignalResult {
	t.Helper()
	e := NewEngine(DefaultConfig())
	candles := candlesFromCloses(closes...)
	return e.Generate(candles, indicator.Compute(candles))
}

func hasReason(sig models.SignalResult, substr string) bool {
	for _, r := range sig.Reasoning {
		if strings.Contains(r, substr) {
			return true
		}
	}
	return false
}

func TestGenerateBuyOnUptrend(t *testing.T) {
	sig := generate(t, 100, 101, 102)
	if sig.Action != models.ActionBuy {
		t.Fatalf("action = %s, want BUY (reasons: %v)", sig.Action, sig.Reasoning)
	}
	if !hasReason(sig, "sustained upward trend") {
		t.Fatalf("missing trend reasoning: %v", sig.Reasoning)
	}
}

func TestGenerateSellOnDowntrend(t *testing.T) {
	sig := generate(t, 102, 101, 100)
	if sig.Action != models.ActionSell {
		t.Fatalf("action = %s, want SELL (reasons: %v)", sig.Action, sig.Reasoning)
	}
	if !hasReason(sig, "sustained downward trend") {
		t.Fatalf("missing trend reasoning: %v", sig.Reasoning)
	}
}

func TestGenerateHoldOnSideways(t *testing.T) {
	sig := generate(t, 100, 101, 100)
	if sig.Action != models.ActionHold {
		t.Fatalf("action = %s, want HOLD (reasons: %v)", sig.Action, sig.Reasoning)
	}
}

func TestGenerateNeverFails(t *testing.T) {
	e := NewEngine(DefaultConfig())

	sig := e.Generate(nil, models.IndicatorSet{})
	if sig.Action != models.ActionHold {
		t.Fatalf("empty window action = %s, want HOLD", sig.Action)
	}
	if sig.Confidence != 0.2 {
		t.Fatalf("empty window confidence = %v, want 0.2", sig.Confidence)
	}

	one := candlesFromCloses(100)
	sig = e.Generate(one, indicator.Compute(one))
	if sig.Action != models.ActionHold {
		t.Fatalf("single candle action = %s, want HOLD", sig.Action)
	}
}

func TestGenerateBounds(t *testing.T) {
	sig := generate(t, 100, 120, 150, 200, 300, 500)
	if sig.Confidence < 0 || sig.Confidence > 1 {
		t.Fatalf("confidence out of bounds: %v", sig.Confidence)
	}
	if sig.Strength < 0 || sig.Strength > 100 {
		t.Fatalf("strength out of bounds: %v", sig.Strength)
	}
	if sig.RiskLevel == "" {
		t.Fatalf("risk level must always be set")
	}
}

func TestNewEngineZeroConfigUsesDefaults(t *testing.T) {
	e := NewEngine(Config{})
	if e.cfg != DefaultConfig() {
		t.Fatalf("zero config not replaced with defaults: %+v", e.cfg)
	}
}
