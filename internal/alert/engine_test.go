package alert

import (
	"context"
	"errors"
	"testing"
	"time"

	"coinsight/internal/domain/models"
	"coinsight/pkg/logger"
)

type fakeRuleStore struct {
	rules []models.AlertRule
	err   error
}

func (f *fakeRuleStore) ListActive(context.Context) ([]models.AlertRule, error) {
	return f.rules, f.err
}
func (f *fakeRuleStore) List(context.Context) ([]models.AlertRule, error) { return f.rules, f.err }
func (f *fakeRuleStore) Get(context.Context, int64) (models.AlertRule, error) {
	return models.AlertRule{}, errors.New("not implemented")
}
func (f *fakeRuleStore) Put(_ context.Context, r models.AlertRule) (models.AlertRule, error) {
	return r, nil
}
func (f *fakeRuleStore) Delete(context.Context, int64) error { return nil }

type noopMetrics struct{}

func (noopMetrics) RecordSignal(string, models.Action) {}
func (noopMetrics) RecordError(string)                 {}
func (noopMetrics) RecordLastPrice(string, float64)    {}
func (noopMetrics) RecordLatency(string, float64)      {}
func (noopMetrics) RecordBufferDepth(string, int)      {}
func (noopMetrics) RecordReconnect(string)             {}
func (noopMetrics) RecordNotification(string)          {}

func f64(v float64) *float64 { return &v }

func buySignal(confidence float64) models.SignalResult {
	return models.SignalResult{
		Action:     models.ActionBuy,
		Confidence: confidence,
		Strength:   60,
		RiskLevel:  models.RiskMedium,
		Timestamp:  time.Now().UTC(),
	}
}

func TestEvaluateConfidenceThreshold(t *testing.T) {
	store := &fakeRuleStore{rules: []models.AlertRule{
		{ID: 1, Name: "high confidence", IsActive: true, MinConfidence: f64(85)},
	}}
	e := New(store, noopMetrics{}, logger.Nop())

	if got := e.Evaluate(context.Background(), "BTCUSDT", "1h", buySignal(0.80)); len(got) != 0 {
		t.Fatalf("80%% confidence fired %d notifications, want 0", len(got))
	}
	if got := e.Evaluate(context.Background(), "BTCUSDT", "1h", buySignal(0.86)); len(got) != 1 {
		t.Fatalf("86%% confidence fired %d notifications, want 1", len(got))
	}
}

func TestEvaluateCooldown(t *testing.T) {
	store := &fakeRuleStore{rules: []models.AlertRule{
		{ID: 1, Name: "any buy", IsActive: true},
	}}
	e := New(store, noopMetrics{}, logger.Nop(), WithCooldown(50*time.Millisecond))

	sig := buySignal(0.9)
	if got := e.Evaluate(context.Background(), "BTCUSDT", "1h", sig); len(got) != 1 {
		t.Fatalf("first evaluation fired %d, want 1", len(got))
	}
	if got := e.Evaluate(context.Background(), "BTCUSDT", "1h", sig); len(got) != 0 {
		t.Fatalf("evaluation inside cooldown fired %d, want 0", len(got))
	}

	// a different symbol has its own cooldown key
	if got := e.Evaluate(context.Background(), "ETHUSDT", "1h", sig); len(got) != 1 {
		t.Fatalf("other symbol fired %d, want 1", len(got))
	}

	time.Sleep(60 * time.Millisecond)
	if got := e.Evaluate(context.Background(), "BTCUSDT", "1h", sig); len(got) != 1 {
		t.Fatalf("evaluation after cooldown fired %d, want 1", len(got))
	}
}

func TestEvaluateRuleStoreFailure(t *testing.T) {
	store := &fakeRuleStore{err: errors.New("redis down")}
	e := New(store, noopMetrics{}, logger.Nop())

	if got := e.Evaluate(context.Background(), "BTCUSDT", "1h", buySignal(0.9)); got != nil {
		t.Fatalf("store failure must yield nil, got %v", got)
	}
}

func TestEvaluateActionAndStrengthPredicates(t *testing.T) {
	sell := models.ActionSell
	store := &fakeRuleStore{rules: []models.AlertRule{
		{ID: 1, Name: "sell only", IsActive: true, RequiredAction: &sell},
		{ID: 2, Name: "strong only", IsActive: true, MinStrength: f64(80)},
	}}
	e := New(store, noopMetrics{}, logger.Nop())

	if got := e.Evaluate(context.Background(), "BTCUSDT", "1h", buySignal(0.9)); len(got) != 0 {
		t.Fatalf("BUY with strength 60 fired %d, want 0", len(got))
	}
}

func TestEvaluateSkipsAgreementRules(t *testing.T) {
	agree := 3
	store := &fakeRuleStore{rules: []models.AlertRule{
		{ID: 1, Name: "consensus rule", IsActive: true, RequiredAgreement: &agree},
	}}
	e := New(store, noopMetrics{}, logger.Nop())

	if got := e.Evaluate(context.Background(), "BTCUSDT", "1h", buySignal(0.99)); len(got) != 0 {
		t.Fatalf("agreement rule matched a single-timeframe signal")
	}
}

func TestEvaluateConsensus(t *testing.T) {
	agree := 2
	store := &fakeRuleStore{rules: []models.AlertRule{
		{ID: 1, Name: "broad agreement", IsActive: true, RequiredAgreement: &agree},
	}}
	e := New(store, noopMetrics{}, logger.Nop())

	consensus := models.ConsensusResult{
		Symbol: "BTCUSDT",
		PerTimeframe: map[string]models.SignalResult{
			"1h": {Action: models.ActionBuy, Confidence: 0.8},
			"4h": {Action: models.ActionBuy, Confidence: 0.6},
			"1d": {Action: models.ActionSell, Confidence: 0.9},
		},
		OverallAction:     models.ActionBuy,
		OverallConfidence: 0.7,
		AgreementRatio:    2.0 / 3.0,
	}

	got := e.EvaluateConsensus(context.Background(), consensus)
	if len(got) != 1 {
		t.Fatalf("fired %d notifications, want 1", len(got))
	}
	n := got[0]
	if n.Timeframe != "consensus" {
		t.Fatalf("timeframe = %q, want consensus", n.Timeframe)
	}
	if n.Confidence != 70 {
		t.Fatalf("confidence = %v, want 70", n.Confidence)
	}

	// consensus and single-timeframe evaluations use separate cooldown keys
	single := &fakeRuleStore{rules: []models.AlertRule{{ID: 1, Name: "broad agreement", IsActive: true}}}
	e2 := New(single, noopMetrics{}, logger.Nop())
	if got := e2.EvaluateConsensus(context.Background(), consensus); len(got) != 1 {
		t.Fatalf("consensus did not fire")
	}
	if got := e2.Evaluate(context.Background(), "BTCUSDT", "1h", buySignal(0.9)); len(got) != 1 {
		t.Fatalf("consensus cooldown leaked into single-timeframe keyspace")
	}
}

func TestEvaluateConsensusAgreementTooLow(t *testing.T) {
	agree := 3
	store := &fakeRuleStore{rules: []models.AlertRule{
		{ID: 1, Name: "broad agreement", IsActive: true, RequiredAgreement: &agree},
	}}
	e := New(store, noopMetrics{}, logger.Nop())

	consensus := models.ConsensusResult{
		Symbol: "BTCUSDT",
		PerTimeframe: map[string]models.SignalResult{
			"1h": {Action: models.ActionBuy},
			"4h": {Action: models.ActionSell},
		},
		OverallAction: models.ActionBuy,
	}
	if got := e.EvaluateConsensus(context.Background(), consensus); len(got) != 0 {
		t.Fatalf("fired with 1 agreeing timeframe, want 0")
	}
}

func TestReset(t *testing.T) {
	store := &fakeRuleStore{rules: []models.AlertRule{{ID: 1, IsActive: true}}}
	e := New(store, noopMetrics{}, logger.Nop())

	sig := buySignal(0.9)
	if got := e.Evaluate(context.Background(), "BTCUSDT", "1h", sig); len(got) != 1 {
		t.Fatalf("first evaluation did not fire")
	}
	e.Reset()
	if got := e.Evaluate(context.Background(), "BTCUSDT", "1h", sig); len(got) != 1 {
		t.Fatalf("evaluation after Reset did not fire")
	}
}
