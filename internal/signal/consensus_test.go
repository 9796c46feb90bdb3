package signal

import (
	"context"
	"errors"
	"testing"

	"coinsight/internal/domain/models"
	domrepo "coinsight/internal/domain/repository"
)

// fakeSource serves a fixed window per timeframe.
type fakeSource struct {
	windows map[domrepo.Timeframe][]models.Candle
	errs    map[domrepo.Timeframe]error
}

func (f *fakeSource) Candles(_ context.Context, _ string, tf domrepo.Timeframe) ([]models.Candle, error) {
	if err, ok := f.errs[tf]; ok {
		return nil, err
	}
	return f.windows[tf], nil
}

func TestConsensusMajority(t *testing.T) {
	up := candlesFromCloses(100, 101, 102)
	down := candlesFromCloses(102, 101, 100)
	src := &fakeSource{windows: map[domrepo.Timeframe][]models.Candle{
		domrepo.TF5m:  up,
		domrepo.TF15m: up,
		domrepo.TF1h:  down,
	}}

	e := NewEngine(DefaultConfig())
	res, err := e.Consensus(context.Background(), src, "BTCUSDT", []domrepo.Timeframe{domrepo.TF5m, domrepo.TF15m, domrepo.TF1h})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.OverallAction != models.ActionBuy {
		t.Fatalf("overall = %s, want BUY", res.OverallAction)
	}
	if len(res.PerTimeframe) != 3 {
		t.Fatalf("per-timeframe count = %d, want 3", len(res.PerTimeframe))
	}
	want := 2.0 / 3.0
	if res.AgreementRatio != want {
		t.Fatalf("agreement ratio = %v, want %v", res.AgreementRatio, want)
	}
	if res.OverallConfidence <= 0 || res.OverallConfidence > 1 {
		t.Fatalf("overall confidence out of bounds: %v", res.OverallConfidence)
	}
}

func TestConsensusExcludesFailedTimeframes(t *testing.T) {
	up := candlesFromCloses(100, 101, 102)
	src := &fakeSource{
		windows: map[domrepo.Timeframe][]models.Candle{
			domrepo.TF1h: up,
		},
		errs: map[domrepo.Timeframe]error{
			domrepo.TF4h: errors.New("stream down"),
		},
	}

	e := NewEngine(DefaultConfig())
	res, err := e.Consensus(context.Background(), src, "BTCUSDT", []domrepo.Timeframe{domrepo.TF1h, domrepo.TF4h, domrepo.TF1d})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// 4h errored and 1d has no data; only 1h counts
	if len(res.PerTimeframe) != 1 {
		t.Fatalf("per-timeframe count = %d, want 1", len(res.PerTimeframe))
	}
	if res.AgreementRatio != 1 {
		t.Fatalf("agreement ratio = %v, want 1", res.AgreementRatio)
	}
}

func TestConsensusAllTimeframesFailed(t *testing.T) {
	src := &fakeSource{errs: map[domrepo.Timeframe]error{
		domrepo.TF1h: errors.New("stream down"),
		domrepo.TF4h: errors.New("stream down"),
	}}

	e := NewEngine(DefaultConfig())
	_, err := e.Consensus(context.Background(), src, "BTCUSDT", []domrepo.Timeframe{domrepo.TF1h, domrepo.TF4h})
	if !errors.Is(err, models.ErrAllTimeframesFailed) {
		t.Fatalf("err = %v, want ErrAllTimeframesFailed", err)
	}
}

func TestConsensusTieKeepsHold(t *testing.T) {
	up := candlesFromCloses(100, 101, 102)
	down := candlesFromCloses(102, 101, 100)
	src := &fakeSource{windows: map[domrepo.Timeframe][]models.Candle{
		domrepo.TF1h: up,
		domrepo.TF4h: down,
	}}

	e := NewEngine(DefaultConfig())
	res, err := e.Consensus(context.Background(), src, "ETHUSDT", []domrepo.Timeframe{domrepo.TF1h, domrepo.TF4h})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.OverallAction != models.ActionHold {
		t.Fatalf("tied vote overall = %s, want HOLD", res.OverallAction)
	}
	if res.OverallConfidence != 0 {
		t.Fatalf("no agreeing timeframe, confidence = %v, want 0", res.OverallConfidence)
	}
}
