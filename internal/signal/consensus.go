package signal

import (
	"context"
	"sync"

	"coinsight/internal/domain/models"
	domrepo "coinsight/internal/domain/repository"
	"coinsight/internal/indicator"
)

// CandleSource hands out cached candle windows. Implemented by the
// market data gateway.
type CandleSource interface {
	Candles(ctx context.Context, symbol string, tf domrepo.Timeframe) ([]models.Candle, error)
}

// Consensus evaluates every timeframe concurrently and aggregates the
// results by majority vote. A timeframe that fails or has no data is
// excluded; the call fails only when every timeframe failed.
func (e *Engine) Consensus(ctx context.Context, src CandleSource, symbol string, tfs []domrepo.Timeframe) (models.ConsensusResult, error) {
	if len(tfs) == 0 {
		tfs = domrepo.AllTimeframes()
	}

	type tfSignal struct {
		tf  domrepo.Timeframe
		sig models.SignalResult
		err error
	}

	results := make([]tfSignal, len(tfs))
	var wg sync.WaitGroup
	for i, tf := range tfs {
		wg.Add(1)
		go func(i int, tf domrepo.Timeframe) {
			defer wg.Done()
			candles, err := src.Candles(ctx, symbol, tf)
			if err != nil {
				results[i] = tfSignal{tf: tf, err: err}
				return
			}
			if len(candles) < 2 {
				results[i] = tfSignal{tf: tf, err: models.ErrInsufficientData}
				return
			}
			sig := e.Generate(candles, indicator.Compute(candles))
			results[i] = tfSignal{tf: tf, sig: sig}
		}(i, tf)
	}
	wg.Wait()

	per := make(map[string]models.SignalResult, len(tfs))
	for _, r := range results {
		if r.err != nil {
			continue
		}
		per[string(r.tf)] = r.sig
	}
	if len(per) == 0 {
		return models.ConsensusResult{}, models.ErrAllTimeframesFailed
	}

	counts := map[models.Action]int{}
	for _, sig := range per {
		counts[sig.Action]++
	}

	// Majority vote; ties keep HOLD because it is evaluated first.
	overall := models.ActionHold
	best := counts[models.ActionHold]
	if counts[models.ActionBuy] > best {
		overall = models.ActionBuy
		best = counts[models.ActionBuy]
	}
	if counts[models.ActionSell] > best {
		overall = models.ActionSell
		best = counts[models.ActionSell]
	}

	maxVotes := 0
	for _, n := range counts {
		if n > maxVotes {
			maxVotes = n
		}
	}

	var confSum float64
	agreeing := 0
	for _, sig := range per {
		if sig.Action == overall {
			confSum += sig.Confidence
			agreeing++
		}
	}
	overallConf := 0.0
	if agreeing > 0 {
		overallConf = confSum / float64(agreeing)
	}

	return models.ConsensusResult{
		Symbol:            symbol,
		PerTimeframe:      per,
		OverallAction:     overall,
		OverallConfidence: overallConf,
		AgreementRatio:    float64(maxVotes) / float64(len(per)),
	}, nil
}
