// Package orchestrator wires the pipeline stages together: subscription,
// signal generation, persistence, alerting and broadcast.
package orchestrator

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"coinsight/internal/alert"
	"coinsight/internal/domain/models"
	domrepo "coinsight/internal/domain/repository"
	"coinsight/internal/gateway"
	"coinsight/internal/indicator"
	"coinsight/internal/settings"
	"coinsight/internal/signal"
	"coinsight/pkg/logger"
)

const (
	exchangeName    = "binance"
	interBatchPause = 200 * time.Millisecond
)

// Orchestrator runs the end-to-end signal pipeline. Persistence and
// alerting failures are absorbed into the result object; only a failure
// to obtain data at all propagates as an error.
type Orchestrator struct {
	gateway     *gateway.Gateway
	sink        domrepo.SignalSink
	alerts      *alert.Engine
	broadcaster domrepo.Broadcaster
	settings    *settings.Service
	metrics     domrepo.Metrics
	log         *logger.Logger
}

// New creates an orchestrator over the given collaborators.
func New(
	gw *gateway.Gateway,
	sink domrepo.SignalSink,
	alerts *alert.Engine,
	broadcaster domrepo.Broadcaster,
	st *settings.Service,
	metrics domrepo.Metrics,
	log *logger.Logger,
) *Orchestrator {
	return &Orchestrator{
		gateway:     gw,
		sink:        sink,
		alerts:      alerts,
		broadcaster: broadcaster,
		settings:    st,
		metrics:     metrics,
		log:         log.With("component", "orchestrator"),
	}
}

// engineFor builds a signal engine tuned to the current settings snapshot
// and pushes the cooldown setting down to the alert engine.
func (o *Orchestrator) engineFor(ctx context.Context) (*signal.Engine, settings.Settings) {
	st := o.settings.Get(ctx)
	o.alerts.SetCooldown(time.Duration(st.CooldownSeconds) * time.Second)
	return signal.NewEngine(signal.Config{
		BuyThreshold:  st.BuyThreshold,
		SellThreshold: st.SellThreshold,
	}), st
}

// ProcessSignal runs the full pipeline for one (symbol, timeframe).
// A symbol with no cached data yet yields a zero-signal success; only a
// backfill/subscribe failure surfaces as an error.
func (o *Orchestrator) ProcessSignal(ctx context.Context, symbol string, tf domrepo.Timeframe) (models.ProcessResult, error) {
	start := time.Now()
	result := models.ProcessResult{
		Symbol:        symbol,
		Timeframe:     string(tf),
		Notifications: []models.Notification{},
	}

	if err := o.gateway.EnsureSubscription(ctx, symbol, tf); err != nil {
		return result, err
	}

	candles := o.gateway.ReadCandles(symbol, tf, 0)
	if len(candles) == 0 {
		result.ProcessingTimeMs = time.Since(start).Milliseconds()
		return result, nil
	}

	eng, _ := o.engineFor(ctx)
	ind := indicator.Compute(candles)
	sig := eng.Generate(candles, ind)
	result.Signal = &sig
	o.metrics.RecordSignal(symbol, sig.Action)

	result.Saved = o.persist(ctx, symbol, string(tf), candles, ind, sig, start)
	result.Notifications = o.alerts.Evaluate(ctx, symbol, string(tf), sig)
	o.broadcast(ctx, symbol, string(tf), &sig, result.Notifications)

	result.ProcessingTimeMs = time.Since(start).Milliseconds()
	o.metrics.RecordLatency("process_signal", time.Since(start).Seconds())
	return result, nil
}

// ProcessBatch evaluates symbols in groups bounded by the configured
// concurrency, pausing between groups to stay inside upstream rate
// limits. Per-symbol failures are collected, never fatal.
func (o *Orchestrator) ProcessBatch(ctx context.Context, symbols []string, tf domrepo.Timeframe) models.BatchResult {
	_, st := o.engineFor(ctx)
	width := st.BatchConcurrency
	if width < 1 {
		width = 1
	}

	out := models.BatchResult{
		Timeframe: string(tf),
		Results:   make(map[string]models.ProcessResult, len(symbols)),
		Errors:    make(map[string]string),
	}
	var mu sync.Mutex

	for i := 0; i < len(symbols); i += width {
		end := i + width
		if end > len(symbols) {
			end = len(symbols)
		}

		var wg sync.WaitGroup
		for _, symbol := range symbols[i:end] {
			wg.Add(1)
			go func(symbol string) {
				defer wg.Done()
				res, err := o.ProcessSignal(ctx, symbol, tf)
				mu.Lock()
				defer mu.Unlock()
				if err != nil {
					out.Errors[symbol] = err.Error()
					return
				}
				out.Results[symbol] = res
			}(symbol)
		}
		wg.Wait()

		if end < len(symbols) {
			select {
			case <-ctx.Done():
				return out
			case <-time.After(interBatchPause):
			}
		}
	}
	return out
}

// GenerateConsensus computes a multi-timeframe consensus, evaluates
// consensus-level alert rules, and broadcasts anything that fired.
// tfs nil uses the enabled timeframes from settings.
func (o *Orchestrator) GenerateConsensus(ctx context.Context, symbol string, tfs []domrepo.Timeframe) (models.ConsensusResult, []models.Notification, error) {
	eng, st := o.engineFor(ctx)
	if len(tfs) == 0 {
		for _, tf := range st.EnabledTimeframes {
			if domrepo.IsValidTimeframe(domrepo.Timeframe(tf)) {
				tfs = append(tfs, domrepo.Timeframe(tf))
			}
		}
	}

	consensus, err := eng.Consensus(ctx, o.gateway, symbol, tfs)
	if err != nil {
		return models.ConsensusResult{}, nil, err
	}

	notifications := o.alerts.EvaluateConsensus(ctx, consensus)
	for _, n := range notifications {
		o.broadcaster.Notification(ctx, n)
	}
	return consensus, notifications, nil
}

// persist hands the signal to the append-only sink. Failures are logged
// and reported as saved=false, never propagated.
func (o *Orchestrator) persist(ctx context.Context, symbol, tf string, candles []models.Candle, ind models.IndicatorSet, sig models.SignalResult, start time.Time) bool {
	indJSON, err := json.Marshal(ind)
	if err != nil {
		indJSON = []byte("{}")
	}
	rec := models.SignalRecord{
		Symbol:           symbol,
		Exchange:         exchangeName,
		Timeframe:        tf,
		Action:           sig.Action,
		Confidence:       sig.Confidence * 100,
		Strength:         sig.Strength,
		CurrentPrice:     candles[len(candles)-1].Close,
		IndicatorsJSON:   string(indJSON),
		Reasoning:        sig.Reasoning,
		ProcessingTimeMs: time.Since(start).Milliseconds(),
		CreatedAt:        time.Now().UTC(),
	}
	if err := o.sink.Append(ctx, rec); err != nil {
		o.log.Warn("signal persistence failed",
			logger.String("symbol", symbol),
			logger.String("timeframe", tf),
			logger.Error(err))
		o.metrics.RecordError("persist")
		return false
	}
	return true
}

// broadcast emits the signal-update event plus one event per fired
// notification. Fire and forget.
func (o *Orchestrator) broadcast(ctx context.Context, symbol, tf string, sig *models.SignalResult, notifications []models.Notification) {
	o.broadcaster.SignalUpdate(ctx, models.SignalUpdate{
		Symbol:            symbol,
		Timeframe:         tf,
		Signal:            sig,
		NotificationCount: len(notifications),
		Timestamp:         time.Now().UTC(),
	})
	for _, n := range notifications {
		o.broadcaster.Notification(ctx, n)
	}
}
