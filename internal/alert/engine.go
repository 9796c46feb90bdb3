// Package alert evaluates configurable rules against signals and
// consensus results, emitting notification events with per-rule,
// per-symbol cooldown.
package alert

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"coinsight/internal/domain/models"
	domrepo "coinsight/internal/domain/repository"
	"coinsight/pkg/logger"
)

// DefaultCooldown is the minimum gap between two notifications for the
// same (rule, symbol) pair.
const DefaultCooldown = 5 * time.Minute

// Engine evaluates alert rules. Cooldown state lives in memory only and
// resets on process restart.
type Engine struct {
	rules    domrepo.RuleStore
	metrics  domrepo.Metrics
	log      *logger.Logger
	cooldown time.Duration

	mu        sync.Mutex
	lastFired map[string]time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithCooldown overrides the default cooldown window.
func WithCooldown(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.cooldown = d
		}
	}
}

// New creates an alert engine reading rule snapshots from rules.
func New(rules domrepo.RuleStore, metrics domrepo.Metrics, log *logger.Logger, opts ...Option) *Engine {
	e := &Engine{
		rules:     rules,
		metrics:   metrics,
		log:       log.With("component", "alert"),
		cooldown:  DefaultCooldown,
		lastFired: make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// SetCooldown adjusts the cooldown window at runtime. Settings refreshes
// call this when the persisted value changes.
func (e *Engine) SetCooldown(d time.Duration) {
	if d <= 0 {
		return
	}
	e.mu.Lock()
	e.cooldown = d
	e.mu.Unlock()
}

// Evaluate checks a single-timeframe signal against all active rules and
// returns the notifications that fired. A rule store failure yields an
// empty list, never an error: alerting must not abort signal delivery.
func (e *Engine) Evaluate(ctx context.Context, symbol, timeframe string, sig models.SignalResult) []models.Notification {
	rules, err := e.rules.ListActive(ctx)
	if err != nil {
		e.log.Warn("rule snapshot unavailable, skipping alert evaluation",
			logger.String("symbol", symbol), logger.Error(err))
		e.metrics.RecordError("rule_store")
		return nil
	}

	confidence := sig.Confidence * 100

	var fired []models.Notification
	for _, rule := range rules {
		if !ruleMatchesSignal(rule, sig, confidence) {
			continue
		}
		key := cooldownKey(rule.ID, symbol)
		if !e.tryFire(key) {
			continue
		}
		n := e.buildNotification(rule, symbol, timeframe, sig.Action, confidence, sig.Strength)
		fired = append(fired, n)
		e.metrics.RecordNotification(n.Priority)
		e.log.Info("alert fired",
			logger.Int64("rule_id", rule.ID),
			logger.String("symbol", symbol),
			logger.String("action", string(sig.Action)))
	}
	return fired
}

// EvaluateConsensus checks a multi-timeframe consensus against all active
// rules. Cooldown keys use a separate keyspace so a consensus alert does
// not suppress a single-timeframe alert for the same rule and symbol.
func (e *Engine) EvaluateConsensus(ctx context.Context, consensus models.ConsensusResult) []models.Notification {
	rules, err := e.rules.ListActive(ctx)
	if err != nil {
		e.log.Warn("rule snapshot unavailable, skipping consensus evaluation",
			logger.String("symbol", consensus.Symbol), logger.Error(err))
		e.metrics.RecordError("rule_store")
		return nil
	}

	confidence := consensus.OverallConfidence * 100
	agreeing := agreementCount(consensus)

	var fired []models.Notification
	for _, rule := range rules {
		if !ruleMatchesConsensus(rule, consensus, confidence, agreeing) {
			continue
		}
		key := "c:" + cooldownKey(rule.ID, consensus.Symbol)
		if !e.tryFire(key) {
			continue
		}
		n := e.buildNotification(rule, consensus.Symbol, "consensus", consensus.OverallAction, confidence, 0)
		n.Message = fmt.Sprintf("%s consensus %s across %d timeframes (%.0f%% confidence)",
			consensus.Symbol, consensus.OverallAction, agreeing, confidence)
		fired = append(fired, n)
		e.metrics.RecordNotification(n.Priority)
		e.log.Info("consensus alert fired",
			logger.Int64("rule_id", rule.ID),
			logger.String("symbol", consensus.Symbol),
			logger.String("action", string(consensus.OverallAction)))
	}
	return fired
}

// Reset clears all cooldown state.
func (e *Engine) Reset() {
	e.mu.Lock()
	e.lastFired = make(map[string]time.Time)
	e.mu.Unlock()
}

// tryFire reports whether key is outside its cooldown window and, if so,
// marks it as fired now. At most one caller wins per window.
func (e *Engine) tryFire(key string) bool {
	now := time.Now()
	e.mu.Lock()
	defer e.mu.Unlock()
	if last, ok := e.lastFired[key]; ok && now.Sub(last) < e.cooldown {
		return false
	}
	e.lastFired[key] = now
	return true
}

func (e *Engine) buildNotification(rule models.AlertRule, symbol, timeframe string, action models.Action, confidence, strength float64) models.Notification {
	priority := rule.Priority
	if priority == "" {
		priority = "medium"
	}
	title := rule.Name
	if title == "" {
		title = fmt.Sprintf("%s signal on %s", action, symbol)
	}
	return models.Notification{
		ID:         fmt.Sprintf("ntf-%d", time.Now().UnixNano()),
		Title:      title,
		Message:    fmt.Sprintf("%s %s on %s (%.0f%% confidence, strength %.0f)", symbol, action, timeframe, confidence, strength),
		Type:       strings.ToLower(string(action)),
		Priority:   priority,
		Symbol:     symbol,
		Action:     action,
		Confidence: confidence,
		Strength:   strength,
		Timeframe:  timeframe,
		RuleID:     rule.ID,
		CreatedAt:  time.Now().UTC(),
	}
}

// ruleMatchesSignal applies the rule predicate. An absent threshold means
// "don't care". confidence is on the 0-100 scale.
func ruleMatchesSignal(rule models.AlertRule, sig models.SignalResult, confidence float64) bool {
	if rule.MinConfidence != nil && confidence < *rule.MinConfidence {
		return false
	}
	if rule.MinStrength != nil && sig.Strength < *rule.MinStrength {
		return false
	}
	if rule.RequiredAction != nil && sig.Action != *rule.RequiredAction {
		return false
	}
	// Agreement thresholds only apply to consensus evaluations.
	if rule.RequiredAgreement != nil {
		return false
	}
	return true
}

func ruleMatchesConsensus(rule models.AlertRule, consensus models.ConsensusResult, confidence float64, agreeing int) bool {
	if rule.MinConfidence != nil && confidence < *rule.MinConfidence {
		return false
	}
	if rule.RequiredAction != nil && consensus.OverallAction != *rule.RequiredAction {
		return false
	}
	if rule.RequiredAgreement != nil && agreeing < *rule.RequiredAgreement {
		return false
	}
	return true
}

// agreementCount counts timeframes that voted with the overall action.
func agreementCount(consensus models.ConsensusResult) int {
	n := 0
	for _, sig := range consensus.PerTimeframe {
		if sig.Action == consensus.OverallAction {
			n++
		}
	}
	return n
}

func cooldownKey(ruleID int64, symbol string) string {
	return fmt.Sprintf("%d:%s", ruleID, symbol)
}
