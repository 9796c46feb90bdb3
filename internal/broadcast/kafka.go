// Package broadcast publishes real-time pipeline events to Kafka for the
// dashboard and notification consumers. Delivery is fire-and-forget.
package broadcast

import (
	"context"

	"coinsight/internal/domain/models"
	domrepo "coinsight/internal/domain/repository"
	"coinsight/pkg/kafka"
	"coinsight/pkg/logger"
)

// Default topic names, overridable through config.
const (
	DefaultSignalTopic       = "coinsight.signal-updates"
	DefaultNotificationTopic = "coinsight.notifications"
)

// KafkaBroadcaster emits signal-update and notification events. Publish
// errors are logged and counted, never returned: broadcast must not
// affect the pipeline outcome.
type KafkaBroadcaster struct {
	producer          *kafka.Producer
	signalTopic       string
	notificationTopic string
	metrics           domrepo.Metrics
	log               *logger.Logger
}

// Option configures a KafkaBroadcaster.
type Option func(*KafkaBroadcaster)

// WithTopics overrides the default topic names. Empty strings keep the
// defaults.
func WithTopics(signalTopic, notificationTopic string) Option {
	return func(b *KafkaBroadcaster) {
		if signalTopic != "" {
			b.signalTopic = signalTopic
		}
		if notificationTopic != "" {
			b.notificationTopic = notificationTopic
		}
	}
}

// New creates a broadcaster over an existing producer.
func New(producer *kafka.Producer, metrics domrepo.Metrics, log *logger.Logger, opts ...Option) *KafkaBroadcaster {
	b := &KafkaBroadcaster{
		producer:          producer,
		signalTopic:       DefaultSignalTopic,
		notificationTopic: DefaultNotificationTopic,
		metrics:           metrics,
		log:               log.With("component", "broadcast"),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// SignalUpdate publishes a signal-update event keyed by symbol so
// consumers see per-symbol ordering.
func (b *KafkaBroadcaster) SignalUpdate(ctx context.Context, ev models.SignalUpdate) {
	if err := b.producer.Publish(ctx, b.signalTopic, []byte(ev.Symbol), ev); err != nil {
		b.log.Warn("signal-update publish failed",
			logger.String("symbol", ev.Symbol),
			logger.Error(err))
		b.metrics.RecordError("broadcast_signal")
	}
}

// Notification publishes a notification event keyed by symbol.
func (b *KafkaBroadcaster) Notification(ctx context.Context, n models.Notification) {
	if err := b.producer.Publish(ctx, b.notificationTopic, []byte(n.Symbol), n); err != nil {
		b.log.Warn("notification publish failed",
			logger.String("symbol", n.Symbol),
			logger.Int64("rule_id", n.RuleID),
			logger.Error(err))
		b.metrics.RecordError("broadcast_notification")
	}
}
