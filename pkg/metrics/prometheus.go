package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"coinsight/internal/domain/models"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	signalsTotal       *prometheus.CounterVec
	errorsTotal        *prometheus.CounterVec
	lastPrice          *prometheus.GaugeVec
	latency            *prometheus.HistogramVec
	bufferDepth        *prometheus.GaugeVec
	reconnectsTotal    *prometheus.CounterVec
	notificationsTotal *prometheus.CounterVec
}

// New creates a new Prometheus metrics recorder.
func New() *Recorder {
	return &Recorder{
		signalsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "coinsight_signals_total",
				Help: "Total number of signals generated",
			},
			[]string{"symbol", "action"},
		),
		errorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "coinsight_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		lastPrice: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "coinsight_last_price",
				Help: "Last recorded price for a symbol",
			},
			[]string{"symbol"},
		),
		latency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "coinsight_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		bufferDepth: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "coinsight_candle_buffer_depth",
				Help: "Current candle count in a stream buffer",
			},
			[]string{"stream"},
		),
		reconnectsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "coinsight_stream_reconnects_total",
				Help: "Total stream reconnect attempts",
			},
			[]string{"stream"},
		),
		notificationsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "coinsight_notifications_total",
				Help: "Total alert notifications fired",
			},
			[]string{"priority"},
		),
	}
}

// RecordSignal records one generated signal.
func (r *Recorder) RecordSignal(symbol string, action models.Action) {
	r.signalsTotal.WithLabelValues(symbol, string(action)).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLastPrice records the last price for a symbol.
func (r *Recorder) RecordLastPrice(symbol string, price float64) {
	r.lastPrice.WithLabelValues(symbol).Set(price)
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}

// RecordBufferDepth records the candle count of one stream buffer.
func (r *Recorder) RecordBufferDepth(key string, depth int) {
	r.bufferDepth.WithLabelValues(key).Set(float64(depth))
}

// RecordReconnect records one reconnect attempt for a stream.
func (r *Recorder) RecordReconnect(key string) {
	r.reconnectsTotal.WithLabelValues(key).Inc()
}

// RecordNotification records one fired notification.
func (r *Recorder) RecordNotification(priority string) {
	r.notificationsTotal.WithLabelValues(priority).Inc()
}
