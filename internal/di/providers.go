package di

import (
	"context"
	"fmt"
	"time"

	"coinsight/internal/alert"
	"coinsight/internal/broadcast"
	domrepo "coinsight/internal/domain/repository"
	"coinsight/internal/gateway"
	"coinsight/internal/gateway/binance"
	"coinsight/internal/handler/api"
	"coinsight/internal/orchestrator"
	internalrepo "coinsight/internal/repository"
	"coinsight/internal/scheduler"
	"coinsight/internal/settings"
	"coinsight/pkg/cache"
	pkgch "coinsight/pkg/clickhouse"
	"coinsight/pkg/config"
	xhttp "coinsight/pkg/http"
	pkgkafka "coinsight/pkg/kafka"
	applogger "coinsight/pkg/logger"
	"coinsight/pkg/metrics"
	"coinsight/pkg/server"
)

// ProvideLogger creates the application logger from config.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	level := cfg.Log.Level
	if level == "" {
		level = "info"
	}
	format := cfg.Log.Format
	if format == "" {
		format = "console"
	}
	return applogger.New(&applogger.Config{
		Level:  level,
		Format: format,
		Output: cfg.Log.Output,
	})
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() domrepo.Metrics {
	return metrics.New()
}

// ProvideHistoryProvider creates the Binance REST client.
func ProvideHistoryProvider(cfg *config.Config) domrepo.HistoryProvider {
	return binance.NewClient(cfg.Binance.RESTURL, cfg.Binance.RequestTimeout)
}

// ProvideStreamDialer creates the Binance websocket dialer.
func ProvideStreamDialer(cfg *config.Config) domrepo.StreamDialer {
	return binance.NewDialer(cfg.Binance.StreamURL)
}

// ProvideGateway creates the market data gateway.
func ProvideGateway(
	history domrepo.HistoryProvider,
	dialer domrepo.StreamDialer,
	m domrepo.Metrics,
	log *applogger.Logger,
	cfg *config.Config,
) *gateway.Gateway {
	opts := gateway.DefaultOptions()
	if cfg.Gateway.BufferCapacity > 0 {
		opts.BufferCap = cfg.Gateway.BufferCapacity
	}
	if cfg.Binance.ReconnectDelay > 0 {
		opts.ReconnectDelay = cfg.Binance.ReconnectDelay
	}
	if cfg.Gateway.BackfillTimeout > 0 {
		opts.BackfillTimeout = cfg.Gateway.BackfillTimeout
	}
	if cfg.Gateway.Stagger > 0 {
		opts.Stagger = cfg.Gateway.Stagger
	}
	return gateway.New(history, dialer, m, log, opts)
}

// ProvideClickHouseClient creates a ClickHouse client and ensures the
// signal history schema exists.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.WriteTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := client.InitSchema(ctx, internalrepo.SignalsSchema); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	return client, nil
}

// ProvideSignalSink creates the ClickHouse signal history store.
func ProvideSignalSink(ch *pkgch.Client, log *applogger.Logger) domrepo.SignalSink {
	return internalrepo.NewCHSignalStore(ch, log)
}

// ProvideRedisCache creates the Redis cache client.
func ProvideRedisCache(cfg *config.Config) (*cache.RedisCache, error) {
	opts := []cache.RedisOption{
		cache.WithRedisHost(cfg.Redis.Host),
		cache.WithRedisPort(cfg.Redis.Port),
		cache.WithRedisPassword(cfg.Redis.Password),
		cache.WithRedisDB(cfg.Redis.DB),
	}
	if cfg.Redis.Prefix != "" {
		opts = append(opts, cache.WithRedisPrefix(cfg.Redis.Prefix))
	}
	rc, err := cache.NewRedisCache(opts...)
	if err != nil {
		return nil, fmt.Errorf("redis cache: %w", err)
	}
	return rc, nil
}

// ProvideSettings creates the cached settings service over a layered
// (memory + redis) cache.
func ProvideSettings(rc *cache.RedisCache, log *applogger.Logger) *settings.Service {
	layered := cache.NewLayeredCache(rc)
	return settings.New(layered, log)
}

// ProvideRuleStore creates the Redis-backed alert rule store.
func ProvideRuleStore(rc *cache.RedisCache, log *applogger.Logger) domrepo.RuleStore {
	return internalrepo.NewRedisRuleStore(rc.Client(), log)
}

// ProvideAlertEngine creates the alert rule engine.
func ProvideAlertEngine(rules domrepo.RuleStore, m domrepo.Metrics, log *applogger.Logger) *alert.Engine {
	return alert.New(rules, m, log)
}

// ProvideKafkaProducer creates a Kafka producer.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatchSize(cfg.Kafka.Producer.BatchSize),
		pkgkafka.WithBatchBytes(cfg.Kafka.Producer.BatchBytes),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvideBroadcaster creates the Kafka event broadcaster.
func ProvideBroadcaster(producer *pkgkafka.Producer, m domrepo.Metrics, log *applogger.Logger, cfg *config.Config) domrepo.Broadcaster {
	return broadcast.New(producer, m, log,
		broadcast.WithTopics(cfg.Kafka.SignalTopic, cfg.Kafka.NotificationTopic))
}

// ProvideOrchestrator creates the pipeline orchestrator.
func ProvideOrchestrator(
	gw *gateway.Gateway,
	sink domrepo.SignalSink,
	alerts *alert.Engine,
	broadcaster domrepo.Broadcaster,
	st *settings.Service,
	m domrepo.Metrics,
	log *applogger.Logger,
) *orchestrator.Orchestrator {
	return orchestrator.New(gw, sink, alerts, broadcaster, st, m, log)
}

// ProvideScheduler creates the periodic batch scheduler, or nil when
// disabled in config.
func ProvideScheduler(orch *orchestrator.Orchestrator, cfg *config.Config, log *applogger.Logger) *scheduler.Scheduler {
	if !cfg.Scheduler.Enabled {
		return nil
	}
	tf := domrepo.DefaultTimeframe()
	if len(cfg.Binance.Timeframes) > 0 {
		tf = domrepo.Timeframe(cfg.Binance.Timeframes[0])
	}
	return scheduler.New(orch, cfg.Binance.Symbols, tf, cfg.Scheduler.Interval, log)
}

// ProvideHTTPHandler groups all API handlers.
func ProvideHTTPHandler(
	log *applogger.Logger,
	orch *orchestrator.Orchestrator,
	gw *gateway.Gateway,
	sink domrepo.SignalSink,
	rules domrepo.RuleStore,
) xhttp.Handler {
	return xhttp.Handlers{
		api.NewSignalsHandler(log, orch),
		api.NewMarketHandler(log, gw, sink),
		api.NewRulesHandler(log, rules),
	}
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	log *applogger.Logger,
	gw *gateway.Gateway,
	sched *scheduler.Scheduler,
	handler xhttp.Handler,
	ch *pkgch.Client,
	producer *pkgkafka.Producer,
	rc *cache.RedisCache,
) *server.App {
	return server.New(cfg, log, gw, sched, handler, ch, producer, rc)
}
