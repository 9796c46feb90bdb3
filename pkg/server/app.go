package server

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	domrepo "coinsight/internal/domain/repository"
	"coinsight/internal/gateway"
	"coinsight/internal/scheduler"
	"coinsight/pkg/cache"
	pkgch "coinsight/pkg/clickhouse"
	"coinsight/pkg/config"
	xhttp "coinsight/pkg/http"
	pkgkafka "coinsight/pkg/kafka"
	applogger "coinsight/pkg/logger"

	"github.com/labstack/echo/v4"
)

// App encapsulates the entire application lifecycle.
type App struct {
	cfg        *config.Config
	log        *applogger.Logger
	gateway    *gateway.Gateway
	scheduler  *scheduler.Scheduler
	handler    xhttp.Handler
	httpServer *xhttp.Server
	chClient   *pkgch.Client
	producer   *pkgkafka.Producer
	redis      *cache.RedisCache
}

// New creates an App instance with all dependencies.
func New(
	cfg *config.Config,
	log *applogger.Logger,
	gw *gateway.Gateway,
	sched *scheduler.Scheduler,
	handler xhttp.Handler,
	chClient *pkgch.Client,
	producer *pkgkafka.Producer,
	redis *cache.RedisCache,
) *App {
	return &App{
		cfg:       cfg,
		log:       log,
		gateway:   gw,
		scheduler: sched,
		handler:   handler,
		chClient:  chClient,
		producer:  producer,
		redis:     redis,
	}
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a.httpServer = xhttp.NewServer(a.handler,
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
	)
	a.httpServer.Echo().GET("/api/health", a.health)

	// Subscribe tracked symbols in the background; a slow backfill must
	// not delay HTTP readiness.
	go a.track(ctx)

	if a.scheduler != nil {
		a.scheduler.Start()
	}

	if err := a.httpServer.Start(); err != nil {
		a.log.Error("http server start error", applogger.Error(err))
		return err
	}
	a.log.Info("started",
		applogger.String("env", a.cfg.Environment),
		applogger.Int("port", a.cfg.Server.Port),
		applogger.Strings("symbols", a.cfg.Binance.Symbols))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	a.log.Info("shutdown signal received")
	return a.shutdown(ctx)
}

// track warms candle subscriptions and ticker streams for every
// configured symbol.
func (a *App) track(ctx context.Context) {
	var tfs []domrepo.Timeframe
	for _, tf := range a.cfg.Binance.Timeframes {
		tfs = append(tfs, domrepo.Timeframe(tf))
	}
	if len(tfs) == 0 {
		tfs = []domrepo.Timeframe{domrepo.DefaultTimeframe()}
	}
	a.gateway.AddTrackedSymbols(ctx, a.cfg.Binance.Symbols, tfs)
}

// health checks infrastructure dependencies.
func (a *App) health(c echo.Context) error {
	ctx := c.Request().Context()
	status := map[string]string{"status": "ok"}

	if a.chClient != nil {
		if err := a.chClient.Health(ctx); err != nil {
			status["status"] = "degraded"
			status["clickhouse"] = err.Error()
		} else {
			status["clickhouse"] = "ok"
		}
	}
	if a.redis != nil {
		if err := a.redis.Client().Ping(ctx).Err(); err != nil {
			status["status"] = "degraded"
			status["redis"] = err.Error()
		} else {
			status["redis"] = "ok"
		}
	}

	code := http.StatusOK
	if status["status"] != "ok" {
		code = http.StatusServiceUnavailable
	}
	return c.JSON(code, status)
}

// shutdown gracefully stops all services in dependency order.
func (a *App) shutdown(ctx context.Context) error {
	if a.scheduler != nil {
		a.scheduler.Stop()
	}

	a.gateway.Close()

	shutdownCtx, cancel := context.WithTimeout(ctx, a.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := a.httpServer.Stop(shutdownCtx); err != nil {
		a.log.Error("http shutdown error", applogger.Error(err))
	}

	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.log.Warn("kafka producer close error", applogger.Error(err))
		}
	}
	if a.chClient != nil {
		if err := a.chClient.Close(); err != nil {
			a.log.Warn("clickhouse close error", applogger.Error(err))
		}
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.log.Warn("redis close error", applogger.Error(err))
		}
	}

	a.log.Info("shutdown complete")
	return nil
}
