//go:build wireinject
// +build wireinject

package di

import (
	"coinsight/pkg/config"
	"coinsight/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		// Observability
		ProvideLogger,
		ProvideMetrics,

		// Exchange adapters and gateway
		ProvideHistoryProvider,
		ProvideStreamDialer,
		ProvideGateway,

		// Infrastructure clients
		ProvideClickHouseClient,
		ProvideRedisCache,
		ProvideKafkaProducer,

		// Stores and collaborators
		ProvideSignalSink,
		ProvideRuleStore,
		ProvideSettings,
		ProvideBroadcaster,

		// Pipeline
		ProvideAlertEngine,
		ProvideOrchestrator,
		ProvideScheduler,

		// HTTP and application
		ProvideHTTPHandler,
		ProvideApp,
	)
	return &server.App{}, nil
}
