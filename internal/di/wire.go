//go:build wireinject
// +build wireinject

package di

import (
	"github.com/google/wire"

	"WhyAgent/pkg/config"
	"WhyAgent/pkg/server"
)

var infraSet = wire.NewSet(
	ProvideLogger,
	ProvideRegisterer,
	ProvideMetrics,
	ProvideClickHouseClient,
	ProvideCache,
	ProvideKafkaProducer,
	ProvideKafkaPublisher,
	ProvideTracker,
	ProvideModelStore,
	ProvidePriceStore,
)

var batchSet = wire.NewSet(
	ProvidePriceSource,
	ProvidePriceFetcher,
	ProvideTrainer,
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, func(), error) {
	wire.Build(
		infraSet,
		batchSet,

		// Repositories
		ProvideEventPublisher,
		ProvidePredictionLog,
		ProvidePredictionWriter,
		ProvidePredictionHistory,

		// Services
		ProvideNewsSearcher,
		ProvideExplainer,
		ProvideCalendar,

		// Use cases
		ProvidePredictor,
		ProvideExplainService,
		ProvideChat,
		ProvideTrainRequestHandler,

		// Transport
		ProvideEndpointMetrics,
		ProvideRateLimiter,
		ProvideWhyHandler,
		ProvideKafkaConsumer,

		// Application server
		ProvideApp,
	)
	return nil, nil, nil
}

// InitializeTools wires the fetch and train commands.
func InitializeTools(cfg *config.Config) (*Tools, func(), error) {
	wire.Build(
		infraSet,
		batchSet,
		ProvideTools,
	)
	return nil, nil, nil
}
