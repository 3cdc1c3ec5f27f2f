package di

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"WhyAgent/internal/domain/repository"
	"WhyAgent/internal/domain/service"
	"WhyAgent/internal/handler/api"
	internalrepo "WhyAgent/internal/repository"
	svcmetrics "WhyAgent/internal/service/metrics"
	"WhyAgent/internal/service/ratelimit"
	"WhyAgent/internal/services/boosting"
	"WhyAgent/internal/services/calendar"
	"WhyAgent/internal/services/llm"
	"WhyAgent/internal/services/news"
	"WhyAgent/internal/services/prices"
	"WhyAgent/internal/usecase"
	"WhyAgent/pkg/cache"
	pkgch "WhyAgent/pkg/clickhouse"
	"WhyAgent/pkg/config"
	pkgkafka "WhyAgent/pkg/kafka"
	"WhyAgent/pkg/logger"
	"WhyAgent/pkg/metrics"
	"WhyAgent/pkg/server"
)

// Tools bundles what the fetch and train commands need.
type Tools struct {
	Logger    *logger.Logger
	Fetcher   *usecase.PriceFetcher
	Trainer   *usecase.Trainer
	Publisher *internalrepo.KafkaPublisher
}

func nopCleanup() {}

// ProvideLogger creates the application logger.
func ProvideLogger(cfg *config.Config) (*logger.Logger, error) {
	l, err := logger.New(&cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return l.With(logger.String("env", cfg.Environment)), nil
}

// ProvideRegisterer returns the registry served on /metrics.
func ProvideRegisterer() prometheus.Registerer {
	return prometheus.DefaultRegisterer
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics(reg prometheus.Registerer) repository.Metrics {
	return metrics.NewWithRegistry(reg)
}

// ProvideEndpointMetrics creates the per-endpoint API metrics.
func ProvideEndpointMetrics(reg prometheus.Registerer) *svcmetrics.Endpoint {
	return svcmetrics.NewEndpoint(reg)
}

// ProvideClickHouseClient creates a ClickHouse client, or nil when disabled.
func ProvideClickHouseClient(cfg *config.Config, l *logger.Logger) (*pkgch.Client, func(), error) {
	if !cfg.ClickHouse.Enabled {
		return nil, nopCleanup, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := pkgch.NewClient(ctx,
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(cfg.ClickHouse.MaxOpenConns, cfg.ClickHouse.MaxIdleConns),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.WriteTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("clickhouse client: %w", err)
	}
	if err := client.InitSchema(ctx, []string{
		"CREATE DATABASE IF NOT EXISTS " + cfg.ClickHouse.Database,
	}); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("clickhouse schema: %w", err)
	}

	l.Info("clickhouse connected", logger.String("database", client.Database()))
	return client, func() {
		if err := client.Close(); err != nil {
			l.Warn("clickhouse close error", logger.Error(err))
		}
	}, nil
}

// ProvideCache returns Redis behind an in-memory layer when Redis is
// enabled, otherwise a process-local cache.
func ProvideCache(cfg *config.Config, l *logger.Logger) (cache.Service, func(), error) {
	var c cache.Service
	if cfg.Redis.Enabled {
		remote, err := cache.NewRedisCache(
			cache.WithRedisHost(cfg.Redis.Host),
			cache.WithRedisPort(cfg.Redis.Port),
			cache.WithRedisPassword(cfg.Redis.Password),
			cache.WithRedisDB(cfg.Redis.DB),
			cache.WithRedisPrefix(cfg.Redis.Prefix),
		)
		if err != nil {
			return nil, nil, fmt.Errorf("redis cache: %w", err)
		}
		c = cache.NewLayeredCache(remote, time.Minute, cache.WithMemoryMaxSize(1000))
		l.Info("redis cache enabled", logger.String("host", cfg.Redis.Host))
	} else {
		c = cache.NewMemoryCache(cache.WithMemoryMaxSize(1000))
	}
	return c, func() { _ = c.Close() }, nil
}

// ProvideKafkaProducer creates a Kafka producer, or nil when Kafka is disabled.
func ProvideKafkaProducer(cfg *config.Config, reg prometheus.Registerer, l *logger.Logger) (*pkgkafka.Producer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatching(cfg.Kafka.Producer.BatchSize, cfg.Kafka.Producer.BatchBytes, cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
		pkgkafka.WithHashByKey(true),
		pkgkafka.WithProducerRegisterer(reg),
		pkgkafka.WithProducerLogger(l),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvideKafkaPublisher wraps the producer; nil when Kafka is disabled.
// Closing it closes the producer.
func ProvideKafkaPublisher(producer *pkgkafka.Producer, cfg *config.Config, l *logger.Logger) (*internalrepo.KafkaPublisher, func()) {
	if producer == nil {
		return nil, nopCleanup
	}
	pub := internalrepo.NewKafkaPublisher(producer, cfg.Kafka.PredictionsTopic)
	return pub, func() {
		if err := pub.Close(); err != nil {
			l.Warn("kafka producer close error", logger.Error(err))
		}
	}
}

// ProvideEventPublisher exposes the Kafka publisher as a domain publisher.
func ProvideEventPublisher(pub *internalrepo.KafkaPublisher) repository.EventPublisher {
	if pub == nil {
		return nil
	}
	return pub
}

// ProvideTracker opens the run-tracking store named by tracking.uri.
func ProvideTracker(cfg *config.Config, ch *pkgch.Client, l *logger.Logger) (repository.Tracker, func(), error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	tr, err := internalrepo.OpenTracker(ctx, cfg.Tracking.URI, ch, l)
	if err != nil {
		return nil, nil, fmt.Errorf("tracker: %w", err)
	}
	return tr, func() { _ = tr.Close() }, nil
}

// ProvideModelStore creates the artifact store with its loaded-model cache.
func ProvideModelStore(cfg *config.Config, tracker repository.Tracker, l *logger.Logger) (repository.ModelStore, error) {
	return internalrepo.NewFSModelStore(cfg.Model.ArtifactRoot, tracker, cfg.Model.CacheSize, l)
}

// ProvidePriceStore creates the per-ticker price file store.
func ProvidePriceStore(cfg *config.Config, l *logger.Logger) repository.PriceStore {
	return internalrepo.NewParquetPriceStore(cfg.PricesDir(), l)
}

// ProvidePredictionLog creates the ClickHouse prediction log; nil without ClickHouse.
func ProvidePredictionLog(ch *pkgch.Client, l *logger.Logger) (*internalrepo.CHPredictionLog, error) {
	if ch == nil {
		return nil, nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return internalrepo.NewCHPredictionLog(ctx, ch, l)
}

// ProvidePredictionWriter exposes the log to the predictor.
func ProvidePredictionWriter(log *internalrepo.CHPredictionLog) repository.PredictionLog {
	if log == nil {
		return nil
	}
	return log
}

// ProvidePredictionHistory exposes the log to the HTTP API.
func ProvidePredictionHistory(log *internalrepo.CHPredictionLog) api.PredictionHistory {
	if log == nil {
		return nil
	}
	return log
}

// ProvidePriceSource builds the Yahoo, Yahoo daily, Stooq fallback chain.
func ProvidePriceSource(cfg *config.Config, m repository.Metrics, l *logger.Logger) service.PriceProvider {
	p := cfg.Providers
	return prices.NewChain(m, l,
		prices.NewYahooProvider(p.YahooBaseURL, p.Timeout, p.UserAgent),
		prices.NewYahooProvider(p.YahooBaseURL, p.Timeout, p.UserAgent, prices.WithFixedRange("yahoo_daily", "3mo", "1d")),
		prices.NewStooqProvider(p.StooqBaseURL, p.Timeout, p.UserAgent),
	)
}

// ProvidePriceFetcher creates the price download use case.
func ProvidePriceFetcher(cfg *config.Config, src service.PriceProvider, store repository.PriceStore, c cache.Service, l *logger.Logger) *usecase.PriceFetcher {
	return usecase.NewPriceFetcher(src, store, c, cfg.Data.PricePeriod, cfg.Data.PriceInterval, l)
}

// ProvideTrainer creates the training use case.
func ProvideTrainer(cfg *config.Config, ps repository.PriceStore, ms repository.ModelStore, tracker repository.Tracker, m repository.Metrics, l *logger.Logger) *usecase.Trainer {
	p := cfg.Model.Params
	return usecase.NewTrainer(ps, ms, tracker, m, usecase.TrainerConfig{
		Params: boosting.Params{
			NEstimators:     p.NEstimators,
			MaxDepth:        p.MaxDepth,
			LearningRate:    p.LearningRate,
			Subsample:       p.Subsample,
			ColsampleByTree: p.ColsampleByTree,
			MinChildWeight:  p.MinChildWeight,
			Lambda:          p.Lambda,
			RandomState:     p.RandomState,
		},
		Split:       cfg.Model.TrainSplit,
		Horizon:     cfg.Data.Horizon,
		StrictDates: cfg.Data.StrictDates,
	}, l)
}

// ProvidePredictor creates the prediction use case.
func ProvidePredictor(cfg *config.Config, ms repository.ModelStore, ps repository.PriceStore, events repository.EventPublisher, plog repository.PredictionLog, m repository.Metrics, l *logger.Logger) *usecase.Predictor {
	return usecase.NewPredictor(ms, ps, events, plog, m, usecase.PredictorConfig{
		ModelURI:    cfg.Model.URI,
		Horizon:     cfg.Data.Horizon,
		StrictDates: cfg.Data.StrictDates,
	}, l)
}

// ProvideNewsSearcher creates the cached Serper client.
func ProvideNewsSearcher(cfg *config.Config, c cache.Service, m repository.Metrics, l *logger.Logger) service.NewsSearcher {
	serper := news.NewSerperClient(news.SerperConfig{
		APIKey:   cfg.News.APIKey,
		BaseURL:  cfg.News.BaseURL,
		Timeout:  cfg.News.Timeout,
		Country:  cfg.News.Country,
		Attempts: 2,
	}, m, l)
	return news.NewCachedSearcher(serper, c, cfg.News.CacheTTL, l)
}

// ProvideExplainer creates the OpenAI explainer.
func ProvideExplainer(cfg *config.Config, m repository.Metrics, l *logger.Logger) service.Explainer {
	return llm.NewOpenAIExplainer(llm.Config{
		APIKey:      cfg.LLM.APIKey,
		BaseURL:     cfg.LLM.BaseURL,
		Model:       cfg.LLM.Model,
		Temperature: cfg.LLM.Temperature,
		MaxTokens:   cfg.LLM.MaxTokens,
		Timeout:     cfg.LLM.Timeout,
	}, m, l)
}

// ProvideCalendar returns the exchange calendar used for target dates.
func ProvideCalendar(cfg *config.Config, l *logger.Logger) service.TradingCalendar {
	ex := calendar.New(cfg.Calendar.Exchange)
	if ex.Fallback() {
		l.Warn("unknown exchange calendar, using weekdays", logger.String("mic", cfg.Calendar.Exchange))
	}
	return ex
}

// ProvideExplainService creates the explanation use case.
func ProvideExplainService(cfg *config.Config, p *usecase.Predictor, ns service.NewsSearcher, ex service.Explainer, cal service.TradingCalendar, c cache.Service, m repository.Metrics, l *logger.Logger) *usecase.ExplainService {
	return usecase.NewExplainService(p, ns, ex, cal, c, m, usecase.ExplainConfig{
		Language: cfg.LLM.Language,
		NewsMax:  cfg.News.MaxItems,
		CacheTTL: cfg.LLM.CacheTTL,
	}, l)
}

// ProvideChat creates the chat use case.
func ProvideChat(ex *usecase.ExplainService) *usecase.Chat {
	return usecase.NewChat(ex)
}

// ProvideRateLimiter creates the per-IP limiter for LLM-backed endpoints.
func ProvideRateLimiter(cfg *config.Config) *ratelimit.Limiter {
	return ratelimit.New(cfg.Server.RateLimit.Capacity, cfg.Server.RateLimit.Refill)
}

// ProvideWhyHandler creates the HTTP handler.
func ProvideWhyHandler(l *logger.Logger, p *usecase.Predictor, ex *usecase.ExplainService, chat *usecase.Chat, history api.PredictionHistory, limiter *ratelimit.Limiter, m *svcmetrics.Endpoint) *api.WhyHandler {
	return api.NewWhyHandler(l, p, ex, chat, history, limiter, m)
}

// ProvideKafkaConsumer creates the train-request consumer, or nil when disabled.
func ProvideKafkaConsumer(cfg *config.Config, reg prometheus.Registerer, l *logger.Logger) (*pkgkafka.Consumer, func(), error) {
	if !cfg.Kafka.Enabled || !cfg.Kafka.Consumer.Enabled {
		return nil, nopCleanup, nil
	}
	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerBufferSize(cfg.Kafka.Consumer.BufferSize),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Consumer.DLQTopic),
		pkgkafka.WithConsumerFetch(cfg.Kafka.Consumer.MinBytes, cfg.Kafka.Consumer.MaxBytes),
		pkgkafka.WithConsumerRegisterer(reg),
		pkgkafka.WithConsumerLogger(l),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("kafka consumer: %w", err)
	}
	consumer.WithConsumerHook(pkgkafka.TracingHook(l))
	return consumer, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := consumer.Stop(ctx); err != nil {
			l.Warn("kafka consumer stop error", logger.Error(err))
		}
	}, nil
}

// ProvideTrainRequestHandler creates the handler for the train-requests topic.
func ProvideTrainRequestHandler(cfg *config.Config, f *usecase.PriceFetcher, t *usecase.Trainer, m repository.Metrics, l *logger.Logger) *usecase.TrainRequestHandler {
	return usecase.NewTrainRequestHandler(cfg.Kafka.TrainTopic, f, t, m, l)
}

// ProvideApp creates the application server.
func ProvideApp(cfg *config.Config, l *logger.Logger, h *api.WhyHandler, consumer *pkgkafka.Consumer, th *usecase.TrainRequestHandler) *server.App {
	return server.New(cfg, l, h, consumer, th)
}

// ProvideTools bundles the batch command dependencies.
func ProvideTools(l *logger.Logger, f *usecase.PriceFetcher, t *usecase.Trainer, pub *internalrepo.KafkaPublisher) *Tools {
	return &Tools{Logger: l, Fetcher: f, Trainer: t, Publisher: pub}
}
