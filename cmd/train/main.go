package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"WhyAgent/internal/di"
	"WhyAgent/internal/domain/models"
	"WhyAgent/pkg/config"
	"WhyAgent/pkg/logger"
	"WhyAgent/pkg/util"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "config file path")
	tickers := flag.String("tickers", "", "comma-separated tickers (default: config tickers)")
	enqueue := flag.Bool("enqueue", false, "publish train requests to Kafka instead of training here")
	flag.Parse()

	cfg, err := config.LoadWithEnv(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}
	list := cfg.Data.Tickers
	if *tickers != "" {
		list = strings.Split(*tickers, ",")
	}
	if len(list) == 0 {
		log.Fatal("no tickers configured")
	}

	tools, cleanup, err := di.InitializeTools(cfg)
	if err != nil {
		log.Fatalf("initialization failed: %v", err)
	}
	defer cleanup()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *enqueue {
		if tools.Publisher == nil {
			cleanup()
			log.Fatal("-enqueue needs kafka.enabled and kafka.brokers")
		}
		reqs := make([]models.TrainRequest, 0, len(list))
		now := time.Now().UTC()
		for _, t := range list {
			reqs = append(reqs, models.TrainRequest{Ticker: util.NormalizeTicker(t), RequestedAt: now})
		}
		if err := tools.Publisher.PublishTrainRequests(ctx, cfg.Kafka.TrainTopic, reqs); err != nil {
			tools.Logger.Error("enqueue failed", logger.Error(err))
			cleanup()
			os.Exit(1)
		}
		tools.Logger.Info("train requests published",
			logger.String("topic", cfg.Kafka.TrainTopic),
			logger.Int("count", len(reqs)),
		)
		return
	}

	sum, err := tools.Trainer.TrainAll(ctx, list)
	if err != nil {
		tools.Logger.Error("training interrupted", logger.Error(err))
	}
	for _, run := range sum.Trained {
		tools.Logger.Info("run recorded",
			logger.String("ticker", run.Ticker),
			logger.String("model_uri", "runs:/"+run.RunID+"/model"),
			logger.String("registry_uri", "models:/"+run.RunName+"/latest"),
		)
	}
	if len(sum.Failed) > 0 {
		cleanup()
		os.Exit(1)
	}
}
