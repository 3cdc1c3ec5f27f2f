package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"WhyAgent/internal/di"
	"WhyAgent/pkg/config"
	"WhyAgent/pkg/logger"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "config file path")
	tickers := flag.String("tickers", "", "comma-separated tickers (default: config tickers)")
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

	sum, err := tools.Fetcher.FetchAll(ctx, list)
	if err != nil {
		tools.Logger.Error("fetch interrupted", logger.Error(err))
	}
	tools.Logger.Info("fetch done",
		logger.Int("saved", len(sum.Saved)),
		logger.Strings("skipped", sum.Skipped),
		logger.Int("failed", len(sum.Failed)),
		logger.String("dir", cfg.PricesDir()),
	)
	if len(sum.Failed) > 0 {
		cleanup()
		os.Exit(1)
	}
}
