package usecase

import (
	"context"
	"errors"
	"time"

	"WhyAgent/internal/domain/models"
	domrepo "WhyAgent/internal/domain/repository"
	"WhyAgent/internal/domain/service"
	"WhyAgent/pkg/cache"
	"WhyAgent/pkg/logger"
	"WhyAgent/pkg/util"
)

const fetchLockTTL = 2 * time.Minute

var errFetchInProgress = errors.New("fetch already in progress")

// PriceFetcher downloads price history and writes one file per ticker.
type PriceFetcher struct {
	source   service.PriceProvider
	store    domrepo.PriceStore
	locks    cache.Service
	period   string
	interval string
	logger   *logger.Logger
}

// NewPriceFetcher creates a fetcher. locks may be nil; when set, a ticker
// already being fetched elsewhere is skipped.
func NewPriceFetcher(source service.PriceProvider, store domrepo.PriceStore, locks cache.Service, period, interval string, l *logger.Logger) *PriceFetcher {
	if period == "" {
		period = "3mo"
	}
	if interval == "" {
		interval = "1d"
	}
	return &PriceFetcher{source: source, store: store, locks: locks, period: period, interval: interval, logger: l}
}

// Fetch downloads one ticker and stores it. It returns the provider that answered.
func (f *PriceFetcher) Fetch(ctx context.Context, ticker string) (string, error) {
	ticker = util.NormalizeTicker(ticker)

	if f.locks != nil {
		key := cache.GenerateKeyWithParams("fetch", ticker)
		ok, err := f.locks.TryLock(ctx, key, fetchLockTTL)
		if err != nil {
			f.logger.Warn("fetch lock failed", logger.String("ticker", ticker), logger.Error(err))
		} else if !ok {
			return "", errFetchInProgress
		} else {
			defer func() { _ = f.locks.Unlock(context.WithoutCancel(ctx), key) }()
		}
	}

	history, err := f.source.Fetch(ctx, ticker, f.period, f.interval)
	if err != nil {
		return "", err
	}
	history.Ticker = ticker
	if err := f.store.Save(ctx, history); err != nil {
		return "", err
	}
	f.logger.Info("prices saved",
		logger.String("ticker", ticker),
		logger.String("source", history.Source),
		logger.Int("bars", len(history.Bars)),
		logger.String("path", f.store.Path(ticker)),
	)
	return history.Source, nil
}

// FetchAll fetches tickers one by one. Tickers no provider has data for are
// skipped; other failures are collected and the batch continues.
func (f *PriceFetcher) FetchAll(ctx context.Context, tickers []string) (*models.FetchSummary, error) {
	sum := &models.FetchSummary{Saved: map[string]string{}, Failed: map[string]string{}}
	for _, t := range tickers {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		t = util.NormalizeTicker(t)
		if t == "" {
			continue
		}

		src, err := f.Fetch(ctx, t)
		switch {
		case err == nil:
			sum.Saved[t] = src
		case errors.Is(err, models.ErrNoProviderData), errors.Is(err, errFetchInProgress):
			f.logger.Warn("ticker skipped", logger.String("ticker", t), logger.Error(err))
			sum.Skipped = append(sum.Skipped, t)
		default:
			f.logger.Error("ticker fetch failed", logger.String("ticker", t), logger.Error(err))
			sum.Failed[t] = err.Error()
		}
	}
	return sum, nil
}
