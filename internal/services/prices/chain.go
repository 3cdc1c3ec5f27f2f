package prices

import (
	"context"
	"fmt"

	"WhyAgent/internal/domain/models"
	"WhyAgent/internal/domain/repository"
	"WhyAgent/internal/domain/service"
	"WhyAgent/pkg/logger"
)

// Provider attempt outcomes.
const (
	OutcomeHit   = "hit"
	OutcomeEmpty = "empty"
	OutcomeError = "error"
)

// Chain tries providers in order and returns the first non-empty history.
type Chain struct {
	providers []service.PriceProvider
	metrics   repository.Metrics
	logger    *logger.Logger
}

// NewChain builds a fallback chain. Order matters: earlier providers win.
func NewChain(m repository.Metrics, l *logger.Logger, providers ...service.PriceProvider) *Chain {
	return &Chain{providers: providers, metrics: m, logger: l}
}

func (c *Chain) Name() string {
	return "chain"
}

// Fetch returns models.ErrNoProviderData when every provider comes back empty or fails.
func (c *Chain) Fetch(ctx context.Context, ticker, period, interval string) (*models.PriceHistory, error) {
	var lastErr error
	for _, p := range c.providers {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		history, err := p.Fetch(ctx, ticker, period, interval)
		switch {
		case err != nil:
			lastErr = err
			c.metrics.RecordProviderAttempt(p.Name(), OutcomeError)
			c.logger.Warn("price provider failed",
				logger.String("provider", p.Name()),
				logger.String("ticker", ticker),
				logger.Error(err),
			)
		case history.Empty():
			c.metrics.RecordProviderAttempt(p.Name(), OutcomeEmpty)
			c.logger.Debug("price provider returned no bars",
				logger.String("provider", p.Name()),
				logger.String("ticker", ticker),
			)
		default:
			c.metrics.RecordProviderAttempt(p.Name(), OutcomeHit)
			history.Source = p.Name()
			return history, nil
		}
	}

	if lastErr != nil {
		return nil, fmt.Errorf("%w for %s: last error: %v", models.ErrNoProviderData, ticker, lastErr)
	}
	return nil, fmt.Errorf("%w for %s", models.ErrNoProviderData, ticker)
}
