package service

import (
	"context"
	"time"

	"WhyAgent/internal/domain/models"
)

// PriceProvider downloads price history for a ticker.
type PriceProvider interface {
	Name() string
	Fetch(ctx context.Context, ticker, period, interval string) (*models.PriceHistory, error)
}

// NewsSearcher finds recent news for a query.
type NewsSearcher interface {
	Search(ctx context.Context, query string, max int) ([]models.NewsItem, error)
}

// Explainer turns a prompt into a natural-language answer.
type Explainer interface {
	Explain(ctx context.Context, prompt string) (string, error)
}

// TradingCalendar knows exchange sessions.
type TradingCalendar interface {
	NextSession(after time.Time) time.Time
}
