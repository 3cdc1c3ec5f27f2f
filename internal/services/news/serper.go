package news

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"WhyAgent/internal/domain/models"
	"WhyAgent/internal/domain/repository"
	xhttp "WhyAgent/pkg/http"
	"WhyAgent/pkg/logger"
)

// News fetch outcomes recorded as metrics.
const (
	OutcomeOK       = "ok"
	OutcomeEmpty    = "empty"
	OutcomeError    = "error"
	OutcomeDisabled = "disabled"
)

// ErrDisabled is returned when no API key is configured.
var ErrDisabled = errors.New("news search disabled: no api key")

// SerperConfig configures SerperClient.
type SerperConfig struct {
	APIKey   string
	BaseURL  string
	Timeout  time.Duration
	Country  string
	Attempts int
}

// SerperClient searches google.serper.dev news.
type SerperClient struct {
	*HTTPServiceBase
	apiKey   string
	country  string
	attempts int
	metrics  repository.Metrics
	logger   *logger.Logger
}

// NewSerperClient creates a Serper news client.
func NewSerperClient(cfg SerperConfig, m repository.Metrics, l *logger.Logger) *SerperClient {
	if cfg.Country == "" {
		cfg.Country = "us"
	}
	return &SerperClient{
		HTTPServiceBase: NewHTTPServiceBase(strings.TrimRight(cfg.BaseURL, "/"), cfg.Timeout),
		apiKey:          cfg.APIKey,
		country:         cfg.Country,
		attempts:        cfg.Attempts,
		metrics:         m,
		logger:          l,
	}
}

type serperRequest struct {
	Q   string `json:"q"`
	Num int    `json:"num"`
	GL  string `json:"gl"`
}

type serperResponse struct {
	News []struct {
		Title  string `json:"title"`
		Link   string `json:"link"`
		Source string `json:"source"`
		Date   string `json:"date"`
	} `json:"news"`
}

// Search returns at most max news items for query.
func (c *SerperClient) Search(ctx context.Context, query string, max int) ([]models.NewsItem, error) {
	if c.apiKey == "" {
		c.metrics.RecordNewsFetch(OutcomeDisabled, 0)
		return nil, ErrDisabled
	}

	start := time.Now()
	var resp serperResponse
	err := c.PostJSONWithRetry(ctx, "/news",
		map[string]string{"X-API-KEY": c.apiKey},
		serperRequest{Q: query, Num: max, GL: c.country},
		&resp, c.attempts,
	)
	c.metrics.RecordLatency("news_search", time.Since(start).Seconds())
	if err != nil {
		c.metrics.RecordNewsFetch(OutcomeError, 0)
		return nil, fmt.Errorf("serper search %q: %w", query, err)
	}

	items := make([]models.NewsItem, 0, len(resp.News))
	for _, n := range resp.News {
		if len(items) == max {
			break
		}
		items = append(items, models.NewsItem{Title: n.Title, Source: n.Source, Date: n.Date, Link: n.Link})
	}

	outcome := OutcomeOK
	if len(items) == 0 {
		outcome = OutcomeEmpty
	}
	c.metrics.RecordNewsFetch(outcome, len(items))
	c.logger.Debug("news search done",
		logger.String("query", query),
		logger.Int("items", len(items)),
	)
	return items, nil
}

func asStatusError(err error) (*xhttp.StatusError, bool) {
	var se *xhttp.StatusError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}

// DefaultQuery is the search used when the caller gives none.
func DefaultQuery(ticker string) string {
	return ticker + " stock latest news"
}

// Bullets formats items as prompt bullet lines.
func Bullets(items []models.NewsItem) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, fmt.Sprintf("- %s (%s, %s)\n  %s", it.Title, it.Source, it.Date, it.Link))
	}
	return out
}
