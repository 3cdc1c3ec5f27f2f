package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"WhyAgent/internal/domain/models"
	domrepo "WhyAgent/internal/domain/repository"
	"WhyAgent/internal/domain/service"
	"WhyAgent/internal/services/llm"
	"WhyAgent/internal/services/news"
	"WhyAgent/pkg/cache"
	"WhyAgent/pkg/logger"
	"WhyAgent/pkg/util"
)

// ExplainConfig holds the explanation knobs.
type ExplainConfig struct {
	Language string
	NewsMax  int
	CacheTTL time.Duration
}

// ExplainInput is one explanation request.
type ExplainInput struct {
	Ticker string
	// PredPct overrides the model's forecast in the prompt when set.
	PredPct   *float64
	TopK      int
	NewsQuery string
}

// ExplainService combines a prediction, recent news and an LLM into a
// written explanation.
type ExplainService struct {
	predictor *Predictor
	news      service.NewsSearcher
	explainer service.Explainer
	calendar  service.TradingCalendar
	cache     cache.Service
	metrics   domrepo.Metrics
	cfg       ExplainConfig
	logger    *logger.Logger
}

// NewExplainService creates the service. cache may be nil.
func NewExplainService(p *Predictor, ns service.NewsSearcher, ex service.Explainer, cal service.TradingCalendar, c cache.Service, m domrepo.Metrics, cfg ExplainConfig, l *logger.Logger) *ExplainService {
	if cfg.NewsMax <= 0 {
		cfg.NewsMax = 5
	}
	return &ExplainService{predictor: p, news: ns, explainer: ex, calendar: cal, cache: c, metrics: m, cfg: cfg, logger: l}
}

type configurable interface {
	Configured() bool
}

// Explain predicts ticker, gathers news and asks the LLM for an explanation.
// The prediction always runs since it supplies importances and the as-of date.
func (s *ExplainService) Explain(ctx context.Context, in ExplainInput) (*models.Explanation, error) {
	if c, ok := s.explainer.(configurable); ok && !c.Configured() {
		return nil, fmt.Errorf("openai api key: %w", models.ErrNotConfigured)
	}

	ticker := util.NormalizeTicker(in.Ticker)
	topK := in.TopK
	if topK <= 0 {
		topK = DefaultTopK
	}

	pred, err := s.predictor.PredictWithImportances(ctx, ticker, "", topK)
	if err != nil {
		return nil, err
	}
	predPct := pred.PredPct
	if in.PredPct != nil {
		predPct = *in.PredPct
	}

	query := strings.TrimSpace(in.NewsQuery)
	if query == "" {
		query = news.DefaultQuery(ticker)
	}

	key := cache.GenerateKeyWithParams("explain", ticker, llm.Round(predPct, 6), topK, query, s.cfg.Language)
	if cached, ok := s.cached(ctx, key); ok {
		return cached, nil
	}

	bullets := s.newsBullets(ctx, query)
	target := s.calendar.NextSession(pred.AsOf)

	prompt := llm.BuildPrompt(llm.PromptInput{
		Ticker:      ticker,
		TargetDate:  target,
		PredPct:     predPct,
		TopFeatures: pred.TopFeatures,
		NewsBullets: bullets,
	}, s.cfg.Language)

	text, err := s.explainer.Explain(ctx, prompt)
	if err != nil {
		return nil, err
	}

	out := &models.Explanation{
		Ticker:         ticker,
		PredPct:        predPct,
		PredPctPercent: llm.Round(predPct*100, 2),
		TargetDate:     target.Format("2006-01-02"),
		TopFeatures:    pred.TopFeatures,
		NewsCount:      len(bullets),
		Explanation:    text,
	}
	if out.TopFeatures == nil {
		out.TopFeatures = []models.FeatureImportance{}
	}

	if s.cache != nil && s.cfg.CacheTTL > 0 {
		if err := s.cache.Set(ctx, key, out, s.cfg.CacheTTL); err != nil {
			s.logger.Warn("explanation cache write failed", logger.Error(err))
		}
	}
	return out, nil
}

func (s *ExplainService) cached(ctx context.Context, key string) (*models.Explanation, bool) {
	if s.cache == nil || s.cfg.CacheTTL <= 0 {
		return nil, false
	}
	var out models.Explanation
	err := s.cache.Get(ctx, key, &out)
	if err == nil {
		return &out, true
	}
	if !errors.Is(err, cache.ErrCacheMiss) {
		s.logger.Warn("explanation cache read failed", logger.Error(err))
	}
	return nil, false
}

// newsBullets never fails: a search error leaves the prompt without news.
func (s *ExplainService) newsBullets(ctx context.Context, query string) []string {
	if s.news == nil {
		return nil
	}
	items, err := s.news.Search(ctx, query, s.cfg.NewsMax)
	if err != nil {
		if !errors.Is(err, news.ErrDisabled) {
			s.logger.Warn("news search failed", logger.String("query", query), logger.Error(err))
		}
		return nil
	}
	return news.Bullets(items)
}
