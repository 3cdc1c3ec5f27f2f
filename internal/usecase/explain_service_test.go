package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"WhyAgent/internal/domain/models"
	"WhyAgent/internal/services/news"
	"WhyAgent/pkg/cache"
	"WhyAgent/pkg/metrics"
)

func newExplainService(t *testing.T, ns *fakeNews, ex *fakeExplainer, c cache.Service) *ExplainService {
	t.Helper()
	e := newEnv(t)
	e.seed(t, "AAPL", 60)
	p := NewPredictor(e.models, e.prices, nil, nil, metrics.Nop{}, PredictorConfig{ModelURI: "models:/xgb_AAPL/latest"}, nop)
	return NewExplainService(p, ns, ex, nextDay{}, c, metrics.Nop{}, ExplainConfig{Language: "Korean", NewsMax: 5, CacheTTL: time.Minute}, nop)
}

func TestExplainBuildsPrompt(t *testing.T) {
	ns := &fakeNews{items: []models.NewsItem{{Title: "Apple beats", Source: "Reuters", Date: "1 day ago", Link: "https://x/1"}}}
	ex := &fakeExplainer{reply: "설명"}
	s := newExplainService(t, ns, ex, nil)

	out, err := s.Explain(context.Background(), ExplainInput{Ticker: "aapl"})
	require.NoError(t, err)

	asOf := history("AAPL", 60).Bars[59].Date
	assert.Equal(t, "AAPL", out.Ticker)
	assert.Equal(t, asOf.AddDate(0, 0, 1).Format("2006-01-02"), out.TargetDate)
	assert.Equal(t, 1, out.NewsCount)
	assert.Equal(t, "설명", out.Explanation)
	assert.Equal(t, "AAPL stock latest news", ns.query)

	require.Equal(t, 1, ex.calls())
	prompt := ex.prompts[0]
	assert.Contains(t, prompt, "- 종목: AAPL")
	assert.Contains(t, prompt, "- 대상일: "+out.TargetDate)
	assert.Contains(t, prompt, "- Apple beats (Reuters, 1 day ago)\n  https://x/1")
	assert.Contains(t, prompt, "한국어로 간결하게.")
}

func TestExplainOverridesPredPct(t *testing.T) {
	ex := &fakeExplainer{reply: "ok"}
	s := newExplainService(t, &fakeNews{}, ex, nil)
	pct := 0.01234

	out, err := s.Explain(context.Background(), ExplainInput{Ticker: "AAPL", PredPct: &pct, TopK: 2, NewsQuery: "Apple earnings"})
	require.NoError(t, err)
	assert.InDelta(t, 0.01234, out.PredPct, 0)
	assert.InDelta(t, 1.23, out.PredPctPercent, 1e-12)
	assert.LessOrEqual(t, len(out.TopFeatures), 2)
	assert.Contains(t, ex.prompts[0], "- 예측 변동률(%): 1.23")
}

func TestExplainDegradesWithoutNews(t *testing.T) {
	ex := &fakeExplainer{reply: "ok"}
	s := newExplainService(t, &fakeNews{err: errBoom}, ex, nil)

	out, err := s.Explain(context.Background(), ExplainInput{Ticker: "AAPL"})
	require.NoError(t, err)
	assert.Equal(t, 0, out.NewsCount)
	assert.Contains(t, ex.prompts[0], "- (관련 기사 부족)")

	s = newExplainService(t, &fakeNews{err: news.ErrDisabled}, ex, nil)
	_, err = s.Explain(context.Background(), ExplainInput{Ticker: "AAPL"})
	require.NoError(t, err)
}

func TestExplainCachesResult(t *testing.T) {
	c := cache.NewMemoryCache()
	defer c.Close()
	ex := &fakeExplainer{reply: "cached"}
	s := newExplainService(t, &fakeNews{}, ex, c)
	ctx := context.Background()

	first, err := s.Explain(ctx, ExplainInput{Ticker: "AAPL"})
	require.NoError(t, err)
	second, err := s.Explain(ctx, ExplainInput{Ticker: "AAPL"})
	require.NoError(t, err)

	assert.Equal(t, 1, ex.calls())
	assert.Equal(t, first.Explanation, second.Explanation)
	assert.Equal(t, first.TargetDate, second.TargetDate)
}

func TestExplainRequiresLLM(t *testing.T) {
	ex := &fakeExplainer{unset: true}
	s := newExplainService(t, &fakeNews{}, ex, nil)

	_, err := s.Explain(context.Background(), ExplainInput{Ticker: "AAPL"})
	assert.ErrorIs(t, err, models.ErrNotConfigured)
	assert.Zero(t, ex.calls())
}

func TestExplainPropagatesLLMError(t *testing.T) {
	s := newExplainService(t, &fakeNews{}, &fakeExplainer{err: errBoom}, nil)
	_, err := s.Explain(context.Background(), ExplainInput{Ticker: "AAPL"})
	assert.ErrorIs(t, err, errBoom)
}
