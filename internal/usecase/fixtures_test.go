package usecase

import (
	"context"
	"errors"
	"math"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"WhyAgent/internal/domain/models"
	"WhyAgent/internal/repository"
	"WhyAgent/internal/services/boosting"
	"WhyAgent/pkg/logger"
	"WhyAgent/pkg/metrics"
)

var nop = logger.NewNop()

func history(ticker string, n int) *models.PriceHistory {
	h := &models.PriceHistory{Ticker: ticker, Source: "fake", Interval: "1d"}
	day := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for len(h.Bars) < n {
		if wd := day.Weekday(); wd != time.Saturday && wd != time.Sunday {
			i := float64(len(h.Bars))
			c := 100 + 5*math.Sin(i/3) + 0.2*i
			h.Bars = append(h.Bars, models.PriceBar{
				Date:   day,
				Open:   c - 0.5,
				High:   c + 1,
				Low:    c - 1,
				Close:  c,
				Volume: 1e6 + 1e5*math.Cos(i/2),
			})
		}
		day = day.AddDate(0, 0, 1)
	}
	return h
}

type fakeProvider struct {
	mu      sync.Mutex
	data    map[string]*models.PriceHistory
	errs    map[string]error
	fetched []string
}

func (p *fakeProvider) Name() string { return "fake" }

func (p *fakeProvider) Fetch(_ context.Context, ticker, _, _ string) (*models.PriceHistory, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.fetched = append(p.fetched, ticker)
	if err, ok := p.errs[ticker]; ok {
		return nil, err
	}
	if h, ok := p.data[ticker]; ok {
		return h, nil
	}
	return nil, models.ErrNoProviderData
}

type fakeExplainer struct {
	mu      sync.Mutex
	prompts []string
	reply   string
	err     error
	unset   bool
}

func (e *fakeExplainer) Configured() bool { return !e.unset }

func (e *fakeExplainer) Explain(_ context.Context, prompt string) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.prompts = append(e.prompts, prompt)
	return e.reply, e.err
}

func (e *fakeExplainer) calls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.prompts)
}

type fakeNews struct {
	items []models.NewsItem
	err   error
	query string
}

func (n *fakeNews) Search(_ context.Context, query string, max int) ([]models.NewsItem, error) {
	n.query = query
	if n.err != nil {
		return nil, n.err
	}
	if len(n.items) > max {
		return n.items[:max], nil
	}
	return n.items, nil
}

// nextDay is a calendar without holidays or weekends.
type nextDay struct{}

func (nextDay) NextSession(after time.Time) time.Time {
	d := after.UTC()
	return time.Date(d.Year(), d.Month(), d.Day()+1, 0, 0, 0, 0, time.UTC)
}

type recordingPublisher struct {
	events []*models.PredictionEvent
	err    error
}

func (p *recordingPublisher) PublishPrediction(_ context.Context, e *models.PredictionEvent) error {
	p.events = append(p.events, e)
	return p.err
}

func (p *recordingPublisher) Close() error { return nil }

var errBoom = errors.New("boom")

// env wires real file-backed stores in a temp dir.
type env struct {
	prices  *repository.ParquetPriceStore
	models  *repository.FSModelStore
	tracker *repository.SQLTracker
	trainer *Trainer
}

func newEnv(t *testing.T) *env {
	t.Helper()
	dir := t.TempDir()
	ctx := context.Background()

	tracker, err := repository.OpenTracker(ctx, "sqlite:///"+filepath.Join(dir, "runs.db"), nil, nop)
	require.NoError(t, err)
	t.Cleanup(func() { _ = tracker.Close() })

	store, err := repository.NewFSModelStore(filepath.Join(dir, "mlruns"), tracker, 4, nop)
	require.NoError(t, err)

	prices := repository.NewParquetPriceStore(filepath.Join(dir, "prices"), nop)

	params := boosting.DefaultParams()
	params.NEstimators = 30
	params.MaxDepth = 3
	trainer := NewTrainer(prices, store, tracker, metrics.Nop{}, TrainerConfig{Params: params, Split: 0.8, Horizon: 1}, nop)

	return &env{prices: prices, models: store, tracker: tracker, trainer: trainer}
}

// seed stores prices for ticker and trains a model on them.
func (e *env) seed(t *testing.T, ticker string, bars int) *models.TrainingRun {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, e.prices.Save(ctx, history(ticker, bars)))
	run, err := e.trainer.Train(ctx, ticker)
	require.NoError(t, err)
	return run
}
