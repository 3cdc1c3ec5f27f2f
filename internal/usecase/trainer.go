package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"WhyAgent/internal/domain/models"
	domrepo "WhyAgent/internal/domain/repository"
	"WhyAgent/internal/services/boosting"
	"WhyAgent/internal/services/features"
	"WhyAgent/pkg/logger"
	"WhyAgent/pkg/util"
)

// TrainerConfig holds the training knobs.
type TrainerConfig struct {
	Params      boosting.Params
	Split       float64
	Horizon     int
	StrictDates bool
}

// Trainer fits one regressor per ticker and records it as a run.
type Trainer struct {
	prices  domrepo.PriceStore
	models  domrepo.ModelStore
	tracker domrepo.Tracker
	metrics domrepo.Metrics
	cfg     TrainerConfig
	logger  *logger.Logger
	now     func() time.Time
}

func NewTrainer(prices domrepo.PriceStore, store domrepo.ModelStore, tracker domrepo.Tracker, m domrepo.Metrics, cfg TrainerConfig, l *logger.Logger) *Trainer {
	if cfg.Split <= 0 || cfg.Split >= 1 {
		cfg.Split = 0.8
	}
	if cfg.Horizon <= 0 {
		cfg.Horizon = features.DefaultHorizon
	}
	return &Trainer{prices: prices, models: store, tracker: tracker, metrics: m, cfg: cfg, logger: l, now: time.Now}
}

// RunName is the tracked name of a ticker's model.
func RunName(ticker string) string {
	return "xgb_" + strings.ToUpper(ticker)
}

// Train fits a model for ticker on its stored prices, evaluates it on the
// time-ordered holdout and records the run.
func (t *Trainer) Train(ctx context.Context, ticker string) (*models.TrainingRun, error) {
	ticker = util.NormalizeTicker(ticker)

	raw, err := t.prices.Load(ctx, ticker)
	if err != nil {
		return nil, err
	}
	table, err := features.Build(raw, features.Options{
		Horizon:     t.cfg.Horizon,
		Mode:        features.ModeTraining,
		StrictDates: t.cfg.StrictDates,
	})
	if err != nil {
		return nil, fmt.Errorf("build features for %s: %w", ticker, err)
	}

	train, test := table.SplitAt(t.cfg.Split)
	if train.Len() == 0 || test.Len() == 0 {
		return nil, &features.InsufficientDataError{Rows: table.Len(), Min: features.DefaultMinRows}
	}

	start := time.Now()
	reg := boosting.New(t.cfg.Params, features.FeatureNames)
	if err := reg.Fit(train.X(), train.Y()); err != nil {
		return nil, fmt.Errorf("fit %s: %w", ticker, err)
	}
	t.metrics.RecordLatency("train_fit", time.Since(start).Seconds())

	pred, err := reg.PredictBatch(test.X())
	if err != nil {
		return nil, fmt.Errorf("evaluate %s: %w", ticker, err)
	}
	y := test.Y()

	run := &models.TrainingRun{
		RunID:     uuid.NewString(),
		RunName:   RunName(ticker),
		Ticker:    ticker,
		Params:    t.cfg.Params.Map(),
		MAE:       boosting.MAE(y, pred),
		RMSE:      boosting.RMSE(y, pred),
		TrainRows: train.Len(),
		TestRows:  test.Len(),
		CreatedAt: t.now().UTC(),
	}

	run.ArtifactPath, err = t.models.SaveArtifact(ctx, run.RunID, reg)
	if err != nil {
		return nil, fmt.Errorf("save model for %s: %w", ticker, err)
	}
	if err := t.tracker.CreateRun(ctx, run); err != nil {
		return nil, fmt.Errorf("record run for %s: %w", ticker, err)
	}

	t.metrics.RecordTraining(ticker, run.MAE, run.RMSE)
	t.logger.Info("model trained",
		logger.String("ticker", ticker),
		logger.String("run_id", run.RunID),
		logger.Int("train_rows", run.TrainRows),
		logger.Int("test_rows", run.TestRows),
		logger.Float64("mae", run.MAE),
		logger.Float64("rmse", run.RMSE),
	)
	return run, nil
}

// TrainAll trains tickers sequentially; a failing ticker is logged and the rest continue.
func (t *Trainer) TrainAll(ctx context.Context, tickers []string) (*models.TrainSummary, error) {
	sum := &models.TrainSummary{Failed: map[string]string{}}
	for _, tk := range tickers {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		run, err := t.Train(ctx, tk)
		if err != nil {
			t.metrics.RecordError("train")
			t.logger.Error("training failed", logger.String("ticker", tk), logger.Error(err))
			sum.Failed[util.NormalizeTicker(tk)] = err.Error()
			continue
		}
		sum.Trained = append(sum.Trained, *run)
	}
	return sum, nil
}
