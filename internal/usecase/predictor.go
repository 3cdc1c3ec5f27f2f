package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"WhyAgent/internal/domain/models"
	domrepo "WhyAgent/internal/domain/repository"
	"WhyAgent/internal/services/features"
	"WhyAgent/pkg/logger"
	"WhyAgent/pkg/util"
)

// DefaultTopK is the number of importances reported when the caller gives none.
const DefaultTopK = 5

// PredictorConfig holds the prediction knobs.
type PredictorConfig struct {
	ModelURI    string
	Horizon     int
	StrictDates bool
}

// Predictor serves next-period return forecasts.
type Predictor struct {
	models  domrepo.ModelStore
	prices  domrepo.PriceStore
	events  domrepo.EventPublisher
	log     domrepo.PredictionLog
	metrics domrepo.Metrics
	cfg     PredictorConfig
	logger  *logger.Logger
	now     func() time.Time
}

// NewPredictor creates a predictor. events and log may be nil.
func NewPredictor(store domrepo.ModelStore, prices domrepo.PriceStore, events domrepo.EventPublisher, log domrepo.PredictionLog, m domrepo.Metrics, cfg PredictorConfig, l *logger.Logger) *Predictor {
	if cfg.Horizon <= 0 {
		cfg.Horizon = features.DefaultHorizon
	}
	return &Predictor{models: store, prices: prices, events: events, log: log, metrics: m, cfg: cfg, logger: l, now: time.Now}
}

// ModelURI returns uri or the configured default.
func (p *Predictor) ModelURI(uri string) string {
	if uri = strings.TrimSpace(uri); uri != "" {
		return uri
	}
	return p.cfg.ModelURI
}

// Predict forecasts ticker's next-period change with the model at modelURI
// (the configured model when empty).
func (p *Predictor) Predict(ctx context.Context, ticker, modelURI string) (*models.Prediction, error) {
	return p.predict(ctx, ticker, modelURI, 0)
}

// PredictWithImportances is Predict plus the model's top-k feature importances.
func (p *Predictor) PredictWithImportances(ctx context.Context, ticker, modelURI string, topK int) (*models.Prediction, error) {
	if topK <= 0 {
		topK = DefaultTopK
	}
	return p.predict(ctx, ticker, modelURI, topK)
}

func (p *Predictor) predict(ctx context.Context, ticker, modelURI string, topK int) (*models.Prediction, error) {
	start := time.Now()
	ticker = util.NormalizeTicker(ticker)
	uri := p.ModelURI(modelURI)

	model, err := p.models.Load(ctx, uri)
	if err != nil {
		return nil, err
	}

	raw, err := p.prices.Load(ctx, ticker)
	if err != nil {
		return nil, err
	}
	table, err := features.Build(raw, features.Options{
		Horizon:     p.cfg.Horizon,
		Mode:        features.ModeInference,
		StrictDates: p.cfg.StrictDates,
	})
	if err != nil {
		return nil, fmt.Errorf("build features for %s: %w", ticker, err)
	}
	row, ok := table.Latest()
	if !ok {
		return nil, &features.InsufficientDataError{Rows: 0, Min: 1}
	}

	x := row.Vector()
	y, err := model.Predict(x)
	if err != nil {
		return nil, fmt.Errorf("predict %s: %w", ticker, err)
	}

	pred := &models.Prediction{
		ID:        uuid.NewString(),
		Ticker:    ticker,
		PredPct:   y,
		AsOf:      row.Date,
		ModelURI:  uri,
		Features:  make(map[string]float64, len(x)),
		CreatedAt: p.now().UTC(),
	}
	for i, name := range features.FeatureNames {
		pred.Features[name] = x[i]
	}
	if topK > 0 {
		pred.TopFeatures = model.TopImportances(topK)
	}

	p.metrics.RecordPrediction(ticker, y)
	p.metrics.RecordLatency("predict", time.Since(start).Seconds())
	p.record(ctx, pred)
	return pred, nil
}

// record publishes and logs the prediction; failures are logged, not returned.
func (p *Predictor) record(ctx context.Context, pred *models.Prediction) {
	if p.events != nil {
		err := p.events.PublishPrediction(ctx, &models.PredictionEvent{
			ID:        pred.ID,
			Ticker:    pred.Ticker,
			PredPct:   pred.PredPct,
			AsOf:      pred.AsOf,
			ModelURI:  pred.ModelURI,
			CreatedAt: pred.CreatedAt,
		})
		if err != nil {
			p.metrics.RecordError("publish_prediction")
			p.logger.Warn("prediction event publish failed", logger.String("ticker", pred.Ticker), logger.Error(err))
		}
	}
	if p.log != nil {
		if err := p.log.LogPrediction(ctx, pred); err != nil {
			p.metrics.RecordError("log_prediction")
			p.logger.Warn("prediction log write failed", logger.String("ticker", pred.Ticker), logger.Error(err))
		}
	}
}
