package repository

import (
	"context"
	"io"

	"WhyAgent/internal/domain/models"
	"WhyAgent/internal/services/features"
)

// PriceStore persists one price file per ticker under a base path.
type PriceStore interface {
	Save(ctx context.Context, history *models.PriceHistory) error
	Load(ctx context.Context, ticker string) (features.RawTable, error)
	Path(ticker string) string
}

// Model is a loaded regression model.
type Model interface {
	Predict(x []float64) (float64, error)
	TopImportances(k int) []models.FeatureImportance
}

// Artifact is a trained model that can serialize itself.
type Artifact interface {
	Save(w io.Writer) error
}

// ModelStore persists trained models and resolves model URIs.
type ModelStore interface {
	Load(ctx context.Context, uri string) (Model, error)
	SaveArtifact(ctx context.Context, runID string, model Artifact) (string, error)
}

// Tracker records training runs and resolves registry names.
type Tracker interface {
	CreateRun(ctx context.Context, run *models.TrainingRun) error
	GetRun(ctx context.Context, runID string) (*models.TrainingRun, error)
	// RunByName returns the n-th (1-based) run with the name, or the latest when version is 0.
	RunByName(ctx context.Context, name string, version int) (*models.TrainingRun, error)
	ListRuns(ctx context.Context, name string, limit int) ([]models.TrainingRun, error)
	Health(ctx context.Context) error
	Close() error
}

// PredictionLog stores served predictions.
type PredictionLog interface {
	LogPrediction(ctx context.Context, p *models.Prediction) error
}

// EventPublisher publishes prediction events.
type EventPublisher interface {
	PublishPrediction(ctx context.Context, event *models.PredictionEvent) error
	Close() error
}

type Metrics interface {
	RecordPrediction(ticker string, pred float64)
	RecordProviderAttempt(provider, outcome string)
	RecordNewsFetch(outcome string, items int)
	RecordTraining(ticker string, mae, rmse float64)
	RecordError(kind string)
	RecordLatency(op string, seconds float64)
}
