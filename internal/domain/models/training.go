package models

import "time"

// TrainingRun is one tracked model fit.
type TrainingRun struct {
	RunID        string            `json:"run_id"`
	RunName      string            `json:"run_name"`
	Ticker       string            `json:"ticker"`
	Params       map[string]string `json:"params"`
	MAE          float64           `json:"mae"`
	RMSE         float64           `json:"rmse"`
	TrainRows    int               `json:"train_rows"`
	TestRows     int               `json:"test_rows"`
	ArtifactPath string            `json:"artifact_path"`
	CreatedAt    time.Time         `json:"created_at"`
}

// TrainSummary aggregates a batch training pass.
type TrainSummary struct {
	Trained []TrainingRun     `json:"trained"`
	Failed  map[string]string `json:"failed,omitempty"`
}

// FetchSummary aggregates a batch price download.
type FetchSummary struct {
	Saved   map[string]string `json:"saved"` // ticker -> source
	Skipped []string          `json:"skipped,omitempty"`
	Failed  map[string]string `json:"failed,omitempty"`
}

// TrainRequest asks the trainer to refit one ticker.
type TrainRequest struct {
	Ticker      string    `json:"ticker"`
	RequestedAt time.Time `json:"requested_at"`
}

// PredictionEvent is published after every prediction.
type PredictionEvent struct {
	ID        string    `json:"id"`
	Ticker    string    `json:"ticker"`
	PredPct   float64   `json:"pred_pct"`
	AsOf      time.Time `json:"as_of"`
	ModelURI  string    `json:"model_uri"`
	CreatedAt time.Time `json:"created_at"`
}
