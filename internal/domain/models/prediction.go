package models

import "time"

// FeatureImportance is one entry of a model's importance ranking.
type FeatureImportance struct {
	Feature    string  `json:"feature"`
	Importance float64 `json:"importance"`
}

// Prediction is a next-period return forecast for one ticker.
type Prediction struct {
	ID          string              `json:"id"`
	Ticker      string              `json:"ticker"`
	PredPct     float64             `json:"pred_pct"`
	AsOf        time.Time           `json:"as_of"`
	ModelURI    string              `json:"model_uri"`
	Features    map[string]float64  `json:"features,omitempty"`
	TopFeatures []FeatureImportance `json:"top_features,omitempty"`
	CreatedAt   time.Time           `json:"created_at"`
}

// NewsItem is one search hit.
type NewsItem struct {
	Title  string `json:"title"`
	Source string `json:"source"`
	Date   string `json:"date"`
	Link   string `json:"link"`
}

// Explanation is the result of explaining a prediction.
type Explanation struct {
	Ticker         string              `json:"ticker"`
	PredPct        float64             `json:"pred_pct"`
	PredPctPercent float64             `json:"pred_pct_percent"`
	TargetDate     string              `json:"target_date"`
	TopFeatures    []FeatureImportance `json:"top_features"`
	NewsCount      int                 `json:"news_count"`
	Explanation    string              `json:"explanation"`
}

// ChatAnswer is the chat endpoint's reply. When OK is false only Answer is set.
type ChatAnswer struct {
	OK     bool   `json:"ok"`
	Answer string `json:"answer,omitempty"`
	*Explanation
}
