package models

// Requests for the HTTP API. Defined in domain for consistency and reuse.

type PredictRequest struct {
	Ticker string `json:"ticker" validate:"required,ticker"`
}

type ExplainRequest struct {
	Ticker    string   `json:"ticker" validate:"required,ticker"`
	PredPct   *float64 `json:"pred_pct"`
	TopK      int      `json:"top_k" default:"5" validate:"gte=1,lte=5"`
	NewsQuery *string  `json:"news_query" validate:"omitempty,max=200"`
}

type ChatRequest struct {
	Message string  `json:"message" validate:"required,max=2000"`
	Ticker  *string `json:"ticker" validate:"omitempty,ticker"`
}
