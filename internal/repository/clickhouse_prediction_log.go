package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"WhyAgent/internal/domain/models"
	pkgch "WhyAgent/pkg/clickhouse"
	applogger "WhyAgent/pkg/logger"
)

const predictionsDDL = `
CREATE TABLE IF NOT EXISTS predictions (
	id          String,
	ticker      LowCardinality(String),
	pred_pct    Float64,
	as_of       DateTime64(3, 'UTC'),
	model_uri   String,
	features    String,
	created_at  DateTime64(3, 'UTC')
) ENGINE = MergeTree
PARTITION BY toYYYYMM(created_at)
ORDER BY (ticker, created_at)`

// CHPredictionLog stores served predictions in ClickHouse.
type CHPredictionLog struct {
	db *sql.DB
	l  *applogger.Logger
}

// NewCHPredictionLog creates the predictions table when missing.
func NewCHPredictionLog(ctx context.Context, ch *pkgch.Client, l *applogger.Logger) (*CHPredictionLog, error) {
	if err := ch.InitSchema(ctx, []string{predictionsDDL}); err != nil {
		return nil, err
	}
	return &CHPredictionLog{db: ch.DB(), l: orNop(l)}, nil
}

func (s *CHPredictionLog) LogPrediction(ctx context.Context, p *models.Prediction) error {
	start := time.Now()
	feats, err := json.Marshal(p.Features)
	if err != nil {
		return fmt.Errorf("marshal features: %w", err)
	}

	const q = `INSERT INTO predictions (id, ticker, pred_pct, as_of, model_uri, features, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`
	_, err = s.db.ExecContext(ctx, q, p.ID, p.Ticker, p.PredPct, p.AsOf.UTC(), p.ModelURI, string(feats), p.CreatedAt.UTC())
	if err != nil {
		s.l.Error("clickhouse log_prediction insert error",
			applogger.String("ticker", p.Ticker),
			applogger.Error(err),
		)
		return fmt.Errorf("log prediction: %w", err)
	}
	s.l.Debug("clickhouse log_prediction ok",
		applogger.String("ticker", p.Ticker),
		applogger.Duration("duration_ms", time.Since(start)),
	)
	return nil
}

// RecentPredictions returns the latest n predictions for ticker, newest first.
func (s *CHPredictionLog) RecentPredictions(ctx context.Context, ticker string, n int) ([]models.Prediction, error) {
	const q = `
        SELECT id, ticker, pred_pct, as_of, model_uri, created_at
        FROM predictions
        WHERE ticker = ?
        ORDER BY created_at DESC
        LIMIT ?
    `
	rows, err := s.db.QueryContext(ctx, q, ticker, n)
	if err != nil {
		s.l.Error("clickhouse recent_predictions query error",
			applogger.String("ticker", ticker),
			applogger.Int("limit", n),
			applogger.Error(err),
		)
		return nil, fmt.Errorf("recent predictions: %w", err)
	}
	defer rows.Close()

	out := make([]models.Prediction, 0, n)
	for rows.Next() {
		var p models.Prediction
		if err := rows.Scan(&p.ID, &p.Ticker, &p.PredPct, &p.AsOf, &p.ModelURI, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan prediction: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return out, nil
}
