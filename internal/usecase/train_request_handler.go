package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"WhyAgent/internal/domain/models"
	domrepo "WhyAgent/internal/domain/repository"
	pkgkafka "WhyAgent/pkg/kafka"
	"WhyAgent/pkg/logger"
	"WhyAgent/pkg/util"
)

// TrainRequestHandler consumes train requests from Kafka, refreshes the
// ticker's prices and retrains its model.
type TrainRequestHandler struct {
	topic   string
	fetcher *PriceFetcher
	trainer *Trainer
	metrics domrepo.Metrics
	logger  *logger.Logger
}

// NewTrainRequestHandler creates the handler. fetcher may be nil to train on
// whatever prices are already stored.
func NewTrainRequestHandler(topic string, fetcher *PriceFetcher, trainer *Trainer, m domrepo.Metrics, l *logger.Logger) *TrainRequestHandler {
	return &TrainRequestHandler{topic: topic, fetcher: fetcher, trainer: trainer, metrics: m, logger: l}
}

func (h *TrainRequestHandler) Topic() string { return h.topic }

// incoming message schema: {ticker, requested_at}
func (h *TrainRequestHandler) Handle(ctx context.Context, b []byte) error {
	var req models.TrainRequest
	if err := json.Unmarshal(b, &req); err != nil {
		h.metrics.RecordError("consumer_unmarshal")
		return err
	}
	req.Ticker = util.NormalizeTicker(req.Ticker)
	if req.Ticker == "" {
		h.metrics.RecordError("consumer_invalid")
		return errors.New("train request without ticker")
	}
	if !util.IsTicker(req.Ticker) {
		h.metrics.RecordError("consumer_invalid")
		return fmt.Errorf("train request with invalid ticker %q", req.Ticker)
	}
	if !req.RequestedAt.IsZero() {
		h.metrics.RecordLatency("train_request_lag", time.Since(req.RequestedAt).Seconds())
	}

	traceID := pkgkafka.TraceIDFromContext(ctx)
	if h.fetcher != nil {
		if _, err := h.fetcher.Fetch(ctx, req.Ticker); err != nil {
			// Stale prices still train; only a missing file fails below.
			h.logger.Warn("price refresh failed",
				logger.String("ticker", req.Ticker),
				logger.String("trace_id", traceID),
				logger.Error(err),
			)
		}
	}

	run, err := h.trainer.Train(ctx, req.Ticker)
	if err != nil {
		h.metrics.RecordError("consumer_train")
		return fmt.Errorf("train %s: %w", req.Ticker, err)
	}
	h.logger.Info("train request done",
		logger.String("ticker", req.Ticker),
		logger.String("run_id", run.RunID),
		logger.String("trace_id", traceID),
	)
	return nil
}

var _ pkgkafka.MessageHandler = (*TrainRequestHandler)(nil)
