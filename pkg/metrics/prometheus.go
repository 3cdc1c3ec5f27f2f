package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	predictions      *prometheus.CounterVec
	lastPrediction   *prometheus.GaugeVec
	providerAttempts *prometheus.CounterVec
	newsFetches      *prometheus.CounterVec
	newsItems        prometheus.Histogram
	trainingMAE      *prometheus.GaugeVec
	trainingRMSE     *prometheus.GaugeVec
	errorsTotal      *prometheus.CounterVec
	latency          *prometheus.HistogramVec
}

// New creates a recorder registered on the default Prometheus registry.
func New() *Recorder {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates a recorder registered on reg.
func NewWithRegistry(reg prometheus.Registerer) *Recorder {
	factory := promauto.With(reg)
	return &Recorder{
		predictions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "whyagent_predictions_total",
				Help: "Total number of predictions served",
			},
			[]string{"ticker"},
		),
		lastPrediction: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "whyagent_last_prediction_pct",
				Help: "Last predicted next-period return for a ticker",
			},
			[]string{"ticker"},
		),
		providerAttempts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "whyagent_price_provider_attempts_total",
				Help: "Price provider attempts by outcome (hit, empty, error)",
			},
			[]string{"provider", "outcome"},
		),
		newsFetches: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "whyagent_news_fetches_total",
				Help: "News searches by outcome",
			},
			[]string{"outcome"},
		),
		newsItems: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "whyagent_news_items",
				Help:    "Number of news items returned per search",
				Buckets: []float64{0, 1, 2, 3, 5, 10, 20},
			},
		),
		trainingMAE: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "whyagent_training_mae",
				Help: "Holdout MAE of the last training run",
			},
			[]string{"ticker"},
		),
		trainingRMSE: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "whyagent_training_rmse",
				Help: "Holdout RMSE of the last training run",
			},
			[]string{"ticker"},
		),
		errorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "whyagent_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		latency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "whyagent_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

// RecordPrediction counts a prediction and keeps the latest value.
func (r *Recorder) RecordPrediction(ticker string, pred float64) {
	r.predictions.WithLabelValues(ticker).Inc()
	r.lastPrediction.WithLabelValues(ticker).Set(pred)
}

// RecordProviderAttempt records one price provider attempt.
func (r *Recorder) RecordProviderAttempt(provider, outcome string) {
	r.providerAttempts.WithLabelValues(provider, outcome).Inc()
}

// RecordNewsFetch records a news search.
func (r *Recorder) RecordNewsFetch(outcome string, items int) {
	r.newsFetches.WithLabelValues(outcome).Inc()
	r.newsItems.Observe(float64(items))
}

// RecordTraining records holdout metrics of a training run.
func (r *Recorder) RecordTraining(ticker string, mae, rmse float64) {
	r.trainingMAE.WithLabelValues(ticker).Set(mae)
	r.trainingRMSE.WithLabelValues(ticker).Set(rmse)
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}

// Nop discards all measurements.
type Nop struct{}

func (Nop) RecordPrediction(string, float64) {}
func (Nop) RecordProviderAttempt(string, string) {}
func (Nop) RecordNewsFetch(string, int) {}
func (Nop) RecordTraining(string, float64, float64) {}
func (Nop) RecordError(string) {}
func (Nop) RecordLatency(string, float64) {}
