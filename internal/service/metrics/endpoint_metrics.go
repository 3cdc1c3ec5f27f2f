package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Endpoint tracks latency and errors of the API use-case endpoints.
type Endpoint struct {
	latency *prometheus.HistogramVec
	errors  *prometheus.CounterVec
}

func NewEndpoint(reg prometheus.Registerer) *Endpoint {
	f := promauto.With(reg)
	return &Endpoint{
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "whyagent",
				Subsystem: "api",
				Name:      "latency_seconds",
				Help:      "Latency of API endpoints",
				Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			},
			[]string{"endpoint"},
		),
		errors: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "whyagent",
				Subsystem: "api",
				Name:      "errors_total",
				Help:      "Errors by API endpoint",
			},
			[]string{"endpoint", "status"},
		),
	}
}

// Observe records one call; status is the HTTP status returned.
func (m *Endpoint) Observe(endpoint string, start time.Time, status int) {
	if m == nil {
		return
	}
	m.latency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	if status >= 400 {
		m.errors.WithLabelValues(endpoint, statusClass(status)).Inc()
	}
}

func statusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status == 429:
		return "429"
	default:
		return "4xx"
	}
}
