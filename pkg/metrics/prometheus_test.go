package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecorder(t *testing.T) {
	r := NewWithRegistry(prometheus.NewRegistry())

	r.RecordPrediction("AAPL", 0.012)
	r.RecordPrediction("AAPL", -0.004)
	r.RecordProviderAttempt("stooq", "hit")
	r.RecordTraining("AAPL", 0.01, 0.02)

	assert.Equal(t, 2.0, testutil.ToFloat64(r.predictions.WithLabelValues("AAPL")))
	assert.Equal(t, -0.004, testutil.ToFloat64(r.lastPrediction.WithLabelValues("AAPL")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.providerAttempts.WithLabelValues("stooq", "hit")))
	assert.Equal(t, 0.02, testutil.ToFloat64(r.trainingRMSE.WithLabelValues("AAPL")))
}
