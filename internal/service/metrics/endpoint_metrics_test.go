package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestEndpointObserve(t *testing.T) {
	m := NewEndpoint(prometheus.NewRegistry())

	m.Observe("explain", time.Now(), 200)
	m.Observe("explain", time.Now(), 429)
	m.Observe("explain", time.Now(), 500)
	m.Observe("explain", time.Now(), 503)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.errors.WithLabelValues("explain", "429")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.errors.WithLabelValues("explain", "5xx")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.latency))
}
