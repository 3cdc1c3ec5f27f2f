package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAppliesDefaults(t *testing.T) {
	c, err := New()
	require.NoError(t, err)

	assert.Equal(t, 8000, c.Server.Port)
	assert.Equal(t, "data", c.Data.BasePath)
	assert.Equal(t, "3mo", c.Data.PricePeriod)
	assert.Equal(t, "1d", c.Data.PriceInterval)
	assert.Equal(t, 400, c.Model.Params.NEstimators)
	assert.Equal(t, 5, c.Model.Params.MaxDepth)
	assert.InDelta(t, 0.05, c.Model.Params.LearningRate, 1e-12)
	assert.Equal(t, int64(42), c.Model.Params.RandomState)
	assert.Equal(t, "gpt-4o-mini", c.LLM.Model)
	assert.Equal(t, 10*time.Second, c.News.Timeout)
	assert.Equal(t, "sqlite:///whyagent.db", c.Tracking.URI)
	assert.Equal(t, "info", c.Log.Level)
	require.NoError(t, c.Validate())
}

func TestLoadMergesFileOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
environment: test
data:
  base_path: /srv/whyagent
  tickers: [AAPL, MSFT]
model:
  params:
    max_depth: 3
`), 0o644))

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "test", c.Environment)
	assert.Equal(t, []string{"AAPL", "MSFT"}, c.Data.Tickers)
	assert.Equal(t, 3, c.Model.Params.MaxDepth)
	assert.Equal(t, 400, c.Model.Params.NEstimators)
	assert.Equal(t, "/srv/whyagent/prices", c.PricesDir())
}

func TestLoadRejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("model:\n  train_split: 1.5\n"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestApplyEnv(t *testing.T) {
	c, err := New()
	require.NoError(t, err)

	env := map[string]string{
		"MODEL_URI":           "runs:/abc/model",
		"OPENAI_API_KEY":      "sk-test",
		"SERPER_API_KEY":      "serper",
		"MLFLOW_TRACKING_URI": "sqlite:///tmp/t.db",
		"HTTP_PORT":           "9001",
		"TICKERS":             "AAPL, NVDA ,",
		"KAFKA_BROKERS":       "k1:9092,k2:9092",
	}
	c.ApplyEnv(func(k string) string { return env[k] })

	assert.Equal(t, "runs:/abc/model", c.Model.URI)
	assert.Equal(t, "sk-test", c.LLM.APIKey)
	assert.Equal(t, "serper", c.News.APIKey)
	assert.Equal(t, "sqlite:///tmp/t.db", c.Tracking.URI)
	assert.Equal(t, 9001, c.Server.Port)
	assert.Equal(t, []string{"AAPL", "NVDA"}, c.Data.Tickers)
	assert.True(t, c.Kafka.Enabled)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, c.Kafka.Brokers)
	require.NoError(t, c.Validate())
}

func TestValidateTrackingScheme(t *testing.T) {
	c, err := New()
	require.NoError(t, err)

	c.Tracking.URI = "http://mlflow:5000"
	assert.Error(t, c.Validate())

	c.Tracking.URI = "clickhouse://"
	assert.Error(t, c.Validate())
	c.ClickHouse.Enabled = true
	assert.NoError(t, c.Validate())
}
