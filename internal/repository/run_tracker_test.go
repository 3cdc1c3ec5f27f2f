package repository

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"WhyAgent/internal/domain/models"
)

func newSQLiteTracker(t *testing.T) *SQLTracker {
	t.Helper()
	tr, err := OpenTracker(context.Background(), "sqlite:///"+filepath.Join(t.TempDir(), "runs.db"), nil, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = tr.Close() })
	return tr
}

func TestTrackerCreateAndGet(t *testing.T) {
	tr := newSQLiteTracker(t)
	ctx := context.Background()
	created := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	run := &models.TrainingRun{
		RunID:        "r1",
		RunName:      "xgb_AAPL",
		Ticker:       "AAPL",
		Params:       map[string]string{"max_depth": "5"},
		MAE:          0.011,
		RMSE:         0.015,
		TrainRows:    40,
		TestRows:     10,
		ArtifactPath: "/tmp/r1/model/model.json",
		CreatedAt:    created,
	}
	require.NoError(t, tr.CreateRun(ctx, run))

	got, err := tr.GetRun(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, *run, *got)
	assert.Equal(t, "sqlite", tr.Backend())
	assert.NoError(t, tr.Health(ctx))
}

func TestTrackerRunByNameVersions(t *testing.T) {
	tr := newSQLiteTracker(t)
	ctx := context.Background()
	base := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	for i, id := range []string{"a", "b", "c"} {
		require.NoError(t, tr.CreateRun(ctx, &models.TrainingRun{
			RunID: id, RunName: "xgb_MSFT", Ticker: "MSFT", CreatedAt: base.Add(time.Duration(i) * time.Hour),
		}))
	}
	require.NoError(t, tr.CreateRun(ctx, &models.TrainingRun{RunID: "z", RunName: "xgb_AAPL", CreatedAt: base.Add(48 * time.Hour)}))

	latest, err := tr.RunByName(ctx, "xgb_MSFT", 0)
	require.NoError(t, err)
	assert.Equal(t, "c", latest.RunID)

	first, err := tr.RunByName(ctx, "xgb_MSFT", 1)
	require.NoError(t, err)
	assert.Equal(t, "a", first.RunID)

	_, err = tr.RunByName(ctx, "xgb_MSFT", 4)
	assert.ErrorIs(t, err, models.ErrModelNotFound)

	runs, err := tr.ListRuns(ctx, "xgb_MSFT", 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "c", runs[0].RunID)

	all, err := tr.ListRuns(ctx, "", 0)
	require.NoError(t, err)
	assert.Len(t, all, 4)
}

func TestTrackerMissingRun(t *testing.T) {
	_, err := newSQLiteTracker(t).GetRun(context.Background(), "nope")
	assert.ErrorIs(t, err, models.ErrModelNotFound)
}

func TestOpenTrackerRejectsUnknownScheme(t *testing.T) {
	_, err := OpenTracker(context.Background(), "postgres://x", nil, nil)
	assert.Error(t, err)

	_, err = OpenTracker(context.Background(), "clickhouse://", nil, nil)
	assert.ErrorIs(t, err, models.ErrNotConfigured)
}
