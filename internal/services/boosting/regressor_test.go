package boosting

import (
	"bytes"
	"math"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var names = []string{"ret_1", "ret_3", "ret_5", "vol_chg_3", "dow"}

// stepData labels rows by the sign of the first feature; the rest is noise.
func stepData(n int) ([][]float64, []float64) {
	x := make([][]float64, n)
	y := make([]float64, n)
	for i := 0; i < n; i++ {
		f0 := math.Sin(float64(i)) * 0.02
		x[i] = []float64{f0, math.Cos(float64(i) * 1.7), float64(i%7) / 10, 0, float64(i % 5)}
		if f0 > 0 {
			y[i] = 0.01
		} else {
			y[i] = -0.01
		}
	}
	return x, y
}

func smallParams() Params {
	p := DefaultParams()
	p.NEstimators = 60
	p.MaxDepth = 3
	p.LearningRate = 0.3
	return p
}

func TestFitLearnsStepFunction(t *testing.T) {
	x, y := stepData(80)
	m := New(smallParams(), names)
	require.NoError(t, m.Fit(x, y))
	assert.Len(t, m.Trees, 60)

	pred, err := m.PredictBatch(x)
	require.NoError(t, err)
	assert.Less(t, MAE(y, pred), 0.002)

	top := m.TopImportances(1)
	require.Len(t, top, 1)
	assert.Equal(t, "ret_1", top[0].Feature)
}

func TestFitDeterministic(t *testing.T) {
	x, y := stepData(50)
	a := New(smallParams(), names)
	b := New(smallParams(), names)
	require.NoError(t, a.Fit(x, y))
	require.NoError(t, b.Fit(x, y))

	probe := []float64{0.01, 0.2, 0.3, 0, 2}
	pa, err := a.Predict(probe)
	require.NoError(t, err)
	pb, err := b.Predict(probe)
	require.NoError(t, err)
	assert.Equal(t, pa, pb)
}

func TestImportancesNormalizedAndSorted(t *testing.T) {
	x, y := stepData(60)
	m := New(DefaultParams(), names)
	require.NoError(t, m.Fit(x, y))

	imps := m.Importances()
	require.Len(t, imps, len(names))
	sum := 0.0
	for i, imp := range imps {
		sum += imp.Importance
		if i > 0 {
			assert.GreaterOrEqual(t, imps[i-1].Importance, imp.Importance)
		}
	}
	assert.InDelta(t, 1.0, sum, 1e-9)
	// constant column is never split on
	for _, imp := range imps {
		if imp.Feature == "vol_chg_3" {
			assert.Equal(t, 0.0, imp.Importance)
		}
	}
}

func TestConstantLabelPredictsMean(t *testing.T) {
	x, _ := stepData(40)
	y := make([]float64, len(x))
	for i := range y {
		y[i] = 0.003
	}
	m := New(smallParams(), names)
	require.NoError(t, m.Fit(x, y))
	p, err := m.Predict(x[0])
	require.NoError(t, err)
	assert.InDelta(t, 0.003, p, 1e-12)
}

func TestFitValidation(t *testing.T) {
	m := New(DefaultParams(), names)
	assert.Error(t, m.Fit(nil, nil))
	assert.Error(t, m.Fit([][]float64{{1, 2, 3, 4, 5}}, []float64{1, 2}))
	assert.ErrorIs(t, m.Fit([][]float64{{1, 2}}, []float64{1}), ErrFeatureMismatch)

	bad := DefaultParams()
	bad.Subsample = 0
	assert.Error(t, New(bad, names).Fit([][]float64{{1, 2, 3, 4, 5}}, []float64{1}))
}

func TestPredictErrors(t *testing.T) {
	m := New(DefaultParams(), names)
	_, err := m.Predict([]float64{1, 2, 3, 4, 5})
	assert.ErrorIs(t, err, ErrNotTrained)

	x, y := stepData(40)
	require.NoError(t, m.Fit(x, y))
	_, err = m.Predict([]float64{1})
	assert.ErrorIs(t, err, ErrFeatureMismatch)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	x, y := stepData(40)
	m := New(smallParams(), names)
	require.NoError(t, m.Fit(x, y))

	var buf bytes.Buffer
	require.NoError(t, m.Save(&buf))
	loaded, err := Load(&buf)
	require.NoError(t, err)

	for _, row := range x[:5] {
		want, _ := m.Predict(row)
		got, err := loaded.Predict(row)
		require.NoError(t, err)
		assert.InDelta(t, want, got, 1e-15)
	}
	assert.Equal(t, m.Importances(), loaded.Importances())

	path := filepath.Join(t.TempDir(), "model.json")
	require.NoError(t, m.SaveFile(path))
	fromFile, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, len(m.Trees), len(fromFile.Trees))
}

func TestLoadRejectsForeignFormat(t *testing.T) {
	_, err := Load(bytes.NewBufferString(`{"format":"something-else","trees":[{"nodes":[{"feature":-1}]}]}`))
	assert.Error(t, err)
}

func TestMetrics(t *testing.T) {
	want := []float64{1, 2, 3, 4}
	got := []float64{1, 3, 3, 2}
	assert.InDelta(t, 0.75, MAE(want, got), 1e-12)
	assert.InDelta(t, math.Sqrt(5.0/4.0), RMSE(want, got), 1e-12)
	assert.True(t, math.IsNaN(MAE(nil, nil)))
}

func TestParamsMap(t *testing.T) {
	m := DefaultParams().Map()
	assert.Equal(t, "400", m["n_estimators"])
	assert.Equal(t, "0.05", m["learning_rate"])
	assert.Equal(t, "42", m["random_state"])
}
