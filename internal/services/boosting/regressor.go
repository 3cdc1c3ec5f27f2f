package boosting

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand/v2"
	"os"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Format tags serialized models.
const Format = "whyagent-gbrt/v1"

var (
	ErrNotTrained      = errors.New("boosting: model not trained")
	ErrFeatureMismatch = errors.New("boosting: feature count mismatch")
)

// Importance is the normalized average split gain of one feature.
type Importance struct {
	Feature    string  `json:"feature"`
	Importance float64 `json:"importance"`
}

// Regressor is a gradient-boosted ensemble of regression trees trained on
// squared error.
type Regressor struct {
	Format       string    `json:"format"`
	Params       Params    `json:"params"`
	FeatureNames []string  `json:"feature_names"`
	BaseScore    float64   `json:"base_score"`
	Trees        []Tree    `json:"trees"`
	Gain         []float64 `json:"gain"`
	Splits       []int     `json:"splits"`
}

// New returns an untrained regressor.
func New(params Params, featureNames []string) *Regressor {
	return &Regressor{
		Format:       Format,
		Params:       params,
		FeatureNames: append([]string(nil), featureNames...),
	}
}

// Fit trains the ensemble on x and y. Rows of x must all have
// len(FeatureNames) columns.
func (m *Regressor) Fit(x [][]float64, y []float64) error {
	if err := m.Params.Validate(); err != nil {
		return fmt.Errorf("boosting: %w", err)
	}
	if len(x) == 0 || len(y) == 0 {
		return errors.New("boosting: features or labels empty")
	}
	if len(x) != len(y) {
		return fmt.Errorf("boosting: %d feature rows but %d labels", len(x), len(y))
	}
	nFeatures := len(m.FeatureNames)
	for i, row := range x {
		if len(row) != nFeatures {
			return fmt.Errorf("%w: row %d has %d values, want %d", ErrFeatureMismatch, i, len(row), nFeatures)
		}
	}

	rng := rand.New(rand.NewPCG(uint64(m.Params.RandomState), 0x9e3779b97f4a7c15))

	m.BaseScore = stat.Mean(y, nil)
	m.Trees = make([]Tree, 0, m.Params.NEstimators)
	m.Gain = make([]float64, nFeatures)
	m.Splits = make([]int, nFeatures)

	pred := make([]float64, len(y))
	for i := range pred {
		pred[i] = m.BaseScore
	}
	grad := make([]float64, len(y))
	hess := make([]float64, len(y))
	for i := range hess {
		hess[i] = 1
	}

	b := &treeBuilder{x: x, grad: grad, hess: hess, params: m.Params, gain: m.Gain, splits: m.Splits}
	nRows := sampleSize(len(y), m.Params.Subsample)
	nCols := sampleSize(nFeatures, m.Params.ColsampleByTree)

	for t := 0; t < m.Params.NEstimators; t++ {
		for i := range grad {
			grad[i] = pred[i] - y[i]
		}
		rows := rng.Perm(len(y))[:nRows]
		sort.Ints(rows)
		cols := rng.Perm(nFeatures)[:nCols]
		sort.Ints(cols)
		b.features = cols

		tree := b.build(rows)
		m.Trees = append(m.Trees, tree)
		for i := range pred {
			v, err := tree.predict(x[i])
			if err != nil {
				return fmt.Errorf("boosting: tree %d: %w", t, err)
			}
			pred[i] += v
		}
	}
	return nil
}

// Predict returns the model output for one feature vector.
func (m *Regressor) Predict(x []float64) (float64, error) {
	if len(m.Trees) == 0 {
		return 0, ErrNotTrained
	}
	if len(x) != len(m.FeatureNames) {
		return 0, fmt.Errorf("%w: got %d values, want %d", ErrFeatureMismatch, len(x), len(m.FeatureNames))
	}
	out := m.BaseScore
	for i, tree := range m.Trees {
		v, err := tree.predict(x)
		if err != nil {
			return 0, fmt.Errorf("boosting: tree %d: %w", i, err)
		}
		out += v
	}
	return out, nil
}

// PredictBatch predicts every row of x.
func (m *Regressor) PredictBatch(x [][]float64) ([]float64, error) {
	out := make([]float64, len(x))
	for i, row := range x {
		v, err := m.Predict(row)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// Importances returns per-feature average gain normalized to sum to one,
// sorted descending. Features never used for a split score zero.
func (m *Regressor) Importances() []Importance {
	if len(m.Gain) != len(m.FeatureNames) {
		return nil
	}
	avg := make([]float64, len(m.Gain))
	for i, g := range m.Gain {
		if i < len(m.Splits) && m.Splits[i] > 0 {
			avg[i] = g / float64(m.Splits[i])
		}
	}
	total := floats.Sum(avg)

	out := make([]Importance, len(avg))
	for i, v := range avg {
		imp := 0.0
		if total > 0 {
			imp = v / total
		}
		out[i] = Importance{Feature: m.FeatureNames[i], Importance: imp}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Importance > out[j].Importance })
	return out
}

// TopImportances returns at most k entries of Importances.
func (m *Regressor) TopImportances(k int) []Importance {
	all := m.Importances()
	if k >= 0 && k < len(all) {
		all = all[:k]
	}
	return all
}

// Save writes the model as JSON.
func (m *Regressor) Save(w io.Writer) error {
	if len(m.Trees) == 0 {
		return ErrNotTrained
	}
	enc := json.NewEncoder(w)
	return enc.Encode(m)
}

// SaveFile writes the model to path.
func (m *Regressor) SaveFile(path string) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	if err := m.Save(f); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// Load decodes a model written by Save.
func Load(r io.Reader) (*Regressor, error) {
	var m Regressor
	if err := json.NewDecoder(r).Decode(&m); err != nil {
		return nil, fmt.Errorf("boosting: decode model: %w", err)
	}
	if m.Format != Format {
		return nil, fmt.Errorf("boosting: unsupported model format %q", m.Format)
	}
	if len(m.Trees) == 0 {
		return nil, ErrNotTrained
	}
	return &m, nil
}

// LoadFile reads a model from path.
func LoadFile(path string) (*Regressor, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Load(f)
}

// MAE is the mean absolute error.
func MAE(want, got []float64) float64 {
	if len(want) == 0 || len(want) != len(got) {
		return math.NaN()
	}
	return floats.Distance(want, got, 1) / float64(len(want))
}

// RMSE is the root mean squared error.
func RMSE(want, got []float64) float64 {
	if len(want) == 0 || len(want) != len(got) {
		return math.NaN()
	}
	return floats.Distance(want, got, 2) / math.Sqrt(float64(len(want)))
}

func sampleSize(n int, frac float64) int {
	k := int(math.Round(frac * float64(n)))
	if k < 1 {
		k = 1
	}
	if k > n {
		k = n
	}
	return k
}
