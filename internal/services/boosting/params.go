package boosting

import (
	"fmt"
	"strconv"
)

// Params are the booster hyper-parameters, named after their XGBoost counterparts.
type Params struct {
	NEstimators     int     `json:"n_estimators"`
	MaxDepth        int     `json:"max_depth"`
	LearningRate    float64 `json:"learning_rate"`
	Subsample       float64 `json:"subsample"`
	ColsampleByTree float64 `json:"colsample_bytree"`
	MinChildWeight  float64 `json:"min_child_weight"`
	Lambda          float64 `json:"reg_lambda"`
	RandomState     int64   `json:"random_state"`
}

// DefaultParams returns the parameters used for next-day return models.
func DefaultParams() Params {
	return Params{
		NEstimators:     400,
		MaxDepth:        5,
		LearningRate:    0.05,
		Subsample:       0.9,
		ColsampleByTree: 0.9,
		MinChildWeight:  1,
		Lambda:          1,
		RandomState:     42,
	}
}

// Validate checks parameter ranges.
func (p Params) Validate() error {
	switch {
	case p.NEstimators < 1:
		return fmt.Errorf("n_estimators must be >= 1, got %d", p.NEstimators)
	case p.MaxDepth < 1:
		return fmt.Errorf("max_depth must be >= 1, got %d", p.MaxDepth)
	case p.LearningRate <= 0 || p.LearningRate > 1:
		return fmt.Errorf("learning_rate must be in (0, 1], got %g", p.LearningRate)
	case p.Subsample <= 0 || p.Subsample > 1:
		return fmt.Errorf("subsample must be in (0, 1], got %g", p.Subsample)
	case p.ColsampleByTree <= 0 || p.ColsampleByTree > 1:
		return fmt.Errorf("colsample_bytree must be in (0, 1], got %g", p.ColsampleByTree)
	case p.MinChildWeight < 0:
		return fmt.Errorf("min_child_weight must be >= 0, got %g", p.MinChildWeight)
	case p.Lambda < 0:
		return fmt.Errorf("reg_lambda must be >= 0, got %g", p.Lambda)
	}
	return nil
}

// Map renders the parameters as strings for run tracking.
func (p Params) Map() map[string]string {
	f := func(v float64) string { return strconv.FormatFloat(v, 'g', -1, 64) }
	return map[string]string{
		"n_estimators":     strconv.Itoa(p.NEstimators),
		"max_depth":        strconv.Itoa(p.MaxDepth),
		"learning_rate":    f(p.LearningRate),
		"subsample":        f(p.Subsample),
		"colsample_bytree": f(p.ColsampleByTree),
		"min_child_weight": f(p.MinChildWeight),
		"reg_lambda":       f(p.Lambda),
		"random_state":     strconv.FormatInt(p.RandomState, 10),
	}
}
