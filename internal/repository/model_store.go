package repository

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"WhyAgent/internal/domain/models"
	"WhyAgent/internal/domain/repository"
	"WhyAgent/internal/services/boosting"
	applogger "WhyAgent/pkg/logger"
)

// Artifact layout under the root: <run_id>/model/model.json
const (
	artifactDir  = "model"
	artifactFile = "model.json"
)

// runLookup is the part of the tracker model resolution needs.
type runLookup interface {
	GetRun(ctx context.Context, runID string) (*models.TrainingRun, error)
	RunByName(ctx context.Context, name string, version int) (*models.TrainingRun, error)
}

// FSModelStore keeps model artifacts on disk and caches loaded models by
// artifact path.
type FSModelStore struct {
	root  string
	runs  runLookup
	cache *lru.Cache[string, repository.Model]
	l     *applogger.Logger
}

// NewFSModelStore creates a store rooted at root holding up to cacheSize loaded models.
func NewFSModelStore(root string, runs runLookup, cacheSize int, l *applogger.Logger) (*FSModelStore, error) {
	if cacheSize <= 0 {
		cacheSize = 16
	}
	c, err := lru.New[string, repository.Model](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("model cache: %w", err)
	}
	return &FSModelStore{root: root, runs: runs, cache: c, l: orNop(l)}, nil
}

// ArtifactPath is where a run's model is written.
func (s *FSModelStore) ArtifactPath(runID string) string {
	return filepath.Join(s.root, runID, artifactDir, artifactFile)
}

func (s *FSModelStore) SaveArtifact(ctx context.Context, runID string, m repository.Artifact) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	path := s.ArtifactPath(runID)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("create artifact dir: %w", err)
	}

	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return "", fmt.Errorf("create artifact: %w", err)
	}
	if err := m.Save(f); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return "", fmt.Errorf("write artifact: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("close artifact: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("rename artifact: %w", err)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	return abs, nil
}

// Load resolves uri to an artifact and returns the loaded model.
func (s *FSModelStore) Load(ctx context.Context, uri string) (repository.Model, error) {
	path, err := s.Resolve(ctx, uri)
	if err != nil {
		return nil, err
	}
	if m, ok := s.cache.Get(path); ok {
		return m, nil
	}

	reg, err := boosting.LoadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("artifact %s: %w", path, models.ErrModelNotFound)
		}
		return nil, fmt.Errorf("load model %s: %w", uri, err)
	}

	m := NewRegressorModel(reg)
	s.cache.Add(path, m)
	s.l.Info("model loaded",
		applogger.String("uri", uri),
		applogger.String("path", path),
		applogger.Int("trees", len(reg.Trees)),
	)
	return m, nil
}

// Resolve maps a model URI to an artifact path:
//
//	runs:/<run_id>/model
//	models:/<name>/latest | models:/<name>/<n>
//	file:///abs/path/model.json | plain path
func (s *FSModelStore) Resolve(ctx context.Context, uri string) (string, error) {
	uri = strings.TrimSpace(uri)
	switch {
	case uri == "":
		return "", fmt.Errorf("model uri: %w", models.ErrNotConfigured)

	case strings.HasPrefix(uri, "runs:/"):
		rest := strings.Trim(strings.TrimPrefix(uri, "runs:/"), "/")
		runID, _, _ := strings.Cut(rest, "/")
		if runID == "" {
			return "", fmt.Errorf("invalid model uri %q", uri)
		}
		if s.runs == nil {
			return s.ArtifactPath(runID), nil
		}
		run, err := s.runs.GetRun(ctx, runID)
		if err != nil {
			return "", err
		}
		return s.runArtifact(run), nil

	case strings.HasPrefix(uri, "models:/"):
		rest := strings.Trim(strings.TrimPrefix(uri, "models:/"), "/")
		name, ver, _ := strings.Cut(rest, "/")
		if name == "" {
			return "", fmt.Errorf("invalid model uri %q", uri)
		}
		version := 0
		if ver != "" && ver != "latest" {
			n, err := strconv.Atoi(ver)
			if err != nil || n < 1 {
				return "", fmt.Errorf("invalid model version %q in %q", ver, uri)
			}
			version = n
		}
		if s.runs == nil {
			return "", fmt.Errorf("model uri %q needs a tracking store: %w", uri, models.ErrNotConfigured)
		}
		run, err := s.runs.RunByName(ctx, name, version)
		if err != nil {
			return "", err
		}
		return s.runArtifact(run), nil

	case strings.HasPrefix(uri, "file://"):
		return strings.TrimPrefix(uri, "file://"), nil

	default:
		return uri, nil
	}
}

func (s *FSModelStore) runArtifact(run *models.TrainingRun) string {
	if run.ArtifactPath != "" {
		return run.ArtifactPath
	}
	return s.ArtifactPath(run.RunID)
}

// RegressorModel adapts a boosting.Regressor to the domain Model.
type RegressorModel struct {
	reg *boosting.Regressor
}

// NewRegressorModel wraps reg.
func NewRegressorModel(reg *boosting.Regressor) *RegressorModel {
	return &RegressorModel{reg: reg}
}

func (m *RegressorModel) Predict(x []float64) (float64, error) {
	return m.reg.Predict(x)
}

func (m *RegressorModel) TopImportances(k int) []models.FeatureImportance {
	top := m.reg.TopImportances(k)
	out := make([]models.FeatureImportance, len(top))
	for i, imp := range top {
		out[i] = models.FeatureImportance{Feature: imp.Feature, Importance: imp.Importance}
	}
	return out
}
