package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"WhyAgent/internal/domain/models"
	pkgch "WhyAgent/pkg/clickhouse"
	applogger "WhyAgent/pkg/logger"
)

const runsTable = "training_runs"

const sqliteRunsDDL = `
CREATE TABLE IF NOT EXISTS training_runs (
	run_id        TEXT PRIMARY KEY,
	run_name      TEXT NOT NULL,
	ticker        TEXT NOT NULL,
	params        TEXT NOT NULL,
	mae           REAL NOT NULL,
	rmse          REAL NOT NULL,
	train_rows    INTEGER NOT NULL,
	test_rows     INTEGER NOT NULL,
	artifact_path TEXT NOT NULL,
	created_at    INTEGER NOT NULL
)`

const sqliteRunsIndex = `CREATE INDEX IF NOT EXISTS idx_training_runs_name ON training_runs (run_name, created_at)`

const clickhouseRunsDDL = `
CREATE TABLE IF NOT EXISTS training_runs (
	run_id        String,
	run_name      LowCardinality(String),
	ticker        LowCardinality(String),
	params        String,
	mae           Float64,
	rmse          Float64,
	train_rows    Int64,
	test_rows     Int64,
	artifact_path String,
	created_at    Int64
) ENGINE = MergeTree
ORDER BY (run_name, created_at, run_id)`

const runColumns = "run_id, run_name, ticker, params, mae, rmse, train_rows, test_rows, artifact_path, created_at"

// SQLTracker records training runs in a SQL table. The same queries serve the
// sqlite and ClickHouse backends; only the DDL differs.
type SQLTracker struct {
	db      *sql.DB
	backend string
	owned   bool
	l       *applogger.Logger
}

// OpenTracker picks a backend from uri: sqlite:///<path> or clickhouse://.
// The ClickHouse client is only used for the latter and may be nil otherwise.
func OpenTracker(ctx context.Context, uri string, ch *pkgch.Client, l *applogger.Logger) (*SQLTracker, error) {
	switch {
	case strings.HasPrefix(uri, "sqlite://"):
		return NewSQLiteTracker(ctx, strings.TrimPrefix(uri, "sqlite:///"), l)
	case strings.HasPrefix(uri, "clickhouse://"):
		if ch == nil {
			return nil, fmt.Errorf("tracking uri %q needs a clickhouse client: %w", uri, models.ErrNotConfigured)
		}
		return NewClickHouseTracker(ctx, ch, l)
	default:
		return nil, fmt.Errorf("unsupported tracking uri %q", uri)
	}
}

// NewSQLiteTracker opens (and creates) a sqlite database at path.
func NewSQLiteTracker(ctx context.Context, path string, l *applogger.Logger) (*SQLTracker, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// a single writer keeps sqlite from returning SQLITE_BUSY under concurrent training
	db.SetMaxOpenConns(1)

	for _, stmt := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		sqliteRunsDDL,
		sqliteRunsIndex,
	} {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("init sqlite tracker: %w", err)
		}
	}
	return &SQLTracker{db: db, backend: "sqlite", owned: true, l: orNop(l)}, nil
}

// NewClickHouseTracker stores runs in the client's database.
func NewClickHouseTracker(ctx context.Context, ch *pkgch.Client, l *applogger.Logger) (*SQLTracker, error) {
	if err := ch.InitSchema(ctx, []string{clickhouseRunsDDL}); err != nil {
		return nil, err
	}
	return &SQLTracker{db: ch.DB(), backend: "clickhouse", l: orNop(l)}, nil
}

// Backend names the storage in use.
func (t *SQLTracker) Backend() string {
	return t.backend
}

func (t *SQLTracker) CreateRun(ctx context.Context, run *models.TrainingRun) error {
	params, err := json.Marshal(run.Params)
	if err != nil {
		return fmt.Errorf("marshal params: %w", err)
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}

	q := fmt.Sprintf("INSERT INTO %s (%s) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)", runsTable, runColumns)
	_, err = t.db.ExecContext(ctx, q,
		run.RunID,
		run.RunName,
		run.Ticker,
		string(params),
		run.MAE,
		run.RMSE,
		int64(run.TrainRows),
		int64(run.TestRows),
		run.ArtifactPath,
		run.CreatedAt.UnixMilli(),
	)
	if err != nil {
		t.l.Error("tracker insert failed",
			applogger.String("backend", t.backend),
			applogger.String("run_id", run.RunID),
			applogger.Error(err),
		)
		return fmt.Errorf("create run: %w", err)
	}
	t.l.Info("training run recorded",
		applogger.String("backend", t.backend),
		applogger.String("run_id", run.RunID),
		applogger.String("run_name", run.RunName),
		applogger.Float64("mae", run.MAE),
		applogger.Float64("rmse", run.RMSE),
	)
	return nil
}

func (t *SQLTracker) GetRun(ctx context.Context, runID string) (*models.TrainingRun, error) {
	q := fmt.Sprintf("SELECT %s FROM %s WHERE run_id = ? LIMIT 1", runColumns, runsTable)
	run, err := scanRun(t.db.QueryRowContext(ctx, q, runID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run %s: %w", runID, models.ErrModelNotFound)
	}
	return run, err
}

func (t *SQLTracker) RunByName(ctx context.Context, name string, version int) (*models.TrainingRun, error) {
	var (
		row *sql.Row
		q   string
	)
	if version <= 0 {
		q = fmt.Sprintf("SELECT %s FROM %s WHERE run_name = ? ORDER BY created_at DESC, run_id DESC LIMIT 1", runColumns, runsTable)
		row = t.db.QueryRowContext(ctx, q, name)
	} else {
		q = fmt.Sprintf("SELECT %s FROM %s WHERE run_name = ? ORDER BY created_at ASC, run_id ASC LIMIT 1 OFFSET ?", runColumns, runsTable)
		row = t.db.QueryRowContext(ctx, q, name, version-1)
	}

	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run name %s version %d: %w", name, version, models.ErrModelNotFound)
	}
	return run, err
}

func (t *SQLTracker) ListRuns(ctx context.Context, name string, limit int) ([]models.TrainingRun, error) {
	if limit <= 0 {
		limit = 100
	}
	var (
		rows *sql.Rows
		err  error
	)
	if name == "" {
		q := fmt.Sprintf("SELECT %s FROM %s ORDER BY created_at DESC, run_id DESC LIMIT ?", runColumns, runsTable)
		rows, err = t.db.QueryContext(ctx, q, limit)
	} else {
		q := fmt.Sprintf("SELECT %s FROM %s WHERE run_name = ? ORDER BY created_at DESC, run_id DESC LIMIT ?", runColumns, runsTable)
		rows, err = t.db.QueryContext(ctx, q, name, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	out := make([]models.TrainingRun, 0, limit)
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return out, nil
}

func (t *SQLTracker) Health(ctx context.Context) error {
	return t.db.PingContext(ctx)
}

// Close closes the database when the tracker opened it itself.
func (t *SQLTracker) Close() error {
	if t.owned {
		return t.db.Close()
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(s rowScanner) (*models.TrainingRun, error) {
	var (
		run                 models.TrainingRun
		params              string
		trainRows, testRows int64
		createdAt           int64
	)
	err := s.Scan(&run.RunID, &run.RunName, &run.Ticker, &params, &run.MAE, &run.RMSE,
		&trainRows, &testRows, &run.ArtifactPath, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan run: %w", err)
	}
	if params != "" {
		if err := json.Unmarshal([]byte(params), &run.Params); err != nil {
			return nil, fmt.Errorf("decode params: %w", err)
		}
	}
	run.TrainRows = int(trainRows)
	run.TestRows = int(testRows)
	run.CreatedAt = time.UnixMilli(createdAt).UTC()
	return &run, nil
}

func orNop(l *applogger.Logger) *applogger.Logger {
	if l == nil {
		return applogger.NewNop()
	}
	return l
}
