package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/slok/prun/internal/log"
	"github.com/slok/prun/internal/model"
	"github.com/slok/prun/internal/storage"
	"github.com/slok/prun/internal/storage/sqlite/migrations"
)

// RepositoryConfig is the configuration for the SQLite repository.
type RepositoryConfig struct {
	DBPath string
	Logger log.Logger
}

func (c *RepositoryConfig) defaults() error {
	if c.DBPath == "" {
		return fmt.Errorf("db path is required")
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "storage.SQLite"})
	return nil
}

// Repository is a SQLite implementation of storage.RunRepository.
type Repository struct {
	db     *sql.DB
	logger log.Logger
}

var _ storage.RunRepository = &Repository{}

// NewRepository creates a new SQLite repository.
func NewRepository(ctx context.Context, cfg RepositoryConfig) (*Repository, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	dir := filepath.Dir(cfg.DBPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("could not create db directory: %w", err)
	}

	dsn := fmt.Sprintf("%s?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)", cfg.DBPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("could not open database: %w", err)
	}

	migrator, err := migrations.NewMigrator(migrations.MigratorConfig{DB: db, Logger: cfg.Logger})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("could not create migrator: %w", err)
	}
	if err := migrator.Up(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("could not run migrations: %w", err)
	}

	cfg.Logger.Debugf("SQLite repository initialized at %s", cfg.DBPath)

	return &Repository{db: db, logger: cfg.Logger}, nil
}

// Close closes the database connection.
func (r *Repository) Close() error { return r.db.Close() }

// SaveRun stores a finished run with all its task results in a single transaction.
func (r *Repository) SaveRun(ctx context.Context, run model.RunSummary) (err error) {
	if run.ID == "" {
		return fmt.Errorf("run id is required: %w", model.ErrNotValid)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("could not begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (id, started_at, ended_at) VALUES (?, ?, ?)`,
		run.ID, toUnix(run.StartedAt), toUnix(run.EndedAt),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed: runs.") {
			return fmt.Errorf("run %s: %w", run.ID, model.ErrAlreadyExists)
		}
		return fmt.Errorf("could not insert run: %w", err)
	}

	query := `
		INSERT INTO task_results (
			run_id, idx, task_id, name, kind,
			status, outcome, reason,
			position, total, message,
			started_at, ended_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	for _, res := range run.Results {
		_, err = tx.ExecContext(ctx, query,
			run.ID, res.Index, res.ID, res.Name, res.Kind,
			res.Status, res.Outcome, res.Reason,
			res.Position, res.Total, res.Message,
			toUnix(res.StartedAt), toUnix(res.EndedAt),
		)
		if err != nil {
			return fmt.Errorf("could not insert task result %d: %w", res.Index, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("could not commit transaction: %w", err)
	}

	r.logger.Debugf("Saved run in repository: %s", run.ID)
	return nil
}

// GetRun retrieves a run by ID.
func (r *Repository) GetRun(ctx context.Context, id string) (*model.RunSummary, error) {
	row := r.db.QueryRowContext(ctx, `SELECT id, started_at, ended_at FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("run %s: %w", id, model.ErrNotFound)
		}
		return nil, fmt.Errorf("could not query run: %w", err)
	}

	run.Results, err = r.taskResults(ctx, run.ID)
	if err != nil {
		return nil, err
	}

	return &run, nil
}

// ListRuns returns the runs ordered from the newest to the oldest.
func (r *Repository) ListRuns(ctx context.Context, opts storage.ListRunsOpts) ([]model.RunSummary, error) {
	query := `SELECT id, started_at, ended_at FROM runs ORDER BY started_at DESC, id DESC`
	args := []any{}
	if opts.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, opts.Limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("could not query runs: %w", err)
	}
	defer rows.Close()

	runs := []model.RunSummary{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("could not scan row: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	rows.Close()

	for i := range runs {
		runs[i].Results, err = r.taskResults(ctx, runs[i].ID)
		if err != nil {
			return nil, err
		}
	}

	return runs, nil
}

func (r *Repository) taskResults(ctx context.Context, runID string) ([]model.TaskResult, error) {
	query := `
		SELECT
			idx, task_id, name, kind,
			status, outcome, reason,
			position, total, message,
			started_at, ended_at
		FROM task_results
		WHERE run_id = ?
		ORDER BY idx ASC
	`

	rows, err := r.db.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("could not query task results: %w", err)
	}
	defer rows.Close()

	results := []model.TaskResult{}
	for rows.Next() {
		var res model.TaskResult
		var startedAt, endedAt int64
		err := rows.Scan(
			&res.Index, &res.ID, &res.Name, &res.Kind,
			&res.Status, &res.Outcome, &res.Reason,
			&res.Position, &res.Total, &res.Message,
			&startedAt, &endedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("could not scan task result: %w", err)
		}
		res.StartedAt = fromUnix(startedAt)
		res.EndedAt = fromUnix(endedAt)
		results = append(results, res)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return results, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (model.RunSummary, error) {
	var run model.RunSummary
	var startedAt, endedAt int64
	if err := s.Scan(&run.ID, &startedAt, &endedAt); err != nil {
		return model.RunSummary{}, err
	}
	run.StartedAt = fromUnix(startedAt)
	run.EndedAt = fromUnix(endedAt)

	return run, nil
}

// Times are stored with millisecond precision.
func toUnix(t time.Time) int64 { return t.UnixMilli() }

func fromUnix(ms int64) time.Time { return time.UnixMilli(ms).UTC() }
