package lib

import (
	"context"
	"fmt"
	"os"

	"github.com/slok/prun/internal/app/history"
	apprun "github.com/slok/prun/internal/app/run"
	"github.com/slok/prun/internal/app/show"
	"github.com/slok/prun/internal/conventions"
	"github.com/slok/prun/internal/log"
	"github.com/slok/prun/internal/progress"
	"github.com/slok/prun/internal/runner"
	"github.com/slok/prun/internal/storage"
	"github.com/slok/prun/internal/storage/memory"
	"github.com/slok/prun/internal/storage/sqlite"
)

// Config configures the SDK client.
//
// All fields are optional. An empty Config{} stores the history on ~/.prun/prun.db.
type Config struct {
	// DBPath is the SQLite run history database path.
	// Default: ~/.prun/prun.db.
	DBPath string

	// NoHistory keeps the history in memory only, for the client lifetime.
	NoHistory bool

	// Logger receives structured log output from the SDK.
	// Default: noop (silent). See the log sub-package for the interface.
	Logger log.Logger
}

func (c *Config) defaults() error {
	if c.DBPath == "" && !c.NoHistory {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("could not get user home dir: %w", err)
		}
		c.DBPath = conventions.DBPath(home)
	}

	if c.Logger == nil {
		c.Logger = log.Noop
	}

	return nil
}

// Client is the main SDK entry point to run task sets.
//
// Create a Client with [New] and release its resources with [Client.Close].
// A Client is safe for concurrent use.
type Client struct {
	repo    storage.RunRepository
	logger  log.Logger
	closeFn func() error
}

// New creates a new SDK client.
func New(ctx context.Context, cfg Config) (*Client, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	if cfg.NoHistory {
		repo, err := memory.NewRepository(memory.RepositoryConfig{Logger: cfg.Logger})
		if err != nil {
			return nil, fmt.Errorf("could not create repository: %w", err)
		}
		return &Client{repo: repo, logger: cfg.Logger}, nil
	}

	repo, err := sqlite.NewRepository(ctx, sqlite.RepositoryConfig{
		DBPath: cfg.DBPath,
		Logger: cfg.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create repository: %w", err)
	}

	return &Client{
		repo:    repo,
		logger:  cfg.Logger,
		closeFn: repo.Close,
	}, nil
}

// Close releases resources held by the client, including the database connection.
// After Close returns, the client must not be used.
func (c *Client) Close() error {
	if c.closeFn != nil {
		return c.closeFn()
	}
	return nil
}

// RunOpts are the options of a run.
type RunOpts struct {
	Tasks []TaskSpec
	// OnComplete is called once per task, in completion order, before Run returns.
	OnComplete func(TaskResult)
}

// Run runs all the tasks concurrently and blocks until every one of them is terminal.
func (c *Client) Run(ctx context.Context, opts RunOpts) (*RunSummary, error) {
	svc, err := apprun.NewService(apprun.ServiceConfig{
		Repository: c.repo,
		Display:    progress.Noop,
		Logger:     c.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create service: %w", err)
	}

	req := apprun.Request{Tasks: toInternalTaskSpecs(opts.Tasks)}
	if opts.OnComplete != nil {
		req.Reporting = true
		req.OnComplete = func(c runner.Completion) {
			opts.OnComplete(fromInternalTaskResult(c.Result))
		}
	}

	summary, err := svc.Run(ctx, req)
	if err != nil {
		return nil, mapError(err)
	}

	run := fromInternalRun(summary)
	return &run, nil
}

// ListRuns returns the past runs from the newest to the oldest, limit 0 returns all of them.
func (c *Client) ListRuns(ctx context.Context, limit int) ([]RunSummary, error) {
	svc, err := history.NewService(history.ServiceConfig{Repository: c.repo, Logger: c.logger})
	if err != nil {
		return nil, fmt.Errorf("could not create service: %w", err)
	}

	runs, err := svc.Run(ctx, history.Request{Limit: limit})
	if err != nil {
		return nil, mapError(err)
	}

	out := make([]RunSummary, 0, len(runs))
	for _, r := range runs {
		out = append(out, fromInternalRun(r))
	}

	return out, nil
}

// GetRun returns a past run, `latest` returns the newest one.
func (c *Client) GetRun(ctx context.Context, id string) (*RunSummary, error) {
	svc, err := show.NewService(show.ServiceConfig{Repository: c.repo, Logger: c.logger})
	if err != nil {
		return nil, fmt.Errorf("could not create service: %w", err)
	}

	r, err := svc.Run(ctx, show.Request{RunID: id})
	if err != nil {
		return nil, mapError(err)
	}

	run := fromInternalRun(*r)
	return &run, nil
}
