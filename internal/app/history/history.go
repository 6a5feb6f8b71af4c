package history

import (
	"context"
	"fmt"

	"github.com/slok/prun/internal/log"
	"github.com/slok/prun/internal/model"
	"github.com/slok/prun/internal/storage"
)

// ServiceConfig is the configuration for the history service.
type ServiceConfig struct {
	Repository storage.RunRepository
	Logger     log.Logger
}

func (c *ServiceConfig) defaults() error {
	if c.Repository == nil {
		return fmt.Errorf("repository is required")
	}

	if c.Logger == nil {
		c.Logger = log.Noop
	}

	return nil
}

// Service lists the past runs.
type Service struct {
	repo   storage.RunRepository
	logger log.Logger
}

// NewService creates a new history service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Service{
		repo:   cfg.Repository,
		logger: cfg.Logger,
	}, nil
}

// Request represents the history request parameters.
type Request struct {
	// Limit is the max number of runs, 0 means all of them.
	Limit int
	// OnlyFailed only returns the runs with at least one failed task.
	OnlyFailed bool
}

// Run lists the runs from the newest to the oldest.
func (s *Service) Run(ctx context.Context, req Request) ([]model.RunSummary, error) {
	if req.Limit < 0 {
		return nil, fmt.Errorf("limit can't be negative: %w", model.ErrNotValid)
	}

	s.logger.Debugf("listing runs with limit %d", req.Limit)

	opts := storage.ListRunsOpts{Limit: req.Limit}
	// The limit applies after filtering.
	if req.OnlyFailed {
		opts.Limit = 0
	}

	runs, err := s.repo.ListRuns(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("could not list runs: %w", err)
	}

	if req.OnlyFailed {
		filtered := make([]model.RunSummary, 0, len(runs))
		for _, r := range runs {
			if r.HasFailures() {
				filtered = append(filtered, r)
			}
		}
		runs = filtered

		if req.Limit > 0 && len(runs) > req.Limit {
			runs = runs[:req.Limit]
		}
	}

	s.logger.Debugf("found %d runs", len(runs))
	return runs, nil
}
