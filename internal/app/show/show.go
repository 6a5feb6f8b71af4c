package show

import (
	"context"
	"fmt"

	"github.com/slok/prun/internal/log"
	"github.com/slok/prun/internal/model"
	"github.com/slok/prun/internal/storage"
)

// ServiceConfig is the configuration for the show service.
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

// Service gets a single past run.
type Service struct {
	repo   storage.RunRepository
	logger log.Logger
}

// NewService creates a new show service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Service{
		repo:   cfg.Repository,
		logger: cfg.Logger,
	}, nil
}

// Request represents the show request parameters.
type Request struct {
	// RunID is the ID of the run, `latest` gets the newest run.
	RunID string
}

// LatestRunID is the run ID alias for the newest run.
const LatestRunID = "latest"

// Run returns the run with all its task results.
func (s *Service) Run(ctx context.Context, req Request) (*model.RunSummary, error) {
	if req.RunID == "" {
		return nil, fmt.Errorf("run id is required: %w", model.ErrNotValid)
	}

	if req.RunID == LatestRunID {
		runs, err := s.repo.ListRuns(ctx, storage.ListRunsOpts{Limit: 1})
		if err != nil {
			return nil, fmt.Errorf("could not list runs: %w", err)
		}
		if len(runs) == 0 {
			return nil, fmt.Errorf("there are no runs: %w", model.ErrNotFound)
		}
		return &runs[0], nil
	}

	run, err := s.repo.GetRun(ctx, req.RunID)
	if err != nil {
		return nil, fmt.Errorf("could not get run: %w", err)
	}

	return run, nil
}
