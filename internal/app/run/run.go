package run

import (
	"context"
	"fmt"

	"github.com/slok/prun/internal/log"
	"github.com/slok/prun/internal/model"
	"github.com/slok/prun/internal/progress"
	"github.com/slok/prun/internal/runner"
	"github.com/slok/prun/internal/storage"
)

// ServiceConfig is the configuration for the run service.
type ServiceConfig struct {
	// Repository stores the run history, if missing the history is not saved.
	Repository storage.RunRepository
	Display    progress.Display
	Logger     log.Logger
}

func (c *ServiceConfig) defaults() error {
	if c.Display == nil {
		c.Display = progress.Noop
	}

	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "app.Run"})

	return nil
}

// Service runs a task set concurrently and records the result.
type Service struct {
	repo    storage.RunRepository
	display progress.Display
	logger  log.Logger
}

// NewService creates a new run service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Service{
		repo:    cfg.Repository,
		display: cfg.Display,
		logger:  cfg.Logger,
	}, nil
}

// Request represents the run request parameters.
type Request struct {
	Tasks []model.TaskSpec
	// Reporting reports every task completion as it happens.
	Reporting bool
	// OnComplete is called for each task completion when reporting.
	OnComplete func(c runner.Completion)
}

func (r Request) validate() error {
	if len(r.Tasks) == 0 {
		return fmt.Errorf("at least one task is required: %w", model.ErrNotValid)
	}

	for _, t := range r.Tasks {
		if err := t.Validate(); err != nil {
			return err
		}
	}

	return nil
}

// Run executes all the tasks in parallel and blocks until all of them are terminal.
//
// The summary is returned even when the run fails so callers can report the partial results.
func (s *Service) Run(ctx context.Context, req Request) (model.RunSummary, error) {
	if err := req.validate(); err != nil {
		return model.RunSummary{}, fmt.Errorf("invalid request: %w", err)
	}

	r, err := runner.New(runner.Config{
		Display:    s.display,
		Logger:     s.logger,
		OnComplete: req.OnComplete,
	})
	if err != nil {
		return model.RunSummary{}, fmt.Errorf("could not create runner: %w", err)
	}

	for _, spec := range req.Tasks {
		if _, err := r.AddTask(spec); err != nil {
			return model.RunSummary{}, fmt.Errorf("could not add task %q: %w", spec.Name, err)
		}
	}

	var summary model.RunSummary
	var runErr error
	if req.Reporting {
		summary, runErr = r.RunAllWithReporting(ctx)
	} else {
		summary, runErr = r.RunParallel(ctx)
	}

	// Infrastructure failures still produce a complete summary.
	if s.repo != nil && summary.ID != "" {
		// The run context could be cancelled already, the history must be saved anyway.
		if err := s.repo.SaveRun(context.WithoutCancel(ctx), summary); err != nil {
			s.logger.Errorf("Could not save run %s on history: %s", summary.ID, err)
			if runErr == nil {
				runErr = fmt.Errorf("could not save run: %w", err)
			}
		}
	}

	if runErr != nil {
		return summary, fmt.Errorf("could not run tasks: %w", runErr)
	}

	s.logger.Debugf("Run %s: %d finished, %d failed, %d cancelled", summary.ID,
		summary.Count(model.TaskOutcomeFinished),
		summary.Count(model.TaskOutcomeFailed),
		summary.Count(model.TaskOutcomeCancelled),
	)

	return summary, nil
}
