package storage

import (
	"context"

	"github.com/slok/prun/internal/model"
)

//go:generate mockery --case underscore --output storagemock --outpkg storagemock --name RunRepository --structname MockRunRepository

// ListRunsOpts are the options to list runs.
type ListRunsOpts struct {
	// Limit is the max number of runs returned, 0 means no limit.
	Limit int
}

// RunRepository is the interface for the run history persistence.
//
// The history is a report of finished runs, it's never used to resume tasks.
type RunRepository interface {
	SaveRun(ctx context.Context, r model.RunSummary) error
	GetRun(ctx context.Context, id string) (*model.RunSummary, error)
	// ListRuns returns the runs ordered from the newest to the oldest.
	ListRuns(ctx context.Context, opts ListRunsOpts) ([]model.RunSummary, error)
}
