package model

import "time"

// RunSummary is the report of a finished runner execution.
type RunSummary struct {
	ID        string
	StartedAt time.Time
	EndedAt   time.Time
	Results   []TaskResult
}

// Count returns the number of tasks that ended with the outcome.
func (r RunSummary) Count(o TaskOutcome) int {
	n := 0
	for _, res := range r.Results {
		if res.Outcome == o {
			n++
		}
	}
	return n
}

// HasFailures returns true if any of the tasks failed.
func (r RunSummary) HasFailures() bool {
	return r.Count(TaskOutcomeFailed) > 0
}

// Duration returns how long the run took.
func (r RunSummary) Duration() time.Duration {
	if r.EndedAt.IsZero() {
		return 0
	}
	return r.EndedAt.Sub(r.StartedAt)
}
