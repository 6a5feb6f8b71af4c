package lib

import (
	"errors"
	"time"

	"github.com/slok/prun/internal/model"
)

var (
	// ErrNotFound is returned when a run doesn't exist.
	ErrNotFound = errors.New("not found")
	// ErrNotValid is returned when the input is not valid.
	ErrNotValid = errors.New("not valid")
	// ErrAlreadyExists is returned when a run already exists.
	ErrAlreadyExists = errors.New("already exists")
)

// TaskKind is the kind of a task.
type TaskKind string

const (
	// TaskKindBounded tasks advance a known number of units.
	TaskKindBounded TaskKind = TaskKind(model.TaskKindBounded)
	// TaskKindUnbounded tasks run for a duration without known progress.
	TaskKindUnbounded TaskKind = TaskKind(model.TaskKindUnbounded)
)

// TaskOutcome is how a task ended.
type TaskOutcome string

const (
	TaskOutcomeFinished  TaskOutcome = TaskOutcome(model.TaskOutcomeFinished)
	TaskOutcomeFailed    TaskOutcome = TaskOutcome(model.TaskOutcomeFailed)
	TaskOutcomeCancelled TaskOutcome = TaskOutcome(model.TaskOutcomeCancelled)
)

// TaskSpec describes a task to run.
type TaskSpec struct {
	Name string
	Kind TaskKind
	// Total is the number of units of a bounded task.
	Total int64
	// Duration is how long an unbounded task runs.
	Duration time.Duration
	// Step is the time between units of bounded tasks and the spinner tick of unbounded tasks.
	Step time.Duration
	// FailAfter marks the task as failed with FailReason after the duration.
	FailAfter  time.Duration
	FailReason string
	// CancelAfter requests the task cancellation after the duration.
	CancelAfter time.Duration
}

// TaskResult is the final state of a task.
type TaskResult struct {
	ID        string
	Index     int
	Name      string
	Kind      TaskKind
	Outcome   TaskOutcome
	Reason    string
	Position  int64
	Total     int64
	Message   string
	StartedAt time.Time
	EndedAt   time.Time
}

// RunSummary is the result of a run.
type RunSummary struct {
	ID        string
	StartedAt time.Time
	EndedAt   time.Time
	Tasks     []TaskResult
}

// Failed returns the number of failed tasks.
func (r RunSummary) Failed() int {
	n := 0
	for _, t := range r.Tasks {
		if t.Outcome == TaskOutcomeFailed {
			n++
		}
	}
	return n
}

func toInternalTaskSpecs(specs []TaskSpec) []model.TaskSpec {
	out := make([]model.TaskSpec, 0, len(specs))
	for _, s := range specs {
		out = append(out, model.TaskSpec{
			Name:        s.Name,
			Kind:        model.TaskKind(s.Kind),
			Total:       s.Total,
			Duration:    s.Duration,
			Step:        s.Step,
			FailAfter:   s.FailAfter,
			FailReason:  s.FailReason,
			CancelAfter: s.CancelAfter,
		})
	}
	return out
}

func fromInternalTaskResult(r model.TaskResult) TaskResult {
	return TaskResult{
		ID:        r.ID,
		Index:     r.Index,
		Name:      r.Name,
		Kind:      TaskKind(r.Kind),
		Outcome:   TaskOutcome(r.Outcome),
		Reason:    r.Reason,
		Position:  r.Position,
		Total:     r.Total,
		Message:   r.Message,
		StartedAt: r.StartedAt,
		EndedAt:   r.EndedAt,
	}
}

func fromInternalRun(r model.RunSummary) RunSummary {
	tasks := make([]TaskResult, 0, len(r.Results))
	for _, t := range r.Results {
		tasks = append(tasks, fromInternalTaskResult(t))
	}

	return RunSummary{
		ID:        r.ID,
		StartedAt: r.StartedAt,
		EndedAt:   r.EndedAt,
		Tasks:     tasks,
	}
}

// mapError adds the public sentinel error to the internal error chain.
func mapError(err error) error {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, model.ErrNotFound):
		return errors.Join(err, ErrNotFound)
	case errors.Is(err, model.ErrAlreadyExists):
		return errors.Join(err, ErrAlreadyExists)
	case errors.Is(err, model.ErrNotValid):
		return errors.Join(err, ErrNotValid)
	default:
		return err
	}
}
