package model

import (
	"fmt"
	"time"
)

// TaskKind is the kind of work a task does, it decides the progress style and the run loop.
type TaskKind string

const (
	// TaskKindBounded tasks have a known total of units and advance from 0 to total.
	TaskKindBounded TaskKind = "bounded"
	// TaskKindUnbounded tasks have no natural progress units and run for a duration.
	TaskKindUnbounded TaskKind = "unbounded"
)

// TaskStatus represents the state of a task.
type TaskStatus string

const (
	TaskStatusRunning         TaskStatus = "running"
	TaskStatusCancelRequested TaskStatus = "cancel-requested"
	TaskStatusFailed          TaskStatus = "failed"
	TaskStatusFinished        TaskStatus = "finished"
)

// IsTerminal returns true when no more transitions can happen from the status.
func (s TaskStatus) IsTerminal() bool {
	return s == TaskStatusFailed || s == TaskStatusFinished
}

// TaskOutcome is the terminal result of a task as shown to the user.
type TaskOutcome string

const (
	TaskOutcomeNone      TaskOutcome = ""
	TaskOutcomeFinished  TaskOutcome = "finished"
	TaskOutcomeFailed    TaskOutcome = "failed"
	TaskOutcomeCancelled TaskOutcome = "cancelled"
)

// TaskSpec is the definition of a task before it is created.
type TaskSpec struct {
	Name string
	Kind TaskKind
	// Total is the number of units of a bounded task.
	Total int64
	// Duration is how long an unbounded task blocks.
	Duration time.Duration
	// Step is the interval between bounded task units, or the tick interval of unbounded tasks.
	Step time.Duration

	// FailAfter marks the task as failed with FailReason once elapsed since the task started.
	// Zero disables it.
	FailAfter  time.Duration
	FailReason string
	// CancelAfter requests the task cancellation once elapsed since the task started.
	// Zero disables it.
	CancelAfter time.Duration
}

// Validate checks the spec is correct.
func (s TaskSpec) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("name is required: %w", ErrNotValid)
	}

	switch s.Kind {
	case TaskKindBounded:
		if s.Total <= 0 {
			return fmt.Errorf("task %q: total must be positive: %w", s.Name, ErrNotValid)
		}
	case TaskKindUnbounded:
		if s.Duration <= 0 {
			return fmt.Errorf("task %q: duration must be positive: %w", s.Name, ErrNotValid)
		}
	default:
		return fmt.Errorf("task %q: unknown kind %q: %w", s.Name, s.Kind, ErrNotValid)
	}

	if s.Step < 0 || s.FailAfter < 0 || s.CancelAfter < 0 {
		return fmt.Errorf("task %q: intervals can't be negative: %w", s.Name, ErrNotValid)
	}

	return nil
}

// TaskResult is the snapshot of a task state.
type TaskResult struct {
	ID       string
	Index    int
	Name     string
	Kind     TaskKind
	Status   TaskStatus
	Outcome  TaskOutcome
	Reason   string
	Position int64
	Total    int64
	Message  string

	StartedAt time.Time
	EndedAt   time.Time
}
