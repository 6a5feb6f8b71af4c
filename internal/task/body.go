package task

import (
	"time"

	"github.com/slok/prun/internal/progress"
)

// Control is used by a body to know when it needs to stop working.
type Control interface {
	// ShouldStop returns true when the task was marked as failed or its cancellation was requested.
	ShouldStop() bool
}

// Body is the work executed by a task.
//
// A body reports progress only through the sink it receives and polls the control on its own
// stopping points. Returning an error marks the task as failed with the error text.
type Body interface {
	Execute(ctl Control, sink progress.Sink) error
}

// BodyFunc is a helper to create bodies from functions.
type BodyFunc func(ctl Control, sink progress.Sink) error

// Execute satisfies Body.
func (f BodyFunc) Execute(ctl Control, sink progress.Sink) error { return f(ctl, sink) }

// NewBoundedBody returns a body that advances the sink one unit at a time up to total, sleeping
// step between units. It checks for failure and cancellation before every unit.
func NewBoundedBody(total int64, step time.Duration) Body {
	return BodyFunc(func(ctl Control, sink progress.Sink) error {
		for i := int64(0); i < total; i++ {
			if ctl.ShouldStop() {
				return nil
			}
			sink.Inc(1)
			time.Sleep(step)
		}
		return nil
	})
}

// NewUnboundedBody returns a body that ticks the sink while blocking for the whole duration.
//
// The wait is not interruptible, a cancellation requested while waiting is only observed once
// the duration has elapsed.
func NewUnboundedBody(duration, tick time.Duration) Body {
	return BodyFunc(func(ctl Control, sink progress.Sink) error {
		sink.EnableTick(tick)
		time.Sleep(duration)
		ctl.ShouldStop()
		return nil
	})
}
