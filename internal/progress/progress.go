// Package progress is the boundary between tasks and the rendering of their progress.
//
// A Display multiplexes many sinks onto one output. Every Sink is owned by a single task
// and is only called serially from that task, the Display is the one responsible of
// coordinating the rendering across sinks.
package progress

import "time"

// Style is the visual style of a sink.
type Style int

const (
	// StyleBar is a bounded counter bar.
	StyleBar Style = iota
	// StyleSpinner is an indeterminate activity indicator.
	StyleSpinner
)

func (s Style) String() string {
	switch s {
	case StyleBar:
		return "bar"
	case StyleSpinner:
		return "spinner"
	}
	return "unknown"
}

// Display knows how to register and render progress sinks.
type Display interface {
	// Register creates a new sink visible on the display right away.
	// A zero total is an indeterminate sink.
	Register(name string, total int64, style Style) Sink
	// Close stops rendering and flushes the final state.
	Close() error
}

// Sink is the progress handle of one task.
type Sink interface {
	SetTotal(n int64)
	SetPosition(n int64)
	Inc(n int64)
	SetMessage(msg string)
	// FinishWithMessage sets the sink on its normal terminal state.
	FinishWithMessage(msg string)
	// AbandonWithMessage freezes the sink on a failed terminal state.
	AbandonWithMessage(msg string)
	// EnableTick makes the sink animate periodically without position changes.
	EnableTick(interval time.Duration)
}

// Noop is a display that doesn't render anything.
const Noop = noopDisplay(0)

type noopDisplay int

func (noopDisplay) Register(string, int64, Style) Sink { return noopSink{} }
func (noopDisplay) Close() error                       { return nil }

type noopSink struct{}

func (noopSink) SetTotal(int64)            {}
func (noopSink) SetPosition(int64)         {}
func (noopSink) Inc(int64)                 {}
func (noopSink) SetMessage(string)         {}
func (noopSink) FinishWithMessage(string)  {}
func (noopSink) AbandonWithMessage(string) {}
func (noopSink) EnableTick(time.Duration)  {}
