package task

import (
	"sync/atomic"

	"github.com/slok/prun/internal/progress"
)

// trackedSink keeps the position of the wrapped sink so the task can report it.
type trackedSink struct {
	progress.Sink
	position atomic.Int64
}

func newTrackedSink(s progress.Sink) *trackedSink {
	return &trackedSink{Sink: s}
}

func (s *trackedSink) SetPosition(n int64) {
	s.position.Store(n)
	s.Sink.SetPosition(n)
}

func (s *trackedSink) Inc(n int64) {
	s.position.Add(n)
	s.Sink.Inc(n)
}
