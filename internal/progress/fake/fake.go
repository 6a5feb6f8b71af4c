// Package fake has a progress display that records everything sinks receive, it's used on tests.
package fake

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/slok/prun/internal/progress"
)

// Display is a recording progress.Display. It's safe for concurrent use.
type Display struct {
	mu     sync.Mutex
	sinks  []*Sink
	closed bool
}

// NewDisplay returns a new recording display.
func NewDisplay() *Display {
	return &Display{}
}

// Register satisfies progress.Display.
func (d *Display) Register(name string, total int64, style progress.Style) progress.Sink {
	d.mu.Lock()
	defer d.mu.Unlock()

	s := &Sink{name: name, total: total, style: style}
	d.sinks = append(d.sinks, s)
	return s
}

// Close satisfies progress.Display.
func (d *Display) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return nil
}

// Closed returns true if the display has been closed.
func (d *Display) Closed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

// Sinks returns the registered sinks in registration order.
func (d *Display) Sinks() []*Sink {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]*Sink{}, d.sinks...)
}

// Sink returns the first sink registered with the name, nil if missing.
func (d *Display) Sink(name string) *Sink {
	for _, s := range d.Sinks() {
		if s.Name() == name {
			return s
		}
	}
	return nil
}

// Sink is a recording progress.Sink.
//
// Apart from recording, it detects overlapping calls from different goroutines and calls
// made after the sink reached a terminal state.
type Sink struct {
	name  string
	style progress.Style

	mu           sync.Mutex
	total        int64
	position     int64
	positions    []int64
	messages     []string
	finalMessage string
	finishCalls  int
	abandoned    bool
	tick         time.Duration
	lateCalls    int

	inUse        atomic.Int32
	overlapCalls atomic.Int32
}

func (s *Sink) enter() func() {
	if s.inUse.Add(1) > 1 {
		s.overlapCalls.Add(1)
	}
	s.mu.Lock()
	if s.finishCalls > 0 {
		s.lateCalls++
	}
	return func() {
		s.mu.Unlock()
		s.inUse.Add(-1)
	}
}

func (s *Sink) SetTotal(n int64) {
	defer s.enter()()
	s.total = n
}

func (s *Sink) SetPosition(n int64) {
	defer s.enter()()
	s.position = n
	s.positions = append(s.positions, n)
}

func (s *Sink) Inc(n int64) {
	defer s.enter()()
	s.position += n
	s.positions = append(s.positions, s.position)
}

func (s *Sink) SetMessage(msg string) {
	defer s.enter()()
	s.messages = append(s.messages, msg)
}

func (s *Sink) FinishWithMessage(msg string) {
	defer s.enter()()
	s.finalMessage = msg
	s.finishCalls++
}

func (s *Sink) AbandonWithMessage(msg string) {
	defer s.enter()()
	s.finalMessage = msg
	s.abandoned = true
	s.finishCalls++
}

func (s *Sink) EnableTick(interval time.Duration) {
	defer s.enter()()
	s.tick = interval
}

// Name returns the name the sink was registered with.
func (s *Sink) Name() string { return s.name }

// Style returns the style the sink was registered with.
func (s *Sink) Style() progress.Style { return s.style }

// Total returns the current total.
func (s *Sink) Total() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.total
}

// Position returns the current position.
func (s *Sink) Position() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.position
}

// Positions returns every position the sink has been set to, in order.
func (s *Sink) Positions() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int64{}, s.positions...)
}

// Messages returns the non final messages set on the sink.
func (s *Sink) Messages() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string{}, s.messages...)
}

// FinalMessage returns the message of the terminal state.
func (s *Sink) FinalMessage() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.finalMessage
}

// FinishCalls returns how many times the sink has been finished or abandoned.
func (s *Sink) FinishCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.finishCalls
}

// Abandoned returns true if the sink ended on a failed state.
func (s *Sink) Abandoned() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.abandoned
}

// TickInterval returns the enabled tick interval, zero if not enabled.
func (s *Sink) TickInterval() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tick
}

// LateCalls returns the number of calls received after the terminal state.
func (s *Sink) LateCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lateCalls
}

// OverlapCalls returns the number of calls that overlapped with another call in flight.
func (s *Sink) OverlapCalls() int {
	return int(s.overlapCalls.Load())
}
