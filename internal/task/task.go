package task

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/slok/prun/internal/log"
	"github.com/slok/prun/internal/model"
	"github.com/slok/prun/internal/progress"
)

const (
	defaultBoundedStep   = 50 * time.Millisecond
	defaultUnboundedTick = 100 * time.Millisecond
)

// Config is the configuration of a task.
type Config struct {
	// Index is the position of the task on its runner.
	Index   int
	Spec    model.TaskSpec
	Display progress.Display
	// Body is the work of the task, if missing the default body for the task kind is used.
	Body   Body
	Logger log.Logger
}

func (c *Config) defaults() error {
	if err := c.Spec.Validate(); err != nil {
		return err
	}

	if c.Spec.Step == 0 {
		c.Spec.Step = defaultBoundedStep
		if c.Spec.Kind == model.TaskKindUnbounded {
			c.Spec.Step = defaultUnboundedTick
		}
	}

	if c.Spec.FailAfter > 0 && c.Spec.FailReason == "" {
		c.Spec.FailReason = "injected failure"
	}

	if c.Display == nil {
		c.Display = progress.Noop
	}

	if c.Body == nil {
		switch c.Spec.Kind {
		case model.TaskKindBounded:
			c.Body = NewBoundedBody(c.Spec.Total, c.Spec.Step)
		case model.TaskKindUnbounded:
			c.Body = NewUnboundedBody(c.Spec.Duration, c.Spec.Step)
		}
	}

	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "task.Task", "task": c.Spec.Name})

	return nil
}

// Task is a unit of work that owns its progress sink.
//
// The run loop and the sink are only used by the goroutine that called Run, MarkFailed and
// RequestCancel are the only methods meant to be called from other goroutines while running.
type Task struct {
	id     string
	index  int
	spec   model.TaskSpec
	body   Body
	sink   *trackedSink
	logger log.Logger

	mu             sync.Mutex
	label          string
	status         model.TaskStatus
	reason         string
	outcome        model.TaskOutcome
	message        string
	cancelObserved bool
	finalized      bool
	started        bool
	startedAt      time.Time
	endedAt        time.Time

	cancelOnce sync.Once
	cancelC    chan struct{}
}

// New returns a new task in running status, its sink is registered on the display right away.
func New(cfg Config) (*Task, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	var sink progress.Sink
	switch cfg.Spec.Kind {
	case model.TaskKindBounded:
		sink = cfg.Display.Register(cfg.Spec.Name, cfg.Spec.Total, progress.StyleBar)
	default:
		sink = cfg.Display.Register(cfg.Spec.Name, 0, progress.StyleSpinner)
	}
	sink.SetMessage(cfg.Spec.Name)

	return &Task{
		id:      ulid.Make().String(),
		index:   cfg.Index,
		spec:    cfg.Spec,
		body:    cfg.Body,
		sink:    newTrackedSink(sink),
		logger:  cfg.Logger,
		label:   cfg.Spec.Name,
		status:  model.TaskStatusRunning,
		cancelC: make(chan struct{}),
	}, nil
}

// ID returns the unique ID of the task.
func (t *Task) ID() string { return t.id }

// Spec returns the spec the task was created from.
func (t *Task) Spec() model.TaskSpec { return t.spec }

// Status returns the current status of the task.
func (t *Task) Status() model.TaskStatus {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status
}

// SetLabel changes the human readable label of the task. It can only be changed before
// the task starts running.
func (t *Task) SetLabel(label string) error {
	// The sink is updated while holding the lock, Run takes it before its first sink call.
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.started {
		return fmt.Errorf("could not change label of task %q: %w", t.spec.Name, model.ErrAlreadyRunning)
	}

	t.label = label
	t.sink.SetMessage(label)

	return nil
}

// MarkFailed sets the task as failed with a reason. The run loop stops advancing on its next poll
// and the sink ends abandoned with the reason.
//
// Failing a task that already reached a terminal status (finished or failed) doesn't change
// anything and returns model.ErrAlreadyTerminal.
func (t *Task) MarkFailed(reason string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.status.IsTerminal() {
		return fmt.Errorf("could not fail task %q on %s status: %w", t.spec.Name, t.status, model.ErrAlreadyTerminal)
	}

	t.status = model.TaskStatusFailed
	t.reason = reason
	t.logger.Debugf("Task marked as failed: %s", reason)

	return nil
}

// RequestCancel asks the task to stop early. The request is write-once and it's only observed
// by the run loop on its polling points.
func (t *Task) RequestCancel() {
	t.cancelOnce.Do(func() {
		close(t.cancelC)

		t.mu.Lock()
		if t.status == model.TaskStatusRunning {
			t.status = model.TaskStatusCancelRequested
		}
		t.mu.Unlock()

		t.logger.Debugf("Task cancellation requested")
	})
}

// shouldStop is the polling point of the run loop.
func (t *Task) shouldStop() bool {
	t.mu.Lock()
	failed := t.status == model.TaskStatusFailed
	t.mu.Unlock()
	if failed {
		return true
	}

	select {
	case <-t.cancelC:
		t.mu.Lock()
		t.cancelObserved = true
		t.mu.Unlock()
		return true
	default:
		return false
	}
}

// Run executes the task body and finalizes the sink once. Run can only be called once, failures
// of the task are not returned as errors but as part of the result.
//
// Cancelling the context requests the cancellation of the task.
func (t *Task) Run(ctx context.Context) (model.TaskResult, error) {
	t.mu.Lock()
	if t.started {
		t.mu.Unlock()
		return model.TaskResult{}, fmt.Errorf("could not run task %q: %w", t.spec.Name, model.ErrAlreadyRunning)
	}
	t.started = true
	t.startedAt = time.Now().UTC()
	t.mu.Unlock()

	logger := t.logger.WithCtxValues(ctx)

	stopCtxCancel := context.AfterFunc(ctx, t.RequestCancel)
	defer stopCtxCancel()
	stopInjections := t.startInjections()
	defer stopInjections()

	logger.Debugf("Starting task: %s", t.spec.Name)
	err := t.body.Execute(control{t: t}, t.sink)

	if err != nil {
		if ferr := t.MarkFailed(err.Error()); ferr != nil {
			logger.Warningf("Task body error ignored: %s", ferr)
		}
	}

	res := t.finalize()
	logger.Debugf("Completed task: %s", res.Message)

	return res, nil
}

// Abort finalizes a task whose run loop terminated abnormally. It must only be called by
// the goroutine that called Run.
func (t *Task) Abort(reason string) model.TaskResult {
	_ = t.MarkFailed(reason)
	return t.finalize()
}

// startInjections starts the failure and cancellation timers of the spec, returns
// a function that stops them.
func (t *Task) startInjections() (stop func()) {
	var timers []*time.Timer

	if t.spec.FailAfter > 0 {
		timers = append(timers, time.AfterFunc(t.spec.FailAfter, func() {
			_ = t.MarkFailed(t.spec.FailReason)
		}))
	}

	if t.spec.CancelAfter > 0 {
		timers = append(timers, time.AfterFunc(t.spec.CancelAfter, t.RequestCancel))
	}

	return func() {
		for _, tm := range timers {
			tm.Stop()
		}
	}
}

// finalize decides the outcome of the task and sets the sink terminal state, only once.
// Failure wins over cancellation.
func (t *Task) finalize() model.TaskResult {
	t.mu.Lock()
	if t.finalized {
		t.mu.Unlock()
		return t.Result()
	}

	switch {
	case t.status == model.TaskStatusFailed:
		t.outcome = model.TaskOutcomeFailed
		t.message = fmt.Sprintf("%s failed: %s", t.label, t.reason)
	case t.cancelObserved:
		t.status = model.TaskStatusFinished
		t.outcome = model.TaskOutcomeCancelled
		t.message = fmt.Sprintf("%s cancelled", t.label)
	default:
		t.status = model.TaskStatusFinished
		t.outcome = model.TaskOutcomeFinished
		t.message = fmt.Sprintf("%s finished", t.label)
	}
	t.finalized = true
	t.endedAt = time.Now().UTC()
	if t.startedAt.IsZero() {
		t.startedAt = t.endedAt
	}
	failed := t.outcome == model.TaskOutcomeFailed
	msg := t.message
	t.mu.Unlock()

	if failed {
		t.sink.AbandonWithMessage(msg)
	} else {
		t.sink.FinishWithMessage(msg)
	}

	return t.Result()
}

// Result returns a snapshot of the task state.
func (t *Task) Result() model.TaskResult {
	t.mu.Lock()
	defer t.mu.Unlock()

	total := t.spec.Total
	if t.spec.Kind == model.TaskKindUnbounded {
		total = 0
	}

	return model.TaskResult{
		ID:        t.id,
		Index:     t.index,
		Name:      t.spec.Name,
		Kind:      t.spec.Kind,
		Status:    t.status,
		Outcome:   t.outcome,
		Reason:    t.reason,
		Position:  t.sink.position.Load(),
		Total:     total,
		Message:   t.message,
		StartedAt: t.startedAt,
		EndedAt:   t.endedAt,
	}
}

type control struct {
	t *Task
}

func (c control) ShouldStop() bool { return c.t.shouldStop() }
