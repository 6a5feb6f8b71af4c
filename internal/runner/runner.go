package runner

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"golang.org/x/sync/errgroup"

	"github.com/slok/prun/internal/log"
	"github.com/slok/prun/internal/model"
	"github.com/slok/prun/internal/progress"
	"github.com/slok/prun/internal/task"
)

// State is the lifecycle state of a runner.
type State string

const (
	StateIdle    State = "idle"
	StateRunning State = "running"
	StateDrained State = "drained"
	StateJoined  State = "joined"
	StateDone    State = "done"
)

// Completion is the signal a worker sends when its task ended.
type Completion struct {
	Index  int
	Result model.TaskResult
	// Err is set when the worker terminated abnormally.
	Err error
}

// Config is the configuration for the runner.
type Config struct {
	Display progress.Display
	Logger  log.Logger
	// OnComplete is called for every completion drained by RunAllWithReporting, in completion
	// order and from the goroutine that called it.
	OnComplete func(c Completion)
}

func (c *Config) defaults() error {
	if c.Display == nil {
		c.Display = progress.Noop
	}

	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "runner.Runner"})

	if c.OnComplete == nil {
		c.OnComplete = func(Completion) {}
	}

	return nil
}

type entry struct {
	spec model.TaskSpec
	body task.Body
}

// Runner runs a set of independent tasks concurrently, one worker per task, and only returns once
// every worker has been joined.
type Runner struct {
	display    progress.Display
	logger     log.Logger
	onComplete func(Completion)

	mu      sync.Mutex
	state   State
	entries []entry
	tasks   []*task.Task
	summary model.RunSummary
}

// New returns a new idle runner.
func New(cfg Config) (*Runner, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Runner{
		display:    cfg.Display,
		logger:     cfg.Logger,
		onComplete: cfg.OnComplete,
		state:      StateIdle,
	}, nil
}

// AddTask creates a task with the default body of its kind.
func (r *Runner) AddTask(spec model.TaskSpec) (*task.Task, error) {
	return r.AddTaskWithBody(spec, nil)
}

// AddTaskWithBody creates a task that executes body. Tasks can only be added while the runner is idle.
func (r *Runner) AddTaskWithBody(spec model.TaskSpec, body task.Body) (*task.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != StateIdle {
		return nil, fmt.Errorf("could not add task on %s state: %w", r.state, model.ErrRunnerState)
	}

	t, err := r.newTask(len(r.tasks), spec, body)
	if err != nil {
		return nil, err
	}

	r.entries = append(r.entries, entry{spec: spec, body: body})
	r.tasks = append(r.tasks, t)

	return t, nil
}

func (r *Runner) newTask(index int, spec model.TaskSpec, body task.Body) (*task.Task, error) {
	t, err := task.New(task.Config{
		Index:   index,
		Spec:    spec,
		Display: r.display,
		Body:    body,
		Logger:  r.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create task: %w", err)
	}

	return t, nil
}

// Tasks returns the tasks of the runner in the order they were added.
func (r *Runner) Tasks() []*task.Task {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*task.Task{}, r.tasks...)
}

// State returns the current runner state.
func (r *Runner) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

func (r *Runner) setState(s State) {
	r.mu.Lock()
	r.state = s
	r.mu.Unlock()
}

// Summary returns the summary of the last run, only available once the runner is done.
func (r *Runner) Summary() (model.RunSummary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != StateDone {
		return model.RunSummary{}, fmt.Errorf("summary not available on %s state: %w", r.state, model.ErrRunnerState)
	}

	return r.summary, nil
}

// Reset replaces the tasks with new ones created from the same specs so the runner can run again.
// It's only allowed once the runner is done.
func (r *Runner) Reset() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != StateDone {
		return fmt.Errorf("could not reset on %s state: %w", r.state, model.ErrRunnerState)
	}

	tasks := make([]*task.Task, 0, len(r.entries))
	for i, e := range r.entries {
		t, err := r.newTask(i, e.spec, e.body)
		if err != nil {
			return err
		}
		tasks = append(tasks, t)
	}

	r.tasks = tasks
	r.summary = model.RunSummary{}
	r.state = StateIdle

	return nil
}

// CancelAll requests the cancellation of every task.
func (r *Runner) CancelAll() {
	for _, t := range r.Tasks() {
		t.RequestCancel()
	}
}

// RunParallel runs all the tasks concurrently and blocks until every worker has been joined.
//
// Task failures are part of the summary, an error is only returned when a worker terminated
// abnormally.
func (r *Runner) RunParallel(ctx context.Context) (model.RunSummary, error) {
	return r.run(ctx, false)
}

// RunAllWithReporting is like RunParallel but reports every completion through OnComplete before
// joining the workers.
func (r *Runner) RunAllWithReporting(ctx context.Context) (model.RunSummary, error) {
	return r.run(ctx, true)
}

func (r *Runner) run(ctx context.Context, report bool) (model.RunSummary, error) {
	r.mu.Lock()
	if r.state != StateIdle {
		r.mu.Unlock()
		return model.RunSummary{}, fmt.Errorf("could not run on %s state: %w", r.state, model.ErrRunnerState)
	}
	r.state = StateRunning
	tasks := append([]*task.Task{}, r.tasks...)
	r.mu.Unlock()

	runID := ulid.Make().String()
	ctx = r.logger.SetValuesOnCtx(ctx, log.Kv{"run": runID})
	logger := r.logger.WithCtxValues(ctx)

	summary := model.RunSummary{
		ID:        runID,
		StartedAt: time.Now().UTC(),
		Results:   make([]model.TaskResult, len(tasks)),
	}

	// Every worker sends exactly one completion, buffered so workers never block on it.
	completions := make(chan Completion, len(tasks))

	var g errgroup.Group
	for i, t := range tasks {
		g.Go(func() error {
			return r.work(ctx, i, t, completions)
		})
	}
	logger.Debugf("Spawned %d workers", len(tasks))

	var workerErr error
	for range len(tasks) {
		c := <-completions
		summary.Results[c.Index] = c.Result

		if c.Err != nil {
			logger.Errorf("Worker of task %q terminated abnormally: %s", c.Result.Name, c.Err)
			if workerErr == nil {
				workerErr = c.Err
			}
			r.CancelAll()
		}

		if report {
			logger.Infof("Task %d completed: %s", c.Index, c.Result.Message)
			r.onComplete(c)
		}
	}
	r.setState(StateDrained)

	// Workers that exit with runtime.Goexit are not errors for the group, the drained
	// completions are the source of truth.
	if err := g.Wait(); err != nil && workerErr == nil {
		workerErr = err
	}
	r.setState(StateJoined)

	summary.EndedAt = time.Now().UTC()
	r.mu.Lock()
	r.summary = summary
	r.state = StateDone
	r.mu.Unlock()

	if workerErr != nil {
		return summary, fmt.Errorf("run %s: %w", runID, workerErr)
	}

	logger.Infof("All tasks completed")
	return summary, nil
}

// work runs one task on the worker goroutine and always sends its completion, also when
// the task panics or the goroutine exits without returning.
func (r *Runner) work(ctx context.Context, index int, t *task.Task, completions chan<- Completion) (err error) {
	var res model.TaskResult
	returned := false
	defer func() {
		if !returned && err == nil {
			err = fmt.Errorf("task %q: worker exited abnormally: %w", t.Spec().Name, model.ErrWorkerPanic)
			res = t.Abort("worker exited abnormally")
		}
		completions <- Completion{Index: index, Result: res, Err: err}
	}()
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("task %q: %v: %w", t.Spec().Name, p, model.ErrWorkerPanic)
			res = t.Abort(fmt.Sprintf("worker panicked: %v", p))
		}
	}()

	res, err = t.Run(ctx)
	if err != nil {
		res = t.Result()
	}

	returned = true
	return err
}
