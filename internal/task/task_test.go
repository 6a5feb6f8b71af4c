package task_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slok/prun/internal/log"
	"github.com/slok/prun/internal/model"
	"github.com/slok/prun/internal/progress"
	"github.com/slok/prun/internal/progress/fake"
	"github.com/slok/prun/internal/task"
)

func bounded(name string, total int64) model.TaskSpec {
	return model.TaskSpec{Name: name, Kind: model.TaskKindBounded, Total: total, Step: time.Millisecond}
}

func unbounded(name string, d time.Duration) model.TaskSpec {
	return model.TaskSpec{Name: name, Kind: model.TaskKindUnbounded, Duration: d, Step: time.Millisecond}
}

func newTask(t *testing.T, d progress.Display, spec model.TaskSpec) *task.Task {
	tk, err := task.New(task.Config{Spec: spec, Display: d, Logger: log.Noop})
	require.NoError(t, err)
	return tk
}

func assertMonotonic(t *testing.T, positions []int64, total int64) {
	for i, p := range positions {
		assert.LessOrEqual(t, p, total)
		if i > 0 {
			assert.GreaterOrEqual(t, p, positions[i-1])
		}
	}
}

func TestNewTask(t *testing.T) {
	tests := map[string]struct {
		spec     model.TaskSpec
		expStyle progress.Style
		expTotal int64
		expErr   bool
	}{
		"Bounded tasks should register a bar.": {
			spec:     bounded("download", 100),
			expStyle: progress.StyleBar,
			expTotal: 100,
		},

		"Unbounded tasks should register a spinner.": {
			spec:     unbounded("index", time.Second),
			expStyle: progress.StyleSpinner,
			expTotal: 0,
		},

		"Invalid specs should fail.": {
			spec:   model.TaskSpec{Name: "x", Kind: model.TaskKindBounded},
			expErr: true,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)
			require := require.New(t)

			d := fake.NewDisplay()
			tk, err := task.New(task.Config{Spec: test.spec, Display: d})
			if test.expErr {
				require.Error(err)
				assert.True(errors.Is(err, model.ErrNotValid))
				assert.Empty(d.Sinks())
				return
			}
			require.NoError(err)

			assert.NotEmpty(tk.ID())
			assert.Equal(model.TaskStatusRunning, tk.Status())

			sinks := d.Sinks()
			require.Len(sinks, 1)
			assert.Equal(test.spec.Name, sinks[0].Name())
			assert.Equal(test.expStyle, sinks[0].Style())
			assert.Equal(test.expTotal, sinks[0].Total())
			assert.Equal([]string{test.spec.Name}, sinks[0].Messages())
		})
	}
}

func TestTaskRun(t *testing.T) {
	tests := map[string]struct {
		spec        model.TaskSpec
		body        task.Body
		beforeRun   func(tk *task.Task)
		expStatus   model.TaskStatus
		expOutcome  model.TaskOutcome
		expMessage  string
		expPosition int64
		expAbandon  bool
	}{
		"A bounded task without signals should finish on its total.": {
			spec:        bounded("Task 1", 20),
			expStatus:   model.TaskStatusFinished,
			expOutcome:  model.TaskOutcomeFinished,
			expMessage:  "Task 1 finished",
			expPosition: 20,
		},

		"An unbounded task without signals should finish.": {
			spec:       unbounded("Task 2", 10*time.Millisecond),
			expStatus:  model.TaskStatusFinished,
			expOutcome: model.TaskOutcomeFinished,
			expMessage: "Task 2 finished",
		},

		"A bounded task failed before running should not advance.": {
			spec: bounded("Task 1", 100),
			beforeRun: func(tk *task.Task) {
				_ = tk.MarkFailed("network error")
			},
			expStatus:   model.TaskStatusFailed,
			expOutcome:  model.TaskOutcomeFailed,
			expMessage:  "Task 1 failed: network error",
			expPosition: 0,
			expAbandon:  true,
		},

		"A bounded task cancelled before running should end cancelled without advancing.": {
			spec: bounded("Task 3", 50),
			beforeRun: func(tk *task.Task) {
				tk.RequestCancel()
			},
			expStatus:   model.TaskStatusFinished,
			expOutcome:  model.TaskOutcomeCancelled,
			expMessage:  "Task 3 cancelled",
			expPosition: 0,
		},

		"Failure should take precedence over cancellation.": {
			spec: bounded("Task 1", 10),
			beforeRun: func(tk *task.Task) {
				tk.RequestCancel()
				_ = tk.MarkFailed("disk full")
			},
			expStatus:   model.TaskStatusFailed,
			expOutcome:  model.TaskOutcomeFailed,
			expMessage:  "Task 1 failed: disk full",
			expPosition: 0,
			expAbandon:  true,
		},

		"A body error should fail the task with the error text.": {
			spec: bounded("Task 4", 10),
			body: task.BodyFunc(func(ctl task.Control, sink progress.Sink) error {
				sink.Inc(3)
				return errors.New("checksum mismatch")
			}),
			expStatus:   model.TaskStatusFailed,
			expOutcome:  model.TaskOutcomeFailed,
			expMessage:  "Task 4 failed: checksum mismatch",
			expPosition: 3,
			expAbandon:  true,
		},

		"A relabeled task should use the new label on its final message.": {
			spec: bounded("Task 5", 2),
			beforeRun: func(tk *task.Task) {
				_ = tk.SetLabel("Downloading")
			},
			expStatus:   model.TaskStatusFinished,
			expOutcome:  model.TaskOutcomeFinished,
			expMessage:  "Downloading finished",
			expPosition: 2,
		},

		"An injected failure should fail the task before finishing.": {
			spec: model.TaskSpec{
				Name:       "Task 6",
				Kind:       model.TaskKindBounded,
				Total:      1000,
				Step:       time.Millisecond,
				FailAfter:  10 * time.Millisecond,
				FailReason: "timeout",
			},
			expStatus:  model.TaskStatusFailed,
			expOutcome: model.TaskOutcomeFailed,
			expMessage: "Task 6 failed: timeout",
			expAbandon: true,
		},

		"An injected cancellation should cancel the task before finishing.": {
			spec: model.TaskSpec{
				Name:        "Task 7",
				Kind:        model.TaskKindBounded,
				Total:       1000,
				Step:        time.Millisecond,
				CancelAfter: 10 * time.Millisecond,
			},
			expStatus:  model.TaskStatusFinished,
			expOutcome: model.TaskOutcomeCancelled,
			expMessage: "Task 7 cancelled",
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)
			require := require.New(t)

			d := fake.NewDisplay()
			tk, err := task.New(task.Config{Spec: test.spec, Display: d, Body: test.body})
			require.NoError(err)

			if test.beforeRun != nil {
				test.beforeRun(tk)
			}

			res, err := tk.Run(context.Background())
			require.NoError(err)

			assert.Equal(test.expStatus, res.Status)
			assert.Equal(test.expOutcome, res.Outcome)
			assert.Equal(test.expMessage, res.Message)
			assert.Equal(test.spec.Name, res.Name)
			assert.False(res.StartedAt.After(res.EndedAt))

			s := d.Sinks()[0]
			assert.Equal(1, s.FinishCalls())
			assert.Equal(0, s.LateCalls())
			assert.Equal(0, s.OverlapCalls())
			assert.Equal(test.expMessage, s.FinalMessage())
			assert.Equal(test.expAbandon, s.Abandoned())
			assertMonotonic(t, s.Positions(), test.spec.Total)

			// Injected signals are timing based, only check exact positions when deterministic.
			if test.spec.FailAfter == 0 && test.spec.CancelAfter == 0 {
				assert.Equal(test.expPosition, res.Position)
			} else {
				assert.Less(res.Position, test.spec.Total)
			}
		})
	}
}

func TestTaskMarkFailedImmediatelyAfterStart(t *testing.T) {
	assert := assert.New(t)

	d := fake.NewDisplay()
	tk := newTask(t, d, bounded("Task 1", 100))

	resC := make(chan model.TaskResult)
	go func() {
		res, _ := tk.Run(context.Background())
		resC <- res
	}()
	assert.NoError(tk.MarkFailed("network error"))
	res := <-resC

	assert.Equal(model.TaskOutcomeFailed, res.Outcome)
	assert.Contains(res.Message, "failed")
	assert.Contains(res.Message, "network error")
	assert.Less(res.Position, int64(100))
	assert.True(d.Sinks()[0].Abandoned())
}

func TestTaskCancelImmediatelyAfterStart(t *testing.T) {
	assert := assert.New(t)

	d := fake.NewDisplay()
	tk := newTask(t, d, bounded("Task 3", 50))

	resC := make(chan model.TaskResult)
	go func() {
		res, _ := tk.Run(context.Background())
		resC <- res
	}()
	tk.RequestCancel()
	tk.RequestCancel() // Write-once, should be safe.
	res := <-resC

	assert.Equal(model.TaskOutcomeCancelled, res.Outcome)
	assert.Equal("Task 3 cancelled", res.Message)
	assert.Less(res.Position, int64(50))
}

func TestTaskUnboundedCancelIsObservedAfterTheWait(t *testing.T) {
	assert := assert.New(t)

	const duration = 80 * time.Millisecond
	d := fake.NewDisplay()
	tk := newTask(t, d, unbounded("Task 2", duration))

	start := time.Now()
	doneC := make(chan model.TaskResult)
	go func() {
		res, _ := tk.Run(context.Background())
		doneC <- res
	}()

	time.Sleep(10 * time.Millisecond)
	tk.RequestCancel()
	assert.Equal(model.TaskStatusCancelRequested, tk.Status())

	// The cancellation has no effect while the task waits.
	select {
	case <-doneC:
		assert.Fail("unbounded task ended before its duration")
	case <-time.After(20 * time.Millisecond):
	}

	res := <-doneC
	assert.GreaterOrEqual(time.Since(start), duration)
	assert.Equal(model.TaskOutcomeCancelled, res.Outcome)
	assert.Equal("Task 2 cancelled", res.Message)
	assert.Equal(time.Millisecond, d.Sinks()[0].TickInterval())
}

func TestTaskContextCancelRequestsCancellation(t *testing.T) {
	d := fake.NewDisplay()
	tk := newTask(t, d, bounded("Task 1", 10000))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	res, err := tk.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.TaskOutcomeCancelled, res.Outcome)
}

func TestTaskLifecycleErrors(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	d := fake.NewDisplay()
	tk := newTask(t, d, bounded("Task 1", 3))

	res, err := tk.Run(context.Background())
	require.NoError(err)
	require.Equal(model.TaskOutcomeFinished, res.Outcome)

	// Running twice is not allowed.
	_, err = tk.Run(context.Background())
	assert.True(errors.Is(err, model.ErrAlreadyRunning))

	// Failing a finished task is a no-op.
	err = tk.MarkFailed("late")
	assert.True(errors.Is(err, model.ErrAlreadyTerminal))
	assert.Equal(model.TaskStatusFinished, tk.Status())
	assert.Equal("Task 1 finished", tk.Result().Message)

	// Cancelling a finished task is a no-op.
	tk.RequestCancel()
	assert.Equal(model.TaskStatusFinished, tk.Status())

	// Labels can't change once started.
	assert.True(errors.Is(tk.SetLabel("other"), model.ErrAlreadyRunning))

	assert.Equal(1, d.Sinks()[0].FinishCalls())
}

func TestTaskSetLabelRacingRun(t *testing.T) {
	for range 50 {
		d := fake.NewDisplay()
		tk, err := task.New(task.Config{
			Spec:    bounded("Task 1", 5),
			Display: d,
			Body: task.BodyFunc(func(_ task.Control, sink progress.Sink) error {
				for range 5 {
					sink.Inc(1)
				}
				return nil
			}),
		})
		require.NoError(t, err)

		labelErr := make(chan error, 1)
		go func() { labelErr <- tk.SetLabel("Relabeled") }()

		res, err := tk.Run(context.Background())
		require.NoError(t, err)
		lerr := <-labelErr

		// The label is either applied before the run started or rejected.
		if lerr == nil {
			assert.Equal(t, "Relabeled finished", res.Message)
		} else {
			assert.True(t, errors.Is(lerr, model.ErrAlreadyRunning))
			assert.Equal(t, "Task 1 finished", res.Message)
		}

		s := d.Sinks()[0]
		assert.Equal(t, 0, s.OverlapCalls())
		assert.Equal(t, 0, s.LateCalls())
		assert.Equal(t, 1, s.FinishCalls())
	}
}

func TestTaskMarkFailedTwiceKeepsFirstReason(t *testing.T) {
	tk := newTask(t, fake.NewDisplay(), bounded("Task 1", 3))

	require.NoError(t, tk.MarkFailed("first"))
	assert.True(t, errors.Is(tk.MarkFailed("second"), model.ErrAlreadyTerminal))

	res, err := tk.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Task 1 failed: first", res.Message)
}

func TestTaskAbort(t *testing.T) {
	d := fake.NewDisplay()
	tk := newTask(t, d, bounded("Task 1", 3))

	res := tk.Abort("worker panicked: boom")
	assert.Equal(t, model.TaskOutcomeFailed, res.Outcome)
	assert.Equal(t, "Task 1 failed: worker panicked: boom", res.Message)
	assert.True(t, d.Sinks()[0].Abandoned())

	// Aborting again doesn't finalize twice.
	tk.Abort("again")
	assert.Equal(t, 1, d.Sinks()[0].FinishCalls())
}
