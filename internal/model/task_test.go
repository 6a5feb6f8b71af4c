package model_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/slok/prun/internal/model"
)

func TestTaskSpecValidate(t *testing.T) {
	tests := map[string]struct {
		spec   model.TaskSpec
		expErr bool
	}{
		"A valid bounded task should not fail": {
			spec:   model.TaskSpec{Name: "download", Kind: model.TaskKindBounded, Total: 100},
			expErr: false,
		},

		"A valid unbounded task should not fail": {
			spec:   model.TaskSpec{Name: "index", Kind: model.TaskKindUnbounded, Duration: time.Second},
			expErr: false,
		},

		"Missing name should fail": {
			spec:   model.TaskSpec{Kind: model.TaskKindBounded, Total: 100},
			expErr: true,
		},

		"Bounded task without total should fail": {
			spec:   model.TaskSpec{Name: "download", Kind: model.TaskKindBounded},
			expErr: true,
		},

		"Unbounded task without duration should fail": {
			spec:   model.TaskSpec{Name: "index", Kind: model.TaskKindUnbounded},
			expErr: true,
		},

		"Unknown kind should fail": {
			spec:   model.TaskSpec{Name: "x", Kind: "other", Total: 1},
			expErr: true,
		},

		"Negative intervals should fail": {
			spec:   model.TaskSpec{Name: "download", Kind: model.TaskKindBounded, Total: 1, Step: -time.Second},
			expErr: true,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			err := test.spec.Validate()
			if test.expErr {
				assert.Error(t, err)
				assert.True(t, errors.Is(err, model.ErrNotValid))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestTaskStatusIsTerminal(t *testing.T) {
	assert.False(t, model.TaskStatusRunning.IsTerminal())
	assert.False(t, model.TaskStatusCancelRequested.IsTerminal())
	assert.True(t, model.TaskStatusFailed.IsTerminal())
	assert.True(t, model.TaskStatusFinished.IsTerminal())
}

func TestRunSummaryCounts(t *testing.T) {
	start := time.Date(2026, 1, 30, 10, 0, 0, 0, time.UTC)
	s := model.RunSummary{
		StartedAt: start,
		EndedAt:   start.Add(5 * time.Second),
		Results: []model.TaskResult{
			{Outcome: model.TaskOutcomeFinished},
			{Outcome: model.TaskOutcomeFailed},
			{Outcome: model.TaskOutcomeCancelled},
			{Outcome: model.TaskOutcomeFinished},
		},
	}

	assert.Equal(t, 2, s.Count(model.TaskOutcomeFinished))
	assert.Equal(t, 1, s.Count(model.TaskOutcomeFailed))
	assert.Equal(t, 1, s.Count(model.TaskOutcomeCancelled))
	assert.True(t, s.HasFailures())
	assert.Equal(t, 5*time.Second, s.Duration())
}
