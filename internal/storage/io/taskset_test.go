package io_test

import (
	"context"
	"errors"
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slok/prun/internal/model"
	storageio "github.com/slok/prun/internal/storage/io"
)

func TestTaskSetRepositoryGetTaskSet(t *testing.T) {
	tests := map[string]struct {
		fs       fstest.MapFS
		path     string
		expSpecs []model.TaskSpec
		expErr   bool
		errMsg   string
	}{
		"Valid YAML task set should load successfully.": {
			fs: fstest.MapFS{
				"tasks.yaml": &fstest.MapFile{Data: []byte(`tasks:
  - name: download
    kind: bounded
    total: 100
    step: 10ms
  - name: index
    kind: unbounded
    duration: 2s
    fail_after: 1s
    fail_reason: disk full
  - name: upload
    kind: bounded
    total: 75
    cancel_after: 500ms
`)},
			},
			path: "tasks.yaml",
			expSpecs: []model.TaskSpec{
				{Name: "download", Kind: model.TaskKindBounded, Total: 100, Step: 10 * time.Millisecond},
				{Name: "index", Kind: model.TaskKindUnbounded, Duration: 2 * time.Second, FailAfter: time.Second, FailReason: "disk full"},
				{Name: "upload", Kind: model.TaskKindBounded, Total: 75, CancelAfter: 500 * time.Millisecond},
			},
		},

		"Valid TOML task set should load successfully.": {
			fs: fstest.MapFS{
				"tasks.toml": &fstest.MapFile{Data: []byte(`
[[tasks]]
name = "download"
kind = "bounded"
total = 100

[[tasks]]
name = "index"
kind = "unbounded"
duration = "5s"
step = "200ms"
`)},
			},
			path: "tasks.toml",
			expSpecs: []model.TaskSpec{
				{Name: "download", Kind: model.TaskKindBounded, Total: 100},
				{Name: "index", Kind: model.TaskKindUnbounded, Duration: 5 * time.Second, Step: 200 * time.Millisecond},
			},
		},

		"The yml extension should be loaded as YAML.": {
			fs: fstest.MapFS{
				"tasks.yml": &fstest.MapFile{Data: []byte(`tasks: [{name: a, kind: bounded, total: 1}]`)},
			},
			path:     "tasks.yml",
			expSpecs: []model.TaskSpec{{Name: "a", Kind: model.TaskKindBounded, Total: 1}},
		},

		"Missing file should return error.": {
			fs:     fstest.MapFS{},
			path:   "missing.yaml",
			expErr: true,
			errMsg: "reading task set file",
		},

		"Unknown format should return error.": {
			fs: fstest.MapFS{
				"tasks.json": &fstest.MapFile{Data: []byte(`{}`)},
			},
			path:   "tasks.json",
			expErr: true,
			errMsg: "unknown task set format",
		},

		"Invalid YAML should return error.": {
			fs: fstest.MapFS{
				"tasks.yaml": &fstest.MapFile{Data: []byte(`tasks: [`)},
			},
			path:   "tasks.yaml",
			expErr: true,
			errMsg: "parsing YAML",
		},

		"Invalid TOML should return error.": {
			fs: fstest.MapFS{
				"tasks.toml": &fstest.MapFile{Data: []byte(`[[tasks]`)},
			},
			path:   "tasks.toml",
			expErr: true,
			errMsg: "parsing TOML",
		},

		"Empty task set should return error.": {
			fs: fstest.MapFS{
				"tasks.yaml": &fstest.MapFile{Data: []byte(`tasks: []`)},
			},
			path:   "tasks.yaml",
			expErr: true,
			errMsg: "at least one task is required",
		},

		"Invalid duration should return error.": {
			fs: fstest.MapFS{
				"tasks.yaml": &fstest.MapFile{Data: []byte(`tasks: [{name: a, kind: unbounded, duration: forever}]`)},
			},
			path:   "tasks.yaml",
			expErr: true,
			errMsg: `invalid duration "forever"`,
		},

		"Bounded task without total should return error.": {
			fs: fstest.MapFS{
				"tasks.yaml": &fstest.MapFile{Data: []byte(`tasks: [{name: a, kind: bounded}]`)},
			},
			path:   "tasks.yaml",
			expErr: true,
			errMsg: "total must be positive",
		},

		"Duplicated task names should return error.": {
			fs: fstest.MapFS{
				"tasks.yaml": &fstest.MapFile{Data: []byte(`tasks: [{name: a, kind: bounded, total: 1}, {name: a, kind: bounded, total: 2}]`)},
			},
			path:   "tasks.yaml",
			expErr: true,
			errMsg: `duplicated name "a"`,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)
			require := require.New(t)

			repo := storageio.NewTaskSetRepository(test.fs)
			specs, err := repo.GetTaskSet(context.Background(), test.path)

			if test.expErr {
				require.Error(err)
				assert.Contains(err.Error(), test.errMsg)
				return
			}
			require.NoError(err)
			assert.Equal(test.expSpecs, specs)
		})
	}
}

func TestTaskSetRepositoryValidationErrorsAreNotValid(t *testing.T) {
	repo := storageio.NewTaskSetRepository(fstest.MapFS{
		"tasks.yaml": &fstest.MapFile{Data: []byte(`tasks: [{name: a, kind: other}]`)},
	})

	_, err := repo.GetTaskSet(context.Background(), "tasks.yaml")
	assert.True(t, errors.Is(err, model.ErrNotValid))
}

func TestDefaultTaskSet(t *testing.T) {
	specs := storageio.DefaultTaskSet()

	require.Len(t, specs, 3)
	for _, s := range specs {
		assert.NoError(t, s.Validate())
	}
	assert.Equal(t, int64(100), specs[0].Total)
	assert.Equal(t, model.TaskKindUnbounded, specs[1].Kind)
	assert.Equal(t, 5*time.Second, specs[1].Duration)
	assert.Equal(t, int64(75), specs[2].Total)
}
