package io

import (
	"bytes"
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/slok/prun/internal/model"
)

// DefaultTaskSet returns the task set used when no task set file is provided.
func DefaultTaskSet() []model.TaskSpec {
	return []model.TaskSpec{
		{Name: "Task 1", Kind: model.TaskKindBounded, Total: 100},
		{Name: "Task 2", Kind: model.TaskKindUnbounded, Duration: 5 * time.Second},
		{Name: "Task 3", Kind: model.TaskKindBounded, Total: 75},
	}
}

// TaskSetRepository loads task sets from YAML or TOML files, the format is selected by the
// file extension.
type TaskSetRepository struct {
	fs fs.FS
}

// NewTaskSetRepository creates a new task set repository.
func NewTaskSetRepository(filesystem fs.FS) *TaskSetRepository {
	return &TaskSetRepository{fs: filesystem}
}

// GetTaskSet loads a task set file and returns the validated task specs in file order.
func (r *TaskSetRepository) GetTaskSet(ctx context.Context, path string) ([]model.TaskSpec, error) {
	data, err := fs.ReadFile(r.fs, path)
	if err != nil {
		return nil, fmt.Errorf("reading task set file: %w", err)
	}

	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	var ts TaskSet
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &ts); err != nil {
			return nil, fmt.Errorf("parsing YAML: %w", err)
		}
	case ".toml":
		if _, err := toml.NewDecoder(bytes.NewReader(data)).Decode(&ts); err != nil {
			return nil, fmt.Errorf("parsing TOML: %w", err)
		}
	default:
		return nil, fmt.Errorf("unknown task set format %q: %w", ext, model.ErrNotValid)
	}

	specs, err := ts.toModel()
	if err != nil {
		return nil, fmt.Errorf("invalid task set: %w", err)
	}

	return specs, nil
}

// TaskSet represents the file structure of a task set.
type TaskSet struct {
	Tasks []TaskConfig `yaml:"tasks" toml:"tasks"`
}

// TaskConfig represents the file structure of a single task. Durations use Go duration
// format (e.g. `1.5s`, `200ms`).
type TaskConfig struct {
	Name        string `yaml:"name" toml:"name"`
	Kind        string `yaml:"kind" toml:"kind"`
	Total       int64  `yaml:"total" toml:"total"`
	Duration    string `yaml:"duration" toml:"duration"`
	Step        string `yaml:"step" toml:"step"`
	FailAfter   string `yaml:"fail_after" toml:"fail_after"`
	FailReason  string `yaml:"fail_reason" toml:"fail_reason"`
	CancelAfter string `yaml:"cancel_after" toml:"cancel_after"`
}

func (t TaskSet) toModel() ([]model.TaskSpec, error) {
	if len(t.Tasks) == 0 {
		return nil, fmt.Errorf("at least one task is required: %w", model.ErrNotValid)
	}

	names := map[string]struct{}{}
	specs := make([]model.TaskSpec, 0, len(t.Tasks))
	for i, tc := range t.Tasks {
		spec, err := tc.toModel()
		if err != nil {
			return nil, fmt.Errorf("task %d: %w", i, err)
		}

		if _, ok := names[spec.Name]; ok {
			return nil, fmt.Errorf("task %d: duplicated name %q: %w", i, spec.Name, model.ErrNotValid)
		}
		names[spec.Name] = struct{}{}

		specs = append(specs, spec)
	}

	return specs, nil
}

func (t TaskConfig) toModel() (model.TaskSpec, error) {
	spec := model.TaskSpec{
		Name:       t.Name,
		Kind:       model.TaskKind(t.Kind),
		Total:      t.Total,
		FailReason: t.FailReason,
	}

	durations := []struct {
		field string
		value string
		dst   *time.Duration
	}{
		{field: "duration", value: t.Duration, dst: &spec.Duration},
		{field: "step", value: t.Step, dst: &spec.Step},
		{field: "fail_after", value: t.FailAfter, dst: &spec.FailAfter},
		{field: "cancel_after", value: t.CancelAfter, dst: &spec.CancelAfter},
	}
	for _, d := range durations {
		if d.value == "" {
			continue
		}
		v, err := time.ParseDuration(d.value)
		if err != nil {
			return model.TaskSpec{}, fmt.Errorf("invalid %s %q: %w", d.field, d.value, model.ErrNotValid)
		}
		*d.dst = v
	}

	if err := spec.Validate(); err != nil {
		return model.TaskSpec{}, err
	}

	return spec, nil
}
