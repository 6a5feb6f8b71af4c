package printer_test

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slok/prun/internal/model"
	"github.com/slok/prun/internal/printer"
)

func runFixture() model.RunSummary {
	startedAt := time.Date(2026, 1, 30, 10, 0, 0, 0, time.UTC)
	return model.RunSummary{
		ID:        "01JH0000000000000000000000",
		StartedAt: startedAt,
		EndedAt:   startedAt.Add(5250 * time.Millisecond),
		Results: []model.TaskResult{
			{
				ID: "t0", Index: 0, Name: "Task 1", Kind: model.TaskKindBounded,
				Status: model.TaskStatusFinished, Outcome: model.TaskOutcomeFinished,
				Position: 1500, Total: 1500, Message: "Task 1 finished",
				StartedAt: startedAt, EndedAt: startedAt.Add(5 * time.Second),
			},
			{
				ID: "t1", Index: 1, Name: "Task 2", Kind: model.TaskKindUnbounded,
				Status: model.TaskStatusFailed, Outcome: model.TaskOutcomeFailed, Reason: "network error",
				Message:   "Task 2 failed: network error",
				StartedAt: startedAt, EndedAt: startedAt.Add(time.Second),
			},
			{
				ID: "t2", Index: 2, Name: "Task 3", Kind: model.TaskKindBounded,
				Status: model.TaskStatusFinished, Outcome: model.TaskOutcomeCancelled,
				Position: 30, Total: 75, Message: "Task 3 cancelled",
				StartedAt: startedAt, EndedAt: startedAt.Add(2 * time.Second),
			},
		},
	}
}

func TestTablePrinterPrintSummary(t *testing.T) {
	var buf bytes.Buffer
	p := printer.NewPlainTablePrinter(&buf)

	err := p.PrintSummary(runFixture())
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "Run:        01JH0000000000000000000000")
	assert.Contains(t, out, "Started:    2026-01-30 10:00:00 UTC")
	assert.Contains(t, out, "Duration:   5.25s")
	assert.Contains(t, out, "Tasks:      3 (1 finished, 1 failed, 1 cancelled)")
	assert.Contains(t, out, "1,500/1,500")
	assert.Contains(t, out, "30/75")
	assert.NotContains(t, out, "\x1b[")

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 9)
	assert.True(t, strings.HasPrefix(lines[5], "#"))
	assert.True(t, strings.HasSuffix(lines[6], "finished"))
	assert.True(t, strings.HasSuffix(lines[7], "failed"))
	assert.True(t, strings.HasSuffix(lines[8], "cancelled"))
}

func TestTablePrinterPrintSummaryWithoutTasks(t *testing.T) {
	var buf bytes.Buffer
	p := printer.NewPlainTablePrinter(&buf)

	run := runFixture()
	run.Results = nil
	require.NoError(t, p.PrintSummary(run))

	out := buf.String()
	assert.Contains(t, out, "Tasks:      0 (0 finished, 0 failed, 0 cancelled)")
	assert.NotContains(t, out, "TASK")
}

func TestTablePrinterPrintRuns(t *testing.T) {
	var buf bytes.Buffer
	p := printer.NewPlainTablePrinter(&buf)

	require.NoError(t, p.PrintRuns([]model.RunSummary{runFixture()}))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, []string{"ID", "STARTED", "DURATION", "TASKS", "FINISHED", "FAILED", "CANCELLED"}, strings.Fields(lines[0]))
	fields := strings.Fields(lines[1])
	assert.Equal(t, "01JH0000000000000000000000", fields[0])
	assert.Equal(t, []string{"5.25s", "3", "1", "1", "1"}, fields[len(fields)-5:])
}

func TestTablePrinterPrintRunsEmpty(t *testing.T) {
	var buf bytes.Buffer
	p := printer.NewTablePrinter(&buf)

	require.NoError(t, p.PrintRuns(nil))
	assert.Empty(t, buf.String())
}

func TestTablePrinterPrintMessage(t *testing.T) {
	var buf bytes.Buffer
	p := printer.NewTablePrinter(&buf)

	err := p.PrintMessage("ok")
	require.NoError(t, err)
	assert.Equal(t, "ok", strings.TrimSpace(buf.String()))
}

func TestJSONPrinterPrintSummary(t *testing.T) {
	var buf bytes.Buffer
	p := printer.NewJSONPrinter(&buf)

	err := p.PrintSummary(runFixture())
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, "01JH0000000000000000000000", got["id"])
	assert.Equal(t, float64(5250), got["duration_ms"])
	assert.Equal(t, float64(1), got["failed"])

	tasks := got["tasks"].([]any)
	require.Len(t, tasks, 3)
	task := tasks[1].(map[string]any)
	assert.Equal(t, "Task 2", task["name"])
	assert.Equal(t, "failed", task["outcome"])
	assert.Equal(t, "network error", task["reason"])
}

func TestJSONPrinterPrintRuns(t *testing.T) {
	var buf bytes.Buffer
	p := printer.NewJSONPrinter(&buf)

	require.NoError(t, p.PrintRuns([]model.RunSummary{runFixture()}))

	out := buf.String()
	assert.Contains(t, out, `"id": "01JH0000000000000000000000"`)
	assert.Contains(t, out, `"cancelled": 1`)
	assert.NotContains(t, out, `"tasks"`)
}

func TestJSONPrinterPrintMessage(t *testing.T) {
	var buf bytes.Buffer
	p := printer.NewJSONPrinter(&buf)

	require.NoError(t, p.PrintMessage("ok"))
	assert.JSONEq(t, `{"message": "ok"}`, buf.String())
}
