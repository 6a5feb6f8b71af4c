package printer

import (
	"encoding/json"
	"io"
	"time"

	"github.com/slok/prun/internal/model"
)

// JSONPrinter prints run information in JSON format.
type JSONPrinter struct {
	writer io.Writer
}

// NewJSONPrinter creates a new JSON printer.
func NewJSONPrinter(w io.Writer) *JSONPrinter {
	return &JSONPrinter{writer: w}
}

// runOutput represents a run with its task results.
type runOutput struct {
	ID         string       `json:"id"`
	StartedAt  time.Time    `json:"started_at"`
	EndedAt    time.Time    `json:"ended_at"`
	DurationMS int64        `json:"duration_ms"`
	Finished   int          `json:"finished"`
	Failed     int          `json:"failed"`
	Cancelled  int          `json:"cancelled"`
	Tasks      []taskOutput `json:"tasks,omitempty"`
}

// taskOutput represents a task result.
type taskOutput struct {
	ID        string    `json:"id"`
	Index     int       `json:"index"`
	Name      string    `json:"name"`
	Kind      string    `json:"kind"`
	Status    string    `json:"status"`
	Outcome   string    `json:"outcome"`
	Reason    string    `json:"reason,omitempty"`
	Position  int64     `json:"position"`
	Total     int64     `json:"total,omitempty"`
	Message   string    `json:"message"`
	StartedAt time.Time `json:"started_at"`
	EndedAt   time.Time `json:"ended_at"`
}

// messageOutput represents a simple message output.
type messageOutput struct {
	Message string `json:"message"`
}

// PrintSummary prints a run with all its task results in JSON format.
func (j *JSONPrinter) PrintSummary(run model.RunSummary) error {
	return j.encode(toRunOutput(run, true))
}

// PrintRuns prints the run history in JSON format without the task results.
func (j *JSONPrinter) PrintRuns(runs []model.RunSummary) error {
	items := make([]runOutput, len(runs))
	for i, r := range runs {
		items[i] = toRunOutput(r, false)
	}

	return j.encode(items)
}

// PrintMessage prints a simple message in JSON format.
func (j *JSONPrinter) PrintMessage(msg string) error {
	return j.encode(messageOutput{Message: msg})
}

func (j *JSONPrinter) encode(v any) error {
	enc := json.NewEncoder(j.writer)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func toRunOutput(r model.RunSummary, withTasks bool) runOutput {
	out := runOutput{
		ID:         r.ID,
		StartedAt:  r.StartedAt.UTC(),
		EndedAt:    r.EndedAt.UTC(),
		DurationMS: r.Duration().Milliseconds(),
		Finished:   r.Count(model.TaskOutcomeFinished),
		Failed:     r.Count(model.TaskOutcomeFailed),
		Cancelled:  r.Count(model.TaskOutcomeCancelled),
	}

	if !withTasks {
		return out
	}

	out.Tasks = make([]taskOutput, len(r.Results))
	for i, t := range r.Results {
		out.Tasks[i] = taskOutput{
			ID:        t.ID,
			Index:     t.Index,
			Name:      t.Name,
			Kind:      string(t.Kind),
			Status:    string(t.Status),
			Outcome:   string(t.Outcome),
			Reason:    t.Reason,
			Position:  t.Position,
			Total:     t.Total,
			Message:   t.Message,
			StartedAt: t.StartedAt.UTC(),
			EndedAt:   t.EndedAt.UTC(),
		}
	}

	return out
}
