package printer

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/muesli/termenv"

	"github.com/slok/prun/internal/model"
)

// TablePrinter prints run information in a table format.
type TablePrinter struct {
	writer   io.Writer
	outcomes map[model.TaskOutcome]lipgloss.Style
}

// NewTablePrinter creates a new table printer, outcomes are coloured only when the writer
// is a colour capable terminal.
func NewTablePrinter(w io.Writer) *TablePrinter {
	return newTablePrinter(w, lipgloss.NewRenderer(w))
}

// NewPlainTablePrinter creates a new table printer that never uses colours.
func NewPlainTablePrinter(w io.Writer) *TablePrinter {
	r := lipgloss.NewRenderer(w)
	r.SetColorProfile(termenv.Ascii)
	return newTablePrinter(w, r)
}

func newTablePrinter(w io.Writer, r *lipgloss.Renderer) *TablePrinter {
	return &TablePrinter{
		writer: w,
		outcomes: map[model.TaskOutcome]lipgloss.Style{
			model.TaskOutcomeFinished:  r.NewStyle().Foreground(lipgloss.Color("2")),
			model.TaskOutcomeFailed:    r.NewStyle().Foreground(lipgloss.Color("1")).Bold(true),
			model.TaskOutcomeCancelled: r.NewStyle().Foreground(lipgloss.Color("3")),
		},
	}
}

// PrintSummary prints a run header and its task results.
func (t *TablePrinter) PrintSummary(run model.RunSummary) error {
	fmt.Fprintf(t.writer, "Run:        %s\n", run.ID)
	fmt.Fprintf(t.writer, "Started:    %s\n", FormatTimestamp(run.StartedAt))
	fmt.Fprintf(t.writer, "Duration:   %s\n", FormatDuration(run.Duration()))
	fmt.Fprintf(t.writer, "Tasks:      %d (%d finished, %d failed, %d cancelled)\n",
		len(run.Results),
		run.Count(model.TaskOutcomeFinished),
		run.Count(model.TaskOutcomeFailed),
		run.Count(model.TaskOutcomeCancelled),
	)

	if len(run.Results) == 0 {
		return nil
	}
	fmt.Fprintln(t.writer)

	tw := tabwriter.NewWriter(t.writer, 0, 0, 2, ' ', 0)
	defer tw.Flush()

	// The outcome goes last so its colour codes don't break the alignment.
	fmt.Fprintln(tw, "#\tTASK\tKIND\tPROGRESS\tDURATION\tMESSAGE\tOUTCOME")
	for _, r := range run.Results {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t%s\n",
			r.Index,
			r.Name,
			r.Kind,
			formatProgress(r),
			FormatDuration(r.EndedAt.Sub(r.StartedAt)),
			r.Message,
			t.outcome(r.Outcome),
		)
	}

	return nil
}

// PrintRuns prints the run history in a table format.
func (t *TablePrinter) PrintRuns(runs []model.RunSummary) error {
	if len(runs) == 0 {
		return nil
	}

	tw := tabwriter.NewWriter(t.writer, 0, 0, 2, ' ', 0)
	defer tw.Flush()

	fmt.Fprintln(tw, "ID\tSTARTED\tDURATION\tTASKS\tFINISHED\tFAILED\tCANCELLED")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%d\t%d\n",
			r.ID,
			TimeAgo(r.StartedAt),
			FormatDuration(r.Duration()),
			len(r.Results),
			r.Count(model.TaskOutcomeFinished),
			r.Count(model.TaskOutcomeFailed),
			r.Count(model.TaskOutcomeCancelled),
		)
	}

	return nil
}

// PrintMessage prints a simple text message.
func (t *TablePrinter) PrintMessage(msg string) error {
	fmt.Fprintln(t.writer, msg)
	return nil
}

func (t *TablePrinter) outcome(o model.TaskOutcome) string {
	s, ok := t.outcomes[o]
	if !ok {
		return string(o)
	}
	return s.Render(string(o))
}

func formatProgress(r model.TaskResult) string {
	if r.Kind == model.TaskKindUnbounded {
		return "-"
	}
	return fmt.Sprintf("%s/%s", humanize.Comma(r.Position), humanize.Comma(r.Total))
}
