package printer

import "github.com/slok/prun/internal/model"

// Printer knows how to print run information in different formats.
type Printer interface {
	PrintSummary(run model.RunSummary) error
	PrintRuns(runs []model.RunSummary) error
	PrintMessage(msg string) error
}
