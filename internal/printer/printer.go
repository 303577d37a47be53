package printer

import "github.com/slok/mlprobe/internal/model"

// Printer knows how to print task runs information in different formats.
type Printer interface {
	PrintResults(outcome model.Outcome, results []model.TaskResult) error
	PrintErrors(outcome model.Outcome, errs []string) error
	PrintRuns(runs []model.Run) error
	PrintExports(exports []model.Export) error
	PrintOptions(opts []model.EngineOptions) error
	PrintProgress(ev model.ProgressEvent) error
	PrintMessage(msg string) error
}
