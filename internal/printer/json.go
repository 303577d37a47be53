package printer

import (
	"encoding/json"
	"io"
	"time"

	"github.com/slok/mlprobe/internal/model"
)

// JSONPrinter prints task runs information in JSON format.
type JSONPrinter struct {
	writer io.Writer
}

// NewJSONPrinter creates a new JSON printer.
func NewJSONPrinter(w io.Writer) *JSONPrinter {
	return &JSONPrinter{writer: w}
}

// resultsOutput represents the outcome of a run.
type resultsOutput struct {
	What    model.Outcome      `json:"what"`
	Results []model.TaskResult `json:"results,omitempty"`
	Errors  []string           `json:"errors,omitempty"`
}

// runItem represents a run in the history output.
type runItem struct {
	ID         string             `json:"id"`
	TaskName   string             `json:"task_name"`
	Outcome    model.Outcome      `json:"outcome"`
	Results    []model.TaskResult `json:"results"`
	StartedAt  time.Time          `json:"started_at"`
	FinishedAt time.Time          `json:"finished_at"`
}

// exportItem represents the export of a requester.
type exportItem struct {
	TaskName    string             `json:"task_name,omitempty"`
	RequesterID string             `json:"requester_id"`
	Results     []model.TaskResult `json:"results,omitempty"`
	Raw         string             `json:"raw,omitempty"`
}

// progressOutput represents a progress event line.
type progressOutput struct {
	Progress string               `json:"progress"`
	Status   model.ProgressStatus `json:"status,omitempty"`
}

// messageOutput represents a simple message output.
type messageOutput struct {
	Message string `json:"message"`
}

// PrintResults prints the task results of a run in JSON format.
func (j *JSONPrinter) PrintResults(outcome model.Outcome, results []model.TaskResult) error {
	if results == nil {
		results = []model.TaskResult{}
	}
	return j.encode(resultsOutput{What: outcome, Results: results})
}

// PrintErrors prints the errors of a rejected run request in JSON format.
func (j *JSONPrinter) PrintErrors(outcome model.Outcome, errs []string) error {
	return j.encode(resultsOutput{What: outcome, Errors: errs})
}

// PrintRuns prints the run history in JSON format.
func (j *JSONPrinter) PrintRuns(runs []model.Run) error {
	items := make([]runItem, len(runs))
	for i, r := range runs {
		items[i] = runItem{
			ID:         r.ID,
			TaskName:   r.TaskName,
			Outcome:    r.Outcome,
			Results:    r.Results,
			StartedAt:  r.StartedAt.UTC(),
			FinishedAt: r.FinishedAt.UTC(),
		}
	}

	return j.encode(items)
}

// PrintExports prints the exported results of each requester in JSON format.
// Exports that are not a results list are printed raw.
func (j *JSONPrinter) PrintExports(exports []model.Export) error {
	items := make([]exportItem, len(exports))
	for i, e := range exports {
		items[i] = exportItem{TaskName: e.TaskName, RequesterID: e.RequesterID}
		if results, err := e.Results(); err == nil {
			items[i].Results = results
		} else {
			items[i].Raw = e.Value
		}
	}

	return j.encode(items)
}

// PrintOptions prints resolved engine options in JSON format.
func (j *JSONPrinter) PrintOptions(opts []model.EngineOptions) error {
	if opts == nil {
		opts = []model.EngineOptions{}
	}
	return j.encode(opts)
}

// PrintProgress prints a progress event as a single JSON line.
func (j *JSONPrinter) PrintProgress(ev model.ProgressEvent) error {
	return json.NewEncoder(j.writer).Encode(progressOutput{Progress: ev.Progress, Status: ev.Status})
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
