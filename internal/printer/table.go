package printer

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/slok/mlprobe/internal/model"
)

// TablePrinter prints task runs information in a table format.
type TablePrinter struct {
	writer io.Writer
}

// NewTablePrinter creates a new table printer.
func NewTablePrinter(w io.Writer) *TablePrinter {
	return &TablePrinter{writer: w}
}

// PrintResults prints the task results of a run.
func (t *TablePrinter) PrintResults(outcome model.Outcome, results []model.TaskResult) error {
	fmt.Fprintf(t.writer, "Outcome: %s\n", outcome)
	if len(results) == 0 {
		return nil
	}

	return writeResults(t.writer, results)
}

// PrintErrors prints the errors of a rejected run request.
func (t *TablePrinter) PrintErrors(outcome model.Outcome, errs []string) error {
	fmt.Fprintf(t.writer, "Outcome: %s\n", outcome)
	for _, e := range errs {
		fmt.Fprintf(t.writer, "Error:   %s\n", e)
	}

	return nil
}

// PrintRuns prints the run history in a table format.
func (t *TablePrinter) PrintRuns(runs []model.Run) error {
	if len(runs) == 0 {
		return nil
	}

	tw := tabwriter.NewWriter(t.writer, 0, 0, 2, ' ', 0)
	defer tw.Flush()

	fmt.Fprintln(tw, "ID\tTASK\tOUTCOME\tLOADED\tFAILED\tSTARTED")
	for _, r := range runs {
		failed := 0
		for _, res := range r.Results {
			if res.Failed() {
				failed++
			}
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%s\n",
			r.ID,
			r.TaskName,
			r.Outcome,
			len(r.Results)-failed,
			failed,
			TimeAgo(r.StartedAt),
		)
	}

	return nil
}

// PrintExports prints the exported results of each requester.
func (t *TablePrinter) PrintExports(exports []model.Export) error {
	for i, e := range exports {
		if i > 0 {
			fmt.Fprintln(t.writer)
		}

		if e.TaskName != "" {
			fmt.Fprintf(t.writer, "Task:      %s\n", e.TaskName)
		}
		fmt.Fprintf(t.writer, "Requester: %s\n", e.RequesterID)

		results, err := e.Results()
		if err != nil {
			fmt.Fprintf(t.writer, "Export:    %s\n", e.Value)
			continue
		}

		if err := writeResults(t.writer, results); err != nil {
			return err
		}
	}

	return nil
}

// PrintOptions prints resolved engine options in a table format.
func (t *TablePrinter) PrintOptions(opts []model.EngineOptions) error {
	if len(opts) == 0 {
		return nil
	}

	tw := tabwriter.NewWriter(t.writer, 0, 0, 2, ' ', 0)
	defer tw.Flush()

	fmt.Fprintln(tw, "TASK\tMODEL\tHUB\tREVISION\tDTYPE")
	for _, o := range opts {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			o.TaskName,
			orDash(o.ModelID),
			orDash(o.ModelHub),
			o.ModelRevision,
			orDash(o.DType),
		)
	}

	return nil
}

// PrintProgress prints a progress event as a log line.
func (t *TablePrinter) PrintProgress(ev model.ProgressEvent) error {
	if ev.Status != model.ProgressStatusNone {
		fmt.Fprintf(t.writer, "[%s] %s\n", ev.Status, ev.Progress)
		return nil
	}

	fmt.Fprintf(t.writer, "> %s\n", ev.Progress)
	return nil
}

// PrintMessage prints a simple text message.
func (t *TablePrinter) PrintMessage(msg string) error {
	fmt.Fprintln(t.writer, msg)
	return nil
}

func writeResults(w io.Writer, results []model.TaskResult) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	fmt.Fprintln(tw, "TASK\tLOADED\tTOOK\tERROR")
	for _, r := range results {
		if r.Failed() {
			fmt.Fprintf(tw, "%s\tno\t-\t%s\n", r.Name, r.Error)
			continue
		}
		fmt.Fprintf(tw, "%s\tyes\t%s\t-\n", r.Name, FormatMillis(*r.Took))
	}

	return tw.Flush()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
