package lib

import (
	"errors"
	"time"

	"github.com/slok/mlprobe/internal/model"
	"github.com/slok/mlprobe/internal/requester"
)

// EngineType identifies the engine host implementation.
type EngineType string

const (
	// EngineDocker loads the task engines in inference runtime containers.
	EngineDocker EngineType = "docker"

	// EngineFake uses an in-memory engine host (no real model loads).
	EngineFake EngineType = "fake"
)

// Outcome is the tag of a finished run.
type Outcome string

const (
	OutcomeSuccess Outcome = Outcome(model.OutcomeSuccess)
	OutcomeError   Outcome = Outcome(model.OutcomeError)
)

// LoadMode selects how the task engines of a run are loaded.
type LoadMode string

const (
	// LoadModeSequential loads the task engines one after the other.
	LoadModeSequential LoadMode = "sequential"
	// LoadModeConcurrent loads the task engines at the same time.
	LoadModeConcurrent LoadMode = "concurrent"
)

var (
	// ErrNotFound is returned when a resource is not found.
	ErrNotFound = errors.New("not found")
	// ErrNotValid is returned when the input is not valid.
	ErrNotValid = errors.New("not valid")
	// ErrAlreadyRunning is returned when the worker is busy with another run.
	ErrAlreadyRunning = errors.New("already running")
)

// TaskResult is the outcome of one attempted task engine load.
type TaskResult struct {
	Name string
	// Took is the load time, zero when the load failed.
	Took time.Duration
	// Error is the load failure message, empty on success.
	Error string
}

// Failed returns true when the task engine could not be loaded.
func (t TaskResult) Failed() bool { return t.Error != "" }

// Report is the result of a worker run.
type Report struct {
	TaskName string
	Outcome  Outcome
	// Progress are the progress messages posted during the run, in order.
	Progress []string
	// Results are set when the run finished with per task results.
	Results []TaskResult
	// Errors are set when the run finished with an orchestration error.
	Errors []string
}

// Run is a finished run kept in the run history.
type Run struct {
	ID         string
	TaskName   string
	Outcome    Outcome
	Results    []TaskResult
	StartedAt  time.Time
	FinishedAt time.Time
}

// Export is what a harness worker exported under its requester identity.
type Export struct {
	TaskName    string
	RequesterID string
	// Value is the raw exported value.
	Value string
	// Results are the decoded results, nil when the value is a failure message.
	Results []TaskResult
}

func fromInternalResults(rs []model.TaskResult) []TaskResult {
	if rs == nil {
		return nil
	}

	res := make([]TaskResult, 0, len(rs))
	for _, r := range rs {
		tr := TaskResult{Name: r.Name, Error: r.Error}
		if r.Took != nil {
			tr.Took = time.Duration(*r.Took * float64(time.Millisecond))
		}
		res = append(res, tr)
	}

	return res
}

func fromInternalReport(r requester.Report) Report {
	rep := Report{
		TaskName: r.TaskName,
		Outcome:  Outcome(r.Envelope.What),
		Results:  fromInternalResults(r.Results),
		Errors:   r.Errors,
	}
	for _, ev := range r.Progress {
		rep.Progress = append(rep.Progress, ev.Progress)
	}

	return rep
}

func fromInternalRun(r model.Run) Run {
	return Run{
		ID:         r.ID,
		TaskName:   r.TaskName,
		Outcome:    Outcome(r.Outcome),
		Results:    fromInternalResults(r.Results),
		StartedAt:  r.StartedAt,
		FinishedAt: r.FinishedAt,
	}
}

func fromInternalExport(e model.Export) Export {
	exp := Export{
		TaskName:    e.TaskName,
		RequesterID: e.RequesterID,
		Value:       e.Value,
	}
	if rs, err := e.Results(); err == nil {
		exp.Results = fromInternalResults(rs)
	}

	return exp
}

func mapError(err error) error {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, model.ErrNotFound):
		return joinErrors(err, ErrNotFound)
	case errors.Is(err, model.ErrNotValid):
		return joinErrors(err, ErrNotValid)
	case errors.Is(err, model.ErrAlreadyRunning):
		return joinErrors(err, ErrAlreadyRunning)
	default:
		return err
	}
}

func joinErrors(original, sentinel error) error {
	return &mappedError{original: original, sentinel: sentinel}
}

type mappedError struct {
	original error
	sentinel error
}

func (e *mappedError) Error() string { return e.original.Error() }

func (e *mappedError) Is(target error) bool {
	return target == e.sentinel
}

func (e *mappedError) Unwrap() error { return e.original }
