package model

import (
	"encoding/json"
	"fmt"
)

// ActionRunAsyncTask is the only request action the worker understands.
const ActionRunAsyncTask = "runAsyncTask"

// DefaultModelRevision is the model revision used when a task has no override.
const DefaultModelRevision = "main"

// TaskRequest asks the worker to run a named task.
type TaskRequest struct {
	Action   string
	TaskName string
}

// Validate checks the request is something the worker can run.
func (r TaskRequest) Validate() error {
	if r.Action != ActionRunAsyncTask {
		return fmt.Errorf("unknown action %q: %w", r.Action, ErrNotValid)
	}

	if r.TaskName == "" {
		return fmt.Errorf("task name is required: %w", ErrNotValid)
	}

	return nil
}

// EngineOptions are the options required to instantiate the inference engine of a task.
type EngineOptions struct {
	TaskName      string `json:"taskName" yaml:"taskName"`
	ModelID       string `json:"modelId,omitempty" yaml:"modelId,omitempty"`
	ModelHub      string `json:"modelHub,omitempty" yaml:"modelHub,omitempty"`
	ModelRevision string `json:"modelRevision" yaml:"modelRevision"`
	DType         string `json:"dtype,omitempty" yaml:"dtype,omitempty"`
}

// TaskResult is the outcome of one attempted task. Took and Error are mutually exclusive.
type TaskResult struct {
	Name string `json:"name"`
	// Took is the elapsed load time in milliseconds.
	Took  *float64 `json:"took,omitempty"`
	Error string   `json:"error,omitempty"`
}

// Failed returns true when the task could not be loaded.
func (t TaskResult) Failed() bool { return t.Took == nil }

// NewTookResult returns a successful task result.
func NewTookResult(name string, tookMS float64) TaskResult {
	return TaskResult{Name: name, Took: &tookMS}
}

// NewErrorResult returns a failed task result.
func NewErrorResult(name string, err error) TaskResult {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	return TaskResult{Name: name, Error: msg}
}

// Outcome is the tag of a finished orchestration run.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeError   Outcome = "error"
)

// CompletionEnvelope is the terminal report of a run.
type CompletionEnvelope struct {
	What Outcome `json:"what"`
	// Data is a JSON serialized array.
	Data string `json:"data"`
}

// NewCompletionEnvelope serializes data into a completion envelope.
func NewCompletionEnvelope(what Outcome, data any) (CompletionEnvelope, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return CompletionEnvelope{}, fmt.Errorf("could not serialize completion data: %w", err)
	}

	return CompletionEnvelope{What: what, Data: string(raw)}, nil
}

// DecodeResults decodes the envelope data as task results.
func (c CompletionEnvelope) DecodeResults() ([]TaskResult, error) {
	var results []TaskResult
	if err := json.Unmarshal([]byte(c.Data), &results); err != nil {
		return nil, fmt.Errorf("could not decode results: %w", err)
	}

	return results, nil
}

// EngineProgress is a free-form progress payload emitted by the engine host.
type EngineProgress struct {
	TaskName string `json:"taskName,omitempty"`
	Status   string `json:"status"`
	Message  string `json:"message,omitempty"`
	Current  int64  `json:"current,omitempty"`
	Total    int64  `json:"total,omitempty"`
}

// Export is the raw value a worker exported under its requester identity. It's the serialized
// results, or the failure message when the results could not be written.
type Export struct {
	TaskName    string
	RequesterID string
	Value       string
}

// Results decodes the exported value as task results.
func (e Export) Results() ([]TaskResult, error) {
	return CompletionEnvelope{Data: e.Value}.DecodeResults()
}
