package model

import "time"

// Run is a finished orchestration run kept in the run history.
type Run struct {
	ID         string
	TaskName   string
	Outcome    Outcome
	Results    []TaskResult
	StartedAt  time.Time
	FinishedAt time.Time
}
