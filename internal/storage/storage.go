package storage

import (
	"context"

	"github.com/slok/mlprobe/internal/model"
)

// RunRepository is the interface for the orchestration run history.
type RunRepository interface {
	CreateRun(ctx context.Context, r model.Run) error
	GetRun(ctx context.Context, id string) (*model.Run, error)
	// ListRuns returns the runs, most recent first.
	ListRuns(ctx context.Context) ([]model.Run, error)
}

// ExportStore is a key-value storage scoped by origin, the target of the result export side-channel.
type ExportStore interface {
	SetItem(ctx context.Context, origin, key, value string) error
	// GetItem returns model.ErrNotFound when the key is missing.
	GetItem(ctx context.Context, origin, key string) (string, error)
}
