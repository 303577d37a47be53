package memory

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/slok/mlprobe/internal/log"
	"github.com/slok/mlprobe/internal/model"
)

// RepositoryConfig is the configuration for the memory repository.
type RepositoryConfig struct {
	Logger log.Logger
}

func (c *RepositoryConfig) defaults() error {
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "storage.Memory"})
	return nil
}

type originKey struct {
	origin string
	key    string
}

// Repository is an in-memory implementation of storage.RunRepository and storage.ExportStore.
type Repository struct {
	runs   map[string]model.Run
	items  map[originKey]string
	mu     sync.RWMutex
	logger log.Logger
}

// NewRepository creates a new memory repository.
func NewRepository(cfg RepositoryConfig) (*Repository, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Repository{
		runs:   make(map[string]model.Run),
		items:  make(map[originKey]string),
		logger: cfg.Logger,
	}, nil
}

// CreateRun stores a finished run.
func (r *Repository) CreateRun(ctx context.Context, run model.Run) error {
	if run.ID == "" {
		return fmt.Errorf("run id is required: %w", model.ErrNotValid)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.runs[run.ID]; ok {
		return fmt.Errorf("run with id %s: %w", run.ID, model.ErrAlreadyExists)
	}

	run.Results = slices.Clone(run.Results)
	r.runs[run.ID] = run
	r.logger.Debugf("Created run in repository: %s", run.ID)

	return nil
}

// GetRun retrieves a run by ID.
func (r *Repository) GetRun(ctx context.Context, id string) (*model.Run, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	run, ok := r.runs[id]
	if !ok {
		return nil, fmt.Errorf("run %s: %w", id, model.ErrNotFound)
	}

	// Return a copy.
	runCopy := run
	runCopy.Results = slices.Clone(run.Results)
	return &runCopy, nil
}

// ListRuns returns all runs, most recent first.
func (r *Repository) ListRuns(ctx context.Context) ([]model.Run, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	runs := make([]model.Run, 0, len(r.runs))
	for _, run := range r.runs {
		run.Results = slices.Clone(run.Results)
		runs = append(runs, run)
	}

	slices.SortFunc(runs, func(a, b model.Run) int {
		if c := b.StartedAt.Compare(a.StartedAt); c != 0 {
			return c
		}
		// ULIDs sort by time.
		return strings.Compare(b.ID, a.ID)
	})

	return runs, nil
}

// SetItem sets the value of a key in the origin storage.
func (r *Repository) SetItem(ctx context.Context, origin, key, value string) error {
	if origin == "" || key == "" {
		return fmt.Errorf("origin and key are required: %w", model.ErrNotValid)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.items[originKey{origin: origin, key: key}] = value
	r.logger.Debugf("Set item %s on origin %s", key, origin)

	return nil
}

// GetItem gets the value of a key in the origin storage.
func (r *Repository) GetItem(ctx context.Context, origin, key string) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	v, ok := r.items[originKey{origin: origin, key: key}]
	if !ok {
		return "", fmt.Errorf("item %s on origin %s: %w", key, origin, model.ErrNotFound)
	}

	return v, nil
}
