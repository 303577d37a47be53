package runlist

import (
	"context"
	"fmt"

	"github.com/slok/mlprobe/internal/log"
	"github.com/slok/mlprobe/internal/model"
	"github.com/slok/mlprobe/internal/storage"
)

// ServiceConfig is the configuration for the run list service.
type ServiceConfig struct {
	Repository storage.RunRepository
	Logger     log.Logger
}

func (c *ServiceConfig) defaults() error {
	if c.Repository == nil {
		return fmt.Errorf("repository is required")
	}

	if c.Logger == nil {
		c.Logger = log.Noop
	}

	return nil
}

// Service lists the recorded orchestration runs.
type Service struct {
	repo   storage.RunRepository
	logger log.Logger
}

// NewService creates a new run list service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Service{
		repo:   cfg.Repository,
		logger: cfg.Logger,
	}, nil
}

// Request represents the run list request parameters.
type Request struct {
	// TaskFilter is an optional filter to only show runs of this task.
	TaskFilter string
	// OutcomeFilter is an optional filter to only show runs with this outcome.
	OutcomeFilter *model.Outcome
	// Limit is the maximum number of runs returned, 0 means no limit.
	Limit int
}

// Run lists the runs, most recent first.
func (s *Service) Run(ctx context.Context, req Request) ([]model.Run, error) {
	if req.Limit < 0 {
		return nil, fmt.Errorf("limit can't be negative: %w", model.ErrNotValid)
	}

	runs, err := s.repo.ListRuns(ctx)
	if err != nil {
		return nil, fmt.Errorf("could not list runs: %w", err)
	}

	filtered := make([]model.Run, 0, len(runs))
	for _, r := range runs {
		if req.TaskFilter != "" && r.TaskName != req.TaskFilter {
			continue
		}
		if req.OutcomeFilter != nil && r.Outcome != *req.OutcomeFilter {
			continue
		}
		filtered = append(filtered, r)
	}

	if req.Limit > 0 && len(filtered) > req.Limit {
		filtered = filtered[:req.Limit]
	}

	s.logger.Debugf("found %d runs", len(filtered))
	return filtered, nil
}
