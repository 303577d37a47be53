package run

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/slok/mlprobe/internal/channel"
	"github.com/slok/mlprobe/internal/log"
	"github.com/slok/mlprobe/internal/model"
	"github.com/slok/mlprobe/internal/orchestrator"
	"github.com/slok/mlprobe/internal/requester"
)

// Worker serves the run requests received on a port.
type Worker interface {
	Serve(ctx context.Context, port channel.Port) error
}

// Requester requests a task run on a port and follows it until the end.
type Requester interface {
	Run(ctx context.Context, port channel.Port, taskName string) (*requester.Report, error)
}

// ServiceConfig is the configuration for the run service.
type ServiceConfig struct {
	Worker    Worker
	Requester Requester
	Logger    log.Logger
}

func (c *ServiceConfig) defaults() error {
	if c.Worker == nil {
		return fmt.Errorf("worker is required")
	}

	if c.Requester == nil {
		return fmt.Errorf("requester is required")
	}

	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "app.Run"})

	return nil
}

// Service runs one task through an in-process requester and worker pair.
type Service struct {
	worker    Worker
	requester Requester
	logger    log.Logger
}

// NewService creates a new run service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Service{
		worker:    cfg.Worker,
		requester: cfg.Requester,
		logger:    cfg.Logger,
	}, nil
}

// Request represents the run request parameters.
type Request struct {
	TaskName string
}

// Run requests the task run and returns what the requester observed.
func (s *Service) Run(ctx context.Context, req Request) (*requester.Report, error) {
	if req.TaskName == "" {
		return nil, fmt.Errorf("task name is required: %w", model.ErrNotValid)
	}

	requesterPort, workerPort := channel.NewPipe(orchestrator.PortName(req.TaskName))
	logger := s.logger.WithValues(log.Kv{"task": req.TaskName})

	var report *requester.Report
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := s.worker.Serve(gctx, workerPort); err != nil {
			return fmt.Errorf("could not serve channel: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		// Closing the requester side ends the worker serving loop.
		defer requesterPort.Close()

		r, err := s.requester.Run(gctx, requesterPort, req.TaskName)
		if err != nil {
			return fmt.Errorf("could not run task: %w", err)
		}
		report = r
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	logger.Infof("Task run finished: %s", report.Envelope.What)
	return report, nil
}
