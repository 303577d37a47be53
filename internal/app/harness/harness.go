package harness

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/slok/mlprobe/internal/channel"
	"github.com/slok/mlprobe/internal/log"
	"github.com/slok/mlprobe/internal/mlengine"
	"github.com/slok/mlprobe/internal/model"
	"github.com/slok/mlprobe/internal/orchestrator"
	"github.com/slok/mlprobe/internal/storage"
)

const (
	DefaultOrigin       = "https://www.example.org"
	DefaultTimeout      = 300 * time.Second
	DefaultPollInterval = 500 * time.Millisecond
)

// DefaultTasks are the tasks run when a request doesn't set them.
var DefaultTasks = []string{"zero-shot-object-detection", "text-generation"}

// ServiceConfig is the configuration for the harness service.
type ServiceConfig struct {
	// Engine is the engine host shared by all the workers.
	Engine        mlengine.Engine
	Resolver      orchestrator.OptionsResolver
	ExportStore   storage.ExportStore
	RunRepository storage.RunRepository
	// Origin scopes the export store area the workers write to.
	Origin string
	Tracer trace.Tracer
	// NewID returns the identity of a requester, defaults to random UUIDs.
	NewID  func() string
	Logger log.Logger
}

func (c *ServiceConfig) defaults() error {
	if c.Engine == nil {
		return fmt.Errorf("engine is required")
	}

	if c.ExportStore == nil {
		return fmt.Errorf("export store is required")
	}

	if c.Origin == "" {
		c.Origin = DefaultOrigin
	}

	if c.NewID == nil {
		c.NewID = uuid.NewString
	}

	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "app.Harness"})

	return nil
}

// Service runs a batch of tasks, each one on its own isolated worker, and collects the results
// the workers export.
type Service struct {
	engine   mlengine.Engine
	resolver orchestrator.OptionsResolver
	store    storage.ExportStore
	runRepo  storage.RunRepository
	origin   string
	tracer   trace.Tracer
	newID    func() string
	logger   log.Logger
}

// NewService creates a new harness service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Service{
		engine:   cfg.Engine,
		resolver: cfg.Resolver,
		store:    cfg.ExportStore,
		runRepo:  cfg.RunRepository,
		origin:   cfg.Origin,
		tracer:   cfg.Tracer,
		newID:    cfg.NewID,
		logger:   cfg.Logger,
	}, nil
}

// Request represents the harness request parameters.
type Request struct {
	Tasks        []string
	Timeout      time.Duration
	PollInterval time.Duration
}

func (r *Request) defaults() {
	if len(r.Tasks) == 0 {
		r.Tasks = DefaultTasks
	}
	if r.Timeout <= 0 {
		r.Timeout = DefaultTimeout
	}
	if r.PollInterval <= 0 {
		r.PollInterval = DefaultPollInterval
	}
}

type worker struct {
	taskName    string
	requesterID string
	port        channel.Port
}

// Run starts all the task workers and waits until every worker has exported its results or the
// timeout expires. The exports are returned in the requested task order.
func (s *Service) Run(ctx context.Context, req Request) ([]model.Export, error) {
	req.defaults()

	ctx, cancel := context.WithTimeout(ctx, req.Timeout)
	defer cancel()

	var wg sync.WaitGroup
	workers := make([]worker, 0, len(req.Tasks))
	defer func() {
		for _, w := range workers {
			_ = w.port.Close()
		}
		cancel()
		wg.Wait()
	}()

	for _, task := range req.Tasks {
		w, err := s.startWorker(ctx, &wg, task)
		if err != nil {
			return nil, err
		}
		workers = append(workers, *w)
	}

	exports, err := s.waitExports(ctx, workers, req.PollInterval)
	if err != nil {
		return nil, err
	}

	s.logger.Infof("All %d workers exported their results", len(exports))
	return exports, nil
}

func (s *Service) startWorker(ctx context.Context, wg *sync.WaitGroup, taskName string) (*worker, error) {
	requesterID := s.newID()
	logger := s.logger.WithValues(log.Kv{"task": taskName, "requester": requesterID})

	finalizer, err := orchestrator.NewExportFinalizer(orchestrator.ExportFinalizerConfig{
		Store:       s.store,
		Origin:      s.origin,
		RequesterID: requesterID,
		Logger:      logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create export finalizer: %w", err)
	}

	o, err := orchestrator.New(orchestrator.Config{
		Engine:        s.engine,
		Resolver:      s.resolver,
		Finalizer:     finalizer,
		RunRepository: s.runRepo,
		Tracer:        s.tracer,
		Logger:        logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create orchestrator: %w", err)
	}

	requesterPort, workerPort := channel.NewPipe(orchestrator.PortName(taskName))

	wg.Add(2)
	go func() {
		defer wg.Done()
		defer workerPort.Close()
		if err := o.Serve(ctx, workerPort); err != nil {
			logger.Errorf("Worker failed: %s", err)
		}
	}()
	go func() {
		defer wg.Done()
		for msg := range requesterPort.Messages() {
			logger.Debugf("Progress: %s", msg.Progress)
		}
	}()

	req := model.TaskRequest{Action: model.ActionRunAsyncTask, TaskName: taskName}
	if err := requesterPort.Post(ctx, model.NewRequestMessage(req)); err != nil {
		_ = requesterPort.Close()
		return nil, fmt.Errorf("could not request %s run: %w", taskName, err)
	}
	logger.Infof("Worker started")

	return &worker{taskName: taskName, requesterID: requesterID, port: requesterPort}, nil
}

func (s *Service) waitExports(ctx context.Context, workers []worker, interval time.Duration) ([]model.Export, error) {
	found := map[string]string{}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		for _, w := range workers {
			if _, ok := found[w.requesterID]; ok {
				continue
			}

			value, err := s.store.GetItem(ctx, s.origin, w.requesterID)
			if err != nil {
				if errors.Is(err, model.ErrNotFound) {
					continue
				}
				if ctx.Err() != nil {
					break
				}
				return nil, fmt.Errorf("could not get %s export: %w", w.taskName, err)
			}

			s.logger.Debugf("Got export of %s", w.taskName)
			found[w.requesterID] = value
		}

		if len(found) == len(workers) {
			break
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("could not wait for exports (%d/%d ready): %w", len(found), len(workers), ctx.Err())
		case <-ticker.C:
		}
	}

	exports := make([]model.Export, 0, len(workers))
	for _, w := range workers {
		exports = append(exports, model.Export{TaskName: w.taskName, RequesterID: w.requesterID, Value: found[w.requesterID]})
	}

	return exports, nil
}
