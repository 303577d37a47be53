package fake

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/slok/mlprobe/internal/log"
	"github.com/slok/mlprobe/internal/mlengine"
	"github.com/slok/mlprobe/internal/model"
)

// EngineConfig is the configuration for the fake engine host.
type EngineConfig struct {
	// Failures are the load errors returned per task name.
	Failures map[string]error
	// LoadDelay simulates the model load time.
	LoadDelay time.Duration
	// EmitProgress publishes initiate/done progress payloads on every load.
	EmitProgress bool
	// OnCreate is called before loading, a returned error fails the load.
	OnCreate func(ctx context.Context, opts model.EngineOptions) error
	Logger   log.Logger
}

func (c *EngineConfig) defaults() error {
	if c.Failures == nil {
		c.Failures = map[string]error{}
	}
	if c.LoadDelay < 0 {
		return fmt.Errorf("load delay can't be negative")
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "mlengine.Fake"})
	return nil
}

// Engine is a fake implementation of the mlengine.Engine interface.
// It simulates model loading without running any inference runtime.
type Engine struct {
	*mlengine.ProgressBroker

	cfg     EngineConfig
	engines map[string]model.EngineOptions
	calls   []string
	mu      sync.Mutex
	logger  log.Logger
}

// NewEngine creates a new fake engine host.
func NewEngine(cfg EngineConfig) (*Engine, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Engine{
		ProgressBroker: mlengine.NewProgressBroker(),
		cfg:            cfg,
		engines:        map[string]model.EngineOptions{},
		logger:         cfg.Logger,
	}, nil
}

// CreateEngine loads a fake engine for the task.
func (e *Engine) CreateEngine(ctx context.Context, opts model.EngineOptions) error {
	e.mu.Lock()
	e.calls = append(e.calls, opts.TaskName)
	_, loaded := e.engines[opts.TaskName]
	e.mu.Unlock()

	if loaded {
		e.logger.Debugf("Engine for task %s already loaded", opts.TaskName)
		return nil // Idempotent.
	}

	if e.cfg.OnCreate != nil {
		if err := e.cfg.OnCreate(ctx, opts); err != nil {
			return err
		}
	}

	e.publish(opts.TaskName, "initiate")

	if e.cfg.LoadDelay > 0 {
		select {
		case <-time.After(e.cfg.LoadDelay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	if err := e.cfg.Failures[opts.TaskName]; err != nil {
		e.logger.Warningf("Could not load fake engine for task %s: %s", opts.TaskName, err)
		return err
	}

	e.mu.Lock()
	e.engines[opts.TaskName] = opts
	e.mu.Unlock()

	e.publish(opts.TaskName, "done")
	e.logger.Infof("Loaded fake engine for task %s (model: %q, revision: %s)", opts.TaskName, opts.ModelID, opts.ModelRevision)

	return nil
}

// Loaded returns the options of the loaded engine of a task.
func (e *Engine) Loaded(taskName string) (model.EngineOptions, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	opts, ok := e.engines[taskName]
	return opts, ok
}

// Calls returns the task names CreateEngine was called with, in call order.
func (e *Engine) Calls() []string {
	e.mu.Lock()
	defer e.mu.Unlock()

	return append([]string(nil), e.calls...)
}

func (e *Engine) publish(taskName, status string) {
	if !e.cfg.EmitProgress {
		return
	}

	e.Publish(model.EngineProgress{TaskName: taskName, Status: status})
}
