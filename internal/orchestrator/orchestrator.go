// Package orchestrator is the worker side of the harness. It loads the configured task engines
// on the engine host guaranteeing a single run in flight, and relays progress and the final
// results to the requester over its channel.
package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/slok/mlprobe/internal/channel"
	"github.com/slok/mlprobe/internal/log"
	"github.com/slok/mlprobe/internal/mlengine"
	"github.com/slok/mlprobe/internal/model"
	"github.com/slok/mlprobe/internal/storage"
	"github.com/slok/mlprobe/internal/taskconfig"
)

const (
	tracerName = "github.com/slok/mlprobe/internal/orchestrator"

	msgAlreadyInProgress = "Already in progress"
	msgModelLoadingDone  = "Model loading done!"
)

// LoadMode is how the engines of a batch are loaded.
type LoadMode string

const (
	// LoadModeSequential loads one task engine at a time, in order.
	LoadModeSequential LoadMode = "sequential"
	// LoadModeConcurrent starts all task engine loads and waits for all of them to settle.
	LoadModeConcurrent LoadMode = "concurrent"
)

// OptionsResolver resolves the engine options of a task.
type OptionsResolver interface {
	ResolveOptions(taskName string) model.EngineOptions
}

// Config is the configuration of the orchestrator.
type Config struct {
	Engine mlengine.Engine
	// Resolver defaults to the builtin task override table.
	Resolver OptionsResolver
	// Finalizer defaults to posting the completion envelope on the request channel.
	Finalizer Finalizer
	// RunRepository is optional, when set every finished run is recorded.
	RunRepository storage.RunRepository
	// Tasks is the batch loaded on the first run, when empty the requested task is loaded.
	Tasks          []string
	LoadMode       LoadMode
	MaxConcurrency int
	Clock          func() time.Time
	Tracer         trace.Tracer
	Logger         log.Logger
}

func (c *Config) defaults() error {
	if c.Engine == nil {
		return fmt.Errorf("engine is required")
	}
	if c.Resolver == nil {
		c.Resolver = taskconfig.NewResolver(nil)
	}
	if c.Finalizer == nil {
		c.Finalizer = ChannelFinalizer{}
	}
	if c.LoadMode == "" {
		c.LoadMode = LoadModeSequential
	}
	if c.LoadMode != LoadModeSequential && c.LoadMode != LoadModeConcurrent {
		return fmt.Errorf("unknown load mode %q", c.LoadMode)
	}
	if c.MaxConcurrency <= 0 {
		c.MaxConcurrency = 4
	}
	if c.Clock == nil {
		c.Clock = time.Now
	}
	if c.Tracer == nil {
		c.Tracer = otel.Tracer(tracerName)
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "orchestrator.Orchestrator"})
	c.Tasks = slices.Clone(c.Tasks)
	return nil
}

// Orchestrator runs task engine loads, at most one run at a time.
//
// It owns the run state: the running flag, the first run gate (engines are loaded once per
// orchestrator lifetime) and the results collection.
type Orchestrator struct {
	engine         mlengine.Engine
	resolver       OptionsResolver
	finalizer      Finalizer
	runRepo        storage.RunRepository
	tasks          []string
	loadMode       LoadMode
	maxConcurrency int
	clock          func() time.Time
	tracer         trace.Tracer
	logger         log.Logger

	mu       sync.Mutex
	running  bool
	firstRun bool
	results  []model.TaskResult
}

// New returns a new orchestrator.
func New(cfg Config) (*Orchestrator, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Orchestrator{
		engine:         cfg.Engine,
		resolver:       cfg.Resolver,
		finalizer:      cfg.Finalizer,
		runRepo:        cfg.RunRepository,
		tasks:          cfg.Tasks,
		loadMode:       cfg.LoadMode,
		maxConcurrency: cfg.MaxConcurrency,
		clock:          cfg.Clock,
		tracer:         cfg.Tracer,
		logger:         cfg.Logger,
		firstRun:       true,
	}, nil
}

// IsBusy returns true while a run is in flight.
func (o *Orchestrator) IsBusy() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.running
}

// Reset clears the results and reopens the first run gate. It's refused while a run is in flight.
func (o *Orchestrator) Reset() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.running {
		return fmt.Errorf("could not reset: %w", model.ErrAlreadyRunning)
	}

	o.firstRun = true
	o.results = nil
	return nil
}

// Results returns a snapshot of the results collection.
func (o *Orchestrator) Results() []model.TaskResult {
	o.mu.Lock()
	defer o.mu.Unlock()
	return slices.Clone(o.results)
}

// Start runs the requested task and blocks until the run is finalized.
//
// When a run is already in flight the request is dropped: a busy progress notice is posted on
// the port and model.ErrAlreadyRunning is returned.
func (o *Orchestrator) Start(ctx context.Context, port channel.Port, req model.TaskRequest) error {
	if err := req.Validate(); err != nil {
		return fmt.Errorf("invalid request: %w", err)
	}

	if err := o.begin(ctx, port); err != nil {
		return err
	}

	o.execute(ctx, port, req.TaskName)
	return nil
}

// begin acquires the single-flight guard.
func (o *Orchestrator) begin(ctx context.Context, port channel.Port) error {
	o.mu.Lock()
	busy := o.running
	o.running = true
	o.mu.Unlock()

	if !busy {
		return nil
	}

	o.logger.Infof("Run requested on %s while another one is in flight", port.Name())
	notice := model.NewProgressMessage(msgAlreadyInProgress)
	notice.Status = model.ProgressStatusBusy
	if err := port.Post(ctx, notice); err != nil {
		o.logger.Warningf("Could not post busy notice: %s", err)
	}

	return fmt.Errorf("could not start run: %w", model.ErrAlreadyRunning)
}

// execute runs the orchestration and its cleanup phase, the guard must be held.
func (o *Orchestrator) execute(ctx context.Context, port channel.Port, taskName string) {
	run := model.Run{
		ID:        ulid.Make().String(),
		TaskName:  taskName,
		Outcome:   model.OutcomeSuccess,
		StartedAt: o.clock().UTC(),
	}
	logger := o.logger.WithValues(log.Kv{"run": run.ID, "task": taskName, "port": port.Name()})
	logger.Infof("Run started")

	// The cleanup context survives the cancellation of the run so the requester always gets the terminal message.
	cleanupCtx := context.WithoutCancel(ctx)

	subCtx, detach := context.WithCancel(ctx)
	relayDone := o.relayEngineProgress(subCtx, cleanupCtx, port, o.runTasks(taskName), logger)

	defer func() {
		detach()
		<-relayDone

		run.Results = o.Results()
		if run.Results == nil {
			run.Results = []model.TaskResult{}
		}
		o.finalize(cleanupCtx, port, run.Outcome, run.Results, logger)

		run.FinishedAt = o.clock().UTC()
		if o.runRepo != nil {
			if err := o.runRepo.CreateRun(cleanupCtx, run); err != nil {
				logger.Errorf("Could not record run: %s", err)
			}
		}

		o.mu.Lock()
		o.running = false
		o.mu.Unlock()

		logger.Infof("Run finished: %s", run.Outcome)
	}()

	if err := o.orchestrate(ctx, port, taskName, logger); err != nil {
		run.Outcome = model.OutcomeError
		logger.Errorf("Run failed: %s", err)
		if perr := port.Post(cleanupCtx, model.NewProgressMessage(err.Error())); perr != nil {
			logger.Warningf("Could not post failure: %s", perr)
		}
	}
}

func (o *Orchestrator) orchestrate(ctx context.Context, port channel.Port, taskName string, logger log.Logger) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("orchestration panicked: %v", r)
		}
	}()

	if err := o.post(ctx, port, "Starting "+taskName); err != nil {
		return err
	}

	o.mu.Lock()
	firstRun := o.firstRun
	o.mu.Unlock()

	if firstRun {
		tasks := o.runTasks(taskName)

		var results []model.TaskResult
		switch o.loadMode {
		case LoadModeConcurrent:
			results, err = o.loadConcurrently(ctx, port, tasks)
		default:
			results, err = o.loadSequentially(ctx, port, tasks)
		}

		// All attempts have settled here.
		o.mu.Lock()
		o.results = append(o.results, results...)
		o.firstRun = false
		o.mu.Unlock()

		if err != nil {
			return err
		}
		logger.Debugf("Loaded %d task engines", len(results))
	}

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("run cancelled: %w", err)
	}

	return o.post(ctx, port, msgModelLoadingDone)
}

func (o *Orchestrator) loadSequentially(ctx context.Context, port channel.Port, tasks []string) ([]model.TaskResult, error) {
	results := make([]model.TaskResult, 0, len(tasks))
	var fatal error
	for _, task := range tasks {
		if err := o.post(ctx, port, "Loading "+task); err != nil {
			return results, err
		}

		res, err := o.loadTask(ctx, task)
		results = append(results, res)
		if err != nil && fatal == nil {
			fatal = err
		}
	}

	return results, fatal
}

func (o *Orchestrator) loadConcurrently(ctx context.Context, port channel.Port, tasks []string) ([]model.TaskResult, error) {
	for _, task := range tasks {
		if err := o.post(ctx, port, "Loading "+task); err != nil {
			return nil, err
		}
	}

	// Settle all: task goroutines only fail on fatal errors and never cancel their siblings.
	results := make([]model.TaskResult, len(tasks))
	var g errgroup.Group
	g.SetLimit(o.maxConcurrency)
	for i, task := range tasks {
		g.Go(func() error {
			res, err := o.loadTask(ctx, task)
			results[i] = res
			return err
		})
	}
	err := g.Wait()

	return results, err
}

// loadTask loads the engine of a task. Load failures are results, the returned error is only
// set when the load can't be isolated (the engine host panicked).
func (o *Orchestrator) loadTask(ctx context.Context, taskName string) (res model.TaskResult, fatal error) {
	opts := o.resolver.ResolveOptions(taskName)

	ctx, span := o.tracer.Start(ctx, "orchestrator.LoadTask", trace.WithAttributes(
		attribute.String("task.name", taskName),
		attribute.String("model.id", opts.ModelID),
		attribute.String("model.revision", opts.ModelRevision),
	))
	defer span.End()

	defer func() {
		if r := recover(); r != nil {
			fatal = fmt.Errorf("loading %s panicked: %v", taskName, r)
			res = model.NewErrorResult(taskName, fatal)
			span.RecordError(fatal)
			span.SetStatus(codes.Error, fatal.Error())
		}
	}()

	start := o.clock()
	err := o.engine.CreateEngine(ctx, opts)
	took := float64(o.clock().Sub(start)) / float64(time.Millisecond)
	if took < 0 {
		took = 0
	}

	if err != nil {
		o.logger.Warningf("Could not load task %s: %s", taskName, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return model.NewErrorResult(taskName, err), nil
	}

	span.SetAttributes(attribute.Float64("took.ms", took))
	o.logger.Debugf("Loaded task %s in %.2fms", taskName, took)
	return model.NewTookResult(taskName, took), nil
}

// runTasks returns the task engines a run of taskName loads.
func (o *Orchestrator) runTasks(taskName string) []string {
	if len(o.tasks) == 0 {
		return []string{taskName}
	}
	return o.tasks
}

// relayEngineProgress forwards the engine host progress of the run tasks to the port until subCtx
// is done. Payloads of other tasks (the engine host may be shared between workers) are dropped,
// payloads without task are forwarded. The returned channel is closed once the relay has drained.
func (o *Orchestrator) relayEngineProgress(subCtx, postCtx context.Context, port channel.Port, tasks []string, logger log.Logger) <-chan struct{} {
	sub := o.engine.SubscribeProgress(subCtx)
	done := make(chan struct{})

	go func() {
		defer close(done)
		for p := range sub {
			if p.TaskName != "" && !slices.Contains(tasks, p.TaskName) {
				continue
			}
			raw, err := json.Marshal(p)
			if err != nil {
				logger.Warningf("Could not encode engine progress: %s", err)
				continue
			}
			if err := port.Post(postCtx, model.NewProgressMessage(string(raw))); err != nil {
				logger.Debugf("Could not relay engine progress: %s", err)
			}
		}
	}()

	return done
}

func (o *Orchestrator) post(ctx context.Context, port channel.Port, progress string) error {
	if err := port.Post(ctx, model.NewProgressMessage(progress)); err != nil {
		return fmt.Errorf("could not post progress: %w", err)
	}
	return nil
}

func (o *Orchestrator) finalize(ctx context.Context, port channel.Port, what model.Outcome, data any, logger log.Logger) {
	env, err := model.NewCompletionEnvelope(what, data)
	if err != nil {
		logger.Errorf("Could not build completion envelope: %s", err)
		env = model.CompletionEnvelope{What: model.OutcomeError, Data: "[]"}
	}

	if err := o.finalizer.Finalize(ctx, port, env); err != nil {
		logger.Errorf("Could not finalize: %s", err)
	}
}
