package orchestrator

import (
	"context"
	"fmt"

	"github.com/slok/mlprobe/internal/channel"
	"github.com/slok/mlprobe/internal/log"
	"github.com/slok/mlprobe/internal/model"
	"github.com/slok/mlprobe/internal/storage"
)

// Finalizer delivers the terminal signal of a run. It's called exactly once per run.
type Finalizer interface {
	Finalize(ctx context.Context, port channel.Port, env model.CompletionEnvelope) error
}

// ChannelFinalizer posts the completion envelope on the request channel.
type ChannelFinalizer struct{}

// Finalize satisfies Finalizer.
func (ChannelFinalizer) Finalize(ctx context.Context, port channel.Port, env model.CompletionEnvelope) error {
	if err := port.Post(ctx, model.NewCompleteMessage(env)); err != nil {
		return fmt.Errorf("could not post completion: %w", err)
	}
	return nil
}

// ExportFinalizerConfig is the configuration of the export finalizer.
type ExportFinalizerConfig struct {
	Store storage.ExportStore
	// Origin scopes the storage area the results are written to.
	Origin string
	// RequesterID is the key the results are written under.
	RequesterID string
	Logger      log.Logger
}

func (c *ExportFinalizerConfig) defaults() error {
	if c.Store == nil {
		return fmt.Errorf("store is required")
	}
	if c.Origin == "" {
		return fmt.Errorf("origin is required")
	}
	if c.RequesterID == "" {
		return fmt.Errorf("requester id is required")
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "orchestrator.ExportFinalizer", "requester": c.RequesterID})
	return nil
}

// ExportFinalizer writes the serialized results into the export store instead of replying on
// the channel, the requester reads them from the store. It's a best-effort debug export: its own
// failures are reported as progress and a fallback write of the error, never returned.
type ExportFinalizer struct {
	store       storage.ExportStore
	origin      string
	requesterID string
	logger      log.Logger
}

// NewExportFinalizer returns a new export finalizer.
func NewExportFinalizer(cfg ExportFinalizerConfig) (*ExportFinalizer, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &ExportFinalizer{
		store:       cfg.Store,
		origin:      cfg.Origin,
		requesterID: cfg.RequesterID,
		logger:      cfg.Logger,
	}, nil
}

// Finalize satisfies Finalizer.
func (e *ExportFinalizer) Finalize(ctx context.Context, port channel.Port, env model.CompletionEnvelope) error {
	e.notify(ctx, port, "Finalizing "+e.requesterID)

	err := e.store.SetItem(ctx, e.origin, e.requesterID, env.Data)
	if err == nil {
		e.logger.Debugf("Exported %s results to %s", env.What, e.origin)
		return nil
	}

	e.logger.Warningf("Could not export results: %s", err)
	e.notify(ctx, port, fmt.Sprintf("Could not export results: %s", err))

	if err := e.store.SetItem(ctx, e.origin, e.requesterID, err.Error()); err != nil {
		e.logger.Errorf("Could not export error: %s", err)
	}

	return nil
}

func (e *ExportFinalizer) notify(ctx context.Context, port channel.Port, progress string) {
	if err := port.Post(ctx, model.NewProgressMessage(progress)); err != nil {
		e.logger.Debugf("Could not post progress: %s", err)
	}
}
