package mlengine

import (
	"context"

	"github.com/slok/mlprobe/internal/model"
)

// Engine is the ML engine host the worker delegates model loading to.
type Engine interface {
	// CreateEngine instantiates the inference engine described by the options.
	// It fails with a message bearing error when the model can't be loaded.
	CreateEngine(ctx context.Context, opts model.EngineOptions) error

	// SubscribeProgress attaches a listener to the host progress stream.
	// The returned channel is closed once ctx is done, that is how a listener is detached.
	SubscribeProgress(ctx context.Context) <-chan model.EngineProgress
}
