package mlengine

import (
	"context"
	"sync"

	"github.com/slok/mlprobe/internal/model"
)

const defaultProgressBufferSize = 64

// ProgressBroker fans out engine progress payloads to the subscribed listeners.
// Engine implementations embed it to satisfy the progress side of Engine.
type ProgressBroker struct {
	subs       map[chan model.EngineProgress]struct{}
	mu         sync.RWMutex
	bufferSize int
}

// NewProgressBroker returns a new broker.
func NewProgressBroker() *ProgressBroker {
	return &ProgressBroker{
		subs:       make(map[chan model.EngineProgress]struct{}),
		bufferSize: defaultProgressBufferSize,
	}
}

// SubscribeProgress satisfies Engine.
func (b *ProgressBroker) SubscribeProgress(ctx context.Context) <-chan model.EngineProgress {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub := make(chan model.EngineProgress, b.bufferSize)
	b.subs[sub] = struct{}{}

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		defer b.mu.Unlock()

		delete(b.subs, sub)
		close(sub)
	}()

	return sub
}

// Publish sends a progress payload to all listeners.
// Non-blocking: payloads are dropped for listeners that are not keeping up.
func (b *ProgressBroker) Publish(p model.EngineProgress) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for sub := range b.subs {
		select {
		case sub <- p:
		default:
		}
	}
}

// ListenerCount returns the number of attached listeners.
func (b *ProgressBroker) ListenerCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
