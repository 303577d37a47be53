package channel

import (
	"context"
	"sync"

	"github.com/slok/mlprobe/internal/model"
)

const defaultPipeBufferSize = 1024

type pipeDirection struct {
	ch      chan model.Message
	done    chan struct{}
	closed  bool
	pending sync.WaitGroup
	mu      sync.Mutex
}

func newPipeDirection() *pipeDirection {
	return &pipeDirection{
		ch:   make(chan model.Message, defaultPipeBufferSize),
		done: make(chan struct{}),
	}
}

// send blocks while the buffer is full, without holding the lock so close is never blocked by a
// peer that stopped reading.
func (d *pipeDirection) send(ctx context.Context, msg model.Message) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return ErrClosed
	}
	d.pending.Add(1)
	d.mu.Unlock()
	defer d.pending.Done()

	select {
	case <-d.done:
		return ErrClosed
	case d.ch <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// close wakes up the blocked senders and closes the messages once they are gone.
func (d *pipeDirection) close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.done)
	d.mu.Unlock()

	d.pending.Wait()
	close(d.ch)
}

// PipePort is an in-process port.
type PipePort struct {
	name string
	out  *pipeDirection
	in   *pipeDirection
}

// NewPipe returns both connected ends of an in-process channel.
func NewPipe(name string) (*PipePort, *PipePort) {
	a2b := newPipeDirection()
	b2a := newPipeDirection()

	return &PipePort{name: name, out: a2b, in: b2a}, &PipePort{name: name, out: b2a, in: a2b}
}

func (p *PipePort) Name() string { return p.name }

func (p *PipePort) Post(ctx context.Context, msg model.Message) error { return p.out.send(ctx, msg) }

func (p *PipePort) Messages() <-chan model.Message { return p.in.ch }

func (p *PipePort) Close() error {
	p.out.close()
	return nil
}
