package channel

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/slok/mlprobe/internal/log"
	"github.com/slok/mlprobe/internal/model"
)

const maxStreamLineSize = 1024 * 1024

// StreamPortConfig is the configuration of a stream port.
type StreamPortConfig struct {
	Name   string
	Reader io.Reader
	Writer io.Writer
	Logger log.Logger
}

func (c *StreamPortConfig) defaults() error {
	if c.Name == "" {
		return fmt.Errorf("name is required")
	}
	if c.Reader == nil {
		return fmt.Errorf("reader is required")
	}
	if c.Writer == nil {
		return fmt.Errorf("writer is required")
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "channel.StreamPort", "port": c.Name})
	return nil
}

// StreamPort is a port that exchanges one JSON message per line over a reader and a writer
// (e.g. the stdin and stdout of a worker process).
type StreamPort struct {
	name   string
	w      io.Writer
	enc    *json.Encoder
	msgs   chan model.Message
	closed bool
	mu     sync.Mutex
	logger log.Logger
}

// NewStreamPort returns a new stream port and starts reading messages from the reader.
func NewStreamPort(cfg StreamPortConfig) (*StreamPort, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	p := &StreamPort{
		name:   cfg.Name,
		w:      cfg.Writer,
		enc:    json.NewEncoder(cfg.Writer),
		msgs:   make(chan model.Message, defaultPipeBufferSize),
		logger: cfg.Logger,
	}
	go p.read(cfg.Reader)

	return p, nil
}

func (p *StreamPort) read(r io.Reader) {
	defer close(p.msgs)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxStreamLineSize)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var msg model.Message
		if err := json.Unmarshal(line, &msg); err != nil {
			p.logger.Warningf("Ignoring invalid message: %s", err)
			continue
		}
		p.msgs <- msg
	}

	if err := scanner.Err(); err != nil {
		p.logger.Errorf("Could not read messages: %s", err)
	}
}

func (p *StreamPort) Name() string { return p.name }

func (p *StreamPort) Post(ctx context.Context, msg model.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrClosed
	}

	if err := p.enc.Encode(msg); err != nil {
		return fmt.Errorf("could not write message: %w", err)
	}

	return nil
}

func (p *StreamPort) Messages() <-chan model.Message { return p.msgs }

func (p *StreamPort) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true

	if c, ok := p.w.(io.Closer); ok {
		return c.Close()
	}

	return nil
}
