// Package channel has the long-lived bidirectional conduits used between a requester and a worker.
package channel

import (
	"context"
	"errors"

	"github.com/slok/mlprobe/internal/model"
)

// ErrClosed is returned when posting on a closed port.
var ErrClosed = errors.New("port closed")

// Port is one end of a channel. Messages posted on a port are received by the peer in order.
type Port interface {
	// Name is the channel name, both ends share it.
	Name() string
	// Post sends a message to the peer.
	Post(ctx context.Context, msg model.Message) error
	// Messages returns the messages sent by the peer, closed when the peer closes.
	Messages() <-chan model.Message
	// Close closes the sending side of the port.
	Close() error
}
