package replication

import (
	"fmt"
	"sync"

	"google.golang.org/protobuf/types/known/structpb"
)

// outbox queues wire messages for the goroutine that writes a stream.
type outbox struct {
	id     string
	events chan *structpb.Struct
	mu     sync.Mutex
	closed bool
}

func newOutbox(id string, size int) *outbox {
	if size <= 0 {
		size = 256
	}
	return &outbox{id: id, events: make(chan *structpb.Struct, size)}
}

// Push enqueues msg without blocking.
//
// Postcondition: returns ErrClosed after Close, or an error when the buffer is full.
func (o *outbox) Push(msg *structpb.Struct) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return ErrClosed
	}
	select {
	case o.events <- msg:
		return nil
	default:
		return fmt.Errorf("replication: connection %s outbox full", o.id)
	}
}

// Events returns the queue the writer drains.
func (o *outbox) Events() <-chan *structpb.Struct {
	return o.events
}

// Close closes the queue. Safe to call multiple times.
func (o *outbox) Close() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.closed {
		o.closed = true
		close(o.events)
	}
}
