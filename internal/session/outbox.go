package session

import (
	"errors"
	"sync"
)

var (
	// ErrOutboxClosed is returned when delivering to a closed outbox.
	ErrOutboxClosed = errors.New("outbox closed")

	// ErrSlowConsumer is returned when the outbox buffer is full. The outbox
	// closes itself when it is returned.
	ErrSlowConsumer = errors.New("outbox full: slow consumer")
)

// Outbox is the bounded outbound queue of one connection. It is the
// connection's member in trip groups.
type Outbox struct {
	id string
	ch chan []byte

	mu     sync.Mutex
	closed bool
}

// NewOutbox creates an Outbox holding up to size pending messages.
func NewOutbox(id string, size int) *Outbox {
	if size < 1 {
		size = 1
	}
	return &Outbox{
		id: id,
		ch: make(chan []byte, size),
	}
}

// ID returns the connection ID.
func (o *Outbox) ID() string {
	return o.id
}

// Deliver queues payload without blocking.
func (o *Outbox) Deliver(payload []byte) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return ErrOutboxClosed
	}

	select {
	case o.ch <- payload:
		return nil
	default:
		o.closeLocked()
		return ErrSlowConsumer
	}
}

// Messages returns the queue. It is closed once the outbox is closed and
// drained.
func (o *Outbox) Messages() <-chan []byte {
	return o.ch
}

// Close stops accepting messages. Closing twice is a no-op.
func (o *Outbox) Close() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.closeLocked()
}

// Closed reports whether the outbox stopped accepting messages.
func (o *Outbox) Closed() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.closed
}

func (o *Outbox) closeLocked() {
	if o.closed {
		return
	}
	o.closed = true
	close(o.ch)
}
