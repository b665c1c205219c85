package session

import (
	"errors"
	"testing"
)

func TestOutbox_DeliverQueuesInOrder(t *testing.T) {
	t.Parallel()

	out := NewOutbox("conn-1", 4)
	for _, p := range []string{"a", "b", "c"} {
		if err := out.Deliver([]byte(p)); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	msgs := drain(out)
	if len(msgs) != 3 || string(msgs[0]) != "a" || string(msgs[2]) != "c" {
		t.Errorf("unexpected messages: %q", msgs)
	}
}

func TestOutbox_OverflowClosesOutbox(t *testing.T) {
	t.Parallel()

	out := NewOutbox("conn-1", 2)
	_ = out.Deliver([]byte("a"))
	_ = out.Deliver([]byte("b"))

	err := out.Deliver([]byte("c"))

	if !errors.Is(err, ErrSlowConsumer) {
		t.Fatalf("expected ErrSlowConsumer, got %v", err)
	}
	if !out.Closed() {
		t.Error("expected outbox closed after overflow")
	}
	if err := out.Deliver([]byte("d")); !errors.Is(err, ErrOutboxClosed) {
		t.Errorf("expected ErrOutboxClosed, got %v", err)
	}

	// Queued messages stay readable, then the channel reports closed.
	msgs := drain(out)
	if len(msgs) != 2 {
		t.Errorf("expected 2 queued messages, got %d", len(msgs))
	}
	if _, ok := <-out.Messages(); ok {
		t.Error("expected messages channel closed")
	}
}

func TestOutbox_CloseIsIdempotent(t *testing.T) {
	t.Parallel()

	out := NewOutbox("conn-1", 1)
	out.Close()
	out.Close()

	if err := out.Deliver([]byte("a")); !errors.Is(err, ErrOutboxClosed) {
		t.Errorf("expected ErrOutboxClosed, got %v", err)
	}
}
