package redis

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

type deliveryRecorder struct {
	mu   sync.Mutex
	got  map[string][]string
	note chan struct{}
}

func newDeliveryRecorder() *deliveryRecorder {
	return &deliveryRecorder{got: make(map[string][]string), note: make(chan struct{}, 16)}
}

func (d *deliveryRecorder) deliver(tripID string, payload []byte) int {
	d.mu.Lock()
	d.got[tripID] = append(d.got[tripID], string(payload))
	d.mu.Unlock()
	d.note <- struct{}{}
	return 1
}

func (d *deliveryRecorder) payloads(tripID string) []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.got[tripID]...)
}

func waitForSubscribers(t *testing.T, s *miniredis.Miniredis, channel string, want int) {
	t.Helper()

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if s.PubSubNumSub(channel)[channel] == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timeout waiting for %d subscribers on %s", want, channel)
}

func TestGroupBackplane_SubscriptionTracking(t *testing.T) {
	s, client := newTestClient(t)
	ctx := context.Background()

	b := NewGroupBackplane(ctx, client)
	defer b.Close()

	if b.Subscribed("trip-1") {
		t.Fatal("expected no subscription initially")
	}

	if err := b.Subscribe(ctx, "trip-1"); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if err := b.Subscribe(ctx, "trip-2"); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	waitForSubscribers(t, s, "trips:trip-1", 1)

	subs := b.Subscriptions()
	if len(subs) != 2 || subs[0] != "trip-1" || subs[1] != "trip-2" {
		t.Errorf("unexpected subscriptions: %v", subs)
	}

	if err := b.Unsubscribe(ctx, "trip-1"); err != nil {
		t.Fatalf("unsubscribe: %v", err)
	}
	if b.Subscribed("trip-1") {
		t.Error("expected trip-1 to be unsubscribed")
	}
	waitForSubscribers(t, s, "trips:trip-1", 0)
}

func TestGroupBackplane_RelaysBetweenInstances(t *testing.T) {
	s, client := newTestClient(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sender := NewGroupBackplane(ctx, client)
	defer sender.Close()
	receiver := NewGroupBackplane(ctx, client)
	defer receiver.Close()

	senderGot := newDeliveryRecorder()
	receiverGot := newDeliveryRecorder()
	go sender.Run(ctx, senderGot.deliver)
	go receiver.Run(ctx, receiverGot.deliver)

	if err := sender.Subscribe(ctx, "trip-1"); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if err := receiver.Subscribe(ctx, "trip-1"); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	waitForSubscribers(t, s, "trips:trip-1", 2)

	payload := `{"type":"update.trip","data":{"id":"trip-1"}}`
	if err := sender.Publish(ctx, "trip-1", []byte(payload)); err != nil {
		t.Fatalf("publish: %v", err)
	}

	select {
	case <-receiverGot.note:
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for relayed message")
	}

	got := receiverGot.payloads("trip-1")
	if len(got) != 1 || got[0] != payload {
		t.Errorf("unexpected relayed payloads: %v", got)
	}

	// The sender's own message is not handed back to it.
	select {
	case <-senderGot.note:
		t.Error("sender received its own broadcast")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestGroupBackplane_PublishError(t *testing.T) {
	s, client := newTestClient(t)
	ctx := context.Background()

	b := NewGroupBackplane(ctx, client)
	defer b.Close()

	s.Close()
	if err := b.Publish(ctx, "trip-1", []byte(`{}`)); err == nil {
		t.Error("expected publish error with server down")
	}
}

func TestTripIDFromChannel(t *testing.T) {
	if id, ok := tripIDFromChannel(tripChannel("abc")); !ok || id != "abc" {
		t.Errorf("expected abc, got %q ok=%v", id, ok)
	}
	if _, ok := tripIDFromChannel("trips:"); ok {
		t.Error("expected empty trip id to be rejected")
	}
	if _, ok := tripIDFromChannel("tracking:abc"); ok {
		t.Error("expected foreign channel to be rejected")
	}
}
