package redis

import (
	"context"
	"encoding/json"
	"log"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const tripChannelPrefix = "trips:"

// busMessage is the envelope published on a trip channel.
type busMessage struct {
	Origin  string          `json:"origin"`
	Payload json.RawMessage `json:"payload"`
}

// GroupBackplane relays trip group broadcasts between instances over Redis
// pub/sub, one channel per trip.
type GroupBackplane struct {
	client     *redis.Client
	pubsub     *redis.PubSub
	instanceID string

	mu         sync.RWMutex
	subscribed map[string]struct{}
}

// NewGroupBackplane creates a GroupBackplane with no subscriptions.
func NewGroupBackplane(ctx context.Context, client *redis.Client) *GroupBackplane {
	return &GroupBackplane{
		client:     client,
		pubsub:     client.Subscribe(ctx),
		instanceID: uuid.New().String(),
		subscribed: make(map[string]struct{}),
	}
}

// InstanceID identifies messages published by this instance.
func (b *GroupBackplane) InstanceID() string {
	return b.instanceID
}

// Subscribe starts receiving broadcasts for the trip.
func (b *GroupBackplane) Subscribe(ctx context.Context, tripID string) error {
	if err := b.pubsub.Subscribe(ctx, tripChannel(tripID)); err != nil {
		return err
	}

	b.mu.Lock()
	b.subscribed[tripID] = struct{}{}
	b.mu.Unlock()
	return nil
}

// Unsubscribe stops receiving broadcasts for the trip.
func (b *GroupBackplane) Unsubscribe(ctx context.Context, tripID string) error {
	if err := b.pubsub.Unsubscribe(ctx, tripChannel(tripID)); err != nil {
		return err
	}

	b.mu.Lock()
	delete(b.subscribed, tripID)
	b.mu.Unlock()
	return nil
}

// Subscribed reports whether the trip channel is subscribed.
func (b *GroupBackplane) Subscribed(tripID string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	_, ok := b.subscribed[tripID]
	return ok
}

// Subscriptions returns the sorted subscribed trip IDs.
func (b *GroupBackplane) Subscriptions() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	ids := make([]string, 0, len(b.subscribed))
	for id := range b.subscribed {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Publish sends payload to every instance subscribed to the trip.
func (b *GroupBackplane) Publish(ctx context.Context, tripID string, payload []byte) error {
	data, err := json.Marshal(busMessage{Origin: b.instanceID, Payload: payload})
	if err != nil {
		return err
	}
	return b.client.Publish(ctx, tripChannel(tripID), data).Err()
}

// Run hands every broadcast published by another instance to deliver until
// ctx is cancelled. Messages this instance published are skipped; they were
// already delivered locally.
func (b *GroupBackplane) Run(ctx context.Context, deliver func(tripID string, payload []byte) int) {
	ch := b.pubsub.Channel()

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}

			tripID, ok := tripIDFromChannel(msg.Channel)
			if !ok {
				continue
			}

			var bm busMessage
			if err := json.Unmarshal([]byte(msg.Payload), &bm); err != nil {
				log.Printf("[BACKPLANE] dropping malformed message: channel=%s err=%v", msg.Channel, err)
				continue
			}
			if bm.Origin == b.instanceID {
				continue
			}

			deliver(tripID, bm.Payload)
		}
	}
}

// Close releases the subscription connection.
func (b *GroupBackplane) Close() error {
	return b.pubsub.Close()
}

func tripChannel(tripID string) string {
	return tripChannelPrefix + tripID
}

func tripIDFromChannel(channel string) (string, bool) {
	if !strings.HasPrefix(channel, tripChannelPrefix) || len(channel) == len(tripChannelPrefix) {
		return "", false
	}
	return strings.TrimPrefix(channel, tripChannelPrefix), true
}
