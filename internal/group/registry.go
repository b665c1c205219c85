// Package group tracks which connections are subscribed to which trip and fans
// trip messages out to them.
package group

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
)

// ErrOperationFailed is returned when a join or leave could not be mirrored to
// the backplane. Local membership is already updated when it is returned.
var ErrOperationFailed = errors.New("group registry operation failed")

// Member is a delivery endpoint registered in trip groups.
// Deliver must not block; it is called with the group lock held.
type Member interface {
	ID() string
	Deliver(payload []byte) error
}

// Backplane carries group traffic between instances.
type Backplane interface {
	Subscribe(ctx context.Context, tripID string) error
	Unsubscribe(ctx context.Context, tripID string) error
	Subscribed(tripID string) bool
	Subscriptions() []string
	Publish(ctx context.Context, tripID string, payload []byte) error
}

type tripGroup struct {
	mu      sync.Mutex
	members map[string]Member
	// dead is set once the group is dropped from the registry map.
	dead bool
}

// Registry maps trip IDs to the members subscribed to them.
type Registry struct {
	mu        sync.Mutex
	groups    map[string]*tripGroup
	backplane Backplane
}

// NewRegistry creates a Registry. backplane may be nil for a single instance.
func NewRegistry(backplane Backplane) *Registry {
	return &Registry{
		groups:    make(map[string]*tripGroup),
		backplane: backplane,
	}
}

// Join adds member to the trip's group. Joining twice is a no-op.
func (r *Registry) Join(ctx context.Context, tripID string, member Member) error {
	g := r.lockGroup(tripID, true)
	defer g.mu.Unlock()

	g.members[member.ID()] = member

	if r.backplane == nil || r.backplane.Subscribed(tripID) {
		return nil
	}
	if err := r.backplane.Subscribe(ctx, tripID); err != nil {
		log.Printf("[GROUP] subscribe failed: trip=%s member=%s err=%v", tripID, member.ID(), err)
		return fmt.Errorf("%w: subscribe trip %s: %w", ErrOperationFailed, tripID, err)
	}
	return nil
}

// Leave removes memberID from the trip's group. Leaving a group the member is
// not in, or that does not exist, is a no-op.
func (r *Registry) Leave(ctx context.Context, tripID, memberID string) error {
	g := r.lockGroup(tripID, false)
	if g == nil {
		return nil
	}

	delete(g.members, memberID)
	empty := len(g.members) == 0

	var err error
	if empty && r.backplane != nil && r.backplane.Subscribed(tripID) {
		if uerr := r.backplane.Unsubscribe(ctx, tripID); uerr != nil {
			log.Printf("[GROUP] unsubscribe failed, left for reconcile: trip=%s err=%v", tripID, uerr)
			err = fmt.Errorf("%w: unsubscribe trip %s: %w", ErrOperationFailed, tripID, uerr)
		}
	}
	g.mu.Unlock()

	if empty {
		r.discardIfEmpty(tripID)
	}
	return err
}

// Broadcast delivers payload to every member of the trip's group on this
// instance and publishes it to the backplane for the others. Delivery and
// publish failures are logged, never returned.
func (r *Registry) Broadcast(ctx context.Context, tripID string, payload []byte) {
	r.DeliverLocal(tripID, payload)

	if r.backplane == nil {
		return
	}
	if err := r.backplane.Publish(ctx, tripID, payload); err != nil {
		log.Printf("[GROUP] publish failed: trip=%s err=%v", tripID, err)
	}
}

// DeliverLocal delivers payload to the members of the trip's group held by
// this registry and returns how many accepted it.
func (r *Registry) DeliverLocal(tripID string, payload []byte) int {
	g := r.lockGroup(tripID, false)
	if g == nil {
		return 0
	}
	defer g.mu.Unlock()

	delivered := 0
	for id, m := range g.members {
		if err := m.Deliver(payload); err != nil {
			log.Printf("[GROUP] delivery failed: trip=%s member=%s err=%v", tripID, id, err)
			continue
		}
		delivered++
	}
	return delivered
}

// Members returns the sorted member IDs of the trip's group.
func (r *Registry) Members(tripID string) []string {
	g := r.lockGroup(tripID, false)
	if g == nil {
		return nil
	}
	defer g.mu.Unlock()

	ids := make([]string, 0, len(g.members))
	for id := range g.members {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Groups returns the sorted trip IDs that currently have a group.
func (r *Registry) Groups() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids := make([]string, 0, len(r.groups))
	for id := range r.groups {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// lockGroup returns the live group for tripID with its lock held, creating it
// when create is set. It returns nil when the group does not exist and create
// is false.
func (r *Registry) lockGroup(tripID string, create bool) *tripGroup {
	for {
		r.mu.Lock()
		g, ok := r.groups[tripID]
		if !ok {
			if !create {
				r.mu.Unlock()
				return nil
			}
			g = &tripGroup{members: make(map[string]Member)}
			r.groups[tripID] = g
		}
		r.mu.Unlock()

		g.mu.Lock()
		if !g.dead {
			return g
		}
		// Discarded between lookup and lock; look again.
		g.mu.Unlock()
	}
}

// discardIfEmpty drops the trip's group when it has no members.
// Lock order is registry then group.
func (r *Registry) discardIfEmpty(tripID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	g, ok := r.groups[tripID]
	if !ok {
		return false
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.members) > 0 {
		return false
	}
	g.dead = true
	delete(r.groups, tripID)
	return true
}
