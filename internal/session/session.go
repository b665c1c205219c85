// Package session implements the per-connection state machine that keeps a
// connection's trip group membership in step with the trips it may observe.
package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"

	"taxi/internal/domain"
	"taxi/internal/group"
	"taxi/internal/service"
)

var (
	// ErrAuthRejected is returned by Connect for an anonymous identity.
	ErrAuthRejected = errors.New("connection rejected: not authenticated")

	// ErrSessionClosed is returned by handlers once the session is closed.
	ErrSessionClosed = errors.New("session closed")

	// ErrNotActive is returned by handlers called before Connect completed.
	ErrNotActive = errors.New("session not active")
)

// State is the lifecycle state of a Session.
type State int

const (
	StateUnauthenticated State = iota
	StateConnecting
	StateActive
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateUnauthenticated:
		return "unauthenticated"
	case StateConnecting:
		return "connecting"
	case StateActive:
		return "active"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// TripStore persists trips on behalf of a session.
type TripStore interface {
	CreateTrip(ctx context.Context, req service.CreateTripRequest) (*domain.Trip, error)
	UpdateTrip(ctx context.Context, req service.UpdateTripRequest) (*domain.Trip, error)
	TripIDsForUser(ctx context.Context, identity domain.Identity, excludeStatus domain.TripStatus) ([]string, error)
}

// Groups is the trip group membership a session drives.
type Groups interface {
	Join(ctx context.Context, tripID string, member group.Member) error
	Leave(ctx context.Context, tripID, memberID string) error
	Broadcast(ctx context.Context, tripID string, payload []byte)
}

var (
	_ TripStore = (*service.TripService)(nil)
	_ Groups    = (*group.Registry)(nil)
	_ Handler   = (*Session)(nil)
)

// Session is the server side of one client connection.
// Handlers and Disconnect are serialized by mu.
type Session struct {
	identity domain.Identity
	outbox   *Outbox
	trips    TripStore
	groups   Groups

	mu         sync.Mutex
	state      State
	subscribed map[string]struct{}
}

// New creates an unauthenticated Session delivering through outbox.
func New(identity domain.Identity, outbox *Outbox, trips TripStore, groups Groups) *Session {
	return &Session{
		identity:   identity,
		outbox:     outbox,
		trips:      trips,
		groups:     groups,
		state:      StateUnauthenticated,
		subscribed: make(map[string]struct{}),
	}
}

// ID returns the connection ID.
func (s *Session) ID() string {
	return s.outbox.ID()
}

// Identity returns the identity the session was opened with.
func (s *Session) Identity() domain.Identity {
	return s.identity
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Subscriptions returns the sorted trip IDs the session is subscribed to.
func (s *Session) Subscriptions() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]string, 0, len(s.subscribed))
	for id := range s.subscribed {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Connect authorizes the session and joins the group of every trip the
// identity takes part in that is not completed. Joins run concurrently and
// all of them finish before the session becomes active; a failed join is
// logged and tolerated.
func (s *Session) Connect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case StateClosed:
		return ErrSessionClosed
	case StateConnecting, StateActive:
		return nil
	}

	if s.identity.Anonymous || s.identity.UserID == "" {
		s.state = StateClosed
		return ErrAuthRejected
	}

	s.state = StateConnecting

	tripIDs, err := s.trips.TripIDsForUser(ctx, s.identity, domain.TripStatusCompleted)
	if err != nil {
		s.state = StateClosed
		return fmt.Errorf("load trips for %s: %w", s.identity.UserID, err)
	}

	for _, id := range tripIDs {
		s.subscribed[id] = struct{}{}
	}

	var wg sync.WaitGroup
	for id := range s.subscribed {
		wg.Add(1)
		go func(tripID string) {
			defer wg.Done()
			if err := s.groups.Join(ctx, tripID, s.outbox); err != nil {
				log.Printf("[SESSION] join failed: conn=%s trip=%s err=%v", s.ID(), tripID, err)
			}
		}(id)
	}
	wg.Wait()

	s.state = StateActive
	log.Printf("[SESSION] connected: conn=%s user=%s group=%s trips=%d",
		s.ID(), s.identity.UserID, s.identity.Group, len(s.subscribed))
	return nil
}

// CreateTrip persists a new trip, subscribes the session to it and sends the
// created trip back to this connection only.
func (s *Session) CreateTrip(ctx context.Context, msg CreateTripMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkActiveLocked(); err != nil {
		return err
	}

	trip, err := s.trips.CreateTrip(ctx, service.CreateTripRequest{
		Identity:       s.identity,
		PickUpAddress:  msg.PickUpAddress,
		DropOffAddress: msg.DropOffAddress,
		RiderID:        msg.Rider,
	})
	if err != nil {
		return err
	}

	s.subscribeLocked(ctx, trip.ID)

	data, err := Encode(Message{Type: TypeCreateTrip, Data: NewTripPayload(trip)})
	if err != nil {
		return err
	}
	return s.outbox.Deliver(data)
}

// UpdateTrip moves a trip forward on behalf of a driver and broadcasts the
// updated trip to everyone subscribed to it.
func (s *Session) UpdateTrip(ctx context.Context, msg UpdateTripMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkActiveLocked(); err != nil {
		return err
	}

	trip, err := s.trips.UpdateTrip(ctx, service.UpdateTripRequest{
		Identity: s.identity,
		TripID:   msg.ID,
		Status:   domain.TripStatus(msg.Status),
	})
	if err != nil {
		return err
	}

	s.subscribeLocked(ctx, trip.ID)

	data, err := Encode(Message{Type: TypeUpdateTrip, Data: NewTripPayload(trip)})
	if err != nil {
		return err
	}
	s.groups.Broadcast(ctx, trip.ID, data)
	return nil
}

// Disconnect leaves every subscribed trip group and closes the session.
// Leaves run concurrently and are all attempted before Disconnect returns.
// Calling it again does nothing.
func (s *Session) Disconnect(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateClosed {
		return
	}

	tripIDs := make([]string, 0, len(s.subscribed))
	for id := range s.subscribed {
		tripIDs = append(tripIDs, id)
	}
	clear(s.subscribed)
	s.state = StateClosed

	var wg sync.WaitGroup
	for _, id := range tripIDs {
		wg.Add(1)
		go func(tripID string) {
			defer wg.Done()
			if err := s.groups.Leave(ctx, tripID, s.ID()); err != nil {
				log.Printf("[SESSION] leave failed: conn=%s trip=%s err=%v", s.ID(), tripID, err)
			}
		}(id)
	}
	wg.Wait()

	log.Printf("[SESSION] disconnected: conn=%s user=%s trips=%d", s.ID(), s.identity.UserID, len(tripIDs))
}

func (s *Session) checkActiveLocked() error {
	switch s.state {
	case StateActive:
		return nil
	case StateClosed:
		return ErrSessionClosed
	default:
		return ErrNotActive
	}
}

// subscribeLocked joins the trip's group unless the session already has.
func (s *Session) subscribeLocked(ctx context.Context, tripID string) {
	if _, ok := s.subscribed[tripID]; ok {
		return
	}
	s.subscribed[tripID] = struct{}{}

	if err := s.groups.Join(ctx, tripID, s.outbox); err != nil {
		log.Printf("[SESSION] join failed: conn=%s trip=%s err=%v", s.ID(), tripID, err)
	}
}
