package session

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"taxi/internal/domain"
	"taxi/internal/group"
	"taxi/internal/service"
)

// fakeTripStore is an in-memory TripStore with error injection.
type fakeTripStore struct {
	mu    sync.Mutex
	trips map[string]*domain.Trip

	TripIDsForUserCallCount int32

	// CreateReturnsID, when set, makes CreateTrip return that ID.
	CreateReturnsID string

	CreateError  error
	UpdateError  error
	TripIDsError error
}

func newFakeTripStore() *fakeTripStore {
	return &fakeTripStore{trips: make(map[string]*domain.Trip)}
}

func (f *fakeTripStore) addTrip(trip *domain.Trip) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.trips[trip.ID] = trip
}

func (f *fakeTripStore) CreateTrip(ctx context.Context, req service.CreateTripRequest) (*domain.Trip, error) {
	if f.CreateError != nil {
		return nil, f.CreateError
	}
	if req.PickUpAddress == "" {
		return nil, service.ErrInvalidPickUpAddress
	}
	if req.DropOffAddress == "" {
		return nil, service.ErrInvalidDropOffAddress
	}
	if req.RiderID != req.Identity.UserID {
		return nil, service.ErrRiderMismatch
	}

	id := f.CreateReturnsID
	if id == "" {
		id = uuid.New().String()
	}

	now := time.Now().UTC()
	trip := &domain.Trip{
		ID:             id,
		PickUpAddress:  req.PickUpAddress,
		DropOffAddress: req.DropOffAddress,
		Status:         domain.TripStatusRequested,
		RiderID:        req.RiderID,
		Rider:          &domain.User{ID: req.RiderID, Username: req.Identity.Username, Group: domain.UserGroupRider},
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	f.addTrip(trip)
	return trip, nil
}

func (f *fakeTripStore) UpdateTrip(ctx context.Context, req service.UpdateTripRequest) (*domain.Trip, error) {
	if f.UpdateError != nil {
		return nil, f.UpdateError
	}
	if !req.Identity.IsDriver() {
		return nil, service.ErrNotDriver
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	trip, ok := f.trips[req.TripID]
	if !ok {
		return nil, service.ErrInvalidTripID
	}
	trip.Status = req.Status
	trip.DriverID = req.Identity.UserID
	trip.Driver = &domain.User{ID: req.Identity.UserID, Username: req.Identity.Username, Group: domain.UserGroupDriver}
	trip.UpdatedAt = time.Now().UTC()
	updated := *trip
	return &updated, nil
}

func (f *fakeTripStore) TripIDsForUser(ctx context.Context, identity domain.Identity, excludeStatus domain.TripStatus) ([]string, error) {
	atomic.AddInt32(&f.TripIDsForUserCallCount, 1)
	if f.TripIDsError != nil {
		return nil, f.TripIDsError
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	var ids []string
	for _, trip := range f.trips {
		if trip.Status == excludeStatus {
			continue
		}
		if identity.IsDriver() && trip.DriverID == identity.UserID {
			ids = append(ids, trip.ID)
		} else if !identity.IsDriver() && trip.RiderID == identity.UserID {
			ids = append(ids, trip.ID)
		}
	}
	return ids, nil
}

// countingGroups wraps a Registry and counts joins and leaves per trip.
type countingGroups struct {
	*group.Registry

	mu     sync.Mutex
	joins  map[string]int
	leaves map[string]int

	JoinError error
}

func newCountingGroups() *countingGroups {
	return &countingGroups{
		Registry: group.NewRegistry(nil),
		joins:    make(map[string]int),
		leaves:   make(map[string]int),
	}
}

func (g *countingGroups) Join(ctx context.Context, tripID string, member group.Member) error {
	g.mu.Lock()
	g.joins[tripID]++
	g.mu.Unlock()
	if g.JoinError != nil {
		return g.JoinError
	}
	return g.Registry.Join(ctx, tripID, member)
}

func (g *countingGroups) Leave(ctx context.Context, tripID, memberID string) error {
	g.mu.Lock()
	g.leaves[tripID]++
	g.mu.Unlock()
	return g.Registry.Leave(ctx, tripID, memberID)
}

func (g *countingGroups) joinCount(tripID string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.joins[tripID]
}

func (g *countingGroups) leaveCount(tripID string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.leaves[tripID]
}

func (g *countingGroups) totalLeaves() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	total := 0
	for _, n := range g.leaves {
		total += n
	}
	return total
}

func riderIdentity(id string) domain.Identity {
	return domain.Identity{UserID: id, Username: id, Group: domain.UserGroupRider}
}

func driverIdentity(id string) domain.Identity {
	return domain.Identity{UserID: id, Username: id, Group: domain.UserGroupDriver}
}

// drain returns every message queued in out without blocking.
func drain(out *Outbox) [][]byte {
	var msgs [][]byte
	for {
		select {
		case m, ok := <-out.Messages():
			if !ok {
				return msgs
			}
			msgs = append(msgs, m)
		default:
			return msgs
		}
	}
}
