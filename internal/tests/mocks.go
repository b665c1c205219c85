package tests

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"taxi/internal/domain"
	"taxi/internal/redis"
	"taxi/internal/repository"
)

// ──────────────────────────────────────────────
// MOCK USER REPOSITORY
// ──────────────────────────────────────────────

// MockUserRepository is a mock implementation of UserRepository.
type MockUserRepository struct {
	mu    sync.RWMutex
	users map[string]*domain.User

	// Counters for verification
	GetByIDCallCount int32

	// Error injection
	GetByIDError error
}

// NewMockUserRepository creates a new mock user repository.
func NewMockUserRepository() *MockUserRepository {
	return &MockUserRepository{
		users: make(map[string]*domain.User),
	}
}

// AddUser adds a user to the mock repository.
func (m *MockUserRepository) AddUser(user *domain.User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[user.ID] = user
}

func (m *MockUserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	atomic.AddInt32(&m.GetByIDCallCount, 1)
	if m.GetByIDError != nil {
		return nil, m.GetByIDError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	user, ok := m.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copy := *user
	return &copy, nil
}

// ──────────────────────────────────────────────
// MOCK TRIP REPOSITORY
// ──────────────────────────────────────────────

// MockTripRepository is a mock implementation of TripRepository.
type MockTripRepository struct {
	mu    sync.RWMutex
	trips map[string]*domain.Trip

	// Counters for verification
	CreateCallCount  int32
	UpdateCallCount  int32
	GetByIDCallCount int32

	// Error injection
	CreateError  error
	UpdateError  error
	ListIDsError error
}

// NewMockTripRepository creates a new mock trip repository.
func NewMockTripRepository() *MockTripRepository {
	return &MockTripRepository{
		trips: make(map[string]*domain.Trip),
	}
}

// AddTrip adds a trip to the mock repository.
func (m *MockTripRepository) AddTrip(trip *domain.Trip) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.trips[trip.ID] = trip
}

func (m *MockTripRepository) Create(ctx context.Context, trip *domain.Trip) error {
	atomic.AddInt32(&m.CreateCallCount, 1)
	if m.CreateError != nil {
		return m.CreateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	stored := *trip
	m.trips[trip.ID] = &stored
	return nil
}

func (m *MockTripRepository) GetByID(ctx context.Context, id string) (*domain.Trip, error) {
	atomic.AddInt32(&m.GetByIDCallCount, 1)
	m.mu.RLock()
	defer m.mu.RUnlock()
	trip, ok := m.trips[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	// Return a copy without hydrated users, as the database would.
	copy := *trip
	copy.Rider = nil
	copy.Driver = nil
	return &copy, nil
}

func (m *MockTripRepository) Update(ctx context.Context, trip *domain.Trip) error {
	atomic.AddInt32(&m.UpdateCallCount, 1)
	if m.UpdateError != nil {
		return m.UpdateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.trips[trip.ID]; !ok {
		return repository.ErrNotFound
	}
	stored := *trip
	m.trips[trip.ID] = &stored
	return nil
}

func (m *MockTripRepository) ListIDsByRider(ctx context.Context, riderID string, excludeStatus domain.TripStatus) ([]string, error) {
	return m.listIDs(func(t *domain.Trip) bool { return t.RiderID == riderID }, excludeStatus)
}

func (m *MockTripRepository) ListIDsByDriver(ctx context.Context, driverID string, excludeStatus domain.TripStatus) ([]string, error) {
	return m.listIDs(func(t *domain.Trip) bool { return t.DriverID == driverID }, excludeStatus)
}

func (m *MockTripRepository) listIDs(match func(*domain.Trip) bool, excludeStatus domain.TripStatus) ([]string, error) {
	if m.ListIDsError != nil {
		return nil, m.ListIDsError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var ids []string
	for _, t := range m.trips {
		if match(t) && t.Status != excludeStatus {
			ids = append(ids, t.ID)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (m *MockTripRepository) ListByParticipant(ctx context.Context, userID string) ([]*domain.Trip, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var trips []*domain.Trip
	for _, t := range m.trips {
		if t.HasParticipant(userID) {
			copy := *t
			copy.Rider = nil
			copy.Driver = nil
			trips = append(trips, &copy)
		}
	}
	sort.Slice(trips, func(i, j int) bool { return trips[i].CreatedAt.After(trips[j].CreatedAt) })
	return trips, nil
}

// GetTrip returns the stored trip (for test assertions).
func (m *MockTripRepository) GetTrip(id string) *domain.Trip {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.trips[id]
}

// CountTrips returns the number of stored trips.
func (m *MockTripRepository) CountTrips() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.trips)
}

// ──────────────────────────────────────────────
// MOCK CACHE STORE
// ──────────────────────────────────────────────

// MockCacheStore is a mock implementation of TripCacheInterface.
type MockCacheStore struct {
	mu    sync.RWMutex
	trips map[string]*redis.CachedTrip

	// Counters
	GetTripCallCount int32
	SetTripCallCount int32

	// Error injection
	GetError error
	SetError error
}

// NewMockCacheStore creates a new mock cache store.
func NewMockCacheStore() *MockCacheStore {
	return &MockCacheStore{
		trips: make(map[string]*redis.CachedTrip),
	}
}

func (m *MockCacheStore) GetTrip(ctx context.Context, tripID string) (*redis.CachedTrip, error) {
	atomic.AddInt32(&m.GetTripCallCount, 1)
	if m.GetError != nil {
		return nil, m.GetError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.trips[tripID], nil
}

func (m *MockCacheStore) SetTrip(ctx context.Context, trip *redis.CachedTrip) error {
	atomic.AddInt32(&m.SetTripCallCount, 1)
	if m.SetError != nil {
		return m.SetError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.trips[trip.ID] = trip
	return nil
}

func (m *MockCacheStore) InvalidateTrip(ctx context.Context, tripID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.trips, tripID)
	return nil
}

// HasTrip checks if a trip is cached.
func (m *MockCacheStore) HasTrip(tripID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.trips[tripID]
	return ok
}

// ──────────────────────────────────────────────
// MOCK LOCK STORE
// ──────────────────────────────────────────────

// MockLockStore is a mock implementation of LockStoreInterface.
type MockLockStore struct {
	mu    sync.Mutex
	locks map[string]time.Time

	// Counters
	AcquireCallCount int32
	ReleaseCallCount int32

	// Error injection
	AcquireError error

	// Force lock failure
	ForceLockFail bool
}

// NewMockLockStore creates a new mock lock store.
func NewMockLockStore() *MockLockStore {
	return &MockLockStore{
		locks: make(map[string]time.Time),
	}
}

func (m *MockLockStore) AcquireTripLock(ctx context.Context, tripID string, ttl time.Duration) (bool, error) {
	atomic.AddInt32(&m.AcquireCallCount, 1)
	if m.AcquireError != nil {
		return false, m.AcquireError
	}
	if m.ForceLockFail {
		return false, nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if expiry, exists := m.locks[tripID]; exists && time.Now().Before(expiry) {
		return false, nil // Lock still held.
	}
	m.locks[tripID] = time.Now().Add(ttl)
	return true, nil
}

func (m *MockLockStore) ReleaseTripLock(ctx context.Context, tripID string) error {
	atomic.AddInt32(&m.ReleaseCallCount, 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.locks, tripID)
	return nil
}

// IsLocked checks if a trip is locked (for test assertions).
func (m *MockLockStore) IsLocked(tripID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	expiry, exists := m.locks[tripID]
	return exists && time.Now().Before(expiry)
}

// ──────────────────────────────────────────────
// HELPER ERRORS
// ──────────────────────────────────────────────

var (
	ErrMockDBConstraint = errors.New("mock: unique constraint violation")
	ErrMockTimeout      = errors.New("mock: operation timeout")
)

// Ensure mocks implement interfaces.
var (
	_ repository.UserRepository = (*MockUserRepository)(nil)
	_ repository.TripRepository = (*MockTripRepository)(nil)
	_ redis.TripCacheInterface  = (*MockCacheStore)(nil)
	_ redis.LockStoreInterface  = (*MockLockStore)(nil)
)

// ──────────────────────────────────────────────
// FIXTURES
// ──────────────────────────────────────────────

// Rider returns a rider user fixture.
func Rider(id string) *domain.User {
	return &domain.User{ID: id, Username: id, FirstName: "Rita", LastName: "Rider", Group: domain.UserGroupRider}
}

// Driver returns a driver user fixture.
func Driver(id string) *domain.User {
	return &domain.User{ID: id, Username: id, FirstName: "Dan", LastName: "Driver", Group: domain.UserGroupDriver}
}

// IdentityOf returns the identity a token for u would carry.
func IdentityOf(u *domain.User) domain.Identity {
	return domain.Identity{UserID: u.ID, Username: u.Username, Group: u.Group}
}
