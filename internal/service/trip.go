package service

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"taxi/internal/domain"
	"taxi/internal/redis"
	"taxi/internal/repository"
)

const tripLockTTL = 5 * time.Second

// TripService handles trip operations.
type TripService struct {
	tripRepo   repository.TripRepository
	userRepo   repository.UserRepository
	cacheStore redis.TripCacheInterface
	lockStore  redis.LockStoreInterface
}

// NewTripService creates a new TripService. cacheStore and lockStore may be nil.
func NewTripService(
	tripRepo repository.TripRepository,
	userRepo repository.UserRepository,
	cacheStore redis.TripCacheInterface,
	lockStore redis.LockStoreInterface,
) *TripService {
	return &TripService{
		tripRepo:   tripRepo,
		userRepo:   userRepo,
		cacheStore: cacheStore,
		lockStore:  lockStore,
	}
}

// CreateTripRequest contains the parameters for requesting a trip.
type CreateTripRequest struct {
	Identity       domain.Identity
	PickUpAddress  string
	DropOffAddress string
	RiderID        string
}

// CreateTrip validates and persists a new trip in REQUESTED state.
func (s *TripService) CreateTrip(ctx context.Context, req CreateTripRequest) (*domain.Trip, error) {
	pickUp := strings.TrimSpace(req.PickUpAddress)
	dropOff := strings.TrimSpace(req.DropOffAddress)

	if pickUp == "" {
		return nil, ErrInvalidPickUpAddress
	}

	if dropOff == "" {
		return nil, ErrInvalidDropOffAddress
	}

	if req.RiderID == "" {
		return nil, ErrInvalidRiderID
	}

	if req.RiderID != req.Identity.UserID {
		return nil, ErrRiderMismatch
	}

	rider, err := s.userRepo.GetByID(ctx, req.RiderID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrRiderNotFound
		}
		return nil, err
	}

	now := time.Now().UTC()
	trip := &domain.Trip{
		ID:             uuid.New().String(),
		PickUpAddress:  pickUp,
		DropOffAddress: dropOff,
		Status:         domain.TripStatusRequested,
		RiderID:        rider.ID,
		Rider:          rider,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := s.tripRepo.Create(ctx, trip); err != nil {
		return nil, err
	}

	s.cacheTrip(ctx, trip)

	return trip, nil
}

// UpdateTripRequest contains the parameters for a driver moving a trip forward.
type UpdateTripRequest struct {
	Identity domain.Identity
	TripID   string
	Status   domain.TripStatus
}

// UpdateTrip assigns the requesting driver to the trip and advances its status.
func (s *TripService) UpdateTrip(ctx context.Context, req UpdateTripRequest) (*domain.Trip, error) {
	if req.TripID == "" {
		return nil, ErrInvalidTripID
	}

	if !req.Status.Valid() {
		return nil, ErrInvalidStatus
	}

	if !req.Identity.IsDriver() {
		return nil, ErrNotDriver
	}

	if s.lockStore != nil {
		acquired, err := s.lockStore.AcquireTripLock(ctx, req.TripID, tripLockTTL)
		if err != nil {
			return nil, err
		}
		if !acquired {
			return nil, ErrTripLocked
		}
		defer func() {
			if err := s.lockStore.ReleaseTripLock(context.WithoutCancel(ctx), req.TripID); err != nil {
				log.Printf("[TRIP] failed to release lock: trip=%s err=%v", req.TripID, err)
			}
		}()
	}

	trip, err := s.tripRepo.GetByID(ctx, req.TripID)
	if err != nil {
		return nil, err
	}

	if trip.DriverID != "" && trip.DriverID != req.Identity.UserID {
		return nil, ErrTripAssignedToOtherDriver
	}

	if !trip.Status.CanTransitionTo(req.Status) {
		return nil, ErrInvalidStatusTransition
	}

	driver, err := s.userRepo.GetByID(ctx, req.Identity.UserID)
	if err != nil {
		return nil, err
	}

	rider, err := s.userRepo.GetByID(ctx, trip.RiderID)
	if err != nil {
		return nil, err
	}

	trip.DriverID = driver.ID
	trip.Driver = driver
	trip.Rider = rider
	trip.Status = req.Status
	trip.UpdatedAt = time.Now().UTC()

	if err := s.tripRepo.Update(ctx, trip); err != nil {
		return nil, err
	}

	s.cacheTrip(ctx, trip)

	return trip, nil
}

// TripIDsForUser returns the IDs of the identity's trips not in excludeStatus.
// Drivers see trips they drive; everyone else sees trips they ride.
func (s *TripService) TripIDsForUser(ctx context.Context, identity domain.Identity, excludeStatus domain.TripStatus) ([]string, error) {
	if identity.Anonymous || identity.UserID == "" {
		return nil, nil
	}

	if identity.IsDriver() {
		return s.tripRepo.ListIDsByDriver(ctx, identity.UserID, excludeStatus)
	}
	return s.tripRepo.ListIDsByRider(ctx, identity.UserID, excludeStatus)
}

// GetTrip retrieves a trip the identity takes part in.
// Trips of other users are reported as not found.
func (s *TripService) GetTrip(ctx context.Context, identity domain.Identity, tripID string) (*domain.Trip, error) {
	if tripID == "" {
		return nil, ErrInvalidTripID
	}

	trip := s.cachedTrip(ctx, tripID)
	if trip == nil {
		var err error
		trip, err = s.tripRepo.GetByID(ctx, tripID)
		if err != nil {
			return nil, err
		}
		if err := s.hydrate(ctx, trip, map[string]*domain.User{}); err != nil {
			return nil, err
		}
		s.cacheTrip(ctx, trip)
	}

	if !trip.HasParticipant(identity.UserID) {
		return nil, repository.ErrNotFound
	}

	return trip, nil
}

// ListTrips returns the most recent trips the identity takes part in.
func (s *TripService) ListTrips(ctx context.Context, identity domain.Identity) ([]*domain.Trip, error) {
	trips, err := s.tripRepo.ListByParticipant(ctx, identity.UserID)
	if err != nil {
		return nil, err
	}

	users := make(map[string]*domain.User)
	for _, trip := range trips {
		if err := s.hydrate(ctx, trip, users); err != nil {
			return nil, err
		}
	}

	return trips, nil
}

// hydrate loads the rider and driver of trip, reusing users already loaded.
func (s *TripService) hydrate(ctx context.Context, trip *domain.Trip, users map[string]*domain.User) error {
	load := func(id string) (*domain.User, error) {
		if u, ok := users[id]; ok {
			return u, nil
		}
		u, err := s.userRepo.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		users[id] = u
		return u, nil
	}

	rider, err := load(trip.RiderID)
	if err != nil {
		return err
	}
	trip.Rider = rider

	if trip.DriverID != "" {
		driver, err := load(trip.DriverID)
		if err != nil {
			return err
		}
		trip.Driver = driver
	}

	return nil
}

func (s *TripService) cachedTrip(ctx context.Context, tripID string) *domain.Trip {
	if s.cacheStore == nil {
		return nil
	}

	cached, err := s.cacheStore.GetTrip(ctx, tripID)
	if err != nil || cached == nil {
		return nil
	}
	return fromCachedTrip(cached)
}

func (s *TripService) cacheTrip(ctx context.Context, trip *domain.Trip) {
	if s.cacheStore == nil {
		return
	}

	if err := s.cacheStore.SetTrip(ctx, toCachedTrip(trip)); err != nil {
		log.Printf("[TRIP] failed to cache trip: trip=%s err=%v", trip.ID, err)
	}
}

func toCachedTrip(trip *domain.Trip) *redis.CachedTrip {
	return &redis.CachedTrip{
		ID:             trip.ID,
		PickUpAddress:  trip.PickUpAddress,
		DropOffAddress: trip.DropOffAddress,
		Status:         string(trip.Status),
		RiderID:        trip.RiderID,
		DriverID:       trip.DriverID,
		Rider:          toCachedUser(trip.Rider),
		Driver:         toCachedUser(trip.Driver),
		CreatedAt:      trip.CreatedAt,
		UpdatedAt:      trip.UpdatedAt,
	}
}

func fromCachedTrip(cached *redis.CachedTrip) *domain.Trip {
	return &domain.Trip{
		ID:             cached.ID,
		PickUpAddress:  cached.PickUpAddress,
		DropOffAddress: cached.DropOffAddress,
		Status:         domain.TripStatus(cached.Status),
		RiderID:        cached.RiderID,
		DriverID:       cached.DriverID,
		Rider:          fromCachedUser(cached.Rider),
		Driver:         fromCachedUser(cached.Driver),
		CreatedAt:      cached.CreatedAt,
		UpdatedAt:      cached.UpdatedAt,
	}
}

func toCachedUser(u *domain.User) *redis.CachedUser {
	if u == nil {
		return nil
	}
	return &redis.CachedUser{
		ID:        u.ID,
		Username:  u.Username,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Group:     string(u.Group),
	}
}

func fromCachedUser(u *redis.CachedUser) *domain.User {
	if u == nil {
		return nil
	}
	return &domain.User{
		ID:        u.ID,
		Username:  u.Username,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Group:     domain.UserGroup(u.Group),
	}
}
