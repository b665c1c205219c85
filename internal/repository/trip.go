package repository

import (
	"context"

	"taxi/internal/domain"
)

// TripRepository defines the persistence operations for trips.
type TripRepository interface {
	// Create persists a new trip.
	Create(ctx context.Context, trip *domain.Trip) error

	// GetByID retrieves a trip by ID.
	GetByID(ctx context.Context, id string) (*domain.Trip, error)

	// Update updates the status and driver of an existing trip.
	Update(ctx context.Context, trip *domain.Trip) error

	// ListIDsByRider returns the IDs of the rider's trips whose status is not excludeStatus.
	ListIDsByRider(ctx context.Context, riderID string, excludeStatus domain.TripStatus) ([]string, error)

	// ListIDsByDriver returns the IDs of the driver's trips whose status is not excludeStatus.
	ListIDsByDriver(ctx context.Context, driverID string, excludeStatus domain.TripStatus) ([]string, error)

	// ListByParticipant returns the most recent trips where userID is rider or driver.
	ListByParticipant(ctx context.Context, userID string) ([]*domain.Trip, error)
}
