package repository

import (
	"context"

	"taxi/internal/domain"
)

// UserRepository defines the read operations for riders and drivers.
type UserRepository interface {
	// GetByID retrieves a user by ID.
	GetByID(ctx context.Context, id string) (*domain.User, error)
}
