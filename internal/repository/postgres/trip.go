package postgres

import (
	"context"
	"database/sql"
	"errors"

	"taxi/internal/domain"
	"taxi/internal/repository"
)

const tripColumns = `id, pick_up_address, drop_off_address, status, rider_id, driver_id, created_at, updated_at`

// TripRepository is a PostgreSQL implementation of repository.TripRepository.
type TripRepository struct {
	q Querier
}

// NewTripRepository creates a new PostgreSQL trip repository.
func NewTripRepository(db *sql.DB) *TripRepository {
	return &TripRepository{q: db}
}

// Create persists a new trip.
func (r *TripRepository) Create(ctx context.Context, trip *domain.Trip) error {
	query := `
		INSERT INTO trips (` + tripColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := r.q.ExecContext(ctx, query,
		trip.ID,
		trip.PickUpAddress,
		trip.DropOffAddress,
		trip.Status,
		trip.RiderID,
		nullString(trip.DriverID),
		trip.CreatedAt,
		trip.UpdatedAt,
	)

	return err
}

// GetByID retrieves a trip by ID.
func (r *TripRepository) GetByID(ctx context.Context, id string) (*domain.Trip, error) {
	query := `SELECT ` + tripColumns + ` FROM trips WHERE id = $1`

	trip, err := scanTrip(r.q.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}

	return trip, nil
}

// Update updates the status and driver of an existing trip.
func (r *TripRepository) Update(ctx context.Context, trip *domain.Trip) error {
	query := `
		UPDATE trips
		SET status = $1, driver_id = $2, updated_at = $3
		WHERE id = $4
	`

	result, err := r.q.ExecContext(ctx, query,
		trip.Status,
		nullString(trip.DriverID),
		trip.UpdatedAt,
		trip.ID,
	)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// ListIDsByRider returns the IDs of the rider's trips whose status is not excludeStatus.
func (r *TripRepository) ListIDsByRider(ctx context.Context, riderID string, excludeStatus domain.TripStatus) ([]string, error) {
	query := `SELECT id FROM trips WHERE rider_id = $1 AND status != $2 ORDER BY created_at`
	return r.listIDs(ctx, query, riderID, excludeStatus)
}

// ListIDsByDriver returns the IDs of the driver's trips whose status is not excludeStatus.
func (r *TripRepository) ListIDsByDriver(ctx context.Context, driverID string, excludeStatus domain.TripStatus) ([]string, error) {
	query := `SELECT id FROM trips WHERE driver_id = $1 AND status != $2 ORDER BY created_at`
	return r.listIDs(ctx, query, driverID, excludeStatus)
}

// ListByParticipant returns the most recent trips where userID is rider or driver.
func (r *TripRepository) ListByParticipant(ctx context.Context, userID string) ([]*domain.Trip, error) {
	query := `
		SELECT ` + tripColumns + `
		FROM trips
		WHERE rider_id = $1 OR driver_id = $1
		ORDER BY created_at DESC LIMIT 100
	`

	rows, err := r.q.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var trips []*domain.Trip
	for rows.Next() {
		trip, err := scanTrip(rows)
		if err != nil {
			return nil, err
		}
		trips = append(trips, trip)
	}

	return trips, rows.Err()
}

func (r *TripRepository) listIDs(ctx context.Context, query, userID string, excludeStatus domain.TripStatus) ([]string, error) {
	rows, err := r.q.QueryContext(ctx, query, userID, excludeStatus)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	return ids, rows.Err()
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanTrip(row rowScanner) (*domain.Trip, error) {
	var trip domain.Trip
	var driverID sql.NullString

	err := row.Scan(
		&trip.ID,
		&trip.PickUpAddress,
		&trip.DropOffAddress,
		&trip.Status,
		&trip.RiderID,
		&driverID,
		&trip.CreatedAt,
		&trip.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if driverID.Valid {
		trip.DriverID = driverID.String
	}

	return &trip, nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// Ensure TripRepository implements repository.TripRepository.
var _ repository.TripRepository = (*TripRepository)(nil)
