package app

import (
	"context"
	"database/sql"
	"fmt"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id          TEXT PRIMARY KEY,
		username    TEXT NOT NULL UNIQUE,
		first_name  TEXT NOT NULL DEFAULT '',
		last_name   TEXT NOT NULL DEFAULT '',
		user_group  TEXT NOT NULL CHECK (user_group IN ('rider', 'driver')),
		created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS trips (
		id                TEXT PRIMARY KEY,
		pick_up_address   TEXT NOT NULL,
		drop_off_address  TEXT NOT NULL,
		status            TEXT NOT NULL,
		rider_id          TEXT NOT NULL REFERENCES users (id),
		driver_id         TEXT REFERENCES users (id),
		created_at        TIMESTAMPTZ NOT NULL,
		updated_at        TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS trips_rider_status_idx ON trips (rider_id, status)`,
	`CREATE INDEX IF NOT EXISTS trips_driver_status_idx ON trips (driver_id, status)`,
}

// EnsureSchema creates the users and trips tables if they do not exist.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	return nil
}
