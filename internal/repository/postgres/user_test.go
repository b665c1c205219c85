package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"taxi/internal/domain"
	"taxi/internal/repository"
)

func TestUserRepository_GetByID(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	repo := NewUserRepository(db)
	now := time.Now()

	mock.ExpectQuery(`SELECT id, username, first_name, last_name, user_group, created_at FROM users`).
		WithArgs("driver-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "username", "first_name", "last_name", "user_group", "created_at"}).
			AddRow("driver-1", "bob", "Bob", "Smith", "driver", now))

	user, err := repo.GetByID(context.Background(), "driver-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if user.Username != "bob" || user.Group != domain.UserGroupDriver {
		t.Errorf("unexpected user: %+v", user)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestUserRepository_GetByID_NotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery(`SELECT id, username`).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"id", "username", "first_name", "last_name", "user_group", "created_at"}))

	_, err = NewUserRepository(db).GetByID(context.Background(), "missing")

	if !errors.Is(err, repository.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
