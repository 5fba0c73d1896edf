package repository

import (
	"context"
	"database/sql"
	"time"

	"touch_thermostat/internal/models"
)

// Authorization stores operator accounts.
type Authorization interface {
	Create(ctx context.Context, username, hash string) (int, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
}

// EventRepo is the append-only audit log. Controller state itself is never stored.
type EventRepo interface {
	Append(ctx context.Context, e models.ThermostatEvent) error
	List(ctx context.Context, from, to time.Time, typ string) ([]models.ThermostatEvent, error)
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type Repository struct {
	EventRepo EventRepo
	Auth      Authorization
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{
		EventRepo: NewEventSQLite(db),
		Auth:      NewUserRepository(db),
	}
}
