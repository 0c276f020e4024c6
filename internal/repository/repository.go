package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/UnknownOlympus/nightspot/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrUserNotFound is returned when the requested user does not exist.
var ErrUserNotFound = errors.New("user not found")

// Database is the subset of pgxpool.Pool used by the repository.
// pgxmock pools satisfy it as well.
type Database interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Repository stores user profiles, favorites and authored places in PostgreSQL.
type Repository struct {
	db  Database
	log *slog.Logger
}

// Interface is the user/profile collaborator consumed by the place store.
type Interface interface {
	GetUser(ctx context.Context, userID string) (*models.User, error)
	AddFavorite(ctx context.Context, userID, placeID string) error
	RemoveFavorite(ctx context.Context, userID, placeID string) error
	SavePlace(ctx context.Context, userID string, place models.Place) error
	DeletePlace(ctx context.Context, userID, placeID string) error
}

// NewRepository creates a new instance of Repository with the provided Database.
// It returns a pointer to the newly created Repository.
func NewRepository(db Database, log *slog.Logger) *Repository {
	return &Repository{db: db, log: log}
}

// NewDatabase opens a connection pool to PostgreSQL and verifies it with a ping.
func NewDatabase(host, port, user, password, name string) (*pgxpool.Pool, error) {
	dsn := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable", user, password, host, port, name)

	pool, err := pgxpool.New(context.Background(), dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err = pool.Ping(context.Background()); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return pool, nil
}
