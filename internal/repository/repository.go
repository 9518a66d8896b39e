package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Dan9191/winprob-gateway/internal/models"
	"github.com/lib/pq"
)

var (
	// ErrNotFound is returned when a lookup matches no row.
	ErrNotFound = errors.New("not found")
	// ErrDuplicate is returned when an insert violates a unique constraint.
	ErrDuplicate = errors.New("duplicate")
)

const uniqueViolation = "23505"

// Repository provides database operations
type Repository struct {
	db *sql.DB
}

// NewRepository initializes a new repository
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Ping checks the database connection
func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// CreateUser creates a new user in the database
func (r *Repository) CreateUser(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (username, password_hash)
		VALUES ($1, $2)
		RETURNING id, created_at`
	err := r.db.QueryRowContext(ctx, query, user.Username, user.PasswordHash).
		Scan(&user.ID, &user.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return fmt.Errorf("failed to create user: %w", ErrDuplicate)
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// FindUserByUsername retrieves a user by username
func (r *Repository) FindUserByUsername(ctx context.Context, username string) (*models.User, error) {
	user := &models.User{}
	query := `
		SELECT id, username, password_hash, created_at
		FROM users
		WHERE username = $1`
	err := r.db.QueryRowContext(ctx, query, username).
		Scan(&user.ID, &user.Username, &user.PasswordHash, &user.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	return user, nil
}

// CreatePredictionLog appends a prediction request to the audit log.
// JSONB cannot hold a \u0000 escape; Postgres rejects such payloads
// (SQLSTATE 22P05) and the error is returned like any other store failure.
func (r *Repository) CreatePredictionLog(ctx context.Context, entry *models.PredictionLog) error {
	if !json.Valid(entry.Payload) {
		return fmt.Errorf("failed to create prediction log: payload is not valid JSON")
	}
	query := `
		INSERT INTO prediction_logs (payload, created_at)
		VALUES ($1::jsonb, $2)
		RETURNING id`
	err := r.db.QueryRowContext(ctx, query, string(entry.Payload), entry.CreatedAt).Scan(&entry.ID)
	if err != nil {
		return fmt.Errorf("failed to create prediction log: %w", err)
	}
	return nil
}

// CountPredictionLogsBetween returns the number of prediction requests logged in [from, to)
func (r *Repository) CountPredictionLogsBetween(ctx context.Context, from, to time.Time) (int64, error) {
	var count int64
	query := `SELECT COUNT(*) FROM prediction_logs WHERE created_at >= $1 AND created_at < $2`
	if err := r.db.QueryRowContext(ctx, query, from, to).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count prediction logs: %w", err)
	}
	return count, nil
}
