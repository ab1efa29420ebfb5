package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/cindychow0101/Portfolio-tracker/internal/models"
)

const userColumns = `username, email, password_hash, notifications_enabled,
		       price_drop_threshold, price_rise_threshold, created_at`

// CreateUser inserts a new user. A taken username or email yields models.ErrConflict.
func (db *DB) CreateUser(ctx context.Context, u *models.User) error {
	query := `
		INSERT INTO users (
			username, email, password_hash, notifications_enabled,
			price_drop_threshold, price_rise_threshold, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}

	_, err := db.conn.ExecContext(ctx, query,
		u.Username, u.Email, u.PasswordHash, u.NotificationsEnabled,
		u.PriceDropThreshold, u.PriceRiseThreshold, u.CreatedAt,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("user %s: %w", u.Username, models.ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// GetUser retrieves a user by username
func (db *DB) GetUser(ctx context.Context, username string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE username = $1`
	return db.scanUser(db.conn.QueryRowContext(ctx, query, username), username)
}

func (db *DB) scanUser(row *sql.Row, key string) (*models.User, error) {
	var u models.User
	err := row.Scan(
		&u.Username, &u.Email, &u.PasswordHash, &u.NotificationsEnabled,
		&u.PriceDropThreshold, &u.PriceRiseThreshold, &u.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user %s: %w", key, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &u, nil
}

// UserExists reports whether the username is taken
func (db *DB) UserExists(ctx context.Context, username string) (bool, error) {
	var exists bool
	err := db.conn.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM users WHERE username = $1)`, username,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check user existence: %w", err)
	}
	return exists, nil
}

// EmailExists reports whether the email is registered
func (db *DB) EmailExists(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := db.conn.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM users WHERE email = $1)`, email,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check email existence: %w", err)
	}
	return exists, nil
}

// UpdatePreferences stores the user's notification toggle and thresholds
func (db *DB) UpdatePreferences(ctx context.Context, username string, p models.Preferences) error {
	query := `
		UPDATE users SET
			notifications_enabled = $2,
			price_drop_threshold = $3,
			price_rise_threshold = $4
		WHERE username = $1
	`
	result, err := db.conn.ExecContext(ctx, query,
		username, p.NotificationsEnabled, p.PriceDropThreshold, p.PriceRiseThreshold,
	)
	if err != nil {
		return fmt.Errorf("failed to update preferences: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("user %s: %w", username, models.ErrNotFound)
	}
	return nil
}
