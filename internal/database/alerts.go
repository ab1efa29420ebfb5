package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/cindychow0101/Portfolio-tracker/internal/models"
)

// LatestLongPrices builds the comparison working set: for every currently held
// (user, symbol) pair the price of the most recent long transaction, joined
// with the user's current preferences and the ticker's current price.
// Threshold levels are left for the caller to compute.
func (db *DB) LatestLongPrices(ctx context.Context) ([]*models.PriceComparison, error) {
	query := `
		WITH ranked AS (
			SELECT username, symbol, price,
			       ROW_NUMBER() OVER (
			           PARTITION BY username, symbol
			           ORDER BY executed_at DESC, id DESC
			       ) AS rn
			FROM transactions
			WHERE transaction_type = 'long'
		)
		SELECT r.username, r.symbol, u.email, r.price, k.current_price,
		       u.notifications_enabled, u.price_drop_threshold, u.price_rise_threshold,
		       pc.last_notified_at
		FROM ranked r
		JOIN holdings h ON h.username = r.username AND h.symbol = r.symbol
		JOIN users u ON u.username = r.username
		JOIN tickers k ON k.symbol = r.symbol
		LEFT JOIN price_comparisons pc ON pc.username = r.username AND pc.symbol = r.symbol
		WHERE r.rn = 1
		ORDER BY r.username, r.symbol
	`
	rows, err := db.conn.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query latest long prices: %w", err)
	}
	defer rows.Close()

	var out []*models.PriceComparison
	for rows.Next() {
		var pc models.PriceComparison
		var lastNotified sql.NullTime
		if err := rows.Scan(
			&pc.Username, &pc.Symbol, &pc.Email, &pc.LastLongPrice, &pc.CurrentPrice,
			&pc.NotificationsEnabled, &pc.PriceDropThreshold, &pc.PriceRiseThreshold,
			&lastNotified,
		); err != nil {
			return nil, fmt.Errorf("failed to scan latest long price: %w", err)
		}
		if lastNotified.Valid {
			pc.LastNotifiedAt = &lastNotified.Time
		}
		out = append(out, &pc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating latest long prices: %w", err)
	}
	return out, nil
}

// PruneComparisons deletes comparison rows for pairs the user no longer holds
// and returns how many were removed.
func (db *DB) PruneComparisons(ctx context.Context) (int64, error) {
	result, err := db.conn.ExecContext(ctx, `
		DELETE FROM price_comparisons pc
		WHERE NOT EXISTS (
			SELECT 1 FROM holdings h
			WHERE h.username = pc.username AND h.symbol = pc.symbol
		)
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to prune price comparisons: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rows, nil
}

// UpsertPriceComparison stores the comparison row for a (user, symbol) pair.
// last_notified_at is only changed by MarkNotified.
func (db *DB) UpsertPriceComparison(ctx context.Context, pc *models.PriceComparison) error {
	query := `
		INSERT INTO price_comparisons (
			username, symbol, last_long_price, current_price, notifications_enabled,
			price_drop_threshold, price_rise_threshold,
			price_drop_threshold_value, price_rise_threshold_value, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (username, symbol) DO UPDATE SET
			last_long_price = EXCLUDED.last_long_price,
			current_price = EXCLUDED.current_price,
			notifications_enabled = EXCLUDED.notifications_enabled,
			price_drop_threshold = EXCLUDED.price_drop_threshold,
			price_rise_threshold = EXCLUDED.price_rise_threshold,
			price_drop_threshold_value = EXCLUDED.price_drop_threshold_value,
			price_rise_threshold_value = EXCLUDED.price_rise_threshold_value,
			updated_at = EXCLUDED.updated_at
	`
	if pc.UpdatedAt.IsZero() {
		pc.UpdatedAt = time.Now().UTC()
	}
	_, err := db.conn.ExecContext(ctx, query,
		pc.Username, pc.Symbol, pc.LastLongPrice, pc.CurrentPrice, pc.NotificationsEnabled,
		pc.PriceDropThreshold, pc.PriceRiseThreshold,
		pc.PriceDropThresholdValue, pc.PriceRiseThresholdValue, pc.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert price comparison %s/%s: %w", pc.Username, pc.Symbol, err)
	}
	return nil
}

// ListPriceComparisons returns a user's stored comparison rows with the
// threshold levels computed by the last cycle.
func (db *DB) ListPriceComparisons(ctx context.Context, username string) ([]*models.PriceComparison, error) {
	query := `
		SELECT pc.username, pc.symbol, u.email, pc.last_long_price, pc.current_price,
		       pc.notifications_enabled, pc.price_drop_threshold, pc.price_rise_threshold,
		       pc.price_drop_threshold_value, pc.price_rise_threshold_value,
		       pc.last_notified_at, pc.updated_at
		FROM price_comparisons pc
		JOIN users u ON u.username = pc.username
		WHERE pc.username = $1
		ORDER BY pc.symbol
	`
	rows, err := db.conn.QueryContext(ctx, query, username)
	if err != nil {
		return nil, fmt.Errorf("failed to query price comparisons: %w", err)
	}
	defer rows.Close()

	var out []*models.PriceComparison
	for rows.Next() {
		var pc models.PriceComparison
		var lastNotified sql.NullTime
		if err := rows.Scan(
			&pc.Username, &pc.Symbol, &pc.Email, &pc.LastLongPrice, &pc.CurrentPrice,
			&pc.NotificationsEnabled, &pc.PriceDropThreshold, &pc.PriceRiseThreshold,
			&pc.PriceDropThresholdValue, &pc.PriceRiseThresholdValue,
			&lastNotified, &pc.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan price comparison: %w", err)
		}
		if lastNotified.Valid {
			pc.LastNotifiedAt = &lastNotified.Time
		}
		out = append(out, &pc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating price comparisons: %w", err)
	}
	return out, nil
}

// MarkNotified records when an alert for the pair was last delivered
func (db *DB) MarkNotified(ctx context.Context, username, symbol string, at time.Time) error {
	result, err := db.conn.ExecContext(ctx, `
		UPDATE price_comparisons SET last_notified_at = $3
		WHERE username = $1 AND symbol = $2
	`, username, symbol, at)
	if err != nil {
		return fmt.Errorf("failed to mark notified: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("price comparison %s/%s: %w", username, symbol, models.ErrNotFound)
	}
	return nil
}

// CreateNotification appends a delivered-alert audit record
func (db *DB) CreateNotification(ctx context.Context, n *models.Notification) error {
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	err := db.conn.QueryRowContext(ctx, `
		INSERT INTO notifications (username, symbol, notification_type, created_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`, n.Username, n.Symbol, n.Type, n.CreatedAt).Scan(&n.ID)
	if err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}
	return nil
}

// ListNotifications returns a user's notifications, newest first
func (db *DB) ListNotifications(ctx context.Context, username string) ([]*models.Notification, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, username, symbol, notification_type, created_at
		FROM notifications
		WHERE username = $1
		ORDER BY created_at DESC, id DESC
	`, username)
	if err != nil {
		return nil, fmt.Errorf("failed to query notifications: %w", err)
	}
	defer rows.Close()

	var out []*models.Notification
	for rows.Next() {
		var n models.Notification
		if err := rows.Scan(&n.ID, &n.Username, &n.Symbol, &n.Type, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		out = append(out, &n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating notifications: %w", err)
	}
	return out, nil
}
