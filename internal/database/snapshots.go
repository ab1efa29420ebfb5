package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/cindychow0101/Portfolio-tracker/internal/models"
)

// Snapshot tables
const (
	valueHistoryTable  = "portfolio_values"
	returnHistoryTable = "portfolio_returns"
)

// AppendValueSnapshots appends one portfolio value row per snapshot
func (db *DB) AppendValueSnapshots(ctx context.Context, snapshots []*models.Snapshot) error {
	return db.appendSnapshots(ctx, valueHistoryTable, snapshots)
}

// AppendReturnSnapshots appends one portfolio return row per snapshot
func (db *DB) AppendReturnSnapshots(ctx context.Context, snapshots []*models.Snapshot) error {
	return db.appendSnapshots(ctx, returnHistoryTable, snapshots)
}

func (db *DB) appendSnapshots(ctx context.Context, table string, snapshots []*models.Snapshot) error {
	if len(snapshots) == 0 {
		return nil
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(
		`INSERT INTO %s (username, value, recorded_at) VALUES ($1, $2, $3) RETURNING id`, table,
	))
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC().Truncate(time.Second)
	for _, s := range snapshots {
		if s.RecordedAt.IsZero() {
			s.RecordedAt = now
		}
		if err := stmt.QueryRowContext(ctx, s.Username, s.Value, s.RecordedAt).Scan(&s.ID); err != nil {
			return fmt.Errorf("failed to append %s snapshot for %s: %w", table, s.Username, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// LatestValueSnapshot returns the most recently appended value snapshot
func (db *DB) LatestValueSnapshot(ctx context.Context, username string) (*models.Snapshot, error) {
	return db.latestSnapshot(ctx, valueHistoryTable, username)
}

// LatestReturnSnapshot returns the most recently appended return snapshot
func (db *DB) LatestReturnSnapshot(ctx context.Context, username string) (*models.Snapshot, error) {
	return db.latestSnapshot(ctx, returnHistoryTable, username)
}

func (db *DB) latestSnapshot(ctx context.Context, table, username string) (*models.Snapshot, error) {
	query := fmt.Sprintf(`
		SELECT id, username, value, recorded_at
		FROM %s
		WHERE username = $1
		ORDER BY recorded_at DESC, id DESC
		LIMIT 1
	`, table)

	var s models.Snapshot
	err := db.conn.QueryRowContext(ctx, query, username).Scan(&s.ID, &s.Username, &s.Value, &s.RecordedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("no %s snapshot for %s: %w", table, username, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest snapshot: %w", err)
	}
	return &s, nil
}

// ValueHistory returns a user's value snapshots in append order
func (db *DB) ValueHistory(ctx context.Context, username string) ([]*models.Snapshot, error) {
	return db.history(ctx, valueHistoryTable, username)
}

// ReturnHistory returns a user's return snapshots in append order
func (db *DB) ReturnHistory(ctx context.Context, username string) ([]*models.Snapshot, error) {
	return db.history(ctx, returnHistoryTable, username)
}

func (db *DB) history(ctx context.Context, table, username string) ([]*models.Snapshot, error) {
	query := fmt.Sprintf(`
		SELECT id, username, value, recorded_at
		FROM %s
		WHERE username = $1
		ORDER BY recorded_at, id
	`, table)

	rows, err := db.conn.QueryContext(ctx, query, username)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", table, err)
	}
	defer rows.Close()

	var out []*models.Snapshot
	for rows.Next() {
		var s models.Snapshot
		if err := rows.Scan(&s.ID, &s.Username, &s.Value, &s.RecordedAt); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}
		out = append(out, &s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating snapshots: %w", err)
	}
	return out, nil
}
