package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/cindychow0101/Portfolio-tracker/internal/models"
)

const holdingColumns = `id, username, symbol, quantity, currency, current_price,
		       current_price_hkd, total_value_hkd, beta, expected_return, weighting, updated_at`

// ReplaceAllHoldings swaps the whole holdings table for the given rows in a
// single transaction. Readers never observe a half-rebuilt table.
func (db *DB) ReplaceAllHoldings(ctx context.Context, holdings []*models.Holding) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM holdings`); err != nil {
		return fmt.Errorf("failed to delete existing holdings: %w", err)
	}

	query := `
		INSERT INTO holdings (
			username, symbol, quantity, currency, current_price, current_price_hkd,
			total_value_hkd, beta, expected_return, weighting, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id
	`
	now := time.Now().UTC()
	for _, h := range holdings {
		err := tx.QueryRowContext(ctx, query,
			h.Username, h.Symbol, h.Quantity, h.Currency, h.CurrentPrice, h.CurrentPriceHKD,
			h.TotalValueHKD, h.Beta, h.ExpectedReturn, h.Weighting, now,
		).Scan(&h.ID)
		if err != nil {
			return fmt.Errorf("failed to insert holding %s/%s: %w", h.Username, h.Symbol, err)
		}
		h.UpdatedAt = now
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// ListHoldingsByUser returns one user's holdings ordered by symbol
func (db *DB) ListHoldingsByUser(ctx context.Context, username string) ([]*models.Holding, error) {
	query := `SELECT ` + holdingColumns + ` FROM holdings WHERE username = $1 ORDER BY symbol`
	return db.scanHoldings(db.conn.QueryContext(ctx, query, username))
}

func (db *DB) scanHoldings(rows *sql.Rows, err error) ([]*models.Holding, error) {
	if err != nil {
		return nil, fmt.Errorf("failed to query holdings: %w", err)
	}
	defer rows.Close()

	var holdings []*models.Holding
	for rows.Next() {
		var h models.Holding
		if err := rows.Scan(
			&h.ID, &h.Username, &h.Symbol, &h.Quantity, &h.Currency, &h.CurrentPrice,
			&h.CurrentPriceHKD, &h.TotalValueHKD, &h.Beta, &h.ExpectedReturn, &h.Weighting, &h.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan holding: %w", err)
		}
		holdings = append(holdings, &h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating holdings: %w", err)
	}
	return holdings, nil
}

// UpdateHoldingWeights writes the given weightings in one transaction.
// Rows not named keep their current weighting.
func (db *DB) UpdateHoldingWeights(ctx context.Context, weights []models.HoldingWeight) error {
	if len(weights) == 0 {
		return nil
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		UPDATE holdings SET weighting = $3
		WHERE username = $1 AND symbol = $2
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, w := range weights {
		if _, err := stmt.ExecContext(ctx, w.Username, w.Symbol, w.Weighting); err != nil {
			return fmt.Errorf("failed to update weighting for %s/%s: %w", w.Username, w.Symbol, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
