package database

import (
	"context"
	"fmt"
)

// resettableTables lists every table except users, children before parents.
var resettableTables = []string{
	"notifications",
	"price_comparisons",
	"portfolio_returns",
	"portfolio_values",
	"holdings",
	"transactions",
	"tickers",
}

// ClearAllExceptUsers empties every table but users in one transaction.
func (db *DB) ClearAllExceptUsers(ctx context.Context) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, table := range resettableTables {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("failed to clear table %s: %w", table, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
