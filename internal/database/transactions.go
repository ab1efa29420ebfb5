package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/cindychow0101/Portfolio-tracker/internal/models"
	"github.com/shopspring/decimal"
)

// CreateTransaction appends an entry to the transaction log
func (db *DB) CreateTransaction(ctx context.Context, t *models.Transaction) error {
	query := `
		INSERT INTO transactions (
			username, symbol, transaction_type, quantity_change, currency,
			price, price_hkd, total_value_hkd, executed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id
	`
	if t.ExecutedAt.IsZero() {
		t.ExecutedAt = time.Now().UTC()
	}

	err := db.conn.QueryRowContext(ctx, query,
		t.Username, t.Symbol, t.Type, t.QuantityChange, t.Currency,
		t.Price, t.PriceHKD, t.TotalValueHKD, t.ExecutedAt,
	).Scan(&t.ID)
	if err != nil {
		return fmt.Errorf("failed to create transaction: %w", err)
	}
	return nil
}

// ListTransactions returns a user's transactions, oldest first
func (db *DB) ListTransactions(ctx context.Context, username string) ([]*models.Transaction, error) {
	query := `
		SELECT id, username, symbol, transaction_type, quantity_change, currency,
		       price, price_hkd, total_value_hkd, executed_at
		FROM transactions
		WHERE username = $1
		ORDER BY executed_at, id
	`
	return db.scanTransactions(db.conn.QueryContext(ctx, query, username))
}

func (db *DB) scanTransactions(rows *sql.Rows, err error) ([]*models.Transaction, error) {
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	var txs []*models.Transaction
	for rows.Next() {
		var t models.Transaction
		if err := rows.Scan(
			&t.ID, &t.Username, &t.Symbol, &t.Type, &t.QuantityChange, &t.Currency,
			&t.Price, &t.PriceHKD, &t.TotalValueHKD, &t.ExecutedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		txs = append(txs, &t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transactions: %w", err)
	}
	return txs, nil
}

// NetQuantity returns the signed sum of a user's deltas for one symbol
func (db *DB) NetQuantity(ctx context.Context, username, symbol string) (decimal.Decimal, error) {
	var qty decimal.Decimal
	err := db.conn.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(quantity_change), 0)
		FROM transactions
		WHERE username = $1 AND symbol = $2
	`, username, symbol).Scan(&qty)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to sum quantity: %w", err)
	}
	return qty, nil
}

// SumQuantities groups the whole transaction log by (user, symbol) and joins
// each group with the ticker's current market facts.
func (db *DB) SumQuantities(ctx context.Context) ([]*models.PositionAggregate, error) {
	query := `
		SELECT t.username, t.symbol, SUM(t.quantity_change) AS quantity,
		       k.currency, k.current_price, k.beta, k.expected_return
		FROM transactions t
		JOIN tickers k ON k.symbol = t.symbol
		GROUP BY t.username, t.symbol, k.currency, k.current_price, k.beta, k.expected_return
		ORDER BY t.username, t.symbol
	`
	rows, err := db.conn.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate transactions: %w", err)
	}
	defer rows.Close()

	var aggs []*models.PositionAggregate
	for rows.Next() {
		var a models.PositionAggregate
		if err := rows.Scan(
			&a.Username, &a.Symbol, &a.Quantity,
			&a.Currency, &a.CurrentPrice, &a.Beta, &a.ExpectedReturn,
		); err != nil {
			return nil, fmt.Errorf("failed to scan aggregate: %w", err)
		}
		aggs = append(aggs, &a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating aggregates: %w", err)
	}
	return aggs, nil
}
