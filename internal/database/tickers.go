package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/cindychow0101/Portfolio-tracker/internal/models"
)

// UpsertTicker inserts or refreshes a ticker's market facts
func (db *DB) UpsertTicker(ctx context.Context, t *models.Ticker) error {
	query := `
		INSERT INTO tickers (
			symbol, company_name, currency, current_price, beta, expected_return, last_updated
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (symbol) DO UPDATE SET
			company_name = EXCLUDED.company_name,
			currency = EXCLUDED.currency,
			current_price = EXCLUDED.current_price,
			beta = EXCLUDED.beta,
			expected_return = EXCLUDED.expected_return,
			last_updated = EXCLUDED.last_updated
	`
	if t.LastUpdated.IsZero() {
		t.LastUpdated = time.Now().UTC()
	}

	_, err := db.conn.ExecContext(ctx, query,
		t.Symbol, t.CompanyName, t.Currency, t.CurrentPrice,
		t.Beta, t.ExpectedReturn, t.LastUpdated,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert ticker %s: %w", t.Symbol, err)
	}
	return nil
}

// GetTicker retrieves a ticker by symbol
func (db *DB) GetTicker(ctx context.Context, symbol string) (*models.Ticker, error) {
	query := `
		SELECT symbol, company_name, currency, current_price, beta, expected_return, last_updated
		FROM tickers
		WHERE symbol = $1
	`
	var t models.Ticker
	err := db.conn.QueryRowContext(ctx, query, symbol).Scan(
		&t.Symbol, &t.CompanyName, &t.Currency, &t.CurrentPrice,
		&t.Beta, &t.ExpectedReturn, &t.LastUpdated,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("ticker %s: %w", symbol, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get ticker: %w", err)
	}
	return &t, nil
}

// ListTickers returns every known ticker ordered by symbol
func (db *DB) ListTickers(ctx context.Context) ([]*models.Ticker, error) {
	query := `
		SELECT symbol, company_name, currency, current_price, beta, expected_return, last_updated
		FROM tickers
		ORDER BY symbol
	`
	rows, err := db.conn.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query tickers: %w", err)
	}
	defer rows.Close()

	var tickers []*models.Ticker
	for rows.Next() {
		var t models.Ticker
		if err := rows.Scan(
			&t.Symbol, &t.CompanyName, &t.Currency, &t.CurrentPrice,
			&t.Beta, &t.ExpectedReturn, &t.LastUpdated,
		); err != nil {
			return nil, fmt.Errorf("failed to scan ticker: %w", err)
		}
		tickers = append(tickers, &t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tickers: %w", err)
	}
	return tickers, nil
}
