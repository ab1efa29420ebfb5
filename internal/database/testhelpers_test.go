package database

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/cindychow0101/Portfolio-tracker/internal/models"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/shopspring/decimal"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// TestDB wraps a test database connection with cleanup
type TestDB struct {
	*DB
	container testcontainers.Container
	connStr   string
}

// SetupTestDB creates a new PostgreSQL container and returns a migrated DB
func SetupTestDB(t *testing.T) *TestDB {
	t.Helper()
	ctx := context.Background()

	pgContainer, err := tcpostgres.Run(ctx,
		"postgres:15-alpine",
		tcpostgres.WithDatabase("testdb"),
		tcpostgres.WithUsername("testuser"),
		tcpostgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("failed to get connection string: %v", err)
	}

	db, err := New(connStr)
	if err != nil {
		t.Fatalf("failed to connect to test database: %v", err)
	}

	testDB := &TestDB{
		DB:        db,
		container: pgContainer,
		connStr:   connStr,
	}

	if err := testDB.RunMigrations(); err != nil {
		testDB.Cleanup(t)
		t.Fatalf("failed to run migrations: %v", err)
	}

	return testDB
}

// RunMigrations applies the migrations from disk, the way an operator would
func (tdb *TestDB) RunMigrations() error {
	driver, err := postgres.WithInstance(tdb.conn, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	_, filename, _, _ := runtime.Caller(0)
	migrationsPath := filepath.Join(filepath.Dir(filename), "..", "..", "db", "migrations")

	m, err := migrate.NewWithDatabaseInstance(
		"file://"+migrationsPath,
		"postgres",
		driver,
	)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// Cleanup closes the database connection and terminates the container
func (tdb *TestDB) Cleanup(t *testing.T) {
	t.Helper()
	ctx := context.Background()

	if tdb.DB != nil {
		tdb.DB.Close()
	}

	if tdb.container != nil {
		if err := tdb.container.Terminate(ctx); err != nil {
			t.Errorf("failed to terminate container: %v", err)
		}
	}
}

// TruncateAll truncates all tables for test isolation
func (tdb *TestDB) TruncateAll(t *testing.T) {
	t.Helper()

	tables := append([]string{}, resettableTables...)
	tables = append(tables, "users")

	for _, table := range tables {
		_, err := tdb.conn.Exec(fmt.Sprintf("TRUNCATE TABLE %s CASCADE", table))
		if err != nil {
			t.Fatalf("failed to truncate table %s: %v", table, err)
		}
	}
}

// GetRawConn returns the underlying sql.DB for direct queries in tests
func (tdb *TestDB) GetRawConn() *sql.DB {
	return tdb.conn
}

// countRows returns the number of rows in table
func (tdb *TestDB) countRows(t *testing.T, table string) int {
	t.Helper()
	var n int
	if err := tdb.conn.QueryRow(fmt.Sprintf("SELECT COUNT(*) FROM %s", table)).Scan(&n); err != nil {
		t.Fatalf("failed to count %s: %v", table, err)
	}
	return n
}

// seedUser inserts a user with default thresholds
func (tdb *TestDB) seedUser(t *testing.T, username string) *models.User {
	t.Helper()
	u := &models.User{
		Username:           username,
		Email:              username + "@example.com",
		PasswordHash:       "hash",
		PriceDropThreshold: models.DefaultThreshold,
		PriceRiseThreshold: models.DefaultThreshold,
	}
	if err := tdb.CreateUser(context.Background(), u); err != nil {
		t.Fatalf("failed to seed user %s: %v", username, err)
	}
	return u
}

// seedTicker inserts a USD ticker at the given price
func (tdb *TestDB) seedTicker(t *testing.T, symbol string, price float64) *models.Ticker {
	t.Helper()
	tk := &models.Ticker{
		Symbol:       symbol,
		CompanyName:  symbol + " Inc.",
		Currency:     "USD",
		CurrentPrice: decimal.NewFromFloat(price),
	}
	if err := tdb.UpsertTicker(context.Background(), tk); err != nil {
		t.Fatalf("failed to seed ticker %s: %v", symbol, err)
	}
	return tk
}

// seedTransaction appends a transaction with a signed delta
func (tdb *TestDB) seedTransaction(t *testing.T, username, symbol, txType string, qty int64, price float64, at time.Time) *models.Transaction {
	t.Helper()
	tx := &models.Transaction{
		Username:       username,
		Symbol:         symbol,
		Type:           txType,
		QuantityChange: models.SignedQuantity(txType, decimal.NewFromInt(qty)),
		Currency:       "USD",
		Price:          decimal.NewFromFloat(price),
		ExecutedAt:     at,
	}
	if err := tdb.CreateTransaction(context.Background(), tx); err != nil {
		t.Fatalf("failed to seed transaction: %v", err)
	}
	return tx
}
