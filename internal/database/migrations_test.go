package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrations(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	testDB := SetupTestDB(t)
	defer testDB.Cleanup(t)

	t.Run("all tables exist", func(t *testing.T) {
		expectedTables := []string{
			"users",
			"tickers",
			"transactions",
			"holdings",
			"portfolio_values",
			"portfolio_returns",
			"price_comparisons",
			"notifications",
		}

		for _, tableName := range expectedTables {
			var exists bool
			err := testDB.GetRawConn().QueryRow(`
				SELECT EXISTS (
					SELECT FROM information_schema.tables
					WHERE table_schema = 'public'
					AND table_name = $1
				)
			`, tableName).Scan(&exists)

			require.NoError(t, err, "failed to check table existence for %s", tableName)
			assert.True(t, exists, "table %s should exist", tableName)
		}
	})

	t.Run("holdings table has correct columns", func(t *testing.T) {
		expectedColumns := map[string]string{
			"id":                "integer",
			"username":          "character varying",
			"symbol":            "character varying",
			"quantity":          "numeric",
			"currency":          "character varying",
			"current_price":     "numeric",
			"current_price_hkd": "numeric",
			"total_value_hkd":   "numeric",
			"beta":              "numeric",
			"expected_return":   "numeric",
			"weighting":         "numeric",
			"updated_at":        "timestamp with time zone",
		}

		rows, err := testDB.GetRawConn().Query(`
			SELECT column_name, data_type
			FROM information_schema.columns
			WHERE table_name = 'holdings'
		`)
		require.NoError(t, err)
		defer rows.Close()

		actual := map[string]string{}
		for rows.Next() {
			var name, dataType string
			require.NoError(t, rows.Scan(&name, &dataType))
			actual[name] = dataType
		}
		assert.Equal(t, expectedColumns, actual)
	})

	t.Run("indexes exist", func(t *testing.T) {
		expectedIndexes := []struct {
			table string
			index string
		}{
			{"transactions", "idx_transactions_user_symbol"},
			{"portfolio_values", "idx_portfolio_values_user_time"},
			{"portfolio_returns", "idx_portfolio_returns_user_time"},
			{"notifications", "idx_notifications_user_time"},
		}

		for _, idx := range expectedIndexes {
			var exists bool
			err := testDB.GetRawConn().QueryRow(`
				SELECT EXISTS (
					SELECT FROM pg_indexes
					WHERE tablename = $1 AND indexname = $2
				)
			`, idx.table, idx.index).Scan(&exists)

			require.NoError(t, err)
			assert.True(t, exists, "index %s should exist on table %s", idx.index, idx.table)
		}
	})

	t.Run("holdings are unique per user and symbol", func(t *testing.T) {
		var exists bool
		err := testDB.GetRawConn().QueryRow(`
			SELECT EXISTS (
				SELECT FROM pg_constraint c
				JOIN pg_class t ON c.conrelid = t.oid
				WHERE t.relname = 'holdings'
				AND c.contype = 'u'
				AND c.conname = 'uq_holdings_user_symbol'
			)
		`).Scan(&exists)
		require.NoError(t, err)
		assert.True(t, exists)
	})

	t.Run("check constraints exist", func(t *testing.T) {
		for _, name := range []string{"chk_transactions_type", "chk_notifications_type", "chk_users_drop_threshold"} {
			var exists bool
			err := testDB.GetRawConn().QueryRow(`
				SELECT EXISTS (SELECT FROM pg_constraint WHERE contype = 'c' AND conname = $1)
			`, name).Scan(&exists)
			require.NoError(t, err)
			assert.True(t, exists, "check constraint %s should exist", name)
		}
	})

	t.Run("every foreign key cascades on delete", func(t *testing.T) {
		rows, err := testDB.GetRawConn().Query(`
			SELECT tc.table_name, rc.delete_rule
			FROM information_schema.referential_constraints rc
			JOIN information_schema.table_constraints tc
			  ON tc.constraint_name = rc.constraint_name
		`)
		require.NoError(t, err)
		defer rows.Close()

		count := 0
		for rows.Next() {
			var table, rule string
			require.NoError(t, rows.Scan(&table, &rule))
			assert.Equal(t, "CASCADE", rule, "foreign key on %s should cascade", table)
			count++
		}
		// six child tables; the two snapshot tables reference users only
		assert.Equal(t, 10, count)
	})
}
