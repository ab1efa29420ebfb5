package database

import (
	"context"
	"testing"
	"time"

	"github.com/cindychow0101/Portfolio-tracker/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransactionsRepository(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	testDB := SetupTestDB(t)
	defer testDB.Cleanup(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	t.Run("CreateTransaction assigns an id", func(t *testing.T) {
		testDB.TruncateAll(t)
		testDB.seedUser(t, "alice")
		testDB.seedTicker(t, "AAPL", 150)

		tx := &models.Transaction{
			Username:       "alice",
			Symbol:         "AAPL",
			Type:           models.TransactionLong,
			QuantityChange: decimal.NewFromInt(10),
			Currency:       "USD",
			Price:          decimal.NewFromInt(150),
			PriceHKD:       decimal.NewNullDecimal(decimal.NewFromFloat(1170.00)),
			TotalValueHKD:  decimal.NewNullDecimal(decimal.NewFromFloat(11700.00)),
		}
		require.NoError(t, testDB.CreateTransaction(ctx, tx))
		assert.NotZero(t, tx.ID)
		assert.False(t, tx.ExecutedAt.IsZero())
	})

	t.Run("CreateTransaction rejects unknown direction", func(t *testing.T) {
		testDB.TruncateAll(t)
		testDB.seedUser(t, "alice")
		testDB.seedTicker(t, "AAPL", 150)

		err := testDB.CreateTransaction(ctx, &models.Transaction{
			Username: "alice", Symbol: "AAPL", Type: "sideways",
			QuantityChange: decimal.NewFromInt(1), Currency: "USD", Price: decimal.NewFromInt(1),
		})
		require.Error(t, err)
	})

	t.Run("ListTransactions returns oldest first", func(t *testing.T) {
		testDB.TruncateAll(t)
		testDB.seedUser(t, "alice")
		testDB.seedTicker(t, "AAPL", 150)
		testDB.seedTransaction(t, "alice", "AAPL", models.TransactionShort, 4, 160, base.Add(time.Hour))
		testDB.seedTransaction(t, "alice", "AAPL", models.TransactionLong, 10, 150, base)

		txs, err := testDB.ListTransactions(ctx, "alice")
		require.NoError(t, err)
		require.Len(t, txs, 2)
		assert.Equal(t, models.TransactionLong, txs[0].Type)
		assert.True(t, decimal.NewFromInt(-4).Equal(txs[1].QuantityChange))
		assert.False(t, txs[0].PriceHKD.Valid)
	})

	t.Run("NetQuantity sums signed deltas", func(t *testing.T) {
		testDB.TruncateAll(t)
		testDB.seedUser(t, "alice")
		testDB.seedTicker(t, "AAPL", 150)
		testDB.seedTransaction(t, "alice", "AAPL", models.TransactionLong, 10, 150, base)
		testDB.seedTransaction(t, "alice", "AAPL", models.TransactionShort, 4, 160, base.Add(time.Hour))

		qty, err := testDB.NetQuantity(ctx, "alice", "AAPL")
		require.NoError(t, err)
		assert.True(t, decimal.NewFromInt(6).Equal(qty))

		qty, err = testDB.NetQuantity(ctx, "alice", "MSFT")
		require.NoError(t, err)
		assert.True(t, qty.IsZero())
	})

	t.Run("SumQuantities groups by user and symbol", func(t *testing.T) {
		testDB.TruncateAll(t)
		testDB.seedUser(t, "alice")
		testDB.seedUser(t, "bob")
		testDB.seedTicker(t, "AAPL", 150)
		testDB.seedTicker(t, "MSFT", 400)
		testDB.seedTransaction(t, "alice", "AAPL", models.TransactionLong, 10, 150, base)
		testDB.seedTransaction(t, "alice", "AAPL", models.TransactionShort, 4, 160, base.Add(time.Hour))
		testDB.seedTransaction(t, "alice", "MSFT", models.TransactionLong, 2, 390, base)
		testDB.seedTransaction(t, "alice", "MSFT", models.TransactionShort, 2, 395, base.Add(time.Hour))
		testDB.seedTransaction(t, "bob", "AAPL", models.TransactionLong, 3, 149, base)

		aggs, err := testDB.SumQuantities(ctx)
		require.NoError(t, err)
		require.Len(t, aggs, 3)

		assert.Equal(t, "alice", aggs[0].Username)
		assert.Equal(t, "AAPL", aggs[0].Symbol)
		assert.True(t, decimal.NewFromInt(6).Equal(aggs[0].Quantity))
		assert.True(t, decimal.NewFromInt(150).Equal(aggs[0].CurrentPrice))
		assert.Equal(t, "USD", aggs[0].Currency)

		assert.Equal(t, "MSFT", aggs[1].Symbol)
		assert.True(t, aggs[1].Quantity.IsZero(), "zero groups are reported; the rebuild drops them")

		assert.Equal(t, "bob", aggs[2].Username)
		assert.True(t, decimal.NewFromInt(3).Equal(aggs[2].Quantity))
	})

	t.Run("deleting a user cascades to transactions", func(t *testing.T) {
		testDB.TruncateAll(t)
		testDB.seedUser(t, "alice")
		testDB.seedTicker(t, "AAPL", 150)
		testDB.seedTransaction(t, "alice", "AAPL", models.TransactionLong, 1, 150, base)

		_, err := testDB.GetRawConn().Exec(`DELETE FROM users WHERE username = 'alice'`)
		require.NoError(t, err)

		txs, err := testDB.ListTransactions(ctx, "alice")
		require.NoError(t, err)
		assert.Empty(t, txs)
	})
}
