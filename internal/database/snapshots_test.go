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

func TestSnapshotsRepository(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	testDB := SetupTestDB(t)
	defer testDB.Cleanup(t)
	ctx := context.Background()

	t.Run("latest value snapshot is the one just appended", func(t *testing.T) {
		testDB.TruncateAll(t)
		testDB.seedUser(t, "alice")

		first := &models.Snapshot{Username: "alice", Value: decimal.NewNullDecimal(decimal.NewFromInt(1000))}
		require.NoError(t, testDB.AppendValueSnapshots(ctx, []*models.Snapshot{first}))

		second := &models.Snapshot{Username: "alice", Value: decimal.NewNullDecimal(decimal.NewFromInt(1250))}
		require.NoError(t, testDB.AppendValueSnapshots(ctx, []*models.Snapshot{second}))

		latest, err := testDB.LatestValueSnapshot(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, second.ID, latest.ID)
		assert.True(t, decimal.NewFromInt(1250).Equal(latest.Value.Decimal))
		assert.False(t, latest.RecordedAt.Before(first.RecordedAt))
	})

	t.Run("appends never overwrite, even within the same second", func(t *testing.T) {
		testDB.TruncateAll(t)
		testDB.seedUser(t, "alice")
		at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

		for i := 0; i < 2; i++ {
			require.NoError(t, testDB.AppendReturnSnapshots(ctx, []*models.Snapshot{{
				Username:   "alice",
				Value:      decimal.NewNullDecimal(decimal.NewFromFloat(7.5)),
				RecordedAt: at,
			}}))
		}

		history, err := testDB.ReturnHistory(ctx, "alice")
		require.NoError(t, err)
		require.Len(t, history, 2)
		assert.True(t, history[0].RecordedAt.Equal(history[1].RecordedAt))
		assert.Less(t, history[0].ID, history[1].ID)
	})

	t.Run("NULL snapshot value is preserved", func(t *testing.T) {
		testDB.TruncateAll(t)
		testDB.seedUser(t, "alice")

		require.NoError(t, testDB.AppendValueSnapshots(ctx, []*models.Snapshot{{Username: "alice"}}))

		history, err := testDB.ValueHistory(ctx, "alice")
		require.NoError(t, err)
		require.Len(t, history, 1)
		assert.False(t, history[0].Value.Valid)
	})

	t.Run("latest snapshot for unknown user is not found", func(t *testing.T) {
		testDB.TruncateAll(t)

		_, err := testDB.LatestReturnSnapshot(ctx, "ghost")
		assert.ErrorIs(t, err, models.ErrNotFound)
	})
}
