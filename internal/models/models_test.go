package models

import (
	"errors"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignedQuantity(t *testing.T) {
	four := decimal.NewFromInt(4)

	assert.True(t, SignedQuantity(TransactionLong, four).Equal(four))
	assert.True(t, SignedQuantity(TransactionShort, four).Equal(four.Neg()))
	// Already-negative input is normalised rather than double negated.
	assert.True(t, SignedQuantity(TransactionShort, four.Neg()).Equal(four.Neg()))
}

func TestIsValidTransactionType(t *testing.T) {
	assert.True(t, IsValidTransactionType("long"))
	assert.True(t, IsValidTransactionType("short"))
	assert.False(t, IsValidTransactionType("LONG"))
	assert.False(t, IsValidTransactionType(""))
}

func TestPreferencesValidate(t *testing.T) {
	testCases := []struct {
		name    string
		drop    string
		rise    string
		wantErr string
	}{
		{"defaults", "5", "5", ""},
		{"bounds inclusive", "0", "100", ""},
		{"negative drop", "-1", "5", "price_drop_threshold"},
		{"rise above 100", "5", "100.5", "price_rise_threshold"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			p := Preferences{
				PriceDropThreshold: decimal.RequireFromString(tc.drop),
				PriceRiseThreshold: decimal.RequireFromString(tc.rise),
			}
			err := p.Validate()
			if tc.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrValidation))
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestValidationErrorWrapping(t *testing.T) {
	err := fmt.Errorf("failed to record transaction: %w", NewValidationError("quantity", "must be a positive whole number"))

	assert.ErrorIs(t, err, ErrValidation)
	assert.NotErrorIs(t, err, ErrNotFound)

	var ve *ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, "quantity", ve.Field)
	assert.Equal(t, "quantity: must be a positive whole number", ve.Error())
}

func TestUserPreferences(t *testing.T) {
	u := &User{
		NotificationsEnabled: true,
		PriceDropThreshold:   decimal.NewFromInt(10),
		PriceRiseThreshold:   decimal.NewFromInt(20),
	}

	p := u.Preferences()
	assert.True(t, p.NotificationsEnabled)
	assert.True(t, p.PriceDropThreshold.Equal(decimal.NewFromInt(10)))
	assert.True(t, p.PriceRiseThreshold.Equal(decimal.NewFromInt(20)))
}
