// Package fx converts monetary amounts into the reporting currency.
package fx

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// ErrConversion is returned when no rate is available for a currency pair.
var ErrConversion = errors.New("currency conversion unavailable")

// Converter converts an amount between two ISO currency codes
type Converter interface {
	Convert(ctx context.Context, amount decimal.Decimal, from, to string) (decimal.Decimal, error)
}

// ConvertOrNull converts amount and maps any failure to a NULL value.
// Aggregations downstream skip NULLs instead of failing the batch.
func ConvertOrNull(ctx context.Context, c Converter, amount decimal.Decimal, from, to string, log zerolog.Logger) decimal.NullDecimal {
	if strings.EqualFold(from, to) {
		return decimal.NewNullDecimal(amount.Round(2))
	}
	converted, err := c.Convert(ctx, amount, from, to)
	if err != nil {
		log.Warn().Err(err).Str("from", from).Str("to", to).Msg("Conversion failed, storing NULL")
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(converted)
}
