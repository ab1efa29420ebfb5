package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Transaction type constants
const (
	TransactionLong  = "long"
	TransactionShort = "short"
)

// Transaction is an immutable entry in the position log. QuantityChange is
// signed: shorts are stored as negative deltas.
type Transaction struct {
	ID             int                 `json:"id"`
	Username       string              `json:"username"`
	Symbol         string              `json:"symbol"`
	Type           string              `json:"transaction_type"`
	QuantityChange decimal.Decimal     `json:"quantity_change"`
	Currency       string              `json:"currency"`
	Price          decimal.Decimal     `json:"price"`
	PriceHKD       decimal.NullDecimal `json:"price_hkd"`
	TotalValueHKD  decimal.NullDecimal `json:"total_value_hkd"`
	ExecutedAt     time.Time           `json:"executed_at"`
}

// SignedQuantity returns the quantity delta recorded for a transaction type.
func SignedQuantity(txType string, quantity decimal.Decimal) decimal.Decimal {
	if txType == TransactionShort {
		return quantity.Abs().Neg()
	}
	return quantity.Abs()
}

// IsValidTransactionType reports whether t is long or short.
func IsValidTransactionType(t string) bool {
	return t == TransactionLong || t == TransactionShort
}

// PositionAggregate is the net quantity of one (user, symbol) pair joined
// with the ticker's current market facts.
type PositionAggregate struct {
	Username       string
	Symbol         string
	Quantity       decimal.Decimal
	Currency       string
	CurrentPrice   decimal.Decimal
	Beta           decimal.NullDecimal
	ExpectedReturn decimal.NullDecimal
}
