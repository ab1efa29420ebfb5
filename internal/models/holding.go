package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Holding is a user's derived net position in one ticker. The table is
// rebuilt from the transaction log every cycle.
type Holding struct {
	ID              int                 `json:"id"`
	Username        string              `json:"username"`
	Symbol          string              `json:"symbol"`
	Quantity        decimal.Decimal     `json:"quantity"`
	Currency        string              `json:"currency"`
	CurrentPrice    decimal.Decimal     `json:"current_price"`
	CurrentPriceHKD decimal.NullDecimal `json:"current_price_hkd"`
	TotalValueHKD   decimal.NullDecimal `json:"total_value_hkd"`
	Beta            decimal.NullDecimal `json:"beta"`
	ExpectedReturn  decimal.NullDecimal `json:"expected_return"`
	Weighting       decimal.NullDecimal `json:"weighting"`
	UpdatedAt       time.Time           `json:"updated_at"`
}

// HoldingWeight assigns a weighting percentage to one holding row.
type HoldingWeight struct {
	Username  string
	Symbol    string
	Weighting decimal.Decimal
}
