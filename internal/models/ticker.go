package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Ticker holds the shared market facts for a symbol
type Ticker struct {
	Symbol         string              `json:"symbol"`
	CompanyName    string              `json:"company_name"`
	Currency       string              `json:"currency"`
	CurrentPrice   decimal.Decimal     `json:"current_price"`
	Beta           decimal.NullDecimal `json:"beta"`
	ExpectedReturn decimal.NullDecimal `json:"expected_return"`
	LastUpdated    time.Time           `json:"last_updated"`
}
