package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Snapshot is one appended point of a user's portfolio value or return history.
type Snapshot struct {
	ID         int                 `json:"id"`
	Username   string              `json:"username"`
	Value      decimal.NullDecimal `json:"value"`
	RecordedAt time.Time           `json:"recorded_at"`
}
