package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// DefaultThreshold is the price drop/rise percentage a new user starts with.
var DefaultThreshold = decimal.NewFromInt(5)

var maxThreshold = decimal.NewFromInt(100)

// User represents a registered account and its alert preferences
type User struct {
	Username             string          `json:"username"`
	Email                string          `json:"email"`
	PasswordHash         string          `json:"-"`
	NotificationsEnabled bool            `json:"notifications_enabled"`
	PriceDropThreshold   decimal.Decimal `json:"price_drop_threshold"`
	PriceRiseThreshold   decimal.Decimal `json:"price_rise_threshold"`
	CreatedAt            time.Time       `json:"created_at"`
}

// Preferences are the user-editable alert settings
type Preferences struct {
	NotificationsEnabled bool            `json:"notifications_enabled"`
	PriceDropThreshold   decimal.Decimal `json:"price_drop_threshold"`
	PriceRiseThreshold   decimal.Decimal `json:"price_rise_threshold"`
}

// Preferences returns the user's current alert settings.
func (u *User) Preferences() Preferences {
	return Preferences{
		NotificationsEnabled: u.NotificationsEnabled,
		PriceDropThreshold:   u.PriceDropThreshold,
		PriceRiseThreshold:   u.PriceRiseThreshold,
	}
}

// Validate checks both thresholds lie within 0-100 percent.
func (p Preferences) Validate() error {
	if p.PriceDropThreshold.IsNegative() || p.PriceDropThreshold.GreaterThan(maxThreshold) {
		return NewValidationError("price_drop_threshold", "must be between 0 and 100")
	}
	if p.PriceRiseThreshold.IsNegative() || p.PriceRiseThreshold.GreaterThan(maxThreshold) {
		return NewValidationError("price_rise_threshold", "must be between 0 and 100")
	}
	return nil
}
