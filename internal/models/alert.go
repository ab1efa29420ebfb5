package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Notification type constants
const (
	NotificationPriceDrop = "price drop"
	NotificationPriceRise = "price rise"
)

// PriceComparison is the per (user, symbol) working set for threshold checks.
// Email is joined from the user row and is not persisted on the comparison.
type PriceComparison struct {
	Username                string          `json:"username"`
	Symbol                  string          `json:"symbol"`
	Email                   string          `json:"-"`
	LastLongPrice           decimal.Decimal `json:"last_long_price"`
	CurrentPrice            decimal.Decimal `json:"current_price"`
	NotificationsEnabled    bool            `json:"notifications_enabled"`
	PriceDropThreshold      decimal.Decimal `json:"price_drop_threshold"`
	PriceRiseThreshold      decimal.Decimal `json:"price_rise_threshold"`
	PriceDropThresholdValue decimal.Decimal `json:"price_drop_threshold_value"`
	PriceRiseThresholdValue decimal.Decimal `json:"price_rise_threshold_value"`
	LastNotifiedAt          *time.Time      `json:"last_notified_at,omitempty"`
	UpdatedAt               time.Time       `json:"updated_at"`
}

// Notification records an alert email that was actually delivered
type Notification struct {
	ID        int       `json:"id"`
	Username  string    `json:"username"`
	Symbol    string    `json:"symbol"`
	Type      string    `json:"notification_type"`
	CreatedAt time.Time `json:"created_at"`
}
