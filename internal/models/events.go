package models

import "time"

// Event type constants
const (
	EventTransactionRecorded = "TRANSACTION_RECORDED"
	EventAlertSent           = "ALERT_SENT"
)

// PortfolioEvent represents a Kafka event emitted by the tracker
type PortfolioEvent struct {
	EventID      string        `json:"event_id"`
	EventType    string        `json:"event_type"`
	Username     string        `json:"username"`
	Symbol       string        `json:"symbol"`
	Transaction  *Transaction  `json:"transaction,omitempty"`
	Notification *Notification `json:"notification,omitempty"`
	Timestamp    time.Time     `json:"timestamp"`
}
