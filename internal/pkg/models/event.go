package models

import "time"

// PaymentEventType names a payment lifecycle event
type PaymentEventType string

const (
	PaymentEventSucceeded PaymentEventType = "payment.succeeded"
	PaymentEventFailed    PaymentEventType = "payment.failed"
)

// PaymentEvent is published once per finalized transaction
type PaymentEvent struct {
	EventID    string            `json:"event_id"`
	Type       PaymentEventType  `json:"type"`
	Reference  string            `json:"reference"`
	UserID     string            `json:"user_id"`
	Amount     int64             `json:"amount"`
	Currency   string            `json:"currency"`
	Status     TransactionStatus `json:"status"`
	OccurredAt time.Time         `json:"occurred_at"`
}

// EventTypeFor returns the event emitted when t reaches its final status
func EventTypeFor(t *Transaction) PaymentEventType {
	if t.Status == TransactionStatusSuccess {
		return PaymentEventSucceeded
	}
	return PaymentEventFailed
}
