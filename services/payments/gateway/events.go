package gateway

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/piresc/topup/internal/pkg/constants"
	"github.com/piresc/topup/internal/pkg/models"
)

// Publisher is satisfied by both the NATS client and the NSQ producer
type Publisher interface {
	PublishJSON(subject string, message interface{}) error
}

// EventGW publishes payment events to a message broker
type EventGW struct {
	publisher Publisher
}

// NewEventGW creates an event gateway over publisher
func NewEventGW(publisher Publisher) *EventGW {
	return &EventGW{publisher: publisher}
}

// PublishPaymentFinalized emits payment.succeeded or payment.failed for tx
func (g *EventGW) PublishPaymentFinalized(ctx context.Context, tx *models.Transaction) error {
	event := models.PaymentEvent{
		EventID:    uuid.NewString(),
		Type:       models.EventTypeFor(tx),
		Reference:  tx.Reference,
		UserID:     tx.UserID,
		Amount:     tx.Amount,
		Currency:   tx.Currency,
		Status:     tx.Status,
		OccurredAt: tx.UpdatedAt,
	}

	subject := constants.SubjectPaymentFailed
	if event.Type == models.PaymentEventSucceeded {
		subject = constants.SubjectPaymentSucceeded
	}

	if err := g.publisher.PublishJSON(subject, event); err != nil {
		return fmt.Errorf("failed to publish %s: %w", subject, err)
	}
	return nil
}
