package payments

import (
	"context"

	"github.com/piresc/topup/internal/pkg/models"
)

// PaymentGW defines the operations against the external payment processor
// go:generate mockgen -destination=mocks/mock_gateway.go -package=mocks github.com/piresc/topup/services/payments PaymentGW,EventGW
type PaymentGW interface {
	Initiate(ctx context.Context, tx *models.Transaction) (*models.GatewayInitResult, error)
	Verify(ctx context.Context, reference string) (*models.GatewayVerifyResult, error)
	ValidateSignature(body []byte, signature string) bool
}

// EventGW publishes payment lifecycle events
type EventGW interface {
	PublishPaymentFinalized(ctx context.Context, tx *models.Transaction) error
}
