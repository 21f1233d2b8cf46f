package payments

import (
	"context"
	"time"

	"github.com/piresc/topup/internal/pkg/models"
)

// PaymentUC defines the top-up lifecycle
// go:generate mockgen -destination=mocks/mock_usecase.go -package=mocks github.com/piresc/topup/services/payments PaymentUC
type PaymentUC interface {
	Initiate(ctx context.Context, req models.InitiateRequest) (*models.InitiateResponse, error)
	Verify(ctx context.Context, reference string, source models.VerifySource) (*models.VerifyResult, error)
	HandleCallback(ctx context.Context, event models.CallbackEvent) (*models.VerifyResult, error)
	VerifyCallbackSignature(body []byte, signature string) bool
	GetTransaction(ctx context.Context, userID, reference string) (*models.Transaction, error)
	ListTransactions(ctx context.Context, userID string, limit, offset int) ([]*models.Transaction, error)
	GetBalance(ctx context.Context, userID string) (*models.Balance, error)
	Redact(ctx context.Context, reference string) error
	ReconcileStale(ctx context.Context, now time.Time) (*models.ReconcileReport, error)
}
