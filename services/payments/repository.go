package payments

import (
	"context"
	"time"

	"github.com/piresc/topup/internal/pkg/models"
)

// TransactionRepo defines the ledger operations for top-up transactions
// go:generate mockgen -destination=mocks/mock_repository.go -package=mocks github.com/piresc/topup/services/payments TransactionRepo,BalanceRepo,StatusCache
type TransactionRepo interface {
	Create(ctx context.Context, userID, email string, amount int64, currency string) (*models.Transaction, error)
	FindByReference(ctx context.Context, reference string) (*models.Transaction, error)
	TransitionTo(ctx context.Context, reference string, status models.TransactionStatus, payload models.RawPayload) (*models.Transaction, error)
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]*models.Transaction, error)
	ListStalePending(ctx context.Context, createdBefore time.Time, limit int) ([]*models.Transaction, error)
	Redact(ctx context.Context, reference string) error
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// BalanceRepo defines the balance operations
type BalanceRepo interface {
	Credit(ctx context.Context, userID string, amount int64, idempotencyKey string) error
	GetBalance(ctx context.Context, userID string) (*models.Balance, error)
}

// StatusCache keeps finalized transactions close to the verify path.
// Get returns nil and no error on a miss.
type StatusCache interface {
	Get(ctx context.Context, reference string) (*models.Transaction, error)
	Set(ctx context.Context, tx *models.Transaction) error
	Invalidate(ctx context.Context, reference string) error
}
