package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgconn"
	"github.com/jmoiron/sqlx"
	"github.com/piresc/topup/internal/pkg/database"
	"github.com/piresc/topup/internal/pkg/logger"
	"github.com/piresc/topup/internal/pkg/models"
	"github.com/piresc/topup/services/payments"
)

const uniqueViolation = "23505"

const transactionColumns = `id, user_id, email, amount, currency, reference, status, gateway_payload, created_at, updated_at, deleted_at`

// TransactionRepo is the Postgres ledger of top-up transactions
type TransactionRepo struct {
	cfg          *models.Config
	db           *sqlx.DB
	txm          *database.TxManager
	newReference ReferenceGenerator
}

// NewTransactionRepository creates a ledger repository. A nil generator
// falls back to NewReference.
func NewTransactionRepository(cfg *models.Config, db *sqlx.DB, gen ReferenceGenerator) *TransactionRepo {
	if gen == nil {
		gen = NewReference
	}
	return &TransactionRepo{
		cfg:          cfg,
		db:           db,
		txm:          database.NewTxManager(db),
		newReference: gen,
	}
}

// RunInTx runs fn inside one database transaction shared by every
// repository call made with the context it receives
func (r *TransactionRepo) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return r.txm.RunInTx(ctx, fn)
}

// Create inserts a pending transaction, regenerating the reference when it
// collides with an existing one
func (r *TransactionRepo) Create(ctx context.Context, userID, email string, amount int64, currency string) (*models.Transaction, error) {
	query := `
		INSERT INTO payment_transactions (id, user_id, email, amount, currency, reference, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)
		RETURNING ` + transactionColumns

	attempts := r.cfg.Payments.ReferenceMaxAttempts
	if attempts <= 0 {
		attempts = 1
	}

	exec := database.ExecutorFrom(ctx, r.db)
	for attempt := 1; attempt <= attempts; attempt++ {
		reference := r.newReference()

		var tx models.Transaction
		err := exec.GetContext(ctx, &tx, query,
			uuid.NewString(), userID, email, amount, currency, reference,
			models.TransactionStatusPending, models.Now())
		if err == nil {
			return &tx, nil
		}
		if !isUniqueViolation(err) {
			return nil, fmt.Errorf("failed to create transaction: %w", err)
		}

		logger.Warn("Reference collision, regenerating",
			logger.Reference(reference),
			logger.Int("attempt", attempt))
	}

	return nil, fmt.Errorf("%w after %d attempts", payments.ErrReferenceExhausted, attempts)
}

// FindByReference returns the transaction with the given reference
func (r *TransactionRepo) FindByReference(ctx context.Context, reference string) (*models.Transaction, error) {
	return r.findByReference(ctx, database.ExecutorFrom(ctx, r.db), reference)
}

func (r *TransactionRepo) findByReference(ctx context.Context, exec database.Executor, reference string) (*models.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM payment_transactions WHERE reference = $1`

	var tx models.Transaction
	err := exec.GetContext(ctx, &tx, query, reference)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", payments.ErrNotFound, reference)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find transaction: %w", err)
	}
	return &tx, nil
}

// TransitionTo moves a pending transaction to a final status. The update is
// conditional on the row still being pending, so among concurrent callers
// exactly one succeeds and the rest get ErrAlreadyFinalized.
func (r *TransactionRepo) TransitionTo(ctx context.Context, reference string, status models.TransactionStatus, payload models.RawPayload) (*models.Transaction, error) {
	if !status.IsFinal() {
		return nil, fmt.Errorf("%w: %s -> %s", payments.ErrInvalidTransition, models.TransactionStatusPending, status)
	}

	query := `
		UPDATE payment_transactions
		SET status = $1, gateway_payload = $2, updated_at = $3
		WHERE reference = $4 AND status = $5
		RETURNING ` + transactionColumns

	exec := database.ExecutorFrom(ctx, r.db)

	var tx models.Transaction
	err := exec.GetContext(ctx, &tx, query, status, payload, models.Now(), reference, models.TransactionStatusPending)
	if err == nil {
		return &tx, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to transition transaction: %w", err)
	}

	current, err := r.findByReference(ctx, exec, reference)
	if err != nil {
		return nil, err
	}
	return nil, fmt.Errorf("%w: %s is %s", payments.ErrAlreadyFinalized, reference, current.Status)
}

// ListByUser returns a user's transactions, newest first. Redacted rows are
// excluded.
func (r *TransactionRepo) ListByUser(ctx context.Context, userID string, limit, offset int) ([]*models.Transaction, error) {
	query := `SELECT ` + transactionColumns + `
		FROM payment_transactions
		WHERE user_id = $1 AND deleted_at IS NULL
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`

	txs := []*models.Transaction{}
	if err := database.ExecutorFrom(ctx, r.db).SelectContext(ctx, &txs, query, userID, limit, offset); err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	return txs, nil
}

// ListStalePending returns pending transactions created before the cutoff,
// oldest first
func (r *TransactionRepo) ListStalePending(ctx context.Context, createdBefore time.Time, limit int) ([]*models.Transaction, error) {
	query := `SELECT ` + transactionColumns + `
		FROM payment_transactions
		WHERE status = $1 AND created_at < $2
		ORDER BY created_at ASC
		LIMIT $3`

	txs := []*models.Transaction{}
	err := database.ExecutorFrom(ctx, r.db).SelectContext(ctx, &txs, query, models.TransactionStatusPending, createdBefore, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list stale transactions: %w", err)
	}
	return txs, nil
}

// Redact blanks the contact email of a finalized transaction and marks it
// deleted. Redacting twice is a no-op.
func (r *TransactionRepo) Redact(ctx context.Context, reference string) error {
	query := `
		UPDATE payment_transactions
		SET email = '', deleted_at = $1, updated_at = $1
		WHERE reference = $2 AND status <> $3 AND deleted_at IS NULL`

	exec := database.ExecutorFrom(ctx, r.db)
	result, err := exec.ExecContext(ctx, query, models.Now(), reference, models.TransactionStatusPending)
	if err != nil {
		return fmt.Errorf("failed to redact transaction: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows > 0 {
		return nil
	}

	current, err := r.findByReference(ctx, exec, reference)
	if err != nil {
		return err
	}
	if !current.IsFinal() {
		return fmt.Errorf("%w: %s", payments.ErrNotFinalized, reference)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
