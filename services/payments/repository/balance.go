package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/piresc/topup/internal/pkg/database"
	"github.com/piresc/topup/internal/pkg/models"
	"github.com/piresc/topup/services/payments"
)

// BalanceRepo stores user balances and the credits applied to them
type BalanceRepo struct {
	cfg *models.Config
	db  *sqlx.DB
	txm *database.TxManager
}

// NewBalanceRepository creates a balance repository
func NewBalanceRepository(cfg *models.Config, db *sqlx.DB) *BalanceRepo {
	return &BalanceRepo{
		cfg: cfg,
		db:  db,
		txm: database.NewTxManager(db),
	}
}

// Credit adds amount to the user's balance once per idempotency key. A
// repeated key returns ErrAlreadyApplied and leaves the balance untouched.
func (r *BalanceRepo) Credit(ctx context.Context, userID string, amount int64, idempotencyKey string) error {
	return r.txm.RunInTx(ctx, func(ctx context.Context) error {
		exec := database.ExecutorFrom(ctx, r.db)
		now := models.Now()

		result, err := exec.ExecContext(ctx, `
			INSERT INTO balance_credits (idempotency_key, user_id, amount, created_at)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (idempotency_key) DO NOTHING`,
			idempotencyKey, userID, amount, now)
		if err != nil {
			return fmt.Errorf("failed to record credit: %w", err)
		}

		rows, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}
		if rows == 0 {
			return fmt.Errorf("%w: %s", payments.ErrAlreadyApplied, idempotencyKey)
		}

		_, err = exec.ExecContext(ctx, `
			INSERT INTO balances (user_id, amount, updated_at)
			VALUES ($1, $2, $3)
			ON CONFLICT (user_id) DO UPDATE
			SET amount = balances.amount + EXCLUDED.amount, updated_at = EXCLUDED.updated_at`,
			userID, amount, now)
		if err != nil {
			return fmt.Errorf("failed to update balance: %w", err)
		}
		return nil
	})
}

// GetBalance returns the user's balance; users without credits have zero
func (r *BalanceRepo) GetBalance(ctx context.Context, userID string) (*models.Balance, error) {
	query := `SELECT user_id, amount, updated_at FROM balances WHERE user_id = $1`

	balance := models.Balance{UserID: userID}
	err := database.ExecutorFrom(ctx, r.db).GetContext(ctx, &balance, query, userID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to get balance: %w", err)
	}

	balance.Currency = r.cfg.Payments.Currency
	balance.AmountMajor = models.FormatMinor(balance.Amount)
	return &balance, nil
}
