package repository_test

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgconn"
	"github.com/jmoiron/sqlx"
	"github.com/piresc/topup/internal/pkg/models"
	"github.com/piresc/topup/services/payments"
	"github.com/piresc/topup/services/payments/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var txColumns = []string{"id", "user_id", "email", "amount", "currency", "reference", "status", "gateway_payload", "created_at", "updated_at", "deleted_at"}

func setupMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { mockDB.Close() })
	return sqlx.NewDb(mockDB, "sqlmock"), mock
}

func testConfig() *models.Config {
	return &models.Config{
		Payments: models.PaymentsConfig{
			Currency:             "NGN",
			ReferenceMaxAttempts: 3,
		},
	}
}

func txRow(reference string, status models.TransactionStatus, payload interface{}) *sqlmock.Rows {
	now := time.Now().UTC()
	return sqlmock.NewRows(txColumns).
		AddRow("11111111-2222-3333-4444-555555555555", "user-1", "a@b.com", int64(500), "NGN", reference, string(status), payload, now, now, nil)
}

func sequence(refs ...string) repository.ReferenceGenerator {
	i := 0
	return func() string {
		ref := refs[i%len(refs)]
		i++
		return ref
	}
}

func TestCreate_Success(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := repository.NewTransactionRepository(testConfig(), db, sequence("TOPUP_A"))

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO payment_transactions")).
		WithArgs(sqlmock.AnyArg(), "user-1", "a@b.com", int64(500), "NGN", "TOPUP_A", models.TransactionStatusPending, sqlmock.AnyArg()).
		WillReturnRows(txRow("TOPUP_A", models.TransactionStatusPending, nil))

	tx, err := repo.Create(context.Background(), "user-1", "a@b.com", 500, "NGN")
	require.NoError(t, err)
	assert.Equal(t, "TOPUP_A", tx.Reference)
	assert.Equal(t, models.TransactionStatusPending, tx.Status)
	assert.Nil(t, tx.GatewayPayload)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreate_RetriesOnReferenceCollision(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := repository.NewTransactionRepository(testConfig(), db, sequence("TOPUP_A", "TOPUP_B"))

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO payment_transactions")).
		WithArgs(sqlmock.AnyArg(), "user-1", "a@b.com", int64(500), "NGN", "TOPUP_A", models.TransactionStatusPending, sqlmock.AnyArg()).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "payment_transactions_reference_key"})
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO payment_transactions")).
		WithArgs(sqlmock.AnyArg(), "user-1", "a@b.com", int64(500), "NGN", "TOPUP_B", models.TransactionStatusPending, sqlmock.AnyArg()).
		WillReturnRows(txRow("TOPUP_B", models.TransactionStatusPending, nil))

	tx, err := repo.Create(context.Background(), "user-1", "a@b.com", 500, "NGN")
	require.NoError(t, err)
	assert.Equal(t, "TOPUP_B", tx.Reference)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreate_ReferenceExhausted(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := repository.NewTransactionRepository(testConfig(), db, sequence("TOPUP_SAME"))

	for i := 0; i < 3; i++ {
		mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO payment_transactions")).
			WillReturnError(&pgconn.PgError{Code: "23505"})
	}

	tx, err := repo.Create(context.Background(), "user-1", "a@b.com", 500, "NGN")
	assert.Nil(t, tx)
	assert.ErrorIs(t, err, payments.ErrReferenceExhausted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreate_OtherErrorIsNotRetried(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := repository.NewTransactionRepository(testConfig(), db, sequence("TOPUP_A"))

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO payment_transactions")).
		WillReturnError(errors.New("connection reset"))

	_, err := repo.Create(context.Background(), "user-1", "a@b.com", 500, "NGN")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, payments.ErrReferenceExhausted)
	assert.Contains(t, err.Error(), "failed to create transaction")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindByReference(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := repository.NewTransactionRepository(testConfig(), db, nil)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, user_id, email")).
		WithArgs("TOPUP_A").
		WillReturnRows(txRow("TOPUP_A", models.TransactionStatusSuccess, []byte(`{"status":"success"}`)))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, user_id, email")).
		WithArgs("TOPUP_MISSING").
		WillReturnRows(sqlmock.NewRows(txColumns))

	tx, err := repo.FindByReference(context.Background(), "TOPUP_A")
	require.NoError(t, err)
	assert.Equal(t, models.TransactionStatusSuccess, tx.Status)
	assert.JSONEq(t, `{"status":"success"}`, string(tx.GatewayPayload))

	_, err = repo.FindByReference(context.Background(), "TOPUP_MISSING")
	assert.ErrorIs(t, err, payments.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransitionTo_Success(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := repository.NewTransactionRepository(testConfig(), db, nil)
	payload := models.RawPayload(`{"status":"success"}`)

	mock.ExpectQuery(regexp.QuoteMeta("UPDATE payment_transactions")).
		WithArgs(models.TransactionStatusSuccess, []byte(payload), sqlmock.AnyArg(), "TOPUP_A", models.TransactionStatusPending).
		WillReturnRows(txRow("TOPUP_A", models.TransactionStatusSuccess, []byte(payload)))

	tx, err := repo.TransitionTo(context.Background(), "TOPUP_A", models.TransactionStatusSuccess, payload)
	require.NoError(t, err)
	assert.Equal(t, models.TransactionStatusSuccess, tx.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransitionTo_AlreadyFinalized(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := repository.NewTransactionRepository(testConfig(), db, nil)

	mock.ExpectQuery(regexp.QuoteMeta("UPDATE payment_transactions")).
		WillReturnRows(sqlmock.NewRows(txColumns))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, user_id, email")).
		WithArgs("TOPUP_A").
		WillReturnRows(txRow("TOPUP_A", models.TransactionStatusFailed, nil))

	tx, err := repo.TransitionTo(context.Background(), "TOPUP_A", models.TransactionStatusSuccess, nil)
	assert.Nil(t, tx)
	assert.ErrorIs(t, err, payments.ErrAlreadyFinalized)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransitionTo_NotFound(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := repository.NewTransactionRepository(testConfig(), db, nil)

	mock.ExpectQuery(regexp.QuoteMeta("UPDATE payment_transactions")).
		WillReturnRows(sqlmock.NewRows(txColumns))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, user_id, email")).
		WithArgs("TOPUP_X").
		WillReturnRows(sqlmock.NewRows(txColumns))

	_, err := repo.TransitionTo(context.Background(), "TOPUP_X", models.TransactionStatusFailed, nil)
	assert.ErrorIs(t, err, payments.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransitionTo_RejectsNonFinalTarget(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := repository.NewTransactionRepository(testConfig(), db, nil)

	_, err := repo.TransitionTo(context.Background(), "TOPUP_A", models.TransactionStatusPending, nil)
	assert.ErrorIs(t, err, payments.ErrInvalidTransition)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransitionTo_UsesTransactionFromContext(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := repository.NewTransactionRepository(testConfig(), db, nil)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("UPDATE payment_transactions")).
		WillReturnRows(txRow("TOPUP_A", models.TransactionStatusFailed, nil))
	mock.ExpectRollback()

	boom := errors.New("boom")
	err := repo.RunInTx(context.Background(), func(ctx context.Context) error {
		_, err := repo.TransitionTo(ctx, "TOPUP_A", models.TransactionStatusFailed, nil)
		require.NoError(t, err)
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListByUser(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := repository.NewTransactionRepository(testConfig(), db, nil)

	rows := txRow("TOPUP_B", models.TransactionStatusPending, nil)
	now := time.Now().UTC()
	rows.AddRow("id-2", "user-1", "a@b.com", int64(700), "NGN", "TOPUP_A", "success", nil, now, now, nil)

	mock.ExpectQuery(regexp.QuoteMeta("FROM payment_transactions")).
		WithArgs("user-1", 20, 0).
		WillReturnRows(rows)

	txs, err := repo.ListByUser(context.Background(), "user-1", 20, 0)
	require.NoError(t, err)
	require.Len(t, txs, 2)
	assert.Equal(t, "TOPUP_B", txs[0].Reference)
	assert.Equal(t, int64(700), txs[1].Amount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListStalePending(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := repository.NewTransactionRepository(testConfig(), db, nil)
	cutoff := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE status = $1 AND created_at < $2")).
		WithArgs(models.TransactionStatusPending, cutoff, 50).
		WillReturnRows(txRow("TOPUP_OLD", models.TransactionStatusPending, nil))

	txs, err := repo.ListStalePending(context.Background(), cutoff, 50)
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, "TOPUP_OLD", txs[0].Reference)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedact(t *testing.T) {
	tests := []struct {
		name        string
		rowsUpdated int64
		current     *sqlmock.Rows
		wantErr     error
	}{
		{name: "finalized row", rowsUpdated: 1},
		{name: "already redacted", current: txRow("TOPUP_A", models.TransactionStatusSuccess, nil)},
		{name: "pending row", current: txRow("TOPUP_A", models.TransactionStatusPending, nil), wantErr: payments.ErrNotFinalized},
		{name: "unknown reference", current: sqlmock.NewRows(txColumns), wantErr: payments.ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock := setupMockDB(t)
			repo := repository.NewTransactionRepository(testConfig(), db, nil)

			mock.ExpectExec(regexp.QuoteMeta("SET email = ''")).
				WithArgs(sqlmock.AnyArg(), "TOPUP_A", models.TransactionStatusPending).
				WillReturnResult(sqlmock.NewResult(0, tt.rowsUpdated))
			if tt.current != nil {
				mock.ExpectQuery(regexp.QuoteMeta("SELECT id, user_id, email")).
					WithArgs("TOPUP_A").
					WillReturnRows(tt.current)
			}

			err := repo.Redact(context.Background(), "TOPUP_A")
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestNewReference(t *testing.T) {
	seen := make(map[string]struct{})
	for i := 0; i < 1000; i++ {
		ref := repository.NewReference()
		assert.Regexp(t, `^TOPUP_[0-9a-f]{32}$`, ref)
		_, dup := seen[ref]
		require.False(t, dup, fmt.Sprintf("duplicate reference %s", ref))
		seen[ref] = struct{}{}
	}
}
