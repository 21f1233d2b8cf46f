package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/piresc/topup/internal/pkg/logger"
	"github.com/piresc/topup/internal/pkg/models"
	"github.com/piresc/topup/internal/pkg/retry"
	"github.com/piresc/topup/services/payments"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
	maxRetryDelay    = 5 * time.Second
)

// paymentUC implements payments.PaymentUC
type paymentUC struct {
	cfg         *models.Config
	txRepo      payments.TransactionRepo
	balanceRepo payments.BalanceRepo
	paymentGW   payments.PaymentGW
	eventGW     payments.EventGW
	cache       payments.StatusCache
	retrier     *retry.Retrier
	validate    *validator.Validate
}

// NewPaymentUC creates the payment use case. eventGW and cache may be nil.
func NewPaymentUC(
	cfg *models.Config,
	txRepo payments.TransactionRepo,
	balanceRepo payments.BalanceRepo,
	paymentGW payments.PaymentGW,
	eventGW payments.EventGW,
	cache payments.StatusCache,
) (payments.PaymentUC, error) {
	if cfg == nil {
		return nil, errors.New("payment use case requires a config")
	}
	if txRepo == nil || balanceRepo == nil || paymentGW == nil {
		return nil, errors.New("payment use case requires a ledger, a balance store and a gateway")
	}

	retrier := retry.New(retry.Config{
		MaxRetries: cfg.Payments.VerifyMaxRetries,
		BaseDelay:  cfg.Payments.VerifyRetryBaseDelay,
		MaxDelay:   maxRetryDelay,
		Multiplier: 2.0,
		Jitter:     true,
		RetryableFunc: func(err error) bool {
			return errors.Is(err, payments.ErrGatewayUnavailable)
		},
	}, nil)

	return &paymentUC{
		cfg:         cfg,
		txRepo:      txRepo,
		balanceRepo: balanceRepo,
		paymentGW:   paymentGW,
		eventGW:     eventGW,
		cache:       cache,
		retrier:     retrier,
		validate:    newValidator(),
	}, nil
}

// Initiate records a pending transaction and asks the gateway for a payment page
func (uc *paymentUC) Initiate(ctx context.Context, req models.InitiateRequest) (*models.InitiateResponse, error) {
	if err := uc.validateInitiate(req); err != nil {
		return nil, err
	}

	tx, err := uc.txRepo.Create(ctx, req.UserID, req.Email, req.Amount, uc.cfg.Payments.Currency)
	if err != nil {
		if errors.Is(err, payments.ErrReferenceExhausted) {
			logger.ErrorCtx(ctx, "Reference space exhausted",
				logger.UserID(req.UserID),
				logger.Err(err))
		}
		return nil, err
	}

	result, err := uc.paymentGW.Initiate(ctx, tx)
	if err != nil {
		if errors.Is(err, payments.ErrGatewayRejected) {
			logger.WarnCtx(ctx, "Gateway rejected payment initiation",
				logger.Reference(tx.Reference),
				logger.Err(err))
			if _, ferr := uc.finalize(ctx, tx, models.TransactionStatusFailed, rejectionPayload(err)); ferr != nil {
				logger.ErrorCtx(ctx, "Failed to mark rejected transaction as failed",
					logger.Reference(tx.Reference),
					logger.Err(ferr))
			}
			return nil, err
		}

		logger.WarnCtx(ctx, "Gateway initiation failed, transaction left pending",
			logger.Reference(tx.Reference),
			logger.Err(err))
		return nil, err
	}

	logger.InfoCtx(ctx, "Payment initiated",
		logger.Reference(tx.Reference),
		logger.UserID(tx.UserID),
		logger.Int64("amount", tx.Amount))

	return &models.InitiateResponse{
		Reference:        tx.Reference,
		RedirectURL:      result.RedirectURL,
		Status:           tx.Status,
		Amount:           tx.Amount,
		AmountMajor:      models.FormatMinor(tx.Amount),
		Currency:         tx.Currency,
		AccessCode:       result.AccessCode,
		GatewayReference: result.GatewayReference,
	}, nil
}

// Verify reconciles a transaction with the gateway's authoritative status.
// It is safe to call any number of times, concurrently, from any source.
func (uc *paymentUC) Verify(ctx context.Context, reference string, source models.VerifySource) (*models.VerifyResult, error) {
	if reference == "" {
		return nil, &payments.ValidationError{Field: "reference", Reason: "is required"}
	}

	if cached := uc.cachedFinal(ctx, reference); cached != nil {
		return finalizedResult(cached), nil
	}

	tx, err := uc.txRepo.FindByReference(ctx, reference)
	if err != nil {
		return nil, err
	}
	if tx.IsFinal() {
		uc.cacheFinal(ctx, tx)
		return finalizedResult(tx), nil
	}

	status, err := uc.verifyWithRetry(ctx, reference, source)
	if err != nil {
		return nil, err
	}

	switch status.Status {
	case models.TransactionStatusSuccess:
		if !status.Matches(tx) {
			logger.ErrorCtx(ctx, "Gateway amount does not match ledger",
				logger.Reference(reference),
				logger.Int64("expected_amount", tx.Amount),
				logger.Int64("gateway_amount", status.Amount),
				logger.String("gateway_currency", status.Currency))
			return uc.finalize(ctx, tx, models.TransactionStatusFailed, reasonPayload("amount_mismatch",
				fmt.Sprintf("gateway reported %d %s", status.Amount, status.Currency)))
		}
		return uc.finalize(ctx, tx, models.TransactionStatusSuccess, status.RawPayload)
	case models.TransactionStatusFailed:
		return uc.finalize(ctx, tx, models.TransactionStatusFailed, status.RawPayload)
	default:
		logger.InfoCtx(ctx, "Payment still pending at gateway",
			logger.Reference(reference),
			logger.String("source", string(source)))
		return &models.VerifyResult{Transaction: tx, Outcome: models.VerifyOutcomePending}, nil
	}
}

// HandleCallback re-verifies the referenced transaction. The status stated
// in the notification is ignored.
func (uc *paymentUC) HandleCallback(ctx context.Context, event models.CallbackEvent) (*models.VerifyResult, error) {
	reference := strings.TrimSpace(event.Data.Reference)
	if reference == "" {
		return nil, &payments.ValidationError{Field: "data.reference", Reason: "is required"}
	}

	logger.InfoCtx(ctx, "Gateway callback received",
		logger.Reference(reference),
		logger.String("event", event.Event),
		logger.String("claimed_status", event.Data.Status))

	return uc.Verify(ctx, reference, models.VerifySourceCallback)
}

// VerifyCallbackSignature checks a gateway notification's signature
func (uc *paymentUC) VerifyCallbackSignature(body []byte, signature string) bool {
	return uc.paymentGW.ValidateSignature(body, signature)
}

// GetTransaction returns a transaction owned by userID
func (uc *paymentUC) GetTransaction(ctx context.Context, userID, reference string) (*models.Transaction, error) {
	tx, err := uc.txRepo.FindByReference(ctx, reference)
	if err != nil {
		return nil, err
	}
	if tx.UserID != userID || tx.DeletedAt != nil {
		return nil, fmt.Errorf("%w: %s", payments.ErrNotFound, reference)
	}
	return tx, nil
}

// ListTransactions returns a page of the user's transactions
func (uc *paymentUC) ListTransactions(ctx context.Context, userID string, limit, offset int) ([]*models.Transaction, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	if offset < 0 {
		offset = 0
	}
	return uc.txRepo.ListByUser(ctx, userID, limit, offset)
}

// GetBalance returns the user's balance
func (uc *paymentUC) GetBalance(ctx context.Context, userID string) (*models.Balance, error) {
	return uc.balanceRepo.GetBalance(ctx, userID)
}

// Redact soft deletes a finalized transaction and drops its cached copy
func (uc *paymentUC) Redact(ctx context.Context, reference string) error {
	if err := uc.txRepo.Redact(ctx, reference); err != nil {
		return err
	}
	if uc.cache != nil {
		if err := uc.cache.Invalidate(ctx, reference); err != nil {
			logger.WarnCtx(ctx, "Failed to invalidate cached transaction",
				logger.Reference(reference),
				logger.Err(err))
		}
	}

	logger.InfoCtx(ctx, "Transaction redacted", logger.Reference(reference))
	return nil
}

func (uc *paymentUC) verifyWithRetry(ctx context.Context, reference string, source models.VerifySource) (*models.GatewayVerifyResult, error) {
	var result *models.GatewayVerifyResult
	attempt := 0
	err := uc.retrier.Execute(ctx, func(ctx context.Context) error {
		attempt++
		var err error
		result, err = uc.paymentGW.Verify(ctx, reference)
		if err != nil && errors.Is(err, payments.ErrGatewayUnavailable) {
			logger.WarnCtx(ctx, "Gateway verify attempt failed",
				logger.Reference(reference),
				logger.String("source", string(source)),
				logger.Int("attempt", attempt),
				logger.Err(err))
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// finalize applies the one permitted transition. A success transition and
// its credit commit together or not at all.
func (uc *paymentUC) finalize(ctx context.Context, tx *models.Transaction, status models.TransactionStatus, payload models.RawPayload) (*models.VerifyResult, error) {
	var updated *models.Transaction
	err := uc.txRepo.RunInTx(ctx, func(ctx context.Context) error {
		var err error
		updated, err = uc.txRepo.TransitionTo(ctx, tx.Reference, status, payload)
		if err != nil {
			return err
		}
		if status != models.TransactionStatusSuccess {
			return nil
		}

		err = uc.balanceRepo.Credit(ctx, updated.UserID, updated.Amount, updated.Reference)
		if errors.Is(err, payments.ErrAlreadyApplied) {
			logger.WarnCtx(ctx, "Credit already applied for reference", logger.Reference(updated.Reference))
			return nil
		}
		return err
	})

	if errors.Is(err, payments.ErrAlreadyFinalized) {
		current, ferr := uc.txRepo.FindByReference(ctx, tx.Reference)
		if ferr != nil {
			return nil, ferr
		}
		uc.cacheFinal(ctx, current)
		return finalizedResult(current), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to finalize transaction %s: %w", tx.Reference, err)
	}

	logger.InfoCtx(ctx, "Transaction finalized",
		logger.Reference(updated.Reference),
		logger.UserID(updated.UserID),
		logger.String("status", string(updated.Status)),
		logger.Int64("amount", updated.Amount))

	uc.publish(ctx, updated)
	uc.cacheFinal(ctx, updated)
	return &models.VerifyResult{Transaction: updated, Outcome: models.OutcomeFor(updated)}, nil
}

func (uc *paymentUC) publish(ctx context.Context, tx *models.Transaction) {
	if uc.eventGW == nil {
		return
	}
	if err := uc.eventGW.PublishPaymentFinalized(ctx, tx); err != nil {
		logger.WarnCtx(ctx, "Failed to publish payment event",
			logger.Reference(tx.Reference),
			logger.Err(err))
	}
}

func (uc *paymentUC) cachedFinal(ctx context.Context, reference string) *models.Transaction {
	if uc.cache == nil {
		return nil
	}
	tx, err := uc.cache.Get(ctx, reference)
	if err != nil {
		logger.WarnCtx(ctx, "Status cache read failed", logger.Reference(reference), logger.Err(err))
		return nil
	}
	if tx == nil || !tx.IsFinal() {
		return nil
	}
	return tx
}

func (uc *paymentUC) cacheFinal(ctx context.Context, tx *models.Transaction) {
	if uc.cache == nil || !tx.IsFinal() {
		return
	}
	if err := uc.cache.Set(ctx, tx); err != nil {
		logger.WarnCtx(ctx, "Status cache write failed", logger.Reference(tx.Reference), logger.Err(err))
	}
}

func (uc *paymentUC) validateInitiate(req models.InitiateRequest) error {
	if strings.TrimSpace(req.UserID) == "" {
		return &payments.ValidationError{Field: "user_id", Reason: "is required"}
	}

	if err := uc.validate.Struct(req); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			return &payments.ValidationError{Field: fieldErrs[0].Field(), Reason: reasonFor(fieldErrs[0])}
		}
		return &payments.ValidationError{Field: "request", Reason: err.Error()}
	}

	if req.Amount < uc.cfg.Payments.MinAmount {
		return &payments.ValidationError{
			Field:  "amount",
			Reason: fmt.Sprintf("must be at least %d", uc.cfg.Payments.MinAmount),
		}
	}
	return nil
}

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func reasonFor(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "gt":
		return "must be greater than " + fe.Param()
	default:
		return "is invalid"
	}
}

func finalizedResult(tx *models.Transaction) *models.VerifyResult {
	return &models.VerifyResult{
		Transaction:      tx,
		Outcome:          models.OutcomeFor(tx),
		AlreadyFinalized: true,
	}
}

type failurePayload struct {
	Reason  string `json:"reason"`
	Message string `json:"message,omitempty"`
}

func reasonPayload(reason, message string) models.RawPayload {
	data, _ := json.Marshal(failurePayload{Reason: reason, Message: message})
	return data
}

func rejectionPayload(err error) models.RawPayload {
	var gwErr *payments.GatewayError
	if errors.As(err, &gwErr) && len(gwErr.Payload) > 0 && json.Valid(gwErr.Payload) {
		return models.RawPayload(gwErr.Payload)
	}
	return reasonPayload("rejected", err.Error())
}
