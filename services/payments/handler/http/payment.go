package http

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/piresc/topup/internal/pkg/logger"
	"github.com/piresc/topup/internal/pkg/middleware"
	"github.com/piresc/topup/internal/pkg/models"
	nrpkg "github.com/piresc/topup/internal/pkg/newrelic"
	"github.com/piresc/topup/internal/utils"
	"github.com/piresc/topup/services/payments"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// PaymentHandler handles the user facing payment endpoints
type PaymentHandler struct {
	paymentUC payments.PaymentUC
}

// NewPaymentHandler creates a new payment HTTP handler
func NewPaymentHandler(paymentUC payments.PaymentUC) *PaymentHandler {
	return &PaymentHandler{
		paymentUC: paymentUC,
	}
}

// Initiate starts a top-up and returns the gateway payment page
func (h *PaymentHandler) Initiate(c echo.Context) error {
	txn := nrpkg.FromEchoContext(c)
	nrpkg.SetTransactionName(txn, "Payments.Initiate")

	userID := middleware.UserIDFromContext(c)
	if userID == "" {
		return utils.UnauthorizedResponse(c, "")
	}

	var req models.InitiateRequest
	if err := c.Bind(&req); err != nil {
		nrpkg.NoticeTransactionError(txn, err)
		return utils.BadRequestResponse(c, "Invalid request body")
	}
	req.UserID = userID
	req.Email = strings.TrimSpace(req.Email)

	logger.Info("Received payment initiation request",
		logger.UserID(userID),
		logger.String("email", utils.MaskEmail(req.Email)),
		logger.Int64("amount", req.Amount),
		logger.String("client_ip", c.RealIP()))

	resp, err := h.paymentUC.Initiate(c.Request().Context(), req)
	if err != nil {
		return respondError(c, txn, err)
	}

	nrpkg.AddTransactionAttribute(txn, "reference", resp.Reference)
	return utils.SuccessResponse(c, http.StatusCreated, "Payment initiated", resp)
}

// Verify reconciles a transaction with the gateway on the user's return
func (h *PaymentHandler) Verify(c echo.Context) error {
	txn := nrpkg.FromEchoContext(c)
	nrpkg.SetTransactionName(txn, "Payments.Verify")

	reference := strings.TrimSpace(c.QueryParam("reference"))
	if reference == "" {
		return utils.BadRequestResponse(c, "reference is required")
	}
	nrpkg.AddTransactionAttribute(txn, "reference", reference)

	ctx := c.Request().Context()
	if _, err := h.paymentUC.GetTransaction(ctx, middleware.UserIDFromContext(c), reference); err != nil {
		return respondError(c, txn, err)
	}

	result, err := h.paymentUC.Verify(ctx, reference, models.VerifySourceUser)
	if err != nil {
		return respondError(c, txn, err)
	}

	return utils.SuccessResponse(c, http.StatusOK, "Payment "+string(result.Outcome), result)
}

// GetTransaction returns one of the caller's transactions
func (h *PaymentHandler) GetTransaction(c echo.Context) error {
	txn := nrpkg.FromEchoContext(c)
	nrpkg.SetTransactionName(txn, "Payments.GetTransaction")

	tx, err := h.paymentUC.GetTransaction(c.Request().Context(), middleware.UserIDFromContext(c), c.Param("reference"))
	if err != nil {
		return respondError(c, txn, err)
	}
	return utils.SuccessResponse(c, http.StatusOK, "Transaction retrieved", tx)
}

// ListTransactions returns the caller's transaction history
func (h *PaymentHandler) ListTransactions(c echo.Context) error {
	txn := nrpkg.FromEchoContext(c)
	nrpkg.SetTransactionName(txn, "Payments.ListTransactions")

	limit, offset := utils.Pagination(c, defaultPageSize, maxPageSize)
	txs, err := h.paymentUC.ListTransactions(c.Request().Context(), middleware.UserIDFromContext(c), limit, offset)
	if err != nil {
		return respondError(c, txn, err)
	}
	return utils.SuccessResponse(c, http.StatusOK, "Transactions retrieved", txs)
}

// GetBalance returns the caller's balance
func (h *PaymentHandler) GetBalance(c echo.Context) error {
	txn := nrpkg.FromEchoContext(c)
	nrpkg.SetTransactionName(txn, "Payments.GetBalance")

	balance, err := h.paymentUC.GetBalance(c.Request().Context(), middleware.UserIDFromContext(c))
	if err != nil {
		return respondError(c, txn, err)
	}
	return utils.SuccessResponse(c, http.StatusOK, "Balance retrieved", balance)
}
