package http

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/piresc/topup/internal/pkg/logger"
	"github.com/piresc/topup/internal/pkg/models"
	nrpkg "github.com/piresc/topup/internal/pkg/newrelic"
	"github.com/piresc/topup/internal/utils"
	"github.com/piresc/topup/services/payments"
	"github.com/piresc/topup/services/payments/gateway"
)

const maxWebhookBody = 64 << 10

// WebhookHandler receives asynchronous gateway notifications
type WebhookHandler struct {
	paymentUC       payments.PaymentUC
	verifySignature bool
}

// NewWebhookHandler creates a webhook handler. With verifySignature set,
// unsigned or badly signed notifications are refused.
func NewWebhookHandler(paymentUC payments.PaymentUC, verifySignature bool) *WebhookHandler {
	return &WebhookHandler{
		paymentUC:       paymentUC,
		verifySignature: verifySignature,
	}
}

// Callback re-verifies the referenced transaction with the gateway
func (h *WebhookHandler) Callback(c echo.Context) error {
	txn := nrpkg.FromEchoContext(c)
	nrpkg.SetTransactionName(txn, "Payments.GatewayCallback")

	body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxWebhookBody))
	if err != nil {
		return utils.BadRequestResponse(c, "Unable to read request body")
	}

	if h.verifySignature && !h.paymentUC.VerifyCallbackSignature(body, c.Request().Header.Get(gateway.SignatureHeader)) {
		logger.Warn("Rejected gateway callback with invalid signature",
			logger.String("client_ip", c.RealIP()))
		return utils.UnauthorizedResponse(c, "Invalid signature")
	}

	var event models.CallbackEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return utils.BadRequestResponse(c, "Invalid callback payload")
	}

	if event.Data.Reference == "" {
		logger.Info("Ignoring gateway callback without reference",
			logger.String("event", event.Event))
		return utils.SuccessResponse(c, http.StatusOK, "Event ignored", nil)
	}
	nrpkg.AddTransactionAttribute(txn, "reference", event.Data.Reference)

	result, err := h.paymentUC.HandleCallback(c.Request().Context(), event)
	if err != nil {
		return respondError(c, txn, err)
	}

	return utils.SuccessResponse(c, http.StatusOK, "Callback processed", result)
}
