package http

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/piresc/topup/internal/pkg/logger"
	nrpkg "github.com/piresc/topup/internal/pkg/newrelic"
	"github.com/piresc/topup/internal/utils"
	"github.com/piresc/topup/services/payments"
)

// InternalHandler serves service-to-service endpoints
type InternalHandler struct {
	paymentUC payments.PaymentUC
}

// NewInternalHandler creates a new internal handler
func NewInternalHandler(paymentUC payments.PaymentUC) *InternalHandler {
	return &InternalHandler{paymentUC: paymentUC}
}

// Redact soft deletes a finalized transaction for compliance requests
func (h *InternalHandler) Redact(c echo.Context) error {
	txn := nrpkg.FromEchoContext(c)
	nrpkg.SetTransactionName(txn, "Payments.Redact")

	reference := c.Param("reference")
	if err := h.paymentUC.Redact(c.Request().Context(), reference); err != nil {
		return respondError(c, txn, err)
	}

	callerService, _ := c.Get("caller_service").(string)
	logger.Info("Transaction redaction requested",
		logger.Reference(reference),
		logger.String("caller_service", callerService))

	return utils.SuccessResponse(c, http.StatusOK, "Transaction redacted", nil)
}
