package http

import (
	"errors"

	"github.com/labstack/echo/v4"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/piresc/topup/internal/pkg/logger"
	nrpkg "github.com/piresc/topup/internal/pkg/newrelic"
	"github.com/piresc/topup/internal/utils"
	"github.com/piresc/topup/services/payments"
)

// respondError maps use case errors onto HTTP responses
func respondError(c echo.Context, txn *newrelic.Transaction, err error) error {
	var validationErr *payments.ValidationError
	var gatewayErr *payments.GatewayError

	switch {
	case errors.As(err, &validationErr):
		return utils.BadRequestResponse(c, validationErr.Error())
	case errors.Is(err, payments.ErrValidation):
		return utils.BadRequestResponse(c, err.Error())
	case errors.Is(err, payments.ErrNotFound):
		return utils.NotFoundResponse(c, "Transaction not found")
	case errors.Is(err, payments.ErrNotFinalized):
		return utils.ConflictResponse(c, "Transaction is still pending")
	case errors.Is(err, payments.ErrGatewayRejected):
		message := "Payment was rejected by the gateway"
		if errors.As(err, &gatewayErr) && gatewayErr.Message != "" {
			message += ": " + gatewayErr.Message
		}
		return utils.UnprocessableEntityResponse(c, message)
	case errors.Is(err, payments.ErrGatewayUnavailable):
		nrpkg.NoticeTransactionError(txn, err)
		return utils.ServiceUnavailableResponse(c, "Payment gateway unavailable, please try again later")
	default:
		logger.Error("Unhandled payment error",
			logger.String("path", c.Path()),
			logger.Err(err))
		nrpkg.NoticeTransactionError(txn, err)
		return utils.InternalServerErrorResponse(c, "")
	}
}
