package handler

import (
	"github.com/labstack/echo/v4"
	"github.com/piresc/topup/internal/pkg/constants"
	"github.com/piresc/topup/internal/pkg/middleware"
	"github.com/piresc/topup/internal/pkg/models"
	"github.com/piresc/topup/services/payments"
	httpHandler "github.com/piresc/topup/services/payments/handler/http"
)

// Handler combines all handlers for the payments service
type Handler struct {
	paymentHTTP  *httpHandler.PaymentHandler
	webhookHTTP  *httpHandler.WebhookHandler
	internalHTTP *httpHandler.InternalHandler
	cfg          *models.Config
}

// NewHandler creates a new combined handler
func NewHandler(paymentUC payments.PaymentUC, cfg *models.Config) *Handler {
	return &Handler{
		paymentHTTP:  httpHandler.NewPaymentHandler(paymentUC),
		webhookHTTP:  httpHandler.NewWebhookHandler(paymentUC, cfg.Gateway.WebhookVerifySignature),
		internalHTTP: httpHandler.NewInternalHandler(paymentUC),
		cfg:          cfg,
	}
}

// RegisterRoutes registers all HTTP routes. counter backs the initiate rate
// limit; nil disables it.
func (h *Handler) RegisterRoutes(e *echo.Echo, counter middleware.Counter) {
	// User routes (JWT required)
	v1 := e.Group("/v1", middleware.JWTAuthMiddleware(h.cfg.JWT))

	var initiateMiddleware []echo.MiddlewareFunc
	if counter != nil {
		initiateMiddleware = append(initiateMiddleware, middleware.UserRateLimiter(
			constants.KeyRateLimitInitiate,
			h.cfg.Payments.InitiateRateLimit,
			h.cfg.Payments.InitiateRateLimitSpan,
			counter,
		))
	}

	paymentsGroup := v1.Group("/payments")
	paymentsGroup.POST("/initiate", h.paymentHTTP.Initiate, initiateMiddleware...)
	paymentsGroup.GET("/verify", h.paymentHTTP.Verify)
	paymentsGroup.GET("", h.paymentHTTP.ListTransactions)
	paymentsGroup.GET("/:reference", h.paymentHTTP.GetTransaction)
	v1.GET("/balance", h.paymentHTTP.GetBalance)

	// Gateway notifications, authenticated by signature
	e.POST("/webhooks/gateway", h.webhookHTTP.Callback)

	// Internal routes for service-to-service communication (API key required)
	internal := e.Group("/internal", middleware.ValidateAPIKey(h.cfg.APIKey.Keys(), "admin-service", "ops-service"))
	internal.DELETE("/payments/:reference", h.internalHTTP.Redact)
}
