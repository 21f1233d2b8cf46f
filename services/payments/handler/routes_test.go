package handler

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/golang/mock/gomock"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/piresc/topup/internal/pkg/database"
	jwtpkg "github.com/piresc/topup/internal/pkg/jwt"
	"github.com/piresc/topup/internal/pkg/middleware"
	"github.com/piresc/topup/internal/pkg/models"
	"github.com/piresc/topup/services/payments/mocks"
)

func routesConfig() *models.Config {
	return &models.Config{
		JWT:    models.JWTConfig{Secret: "test-secret", Expiration: 10, Issuer: "topup"},
		APIKey: models.APIKeyConfig{OpsService: "ops-key"},
		Payments: models.PaymentsConfig{
			InitiateRateLimit:     1,
			InitiateRateLimitSpan: time.Minute,
		},
	}
}

func bearer(t *testing.T, cfg *models.Config, userID string) string {
	token, _, err := jwtpkg.GenerateToken(userID, "customer", cfg.JWT)
	require.NoError(t, err)
	return "Bearer " + token
}

func TestRegisterRoutes_RequiresToken(t *testing.T) {
	ctrl := gomock.NewController(t)
	cfg := routesConfig()
	e := echo.New()
	NewHandler(mocks.NewMockPaymentUC(ctrl), cfg).RegisterRoutes(e, nil)

	for _, target := range []string{"/v1/balance", "/v1/payments", "/v1/payments/TOPUP_R", "/v1/payments/verify?reference=TOPUP_R"} {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code, target)
	}
}

func TestRegisterRoutes_VerifyIsNotAReference(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockUC := mocks.NewMockPaymentUC(ctrl)
	cfg := routesConfig()
	e := echo.New()
	NewHandler(mockUC, cfg).RegisterRoutes(e, nil)

	tx := &models.Transaction{Reference: "TOPUP_R", UserID: "user-1"}
	mockUC.EXPECT().GetTransaction(gomock.Any(), "user-1", "TOPUP_R").Return(tx, nil).Times(2)
	mockUC.EXPECT().Verify(gomock.Any(), "TOPUP_R", models.VerifySourceUser).
		Return(&models.VerifyResult{Transaction: tx, Outcome: models.VerifyOutcomePending}, nil)

	req := httptest.NewRequest(http.MethodGet, "/v1/payments/verify?reference=TOPUP_R", nil)
	req.Header.Set(echo.HeaderAuthorization, bearer(t, cfg, "user-1"))
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Payment pending")

	req = httptest.NewRequest(http.MethodGet, "/v1/payments/TOPUP_R", nil)
	req.Header.Set(echo.HeaderAuthorization, bearer(t, cfg, "user-1"))
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Transaction retrieved")
}

func TestRegisterRoutes_InitiateRateLimited(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockUC := mocks.NewMockPaymentUC(ctrl)
	cfg := routesConfig()

	mr := miniredis.RunT(t)
	counter := &database.RedisClient{Client: redis.NewClient(&redis.Options{Addr: mr.Addr()})}

	e := echo.New()
	NewHandler(mockUC, cfg).RegisterRoutes(e, counter)

	mockUC.EXPECT().Initiate(gomock.Any(), gomock.Any()).
		Return(&models.InitiateResponse{Reference: "TOPUP_R"}, nil).Times(1)

	send := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/v1/payments/initiate", strings.NewReader(`{"email":"a@b.com","amount":500}`))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		req.Header.Set(echo.HeaderAuthorization, bearer(t, cfg, "user-1"))
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusCreated, send().Code)
	assert.Equal(t, http.StatusTooManyRequests, send().Code)
}

func TestRegisterRoutes_WebhookIsPublic(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockUC := mocks.NewMockPaymentUC(ctrl)
	cfg := routesConfig()
	cfg.Gateway.WebhookVerifySignature = true
	e := echo.New()
	NewHandler(mockUC, cfg).RegisterRoutes(e, nil)

	mockUC.EXPECT().VerifyCallbackSignature(gomock.Any(), "").Return(false)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/gateway", strings.NewReader(`{"event":"charge.success","data":{"reference":"TOPUP_R"}}`))
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "Invalid signature")
}

func TestRegisterRoutes_InternalRedact(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockUC := mocks.NewMockPaymentUC(ctrl)
	cfg := routesConfig()
	e := echo.New()
	NewHandler(mockUC, cfg).RegisterRoutes(e, nil)

	mockUC.EXPECT().Redact(gomock.Any(), "TOPUP_R").Return(nil)

	req := httptest.NewRequest(http.MethodDelete, "/internal/payments/TOPUP_R", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodDelete, "/internal/payments/TOPUP_R", nil)
	req.Header.Set(middleware.APIKeyHeader, "ops-key")
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}
