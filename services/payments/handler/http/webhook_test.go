package http

import (
	"context"
	"net/http"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/piresc/topup/internal/pkg/models"
	"github.com/piresc/topup/services/payments"
	"github.com/piresc/topup/services/payments/mocks"
)

const callbackBody = `{"event":"charge.success","data":{"reference":"TOPUP_R","status":"success","amount":500}}`

func TestWebhookHandler_Callback_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockUC := mocks.NewMockPaymentUC(ctrl)
	handler := NewWebhookHandler(mockUC, true)

	mockUC.EXPECT().VerifyCallbackSignature([]byte(callbackBody), "good-signature").Return(true)
	mockUC.EXPECT().
		HandleCallback(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, event models.CallbackEvent) (*models.VerifyResult, error) {
			assert.Equal(t, "TOPUP_R", event.Data.Reference)
			return &models.VerifyResult{
				Transaction: &models.Transaction{Reference: "TOPUP_R", Status: models.TransactionStatusFailed},
				Outcome:     models.VerifyOutcomeFailed,
			}, nil
		})

	c, rec := newContext(http.MethodPost, "/webhooks/gateway", callbackBody)
	c.Request().Header.Set("X-Paystack-Signature", "good-signature")

	require.NoError(t, handler.Callback(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"outcome":"failed"`)
}

func TestWebhookHandler_Callback_BadSignature(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockUC := mocks.NewMockPaymentUC(ctrl)
	handler := NewWebhookHandler(mockUC, true)

	mockUC.EXPECT().VerifyCallbackSignature(gomock.Any(), "forged").Return(false)

	c, rec := newContext(http.MethodPost, "/webhooks/gateway", callbackBody)
	c.Request().Header.Set("X-Paystack-Signature", "forged")

	require.NoError(t, handler.Callback(c))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestWebhookHandler_Callback_SignatureCheckDisabled(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockUC := mocks.NewMockPaymentUC(ctrl)
	handler := NewWebhookHandler(mockUC, false)

	mockUC.EXPECT().HandleCallback(gomock.Any(), gomock.Any()).
		Return(&models.VerifyResult{Transaction: &models.Transaction{}, Outcome: models.VerifyOutcomePending}, nil)

	c, rec := newContext(http.MethodPost, "/webhooks/gateway", callbackBody)

	require.NoError(t, handler.Callback(c))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestWebhookHandler_Callback_Errors(t *testing.T) {
	tests := []struct {
		name       string
		ucErr      error
		wantStatus int
	}{
		{"Unknown reference", payments.ErrNotFound, http.StatusNotFound},
		{"Gateway unavailable", &payments.GatewayError{Kind: payments.ErrGatewayUnavailable}, http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			mockUC := mocks.NewMockPaymentUC(ctrl)
			handler := NewWebhookHandler(mockUC, false)

			mockUC.EXPECT().HandleCallback(gomock.Any(), gomock.Any()).Return(nil, tt.ucErr)

			c, rec := newContext(http.MethodPost, "/webhooks/gateway", callbackBody)

			require.NoError(t, handler.Callback(c))
			assert.Equal(t, tt.wantStatus, rec.Code)
		})
	}
}

func TestWebhookHandler_Callback_InvalidPayload(t *testing.T) {
	ctrl := gomock.NewController(t)
	handler := NewWebhookHandler(mocks.NewMockPaymentUC(ctrl), false)

	c, rec := newContext(http.MethodPost, "/webhooks/gateway", `{"event":`)

	require.NoError(t, handler.Callback(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestWebhookHandler_Callback_IgnoresEventWithoutReference(t *testing.T) {
	ctrl := gomock.NewController(t)
	handler := NewWebhookHandler(mocks.NewMockPaymentUC(ctrl), false)

	c, rec := newContext(http.MethodPost, "/webhooks/gateway", `{"event":"subscription.create","data":{}}`)

	require.NoError(t, handler.Callback(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Event ignored")
}
