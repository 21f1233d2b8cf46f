package gateway

import (
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/piresc/topup/internal/pkg/circuitbreaker"
	httpclient "github.com/piresc/topup/internal/pkg/http"
	"github.com/piresc/topup/internal/pkg/models"
	"github.com/piresc/topup/internal/utils"
	"github.com/piresc/topup/services/payments"
)

// SignatureHeader carries the HMAC of a webhook body
const SignatureHeader = "X-Paystack-Signature"

// envelope is the response wrapper used by every processor endpoint
type envelope struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type initializeRequest struct {
	Email       string `json:"email"`
	Amount      int64  `json:"amount"`
	Currency    string `json:"currency,omitempty"`
	Reference   string `json:"reference"`
	CallbackURL string `json:"callback_url,omitempty"`
}

type initializeData struct {
	AuthorizationURL string `json:"authorization_url"`
	AccessCode       string `json:"access_code"`
	Reference        string `json:"reference"`
}

type verifyData struct {
	Status          string `json:"status"`
	Reference       string `json:"reference"`
	Amount          int64  `json:"amount"`
	Currency        string `json:"currency"`
	GatewayResponse string `json:"gateway_response"`
}

// PaystackGW talks to a Paystack compatible processor
type PaystackGW struct {
	client    *httpclient.Client
	secretKey string
	callback  string
}

// NewPaystackGW creates the processor adapter. The breaker is optional.
func NewPaystackGW(cfg models.GatewayConfig, breaker *circuitbreaker.CircuitBreaker) *PaystackGW {
	return &PaystackGW{
		client: httpclient.NewClient(httpclient.Config{
			BaseURL: cfg.BaseURL,
			Timeout: cfg.Timeout,
			Headers: map[string]string{"Authorization": "Bearer " + cfg.SecretKey},
			Breaker: breaker,
		}),
		secretKey: cfg.SecretKey,
		callback:  cfg.CallbackURL,
	}
}

// Initiate initializes a charge and returns the page the user pays on
func (g *PaystackGW) Initiate(ctx context.Context, tx *models.Transaction) (*models.GatewayInitResult, error) {
	resp, err := g.client.Post(ctx, "/transaction/initialize", initializeRequest{
		Email:       tx.Email,
		Amount:      tx.Amount,
		Currency:    tx.Currency,
		Reference:   tx.Reference,
		CallbackURL: g.callback,
	})
	if err != nil {
		return nil, mapTransportError(err)
	}

	env, err := decodeEnvelope(resp)
	if err != nil {
		return nil, err
	}

	var data initializeData
	if err := json.Unmarshal(env.Data, &data); err != nil || data.AuthorizationURL == "" {
		return nil, &payments.GatewayError{
			Kind:       payments.ErrGatewayUnavailable,
			StatusCode: resp.StatusCode,
			Message:    "initialize response has no authorization url",
			Payload:    resp.Body,
		}
	}

	gatewayRef := data.Reference
	if gatewayRef == "" {
		gatewayRef = tx.Reference
	}
	return &models.GatewayInitResult{
		RedirectURL:      data.AuthorizationURL,
		GatewayReference: gatewayRef,
		AccessCode:       data.AccessCode,
	}, nil
}

// Verify reads the processor's status of a charge. It never charges.
func (g *PaystackGW) Verify(ctx context.Context, reference string) (*models.GatewayVerifyResult, error) {
	resp, err := g.client.Get(ctx, "/transaction/verify/"+url.PathEscape(reference))
	if err != nil {
		return nil, mapTransportError(err)
	}

	env, err := decodeEnvelope(resp)
	if err != nil {
		return nil, err
	}

	var data verifyData
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return nil, &payments.GatewayError{
			Kind:       payments.ErrGatewayUnavailable,
			StatusCode: resp.StatusCode,
			Message:    "malformed verify response",
			Payload:    resp.Body,
		}
	}

	return &models.GatewayVerifyResult{
		Status:     MapStatus(data.Status),
		Amount:     data.Amount,
		Currency:   data.Currency,
		RawPayload: models.RawPayload(env.Data),
	}, nil
}

// ValidateSignature checks the hex HMAC-SHA512 of body against signature
func (g *PaystackGW) ValidateSignature(body []byte, signature string) bool {
	if g.secretKey == "" || signature == "" {
		return false
	}
	expected, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}
	return hmac.Equal(mac(g.secretKey, body), expected)
}

// Sign returns the signature the processor would send for body
func Sign(secretKey string, body []byte) string {
	return hex.EncodeToString(mac(secretKey, body))
}

func mac(secretKey string, body []byte) []byte {
	h := hmac.New(sha512.New, []byte(secretKey))
	h.Write(body)
	return h.Sum(nil)
}

// MapStatus folds the processor's charge states into ledger statuses
func MapStatus(status string) models.TransactionStatus {
	switch status {
	case "success":
		return models.TransactionStatusSuccess
	case "failed", "abandoned", "reversed":
		return models.TransactionStatusFailed
	default:
		return models.TransactionStatusPending
	}
}

// maxMessageLength bounds processor messages surfaced to callers
const maxMessageLength = 200

func decodeEnvelope(resp *httpclient.Response) (*envelope, error) {
	var env envelope
	decodeErr := resp.Decode(&env)

	if resp.StatusCode >= http.StatusBadRequest {
		message := env.Message
		if decodeErr != nil || message == "" {
			message = http.StatusText(resp.StatusCode)
		}
		return nil, &payments.GatewayError{
			Kind:       payments.ErrGatewayRejected,
			StatusCode: resp.StatusCode,
			Message:    utils.Truncate(message, maxMessageLength),
			Payload:    resp.Body,
		}
	}
	if decodeErr != nil {
		return nil, &payments.GatewayError{
			Kind:       payments.ErrGatewayUnavailable,
			StatusCode: resp.StatusCode,
			Message:    decodeErr.Error(),
			Payload:    resp.Body,
		}
	}
	if !env.Status {
		return nil, &payments.GatewayError{
			Kind:       payments.ErrGatewayRejected,
			StatusCode: resp.StatusCode,
			Message:    utils.Truncate(env.Message, maxMessageLength),
			Payload:    resp.Body,
		}
	}
	return &env, nil
}

func mapTransportError(err error) error {
	if httpclient.IsServerFailure(err) {
		gwErr := &payments.GatewayError{Kind: payments.ErrGatewayUnavailable, Message: err.Error()}
		var httpErr *httpclient.HTTPError
		if errors.As(err, &httpErr) {
			gwErr.StatusCode = httpErr.StatusCode
			gwErr.Payload = httpErr.Body
		}
		return gwErr
	}
	return fmt.Errorf("gateway request failed: %w", err)
}
