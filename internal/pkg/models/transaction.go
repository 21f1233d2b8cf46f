package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// TransactionStatus represents the lifecycle state of a top-up transaction
type TransactionStatus string

const (
	TransactionStatusPending TransactionStatus = "pending"
	TransactionStatusSuccess TransactionStatus = "success"
	TransactionStatusFailed  TransactionStatus = "failed"
)

// IsFinal reports whether no further transition is permitted from s
func (s TransactionStatus) IsFinal() bool {
	return s == TransactionStatusSuccess || s == TransactionStatusFailed
}

// ParseTransactionStatus converts a stored value into a TransactionStatus
func ParseTransactionStatus(v string) (TransactionStatus, error) {
	switch s := TransactionStatus(v); s {
	case TransactionStatusPending, TransactionStatusSuccess, TransactionStatusFailed:
		return s, nil
	default:
		return "", fmt.Errorf("unknown transaction status %q", v)
	}
}

// RawPayload is an opaque gateway response kept for audit. It maps to a
// nullable JSONB column.
type RawPayload []byte

// Scan implements sql.Scanner
func (p *RawPayload) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*p = nil
	case []byte:
		*p = append(RawPayload(nil), v...)
	case string:
		*p = RawPayload(v)
	default:
		return fmt.Errorf("cannot scan %T into RawPayload", src)
	}
	return nil
}

// Value implements driver.Valuer
func (p RawPayload) Value() (driver.Value, error) {
	if len(p) == 0 {
		return nil, nil
	}
	return []byte(p), nil
}

// MarshalJSON emits the payload verbatim, or null when empty
func (p RawPayload) MarshalJSON() ([]byte, error) {
	if len(p) == 0 {
		return []byte("null"), nil
	}
	if !json.Valid(p) {
		return json.Marshal(string(p))
	}
	return p, nil
}

// UnmarshalJSON keeps the raw bytes
func (p *RawPayload) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*p = nil
		return nil
	}
	*p = append(RawPayload(nil), data...)
	return nil
}

// Transaction is a ledger row correlating a top-up with the payment gateway
type Transaction struct {
	ID             string            `json:"id" db:"id"`
	UserID         string            `json:"user_id" db:"user_id"`
	Email          string            `json:"email" db:"email"`
	Amount         int64             `json:"amount" db:"amount"`
	Currency       string            `json:"currency" db:"currency"`
	Reference      string            `json:"reference" db:"reference"`
	Status         TransactionStatus `json:"status" db:"status"`
	GatewayPayload RawPayload        `json:"gateway_payload,omitempty" db:"gateway_payload"`
	CreatedAt      time.Time         `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at" db:"updated_at"`
	DeletedAt      *time.Time        `json:"deleted_at,omitempty" db:"deleted_at"`
}

// IsFinal reports whether the transaction has left the pending state
func (t *Transaction) IsFinal() bool {
	return t.Status.IsFinal()
}

// VerifySource identifies what triggered a verification
type VerifySource string

const (
	VerifySourceUser       VerifySource = "user"
	VerifySourceCallback   VerifySource = "callback"
	VerifySourceReconciler VerifySource = "reconciler"
)

// VerifyOutcome summarises the effect of a verification
type VerifyOutcome string

const (
	VerifyOutcomeCredited VerifyOutcome = "credited"
	VerifyOutcomeFailed   VerifyOutcome = "failed"
	VerifyOutcomePending  VerifyOutcome = "pending"
)

// InitiateRequest is a user request to top up their balance
type InitiateRequest struct {
	UserID string `json:"-"`
	Email  string `json:"email" validate:"required,email"`
	Amount int64  `json:"amount" validate:"gt=0"`
}

// InitiateResponse is returned once the gateway has issued a redirect
type InitiateResponse struct {
	Reference        string            `json:"reference"`
	RedirectURL      string            `json:"redirect_url"`
	Status           TransactionStatus `json:"status"`
	Amount           int64             `json:"amount"`
	AmountMajor      string            `json:"amount_major"`
	Currency         string            `json:"currency"`
	AccessCode       string            `json:"access_code,omitempty"`
	GatewayReference string            `json:"gateway_reference,omitempty"`
}

// VerifyResult is the outcome of a verification attempt
type VerifyResult struct {
	Transaction      *Transaction  `json:"transaction"`
	Outcome          VerifyOutcome `json:"outcome"`
	AlreadyFinalized bool          `json:"already_finalized"`
}

// OutcomeFor maps a transaction's status to the outcome reported to callers
func OutcomeFor(t *Transaction) VerifyOutcome {
	switch t.Status {
	case TransactionStatusSuccess:
		return VerifyOutcomeCredited
	case TransactionStatusFailed:
		return VerifyOutcomeFailed
	default:
		return VerifyOutcomePending
	}
}

// CallbackEvent is the gateway's asynchronous notification. Only the
// reference is used; the stated status is informational.
type CallbackEvent struct {
	Event string `json:"event"`
	Data  struct {
		Reference string `json:"reference"`
		Status    string `json:"status"`
		Amount    int64  `json:"amount"`
	} `json:"data"`
}

// ReconcileReport counts what a stale-transaction sweep did
type ReconcileReport struct {
	Scanned      int `json:"scanned"`
	Succeeded    int `json:"succeeded"`
	Failed       int `json:"failed"`
	Expired      int `json:"expired"`
	StillPending int `json:"still_pending"`
	Errors       int `json:"errors"`
}
