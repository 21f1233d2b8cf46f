package models

import "github.com/shopspring/decimal"

// minorUnitExponent is the number of decimal places between major and minor
// currency units (kobo, cents).
const minorUnitExponent = 2

// GatewayInitResult is what the processor returns when a charge is initialized
type GatewayInitResult struct {
	RedirectURL      string `json:"redirect_url"`
	GatewayReference string `json:"gateway_reference"`
	AccessCode       string `json:"access_code"`
}

// GatewayVerifyResult is the processor's authoritative view of a charge
type GatewayVerifyResult struct {
	Status     TransactionStatus `json:"status"`
	Amount     int64             `json:"amount"`
	Currency   string            `json:"currency"`
	RawPayload RawPayload        `json:"raw_payload"`
}

// Matches reports whether the charged amount and currency agree with the
// ledger row. Zero values from the gateway are treated as unknown.
func (r *GatewayVerifyResult) Matches(t *Transaction) bool {
	if r.Amount != 0 && r.Amount != t.Amount {
		return false
	}
	if r.Currency != "" && t.Currency != "" && r.Currency != t.Currency {
		return false
	}
	return true
}

// FormatMinor renders a minor-unit amount in major units, e.g. 50000 -> "500.00"
func FormatMinor(amount int64) string {
	return decimal.New(amount, -minorUnitExponent).StringFixed(minorUnitExponent)
}
