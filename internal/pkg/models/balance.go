package models

import "time"

// Balance is the spendable top-up balance of a user, in minor units
type Balance struct {
	UserID      string    `json:"user_id" db:"user_id"`
	Amount      int64     `json:"amount" db:"amount"`
	AmountMajor string    `json:"amount_major" db:"-"`
	Currency    string    `json:"currency" db:"-"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// BalanceCredit records one applied credit, keyed by its idempotency key
type BalanceCredit struct {
	IdempotencyKey string    `json:"idempotency_key" db:"idempotency_key"`
	UserID         string    `json:"user_id" db:"user_id"`
	Amount         int64     `json:"amount" db:"amount"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
}
