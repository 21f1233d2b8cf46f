package repository

import (
	"encoding/hex"

	"github.com/google/uuid"
)

// ReferencePrefix marks references issued by this service
const ReferencePrefix = "TOPUP_"

// ReferenceGenerator produces candidate transaction references
type ReferenceGenerator func() string

// NewReference returns ReferencePrefix followed by the 32 hex digits of a
// random UUID
func NewReference() string {
	id := uuid.New()
	return ReferencePrefix + hex.EncodeToString(id[:])
}
