package constants

// Redis key formats
const (
	KeyPaymentStatus = "payment:tx:%s" // Format: payment:tx:{reference}

	// Rate Limiting
	KeyRateLimitInitiate = "rate:initiate" // suffixed with :{user_id}
)
