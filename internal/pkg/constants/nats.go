package constants

// Event subjects (NATS) and topics (NSQ) for payment lifecycle events
const (
	SubjectPaymentSucceeded = "payment.succeeded"
	SubjectPaymentFailed    = "payment.failed"
)
