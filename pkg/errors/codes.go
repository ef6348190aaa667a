package errors

// Common error codes
const (
	ErrInternal        = "INTERNAL"
	ErrNotFound        = "NOT_FOUND"
	ErrInvalidArgument = "INVALID_ARGUMENT"
	ErrUnauthenticated = "UNAUTHENTICATED"
	ErrUnauthorized    = "UNAUTHORIZED"
	ErrConflict        = "CONFLICT"
	ErrTimeout         = "TIMEOUT"
	ErrNotImplemented  = "NOT_IMPLEMENTED"
)

// Payment domain error codes
const (
	// ErrGatewayConfig means gateway credentials are absent or malformed.
	// Surfaced as 500; this is an operator problem, not a caller problem.
	ErrGatewayConfig = "GATEWAY_CONFIG"

	// ErrSignatureInvalid means an inbound notification failed its
	// authenticity check and must not be trusted.
	ErrSignatureInvalid = "SIGNATURE_INVALID"

	// ErrGatewayUnavailable covers transport failures and gateway 4xx/5xx
	// responses. Retryable by the client-side recovery orchestrator.
	ErrGatewayUnavailable = "GATEWAY_UNAVAILABLE"

	// ErrPaymentTerminal means the gateway reported a definitive
	// FAILED/CANCELLED outcome. Never retried.
	ErrPaymentTerminal = "PAYMENT_TERMINAL"
)
