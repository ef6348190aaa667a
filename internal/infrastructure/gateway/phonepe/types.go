package phonepe

import (
	"github.com/brandlinkhq/payment-service/internal/domain/model"
)

// Gateway order states as delivered in notifications and status responses.
const (
	StateCompleted = "COMPLETED"
	StateFailed    = "FAILED"
	StateCancelled = "CANCELLED"
	StatePending   = "PENDING"
)

// MapState converts a gateway order state to the internal payment status.
// Every handler goes through this one mapping; unknown states are treated
// as still pending rather than guessed at.
func MapState(state string) model.PaymentStatus {
	switch state {
	case StateCompleted:
		return model.PaymentStatusSuccess
	case StateFailed:
		return model.PaymentStatusFailed
	case StateCancelled:
		return model.PaymentStatusCancelled
	default:
		return model.PaymentStatusPending
	}
}

// CreateOrderResult is the outcome of registering an order with the gateway.
type CreateOrderResult struct {
	GatewayOrderID string `json:"order_id"`
	RedirectURL    string `json:"redirect_url"`
	State          string `json:"state"`
}

// OrderStatus is the gateway's authoritative view of an order.
type OrderStatus struct {
	GatewayOrderID string
	State          string
	TransactionID  string
	Raw            model.JSONB
}

// Notification is a verified inbound webhook/callback payload.
type Notification struct {
	Event           string
	MerchantOrderID string
	State           string
	TransactionID   string
	GatewayOrderID  string
	Raw             model.JSONB
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresAt   int64  `json:"expires_at"`
}

type payRequest struct {
	MerchantOrderID string         `json:"merchantOrderId"`
	Amount          int64          `json:"amount"`
	PaymentFlow     payRequestFlow `json:"paymentFlow"`
}

type payRequestFlow struct {
	Type         string           `json:"type"`
	MerchantURLs *payMerchantURLs `json:"merchantUrls,omitempty"`
}

type payMerchantURLs struct {
	RedirectURL string `json:"redirectUrl"`
}

type payResponse struct {
	OrderID     string `json:"orderId"`
	State       string `json:"state"`
	RedirectURL string `json:"redirectUrl"`
}

type orderStatusResponse struct {
	OrderID        string          `json:"orderId"`
	State          string          `json:"state"`
	Amount         int64           `json:"amount"`
	PaymentDetails []paymentDetail `json:"paymentDetails"`
}

type paymentDetail struct {
	TransactionID string `json:"transactionId"`
	PaymentMode   string `json:"paymentMode"`
	State         string `json:"state"`
}

type notificationEnvelope struct {
	Event   string              `json:"event"`
	Type    string              `json:"type"`
	Payload notificationPayload `json:"payload"`
}

type notificationPayload struct {
	MerchantOrderID string `json:"merchantOrderId"`
	OrderID         string `json:"orderId"`
	State           string `json:"state"`
	TransactionID   string `json:"transactionId"`
}
