package phonepe_test

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	apperrors "github.com/brandlinkhq/payment-service/pkg/errors"

	"github.com/brandlinkhq/payment-service/internal/config"
	"github.com/brandlinkhq/payment-service/internal/domain/model"
	"github.com/brandlinkhq/payment-service/internal/infrastructure/gateway/phonepe"
)

func testConfig() config.GatewayConfig {
	return config.GatewayConfig{
		ClientID:        "client-id",
		ClientSecret:    "client-secret",
		ClientVersion:   "1",
		Environment:     "sandbox",
		WebhookUsername: "merchant",
		WebhookPassword: "secret",
	}
}

func webhookAuth(username, password string) string {
	sum := sha256.Sum256([]byte(username + ":" + password))
	return hex.EncodeToString(sum[:])
}

func TestMapState(t *testing.T) {
	tests := []struct {
		state string
		want  model.PaymentStatus
	}{
		{phonepe.StateCompleted, model.PaymentStatusSuccess},
		{phonepe.StateFailed, model.PaymentStatusFailed},
		{phonepe.StateCancelled, model.PaymentStatusCancelled},
		{phonepe.StatePending, model.PaymentStatusPending},
		{"SOMETHING_NEW", model.PaymentStatusPending},
		{"", model.PaymentStatusPending},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, phonepe.MapState(tt.state), "state %q", tt.state)
	}
}

func TestValidateNotification_AcceptsSignedPayload(t *testing.T) {
	client := phonepe.NewClient(testConfig(), zap.NewNop())

	body := []byte(`{
		"event": "checkout.order.completed",
		"payload": {
			"merchantOrderId": "ORD_ABC",
			"orderId": "OMO123",
			"state": "COMPLETED",
			"transactionId": "T999"
		}
	}`)

	n, err := client.ValidateNotification(webhookAuth("merchant", "secret"), body)
	require.NoError(t, err)
	assert.Equal(t, "checkout.order.completed", n.Event)
	assert.Equal(t, "ORD_ABC", n.MerchantOrderID)
	assert.Equal(t, phonepe.StateCompleted, n.State)
	assert.Equal(t, "T999", n.TransactionID)
	assert.Equal(t, "OMO123", n.GatewayOrderID)
}

func TestValidateNotification_AcceptsSHA256PrefixAndUppercase(t *testing.T) {
	client := phonepe.NewClient(testConfig(), zap.NewNop())

	body := []byte(`{"payload":{"merchantOrderId":"ORD_ABC","state":"FAILED"}}`)
	auth := "SHA256=" + strings.ToUpper(webhookAuth("merchant", "secret"))

	n, err := client.ValidateNotification(auth, body)
	require.NoError(t, err)
	assert.Equal(t, phonepe.StateFailed, n.State)
}

func TestValidateNotification_RejectsBadSignature(t *testing.T) {
	client := phonepe.NewClient(testConfig(), zap.NewNop())

	body := []byte(`{"payload":{"merchantOrderId":"ORD_ABC","state":"COMPLETED"}}`)

	_, err := client.ValidateNotification(webhookAuth("merchant", "wrong"), body)
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrSignatureInvalid, apperrors.CodeOf(err))

	_, err = client.ValidateNotification("", body)
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrSignatureInvalid, apperrors.CodeOf(err))
}

func TestValidateNotification_MissingWebhookCredentials(t *testing.T) {
	cfg := testConfig()
	cfg.WebhookUsername = ""
	client := phonepe.NewClient(cfg, zap.NewNop())

	_, err := client.ValidateNotification(webhookAuth("merchant", "secret"), []byte(`{}`))
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrGatewayConfig, apperrors.CodeOf(err))
}

func TestValidateNotification_TopLevelFieldsFallback(t *testing.T) {
	client := phonepe.NewClient(testConfig(), zap.NewNop())

	// Some deliveries skip the payload envelope entirely.
	body := []byte(`{"type":"PG_ORDER_COMPLETED","merchantOrderId":"ORD_TOP","state":"COMPLETED","transactionId":"T1"}`)

	n, err := client.ValidateNotification(webhookAuth("merchant", "secret"), body)
	require.NoError(t, err)
	assert.Equal(t, "PG_ORDER_COMPLETED", n.Event)
	assert.Equal(t, "ORD_TOP", n.MerchantOrderID)
	assert.Equal(t, "T1", n.TransactionID)
}

func TestValidateNotification_MissingOrderID(t *testing.T) {
	client := phonepe.NewClient(testConfig(), zap.NewNop())

	_, err := client.ValidateNotification(webhookAuth("merchant", "secret"), []byte(`{"state":"COMPLETED"}`))
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrInvalidArgument, apperrors.CodeOf(err))
}

func TestCreateOrder_MissingCredentials(t *testing.T) {
	client := phonepe.NewClient(config.GatewayConfig{}, zap.NewNop())

	_, err := client.CreateOrder(context.Background(), "ORD_1", decimal.NewFromInt(100), "")
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrGatewayConfig, apperrors.CodeOf(err))
}

func TestCreateOrder_SendsMinorUnitsAndBearerToken(t *testing.T) {
	tokenCalls := 0
	var gotAmount int64
	var gotAuth string
	var gotRedirect string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/oauth/token":
			tokenCalls++
			require.NoError(t, r.ParseForm())
			assert.Equal(t, "client_credentials", r.FormValue("grant_type"))
			json.NewEncoder(w).Encode(map[string]interface{}{
				"access_token": "tok-1",
				"token_type":   "O-Bearer",
				"expires_at":   9999999999,
			})
		case "/checkout/v2/pay":
			gotAuth = r.Header.Get("Authorization")
			var body struct {
				MerchantOrderID string `json:"merchantOrderId"`
				Amount          int64  `json:"amount"`
				PaymentFlow     struct {
					Type         string `json:"type"`
					MerchantURLs *struct {
						RedirectURL string `json:"redirectUrl"`
					} `json:"merchantUrls"`
				} `json:"paymentFlow"`
			}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			gotAmount = body.Amount
			if body.PaymentFlow.MerchantURLs != nil {
				gotRedirect = body.PaymentFlow.MerchantURLs.RedirectURL
			}
			json.NewEncoder(w).Encode(map[string]interface{}{
				"orderId":     "OMO777",
				"state":       "PENDING",
				"redirectUrl": "https://pay.example/OMO777",
			})
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	client := phonepe.NewClient(testConfig(), zap.NewNop()).WithBaseURL(server.URL)

	result, err := client.CreateOrder(context.Background(), "ORD_42", decimal.NewFromFloat(149.50), "https://app.example/return")
	require.NoError(t, err)
	assert.Equal(t, "OMO777", result.GatewayOrderID)
	assert.Equal(t, "https://pay.example/OMO777", result.RedirectURL)
	assert.Equal(t, int64(14950), gotAmount)
	assert.Equal(t, "O-Bearer tok-1", gotAuth)
	assert.Equal(t, "https://app.example/return", gotRedirect)

	// Second call reuses the cached token.
	_, err = client.CreateOrder(context.Background(), "ORD_43", decimal.NewFromInt(10), "")
	require.NoError(t, err)
	assert.Equal(t, 1, tokenCalls)
}

func TestOrderStatus_MapsTransactionDetails(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/oauth/token":
			json.NewEncoder(w).Encode(map[string]interface{}{
				"access_token": "tok-1",
				"expires_at":   9999999999,
			})
		case "/checkout/v2/order/ORD_42/status":
			json.NewEncoder(w).Encode(map[string]interface{}{
				"orderId": "OMO777",
				"state":   "COMPLETED",
				"amount":  14950,
				"paymentDetails": []map[string]interface{}{
					{"transactionId": "T123", "paymentMode": "UPI", "state": "COMPLETED"},
				},
			})
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	client := phonepe.NewClient(testConfig(), zap.NewNop()).WithBaseURL(server.URL)

	status, err := client.OrderStatus(context.Background(), "ORD_42")
	require.NoError(t, err)
	assert.Equal(t, "OMO777", status.GatewayOrderID)
	assert.Equal(t, phonepe.StateCompleted, status.State)
	assert.Equal(t, "T123", status.TransactionID)
	assert.Equal(t, "COMPLETED", status.Raw["state"])
}

func TestOrderStatus_GatewayErrorIsUnavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v1/oauth/token" {
			json.NewEncoder(w).Encode(map[string]interface{}{
				"access_token": "tok-1",
				"expires_at":   9999999999,
			})
			return
		}
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := phonepe.NewClient(testConfig(), zap.NewNop()).WithBaseURL(server.URL)

	_, err := client.OrderStatus(context.Background(), "ORD_42")
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrGatewayUnavailable, apperrors.CodeOf(err))
}
