// Package phonepe wraps the external payment gateway's REST API. The client
// is explicitly constructed and injected; nothing in this package keeps
// global state.
package phonepe

import (
	"bytes"
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	apperrors "github.com/brandlinkhq/payment-service/pkg/errors"

	"github.com/brandlinkhq/payment-service/internal/config"
	"github.com/brandlinkhq/payment-service/internal/domain/model"
)

const (
	sandboxBaseURL    = "https://api-preprod.phonepe.com/apis/pg-sandbox"
	productionBaseURL = "https://api.phonepe.com/apis/pg"

	// Refresh the OAuth token a little before the gateway expires it.
	tokenExpiryMargin = 2 * time.Minute
)

// Client talks to the payment gateway. All money-moving trust decisions
// (notification signature validation in particular) live here.
type Client struct {
	cfg     config.GatewayConfig
	baseURL string
	client  *http.Client
	logger  *zap.Logger

	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time
}

// NewClient creates a gateway client from the given configuration. Missing
// credentials are not an error here; they surface as a GATEWAY_CONFIG error
// on the first operation that needs them.
func NewClient(cfg config.GatewayConfig, logger *zap.Logger) *Client {
	baseURL := sandboxBaseURL
	if cfg.Environment == "production" {
		baseURL = productionBaseURL
	}

	return &Client{
		cfg:     cfg,
		baseURL: baseURL,
		client:  &http.Client{Timeout: 30 * time.Second},
		logger:  logger,
	}
}

// WithBaseURL overrides the gateway host. Used by tests.
func (c *Client) WithBaseURL(baseURL string) *Client {
	c.baseURL = baseURL
	return c
}

func (c *Client) ensureConfigured() error {
	if c.cfg.ClientID == "" || c.cfg.ClientSecret == "" || c.cfg.ClientVersion == "" {
		return apperrors.NewAppError(apperrors.ErrGatewayConfig,
			"payment gateway credentials are not configured", nil)
	}
	return nil
}

func (c *Client) authToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.accessToken != "" && time.Now().Before(c.tokenExpiry.Add(-tokenExpiryMargin)) {
		return c.accessToken, nil
	}

	form := url.Values{}
	form.Set("client_id", c.cfg.ClientID)
	form.Set("client_secret", c.cfg.ClientSecret)
	form.Set("client_version", c.cfg.ClientVersion)
	form.Set("grant_type", "client_credentials")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/v1/oauth/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", apperrors.NewAppError(apperrors.ErrGatewayUnavailable,
			"failed to build token request", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Error("Gateway token request failed", zap.Error(err))
		return "", apperrors.NewAppError(apperrors.ErrGatewayUnavailable,
			"gateway token request failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", apperrors.NewAppError(apperrors.ErrGatewayUnavailable,
			"failed to read token response", err)
	}

	if resp.StatusCode != http.StatusOK {
		c.logger.Error("Gateway token request rejected",
			zap.Int("status_code", resp.StatusCode),
			zap.String("response", string(body)))
		return "", apperrors.NewAppError(apperrors.ErrGatewayUnavailable,
			fmt.Sprintf("gateway token request returned %d", resp.StatusCode), nil)
	}

	var token tokenResponse
	if err := json.Unmarshal(body, &token); err != nil {
		return "", apperrors.NewAppError(apperrors.ErrGatewayUnavailable,
			"failed to parse token response", err)
	}

	c.accessToken = token.AccessToken
	c.tokenExpiry = time.Unix(token.ExpiresAt, 0)

	return c.accessToken, nil
}

// CreateOrder registers a new order with the gateway and returns the hosted
// checkout redirect URL. Amounts are sent in minor currency units.
func (c *Client) CreateOrder(ctx context.Context, merchantOrderID string, amount decimal.Decimal, redirectURL string) (*CreateOrderResult, error) {
	if err := c.ensureConfigured(); err != nil {
		return nil, err
	}

	token, err := c.authToken(ctx)
	if err != nil {
		return nil, err
	}

	reqBody := payRequest{
		MerchantOrderID: merchantOrderID,
		Amount:          amount.Mul(decimal.NewFromInt(100)).IntPart(),
		PaymentFlow: payRequestFlow{
			Type: "PG_CHECKOUT",
		},
	}
	if redirectURL != "" {
		reqBody.PaymentFlow.MerchantURLs = &payMerchantURLs{RedirectURL: redirectURL}
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to prepare order request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/checkout/v2/pay", bytes.NewBuffer(jsonBody))
	if err != nil {
		return nil, apperrors.NewAppError(apperrors.ErrGatewayUnavailable,
			"failed to build order request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "O-Bearer "+token)

	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Error("Gateway order request failed",
			zap.String("merchant_order_id", merchantOrderID),
			zap.Error(err))
		return nil, apperrors.NewAppError(apperrors.ErrGatewayUnavailable,
			"gateway order request failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperrors.NewAppError(apperrors.ErrGatewayUnavailable,
			"failed to read order response", err)
	}

	if resp.StatusCode != http.StatusOK {
		c.logger.Error("Gateway rejected order",
			zap.String("merchant_order_id", merchantOrderID),
			zap.Int("status_code", resp.StatusCode),
			zap.String("response", string(body)))
		return nil, apperrors.NewAppError(apperrors.ErrGatewayUnavailable,
			fmt.Sprintf("gateway order request returned %d", resp.StatusCode), nil)
	}

	var payResp payResponse
	if err := json.Unmarshal(body, &payResp); err != nil {
		return nil, apperrors.NewAppError(apperrors.ErrGatewayUnavailable,
			"failed to parse order response", err)
	}

	c.logger.Info("Gateway order created",
		zap.String("merchant_order_id", merchantOrderID),
		zap.String("gateway_order_id", payResp.OrderID))

	return &CreateOrderResult{
		GatewayOrderID: payResp.OrderID,
		RedirectURL:    payResp.RedirectURL,
		State:          payResp.State,
	}, nil
}

// OrderStatus polls the gateway for the authoritative state of an order.
func (c *Client) OrderStatus(ctx context.Context, merchantOrderID string) (*OrderStatus, error) {
	if err := c.ensureConfigured(); err != nil {
		return nil, err
	}

	token, err := c.authToken(ctx)
	if err != nil {
		return nil, err
	}

	statusURL := fmt.Sprintf("%s/checkout/v2/order/%s/status", c.baseURL, url.PathEscape(merchantOrderID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, statusURL, nil)
	if err != nil {
		return nil, apperrors.NewAppError(apperrors.ErrGatewayUnavailable,
			"failed to build status request", err)
	}
	req.Header.Set("Authorization", "O-Bearer "+token)

	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Error("Gateway status request failed",
			zap.String("merchant_order_id", merchantOrderID),
			zap.Error(err))
		return nil, apperrors.NewAppError(apperrors.ErrGatewayUnavailable,
			"gateway status request failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperrors.NewAppError(apperrors.ErrGatewayUnavailable,
			"failed to read status response", err)
	}

	if resp.StatusCode != http.StatusOK {
		c.logger.Error("Gateway status request rejected",
			zap.String("merchant_order_id", merchantOrderID),
			zap.Int("status_code", resp.StatusCode),
			zap.String("response", string(body)))
		return nil, apperrors.NewAppError(apperrors.ErrGatewayUnavailable,
			fmt.Sprintf("gateway status request returned %d", resp.StatusCode), nil)
	}

	var statusResp orderStatusResponse
	if err := json.Unmarshal(body, &statusResp); err != nil {
		return nil, apperrors.NewAppError(apperrors.ErrGatewayUnavailable,
			"failed to parse status response", err)
	}

	var raw model.JSONB
	if err := json.Unmarshal(body, &raw); err != nil {
		raw = model.JSONB{}
	}

	status := &OrderStatus{
		GatewayOrderID: statusResp.OrderID,
		State:          statusResp.State,
		Raw:            raw,
	}
	if len(statusResp.PaymentDetails) > 0 {
		status.TransactionID = statusResp.PaymentDetails[0].TransactionID
	}

	return status, nil
}

// ValidateNotification authenticates an inbound webhook or callback payload.
// The gateway signs deliveries with SHA256(username:password) in the
// Authorization header; anything that does not match is rejected before any
// state is read, since this check is the trust boundary for every
// money-moving transition.
func (c *Client) ValidateNotification(authorization string, body []byte) (*Notification, error) {
	if c.cfg.WebhookUsername == "" || c.cfg.WebhookPassword == "" {
		return nil, apperrors.NewAppError(apperrors.ErrGatewayConfig,
			"webhook credentials are not configured", nil)
	}

	sum := sha256.Sum256([]byte(c.cfg.WebhookUsername + ":" + c.cfg.WebhookPassword))
	expected := hex.EncodeToString(sum[:])

	received := strings.TrimSpace(strings.TrimPrefix(authorization, "SHA256"))
	received = strings.TrimSpace(strings.TrimPrefix(received, "="))

	if subtle.ConstantTimeCompare([]byte(expected), []byte(strings.ToLower(received))) != 1 {
		return nil, apperrors.NewAppError(apperrors.ErrSignatureInvalid,
			"notification signature mismatch", nil)
	}

	var envelope notificationEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, apperrors.NewAppError(apperrors.ErrSignatureInvalid,
			"notification body is not valid JSON", err)
	}

	var raw model.JSONB
	if err := json.Unmarshal(body, &raw); err != nil {
		raw = model.JSONB{}
	}

	event := envelope.Event
	if event == "" {
		event = envelope.Type
	}

	// Some deliveries carry the order fields at the top level instead of
	// under payload.
	payload := envelope.Payload
	if payload.MerchantOrderID == "" {
		if v, ok := raw["merchantOrderId"].(string); ok {
			payload.MerchantOrderID = v
		}
	}
	if payload.State == "" {
		if v, ok := raw["state"].(string); ok {
			payload.State = v
		}
	}
	if payload.TransactionID == "" {
		if v, ok := raw["transactionId"].(string); ok {
			payload.TransactionID = v
		}
	}

	if payload.MerchantOrderID == "" {
		return nil, apperrors.NewAppError(apperrors.ErrInvalidArgument,
			"notification is missing merchantOrderId", nil)
	}

	return &Notification{
		Event:           event,
		MerchantOrderID: payload.MerchantOrderID,
		State:           payload.State,
		TransactionID:   payload.TransactionID,
		GatewayOrderID:  payload.OrderID,
		Raw:             raw,
	}, nil
}
