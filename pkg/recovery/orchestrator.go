// Package recovery implements the client-side verification orchestrator used
// by frontends to recover from missed or delayed server-side payment
// notifications. It walks several independent verification strategies in a
// fixed order, each with its own timeout race and backoff retries, and stops
// on the first definitive outcome. Server-side idempotency makes repeated or
// abandoned attempts harmless.
package recovery

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"

	apperrors "github.com/brandlinkhq/payment-service/pkg/errors"
	"github.com/brandlinkhq/payment-service/pkg/retry"

	"github.com/brandlinkhq/payment-service/internal/domain/model"
)

// Strategy names, in the order they are tried.
const (
	StrategyOrderStatus    = "order-status"
	StrategyTransaction    = "transaction-lookup"
	StrategyDealStatus     = "deal-status"
	StrategyDatabaseDirect = "database-direct"
)

// Request carries the identifiers the caller happens to have. Only the
// strategies whose identifier is present are attempted.
type Request struct {
	MerchantOrderID string
	TransactionID   string
	DealID          int64
}

// Outcome classifies how the chain ended.
type Outcome string

const (
	// OutcomePaid means a strategy confirmed the payment and the deal is
	// settled.
	OutcomePaid Outcome = "paid"
	// OutcomeTerminal means the gateway definitively reported
	// FAILED/CANCELLED; there is nothing left to verify.
	OutcomeTerminal Outcome = "terminal"
	// OutcomeUnresolved means every applicable strategy exhausted its
	// retries. The user should contact support.
	OutcomeUnresolved Outcome = "unresolved"
)

// StrategyAttempt records one strategy's contribution for diagnostics.
type StrategyAttempt struct {
	Strategy string
	Err      error
}

// Result is the aggregate outcome of a recovery run.
type Result struct {
	Outcome       Outcome
	PaymentStatus model.PaymentStatus
	Strategy      string
	Attempts      []StrategyAttempt
	Message       string
}

// errSkipStrategy marks failures that make the current strategy pointless to
// retry (unknown id, not authorized) without being definitive for the chain.
type errSkipStrategy struct {
	err error
}

func (e *errSkipStrategy) Error() string { return e.err.Error() }
func (e *errSkipStrategy) Unwrap() error { return e.err }

// errTerminal stops the whole chain with a definitive negative outcome.
type errTerminal struct {
	status model.PaymentStatus
	err    error
}

func newTerminalError(status model.PaymentStatus) *errTerminal {
	return &errTerminal{
		status: status,
		err: apperrors.NewAppError(apperrors.ErrPaymentTerminal,
			fmt.Sprintf("payment reached terminal state %s", status), nil),
	}
}

func (e *errTerminal) Error() string { return e.err.Error() }
func (e *errTerminal) Unwrap() error { return e.err }

// errStillPending marks a successful call that observed a not-yet-settled
// payment; retried within the strategy and then fallen through.
var errStillPending = apperrors.New("payment still pending")

// Orchestrator drives the verification strategy chain over the payment
// service's HTTP API.
type Orchestrator struct {
	baseURL   string
	authToken string
	client    *http.Client
	retryCfg  retry.Config
	logger    *zap.Logger
}

// New creates an orchestrator talking to the payment service at baseURL,
// authenticating with the caller's bearer token.
func New(baseURL, authToken string, logger *zap.Logger) *Orchestrator {
	return &Orchestrator{
		baseURL:   strings.TrimRight(baseURL, "/"),
		authToken: authToken,
		client:    &http.Client{},
		retryCfg:  retry.Config{},
		logger:    logger,
	}
}

// WithRetryConfig overrides the per-strategy retry behaviour.
func (o *Orchestrator) WithRetryConfig(cfg retry.Config) *Orchestrator {
	o.retryCfg = cfg
	return o
}

// WithHTTPClient overrides the HTTP client. Used by tests.
func (o *Orchestrator) WithHTTPClient(client *http.Client) *Orchestrator {
	o.client = client
	return o
}

type strategyFunc func(ctx context.Context) (model.PaymentStatus, error)

// VerifyPaymentWithRecovery runs the strategy chain. It never returns a Go
// error for a payment-level failure; the Result's Outcome carries the
// verdict.
func (o *Orchestrator) VerifyPaymentWithRecovery(ctx context.Context, req Request) *Result {
	type namedStrategy struct {
		name string
		fn   strategyFunc
	}

	var chain []namedStrategy
	if req.MerchantOrderID != "" {
		chain = append(chain, namedStrategy{StrategyOrderStatus, func(ctx context.Context) (model.PaymentStatus, error) {
			return o.checkOrderStatus(ctx, req.MerchantOrderID)
		}})
	}
	if req.TransactionID != "" {
		chain = append(chain, namedStrategy{StrategyTransaction, func(ctx context.Context) (model.PaymentStatus, error) {
			return o.checkTransaction(ctx, req.TransactionID, req.DealID)
		}})
	}
	if req.DealID > 0 {
		chain = append(chain, namedStrategy{StrategyDealStatus, func(ctx context.Context) (model.PaymentStatus, error) {
			return o.checkDealStatus(ctx, req.DealID)
		}})
		chain = append(chain, namedStrategy{StrategyDatabaseDirect, func(ctx context.Context) (model.PaymentStatus, error) {
			return o.checkDatabaseDirect(ctx, req.DealID)
		}})
	}

	result := &Result{Outcome: OutcomeUnresolved}

	for _, strategy := range chain {
		status, err := retry.Do(ctx, o.retryCfg, strategy.fn)
		result.Attempts = append(result.Attempts, StrategyAttempt{Strategy: strategy.name, Err: err})

		if err == nil {
			result.Outcome = OutcomePaid
			result.PaymentStatus = status
			result.Strategy = strategy.name
			result.Message = "payment verified"
			return result
		}

		var terminal *errTerminal
		if apperrors.As(err, &terminal) {
			result.Outcome = OutcomeTerminal
			result.PaymentStatus = terminal.status
			result.Strategy = strategy.name
			result.Message = "payment was not completed"
			return result
		}

		o.logger.Warn("Verification strategy exhausted",
			zap.String("strategy", strategy.name),
			zap.Error(err))
	}

	result.Message = "payment verification did not complete; please contact support"
	return result
}

// verifyResponse mirrors the service's reconcile result body.
type verifyResponse struct {
	Payment *struct {
		Status model.PaymentStatus `json:"status"`
	} `json:"payment"`
	Deal *struct {
		PaymentStatus model.DealPaymentStatus `json:"payment_status"`
	} `json:"deal"`
	DealUpdated bool `json:"deal_updated"`
}

// dealSnapshotResponse mirrors the read-only deal snapshot body.
type dealSnapshotResponse struct {
	PaymentStatus model.DealPaymentStatus `json:"payment_status"`
	LatestPayment *struct {
		Status model.PaymentStatus `json:"status"`
	} `json:"latest_payment"`
}

func (o *Orchestrator) checkOrderStatus(ctx context.Context, merchantOrderID string) (model.PaymentStatus, error) {
	var resp verifyResponse
	if err := o.doJSON(ctx, http.MethodGet, "/payments/status/"+merchantOrderID, nil, &resp); err != nil {
		return "", err
	}
	return evaluatePayment(resp)
}

func (o *Orchestrator) checkTransaction(ctx context.Context, transactionID string, dealID int64) (model.PaymentStatus, error) {
	body := map[string]interface{}{"transaction_id": transactionID}
	if dealID > 0 {
		body["deal_id"] = dealID
	}
	var resp verifyResponse
	if err := o.doJSON(ctx, http.MethodPost, "/payments/verify-by-transaction", body, &resp); err != nil {
		return "", err
	}
	return evaluatePayment(resp)
}

func (o *Orchestrator) checkDealStatus(ctx context.Context, dealID int64) (model.PaymentStatus, error) {
	var resp dealSnapshotResponse
	if err := o.doJSON(ctx, http.MethodGet, fmt.Sprintf("/payments/deal/%d", dealID), nil, &resp); err != nil {
		return "", err
	}

	if resp.PaymentStatus == model.DealPaymentStatusPaid {
		return model.PaymentStatusSuccess, nil
	}
	if resp.LatestPayment != nil {
		switch resp.LatestPayment.Status {
		case model.PaymentStatusFailed, model.PaymentStatusCancelled:
			return "", retry.Permanent(newTerminalError(resp.LatestPayment.Status))
		}
	}
	return "", errStillPending
}

func (o *Orchestrator) checkDatabaseDirect(ctx context.Context, dealID int64) (model.PaymentStatus, error) {
	body := map[string]interface{}{"deal_id": dealID}
	var resp verifyResponse
	if err := o.doJSON(ctx, http.MethodPost, "/payments/verify-database-direct", body, &resp); err != nil {
		return "", err
	}
	return evaluatePayment(resp)
}

// evaluatePayment turns a reconcile result into a strategy verdict.
func evaluatePayment(resp verifyResponse) (model.PaymentStatus, error) {
	if resp.Deal != nil && resp.Deal.PaymentStatus == model.DealPaymentStatusPaid {
		status := model.PaymentStatusSuccess
		if resp.Payment != nil {
			status = resp.Payment.Status
		}
		return status, nil
	}
	if resp.Payment == nil {
		return "", errStillPending
	}
	switch resp.Payment.Status {
	case model.PaymentStatusSuccess:
		return model.PaymentStatusSuccess, nil
	case model.PaymentStatusFailed, model.PaymentStatusCancelled:
		return "", retry.Permanent(newTerminalError(resp.Payment.Status))
	default:
		return "", errStillPending
	}
}

// doJSON issues one authenticated request. 4xx responses skip the strategy
// without retrying; 5xx and transport errors are retryable.
func (o *Orchestrator) doJSON(ctx context.Context, method, path string, body interface{}, out interface{}) error {
	var reqBody io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return retry.Permanent(&errSkipStrategy{err: err})
		}
		reqBody = strings.NewReader(string(payload))
	}

	req, err := http.NewRequestWithContext(ctx, method, o.baseURL+path, reqBody)
	if err != nil {
		return retry.Permanent(&errSkipStrategy{err: err})
	}
	req.Header.Set("Authorization", "Bearer "+o.authToken)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := o.client.Do(req)
	if err != nil {
		return apperrors.NewAppError(apperrors.ErrGatewayUnavailable, "verification request failed", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return apperrors.NewAppError(apperrors.ErrGatewayUnavailable, "failed to read verification response", err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		return json.Unmarshal(respBody, out)
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return retry.Permanent(&errSkipStrategy{
			err: fmt.Errorf("verification endpoint returned %d: %s", resp.StatusCode, string(respBody)),
		})
	default:
		return apperrors.NewAppError(apperrors.ErrGatewayUnavailable,
			fmt.Sprintf("verification endpoint returned %d", resp.StatusCode), nil)
	}
}
