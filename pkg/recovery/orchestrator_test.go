package recovery_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	apperrors "github.com/brandlinkhq/payment-service/pkg/errors"
	"github.com/brandlinkhq/payment-service/pkg/recovery"
	"github.com/brandlinkhq/payment-service/pkg/retry"

	"github.com/brandlinkhq/payment-service/internal/domain/model"
)

// fastRetry keeps strategy retries near-instant in tests.
func fastRetry() retry.Config {
	return retry.Config{
		MaxAttempts:    2,
		BaseDelay:      time.Millisecond,
		Multiplier:     1.5,
		AttemptTimeout: time.Second,
	}
}

// recordingServer counts hits per path and serves canned JSON responses.
type recordingServer struct {
	mu       sync.Mutex
	hits     map[string]int
	handlers map[string]http.HandlerFunc
	server   *httptest.Server

	lastAuth string
}

func newRecordingServer() *recordingServer {
	rs := &recordingServer{
		hits:     make(map[string]int),
		handlers: make(map[string]http.HandlerFunc),
	}
	rs.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rs.mu.Lock()
		rs.hits[r.URL.Path]++
		rs.lastAuth = r.Header.Get("Authorization")
		h, ok := rs.handlers[r.URL.Path]
		rs.mu.Unlock()
		if !ok {
			http.NotFound(w, r)
			return
		}
		h(w, r)
	}))
	return rs
}

func (rs *recordingServer) on(path string, status int, body string) {
	rs.handlers[path] = func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		w.Write([]byte(body))
	}
}

func (rs *recordingServer) count(path string) int {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return rs.hits[path]
}

func newOrchestrator(rs *recordingServer) *recovery.Orchestrator {
	return recovery.New(rs.server.URL, "jwt-token", zap.NewNop()).
		WithRetryConfig(fastRetry())
}

func strategyNames(result *recovery.Result) []string {
	names := make([]string, 0, len(result.Attempts))
	for _, a := range result.Attempts {
		names = append(names, a.Strategy)
	}
	return names
}

func TestRecovery_OrderStatusConfirmsPayment(t *testing.T) {
	rs := newRecordingServer()
	defer rs.server.Close()

	rs.on("/payments/status/ORD_1", http.StatusOK,
		`{"payment":{"status":"SUCCESS"},"deal":{"payment_status":"paid"},"deal_updated":false}`)

	result := newOrchestrator(rs).VerifyPaymentWithRecovery(context.Background(), recovery.Request{
		MerchantOrderID: "ORD_1",
		DealID:          7,
	})

	assert.Equal(t, recovery.OutcomePaid, result.Outcome)
	assert.Equal(t, recovery.StrategyOrderStatus, result.Strategy)
	assert.Equal(t, model.PaymentStatusSuccess, result.PaymentStatus)
	// Later strategies are never consulted once one confirms.
	assert.Equal(t, 0, rs.count("/payments/deal/7"))
	assert.Equal(t, "Bearer jwt-token", rs.lastAuth)
}

func TestRecovery_DealIDOnlyRunsDealStrategiesInOrder(t *testing.T) {
	rs := newRecordingServer()
	defer rs.server.Close()

	// Deal snapshot says unpaid with a pending payment: retried, then the
	// chain falls through to database-direct, which closes the gap.
	rs.on("/payments/deal/7", http.StatusOK,
		`{"payment_status":"unpaid","latest_payment":{"status":"PENDING"}}`)
	rs.on("/payments/verify-database-direct", http.StatusOK,
		`{"payment":{"status":"SUCCESS"},"deal":{"payment_status":"paid"},"deal_updated":true}`)

	result := newOrchestrator(rs).VerifyPaymentWithRecovery(context.Background(), recovery.Request{DealID: 7})

	assert.Equal(t, recovery.OutcomePaid, result.Outcome)
	assert.Equal(t, recovery.StrategyDatabaseDirect, result.Strategy)
	assert.Equal(t, []string{recovery.StrategyDealStatus, recovery.StrategyDatabaseDirect}, strategyNames(result))

	// The pending snapshot was retried to exhaustion before falling through.
	assert.Equal(t, 2, rs.count("/payments/deal/7"))
	assert.Equal(t, 1, rs.count("/payments/verify-database-direct"))
}

func TestRecovery_TerminalStateStopsChain(t *testing.T) {
	rs := newRecordingServer()
	defer rs.server.Close()

	rs.on("/payments/deal/7", http.StatusOK,
		`{"payment_status":"unpaid","latest_payment":{"status":"FAILED"}}`)

	result := newOrchestrator(rs).VerifyPaymentWithRecovery(context.Background(), recovery.Request{DealID: 7})

	assert.Equal(t, recovery.OutcomeTerminal, result.Outcome)
	assert.Equal(t, recovery.StrategyDealStatus, result.Strategy)
	assert.Equal(t, model.PaymentStatusFailed, result.PaymentStatus)
	require.Len(t, result.Attempts, 1)
	assert.True(t, apperrors.HasCode(result.Attempts[0].Err, apperrors.ErrPaymentTerminal))

	// A definitive failure is not retried and ends the whole chain.
	assert.Equal(t, 1, rs.count("/payments/deal/7"))
	assert.Equal(t, 0, rs.count("/payments/verify-database-direct"))
}

func TestRecovery_ClientErrorSkipsToNextStrategy(t *testing.T) {
	rs := newRecordingServer()
	defer rs.server.Close()

	rs.on("/payments/status/ORD_GONE", http.StatusNotFound, `{"message":"payment not found"}`)
	rs.on("/payments/deal/7", http.StatusOK, `{"payment_status":"paid"}`)

	result := newOrchestrator(rs).VerifyPaymentWithRecovery(context.Background(), recovery.Request{
		MerchantOrderID: "ORD_GONE",
		DealID:          7,
	})

	assert.Equal(t, recovery.OutcomePaid, result.Outcome)
	assert.Equal(t, recovery.StrategyDealStatus, result.Strategy)

	// 4xx means retrying the same strategy is pointless.
	assert.Equal(t, 1, rs.count("/payments/status/ORD_GONE"))
}

func TestRecovery_ServerErrorsAreRetriedThenUnresolved(t *testing.T) {
	rs := newRecordingServer()
	defer rs.server.Close()

	rs.on("/payments/status/ORD_1", http.StatusInternalServerError, `{"message":"boom"}`)

	result := newOrchestrator(rs).VerifyPaymentWithRecovery(context.Background(), recovery.Request{
		MerchantOrderID: "ORD_1",
	})

	assert.Equal(t, recovery.OutcomeUnresolved, result.Outcome)
	assert.Contains(t, result.Message, "contact support")
	require.Len(t, result.Attempts, 1)
	assert.Error(t, result.Attempts[0].Err)

	assert.Equal(t, 2, rs.count("/payments/status/ORD_1"))
}

func TestRecovery_NoIdentifiersIsUnresolved(t *testing.T) {
	rs := newRecordingServer()
	defer rs.server.Close()

	result := newOrchestrator(rs).VerifyPaymentWithRecovery(context.Background(), recovery.Request{})

	assert.Equal(t, recovery.OutcomeUnresolved, result.Outcome)
	assert.Empty(t, result.Attempts)
}
