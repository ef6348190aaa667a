package http_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	apperrors "github.com/brandlinkhq/payment-service/pkg/errors"

	handler "github.com/brandlinkhq/payment-service/internal/adapter/handler/http"
	"github.com/brandlinkhq/payment-service/internal/domain/model"
	"github.com/brandlinkhq/payment-service/internal/infrastructure/gateway/phonepe"
	"github.com/brandlinkhq/payment-service/internal/usecase"

	"github.com/google/uuid"
)

// MockGatewayClient is a mock implementation of usecase.GatewayClient
type MockGatewayClient struct {
	mock.Mock
}

func (m *MockGatewayClient) CreateOrder(ctx context.Context, merchantOrderID string, amount decimal.Decimal, redirectURL string) (*phonepe.CreateOrderResult, error) {
	args := m.Called(ctx, merchantOrderID, amount, redirectURL)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*phonepe.CreateOrderResult), args.Error(1)
}

func (m *MockGatewayClient) OrderStatus(ctx context.Context, merchantOrderID string) (*phonepe.OrderStatus, error) {
	args := m.Called(ctx, merchantOrderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*phonepe.OrderStatus), args.Error(1)
}

func (m *MockGatewayClient) ValidateNotification(authorization string, body []byte) (*phonepe.Notification, error) {
	args := m.Called(authorization, body)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*phonepe.Notification), args.Error(1)
}

// MockPaymentRepository is a mock implementation of repository.PaymentRepository
type MockPaymentRepository struct {
	mock.Mock
}

func (m *MockPaymentRepository) Create(ctx context.Context, payment *model.Payment) error {
	args := m.Called(ctx, payment)
	return args.Error(0)
}

func (m *MockPaymentRepository) FindByMerchantOrderID(ctx context.Context, merchantOrderID string) (*model.Payment, error) {
	args := m.Called(ctx, merchantOrderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Payment), args.Error(1)
}

func (m *MockPaymentRepository) FindByTransactionID(ctx context.Context, transactionID string) (*model.Payment, error) {
	args := m.Called(ctx, transactionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Payment), args.Error(1)
}

func (m *MockPaymentRepository) LatestByDeal(ctx context.Context, dealID int64) (*model.Payment, error) {
	args := m.Called(ctx, dealID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Payment), args.Error(1)
}

func (m *MockPaymentRepository) UpdateStatus(ctx context.Context, merchantOrderID string, status model.PaymentStatus, transactionID *string, rawResponse model.JSONB) (*model.Payment, error) {
	args := m.Called(ctx, merchantOrderID, status, transactionID, rawResponse)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Payment), args.Error(1)
}

// MockDealRepository is a mock implementation of repository.DealRepository
type MockDealRepository struct {
	mock.Mock
}

func (m *MockDealRepository) FindByID(ctx context.Context, dealID int64) (*model.Deal, error) {
	args := m.Called(ctx, dealID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Deal), args.Error(1)
}

func (m *MockDealRepository) MarkPaid(ctx context.Context, dealID int64) (bool, error) {
	args := m.Called(ctx, dealID)
	return args.Bool(0), args.Error(1)
}

type nopDispatcher struct{}

func (nopDispatcher) DispatchPaymentReceived(ctx context.Context, influencerID uuid.UUID, dealID int64, dealTitle string) error {
	return nil
}

type webhookFixture struct {
	echo     *echo.Echo
	gateway  *MockGatewayClient
	payments *MockPaymentRepository
	deals    *MockDealRepository
	handler  *handler.WebhookHandler
}

func newWebhookFixture() *webhookFixture {
	logger := zap.NewNop()
	gateway := new(MockGatewayClient)
	payments := new(MockPaymentRepository)
	deals := new(MockDealRepository)
	reconciler := usecase.NewReconciler(payments, deals, nopDispatcher{}, logger)

	return &webhookFixture{
		echo:     echo.New(),
		gateway:  gateway,
		payments: payments,
		deals:    deals,
		handler:  handler.NewWebhookHandler(gateway, payments, reconciler, logger),
	}
}

func (f *webhookFixture) post(body string, authorization string) (echo.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(http.MethodPost, "/payments/webhook", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	rec := httptest.NewRecorder()
	return f.echo.NewContext(req, rec), rec
}

func samplePayment() *model.Payment {
	return &model.Payment{
		ID:              10,
		UniversalID:     uuid.New(),
		DealID:          7,
		BrandID:         uuid.New(),
		MerchantOrderID: "ORD_ABC",
		Amount:          decimal.NewFromInt(5000),
		Status:          model.PaymentStatusPending,
	}
}

func TestHandleNotification_BadSignatureLeavesStateUntouched(t *testing.T) {
	f := newWebhookFixture()

	body := `{"payload":{"merchantOrderId":"ORD_ABC","state":"COMPLETED"}}`
	f.gateway.On("ValidateNotification", "bad-sig", []byte(body)).
		Return(nil, apperrors.NewAppError(apperrors.ErrSignatureInvalid, "notification signature mismatch", nil))

	c, _ := f.post(body, "bad-sig")
	err := f.handler.HandleNotification(c)

	httpErr, ok := err.(*echo.HTTPError)
	require.True(t, ok)
	assert.Equal(t, http.StatusBadRequest, httpErr.Code)

	f.payments.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	f.deals.AssertNotCalled(t, "MarkPaid", mock.Anything, mock.Anything)
}

func TestHandleNotification_UnknownOrderIs404(t *testing.T) {
	f := newWebhookFixture()

	body := `{"payload":{"merchantOrderId":"ORD_NOPE","state":"COMPLETED"}}`
	f.gateway.On("ValidateNotification", mock.Anything, mock.Anything).Return(&phonepe.Notification{
		MerchantOrderID: "ORD_NOPE",
		State:           phonepe.StateCompleted,
	}, nil)
	f.payments.On("FindByMerchantOrderID", mock.Anything, "ORD_NOPE").
		Return(nil, apperrors.NewAppError(apperrors.ErrNotFound, "payment not found", nil))

	c, _ := f.post(body, "good-sig")
	err := f.handler.HandleNotification(c)

	httpErr, ok := err.(*echo.HTTPError)
	require.True(t, ok)
	assert.Equal(t, http.StatusNotFound, httpErr.Code)
}

func TestHandleNotification_CompletedFlipsDeal(t *testing.T) {
	f := newWebhookFixture()

	payment := samplePayment()
	updated := *payment
	updated.Status = model.PaymentStatusSuccess

	txn := "T999"
	body := `{"payload":{"merchantOrderId":"ORD_ABC","state":"COMPLETED","transactionId":"T999"}}`
	f.gateway.On("ValidateNotification", mock.Anything, mock.Anything).Return(&phonepe.Notification{
		MerchantOrderID: "ORD_ABC",
		State:           phonepe.StateCompleted,
		TransactionID:   txn,
	}, nil)
	f.payments.On("FindByMerchantOrderID", mock.Anything, "ORD_ABC").Return(payment, nil)
	f.payments.On("UpdateStatus", mock.Anything, "ORD_ABC", model.PaymentStatusSuccess, &txn, mock.Anything).
		Return(&updated, nil)
	f.deals.On("MarkPaid", mock.Anything, payment.DealID).Return(true, nil)
	f.deals.On("FindByID", mock.Anything, payment.DealID).Return(&model.Deal{
		ID:            payment.DealID,
		PaymentStatus: model.DealPaymentStatusPaid,
		Status:        model.DealStatusOngoing,
	}, nil)

	c, rec := f.post(body, "good-sig")
	require.NoError(t, f.handler.HandleNotification(c))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"deal_updated":true`)
	f.deals.AssertExpectations(t)
}

func TestHandleNotification_DuplicateDeliveryStillAcks200(t *testing.T) {
	f := newWebhookFixture()

	payment := samplePayment()
	payment.Status = model.PaymentStatusSuccess
	updated := *payment

	body := `{"payload":{"merchantOrderId":"ORD_ABC","state":"COMPLETED"}}`
	f.gateway.On("ValidateNotification", mock.Anything, mock.Anything).Return(&phonepe.Notification{
		MerchantOrderID: "ORD_ABC",
		State:           phonepe.StateCompleted,
	}, nil)
	f.payments.On("FindByMerchantOrderID", mock.Anything, "ORD_ABC").Return(payment, nil)
	f.payments.On("UpdateStatus", mock.Anything, "ORD_ABC", model.PaymentStatusSuccess, (*string)(nil), mock.Anything).
		Return(&updated, nil)
	// The guarded update reports the deal was already paid.
	f.deals.On("MarkPaid", mock.Anything, payment.DealID).Return(false, nil)
	f.deals.On("FindByID", mock.Anything, payment.DealID).Return(&model.Deal{
		ID:            payment.DealID,
		PaymentStatus: model.DealPaymentStatusPaid,
		Status:        model.DealStatusOngoing,
	}, nil)

	c, rec := f.post(body, "good-sig")
	require.NoError(t, f.handler.HandleNotification(c))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"deal_updated":false`)
}

func TestHandleNotification_FailedStateNeverTouchesDeal(t *testing.T) {
	f := newWebhookFixture()

	payment := samplePayment()
	updated := *payment
	updated.Status = model.PaymentStatusFailed

	body := `{"payload":{"merchantOrderId":"ORD_ABC","state":"FAILED"}}`
	f.gateway.On("ValidateNotification", mock.Anything, mock.Anything).Return(&phonepe.Notification{
		MerchantOrderID: "ORD_ABC",
		State:           phonepe.StateFailed,
	}, nil)
	f.payments.On("FindByMerchantOrderID", mock.Anything, "ORD_ABC").Return(payment, nil)
	f.payments.On("UpdateStatus", mock.Anything, "ORD_ABC", model.PaymentStatusFailed, (*string)(nil), mock.Anything).
		Return(&updated, nil)

	c, rec := f.post(body, "good-sig")
	require.NoError(t, f.handler.HandleNotification(c))

	assert.Equal(t, http.StatusOK, rec.Code)
	f.deals.AssertNotCalled(t, "MarkPaid", mock.Anything, mock.Anything)
}
