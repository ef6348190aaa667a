package usecase

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	apperrors "github.com/brandlinkhq/payment-service/pkg/errors"

	"github.com/brandlinkhq/payment-service/internal/domain/model"
	domainRepo "github.com/brandlinkhq/payment-service/internal/domain/repository"
	"github.com/brandlinkhq/payment-service/internal/infrastructure/gateway/phonepe"
)

// GatewayClient is the slice of the gateway API the usecases need. It is
// satisfied by *phonepe.Client and faked in tests.
type GatewayClient interface {
	CreateOrder(ctx context.Context, merchantOrderID string, amount decimal.Decimal, redirectURL string) (*phonepe.CreateOrderResult, error)
	OrderStatus(ctx context.Context, merchantOrderID string) (*phonepe.OrderStatus, error)
	ValidateNotification(authorization string, body []byte) (*phonepe.Notification, error)
}

// Principal identifies the authenticated caller.
type Principal struct {
	UserID uuid.UUID
	Role   string
}

const (
	RoleBrand      = "brand"
	RoleInfluencer = "influencer"
)

// InitiateResult is returned to the brand after a payment is registered with
// the gateway.
type InitiateResult struct {
	MerchantOrderID string          `json:"merchant_order_id"`
	RedirectURL     string          `json:"redirect_url"`
	Amount          decimal.Decimal `json:"amount"`
	Payment         *model.Payment  `json:"payment"`
}

// PaymentUsecase covers payment initiation against the gateway.
type PaymentUsecase struct {
	payments domainRepo.PaymentRepository
	deals    domainRepo.DealRepository
	gateway  GatewayClient
	logger   *zap.Logger
}

// NewPaymentUsecase creates a new payment usecase.
func NewPaymentUsecase(
	payments domainRepo.PaymentRepository,
	deals domainRepo.DealRepository,
	gateway GatewayClient,
	logger *zap.Logger,
) *PaymentUsecase {
	return &PaymentUsecase{
		payments: payments,
		deals:    deals,
		gateway:  gateway,
		logger:   logger,
	}
}

// NewMerchantOrderID generates the idempotency key shared with the gateway.
func NewMerchantOrderID() string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", ""))
	return "ORD_" + suffix[:20]
}

// Initiate registers a payment for the deal's total amount with the gateway
// and persists an INITIATED record. Repeated initiation for the same deal is
// allowed and creates a fresh record; earlier attempts stay untouched as
// audit history.
func (u *PaymentUsecase) Initiate(ctx context.Context, caller Principal, dealID int64, redirectURL string) (*InitiateResult, error) {
	deal, err := u.deals.FindByID(ctx, dealID)
	if err != nil {
		return nil, err
	}

	if caller.Role != RoleBrand || deal.BrandID != caller.UserID {
		return nil, apperrors.NewAppError(apperrors.ErrUnauthorized,
			"only the deal's brand can initiate payment", nil)
	}

	if deal.PaymentStatus == model.DealPaymentStatusPaid {
		return nil, apperrors.NewAppError(apperrors.ErrConflict,
			"deal is already paid", nil)
	}

	merchantOrderID := NewMerchantOrderID()

	order, err := u.gateway.CreateOrder(ctx, merchantOrderID, deal.TotalAmount, redirectURL)
	if err != nil {
		return nil, err
	}

	payment := &model.Payment{
		UniversalID:     uuid.New(),
		DealID:          deal.ID,
		BrandID:         deal.BrandID,
		MerchantOrderID: merchantOrderID,
		Amount:          deal.TotalAmount,
		Status:          model.PaymentStatusInitiated,
	}
	if order.GatewayOrderID != "" {
		payment.GatewayOrderID = &order.GatewayOrderID
	}

	if err := u.payments.Create(ctx, payment); err != nil {
		return nil, err
	}

	u.logger.Info("Payment initiated",
		zap.Int64("deal_id", deal.ID),
		zap.String("merchant_order_id", merchantOrderID),
		zap.String("amount", deal.TotalAmount.String()))

	return &InitiateResult{
		MerchantOrderID: merchantOrderID,
		RedirectURL:     order.RedirectURL,
		Amount:          deal.TotalAmount,
		Payment:         payment,
	}, nil
}
