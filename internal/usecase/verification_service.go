package usecase

import (
	"context"

	"go.uber.org/zap"

	apperrors "github.com/brandlinkhq/payment-service/pkg/errors"

	"github.com/brandlinkhq/payment-service/internal/domain/model"
	domainRepo "github.com/brandlinkhq/payment-service/internal/domain/repository"
	"github.com/brandlinkhq/payment-service/internal/infrastructure/gateway/phonepe"
)

// VerificationService re-derives payment state through independent paths so
// that a missed webhook or callback can never strand a paid deal. Every
// method is safe to call arbitrarily many times; the reconciler's guarded
// update absorbs the repeats.
type VerificationService struct {
	payments   domainRepo.PaymentRepository
	deals      domainRepo.DealRepository
	gateway    GatewayClient
	reconciler *Reconciler
	logger     *zap.Logger
}

// NewVerificationService creates a new verification service.
func NewVerificationService(
	payments domainRepo.PaymentRepository,
	deals domainRepo.DealRepository,
	gateway GatewayClient,
	reconciler *Reconciler,
	logger *zap.Logger,
) *VerificationService {
	return &VerificationService{
		payments:   payments,
		deals:      deals,
		gateway:    gateway,
		reconciler: reconciler,
		logger:     logger,
	}
}

// DealSnapshot is the read-only view served to the recovery orchestrator's
// deal-status strategy.
type DealSnapshot struct {
	DealID        int64                   `json:"deal_id"`
	PaymentStatus model.DealPaymentStatus `json:"payment_status"`
	Status        model.DealStatus        `json:"status"`
	LatestPayment *model.Payment          `json:"latest_payment,omitempty"`
}

func (s *VerificationService) authorizeDeal(deal *model.Deal, caller Principal, allowInfluencer bool) error {
	if caller.Role == RoleBrand && deal.BrandID == caller.UserID {
		return nil
	}
	if allowInfluencer && caller.Role == RoleInfluencer && deal.HasInfluencer(caller.UserID) {
		return nil
	}
	return apperrors.NewAppError(apperrors.ErrUnauthorized,
		"caller is not a participant of this deal", nil)
}

// VerifyByMerchantOrder is the user-initiated status poll. A terminally
// settled payment is returned without a gateway round trip; otherwise the
// gateway is asked for the authoritative state and the result reconciled.
func (s *VerificationService) VerifyByMerchantOrder(ctx context.Context, caller Principal, merchantOrderID string) (*ReconcileResult, error) {
	payment, err := s.payments.FindByMerchantOrderID(ctx, merchantOrderID)
	if err != nil {
		return nil, err
	}

	if caller.Role != RoleBrand || payment.BrandID != caller.UserID {
		return nil, apperrors.NewAppError(apperrors.ErrUnauthorized,
			"caller does not own this payment", nil)
	}

	if payment.Status.IsTerminal() {
		return &ReconcileResult{Payment: payment}, nil
	}

	status, err := s.gateway.OrderStatus(ctx, merchantOrderID)
	if err != nil {
		return nil, err
	}

	newStatus := phonepe.MapState(status.State)

	var transactionID *string
	if status.TransactionID != "" {
		transactionID = &status.TransactionID
	}

	return s.reconciler.Reconcile(ctx, payment, newStatus, transactionID, status.Raw)
}

// VerifyByTransaction looks a payment up by the gateway transaction id,
// falling back to the most recent payment for the deal when the transaction
// id was never recorded (a lost notification is exactly the case where it
// would not have been). A stored SUCCESS is re-reconciled to guarantee the
// deal reflects it.
func (s *VerificationService) VerifyByTransaction(ctx context.Context, caller Principal, transactionID string, dealID *int64) (*ReconcileResult, error) {
	payment, err := s.payments.FindByTransactionID(ctx, transactionID)
	if err != nil {
		if !apperrors.HasCode(err, apperrors.ErrNotFound) || dealID == nil {
			return nil, err
		}
		payment, err = s.payments.LatestByDeal(ctx, *dealID)
		if err != nil {
			return nil, err
		}
	}

	if caller.Role != RoleBrand || payment.BrandID != caller.UserID {
		return nil, apperrors.NewAppError(apperrors.ErrUnauthorized,
			"caller does not own this payment", nil)
	}

	if payment.Status == model.PaymentStatusSuccess {
		var txID *string
		if transactionID != "" {
			txID = &transactionID
		}
		return s.reconciler.Reconcile(ctx, payment, model.PaymentStatusSuccess, txID, nil)
	}

	return &ReconcileResult{Payment: payment}, nil
}

// VerifyDatabaseDirect is the last-resort recovery path for when both the
// webhook and the callback were lost: given only a deal id it compares the
// stored payment against the deal and closes any gap between them.
func (s *VerificationService) VerifyDatabaseDirect(ctx context.Context, caller Principal, dealID int64) (*ReconcileResult, error) {
	deal, err := s.deals.FindByID(ctx, dealID)
	if err != nil {
		return nil, err
	}

	if err := s.authorizeDeal(deal, caller, true); err != nil {
		return nil, err
	}

	payment, err := s.payments.LatestByDeal(ctx, dealID)
	if err != nil {
		return nil, err
	}

	if deal.PaymentStatus == model.DealPaymentStatusPaid {
		// Already settled; nothing to close.
		return &ReconcileResult{Payment: payment, Deal: deal}, nil
	}

	if payment.Status == model.PaymentStatusSuccess {
		s.logger.Info("Database-direct verification found an unreconciled success",
			zap.Int64("deal_id", dealID),
			zap.String("merchant_order_id", payment.MerchantOrderID))
		return s.reconciler.Reconcile(ctx, payment, model.PaymentStatusSuccess, payment.TransactionID, nil)
	}

	return &ReconcileResult{Payment: payment, Deal: deal}, nil
}

// DealStatus returns the current deal/payment view without reconciling.
func (s *VerificationService) DealStatus(ctx context.Context, caller Principal, dealID int64) (*DealSnapshot, error) {
	deal, err := s.deals.FindByID(ctx, dealID)
	if err != nil {
		return nil, err
	}

	if err := s.authorizeDeal(deal, caller, true); err != nil {
		return nil, err
	}

	snapshot := &DealSnapshot{
		DealID:        deal.ID,
		PaymentStatus: deal.PaymentStatus,
		Status:        deal.Status,
	}

	payment, err := s.payments.LatestByDeal(ctx, dealID)
	if err == nil {
		snapshot.LatestPayment = payment
	} else if !apperrors.HasCode(err, apperrors.ErrNotFound) {
		return nil, err
	}

	return snapshot, nil
}
