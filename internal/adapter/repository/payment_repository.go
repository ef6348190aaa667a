package repository

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	apperrors "github.com/brandlinkhq/payment-service/pkg/errors"

	"github.com/brandlinkhq/payment-service/internal/domain/model"
	domainRepo "github.com/brandlinkhq/payment-service/internal/domain/repository"
)

type paymentRepository struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewPaymentRepository creates a new GORM-backed payment repository
func NewPaymentRepository(db *gorm.DB, logger *zap.Logger) domainRepo.PaymentRepository {
	return &paymentRepository{
		db:     db,
		logger: logger,
	}
}

func (r *paymentRepository) Create(ctx context.Context, payment *model.Payment) error {
	if err := r.db.WithContext(ctx).Create(payment).Error; err != nil {
		r.logger.Error("Failed to create payment",
			zap.String("merchant_order_id", payment.MerchantOrderID),
			zap.Int64("deal_id", payment.DealID),
			zap.Error(err))
		return fmt.Errorf("failed to create payment: %w", err)
	}
	return nil
}

func (r *paymentRepository) FindByMerchantOrderID(ctx context.Context, merchantOrderID string) (*model.Payment, error) {
	var payment model.Payment

	err := r.db.WithContext(ctx).
		Where("merchant_order_id = ?", merchantOrderID).
		First(&payment).Error

	if err != nil {
		if apperrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NewAppError(apperrors.ErrNotFound,
				fmt.Sprintf("payment not found for merchant order %s", merchantOrderID), err)
		}
		r.logger.Error("Failed to find payment by merchant order id",
			zap.String("merchant_order_id", merchantOrderID),
			zap.Error(err))
		return nil, fmt.Errorf("failed to find payment: %w", err)
	}

	return &payment, nil
}

func (r *paymentRepository) FindByTransactionID(ctx context.Context, transactionID string) (*model.Payment, error) {
	var payment model.Payment

	err := r.db.WithContext(ctx).
		Where("transaction_id = ?", transactionID).
		First(&payment).Error

	if err != nil {
		if apperrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NewAppError(apperrors.ErrNotFound,
				fmt.Sprintf("payment not found for transaction %s", transactionID), err)
		}
		r.logger.Error("Failed to find payment by transaction id",
			zap.String("transaction_id", transactionID),
			zap.Error(err))
		return nil, fmt.Errorf("failed to find payment: %w", err)
	}

	return &payment, nil
}

func (r *paymentRepository) LatestByDeal(ctx context.Context, dealID int64) (*model.Payment, error) {
	var payment model.Payment

	err := r.db.WithContext(ctx).
		Where("deal_id = ?", dealID).
		Order("created_at DESC").
		First(&payment).Error

	if err != nil {
		if apperrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NewAppError(apperrors.ErrNotFound,
				fmt.Sprintf("no payments for deal %d", dealID), err)
		}
		r.logger.Error("Failed to find latest payment for deal",
			zap.Int64("deal_id", dealID),
			zap.Error(err))
		return nil, fmt.Errorf("failed to find latest payment: %w", err)
	}

	return &payment, nil
}

// UpdateStatus always writes. Terminal-state protection is a reconciler
// decision; the payments table stays a faithful audit of what the gateway
// told us.
func (r *paymentRepository) UpdateStatus(ctx context.Context, merchantOrderID string, status model.PaymentStatus, transactionID *string, rawResponse model.JSONB) (*model.Payment, error) {
	updates := map[string]interface{}{
		"status":     status,
		"updated_at": time.Now(),
	}
	if transactionID != nil && *transactionID != "" {
		updates["transaction_id"] = *transactionID
	}
	if rawResponse != nil {
		updates["gateway_response"] = rawResponse
	}

	result := r.db.WithContext(ctx).
		Model(&model.Payment{}).
		Where("merchant_order_id = ?", merchantOrderID).
		Updates(updates)

	if result.Error != nil {
		r.logger.Error("Failed to update payment status",
			zap.String("merchant_order_id", merchantOrderID),
			zap.String("status", string(status)),
			zap.Error(result.Error))
		return nil, fmt.Errorf("failed to update payment status: %w", result.Error)
	}

	if result.RowsAffected == 0 {
		return nil, apperrors.NewAppError(apperrors.ErrNotFound,
			fmt.Sprintf("payment not found for merchant order %s", merchantOrderID), nil)
	}

	return r.FindByMerchantOrderID(ctx, merchantOrderID)
}
