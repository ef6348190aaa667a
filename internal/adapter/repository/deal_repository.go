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

type dealRepository struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewDealRepository creates a new GORM-backed deal repository
func NewDealRepository(db *gorm.DB, logger *zap.Logger) domainRepo.DealRepository {
	return &dealRepository{
		db:     db,
		logger: logger,
	}
}

func (r *dealRepository) FindByID(ctx context.Context, dealID int64) (*model.Deal, error) {
	var deal model.Deal

	err := r.db.WithContext(ctx).
		Preload("Influencers").
		Where("id = ?", dealID).
		First(&deal).Error

	if err != nil {
		if apperrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NewAppError(apperrors.ErrNotFound,
				fmt.Sprintf("deal %d not found", dealID), err)
		}
		r.logger.Error("Failed to find deal",
			zap.Int64("deal_id", dealID),
			zap.Error(err))
		return nil, fmt.Errorf("failed to find deal: %w", err)
	}

	return &deal, nil
}

// MarkPaid is the only mutation this service performs on deals. The guard
// condition rides in the WHERE clause so the check and the write are a single
// atomic statement; concurrent callers for the same deal see RowsAffected 0
// and treat it as already handled.
func (r *dealRepository) MarkPaid(ctx context.Context, dealID int64) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&model.Deal{}).
		Where("id = ? AND payment_status <> ?", dealID, model.DealPaymentStatusPaid).
		Updates(map[string]interface{}{
			"payment_status": model.DealPaymentStatusPaid,
			"status":         model.DealStatusOngoing,
			"updated_at":     time.Now(),
		})

	if result.Error != nil {
		r.logger.Error("Failed to mark deal paid",
			zap.Int64("deal_id", dealID),
			zap.Error(result.Error))
		return false, fmt.Errorf("failed to mark deal paid: %w", result.Error)
	}

	return result.RowsAffected > 0, nil
}
