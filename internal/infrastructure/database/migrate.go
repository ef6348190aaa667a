package database

import (
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/brandlinkhq/payment-service/internal/domain/model"
)

// Migrate runs database migrations
func Migrate(db *gorm.DB, logger *zap.Logger) error {
	logger.Info("Running database migrations...")

	if err := db.Exec(`CREATE EXTENSION IF NOT EXISTS "uuid-ossp"`).Error; err != nil {
		logger.Error("Failed to create extensions", zap.Error(err))
		return err
	}

	err := db.AutoMigrate(
		&model.Deal{},
		&model.DealInfluencer{},
		&model.Payment{},
	)
	if err != nil {
		logger.Error("Failed to run migrations", zap.Error(err))
		return err
	}

	if err := createCustomIndexes(db); err != nil {
		logger.Error("Failed to create custom indexes", zap.Error(err))
		return err
	}

	logger.Info("Database migrations completed successfully")
	return nil
}

// createCustomIndexes creates indexes GORM doesn't handle automatically.
func createCustomIndexes(db *gorm.DB) error {
	// Fast path for the verification handlers' "latest payment for deal"
	// lookup.
	if err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_payments_deal_created ON payments (deal_id, created_at DESC)`).Error; err != nil {
		return err
	}

	// Only unsettled payments are ever polled against the gateway.
	if err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_payments_unsettled ON payments (updated_at) WHERE status IN ('INITIATED', 'PENDING')`).Error; err != nil {
		return err
	}

	return nil
}
