package database

import (
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/brandlinkhq/payment-service/internal/adapter/repository"
	domainRepo "github.com/brandlinkhq/payment-service/internal/domain/repository"
)

// Repositories holds all repository instances
type Repositories struct {
	Payment domainRepo.PaymentRepository
	Deal    domainRepo.DealRepository
}

// NewRepositories creates new repository instances with database connection
func NewRepositories(db *gorm.DB, logger *zap.Logger) *Repositories {
	return &Repositories{
		Payment: repository.NewPaymentRepository(db, logger),
		Deal:    repository.NewDealRepository(db, logger),
	}
}
