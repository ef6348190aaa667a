package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentStatus is the internal lifecycle state of a payment attempt.
type PaymentStatus string

const (
	PaymentStatusInitiated PaymentStatus = "INITIATED"
	PaymentStatusPending   PaymentStatus = "PENDING"
	PaymentStatusSuccess   PaymentStatus = "SUCCESS"
	PaymentStatusFailed    PaymentStatus = "FAILED"
	PaymentStatusCancelled PaymentStatus = "CANCELLED"
	PaymentStatusRefunded  PaymentStatus = "REFUNDED"
)

// IsTerminal reports whether no further transition is expected from s.
func (s PaymentStatus) IsTerminal() bool {
	switch s {
	case PaymentStatusSuccess, PaymentStatusFailed, PaymentStatusCancelled, PaymentStatusRefunded:
		return true
	}
	return false
}

// Payment is the audit record of one payment attempt against the gateway.
// Rows are never deleted; every gateway notification is written back to
// GatewayResponse even when the business decision was already made.
type Payment struct {
	ID          int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	UniversalID uuid.UUID `gorm:"column:universal_id;type:uuid;not null;index" json:"universal_id"`
	DealID      int64     `gorm:"not null;index" json:"deal_id"`
	BrandID     uuid.UUID `gorm:"column:brand_id;type:uuid;not null;index" json:"brand_id"`

	// MerchantOrderID is the idempotency key between this service and the
	// gateway. Generated once at initiation, immutable afterwards.
	MerchantOrderID string `gorm:"column:merchant_order_id;uniqueIndex;size:64;not null" json:"merchant_order_id"`

	Amount decimal.Decimal `gorm:"type:decimal(15,2);not null" json:"amount"`
	Status PaymentStatus   `gorm:"size:20;not null" json:"status"`

	TransactionID  *string `gorm:"column:transaction_id;size:100;index" json:"transaction_id,omitempty"`
	GatewayOrderID *string `gorm:"column:gateway_order_id;size:100" json:"gateway_order_id,omitempty"`

	// GatewayResponse keeps the raw payload of the last notification or
	// status response, for audit and debugging only.
	GatewayResponse JSONB `gorm:"column:gateway_response;type:jsonb" json:"gateway_response,omitempty"`

	CreatedAt time.Time `gorm:"default:now()" json:"created_at"`
	UpdatedAt time.Time `gorm:"default:now()" json:"updated_at"`
}

// TableName specifies the table name for GORM
func (Payment) TableName() string {
	return "payments"
}
