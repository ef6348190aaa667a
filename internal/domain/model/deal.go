package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DealPaymentStatus tracks whether a deal has been paid for.
type DealPaymentStatus string

const (
	DealPaymentStatusUnpaid DealPaymentStatus = "unpaid"
	DealPaymentStatusPaid   DealPaymentStatus = "paid"
)

// DealStatus is the business state of a brand/influencer collaboration.
type DealStatus string

const (
	DealStatusRequested       DealStatus = "requested"
	DealStatusOngoing         DealStatus = "ongoing"
	DealStatusContentApproved DealStatus = "content_approved"
	DealStatusCompleted       DealStatus = "completed"
	DealStatusCancelled       DealStatus = "cancelled"
)

// Deal is owned by the deal service. The payment service only ever touches
// PaymentStatus, Status and UpdatedAt, and only through the reconciler's
// guarded update.
type Deal struct {
	ID            int64             `gorm:"primaryKey;autoIncrement" json:"id"`
	UniversalID   uuid.UUID         `gorm:"column:universal_id;type:uuid;not null;index" json:"universal_id"`
	BrandID       uuid.UUID         `gorm:"column:brand_id;type:uuid;not null;index" json:"brand_id"`
	Title         string            `gorm:"size:200" json:"title"`
	PaymentStatus DealPaymentStatus `gorm:"column:payment_status;size:20;not null;default:'unpaid'" json:"payment_status"`
	Status        DealStatus        `gorm:"size:30;not null;default:'requested'" json:"status"`
	TotalAmount   decimal.Decimal   `gorm:"type:decimal(15,2);not null" json:"total_amount"`
	CreatedAt     time.Time         `gorm:"default:now()" json:"created_at"`
	UpdatedAt     time.Time         `gorm:"default:now()" json:"updated_at"`

	// Relations
	Influencers []DealInfluencer `gorm:"foreignKey:DealID" json:"influencers,omitempty"`
}

// TableName specifies the table name for GORM
func (Deal) TableName() string {
	return "deals"
}

// DealInfluencer is one influencer participating in a deal, with the amount
// payable to them once the deal is paid.
type DealInfluencer struct {
	ID           int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	DealID       int64           `gorm:"not null;index" json:"deal_id"`
	InfluencerID uuid.UUID       `gorm:"column:influencer_id;type:uuid;not null;index" json:"influencer_id"`
	Amount       decimal.Decimal `gorm:"type:decimal(15,2);not null" json:"amount"`
	CreatedAt    time.Time       `gorm:"default:now()" json:"created_at"`
}

// TableName specifies the table name for GORM
func (DealInfluencer) TableName() string {
	return "deal_influencers"
}

// HasInfluencer reports whether the given user participates in the deal.
func (d *Deal) HasInfluencer(influencerID uuid.UUID) bool {
	for _, di := range d.Influencers {
		if di.InfluencerID == influencerID {
			return true
		}
	}
	return false
}
