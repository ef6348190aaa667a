package repository

import (
	"context"

	"github.com/brandlinkhq/payment-service/internal/domain/model"
)

// PaymentRepository persists payment attempt records. It carries no business
// logic: UpdateStatus always writes, because the payments table doubles as the
// audit log of gateway communications even when the reconciler decides the
// notification changes nothing.
type PaymentRepository interface {
	Create(ctx context.Context, payment *model.Payment) error
	FindByMerchantOrderID(ctx context.Context, merchantOrderID string) (*model.Payment, error)
	FindByTransactionID(ctx context.Context, transactionID string) (*model.Payment, error)
	LatestByDeal(ctx context.Context, dealID int64) (*model.Payment, error)
	// UpdateStatus sets the status and raw gateway response for the payment
	// with the given merchant order id, recording the transaction id when it
	// first becomes known. Returns the updated record.
	UpdateStatus(ctx context.Context, merchantOrderID string, status model.PaymentStatus, transactionID *string, rawResponse model.JSONB) (*model.Payment, error)
}
