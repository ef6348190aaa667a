package repository

import (
	"context"

	"github.com/brandlinkhq/payment-service/internal/domain/model"
)

// DealRepository is the payment service's narrow view of the deals store.
type DealRepository interface {
	// FindByID loads a deal with its influencers.
	FindByID(ctx context.Context, dealID int64) (*model.Deal, error)

	// MarkPaid performs the single guarded update that serializes the
	// unpaid -> paid transition:
	//
	//   UPDATE deals SET payment_status='paid', status='ongoing',
	//     updated_at=now()
	//   WHERE id = ? AND payment_status <> 'paid'
	//
	// It returns true when the row was actually modified, false when a
	// concurrent caller already won the race. The guard and the write are
	// one atomic statement; no other locking exists anywhere in the
	// service.
	MarkPaid(ctx context.Context, dealID int64) (bool, error)
}
