package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/brandlinkhq/payment-service/internal/domain/model"
	domainRepo "github.com/brandlinkhq/payment-service/internal/domain/repository"
)

// NotificationDispatcher pushes a payment-received notification to one
// influencer. Implementations must be safe for concurrent use; failures are
// logged by the reconciler and never surfaced to payment callers.
type NotificationDispatcher interface {
	DispatchPaymentReceived(ctx context.Context, influencerID uuid.UUID, dealID int64, dealTitle string) error
}

// ReconcileResult reports what a reconciliation pass actually changed.
type ReconcileResult struct {
	Payment *model.Payment `json:"payment"`
	Deal    *model.Deal    `json:"deal,omitempty"`
	// DealUpdated is true only for the single call that won the guarded
	// unpaid -> paid update. Losing a race is not an error; it means a
	// concurrent path already handled this payment.
	DealUpdated bool `json:"deal_updated"`
}

// Reconciler makes the deal's stored payment state consistent with a
// confirmed gateway outcome, exactly once. Webhook, callback, status poll,
// transaction lookup and database-direct verification all funnel into
// Reconcile; the deal repository's guarded update is the only serialization
// point between them.
type Reconciler struct {
	payments   domainRepo.PaymentRepository
	deals      domainRepo.DealRepository
	dispatcher NotificationDispatcher
	logger     *zap.Logger
}

// NewReconciler creates a new reconciler.
func NewReconciler(
	payments domainRepo.PaymentRepository,
	deals domainRepo.DealRepository,
	dispatcher NotificationDispatcher,
	logger *zap.Logger,
) *Reconciler {
	return &Reconciler{
		payments:   payments,
		deals:      deals,
		dispatcher: dispatcher,
		logger:     logger,
	}
}

// Reconcile persists the observed status on the payment record and, for a
// success, flips the deal to paid at most once across all concurrent
// callers. Notification dispatch happens only on the call that actually
// flipped the deal, asynchronously.
func (r *Reconciler) Reconcile(ctx context.Context, payment *model.Payment, newStatus model.PaymentStatus, transactionID *string, rawResponse model.JSONB) (*ReconcileResult, error) {
	if payment.Status.IsTerminal() && newStatus != payment.Status {
		// The store keeps recording what the gateway says, but a terminal
		// record changing its mind deserves a loud trace.
		r.logger.Warn("Terminal payment received a conflicting notification",
			zap.String("merchant_order_id", payment.MerchantOrderID),
			zap.String("stored_status", string(payment.Status)),
			zap.String("notified_status", string(newStatus)))
	}

	updated, err := r.payments.UpdateStatus(ctx, payment.MerchantOrderID, newStatus, transactionID, rawResponse)
	if err != nil {
		return nil, err
	}

	result := &ReconcileResult{Payment: updated}

	if newStatus != model.PaymentStatusSuccess {
		return result, nil
	}

	// The deal (with its influencers) is loaded before the guarded update.
	// A failed read here leaves the deal unpaid, so the gateway's retry
	// gets another clean shot; a failed read after a winning flip would
	// have no retry path left to dispatch the notifications.
	deal, err := r.deals.FindByID(ctx, payment.DealID)
	if err != nil {
		return nil, err
	}

	dealUpdated, err := r.deals.MarkPaid(ctx, payment.DealID)
	if err != nil {
		return nil, err
	}
	result.DealUpdated = dealUpdated

	// MarkPaid answers false only when the deal is already paid, so the
	// snapshot can be corrected without another read.
	snapshot := *deal
	snapshot.PaymentStatus = model.DealPaymentStatusPaid
	if dealUpdated {
		snapshot.Status = model.DealStatusOngoing
	}
	result.Deal = &snapshot

	if !dealUpdated {
		r.logger.Info("Deal already paid, skipping notification dispatch",
			zap.Int64("deal_id", payment.DealID),
			zap.String("merchant_order_id", payment.MerchantOrderID))
		return result, nil
	}

	r.logger.Info("Deal marked paid",
		zap.Int64("deal_id", deal.ID),
		zap.String("merchant_order_id", payment.MerchantOrderID),
		zap.Int("influencer_count", len(deal.Influencers)))

	r.dispatchAsync(&snapshot)

	return result, nil
}

// dispatchAsync fans out one notification per influencer without holding up
// the caller. A slow or broken notification transport must never delay the
// HTTP acknowledgement back to the gateway.
func (r *Reconciler) dispatchAsync(deal *model.Deal) {
	influencers := make([]model.DealInfluencer, len(deal.Influencers))
	copy(influencers, deal.Influencers)
	dealID, dealTitle := deal.ID, deal.Title

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		for _, di := range influencers {
			if err := r.dispatcher.DispatchPaymentReceived(ctx, di.InfluencerID, dealID, dealTitle); err != nil {
				r.logger.Error("Failed to dispatch payment notification",
					zap.Int64("deal_id", dealID),
					zap.String("influencer_id", di.InfluencerID.String()),
					zap.Error(err))
			}
		}
	}()
}
