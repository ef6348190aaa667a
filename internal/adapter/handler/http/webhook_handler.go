package http

import (
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	apperrors "github.com/brandlinkhq/payment-service/pkg/errors"

	domainRepo "github.com/brandlinkhq/payment-service/internal/domain/repository"
	"github.com/brandlinkhq/payment-service/internal/infrastructure/gateway/phonepe"
	"github.com/brandlinkhq/payment-service/internal/usecase"
)

// WebhookHandler processes gateway-pushed payment notifications. The webhook
// and callback endpoints are the same handler on two paths; the gateway may
// deliver through either, in any order, any number of times.
type WebhookHandler struct {
	gateway    usecase.GatewayClient
	payments   domainRepo.PaymentRepository
	reconciler *usecase.Reconciler
	logger     *zap.Logger
}

// NewWebhookHandler creates a new webhook handler.
func NewWebhookHandler(
	gateway usecase.GatewayClient,
	payments domainRepo.PaymentRepository,
	reconciler *usecase.Reconciler,
	logger *zap.Logger,
) *WebhookHandler {
	return &WebhookHandler{
		gateway:    gateway,
		payments:   payments,
		reconciler: reconciler,
		logger:     logger,
	}
}

// HandleNotification verifies, maps and reconciles one inbound notification.
// It answers 200 even when the deal was already settled by a concurrent path,
// so the gateway never retries a delivery that was in fact handled.
func (h *WebhookHandler) HandleNotification(c echo.Context) error {
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		h.logger.Error("Error reading notification body", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Error reading request body"})
	}

	notification, err := h.gateway.ValidateNotification(c.Request().Header.Get("Authorization"), body)
	if err != nil {
		h.logger.Warn("Notification rejected",
			zap.String("path", c.Request().URL.Path),
			zap.Error(err))
		return apperrors.ToHTTPError(err)
	}

	h.logger.Info("Notification received",
		zap.String("event", notification.Event),
		zap.String("merchant_order_id", notification.MerchantOrderID),
		zap.String("state", notification.State))

	payment, err := h.payments.FindByMerchantOrderID(c.Request().Context(), notification.MerchantOrderID)
	if err != nil {
		if apperrors.HasCode(err, apperrors.ErrNotFound) {
			h.logger.Warn("Notification for unknown merchant order",
				zap.String("merchant_order_id", notification.MerchantOrderID))
		}
		return apperrors.ToHTTPError(err)
	}

	newStatus := phonepe.MapState(notification.State)

	var transactionID *string
	if notification.TransactionID != "" {
		transactionID = &notification.TransactionID
	}

	result, err := h.reconciler.Reconcile(c.Request().Context(), payment, newStatus, transactionID, notification.Raw)
	if err != nil {
		h.logger.Error("Reconciliation failed",
			zap.String("merchant_order_id", notification.MerchantOrderID),
			zap.Error(err))
		return apperrors.ToHTTPError(err)
	}

	return c.JSON(http.StatusOK, echo.Map{
		"received":     true,
		"status":       result.Payment.Status,
		"deal_updated": result.DealUpdated,
	})
}
