package http

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	apperrors "github.com/brandlinkhq/payment-service/pkg/errors"

	"github.com/brandlinkhq/payment-service/internal/middleware/auth"
	"github.com/brandlinkhq/payment-service/internal/usecase"
)

type PaymentHandler struct {
	payments     *usecase.PaymentUsecase
	verification *usecase.VerificationService
	logger       *zap.Logger
}

func NewPaymentHandler(payments *usecase.PaymentUsecase, verification *usecase.VerificationService, logger *zap.Logger) *PaymentHandler {
	return &PaymentHandler{
		payments:     payments,
		verification: verification,
		logger:       logger,
	}
}

type initiateRequest struct {
	DealID      int64  `json:"deal_id" validate:"required,gt=0"`
	RedirectURL string `json:"redirect_url" validate:"required,url"`
}

// Initiate registers a payment with the gateway and returns the hosted
// checkout URL the brand should be redirected to.
func (h *PaymentHandler) Initiate(c echo.Context) error {
	user, err := auth.RequireAuth(c)
	if err != nil {
		return err // RequireAuth already returns the JSON error response
	}

	var req initiateRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid request body"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}

	result, err := h.payments.Initiate(c.Request().Context(), principalOf(user), req.DealID, req.RedirectURL)
	if err != nil {
		h.logger.Error("Payment initiation failed",
			zap.Int64("deal_id", req.DealID),
			zap.String("user_id", user.UserID.String()),
			zap.Error(err))
		return apperrors.ToHTTPError(err)
	}

	return c.JSON(http.StatusOK, result)
}

// Status is the authenticated payment status poll by merchant order id.
func (h *PaymentHandler) Status(c echo.Context) error {
	user, err := auth.RequireAuth(c)
	if err != nil {
		return err
	}

	merchantOrderID := c.Param("merchantOrderId")
	if merchantOrderID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "merchantOrderId is required"})
	}

	result, err := h.verification.VerifyByMerchantOrder(c.Request().Context(), principalOf(user), merchantOrderID)
	if err != nil {
		h.logger.Warn("Status poll failed",
			zap.String("merchant_order_id", merchantOrderID),
			zap.Error(err))
		return apperrors.ToHTTPError(err)
	}

	return c.JSON(http.StatusOK, result)
}

func principalOf(user *auth.AuthUser) usecase.Principal {
	return usecase.Principal{UserID: user.UserID, Role: user.Role}
}
