package http

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	apperrors "github.com/brandlinkhq/payment-service/pkg/errors"

	"github.com/brandlinkhq/payment-service/internal/middleware/auth"
	"github.com/brandlinkhq/payment-service/internal/usecase"
)

// VerifyHandler exposes the outbound verification paths used when the
// primary webhook/callback notifications were missed.
type VerifyHandler struct {
	verification *usecase.VerificationService
	logger       *zap.Logger
}

func NewVerifyHandler(verification *usecase.VerificationService, logger *zap.Logger) *VerifyHandler {
	return &VerifyHandler{
		verification: verification,
		logger:       logger,
	}
}

type verifyByTransactionRequest struct {
	TransactionID string `json:"transaction_id" validate:"required"`
	DealID        *int64 `json:"deal_id,omitempty" validate:"omitempty,gt=0"`
}

func (h *VerifyHandler) VerifyByTransaction(c echo.Context) error {
	user, err := auth.RequireAuth(c)
	if err != nil {
		return err
	}

	var req verifyByTransactionRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid request body"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}

	result, err := h.verification.VerifyByTransaction(c.Request().Context(), principalOf(user), req.TransactionID, req.DealID)
	if err != nil {
		h.logger.Warn("Transaction verification failed",
			zap.String("transaction_id", req.TransactionID),
			zap.Error(err))
		return apperrors.ToHTTPError(err)
	}

	return c.JSON(http.StatusOK, result)
}

type verifyDatabaseDirectRequest struct {
	DealID int64 `json:"deal_id" validate:"required,gt=0"`
}

func (h *VerifyHandler) VerifyDatabaseDirect(c echo.Context) error {
	user, err := auth.RequireAuth(c)
	if err != nil {
		return err
	}

	var req verifyDatabaseDirectRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid request body"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}

	result, err := h.verification.VerifyDatabaseDirect(c.Request().Context(), principalOf(user), req.DealID)
	if err != nil {
		h.logger.Warn("Database-direct verification failed",
			zap.Int64("deal_id", req.DealID),
			zap.Error(err))
		return apperrors.ToHTTPError(err)
	}

	return c.JSON(http.StatusOK, result)
}

// DealStatus serves the read-only payment snapshot for a deal.
func (h *VerifyHandler) DealStatus(c echo.Context) error {
	user, err := auth.RequireAuth(c)
	if err != nil {
		return err
	}

	dealID, err := strconv.ParseInt(c.Param("dealId"), 10, 64)
	if err != nil || dealID <= 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "dealId must be a positive integer"})
	}

	snapshot, err := h.verification.DealStatus(c.Request().Context(), principalOf(user), dealID)
	if err != nil {
		return apperrors.ToHTTPError(err)
	}

	return c.JSON(http.StatusOK, snapshot)
}
