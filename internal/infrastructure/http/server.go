package http

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	handlers "github.com/brandlinkhq/payment-service/internal/adapter/handler/http"
	"github.com/brandlinkhq/payment-service/internal/config"
	"github.com/brandlinkhq/payment-service/internal/infrastructure/database"
	"github.com/brandlinkhq/payment-service/internal/middleware/auth"
	"github.com/brandlinkhq/payment-service/internal/usecase"
	"github.com/brandlinkhq/payment-service/pkg/logger"
)

type Server struct {
	config     *config.Config
	logger     *zap.Logger
	echo       *echo.Echo
	repos      *database.Repositories
	gateway    usecase.GatewayClient
	dispatcher usecase.NotificationDispatcher
}

type requestValidator struct {
	validate *validator.Validate
}

func (v *requestValidator) Validate(i interface{}) error {
	return v.validate.Struct(i)
}

func NewServer(
	cfg *config.Config,
	log *zap.Logger,
	repos *database.Repositories,
	gateway usecase.GatewayClient,
	dispatcher usecase.NotificationDispatcher,
) *Server {
	e := echo.New()
	e.HideBanner = true
	e.Validator = &requestValidator{validate: validator.New()}

	e.Use(logger.NewEchoRequestLogger(log))
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{cfg.Service.ClientURL},
		AllowMethods: []string{echo.GET, echo.POST, echo.PUT, echo.DELETE},
	}))

	return &Server{
		config:     cfg,
		logger:     log,
		echo:       e,
		repos:      repos,
		gateway:    gateway,
		dispatcher: dispatcher,
	}
}

func (s *Server) Start() error {
	s.setupRoutes()

	addr := fmt.Sprintf("%s:%d", s.config.Server.HTTP.Host, s.config.Server.HTTP.Port)
	s.logger.Info("Starting HTTP server", zap.String("address", addr))

	return s.echo.Start(addr)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

func (s *Server) setupRoutes() {
	s.echo.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "healthy",
			"service": s.config.Service.Name,
		})
	})

	reconciler := usecase.NewReconciler(s.repos.Payment, s.repos.Deal, s.dispatcher, s.logger)
	paymentUsecase := usecase.NewPaymentUsecase(s.repos.Payment, s.repos.Deal, s.gateway, s.logger)
	verification := usecase.NewVerificationService(s.repos.Payment, s.repos.Deal, s.gateway, reconciler, s.logger)

	webhookHandler := handlers.NewWebhookHandler(s.gateway, s.repos.Payment, reconciler, s.logger)
	paymentHandler := handlers.NewPaymentHandler(paymentUsecase, verification, s.logger)
	verifyHandler := handlers.NewVerifyHandler(verification, s.logger)

	// Gateway-facing delivery paths. Authenticated by the notification
	// signature itself, not by a session token.
	s.echo.POST("/payments/webhook", webhookHandler.HandleNotification)
	s.echo.POST("/payments/callback", webhookHandler.HandleNotification)

	jwtConfig := auth.JWTConfig{
		Secret: s.config.Service.JWTSecret,
		Logger: s.logger,
	}

	payments := s.echo.Group("/payments", auth.JWTMiddleware(jwtConfig))
	payments.POST("/initiate", paymentHandler.Initiate)
	payments.GET("/status/:merchantOrderId", paymentHandler.Status)
	payments.POST("/verify-by-transaction", verifyHandler.VerifyByTransaction)
	payments.POST("/verify-database-direct", verifyHandler.VerifyDatabaseDirect)
	payments.GET("/deal/:dealId", verifyHandler.DealStatus)
}
