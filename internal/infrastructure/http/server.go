package http

import (
	"context"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	handlers "github.com/lumeworks/billing-reconciler/internal/adapter/handler/http"
	"github.com/lumeworks/billing-reconciler/internal/config"
	"github.com/lumeworks/billing-reconciler/internal/infrastructure/database"
	"github.com/lumeworks/billing-reconciler/internal/middleware/auth"
	"github.com/lumeworks/billing-reconciler/internal/usecase"
)

// webhookBodyLimit caps inbound payloads; provider events are small.
const webhookBodyLimit = "1M"

type Server struct {
	config *config.Config
	logger *zap.Logger
	echo   *echo.Echo
	repos  *database.Repositories
	engine *usecase.Engine
}

func NewServer(cfg *config.Config, logger *zap.Logger, repos *database.Repositories, engine *usecase.Engine) *Server {
	e := echo.New()
	e.HideBanner = true

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.BodyLimit(webhookBodyLimit))

	return &Server{
		config: cfg,
		logger: logger,
		echo:   e,
		repos:  repos,
		engine: engine,
	}
}

func (s *Server) Start() error {
	// Setup routes
	s.setupRoutes()

	addr := fmt.Sprintf("%s:%d", s.config.Server.HTTP.Host, s.config.Server.HTTP.Port)
	s.logger.Info("Starting HTTP server", zap.String("address", addr))

	return s.echo.Start(addr)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

func (s *Server) setupRoutes() {
	// Health check
	s.echo.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "healthy",
			"service": s.config.Service.Name,
		})
	})

	// Initialize handlers
	webhookHandler := handlers.NewWebhookHandler(
		s.logger,
		s.config.Service.WebhookSecret,
		s.config.Service.SignatureTolerance,
		s.engine,
	)
	reconciliationHandler := handlers.NewReconciliationHandler(
		s.logger,
		s.repos.Events,
		s.repos.Subscriptions,
		s.engine,
		s.config.Service.SuspensionGracePeriod,
	)

	// Webhook route (outside API versioning). The raw body must reach the
	// handler untouched; only the size cap sits in front of it.
	s.echo.POST("/webhook", webhookHandler.HandleWebhook)

	// Internal reconciliation routes (require operator JWT)
	jwtConfig := auth.JWTConfig{
		Secret: s.config.Auth.JWTSecret,
		Logger: s.logger,
	}

	internal := s.echo.Group("/api/v1/internal", auth.JWTMiddleware(jwtConfig))
	internal.GET("/events/deferred", reconciliationHandler.ListDeferredEvents)
	internal.POST("/events/:id/replay", reconciliationHandler.ReplayEvent)
	internal.GET("/subscriptions/overdue", reconciliationHandler.ListOverdueSuspensions)
}
