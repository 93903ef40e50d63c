package http

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	domainErrors "github.com/lumeworks/billing-reconciler/internal/domain/errors"
	"github.com/lumeworks/billing-reconciler/internal/domain/event"
	"github.com/lumeworks/billing-reconciler/internal/provider"
	"github.com/lumeworks/billing-reconciler/internal/usecase"
)

// EventProcessor applies a parsed provider event. Satisfied by
// *usecase.Engine.
type EventProcessor interface {
	Process(ctx context.Context, ev *event.Event) (*usecase.Result, error)
}

// WebhookHandler is the inbound boundary for provider events. It reads the
// body byte-exact, authenticates it, parses it, and hands it to the engine.
// Response contract: any 2xx acknowledges permanent completion; any non-2xx
// tells the provider to redeliver with backoff.
type WebhookHandler struct {
	logger    *zap.Logger
	secret    string
	tolerance time.Duration
	engine    EventProcessor
	now       func() time.Time
}

// NewWebhookHandler creates a new webhook handler
func NewWebhookHandler(logger *zap.Logger, secret string, tolerance time.Duration, engine EventProcessor) *WebhookHandler {
	return &WebhookHandler{
		logger:    logger,
		secret:    secret,
		tolerance: tolerance,
		engine:    engine,
		now:       time.Now,
	}
}

// HandleWebhook processes POST /webhook
func (h *WebhookHandler) HandleWebhook(c echo.Context) error {
	// The signature covers the exact bytes on the wire; nothing may touch
	// the body before verification.
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		h.logger.Error("Error reading request body", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "error reading request body"})
	}

	sig := c.Request().Header.Get(provider.SignatureHeader)
	if err := provider.Verify(body, sig, h.secret, h.tolerance, h.now()); err != nil {
		h.logger.Warn("Webhook signature verification failed",
			zap.Error(err),
			zap.String("remote_ip", c.RealIP()))
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "signature verification failed"})
	}

	ev, err := event.Parse(body)
	if err != nil {
		h.logger.Warn("Webhook payload rejected",
			zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid payload"})
	}

	h.logger.Info("Webhook event received",
		zap.String("event_id", ev.ID),
		zap.String("event_type", string(ev.Type)),
		zap.Time("provider_created_at", ev.Created()))

	result, err := h.engine.Process(c.Request().Context(), ev)
	if err != nil {
		if domainErrors.IsPermanent(err) {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid payload"})
		}
		// Transient: the provider redelivers with backoff.
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "temporarily unable to process event"})
	}

	return c.JSON(http.StatusOK, echo.Map{
		"received": true,
		"outcome":  result.Outcome,
	})
}
