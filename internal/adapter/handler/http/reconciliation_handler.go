package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/lumeworks/billing-reconciler/internal/domain/event"
	"github.com/lumeworks/billing-reconciler/internal/domain/model"
	"github.com/lumeworks/billing-reconciler/internal/domain/repository"
	"github.com/lumeworks/billing-reconciler/internal/usecase"
)

const defaultListLimit = 50

// EventReprocessor reapplies a deferred event, removing its ledger row and
// recording the new outcome atomically. Satisfied by *usecase.Engine.
type EventReprocessor interface {
	Reprocess(ctx context.Context, ev *event.Event) (*usecase.Result, error)
}

// ReconciliationHandler exposes the operator surface for manual
// reconciliation: deferred events, operator-driven replay, and suspensions
// that have outlived the grace period.
type ReconciliationHandler struct {
	logger        *zap.Logger
	events        repository.ProcessedEventRepository
	subscriptions repository.SubscriptionRepository
	engine        EventReprocessor
	gracePeriod   time.Duration
	now           func() time.Time
}

// NewReconciliationHandler creates a new reconciliation handler
func NewReconciliationHandler(
	logger *zap.Logger,
	events repository.ProcessedEventRepository,
	subscriptions repository.SubscriptionRepository,
	engine EventReprocessor,
	gracePeriod time.Duration,
) *ReconciliationHandler {
	return &ReconciliationHandler{
		logger:        logger,
		events:        events,
		subscriptions: subscriptions,
		engine:        engine,
		gracePeriod:   gracePeriod,
		now:           time.Now,
	}
}

// ListDeferredEvents handles GET /api/v1/internal/events/deferred
func (h *ReconciliationHandler) ListDeferredEvents(c echo.Context) error {
	limit := defaultListLimit
	if raw := c.QueryParam("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "limit must be a positive integer"})
		}
		limit = parsed
	}

	events, err := h.events.ListByOutcome(c.Request().Context(), model.OutcomeDeferred, limit)
	if err != nil {
		h.logger.Error("Failed to list deferred events", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to list deferred events"})
	}

	return c.JSON(http.StatusOK, echo.Map{
		"events": events,
		"count":  len(events),
	})
}

// ReplayEvent handles POST /api/v1/internal/events/:id/replay. It
// reprocesses the stored payload of a deferred event, so an event that
// raced the linking step can be applied once the subscription exists.
func (h *ReconciliationHandler) ReplayEvent(c echo.Context) error {
	eventID := c.Param("id")
	ctx := c.Request().Context()

	record, err := h.events.GetByEventID(ctx, eventID)
	if err != nil {
		h.logger.Error("Failed to load event for replay",
			zap.String("event_id", eventID),
			zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load event"})
	}
	if record == nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "event not found"})
	}
	if record.Outcome != model.OutcomeDeferred {
		return c.JSON(http.StatusConflict, echo.Map{
			"error":   "only deferred events can be replayed",
			"outcome": record.Outcome,
		})
	}

	raw, err := json.Marshal(map[string]interface{}(record.Data))
	if err != nil || len(record.Data) == 0 {
		h.logger.Error("Deferred event has no usable payload",
			zap.String("event_id", eventID),
			zap.Error(err))
		return c.JSON(http.StatusUnprocessableEntity, echo.Map{"error": "stored payload is not replayable"})
	}

	ev, err := event.Parse(raw)
	if err != nil {
		h.logger.Error("Stored payload failed validation on replay",
			zap.String("event_id", eventID),
			zap.Error(err))
		return c.JSON(http.StatusUnprocessableEntity, echo.Map{"error": "stored payload is not replayable"})
	}

	// The stored payload is the only durable copy of the event; the
	// provider already got its 2xx and will not redeliver. Reprocess swaps
	// the deferred ledger row for the new outcome in one transaction, so a
	// failure here leaves the row in place for another attempt.
	result, err := h.engine.Reprocess(ctx, ev)
	if err != nil {
		h.logger.Error("Replay processing failed",
			zap.String("event_id", eventID),
			zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "replay failed, event can be replayed again"})
	}

	h.logger.Info("Deferred event replayed",
		zap.String("event_id", eventID),
		zap.String("outcome", string(result.Outcome)))

	return c.JSON(http.StatusOK, echo.Map{
		"event_id": eventID,
		"outcome":  result.Outcome,
	})
}

// ListOverdueSuspensions handles GET /api/v1/internal/subscriptions/overdue.
// Suspensions older than the configured grace period need an operator
// decision; the engine does not cancel them automatically.
func (h *ReconciliationHandler) ListOverdueSuspensions(c echo.Context) error {
	limit := defaultListLimit
	if raw := c.QueryParam("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "limit must be a positive integer"})
		}
		limit = parsed
	}

	cutoff := h.now().Add(-h.gracePeriod)
	subs, err := h.subscriptions.ListSuspendedBefore(c.Request().Context(), cutoff, limit)
	if err != nil {
		h.logger.Error("Failed to list overdue suspensions", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to list overdue suspensions"})
	}

	return c.JSON(http.StatusOK, echo.Map{
		"subscriptions": subs,
		"count":         len(subs),
		"cutoff":        cutoff,
	})
}
