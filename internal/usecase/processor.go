package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"go.uber.org/zap"

	domainErrors "github.com/lumeworks/billing-reconciler/internal/domain/errors"
	"github.com/lumeworks/billing-reconciler/internal/domain/event"
	"github.com/lumeworks/billing-reconciler/internal/domain/model"
	"github.com/lumeworks/billing-reconciler/internal/domain/repository"
)

// DefaultProcessTimeout bounds a single event's processing so the provider
// never sees the endpoint hang; past it the transaction aborts and the
// provider redelivers.
const DefaultProcessTimeout = 10 * time.Second

// Result reports how an event was handled.
type Result struct {
	Outcome model.EventOutcome `json:"outcome"`
}

// Execution is the per-event context handed to handlers. It carries the
// transaction-bound repositories, the wall clock captured at the start of
// processing, and the pending post-commit notifications.
type Execution struct {
	Event  *event.Event
	Repos  *repository.Set
	Now    time.Time
	Logger *zap.Logger

	notifications []Notification
}

// Notify queues a user-facing notification to be dispatched after the
// transaction commits. Queuing inside a handler is safe: if the
// transaction rolls back the queue is discarded with it.
func (ex *Execution) Notify(kind NotificationKind, sub *model.Subscription) {
	ex.notifications = append(ex.notifications, Notification{
		Kind:           kind,
		SubscriptionID: sub.ID,
		UserID:         sub.UserID,
	})
}

// Engine is the transactional executor: it wraps the idempotency pre-check,
// the handler invocation, and the ledger write in one atomic unit.
type Engine struct {
	tx       repository.TxManager
	registry *Registry
	notifier Notifier
	logger   *zap.Logger
	timeout  time.Duration
	now      func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock overrides the engine's clock.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithTimeout overrides the per-event processing timeout.
func WithTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.timeout = d
		}
	}
}

// NewEngine constructs the engine and registers the full handler set.
func NewEngine(tx repository.TxManager, notifier Notifier, logger *zap.Logger, opts ...Option) *Engine {
	if notifier == nil {
		notifier = NopNotifier{}
	}

	e := &Engine{
		tx:       tx,
		registry: NewRegistry(),
		notifier: notifier,
		logger:   logger,
		timeout:  DefaultProcessTimeout,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}

	e.registry.Register(initialPaymentSucceededHandler{})
	e.registry.Register(initialPaymentFailedHandler{})
	e.registry.Register(recurringPaymentSucceededHandler{})
	e.registry.Register(recurringPaymentFailedHandler{})
	e.registry.Register(subscriptionLinkedHandler{})
	e.registry.Register(subscriptionStatusSyncedHandler{})
	e.registry.Register(subscriptionTerminatedHandler{})

	return e
}

// HandledTypes returns the event types the engine has handlers for.
func (e *Engine) HandledTypes() []event.Type {
	return e.registry.Types()
}

// Process applies one provider event. The sequence inside a single
// transaction is: ledger pre-check (replay short-circuits to success
// without invoking the handler), handler invocation, ledger write, commit.
// A handler error rolls back everything, including the ledger write, and
// surfaces as a retryable error. A missing referenced subscription is
// recorded as a deferred outcome and acknowledged. Collected notifications
// are handed to the notifier only after the commit succeeds.
func (e *Engine) Process(ctx context.Context, ev *event.Event) (*Result, error) {
	return e.run(ctx, ev, false)
}

// Reprocess reapplies an event whose ledger row is deferred. The old row is
// removed in the same transaction that records the new outcome, so a failed
// attempt rolls back to a state where the deferred row still exists and the
// operator can try again.
func (e *Engine) Reprocess(ctx context.Context, ev *event.Event) (*Result, error) {
	return e.run(ctx, ev, true)
}

func (e *Engine) run(ctx context.Context, ev *event.Event, reprocess bool) (*Result, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	handler, registered := e.registry.Lookup(ev.Type)

	var result *Result
	var pending []Notification

	err := e.tx.WithinTx(ctx, func(ctx context.Context, repos *repository.Set) error {
		existing, err := repos.Events.GetByEventID(ctx, ev.ID)
		if err != nil {
			return err
		}
		if existing != nil {
			if !reprocess {
				e.logger.Info("event already processed, replay acknowledged",
					zap.String("event_id", ev.ID),
					zap.String("event_type", string(ev.Type)),
					zap.String("original_outcome", string(existing.Outcome)))
				result = &Result{Outcome: model.OutcomeReplayed}
				return nil
			}
			if existing.Outcome != model.OutcomeDeferred {
				return domainErrors.NewValidation("only deferred events can be reprocessed", nil)
			}
			// Cleared here so the ledger write below can land; a rollback
			// brings the deferred row back.
			if err := repos.Events.Delete(ctx, ev.ID); err != nil {
				return err
			}
		}

		if !registered {
			// Unknown event types are acknowledged so the provider does
			// not retry them forever.
			e.logger.Info("no handler registered for event type, ignoring",
				zap.String("event_id", ev.ID),
				zap.String("event_type", string(ev.Type)))
			if err := repos.Events.Create(ctx, e.ledgerRow(ev, model.OutcomeIgnored, nil)); err != nil {
				return err
			}
			result = &Result{Outcome: model.OutcomeIgnored}
			return nil
		}

		ex := &Execution{
			Event:  ev,
			Repos:  repos,
			Now:    e.now(),
			Logger: e.logger,
		}

		if herr := handler.Handle(ctx, ex); herr != nil {
			if domainErrors.IsNotFound(herr) {
				// The referenced subscription does not exist yet, most
				// likely a race with the linking step. Acknowledge to stop
				// the redelivery storm and flag for manual reconciliation.
				e.logger.Warn("referenced entity missing, event deferred",
					zap.String("event_id", ev.ID),
					zap.String("event_type", string(ev.Type)),
					zap.Error(herr))
				if err := repos.Events.Create(ctx, e.ledgerRow(ev, model.OutcomeDeferred, herr)); err != nil {
					return err
				}
				result = &Result{Outcome: model.OutcomeDeferred}
				return nil
			}
			return herr
		}

		if err := repos.Events.Create(ctx, e.ledgerRow(ev, model.OutcomeApplied, nil)); err != nil {
			return err
		}

		pending = ex.notifications
		result = &Result{Outcome: model.OutcomeApplied}
		return nil
	})

	if err != nil {
		if errors.Is(err, repository.ErrDuplicateEvent) {
			// Lost the ledger insert race against a concurrent delivery of
			// the same event id. The winner owns the side effects; this
			// delivery rolled back cleanly and is acknowledged as a replay.
			e.logger.Info("concurrent duplicate delivery lost ledger race",
				zap.String("event_id", ev.ID),
				zap.String("event_type", string(ev.Type)))
			return &Result{Outcome: model.OutcomeReplayed}, nil
		}

		e.logger.Error("event processing failed, transaction rolled back",
			zap.String("event_id", ev.ID),
			zap.String("event_type", string(ev.Type)),
			zap.Error(err))

		if domainErrors.IsTransient(err) || domainErrors.IsPermanent(err) {
			return nil, err
		}
		// Unclassified handler errors are retryable by policy.
		return nil, domainErrors.NewTransient("process event", err)
	}

	for _, n := range pending {
		e.notifier.Enqueue(n)
	}

	return result, nil
}

func (e *Engine) ledgerRow(ev *event.Event, outcome model.EventOutcome, cause error) *model.ProcessedEvent {
	row := &model.ProcessedEvent{
		EventID:     ev.ID,
		EventType:   string(ev.Type),
		Outcome:     outcome,
		ProcessedAt: e.now(),
	}

	created := ev.Created()
	row.ProviderCreatedAt = &created

	if cause != nil {
		msg := cause.Error()
		row.LastError = &msg
	}

	if len(ev.Raw) > 0 {
		var data model.JSONB
		if err := json.Unmarshal(ev.Raw, &data); err == nil {
			row.Data = data
		}
	}

	return row
}
