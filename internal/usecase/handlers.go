package usecase

import (
	"context"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	domainErrors "github.com/lumeworks/billing-reconciler/internal/domain/errors"
	"github.com/lumeworks/billing-reconciler/internal/domain/event"
	"github.com/lumeworks/billing-reconciler/internal/domain/model"
)

// providerStatusMap translates the provider's status vocabulary onto the
// internal enum for subscription.status.synced events.
var providerStatusMap = map[string]model.SubscriptionStatus{
	"active":             model.SubscriptionStatusActive,
	"trialing":           model.SubscriptionStatusActive,
	"past_due":           model.SubscriptionStatusSuspended,
	"unpaid":             model.SubscriptionStatusSuspended,
	"canceled":           model.SubscriptionStatusCancelled,
	"cancelled":          model.SubscriptionStatusCancelled,
	"incomplete_expired": model.SubscriptionStatusExpired,
}

// lockSubscriptionByProviderID loads and row-locks the subscription the
// event references. A missing row is a NotFoundError, which the executor
// records as a deferred outcome.
func lockSubscriptionByProviderID(ctx context.Context, ex *Execution) (*model.Subscription, error) {
	providerID := ex.Event.Data.ProviderSubscriptionID
	sub, err := ex.Repos.Subscriptions.GetByProviderIDForUpdate(ctx, providerID)
	if err != nil {
		return nil, err
	}
	if sub == nil {
		return nil, domainErrors.NewNotFound("subscription", providerID)
	}
	return sub, nil
}

// errInvalidTransition classifies an impossible state transition. It is
// transient by policy: a renewal racing a cancellation may legitimately
// observe a state it cannot act on, and a redelivery after the race settles
// can still apply cleanly.
func errInvalidTransition(sub *model.Subscription, to model.SubscriptionStatus) error {
	return domainErrors.NewTransient("state transition",
		fmt.Errorf("subscription %d cannot move from %s to %s", sub.ID, sub.Status, to))
}

// recordPayment appends a payment record unless one already exists for the
// provider payment id. The existence check keeps handlers idempotent when
// the provider reports the same payment under a fresh event id.
func recordPayment(ctx context.Context, ex *Execution, sub *model.Subscription, status model.PaymentStatus) error {
	data := ex.Event.Data

	existing, err := ex.Repos.Payments.GetByProviderPaymentID(ctx, data.ProviderPaymentID)
	if err != nil {
		return err
	}
	if existing != nil {
		ex.Logger.Info("payment already recorded, skipping",
			zap.String("provider_payment_id", data.ProviderPaymentID),
			zap.Int64("subscription_id", sub.ID))
		return nil
	}

	payment := &model.Payment{
		SubscriptionID:    sub.ID,
		ProviderPaymentID: data.ProviderPaymentID,
		AmountCents:       data.AmountCents,
		Currency:          data.Currency,
		Status:            status,
		ProcessedAt:       ex.Now,
	}
	if status == model.PaymentStatusFailed && data.FailureReason != "" {
		reason := data.FailureReason
		payment.FailureReason = &reason
	}

	return ex.Repos.Payments.Create(ctx, payment)
}

// planFor loads the billing plan for renewal arithmetic. A missing plan is
// a configuration problem, not a provider race, so it is transient rather
// than deferred.
func planFor(ctx context.Context, ex *Execution, sub *model.Subscription) (*model.Plan, error) {
	plan, err := ex.Repos.Plans.GetByID(ctx, sub.PlanID)
	if err != nil {
		return nil, err
	}
	if plan == nil {
		return nil, domainErrors.NewTransient("plan lookup",
			fmt.Errorf("plan %d referenced by subscription %d does not exist", sub.PlanID, sub.ID))
	}
	return plan, nil
}

// initialPaymentSucceededHandler activates a pending subscription on its
// first successful charge.
type initialPaymentSucceededHandler struct{}

func (initialPaymentSucceededHandler) Type() event.Type {
	return event.TypeInitialPaymentSucceeded
}

func (initialPaymentSucceededHandler) Handle(ctx context.Context, ex *Execution) error {
	sub, err := lockSubscriptionByProviderID(ctx, ex)
	if err != nil {
		return err
	}

	switch sub.Status {
	case model.SubscriptionStatusActive:
		// Already activated under a different event id. Safe no-op.
		return nil
	case model.SubscriptionStatusPending:
		plan, err := planFor(ctx, ex, sub)
		if err != nil {
			return err
		}

		started := ex.Now
		ends := plan.Interval.AddTo(ex.Now)
		sub.Status = model.SubscriptionStatusActive
		sub.StartedAt = &started
		sub.EndsAt = &ends
		if err := ex.Repos.Subscriptions.Update(ctx, sub); err != nil {
			return err
		}

		if err := recordPayment(ctx, ex, sub, model.PaymentStatusSucceeded); err != nil {
			return err
		}

		ex.Notify(NotifySubscriptionActivated, sub)
		return nil
	default:
		return errInvalidTransition(sub, model.SubscriptionStatusActive)
	}
}

// initialPaymentFailedHandler expires a pending subscription whose first
// charge failed.
type initialPaymentFailedHandler struct{}

func (initialPaymentFailedHandler) Type() event.Type {
	return event.TypeInitialPaymentFailed
}

func (initialPaymentFailedHandler) Handle(ctx context.Context, ex *Execution) error {
	sub, err := lockSubscriptionByProviderID(ctx, ex)
	if err != nil {
		return err
	}

	switch sub.Status {
	case model.SubscriptionStatusExpired:
		return nil
	case model.SubscriptionStatusPending:
		sub.Status = model.SubscriptionStatusExpired
		if err := ex.Repos.Subscriptions.Update(ctx, sub); err != nil {
			return err
		}

		if err := recordPayment(ctx, ex, sub, model.PaymentStatusFailed); err != nil {
			return err
		}

		ex.Notify(NotifySubscriptionExpired, sub)
		return nil
	default:
		return errInvalidTransition(sub, model.SubscriptionStatusExpired)
	}
}

// recurringPaymentSucceededHandler extends the subscription by one billing
// interval and reactivates it if it was suspended.
type recurringPaymentSucceededHandler struct{}

func (recurringPaymentSucceededHandler) Type() event.Type {
	return event.TypeRecurringPaymentSucceeded
}

func (recurringPaymentSucceededHandler) Handle(ctx context.Context, ex *Execution) error {
	sub, err := lockSubscriptionByProviderID(ctx, ex)
	if err != nil {
		return err
	}

	if sub.Status != model.SubscriptionStatusActive && sub.Status != model.SubscriptionStatusSuspended {
		return errInvalidTransition(sub, model.SubscriptionStatusActive)
	}

	// Idempotence: if this exact payment was already recorded, the renewal
	// it paid for has been applied too. Extending again would double-count.
	existing, err := ex.Repos.Payments.GetByProviderPaymentID(ctx, ex.Event.Data.ProviderPaymentID)
	if err != nil {
		return err
	}
	if existing != nil {
		ex.Logger.Info("renewal already applied for payment, skipping",
			zap.String("provider_payment_id", ex.Event.Data.ProviderPaymentID),
			zap.Int64("subscription_id", sub.ID))
		return nil
	}

	plan, err := planFor(ctx, ex, sub)
	if err != nil {
		return err
	}

	// The new period end is computed from the current period end, never
	// from "now": delayed webhook processing must not shift renewal dates.
	base := ex.Now
	if sub.EndsAt != nil {
		base = *sub.EndsAt
	}
	ends := plan.Interval.AddTo(base)
	if sub.EndsAt != nil && ends.Before(*sub.EndsAt) {
		// ends-at is monotonically non-decreasing.
		ends = *sub.EndsAt
	}

	sub.Status = model.SubscriptionStatusActive
	sub.SuspendedAt = nil
	sub.EndsAt = &ends
	if err := ex.Repos.Subscriptions.Update(ctx, sub); err != nil {
		return err
	}

	if err := recordPayment(ctx, ex, sub, model.PaymentStatusSucceeded); err != nil {
		return err
	}

	ex.Notify(NotifySubscriptionRenewed, sub)
	return nil
}

// recurringPaymentFailedHandler suspends an active subscription on a failed
// renewal charge. Suspension is a grace period, not a cancellation; the
// provider keeps retrying the charge on its side.
type recurringPaymentFailedHandler struct{}

func (recurringPaymentFailedHandler) Type() event.Type {
	return event.TypeRecurringPaymentFailed
}

func (recurringPaymentFailedHandler) Handle(ctx context.Context, ex *Execution) error {
	sub, err := lockSubscriptionByProviderID(ctx, ex)
	if err != nil {
		return err
	}

	switch sub.Status {
	case model.SubscriptionStatusSuspended:
		// Already suspended by an earlier failure; still record the
		// attempt if it is new.
		return recordPayment(ctx, ex, sub, model.PaymentStatusFailed)
	case model.SubscriptionStatusActive:
		suspended := ex.Now
		sub.Status = model.SubscriptionStatusSuspended
		sub.SuspendedAt = &suspended
		if err := ex.Repos.Subscriptions.Update(ctx, sub); err != nil {
			return err
		}

		if err := recordPayment(ctx, ex, sub, model.PaymentStatusFailed); err != nil {
			return err
		}

		ex.Notify(NotifySubscriptionSuspended, sub)
		return nil
	default:
		return errInvalidTransition(sub, model.SubscriptionStatusSuspended)
	}
}

// subscriptionLinkedHandler attaches the provider's subscription id to our
// row. First writer wins; repeated links with the same id are no-ops.
type subscriptionLinkedHandler struct{}

func (subscriptionLinkedHandler) Type() event.Type {
	return event.TypeSubscriptionLinked
}

func (subscriptionLinkedHandler) Handle(ctx context.Context, ex *Execution) error {
	data := ex.Event.Data

	sub, err := ex.Repos.Subscriptions.GetByIDForUpdate(ctx, data.SubscriptionID)
	if err != nil {
		return err
	}
	if sub == nil {
		return domainErrors.NewNotFound("subscription", strconv.FormatInt(data.SubscriptionID, 10))
	}

	if sub.ProviderSubscriptionID != nil {
		if *sub.ProviderSubscriptionID != data.ProviderSubscriptionID {
			ex.Logger.Warn("subscription already linked to a different provider id",
				zap.Int64("subscription_id", sub.ID),
				zap.String("linked_provider_id", *sub.ProviderSubscriptionID),
				zap.String("event_provider_id", data.ProviderSubscriptionID))
		}
		return nil
	}

	providerID := data.ProviderSubscriptionID
	sub.ProviderSubscriptionID = &providerID
	return ex.Repos.Subscriptions.Update(ctx, sub)
}

// subscriptionStatusSyncedHandler maps the provider's status onto ours and
// applies it only when it is an allowed forward edge. Redundant or
// non-applicable statuses are accepted silently: the provider's view can be
// stale relative to events we already applied.
type subscriptionStatusSyncedHandler struct{}

func (subscriptionStatusSyncedHandler) Type() event.Type {
	return event.TypeSubscriptionStatusSynced
}

func (subscriptionStatusSyncedHandler) Handle(ctx context.Context, ex *Execution) error {
	sub, err := lockSubscriptionByProviderID(ctx, ex)
	if err != nil {
		return err
	}

	providerStatus := ex.Event.Data.ProviderStatus
	mapped, known := providerStatusMap[providerStatus]
	if !known {
		ex.Logger.Warn("unknown provider status in sync event, ignoring",
			zap.String("provider_status", providerStatus),
			zap.Int64("subscription_id", sub.ID))
		return nil
	}

	if mapped == sub.Status {
		return nil
	}

	if !sub.Status.CanTransitionTo(mapped) {
		ex.Logger.Warn("status sync would take a disallowed edge, ignoring",
			zap.String("from", string(sub.Status)),
			zap.String("to", string(mapped)),
			zap.Int64("subscription_id", sub.ID))
		return nil
	}

	switch mapped {
	case model.SubscriptionStatusSuspended:
		suspended := ex.Now
		sub.SuspendedAt = &suspended
	case model.SubscriptionStatusCancelled:
		cancelled := ex.Now
		sub.CancelledAt = &cancelled
	case model.SubscriptionStatusActive:
		sub.SuspendedAt = nil
	}
	sub.Status = mapped

	return ex.Repos.Subscriptions.Update(ctx, sub)
}

// subscriptionTerminatedHandler cancels a subscription the provider has
// terminated, whatever non-terminal state it is in.
type subscriptionTerminatedHandler struct{}

func (subscriptionTerminatedHandler) Type() event.Type {
	return event.TypeSubscriptionTerminated
}

func (subscriptionTerminatedHandler) Handle(ctx context.Context, ex *Execution) error {
	sub, err := lockSubscriptionByProviderID(ctx, ex)
	if err != nil {
		return err
	}

	if sub.Status.IsTerminal() {
		return nil
	}

	cancelled := ex.Now
	sub.Status = model.SubscriptionStatusCancelled
	sub.CancelledAt = &cancelled
	if err := ex.Repos.Subscriptions.Update(ctx, sub); err != nil {
		return err
	}

	ex.Notify(NotifySubscriptionCancelled, sub)
	return nil
}
