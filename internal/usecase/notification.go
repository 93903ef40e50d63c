package usecase

import (
	"github.com/google/uuid"
)

// NotificationKind names a user-facing notification triggered by a state
// change.
type NotificationKind string

const (
	NotifySubscriptionActivated NotificationKind = "subscription.activated"
	NotifySubscriptionRenewed   NotificationKind = "subscription.renewed"
	NotifySubscriptionSuspended NotificationKind = "subscription.suspended"
	NotifySubscriptionCancelled NotificationKind = "subscription.cancelled"
	NotifySubscriptionExpired   NotificationKind = "subscription.expired"
)

// Notification carries subscription and user identifiers only. Payment
// details never leave the engine through this channel.
type Notification struct {
	Kind           NotificationKind `json:"kind"`
	SubscriptionID int64            `json:"subscription_id"`
	UserID         uuid.UUID        `json:"user_id"`
}

// Notifier receives notifications after the event's transaction has
// committed. Implementations deliver asynchronously with their own retry
// policy; enqueueing must never block the webhook path, and a delivery
// failure must never cause the webhook event to be reprocessed.
type Notifier interface {
	Enqueue(n Notification)
}

// NopNotifier discards notifications. Used in tests and when no sink is
// configured.
type NopNotifier struct{}

func (NopNotifier) Enqueue(Notification) {}
