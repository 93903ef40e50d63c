package event

import (
	"encoding/json"
	"time"

	"github.com/go-playground/validator/v10"

	domainErrors "github.com/lumeworks/billing-reconciler/internal/domain/errors"
)

// Type identifies the kind of fact a provider event describes.
type Type string

const (
	TypeInitialPaymentSucceeded   Type = "payment.initial.succeeded"
	TypeInitialPaymentFailed      Type = "payment.initial.failed"
	TypeRecurringPaymentSucceeded Type = "payment.recurring.succeeded"
	TypeRecurringPaymentFailed    Type = "payment.recurring.failed"
	TypeSubscriptionLinked        Type = "subscription.linked"
	TypeSubscriptionStatusSynced  Type = "subscription.status.synced"
	TypeSubscriptionTerminated    Type = "subscription.terminated"
)

// Payload carries the event-type-specific fields. Which fields are required
// depends on the event type; see validateForType.
type Payload struct {
	// ProviderSubscriptionID is the provider-side subscription identifier.
	ProviderSubscriptionID string `json:"provider_subscription_id,omitempty"`
	// SubscriptionID is our internal subscription id. It is only present on
	// linking events, which the provider echoes back from checkout metadata.
	SubscriptionID int64 `json:"subscription_id,omitempty" validate:"gte=0"`
	// ProviderPaymentID is the provider-side payment or invoice identifier.
	ProviderPaymentID string `json:"provider_payment_id,omitempty"`
	AmountCents       int64  `json:"amount_cents,omitempty" validate:"gte=0"`
	Currency          string `json:"currency,omitempty" validate:"omitempty,len=3,uppercase"`
	FailureReason     string `json:"failure_reason,omitempty"`
	// ProviderStatus is the provider's own status vocabulary, present on
	// status sync events.
	ProviderStatus string `json:"provider_status,omitempty"`
}

// Event is the parsed envelope of an inbound provider notification.
type Event struct {
	ID        string  `json:"id" validate:"required,max=255"`
	Type      Type    `json:"type" validate:"required,max=100"`
	CreatedAt int64   `json:"created_at" validate:"required,gt=0"`
	Data      Payload `json:"data"`

	// Raw is the exact body the signature was computed over, kept for the
	// audit ledger. Never re-encoded.
	Raw []byte `json:"-"`
}

// Created returns the provider-side creation time of the event.
func (e *Event) Created() time.Time {
	return time.Unix(e.CreatedAt, 0)
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Parse decodes and validates a raw webhook body. It must only be called
// after the signature over raw has been verified. Any failure is a
// ValidationError; the envelope is never partially usable.
func Parse(raw []byte) (*Event, error) {
	var ev Event
	if err := json.Unmarshal(raw, &ev); err != nil {
		return nil, domainErrors.NewValidation("malformed JSON body", err)
	}

	if err := validate.Struct(&ev); err != nil {
		return nil, domainErrors.NewValidation("missing or invalid envelope fields", err)
	}

	if err := ev.validateForType(); err != nil {
		return nil, err
	}

	ev.Raw = raw
	return &ev, nil
}

// validateForType enforces the per-type required fields the struct tags
// cannot express.
func (e *Event) validateForType() error {
	switch e.Type {
	case TypeInitialPaymentSucceeded, TypeRecurringPaymentSucceeded:
		if e.Data.ProviderSubscriptionID == "" {
			return domainErrors.NewValidation("provider_subscription_id is required for payment events", nil)
		}
		if e.Data.ProviderPaymentID == "" {
			return domainErrors.NewValidation("provider_payment_id is required for payment events", nil)
		}
		if e.Data.AmountCents <= 0 {
			return domainErrors.NewValidation("amount_cents must be positive for successful payments", nil)
		}
	case TypeInitialPaymentFailed, TypeRecurringPaymentFailed:
		if e.Data.ProviderSubscriptionID == "" {
			return domainErrors.NewValidation("provider_subscription_id is required for payment events", nil)
		}
		if e.Data.ProviderPaymentID == "" {
			return domainErrors.NewValidation("provider_payment_id is required for payment events", nil)
		}
	case TypeSubscriptionLinked:
		if e.Data.SubscriptionID <= 0 {
			return domainErrors.NewValidation("subscription_id is required for linking events", nil)
		}
		if e.Data.ProviderSubscriptionID == "" {
			return domainErrors.NewValidation("provider_subscription_id is required for linking events", nil)
		}
	case TypeSubscriptionStatusSynced:
		if e.Data.ProviderSubscriptionID == "" {
			return domainErrors.NewValidation("provider_subscription_id is required for status sync events", nil)
		}
		if e.Data.ProviderStatus == "" {
			return domainErrors.NewValidation("provider_status is required for status sync events", nil)
		}
	case TypeSubscriptionTerminated:
		if e.Data.ProviderSubscriptionID == "" {
			return domainErrors.NewValidation("provider_subscription_id is required for termination events", nil)
		}
	}
	// Unknown types pass envelope validation; the router decides what to do
	// with them.
	return nil
}
