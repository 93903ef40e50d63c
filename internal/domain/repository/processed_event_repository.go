package repository

import (
	"context"
	"errors"

	"github.com/lumeworks/billing-reconciler/internal/domain/model"
)

// ErrDuplicateEvent is returned by Create when a row for the event id
// already exists. The unique constraint on the ledger is the backstop
// against two concurrent deliveries both passing the pre-check; the loser
// of the insert race sees this error and its transaction rolls back.
var ErrDuplicateEvent = errors.New("event already recorded")

// ProcessedEventRepository is the idempotency ledger and audit log.
type ProcessedEventRepository interface {
	// GetByEventID returns (nil, nil) when the event id has never been
	// processed.
	GetByEventID(ctx context.Context, eventID string) (*model.ProcessedEvent, error)
	Create(ctx context.Context, event *model.ProcessedEvent) error
	ListByOutcome(ctx context.Context, outcome model.EventOutcome, limit int) ([]*model.ProcessedEvent, error)
	// Delete removes a ledger row so an operator can replay a deferred
	// event. It is never called on the webhook path.
	Delete(ctx context.Context, eventID string) error
}
