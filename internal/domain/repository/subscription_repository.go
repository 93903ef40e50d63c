package repository

import (
	"context"
	"time"

	"github.com/lumeworks/billing-reconciler/internal/domain/model"
)

// SubscriptionRepository provides access to subscription rows. Lookup
// methods return (nil, nil) when no row matches.
//
// The ForUpdate variants take a row-level lock and are only valid inside a
// transaction started through TxManager. Handlers must use them for any
// read-modify-write on a subscription; transaction isolation alone does not
// prevent lost updates between concurrent deliveries.
type SubscriptionRepository interface {
	GetByID(ctx context.Context, id int64) (*model.Subscription, error)
	GetByProviderID(ctx context.Context, providerSubscriptionID string) (*model.Subscription, error)
	GetByIDForUpdate(ctx context.Context, id int64) (*model.Subscription, error)
	GetByProviderIDForUpdate(ctx context.Context, providerSubscriptionID string) (*model.Subscription, error)
	Update(ctx context.Context, subscription *model.Subscription) error
	// ListSuspendedBefore returns subscriptions that have been suspended
	// since before the cutoff, oldest first.
	ListSuspendedBefore(ctx context.Context, cutoff time.Time, limit int) ([]*model.Subscription, error)
}
