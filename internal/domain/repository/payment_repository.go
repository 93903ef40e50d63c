package repository

import (
	"context"

	"github.com/lumeworks/billing-reconciler/internal/domain/model"
)

// PaymentRepository stores append-only payment records.
type PaymentRepository interface {
	Create(ctx context.Context, payment *model.Payment) error
	// GetByProviderPaymentID returns (nil, nil) when no record exists.
	// Handlers use it to keep payment creation idempotent when the same
	// provider payment is reported under a new event id.
	GetByProviderPaymentID(ctx context.Context, providerPaymentID string) (*model.Payment, error)
	ListBySubscriptionID(ctx context.Context, subscriptionID int64) ([]*model.Payment, error)
}
