package repository

import "context"

// Set groups the repositories bound to a single unit of work. Inside a
// transaction all members share the same underlying connection, so a
// rollback undoes every write made through any of them.
type Set struct {
	Subscriptions SubscriptionRepository
	Plans         PlanRepository
	Payments      PaymentRepository
	Events        ProcessedEventRepository
}

// TxManager runs a function inside one atomic transaction. The Set passed
// to fn is only valid for the duration of the call. Returning a non-nil
// error rolls the whole transaction back.
type TxManager interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, s *Set) error) error
}
