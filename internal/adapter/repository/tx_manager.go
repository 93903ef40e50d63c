package repository

import (
	"context"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/lumeworks/billing-reconciler/internal/domain/repository"
)

type txManager struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewTxManager creates a transaction manager over the given connection
func NewTxManager(db *gorm.DB, logger *zap.Logger) repository.TxManager {
	return &txManager{
		db:     db,
		logger: logger,
	}
}

// WithinTx runs fn inside a single database transaction. The repository set
// handed to fn is bound to the transaction, so every write through it
// commits or rolls back together.
func (m *txManager) WithinTx(ctx context.Context, fn func(ctx context.Context, s *repository.Set) error) error {
	return m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(ctx, NewSet(tx, m.logger))
	})
}

// NewSet builds a repository set over db, which may be a transaction handle
func NewSet(db *gorm.DB, logger *zap.Logger) *repository.Set {
	return &repository.Set{
		Subscriptions: NewSubscriptionRepository(db, logger),
		Plans:         NewPlanRepository(db, logger),
		Payments:      NewPaymentRepository(db, logger),
		Events:        NewProcessedEventRepository(db, logger),
	}
}
