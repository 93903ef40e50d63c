package repository

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/lumeworks/billing-reconciler/internal/domain/model"
	"github.com/lumeworks/billing-reconciler/internal/domain/repository"
)

type paymentRepository struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewPaymentRepository creates a new payment repository
func NewPaymentRepository(db *gorm.DB, logger *zap.Logger) repository.PaymentRepository {
	return &paymentRepository{
		db:     db,
		logger: logger,
	}
}

// Create appends a new payment record
func (r *paymentRepository) Create(ctx context.Context, payment *model.Payment) error {
	if err := r.db.WithContext(ctx).Create(payment).Error; err != nil {
		r.logger.Error("Failed to create payment record",
			zap.String("provider_payment_id", payment.ProviderPaymentID),
			zap.Int64("subscription_id", payment.SubscriptionID),
			zap.Error(err))
		return fmt.Errorf("failed to create payment record: %w", err)
	}

	return nil
}

// GetByProviderPaymentID retrieves a payment by the provider's payment id
func (r *paymentRepository) GetByProviderPaymentID(ctx context.Context, providerPaymentID string) (*model.Payment, error) {
	var payment model.Payment

	err := r.db.WithContext(ctx).
		Where("provider_payment_id = ?", providerPaymentID).
		First(&payment).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		r.logger.Error("Failed to get payment",
			zap.String("provider_payment_id", providerPaymentID),
			zap.Error(err))
		return nil, fmt.Errorf("failed to get payment: %w", err)
	}

	return &payment, nil
}

// ListBySubscriptionID retrieves all payments for a subscription, newest first
func (r *paymentRepository) ListBySubscriptionID(ctx context.Context, subscriptionID int64) ([]*model.Payment, error) {
	var payments []*model.Payment

	err := r.db.WithContext(ctx).
		Where("subscription_id = ?", subscriptionID).
		Order("processed_at DESC").
		Find(&payments).Error

	if err != nil {
		r.logger.Error("Failed to list payments",
			zap.Int64("subscription_id", subscriptionID),
			zap.Error(err))
		return nil, fmt.Errorf("failed to list payments: %w", err)
	}

	return payments, nil
}
