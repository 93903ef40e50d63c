package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/lumeworks/billing-reconciler/internal/domain/model"
	"github.com/lumeworks/billing-reconciler/internal/domain/repository"
)

type subscriptionRepository struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewSubscriptionRepository creates a new subscription repository
func NewSubscriptionRepository(db *gorm.DB, logger *zap.Logger) repository.SubscriptionRepository {
	return &subscriptionRepository{
		db:     db,
		logger: logger,
	}
}

// GetByID retrieves a subscription by internal id
func (r *subscriptionRepository) GetByID(ctx context.Context, id int64) (*model.Subscription, error) {
	return r.getOne(ctx, r.db, "id = ?", id)
}

// GetByProviderID retrieves a subscription by the provider's subscription id
func (r *subscriptionRepository) GetByProviderID(ctx context.Context, providerSubscriptionID string) (*model.Subscription, error) {
	return r.getOne(ctx, r.db, "provider_subscription_id = ?", providerSubscriptionID)
}

// GetByIDForUpdate retrieves a subscription by internal id with a row lock.
// Concurrent deliveries touching the same subscription serialize here.
func (r *subscriptionRepository) GetByIDForUpdate(ctx context.Context, id int64) (*model.Subscription, error) {
	locked := r.db.Clauses(clause.Locking{Strength: "UPDATE"})
	return r.getOne(ctx, locked, "id = ?", id)
}

// GetByProviderIDForUpdate retrieves a subscription by provider id with a row lock
func (r *subscriptionRepository) GetByProviderIDForUpdate(ctx context.Context, providerSubscriptionID string) (*model.Subscription, error) {
	locked := r.db.Clauses(clause.Locking{Strength: "UPDATE"})
	return r.getOne(ctx, locked, "provider_subscription_id = ?", providerSubscriptionID)
}

func (r *subscriptionRepository) getOne(ctx context.Context, db *gorm.DB, query string, arg interface{}) (*model.Subscription, error) {
	var sub model.Subscription

	err := db.WithContext(ctx).
		Where(query, arg).
		First(&sub).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		r.logger.Error("Failed to get subscription",
			zap.String("query", query),
			zap.Error(err))
		return nil, fmt.Errorf("failed to get subscription: %w", err)
	}

	return &sub, nil
}

// Update persists the mutated subscription fields
func (r *subscriptionRepository) Update(ctx context.Context, subscription *model.Subscription) error {
	subscription.UpdatedAt = time.Now()

	result := r.db.WithContext(ctx).
		Model(&model.Subscription{}).
		Where("id = ?", subscription.ID).
		Updates(map[string]interface{}{
			"status":                   subscription.Status,
			"provider_subscription_id": subscription.ProviderSubscriptionID,
			"started_at":               subscription.StartedAt,
			"ends_at":                  subscription.EndsAt,
			"suspended_at":             subscription.SuspendedAt,
			"cancelled_at":             subscription.CancelledAt,
			"updated_at":               subscription.UpdatedAt,
		})

	if result.Error != nil {
		r.logger.Error("Failed to update subscription",
			zap.Int64("subscription_id", subscription.ID),
			zap.Error(result.Error))
		return fmt.Errorf("failed to update subscription: %w", result.Error)
	}

	if result.RowsAffected == 0 {
		return fmt.Errorf("subscription not found: %d", subscription.ID)
	}

	return nil
}

// ListSuspendedBefore returns subscriptions suspended since before cutoff
func (r *subscriptionRepository) ListSuspendedBefore(ctx context.Context, cutoff time.Time, limit int) ([]*model.Subscription, error) {
	var subs []*model.Subscription

	query := r.db.WithContext(ctx).
		Where("status = ? AND suspended_at < ?", model.SubscriptionStatusSuspended, cutoff).
		Order("suspended_at ASC")

	if limit > 0 {
		query = query.Limit(limit)
	}

	if err := query.Find(&subs).Error; err != nil {
		r.logger.Error("Failed to list suspended subscriptions",
			zap.Time("cutoff", cutoff),
			zap.Error(err))
		return nil, fmt.Errorf("failed to list suspended subscriptions: %w", err)
	}

	return subs, nil
}
