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

type processedEventRepository struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewProcessedEventRepository creates a new processed event repository
func NewProcessedEventRepository(db *gorm.DB, logger *zap.Logger) repository.ProcessedEventRepository {
	return &processedEventRepository{
		db:     db,
		logger: logger,
	}
}

// GetByEventID retrieves a ledger row by external event id
func (r *processedEventRepository) GetByEventID(ctx context.Context, eventID string) (*model.ProcessedEvent, error) {
	var event model.ProcessedEvent

	err := r.db.WithContext(ctx).
		Where("event_id = ?", eventID).
		First(&event).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		r.logger.Error("Failed to get processed event",
			zap.String("event_id", eventID),
			zap.Error(err))
		return nil, fmt.Errorf("failed to get processed event: %w", err)
	}

	return &event, nil
}

// Create inserts a ledger row. A unique violation on event_id surfaces as
// repository.ErrDuplicateEvent so the executor can treat the losing side of
// a concurrent delivery as a replay.
func (r *processedEventRepository) Create(ctx context.Context, event *model.ProcessedEvent) error {
	err := r.db.WithContext(ctx).Create(event).Error
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return fmt.Errorf("%w: %s", repository.ErrDuplicateEvent, event.EventID)
		}
		r.logger.Error("Failed to create processed event",
			zap.String("event_id", event.EventID),
			zap.String("event_type", event.EventType),
			zap.Error(err))
		return fmt.Errorf("failed to create processed event: %w", err)
	}

	return nil
}

// ListByOutcome retrieves ledger rows with the given outcome, oldest first
func (r *processedEventRepository) ListByOutcome(ctx context.Context, outcome model.EventOutcome, limit int) ([]*model.ProcessedEvent, error) {
	var events []*model.ProcessedEvent

	query := r.db.WithContext(ctx).
		Where("outcome = ?", outcome).
		Order("processed_at ASC")

	if limit > 0 {
		query = query.Limit(limit)
	}

	if err := query.Find(&events).Error; err != nil {
		r.logger.Error("Failed to list processed events",
			zap.String("outcome", string(outcome)),
			zap.Error(err))
		return nil, fmt.Errorf("failed to list processed events: %w", err)
	}

	return events, nil
}

// Delete removes a ledger row, enabling operator-driven replay
func (r *processedEventRepository) Delete(ctx context.Context, eventID string) error {
	result := r.db.WithContext(ctx).
		Where("event_id = ?", eventID).
		Delete(&model.ProcessedEvent{})

	if result.Error != nil {
		r.logger.Error("Failed to delete processed event",
			zap.String("event_id", eventID),
			zap.Error(result.Error))
		return fmt.Errorf("failed to delete processed event: %w", result.Error)
	}

	if result.RowsAffected == 0 {
		return fmt.Errorf("processed event not found: %s", eventID)
	}

	return nil
}
