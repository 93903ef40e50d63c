package database

import (
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/lumeworks/billing-reconciler/internal/domain/model"
)

// Migrate runs database migrations and seeds plan reference data
func Migrate(db *gorm.DB, logger *zap.Logger) error {
	logger.Info("Running database migrations...")

	if err := db.AutoMigrate(
		&model.Plan{},
		&model.Subscription{},
		&model.Payment{},
		&model.ProcessedEvent{},
	); err != nil {
		logger.Error("Failed to run migrations", zap.Error(err))
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	if err := seedPlans(db, logger); err != nil {
		return err
	}

	logger.Info("Database migrations completed")
	return nil
}

// seedPlans inserts the default plans when the table is empty. Plans are
// immutable reference data; existing rows are never touched.
func seedPlans(db *gorm.DB, logger *zap.Logger) error {
	var count int64
	if err := db.Model(&model.Plan{}).Count(&count).Error; err != nil {
		return fmt.Errorf("failed to count plans: %w", err)
	}
	if count > 0 {
		return nil
	}

	plans := []model.Plan{
		{
			Code:     "standard-monthly",
			Name:     "Standard (monthly)",
			Interval: model.BillingIntervalMonth,
			Price:    decimal.NewFromFloat(9.90),
			Currency: "USD",
		},
		{
			Code:     "standard-yearly",
			Name:     "Standard (yearly)",
			Interval: model.BillingIntervalYear,
			Price:    decimal.NewFromFloat(99.00),
			Currency: "USD",
		},
	}

	if err := db.Create(&plans).Error; err != nil {
		return fmt.Errorf("failed to seed plans: %w", err)
	}

	logger.Info("Seeded default plans", zap.Int("count", len(plans)))
	return nil
}
