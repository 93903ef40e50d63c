package model

import (
	"database/sql/driver"
	"time"

	"github.com/shopspring/decimal"
)

// BillingInterval is the recurring period used to compute renewal dates.
type BillingInterval string

const (
	BillingIntervalMonth BillingInterval = "month"
	BillingIntervalYear  BillingInterval = "year"
)

// AddTo returns t advanced by one billing interval.
func (i BillingInterval) AddTo(t time.Time) time.Time {
	switch i {
	case BillingIntervalYear:
		return t.AddDate(1, 0, 0)
	default:
		return t.AddDate(0, 1, 0)
	}
}

// Scan implements sql.Scanner interface
func (i *BillingInterval) Scan(src interface{}) error {
	switch v := src.(type) {
	case string:
		*i = BillingInterval(v)
	case []byte:
		*i = BillingInterval(v)
	default:
		*i = BillingIntervalMonth
	}
	return nil
}

// Value implements driver.Valuer interface
func (i BillingInterval) Value() (driver.Value, error) {
	return string(i), nil
}

// Plan is immutable reference data read by event handlers to compute
// renewal dates. Plans are seeded at migration time and never mutated
// by the reconciliation engine.
type Plan struct {
	ID        int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	Code      string          `gorm:"unique;not null;size:50" json:"code"`
	Name      string          `gorm:"not null;size:100" json:"name"`
	Interval  BillingInterval `gorm:"type:varchar(10);not null;default:'month'" json:"interval"`
	Price     decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"price"`
	Currency  string          `gorm:"size:3;not null;default:'USD'" json:"currency"`
	CreatedAt time.Time       `gorm:"default:now()" json:"created_at"`
}

// TableName specifies the table name for GORM
func (Plan) TableName() string {
	return "plans"
}
