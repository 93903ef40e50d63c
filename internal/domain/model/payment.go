package model

import (
	"database/sql/driver"
	"time"
)

// PaymentStatus represents the final status of a payment attempt
type PaymentStatus string

const (
	PaymentStatusSucceeded PaymentStatus = "succeeded"
	PaymentStatusFailed    PaymentStatus = "failed"
)

// Scan implements sql.Scanner interface
func (p *PaymentStatus) Scan(src interface{}) error {
	switch v := src.(type) {
	case string:
		*p = PaymentStatus(v)
	case []byte:
		*p = PaymentStatus(v)
	default:
		*p = PaymentStatusFailed
	}
	return nil
}

// Value implements driver.Valuer interface
func (p PaymentStatus) Value() (driver.Value, error) {
	return string(p), nil
}

// Payment is an append-only record of a payment attempt reported by the
// provider. Rows are created by event handlers and never mutated afterwards.
type Payment struct {
	ID                int64         `gorm:"primaryKey;autoIncrement" json:"id"`
	SubscriptionID    int64         `gorm:"not null;index" json:"subscription_id"`
	ProviderPaymentID string        `gorm:"not null;size:100;index" json:"provider_payment_id"`
	AmountCents       int64         `gorm:"not null" json:"amount_cents"`
	Currency          string        `gorm:"size:3;not null;default:'USD'" json:"currency"`
	Status            PaymentStatus `gorm:"type:varchar(20);not null" json:"status"`
	FailureReason     *string       `json:"failure_reason,omitempty"`
	ProcessedAt       time.Time     `gorm:"not null" json:"processed_at"`
	CreatedAt         time.Time     `gorm:"default:now()" json:"created_at"`

	// Relations
	Subscription *Subscription `gorm:"foreignKey:SubscriptionID" json:"subscription,omitempty"`
}

// TableName specifies the table name for GORM
func (Payment) TableName() string {
	return "payments"
}
