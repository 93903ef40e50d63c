package model

import (
	"database/sql/driver"
	"time"
)

// EventOutcome summarizes how an inbound provider event was handled.
type EventOutcome string

const (
	// OutcomeApplied means the handler ran and its effects were committed.
	OutcomeApplied EventOutcome = "applied"
	// OutcomeIgnored means the event type has no registered handler and
	// was acknowledged without effects.
	OutcomeIgnored EventOutcome = "ignored"
	// OutcomeDeferred means a referenced entity could not be found yet;
	// the event was acknowledged and flagged for manual reconciliation.
	OutcomeDeferred EventOutcome = "deferred"
	// OutcomeReplayed means the event id was already in the ledger. A
	// replay never writes a row; the original row stays authoritative.
	OutcomeReplayed EventOutcome = "replayed"
)

// Scan implements sql.Scanner interface
func (o *EventOutcome) Scan(src interface{}) error {
	switch v := src.(type) {
	case string:
		*o = EventOutcome(v)
	case []byte:
		*o = EventOutcome(v)
	default:
		*o = OutcomeIgnored
	}
	return nil
}

// Value implements driver.Valuer interface
func (o EventOutcome) Value() (driver.Value, error) {
	return string(o), nil
}

// ProcessedEvent is the idempotency ledger and audit log in one: exactly one
// row exists per external event id, enforced by the unique constraint. The
// existence of a row is the authoritative signal that the event's effects
// have been applied (or deliberately skipped).
type ProcessedEvent struct {
	ID                int64        `gorm:"primaryKey;autoIncrement" json:"id"`
	EventID           string       `gorm:"unique;not null;size:255;index" json:"event_id"`
	EventType         string       `gorm:"not null;size:100;index" json:"event_type"`
	Outcome           EventOutcome `gorm:"type:varchar(20);not null;index" json:"outcome"`
	LastError         *string      `json:"last_error,omitempty"`
	Data              JSONB        `gorm:"type:jsonb" json:"data,omitempty"`
	ProviderCreatedAt *time.Time   `json:"provider_created_at,omitempty"`
	ProcessedAt       time.Time    `gorm:"not null" json:"processed_at"`
	CreatedAt         time.Time    `gorm:"default:now()" json:"created_at"`
}

// TableName specifies the table name for GORM
func (ProcessedEvent) TableName() string {
	return "processed_events"
}
