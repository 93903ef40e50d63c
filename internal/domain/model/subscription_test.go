package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSubscriptionStatus_CanTransitionTo(t *testing.T) {
	tests := []struct {
		from    SubscriptionStatus
		to      SubscriptionStatus
		allowed bool
	}{
		{SubscriptionStatusPending, SubscriptionStatusActive, true},
		{SubscriptionStatusPending, SubscriptionStatusExpired, true},
		{SubscriptionStatusPending, SubscriptionStatusSuspended, false},
		{SubscriptionStatusPending, SubscriptionStatusCancelled, false},
		{SubscriptionStatusActive, SubscriptionStatusSuspended, true},
		{SubscriptionStatusActive, SubscriptionStatusCancelled, true},
		{SubscriptionStatusActive, SubscriptionStatusExpired, false},
		{SubscriptionStatusActive, SubscriptionStatusPending, false},
		{SubscriptionStatusSuspended, SubscriptionStatusActive, true},
		{SubscriptionStatusSuspended, SubscriptionStatusCancelled, true},
		{SubscriptionStatusSuspended, SubscriptionStatusExpired, false},
		{SubscriptionStatusCancelled, SubscriptionStatusActive, false},
		{SubscriptionStatusCancelled, SubscriptionStatusPending, false},
		{SubscriptionStatusExpired, SubscriptionStatusActive, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"_to_"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.allowed, tt.from.CanTransitionTo(tt.to))
		})
	}
}

func TestSubscriptionStatus_IsTerminal(t *testing.T) {
	assert.False(t, SubscriptionStatusPending.IsTerminal())
	assert.False(t, SubscriptionStatusActive.IsTerminal())
	assert.False(t, SubscriptionStatusSuspended.IsTerminal())
	assert.True(t, SubscriptionStatusCancelled.IsTerminal())
	assert.True(t, SubscriptionStatusExpired.IsTerminal())
}

func TestBillingInterval_AddTo(t *testing.T) {
	base := date(2026, 1, 31)

	assert.Equal(t, date(2026, 3, 2), BillingIntervalMonth.AddTo(base),
		"Go normalizes Jan 31 + 1 month past February")
	assert.Equal(t, date(2027, 1, 31), BillingIntervalYear.AddTo(base))

	mid := date(2026, 4, 15)
	assert.Equal(t, date(2026, 5, 15), BillingIntervalMonth.AddTo(mid))
}

func date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}
