package notify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/lumeworks/billing-reconciler/internal/usecase"
)

// flakySink fails the first failuresBefore deliveries of each notification,
// then succeeds.
type flakySink struct {
	mu             sync.Mutex
	failuresBefore int
	attempts       int
	delivered      []usecase.Notification
	closed         bool
}

func (s *flakySink) Deliver(_ context.Context, n usecase.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.attempts++
	if s.attempts <= s.failuresBefore {
		return errors.New("connection refused")
	}
	s.delivered = append(s.delivered, n)
	return nil
}

func (s *flakySink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *flakySink) snapshot() (attempts int, delivered []usecase.Notification) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attempts, append([]usecase.Notification(nil), s.delivered...)
}

func testNotification(kind usecase.NotificationKind) usecase.Notification {
	return usecase.Notification{
		Kind:           kind,
		SubscriptionID: 1,
		UserID:         uuid.New(),
	}
}

func TestDispatcher_DeliversInOrder(t *testing.T) {
	sink := &flakySink{}
	d := NewDispatcher(sink, zap.NewNop(), WithBaseBackoff(time.Millisecond))

	d.Enqueue(testNotification(usecase.NotifySubscriptionActivated))
	d.Enqueue(testNotification(usecase.NotifySubscriptionRenewed))

	require.NoError(t, d.Close())

	_, delivered := sink.snapshot()
	require.Len(t, delivered, 2)
	assert.Equal(t, usecase.NotifySubscriptionActivated, delivered[0].Kind)
	assert.Equal(t, usecase.NotifySubscriptionRenewed, delivered[1].Kind)
	assert.True(t, sink.closed)
}

func TestDispatcher_RetriesUntilSinkRecovers(t *testing.T) {
	sink := &flakySink{failuresBefore: 2}
	d := NewDispatcher(sink, zap.NewNop(),
		WithMaxAttempts(5),
		WithBaseBackoff(time.Millisecond))

	d.Enqueue(testNotification(usecase.NotifySubscriptionSuspended))

	require.NoError(t, d.Close())

	attempts, delivered := sink.snapshot()
	assert.Equal(t, 3, attempts)
	require.Len(t, delivered, 1)
	assert.Equal(t, usecase.NotifySubscriptionSuspended, delivered[0].Kind)
}

func TestDispatcher_GivesUpAfterMaxAttempts(t *testing.T) {
	sink := &flakySink{failuresBefore: 100}
	d := NewDispatcher(sink, zap.NewNop(),
		WithMaxAttempts(3),
		WithBaseBackoff(time.Millisecond))

	d.Enqueue(testNotification(usecase.NotifySubscriptionCancelled))

	require.NoError(t, d.Close())

	attempts, delivered := sink.snapshot()
	assert.Equal(t, 3, attempts)
	assert.Empty(t, delivered)
}

func TestDispatcher_DropsWhenQueueFull(t *testing.T) {
	// Hold the worker on the first delivery so the queue stays full.
	sink := &blockingSink{release: make(chan struct{}), picked: make(chan struct{})}
	d := NewDispatcher(sink, zap.NewNop(), WithQueueSize(1))

	d.Enqueue(testNotification(usecase.NotifySubscriptionActivated))
	<-sink.picked // worker is now blocked inside Deliver

	d.Enqueue(testNotification(usecase.NotifySubscriptionRenewed))
	d.Enqueue(testNotification(usecase.NotifySubscriptionExpired)) // queue full, dropped

	close(sink.release)
	require.NoError(t, d.Close())

	sink.mu.Lock()
	defer sink.mu.Unlock()
	require.Len(t, sink.delivered, 2)
	assert.Equal(t, usecase.NotifySubscriptionActivated, sink.delivered[0].Kind)
	assert.Equal(t, usecase.NotifySubscriptionRenewed, sink.delivered[1].Kind)
}

type blockingSink struct {
	release    chan struct{}
	picked     chan struct{}
	pickedOnce sync.Once
	mu         sync.Mutex
	delivered  []usecase.Notification
}

func (s *blockingSink) Deliver(_ context.Context, n usecase.Notification) error {
	s.pickedOnce.Do(func() { close(s.picked) })
	<-s.release
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delivered = append(s.delivered, n)
	return nil
}

func (s *blockingSink) Close() error { return nil }
