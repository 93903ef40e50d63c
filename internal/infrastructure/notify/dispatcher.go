package notify

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/lumeworks/billing-reconciler/internal/usecase"
)

// Sink delivers a single notification to its destination.
type Sink interface {
	Deliver(ctx context.Context, n usecase.Notification) error
	Close() error
}

// Dispatcher implements usecase.Notifier: a bounded in-memory queue drained
// by a worker goroutine, with per-message retry and exponential backoff.
// Enqueue never blocks the webhook path; when the queue is full the
// notification is dropped and logged. Delivery failures are isolated from
// webhook acknowledgment entirely.
type Dispatcher struct {
	sink        Sink
	logger      *zap.Logger
	queue       chan usecase.Notification
	maxAttempts int
	baseBackoff time.Duration

	wg        sync.WaitGroup
	closeOnce sync.Once
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithQueueSize sets the queue capacity.
func WithQueueSize(n int) DispatcherOption {
	return func(d *Dispatcher) {
		if n > 0 {
			d.queue = make(chan usecase.Notification, n)
		}
	}
}

// WithMaxAttempts sets how many delivery attempts a notification gets.
func WithMaxAttempts(n int) DispatcherOption {
	return func(d *Dispatcher) {
		if n > 0 {
			d.maxAttempts = n
		}
	}
}

// WithBaseBackoff sets the first retry delay; each retry doubles it.
func WithBaseBackoff(b time.Duration) DispatcherOption {
	return func(d *Dispatcher) {
		if b > 0 {
			d.baseBackoff = b
		}
	}
}

// NewDispatcher creates a dispatcher and starts its worker.
func NewDispatcher(sink Sink, logger *zap.Logger, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		sink:        sink,
		logger:      logger,
		queue:       make(chan usecase.Notification, 1024),
		maxAttempts: 5,
		baseBackoff: time.Second,
	}
	for _, opt := range opts {
		opt(d)
	}

	d.wg.Add(1)
	go d.run()

	return d
}

// Enqueue queues a notification for asynchronous delivery.
func (d *Dispatcher) Enqueue(n usecase.Notification) {
	select {
	case d.queue <- n:
	default:
		d.logger.Error("Notification queue full, dropping notification",
			zap.String("kind", string(n.Kind)),
			zap.Int64("subscription_id", n.SubscriptionID))
	}
}

// Close stops accepting notifications, drains the queue, and closes the sink.
func (d *Dispatcher) Close() error {
	d.closeOnce.Do(func() {
		close(d.queue)
	})
	d.wg.Wait()
	return d.sink.Close()
}

func (d *Dispatcher) run() {
	defer d.wg.Done()

	for n := range d.queue {
		d.deliver(n)
	}
}

func (d *Dispatcher) deliver(n usecase.Notification) {
	backoff := d.baseBackoff

	for attempt := 1; attempt <= d.maxAttempts; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := d.sink.Deliver(ctx, n)
		cancel()

		if err == nil {
			d.logger.Debug("Notification delivered",
				zap.String("kind", string(n.Kind)),
				zap.Int64("subscription_id", n.SubscriptionID),
				zap.Int("attempt", attempt))
			return
		}

		d.logger.Warn("Notification delivery failed",
			zap.String("kind", string(n.Kind)),
			zap.Int64("subscription_id", n.SubscriptionID),
			zap.Int("attempt", attempt),
			zap.Error(err))

		if attempt < d.maxAttempts {
			time.Sleep(backoff)
			backoff *= 2
		}
	}

	d.logger.Error("Notification dropped after max delivery attempts",
		zap.String("kind", string(n.Kind)),
		zap.Int64("subscription_id", n.SubscriptionID),
		zap.Int("attempts", d.maxAttempts))
}
