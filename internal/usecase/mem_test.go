package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/lumeworks/billing-reconciler/internal/domain/event"
	"github.com/lumeworks/billing-reconciler/internal/domain/model"
	"github.com/lumeworks/billing-reconciler/internal/domain/repository"
)

// memStore is an in-memory database shared by the fake repositories. The
// fake transaction manager snapshots it before each unit of work and
// restores the snapshot on error, mirroring rollback semantics.
type memStore struct {
	subs          map[int64]*model.Subscription
	plans         map[int64]*model.Plan
	payments      map[int64]*model.Payment
	events        map[string]*model.ProcessedEvent
	nextPaymentID int64
}

func newMemStore() *memStore {
	return &memStore{
		subs:          make(map[int64]*model.Subscription),
		plans:         make(map[int64]*model.Plan),
		payments:      make(map[int64]*model.Payment),
		events:        make(map[string]*model.ProcessedEvent),
		nextPaymentID: 1,
	}
}

func (s *memStore) clone() *memStore {
	c := newMemStore()
	c.nextPaymentID = s.nextPaymentID
	for id, sub := range s.subs {
		copied := *sub
		c.subs[id] = &copied
	}
	for id, plan := range s.plans {
		copied := *plan
		c.plans[id] = &copied
	}
	for id, payment := range s.payments {
		copied := *payment
		c.payments[id] = &copied
	}
	for id, ev := range s.events {
		copied := *ev
		c.events[id] = &copied
	}
	return c
}

func (s *memStore) restore(from *memStore) {
	s.subs = from.subs
	s.plans = from.plans
	s.payments = from.payments
	s.events = from.events
	s.nextPaymentID = from.nextPaymentID
}

func (s *memStore) paymentsFor(subscriptionID int64) []*model.Payment {
	var out []*model.Payment
	for _, p := range s.payments {
		if p.SubscriptionID == subscriptionID {
			out = append(out, p)
		}
	}
	return out
}

type memSubscriptionRepo struct{ store *memStore }

func (r *memSubscriptionRepo) GetByID(_ context.Context, id int64) (*model.Subscription, error) {
	if sub, ok := r.store.subs[id]; ok {
		return sub, nil
	}
	return nil, nil
}

func (r *memSubscriptionRepo) GetByProviderID(_ context.Context, providerID string) (*model.Subscription, error) {
	for _, sub := range r.store.subs {
		if sub.ProviderSubscriptionID != nil && *sub.ProviderSubscriptionID == providerID {
			return sub, nil
		}
	}
	return nil, nil
}

func (r *memSubscriptionRepo) GetByIDForUpdate(ctx context.Context, id int64) (*model.Subscription, error) {
	return r.GetByID(ctx, id)
}

func (r *memSubscriptionRepo) GetByProviderIDForUpdate(ctx context.Context, providerID string) (*model.Subscription, error) {
	return r.GetByProviderID(ctx, providerID)
}

func (r *memSubscriptionRepo) Update(_ context.Context, sub *model.Subscription) error {
	if _, ok := r.store.subs[sub.ID]; !ok {
		return fmt.Errorf("subscription not found: %d", sub.ID)
	}
	copied := *sub
	r.store.subs[sub.ID] = &copied
	return nil
}

func (r *memSubscriptionRepo) ListSuspendedBefore(_ context.Context, cutoff time.Time, limit int) ([]*model.Subscription, error) {
	var out []*model.Subscription
	for _, sub := range r.store.subs {
		if sub.Status == model.SubscriptionStatusSuspended && sub.SuspendedAt != nil && sub.SuspendedAt.Before(cutoff) {
			out = append(out, sub)
		}
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

type memPlanRepo struct{ store *memStore }

func (r *memPlanRepo) GetByID(_ context.Context, id int64) (*model.Plan, error) {
	if plan, ok := r.store.plans[id]; ok {
		return plan, nil
	}
	return nil, nil
}

func (r *memPlanRepo) GetByCode(_ context.Context, code string) (*model.Plan, error) {
	for _, plan := range r.store.plans {
		if plan.Code == code {
			return plan, nil
		}
	}
	return nil, nil
}

type memPaymentRepo struct{ store *memStore }

func (r *memPaymentRepo) Create(_ context.Context, payment *model.Payment) error {
	payment.ID = r.store.nextPaymentID
	r.store.nextPaymentID++
	copied := *payment
	r.store.payments[payment.ID] = &copied
	return nil
}

func (r *memPaymentRepo) GetByProviderPaymentID(_ context.Context, providerPaymentID string) (*model.Payment, error) {
	for _, p := range r.store.payments {
		if p.ProviderPaymentID == providerPaymentID {
			return p, nil
		}
	}
	return nil, nil
}

func (r *memPaymentRepo) ListBySubscriptionID(_ context.Context, subscriptionID int64) ([]*model.Payment, error) {
	return r.store.paymentsFor(subscriptionID), nil
}

// memEventRepo is the fake idempotency ledger. blindGets makes GetByEventID
// report "not processed" for that many calls even when a row exists, which
// simulates a concurrent delivery whose pre-check ran before the first
// delivery committed.
type memEventRepo struct {
	store     *memStore
	blindGets int
}

func (r *memEventRepo) GetByEventID(_ context.Context, eventID string) (*model.ProcessedEvent, error) {
	if r.blindGets > 0 {
		r.blindGets--
		return nil, nil
	}
	if ev, ok := r.store.events[eventID]; ok {
		return ev, nil
	}
	return nil, nil
}

func (r *memEventRepo) Create(_ context.Context, ev *model.ProcessedEvent) error {
	if _, exists := r.store.events[ev.EventID]; exists {
		return fmt.Errorf("%w: %s", repository.ErrDuplicateEvent, ev.EventID)
	}
	copied := *ev
	r.store.events[ev.EventID] = &copied
	return nil
}

func (r *memEventRepo) ListByOutcome(_ context.Context, outcome model.EventOutcome, limit int) ([]*model.ProcessedEvent, error) {
	var out []*model.ProcessedEvent
	for _, ev := range r.store.events {
		if ev.Outcome == outcome {
			out = append(out, ev)
		}
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (r *memEventRepo) Delete(_ context.Context, eventID string) error {
	if _, ok := r.store.events[eventID]; !ok {
		return fmt.Errorf("processed event not found: %s", eventID)
	}
	delete(r.store.events, eventID)
	return nil
}

// memTxManager runs units of work against the shared store and restores a
// pre-transaction snapshot when fn fails.
type memTxManager struct {
	store     *memStore
	eventRepo *memEventRepo
}

func newMemTxManager(store *memStore) *memTxManager {
	return &memTxManager{
		store:     store,
		eventRepo: &memEventRepo{store: store},
	}
}

func (m *memTxManager) WithinTx(ctx context.Context, fn func(ctx context.Context, s *repository.Set) error) error {
	snapshot := m.store.clone()

	set := &repository.Set{
		Subscriptions: &memSubscriptionRepo{store: m.store},
		Plans:         &memPlanRepo{store: m.store},
		Payments:      &memPaymentRepo{store: m.store},
		Events:        m.eventRepo,
	}

	if err := fn(ctx, set); err != nil {
		m.store.restore(snapshot)
		return err
	}
	return nil
}

// captureNotifier records enqueued notifications.
type captureNotifier struct {
	mu   sync.Mutex
	sent []Notification
}

func (n *captureNotifier) Enqueue(notification Notification) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, notification)
}

func (n *captureNotifier) kinds() []NotificationKind {
	n.mu.Lock()
	defer n.mu.Unlock()
	kinds := make([]NotificationKind, 0, len(n.sent))
	for _, sent := range n.sent {
		kinds = append(kinds, sent.Kind)
	}
	return kinds
}

// makeEvent builds a parsed event the way the webhook boundary would,
// including the raw body the ledger stores.
func makeEvent(id string, eventType event.Type, createdAt time.Time, data event.Payload) *event.Event {
	ev := &event.Event{
		ID:        id,
		Type:      eventType,
		CreatedAt: createdAt.Unix(),
		Data:      data,
	}
	raw, err := json.Marshal(ev)
	if err != nil {
		panic(err)
	}
	ev.Raw = raw
	return ev
}

func strPtr(s string) *string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return &s
}
