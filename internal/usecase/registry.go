package usecase

import (
	"context"
	"fmt"
	"sort"

	"github.com/lumeworks/billing-reconciler/internal/domain/event"
)

// Handler applies one event type's business logic inside the executor's
// transaction. Implementations must be idempotent by construction:
// re-invocation under a different event id describing an already-applied
// fact has to be a safe no-op. Handlers must not perform blocking external
// I/O; user-facing effects are queued on the Execution and dispatched after
// commit.
type Handler interface {
	Type() event.Type
	Handle(ctx context.Context, ex *Execution) error
}

// Registry maps event types to their handlers. It is populated by explicit
// Register calls when the engine is constructed, so the set of handled
// types is statically enumerable.
type Registry struct {
	handlers map[event.Type]Handler
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[event.Type]Handler)}
}

// Register adds a handler. Registering two handlers for the same type is a
// wiring bug, so it panics at startup rather than silently overwriting.
func (r *Registry) Register(h Handler) {
	if _, exists := r.handlers[h.Type()]; exists {
		panic(fmt.Sprintf("handler already registered for event type %q", h.Type()))
	}
	r.handlers[h.Type()] = h
}

// Lookup returns the handler for t, if one is registered.
func (r *Registry) Lookup(t event.Type) (Handler, bool) {
	h, ok := r.handlers[t]
	return h, ok
}

// Types returns the registered event types in stable order.
func (r *Registry) Types() []event.Type {
	types := make([]event.Type, 0, len(r.handlers))
	for t := range r.handlers {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}
