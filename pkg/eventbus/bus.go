package eventbus

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/angelmondragon/foodmarketplace/pkg/enums"
	"github.com/angelmondragon/foodmarketplace/pkg/logger"
)

// Event is a storefront notification. Key scopes it to one cart storage key;
// Detail is informational only and subscribers must not depend on its shape.
type Event struct {
	Name       enums.EventName
	Key        string
	Detail     map[string]string
	OccurredAt time.Time
}

// Handler reacts to a published event.
type Handler func(ctx context.Context, evt Event)

// Publisher is the emitting side used by the cart engine and controllers.
type Publisher interface {
	Publish(ctx context.Context, evt Event)
}

// Bus is an in-process, synchronous publish/subscribe hub.
type Bus struct {
	mtx      sync.RWMutex
	nextID   uint64
	handlers map[enums.EventName]map[uint64]Handler
	logg     *logger.Logger
	now      func() time.Time
}

func New(logg *logger.Logger) *Bus {
	return &Bus{
		handlers: make(map[enums.EventName]map[uint64]Handler),
		logg:     logg,
		now:      time.Now,
	}
}

// Subscribe registers h for name and returns a function that removes it.
// Calling the returned function more than once is harmless.
func (b *Bus) Subscribe(name enums.EventName, h Handler) func() {
	b.mtx.Lock()
	defer b.mtx.Unlock()

	b.nextID++
	id := b.nextID
	if b.handlers[name] == nil {
		b.handlers[name] = make(map[uint64]Handler)
	}
	b.handlers[name][id] = h

	return func() {
		b.mtx.Lock()
		defer b.mtx.Unlock()
		delete(b.handlers[name], id)
		if len(b.handlers[name]) == 0 {
			delete(b.handlers, name)
		}
	}
}

// Publish delivers evt to every current subscriber before returning.
// Handlers run outside the bus lock so they may subscribe, unsubscribe or
// publish themselves.
func (b *Bus) Publish(ctx context.Context, evt Event) {
	if evt.OccurredAt.IsZero() {
		evt.OccurredAt = b.now()
	}
	for _, h := range b.snapshot(evt.Name) {
		b.dispatch(ctx, evt, h)
	}
}

// Subscribers returns how many handlers are registered for name.
func (b *Bus) Subscribers(name enums.EventName) int {
	b.mtx.RLock()
	defer b.mtx.RUnlock()
	return len(b.handlers[name])
}

func (b *Bus) snapshot(name enums.EventName) []Handler {
	b.mtx.RLock()
	defer b.mtx.RUnlock()

	ids := make([]uint64, 0, len(b.handlers[name]))
	for id := range b.handlers[name] {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	out := make([]Handler, 0, len(ids))
	for _, id := range ids {
		out = append(out, b.handlers[name][id])
	}
	return out
}

func (b *Bus) dispatch(ctx context.Context, evt Event, h Handler) {
	defer func() {
		if rec := recover(); rec != nil && b.logg != nil {
			logCtx := b.logg.WithFields(ctx, map[string]any{
				"event": evt.Name.String(),
				"key":   evt.Key,
				"panic": rec,
			})
			b.logg.Error(logCtx, "eventbus.handler_panic", fmt.Errorf("panic: %v", rec))
		}
	}()
	h(ctx, evt)
}
