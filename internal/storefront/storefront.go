package storefront

import (
	"context"
	"sync"

	"github.com/angelmondragon/foodmarketplace/pkg/enums"
	"github.com/angelmondragon/foodmarketplace/pkg/eventbus"
)

// Storefront is the set of adapters attached to one cart engine. Adapters only
// read from the engine; they never mutate it.
type Storefront struct {
	Badge  *Badge
	Drawer *Drawer

	once   sync.Once
	unsubs []func()
}

// Mount renders the adapters from src and subscribes them to bus. Events for
// other cart keys are ignored. rec may be nil.
func Mount(src Source, bus Subscriber, rec EventRecorder) *Storefront {
	s := &Storefront{
		Badge:  newBadge(src),
		Drawer: newDrawer(src),
	}
	if bus == nil {
		return s
	}

	on := func(name enums.EventName, fn func(ctx context.Context, evt eventbus.Event)) {
		s.unsubs = append(s.unsubs, bus.Subscribe(name, func(ctx context.Context, evt eventbus.Event) {
			if evt.Key != "" && evt.Key != src.Key() {
				return
			}
			if rec != nil {
				rec.IncEvent(string(name))
			}
			fn(ctx, evt)
		}))
	}

	on(enums.EventCartChanged, func(ctx context.Context, _ eventbus.Event) {
		s.Badge.refresh(ctx)
		s.Drawer.refresh(ctx)
	})
	on(enums.EventProductAdded, func(_ context.Context, evt eventbus.Event) {
		s.Drawer.productAdded(evt.Detail["title"])
	})
	on(enums.EventCartToggle, func(context.Context, eventbus.Event) { s.Drawer.toggle() })
	on(enums.EventCartShow, func(context.Context, eventbus.Event) { s.Drawer.setOpen(true) })
	on(enums.EventCartClosed, func(context.Context, eventbus.Event) { s.Drawer.setOpen(false) })
	return s
}

// Unmount detaches every subscription. Safe to call more than once.
func (s *Storefront) Unmount() {
	s.once.Do(func() {
		for _, unsub := range s.unsubs {
			unsub()
		}
		s.unsubs = nil
	})
}
