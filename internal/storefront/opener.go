package storefront

import (
	"context"
	"errors"
	"strings"

	"github.com/angelmondragon/foodmarketplace/internal/cart"
	"github.com/angelmondragon/foodmarketplace/pkg/eventbus"
	"github.com/angelmondragon/foodmarketplace/pkg/logger"
)

// Recorder is satisfied by the cart metrics collector.
type Recorder interface {
	cart.Recorder
	EventRecorder
}

// OpenerParams wires an Opener.
type OpenerParams struct {
	Store      cart.Store
	Bus        *eventbus.Bus
	StorageKey string
	LegacyKeys []string
	Logger     *logger.Logger
	Metrics    Recorder
}

// Opener hydrates a session's cart and mounts the adapters on it, the way a
// storefront page load does.
type Opener struct {
	store      cart.Store
	bus        *eventbus.Bus
	storageKey string
	legacyKeys []string
	logg       *logger.Logger
	metrics    Recorder
}

func NewOpener(p OpenerParams) (*Opener, error) {
	if p.Store == nil {
		return nil, errors.New("cart store required")
	}
	if p.Bus == nil {
		return nil, errors.New("event bus required")
	}
	if strings.TrimSpace(p.StorageKey) == "" {
		return nil, errors.New("storage key required")
	}
	logg := p.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	return &Opener{
		store:      p.Store,
		bus:        p.Bus,
		storageKey: strings.TrimSpace(p.StorageKey),
		legacyKeys: p.LegacyKeys,
		logg:       logg,
		metrics:    p.Metrics,
	}, nil
}

// CartKey scopes the storage key to one session.
func (o *Opener) CartKey(session string) string {
	return scopedKey(o.storageKey, session)
}

// Bus is the bus adapters are mounted on.
func (o *Opener) Bus() *eventbus.Bus {
	return o.bus
}

// Open loads the session cart. Close the returned page when done.
func (o *Opener) Open(ctx context.Context, session string) (*Page, error) {
	legacy := make([]string, 0, len(o.legacyKeys))
	for _, k := range o.legacyKeys {
		if k = strings.TrimSpace(k); k != "" {
			legacy = append(legacy, scopedKey(k, session))
		}
	}

	params := cart.Params{
		Key:        o.CartKey(session),
		LegacyKeys: legacy,
		Store:      o.store,
		Publisher:  o.bus,
		Logger:     o.logg,
	}
	var events EventRecorder
	if o.metrics != nil {
		params.Metrics = o.metrics
		events = o.metrics
	}
	engine, err := cart.Load(ctx, params)
	if err != nil {
		return nil, err
	}

	return &Page{
		Session:   session,
		Engine:    engine,
		Front:     Mount(engine, o.bus, events),
		bus:       o.bus,
		persisted: true,
	}, nil
}

// Page is one hydrated cart with its mounted adapters.
type Page struct {
	Session string
	Engine  *cart.Engine
	Front   *Storefront

	bus       *eventbus.Bus
	persisted bool
	warning   string
}

// CartView is the rendered cart state returned to clients.
type CartView struct {
	Session   string     `json:"session"`
	Badge     BadgeView  `json:"badge"`
	Drawer    DrawerView `json:"drawer"`
	Persisted bool       `json:"persisted"`
	Warning   string     `json:"warning,omitempty"`
}

// Absorb records the outcome of a mutation. A persistence failure becomes a
// warning on the view; any other error is returned unchanged.
func (p *Page) Absorb(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, cart.ErrNotPersisted) {
		p.persisted = false
		p.warning = "cart changes could not be saved and may be lost on reload"
		return nil
	}
	return err
}

// Announce publishes a drawer visibility event for this page's cart.
func (p *Page) Announce(ctx context.Context, evt eventbus.Event) {
	evt.Key = p.Engine.Key()
	p.bus.Publish(ctx, evt)
}

// View renders the adapters.
func (p *Page) View() CartView {
	return CartView{
		Session:   p.Session,
		Badge:     p.Front.Badge.View(),
		Drawer:    p.Front.Drawer.View(),
		Persisted: p.persisted,
		Warning:   p.warning,
	}
}

// Close unmounts the adapters.
func (p *Page) Close() {
	p.Front.Unmount()
}

func scopedKey(base, session string) string {
	session = strings.TrimSpace(session)
	if session == "" {
		return base
	}
	return base + ":" + session
}
