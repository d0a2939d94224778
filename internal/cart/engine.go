package cart

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/foodmarketplace/pkg/enums"
	pkgerrors "github.com/angelmondragon/foodmarketplace/pkg/errors"
	"github.com/angelmondragon/foodmarketplace/pkg/eventbus"
	"github.com/angelmondragon/foodmarketplace/pkg/logger"
)

// ErrNotPersisted marks a mutation that was applied in memory but rejected by
// the store. Callers treat it as a warning; the cart stays usable.
var ErrNotPersisted = errors.New("cart change not persisted")

const (
	opAdd         = "add"
	opRemove      = "remove"
	opSetQuantity = "set_quantity"
	opClear       = "clear"
)

// Store is the persistence adapter: a string key/value area.
type Store interface {
	Load(ctx context.Context, key string) (string, bool, error)
	Save(ctx context.Context, key, value string) error
}

// Recorder receives engine counters.
type Recorder interface {
	IncMutation(op string)
	IncPersistFailure(op string)
	IncLoadRecovery(reason string)
}

// Params wires an Engine. Store and Key are required.
type Params struct {
	Key        string
	LegacyKeys []string
	Store      Store
	Publisher  eventbus.Publisher
	Logger     *logger.Logger
	Metrics    Recorder
	Now        func() time.Time
}

// Engine owns the in-memory line list for one storage key, persists every
// mutation and announces it on the publisher.
//
// Engines sharing a key do not observe each other: each write replaces the
// stored array with the writer's full view, so the last writer wins.
type Engine struct {
	mtx   sync.RWMutex
	lines []Line

	key        string
	legacyKeys []string
	store      Store
	pub        eventbus.Publisher
	logg       *logger.Logger
	rec        Recorder
	now        func() time.Time
}

// Load builds an engine and hydrates it from the store. Missing, unreadable
// or corrupt data yields an empty cart; only wiring mistakes return an error.
func Load(ctx context.Context, p Params) (*Engine, error) {
	if p.Store == nil {
		return nil, fmt.Errorf("cart store required")
	}
	key := strings.TrimSpace(p.Key)
	if key == "" {
		return nil, fmt.Errorf("cart storage key required")
	}

	e := &Engine{
		key:        key,
		legacyKeys: p.LegacyKeys,
		store:      p.Store,
		pub:        p.Publisher,
		logg:       p.Logger,
		rec:        p.Metrics,
		now:        p.Now,
	}
	if e.logg == nil {
		e.logg = logger.Nop()
	}
	if e.rec == nil {
		e.rec = noopRecorder{}
	}
	if e.now == nil {
		e.now = time.Now
	}

	e.hydrate(e.logg.WithCartKey(ctx, key))
	return e, nil
}

func (e *Engine) hydrate(ctx context.Context) {
	keys := append([]string{e.key}, e.legacyKeys...)
	for i, key := range keys {
		if strings.TrimSpace(key) == "" {
			continue
		}
		raw, ok, err := e.store.Load(ctx, key)
		if err != nil {
			e.rec.IncLoadRecovery("store_error")
			e.logg.Error(e.logg.WithField(ctx, "source_key", key), "cart.load_failed", err)
			return
		}
		if !ok || strings.TrimSpace(raw) == "" {
			continue
		}

		lines, dropped, err := DecodeLines([]byte(raw))
		if err != nil {
			e.rec.IncLoadRecovery("corrupt")
			e.logg.Warn(e.logg.WithFields(ctx, map[string]any{
				"source_key": key,
				"error":      err.Error(),
			}), "cart.load_corrupt")
			return
		}
		if dropped > 0 {
			e.rec.IncLoadRecovery("dropped_lines")
			e.logg.Warn(e.logg.WithField(ctx, "dropped", dropped), "cart.load_dropped_lines")
		}
		if i > 0 {
			e.logg.Info(e.logg.WithField(ctx, "source_key", key), "cart.load_legacy_key")
		}
		e.lines = lines
		return
	}
}

// Key returns the storage key this engine writes to.
func (e *Engine) Key() string {
	return e.key
}

// AddLine adds quantity units of p, merging into an existing line with the
// same id. Quantities below one are raised to one. An existing line keeps the
// unit price it was first added with.
func (e *Engine) AddLine(ctx context.Context, p Product, quantity int) error {
	p.ID = strings.TrimSpace(p.ID)
	if err := validateProduct(p); err != nil {
		return err
	}
	if quantity < 1 {
		quantity = 1
	}

	e.mtx.Lock()
	if i := e.indexLocked(p.ID); i >= 0 {
		e.lines[i].Quantity += quantity
	} else {
		e.lines = append(e.lines, newLine(p, quantity))
	}
	err := e.persistLocked(ctx, opAdd)
	e.mtx.Unlock()

	e.publish(ctx, enums.EventCartChanged, map[string]string{"op": opAdd, "id": p.ID})
	e.publish(ctx, enums.EventProductAdded, map[string]string{
		"id":       p.ID,
		"title":    p.Title,
		"quantity": strconv.Itoa(quantity),
	})
	return err
}

// RemoveLine deletes the line with id. Removing an absent id changes nothing
// and emits nothing.
func (e *Engine) RemoveLine(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)

	e.mtx.Lock()
	i := e.indexLocked(id)
	if i < 0 {
		e.mtx.Unlock()
		return nil
	}
	e.lines = append(e.lines[:i], e.lines[i+1:]...)
	err := e.persistLocked(ctx, opRemove)
	e.mtx.Unlock()

	e.publish(ctx, enums.EventCartChanged, map[string]string{"op": opRemove, "id": id})
	return err
}

// SetQuantity overwrites the quantity of an existing line. Zero or negative
// quantities remove the line; unknown ids are ignored.
func (e *Engine) SetQuantity(ctx context.Context, id string, quantity int) error {
	if quantity <= 0 {
		return e.RemoveLine(ctx, id)
	}
	id = strings.TrimSpace(id)

	e.mtx.Lock()
	i := e.indexLocked(id)
	if i < 0 {
		e.mtx.Unlock()
		return nil
	}
	e.lines[i].Quantity = quantity
	err := e.persistLocked(ctx, opSetQuantity)
	e.mtx.Unlock()

	e.publish(ctx, enums.EventCartChanged, map[string]string{
		"op":       opSetQuantity,
		"id":       id,
		"quantity": strconv.Itoa(quantity),
	})
	return err
}

// Clear empties the cart and persists an empty array.
func (e *Engine) Clear(ctx context.Context) error {
	e.mtx.Lock()
	e.lines = nil
	err := e.persistLocked(ctx, opClear)
	e.mtx.Unlock()

	e.publish(ctx, enums.EventCartChanged, map[string]string{"op": opClear})
	return err
}

// Lines returns a copy of the current lines in insertion order.
func (e *Engine) Lines() []Line {
	e.mtx.RLock()
	defer e.mtx.RUnlock()
	return copyLines(e.lines)
}

// TotalItemCount is the sum of quantities.
func (e *Engine) TotalItemCount() int {
	e.mtx.RLock()
	defer e.mtx.RUnlock()
	count, _ := sumLines(e.lines)
	return count
}

// TotalAmount is the sum of UnitPrice × Quantity, unrounded.
func (e *Engine) TotalAmount() decimal.Decimal {
	e.mtx.RLock()
	defer e.mtx.RUnlock()
	_, total := sumLines(e.lines)
	return total
}

// Snapshot captures lines and totals under one read lock.
func (e *Engine) Snapshot() Snapshot {
	e.mtx.RLock()
	defer e.mtx.RUnlock()
	count, total := sumLines(e.lines)
	return Snapshot{
		Key:            e.key,
		Lines:          copyLines(e.lines),
		TotalItemCount: count,
		TotalAmount:    total,
		TakenAt:        e.now().UTC(),
	}
}

func (e *Engine) indexLocked(id string) int {
	for i := range e.lines {
		if e.lines[i].ID == id {
			return i
		}
	}
	return -1
}

func (e *Engine) persistLocked(ctx context.Context, op string) error {
	e.rec.IncMutation(op)
	ctx = e.logg.WithFields(ctx, map[string]any{"cart_key": e.key, "op": op})

	payload, err := EncodeLines(e.lines)
	if err == nil {
		err = e.store.Save(ctx, e.key, string(payload))
	}
	if err != nil {
		e.rec.IncPersistFailure(op)
		e.logg.Error(ctx, "cart.persist_failed", err)
		return fmt.Errorf("%w: %w", ErrNotPersisted, err)
	}
	return nil
}

func (e *Engine) publish(ctx context.Context, name enums.EventName, detail map[string]string) {
	if e.pub == nil {
		return
	}
	e.pub.Publish(ctx, eventbus.Event{
		Name:       name,
		Key:        e.key,
		Detail:     detail,
		OccurredAt: e.now().UTC(),
	})
}

func validateProduct(p Product) error {
	if p.ID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}
	if p.UnitPrice.IsNegative() {
		return pkgerrors.New(pkgerrors.CodeValidation, "unit price must be non-negative").
			WithDetails(map[string]any{"id": p.ID, "unitPrice": p.UnitPrice.String()})
	}
	if p.OriginalPrice != nil && p.OriginalPrice.IsNegative() {
		return pkgerrors.New(pkgerrors.CodeValidation, "original price must be non-negative").
			WithDetails(map[string]any{"id": p.ID})
	}
	return nil
}

func copyLines(lines []Line) []Line {
	out := make([]Line, len(lines))
	for i, l := range lines {
		out[i] = l.clone()
	}
	return out
}

type noopRecorder struct{}

func (noopRecorder) IncMutation(string)       {}
func (noopRecorder) IncPersistFailure(string) {}
func (noopRecorder) IncLoadRecovery(string)   {}
