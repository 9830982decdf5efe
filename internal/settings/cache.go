package settings

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/kailas-cloud/deskindex/internal/eventbus"
)

// Reader loads raw setting values by key. Missing keys are simply absent from the map.
type Reader interface {
	GetSettings(ctx context.Context, keys []string) (map[string]json.RawMessage, error)
}

// ChangeEvent is the payload of eventbus.TopicSettingsUpdated.
type ChangeEvent struct {
	Name  string          `json:"name"`
	Value json.RawMessage `json:"value"`
}

// ChangeHandler reacts to a snapshot transition. prev is nil when no snapshot
// had been loaded before the change.
type ChangeHandler func(ctx context.Context, prev, next *Snapshot)

type subscription struct {
	keys    []string
	handler ChangeHandler
}

// Cache memoizes the settings Snapshot and keeps it current from change events.
// Readers always see a complete snapshot: updates build a new value and swap the pointer.
type Cache struct {
	reader Reader
	logger *zap.Logger

	snap atomic.Pointer[Snapshot]
	// writeMu serializes loads and updates; readers never take it on the fast path.
	writeMu sync.Mutex

	subsMu sync.Mutex
	subs   map[uint64]subscription
	nextID uint64
}

// NewCache creates an empty cache; the first Get loads from reader.
func NewCache(reader Reader, logger *zap.Logger) *Cache {
	return &Cache{
		reader: reader,
		logger: logger,
		subs:   make(map[uint64]subscription),
	}
}

// Get returns the current snapshot, loading it if nothing is memoized.
func (c *Cache) Get(ctx context.Context) (*Snapshot, error) {
	if s := c.snap.Load(); s != nil {
		return s, nil
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.loadLocked(ctx)
}

func (c *Cache) loadLocked(ctx context.Context) (*Snapshot, error) {
	if s := c.snap.Load(); s != nil {
		return s, nil
	}

	values, err := c.reader.GetSettings(ctx, TrackedKeys)
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}

	s := defaultSnapshot()
	for _, key := range TrackedKeys {
		raw, ok := values[key]
		if !ok {
			continue
		}
		if err := s.apply(key, raw); err != nil {
			c.logger.Warn("Ignoring malformed setting", zap.String("key", key), zap.Error(err))
		}
	}
	s.recompute()

	c.snap.Store(s)
	return s, nil
}

// Invalidate drops the memoized snapshot; the next Get reloads it.
func (c *Cache) Invalidate() {
	c.snap.Store(nil)
}

// HandleChange applies a setting change. Untracked keys leave the snapshot
// untouched. Tracked keys produce a new snapshot by copy-on-write; values that
// cannot be decoded invalidate the cache and force a reload instead.
// Handlers registered for the key run after the new snapshot is visible.
func (c *Cache) HandleChange(ctx context.Context, name string, value json.RawMessage) error {
	if !IsTracked(name) {
		return nil
	}

	c.writeMu.Lock()
	prev := c.snap.Load()
	var next *Snapshot
	if prev != nil {
		next = prev.clone()
		if err := next.apply(name, value); err != nil {
			c.logger.Warn("Setting change not applicable incrementally, reloading",
				zap.String("key", name), zap.Error(err))
			next = nil
		} else {
			next.recompute()
			c.snap.Store(next)
		}
	}
	if next == nil {
		c.snap.Store(nil)
		var err error
		if next, err = c.loadLocked(ctx); err != nil {
			c.writeMu.Unlock()
			return err
		}
	}
	c.writeMu.Unlock()

	c.notify(ctx, name, prev, next)
	return nil
}

// OnChange registers handler for changes to any of keys (all tracked keys when
// none are given). Handlers run synchronously in registration order.
func (c *Cache) OnChange(handler ChangeHandler, keys ...string) (unsubscribe func()) {
	c.subsMu.Lock()
	defer c.subsMu.Unlock()

	id := c.nextID
	c.nextID++
	c.subs[id] = subscription{keys: slices.Clone(keys), handler: handler}

	return func() {
		c.subsMu.Lock()
		delete(c.subs, id)
		c.subsMu.Unlock()
	}
}

func (c *Cache) notify(ctx context.Context, name string, prev, next *Snapshot) {
	c.subsMu.Lock()
	ids := make([]uint64, 0, len(c.subs))
	for id, sub := range c.subs {
		if len(sub.keys) == 0 || slices.Contains(sub.keys, name) {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	handlers := make([]ChangeHandler, len(ids))
	for i, id := range ids {
		handlers[i] = c.subs[id].handler
	}
	c.subsMu.Unlock()

	for _, h := range handlers {
		h(ctx, prev, next)
	}
}

// Subscribe wires the cache to the settings topic of bus.
func (c *Cache) Subscribe(ctx context.Context, bus *eventbus.Bus) (func(), error) {
	return bus.Subscribe(ctx, eventbus.TopicSettingsUpdated, func(ctx context.Context, payload []byte) error {
		var ev ChangeEvent
		if err := json.Unmarshal(payload, &ev); err != nil {
			return fmt.Errorf("decode settings event: %w", err)
		}
		return c.HandleChange(ctx, ev.Name, ev.Value)
	})
}
