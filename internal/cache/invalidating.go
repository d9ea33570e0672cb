package cache

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"sync"
	"sync/atomic"
	"time"
)

// Observer is told when a cache's underlying data changed.
type Observer interface {
	DataChanged(table string)
}

// ObserverFunc adapts a function to Observer. Function values cannot be compared,
// so an ObserverFunc is removed with the func returned by RegisterObserver.
type ObserverFunc func(table string)

func (f ObserverFunc) DataChanged(table string) { f(table) }

// Subscriber is the part of the change hub a cache needs.
type Subscriber interface {
	Subscribe(table string, fn func(table string)) (cancel func())
}

type registered struct {
	id int
	o  Observer
}

// Invalidating holds one aggregate that is rebuilt lazily after the data it was
// computed from changes. It is Dirty until the first successful rebuild and
// becomes Dirty again on every Invalidate.
type Invalidating[T any] struct {
	name    string
	rebuild func(ctx context.Context) (T, error)

	// version counts invalidations; built is the version the value reflects.
	version atomic.Uint64
	built   atomic.Uint64

	mu    sync.Mutex
	value T

	obsMu     sync.Mutex
	nextID    int
	observers []registered
}

// New returns a Dirty cache that computes its value with rebuild.
func New[T any](name string, rebuild func(ctx context.Context) (T, error)) *Invalidating[T] {
	c := &Invalidating[T]{name: name, rebuild: rebuild}
	c.version.Store(1)
	return c
}

// Name identifies the cache in logs.
func (c *Invalidating[T]) Name() string { return c.name }

// Dirty reports whether the next Get will rebuild.
func (c *Invalidating[T]) Dirty() bool {
	return c.built.Load() != c.version.Load()
}

// Get returns the cached value, rebuilding it first when the cache is Dirty.
// Concurrent callers wait for a single rebuild. When the rebuild fails the error
// is returned and the cache stays Dirty.
func (c *Invalidating[T]) Get(ctx context.Context) (T, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	v := c.version.Load()
	if c.built.Load() == v {
		return c.value, nil
	}

	start := time.Now()
	value, err := c.rebuild(ctx)
	if err != nil {
		var zero T
		slog.WarnContext(ctx, "Cache rebuild failed", "component", "cache", "cache", c.name, "error", err)
		return zero, fmt.Errorf("rebuild %s: %w", c.name, err)
	}
	c.value = value
	// An Invalidate during the rebuild bumped version past v, so the cache stays Dirty.
	c.built.Store(v)

	slog.DebugContext(ctx, "Cache rebuilt", "component", "cache", "cache", c.name,
		"duration_ms", time.Since(start).Milliseconds())
	return value, nil
}

// Invalidate marks the cache Dirty and tells every observer that table changed.
// It does not rebuild.
func (c *Invalidating[T]) Invalidate(table string) {
	c.version.Add(1)

	c.obsMu.Lock()
	observers := make([]Observer, len(c.observers))
	for i, r := range c.observers {
		observers[i] = r.o
	}
	c.obsMu.Unlock()

	for _, o := range observers {
		o.DataChanged(table)
	}
}

// RegisterObserver adds o to the observers notified on Invalidate.
func (c *Invalidating[T]) RegisterObserver(o Observer) (unregister func()) {
	c.obsMu.Lock()
	defer c.obsMu.Unlock()

	c.nextID++
	id := c.nextID
	c.observers = append(c.observers, registered{id: id, o: o})

	return func() {
		c.obsMu.Lock()
		defer c.obsMu.Unlock()
		for i, r := range c.observers {
			if r.id == id {
				c.observers = append(c.observers[:i:i], c.observers[i+1:]...)
				return
			}
		}
	}
}

// UnregisterObserver removes the first registration of o. Observers whose
// dynamic type is not comparable are ignored; use the func from RegisterObserver.
func (c *Invalidating[T]) UnregisterObserver(o Observer) {
	if o == nil || !reflect.TypeOf(o).Comparable() {
		return
	}
	c.obsMu.Lock()
	defer c.obsMu.Unlock()
	for i, r := range c.observers {
		if reflect.TypeOf(r.o).Comparable() && r.o == o {
			c.observers = append(c.observers[:i:i], c.observers[i+1:]...)
			return
		}
	}
}

// Watch invalidates the cache whenever one of tables changes on hub.
func (c *Invalidating[T]) Watch(hub Subscriber, tables ...string) (cancel func()) {
	cancels := make([]func(), 0, len(tables))
	for _, t := range tables {
		cancels = append(cancels, hub.Subscribe(t, c.Invalidate))
	}
	return func() {
		for _, cancel := range cancels {
			cancel()
		}
	}
}
