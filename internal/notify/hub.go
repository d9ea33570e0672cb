// Package notify fans table change notifications out to interested parties.
//
// Writers publish the names of the tables they touched. Subscribers register a
// callback per table; listeners receive every local change set and are used to
// forward changes to other processes.
package notify

import (
	"sort"
	"sync"
)

// Table names published by the record store.
const (
	TableCars       = "cars"
	TableFuelTypes  = "fuel_types"
	TableRefuelings = "refuelings"
	TableOtherCosts = "other_costs"
)

// AllTables lists every table that carries records.
var AllTables = []string{TableCars, TableFuelTypes, TableRefuelings, TableOtherCosts}

type subscriber struct {
	id int
	fn func(table string)
}

type listener struct {
	id int
	fn func(tables []string)
}

// Hub routes change notifications. The zero value is not usable; use NewHub.
type Hub struct {
	mu        sync.Mutex
	nextID    int
	subs      map[string][]subscriber
	listeners []listener

	depth   int
	pending map[string]struct{}
}

// NewHub returns an empty hub.
func NewHub() *Hub {
	return &Hub{
		subs:    make(map[string][]subscriber),
		pending: make(map[string]struct{}),
	}
}

// Subscribe calls fn whenever table changes. The returned func removes the subscription.
func (h *Hub) Subscribe(table string, fn func(table string)) (cancel func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.nextID++
	id := h.nextID
	h.subs[table] = append(h.subs[table], subscriber{id: id, fn: fn})

	return func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		list := h.subs[table]
		for i, s := range list {
			if s.id == id {
				h.subs[table] = append(list[:i:i], list[i+1:]...)
				return
			}
		}
	}
}

// Listen calls fn with every coalesced set of locally changed tables.
func (h *Hub) Listen(fn func(tables []string)) (cancel func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.nextID++
	id := h.nextID
	h.listeners = append(h.listeners, listener{id: id, fn: fn})

	return func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		for i, l := range h.listeners {
			if l.id == id {
				h.listeners = append(h.listeners[:i:i], h.listeners[i+1:]...)
				return
			}
		}
	}
}

// Publish announces local changes to tables. Inside a batch the tables are
// recorded and delivered when the outermost batch ends.
func (h *Hub) Publish(tables ...string) {
	h.mu.Lock()
	if h.depth > 0 {
		for _, t := range dedupe(tables) {
			h.pending[t] = struct{}{}
		}
		h.mu.Unlock()
		return
	}
	h.mu.Unlock()

	h.dispatch(dedupe(tables), true)
}

// Deliver hands changes that happened in another process to local subscribers.
// Listeners are not called, so a remote change is never forwarded again.
func (h *Hub) Deliver(tables ...string) {
	h.dispatch(dedupe(tables), false)
}

// Batch runs fn and delivers every table published inside it once, after the
// outermost batch returns. Notifications are delivered even when fn fails,
// since part of the write may already be visible.
func (h *Hub) Batch(fn func() error) error {
	h.mu.Lock()
	h.depth++
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		h.depth--
		if h.depth > 0 {
			h.mu.Unlock()
			return
		}
		tables := make([]string, 0, len(h.pending))
		for t := range h.pending {
			tables = append(tables, t)
		}
		h.pending = make(map[string]struct{})
		h.mu.Unlock()

		sort.Strings(tables)
		h.dispatch(tables, true)
	}()

	return fn()
}

func (h *Hub) dispatch(tables []string, local bool) {
	if len(tables) == 0 {
		return
	}

	// Callbacks run without the lock so they may publish or subscribe themselves.
	h.mu.Lock()
	calls := make([]func(), 0)
	for _, t := range tables {
		for _, s := range h.subs[t] {
			fn, table := s.fn, t
			calls = append(calls, func() { fn(table) })
		}
	}
	var listeners []listener
	if local {
		listeners = append(listeners, h.listeners...)
	}
	h.mu.Unlock()

	for _, call := range calls {
		call()
	}
	for _, l := range listeners {
		l.fn(append([]string(nil), tables...))
	}
}

func dedupe(tables []string) []string {
	seen := make(map[string]struct{}, len(tables))
	out := make([]string, 0, len(tables))
	for _, t := range tables {
		if _, ok := seen[t]; ok || t == "" {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
