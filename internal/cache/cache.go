// Package cache holds the calculation caches and their lifecycle.
//
// Invalidating caches keep one aggregate each and go Dirty when the tables they
// read change. LRUCache keeps keyed query results with a TTL. Manager owns the
// schedules: recurring costs are counted up to "now", so aggregates also go
// stale while no table changes, and expired LRU entries need sweeping.
package cache

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/robfig/cron/v3"
)

// Scheduled is the table name passed to observers when the manager
// invalidates caches on its schedule rather than for a data change.
const Scheduled = "@schedule"

// Invalidator is implemented by caches the manager can mark Dirty.
type Invalidator interface {
	Invalidate(table string)
}

// Cleaner interface for caches that support cleanup
type Cleaner interface {
	CleanExpired() int
}

// Manager handles cache lifecycle and periodic maintenance.
type Manager struct {
	mu           sync.Mutex
	invalidators []Invalidator
	cleaners     []Cleaner
	cron         *cron.Cron
	started      bool
}

// NewManager creates a new cache manager
func NewManager() *Manager {
	return &Manager{cron: cron.New()}
}

// Register adds a cache to be invalidated on schedule.
func (m *Manager) Register(c Invalidator) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.invalidators = append(m.invalidators, c)
}

// RegisterCleaner adds a keyed cache whose expired entries are swept on schedule.
func (m *Manager) RegisterCleaner(c Cleaner) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cleaners = append(m.cleaners, c)
}

// InvalidateAll marks every registered cache Dirty.
func (m *Manager) InvalidateAll() {
	m.mu.Lock()
	invalidators := append([]Invalidator(nil), m.invalidators...)
	m.mu.Unlock()

	for _, c := range invalidators {
		c.Invalidate(Scheduled)
	}
	slog.Debug("Scheduled cache invalidation", "component", "cache", "caches", len(invalidators))
}

// CleanExpired sweeps every registered keyed cache and returns the number of
// removed entries.
func (m *Manager) CleanExpired() int {
	m.mu.Lock()
	cleaners := append([]Cleaner(nil), m.cleaners...)
	m.mu.Unlock()

	total := 0
	for _, c := range cleaners {
		total += c.CleanExpired()
	}
	if total > 0 {
		slog.Debug("Cache cleanup completed", "component", "cache", "removed", total)
	}
	return total
}

// Start schedules invalidation and cleanup with cron specs such as "@daily" or
// "@every 5m". An empty spec disables that job.
func (m *Manager) Start(invalidateSpec, cleanupSpec string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.started {
		return fmt.Errorf("cache manager already started")
	}

	if invalidateSpec != "" {
		if _, err := m.cron.AddFunc(invalidateSpec, m.InvalidateAll); err != nil {
			return fmt.Errorf("invalid invalidation schedule %q: %w", invalidateSpec, err)
		}
	}
	if cleanupSpec != "" {
		if _, err := m.cron.AddFunc(cleanupSpec, func() { m.CleanExpired() }); err != nil {
			return fmt.Errorf("invalid cleanup schedule %q: %w", cleanupSpec, err)
		}
	}
	m.cron.Start()
	m.started = true
	return nil
}

// Stop gracefully stops the scheduler, waiting for running jobs.
func (m *Manager) Stop() {
	m.mu.Lock()
	started := m.started
	m.started = false
	m.mu.Unlock()

	if started {
		<-m.cron.Stop().Done()
	}
}
