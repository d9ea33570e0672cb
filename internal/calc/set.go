package calc

import (
	"fmt"

	"carcost/internal/cache"
	"carcost/internal/core"
	"carcost/internal/store"
)

// Set holds one calculator per metric over a shared store.
type Set struct {
	byName  map[Metric]*Calculator
	cancels []func()
}

// NewSet builds every calculator and, when hub is not nil, subscribes them to
// the tables they depend on.
func NewSet(r store.Reader, hub cache.Subscriber, opts ...Option) *Set {
	s := &Set{byName: make(map[Metric]*Calculator, len(Metrics))}
	for _, m := range Metrics {
		c, err := New(m, r, opts...)
		if err != nil {
			// Metrics and definitions are declared together.
			panic(err)
		}
		s.byName[m] = c
		if hub != nil {
			s.cancels = append(s.cancels, c.Watch(hub))
		}
	}
	return s
}

// ByName returns the calculator for a metric name.
func (s *Set) ByName(name string) (*Calculator, error) {
	c, ok := s.byName[Metric(name)]
	if !ok {
		return nil, fmt.Errorf("%w: %q", core.ErrUnknownMetric, name)
	}
	return c, nil
}

// Names lists the metrics in display order.
func (s *Set) Names() []Metric {
	return append([]Metric(nil), Metrics...)
}

// All returns the calculators in display order.
func (s *Set) All() []*Calculator {
	out := make([]*Calculator, 0, len(Metrics))
	for _, m := range Metrics {
		out = append(out, s.byName[m])
	}
	return out
}

// Register hands every calculator to the cache manager for scheduled invalidation.
func (s *Set) Register(m *cache.Manager) {
	for _, c := range s.All() {
		m.Register(c)
	}
}

// Close stops listening for changes.
func (s *Set) Close() {
	for _, cancel := range s.cancels {
		cancel()
	}
	s.cancels = nil
}
