package calc

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"

	"carcost/internal/cache"
	"carcost/internal/core"
	"carcost/internal/notify"
	"carcost/internal/store"
)

// group is one labelled line of a metric's result.
type group struct {
	Label    string
	Color    string
	Volume   float64
	Distance int64
	Price    core.Money
	Guessed  bool
}

// Option configures a calculator.
type Option func(*options)

type options struct {
	concurrency int
	now         func() time.Time
}

// WithConcurrency bounds how many cars are loaded at once during a rebuild.
func WithConcurrency(n int) Option {
	return func(o *options) { o.concurrency = n }
}

// WithClock sets the "now" used for open-ended recurring costs.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// Calculator computes one metric for every group.
type Calculator struct {
	def    definition
	loader loader
	cache  *cache.Invalidating[[]group]
}

// New returns the calculator for metric reading from r.
func New(metric Metric, r store.Reader, opts ...Option) (*Calculator, error) {
	def, ok := definitions[metric]
	if !ok {
		return nil, fmt.Errorf("%w: %q", core.ErrUnknownMetric, metric)
	}
	o := options{concurrency: 4, now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}

	c := &Calculator{
		def:    def,
		loader: loader{reader: r, concurrency: o.concurrency, now: o.now},
	}
	c.cache = cache.New(string(metric), c.rebuild)
	return c, nil
}

func (c *Calculator) Metric() Metric { return c.def.metric }

// Tables lists the tables whose changes make the calculator stale.
func (c *Calculator) Tables() []string {
	tables := []string{notify.TableCars, notify.TableFuelTypes, notify.TableRefuelings}
	if c.def.needsCosts() {
		tables = append(tables, notify.TableOtherCosts)
	}
	return tables
}

// Watch invalidates the calculator when one of its tables changes on hub.
func (c *Calculator) Watch(hub cache.Subscriber) (cancel func()) {
	return c.cache.Watch(hub, c.Tables()...)
}

// Invalidate marks the cached groups stale.
func (c *Calculator) Invalidate(table string) {
	c.cache.Invalidate(table)
}

// Dirty reports whether the next Calculate rebuilds.
func (c *Calculator) Dirty() bool {
	return c.cache.Dirty()
}

func (c *Calculator) RegisterObserver(o cache.Observer) (unregister func()) {
	return c.cache.RegisterObserver(o)
}

func (c *Calculator) UnregisterObserver(o cache.Observer) {
	c.cache.UnregisterObserver(o)
}

// Calculate converts input into the result unit for every group with usable
// data, sorted by label. Groups whose result is not finite are left out.
func (c *Calculator) Calculate(ctx context.Context, input float64) ([]core.CalculationItem, error) {
	groups, err := c.cache.Get(ctx)
	if err != nil {
		return nil, err
	}

	items := make([]core.CalculationItem, 0, len(groups))
	for _, g := range groups {
		num, den := c.def.ratio(g)
		if den == 0 {
			continue
		}
		r := num / den
		var result float64
		if c.def.multiply {
			result = input * r
		} else {
			result = input / r
		}
		if math.IsNaN(result) || math.IsInf(result, 0) {
			continue
		}
		items = append(items, core.CalculationItem{
			Label:   g.Label,
			Result:  result,
			Color:   g.Color,
			Guessed: g.Guessed,
		})
	}

	slog.DebugContext(ctx, "Metric calculated",
		"component", "calc",
		"metric", c.def.metric,
		"input", input,
		"items", len(items))
	return items, nil
}

func (c *Calculator) rebuild(ctx context.Context) ([]group, error) {
	snapshots, err := c.loader.load(ctx, c.def.needsCosts())
	if err != nil {
		return nil, err
	}

	var groups []group
	for _, s := range snapshots {
		if c.def.perCategory {
			for _, ct := range s.Categories {
				groups = append(groups, group{
					Label:    fmt.Sprintf("%s (%s)", s.Car.Name, ct.Category),
					Color:    s.Car.Color,
					Volume:   ct.Totals.Volume,
					Distance: ct.Totals.Distance,
					Price:    ct.Totals.Price,
					Guessed:  ct.Totals.Guessed,
				})
			}
			continue
		}
		if s.Fuel.Empty() {
			continue
		}
		groups = append(groups, group{
			Label:    s.Car.Name,
			Color:    s.Car.Color,
			Volume:   s.Fuel.Volume,
			Distance: s.Fuel.Distance,
			Price:    s.Fuel.Price.Add(s.OtherCosts),
			Guessed:  s.Fuel.Guessed,
		})
	}

	sort.SliceStable(groups, func(i, j int) bool { return groups[i].Label < groups[j].Label })
	return groups, nil
}
