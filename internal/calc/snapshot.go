package calc

import (
	"context"
	"fmt"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"carcost/internal/balancer"
	"carcost/internal/core"
	"carcost/internal/recurrence"
	"carcost/internal/store"
)

// categoryTotals is the balanced fuel data of one (car, category).
type categoryTotals struct {
	Category core.FuelCategory
	Totals   balancer.Totals
}

// carSnapshot is everything the calculators need about one car.
type carSnapshot struct {
	Car        core.Car
	Categories []categoryTotals
	// Fuel merges every category of the car.
	Fuel balancer.Totals
	// OtherCosts is the sum of other-cost occurrences inside the fuel span.
	OtherCosts core.Money
}

type loader struct {
	reader      store.Reader
	concurrency int
	now         func() time.Time
}

// load reads and balances the data of every car. Cars are processed
// concurrently; the first error cancels the rest.
func (l loader) load(ctx context.Context, withCosts bool) ([]carSnapshot, error) {
	cars, err := l.reader.ListCars(ctx)
	if err != nil {
		return nil, fmt.Errorf("list cars: %w", err)
	}

	out := make([]carSnapshot, len(cars))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, l.concurrency))
	for i, car := range cars {
		i, car := i, car
		g.Go(func() error {
			snap, err := l.loadCar(gctx, car, withCosts)
			if err != nil {
				return err
			}
			out[i] = snap
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (l loader) loadCar(ctx context.Context, car core.Car, withCosts bool) (carSnapshot, error) {
	snap := carSnapshot{Car: car}

	categories, err := l.reader.ListCategories(ctx, car.ID)
	if err != nil {
		return snap, fmt.Errorf("car %d: %w", car.ID, err)
	}
	sort.Slice(categories, func(i, j int) bool { return categories[i] < categories[j] })

	for _, category := range categories {
		records, err := l.reader.ListRefuelings(ctx, car.ID, category)
		if err != nil {
			return snap, fmt.Errorf("car %d: %w", car.ID, err)
		}
		segments, err := balancer.Balance(records)
		if err != nil {
			return snap, err
		}
		totals := balancer.Sum(segments)
		if totals.Empty() {
			continue
		}
		snap.Categories = append(snap.Categories, categoryTotals{Category: category, Totals: totals})
		snap.Fuel = snap.Fuel.Merge(totals)
	}

	if !withCosts || snap.Fuel.Empty() {
		return snap, nil
	}

	costs, err := l.reader.ListOtherCosts(ctx, car.ID)
	if err != nil {
		return snap, fmt.Errorf("car %d: %w", car.ID, err)
	}
	snap.OtherCosts = otherCostsInSpan(costs, l.clock(car), snap.Fuel.First, snap.Fuel.Last)
	return snap, nil
}

// clock is "now" for a car: a suspended car stops accruing recurring costs.
func (l loader) clock(car core.Car) time.Time {
	now := l.now()
	if car.Suspended(now) {
		return *car.SuspendedSince
	}
	return now
}

// otherCostsInSpan sums every occurrence of the costs between spanStart and spanEnd.
func otherCostsInSpan(costs []core.OtherCostRecord, now, spanStart, spanEnd time.Time) core.Money {
	var total core.Money
	for _, o := range costs {
		n := recurrence.ForCost(o, now, spanStart, spanEnd)
		total = total.Add(o.Price.Times(n))
	}
	return total
}
