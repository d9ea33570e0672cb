package services

import (
	"context"
	"fmt"
	"sort"
	"time"

	"carcost/internal/balancer"
	"carcost/internal/core"
	"carcost/internal/report"
	"carcost/internal/store"
)

// CarSegments balances every fuel category of a car. Segments are ordered by
// category, then anchor date.
func CarSegments(ctx context.Context, r store.Reader, carID int64) ([]core.BalancedSegment, error) {
	if _, err := r.GetCar(ctx, carID); err != nil {
		return nil, err
	}
	records, err := r.ListRefuelings(ctx, carID, "")
	if err != nil {
		return nil, fmt.Errorf("list refuelings: %w", err)
	}
	byCategory, err := balancer.BalanceAll(records)
	if err != nil {
		return nil, err
	}

	categories := make([]core.FuelCategory, 0, len(byCategory))
	for c := range byCategory {
		categories = append(categories, c)
	}
	sort.Slice(categories, func(i, j int) bool { return categories[i] < categories[j] })

	var out []core.BalancedSegment
	for _, c := range categories {
		out = append(out, byCategory[c]...)
	}
	return out, nil
}

// CostReport is the other costs of one car per month over a window.
type CostReport struct {
	CarID  int64
	From   time.Time
	To     time.Time
	Months []core.MonthlyCost
	Total  core.Money
}

// CarCosts reports the other costs of a car per month over [from, to].
// Recurring costs are counted up to now, or up to the suspension date of a
// suspended car.
func CarCosts(ctx context.Context, r store.Reader, carID int64, now, from, to time.Time) (CostReport, error) {
	car, err := r.GetCar(ctx, carID)
	if err != nil {
		return CostReport{}, err
	}
	costs, err := r.ListOtherCosts(ctx, carID)
	if err != nil {
		return CostReport{}, fmt.Errorf("list other costs: %w", err)
	}
	if car.SuspendedSince != nil && car.SuspendedSince.Before(now) {
		now = *car.SuspendedSince
	}

	months := report.MonthlyCosts(costs, now, from, to)
	return CostReport{
		CarID:  carID,
		From:   from,
		To:     to,
		Months: months,
		Total:  report.Total(months),
	}, nil
}
