package services

import (
	"context"
	"fmt"
	"sort"
	"time"

	"carcost/internal/core"
	"carcost/internal/recurrence"
	"carcost/internal/store"
)

// DueCost is the next occurrence of an other cost.
type DueCost struct {
	CarID   int64
	CarName string
	Cost    core.OtherCostRecord
	DueDate time.Time
}

// UpcomingCosts lists the other costs falling due in [now, now+horizon],
// earliest first. Costs of a suspended car are left out.
func UpcomingCosts(ctx context.Context, r store.Reader, now time.Time, horizon time.Duration) ([]DueCost, error) {
	if horizon < 0 {
		return nil, fmt.Errorf("negative horizon %v", horizon)
	}
	cars, err := r.ListCars(ctx)
	if err != nil {
		return nil, fmt.Errorf("list cars: %w", err)
	}

	limit := now.Add(horizon)
	var out []DueCost
	for _, car := range cars {
		if car.Suspended(now) {
			continue
		}
		costs, err := r.ListOtherCosts(ctx, car.ID)
		if err != nil {
			return nil, fmt.Errorf("list other costs of car %d: %w", car.ID, err)
		}
		for _, o := range costs {
			due, ok := recurrence.NextForCost(o, now)
			if !ok || due.After(limit) {
				continue
			}
			out = append(out, DueCost{CarID: car.ID, CarName: car.Name, Cost: o, DueDate: due})
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].DueDate.Equal(out[j].DueDate) {
			return out[i].DueDate.Before(out[j].DueDate)
		}
		return out[i].Cost.ID < out[j].Cost.ID
	})
	return out, nil
}
