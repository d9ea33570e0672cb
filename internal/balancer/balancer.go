// Package balancer rebuilds full-to-full fuel cycles from a refueling history.
//
// Only the distance driven between two full fills tells how much fuel the car
// used, so partial fills are folded into the cycle that the next full fill
// closes. When the history starts with a partial fill the first record is
// taken as an assumed baseline and the segment it opens is marked guessed.
package balancer

import (
	"time"

	"carcost/internal/core"
)

// Balance scans the records of one (car, category) in chronological order and
// returns one segment per closed full-to-full cycle. Trailing partial fills after
// the last full fill are not emitted. A mileage decrease is reported as a
// *core.DataIntegrityError.
func Balance(records []core.RefuelingRecord) ([]core.BalancedSegment, error) {
	var (
		segments []core.BalancedSegment

		haveBaseline bool
		guessed      bool
		baseMileage  int64
		baseDate     time.Time
		lastMileage  int64

		pendingVolume   float64
		pendingDistance int64
		pendingPrice    core.Money
	)

	for i, r := range records {
		if i > 0 && r.Mileage < records[i-1].Mileage {
			return nil, &core.DataIntegrityError{
				CarID:    r.CarID,
				Category: r.Category,
				RecordID: r.ID,
				Previous: records[i-1].Mileage,
				Current:  r.Mileage,
				Err:      core.ErrMileageDecrease,
			}
		}

		if !haveBaseline {
			haveBaseline = true
			guessed = r.Partial
			baseMileage, baseDate, lastMileage = r.Mileage, r.Date, r.Mileage
			continue
		}

		pendingDistance += r.Mileage - lastMileage
		pendingVolume += r.Volume
		pendingPrice = pendingPrice.Add(r.Price)
		lastMileage = r.Mileage

		if r.Partial {
			continue
		}

		if pendingDistance > 0 {
			segments = append(segments, core.BalancedSegment{
				CarID:         r.CarID,
				Category:      r.Category,
				StartMileage:  baseMileage,
				EndMileage:    r.Mileage,
				TotalVolume:   pendingVolume,
				TotalDistance: pendingDistance,
				TotalPrice:    pendingPrice,
				StartDate:     baseDate,
				AnchorDate:    r.Date,
				Guessed:       guessed,
			})
		}

		// This full fill is a confirmed baseline for the next cycle.
		guessed = false
		baseMileage, baseDate = r.Mileage, r.Date
		pendingVolume, pendingDistance, pendingPrice = 0, 0, core.Money{}
	}

	return segments, nil
}

// BalanceAll splits a car's refuelings by fuel category, keeping their order,
// and balances each category on its own.
func BalanceAll(records []core.RefuelingRecord) (map[core.FuelCategory][]core.BalancedSegment, error) {
	groups := make(map[core.FuelCategory][]core.RefuelingRecord)
	for _, r := range records {
		groups[r.Category] = append(groups[r.Category], r)
	}

	out := make(map[core.FuelCategory][]core.BalancedSegment, len(groups))
	for category, rs := range groups {
		segments, err := Balance(rs)
		if err != nil {
			return nil, err
		}
		out[category] = segments
	}
	return out, nil
}
