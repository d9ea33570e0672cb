// Package report buckets costs and consumption by calendar month.
package report

import (
	"sort"
	"time"

	"carcost/internal/core"
	"carcost/internal/recurrence"
)

type monthKey struct {
	year  int
	month time.Month
}

// MonthlyCosts expands every other cost into its occurrences between from and
// to and sums them per calendar month. Open-ended costs recur until now.
// Months without occurrences are left out.
func MonthlyCosts(costs []core.OtherCostRecord, now, from, to time.Time) []core.MonthlyCost {
	buckets := map[monthKey]*core.MonthlyCost{}
	for _, o := range costs {
		for _, d := range recurrence.CostDates(o, now, from, to) {
			k := monthKey{d.Year(), d.Month()}
			b, ok := buckets[k]
			if !ok {
				b = &core.MonthlyCost{Year: k.year, Month: int(k.month)}
				buckets[k] = b
			}
			b.Total = b.Total.Add(o.Price)
			b.Occurrences++
		}
	}

	out := make([]core.MonthlyCost, 0, len(buckets))
	for _, b := range buckets {
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Year != out[j].Year {
			return out[i].Year < out[j].Year
		}
		return out[i].Month < out[j].Month
	})
	return out
}

// MonthlyConsumption sums segments by the month of their closing fill and fuel
// category.
func MonthlyConsumption(segments []core.BalancedSegment) []core.MonthlyConsumption {
	type key struct {
		monthKey
		category core.FuelCategory
	}
	buckets := map[key]*core.MonthlyConsumption{}
	for _, s := range segments {
		if s.TotalDistance <= 0 {
			continue
		}
		k := key{monthKey{s.AnchorDate.Year(), s.AnchorDate.Month()}, s.Category}
		b, ok := buckets[k]
		if !ok {
			b = &core.MonthlyConsumption{Year: k.year, Month: int(k.month), Category: s.Category}
			buckets[k] = b
		}
		b.Volume += s.TotalVolume
		b.Distance += s.TotalDistance
		b.Price = b.Price.Add(s.TotalPrice)
		b.Guessed = b.Guessed || s.Guessed
	}

	out := make([]core.MonthlyConsumption, 0, len(buckets))
	for _, b := range buckets {
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Year != b.Year {
			return a.Year < b.Year
		}
		if a.Month != b.Month {
			return a.Month < b.Month
		}
		return a.Category < b.Category
	})
	return out
}

// Total sums a cost report.
func Total(months []core.MonthlyCost) core.Money {
	var total core.Money
	for _, m := range months {
		total = total.Add(m.Total)
	}
	return total
}
