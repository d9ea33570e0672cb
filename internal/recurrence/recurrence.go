// Package recurrence counts how often a recurring cost occurs.
//
// A recurrence is defined by an interval, a multiplier and a definition range
// [rangeStart, rangeEnd]. Occurrences are rangeStart + k*multiplier*unit for
// k = 0, 1, 2, ... while they do not pass rangeEnd. Each occurrence is computed
// from the anchor rangeStart, so a month-end clamp (Jan 31 -> Feb 29) never
// shifts the day of later occurrences. An observation window selects which
// of those occurrences are counted.
package recurrence

import (
	"fmt"
	"time"

	"carcost/internal/core"
)

// Stepper is the strategy for one recurrence interval.
type Stepper interface {
	// Step returns the anchor advanced by n units.
	Step(anchor time.Time, n int) time.Time
	// Floor returns an index k such that the k-th occurrence with the given
	// multiplier is not after t. It is used to skip occurrences before a window.
	Floor(anchor, t time.Time, multiplier int) int
}

// DayStepper advances by calendar days, keeping the wall-clock time across DST changes.
type DayStepper struct{}

func (DayStepper) Step(anchor time.Time, n int) time.Time {
	return anchor.AddDate(0, 0, n)
}

func (DayStepper) Floor(anchor, t time.Time, multiplier int) int {
	days := int(t.Sub(anchor).Hours() / 24)
	return max(0, days/multiplier-1)
}

// MonthStepper advances by Months calendar months, clamping to the last day of
// the target month when the anchor day does not exist there.
type MonthStepper struct {
	Months int
}

func (s MonthStepper) Step(anchor time.Time, n int) time.Time {
	return AddMonths(anchor, n*s.Months)
}

func (s MonthStepper) Floor(anchor, t time.Time, multiplier int) int {
	diff := (t.Year()-anchor.Year())*12 + int(t.Month()) - int(anchor.Month())
	return max(0, diff/(s.Months*multiplier)-1)
}

var steppers = map[core.RecurrenceInterval]Stepper{
	core.Day:     DayStepper{},
	core.Month:   MonthStepper{Months: 1},
	core.Quarter: MonthStepper{Months: 3},
	core.Year:    MonthStepper{Months: 12},
}

// GetStepper returns the stepper for a repeating interval.
// Once has no stepper because it never repeats.
func GetStepper(interval core.RecurrenceInterval) (Stepper, error) {
	s, ok := steppers[interval]
	if !ok {
		return nil, fmt.Errorf("no stepper for recurrence interval %q", interval)
	}
	return s, nil
}

// AddMonths adds n calendar months to t. If the day of month does not exist in
// the target month it is clamped to that month's last day.
func AddMonths(t time.Time, n int) time.Time {
	y, m, d := t.Date()
	total := int(m) - 1 + n
	year := y + floorDiv(total, 12)
	month := time.Month(total-floorDiv(total, 12)*12 + 1)
	if last := daysIn(year, month, t.Location()); d > last {
		d = last
	}
	hh, mm, ss := t.Clock()
	return time.Date(year, month, d, hh, mm, ss, t.Nanosecond(), t.Location())
}

// AddUnits advances t by n units of the interval. Once returns t unchanged.
func AddUnits(t time.Time, interval core.RecurrenceInterval, n int) time.Time {
	s, err := GetStepper(interval)
	if err != nil {
		return t
	}
	return s.Step(t, n)
}

// Occurrences counts the occurrences of the recurrence defined by interval,
// multiplier and [rangeStart, rangeEnd] that fall inside [windowStart, windowEnd].
// Bounds are inclusive. A reversed definition range yields 0.
func Occurrences(interval core.RecurrenceInterval, multiplier int, rangeStart, rangeEnd, windowStart, windowEnd time.Time) int {
	n := 0
	each(interval, multiplier, rangeStart, rangeEnd, windowStart, windowEnd, func(time.Time) { n++ })
	return n
}

// Count counts all occurrences of the recurrence inside its own definition range.
func Count(interval core.RecurrenceInterval, multiplier int, rangeStart, rangeEnd time.Time) int {
	return Occurrences(interval, multiplier, rangeStart, rangeEnd, rangeStart, rangeEnd)
}

// SinceNow counts the occurrences of an open-ended recurrence from start up to now.
func SinceNow(interval core.RecurrenceInterval, multiplier int, start, now time.Time) int {
	return Occurrences(interval, multiplier, start, now, start, now)
}

// SinceNowWindow counts the occurrences of an open-ended recurrence from start up
// to now that fall inside [windowStart, windowEnd].
func SinceNowWindow(interval core.RecurrenceInterval, multiplier int, start, now, windowStart, windowEnd time.Time) int {
	return Occurrences(interval, multiplier, start, now, windowStart, windowEnd)
}

// Dates returns the occurrence times that Occurrences would count, in order.
func Dates(interval core.RecurrenceInterval, multiplier int, rangeStart, rangeEnd, windowStart, windowEnd time.Time) []time.Time {
	var out []time.Time
	each(interval, multiplier, rangeStart, rangeEnd, windowStart, windowEnd, func(t time.Time) {
		out = append(out, t)
	})
	return out
}

// ForCost counts the occurrences of an other-cost record inside the window.
// Costs without an end date recur until now.
func ForCost(o core.OtherCostRecord, now, windowStart, windowEnd time.Time) int {
	return Occurrences(o.Interval, o.Multiplier, o.Date, costEnd(o, now), windowStart, windowEnd)
}

// CostDates returns the occurrence times of an other-cost record inside the window.
func CostDates(o core.OtherCostRecord, now, windowStart, windowEnd time.Time) []time.Time {
	return Dates(o.Interval, o.Multiplier, o.Date, costEnd(o, now), windowStart, windowEnd)
}

// Next returns the first occurrence at or after t of the recurrence defined
// by interval, multiplier and [rangeStart, rangeEnd]. It reports false when no
// occurrence is left.
func Next(interval core.RecurrenceInterval, multiplier int, rangeStart, rangeEnd, t time.Time) (time.Time, bool) {
	if t.Before(rangeStart) {
		t = rangeStart
	}
	// Two periods always contain the next occurrence, month-end clamping included.
	horizon := AddUnits(t, interval, 2*multiplier)

	var next time.Time
	found := false
	each(interval, multiplier, rangeStart, rangeEnd, t, horizon, func(occ time.Time) {
		if !found {
			next, found = occ, true
		}
	})
	return next, found
}

// NextForCost returns the next due date of an other-cost record at or after t.
func NextForCost(o core.OtherCostRecord, t time.Time) (time.Time, bool) {
	end := AddUnits(maxTime(t, o.Date), o.Interval, 2*o.Multiplier)
	if o.EndDate != nil {
		end = *o.EndDate
	}
	return Next(o.Interval, o.Multiplier, o.Date, end, t)
}

func maxTime(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}

func costEnd(o core.OtherCostRecord, now time.Time) time.Time {
	if o.EndDate != nil {
		return *o.EndDate
	}
	return now
}

func each(interval core.RecurrenceInterval, multiplier int, rangeStart, rangeEnd, windowStart, windowEnd time.Time, fn func(time.Time)) {
	if rangeStart.After(rangeEnd) || multiplier < 1 {
		return
	}
	if interval == core.Once {
		if !rangeStart.Before(windowStart) && !rangeStart.After(windowEnd) {
			fn(rangeStart)
		}
		return
	}
	stepper, err := GetStepper(interval)
	if err != nil {
		return
	}

	// Occurrences grow with k, so nothing after the earlier end can count.
	last := rangeEnd
	if windowEnd.Before(last) {
		last = windowEnd
	}
	if last.Before(rangeStart) || last.Before(windowStart) {
		return
	}

	k := 0
	if windowStart.After(rangeStart) {
		k = stepper.Floor(rangeStart, windowStart, multiplier)
	}
	for ; ; k++ {
		occ := stepper.Step(rangeStart, k*multiplier)
		if occ.After(last) {
			return
		}
		if occ.Before(windowStart) {
			continue
		}
		fn(occ)
	}
}

func daysIn(year int, month time.Month, loc *time.Location) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, loc).Day()
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
