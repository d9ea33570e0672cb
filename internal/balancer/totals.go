package balancer

import (
	"time"

	"carcost/internal/core"
)

// Totals sums a set of balanced segments.
type Totals struct {
	Volume   float64
	Distance int64
	Price    core.Money
	Guessed  bool
	// First and Last span the observed dates: the earliest segment start and the
	// latest segment anchor.
	First time.Time
	Last  time.Time
}

// Sum adds up the segments. Segments without distance or volume are skipped.
func Sum(segments []core.BalancedSegment) Totals {
	var t Totals
	for _, s := range segments {
		if s.TotalDistance <= 0 || !(s.TotalVolume > 0) {
			continue
		}
		t.Volume += s.TotalVolume
		t.Distance += s.TotalDistance
		t.Price = t.Price.Add(s.TotalPrice)
		t.Guessed = t.Guessed || s.Guessed
		if t.First.IsZero() || s.StartDate.Before(t.First) {
			t.First = s.StartDate
		}
		if s.AnchorDate.After(t.Last) {
			t.Last = s.AnchorDate
		}
	}
	return t
}

// Merge combines the totals of two groups.
func (t Totals) Merge(o Totals) Totals {
	out := Totals{
		Volume:   t.Volume + o.Volume,
		Distance: t.Distance + o.Distance,
		Price:    t.Price.Add(o.Price),
		Guessed:  t.Guessed || o.Guessed,
		First:    t.First,
		Last:     t.Last,
	}
	if out.First.IsZero() || (!o.First.IsZero() && o.First.Before(out.First)) {
		out.First = o.First
	}
	if o.Last.After(out.Last) {
		out.Last = o.Last
	}
	return out
}

// Empty reports whether no usable segment contributed to the totals.
func (t Totals) Empty() bool {
	return t.Distance <= 0
}

// VolumePerDistance is the consumption of one segment.
func VolumePerDistance(s core.BalancedSegment) (float64, bool) {
	if s.TotalDistance <= 0 {
		return 0, false
	}
	return s.TotalVolume / float64(s.TotalDistance), true
}

// PricePerDistance is the fuel cost per distance unit of one segment.
func PricePerDistance(s core.BalancedSegment) (float64, bool) {
	if s.TotalDistance <= 0 {
		return 0, false
	}
	return s.TotalPrice.Float() / float64(s.TotalDistance), true
}

// PricePerVolume is the average fuel price of one segment.
func PricePerVolume(s core.BalancedSegment) (float64, bool) {
	if !(s.TotalVolume > 0) {
		return 0, false
	}
	return s.TotalPrice.Float() / s.TotalVolume, true
}
