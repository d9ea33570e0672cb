package core

import (
	"errors"
	"math"
	"strings"
	"time"
)

const (
	Once    RecurrenceInterval = "once"
	Day     RecurrenceInterval = "day"
	Month   RecurrenceInterval = "month"
	Quarter RecurrenceInterval = "quarter"
	Year    RecurrenceInterval = "year"
)

type (
	RecurrenceInterval string

	// FuelCategory groups fuel types whose consumption is comparable (e.g. "petrol").
	FuelCategory string

	Money struct {
		Cents int64
	}

	Car struct {
		ID             int64
		Name           string
		Color          string
		InitialMileage int64
		SuspendedSince *time.Time
	}

	FuelType struct {
		ID       int64
		Name     string
		Category FuelCategory
	}

	RefuelingRecord struct {
		ID         int64
		CarID      int64
		FuelTypeID int64
		Category   FuelCategory
		Date       time.Time
		Mileage    int64
		Volume     float64
		Price      Money
		Partial    bool
		Note       string
	}

	OtherCostRecord struct {
		ID         int64
		CarID      int64
		Title      string
		Date       time.Time
		Price      Money // negative is income
		Mileage    *int64
		Interval   RecurrenceInterval
		Multiplier int
		EndDate    *time.Time // nil while still recurring
		Note       string
	}

	// BalancedSegment is the fuel and distance between two full fills.
	BalancedSegment struct {
		CarID         int64
		Category      FuelCategory
		StartMileage  int64
		EndMileage    int64
		TotalVolume   float64
		TotalDistance int64
		TotalPrice    Money
		StartDate     time.Time
		AnchorDate    time.Time
		Guessed       bool
	}

	CalculationItem struct {
		Label   string
		Result  float64
		Color   string
		Guessed bool
	}
)

var (
	ErrEmptyName         = errors.New("empty name")
	ErrEmptyTitle        = errors.New("empty title")
	ErrTitleTooLong      = errors.New("title too long (max 200 characters)")
	ErrEmptyCategory     = errors.New("empty fuel category")
	ErrInvalidDate       = errors.New("invalid date")
	ErrInvalidMileage    = errors.New("invalid mileage")
	ErrInvalidVolume     = errors.New("volume must be greater than zero")
	ErrInvalidPrice      = errors.New("price must not be negative")
	ErrInvalidInterval   = errors.New("invalid recurrence interval")
	ErrInvalidMultiplier = errors.New("recurrence multiplier must be at least 1")
	ErrEndBeforeStart    = errors.New("end date must not be before date")
	ErrInvalidCar        = errors.New("invalid car id")
	ErrMileageDecrease   = errors.New("mileage decreased")
	ErrNotFound          = errors.New("not found")
	ErrUnknownMetric     = errors.New("unknown metric")
)

// Valid reports whether the interval is one of the known recurrence intervals.
func (i RecurrenceInterval) Valid() bool {
	switch i {
	case Once, Day, Month, Quarter, Year:
		return true
	default:
		return false
	}
}

func (c Car) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return ErrEmptyName
	}
	if c.InitialMileage < 0 {
		return ErrInvalidMileage
	}
	return nil
}

func (f FuelType) Validate() error {
	if strings.TrimSpace(f.Name) == "" {
		return ErrEmptyName
	}
	if strings.TrimSpace(string(f.Category)) == "" {
		return ErrEmptyCategory
	}
	return nil
}

func (r RefuelingRecord) Validate() error {
	if r.CarID <= 0 {
		return ErrInvalidCar
	}
	if r.Date.IsZero() {
		return ErrInvalidDate
	}
	if r.Mileage < 0 {
		return ErrInvalidMileage
	}
	if !(r.Volume > 0) || math.IsInf(r.Volume, 0) {
		return ErrInvalidVolume
	}
	if r.Price.Cents < 0 {
		return ErrInvalidPrice
	}
	return nil
}

func (o OtherCostRecord) Validate() error {
	if o.CarID <= 0 {
		return ErrInvalidCar
	}
	if len(strings.TrimSpace(o.Title)) == 0 {
		return ErrEmptyTitle
	}
	if len(o.Title) > 200 {
		return ErrTitleTooLong
	}
	if o.Date.IsZero() {
		return ErrInvalidDate
	}
	if !o.Interval.Valid() {
		return ErrInvalidInterval
	}
	if o.Multiplier < 1 {
		return ErrInvalidMultiplier
	}
	if o.EndDate != nil && o.EndDate.Before(o.Date) {
		return ErrEndBeforeStart
	}
	if o.Mileage != nil && *o.Mileage < 0 {
		return ErrInvalidMileage
	}
	return nil
}

// Recurring reports whether the cost repeats after its first date.
func (o OtherCostRecord) Recurring() bool {
	return o.Interval != Once
}

// Suspended reports whether the car was suspended at or before t.
func (c Car) Suspended(t time.Time) bool {
	return c.SuspendedSince != nil && !c.SuspendedSince.After(t)
}
