package core

// MonthlyCost is the amount spent on other costs in one calendar month.
type MonthlyCost struct {
	Year        int
	Month       int // 1-12
	Total       Money
	Occurrences int
}

// MonthlyConsumption aggregates the balanced segments anchored in one calendar month.
type MonthlyConsumption struct {
	Year     int
	Month    int // 1-12
	Category FuelCategory
	Volume   float64
	Distance int64
	Price    Money
	Guessed  bool
}
