package core

import "fmt"

// DataIntegrityError reports stored records that break an invariant the engines rely on,
// such as an odometer reading lower than the one before it.
type DataIntegrityError struct {
	CarID    int64
	Category FuelCategory
	RecordID int64
	Previous int64
	Current  int64
	Err      error
}

func (e *DataIntegrityError) Error() string {
	return fmt.Sprintf("data integrity: car %d (%s) record %d: %v from %d to %d",
		e.CarID, e.Category, e.RecordID, e.Err, e.Previous, e.Current)
}

func (e *DataIntegrityError) Unwrap() error {
	return e.Err
}
