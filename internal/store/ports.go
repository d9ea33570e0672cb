// Package store declares the ports between the engines and the record store.
package store

import (
	"context"

	"carcost/internal/core"
)

// Ports for the record store.
type (
	CarLister interface {
		ListCars(ctx context.Context) ([]core.Car, error)
	}

	// CategoryLister returns the fuel categories a car has refuelings in.
	CategoryLister interface {
		ListCategories(ctx context.Context, carID int64) ([]core.FuelCategory, error)
	}

	// RefuelingLister returns refuelings in chronological order (date, then
	// mileage, then id). An empty category selects every category.
	RefuelingLister interface {
		ListRefuelings(ctx context.Context, carID int64, category core.FuelCategory) ([]core.RefuelingRecord, error)
	}

	OtherCostLister interface {
		ListOtherCosts(ctx context.Context, carID int64) ([]core.OtherCostRecord, error)
	}

	// Reader is everything the calculators and the API read.
	Reader interface {
		CarLister
		CategoryLister
		RefuelingLister
		OtherCostLister
		GetCar(ctx context.Context, id int64) (core.Car, error)
		ListFuelTypes(ctx context.Context) ([]core.FuelType, error)
	}

	// Writer persists validated records and announces the changed tables.
	Writer interface {
		CreateCar(ctx context.Context, c core.Car) (int64, error)
		CreateFuelType(ctx context.Context, f core.FuelType) (int64, error)
		AddRefueling(ctx context.Context, r core.RefuelingRecord) (int64, error)
		AddOtherCost(ctx context.Context, o core.OtherCostRecord) (int64, error)
		// ImportBatch writes every record or none and announces the change once.
		ImportBatch(ctx context.Context, b Batch) (int, error)
	}

	Store interface {
		Reader
		Writer
		Close() error
	}

	// Publisher is the part of the change hub a store announces writes to.
	Publisher interface {
		Publish(tables ...string)
		Batch(fn func() error) error
	}
)

// Batch is a set of records imported together.
type Batch struct {
	Refuelings []core.RefuelingRecord
	OtherCosts []core.OtherCostRecord
}

// Len returns the number of records in the batch.
func (b Batch) Len() int {
	return len(b.Refuelings) + len(b.OtherCosts)
}

// Validate checks every record of the batch.
func (b Batch) Validate() error {
	for i, r := range b.Refuelings {
		if err := r.Validate(); err != nil {
			return &RecordError{Kind: "refueling", Index: i, Err: err}
		}
	}
	for i, o := range b.OtherCosts {
		if err := o.Validate(); err != nil {
			return &RecordError{Kind: "other cost", Index: i, Err: err}
		}
	}
	return nil
}

// NopPublisher discards change announcements.
type NopPublisher struct{}

func (NopPublisher) Publish(...string) {}
func (NopPublisher) Batch(fn func() error) error { return fn() }
