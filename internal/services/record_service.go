// Package services provides business logic and orchestration services.
package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"carcost/internal/core"
	"carcost/internal/log"
	"carcost/internal/store"
)

// RecordService validates records and writes them to the store. The store
// announces every write, which invalidates the dependent caches.
type RecordService struct {
	store  store.Store
	logger *slog.Logger
}

func NewRecordService(s store.Store) *RecordService {
	return &RecordService{
		store:  s,
		logger: slog.Default().With(log.FieldComponent, log.ComponentService),
	}
}

// CreateCar saves a new car.
func (s *RecordService) CreateCar(ctx context.Context, c core.Car) (int64, error) {
	id, err := s.store.CreateCar(ctx, c)
	if err != nil {
		return 0, fmt.Errorf("create car: %w", err)
	}
	s.logger.InfoContext(ctx, "Car created", log.FieldRecordID, id, "name", c.Name)
	return id, nil
}

// CreateFuelType saves a new fuel type.
func (s *RecordService) CreateFuelType(ctx context.Context, f core.FuelType) (int64, error) {
	id, err := s.store.CreateFuelType(ctx, f)
	if err != nil {
		return 0, fmt.Errorf("create fuel type: %w", err)
	}
	s.logger.InfoContext(ctx, "Fuel type created", log.FieldRecordID, id, log.FieldCategory, f.Category)
	return id, nil
}

// AddRefueling saves a refueling after checking that its odometer reading
// fits between the readings around it in the same fuel category.
func (s *RecordService) AddRefueling(ctx context.Context, r core.RefuelingRecord) (int64, error) {
	if err := r.Validate(); err != nil {
		return 0, err
	}
	if err := s.checkMileageOrder(ctx, r); err != nil {
		return 0, err
	}

	id, err := s.store.AddRefueling(ctx, r)
	if err != nil {
		return 0, fmt.Errorf("add refueling: %w", err)
	}
	s.logger.InfoContext(ctx, "Refueling recorded",
		log.FieldRecordID, id,
		log.FieldCarID, r.CarID,
		"mileage", r.Mileage,
		"partial", r.Partial)
	return id, nil
}

// AddOtherCost saves a one-off or recurring cost.
func (s *RecordService) AddOtherCost(ctx context.Context, o core.OtherCostRecord) (int64, error) {
	if err := o.Validate(); err != nil {
		return 0, err
	}
	id, err := s.store.AddOtherCost(ctx, o)
	if err != nil {
		return 0, fmt.Errorf("add other cost: %w", err)
	}
	s.logger.InfoContext(ctx, "Other cost recorded",
		log.FieldRecordID, id,
		log.FieldCarID, o.CarID,
		"interval", o.Interval)
	return id, nil
}

// Import writes a batch of records as one change. Either every record is
// stored or none is.
func (s *RecordService) Import(ctx context.Context, b store.Batch) (int, error) {
	if err := b.Validate(); err != nil {
		return 0, err
	}
	if err := s.checkBatchMileage(ctx, b.Refuelings); err != nil {
		return 0, err
	}
	n, err := s.store.ImportBatch(ctx, b)
	if err != nil {
		s.logger.WarnContext(ctx, "Import rejected", log.FieldRecords, b.Len(), log.FieldError, err)
		return 0, fmt.Errorf("import: %w", err)
	}
	s.logger.InfoContext(ctx, "Records imported",
		log.FieldOperation, log.OpImport,
		log.FieldRecords, n)
	return n, nil
}

// Close closes the underlying store.
func (s *RecordService) Close() error {
	if s.store == nil {
		return nil
	}
	if err := s.store.Close(); err != nil {
		return fmt.Errorf("close record service: %w", err)
	}
	return nil
}

// checkMileageOrder rejects a reading that is lower than an earlier one or
// higher than a later one of the same car and category.
func (s *RecordService) checkMileageOrder(ctx context.Context, r core.RefuelingRecord) error {
	category, err := s.categoryOf(ctx, r.FuelTypeID)
	if err != nil {
		return err
	}
	existing, err := s.store.ListRefuelings(ctx, r.CarID, category)
	if err != nil {
		return fmt.Errorf("list refuelings: %w", err)
	}
	return mileageConflict(r, category, existing)
}

// checkBatchMileage runs the mileage order check for every refueling of a
// batch, against the stored history and the batch records before it.
// Records with an unknown fuel type are left to the store to reject.
func (s *RecordService) checkBatchMileage(ctx context.Context, refuelings []core.RefuelingRecord) error {
	if len(refuelings) == 0 {
		return nil
	}
	types, err := s.store.ListFuelTypes(ctx)
	if err != nil {
		return fmt.Errorf("list fuel types: %w", err)
	}
	categories := make(map[int64]core.FuelCategory, len(types))
	for _, f := range types {
		categories[f.ID] = f.Category
	}

	type group struct {
		carID    int64
		category core.FuelCategory
	}
	history := make(map[group][]core.RefuelingRecord)
	for i, r := range refuelings {
		category, ok := categories[r.FuelTypeID]
		if !ok {
			continue
		}
		g := group{r.CarID, category}
		known, loaded := history[g]
		if !loaded {
			known, err = s.store.ListRefuelings(ctx, r.CarID, category)
			if err != nil {
				return fmt.Errorf("list refuelings: %w", err)
			}
		}
		if err := mileageConflict(r, category, known); err != nil {
			return fmt.Errorf("import refueling #%d: %w", i+1, err)
		}
		history[g] = append(known, r)
	}
	return nil
}

func mileageConflict(r core.RefuelingRecord, category core.FuelCategory, existing []core.RefuelingRecord) error {
	for _, e := range existing {
		before := e.Date.Before(r.Date)
		after := e.Date.After(r.Date)
		if (before && e.Mileage > r.Mileage) || (after && e.Mileage < r.Mileage) {
			return &core.DataIntegrityError{
				CarID:    r.CarID,
				Category: category,
				RecordID: e.ID,
				Previous: e.Mileage,
				Current:  r.Mileage,
				Err:      core.ErrMileageDecrease,
			}
		}
	}
	return nil
}

func (s *RecordService) categoryOf(ctx context.Context, fuelTypeID int64) (core.FuelCategory, error) {
	types, err := s.store.ListFuelTypes(ctx)
	if err != nil {
		return "", fmt.Errorf("list fuel types: %w", err)
	}
	for _, f := range types {
		if f.ID == fuelTypeID {
			return f.Category, nil
		}
	}
	return "", fmt.Errorf("fuel type %d: %w", fuelTypeID, core.ErrNotFound)
}

// IsValidation reports whether err is a rejected input rather than a failure.
func IsValidation(err error) bool {
	for _, target := range []error{
		core.ErrEmptyName, core.ErrEmptyTitle, core.ErrTitleTooLong, core.ErrEmptyCategory,
		core.ErrInvalidDate, core.ErrInvalidMileage, core.ErrInvalidVolume,
		core.ErrInvalidPrice, core.ErrInvalidInterval, core.ErrInvalidMultiplier,
		core.ErrEndBeforeStart, core.ErrInvalidCar,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	var recErr *store.RecordError
	return errors.As(err, &recErr) && !errors.Is(err, core.ErrNotFound)
}
