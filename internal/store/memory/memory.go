// Package memory is an in-process record store used by tests and the memory backend.
package memory

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"carcost/internal/core"
	"carcost/internal/notify"
	"carcost/internal/store"
)

type Store struct {
	mu         sync.Mutex
	pub        store.Publisher
	nextID     int64
	cars       []core.Car
	fuelTypes  []core.FuelType
	refuelings []core.RefuelingRecord
	otherCosts []core.OtherCostRecord
}

// New returns an empty store announcing writes to pub. A nil pub discards them.
func New(pub store.Publisher) *Store {
	if pub == nil {
		pub = store.NopPublisher{}
	}
	return &Store{pub: pub}
}

// NewFromFiles seeds fuel types from base/seed_fuel_types.txt, one
// "name;category" per line. Defaults are used when the file is missing.
func NewFromFiles(pub store.Publisher, base string) *Store {
	s := New(pub)
	types := readFuelTypes(filepath.Join(base, "seed_fuel_types.txt"))
	if len(types) == 0 {
		types = DefaultFuelTypes()
	}
	for _, f := range types {
		s.fuelTypes = append(s.fuelTypes, s.withID(f))
	}
	return s
}

// DefaultFuelTypes are the fuel types a fresh store starts with.
func DefaultFuelTypes() []core.FuelType {
	return []core.FuelType{
		{Name: "Petrol", Category: "petrol"},
		{Name: "Diesel", Category: "diesel"},
		{Name: "LPG", Category: "gas"},
		{Name: "CNG", Category: "gas"},
	}
}

func (s *Store) withID(f core.FuelType) core.FuelType {
	s.nextID++
	f.ID = s.nextID
	return f
}

func (s *Store) Close() error { return nil }

func (s *Store) CreateCar(_ context.Context, c core.Car) (int64, error) {
	if err := c.Validate(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	s.nextID++
	c.ID = s.nextID
	s.cars = append(s.cars, c)
	s.mu.Unlock()

	s.pub.Publish(notify.TableCars)
	return c.ID, nil
}

func (s *Store) CreateFuelType(_ context.Context, f core.FuelType) (int64, error) {
	if err := f.Validate(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	f = s.withID(f)
	s.fuelTypes = append(s.fuelTypes, f)
	s.mu.Unlock()

	s.pub.Publish(notify.TableFuelTypes)
	return f.ID, nil
}

func (s *Store) AddRefueling(_ context.Context, r core.RefuelingRecord) (int64, error) {
	s.mu.Lock()
	r, err := s.prepareRefueling(r)
	if err != nil {
		s.mu.Unlock()
		return 0, err
	}
	s.refuelings = append(s.refuelings, r)
	s.mu.Unlock()

	s.pub.Publish(notify.TableRefuelings)
	return r.ID, nil
}

func (s *Store) AddOtherCost(_ context.Context, o core.OtherCostRecord) (int64, error) {
	s.mu.Lock()
	o, err := s.prepareOtherCost(o)
	if err != nil {
		s.mu.Unlock()
		return 0, err
	}
	s.otherCosts = append(s.otherCosts, o)
	s.mu.Unlock()

	s.pub.Publish(notify.TableOtherCosts)
	return o.ID, nil
}

// ImportBatch adds every record of b or, when one is invalid, none of them.
func (s *Store) ImportBatch(_ context.Context, b store.Batch) (int, error) {
	if b.Len() == 0 {
		return 0, nil
	}
	err := s.pub.Batch(func() error {
		s.mu.Lock()
		defer s.mu.Unlock()

		nextID := s.nextID
		refuelings := make([]core.RefuelingRecord, 0, len(b.Refuelings))
		for i, r := range b.Refuelings {
			r, err := s.prepareRefueling(r)
			if err != nil {
				s.nextID = nextID
				return &store.RecordError{Kind: "refueling", Index: i, Err: err}
			}
			refuelings = append(refuelings, r)
		}
		costs := make([]core.OtherCostRecord, 0, len(b.OtherCosts))
		for i, o := range b.OtherCosts {
			o, err := s.prepareOtherCost(o)
			if err != nil {
				s.nextID = nextID
				return &store.RecordError{Kind: "other cost", Index: i, Err: err}
			}
			costs = append(costs, o)
		}

		s.refuelings = append(s.refuelings, refuelings...)
		s.otherCosts = append(s.otherCosts, costs...)
		if len(refuelings) > 0 {
			s.pub.Publish(notify.TableRefuelings)
		}
		if len(costs) > 0 {
			s.pub.Publish(notify.TableOtherCosts)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return b.Len(), nil
}

// prepareRefueling validates r, resolves its category and assigns an id.
// Callers hold s.mu.
func (s *Store) prepareRefueling(r core.RefuelingRecord) (core.RefuelingRecord, error) {
	if err := r.Validate(); err != nil {
		return r, err
	}
	if _, ok := s.car(r.CarID); !ok {
		return r, fmt.Errorf("car %d: %w", r.CarID, core.ErrNotFound)
	}
	ft, ok := s.fuelType(r.FuelTypeID)
	if !ok {
		return r, fmt.Errorf("fuel type %d: %w", r.FuelTypeID, core.ErrNotFound)
	}
	r.Category = ft.Category
	s.nextID++
	r.ID = s.nextID
	return r, nil
}

func (s *Store) prepareOtherCost(o core.OtherCostRecord) (core.OtherCostRecord, error) {
	if err := o.Validate(); err != nil {
		return o, err
	}
	if _, ok := s.car(o.CarID); !ok {
		return o, fmt.Errorf("car %d: %w", o.CarID, core.ErrNotFound)
	}
	s.nextID++
	o.ID = s.nextID
	return o, nil
}

func (s *Store) car(id int64) (core.Car, bool) {
	for _, c := range s.cars {
		if c.ID == id {
			return c, true
		}
	}
	return core.Car{}, false
}

func (s *Store) fuelType(id int64) (core.FuelType, bool) {
	for _, f := range s.fuelTypes {
		if f.ID == id {
			return f, true
		}
	}
	return core.FuelType{}, false
}

func (s *Store) ListCars(_ context.Context) ([]core.Car, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := append([]core.Car(nil), s.cars...)
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) GetCar(_ context.Context, id int64) (core.Car, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.car(id)
	if !ok {
		return core.Car{}, fmt.Errorf("car %d: %w", id, core.ErrNotFound)
	}
	return c, nil
}

func (s *Store) ListFuelTypes(_ context.Context) ([]core.FuelType, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.FuelType(nil), s.fuelTypes...), nil
}

func (s *Store) ListCategories(_ context.Context, carID int64) ([]core.FuelCategory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	seen := map[core.FuelCategory]struct{}{}
	var out []core.FuelCategory
	for _, r := range s.refuelings {
		if r.CarID != carID {
			continue
		}
		if _, ok := seen[r.Category]; ok {
			continue
		}
		seen[r.Category] = struct{}{}
		out = append(out, r.Category)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

func (s *Store) ListRefuelings(_ context.Context, carID int64, category core.FuelCategory) ([]core.RefuelingRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.RefuelingRecord
	for _, r := range s.refuelings {
		if r.CarID == carID && (category == "" || r.Category == category) {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if !a.Date.Equal(b.Date) {
			return a.Date.Before(b.Date)
		}
		if a.Mileage != b.Mileage {
			return a.Mileage < b.Mileage
		}
		return a.ID < b.ID
	})
	return out, nil
}

func (s *Store) ListOtherCosts(_ context.Context, carID int64) ([]core.OtherCostRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.OtherCostRecord
	for _, o := range s.otherCosts {
		if o.CarID == carID {
			out = append(out, o)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

func readFuelTypes(path string) []core.FuelType {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()

	seen := map[string]struct{}{}
	var out []core.FuelType
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		name, category, ok := strings.Cut(line, ";")
		if !ok {
			continue
		}
		ft := core.FuelType{Name: strings.TrimSpace(name), Category: core.FuelCategory(strings.TrimSpace(category))}
		if ft.Validate() != nil {
			continue
		}
		if _, dup := seen[ft.Name]; dup {
			continue
		}
		seen[ft.Name] = struct{}{}
		out = append(out, ft)
	}
	return out
}
