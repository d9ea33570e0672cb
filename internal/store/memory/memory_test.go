package memory

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"carcost/internal/core"
	"carcost/internal/notify"
	"carcost/internal/store"
)

var _ store.Store = (*Store)(nil)

func day(d int) time.Time {
	return time.Date(2024, 3, d, 0, 0, 0, 0, time.UTC)
}

func TestStore_WritesAndLists(t *testing.T) {
	ctx := context.Background()
	hub := notify.NewHub()
	var changed []string
	for _, table := range notify.AllTables {
		hub.Subscribe(table, func(table string) { changed = append(changed, table) })
	}
	s := NewFromFiles(hub, t.TempDir())

	carID, err := s.CreateCar(ctx, core.Car{Name: "Panda", Color: "#ff0000"})
	if err != nil {
		t.Fatalf("CreateCar() error = %v", err)
	}
	types, _ := s.ListFuelTypes(ctx)
	if len(types) != len(DefaultFuelTypes()) {
		t.Fatalf("ListFuelTypes() = %v, want defaults", types)
	}
	petrol, lpg := types[0].ID, types[2].ID

	records := []core.RefuelingRecord{
		{CarID: carID, FuelTypeID: petrol, Date: day(3), Mileage: 1400, Volume: 9},
		{CarID: carID, FuelTypeID: lpg, Date: day(2), Mileage: 1300, Volume: 20},
		{CarID: carID, FuelTypeID: petrol, Date: day(1), Mileage: 1000, Volume: 10},
	}
	for _, r := range records {
		if _, err := s.AddRefueling(ctx, r); err != nil {
			t.Fatalf("AddRefueling() error = %v", err)
		}
	}

	cats, _ := s.ListCategories(ctx, carID)
	if want := []core.FuelCategory{"gas", "petrol"}; !reflect.DeepEqual(cats, want) {
		t.Errorf("ListCategories() = %v, want %v", cats, want)
	}
	got, _ := s.ListRefuelings(ctx, carID, "petrol")
	if len(got) != 2 || got[0].Mileage != 1000 || got[1].Mileage != 1400 {
		t.Errorf("ListRefuelings(petrol) = %+v, want chronological order", got)
	}
	if got[0].Category != "petrol" {
		t.Errorf("category = %q, want petrol", got[0].Category)
	}
	all, _ := s.ListRefuelings(ctx, carID, "")
	if len(all) != 3 {
		t.Errorf("ListRefuelings(all) returned %d records, want 3", len(all))
	}

	want := []string{notify.TableCars, notify.TableRefuelings, notify.TableRefuelings, notify.TableRefuelings}
	if !reflect.DeepEqual(changed, want) {
		t.Errorf("notifications = %v, want %v", changed, want)
	}
}

func TestStore_RejectsInvalidRecords(t *testing.T) {
	ctx := context.Background()
	s := NewFromFiles(nil, t.TempDir())
	carID, _ := s.CreateCar(ctx, core.Car{Name: "Punto"})

	tests := []struct {
		name    string
		add     func() error
		wantErr error
	}{
		{"zero volume", func() error {
			_, err := s.AddRefueling(ctx, core.RefuelingRecord{CarID: carID, FuelTypeID: 1, Date: day(1), Volume: 0})
			return err
		}, core.ErrInvalidVolume},
		{"unknown car", func() error {
			_, err := s.AddRefueling(ctx, core.RefuelingRecord{CarID: 999, FuelTypeID: 1, Date: day(1), Volume: 5})
			return err
		}, core.ErrNotFound},
		{"unknown fuel type", func() error {
			_, err := s.AddRefueling(ctx, core.RefuelingRecord{CarID: carID, FuelTypeID: 999, Date: day(1), Volume: 5})
			return err
		}, core.ErrNotFound},
		{"zero multiplier", func() error {
			_, err := s.AddOtherCost(ctx, core.OtherCostRecord{CarID: carID, Title: "Tax", Date: day(1), Interval: core.Year})
			return err
		}, core.ErrInvalidMultiplier},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.add(); !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestStore_ImportBatchIsAtomic(t *testing.T) {
	ctx := context.Background()
	hub := notify.NewHub()
	var sets [][]string
	hub.Listen(func(tables []string) { sets = append(sets, tables) })

	s := NewFromFiles(hub, t.TempDir())
	carID, _ := s.CreateCar(ctx, core.Car{Name: "Yaris"})
	sets = nil

	good := store.Batch{
		Refuelings: []core.RefuelingRecord{
			{CarID: carID, FuelTypeID: 1, Date: day(1), Mileage: 100, Volume: 30},
			{CarID: carID, FuelTypeID: 1, Date: day(9), Mileage: 600, Volume: 28},
		},
		OtherCosts: []core.OtherCostRecord{
			{CarID: carID, Title: "Insurance", Date: day(1), Price: core.Money{Cents: 45000}, Interval: core.Year, Multiplier: 1},
		},
	}
	n, err := s.ImportBatch(ctx, good)
	if err != nil || n != 3 {
		t.Fatalf("ImportBatch() = %d, %v; want 3, nil", n, err)
	}
	if want := [][]string{{notify.TableOtherCosts, notify.TableRefuelings}}; !reflect.DeepEqual(sets, want) {
		t.Errorf("change sets = %v, want %v", sets, want)
	}

	bad := good
	bad.OtherCosts = []core.OtherCostRecord{{CarID: carID, Title: "", Date: day(2), Interval: core.Once, Multiplier: 1}}
	_, err = s.ImportBatch(ctx, bad)
	var recErr *store.RecordError
	if !errors.As(err, &recErr) || recErr.Index != 0 || !errors.Is(err, core.ErrEmptyTitle) {
		t.Fatalf("ImportBatch() error = %v, want record error for the empty title", err)
	}
	all, _ := s.ListRefuelings(ctx, carID, "")
	if len(all) != 2 {
		t.Errorf("failed import left %d refuelings, want 2", len(all))
	}
}

func TestNewFromFilesSeedsFuelTypes(t *testing.T) {
	dir := t.TempDir()
	content := "# name;category\nE10;petrol\nE10;petrol\nbroken line\n\nB7;diesel\n"
	if err := os.WriteFile(filepath.Join(dir, "seed_fuel_types.txt"), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	s := NewFromFiles(nil, dir)
	types, _ := s.ListFuelTypes(context.Background())
	if len(types) != 2 || types[0].Name != "E10" || types[1].Category != "diesel" {
		t.Fatalf("ListFuelTypes() = %+v", types)
	}
}
