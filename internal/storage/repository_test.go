package storage

import (
	"context"
	"errors"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"carcost/internal/core"
	"carcost/internal/notify"
	"carcost/internal/store"
)

var _ store.Store = (*SQLiteRepository)(nil)

func newTestRepo(t *testing.T, pub store.Publisher) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "data", "carcost.db"), pub)
	if err != nil {
		t.Fatalf("NewSQLiteRepository() error = %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestRunMigrations_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "m.db")
	for i := 0; i < 2; i++ {
		version, err := RunMigrations(path)
		if err != nil {
			t.Fatalf("RunMigrations() run %d error = %v", i+1, err)
		}
		if version != 2 {
			t.Errorf("version = %d, want 2", version)
		}
	}
}

func TestRepository_SeededFuelTypes(t *testing.T) {
	repo := newTestRepo(t, nil)
	types, err := repo.ListFuelTypes(context.Background())
	if err != nil {
		t.Fatalf("ListFuelTypes() error = %v", err)
	}
	if len(types) != 4 || types[0].Name != "Petrol" || types[2].Category != "gas" {
		t.Errorf("ListFuelTypes() = %+v", types)
	}
}

func TestRepository_RoundTrip(t *testing.T) {
	ctx := context.Background()
	hub := notify.NewHub()
	var changed []string
	for _, table := range notify.AllTables {
		hub.Subscribe(table, func(table string) { changed = append(changed, table) })
	}
	repo := newTestRepo(t, hub)

	suspended := date(2024, 6, 1)
	carID, err := repo.CreateCar(ctx, core.Car{Name: "Panda", Color: "#00ff00", InitialMileage: 900, SuspendedSince: &suspended})
	if err != nil {
		t.Fatalf("CreateCar() error = %v", err)
	}
	car, err := repo.GetCar(ctx, carID)
	if err != nil {
		t.Fatalf("GetCar() error = %v", err)
	}
	if car.Name != "Panda" || car.SuspendedSince == nil || !car.SuspendedSince.Equal(suspended) {
		t.Errorf("GetCar() = %+v", car)
	}

	refuelings := []core.RefuelingRecord{
		{CarID: carID, FuelTypeID: 1, Date: date(2024, 1, 20), Mileage: 1400, Volume: 9, Price: core.Money{Cents: 1800}},
		{CarID: carID, FuelTypeID: 1, Date: date(2024, 1, 1), Mileage: 1000, Volume: 10, Price: core.Money{Cents: 2000}},
		{CarID: carID, FuelTypeID: 1, Date: date(2024, 1, 10), Mileage: 1200, Volume: 8, Price: core.Money{Cents: 1600}, Partial: true, Note: "half tank"},
		{CarID: carID, FuelTypeID: 3, Date: date(2024, 1, 5), Mileage: 1100, Volume: 30, Price: core.Money{Cents: 2100}},
	}
	for _, r := range refuelings {
		if _, err := repo.AddRefueling(ctx, r); err != nil {
			t.Fatalf("AddRefueling() error = %v", err)
		}
	}

	petrol, err := repo.ListRefuelings(ctx, carID, "petrol")
	if err != nil {
		t.Fatalf("ListRefuelings() error = %v", err)
	}
	var mileages []int64
	for _, r := range petrol {
		mileages = append(mileages, r.Mileage)
	}
	if want := []int64{1000, 1200, 1400}; !reflect.DeepEqual(mileages, want) {
		t.Errorf("mileages = %v, want %v", mileages, want)
	}
	if !petrol[1].Partial || petrol[1].Note != "half tank" || petrol[1].Category != "petrol" {
		t.Errorf("partial record = %+v", petrol[1])
	}
	if !petrol[0].Date.Equal(date(2024, 1, 1)) {
		t.Errorf("date = %v, want 2024-01-01", petrol[0].Date)
	}

	cats, _ := repo.ListCategories(ctx, carID)
	if want := []core.FuelCategory{"gas", "petrol"}; !reflect.DeepEqual(cats, want) {
		t.Errorf("ListCategories() = %v, want %v", cats, want)
	}

	end := date(2025, 1, 1)
	odo := int64(1500)
	cost := core.OtherCostRecord{
		CarID: carID, Title: "Insurance", Date: date(2024, 1, 1), Price: core.Money{Cents: -500},
		Mileage: &odo, Interval: core.Month, Multiplier: 2, EndDate: &end,
	}
	if _, err := repo.AddOtherCost(ctx, cost); err != nil {
		t.Fatalf("AddOtherCost() error = %v", err)
	}
	costs, _ := repo.ListOtherCosts(ctx, carID)
	if len(costs) != 1 {
		t.Fatalf("ListOtherCosts() returned %d costs, want 1", len(costs))
	}
	got := costs[0]
	if got.Price.Cents != -500 || got.Interval != core.Month || got.Multiplier != 2 ||
		got.Mileage == nil || *got.Mileage != 1500 || got.EndDate == nil || !got.EndDate.Equal(end) {
		t.Errorf("ListOtherCosts()[0] = %+v", got)
	}

	want := []string{notify.TableCars, notify.TableRefuelings, notify.TableRefuelings, notify.TableRefuelings, notify.TableRefuelings, notify.TableOtherCosts}
	if !reflect.DeepEqual(changed, want) {
		t.Errorf("notifications = %v, want %v", changed, want)
	}
}

func TestRepository_Errors(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t, nil)
	carID, _ := repo.CreateCar(ctx, core.Car{Name: "Clio"})

	if _, err := repo.GetCar(ctx, 404); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("GetCar(404) error = %v, want ErrNotFound", err)
	}
	if _, err := repo.AddRefueling(ctx, core.RefuelingRecord{CarID: carID, FuelTypeID: 99, Date: date(2024, 1, 1), Volume: 1}); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("unknown fuel type error = %v, want ErrNotFound", err)
	}
	if _, err := repo.AddRefueling(ctx, core.RefuelingRecord{CarID: carID, FuelTypeID: 1, Date: date(2024, 1, 1), Volume: -1}); !errors.Is(err, core.ErrInvalidVolume) {
		t.Errorf("negative volume error = %v, want ErrInvalidVolume", err)
	}
	if _, err := repo.CreateCar(ctx, core.Car{Name: " "}); !errors.Is(err, core.ErrEmptyName) {
		t.Errorf("empty name error = %v, want ErrEmptyName", err)
	}
}

func TestRepository_ImportBatch(t *testing.T) {
	ctx := context.Background()
	hub := notify.NewHub()
	var sets [][]string
	hub.Listen(func(tables []string) { sets = append(sets, tables) })
	repo := newTestRepo(t, hub)
	carID, _ := repo.CreateCar(ctx, core.Car{Name: "Golf"})
	sets = nil

	b := store.Batch{
		Refuelings: []core.RefuelingRecord{
			{CarID: carID, FuelTypeID: 2, Date: date(2024, 2, 1), Mileage: 5000, Volume: 40},
			{CarID: carID, FuelTypeID: 2, Date: date(2024, 2, 20), Mileage: 5600, Volume: 35},
		},
		OtherCosts: []core.OtherCostRecord{
			{CarID: carID, Title: "Tax", Date: date(2024, 1, 1), Price: core.Money{Cents: 20000}, Interval: core.Year, Multiplier: 1},
		},
	}
	n, err := repo.ImportBatch(ctx, b)
	if err != nil || n != 3 {
		t.Fatalf("ImportBatch() = %d, %v; want 3, nil", n, err)
	}
	if want := [][]string{{notify.TableOtherCosts, notify.TableRefuelings}}; !reflect.DeepEqual(sets, want) {
		t.Errorf("change sets = %v, want %v", sets, want)
	}

	// The second record points at a missing car, so nothing is written.
	broken := store.Batch{Refuelings: []core.RefuelingRecord{
		{CarID: carID, FuelTypeID: 2, Date: date(2024, 3, 1), Mileage: 6000, Volume: 30},
		{CarID: 777, FuelTypeID: 2, Date: date(2024, 3, 2), Mileage: 6100, Volume: 30},
	}}
	_, err = repo.ImportBatch(ctx, broken)
	var recErr *store.RecordError
	if !errors.As(err, &recErr) || recErr.Index != 1 || !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("ImportBatch() error = %v, want record error for #2", err)
	}
	all, _ := repo.ListRefuelings(ctx, carID, "")
	if len(all) != 2 {
		t.Errorf("rolled back import left %d refuelings, want 2", len(all))
	}
}
