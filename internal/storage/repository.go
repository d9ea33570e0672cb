package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"carcost/internal/core"
	"carcost/internal/notify"
	"carcost/internal/store"

	_ "modernc.org/sqlite"
)

// SQLiteRepository is the record store backed by a SQLite file. Every write
// announces the changed tables on the publisher after it commits.
type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
	pub     store.Publisher
}

func NewSQLiteRepository(dbPath string, pub store.Publisher) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dsn(dbPath))
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	version, err := RunMigrations(dbPath)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	slog.Info("SQLite schema ready", "component", "storage", "path", dbPath, "version", version)

	if pub == nil {
		pub = store.NopPublisher{}
	}
	return &SQLiteRepository{
		db:      db,
		queries: New(db),
		pub:     pub,
	}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *SQLiteRepository) CreateCar(ctx context.Context, c core.Car) (int64, error) {
	if err := c.Validate(); err != nil {
		return 0, err
	}
	id, err := r.queries.InsertCar(ctx, c)
	if err != nil {
		return 0, fmt.Errorf("create car: %w", err)
	}
	slog.InfoContext(ctx, "Car saved to SQLite", "component", "storage", "id", id, "name", c.Name)

	r.pub.Publish(notify.TableCars)
	return id, nil
}

func (r *SQLiteRepository) CreateFuelType(ctx context.Context, f core.FuelType) (int64, error) {
	if err := f.Validate(); err != nil {
		return 0, err
	}
	id, err := r.queries.InsertFuelType(ctx, f)
	if err != nil {
		return 0, fmt.Errorf("create fuel type: %w", err)
	}
	r.pub.Publish(notify.TableFuelTypes)
	return id, nil
}

func (r *SQLiteRepository) AddRefueling(ctx context.Context, rec core.RefuelingRecord) (int64, error) {
	id, err := r.addRefueling(ctx, r.queries, rec)
	if err != nil {
		return 0, err
	}
	slog.InfoContext(ctx, "Refueling saved to SQLite",
		"component", "storage",
		"id", id,
		"car_id", rec.CarID,
		"mileage", rec.Mileage,
		"volume", rec.Volume,
		"partial", rec.Partial)

	r.pub.Publish(notify.TableRefuelings)
	return id, nil
}

func (r *SQLiteRepository) AddOtherCost(ctx context.Context, o core.OtherCostRecord) (int64, error) {
	id, err := r.addOtherCost(ctx, r.queries, o)
	if err != nil {
		return 0, err
	}
	slog.InfoContext(ctx, "Other cost saved to SQLite",
		"component", "storage",
		"id", id,
		"car_id", o.CarID,
		"title", o.Title,
		"amount_cents", o.Price.Cents,
		"interval", o.Interval)

	r.pub.Publish(notify.TableOtherCosts)
	return id, nil
}

// ImportBatch writes b in one transaction and announces the change once.
func (r *SQLiteRepository) ImportBatch(ctx context.Context, b store.Batch) (int, error) {
	if b.Len() == 0 {
		return 0, nil
	}
	if err := b.Validate(); err != nil {
		return 0, err
	}

	err := r.pub.Batch(func() error {
		tx, err := r.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin import: %w", err)
		}
		defer tx.Rollback()

		q := r.queries.WithTx(tx)
		for i, rec := range b.Refuelings {
			if _, err := r.addRefueling(ctx, q, rec); err != nil {
				return &store.RecordError{Kind: "refueling", Index: i, Err: err}
			}
		}
		for i, o := range b.OtherCosts {
			if _, err := r.addOtherCost(ctx, q, o); err != nil {
				return &store.RecordError{Kind: "other cost", Index: i, Err: err}
			}
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit import: %w", err)
		}

		if len(b.Refuelings) > 0 {
			r.pub.Publish(notify.TableRefuelings)
		}
		if len(b.OtherCosts) > 0 {
			r.pub.Publish(notify.TableOtherCosts)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	slog.InfoContext(ctx, "Batch imported to SQLite",
		"component", "storage",
		"refuelings", len(b.Refuelings),
		"other_costs", len(b.OtherCosts))
	return b.Len(), nil
}

func (r *SQLiteRepository) addRefueling(ctx context.Context, q *Queries, rec core.RefuelingRecord) (int64, error) {
	if err := rec.Validate(); err != nil {
		return 0, err
	}
	if err := carExists(ctx, q, rec.CarID); err != nil {
		return 0, err
	}
	if _, err := q.GetFuelType(ctx, rec.FuelTypeID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, fmt.Errorf("fuel type %d: %w", rec.FuelTypeID, core.ErrNotFound)
		}
		return 0, fmt.Errorf("get fuel type: %w", err)
	}
	id, err := q.InsertRefueling(ctx, rec)
	if err != nil {
		return 0, fmt.Errorf("create refueling: %w", err)
	}
	return id, nil
}

func (r *SQLiteRepository) addOtherCost(ctx context.Context, q *Queries, o core.OtherCostRecord) (int64, error) {
	if err := o.Validate(); err != nil {
		return 0, err
	}
	if err := carExists(ctx, q, o.CarID); err != nil {
		return 0, err
	}
	id, err := q.InsertOtherCost(ctx, o)
	if err != nil {
		return 0, fmt.Errorf("create other cost: %w", err)
	}
	return id, nil
}

func carExists(ctx context.Context, q *Queries, id int64) error {
	if _, err := q.GetCar(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("car %d: %w", id, core.ErrNotFound)
		}
		return fmt.Errorf("get car: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) GetCar(ctx context.Context, id int64) (core.Car, error) {
	c, err := r.queries.GetCar(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.Car{}, fmt.Errorf("car %d: %w", id, core.ErrNotFound)
		}
		return core.Car{}, fmt.Errorf("get car by id: %w", err)
	}
	return c, nil
}

func (r *SQLiteRepository) ListCars(ctx context.Context) ([]core.Car, error) {
	cars, err := r.queries.ListCars(ctx)
	if err != nil {
		return nil, fmt.Errorf("list cars: %w", err)
	}
	return cars, nil
}

func (r *SQLiteRepository) ListFuelTypes(ctx context.Context) ([]core.FuelType, error) {
	types, err := r.queries.ListFuelTypes(ctx)
	if err != nil {
		return nil, fmt.Errorf("list fuel types: %w", err)
	}
	return types, nil
}

func (r *SQLiteRepository) ListCategories(ctx context.Context, carID int64) ([]core.FuelCategory, error) {
	cats, err := r.queries.ListCategories(ctx, carID)
	if err != nil {
		return nil, fmt.Errorf("list categories for car %d: %w", carID, err)
	}
	return cats, nil
}

func (r *SQLiteRepository) ListRefuelings(ctx context.Context, carID int64, category core.FuelCategory) ([]core.RefuelingRecord, error) {
	recs, err := r.queries.ListRefuelings(ctx, carID, category)
	if err != nil {
		return nil, fmt.Errorf("list refuelings for car %d: %w", carID, err)
	}
	return recs, nil
}

func (r *SQLiteRepository) ListOtherCosts(ctx context.Context, carID int64) ([]core.OtherCostRecord, error) {
	costs, err := r.queries.ListOtherCosts(ctx, carID)
	if err != nil {
		return nil, fmt.Errorf("list other costs for car %d: %w", carID, err)
	}
	return costs, nil
}
