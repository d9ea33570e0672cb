package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"carcost/internal/core"
)

// timeLayout stores UTC instants with a fixed width so text order is time order.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// DBTX is satisfied by *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Queries holds the SQL statements of the repository.
type Queries struct {
	db DBTX
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

const insertCar = `INSERT INTO cars (name, color, initial_mileage, suspended_since) VALUES (?, ?, ?, ?)`

func (q *Queries) InsertCar(ctx context.Context, c core.Car) (int64, error) {
	res, err := q.db.ExecContext(ctx, insertCar, c.Name, c.Color, c.InitialMileage, formatTimePtr(c.SuspendedSince))
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

const insertFuelType = `INSERT INTO fuel_types (name, category) VALUES (?, ?)`

func (q *Queries) InsertFuelType(ctx context.Context, f core.FuelType) (int64, error) {
	res, err := q.db.ExecContext(ctx, insertFuelType, f.Name, string(f.Category))
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

const insertRefueling = `INSERT INTO refuelings (car_id, fuel_type_id, date, mileage, volume, price_cents, partial, note)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

func (q *Queries) InsertRefueling(ctx context.Context, r core.RefuelingRecord) (int64, error) {
	res, err := q.db.ExecContext(ctx, insertRefueling,
		r.CarID, r.FuelTypeID, formatTime(r.Date), r.Mileage, r.Volume, r.Price.Cents, r.Partial, r.Note)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

const insertOtherCost = `INSERT INTO other_costs (car_id, title, date, price_cents, mileage, recurrence_interval, multiplier, end_date, note)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

func (q *Queries) InsertOtherCost(ctx context.Context, o core.OtherCostRecord) (int64, error) {
	var mileage sql.NullInt64
	if o.Mileage != nil {
		mileage = sql.NullInt64{Int64: *o.Mileage, Valid: true}
	}
	res, err := q.db.ExecContext(ctx, insertOtherCost,
		o.CarID, o.Title, formatTime(o.Date), o.Price.Cents, mileage, string(o.Interval), o.Multiplier,
		formatTimePtr(o.EndDate), o.Note)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

const selectCars = `SELECT id, name, color, initial_mileage, suspended_since FROM cars`

func (q *Queries) GetCar(ctx context.Context, id int64) (core.Car, error) {
	return scanCar(q.db.QueryRowContext(ctx, selectCars+` WHERE id = ?`, id))
}

func (q *Queries) ListCars(ctx context.Context) ([]core.Car, error) {
	rows, err := q.db.QueryContext(ctx, selectCars+` ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []core.Car
	for rows.Next() {
		c, err := scanCar(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

const selectFuelTypes = `SELECT id, name, category FROM fuel_types`

func (q *Queries) GetFuelType(ctx context.Context, id int64) (core.FuelType, error) {
	var f core.FuelType
	err := q.db.QueryRowContext(ctx, selectFuelTypes+` WHERE id = ?`, id).Scan(&f.ID, &f.Name, &f.Category)
	return f, err
}

func (q *Queries) ListFuelTypes(ctx context.Context) ([]core.FuelType, error) {
	rows, err := q.db.QueryContext(ctx, selectFuelTypes+` ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []core.FuelType
	for rows.Next() {
		var f core.FuelType
		if err := rows.Scan(&f.ID, &f.Name, &f.Category); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

const listCategories = `SELECT DISTINCT ft.category
FROM refuelings r JOIN fuel_types ft ON ft.id = r.fuel_type_id
WHERE r.car_id = ?
ORDER BY ft.category`

func (q *Queries) ListCategories(ctx context.Context, carID int64) ([]core.FuelCategory, error) {
	rows, err := q.db.QueryContext(ctx, listCategories, carID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []core.FuelCategory
	for rows.Next() {
		var c core.FuelCategory
		if err := rows.Scan(&c); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

const listRefuelings = `SELECT r.id, r.car_id, r.fuel_type_id, ft.category, r.date, r.mileage, r.volume, r.price_cents, r.partial, r.note
FROM refuelings r JOIN fuel_types ft ON ft.id = r.fuel_type_id
WHERE r.car_id = ? AND (? = '' OR ft.category = ?)
ORDER BY r.date, r.mileage, r.id`

func (q *Queries) ListRefuelings(ctx context.Context, carID int64, category core.FuelCategory) ([]core.RefuelingRecord, error) {
	rows, err := q.db.QueryContext(ctx, listRefuelings, carID, string(category), string(category))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []core.RefuelingRecord
	for rows.Next() {
		var (
			r    core.RefuelingRecord
			date string
		)
		if err := rows.Scan(&r.ID, &r.CarID, &r.FuelTypeID, &r.Category, &date, &r.Mileage, &r.Volume, &r.Price.Cents, &r.Partial, &r.Note); err != nil {
			return nil, err
		}
		if r.Date, err = parseTime(date); err != nil {
			return nil, fmt.Errorf("refueling %d: %w", r.ID, err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

const listOtherCosts = `SELECT id, car_id, title, date, price_cents, mileage, recurrence_interval, multiplier, end_date, note
FROM other_costs
WHERE car_id = ?
ORDER BY date, id`

func (q *Queries) ListOtherCosts(ctx context.Context, carID int64) ([]core.OtherCostRecord, error) {
	rows, err := q.db.QueryContext(ctx, listOtherCosts, carID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []core.OtherCostRecord
	for rows.Next() {
		var (
			o       core.OtherCostRecord
			date    string
			mileage sql.NullInt64
			endDate sql.NullString
		)
		if err := rows.Scan(&o.ID, &o.CarID, &o.Title, &date, &o.Price.Cents, &mileage, &o.Interval, &o.Multiplier, &endDate, &o.Note); err != nil {
			return nil, err
		}
		if o.Date, err = parseTime(date); err != nil {
			return nil, fmt.Errorf("other cost %d: %w", o.ID, err)
		}
		if mileage.Valid {
			m := mileage.Int64
			o.Mileage = &m
		}
		if o.EndDate, err = parseTimePtr(endDate); err != nil {
			return nil, fmt.Errorf("other cost %d: %w", o.ID, err)
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanCar(s scanner) (core.Car, error) {
	var (
		c         core.Car
		suspended sql.NullString
	)
	if err := s.Scan(&c.ID, &c.Name, &c.Color, &c.InitialMileage, &suspended); err != nil {
		return core.Car{}, err
	}
	var err error
	if c.SuspendedSince, err = parseTimePtr(suspended); err != nil {
		return core.Car{}, fmt.Errorf("car %d: %w", c.ID, err)
	}
	return c, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func formatTimePtr(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		// Rows written by hand may use plain RFC 3339 or a bare date.
		if t, err2 := time.Parse(time.RFC3339, s); err2 == nil {
			return t.UTC(), nil
		}
		if t, err2 := time.Parse(time.DateOnly, s); err2 == nil {
			return t, nil
		}
		return time.Time{}, fmt.Errorf("parse time %q: %w", s, err)
	}
	return t, nil
}

func parseTimePtr(s sql.NullString) (*time.Time, error) {
	if !s.Valid || s.String == "" {
		return nil, nil
	}
	t, err := parseTime(s.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
