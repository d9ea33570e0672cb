package http

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"carcost/internal/calc"
	"carcost/internal/core"
	"carcost/internal/services"
	"carcost/internal/store"
)

// decimal holds an amount sent either as a JSON string ("12,50") or a number.
type decimal string

func (d *decimal) UnmarshalJSON(data []byte) error {
	if bytes.HasPrefix(data, []byte(`"`)) {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*d = decimal(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*d = decimal(n.String())
	return nil
}

type carRequest struct {
	Name           string `json:"name"`
	Color          string `json:"color"`
	InitialMileage int64  `json:"initial_mileage"`
	SuspendedSince string `json:"suspended_since,omitempty"`
}

func (c carRequest) toCar() (core.Car, error) {
	car := core.Car{
		Name:           sanitizeInput(c.Name),
		Color:          sanitizeInput(c.Color),
		InitialMileage: c.InitialMileage,
	}
	if c.SuspendedSince != "" {
		t, err := ParseDate(c.SuspendedSince)
		if err != nil {
			return core.Car{}, &invalidField{field: "suspended_since", err: err}
		}
		car.SuspendedSince = &t
	}
	return car, nil
}

type refuelingRequest struct {
	CarID      int64   `json:"car_id"`
	FuelTypeID int64   `json:"fuel_type_id"`
	Date       string  `json:"date"`
	Mileage    int64   `json:"mileage"`
	Volume     decimal `json:"volume"`
	Price      decimal `json:"price"`
	Partial    bool    `json:"partial"`
	Note       string  `json:"note,omitempty"`
}

func (r refuelingRequest) toRecord() (core.RefuelingRecord, error) {
	date, err := ParseDate(r.Date)
	if err != nil {
		return core.RefuelingRecord{}, &invalidField{field: "date", err: err}
	}
	volume, err := core.ParseVolume(string(r.Volume))
	if err != nil {
		return core.RefuelingRecord{}, &invalidField{field: "volume", err: err}
	}
	cents, err := core.ParseDecimalToCents(string(r.Price))
	if err != nil {
		return core.RefuelingRecord{}, &invalidField{field: "price", err: err}
	}
	return core.RefuelingRecord{
		CarID:      r.CarID,
		FuelTypeID: r.FuelTypeID,
		Date:       date,
		Mileage:    r.Mileage,
		Volume:     volume,
		Price:      core.Money{Cents: cents},
		Partial:    r.Partial,
		Note:       sanitizeInput(r.Note),
	}, nil
}

type otherCostRequest struct {
	CarID      int64   `json:"car_id"`
	Title      string  `json:"title"`
	Date       string  `json:"date"`
	Price      decimal `json:"price"`
	Mileage    *int64  `json:"mileage,omitempty"`
	Interval   string  `json:"interval"`
	Multiplier *int    `json:"multiplier,omitempty"`
	EndDate    string  `json:"end_date,omitempty"`
	Note       string  `json:"note,omitempty"`
}

func (o otherCostRequest) toRecord() (core.OtherCostRecord, error) {
	date, err := ParseDate(o.Date)
	if err != nil {
		return core.OtherCostRecord{}, &invalidField{field: "date", err: err}
	}
	cents, err := core.ParseDecimalToCents(string(o.Price))
	if err != nil {
		return core.OtherCostRecord{}, &invalidField{field: "price", err: err}
	}
	rec := core.OtherCostRecord{
		CarID:      o.CarID,
		Title:      sanitizeInput(o.Title),
		Date:       date,
		Price:      core.Money{Cents: cents},
		Mileage:    o.Mileage,
		Interval:   core.RecurrenceInterval(o.Interval),
		Multiplier: 1,
		Note:       sanitizeInput(o.Note),
	}
	if rec.Interval == "" {
		rec.Interval = core.Once
	}
	if o.Multiplier != nil {
		rec.Multiplier = *o.Multiplier
	}
	if o.EndDate != "" {
		end, err := ParseDate(o.EndDate)
		if err != nil {
			return core.OtherCostRecord{}, &invalidField{field: "end_date", err: err}
		}
		rec.EndDate = &end
	}
	return rec, nil
}

type importRequest struct {
	Refuelings []refuelingRequest `json:"refuelings"`
	OtherCosts []otherCostRequest `json:"other_costs"`
}

// toBatch converts every record; the first bad one fails with its position.
func (b importRequest) toBatch() (store.Batch, error) {
	var out store.Batch
	for i, r := range b.Refuelings {
		rec, err := r.toRecord()
		if err != nil {
			return store.Batch{}, &store.RecordError{Kind: "refueling", Index: i, Err: err}
		}
		out.Refuelings = append(out.Refuelings, rec)
	}
	for i, o := range b.OtherCosts {
		rec, err := o.toRecord()
		if err != nil {
			return store.Batch{}, &store.RecordError{Kind: "other cost", Index: i, Err: err}
		}
		out.OtherCosts = append(out.OtherCosts, rec)
	}
	return out, nil
}

// DecodeBatch reads an import document: a JSON object with "refuelings" and
// "other_costs" arrays in the request format of the API.
func DecodeBatch(r io.Reader) (store.Batch, error) {
	var req importRequest
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		return store.Batch{}, fmt.Errorf("decode import: %w", err)
	}
	return req.toBatch()
}

type createdResponse struct {
	ID int64 `json:"id"`
}

type importResponse struct {
	Imported int `json:"imported"`
}

type carResponse struct {
	ID             int64   `json:"id"`
	Name           string  `json:"name"`
	Color          string  `json:"color,omitempty"`
	InitialMileage int64   `json:"initial_mileage"`
	SuspendedSince *string `json:"suspended_since,omitempty"`
}

func newCarResponse(c core.Car) carResponse {
	out := carResponse{ID: c.ID, Name: c.Name, Color: c.Color, InitialMileage: c.InitialMileage}
	if c.SuspendedSince != nil {
		s := c.SuspendedSince.Format(DateLayout)
		out.SuspendedSince = &s
	}
	return out
}

type fuelTypeResponse struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Category string `json:"category"`
}

type segmentResponse struct {
	Category     string  `json:"category"`
	StartDate    string  `json:"start_date"`
	AnchorDate   string  `json:"anchor_date"`
	StartMileage int64   `json:"start_mileage"`
	EndMileage   int64   `json:"end_mileage"`
	Distance     int64   `json:"distance"`
	Volume       float64 `json:"volume"`
	Price        string  `json:"price"`
	Guessed      bool    `json:"guessed"`
}

func newSegmentResponse(s core.BalancedSegment) segmentResponse {
	return segmentResponse{
		Category:     string(s.Category),
		StartDate:    s.StartDate.Format(DateLayout),
		AnchorDate:   s.AnchorDate.Format(DateLayout),
		StartMileage: s.StartMileage,
		EndMileage:   s.EndMileage,
		Distance:     s.TotalDistance,
		Volume:       s.TotalVolume,
		Price:        s.TotalPrice.String(),
		Guessed:      s.Guessed,
	}
}

type monthlyCostResponse struct {
	Year        int    `json:"year"`
	Month       int    `json:"month"`
	Total       string `json:"total"`
	Occurrences int    `json:"occurrences"`
}

type costReport struct {
	CarID  int64                 `json:"car_id"`
	From   string                `json:"from"`
	To     string                `json:"to"`
	Months []monthlyCostResponse `json:"months"`
	Total  string                `json:"total"`
}

func newCostReport(rep services.CostReport) costReport {
	out := costReport{
		CarID:  rep.CarID,
		From:   rep.From.Format(DateLayout),
		To:     rep.To.Format(DateLayout),
		Months: make([]monthlyCostResponse, 0, len(rep.Months)),
		Total:  rep.Total.String(),
	}
	for _, m := range rep.Months {
		out.Months = append(out.Months, monthlyCostResponse{Year: m.Year, Month: m.Month, Total: m.Total.String(), Occurrences: m.Occurrences})
	}
	return out
}

type monthlyConsumptionResponse struct {
	Year     int     `json:"year"`
	Month    int     `json:"month"`
	Category string  `json:"category"`
	Volume   float64 `json:"volume"`
	Distance int64   `json:"distance"`
	Price    string  `json:"price"`
	Guessed  bool    `json:"guessed"`
}

type metricInfo struct {
	Name   string `json:"name"`
	Input  string `json:"input"`
	Result string `json:"result"`
}

type itemResponse struct {
	Label   string  `json:"label"`
	Result  float64 `json:"result"`
	Color   string  `json:"color,omitempty"`
	Guessed bool    `json:"guessed"`
}

type calculationResponse struct {
	metricInfo
	Value float64        `json:"input_value"`
	Items []itemResponse `json:"items"`
}

func newCalculationResponse(m calc.Metric, input float64, items []core.CalculationItem) calculationResponse {
	out := calculationResponse{
		metricInfo: metricInfo{Name: string(m), Input: string(m.Input()), Result: string(m.Result())},
		Value:      input,
		Items:      make([]itemResponse, 0, len(items)),
	}
	for _, it := range items {
		out.Items = append(out.Items, itemResponse{Label: it.Label, Result: it.Result, Color: it.Color, Guessed: it.Guessed})
	}
	return out
}

type occurrencesResponse struct {
	Count int      `json:"count"`
	Dates []string `json:"dates"`
}

type dueCostResponse struct {
	CarID    int64  `json:"car_id"`
	CarName  string `json:"car_name"`
	CostID   int64  `json:"cost_id"`
	Title    string `json:"title"`
	Price    string `json:"price"`
	Interval string `json:"interval"`
	DueDate  string `json:"due_date"`
}

func newDueCostResponse(d services.DueCost) dueCostResponse {
	return dueCostResponse{
		CarID:    d.CarID,
		CarName:  d.CarName,
		CostID:   d.Cost.ID,
		Title:    d.Cost.Title,
		Price:    d.Cost.Price.String(),
		Interval: string(d.Cost.Interval),
		DueDate:  d.DueDate.Format(DateLayout),
	}
}

func formatDates(ts []time.Time) []string {
	out := make([]string, 0, len(ts))
	for _, t := range ts {
		out = append(out, t.Format(DateLayout))
	}
	return out
}
