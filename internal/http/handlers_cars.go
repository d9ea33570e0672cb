package http

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"carcost/internal/core"
	applog "carcost/internal/log"
	"carcost/internal/recurrence"
	"carcost/internal/report"
	"carcost/internal/services"
)

const maxUpcomingDays = 3650

func (s *Server) handleListCars(w http.ResponseWriter, r *http.Request) {
	cars, err := s.reader.ListCars(r.Context())
	if err != nil {
		fail(w, r, err)
		return
	}
	out := make([]carResponse, 0, len(cars))
	for _, c := range cars {
		out = append(out, newCarResponse(c))
	}
	NewResponse().JSON(out).Write(w)
}

func (s *Server) handleGetCar(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		fail(w, r, err)
		return
	}
	car, err := s.reader.GetCar(r.Context(), id)
	if err != nil {
		fail(w, r, err)
		return
	}
	NewResponse().JSON(newCarResponse(car)).Write(w)
}

func (s *Server) handleCreateCar(w http.ResponseWriter, r *http.Request) {
	var req carRequest
	if err := decodeJSON(w, r, &req); err != nil {
		fail(w, r, err)
		return
	}
	car, err := req.toCar()
	if err != nil {
		fail(w, r, err)
		return
	}
	id, err := s.records.CreateCar(r.Context(), car)
	if err != nil {
		fail(w, r, err)
		return
	}
	NewResponse().Status(http.StatusCreated).JSON(createdResponse{ID: id}).Write(w)
}

func (s *Server) handleSegments(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		fail(w, r, err)
		return
	}
	segments, err := services.CarSegments(r.Context(), s.reader, id)
	if err != nil {
		fail(w, r, err)
		return
	}
	out := make([]segmentResponse, 0, len(segments))
	for _, seg := range segments {
		out = append(out, newSegmentResponse(seg))
	}
	NewResponse().JSON(out).Write(w)
}

func (s *Server) handleConsumption(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		fail(w, r, err)
		return
	}
	segments, err := services.CarSegments(r.Context(), s.reader, id)
	if err != nil {
		fail(w, r, err)
		return
	}
	months := report.MonthlyConsumption(segments)
	out := make([]monthlyConsumptionResponse, 0, len(months))
	for _, m := range months {
		out = append(out, monthlyConsumptionResponse{
			Year:     m.Year,
			Month:    m.Month,
			Category: string(m.Category),
			Volume:   m.Volume,
			Distance: m.Distance,
			Price:    m.Price.String(),
			Guessed:  m.Guessed,
		})
	}
	NewResponse().JSON(out).Write(w)
}

// handleCosts reports the other costs of a car per month over [from, to].
// The window defaults to the current year so far.
func (s *Server) handleCosts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := pathID(r)
	if err != nil {
		fail(w, r, err)
		return
	}
	now := s.now().UTC()
	q := NewQuery(r)
	from, err := q.Date("from", time.Date(now.Year(), time.January, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		fail(w, r, err)
		return
	}
	to, err := q.Date("to", now)
	if err != nil {
		fail(w, r, err)
		return
	}
	to = EndOfDay(to)
	if to.Before(from) {
		fail(w, r, &badRequest{msg: "to must not be before from"})
		return
	}

	key := strconv.FormatInt(id, 10) + "|" + from.Format(time.RFC3339) + "|" + to.Format(time.RFC3339) + "|" + now.Format(DateLayout)
	if cached, ok := s.reports.Get(key); ok {
		NewResponse().JSON(cached).Write(w)
		return
	}

	gen := s.reports.Generation()
	rep, err := services.CarCosts(ctx, s.reader, id, now, from, to)
	if err != nil {
		fail(w, r, err)
		return
	}
	out := newCostReport(rep)
	s.reports.SetIfCurrent(key, out, gen)
	NewResponse().JSON(out).Write(w)
}

// handleOccurrences counts a recurrence inside a window. Without an end the
// recurrence runs until now.
func (s *Server) handleOccurrences(w http.ResponseWriter, r *http.Request) {
	q := NewQuery(r)
	interval := core.RecurrenceInterval(q.String("interval"))
	if !interval.Valid() {
		fail(w, r, &invalidField{field: "interval", err: core.ErrInvalidInterval})
		return
	}
	multiplier, err := q.Int("multiplier", 1)
	if err != nil {
		fail(w, r, err)
		return
	}
	if multiplier < 1 {
		fail(w, r, &invalidField{field: "multiplier", err: core.ErrInvalidMultiplier})
		return
	}
	start, err := q.Date("start", time.Time{})
	if err != nil {
		fail(w, r, err)
		return
	}
	if start.IsZero() {
		fail(w, r, &badRequest{msg: "start: required"})
		return
	}
	end, err := q.OptionalDate("end")
	if err != nil {
		fail(w, r, err)
		return
	}
	rangeEnd := s.now().UTC()
	if end != nil {
		if end.Before(start) {
			fail(w, r, &invalidField{field: "end", err: core.ErrEndBeforeStart})
			return
		}
		rangeEnd = EndOfDay(*end)
	}
	from, err := q.Date("from", start)
	if err != nil {
		fail(w, r, err)
		return
	}
	to, err := q.Date("to", rangeEnd)
	if err != nil {
		fail(w, r, err)
		return
	}

	dates := recurrence.Dates(interval, multiplier, start, rangeEnd, from, EndOfDay(to))
	NewResponse().JSON(occurrencesResponse{Count: len(dates), Dates: formatDates(dates)}).Write(w)
}

// handleUpcoming lists the other costs due in the next ?days= days (30 by default).
func (s *Server) handleUpcoming(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	days, err := NewQuery(r).Int("days", 30)
	if err != nil {
		fail(w, r, err)
		return
	}
	if days < 0 || days > maxUpcomingDays {
		fail(w, r, &badRequest{msg: fmt.Sprintf("days must be between 0 and %d", maxUpcomingDays)})
		return
	}
	due, err := services.UpcomingCosts(ctx, s.reader, s.now().UTC(), time.Duration(days)*24*time.Hour)
	if err != nil {
		fail(w, r, err)
		return
	}
	out := make([]dueCostResponse, 0, len(due))
	for _, d := range due {
		out = append(out, newDueCostResponse(d))
	}
	applog.FromContext(ctx).DebugContext(ctx, "Upcoming costs listed", applog.FieldItems, len(out), "days", days)
	NewResponse().JSON(out).Write(w)
}
