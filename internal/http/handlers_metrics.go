package http

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"carcost/internal/core"
	applog "carcost/internal/log"
)

func (s *Server) handleListMetrics(w http.ResponseWriter, r *http.Request) {
	out := make([]metricInfo, 0, len(s.metrics.Names()))
	for _, m := range s.metrics.Names() {
		out = append(out, metricInfo{Name: string(m), Input: string(m.Input()), Result: string(m.Result())})
	}
	NewResponse().JSON(out).Write(w)
}

// handleCalculate applies a metric to the ?input= value. Results are kept in
// the LRU cache until a table changes or the entry expires.
func (s *Server) handleCalculate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	c, err := s.metrics.ByName(mux.Vars(r)["metric"])
	if err != nil {
		fail(w, r, err)
		return
	}
	input, err := NewQuery(r).Float("input")
	if err != nil {
		fail(w, r, err)
		return
	}

	key := string(c.Metric()) + "|" + strconv.FormatFloat(input, 'g', -1, 64)
	items, ok := s.results.Get(key)
	if ok {
		applog.FromContext(ctx).DebugContext(ctx, "Result cache hit", applog.FieldMetric, c.Metric(), applog.FieldInput, input)
	} else {
		gen := s.results.Generation()
		var calcErr error
		items, calcErr = c.Calculate(ctx, input)
		if calcErr != nil {
			fail(w, r, calcErr)
			return
		}
		// A change landing during the calculation purges the cache or leaves
		// the calculator Dirty; that result must not be kept.
		if !c.Dirty() {
			s.results.SetIfCurrent(key, items, gen)
		}
	}
	NewResponse().JSON(newCalculationResponse(c.Metric(), input, items)).Write(w)
}

func (s *Server) handleListFuelTypes(w http.ResponseWriter, r *http.Request) {
	types, err := s.reader.ListFuelTypes(r.Context())
	if err != nil {
		fail(w, r, err)
		return
	}
	out := make([]fuelTypeResponse, 0, len(types))
	for _, f := range types {
		out = append(out, fuelTypeResponse{ID: f.ID, Name: f.Name, Category: string(f.Category)})
	}
	NewResponse().JSON(out).Write(w)
}

func (s *Server) handleCreateFuelType(w http.ResponseWriter, r *http.Request) {
	var req fuelTypeResponse
	if err := decodeJSON(w, r, &req); err != nil {
		fail(w, r, err)
		return
	}
	id, err := s.records.CreateFuelType(r.Context(), core.FuelType{
		Name:     sanitizeInput(req.Name),
		Category: core.FuelCategory(sanitizeInput(req.Category)),
	})
	if err != nil {
		fail(w, r, err)
		return
	}
	NewResponse().Status(http.StatusCreated).JSON(createdResponse{ID: id}).Write(w)
}
