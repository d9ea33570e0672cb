package http

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"carcost/internal/cache"
	"carcost/internal/calc"
	"carcost/internal/core"
	"carcost/internal/middleware"
	"carcost/internal/notify"
	"carcost/internal/services"
	"carcost/internal/store"
	"carcost/internal/store/memory"
)

var testNow = time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

type testEnv struct {
	srv   *Server
	svc   *services.RecordService
	carID int64
}

func newTestEnv(t *testing.T, rateLimit int) *testEnv {
	t.Helper()
	hub := notify.NewHub()
	st := memory.NewFromFiles(hub, t.TempDir())
	svc := services.NewRecordService(st)
	now := func() time.Time { return testNow }
	set := calc.NewSet(st, hub, calc.WithClock(now))
	t.Cleanup(set.Close)

	srv, err := NewServer(Options{
		Records:   svc,
		Reader:    st,
		Metrics:   set,
		Hub:       hub,
		Manager:   cache.NewManager(),
		RateLimit: rateLimit,
		Now:       now,
	})
	if err != nil {
		t.Fatalf("NewServer() error = %v", err)
	}
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })

	carID, err := svc.CreateCar(context.Background(), core.Car{Name: "Panda", Color: "#ff0000"})
	if err != nil {
		t.Fatalf("CreateCar() error = %v", err)
	}
	return &testEnv{srv: srv, svc: svc, carID: carID}
}

func (e *testEnv) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rr := httptest.NewRecorder()
	e.srv.Handler.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rr.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rr.Body.String(), err)
	}
	return v
}

// refuel posts a petrol refueling (fuel type 1).
func (e *testEnv) refuel(t *testing.T, date string, mileage int64, volume, price string, partial bool) *httptest.ResponseRecorder {
	t.Helper()
	body := fmt.Sprintf(`{"car_id":%d,"fuel_type_id":1,"date":%q,"mileage":%d,"volume":%q,"price":%q,"partial":%t}`,
		e.carID, date, mileage, volume, price, partial)
	return e.do(t, http.MethodPost, "/api/refuelings", body)
}

func (e *testEnv) seedRefuelings(t *testing.T) {
	t.Helper()
	for _, r := range []struct {
		date    string
		mileage int64
		volume  string
		price   string
		partial bool
	}{
		{"2024-01-05", 1000, "30", "50.00", false},
		{"2024-01-20", 1300, "20,0", "30,00", true},
		{"2024-02-02", 1600, "25", "40", false},
	} {
		if rr := e.refuel(t, r.date, r.mileage, r.volume, r.price, r.partial); rr.Code != http.StatusCreated {
			t.Fatalf("POST /api/refuelings status = %d, body = %s", rr.Code, rr.Body.String())
		}
	}
}

func TestHealthAndReady(t *testing.T) {
	env := newTestEnv(t, 0)
	for _, path := range []string{"/healthz", "/readyz"} {
		rr := env.do(t, http.MethodGet, path, "")
		if rr.Code != http.StatusOK {
			t.Fatalf("%s status = %d", path, rr.Code)
		}
		if rr.Header().Get(middleware.RequestIDHeader) == "" {
			t.Errorf("%s missing %s header", path, middleware.RequestIDHeader)
		}
		if got := rr.Header().Get("X-Content-Type-Options"); got != "nosniff" {
			t.Errorf("%s X-Content-Type-Options = %q", path, got)
		}
	}
}

func TestRouting_NotFoundAndMethod(t *testing.T) {
	env := newTestEnv(t, 0)
	tests := []struct {
		method, path string
		want         int
	}{
		{http.MethodGet, "/api/nope", http.StatusNotFound},
		{http.MethodDelete, "/api/cars", http.StatusMethodNotAllowed},
		{http.MethodGet, "/api/cars/999", http.StatusNotFound},
		{http.MethodGet, "/api/metrics/litres-per-hour?input=1", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			rr := env.do(t, tt.method, tt.path, "")
			if rr.Code != tt.want {
				t.Fatalf("status = %d, want %d", rr.Code, tt.want)
			}
			body := decode[ErrorBody](t, rr)
			if body.Error == "" {
				t.Error("error body is empty")
			}
		})
	}
}

func TestCars(t *testing.T) {
	env := newTestEnv(t, 0)

	rr := env.do(t, http.MethodPost, "/api/cars", `{"name":"Beetle","initial_mileage":50000,"suspended_since":"2024-03-01"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("POST /api/cars status = %d, body = %s", rr.Code, rr.Body.String())
	}
	id := decode[createdResponse](t, rr).ID

	rr = env.do(t, http.MethodGet, fmt.Sprintf("/api/cars/%d", id), "")
	car := decode[carResponse](t, rr)
	if car.Name != "Beetle" || car.SuspendedSince == nil || *car.SuspendedSince != "2024-03-01" {
		t.Errorf("GET car = %+v", car)
	}

	cars := decode[[]carResponse](t, env.do(t, http.MethodGet, "/api/cars", ""))
	if len(cars) != 2 {
		t.Errorf("GET /api/cars returned %d cars, want 2", len(cars))
	}

	if rr := env.do(t, http.MethodPost, "/api/cars", `{"name":"  "}`); rr.Code != http.StatusUnprocessableEntity {
		t.Errorf("empty name status = %d, want 422", rr.Code)
	}
	if rr := env.do(t, http.MethodPost, "/api/cars", `{"name":"X","wheels":4}`); rr.Code != http.StatusBadRequest {
		t.Errorf("unknown field status = %d, want 400", rr.Code)
	}
}

func TestRefuelingErrors(t *testing.T) {
	env := newTestEnv(t, 0)
	env.seedRefuelings(t)

	tests := []struct {
		name string
		body string
		want int
	}{
		{"malformed json", `{"car_id":`, http.StatusBadRequest},
		{"bad price", fmt.Sprintf(`{"car_id":%d,"fuel_type_id":1,"date":"2024-03-01","mileage":2000,"volume":"10","price":"abc"}`, env.carID), http.StatusUnprocessableEntity},
		{"bad date", fmt.Sprintf(`{"car_id":%d,"fuel_type_id":1,"date":"01/03/2024","mileage":2000,"volume":"10","price":"1"}`, env.carID), http.StatusUnprocessableEntity},
		{"zero volume", fmt.Sprintf(`{"car_id":%d,"fuel_type_id":1,"date":"2024-03-01","mileage":2000,"volume":"0","price":"1"}`, env.carID), http.StatusUnprocessableEntity},
		{"mileage decrease", fmt.Sprintf(`{"car_id":%d,"fuel_type_id":1,"date":"2024-03-01","mileage":1500,"volume":"10","price":"1"}`, env.carID), http.StatusConflict},
		{"unknown car", `{"car_id":999,"fuel_type_id":1,"date":"2024-03-01","mileage":2000,"volume":"10","price":"1"}`, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := env.do(t, http.MethodPost, "/api/refuelings", tt.body)
			if rr.Code != tt.want {
				t.Errorf("status = %d, want %d, body = %s", rr.Code, tt.want, rr.Body.String())
			}
		})
	}
}

func TestSegmentsAndConsumption(t *testing.T) {
	env := newTestEnv(t, 0)
	env.seedRefuelings(t)

	rr := env.do(t, http.MethodGet, fmt.Sprintf("/api/cars/%d/segments", env.carID), "")
	if rr.Code != http.StatusOK {
		t.Fatalf("segments status = %d, body = %s", rr.Code, rr.Body.String())
	}
	segs := decode[[]segmentResponse](t, rr)
	if len(segs) != 1 {
		t.Fatalf("segments = %d, want 1", len(segs))
	}
	got := segs[0]
	if got.Distance != 600 || got.Volume != 45 || got.Price != "70.00" || got.Guessed {
		t.Errorf("segment = %+v, want 600 km, 45 l, 70.00, confirmed", got)
	}
	if got.AnchorDate != "2024-02-02" {
		t.Errorf("AnchorDate = %q, want 2024-02-02", got.AnchorDate)
	}

	months := decode[[]monthlyConsumptionResponse](t, env.do(t, http.MethodGet, fmt.Sprintf("/api/cars/%d/consumption", env.carID), ""))
	if len(months) != 1 || months[0].Month != 2 || months[0].Distance != 600 {
		t.Errorf("consumption = %+v", months)
	}
}

func TestCalculate(t *testing.T) {
	env := newTestEnv(t, 0)
	env.seedRefuelings(t)

	metrics := decode[[]metricInfo](t, env.do(t, http.MethodGet, "/api/metrics", ""))
	if len(metrics) != len(calc.Metrics) {
		t.Fatalf("metrics = %d, want %d", len(metrics), len(calc.Metrics))
	}

	path := "/api/metrics/distance-volume?input=100"
	for i := 0; i < 2; i++ {
		rr := env.do(t, http.MethodGet, path, "")
		if rr.Code != http.StatusOK {
			t.Fatalf("calculate status = %d, body = %s", rr.Code, rr.Body.String())
		}
		res := decode[calculationResponse](t, rr)
		if len(res.Items) != 1 {
			t.Fatalf("items = %+v, want one", res.Items)
		}
		if res.Items[0].Label != "Panda (petrol)" || math.Abs(res.Items[0].Result-7.5) > 1e-9 {
			t.Errorf("item = %+v, want Panda (petrol) 7.5", res.Items[0])
		}
	}
	if hits, _ := env.srv.results.Stats(); hits != 1 {
		t.Errorf("result cache hits = %d, want 1", hits)
	}

	// A new refueling purges cached results.
	env.refuel(t, "2024-03-01", 2100, "30", "50", false)
	if env.srv.results.Size() != 0 {
		t.Errorf("result cache size after change = %d, want 0", env.srv.results.Size())
	}
	res := decode[calculationResponse](t, env.do(t, http.MethodGet, path, ""))
	// 75 l over 1100 km.
	want := 100 * 75.0 / 1100
	if len(res.Items) != 1 || math.Abs(res.Items[0].Result-want) > 1e-9 {
		t.Errorf("items after change = %+v, want %v", res.Items, want)
	}

	if rr := env.do(t, http.MethodGet, "/api/metrics/distance-volume", ""); rr.Code != http.StatusBadRequest {
		t.Errorf("missing input status = %d, want 400", rr.Code)
	}
	if rr := env.do(t, http.MethodGet, "/api/metrics/distance-volume?input=abc", ""); rr.Code != http.StatusBadRequest {
		t.Errorf("bad input status = %d, want 400", rr.Code)
	}
}

func TestCostsAndUpcoming(t *testing.T) {
	env := newTestEnv(t, 0)
	for _, body := range []string{
		fmt.Sprintf(`{"car_id":%d,"title":"Insurance","date":"2024-01-10","price":"400","interval":"year"}`, env.carID),
		fmt.Sprintf(`{"car_id":%d,"title":"Parking","date":"2024-03-01","price":30,"interval":"month","multiplier":1}`, env.carID),
	} {
		if rr := env.do(t, http.MethodPost, "/api/other-costs", body); rr.Code != http.StatusCreated {
			t.Fatalf("POST /api/other-costs status = %d, body = %s", rr.Code, rr.Body.String())
		}
	}

	rr := env.do(t, http.MethodGet, fmt.Sprintf("/api/cars/%d/costs?from=2024-01-01&to=2024-06-30", env.carID), "")
	if rr.Code != http.StatusOK {
		t.Fatalf("costs status = %d, body = %s", rr.Code, rr.Body.String())
	}
	rep := decode[costReport](t, rr)
	// Insurance once, parking March to June.
	if rep.Total != "520.00" {
		t.Errorf("Total = %s, want 520.00 (months %+v)", rep.Total, rep.Months)
	}

	due := decode[[]dueCostResponse](t, env.do(t, http.MethodGet, "/api/upcoming?days=30", ""))
	if len(due) != 1 || due[0].Title != "Parking" || due[0].DueDate != "2024-07-01" {
		t.Errorf("upcoming = %+v, want Parking on 2024-07-01", due)
	}
	if rr := env.do(t, http.MethodGet, "/api/upcoming?days=-1", ""); rr.Code != http.StatusBadRequest {
		t.Errorf("negative days status = %d, want 400", rr.Code)
	}

	bad := fmt.Sprintf(`{"car_id":%d,"title":"Bad","date":"2024-01-10","price":"1","interval":"month","multiplier":0}`, env.carID)
	if rr := env.do(t, http.MethodPost, "/api/other-costs", bad); rr.Code != http.StatusUnprocessableEntity {
		t.Errorf("zero multiplier status = %d, want 422", rr.Code)
	}
}

// writeDuringRead records an other cost right after the first cost listing,
// as a concurrent request would.
type writeDuringRead struct {
	store.Reader
	write func()
	done  bool
}

func (w *writeDuringRead) ListOtherCosts(ctx context.Context, carID int64) ([]core.OtherCostRecord, error) {
	costs, err := w.Reader.ListOtherCosts(ctx, carID)
	if !w.done {
		w.done = true
		w.write()
	}
	return costs, err
}

func TestCosts_ChangeDuringReportIsNotCached(t *testing.T) {
	env := newTestEnv(t, 0)
	env.srv.reader = &writeDuringRead{
		Reader: env.srv.reader,
		write: func() {
			if _, err := env.svc.AddOtherCost(context.Background(), core.OtherCostRecord{
				CarID: env.carID, Title: "Tyres", Date: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
				Price: core.Money{Cents: 10000}, Interval: core.Once, Multiplier: 1,
			}); err != nil {
				t.Errorf("AddOtherCost() error = %v", err)
			}
		},
	}

	path := fmt.Sprintf("/api/cars/%d/costs?from=2024-01-01&to=2024-06-30", env.carID)
	first := decode[costReport](t, env.do(t, http.MethodGet, path, ""))
	if first.Total != "0.00" {
		t.Fatalf("first Total = %s, want 0.00 (read before the write)", first.Total)
	}
	if env.srv.reports.Size() != 0 {
		t.Errorf("reports cached = %d, want 0 after a change during the report", env.srv.reports.Size())
	}
	second := decode[costReport](t, env.do(t, http.MethodGet, path, ""))
	if second.Total != "100.00" {
		t.Errorf("second Total = %s, want 100.00", second.Total)
	}
}

func TestOccurrences(t *testing.T) {
	env := newTestEnv(t, 0)
	tests := []struct {
		name      string
		query     string
		wantCode  int
		wantCount int
	}{
		{"month end clamps", "interval=month&start=2024-01-31&end=2024-05-31", http.StatusOK, 5},
		{"windowed", "interval=month&start=2024-01-31&end=2024-05-31&from=2024-03-01&to=2024-04-30", http.StatusOK, 2},
		{"open ended until now", "interval=month&multiplier=2&start=2024-01-15", http.StatusOK, 3},
		{"once", "interval=once&start=2024-02-01&end=2024-02-01", http.StatusOK, 1},
		{"bad interval", "interval=week&start=2024-01-01", http.StatusUnprocessableEntity, 0},
		{"zero multiplier", "interval=day&multiplier=0&start=2024-01-01", http.StatusUnprocessableEntity, 0},
		{"missing start", "interval=day", http.StatusBadRequest, 0},
		{"end before start", "interval=day&start=2024-02-01&end=2024-01-01", http.StatusUnprocessableEntity, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := env.do(t, http.MethodGet, "/api/occurrences?"+tt.query, "")
			if rr.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d, body = %s", rr.Code, tt.wantCode, rr.Body.String())
			}
			if tt.wantCode != http.StatusOK {
				return
			}
			got := decode[occurrencesResponse](t, rr)
			if got.Count != tt.wantCount || len(got.Dates) != tt.wantCount {
				t.Errorf("occurrences = %+v, want %d", got, tt.wantCount)
			}
		})
	}
}

func TestImport(t *testing.T) {
	env := newTestEnv(t, 0)
	body := fmt.Sprintf(`{
		"refuelings": [
			{"car_id":%[1]d,"fuel_type_id":1,"date":"2024-01-01","mileage":100,"volume":"40","price":"70"},
			{"car_id":%[1]d,"fuel_type_id":1,"date":"2024-02-01","mileage":700,"volume":"35","price":"60"}
		],
		"other_costs": [
			{"car_id":%[1]d,"title":"Tax","date":"2024-01-15","price":"180"}
		]
	}`, env.carID)
	rr := env.do(t, http.MethodPost, "/api/import", body)
	if rr.Code != http.StatusCreated {
		t.Fatalf("import status = %d, body = %s", rr.Code, rr.Body.String())
	}
	if got := decode[importResponse](t, rr).Imported; got != 3 {
		t.Errorf("Imported = %d, want 3", got)
	}

	bad := fmt.Sprintf(`{"refuelings":[
		{"car_id":%[1]d,"fuel_type_id":1,"date":"2024-03-01","mileage":900,"volume":"10","price":"1"},
		{"car_id":%[1]d,"fuel_type_id":1,"date":"2024-04-01","mileage":1000,"volume":"x","price":"1"}
	]}`, env.carID)
	rr = env.do(t, http.MethodPost, "/api/import", bad)
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("bad import status = %d, want 422", rr.Code)
	}
	if msg := decode[ErrorBody](t, rr).Error; !strings.Contains(msg, "#2") {
		t.Errorf("error = %q, want the failing record position", msg)
	}

	segs := decode[[]segmentResponse](t, env.do(t, http.MethodGet, fmt.Sprintf("/api/cars/%d/segments", env.carID), ""))
	if len(segs) != 1 {
		t.Errorf("segments after rejected import = %d, want 1", len(segs))
	}

	if rr := env.do(t, http.MethodPost, "/api/import", `{}`); rr.Code != http.StatusBadRequest {
		t.Errorf("empty import status = %d, want 400", rr.Code)
	}
}

func TestRateLimit(t *testing.T) {
	env := newTestEnv(t, 1)
	if rr := env.do(t, http.MethodGet, "/healthz", ""); rr.Code != http.StatusOK {
		t.Fatalf("first request status = %d", rr.Code)
	}
	rr := env.do(t, http.MethodGet, "/healthz", "")
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("second request status = %d, want 429", rr.Code)
	}
	if rr.Header().Get("Retry-After") == "" {
		t.Error("missing Retry-After header")
	}
	if decode[ErrorBody](t, rr).RequestID == "" {
		t.Error("429 body should carry the request ID")
	}
}
