package http

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"

	"carcost/internal/cache"
	"carcost/internal/calc"
	"carcost/internal/core"
	applog "carcost/internal/log"
	"carcost/internal/middleware"
	"carcost/internal/notify"
	"carcost/internal/services"
	"carcost/internal/store"
)

// Options configures a Server. Records, Reader and Metrics are required.
type Options struct {
	Addr    string
	Records *services.RecordService
	Reader  store.Reader
	Metrics *calc.Set

	// Hub purges the result caches when a table changes. Manager sweeps
	// expired entries and stale rate-limit windows on its schedule.
	Hub     cache.Subscriber
	Manager *cache.Manager

	Logger          *applog.Logger
	ResultCacheSize int
	ResultCacheTTL  time.Duration
	// RateLimit is the number of requests per minute allowed per client; 0 disables it.
	RateLimit int
	Now       func() time.Time
}

// Server is the JSON API over the record store and the calculators.
type Server struct {
	http.Server
	records *services.RecordService
	reader  store.Reader
	metrics *calc.Set
	logger  *applog.Logger
	now     func() time.Time

	results *cache.LRUCache[[]core.CalculationItem]
	reports *cache.LRUCache[costReport]
	limiter *middleware.Limiter
	trace   *middleware.Trace

	cancels      []func()
	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(opts Options) (*Server, error) {
	if opts.Records == nil || opts.Reader == nil || opts.Metrics == nil {
		return nil, fmt.Errorf("http server: records, reader and metrics are required")
	}
	if opts.Logger == nil {
		opts.Logger = applog.Discard()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.ResultCacheSize < 1 {
		opts.ResultCacheSize = 256
	}
	if opts.ResultCacheTTL <= 0 {
		opts.ResultCacheTTL = 5 * time.Minute
	}

	clientIP, err := middleware.NewClientIP()
	if err != nil {
		return nil, fmt.Errorf("http server: %w", err)
	}

	s := &Server{
		records: opts.Records,
		reader:  opts.Reader,
		metrics: opts.Metrics,
		logger:  opts.Logger.WithComponent(applog.ComponentHTTP),
		now:     opts.Now,
		results: cache.NewLRUCache[[]core.CalculationItem](opts.ResultCacheSize, opts.ResultCacheTTL),
		reports: cache.NewLRUCache[costReport](opts.ResultCacheSize, opts.ResultCacheTTL),
		limiter: middleware.NewLimiter(opts.RateLimit, time.Minute),
		trace:   middleware.NewTrace(),
	}

	if opts.Hub != nil {
		s.cancels = append(s.cancels,
			s.results.Watch(opts.Hub, notify.AllTables...),
			s.reports.Watch(opts.Hub, notify.TableCars, notify.TableOtherCosts))
	}
	if opts.Manager != nil {
		opts.Manager.Register(s.results)
		opts.Manager.Register(s.reports)
		opts.Manager.RegisterCleaner(s.results)
		opts.Manager.RegisterCleaner(s.reports)
		opts.Manager.RegisterCleaner(s.limiter)
	}

	r := mux.NewRouter()
	r.Use(
		s.trace.Middleware,
		applog.Middleware(s.logger),
		middleware.Headers(middleware.DefaultHeadersConfig()),
		s.limiter.Middleware(clientIP.Extract, s.rateLimited),
	)
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusNotFound, "no such endpoint")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
	})

	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/readyz", s.handleReady).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/metrics", s.handleListMetrics).Methods(http.MethodGet)
	api.HandleFunc("/metrics/{metric}", s.handleCalculate).Methods(http.MethodGet)
	api.HandleFunc("/fuel-types", s.handleListFuelTypes).Methods(http.MethodGet)
	api.HandleFunc("/fuel-types", s.handleCreateFuelType).Methods(http.MethodPost)
	api.HandleFunc("/cars", s.handleListCars).Methods(http.MethodGet)
	api.HandleFunc("/cars", s.handleCreateCar).Methods(http.MethodPost)
	api.HandleFunc("/cars/{id:[0-9]+}", s.handleGetCar).Methods(http.MethodGet)
	api.HandleFunc("/cars/{id:[0-9]+}/segments", s.handleSegments).Methods(http.MethodGet)
	api.HandleFunc("/cars/{id:[0-9]+}/consumption", s.handleConsumption).Methods(http.MethodGet)
	api.HandleFunc("/cars/{id:[0-9]+}/costs", s.handleCosts).Methods(http.MethodGet)
	api.HandleFunc("/occurrences", s.handleOccurrences).Methods(http.MethodGet)
	api.HandleFunc("/upcoming", s.handleUpcoming).Methods(http.MethodGet)
	api.HandleFunc("/refuelings", s.handleAddRefueling).Methods(http.MethodPost)
	api.HandleFunc("/other-costs", s.handleAddOtherCost).Methods(http.MethodPost)
	api.HandleFunc("/import", s.handleImport).Methods(http.MethodPost)

	s.Addr = opts.Addr
	s.Handler = r
	s.ReadHeaderTimeout = 5 * time.Second
	s.ReadTimeout = 15 * time.Second
	s.WriteTimeout = 30 * time.Second
	s.IdleTimeout = 60 * time.Second
	return s, nil
}

// Shutdown stops listening for changes and gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		for _, cancel := range s.cancels {
			cancel()
		}
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

func (s *Server) rateLimited(w http.ResponseWriter, r *http.Request) {
	applog.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded",
		applog.FieldMethod, r.Method,
		applog.FieldPath, r.URL.Path)
	writeError(w, r, http.StatusTooManyRequests, "rate limit exceeded")
}

type healthResponse struct {
	Status   string `json:"status"`
	Requests int64  `json:"requests"`
	Cached   int    `json:"cached_results"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	NewResponse().JSON(healthResponse{
		Status:   "ok",
		Requests: s.trace.TotalRequests(),
		Cached:   s.results.Size(),
	}).Write(w)
}

// handleReady reports ready once the store answers a query.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if _, err := s.reader.ListFuelTypes(ctx); err != nil {
		s.logger.WarnContext(ctx, "Readiness check failed", applog.FieldError, err)
		writeError(w, r, http.StatusServiceUnavailable, "store unavailable")
		return
	}
	NewResponse().JSON(healthResponse{Status: "ready"}).Write(w)
}
