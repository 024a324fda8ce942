package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/simonvc/rentledger/internal/accrual"
	"github.com/simonvc/rentledger/internal/allocation"
	"github.com/simonvc/rentledger/internal/audit"
	"github.com/simonvc/rentledger/internal/events"
	"github.com/simonvc/rentledger/internal/journal"
	"github.com/simonvc/rentledger/internal/keylock"
	"github.com/simonvc/rentledger/internal/ledger"
	"github.com/simonvc/rentledger/internal/metrics"
	"github.com/simonvc/rentledger/internal/statement"
	"github.com/simonvc/rentledger/internal/store"
)

type Server struct {
	store      *store.Store
	accruals   *accrual.Generator
	allocator  *allocation.Engine
	journal    *journal.Journal
	statements *statement.Reconstructor
	auditor    *audit.Auditor

	logger      *zap.Logger
	metrics     *metrics.Metrics
	gatherer    prometheus.Gatherer
	publisher   events.Publisher
	cashAccount string
	now         func() time.Time
	validate    *validator.Validate

	router chi.Router
	addr   string
	http   *http.Server
}

type Option func(*Server)

func WithLogger(l *zap.Logger) Option         { return func(s *Server) { s.logger = l } }
func WithPublisher(p events.Publisher) Option { return func(s *Server) { s.publisher = p } }
func WithCashAccount(code string) Option      { return func(s *Server) { s.cashAccount = code } }
func WithClock(now func() time.Time) Option   { return func(s *Server) { s.now = now } }

// WithMetrics records into m and serves g on /metrics.
func WithMetrics(m *metrics.Metrics, g prometheus.Gatherer) Option {
	return func(s *Server) { s.metrics, s.gatherer = m, g }
}

func New(st *store.Store, addr string, opts ...Option) *Server {
	s := &Server{
		store:       st,
		logger:      zap.NewNop(),
		cashAccount: ledger.CodeCash,
		now:         time.Now,
		validate:    validator.New(),
		addr:        addr,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.metrics == nil {
		reg := prometheus.NewRegistry()
		s.metrics, s.gatherer = metrics.NewMetricsWithRegistry(reg), reg
	}

	// one lock map so accrual, allocation and reversal serialize per student
	locks := keylock.New()
	s.accruals = accrual.New(st, st,
		accrual.WithLogger(s.logger),
		accrual.WithMetrics(s.metrics),
		accrual.WithPublisher(s.publisher),
		accrual.WithClock(s.now),
		accrual.WithLocks(locks),
	)
	s.allocator = allocation.New(st,
		allocation.WithLogger(s.logger),
		allocation.WithMetrics(s.metrics),
		allocation.WithPublisher(s.publisher),
		allocation.WithClock(s.now),
		allocation.WithLocks(locks),
		allocation.WithCashAccount(s.cashAccount),
	)
	s.journal = journal.New(st, st,
		journal.WithLogger(s.logger),
		journal.WithMetrics(s.metrics),
		journal.WithPublisher(s.publisher),
		journal.WithClock(s.now),
	)
	s.statements = statement.New(st,
		statement.WithLogger(s.logger),
		statement.WithMetrics(s.metrics),
		statement.WithClock(s.now),
		statement.WithCharts(st),
	)
	s.auditor = audit.New(st,
		audit.WithLogger(s.logger),
		audit.WithTotals(st),
		audit.WithClock(s.now),
	)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.instrument)
	s.router = r
	s.http = &http.Server{Handler: r, ReadHeaderTimeout: 10 * time.Second}

	r.Get("/health", s.health)
	r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))

	r.Route("/api/v1", func(r chi.Router) {
		// Accruals
		r.Post("/accruals", s.createAccruals)
		r.Post("/accruals/reversals", s.reverseAccrual)

		// Students
		r.Route("/students/{id}", func(r chi.Router) {
			r.Post("/payments", s.allocatePayment)
			r.Post("/credit/apply", s.applyCredit)
			r.Post("/deposit/forfeit", s.forfeitDeposit)
			r.Get("/outstanding", s.outstanding)
		})

		// Ledger entries
		r.Post("/entries", s.createEntry)
		r.Get("/entries", s.listEntries)
		r.Get("/entries/{id}", s.getEntry)
		r.Post("/vendors/{id}/bills", s.createVendorBill)

		// Accounts
		r.Post("/accounts", s.createAccount)
		r.Get("/accounts", s.listAccounts)
		r.Get("/accounts/{code}", s.getAccount)
		r.Delete("/accounts/{code}", s.deactivateAccount)
		r.Get("/chart", s.getChart)

		// Leases
		r.Post("/leases", s.createLease)
		r.Get("/leases", s.listLeases)
		r.Get("/leases/{id}", s.getLease)

		// Reports
		r.Get("/reports/income-statement", s.incomeStatement)
		r.Get("/reports/balance-sheet", s.balanceSheet)
		r.Get("/reports/trial-balance", s.trialBalance)
		r.Get("/reports/monthly", s.monthlyBreakdown)
		r.Get("/reports/audit", s.auditReport)
	})

	return s
}

// instrument logs each request and records it under its route pattern so
// student ids do not explode metric cardinality.
func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := chi.RouteContext(r.Context()).RoutePattern()
		if route == "" {
			route = "unmatched"
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		elapsed := time.Since(start)
		s.metrics.HTTPRequests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		s.metrics.HTTPDuration.WithLabelValues(r.Method, route).Observe(elapsed.Seconds())
		s.logger.Debug("request",
			zap.String("method", r.Method),
			zap.String("route", route),
			zap.Int("status", status),
			zap.Duration("elapsed", elapsed),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(r.Context()); err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) ListenAndServe() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

func (s *Server) Serve(ln net.Listener) error {
	s.logger.Info("rentledger server listening", zap.String("addr", ln.Addr().String()))
	if err := s.http.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func (s *Server) Handler() http.Handler {
	return s.router
}
