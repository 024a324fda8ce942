// Package metrics holds the Prometheus instruments of the ledger service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the application
type Metrics struct {
	// Accrual batch metrics
	AccrualsCreated  prometheus.Counter
	AccrualsSkipped  prometheus.Counter
	AccrualErrors    *prometheus.CounterVec
	AccrualsReversed prometheus.Counter

	// Allocation metrics
	PaymentsAllocated prometheus.Counter
	AllocatedAmount   *prometheus.CounterVec
	CreditApplied     prometheus.Counter
	DepositsForfeited prometheus.Counter

	// Ledger write metrics
	EntriesPosted *prometheus.CounterVec

	// Reporting metrics
	ReportDuration *prometheus.HistogramVec

	// HTTP metrics
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec
}

// NewMetrics initializes and registers Prometheus metrics
func NewMetrics() *Metrics {
	return NewMetricsWithRegistry(nil)
}

// NewMetricsWithRegistry initializes and registers Prometheus metrics with a custom registry
func NewMetricsWithRegistry(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}
	factory := promauto.With(registry)

	return &Metrics{
		AccrualsCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "rentledger_accruals_created_total",
			Help: "The total number of monthly rental accruals posted",
		}),
		AccrualsSkipped: factory.NewCounter(prometheus.CounterOpts{
			Name: "rentledger_accruals_skipped_total",
			Help: "The total number of leases skipped because the month was already accrued or owed nothing",
		}),
		AccrualErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "rentledger_accrual_errors_total",
			Help: "The total number of leases that failed during an accrual batch",
		}, []string{"reason"}),
		AccrualsReversed: factory.NewCounter(prometheus.CounterOpts{
			Name: "rentledger_accruals_reversed_total",
			Help: "The total number of rental accruals reversed",
		}),
		PaymentsAllocated: factory.NewCounter(prometheus.CounterOpts{
			Name: "rentledger_payments_allocated_total",
			Help: "The total number of payments allocated",
		}),
		AllocatedAmount: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "rentledger_allocated_amount_total",
			Help: "The total amount of cash allocated, by allocation type",
		}, []string{"allocation_type"}),
		CreditApplied: factory.NewCounter(prometheus.CounterOpts{
			Name: "rentledger_credit_applied_amount_total",
			Help: "The total amount of unapplied credit applied to outstanding months",
		}),
		DepositsForfeited: factory.NewCounter(prometheus.CounterOpts{
			Name: "rentledger_deposits_forfeited_amount_total",
			Help: "The total amount of security deposits forfeited to income",
		}),
		EntriesPosted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "rentledger_entries_posted_total",
			Help: "The total number of ledger entries posted, by source",
		}, []string{"source"}),
		ReportDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "rentledger_report_duration_seconds",
			Help:    "Time taken to reconstruct a statement",
			Buckets: prometheus.DefBuckets,
		}, []string{"report"}),
		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "rentledger_http_requests_total",
			Help: "The total number of HTTP requests, by route and status",
		}, []string{"method", "route", "status"}),
		HTTPDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "rentledger_http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
}

// NewUnregistered returns metrics backed by a private registry, for
// components constructed without a shared one.
func NewUnregistered() *Metrics {
	return NewMetricsWithRegistry(prometheus.NewRegistry())
}
