// Package metrics exposes Prometheus instrumentation for the clinic
// server: HTTP request metrics plus counters for the billing workflow.
package metrics

import (
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path"},
	)

	httpRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)

	invoicesCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "invoices_created_total",
			Help: "Total number of invoices created",
		},
		[]string{"source"}, // encounter or direct
	)

	paymentsRecorded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "payments_recorded_total",
			Help: "Total number of payments recorded",
		},
	)

	paymentAmount = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "payment_amount",
			Help:    "Distribution of recorded payment amounts",
			Buckets: []float64{10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		},
	)

	invoiceStatusChanges = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "invoice_status_changes_total",
			Help: "Total number of derived invoice status changes",
		},
		[]string{"from_status", "to_status"},
	)

	encounterStatusChanges = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "encounter_status_changes_total",
			Help: "Total number of encounter status changes",
		},
		[]string{"from_status", "to_status"},
	)
)

// Handler returns the Prometheus exposition endpoint as an echo handler.
func Handler() echo.HandlerFunc {
	return echo.WrapHandler(promhttp.Handler())
}

// Middleware records request counts, latency and in-flight gauge for
// every request.
func Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			httpRequestsInFlight.Inc()
			defer httpRequestsInFlight.Dec()

			err := next(c)

			// Route pattern, not raw path, to keep cardinality bounded.
			path := c.Path()
			if path == "" {
				path = normalizePath(c.Request().URL.Path)
			}
			status := c.Response().Status

			httpRequestsTotal.WithLabelValues(c.Request().Method, path, strconv.Itoa(status)).Inc()
			httpRequestDuration.WithLabelValues(c.Request().Method, path).Observe(time.Since(start).Seconds())

			return err
		}
	}
}

// InvoiceCreated increments the invoice creation counter. source is
// "encounter" for orchestrated billing or "direct".
func InvoiceCreated(source string) {
	invoicesCreated.WithLabelValues(source).Inc()
}

// PaymentRecorded counts a recorded payment and observes its amount.
func PaymentRecorded(amount float64) {
	paymentsRecorded.Inc()
	paymentAmount.Observe(amount)
}

// InvoiceStatusChanged counts a derived invoice status transition.
func InvoiceStatusChanged(from, to string) {
	if from == to {
		return
	}
	invoiceStatusChanges.WithLabelValues(from, to).Inc()
}

// EncounterStatusChanged counts an encounter status transition.
func EncounterStatusChanged(from, to string) {
	if from == to {
		return
	}
	encounterStatusChanges.WithLabelValues(from, to).Inc()
}

// normalizePath collapses id-looking segments so raw paths cannot blow up
// label cardinality when no route pattern is available.
func normalizePath(path string) string {
	segments := strings.Split(path, "/")
	for i, s := range segments {
		if len(s) >= 32 || looksNumeric(s) {
			segments[i] = ":id"
		}
	}
	return strings.Join(segments, "/")
}

func looksNumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
