// Package metrics exposes Prometheus collectors for the booking API.
package metrics

import (
	"crypto/subtle"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pocketbase/pocketbase/core"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "concierge"

var (
	// Registry holds the application collectors
	Registry = prometheus.NewRegistry()

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of API requests handled.",
		},
		[]string{"method", "route", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of API requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		},
		[]string{"method", "route"},
	)

	payments = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "bookings",
			Name:      "payments_total",
			Help:      "Payments recorded or removed, by action and type.",
		},
		[]string{"action", "type"},
	)

	offers = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "bookings",
			Name:      "offer_events_total",
			Help:      "Offer share links issued and offers converted to reservations.",
		},
		[]string{"event"},
	)

	imported = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "import",
			Name:      "documents_total",
			Help:      "Legacy documents imported, by collection and outcome.",
		},
		[]string{"collection", "outcome"},
	)

	backups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "backup",
			Name:      "runs_total",
			Help:      "Database backup runs, by result.",
		},
		[]string{"result"},
	)
)

func init() {
	Registry.MustRegister(
		httpRequests,
		httpDuration,
		payments,
		offers,
		imported,
		backups,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler returns an HTTP handler exposing the registered metrics
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// routeLabel keeps label cardinality bounded by using the matched route
// pattern rather than the raw path
func routeLabel(r *http.Request) string {
	pattern := r.Pattern
	if i := strings.IndexByte(pattern, ' '); i >= 0 {
		pattern = pattern[i+1:]
	}
	if pattern == "" {
		return "unmatched"
	}
	return pattern
}

// Middleware records count and duration of every /api request
func Middleware(e *core.RequestEvent) error {
	if !strings.HasPrefix(e.Request.URL.Path, "/api/") {
		return e.Next()
	}

	start := time.Now()
	err := e.Next()

	route := routeLabel(e.Request)
	status := e.Status()
	if status == 0 {
		status = http.StatusOK
	}
	httpRequests.WithLabelValues(e.Request.Method, route, strconv.Itoa(status)).Inc()
	httpDuration.WithLabelValues(e.Request.Method, route).Observe(time.Since(start).Seconds())
	return err
}

// RequireToken guards the metrics endpoint with METRICS_TOKEN as a bearer
// token. Without a token the endpoint is disabled.
func RequireToken(e *core.RequestEvent) error {
	token := os.Getenv("METRICS_TOKEN")
	if token == "" {
		return e.JSON(http.StatusNotFound, map[string]string{"error": "Not found"})
	}
	got := strings.TrimPrefix(e.Request.Header.Get("Authorization"), "Bearer ")
	if subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
		return e.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
	}
	return e.Next()
}

// PaymentAdded counts a recorded payment or refund
func PaymentAdded(paymentType string) {
	payments.WithLabelValues("add", paymentType).Inc()
}

// PaymentRemoved counts a removed payment entry
func PaymentRemoved() {
	payments.WithLabelValues("remove", "").Inc()
}

// OfferShared counts an issued share link
func OfferShared() {
	offers.WithLabelValues("shared").Inc()
}

// OfferConverted counts an offer turned into a reservation
func OfferConverted() {
	offers.WithLabelValues("converted").Inc()
}

// Imported counts legacy documents per outcome (created, updated, failed)
func Imported(collection, outcome string, n int) {
	if n > 0 {
		imported.WithLabelValues(collection, outcome).Add(float64(n))
	}
}

// BackupRun counts a finished backup
func BackupRun(err error) {
	result := "success"
	if err != nil {
		result = "error"
	}
	backups.WithLabelValues(result).Inc()
}
