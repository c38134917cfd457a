package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the storefront
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Economy metrics
	PurchasesTotal       *prometheus.CounterVec
	CoinsDebitedTotal    prometheus.Counter
	CoinsCreditedTotal   prometheus.Counter
	DepositsTotal        *prometheus.CounterVec
	DepositsPending      prometheus.Gauge
	DownloadsAuthorized  prometheus.Counter
	FatalInconsistencies prometheus.Counter

	// Catalog metrics
	CatalogPlugins        prometheus.Gauge
	CatalogDownloadsTotal prometheus.Gauge
	CacheHitsTotal        *prometheus.CounterVec
	CacheMissesTotal      *prometheus.CounterVec

	registry *prometheus.Registry
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry *prometheus.Registry) *Metrics {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "storefront_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "storefront_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		PurchasesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "storefront_purchases_total",
				Help: "Purchase attempts by outcome",
			},
			[]string{"outcome"},
		),
		CoinsDebitedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "storefront_coins_debited_total",
				Help: "Total coins debited by successful purchases",
			},
		),
		CoinsCreditedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "storefront_coins_credited_total",
				Help: "Total coins credited by approved deposits",
			},
		),
		DepositsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "storefront_deposits_total",
				Help: "Deposit workflow transitions by outcome",
			},
			[]string{"outcome"},
		),
		DepositsPending: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "storefront_deposits_pending",
				Help: "Deposit requests currently awaiting moderation",
			},
		),
		DownloadsAuthorized: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "storefront_downloads_authorized_total",
				Help: "Download authorizations granted",
			},
		),
		FatalInconsistencies: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "storefront_fatal_inconsistencies_total",
				Help: "Post-debit failures requiring operator remediation",
			},
		),
		CatalogPlugins: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "storefront_catalog_plugins",
				Help: "Number of plugins currently in the catalog",
			},
		),
		CatalogDownloadsTotal: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "storefront_catalog_downloads_total",
				Help: "Sum of download counters across the catalog",
			},
		),
		CacheHitsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "storefront_cache_hits_total",
				Help: "Catalog cache hits by tier",
			},
			[]string{"tier"},
		),
		CacheMissesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "storefront_cache_misses_total",
				Help: "Catalog cache misses by tier",
			},
			[]string{"tier"},
		),
		registry: registry,
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.PurchasesTotal,
		m.CoinsDebitedTotal,
		m.CoinsCreditedTotal,
		m.DepositsTotal,
		m.DepositsPending,
		m.DownloadsAuthorized,
		m.FatalInconsistencies,
		m.CatalogPlugins,
		m.CatalogDownloadsTotal,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
	)

	return m
}

// Handler returns the /metrics HTTP handler for this registry
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// InstrumentHandler wraps an HTTP handler with request count and duration
// metrics. The path label uses the route template, not the raw URL, to keep
// cardinality bounded.
func (m *Metrics) InstrumentHandler(path string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rw, r)

		m.HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(rw.status)).Inc()
		m.HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}
