// Package metrics holds the Prometheus collectors for the bootstrap service.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Query outcomes.
const (
	OutcomeRedirect = "redirect"
	OutcomeInvalid  = "invalid"
	OutcomeNotFound = "not_found"
	OutcomeError    = "error"
)

// Registry load sources.
const (
	SourceCache    = "cache"
	SourceUpstream = "upstream"
)

// Metrics holds all Prometheus metrics for the service. A nil *Metrics
// records nothing.
type Metrics struct {
	QueriesTotal       *prometheus.CounterVec
	RegistryLoadsTotal *prometheus.CounterVec
	DownloadDuration   *prometheus.HistogramVec
	HTTPRequestsTotal  *prometheus.CounterVec

	gatherer prometheus.Gatherer
}

// New creates the collectors and registers them with reg.
func New(reg *prometheus.Registry) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		QueriesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "rdap_bootstrap_queries_total",
			Help: "Bootstrap queries by RDAP query type and outcome",
		}, []string{"kind", "outcome"}),
		RegistryLoadsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "rdap_bootstrap_registry_loads_total",
			Help: "Registry loads by registry and where the document came from",
		}, []string{"registry", "source"}),
		DownloadDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "rdap_bootstrap_download_duration_seconds",
			Help:    "Latency of upstream registry downloads",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"registry", "result"}),
		HTTPRequestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "rdap_bootstrap_http_requests_total",
			Help: "HTTP responses by route pattern and status code",
		}, []string{"route", "status"}),
		gatherer: reg,
	}
}

// NewDefault registers with a fresh registry that also carries the Go and
// process collectors.
func NewDefault() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return New(reg)
}

// Handler serves the registered metrics in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// ObserveQuery counts a bootstrap query of kind by outcome. A nil Metrics
// ignores all observations, as do the methods below.
func (m *Metrics) ObserveQuery(kind, outcome string) {
	if m == nil {
		return
	}
	m.QueriesTotal.WithLabelValues(kind, outcome).Inc()
}

// ObserveRegistryLoad counts a registry load served from source, either
// the cache or the upstream.
func (m *Metrics) ObserveRegistryLoad(registry, source string) {
	if m == nil {
		return
	}
	m.RegistryLoadsTotal.WithLabelValues(registry, source).Inc()
}

// ObserveDownload records how long a registry download took, labelled ok or
// error by err.
func (m *Metrics) ObserveDownload(registry string, err error, d time.Duration) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.DownloadDuration.WithLabelValues(registry, result).Observe(d.Seconds())
}

// ObserveHTTP counts a response by chi route pattern and status code.
func (m *Metrics) ObserveHTTP(route string, status int) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(route, strconv.Itoa(status)).Inc()
}
