package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveQuery(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.ObserveQuery("ip", OutcomeRedirect)
	m.ObserveQuery("ip", OutcomeRedirect)
	m.ObserveQuery("autnum", OutcomeInvalid)

	if got := testutil.ToFloat64(m.QueriesTotal.WithLabelValues("ip", OutcomeRedirect)); got != 2 {
		t.Errorf("ip redirects = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.QueriesTotal.WithLabelValues("autnum", OutcomeInvalid)); got != 1 {
		t.Errorf("autnum invalid = %v, want 1", got)
	}
}

func TestObserveDownload(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.ObserveDownload("dns", nil, 20*time.Millisecond)
	m.ObserveDownload("dns", errors.New("boom"), time.Second)

	if n := testutil.CollectAndCount(m.DownloadDuration); n != 2 {
		t.Errorf("got %d series, want 2", n)
	}
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	// Recording on nil is a no-op.
	m.ObserveQuery("ip", OutcomeRedirect)
	m.ObserveRegistryLoad("ipv4", SourceCache)
	m.ObserveDownload("ipv4", nil, time.Second)
	m.ObserveHTTP("/healthz", http.StatusOK)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("got status %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestHandler(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.ObserveRegistryLoad("asn", SourceUpstream)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("got status %d, want %d", rec.Code, http.StatusOK)
	}
	want := `rdap_bootstrap_registry_loads_total{registry="asn",source="upstream"} 1`
	if !strings.Contains(rec.Body.String(), want) {
		t.Errorf("metrics output missing %q", want)
	}
}
