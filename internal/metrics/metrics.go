package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "yearview"

const (
	ResultSuccess = "success"
	ResultFailure = "failure"
	ResultSkipped = "skipped"
)

// Metrics records outcomes of the external calls made while resolving accounts and
// aggregating events. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	tokenRefreshTotal       *prometheus.CounterVec
	identityResolutionTotal *prometheus.CounterVec
	calendarFetchTotal      *prometheus.CounterVec
	calendarFetchDuration   prometheus.Histogram
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		tokenRefreshTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "token_refresh_total",
			Help:      "Access token refresh attempts by result.",
		}, []string{"result"}),
		identityResolutionTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "identity_resolution_total",
			Help:      "Account identity lookups by endpoint and result.",
		}, []string{"source", "result"}),
		calendarFetchTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "calendar_fetch_total",
			Help:      "Per-calendar event fetches by result.",
		}, []string{"result"}),
		calendarFetchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "calendar_fetch_duration_seconds",
			Help:      "Duration of a single calendar event fetch.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
	}
	m.registry.MustRegister(
		m.tokenRefreshTotal,
		m.identityResolutionTotal,
		m.calendarFetchTotal,
		m.calendarFetchDuration,
		collectors.NewGoCollector(),
	)
	return m
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) TokenRefresh(result string) {
	if m == nil {
		return
	}
	m.tokenRefreshTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) IdentityResolution(source, result string) {
	if m == nil {
		return
	}
	m.identityResolutionTotal.WithLabelValues(source, result).Inc()
}

func (m *Metrics) CalendarFetch(result string, took time.Duration) {
	if m == nil {
		return
	}
	m.calendarFetchTotal.WithLabelValues(result).Inc()
	m.calendarFetchDuration.Observe(took.Seconds())
}
