package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the engine's Prometheus collectors on a dedicated registry,
// so tests can create isolated instances without collector name collisions.
type Metrics struct {
	registry *prometheus.Registry

	FetchAttempts  *prometheus.CounterVec
	FetchFailures  *prometheus.CounterVec
	Fallbacks      prometheus.Counter
	Articles       prometheus.Counter
	SessionsInUse  prometheus.GaugeFunc
	BatchDuration  prometheus.Histogram
	SourcesHandled *prometheus.CounterVec
}

// New creates a Metrics instance. statsFn feeds the sessions-in-use gauge;
// pass nil when no browser pool is running.
func New(statsFn func() int) *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,
		FetchAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "aisfeed",
			Name:      "fetch_attempts_total",
			Help:      "Fetch attempts by method and outcome.",
		}, []string{"method", "outcome"}),
		FetchFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "aisfeed",
			Name:      "fetch_failures_total",
			Help:      "Source-level failures by error code.",
		}, []string{"code"}),
		Fallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "aisfeed",
			Name:      "dynamic_fallbacks_total",
			Help:      "Resolutions that escalated to the browser.",
		}),
		Articles: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "aisfeed",
			Name:      "articles_total",
			Help:      "Articles produced across all sources.",
		}),
		BatchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "aisfeed",
			Name:      "batch_duration_seconds",
			Help:      "Wall time of whole batch runs.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
		}),
		SourcesHandled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "aisfeed",
			Name:      "sources_handled_total",
			Help:      "Sources processed by routing kind.",
		}, []string{"kind"}),
	}

	if statsFn == nil {
		statsFn = func() int { return 0 }
	}
	m.SessionsInUse = prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: "aisfeed",
		Name:      "browser_sessions_in_use",
		Help:      "Browser sessions currently lent out.",
	}, func() float64 { return float64(statsFn()) })

	reg.MustRegister(
		m.FetchAttempts,
		m.FetchFailures,
		m.Fallbacks,
		m.Articles,
		m.SessionsInUse,
		m.BatchDuration,
		m.SourcesHandled,
	)
	return m
}

// Handler exposes the registry for scraping.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
