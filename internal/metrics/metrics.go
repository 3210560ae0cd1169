package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "weather_cities"

// Outcome labels for provider requests.
const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
)

// Refresh entry results.
const (
	RefreshUpdated = "updated"
	RefreshStale   = "stale"
)

// Collector owns a private registry so several instances can coexist in tests.
// A nil *Collector is valid and records nothing.
type Collector struct {
	registry       *prometheus.Registry
	requests       *prometheus.CounterVec
	duration       *prometheus.HistogramVec
	refreshRuns    prometheus.Counter
	refreshEntries *prometheus.CounterVec
}

func NewCollector() *Collector {
	reg := prometheus.NewRegistry()

	requests := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_requests_total",
			Help:      "Outbound provider requests by endpoint and outcome",
		},
		[]string{"endpoint", "outcome"},
	)
	duration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "provider_request_duration_seconds",
			Help:      "Outbound provider request latencies",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)
	refreshRuns := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "refresh_runs_total",
		Help:      "Completed refresh runs over the saved city list",
	})
	refreshEntries := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "refresh_entries_total",
			Help:      "Cities processed by refresh runs, by result",
		},
		[]string{"result"},
	)

	reg.MustRegister(
		requests,
		duration,
		refreshRuns,
		refreshEntries,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return &Collector{
		registry:       reg,
		requests:       requests,
		duration:       duration,
		refreshRuns:    refreshRuns,
		refreshEntries: refreshEntries,
	}
}

// Handler exposes the collector's registry in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

func (c *Collector) ObserveRequest(endpoint, outcome string, d time.Duration) {
	if c == nil {
		return
	}
	c.requests.WithLabelValues(endpoint, outcome).Inc()
	c.duration.WithLabelValues(endpoint).Observe(d.Seconds())
}

func (c *Collector) ObserveRefresh(updated, stale int) {
	if c == nil {
		return
	}
	c.refreshRuns.Inc()
	c.refreshEntries.WithLabelValues(RefreshUpdated).Add(float64(updated))
	c.refreshEntries.WithLabelValues(RefreshStale).Add(float64(stale))
}
