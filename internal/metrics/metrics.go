package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "greenhouse_console"

// Metrics holds the console's collectors on a private registry
type Metrics struct {
	registry *prometheus.Registry

	loads        *prometheus.CounterVec
	loadDuration prometheus.Histogram
	mutations    *prometheus.CounterVec
	validations  prometheus.Counter
}

// New registers the collectors on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		loads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "loads_total",
			Help:      "Greenhouse data loads by result (ok, error, stale).",
		}, []string{"result"}),
		loadDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "load_duration_seconds",
			Help:      "Time to fetch rules, sensors and actuators of a greenhouse.",
			Buckets:   prometheus.DefBuckets,
		}),
		mutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rule_mutations_total",
			Help:      "Rule mutations sent to the authority by operation and result.",
		}, []string{"op", "result"}),
		validations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "draft_validation_failures_total",
			Help:      "Draft saves refused before any request.",
		}),
	}
	m.registry.MustRegister(
		m.loads,
		m.loadDuration,
		m.mutations,
		m.validations,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) ObserveLoad(result string, d time.Duration) {
	m.loads.WithLabelValues(result).Inc()
	if result != "stale" {
		m.loadDuration.Observe(d.Seconds())
	}
}

func (m *Metrics) CountMutation(op, result string) {
	m.mutations.WithLabelValues(op, result).Inc()
}

func (m *Metrics) CountValidationFailure() {
	m.validations.Inc()
}

// Registry exposes the registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
