package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusMetrics wraps prometheus collectors for weft runtime metrics.
type PrometheusMetrics struct {
	registry *prometheus.Registry

	invocationsTotal  *prometheus.CounterVec
	invocationSeconds prometheus.Histogram

	capabilityMints      prometheus.Counter
	capabilityDelegates  prometheus.Counter
	capabilityDenials    prometheus.Counter

	scheduledTasksTotal *prometheus.CounterVec
}

var defaultBuckets = []float64{0.1, 0.5, 1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500}

var promMetrics *PrometheusMetrics

// InitPrometheus initializes the Prometheus metrics subsystem.
func InitPrometheus(namespace string, buckets []float64) {
	if len(buckets) == 0 {
		buckets = defaultBuckets
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(prometheus.NewGoCollector())
	registry.MustRegister(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))

	pm := &PrometheusMetrics{
		registry: registry,
		invocationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "verb_invocations_total",
				Help:      "Total number of verb invocations by outcome.",
			},
			[]string{"status"},
		),
		invocationSeconds: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "verb_invocation_duration_ms",
				Help:      "Verb invocation latency in milliseconds.",
				Buckets:   buckets,
			},
		),
		capabilityMints: prometheus.NewCounter(
			prometheus.CounterOpts{Namespace: namespace, Name: "capability_mints_total", Help: "Total capabilities minted."},
		),
		capabilityDelegates: prometheus.NewCounter(
			prometheus.CounterOpts{Namespace: namespace, Name: "capability_delegations_total", Help: "Total capabilities delegated."},
		),
		capabilityDenials: prometheus.NewCounter(
			prometheus.CounterOpts{Namespace: namespace, Name: "capability_denials_total", Help: "Total verb calls denied for missing capability."},
		),
		scheduledTasksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{Namespace: namespace, Name: "scheduled_tasks_total", Help: "Total scheduled tasks processed by outcome."},
			[]string{"status"},
		),
	}

	registry.MustRegister(
		pm.invocationsTotal, pm.invocationSeconds,
		pm.capabilityMints, pm.capabilityDelegates, pm.capabilityDenials,
		pm.scheduledTasksTotal,
	)

	promMetrics = pm
}

// ObserveInvocation records a verb invocation into the Prometheus histogram/counter.
func ObserveInvocation(success bool, ms float64) {
	if promMetrics == nil {
		return
	}
	status := "success"
	if !success {
		status = "error"
	}
	promMetrics.invocationsTotal.WithLabelValues(status).Inc()
	promMetrics.invocationSeconds.Observe(ms)
}

// ObserveCapabilityMint increments the capability-mint counter.
func ObserveCapabilityMint() {
	if promMetrics != nil {
		promMetrics.capabilityMints.Inc()
	}
}

// ObserveCapabilityDelegate increments the capability-delegation counter.
func ObserveCapabilityDelegate() {
	if promMetrics != nil {
		promMetrics.capabilityDelegates.Inc()
	}
}

// ObserveCapabilityDenial increments the capability-denial counter.
func ObserveCapabilityDenial() {
	if promMetrics != nil {
		promMetrics.capabilityDenials.Inc()
	}
}

// ObserveScheduledTask records the outcome of a processed scheduled task.
func ObserveScheduledTask(success bool) {
	if promMetrics == nil {
		return
	}
	status := "success"
	if !success {
		status = "error"
	}
	promMetrics.scheduledTasksTotal.WithLabelValues(status).Inc()
}

// Handler returns the HTTP handler that serves the Prometheus registry.
func Handler() http.Handler {
	if promMetrics == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(promMetrics.registry, promhttp.HandlerOpts{})
}
