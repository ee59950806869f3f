package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "tasky"

// Metrics holds the Prometheus collectors for provider traffic, task creation
// and the scheduler. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	providerCalls    *prometheus.CounterVec
	providerLatency  *prometheus.HistogramVec
	localLimited     *prometheus.CounterVec
	tasksCreated     *prometheus.CounterVec
	schedulerFires   *prometheus.CounterVec
	schedulerFailure *prometheus.CounterVec
}

// New builds a Metrics instance on its own registry so that several instances
// (one per test, for example) never collide.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		providerCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "llm",
			Name:      "calls_total",
			Help:      "Completion calls by model and outcome.",
		}, []string{"model", "outcome"}),
		providerLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "llm",
			Name:      "call_duration_seconds",
			Help:      "Latency of completion calls.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"model"}),
		localLimited: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "llm",
			Name:      "local_rate_limited_total",
			Help:      "Calls skipped because the local limiter rejected the caller.",
		}, []string{"model"}),
		tasksCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tasks",
			Name:      "created_total",
			Help:      "Tasks created, by source.",
		}, []string{"source"}),
		schedulerFires: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "materialized_total",
			Help:      "Task instances materialized by the scheduler.",
		}, []string{"kind"}),
		schedulerFailure: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "item_failures_total",
			Help:      "Scheduler items that failed and were skipped.",
		}, []string{"kind"}),
	}
	reg.MustRegister(
		m.providerCalls,
		m.providerLatency,
		m.localLimited,
		m.tasksCreated,
		m.schedulerFires,
		m.schedulerFailure,
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ProviderCall records one completion attempt. outcome is "ok",
// "rate_limited", "provider" or "transport".
func (m *Metrics) ProviderCall(model, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.providerCalls.WithLabelValues(model, outcome).Inc()
	m.providerLatency.WithLabelValues(model).Observe(elapsed.Seconds())
}

func (m *Metrics) LocalLimited(model string) {
	if m == nil {
		return
	}
	m.localLimited.WithLabelValues(model).Inc()
}

// TaskCreated counts a persisted task. source is "agent", "api" or "scheduler".
func (m *Metrics) TaskCreated(source string) {
	if m == nil {
		return
	}
	m.tasksCreated.WithLabelValues(source).Inc()
}

// Materialized counts a scheduler-created instance; kind is "repeat" or "recurring".
func (m *Metrics) Materialized(kind string) {
	if m == nil {
		return
	}
	m.schedulerFires.WithLabelValues(kind).Inc()
}

func (m *Metrics) SchedulerFailure(kind string) {
	if m == nil {
		return
	}
	m.schedulerFailure.WithLabelValues(kind).Inc()
}

// Gatherer exposes the registry to tests.
func (m *Metrics) Gatherer() prometheus.Gatherer {
	return m.registry
}
