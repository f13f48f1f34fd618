package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/docpipe/docpipe/internal/core/domain"
)

// WorkerMetrics covers both worker consumers: ingestion job processing and
// webhook event dispatch.
type WorkerMetrics struct {
	registry *prometheus.Registry

	jobsTotal     *prometheus.CounterVec
	jobDuration   *prometheus.HistogramVec
	jobsInFlight  prometheus.Gauge
	eventsTotal   *prometheus.CounterVec
	eventDuration *prometheus.HistogramVec
}

func NewWorkerMetrics(service string) *WorkerMetrics {
	registry := prometheus.NewRegistry()

	jobsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docpipe",
			Subsystem: "worker",
			Name:      "ingest_jobs_total",
			Help:      "Ingestion job deliveries by outcome.",
		},
		[]string{"service", "outcome"},
	)
	jobDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "docpipe",
			Subsystem: "worker",
			Name:      "ingest_job_duration_seconds",
			Help:      "Ingestion job handling duration by outcome.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "outcome"},
	)
	jobsInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "docpipe",
			Subsystem: "worker",
			Name:      "ingest_jobs_in_flight",
			Help:      "Number of in-flight ingestion jobs.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	eventsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docpipe",
			Subsystem: "dispatcher",
			Name:      "events_total",
			Help:      "Event deliveries by outcome.",
		},
		[]string{"service", "outcome"},
	)
	eventDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "docpipe",
			Subsystem: "dispatcher",
			Name:      "event_duration_seconds",
			Help:      "Event dispatch duration by outcome.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "outcome"},
	)

	registry.MustRegister(jobsTotal, jobDuration, jobsInFlight, eventsTotal, eventDuration)

	return &WorkerMetrics{
		registry:      registry,
		jobsTotal:     jobsTotal,
		jobDuration:   jobDuration,
		jobsInFlight:  jobsInFlight,
		eventsTotal:   eventsTotal,
		eventDuration: eventDuration,
	}
}

func (m *WorkerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *WorkerMetrics) StartJob() {
	m.jobsInFlight.Inc()
}

func (m *WorkerMetrics) FinishJob(service string, duration time.Duration, outcome domain.Outcome) {
	m.jobsInFlight.Dec()
	label := outcomeLabel(outcome)
	m.jobsTotal.WithLabelValues(service, label).Inc()
	m.jobDuration.WithLabelValues(service, label).Observe(duration.Seconds())
}

func (m *WorkerMetrics) FinishEvent(service string, duration time.Duration, outcome domain.Outcome) {
	label := outcomeLabel(outcome)
	m.eventsTotal.WithLabelValues(service, label).Inc()
	m.eventDuration.WithLabelValues(service, label).Observe(duration.Seconds())
}

func outcomeLabel(outcome domain.Outcome) string {
	switch outcome.Kind {
	case domain.OutcomeRetry:
		return "retry"
	case domain.OutcomeFatal:
		return "fatal"
	default:
		return "ack"
	}
}
