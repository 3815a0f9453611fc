package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "forwarder"

// Metrics is the forwarder's self-instrumentation. Each instance owns its
// registry so independent forwarders (and tests) never collide.
type Metrics struct {
	reg *prometheus.Registry

	// IntakeRequests counts intake requests by outcome
	// (accepted, rejected, unavailable).
	IntakeRequests *prometheus.CounterVec

	// TransactionsCreated counts transactions added to the queue.
	TransactionsCreated prometheus.Counter

	// Deliveries counts delivery attempts by result (success, failure).
	Deliveries *prometheus.CounterVec

	// DeliveryDuration measures a single send to the collector.
	DeliveryDuration prometheus.Histogram

	// QueueLive is the number of transactions awaiting delivery.
	QueueLive prometheus.Gauge

	// Flushes counts flush chains started.
	Flushes prometheus.Counter

	// CheckRuns counts check process outcomes
	// (started, refused, spawn_error, succeeded, failed).
	CheckRuns *prometheus.CounterVec
}

// New registers all forwarder metrics on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		reg: reg,
		IntakeRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "intake",
			Name:      "requests_total",
			Help:      "Intake requests by outcome",
		}, []string{"outcome"}),
		TransactionsCreated: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "queue",
			Name:      "transactions_created_total",
			Help:      "Transactions added to the delivery queue",
		}),
		Deliveries: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "delivery",
			Name:      "attempts_total",
			Help:      "Delivery attempts to the collector by result",
		}, []string{"result"}),
		DeliveryDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "delivery",
			Name:      "duration_seconds",
			Help:      "Time spent on a single delivery request",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
		QueueLive: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "queue",
			Name:      "live_transactions",
			Help:      "Transactions awaiting delivery",
		}),
		Flushes: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "queue",
			Name:      "flushes_total",
			Help:      "Flush chains started",
		}),
		CheckRuns: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "checks",
			Name:      "runs_total",
			Help:      "Check process lifecycle events by outcome",
		}, []string{"outcome"}),
	}
}

// Registry exposes the underlying registry (used by tests).
func (m *Metrics) Registry() *prometheus.Registry { return m.reg }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}
