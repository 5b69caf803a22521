package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups the counters and histograms recorded by the service.
type Metrics struct {
	registry *prometheus.Registry

	dispatch        *prometheus.CounterVec
	dispatchLatency *prometheus.HistogramVec
	leaseBusy       prometheus.Counter
	quotes          *prometheus.CounterVec
	executions      *prometheus.CounterVec
	recordRetries   prometheus.Counter
	reconciled      *prometheus.CounterVec
	rateLimited     prometheus.Counter
}

// NewMetrics registers every instrument on a dedicated registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		dispatch: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "swapflow_dispatch_total",
				Help: "Inbound events by routing rule and outcome",
			},
			[]string{"rule", "outcome"},
		),
		dispatchLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "swapflow_dispatch_duration_seconds",
				Help:    "Time spent handling one inbound event, lease wait included",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"rule"},
		),
		leaseBusy: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "swapflow_session_lease_busy_total",
			Help: "Requests rejected because the session lease was held too long",
		}),
		quotes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "swapflow_quotes_total",
				Help: "Aggregator quotes by outcome",
			},
			[]string{"outcome"},
		),
		executions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "swapflow_executions_total",
				Help: "Submitted transactions by kind and status",
			},
			[]string{"kind", "status"},
		),
		recordRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "swapflow_record_retries_total",
			Help: "Retried transaction record writes",
		}),
		reconciled: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "swapflow_reconciled_total",
				Help: "Reconciler actions by result",
			},
			[]string{"result"},
		),
		rateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "swapflow_rate_limited_total",
			Help: "Requests rejected by the per-session rate limiter",
		}),
	}
	m.registry.MustRegister(
		m.dispatch, m.dispatchLatency, m.leaseBusy, m.quotes,
		m.executions, m.recordRetries, m.reconciled, m.rateLimited,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry exposes the underlying registry, mostly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Dispatched(rule, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.dispatch.WithLabelValues(rule, outcome).Inc()
	m.dispatchLatency.WithLabelValues(rule).Observe(elapsed.Seconds())
}

func (m *Metrics) LeaseBusy() {
	if m == nil {
		return
	}
	m.leaseBusy.Inc()
}

func (m *Metrics) Quoted(outcome string) {
	if m == nil {
		return
	}
	m.quotes.WithLabelValues(outcome).Inc()
}

func (m *Metrics) Executed(kind, status string) {
	if m == nil {
		return
	}
	m.executions.WithLabelValues(kind, status).Inc()
}

func (m *Metrics) RecordRetried() {
	if m == nil {
		return
	}
	m.recordRetries.Inc()
}

func (m *Metrics) Reconciled(result string) {
	if m == nil {
		return
	}
	m.reconciled.WithLabelValues(result).Inc()
}

func (m *Metrics) RateLimited() {
	if m == nil {
		return
	}
	m.rateLimited.Inc()
}
