// Package metrics exposes diagnostic counters to Prometheus.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks diagnostics served and rejected.
type Metrics struct {
	Diagnostics     *prometheus.CounterVec
	DomainErrors    *prometheus.CounterVec
	AuthRejections  *prometheus.CounterVec
	HistoryFailures prometheus.Counter
	Duration        *prometheus.HistogramVec
	SSESubscribers  prometheus.Gauge
}

// New registers every metric with reg. Pass prometheus.DefaultRegisterer in
// production and a fresh registry in tests.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Diagnostics: f.NewCounterVec(prometheus.CounterOpts{
			Name: "battdiag_diagnostics_total",
			Help: "Diagnostics completed, by kind and chemistry",
		}, []string{"kind", "chemistry"}),
		DomainErrors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "battdiag_domain_errors_total",
			Help: "Diagnostics rejected with a domain error, by kind and error kind",
		}, []string{"kind", "error"}),
		AuthRejections: f.NewCounterVec(prometheus.CounterOpts{
			Name: "battdiag_auth_rejections_total",
			Help: "Requests rejected by API key checks, by reason",
		}, []string{"reason"}),
		HistoryFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "battdiag_history_failures_total",
			Help: "History appends that failed",
		}),
		Duration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "battdiag_diagnostic_duration_seconds",
			Help:    "Time spent computing a diagnostic",
			Buckets: []float64{0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01},
		}, []string{"kind"}),
		SSESubscribers: f.NewGauge(prometheus.GaugeOpts{
			Name: "battdiag_sse_subscribers",
			Help: "Open event stream connections",
		}),
	}
}

// ObserveDiagnostic records a completed diagnostic.
// Call with time.Now() at the start of the computation.
func (m *Metrics) ObserveDiagnostic(kind, chemistry string, start time.Time) {
	if m == nil {
		return
	}
	m.Diagnostics.WithLabelValues(kind, chemistry).Inc()
	m.Duration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
}

func (m *Metrics) IncDomainError(kind, errKind string) {
	if m == nil {
		return
	}
	m.DomainErrors.WithLabelValues(kind, errKind).Inc()
}

func (m *Metrics) IncAuthRejection(reason string) {
	if m == nil {
		return
	}
	m.AuthRejections.WithLabelValues(reason).Inc()
}

func (m *Metrics) IncHistoryFailure() {
	if m == nil {
		return
	}
	m.HistoryFailures.Inc()
}

func (m *Metrics) SubscriberDelta(d float64) {
	if m == nil {
		return
	}
	m.SSESubscribers.Add(d)
}
