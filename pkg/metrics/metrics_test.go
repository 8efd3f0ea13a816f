package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveDiagnostic(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveDiagnostic("soc", "Li-ion", time.Now())
	m.ObserveDiagnostic("soc", "Li-ion", time.Now())
	m.ObserveDiagnostic("soh", "", time.Now())

	if got := testutil.ToFloat64(m.Diagnostics.WithLabelValues("soc", "Li-ion")); got != 2 {
		t.Errorf("soc counter = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.Diagnostics.WithLabelValues("soh", "")); got != 1 {
		t.Errorf("soh counter = %v, want 1", got)
	}
}

func TestCounters(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.IncDomainError("soc", "InvalidVoltage")
	m.IncAuthRejection("missing")
	m.IncHistoryFailure()
	m.SubscriberDelta(1)
	m.SubscriberDelta(1)
	m.SubscriberDelta(-1)

	if got := testutil.ToFloat64(m.DomainErrors.WithLabelValues("soc", "InvalidVoltage")); got != 1 {
		t.Errorf("domain errors = %v", got)
	}
	if got := testutil.ToFloat64(m.AuthRejections.WithLabelValues("missing")); got != 1 {
		t.Errorf("auth rejections = %v", got)
	}
	if got := testutil.ToFloat64(m.HistoryFailures); got != 1 {
		t.Errorf("history failures = %v", got)
	}
	if got := testutil.ToFloat64(m.SSESubscribers); got != 1 {
		t.Errorf("subscribers = %v", got)
	}
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.ObserveDiagnostic("soc", "", time.Now())
	m.IncDomainError("soc", "x")
	m.IncAuthRejection("x")
	m.IncHistoryFailure()
	m.SubscriberDelta(1)
}
