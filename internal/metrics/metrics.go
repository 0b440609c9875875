// Package metrics holds the prometheus collectors for a harness run. A nil
// *Metrics is valid and records nothing.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "uiharness"

// Metrics groups the collectors registered for one run.
type Metrics struct {
	registry *prometheus.Registry

	waits        *prometheus.CounterVec
	waitDuration *prometheus.HistogramVec
	recoveries   prometheus.Counter
	spawns       *prometheus.CounterVec
	actions      *prometheus.CounterVec
	cases        *prometheus.CounterVec
	caseDuration prometheus.Histogram
}

// New registers all collectors on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		waits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "waits_total",
			Help:      "State waits by outcome (satisfied, recovered, timeout, detached).",
		}, []string{"outcome"}),
		waitDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "wait_duration_seconds",
			Help:      "Time spent waiting for UI state.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
		}, []string{"outcome"}),
		recoveries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "wait_recoveries_total",
			Help:      "Recovery actions executed after a first wait timeout.",
		}),
		spawns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "spawns_total",
			Help:      "Spawn races by kind and outcome.",
		}, []string{"kind", "outcome"}),
		actions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "actions_total",
			Help:      "Element actions by type and outcome.",
		}, []string{"action", "outcome"}),
		cases: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cases_total",
			Help:      "Executed test cases by suite and status.",
		}, []string{"suite", "status"}),
		caseDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "case_duration_seconds",
			Help:      "Wall time per test case.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
		}),
	}
	m.registry.MustRegister(m.waits, m.waitDuration, m.recoveries, m.spawns, m.actions, m.cases, m.caseDuration)
	return m
}

// Registry exposes the underlying registry, e.g. for testutil.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// RecordWait counts a finished wait.
func (m *Metrics) RecordWait(outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.waits.WithLabelValues(outcome).Inc()
	m.waitDuration.WithLabelValues(outcome).Observe(elapsed.Seconds())
}

// RecordRecovery counts one executed recovery action.
func (m *Metrics) RecordRecovery() {
	if m == nil {
		return
	}
	m.recoveries.Inc()
}

// RecordSpawn counts a spawn race.
func (m *Metrics) RecordSpawn(kind string, err error) {
	if m == nil {
		return
	}
	m.spawns.WithLabelValues(kind, outcome(err)).Inc()
}

// RecordAction counts an element action.
func (m *Metrics) RecordAction(action string, err error) {
	if m == nil {
		return
	}
	m.actions.WithLabelValues(action, outcome(err)).Inc()
}

// RecordCase counts a finished test case.
func (m *Metrics) RecordCase(suite, status string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.cases.WithLabelValues(suite, status).Inc()
	m.caseDuration.Observe(elapsed.Seconds())
}

// WriteTextfile writes every collector in the text exposition format.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("write metrics: %w", err)
	}
	return nil
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
