package metrics

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorders(t *testing.T) {
	m := New()

	m.RecordWait("satisfied", 20*time.Millisecond)
	m.RecordWait("satisfied", 40*time.Millisecond)
	m.RecordWait("timeout", time.Second)
	m.RecordRecovery()
	m.RecordSpawn("popup", nil)
	m.RecordSpawn("dialog", errors.New("boom"))
	m.RecordAction("click", nil)
	m.RecordCase("cart", "passed", time.Second)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.waits.WithLabelValues("satisfied")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.waits.WithLabelValues("timeout")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.recoveries))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.spawns.WithLabelValues("popup", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.spawns.WithLabelValues("dialog", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.actions.WithLabelValues("click", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.cases.WithLabelValues("cart", "passed")))
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordWait("timeout", time.Second)
		m.RecordRecovery()
		m.RecordSpawn("popup", nil)
		m.RecordAction("fill", nil)
		m.RecordCase("auth", "failed", time.Second)
	})
	assert.Nil(t, m.Registry())
	assert.NoError(t, m.WriteTextfile("ignored"))
}

func TestWriteTextfile(t *testing.T) {
	m := New()
	m.RecordCase("e2e", "passed", 3*time.Second)

	path := filepath.Join(t.TempDir(), "uiharness.prom")
	require.NoError(t, m.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `uiharness_cases_total{status="passed",suite="e2e"} 1`)
}
