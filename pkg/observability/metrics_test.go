package observability_test

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aretw0/swapflow/pkg/observability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_NilSafe(t *testing.T) {
	var m *observability.Metrics
	assert.NotPanics(t, func() {
		m.Dispatched("step", "ok", time.Millisecond)
		m.LeaseBusy()
		m.Quoted("ok")
		m.Executed("swap", "success")
		m.RecordRetried()
		m.Reconciled("recorded")
		m.RateLimited()
	})
}

func TestMetrics_HandlerExposesCounters(t *testing.T) {
	m := observability.NewMetrics()
	m.Dispatched("command", "ok", 10*time.Millisecond)
	m.Dispatched("command", "ok", 10*time.Millisecond)
	m.Executed("swap", "pending")

	families, err := m.Registry().Gather()
	require.NoError(t, err)
	var found bool
	for _, f := range families {
		if f.GetName() == "swapflow_dispatch_total" {
			found = true
			assert.Len(t, f.GetMetric(), 1, "one label combination")
		}
	}
	assert.True(t, found)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	assert.Contains(t, string(body), `swapflow_dispatch_total{outcome="ok",rule="command"} 2`)
	assert.Contains(t, string(body), `swapflow_executions_total{kind="swap",status="pending"} 1`)
}
