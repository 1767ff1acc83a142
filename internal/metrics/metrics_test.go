package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_RegisterAndRecord(t *testing.T) {
	reg := prometheus.NewPedanticRegistry()
	m := New()
	require.NotPanics(t, func() { m.MustRegister(reg) })

	m.CacheLookup("graph", true)
	m.CacheLookup("graph", false)
	m.CacheLookup("plan", false)
	m.CacheEviction("plan")
	m.ValidationFinding("read_without_write", "error")
	m.PassRecorded("gbuffer", time.Millisecond)
	m.FrameExecuted(2*time.Millisecond, nil)
	m.FrameExecuted(time.Millisecond, errors.New("boom"))
	m.PlanCompiled(PlanStats{AllocatedBytes: 1024, BytesSaved: 512, Rejected: 2, OverBudget: true, Batches: 3})

	assert.Equal(t, 3, testutil.CollectAndCount(m.cacheLookupsTotal))
	assert.Equal(t, 2, testutil.CollectAndCount(m.framesTotal))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.cacheLookupsTotal.WithLabelValues("graph", "hit")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.framesTotal.WithLabelValues("error")))
	assert.Equal(t, float64(512), testutil.ToFloat64(m.aliasBytesSaved))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.aliasRejectedTotal))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.overBudgetTotal))
	assert.Equal(t, float64(3), testutil.ToFloat64(m.batches))

	// Double registration is a programming error.
	assert.Panics(t, func() { m.MustRegister(reg) })
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.CacheLookup("graph", true)
		m.CacheEviction("graph")
		m.ValidationFinding("x", "warning")
		m.PassRecorded("p", time.Second)
		m.FrameExecuted(time.Second, nil)
		m.PlanCompiled(PlanStats{})
	})
}
