package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectorRecordJob(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollectorWith("delegraph", reg, nil)

	c.RecordJob("completed", 1, 50*time.Millisecond)
	c.RecordJob("completed", 2, 120*time.Millisecond)
	c.RecordJob("failed", 2, 0)

	completed := testutil.ToFloat64(c.jobsTotal.WithLabelValues("completed"))
	assert.Equal(t, float64(2), completed)

	failed := testutil.ToFloat64(c.jobsTotal.WithLabelValues("failed"))
	assert.Equal(t, float64(1), failed)
}

func TestCollectorRecordRun(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollectorWith("delegraph", reg, nil)

	c.RecordRun(false, time.Second)
	c.RecordRun(true, 2*time.Second)
	c.RecordRun(true, time.Second)

	assert.Equal(t, float64(1), testutil.ToFloat64(c.runsTotal.WithLabelValues("success")))
	assert.Equal(t, float64(2), testutil.ToFloat64(c.runsTotal.WithLabelValues("failure")))
}

func TestCollectorBreaker(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollectorWith("delegraph", reg, nil)

	c.RecordBreakerTrip()
	assert.Equal(t, float64(1), testutil.ToFloat64(c.breakerTrips))
	assert.Equal(t, float64(1), testutil.ToFloat64(c.breakerOpen))

	c.SetBreakerOpen(false)
	assert.Equal(t, float64(0), testutil.ToFloat64(c.breakerOpen))
}

func TestCollectorRegistersMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollectorWith("delegraph", reg, nil)

	c.RecordGraph(4, 2)
	c.RecordBatch(2)

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}
