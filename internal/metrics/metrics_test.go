package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecorders(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.RecordLoad("path", "success", 150*time.Millisecond)
	m.RecordCacheLookup(true)
	m.RecordCacheLookup(false)
	m.RecordCacheLookup(false)
	m.RecordFile("parsed")
	m.RecordLossy()
	m.RecordOrganized(2, 10)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.LoadsTotal.WithLabelValues("path", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheLookupsTotal.WithLabelValues("hit")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.CacheLookupsTotal.WithLabelValues("miss")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.LossyInstancesTotal))
	assert.Equal(t, 10.0, testutil.ToFloat64(m.InstancesOrganizedTotal))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordLoad("path", "success", time.Second)
		m.RecordState("done")
		m.RecordFile("failed")
		m.RecordLossy()
		m.RecordCacheLookup(true)
		m.RecordOrganized(1, 1)
	})
}
