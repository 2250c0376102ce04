package databases

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMonitorOperationStatsComputesPercentiles(t *testing.T) {
	m := NewMonitor(Thresholds{})
	for i := 1; i <= 100; i++ {
		m.RecordDuration("search", time.Duration(i)*time.Millisecond)
	}

	stats := m.OperationStats()
	require.Contains(t, stats, "search")
	s := stats["search"]
	assert.EqualValues(t, 100, s.Count)
	assert.Equal(t, 50.0, s.P50Ms)
	assert.Equal(t, 90.0, s.P90Ms)
	assert.Equal(t, 95.0, s.P95Ms)
	assert.Equal(t, 99.0, s.P99Ms)
}

func TestMonitorOperationStatsCapsRollingWindow(t *testing.T) {
	m := NewMonitor(Thresholds{})
	for i := 0; i < maxRollingSamples+50; i++ {
		m.RecordDuration("insert", time.Millisecond)
	}
	stats := m.OperationStats()
	assert.EqualValues(t, maxRollingSamples+50, stats["insert"].Count)
	assert.Len(t, m.stats["insert"].durationMs, maxRollingSamples)
}

func TestMonitorSampleMemoryRecordsRollingHistory(t *testing.T) {
	m := NewMonitor(Thresholds{})
	m.SampleMemory()
	m.SampleMemory()
	samples := m.MemorySamples()
	assert.Len(t, samples, 2)
}

func TestMonitorSampleMemoryTriggersCleanupOnThreshold(t *testing.T) {
	m := NewMonitor(Thresholds{MemHighMb: 1})
	var triggered bool
	m.SetCleanupTrigger(func() { triggered = true })
	m.SampleMemory()
	assert.True(t, triggered, "a 1MB threshold should already be exceeded by the test process heap")

	alerts := m.Alerts()
	require.Len(t, alerts, 1)
	assert.Equal(t, "memory_high", alerts[0].Type)
}

func TestMonitorSampleMemoryNoTriggerBelowThreshold(t *testing.T) {
	m := NewMonitor(Thresholds{MemHighMb: 1 << 30})
	var triggered bool
	m.SetCleanupTrigger(func() { triggered = true })
	m.SampleMemory()
	assert.False(t, triggered)
	assert.Empty(t, m.Alerts())
}

func TestMonitorCheckQueueDepthRaisesAlert(t *testing.T) {
	m := NewMonitor(Thresholds{QueueHighN: 5})
	m.CheckQueueDepth(10)
	alerts := m.Alerts()
	require.Len(t, alerts, 1)
	assert.Equal(t, "queue_depth", alerts[0].Type)
}
