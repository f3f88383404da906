package profiling

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOperationMetricsRecordsCountAndDuration(t *testing.T) {
	om := NewOperationMetrics()

	timer := om.StartOperation("forward")
	time.Sleep(time.Millisecond)
	timer.Stop()

	om.RecordOperation("forward", 5*time.Millisecond)

	m := om.GetMetric("forward")
	require.NotNil(t, m)
	assert.Equal(t, int64(2), m.Count)
	assert.True(t, m.AvgDuration() > 0)
}

func TestGetAllMetricsSortedByTotalDurationDescending(t *testing.T) {
	om := NewOperationMetrics()
	om.RecordOperation("backward", 10*time.Millisecond)
	om.RecordOperation("forward", 1*time.Millisecond)

	all := om.GetAllMetrics()
	require.Len(t, all, 2)
	assert.Equal(t, "backward", all[0].Name)
}

func TestStatisticsCounters(t *testing.T) {
	s := NewStatistics()
	s.IncrementCounter("batches")
	s.AddToCounter("batches", 2)
	assert.Equal(t, int64(3), s.GetCounter("batches"))
}

func TestTraceOperationRunsFnWithoutProfilerInContext(t *testing.T) {
	ran := false
	err := TraceOperation(context.Background(), "op", func() error {
		ran = true
		return nil
	})
	require.NoError(t, err)
	assert.True(t, ran)
}

func TestTraceOperationRecordsWhenProfilerAttached(t *testing.T) {
	p := NewProfiler(DefaultConfig())
	ctx := WithProfiler(context.Background(), p)

	err := TraceOperation(ctx, "forward", func() error { return nil })
	require.NoError(t, err)

	m := p.OperationMetrics.GetMetric("forward")
	require.NotNil(t, m)
	assert.Equal(t, int64(1), m.Count)
}

func TestProfilerStartStopWritesProfiles(t *testing.T) {
	dir := t.TempDir()
	cfg := &Config{
		EnableCPUProfile: true,
		CPUProfilePath:   filepath.Join(dir, "cpu.prof"),
		EnableMemProfile: true,
		MemProfilePath:   filepath.Join(dir, "mem.prof"),
	}
	p := NewProfiler(cfg)

	require.NoError(t, p.Start())
	time.Sleep(time.Millisecond)
	require.NoError(t, p.Stop())

	assert.True(t, p.GetStats().TotalDuration > 0)
	assert.FileExists(t, cfg.CPUProfilePath)
	assert.FileExists(t, cfg.MemProfilePath)
}
