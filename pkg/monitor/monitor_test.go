package monitor

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// writeFakeCgroup populates dir with the subset of cgroup-v2 interface files
// pkg/cgroup's stats readers consume, so the sampler can be exercised
// without root or a real cgroup-v2 mount.
func writeFakeCgroup(t *testing.T, dir string, usageUsec, memCurrent, memMax, rbytes, wbytes uint64) {
	t.Helper()
	files := map[string]string{
		"cpu.stat":         "usage_usec " + itoa(usageUsec) + "\nuser_usec 0\nsystem_usec 0\nnr_periods 0\nnr_throttled 0\nthrottled_usec 0\n",
		"memory.current":   itoa(memCurrent),
		"memory.peak":      itoa(memCurrent),
		"memory.max":       itoa(memMax),
		"memory.swap.current": "0",
		"memory.swap.max":  "max",
		"memory.stat":      "anon 0\nfile 0\nslab 0\nsock 0\nshmem 0\n",
		"io.stat":          "8:0 rbytes=" + itoa(rbytes) + " wbytes=" + itoa(wbytes) + " rios=0 wios=0 dbytes=0 dios=0\n",
		"pids.current":     "1",
		"pids.max":         "max",
	}
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}
}

func itoa(v uint64) string {
	if v == 0 {
		return "0"
	}
	digits := ""
	for v > 0 {
		digits = string(rune('0'+v%10)) + digits
		v /= 10
	}
	return digits
}

func TestSampleOneDerivesCPUMemoryIOFromSuccessiveSamples(t *testing.T) {
	dir := t.TempDir()
	writeFakeCgroup(t, dir, 1_000_000, 50, 100, 1000, 1000)

	s := New()
	s.Watch(dir, Thresholds{})

	s.sampleOne(dir)
	metrics, cpuPct, memPct, ioBps, ok := s.Latest(dir)
	require.True(t, ok)
	require.Equal(t, uint64(1_000_000), metrics.CPU.UsageUsec)
	require.Equal(t, 50.0, memPct)
	require.Zero(t, cpuPct) // no previous sample yet, delta undefined
	require.Zero(t, ioBps)

	time.Sleep(10 * time.Millisecond)
	writeFakeCgroup(t, dir, 1_005_000, 50, 100, 2000, 2000)
	s.sampleOne(dir)

	_, cpuPct, _, ioBps, ok = s.Latest(dir)
	require.True(t, ok)
	require.Greater(t, cpuPct, 0.0)
	require.Greater(t, ioBps, 0.0)
}

func TestUnwatchDropsHistory(t *testing.T) {
	dir := t.TempDir()
	writeFakeCgroup(t, dir, 0, 0, 0, 0, 0)

	s := New()
	s.Watch(dir, Thresholds{})
	s.sampleOne(dir)
	_, _, _, _, ok := s.Latest(dir)
	require.True(t, ok)

	s.Unwatch(dir)
	_, _, _, _, ok = s.Latest(dir)
	require.False(t, ok)
}

func TestThresholdCrossingInvokesAlertCallback(t *testing.T) {
	dir := t.TempDir()
	writeFakeCgroup(t, dir, 0, 90, 100, 0, 0)

	s := New()
	s.Watch(dir, Thresholds{MemoryPercent: 80})

	var gotPath string
	var gotKind AlertKind
	var gotValue float64
	s.OnAlert(func(path string, kind AlertKind, value float64) {
		gotPath, gotKind, gotValue = path, kind, value
	})

	s.sampleOne(dir)
	require.Equal(t, dir, gotPath)
	require.Equal(t, AlertMemoryPercent, gotKind)
	require.Equal(t, 90.0, gotValue)
}

func TestHistoryFiltersByTimeRange(t *testing.T) {
	dir := t.TempDir()
	writeFakeCgroup(t, dir, 0, 0, 0, 0, 0)

	s := New()
	s.Watch(dir, Thresholds{})
	s.sampleOne(dir)

	now := time.Now()
	future := now.Add(time.Hour)
	past := now.Add(-time.Hour)

	all := s.History(dir, past, future)
	require.Len(t, all, 1)

	none := s.History(dir, future, future.Add(time.Hour))
	require.Len(t, none, 0)
}
