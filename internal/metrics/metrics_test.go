package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

// TestCollectorRegistersMetrics verifies every metric is gathered from the private registry
func TestCollectorRegistersMetrics(t *testing.T) {
	c := NewCollector()
	c.RecordTarget("directory", "removed", 2048)

	mfs, err := c.Registry().Gather()
	require.NoError(t, err)

	found := make(map[string]bool)
	for _, mf := range mfs {
		found[mf.GetName()] = true
	}

	expectedMetrics := []string{
		"projectcleanup_targets_total",
		"projectcleanup_bytes_freed_total",
		"projectcleanup_target_size_bytes",
		"projectcleanup_run_duration_seconds",
		"projectcleanup_last_run_timestamp",
		"projectcleanup_last_run_errors",
		"projectcleanup_free_space_percent",
	}
	for _, expected := range expectedMetrics {
		require.True(t, found[expected], "expected metric %s not found in registry", expected)
	}
}

// TestCollectorsAreIsolated verifies two collectors never share state
func TestCollectorsAreIsolated(t *testing.T) {
	a := NewCollector()
	b := NewCollector()

	a.RecordTarget("file", "absent", 0)

	require.Equal(t, 1.0, testutil.ToFloat64(a.TargetsTotal.WithLabelValues("file", "absent")))
	require.Equal(t, 0.0, testutil.ToFloat64(b.TargetsTotal.WithLabelValues("file", "absent")))
}

// TestRecordTargetCountsBytesOnlyWhenPositive verifies absent and failed targets free nothing
func TestRecordTargetCountsBytesOnlyWhenPositive(t *testing.T) {
	c := NewCollector()

	c.RecordTarget("directory", "removed", 1024)
	c.RecordTarget("file", "removed", 10)
	c.RecordTarget("file", "absent", 0)
	c.RecordTarget("file", "error", 0)

	require.Equal(t, 1034.0, testutil.ToFloat64(c.BytesFreedTotal))
	require.Equal(t, 1.0, testutil.ToFloat64(c.TargetsTotal.WithLabelValues("directory", "removed")))
	require.Equal(t, 1.0, testutil.ToFloat64(c.TargetsTotal.WithLabelValues("file", "error")))
}

func TestRecordRun(t *testing.T) {
	c := NewCollector()
	finished := time.Unix(1700000000, 0)

	c.RecordRun(finished, 250*time.Millisecond, 2)
	c.SetFreeSpacePercent(42.5)

	require.Equal(t, 1700000000.0, testutil.ToFloat64(c.LastRunTimestamp))
	require.Equal(t, 2.0, testutil.ToFloat64(c.LastRunErrors))
	require.Equal(t, 42.5, testutil.ToFloat64(c.FreeSpacePercent))
}

// TestWriteTextfile verifies the textfile output contains recorded samples
func TestWriteTextfile(t *testing.T) {
	c := NewCollector()
	c.RecordTarget("directory", "removed", 4096)

	path := filepath.Join(t.TempDir(), "project_cleanup.prom")
	require.NoError(t, c.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(data)
	require.True(t, strings.Contains(text, `projectcleanup_targets_total{kind="directory",outcome="removed"} 1`), text)
	require.True(t, strings.Contains(text, "projectcleanup_bytes_freed_total 4096"), text)
}

func TestWriteTextfileBadPath(t *testing.T) {
	c := NewCollector()
	err := c.WriteTextfile(filepath.Join(t.TempDir(), "missing", "dir", "x.prom"))
	require.Error(t, err)
}

// TestStandardBuckets verifies that standard bucket definitions are ascending
func TestStandardBuckets(t *testing.T) {
	for name, buckets := range map[string][]float64{
		"duration": DurationBuckets,
		"bytes":    BytesBuckets,
	} {
		for i := 1; i < len(buckets); i++ {
			require.Greater(t, buckets[i], buckets[i-1], "%s buckets not ascending at %d", name, i)
		}
	}
}
