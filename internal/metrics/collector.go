package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Collector holds the metrics of one cleanup process.
// Each Collector owns its registry so runs never share counters.
type Collector struct {
	registry *prometheus.Registry

	// TargetsTotal counts processed targets by kind and outcome
	TargetsTotal *prometheus.CounterVec

	// BytesFreedTotal tracks bytes of removed targets
	BytesFreedTotal prometheus.Counter

	// TargetSizeBytes tracks the size distribution of removed targets
	TargetSizeBytes prometheus.Histogram

	// RunDuration tracks how long cleanup passes take
	RunDuration prometheus.Histogram

	// LastRunTimestamp records Unix timestamp of the last pass
	LastRunTimestamp prometheus.Gauge

	// LastRunErrors records how many targets failed in the last pass
	LastRunErrors prometheus.Gauge

	// FreeSpacePercent tracks free space on the root filesystem after the pass
	FreeSpacePercent prometheus.Gauge
}

// NewCollector creates and registers all cleanup metrics
func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		TargetsTotal: NewCounterVec(
			"projectcleanup_targets_total",
			"Total number of cleanup targets processed, by kind and outcome.",
			[]string{"kind", "outcome"},
		),
		BytesFreedTotal: NewCounter(
			"projectcleanup_bytes_freed_total",
			"Total bytes freed by removed targets.",
		),
		TargetSizeBytes: NewBytesHistogram(
			"projectcleanup_target_size_bytes",
			"Size of removed targets in bytes.",
		),
		RunDuration: NewDurationHistogram(
			"projectcleanup_run_duration_seconds",
			"Duration of cleanup passes in seconds.",
		),
		LastRunTimestamp: NewGauge(
			"projectcleanup_last_run_timestamp",
			"Timestamp of the last cleanup pass (Unix epoch seconds).",
		),
		LastRunErrors: NewGauge(
			"projectcleanup_last_run_errors",
			"Number of targets that failed in the last cleanup pass.",
		),
		FreeSpacePercent: NewGauge(
			"projectcleanup_free_space_percent",
			"Free space percentage of the filesystem holding the cleanup root.",
		),
	}

	c.registry.MustRegister(
		c.TargetsTotal,
		c.BytesFreedTotal,
		c.TargetSizeBytes,
		c.RunDuration,
		c.LastRunTimestamp,
		c.LastRunErrors,
		c.FreeSpacePercent,
	)

	return c
}

// RecordTarget counts one processed target
func (c *Collector) RecordTarget(kind, outcome string, bytes int64) {
	c.TargetsTotal.WithLabelValues(kind, outcome).Inc()
	if bytes > 0 {
		c.BytesFreedTotal.Add(float64(bytes))
		c.TargetSizeBytes.Observe(float64(bytes))
	}
}

// RecordRun updates the per-pass gauges and duration histogram
func (c *Collector) RecordRun(finished time.Time, duration time.Duration, failed int) {
	c.RunDuration.Observe(duration.Seconds())
	c.LastRunTimestamp.Set(float64(finished.Unix()))
	c.LastRunErrors.Set(float64(failed))
}

// SetFreeSpacePercent records free space on the root filesystem
func (c *Collector) SetFreeSpacePercent(percent float64) {
	c.FreeSpacePercent.Set(percent)
}

// Registry exposes the collector's registry as a Gatherer
func (c *Collector) Registry() prometheus.Gatherer {
	return c.registry
}

// WriteTextfile writes all metrics in the node-exporter textfile format.
// The file is written atomically.
func (c *Collector) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, c.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
