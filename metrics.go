package diffra

import (
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems like
// Prometheus.
type MetricsCollector interface {
	// RecordProcess is called after each array is read and transformed by a
	// worker. duration is the total time taken, err is nil if successful.
	RecordProcess(duration time.Duration, err error)

	// RecordDrop is called when a worker discards an array after a failure.
	RecordDrop(label string)

	// RecordAssemble is called after each Assemble pass. batches is the
	// number of processed batches folded into the buffer.
	RecordAssemble(batches int, duration time.Duration)

	// RecordReload is called after each reload. patterns is the total
	// pattern capacity of the new buffer.
	RecordReload(patterns int, duration time.Duration, err error)

	// RecordExport is called after each archive export.
	RecordExport(bytes int64, duration time.Duration, err error)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
// Use this when metrics collection is not needed.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordProcess(time.Duration, error)         {}
func (NoopMetricsCollector) RecordDrop(string)                          {}
func (NoopMetricsCollector) RecordAssemble(int, time.Duration)          {}
func (NoopMetricsCollector) RecordReload(int, time.Duration, error)     {}
func (NoopMetricsCollector) RecordExport(int64, time.Duration, error)   {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	ProcessCount      atomic.Int64
	ProcessErrors     atomic.Int64
	ProcessTotalNanos atomic.Int64
	DropCount         atomic.Int64
	AssembleCount     atomic.Int64
	AssembledBatches  atomic.Int64
	ReloadCount       atomic.Int64
	ReloadErrors      atomic.Int64
	ExportCount       atomic.Int64
	ExportErrors      atomic.Int64
	ExportBytes       atomic.Int64
}

func (c *BasicMetricsCollector) RecordProcess(d time.Duration, err error) {
	c.ProcessCount.Add(1)
	c.ProcessTotalNanos.Add(int64(d))
	if err != nil {
		c.ProcessErrors.Add(1)
	}
}

func (c *BasicMetricsCollector) RecordDrop(string) {
	c.DropCount.Add(1)
}

func (c *BasicMetricsCollector) RecordAssemble(batches int, _ time.Duration) {
	c.AssembleCount.Add(1)
	c.AssembledBatches.Add(int64(batches))
}

func (c *BasicMetricsCollector) RecordReload(_ int, _ time.Duration, err error) {
	c.ReloadCount.Add(1)
	if err != nil {
		c.ReloadErrors.Add(1)
	}
}

func (c *BasicMetricsCollector) RecordExport(bytes int64, _ time.Duration, err error) {
	c.ExportCount.Add(1)
	c.ExportBytes.Add(bytes)
	if err != nil {
		c.ExportErrors.Add(1)
	}
}
