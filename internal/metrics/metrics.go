// Package metrics provides a small, backend-agnostic abstraction for recording
// operational metrics from the ELT task graph.
//
// A global, pluggable backend defaults to a no-op implementation, so metrics
// are always safe to call even when no real backend is configured. Concrete
// metric systems live in subpackages (prompush, datadog).
package metrics

import "time"

// Metric names shared by all backends.
const (
	TaskTotal           = "elt_task_total"
	TaskDurationSeconds = "elt_task_duration_seconds"
	RowsLoadedTotal     = "elt_rows_loaded_total"
	BytesDownloaded     = "elt_bytes_downloaded_total"
)

// Labels are string key/value pairs attached to a metric.
type Labels map[string]string

// Backend is the minimal interface for metrics backends.
type Backend interface {
	// IncCounter increments a counter by delta.
	IncCounter(name string, delta float64, labels Labels)
	// ObserveHistogram records a value in a latency/duration style metric.
	ObserveHistogram(name string, value float64, labels Labels)
	// Flush pushes or flushes metrics, if the backend needs it (e.g. Pushgateway).
	Flush() error
}

type nopBackend struct{}

func (nopBackend) IncCounter(name string, delta float64, labels Labels)       {}
func (nopBackend) ObserveHistogram(name string, value float64, labels Labels) {}
func (nopBackend) Flush() error                                               { return nil }

var backend Backend = nopBackend{}

// SetBackend installs a concrete backend. Passing nil keeps the existing
// backend. It must be called before tasks start running.
func SetBackend(b Backend) {
	if b == nil {
		return
	}
	backend = b
}

// Flush delegates to the current backend.
func Flush() error {
	return backend.Flush()
}

// RecordTask measures latency and outcome of one task execution.
func RecordTask(dataset, task, status string, d time.Duration) {
	lbls := Labels{
		"dataset": dataset,
		"task":    task,
		"status":  status,
	}
	backend.IncCounter(TaskTotal, 1, lbls)
	backend.ObserveHistogram(TaskDurationSeconds, d.Seconds(), lbls)
}

// RecordRows counts rows bulk-loaded into table.
func RecordRows(dataset, table string, n int64) {
	if n <= 0 {
		return
	}
	backend.IncCounter(RowsLoadedTotal, float64(n), Labels{
		"dataset": dataset,
		"table":   table,
	})
}

// RecordDownload counts bytes fetched for a dataset file.
func RecordDownload(dataset string, n int64) {
	if n <= 0 {
		return
	}
	backend.IncCounter(BytesDownloaded, float64(n), Labels{"dataset": dataset})
}
