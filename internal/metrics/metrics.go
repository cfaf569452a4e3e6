// Package metrics provides a small, backend-agnostic abstraction for recording
// operational metrics from the loader and the marketplace jobs.
//
//   - It exposes a narrow interface (Backend) focused on counters and timing
//     data (histograms).
//   - It provides a global, pluggable backend that defaults to a no-op
//     implementation, so metrics are always safe to call even when no real
//     backend is configured.
//
// Concrete systems live in subpackages (prompush, datadog).
package metrics

import (
	"sync"
	"time"
)

// Metric names emitted by this package.
const (
	StepTotal       = "warehouse_step_total"
	StepDuration    = "warehouse_step_duration_seconds"
	LoadTotal       = "warehouse_load_total"
	LoadDuration    = "warehouse_load_duration_seconds"
	RowsTotal       = "warehouse_rows_total"
	APIRequestTotal = "warehouse_api_requests_total"
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

// nopBackend is used by default so metrics are optional.
type nopBackend struct{}

func (nopBackend) IncCounter(name string, delta float64, labels Labels)       {}
func (nopBackend) ObserveHistogram(name string, value float64, labels Labels) {}
func (nopBackend) Flush() error                                               { return nil }

var (
	mu      sync.RWMutex
	backend Backend = nopBackend{}
)

func current() Backend {
	mu.RLock()
	defer mu.RUnlock()
	return backend
}

// SetBackend installs a concrete backend. Passing nil keeps the existing backend.
func SetBackend(b Backend) {
	if b == nil {
		return
	}
	mu.Lock()
	backend = b
	mu.Unlock()
}

// Flush delegates to the current backend.
func Flush() error {
	return current().Flush()
}

func status(err error) string {
	if err != nil {
		return "failure"
	}
	return "success"
}

// RecordStep measures latency and success/failure of one job step, e.g.
// job="assembly", step="fetch_orders".
func RecordStep(job, step string, err error, d time.Duration) {
	lbls := Labels{"job": job, "step": step, "status": status(err)}
	b := current()
	b.IncCounter(StepTotal, 1, lbls)
	b.ObserveHistogram(StepDuration, d.Seconds(), lbls)
}

// RecordLoad measures one Loader.Load call against a table.
func RecordLoad(table string, err error, d time.Duration) {
	lbls := Labels{"table": table, "status": status(err)}
	b := current()
	b.IncCounter(LoadTotal, 1, lbls)
	b.ObserveHistogram(LoadDuration, d.Seconds(), lbls)
}

// RecordRows increments a row-level counter for a table.
//
// Kinds used by the loader:
//   - "submitted"
//   - "deduplicated"
//   - "written"
func RecordRows(table, kind string, delta int64) {
	if delta <= 0 {
		return
	}
	current().IncCounter(RowsTotal, float64(delta), Labels{"table": table, "kind": kind})
}

// RecordRequest counts one marketplace API request by endpoint and HTTP
// status class ("2xx", "4xx", "error", ...).
func RecordRequest(endpoint, class string) {
	current().IncCounter(APIRequestTotal, 1, Labels{"endpoint": endpoint, "class": class})
}
