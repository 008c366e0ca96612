// Package metrics records operational metrics for normalization runs.
//
// The rest of the code depends only on the Backend interface. A process-wide
// backend defaults to a no-op, so every Record* helper is safe to call when
// no metrics system is configured. Concrete systems live in the prompush
// and datadog subpackages.
package metrics

import (
	"sync"
	"time"
)

// Metric names emitted by the helpers below.
const (
	StepTotal           = "normalize_step_total"
	StepDurationSeconds = "normalize_step_duration_seconds"
	RecordsTotal        = "normalize_records_total"
	FixesTotal          = "normalize_fixes_total"
)

// Labels are string key/value pairs attached to a metric.
type Labels map[string]string

// Backend is the minimal interface for metrics backends.
type Backend interface {
	// IncCounter increments a counter by delta.
	IncCounter(name string, delta float64, labels Labels)
	// ObserveHistogram records a value in a duration style metric.
	ObserveHistogram(name string, value float64, labels Labels)
	// Flush pushes or flushes metrics, if the backend needs it.
	Flush() error
}

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

// Reset restores the no-op backend.
func Reset() {
	mu.Lock()
	backend = nopBackend{}
	mu.Unlock()
}

// Flush delegates to the current backend.
func Flush() error {
	return current().Flush()
}

// RecordStep counts one execution of a pipeline stage and observes its
// duration. Stages are "link", "clean", "validate", "infer", "table_clean"
// and the shell steps "decode" and "store".
func RecordStep(job, step string, err error, d time.Duration) {
	status := "success"
	if err != nil {
		status = "failure"
	}

	lbls := Labels{
		"job":    job,
		"step":   step,
		"status": status,
	}

	b := current()
	b.IncCounter(StepTotal, 1, lbls)
	b.ObserveHistogram(StepDurationSeconds, d.Seconds(), lbls)
}

// RecordRow increments a record-level counter for the given job and kind.
//
// Kinds mirror the batch summary: "total", "success", "failed",
// "warnings", "duplicates", and for tables "rows_in", "rows_out".
func RecordRow(job, kind string, delta int64) {
	if delta <= 0 {
		return
	}
	current().IncCounter(RecordsTotal, float64(delta), Labels{
		"job":  job,
		"kind": kind,
	})
}

// RecordFixes adds every non-zero fix counter under its own label.
func RecordFixes(job string, fixes map[string]int) {
	b := current()
	for fix, n := range fixes {
		if n <= 0 {
			continue
		}
		b.IncCounter(FixesTotal, float64(n), Labels{
			"job": job,
			"fix": fix,
		})
	}
}
