package metrics

import (
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeBackend is a simple in-memory Backend implementation for tests.
type fakeBackend struct {
	mu sync.Mutex

	counters   []counterCall
	histograms []histCall
	flushCount int
}

type counterCall struct {
	name   string
	delta  float64
	labels Labels
}

type histCall struct {
	name   string
	value  float64
	labels Labels
}

func (f *fakeBackend) IncCounter(name string, delta float64, labels Labels) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.counters = append(f.counters, counterCall{name, delta, labels})
}

func (f *fakeBackend) ObserveHistogram(name string, value float64, labels Labels) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.histograms = append(f.histograms, histCall{name, value, labels})
}

func (f *fakeBackend) Flush() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.flushCount++
	return nil
}

func install(t *testing.T) *fakeBackend {
	t.Helper()
	fb := &fakeBackend{}
	SetBackend(fb)
	t.Cleanup(Reset)
	return fb
}

func TestRecordStep_SuccessAndFailure(t *testing.T) {
	fb := install(t)

	RecordStep("jobA", "clean", nil, 2*time.Second)
	RecordStep("jobB", "validate", errors.New("boom"), 1500*time.Millisecond)

	require.Len(t, fb.counters, 2)
	require.Len(t, fb.histograms, 2)

	assert.Equal(t, counterCall{StepTotal, 1, Labels{"job": "jobA", "step": "clean", "status": "success"}}, fb.counters[0])
	assert.Equal(t, StepDurationSeconds, fb.histograms[0].name)
	assert.InDelta(t, 2.0, fb.histograms[0].value, 0.001)

	assert.Equal(t, "failure", fb.counters[1].labels["status"])
	assert.Equal(t, "validate", fb.counters[1].labels["step"])
	assert.InDelta(t, 1.5, fb.histograms[1].value, 0.001)
}

func TestRecordRowAndFixes(t *testing.T) {
	fb := install(t)

	RecordRow("jobX", "success", 3)
	RecordRow("jobX", "failed", 0)
	RecordFixes("jobX", map[string]int{"headers_removed": 2, "noop": 0, "whitespace_normalized": 1})

	require.Len(t, fb.counters, 3)
	assert.Equal(t, counterCall{RecordsTotal, 3, Labels{"job": "jobX", "kind": "success"}}, fb.counters[0])

	fixes := fb.counters[1:]
	sort.Slice(fixes, func(i, j int) bool { return fixes[i].labels["fix"] < fixes[j].labels["fix"] })
	assert.Equal(t, FixesTotal, fixes[0].name)
	assert.Equal(t, "headers_removed", fixes[0].labels["fix"])
	assert.Equal(t, 2.0, fixes[0].delta)
	assert.Equal(t, "whitespace_normalized", fixes[1].labels["fix"])
}

func TestSetBackendAndFlush(t *testing.T) {
	fb := install(t)

	require.NoError(t, Flush())
	assert.Equal(t, 1, fb.flushCount)

	SetBackend(nil)
	assert.Same(t, fb, current())

	Reset()
	assert.Equal(t, nopBackend{}, current())
}
