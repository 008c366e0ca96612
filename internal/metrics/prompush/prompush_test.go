package prompush

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"recordnorm/internal/metrics"
)

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()

	m := &dto.Metric{}
	require.NoError(t, c.Write(m))
	require.NotNil(t, m.GetCounter())
	return m.GetCounter().GetValue()
}

func TestNewBackend(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		jobName     string
		gatewayURL  string
		wantErr     bool
		wantJobName string
	}{
		{name: "missing gateway URL", jobName: "nightly", wantErr: true},
		{name: "default job name", gatewayURL: "http://pushgateway:9091", wantJobName: "normalize"},
		{name: "explicit job name", jobName: "nightly", gatewayURL: "http://pushgateway:9091", wantJobName: "nightly"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			b, err := NewBackend(tt.jobName, tt.gatewayURL)
			if tt.wantErr {
				require.Error(t, err)
				assert.Nil(t, b)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantJobName, b.jobName)
			assert.Equal(t, tt.gatewayURL, b.gatewayURL)
		})
	}
}

func TestIncCounter(t *testing.T) {
	t.Parallel()

	b, err := NewBackend("normalize", "http://example.com")
	require.NoError(t, err)

	b.IncCounter(metrics.StepTotal, 3, metrics.Labels{"step": "clean", "status": "success"})
	b.IncCounter(metrics.RecordsTotal, 5, metrics.Labels{"kind": "failed"})
	b.IncCounter(metrics.FixesTotal, 2, metrics.Labels{"fix": "headers_removed"})
	b.IncCounter(metrics.FixesTotal, 0.5, metrics.Labels{"fix": "headers_removed"})
	b.IncCounter("unknown_metric", 10, metrics.Labels{"kind": "failed"})

	assert.Equal(t, 3.0, counterValue(t, b.stepCounter.WithLabelValues("clean", "success")))
	assert.Equal(t, 5.0, counterValue(t, b.recordCounter.WithLabelValues("failed")))
	assert.Equal(t, 2.5, counterValue(t, b.fixCounter.WithLabelValues("headers_removed")))
}

// TestNilCollectors checks a zero Backend ignores every call.
func TestNilCollectors(t *testing.T) {
	t.Parallel()

	b := &Backend{}
	b.IncCounter(metrics.StepTotal, 1, metrics.Labels{"step": "s", "status": "success"})
	b.IncCounter(metrics.RecordsTotal, 1, metrics.Labels{"kind": "success"})
	b.IncCounter(metrics.FixesTotal, 1, metrics.Labels{"fix": "x"})
	b.ObserveHistogram(metrics.StepDurationSeconds, 1, metrics.Labels{})
}

func TestObserveHistogram(t *testing.T) {
	t.Parallel()

	b, err := NewBackend("normalize", "http://example.com")
	require.NoError(t, err)

	b.ObserveHistogram(metrics.StepDurationSeconds, 1.5, metrics.Labels{"step": "link", "status": "success"})
	b.ObserveHistogram("other", 9, metrics.Labels{"step": "link", "status": "success"})

	m := &dto.Metric{}
	obs, ok := b.stepDuration.WithLabelValues("link", "success").(prometheus.Metric)
	require.True(t, ok)
	require.NoError(t, obs.Write(m))
	assert.Equal(t, uint64(1), m.GetSummary().GetSampleCount())
	assert.Equal(t, 1.5, m.GetSummary().GetSampleSum())
}

func TestFlushPushesToGateway(t *testing.T) {
	t.Parallel()

	var (
		mu   sync.Mutex
		path string
		body string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		mu.Lock()
		path, body = r.URL.Path, string(raw)
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	b, err := NewBackend("nightly", srv.URL)
	require.NoError(t, err)
	b.IncCounter(metrics.RecordsTotal, 1, metrics.Labels{"kind": "success"})

	require.NoError(t, b.Flush())

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "/metrics/job/nightly", path)
	assert.True(t, strings.Contains(body, metrics.RecordsTotal), "pushed body lacks %s", metrics.RecordsTotal)
}

func TestFlushGatewayError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	b, err := NewBackend("nightly", srv.URL)
	require.NoError(t, err)
	assert.Error(t, b.Flush())
}
