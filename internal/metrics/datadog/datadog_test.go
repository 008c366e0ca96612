package datadog

import (
	"net"
	"strings"
	"testing"
	"time"

	"github.com/DataDog/datadog-go/v5/statsd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"recordnorm/internal/metrics"
)

func TestNewBackend_RequiresAddr(t *testing.T) {
	t.Parallel()

	b, err := NewBackend(Config{})
	require.Error(t, err)
	assert.Nil(t, b)
}

func TestLabelsToTags(t *testing.T) {
	t.Parallel()

	assert.Nil(t, labelsToTags(nil))
	assert.Equal(t,
		[]string{"job:nightly", "kind:failed"},
		labelsToTags(metrics.Labels{"kind": "failed", "job": "nightly"}))
}

func TestZeroBackendIsNoop(t *testing.T) {
	t.Parallel()

	b := &Backend{}
	b.IncCounter(metrics.RecordsTotal, 1, nil)
	b.ObserveHistogram(metrics.StepDurationSeconds, 1, nil)
	assert.NoError(t, b.Flush())
}

type countCall struct {
	name  string
	value int64
	tags  []string
}

type recordingClient struct {
	*statsd.NoOpClient
	counts []countCall
}

func (c *recordingClient) Count(name string, value int64, tags []string, _ float64) error {
	c.counts = append(c.counts, countCall{name, value, tags})
	return nil
}

func TestIncCounter_RoundsDelta(t *testing.T) {
	t.Parallel()

	tests := []struct {
		delta float64
		want  int64
	}{
		{1, 1},
		{2.6, 3},
		{0.4, 0},
		{-1.5, -2},
	}
	for _, tt := range tests {
		rc := &recordingClient{NoOpClient: &statsd.NoOpClient{}}
		b := &Backend{client: rc}
		b.IncCounter(metrics.FixesTotal, tt.delta, metrics.Labels{"fix": "whitespace_normalized"})

		require.Len(t, rc.counts, 1)
		assert.Equal(t, tt.want, rc.counts[0].value, "delta %v", tt.delta)
		assert.Equal(t, []string{"fix:whitespace_normalized"}, rc.counts[0].tags)
	}
}

// TestBackend_SendsOverUDP reads the datagrams a real client emits.
func TestBackend_SendsOverUDP(t *testing.T) {
	conn, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	defer conn.Close()

	b, err := NewBackend(Config{Addr: conn.LocalAddr().String(), Namespace: "recordnorm."})
	require.NoError(t, err)

	b.IncCounter(metrics.RecordsTotal, 2, metrics.Labels{"kind": "success"})
	require.NoError(t, b.Flush())

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	buf := make([]byte, 4096)
	n, _, err := conn.ReadFrom(buf)
	require.NoError(t, err)

	got := string(buf[:n])
	assert.True(t, strings.Contains(got, "recordnorm."+metrics.RecordsTotal+":2|c"), got)
	assert.True(t, strings.Contains(got, "kind:success"), got)
}
