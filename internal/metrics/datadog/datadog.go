// Package datadog ships pipeline counters and step timings to a DogStatsD
// agent. Metric labels travel as "key:value" tags.
package datadog

import (
	"errors"
	"fmt"
	"math"
	"slices"

	"github.com/DataDog/datadog-go/v5/statsd"

	"recordnorm/internal/metrics"
)

// Config mirrors the metrics section of the normalize config.
type Config struct {
	Addr       string // "127.0.0.1:8125" or "unix:///var/run/datadog/dsd.socket"
	Namespace  string // prefix such as "recordnorm."
	GlobalTags []string
}

// Backend implements metrics.Backend. The zero value drops everything.
type Backend struct {
	client statsd.ClientInterface
}

func NewBackend(cfg Config) (*Backend, error) {
	if cfg.Addr == "" {
		return nil, errors.New("datadog: agent address is required")
	}
	opts := []statsd.Option{statsd.WithTags(cfg.GlobalTags)}
	if cfg.Namespace != "" {
		opts = append(opts, statsd.WithNamespace(cfg.Namespace))
	}

	c, err := statsd.New(cfg.Addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("datadog: dial %s: %w", cfg.Addr, err)
	}
	return &Backend{client: c}, nil
}

// IncCounter sends delta rounded to the nearest integer, since DogStatsD
// counts are whole numbers. Pipeline counters only ever move by whole records
// or fixes.
func (b *Backend) IncCounter(name string, delta float64, labels metrics.Labels) {
	if b.client == nil {
		return
	}
	_ = b.client.Count(name, int64(math.Round(delta)), labelsToTags(labels), 1)
}

func (b *Backend) ObserveHistogram(name string, value float64, labels metrics.Labels) {
	if b.client == nil {
		return
	}
	_ = b.client.Histogram(name, value, labelsToTags(labels), 1)
}

// Flush drains the client buffer and closes it; the backend is spent after.
func (b *Backend) Flush() error {
	if b.client == nil {
		return nil
	}
	return b.client.Close()
}

func labelsToTags(lbls metrics.Labels) []string {
	if len(lbls) == 0 {
		return nil
	}
	tags := make([]string, 0, len(lbls))
	for k, v := range lbls {
		tags = append(tags, k+":"+v)
	}
	slices.Sort(tags)
	return tags
}
