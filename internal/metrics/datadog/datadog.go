// Package datadog sends metrics to a DogStatsD agent. Metric names are
// dotted ("warehouse_load_total" is sent as "warehouse.load.total") and
// labels become sorted "key:value" tags.
package datadog

import (
	"errors"
	"sort"
	"strings"

	"github.com/DataDog/datadog-go/v5/statsd"

	"github.com/vuvuzela92/waregouse-project/internal/metrics"
)

const sampleRate = 1

// Config holds Datadog backend configuration.
type Config struct {
	// Addr is the DogStatsD address, e.g. "127.0.0.1:8125" or
	// "unix:///var/run/datadog/dsd.socket".
	Addr string
	// Namespace is prepended to every metric name, e.g. "prod.".
	Namespace string
	// GlobalTags are sent with every metric, e.g. "env:prod".
	GlobalTags []string
}

// client is the subset of *statsd.Client used by the backend.
type client interface {
	Count(name string, value int64, tags []string, rate float64) error
	Histogram(name string, value float64, tags []string, rate float64) error
	Flush() error
	Close() error
}

// Backend implements metrics.Backend over DogStatsD.
type Backend struct {
	client client
}

// NewBackend dials the agent at cfg.Addr.
func NewBackend(cfg Config) (*Backend, error) {
	if cfg.Addr == "" {
		return nil, errors.New("datadog: Addr is required")
	}
	var opts []statsd.Option
	if cfg.Namespace != "" {
		opts = append(opts, statsd.WithNamespace(cfg.Namespace))
	}
	if len(cfg.GlobalTags) > 0 {
		opts = append(opts, statsd.WithTags(cfg.GlobalTags))
	}
	c, err := statsd.New(cfg.Addr, opts...)
	if err != nil {
		return nil, err
	}
	return &Backend{client: c}, nil
}

// IncCounter sends a count. DogStatsD counts are integers, so fractional
// deltas are truncated.
func (b *Backend) IncCounter(name string, delta float64, labels metrics.Labels) {
	_ = b.client.Count(metricName(name), int64(delta), tags(labels), sampleRate)
}

func (b *Backend) ObserveHistogram(name string, value float64, labels metrics.Labels) {
	_ = b.client.Histogram(metricName(name), value, tags(labels), sampleRate)
}

// Flush sends buffered metrics. The client stays usable, so a scheduler can
// flush after every run.
func (b *Backend) Flush() error { return b.client.Flush() }

// Close flushes and releases the client.
func (b *Backend) Close() error { return b.client.Close() }

func metricName(name string) string { return strings.ReplaceAll(name, "_", ".") }

// tags renders labels as sorted "key:value" pairs. Commas and pipes are
// reserved by the DogStatsD wire format and become underscores.
func tags(lbls metrics.Labels) []string {
	if len(lbls) == 0 {
		return nil
	}
	clean := strings.NewReplacer(",", "_", "|", "_")
	out := make([]string, 0, len(lbls))
	for k, v := range lbls {
		out = append(out, clean.Replace(k)+":"+clean.Replace(v))
	}
	sort.Strings(out)
	return out
}
