// Package prompush implements a Prometheus Pushgateway backend for the
// metrics package. Jobs are short-lived CLI runs, so metrics are pushed at
// the end of a run instead of being scraped.
package prompush

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"

	"github.com/vuvuzela92/waregouse-project/internal/metrics"
)

// taskLabel carries the job name on step metrics. The Pushgateway rejects
// pushed series that carry their own "job" label, since "job" is the grouping
// key of the push itself.
const taskLabel = "task"

// Backend is a Prometheus Pushgateway metrics backend.
type Backend struct {
	gatewayURL string // e.g. http://pushgateway:9091
	jobName    string // Pushgateway "job" group
	reg        *prometheus.Registry

	stepCounter  *prometheus.CounterVec // warehouse_step_total
	stepDuration *prometheus.SummaryVec // warehouse_step_duration_seconds
	loadCounter  *prometheus.CounterVec // warehouse_load_total
	loadDuration *prometheus.SummaryVec // warehouse_load_duration_seconds
	rowCounter   *prometheus.CounterVec // warehouse_rows_total
	reqCounter   *prometheus.CounterVec // warehouse_api_requests_total
}

var objectives = map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001}

// NewBackend constructs a Prometheus Pushgateway backend.
// jobName: the Pushgateway "job" name.
// gatewayURL: base URL of the Pushgateway server.
func NewBackend(jobName, gatewayURL string) (*Backend, error) {
	if gatewayURL == "" {
		return nil, fmt.Errorf("prompush: gateway URL is required")
	}
	if jobName == "" {
		jobName = "warehouse"
	}

	b := &Backend{
		gatewayURL: gatewayURL,
		jobName:    jobName,
		reg:        prometheus.NewRegistry(),
		stepCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metrics.StepTotal,
			Help: "Job step executions by task, step and status.",
		}, []string{taskLabel, "step", "status"}),
		stepDuration: prometheus.NewSummaryVec(prometheus.SummaryOpts{
			Name:       metrics.StepDuration,
			Help:       "Job step duration in seconds.",
			Objectives: objectives,
		}, []string{taskLabel, "step", "status"}),
		loadCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metrics.LoadTotal,
			Help: "Batch loads by destination table and status.",
		}, []string{"table", "status"}),
		loadDuration: prometheus.NewSummaryVec(prometheus.SummaryOpts{
			Name:       metrics.LoadDuration,
			Help:       "Batch load duration in seconds.",
			Objectives: objectives,
		}, []string{"table", "status"}),
		rowCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metrics.RowsTotal,
			Help: "Row counts per table and kind (submitted, deduplicated, written).",
		}, []string{"table", "kind"}),
		reqCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metrics.APIRequestTotal,
			Help: "Marketplace API requests by endpoint and status class.",
		}, []string{"endpoint", "class"}),
	}

	for name, c := range map[string]prometheus.Collector{
		"step counter":    b.stepCounter,
		"step summary":    b.stepDuration,
		"load counter":    b.loadCounter,
		"load summary":    b.loadDuration,
		"row counter":     b.rowCounter,
		"request counter": b.reqCounter,
	} {
		if err := b.reg.Register(c); err != nil {
			return nil, fmt.Errorf("prompush: register %s: %w", name, err)
		}
	}
	return b, nil
}

func (b *Backend) IncCounter(name string, delta float64, labels metrics.Labels) {
	switch name {
	case metrics.StepTotal:
		b.stepCounter.WithLabelValues(labels["job"], labels["step"], labels["status"]).Add(delta)
	case metrics.LoadTotal:
		b.loadCounter.WithLabelValues(labels["table"], labels["status"]).Add(delta)
	case metrics.RowsTotal:
		b.rowCounter.WithLabelValues(labels["table"], labels["kind"]).Add(delta)
	case metrics.APIRequestTotal:
		b.reqCounter.WithLabelValues(labels["endpoint"], labels["class"]).Add(delta)
	default:
		// unknown metric name: ignore
	}
}

func (b *Backend) ObserveHistogram(name string, value float64, labels metrics.Labels) {
	switch name {
	case metrics.StepDuration:
		b.stepDuration.WithLabelValues(labels["job"], labels["step"], labels["status"]).Observe(value)
	case metrics.LoadDuration:
		b.loadDuration.WithLabelValues(labels["table"], labels["status"]).Observe(value)
	}
}

// Flush pushes the current registry to the Pushgateway.
func (b *Backend) Flush() error {
	return push.New(b.gatewayURL, b.jobName).
		Gatherer(b.reg).
		Push()
}
