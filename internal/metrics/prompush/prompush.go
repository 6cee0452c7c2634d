// Package prompush implements a Prometheus Pushgateway backend for the
// metrics package. A batch ELT run has no long-lived scrape endpoint, so the
// registry is pushed once at the end of the run.
package prompush

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"

	"kaggleelt/internal/metrics"
)

// Backend is a Prometheus Pushgateway metrics backend.
type Backend struct {
	gatewayURL string
	jobName    string
	reg        *prometheus.Registry

	taskCounter  *prometheus.CounterVec
	taskDuration *prometheus.SummaryVec
	rowCounter   *prometheus.CounterVec
	byteCounter  *prometheus.CounterVec
}

// NewBackend constructs a Pushgateway backend. jobName is the Pushgateway
// grouping "job"; it defaults to "kaggle_elt".
func NewBackend(jobName, gatewayURL string) (*Backend, error) {
	if gatewayURL == "" {
		return nil, fmt.Errorf("prompush: gateway URL is required")
	}
	if jobName == "" {
		jobName = "kaggle_elt"
	}

	b := &Backend{
		gatewayURL: gatewayURL,
		jobName:    jobName,
		reg:        prometheus.NewRegistry(),
		taskCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metrics.TaskTotal,
			Help: "Task executions, partitioned by dataset, task and status.",
		}, []string{"dataset", "task", "status"}),
		taskDuration: prometheus.NewSummaryVec(prometheus.SummaryOpts{
			Name:       metrics.TaskDurationSeconds,
			Help:       "Task duration in seconds, partitioned by dataset, task and status.",
			Objectives: map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001},
		}, []string{"dataset", "task", "status"}),
		rowCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metrics.RowsLoadedTotal,
			Help: "Rows bulk-loaded, partitioned by dataset and table.",
		}, []string{"dataset", "table"}),
		byteCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metrics.BytesDownloaded,
			Help: "Bytes downloaded from Kaggle, partitioned by dataset.",
		}, []string{"dataset"}),
	}

	for _, c := range []prometheus.Collector{b.taskCounter, b.taskDuration, b.rowCounter, b.byteCounter} {
		if err := b.reg.Register(c); err != nil {
			return nil, fmt.Errorf("prompush: register collector: %w", err)
		}
	}
	return b, nil
}

// IncCounter implements metrics.Backend. Unknown names are ignored.
func (b *Backend) IncCounter(name string, delta float64, labels metrics.Labels) {
	switch name {
	case metrics.TaskTotal:
		b.taskCounter.WithLabelValues(labels["dataset"], labels["task"], labels["status"]).Add(delta)
	case metrics.RowsLoadedTotal:
		b.rowCounter.WithLabelValues(labels["dataset"], labels["table"]).Add(delta)
	case metrics.BytesDownloaded:
		b.byteCounter.WithLabelValues(labels["dataset"]).Add(delta)
	}
}

// ObserveHistogram implements metrics.Backend.
func (b *Backend) ObserveHistogram(name string, value float64, labels metrics.Labels) {
	if name != metrics.TaskDurationSeconds {
		return
	}
	b.taskDuration.WithLabelValues(labels["dataset"], labels["task"], labels["status"]).Observe(value)
}

// Flush pushes the current registry to the Pushgateway.
func (b *Backend) Flush() error {
	return push.New(b.gatewayURL, b.jobName).
		Gatherer(b.reg).
		Push()
}
