// Package monitoring exposes application health and metrics over HTTP.
// Metrics are registered on a private Prometheus registry served at
// /metrics; health checks run on an interval and are served at /healthz.
package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/lodeworks/lode/internal/interfaces"
)

// Metrics holds the application's Prometheus collectors.
type Metrics struct {
	registry *prometheus.Registry

	TasksProcessed     prometheus.Counter
	TasksFailed        prometheus.Counter
	TaskDuration       prometheus.Histogram
	ConfigFilesLoaded  prometheus.Counter
	ConfigFilesSkipped prometheus.Counter
	ItemsIndexed       prometheus.Counter
}

// NewMetrics creates the collectors on a fresh registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,
		TasksProcessed: factory.NewCounter(prometheus.CounterOpts{
			Name: "lode_tasks_processed_total",
			Help: "Total number of tasks completed successfully",
		}),
		TasksFailed: factory.NewCounter(prometheus.CounterOpts{
			Name: "lode_tasks_failed_total",
			Help: "Total number of tasks that failed",
		}),
		TaskDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "lode_task_duration_seconds",
			Help:    "Task execution duration in seconds",
			Buckets: prometheus.DefBuckets,
		}),
		ConfigFilesLoaded: factory.NewCounter(prometheus.CounterOpts{
			Name: "lode_config_files_loaded_total",
			Help: "Total number of configuration files loaded",
		}),
		ConfigFilesSkipped: factory.NewCounter(prometheus.CounterOpts{
			Name: "lode_config_files_skipped_total",
			Help: "Total number of configuration files skipped as unusable",
		}),
		ItemsIndexed: factory.NewCounter(prometheus.CounterOpts{
			Name: "lode_items_indexed_total",
			Help: "Total number of content items indexed",
		}),
	}
}

// Registry exposes the underlying registry for the HTTP handler.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// TaskObserver adapts the metrics to the queue's task hook.
func (m *Metrics) TaskObserver() func(name string, duration time.Duration, failed bool) {
	return func(_ string, duration time.Duration, failed bool) {
		if failed {
			m.TasksFailed.Inc()
		} else {
			m.TasksProcessed.Inc()
		}
		m.TaskDuration.Observe(duration.Seconds())
	}
}

// ObserveQueue registers gauges that read queue depth and worker count on
// every scrape.
func (m *Metrics) ObserveQueue(stats func() interfaces.QueueStats, workers int) {
	factory := promauto.With(m.registry)

	factory.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "lode_queue_depth",
		Help: "Tasks waiting in the regular queue",
	}, func() float64 {
		return float64(stats().Depth)
	})
	factory.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "lode_queue_priority_depth",
		Help: "Tasks waiting in the priority queue",
	}, func() float64 {
		return float64(stats().PriorityDepth)
	})
	factory.NewCounterFunc(prometheus.CounterOpts{
		Name: "lode_queue_enqueued_total",
		Help: "Total number of tasks accepted by the queue",
	}, func() float64 {
		return float64(stats().Enqueued)
	})
	factory.NewGauge(prometheus.GaugeOpts{
		Name: "lode_workers",
		Help: "Configured worker pool size",
	}).Set(float64(workers))
}
