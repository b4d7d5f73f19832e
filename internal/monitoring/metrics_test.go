package monitoring

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/lodeworks/lode/internal/interfaces"
)

func TestMetricsStartAtZero(t *testing.T) {
	m := NewMetrics()

	assert.Zero(t, testutil.ToFloat64(m.TasksProcessed))
	assert.Zero(t, testutil.ToFloat64(m.TasksFailed))
	assert.Zero(t, testutil.ToFloat64(m.ConfigFilesLoaded))
	assert.Zero(t, testutil.ToFloat64(m.ConfigFilesSkipped))
	assert.Zero(t, testutil.ToFloat64(m.ItemsIndexed))
}

func TestTaskObserverCountsOutcomes(t *testing.T) {
	m := NewMetrics()
	observe := m.TaskObserver()

	observe("a", 10*time.Millisecond, false)
	observe("b", 20*time.Millisecond, false)
	observe("c", 5*time.Millisecond, true)

	assert.Equal(t, float64(2), testutil.ToFloat64(m.TasksProcessed))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.TasksFailed))
	assert.Equal(t, 1, testutil.CollectAndCount(m.TaskDuration),
		"duration histogram should be registered")
}

func TestObserveQueueReflectsLiveStats(t *testing.T) {
	m := NewMetrics()

	stats := interfaces.QueueStats{Depth: 3, PriorityDepth: 1, Enqueued: 9}
	m.ObserveQueue(func() interfaces.QueueStats { return stats }, 4)

	families, err := m.Registry().Gather()
	assert.NoError(t, err)

	byName := map[string]float64{}
	for _, family := range families {
		if len(family.Metric) == 1 {
			metric := family.Metric[0]
			switch {
			case metric.Gauge != nil:
				byName[family.GetName()] = metric.Gauge.GetValue()
			case metric.Counter != nil:
				byName[family.GetName()] = metric.Counter.GetValue()
			}
		}
	}

	assert.Equal(t, float64(3), byName["lode_queue_depth"])
	assert.Equal(t, float64(1), byName["lode_queue_priority_depth"])
	assert.Equal(t, float64(9), byName["lode_queue_enqueued_total"])
	assert.Equal(t, float64(4), byName["lode_workers"])

	// Gauges follow the source on the next scrape.
	stats.Depth = 7
	families, err = m.Registry().Gather()
	assert.NoError(t, err)
	for _, family := range families {
		if family.GetName() == "lode_queue_depth" {
			assert.Equal(t, float64(7), family.Metric[0].Gauge.GetValue())
		}
	}
}
