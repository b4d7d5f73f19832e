package startup

import (
	"fmt"
	"sort"
	"strings"

	"github.com/lodeworks/lode/internal/config"
	"github.com/lodeworks/lode/internal/errors"
	"github.com/lodeworks/lode/internal/interfaces"
	"github.com/lodeworks/lode/internal/logging"
	"github.com/lodeworks/lode/internal/monitoring"
	"github.com/lodeworks/lode/internal/plugins"
	"github.com/lodeworks/lode/internal/queue"
)

// Singletons is the immutable container of process-lifetime services,
// assembled exactly once during SINGLETON_CREATION and frozen before any
// plugin sees it. Task handlers close over it, which is why construction
// goes through a Builder: the container must not be observable half-built.
type Singletons struct {
	logger     logging.Logger
	cfg        *config.Configuration
	stateStore interfaces.StateStore
	cacheStore interfaces.CacheStore
	dataStore  interfaces.DataStore
	taskQueue  *queue.Queue
	tasks      *queue.TaskRegistry
	metrics    *monitoring.Metrics
}

var _ plugins.SingletonView = (*Singletons)(nil)

// Logger returns the process logger.
func (s *Singletons) Logger() logging.Logger { return s.logger }

// Config returns the final, diff-aware configuration view.
func (s *Singletons) Config() *config.Configuration { return s.cfg }

// StateStore returns the state store singleton.
func (s *Singletons) StateStore() interfaces.StateStore { return s.stateStore }

// CacheStore returns the cache singleton.
func (s *Singletons) CacheStore() interfaces.CacheStore { return s.cacheStore }

// DataStore returns the data store singleton.
func (s *Singletons) DataStore() interfaces.DataStore { return s.dataStore }

// Queue returns the task queue singleton.
func (s *Singletons) Queue() interfaces.TaskQueue { return s.taskQueue }

// Metrics returns the Prometheus collectors.
func (s *Singletons) Metrics() *monitoring.Metrics { return s.metrics }

// TaskNames returns the registered task names, sorted.
func (s *Singletons) TaskNames() []string {
	names := s.tasks.Names()
	sort.Strings(names)
	return names
}

// Builder accumulates singletons as the creation sub-steps complete.
// Freeze validates that every required slot was filled and produces the
// immutable container; the builder must not be reused afterwards.
type Builder struct {
	logger     logging.Logger
	cfg        *config.Configuration
	stateStore interfaces.StateStore
	cacheStore interfaces.CacheStore
	dataStore  interfaces.DataStore
	taskQueue  *queue.Queue
	tasks      *queue.TaskRegistry
	metrics    *monitoring.Metrics
}

// NewBuilder creates an empty singletons builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// SetLogger records the real logger.
func (b *Builder) SetLogger(l logging.Logger) *Builder { b.logger = l; return b }

// SetConfig records the final configuration view.
func (b *Builder) SetConfig(c *config.Configuration) *Builder { b.cfg = c; return b }

// SetStateStore records the state store.
func (b *Builder) SetStateStore(s interfaces.StateStore) *Builder { b.stateStore = s; return b }

// SetCacheStore records the cache.
func (b *Builder) SetCacheStore(s interfaces.CacheStore) *Builder { b.cacheStore = s; return b }

// SetDataStore records the data store.
func (b *Builder) SetDataStore(s interfaces.DataStore) *Builder { b.dataStore = s; return b }

// SetQueue records the task queue.
func (b *Builder) SetQueue(q *queue.Queue) *Builder { b.taskQueue = q; return b }

// SetTaskRegistry records the task registry.
func (b *Builder) SetTaskRegistry(r *queue.TaskRegistry) *Builder { b.tasks = r; return b }

// SetMetrics records the metrics collectors.
func (b *Builder) SetMetrics(m *monitoring.Metrics) *Builder { b.metrics = m; return b }

// Freeze validates the builder and produces the immutable Singletons.
// Every slot must be filled; a missing slot is a sequencing bug in the
// startup manager, not a user error.
func (b *Builder) Freeze() (*Singletons, error) {
	var missing []string
	if b.logger == nil {
		missing = append(missing, "logger")
	}
	if b.cfg == nil {
		missing = append(missing, "configuration")
	}
	if b.stateStore == nil {
		missing = append(missing, "state store")
	}
	if b.cacheStore == nil {
		missing = append(missing, "cache store")
	}
	if b.dataStore == nil {
		missing = append(missing, "data store")
	}
	if b.taskQueue == nil {
		missing = append(missing, "task queue")
	}
	if b.tasks == nil {
		missing = append(missing, "task registry")
	}
	if b.metrics == nil {
		missing = append(missing, "metrics")
	}
	if len(missing) > 0 {
		return nil, errors.NewInternalError(errors.ErrCodeInternalError,
			fmt.Sprintf("singletons incomplete at freeze: %s", strings.Join(missing, ", ")), nil)
	}

	return &Singletons{
		logger:     b.logger,
		cfg:        b.cfg,
		stateStore: b.stateStore,
		cacheStore: b.cacheStore,
		dataStore:  b.dataStore,
		taskQueue:  b.taskQueue,
		tasks:      b.tasks,
		metrics:    b.metrics,
	}, nil
}
