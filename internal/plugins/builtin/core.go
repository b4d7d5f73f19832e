// Package builtin holds the plugins that ship with lode itself: the
// core singleton providers and the default content pipeline. They go
// through the same registry and capability interfaces as external
// plugins, so the startup sequence has exactly one wiring path.
package builtin

import (
	"context"

	"github.com/lodeworks/lode/internal/cache"
	"github.com/lodeworks/lode/internal/config"
	"github.com/lodeworks/lode/internal/errors"
	"github.com/lodeworks/lode/internal/interfaces"
	"github.com/lodeworks/lode/internal/logging"
	"github.com/lodeworks/lode/internal/plugins"
	"github.com/lodeworks/lode/internal/queue"
	"github.com/lodeworks/lode/internal/storage"
)

// coreDefaults is the lowest-priority configuration layer contributed
// by the core plugin. Every key here can be overridden by user files.
const coreDefaults = `
logging:
  level: info
  format: text
  dir: ""
storage:
  state:
    driver: sqlite
    path: lode-state.db
  data:
    path: lode-data.db
cache:
  provider: memory
  memory:
    size: 4096
    ttl: 15m
queue:
  workers: 4
  buffer_size: 256
  priority_buffer_size: 64
monitoring:
  enabled: true
  addr: 127.0.0.1:9100
watcher:
  enabled: true
`

// Core provides the default state store, data store, cache, and task
// queue singletons, plus the configuration defaults they read.
type Core struct{}

var (
	_ plugins.ConfigurationProvider = (*Core)(nil)
	_ plugins.SingletonContributor  = (*Core)(nil)
)

// NewCore creates the core plugin.
func NewCore() *Core {
	return &Core{}
}

// Name implements plugins.Plugin.
func (c *Core) Name() string { return "core" }

// Version implements plugins.Plugin.
func (c *Core) Version() string { return "1.0.0" }

// Description implements plugins.Plugin.
func (c *Core) Description() string {
	return "Built-in storage, cache, and queue singletons"
}

// Initialize implements plugins.Plugin. The core plugin has no state of
// its own; the singletons it builds are owned by the startup sequence.
func (c *Core) Initialize(ctx context.Context, cfg *config.Configuration) error {
	return nil
}

// Shutdown implements plugins.Plugin.
func (c *Core) Shutdown(ctx context.Context) error {
	return nil
}

// ConfigurationID implements config.Provider.
func (c *Core) ConfigurationID() string { return "core" }

// DefaultConfiguration implements config.Provider.
func (c *Core) DefaultConfiguration() string { return coreDefaults }

// ContributeSingletons implements plugins.SingletonContributor.
func (c *Core) ContributeSingletons(contrib *plugins.Contribution) error {
	if err := contrib.Provide(plugins.SlotStateStore, newStateStore); err != nil {
		return err
	}
	if err := contrib.Provide(plugins.SlotDataStore, newDataStore); err != nil {
		return err
	}
	if err := contrib.Provide(plugins.SlotCacheStore, cache.New); err != nil {
		return err
	}
	return contrib.Provide(plugins.SlotTaskQueue, newTaskQueue)
}

func newStateStore(ctx context.Context, cfg *config.Configuration, logger logging.Logger) (interfaces.StateStore, error) {
	driver := cfg.GetString("storage.state.driver", "sqlite")
	switch driver {
	case "memory":
		logger.Debug(ctx, "State store initialized", "driver", "memory")
		return storage.NewMemoryStateStore(), nil
	case "sqlite":
		path := cfg.GetString("storage.state.path", "lode-state.db")
		store, err := storage.NewSQLiteStateStore(path)
		if err != nil {
			return nil, err
		}
		logger.Debug(ctx, "State store initialized", "driver", "sqlite", "path", path)
		return store, nil
	default:
		return nil, errors.NewConfigError(errors.ErrCodeConfigInvalid,
			"unknown state store driver "+driver+" (expected sqlite or memory)")
	}
}

func newDataStore(ctx context.Context, cfg *config.Configuration, logger logging.Logger) (interfaces.DataStore, error) {
	path := cfg.GetString("storage.data.path", "lode-data.db")
	store, err := storage.NewSQLiteDataStore(path)
	if err != nil {
		return nil, err
	}
	logger.Debug(ctx, "Data store initialized", "path", path)
	return store, nil
}

func newTaskQueue(ctx context.Context, cfg *config.Configuration, reg *queue.TaskRegistry, logger logging.Logger) (*queue.Queue, error) {
	qcfg := queue.Config{
		Workers:            cfg.GetInt("queue.workers", queue.DefaultWorkers),
		BufferSize:         cfg.GetInt("queue.buffer_size", queue.DefaultBufferSize),
		PriorityBufferSize: cfg.GetInt("queue.priority_buffer_size", queue.DefaultPriorityBufferSize),
	}
	return queue.New(qcfg, reg, logger), nil
}
