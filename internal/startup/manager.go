// Package startup drives the phased assembly of the application's
// singletons. Phases run strictly in order: bootstrap logging and user
// configuration first, then plugin contributions, then singleton
// creation in a fixed sub-step order, then plugin access to the
// finished singletons, and finally the transition to running. A failure
// anywhere aborts the sequence with an error naming the phase.
package startup

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/lodeworks/lode/internal/config"
	"github.com/lodeworks/lode/internal/errors"
	"github.com/lodeworks/lode/internal/logging"
	"github.com/lodeworks/lode/internal/monitoring"
	"github.com/lodeworks/lode/internal/plugins"
	"github.com/lodeworks/lode/internal/queue"
	"github.com/lodeworks/lode/internal/watcher"
)

// Options carries the inputs resolved by the CLI layer. The environment
// is never read below this point; the config directory and logging
// choices arrive here as plain values.
type Options struct {
	// ConfigDir is the user configuration directory. Empty skips
	// directory loading; a missing directory is not an error.
	ConfigDir string

	// ConfigFile names one explicit configuration file loaded after the
	// directory. Unlike directory entries it must parse.
	ConfigFile string

	// Overlays are YAML documents merged above all user layers, in
	// order. The CLI uses them for flag overrides.
	Overlays []string

	// LogLevel and LogFormat override the merged logging.* keys when
	// non-empty.
	LogLevel  string
	LogFormat string

	// LogOutput receives log lines. Defaults to os.Stdout.
	LogOutput io.Writer

	// SynchronousQueue forces queue.workers to 0 so task handlers run
	// inline on Enqueue. Used by one-shot commands and tests.
	SynchronousQueue bool
}

// Manager executes the startup sequence against a plugin registry.
// It is single-use and single-goroutine: create one, call Run once.
type Manager struct {
	registry *plugins.Registry
	opts     Options

	sink    *logging.BufferedLogSink
	log     logging.Logger
	fileLog *logging.FileLogger
	phase   Phase

	configMgr    *config.Manager
	factory      *config.Factory
	contribution *plugins.Contribution
	builder      *Builder
	singletons   *Singletons
	tasks        *queue.TaskRegistry
	taskQueue    *queue.Queue
	workers      int
}

// NewManager creates a startup manager for the given plugin registry.
func NewManager(registry *plugins.Registry, opts Options) *Manager {
	if opts.LogOutput == nil {
		opts.LogOutput = os.Stdout
	}
	sink := logging.NewBufferedLogSink()
	return &Manager{
		registry: registry,
		opts:     opts,
		sink:     sink,
		log:      sink.WithComponent("startup"),
		builder:  NewBuilder(),
	}
}

// Run executes all five phases and returns the running application.
// On failure the cause is wrapped with the phase name and nothing is
// left running; singletons created before the failure are closed.
func (m *Manager) Run(ctx context.Context) (*App, error) {
	type step struct {
		phase Phase
		fn    func(context.Context) error
	}
	steps := []step{
		{PhaseBootstrap, m.bootstrap},
		{PhaseSingletonContributing, m.contribute},
		{PhaseSingletonCreation, m.createSingletons},
		{PhaseSingletonUsing, m.useSingletons},
	}

	for _, s := range steps {
		if err := m.enter(ctx, s.phase); err != nil {
			return nil, err
		}
		if err := s.fn(ctx); err != nil {
			m.closePartial(ctx)
			return nil, m.fail(ctx, s.phase, err)
		}
	}

	if err := m.enter(ctx, PhaseStart); err != nil {
		return nil, err
	}
	app, err := m.start(ctx)
	if err != nil {
		m.closePartial(ctx)
		return nil, m.fail(ctx, PhaseStart, err)
	}
	return app, nil
}

// enter advances the phase counter. Phases may only move forward one at
// a time; anything else is a sequencing bug.
func (m *Manager) enter(ctx context.Context, p Phase) error {
	if p != m.phase+1 {
		return errors.NewStartupError(errors.ErrCodePhaseOrder,
			fmt.Sprintf("cannot enter phase %s from %s", p, m.phase), nil)
	}
	m.phase = p
	m.log.Info(ctx, "Startup phase entered", "phase", p.String(), "ordinal", int(p))
	return nil
}

func (m *Manager) fail(ctx context.Context, p Phase, cause error) error {
	m.log.Error(ctx, cause, "Startup phase failed",
		"phase", p.String(), "ordinal", int(p))
	return errors.NewStartupError(errors.ErrCodePhaseFailed,
		fmt.Sprintf("Startup failed in phase %d (%s)", int(p), p), cause)
}

// bootstrap (phase 1) prepares the configuration manager with built-in
// and user layers. Plugins are not consulted yet; all logging goes into
// the buffered sink.
func (m *Manager) bootstrap(ctx context.Context) error {
	m.configMgr = config.NewManager(m.sink.WithComponent("config"))
	m.factory = config.NewFactory(m.sink.WithComponent("config"))

	if m.opts.ConfigDir != "" {
		if err := m.configMgr.LoadDirectory(ctx, m.opts.ConfigDir); err != nil {
			return err
		}
	}
	if m.opts.ConfigFile != "" {
		if err := m.configMgr.LoadFile(ctx, m.opts.ConfigFile); err != nil {
			return err
		}
	}
	for _, overlay := range m.opts.Overlays {
		if err := m.configMgr.AddOverlay(overlay); err != nil {
			return err
		}
	}
	if m.opts.SynchronousQueue {
		if err := m.configMgr.AddOverlay("queue:\n  workers: 0\n"); err != nil {
			return err
		}
	}
	return nil
}

// contribute (phase 2) collects configuration defaults and singleton
// factories from plugins, then validates fail-fast that every required
// capability is present before anything is created.
func (m *Manager) contribute(ctx context.Context) error {
	providers := m.registry.ConfigurationProviders()
	if len(providers) == 0 {
		return errors.NewValidationError(errors.ErrCodeProviderInvalid,
			"no configuration providers registered")
	}
	for _, p := range providers {
		if err := m.configMgr.AddProvider(p); err != nil {
			return err
		}
		m.log.Debug(ctx, "Configuration provider registered",
			"plugin", p.Name(), "config_id", p.ConfigurationID())
	}

	m.contribution = plugins.NewContribution()
	for _, c := range m.registry.SingletonContributors() {
		m.contribution.SetSource(c.Name())
		if err := c.ContributeSingletons(m.contribution); err != nil {
			return err
		}
	}
	for _, ignored := range m.contribution.Ignored() {
		m.log.Warn(ctx, nil, "Singleton contribution ignored, slot already taken",
			"contribution", ignored)
	}

	if missing := m.contribution.Missing(); len(missing) > 0 {
		return errors.NewValidationError(errors.ErrCodeSlotUnknown,
			"no singleton providers registered for: "+strings.Join(missing, ", "))
	}
	return nil
}

// createSingletons (phase 3) runs the ordered creation sub-steps. The
// order is load-bearing: the state store must exist before the change
// set can be computed, and the configuration must be final before the
// remaining stores are constructed from it.
func (m *Manager) createSingletons(ctx context.Context) error {
	// 1. Merge all layers into the initial, change-blind view.
	cfg := m.factory.LoadInitial(m.configMgr)
	m.builder.SetConfig(cfg)
	m.log.Debug(ctx, "Initial configuration assembled",
		"providers", len(m.configMgr.ProviderIDs()))

	// 2. Real logger, then replay everything buffered so far into it.
	logger := m.buildLogger(ctx, cfg)
	m.sink.DrainTo(ctx, logger)
	m.log = logger.WithComponent("startup")
	m.builder.SetLogger(logger)
	m.log.Debug(ctx, "Logger created, bootstrap records replayed")

	// 3. State store.
	stateStore, err := m.contribution.StateStore()(ctx, cfg, logger)
	if err != nil {
		return err
	}
	m.builder.SetStateStore(stateStore)
	m.log.Debug(ctx, "State store created",
		"plugin", m.contribution.Source(plugins.SlotStateStore))

	// 4. Change detection against the previous run's snapshot.
	changes, err := m.factory.Complete(ctx, cfg, stateStore)
	if err != nil {
		return err
	}
	m.log.Debug(ctx, "Configuration completed",
		"changed", !changes.Empty())

	// 5. Cache store, from the final configuration.
	cacheStore, err := m.contribution.CacheStore()(ctx, cfg, logger)
	if err != nil {
		return err
	}
	m.builder.SetCacheStore(cacheStore)
	m.log.Debug(ctx, "Cache store created",
		"plugin", m.contribution.Source(plugins.SlotCacheStore))

	// 6. Data store.
	dataStore, err := m.contribution.DataStore()(ctx, cfg, logger)
	if err != nil {
		return err
	}
	m.builder.SetDataStore(dataStore)
	m.log.Debug(ctx, "Data store created",
		"plugin", m.contribution.Source(plugins.SlotDataStore))

	// 7. Task registry and queue. Handlers arrive in the next phase;
	// the registry pointer is already final so the frozen container
	// sees them.
	m.tasks = queue.NewTaskRegistry()
	taskQueue, err := m.contribution.TaskQueue()(ctx, cfg, m.tasks, logger)
	if err != nil {
		return err
	}
	m.taskQueue = taskQueue
	m.builder.SetQueue(taskQueue)
	m.builder.SetTaskRegistry(m.tasks)
	m.workers = cfg.GetInt("queue.workers", queue.DefaultWorkers)
	if m.opts.SynchronousQueue {
		m.workers = 0
	}
	m.log.Debug(ctx, "Task queue created",
		"plugin", m.contribution.Source(plugins.SlotTaskQueue),
		"workers", m.workers, "synchronous", taskQueue.Synchronous())

	// 8. Metrics, observing the queue and the configuration load.
	metrics := monitoring.NewMetrics()
	taskQueue.SetObserver(metrics.TaskObserver())
	metrics.ObserveQueue(taskQueue.Stats, m.workers)
	report := m.configMgr.Report()
	skipped := len(report.Failed())
	metrics.ConfigFilesLoaded.Add(float64(len(report.Files) - skipped))
	metrics.ConfigFilesSkipped.Add(float64(skipped))
	m.builder.SetMetrics(metrics)

	singletons, err := m.builder.Freeze()
	if err != nil {
		return err
	}
	m.singletons = singletons
	m.log.Info(ctx, "Singletons assembled")
	return nil
}

// useSingletons (phase 4) initializes plugins against the final
// configuration and lets singleton users register task handlers.
func (m *Manager) useSingletons(ctx context.Context) error {
	if err := m.registry.InitializeAll(ctx, m.singletons.Config()); err != nil {
		return err
	}
	for _, u := range m.registry.SingletonUsers() {
		if err := u.UseSingletons(m.singletons, m.tasks); err != nil {
			return errors.NewPluginError(errors.ErrCodePluginInit,
				fmt.Sprintf("plugin %q failed to use singletons", u.Name()), err)
		}
	}
	m.log.Debug(ctx, "Task handlers registered", "tasks", m.tasks.Names())
	return nil
}

// start (phase 5) flips the application into its running state: queue
// workers, the monitoring endpoint, and the config-dir watcher.
func (m *Manager) start(ctx context.Context) (*App, error) {
	cfg := m.singletons.Config()
	logger := m.singletons.Logger()

	// Background work outlives the startup call's context.
	appCtx, cancel := context.WithCancel(context.Background())

	app := &App{
		singletons: m.singletons,
		registry:   m.registry,
		taskQueue:  m.taskQueue,
		cancel:     cancel,
		logger:     logger,
		fileLog:    m.fileLog,
	}

	app.pool = queue.NewWorkerPool(m.workers, m.taskQueue, logger)
	app.pool.Start(appCtx)

	if cfg.GetBool("monitoring.enabled", true) {
		health := monitoring.NewHealthMonitor(logger)
		health.RegisterCheck(monitoring.StateStoreHealthChecker(m.singletons.StateStore()))
		health.RegisterCheck(monitoring.DataStoreHealthChecker(m.singletons.DataStore()))
		health.RegisterCheck(monitoring.CacheHealthChecker(m.singletons.CacheStore()))
		health.RegisterCheck(monitoring.QueueHealthChecker(m.taskQueue,
			cfg.GetInt("queue.buffer_size", queue.DefaultBufferSize)))
		health.Start()
		app.health = health

		server := monitoring.NewServer(monitoring.ServerConfig{
			Addr: cfg.GetString("monitoring.addr", monitoring.DefaultAddr),
		}, m.singletons.Metrics(), health, logger)
		if err := server.Start(ctx); err != nil {
			cancel()
			app.pool.Stop()
			health.Stop()
			return nil, err
		}
		app.monitor = server
	}

	if m.opts.ConfigDir != "" && cfg.GetBool("watcher.enabled", true) {
		if _, err := os.Stat(m.opts.ConfigDir); err == nil {
			w, err := watcher.New(logger, 0)
			if err != nil {
				m.log.Warn(ctx, err, "Config watcher unavailable, continuing without it")
			} else {
				w.AddFilter(watcher.YAMLFilter)
				w.AddHandler(watcher.RestartPromptHandler(logger))
				if err := w.WatchDirectory(m.opts.ConfigDir); err != nil {
					m.log.Warn(ctx, err, "Cannot watch configuration directory",
						"dir", m.opts.ConfigDir)
					_ = w.Stop()
				} else {
					w.Start(appCtx)
					app.watcher = w
				}
			}
		}
	}

	m.log.Info(ctx, "Startup complete",
		"plugins", len(m.registry.Plugins()),
		"tasks", len(m.tasks.Names()),
		"workers", m.workers)
	return app, nil
}

// buildLogger constructs the real logger from the merged logging.*
// section, with CLI overrides taking precedence. When logging.dir is
// set, output is teed into a daily file in that directory.
func (m *Manager) buildLogger(ctx context.Context, cfg *config.Configuration) logging.Logger {
	levelName := cfg.GetString("logging.level", "info")
	if m.opts.LogLevel != "" {
		levelName = m.opts.LogLevel
	}
	level, err := logging.ParseLevel(levelName)
	if err != nil {
		m.log.Warn(ctx, err, "Unknown log level, using info", "level", levelName)
	}

	format := cfg.GetString("logging.format", "text")
	if m.opts.LogFormat != "" {
		format = m.opts.LogFormat
	}

	console := logging.NewLogger(&logging.LoggerConfig{
		Level:  level,
		Format: format,
		Output: m.opts.LogOutput,
	})

	dir := cfg.GetString("logging.dir", "")
	if dir == "" {
		return console
	}
	fileLog, err := logging.NewFileLogger(&logging.LoggerConfig{
		Level:  level,
		Format: format,
	}, dir)
	if err != nil {
		m.log.Warn(ctx, err, "Cannot open log file, logging to console only",
			"dir", dir)
		return console
	}
	m.fileLog = fileLog
	return logging.NewMultiLogger(console, fileLog)
}

// closePartial releases singletons created before a phase failure so a
// failed startup never leaks file handles or connections.
func (m *Manager) closePartial(ctx context.Context) {
	if m.taskQueue != nil {
		m.taskQueue.Close()
	}
	if m.builder.dataStore != nil {
		if err := m.builder.dataStore.Close(); err != nil {
			m.log.Warn(ctx, err, "Failed to close data store during abort")
		}
	}
	if m.builder.cacheStore != nil {
		if err := m.builder.cacheStore.Close(); err != nil {
			m.log.Warn(ctx, err, "Failed to close cache store during abort")
		}
	}
	if m.builder.stateStore != nil {
		if err := m.builder.stateStore.Close(); err != nil {
			m.log.Warn(ctx, err, "Failed to close state store during abort")
		}
	}
	if m.fileLog != nil {
		_ = m.fileLog.Close()
	}
}
