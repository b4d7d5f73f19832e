package startup

import (
	"context"
	"strings"
	"sync"

	"github.com/lodeworks/lode/internal/config"
	"github.com/lodeworks/lode/internal/errors"
	"github.com/lodeworks/lode/internal/logging"
	"github.com/lodeworks/lode/internal/monitoring"
	"github.com/lodeworks/lode/internal/plugins"
	"github.com/lodeworks/lode/internal/queue"
	"github.com/lodeworks/lode/internal/watcher"
)

// App is the running application returned by a successful startup.
// Shutdown tears the pieces down in reverse creation order and is safe
// to call more than once.
type App struct {
	singletons *Singletons
	registry   *plugins.Registry
	taskQueue  *queue.Queue
	pool       *queue.WorkerPool
	health     *monitoring.HealthMonitor
	monitor    *monitoring.Server
	watcher    *watcher.ConfigWatcher
	cancel     context.CancelFunc
	logger     logging.Logger
	fileLog    *logging.FileLogger

	shutdownOnce sync.Once
	shutdownErr  error
}

// Singletons returns the immutable singleton container.
func (a *App) Singletons() *Singletons { return a.singletons }

// Config returns the final configuration view.
func (a *App) Config() *config.Configuration { return a.singletons.Config() }

// Logger returns the process logger.
func (a *App) Logger() logging.Logger { return a.logger }

// Queue returns the task queue.
func (a *App) Queue() *queue.Queue { return a.taskQueue }

// Shutdown stops the application: new work is refused, in-flight tasks
// finish, and every singleton is closed in reverse creation order.
func (a *App) Shutdown(ctx context.Context) error {
	a.shutdownOnce.Do(func() {
		a.shutdownErr = a.shutdown(ctx)
	})
	return a.shutdownErr
}

func (a *App) shutdown(ctx context.Context) error {
	a.logger.Info(ctx, "Shutting down")

	var failures []string
	record := func(name string, err error) {
		if err != nil {
			failures = append(failures, name+": "+err.Error())
			a.logger.Warn(ctx, err, "Shutdown step failed", "step", name)
		}
	}

	if a.watcher != nil {
		record("watcher", a.watcher.Stop())
	}
	if a.monitor != nil {
		record("monitoring", a.monitor.Shutdown(ctx))
	}
	if a.health != nil {
		a.health.Stop()
	}

	// Close the queue first so buffered tasks drain, then stop workers.
	a.taskQueue.Close()
	if a.pool != nil {
		a.pool.Stop()
	}
	a.cancel()

	record("plugins", a.registry.ShutdownAll(ctx))

	record("data store", a.singletons.DataStore().Close())
	record("cache store", a.singletons.CacheStore().Close())
	record("state store", a.singletons.StateStore().Close())

	if len(failures) > 0 {
		return errors.NewInternalError(errors.ErrCodeInternalError,
			"shutdown finished with failures: "+strings.Join(failures, "; "), nil)
	}
	a.logger.Info(ctx, "Shutdown complete")
	// The log file closes after the final message so it captures it.
	if a.fileLog != nil {
		return a.fileLog.Close()
	}
	return nil
}
