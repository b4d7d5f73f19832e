// Package plugins defines the extension surface: the base Plugin
// interface, the capability interfaces discovered by type assertion,
// and the ordered Registry that owns plugin lifecycle.
package plugins

import (
	"context"

	"github.com/lodeworks/lode/internal/config"
	"github.com/lodeworks/lode/internal/interfaces"
	"github.com/lodeworks/lode/internal/logging"
	"github.com/lodeworks/lode/internal/monitoring"
	"github.com/lodeworks/lode/internal/queue"
)

// Plugin is the base interface every extension implements.
type Plugin interface {
	// Name returns the unique name of the plugin.
	Name() string

	// Version returns the version of the plugin.
	Version() string

	// Description returns a description of what the plugin does.
	Description() string

	// Initialize prepares the plugin. It runs once the merged
	// configuration is final, before any task handler fires.
	Initialize(ctx context.Context, cfg *config.Configuration) error

	// Shutdown releases plugin resources.
	Shutdown(ctx context.Context) error
}

// ConfigurationProvider is implemented by plugins that ship default
// configuration. The embedded config.Provider methods are validated
// when the provider is added to the configuration manager: the id must
// be non-empty and unique, and the defaults must parse as YAML.
type ConfigurationProvider interface {
	Plugin
	config.Provider
}

// SingletonContributor is implemented by plugins that build process
// singletons. Contributions are collected before any singleton is
// created; the first factory registered for a slot wins.
type SingletonContributor interface {
	Plugin

	// ContributeSingletons registers factories against named slots.
	ContributeSingletons(c *Contribution) error
}

// SingletonUser is implemented by plugins that need the finished
// singletons, typically to register task handlers.
type SingletonUser interface {
	Plugin

	// UseSingletons runs once all singletons exist. Handlers go into
	// reg; a duplicate task name aborts startup.
	UseSingletons(view SingletonView, reg *queue.TaskRegistry) error
}

// SingletonView is the read-only window onto the assembled singletons
// handed to SingletonUser plugins.
type SingletonView interface {
	Logger() logging.Logger
	Config() *config.Configuration
	StateStore() interfaces.StateStore
	CacheStore() interfaces.CacheStore
	DataStore() interfaces.DataStore
	Queue() interfaces.TaskQueue
	Metrics() *monitoring.Metrics
}
