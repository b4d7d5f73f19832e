package builtin

import (
	"context"
	"strings"
	"time"

	"github.com/lodeworks/lode/internal/config"
	"github.com/lodeworks/lode/internal/interfaces"
	"github.com/lodeworks/lode/internal/logging"
	"github.com/lodeworks/lode/internal/plugins"
	"github.com/lodeworks/lode/internal/queue"
)

// TaskCleanup removes stale items and prunes transient state entries.
const TaskCleanup = "housekeeping.cleanup"

const housekeepingDefaults = `
housekeeping:
  retention: 720h
  prune_partitions:
    - _transient
`

// Housekeeping registers the cleanup task: items older than the
// configured retention are deleted from the data store, and state
// partitions listed under housekeeping.prune_partitions are emptied.
// Reserved system partitions are never pruned.
type Housekeeping struct {
	data   interfaces.DataStore
	state  interfaces.StateStore
	logger logging.Logger
}

var (
	_ plugins.ConfigurationProvider = (*Housekeeping)(nil)
	_ plugins.SingletonUser         = (*Housekeeping)(nil)
)

// NewHousekeeping creates the housekeeping plugin.
func NewHousekeeping() *Housekeeping {
	return &Housekeeping{}
}

// Name implements plugins.Plugin.
func (h *Housekeeping) Name() string { return "housekeeping" }

// Version implements plugins.Plugin.
func (h *Housekeeping) Version() string { return "1.0.0" }

// Description implements plugins.Plugin.
func (h *Housekeeping) Description() string {
	return "Removes stale indexed items and prunes transient state"
}

// Initialize implements plugins.Plugin.
func (h *Housekeeping) Initialize(ctx context.Context, cfg *config.Configuration) error {
	return nil
}

// Shutdown implements plugins.Plugin.
func (h *Housekeeping) Shutdown(ctx context.Context) error {
	h.data, h.state, h.logger = nil, nil, nil
	return nil
}

// ConfigurationID implements config.Provider.
func (h *Housekeeping) ConfigurationID() string { return "housekeeping" }

// DefaultConfiguration implements config.Provider.
func (h *Housekeeping) DefaultConfiguration() string { return housekeepingDefaults }

// UseSingletons implements plugins.SingletonUser.
func (h *Housekeeping) UseSingletons(view plugins.SingletonView, reg *queue.TaskRegistry) error {
	h.data = view.DataStore()
	h.state = view.StateStore()
	h.logger = view.Logger().WithComponent("housekeeping")

	cfg := view.Config()
	retention := configDuration(cfg, "housekeeping.retention", 30*24*time.Hour)
	partitions := cfg.GetStringSlice("housekeeping.prune_partitions", nil)

	return reg.Register(TaskCleanup, func(ctx context.Context, task interfaces.Task) error {
		window := retention
		if raw, ok := task.Payload["older_than"].(string); ok && raw != "" {
			if d, err := time.ParseDuration(raw); err == nil && d > 0 {
				window = d
			}
		}
		return h.cleanup(ctx, window, partitions)
	})
}

func (h *Housekeeping) cleanup(ctx context.Context, window time.Duration, partitions []string) error {
	cutoff := time.Now().UTC().Add(-window)
	deleted, err := h.data.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return err
	}

	pruned := 0
	for _, partition := range partitions {
		// System bookkeeping lives under _system.*; never prune it.
		if strings.HasPrefix(partition, "_system") {
			h.logger.Warn(ctx, nil, "Refusing to prune reserved partition",
				"partition", partition)
			continue
		}
		keys, err := h.state.List(ctx, partition)
		if err != nil {
			return err
		}
		for _, key := range keys {
			if err := h.state.Delete(ctx, partition, key); err != nil {
				return err
			}
			pruned++
		}
	}

	h.logger.Info(ctx, "Cleanup finished",
		"items_deleted", deleted,
		"state_entries_pruned", pruned,
		"cutoff", cutoff.Format(time.RFC3339))
	return nil
}

// All returns the built-in plugins in their standard registration
// order: core first so its singleton contributions win by default.
func All() []plugins.Plugin {
	return []plugins.Plugin{
		NewCore(),
		NewWebIndexer(),
		NewHousekeeping(),
	}
}
