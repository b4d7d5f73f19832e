package config

import (
	"context"

	"github.com/lodeworks/lode/internal/errors"
	"github.com/lodeworks/lode/internal/interfaces"
	"github.com/lodeworks/lode/internal/logging"
)

// Reserved state store location for the previous run's merged
// configuration. The underscore partition prefix marks it as
// system-owned.
const (
	StatePartition     = "_system.configuration"
	StateKey           = "last_merged"
	StateSchemaVersion = 1
)

// Factory creates the application configuration in two steps. The
// first step assembles the merged view before any singleton exists;
// the second runs once the state store is up, computes the change set
// against the previous run, persists the new snapshot, and installs
// the change set into the view.
type Factory struct {
	logger logging.Logger
}

// NewFactory creates a configuration factory.
func NewFactory(logger logging.Logger) *Factory {
	return &Factory{logger: logger}
}

// LoadInitial assembles all configured layers into a view. The view's
// change set is empty: nothing may observe changes before Complete.
func (f *Factory) LoadInitial(mgr *Manager) *Configuration {
	return mgr.Build()
}

// Complete finishes configuration creation against the state store.
// It reads the previous run's merged snapshot, diffs it against the
// current one, persists the current snapshot, and installs the change
// set into cfg. The returned ChangeSet is the same one cfg now serves.
//
// A missing snapshot means a first run: everything is reported as
// added. A corrupt snapshot or unknown schema version is logged and
// treated the same way, and gets overwritten. Store errors are fatal.
func (f *Factory) Complete(ctx context.Context, cfg *Configuration, store interfaces.StateStore) (*ChangeSet, error) {
	previous, err := f.loadPrevious(ctx, store)
	if err != nil {
		return nil, err
	}
	current := cfg.mapping()

	changes := Diff(previous, current)

	encoded, err := EncodeYAML(current)
	if err != nil {
		return nil, err
	}
	if err := store.Put(ctx, StatePartition, StateKey, StateSchemaVersion, encoded); err != nil {
		return nil, errors.NewStorageError(errors.ErrCodeStateStore,
			"failed to persist merged configuration", err)
	}

	cfg.installChanges(changes)

	if f.logger != nil {
		f.logger.Info(ctx, "Configuration change detection complete",
			"added", len(changes.AddedPaths()),
			"removed", len(changes.RemovedPaths()),
			"unchanged", len(changes.UnchangedPaths()),
		)
	}
	return changes, nil
}

// loadPrevious reads and decodes the previous snapshot. A missing or
// unusable snapshot degrades to a first run; a failing store does not.
func (f *Factory) loadPrevious(ctx context.Context, store interfaces.StateStore) (Mapping, error) {
	entry, err := store.Get(ctx, StatePartition, StateKey)
	if err != nil {
		if errors.Is(err, interfaces.ErrNotFound) {
			if f.logger != nil {
				f.logger.Info(ctx, "No previous configuration snapshot, treating as first run")
			}
			return Mapping{}, nil
		}
		return nil, errors.NewStorageError(errors.ErrCodeStateStore,
			"failed to read previous configuration snapshot", err)
	}

	if entry.Version != StateSchemaVersion {
		if f.logger != nil {
			f.logger.Warn(ctx, nil, "Previous configuration snapshot has unknown schema version, treating as first run",
				"version", entry.Version)
		}
		return Mapping{}, nil
	}

	previous, err := ParseYAML(entry.Data)
	if err != nil {
		if f.logger != nil {
			f.logger.Warn(ctx, err, "Previous configuration snapshot is corrupt, treating as first run")
		}
		return Mapping{}, nil
	}
	return previous, nil
}
