package plugins

import (
	"context"
	"fmt"
	"sort"

	"github.com/lodeworks/lode/internal/config"
	"github.com/lodeworks/lode/internal/errors"
	"github.com/lodeworks/lode/internal/interfaces"
	"github.com/lodeworks/lode/internal/logging"
	"github.com/lodeworks/lode/internal/queue"
)

// Singleton slots a contributor can provide a factory for.
const (
	SlotStateStore = "statestore"
	SlotDataStore  = "datastore"
	SlotCacheStore = "cachestore"
	SlotTaskQueue  = "taskqueue"
)

// Factory signatures per slot. Every factory receives the final merged
// configuration; the task queue factory additionally receives the task
// registry its workers resolve handlers from.
type (
	StateStoreFactory func(ctx context.Context, cfg *config.Configuration, logger logging.Logger) (interfaces.StateStore, error)
	DataStoreFactory  func(ctx context.Context, cfg *config.Configuration, logger logging.Logger) (interfaces.DataStore, error)
	CacheStoreFactory func(ctx context.Context, cfg *config.Configuration, logger logging.Logger) (interfaces.CacheStore, error)
	TaskQueueFactory  func(ctx context.Context, cfg *config.Configuration, reg *queue.TaskRegistry, logger logging.Logger) (*queue.Queue, error)
)

// Contribution collects singleton factories from contributor plugins.
// The first factory registered for a slot wins; later registrations
// for the same slot are recorded and ignored. Contributions are
// gathered single-threaded during startup, so there is no locking.
type Contribution struct {
	source string

	stateStore StateStoreFactory
	dataStore  DataStoreFactory
	cacheStore CacheStoreFactory
	taskQueue  TaskQueueFactory

	sources map[string]string
	ignored []string
}

// NewContribution creates an empty contribution set.
func NewContribution() *Contribution {
	return &Contribution{sources: make(map[string]string)}
}

// SetSource names the plugin whose contributions follow. The startup
// sequence calls this before handing the contribution to each plugin.
func (c *Contribution) SetSource(name string) {
	c.source = name
}

// Provide registers factory for the named slot. The factory must match
// the slot's signature; an unknown slot or a mismatched factory is a
// plugin error that aborts startup.
func (c *Contribution) Provide(slot string, factory interface{}) error {
	if factory == nil {
		return errors.NewPluginError(errors.ErrCodeSlotInvalid,
			fmt.Sprintf("nil factory for slot %q from %s", slot, c.source), nil)
	}

	switch slot {
	case SlotStateStore:
		f, ok := asStateStoreFactory(factory)
		if !ok {
			return c.mismatch(slot)
		}
		if c.stateStore != nil {
			c.markIgnored(slot)
			return nil
		}
		c.stateStore = f
	case SlotDataStore:
		f, ok := asDataStoreFactory(factory)
		if !ok {
			return c.mismatch(slot)
		}
		if c.dataStore != nil {
			c.markIgnored(slot)
			return nil
		}
		c.dataStore = f
	case SlotCacheStore:
		f, ok := asCacheStoreFactory(factory)
		if !ok {
			return c.mismatch(slot)
		}
		if c.cacheStore != nil {
			c.markIgnored(slot)
			return nil
		}
		c.cacheStore = f
	case SlotTaskQueue:
		f, ok := asTaskQueueFactory(factory)
		if !ok {
			return c.mismatch(slot)
		}
		if c.taskQueue != nil {
			c.markIgnored(slot)
			return nil
		}
		c.taskQueue = f
	default:
		return errors.NewPluginError(errors.ErrCodeSlotUnknown,
			fmt.Sprintf("unknown singleton slot %q from %s", slot, c.source), nil)
	}

	c.sources[slot] = c.source
	return nil
}

func (c *Contribution) mismatch(slot string) error {
	return errors.NewPluginError(errors.ErrCodeSlotInvalid,
		fmt.Sprintf("factory from %s does not match slot %q", c.source, slot), nil)
}

func (c *Contribution) markIgnored(slot string) {
	c.ignored = append(c.ignored, fmt.Sprintf("%s from %s", slot, c.source))
}

// StateStore returns the winning state store factory, or nil.
func (c *Contribution) StateStore() StateStoreFactory { return c.stateStore }

// DataStore returns the winning data store factory, or nil.
func (c *Contribution) DataStore() DataStoreFactory { return c.dataStore }

// CacheStore returns the winning cache store factory, or nil.
func (c *Contribution) CacheStore() CacheStoreFactory { return c.cacheStore }

// TaskQueue returns the winning task queue factory, or nil.
func (c *Contribution) TaskQueue() TaskQueueFactory { return c.taskQueue }

// Source reports which plugin's factory won the slot, or "" when the
// slot is empty.
func (c *Contribution) Source(slot string) string {
	return c.sources[slot]
}

// Missing returns the slots no factory was provided for, sorted.
func (c *Contribution) Missing() []string {
	var out []string
	if c.stateStore == nil {
		out = append(out, SlotStateStore)
	}
	if c.dataStore == nil {
		out = append(out, SlotDataStore)
	}
	if c.cacheStore == nil {
		out = append(out, SlotCacheStore)
	}
	if c.taskQueue == nil {
		out = append(out, SlotTaskQueue)
	}
	sort.Strings(out)
	return out
}

// Ignored lists contributions that lost to an earlier registration,
// as "slot from plugin" strings in arrival order.
func (c *Contribution) Ignored() []string {
	out := make([]string, len(c.ignored))
	copy(out, c.ignored)
	return out
}

// The as* converters accept both the named factory type and a plain
// function with the same signature, so callers do not have to convert
// literals explicitly.

func asStateStoreFactory(v interface{}) (StateStoreFactory, bool) {
	switch f := v.(type) {
	case StateStoreFactory:
		return f, true
	case func(context.Context, *config.Configuration, logging.Logger) (interfaces.StateStore, error):
		return f, true
	}
	return nil, false
}

func asDataStoreFactory(v interface{}) (DataStoreFactory, bool) {
	switch f := v.(type) {
	case DataStoreFactory:
		return f, true
	case func(context.Context, *config.Configuration, logging.Logger) (interfaces.DataStore, error):
		return f, true
	}
	return nil, false
}

func asCacheStoreFactory(v interface{}) (CacheStoreFactory, bool) {
	switch f := v.(type) {
	case CacheStoreFactory:
		return f, true
	case func(context.Context, *config.Configuration, logging.Logger) (interfaces.CacheStore, error):
		return f, true
	}
	return nil, false
}

func asTaskQueueFactory(v interface{}) (TaskQueueFactory, bool) {
	switch f := v.(type) {
	case TaskQueueFactory:
		return f, true
	case func(context.Context, *config.Configuration, *queue.TaskRegistry, logging.Logger) (*queue.Queue, error):
		return f, true
	}
	return nil, false
}
