package queue

import (
	"context"
	"sort"
	"sync"

	"github.com/lodeworks/lode/internal/errors"
	"github.com/lodeworks/lode/internal/interfaces"
)

// Handler processes a single task. Returning an error marks the task failed;
// the queue never retries on its own.
type Handler func(ctx context.Context, task interfaces.Task) error

// TaskRegistry maps task names to their handlers. Plugins register handlers
// during startup; the queue resolves them at dispatch time.
type TaskRegistry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

// NewTaskRegistry creates an empty registry.
func NewTaskRegistry() *TaskRegistry {
	return &TaskRegistry{
		handlers: make(map[string]Handler),
	}
}

// Register binds handler to the task name. Registering the same name twice
// is an error so plugins cannot silently shadow each other's handlers.
func (r *TaskRegistry) Register(name string, handler Handler) error {
	if name == "" {
		return errors.NewValidationError(errors.ErrCodeTaskUnknown,
			"task name cannot be empty")
	}
	if handler == nil {
		return errors.NewValidationError(errors.ErrCodeTaskUnknown,
			"task handler cannot be nil for "+name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.handlers[name]; exists {
		return errors.NewPluginError(errors.ErrCodeTaskDuplicate,
			"task handler already registered: "+name, nil)
	}
	r.handlers[name] = handler
	return nil
}

// Resolve returns the handler for the task name.
func (r *TaskRegistry) Resolve(name string) (Handler, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	handler, exists := r.handlers[name]
	if !exists {
		return nil, errors.NewValidationError(errors.ErrCodeTaskUnknown,
			"no handler registered for task "+name)
	}
	return handler, nil
}

// Names returns the registered task names in sorted order.
func (r *TaskRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
