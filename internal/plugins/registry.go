package plugins

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/lodeworks/lode/internal/config"
	"github.com/lodeworks/lode/internal/errors"
)

// Registry holds plugins in registration order. Order matters: it is
// the discovery order governing provider precedence, and its reverse
// is the shutdown order.
type Registry struct {
	mu           sync.RWMutex
	ordered      []Plugin
	byName       map[string]Plugin
	providers    []ConfigurationProvider
	contributors []SingletonContributor
	users        []SingletonUser
}

// Info describes a registered plugin for display.
type Info struct {
	Name         string   `json:"name"`
	Version      string   `json:"version"`
	Description  string   `json:"description"`
	Capabilities []string `json:"capabilities"`
}

// NewRegistry creates an empty plugin registry.
func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]Plugin)}
}

// Register adds a plugin and partitions it by capability. Nil plugins,
// empty names, and duplicate names are rejected.
func (r *Registry) Register(p Plugin) error {
	if p == nil {
		return errors.NewPluginError(errors.ErrCodePluginInvalid,
			"cannot register a nil plugin", nil)
	}
	name := p.Name()
	if name == "" {
		return errors.NewPluginError(errors.ErrCodePluginInvalid,
			"plugin has an empty name", nil)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byName[name]; exists {
		return errors.NewPluginError(errors.ErrCodePluginDuplicate,
			fmt.Sprintf("plugin %q registered twice", name), nil)
	}

	r.byName[name] = p
	r.ordered = append(r.ordered, p)

	if cp, ok := p.(ConfigurationProvider); ok {
		r.providers = append(r.providers, cp)
	}
	if sc, ok := p.(SingletonContributor); ok {
		r.contributors = append(r.contributors, sc)
	}
	if su, ok := p.(SingletonUser); ok {
		r.users = append(r.users, su)
	}
	return nil
}

// Get retrieves a plugin by name.
func (r *Registry) Get(name string) (Plugin, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.byName[name]
	return p, ok
}

// Plugins returns all plugins in registration order.
func (r *Registry) Plugins() []Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Plugin, len(r.ordered))
	copy(out, r.ordered)
	return out
}

// Names returns plugin names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.ordered))
	for i, p := range r.ordered {
		out[i] = p.Name()
	}
	return out
}

// ConfigurationProviders returns provider plugins in registration order.
func (r *Registry) ConfigurationProviders() []ConfigurationProvider {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]ConfigurationProvider, len(r.providers))
	copy(out, r.providers)
	return out
}

// SingletonContributors returns contributor plugins in registration order.
func (r *Registry) SingletonContributors() []SingletonContributor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]SingletonContributor, len(r.contributors))
	copy(out, r.contributors)
	return out
}

// SingletonUsers returns user plugins in registration order.
func (r *Registry) SingletonUsers() []SingletonUser {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]SingletonUser, len(r.users))
	copy(out, r.users)
	return out
}

// Describe lists registered plugins in registration order.
func (r *Registry) Describe() []Info {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Info, len(r.ordered))
	for i, p := range r.ordered {
		out[i] = Info{
			Name:         p.Name(),
			Version:      p.Version(),
			Description:  p.Description(),
			Capabilities: capabilities(p),
		}
	}
	return out
}

// InitializeAll initializes plugins in registration order, stopping at
// the first failure.
func (r *Registry) InitializeAll(ctx context.Context, cfg *config.Configuration) error {
	for _, p := range r.Plugins() {
		if err := p.Initialize(ctx, cfg); err != nil {
			return errors.NewPluginError(errors.ErrCodePluginInit,
				fmt.Sprintf("plugin %q failed to initialize", p.Name()), err)
		}
	}
	return nil
}

// ShutdownAll shuts plugins down in reverse registration order. Every
// plugin is attempted; failures are collected into one error.
func (r *Registry) ShutdownAll(ctx context.Context) error {
	ps := r.Plugins()

	var failures []string
	for i := len(ps) - 1; i >= 0; i-- {
		if err := ps[i].Shutdown(ctx); err != nil {
			failures = append(failures, fmt.Sprintf("%s: %v", ps[i].Name(), err))
		}
	}
	if len(failures) > 0 {
		return errors.NewPluginError(errors.ErrCodePluginShutdown,
			"plugin shutdown failed: "+strings.Join(failures, "; "), nil)
	}
	return nil
}

// capabilities names the capability interfaces p implements.
func capabilities(p Plugin) []string {
	var out []string
	if _, ok := p.(ConfigurationProvider); ok {
		out = append(out, "config-provider")
	}
	if _, ok := p.(SingletonContributor); ok {
		out = append(out, "singleton-contributor")
	}
	if _, ok := p.(SingletonUser); ok {
		out = append(out, "singleton-user")
	}
	return out
}
