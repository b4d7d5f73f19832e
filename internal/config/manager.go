package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/lodeworks/lode/internal/errors"
	"github.com/lodeworks/lode/internal/logging"
)

// Provider supplies default configuration on behalf of a plugin. The
// returned YAML merges below user files, so users always win.
type Provider interface {
	// ConfigurationID identifies the provider; must be non-empty and
	// unique across all registered providers.
	ConfigurationID() string

	// DefaultConfiguration returns the provider's defaults as a YAML
	// document whose root is a mapping.
	DefaultConfiguration() string
}

// FileOutcome records the result of loading one configuration file.
type FileOutcome struct {
	Path   string
	Loaded bool
	Err    error
}

// LoadReport collects per-file outcomes for diagnostics.
type LoadReport struct {
	Files []FileOutcome
}

// Failed returns the outcomes for files that could not be loaded.
func (r LoadReport) Failed() []FileOutcome {
	var out []FileOutcome
	for _, f := range r.Files {
		if !f.Loaded {
			out = append(out, f)
		}
	}
	return out
}

// Manager assembles configuration layers in priority order: built-in
// defaults first, then provider defaults in registration order, then
// user files in load order, then overlays. Later layers win per the
// Merge rules.
//
// Manager is used single-threaded during startup and is not safe for
// concurrent mutation.
type Manager struct {
	logger      logging.Logger
	defaults    Mapping
	providers   []providerLayer
	providerIDs map[string]struct{}
	userLayers  []userLayer
	overlays    []Mapping
	report      LoadReport
}

type providerLayer struct {
	id   string
	data Mapping
}

type userLayer struct {
	path string
	data Mapping
}

// NewManager creates an empty configuration manager.
func NewManager(logger logging.Logger) *Manager {
	return &Manager{
		logger:      logger,
		defaults:    Mapping{},
		providerIDs: make(map[string]struct{}),
	}
}

// SetDefaults installs the application's built-in defaults, the lowest
// priority layer. The YAML must parse; broken built-ins are a bug.
func (m *Manager) SetDefaults(yamlText string) error {
	parsed, err := ParseYAML([]byte(yamlText))
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeConfig, errors.ErrCodeConfigInvalid,
			"built-in defaults failed to parse").WithComponent("config")
	}
	m.defaults = parsed
	return nil
}

// AddProvider registers a provider's defaults as the next layer.
// Providers are validated eagerly: an empty or duplicate id, or
// defaults that fail to parse, abort the caller's startup.
func (m *Manager) AddProvider(p Provider) error {
	id := p.ConfigurationID()
	if id == "" {
		return errors.NewPluginError(errors.ErrCodeProviderInvalid,
			"configuration provider has an empty id", nil)
	}
	if _, exists := m.providerIDs[id]; exists {
		return errors.NewPluginError(errors.ErrCodeProviderDuplicate,
			fmt.Sprintf("configuration provider %q registered twice", id), nil)
	}

	parsed, err := ParseYAML([]byte(p.DefaultConfiguration()))
	if err != nil {
		return errors.NewPluginError(errors.ErrCodeProviderInvalid,
			fmt.Sprintf("configuration provider %q returned invalid defaults", id), err)
	}

	m.providerIDs[id] = struct{}{}
	m.providers = append(m.providers, providerLayer{id: id, data: parsed})
	return nil
}

// LoadDirectory loads every *.yaml / *.yml file directly inside dir,
// sorted by filename, each as one layer. Files that cannot be read or
// parsed are skipped with a warning; a missing directory is fine. An
// existing directory that cannot be listed is an error.
func (m *Manager) LoadDirectory(ctx context.Context, dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			if m.logger != nil {
				m.logger.Debug(ctx, "Configuration directory does not exist, skipping", "dir", dir)
			}
			return nil
		}
		return errors.NewIOError(errors.ErrCodeDirUnreadable,
			fmt.Sprintf("cannot list configuration directory %s", dir), err)
	}

	// os.ReadDir returns entries sorted by filename, which is exactly
	// the layer order we want.
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if ext != ".yaml" && ext != ".yml" {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		m.loadUserFile(ctx, path, true)
	}
	return nil
}

// LoadFile loads a single configuration file as the next user layer.
// Unlike directory entries, an explicitly named file must load.
func (m *Manager) LoadFile(ctx context.Context, path string) error {
	return m.loadUserFile(ctx, path, false)
}

func (m *Manager) loadUserFile(ctx context.Context, path string, lenient bool) error {
	data, err := os.ReadFile(path)
	if err != nil {
		ioErr := errors.NewIOError(errors.ErrCodeFileNotFound,
			"cannot read configuration file", err).WithFile(path)
		return m.recordFailure(ctx, path, ioErr, lenient)
	}

	parsed, err := ParseYAML(data)
	if err != nil {
		var le *errors.LodeError
		if errors.As(err, &le) {
			le.WithFile(path)
		}
		return m.recordFailure(ctx, path, err, lenient)
	}

	m.userLayers = append(m.userLayers, userLayer{path: path, data: parsed})
	m.report.Files = append(m.report.Files, FileOutcome{Path: path, Loaded: true})
	if m.logger != nil {
		m.logger.Debug(ctx, "Configuration file loaded", "path", path)
	}
	return nil
}

func (m *Manager) recordFailure(ctx context.Context, path string, err error, lenient bool) error {
	m.report.Files = append(m.report.Files, FileOutcome{Path: path, Err: err})
	if !lenient {
		return err
	}
	if m.logger != nil {
		m.logger.Warn(ctx, err, "Skipping unusable configuration file", "path", path)
	}
	return nil
}

// AddOverlay appends a top-priority layer above all user files. The
// CLI uses overlays for flag and mode overrides.
func (m *Manager) AddOverlay(yamlText string) error {
	parsed, err := ParseYAML([]byte(yamlText))
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeConfig, errors.ErrCodeConfigInvalid,
			"configuration overlay failed to parse").WithComponent("config")
	}
	m.overlays = append(m.overlays, parsed)
	return nil
}

// Build merges all layers and wraps the result in a view with no
// change information yet. Calling Build again re-merges from scratch.
func (m *Manager) Build() *Configuration {
	layers := make([]Mapping, 0, 1+len(m.providers)+len(m.userLayers)+len(m.overlays))
	layers = append(layers, m.defaults)
	for _, p := range m.providers {
		layers = append(layers, p.data)
	}
	for _, u := range m.userLayers {
		layers = append(layers, u.data)
	}
	layers = append(layers, m.overlays...)
	return NewConfiguration(MergeAll(layers), nil)
}

// ProviderIDs returns the registered provider ids in registration order.
func (m *Manager) ProviderIDs() []string {
	out := make([]string, len(m.providers))
	for i, p := range m.providers {
		out[i] = p.id
	}
	return out
}

// Report returns the per-file load outcomes recorded so far.
func (m *Manager) Report() LoadReport {
	return m.report
}
