package config

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lodeworks/lode/internal/errors"
	"github.com/lodeworks/lode/internal/logging"
)

func newTestManager() (*Manager, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	logger := logging.NewLogger(&logging.LoggerConfig{
		Level:  logging.LevelDebug,
		Format: "text",
		Output: buf,
	})
	return NewManager(logger), buf
}

func writeConfigFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

type staticProvider struct {
	id   string
	yaml string
}

func (p staticProvider) ConfigurationID() string      { return p.id }
func (p staticProvider) DefaultConfiguration() string { return p.yaml }

func TestManagerSetDefaults(t *testing.T) {
	mgr, _ := newTestManager()

	require.NoError(t, mgr.SetDefaults("server:\n  port: 8080\n"))
	cfg := mgr.Build()
	assert.Equal(t, 8080, cfg.GetInt("server.port", 0))

	err := mgr.SetDefaults("not: [valid")
	require.Error(t, err)
	assert.True(t, errors.IsConfigError(err))
}

func TestManagerAddProvider(t *testing.T) {
	t.Run("valid providers layer in order", func(t *testing.T) {
		mgr, _ := newTestManager()
		require.NoError(t, mgr.SetDefaults("shared: defaults\n"))
		require.NoError(t, mgr.AddProvider(staticProvider{"first", "shared: first\nfrom_first: 1\n"}))
		require.NoError(t, mgr.AddProvider(staticProvider{"second", "shared: second\n"}))

		cfg := mgr.Build()
		assert.Equal(t, "second", cfg.GetString("shared", ""))
		assert.Equal(t, 1, cfg.GetInt("from_first", 0))
		assert.Equal(t, []string{"first", "second"}, mgr.ProviderIDs())
	})

	t.Run("empty id rejected", func(t *testing.T) {
		mgr, _ := newTestManager()
		err := mgr.AddProvider(staticProvider{"", "a: 1\n"})
		require.Error(t, err)

		var le *errors.LodeError
		require.True(t, errors.As(err, &le))
		assert.Equal(t, errors.ErrCodeProviderInvalid, le.Code)
	})

	t.Run("duplicate id rejected", func(t *testing.T) {
		mgr, _ := newTestManager()
		require.NoError(t, mgr.AddProvider(staticProvider{"dup", "a: 1\n"}))
		err := mgr.AddProvider(staticProvider{"dup", "b: 2\n"})
		require.Error(t, err)

		var le *errors.LodeError
		require.True(t, errors.As(err, &le))
		assert.Equal(t, errors.ErrCodeProviderDuplicate, le.Code)
	})

	t.Run("invalid defaults rejected", func(t *testing.T) {
		mgr, _ := newTestManager()
		err := mgr.AddProvider(staticProvider{"bad", "a: [unclosed"})
		require.Error(t, err)

		var le *errors.LodeError
		require.True(t, errors.As(err, &le))
		assert.Equal(t, errors.ErrCodeProviderInvalid, le.Code)
	})

	t.Run("scalar-rooted defaults rejected", func(t *testing.T) {
		mgr, _ := newTestManager()
		err := mgr.AddProvider(staticProvider{"scalar", "just text"})
		require.Error(t, err)
	})
}

func TestManagerLoadDirectoryOrder(t *testing.T) {
	mgr, _ := newTestManager()
	dir := t.TempDir()
	ctx := context.Background()

	// Written out of order on purpose; load order follows filenames.
	writeConfigFile(t, dir, "30-last.yaml", "winner: last\n")
	writeConfigFile(t, dir, "10-first.yaml", "winner: first\nonly_first: true\n")
	writeConfigFile(t, dir, "20-middle.yml", "winner: middle\n")
	writeConfigFile(t, dir, "ignored.txt", "winner: ignored\n")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "subdir"), 0755))
	writeConfigFile(t, filepath.Join(dir, "subdir"), "nested.yaml", "winner: nested\n")

	require.NoError(t, mgr.LoadDirectory(ctx, dir))
	cfg := mgr.Build()

	assert.Equal(t, "last", cfg.GetString("winner", ""))
	assert.Equal(t, true, cfg.GetBool("only_first", false))

	report := mgr.Report()
	require.Len(t, report.Files, 3)
	assert.Equal(t, filepath.Join(dir, "10-first.yaml"), report.Files[0].Path)
	assert.Equal(t, filepath.Join(dir, "20-middle.yml"), report.Files[1].Path)
	assert.Equal(t, filepath.Join(dir, "30-last.yaml"), report.Files[2].Path)
}

func TestManagerLoadDirectorySkipsBadFiles(t *testing.T) {
	mgr, logOutput := newTestManager()
	dir := t.TempDir()
	ctx := context.Background()

	writeConfigFile(t, dir, "01-good.yaml", "a: 1\n")
	writeConfigFile(t, dir, "02-broken.yaml", "a: [unclosed")
	writeConfigFile(t, dir, "03-also-good.yaml", "b: 2\n")

	require.NoError(t, mgr.LoadDirectory(ctx, dir))
	cfg := mgr.Build()

	// Both good files applied despite the broken one between them.
	assert.Equal(t, 1, cfg.GetInt("a", 0))
	assert.Equal(t, 2, cfg.GetInt("b", 0))

	assert.Contains(t, logOutput.String(), "Skipping unusable configuration file")

	failed := mgr.Report().Failed()
	require.Len(t, failed, 1)
	assert.Contains(t, failed[0].Path, "02-broken.yaml")
	assert.Error(t, failed[0].Err)
}

func TestManagerLoadDirectoryMissingDir(t *testing.T) {
	mgr, _ := newTestManager()
	ctx := context.Background()

	err := mgr.LoadDirectory(ctx, filepath.Join(t.TempDir(), "does-not-exist"))
	assert.NoError(t, err)
	assert.Empty(t, mgr.Report().Files)
}

func TestManagerLoadFileStrict(t *testing.T) {
	mgr, _ := newTestManager()
	dir := t.TempDir()
	ctx := context.Background()

	t.Run("good file", func(t *testing.T) {
		path := writeConfigFile(t, dir, "extra.yaml", "c: 3\n")
		require.NoError(t, mgr.LoadFile(ctx, path))
		assert.Equal(t, 3, mgr.Build().GetInt("c", 0))
	})

	t.Run("missing file is an error", func(t *testing.T) {
		err := mgr.LoadFile(ctx, filepath.Join(dir, "nope.yaml"))
		require.Error(t, err)

		var le *errors.LodeError
		require.True(t, errors.As(err, &le))
		assert.Equal(t, errors.ErrCodeFileNotFound, le.Code)
	})

	t.Run("broken file is an error", func(t *testing.T) {
		path := writeConfigFile(t, dir, "broken.yaml", "c: [unclosed")
		err := mgr.LoadFile(ctx, path)
		require.Error(t, err)
	})
}

func TestManagerLayerPrecedence(t *testing.T) {
	mgr, _ := newTestManager()
	dir := t.TempDir()
	ctx := context.Background()

	require.NoError(t, mgr.SetDefaults("source: defaults\nlist:\n  - from_defaults\n"))
	require.NoError(t, mgr.AddProvider(staticProvider{"p", "source: provider\nlist:\n  - from_provider\n"}))
	writeConfigFile(t, dir, "user.yaml", "source: user\nlist:\n  - from_user\n")
	require.NoError(t, mgr.LoadDirectory(ctx, dir))

	cfg := mgr.Build()

	// Scalars: user beats provider beats defaults.
	assert.Equal(t, "user", cfg.GetString("source", ""))
	// Sequences concatenate across all three layers in order.
	assert.Equal(t, []string{"from_defaults", "from_provider", "from_user"},
		cfg.GetStringSlice("list", nil))
}

func TestManagerBuildIsRepeatable(t *testing.T) {
	mgr, _ := newTestManager()
	require.NoError(t, mgr.SetDefaults("a: 1\n"))

	first := mgr.Build()
	second := mgr.Build()

	assert.Equal(t, first.AsMap(), second.AsMap())
}

func TestManagerOverlayBeatsUserFiles(t *testing.T) {
	mgr, _ := newTestManager()
	dir := t.TempDir()
	ctx := context.Background()

	require.NoError(t, mgr.SetDefaults("queue:\n  workers: 4\n"))
	writeConfigFile(t, dir, "user.yaml", "queue:\n  workers: 8\n")
	require.NoError(t, mgr.LoadDirectory(ctx, dir))
	require.NoError(t, mgr.AddOverlay("queue:\n  workers: 0\n"))

	cfg := mgr.Build()
	assert.Equal(t, 0, cfg.GetInt("queue.workers", -1))
}

func TestManagerOverlayRejectsBadYAML(t *testing.T) {
	mgr, _ := newTestManager()

	err := mgr.AddOverlay("queue: [broken")
	require.Error(t, err)
	assert.True(t, errors.IsConfigError(err))
}
