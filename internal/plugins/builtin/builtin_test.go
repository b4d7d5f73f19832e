package builtin

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lodeworks/lode/internal/cache"
	"github.com/lodeworks/lode/internal/config"
	"github.com/lodeworks/lode/internal/interfaces"
	"github.com/lodeworks/lode/internal/logging"
	"github.com/lodeworks/lode/internal/monitoring"
	"github.com/lodeworks/lode/internal/plugins"
	"github.com/lodeworks/lode/internal/queue"
	"github.com/lodeworks/lode/internal/storage"
)

func testLogger() logging.Logger {
	return logging.NewLogger(&logging.LoggerConfig{
		Level:  logging.LevelError,
		Output: io.Discard,
	})
}

func testConfig(t *testing.T, yamlText string) *config.Configuration {
	t.Helper()
	mgr := config.NewManager(nil)
	for _, p := range All() {
		provider, ok := p.(plugins.ConfigurationProvider)
		require.True(t, ok, "built-in plugins all provide configuration")
		require.NoError(t, mgr.AddProvider(provider))
	}
	if yamlText != "" {
		require.NoError(t, mgr.AddOverlay(yamlText))
	}
	return mgr.Build()
}

// testView is a hand-rolled SingletonView for exercising UseSingletons
// without the full startup sequence.
type testView struct {
	logger  logging.Logger
	cfg     *config.Configuration
	state   interfaces.StateStore
	cache   interfaces.CacheStore
	data    interfaces.DataStore
	queue   interfaces.TaskQueue
	metrics *monitoring.Metrics
}

func (v *testView) Logger() logging.Logger             { return v.logger }
func (v *testView) Config() *config.Configuration      { return v.cfg }
func (v *testView) StateStore() interfaces.StateStore  { return v.state }
func (v *testView) CacheStore() interfaces.CacheStore  { return v.cache }
func (v *testView) DataStore() interfaces.DataStore    { return v.data }
func (v *testView) Queue() interfaces.TaskQueue        { return v.queue }
func (v *testView) Metrics() *monitoring.Metrics       { return v.metrics }

func newTestView(t *testing.T, overlay string) (*testView, *queue.TaskRegistry) {
	t.Helper()
	cfg := testConfig(t, overlay)
	logger := testLogger()

	data, err := storage.NewSQLiteDataStore(filepath.Join(t.TempDir(), "data.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = data.Close() })

	reg := queue.NewTaskRegistry()
	q := queue.New(queue.Config{Workers: 0}, reg, logger)
	t.Cleanup(q.Close)

	view := &testView{
		logger:  logger,
		cfg:     cfg,
		state:   storage.NewMemoryStateStore(),
		cache:   cache.NewMemoryCache(cache.MemoryCacheConfig{}),
		data:    data,
		queue:   q,
		metrics: monitoring.NewMetrics(),
	}
	return view, reg
}

func TestAllPluginsProvideValidDefaults(t *testing.T) {
	for _, p := range All() {
		provider, ok := p.(plugins.ConfigurationProvider)
		require.True(t, ok, p.Name())

		parsed, err := config.ParseYAML([]byte(provider.DefaultConfiguration()))
		require.NoError(t, err, p.Name())
		assert.NotNil(t, parsed)
		assert.NotEmpty(t, provider.ConfigurationID())
	}
}

func TestCoreContributesEverySlot(t *testing.T) {
	contrib := plugins.NewContribution()
	contrib.SetSource("core")
	require.NoError(t, NewCore().ContributeSingletons(contrib))

	assert.Empty(t, contrib.Missing())
	for _, slot := range []string{
		plugins.SlotStateStore, plugins.SlotDataStore,
		plugins.SlotCacheStore, plugins.SlotTaskQueue,
	} {
		assert.Equal(t, "core", contrib.Source(slot))
	}
}

func TestCoreStateStoreDrivers(t *testing.T) {
	ctx := context.Background()
	logger := testLogger()

	t.Run("memory", func(t *testing.T) {
		cfg := testConfig(t, "storage:\n  state:\n    driver: memory\n")
		store, err := newStateStore(ctx, cfg, logger)
		require.NoError(t, err)
		defer func() { _ = store.Close() }()

		require.NoError(t, store.Put(ctx, "p", "k", 1, []byte("v")))
		entry, err := store.Get(ctx, "p", "k")
		require.NoError(t, err)
		assert.Equal(t, []byte("v"), entry.Data)
	})

	t.Run("sqlite", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "state.db")
		cfg := testConfig(t, "storage:\n  state:\n    path: "+path+"\n")
		store, err := newStateStore(ctx, cfg, logger)
		require.NoError(t, err)
		require.NoError(t, store.Close())
	})

	t.Run("unknown", func(t *testing.T) {
		cfg := testConfig(t, "storage:\n  state:\n    driver: etcd\n")
		_, err := newStateStore(ctx, cfg, logger)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "etcd")
	})
}

func TestCoreTaskQueueHonorsConfig(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t, "queue:\n  workers: 0\n  buffer_size: 3\n")

	q, err := newTaskQueue(ctx, cfg, queue.NewTaskRegistry(), testLogger())
	require.NoError(t, err)
	defer q.Close()

	assert.True(t, q.Synchronous())
}

func TestWebIndexerRegistersAndRunsPipeline(t *testing.T) {
	ctx := context.Background()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = io.WriteString(w,
			`<html><head><title>Release Notes</title></head>`+
				`<body><p>Bug fixes and improvements.</p></body></html>`)
	}))
	defer server.Close()

	view, reg := newTestView(t, "")
	wi := NewWebIndexer()
	require.NoError(t, wi.UseSingletons(view, reg))
	require.NotNil(t, wi.Indexer())

	handler, err := reg.Resolve(TaskIndex)
	require.NoError(t, err)
	require.NoError(t, handler(ctx, interfaces.Task{
		Name:    TaskIndex,
		Payload: map[string]interface{}{"url": server.URL},
	}))

	items, err := view.data.SearchItems(ctx, "Release", 10)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Release Notes", items[0].Title)
	assert.Contains(t, items[0].Text, "bug fixes")
	assert.Equal(t, float64(1), testutil.ToFloat64(view.metrics.ItemsIndexed))
}

func TestWebIndexerFetchTaskWarmsCache(t *testing.T) {
	ctx := context.Background()
	hits := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.Header().Set("Content-Type", "text/html")
		_, _ = io.WriteString(w, "<html><body>cached</body></html>")
	}))
	defer server.Close()

	view, reg := newTestView(t, "")
	require.NoError(t, NewWebIndexer().UseSingletons(view, reg))

	handler, err := reg.Resolve(TaskFetch)
	require.NoError(t, err)

	task := interfaces.Task{
		Name:    TaskFetch,
		Payload: map[string]interface{}{"url": server.URL},
	}
	require.NoError(t, handler(ctx, task))
	require.NoError(t, handler(ctx, task))
	assert.Equal(t, 1, hits, "second fetch should be served from cache")
}

func TestWebIndexerPayloadValidation(t *testing.T) {
	view, reg := newTestView(t, "")
	require.NoError(t, NewWebIndexer().UseSingletons(view, reg))

	handler, err := reg.Resolve(TaskIndex)
	require.NoError(t, err)

	cases := []struct {
		name    string
		payload map[string]interface{}
	}{
		{"empty payload", map[string]interface{}{}},
		{"wrong url type", map[string]interface{}{"url": 7}},
		{"empty urls list", map[string]interface{}{"urls": []interface{}{}}},
		{"non-string urls", map[string]interface{}{"urls": []interface{}{1, 2}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := handler(context.Background(), interfaces.Task{
				Name:    TaskIndex,
				Payload: tc.payload,
			})
			require.Error(t, err)
		})
	}
}

func TestHousekeepingCleanup(t *testing.T) {
	ctx := context.Background()
	view, reg := newTestView(t, "housekeeping:\n  retention: 1h\n")

	// One stale item, one fresh.
	require.NoError(t, view.data.PutItem(ctx, interfaces.Item{
		ID: "stale", URL: "https://old.example", Title: "old",
		FetchedAt: time.Now().UTC().Add(-2 * time.Hour),
	}))
	require.NoError(t, view.data.PutItem(ctx, interfaces.Item{
		ID: "fresh", URL: "https://new.example", Title: "new",
		FetchedAt: time.Now().UTC(),
	}))

	// Transient state goes, reserved system state stays.
	require.NoError(t, view.state.Put(ctx, "_transient", "scratch", 1, []byte("x")))
	require.NoError(t, view.state.Put(ctx, "_system.configuration", "last_merged", 1, []byte("a: 1")))

	require.NoError(t, NewHousekeeping().UseSingletons(view, reg))
	handler, err := reg.Resolve(TaskCleanup)
	require.NoError(t, err)
	require.NoError(t, handler(ctx, interfaces.Task{Name: TaskCleanup}))

	_, err = view.data.GetItem(ctx, "stale")
	assert.ErrorIs(t, err, interfaces.ErrNotFound)
	_, err = view.data.GetItem(ctx, "fresh")
	assert.NoError(t, err)

	keys, err := view.state.List(ctx, "_transient")
	require.NoError(t, err)
	assert.Empty(t, keys)
	_, err = view.state.Get(ctx, "_system.configuration", "last_merged")
	assert.NoError(t, err)
}

func TestHousekeepingRefusesToPruneSystemPartitions(t *testing.T) {
	ctx := context.Background()
	view, reg := newTestView(t,
		"housekeeping:\n  prune_partitions:\n    - _system.configuration\n")

	require.NoError(t, view.state.Put(ctx, "_system.configuration", "last_merged", 1, []byte("a: 1")))

	require.NoError(t, NewHousekeeping().UseSingletons(view, reg))
	handler, err := reg.Resolve(TaskCleanup)
	require.NoError(t, err)
	require.NoError(t, handler(ctx, interfaces.Task{Name: TaskCleanup}))

	_, err = view.state.Get(ctx, "_system.configuration", "last_merged")
	assert.NoError(t, err, "reserved partitions must survive cleanup")
}

func TestConfigDurationParsing(t *testing.T) {
	cfg := testConfig(t, "indexer:\n  fetch_timeout: 3s\n  cache_ttl: bogus\n")

	assert.Equal(t, 3*time.Second, configDuration(cfg, "indexer.fetch_timeout", time.Minute))
	assert.Equal(t, time.Minute, configDuration(cfg, "indexer.cache_ttl", time.Minute))
	assert.Equal(t, time.Minute, configDuration(cfg, "indexer.absent", time.Minute))
}
