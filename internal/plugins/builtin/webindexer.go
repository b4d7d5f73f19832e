package builtin

import (
	"context"
	"time"

	"github.com/lodeworks/lode/internal/config"
	"github.com/lodeworks/lode/internal/errors"
	"github.com/lodeworks/lode/internal/indexer"
	"github.com/lodeworks/lode/internal/interfaces"
	"github.com/lodeworks/lode/internal/plugins"
	"github.com/lodeworks/lode/internal/queue"
)

// Task names registered by the web indexer.
const (
	TaskFetch = "webindexer.fetch"
	TaskIndex = "webindexer.index"
)

const webIndexerDefaults = `
indexer:
  fetch_timeout: 15s
  max_body_bytes: 2097152
  concurrency: 4
  cache_ttl: 15m
  user_agent: lode-indexer/1.0
`

// WebIndexer wires the fetch/extract/store pipeline into the task
// queue. The fetch task warms the body cache; the index task runs the
// full pipeline for one or more URLs.
type WebIndexer struct {
	idx *indexer.Indexer
}

var (
	_ plugins.ConfigurationProvider = (*WebIndexer)(nil)
	_ plugins.SingletonUser         = (*WebIndexer)(nil)
)

// NewWebIndexer creates the web indexer plugin.
func NewWebIndexer() *WebIndexer {
	return &WebIndexer{}
}

// Name implements plugins.Plugin.
func (w *WebIndexer) Name() string { return "webindexer" }

// Version implements plugins.Plugin.
func (w *WebIndexer) Version() string { return "1.0.0" }

// Description implements plugins.Plugin.
func (w *WebIndexer) Description() string {
	return "Fetches web pages, extracts their text, and stores them as items"
}

// Initialize implements plugins.Plugin.
func (w *WebIndexer) Initialize(ctx context.Context, cfg *config.Configuration) error {
	return nil
}

// Shutdown implements plugins.Plugin.
func (w *WebIndexer) Shutdown(ctx context.Context) error {
	w.idx = nil
	return nil
}

// ConfigurationID implements config.Provider.
func (w *WebIndexer) ConfigurationID() string { return "webindexer" }

// DefaultConfiguration implements config.Provider.
func (w *WebIndexer) DefaultConfiguration() string { return webIndexerDefaults }

// UseSingletons implements plugins.SingletonUser. It builds the indexer
// over the shared stores and registers the pipeline task handlers.
func (w *WebIndexer) UseSingletons(view plugins.SingletonView, reg *queue.TaskRegistry) error {
	cfg := view.Config()
	w.idx = indexer.New(indexerConfig(cfg), view.DataStore(), view.CacheStore(), view.Logger())
	metrics := view.Metrics()

	if err := reg.Register(TaskFetch, func(ctx context.Context, task interfaces.Task) error {
		url, err := payloadString(task, "url")
		if err != nil {
			return err
		}
		_, err = w.idx.FetchCached(ctx, url)
		return err
	}); err != nil {
		return err
	}

	return reg.Register(TaskIndex, func(ctx context.Context, task interfaces.Task) error {
		urls, err := payloadURLs(task)
		if err != nil {
			return err
		}
		report, err := w.idx.IndexURLs(ctx, urls)
		if err != nil {
			return err
		}
		if metrics != nil {
			metrics.ItemsIndexed.Add(float64(report.Indexed))
		}
		return nil
	})
}

// Indexer returns the pipeline once UseSingletons has run, for callers
// that bypass the queue (the one-shot index command).
func (w *WebIndexer) Indexer() *indexer.Indexer {
	return w.idx
}

// indexerConfig maps the merged indexer.* section onto the pipeline's
// config struct.
func indexerConfig(cfg *config.Configuration) indexer.Config {
	return indexer.Config{
		FetchTimeout: configDuration(cfg, "indexer.fetch_timeout", indexer.DefaultFetchTimeout),
		MaxBodyBytes: int64(cfg.GetInt("indexer.max_body_bytes", int(indexer.DefaultMaxBodyBytes))),
		Concurrency:  cfg.GetInt("indexer.concurrency", indexer.DefaultConcurrency),
		CacheTTL:     configDuration(cfg, "indexer.cache_ttl", indexer.DefaultCacheTTL),
		UserAgent:    cfg.GetString("indexer.user_agent", indexer.DefaultUserAgent),
	}
}

func configDuration(cfg *config.Configuration, path string, def time.Duration) time.Duration {
	raw := cfg.GetString(path, "")
	if raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

// payloadString extracts a required string field from a task payload.
func payloadString(task interfaces.Task, key string) (string, error) {
	raw, ok := task.Payload[key]
	if !ok {
		return "", errors.NewValidationError(errors.ErrCodeTaskPayload,
			"task "+task.Name+" payload is missing "+key)
	}
	s, ok := raw.(string)
	if !ok || s == "" {
		return "", errors.NewValidationError(errors.ErrCodeTaskPayload,
			"task "+task.Name+" payload field "+key+" must be a non-empty string")
	}
	return s, nil
}

// payloadURLs accepts either a single "url" string or a "urls" list.
func payloadURLs(task interfaces.Task) ([]string, error) {
	if raw, ok := task.Payload["urls"]; ok {
		switch list := raw.(type) {
		case []string:
			if len(list) > 0 {
				return list, nil
			}
		case []interface{}:
			urls := make([]string, 0, len(list))
			for _, elem := range list {
				s, ok := elem.(string)
				if !ok || s == "" {
					return nil, errors.NewValidationError(errors.ErrCodeTaskPayload,
						"task "+task.Name+" payload field urls must contain non-empty strings")
				}
				urls = append(urls, s)
			}
			if len(urls) > 0 {
				return urls, nil
			}
		}
		return nil, errors.NewValidationError(errors.ErrCodeTaskPayload,
			"task "+task.Name+" payload field urls must be a non-empty string list")
	}

	url, err := payloadString(task, "url")
	if err != nil {
		return nil, err
	}
	return []string{url}, nil
}
