// Package indexer implements the built-in web content pipeline: fetch a
// page, extract its visible text, normalize it, and store the result as an
// item in the data store. Fetched bodies are cached by URL hash so repeated
// runs skip unchanged network work.
package indexer

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/lodeworks/lode/internal/interfaces"
	"github.com/lodeworks/lode/internal/logging"
)

// Defaults applied when the indexer.* configuration keys are absent.
const (
	DefaultFetchTimeout = 15 * time.Second
	DefaultMaxBodyBytes = 2 << 20
	DefaultConcurrency  = 4
	DefaultCacheTTL     = 15 * time.Minute
	DefaultUserAgent    = "lode-indexer/1.0"
)

// Config controls the fetch and indexing pipeline.
type Config struct {
	// FetchTimeout bounds each HTTP request.
	FetchTimeout time.Duration
	// MaxBodyBytes rejects response bodies larger than this.
	MaxBodyBytes int64
	// Concurrency limits parallel fetches during IndexURLs.
	Concurrency int
	// CacheTTL is how long fetched bodies stay cached.
	CacheTTL time.Duration
	// UserAgent identifies the crawler to origin servers.
	UserAgent string
}

func (c Config) withDefaults() Config {
	if c.FetchTimeout <= 0 {
		c.FetchTimeout = DefaultFetchTimeout
	}
	if c.MaxBodyBytes <= 0 {
		c.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if c.Concurrency <= 0 {
		c.Concurrency = DefaultConcurrency
	}
	if c.CacheTTL <= 0 {
		c.CacheTTL = DefaultCacheTTL
	}
	if c.UserAgent == "" {
		c.UserAgent = DefaultUserAgent
	}
	return c
}

// Report summarizes an IndexURLs run.
type Report struct {
	Indexed  int
	Failed   int
	Errors   []string
	Duration time.Duration
}

// Indexer drives the fetch, extract, and store pipeline.
type Indexer struct {
	config Config
	client *http.Client
	data   interfaces.DataStore
	cache  interfaces.CacheStore
	logger logging.Logger
}

// New creates an indexer writing to data and caching through cache.
func New(cfg Config, data interfaces.DataStore, cache interfaces.CacheStore, logger logging.Logger) *Indexer {
	cfg = cfg.withDefaults()
	return &Indexer{
		config: cfg,
		client: &http.Client{
			Timeout: cfg.FetchTimeout,
		},
		data:   data,
		cache:  cache,
		logger: logger.WithComponent("indexer"),
	}
}

// itemID derives a stable item id from the URL so reindexing the same page
// updates its item instead of accumulating duplicates.
func itemID(rawURL string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(rawURL)).String()
}

// IndexURLs fetches and indexes the given URLs concurrently. Failures on
// individual URLs are recorded in the report and do not abort the run; only
// context cancellation stops it early.
func (idx *Indexer) IndexURLs(ctx context.Context, urls []string) (*Report, error) {
	start := time.Now()

	g, gctx := errgroup.WithContext(ctx)
	semaphore := make(chan struct{}, idx.config.Concurrency)

	var indexed, failed int32
	var mu sync.Mutex
	var errMessages []string

	for _, rawURL := range urls {
		rawURL := rawURL
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			case semaphore <- struct{}{}:
			}
			defer func() { <-semaphore }()

			if err := idx.indexOne(gctx, rawURL); err != nil {
				atomic.AddInt32(&failed, 1)
				mu.Lock()
				errMessages = append(errMessages, rawURL+": "+err.Error())
				mu.Unlock()
				idx.logger.Warn(gctx, err, "Failed to index url", "url", rawURL)
				return nil
			}
			atomic.AddInt32(&indexed, 1)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	report := &Report{
		Indexed:  int(indexed),
		Failed:   int(failed),
		Errors:   errMessages,
		Duration: time.Since(start),
	}
	idx.logger.Info(ctx, "Indexing run finished",
		"indexed", report.Indexed,
		"failed", report.Failed,
		"duration", report.Duration.String())
	return report, nil
}

// indexOne runs the full pipeline for a single URL.
func (idx *Indexer) indexOne(ctx context.Context, rawURL string) error {
	body, err := idx.FetchCached(ctx, rawURL)
	if err != nil {
		return err
	}

	doc, err := Extract(body)
	if err != nil {
		return err
	}

	item := interfaces.Item{
		ID:          itemID(rawURL),
		URL:         rawURL,
		Title:       doc.Title,
		Text:        Normalize(doc.Text),
		ContentHash: contentHash(body),
		FetchedAt:   time.Now().UTC(),
	}
	if err := idx.data.PutItem(ctx, item); err != nil {
		return err
	}

	idx.logger.Debug(ctx, "Indexed url",
		"url", rawURL, "item_id", item.ID, "title", item.Title)
	return nil
}

// Cleanup deletes items whose last fetch is older than the retention
// window and returns the number removed.
func (idx *Indexer) Cleanup(ctx context.Context, retention time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-retention)
	deleted, err := idx.data.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if deleted > 0 {
		idx.logger.Info(ctx, "Removed stale items",
			"deleted", deleted, "cutoff", cutoff.Format(time.RFC3339))
	}
	return deleted, nil
}
