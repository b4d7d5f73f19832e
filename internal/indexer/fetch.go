package indexer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/lodeworks/lode/internal/errors"
)

// cacheKey derives the cache key for a fetched URL.
func cacheKey(rawURL string) string {
	sum := sha256.Sum256([]byte(rawURL))
	return "fetch:" + hex.EncodeToString(sum[:])
}

// contentHash fingerprints a response body for change detection.
func contentHash(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}

// Fetch retrieves the document at rawURL. Responses with a non-OK status,
// a non-text content type, or a body over the configured size cap are
// rejected.
func (idx *Indexer) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, errors.NewValidationError(errors.ErrCodeFetchFailed,
			"invalid url "+rawURL)
	}
	req.Header.Set("User-Agent", idx.config.UserAgent)

	resp, err := idx.client.Do(req)
	if err != nil {
		return nil, errors.NewIOError(errors.ErrCodeFetchFailed,
			"request failed for "+rawURL, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.NewIOError(errors.ErrCodeFetchFailed,
			fmt.Sprintf("unexpected status %d for %s", resp.StatusCode, rawURL), nil)
	}

	if ct := resp.Header.Get("Content-Type"); ct != "" && !indexableContentType(ct) {
		return nil, errors.NewIOError(errors.ErrCodeFetchFailed,
			"unsupported content type "+ct+" for "+rawURL, nil)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, idx.config.MaxBodyBytes+1))
	if err != nil {
		return nil, errors.NewIOError(errors.ErrCodeFetchFailed,
			"failed to read response body for "+rawURL, err)
	}
	if int64(len(body)) > idx.config.MaxBodyBytes {
		return nil, errors.NewIOError(errors.ErrCodeFetchFailed,
			fmt.Sprintf("response body exceeds %d bytes for %s", idx.config.MaxBodyBytes, rawURL), nil)
	}

	return body, nil
}

// FetchCached consults the cache before going to the network and caches
// fresh bodies on the way back. Cache failures are logged and treated as
// misses so an unavailable cache degrades to plain fetching.
func (idx *Indexer) FetchCached(ctx context.Context, rawURL string) ([]byte, error) {
	key := cacheKey(rawURL)

	if cached, found, err := idx.cache.Get(ctx, key); err != nil {
		idx.logger.Warn(ctx, err, "Cache lookup failed", "url", rawURL)
	} else if found {
		idx.logger.Debug(ctx, "Cache hit", "url", rawURL)
		return cached, nil
	}

	body, err := idx.Fetch(ctx, rawURL)
	if err != nil {
		return nil, err
	}

	if err := idx.cache.Set(ctx, key, body, idx.config.CacheTTL); err != nil {
		idx.logger.Warn(ctx, err, "Failed to cache fetched body", "url", rawURL)
	}
	return body, nil
}

func indexableContentType(ct string) bool {
	ct = strings.ToLower(ct)
	return strings.Contains(ct, "html") || strings.Contains(ct, "text/plain") ||
		strings.Contains(ct, "xml")
}
