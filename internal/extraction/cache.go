package extraction

import (
	"context"
	"sync"

	"github.com/dvloznov/statement-insights/internal/logger"
)

// CachedExtractor memoizes successful extractions by document checksum.
// Failed calls are not cached, so a retry reaches the model again.
type CachedExtractor struct {
	next Extractor

	mu      sync.Mutex
	entries map[string]string
}

// NewCachedExtractor wraps next.
func NewCachedExtractor(next Extractor) *CachedExtractor {
	return &CachedExtractor{next: next, entries: make(map[string]string)}
}

// Extract returns the cached response for doc's bytes or calls the wrapped extractor.
func (c *CachedExtractor) Extract(ctx context.Context, doc Document) (string, error) {
	key := doc.Checksum()

	c.mu.Lock()
	text, ok := c.entries[key]
	c.mu.Unlock()
	if ok {
		log := logger.FromContext(ctx)
		log.Debug().Str("checksum", key).Str("document", doc.Name).Msg("Extraction cache hit")
		return text, nil
	}

	text, err := c.next.Extract(ctx, doc)
	if err != nil {
		return "", err
	}

	c.mu.Lock()
	c.entries[key] = text
	c.mu.Unlock()
	return text, nil
}

// Invalidate drops the entry for checksum and reports whether one existed.
func (c *CachedExtractor) Invalidate(checksum string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.entries[checksum]
	delete(c.entries, checksum)
	return ok
}

// Purge drops every entry.
func (c *CachedExtractor) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]string)
}

// Len returns the number of cached responses.
func (c *CachedExtractor) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
