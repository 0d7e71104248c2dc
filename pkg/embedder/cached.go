package embedder

import (
	"context"

	"github.com/dgraph-io/ristretto"
)

// Cached wraps a Provider with an in-process embedding cache.
//
// The retrieval path embeds the query text synchronously on every turn, and
// users repeat themselves; caching query embeddings removes that network call
// for repeated text. Cache misses fall through to the wrapped provider.
// Batch calls are not cached, they come from index rebuilds where every text
// is distinct.
type Cached struct {
	provider Provider
	cache    *ristretto.Cache
}

// NewCached wraps provider with a cache holding roughly maxEntries recent
// embeddings. maxEntries <= 0 defaults to 4096.
func NewCached(provider Provider, maxEntries int64) (*Cached, error) {
	if maxEntries <= 0 {
		maxEntries = 4096
	}
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: maxEntries * 10,
		MaxCost:     maxEntries,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	return &Cached{provider: provider, cache: cache}, nil
}

// Embed returns the cached embedding for text, or embeds and caches it.
func (c *Cached) Embed(ctx context.Context, text string) ([]float64, error) {
	if v, ok := c.cache.Get(text); ok {
		if vec, ok := v.([]float64); ok {
			return vec, nil
		}
	}
	vec, err := c.provider.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	c.cache.Set(text, vec, 1)
	return vec, nil
}

// EmbedBatch passes through to the wrapped provider.
func (c *Cached) EmbedBatch(ctx context.Context, texts []string) ([][]float64, error) {
	return c.provider.EmbedBatch(ctx, texts)
}

// Dimensions returns the wrapped provider's vector dimensions.
func (c *Cached) Dimensions() int {
	return c.provider.Dimensions()
}

// Close closes the cache and the wrapped provider.
func (c *Cached) Close() error {
	c.cache.Close()
	return c.provider.Close()
}
