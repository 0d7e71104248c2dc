// Package embedder provides interfaces for text embedding providers.
//
// It defines the Provider interface that all embedding implementations must
// satisfy. The vector index depends only on this interface; the embedding
// model itself is an external capability.
package embedder

import "context"

// Provider defines the interface for embedding providers.
//
// The vector dimension must stay constant for the lifetime of an index;
// switching embedding models requires a full index rebuild.
type Provider interface {
	// Embed converts a single text into a vector embedding.
	Embed(ctx context.Context, text string) ([]float64, error)

	// EmbedBatch converts multiple texts into vector embeddings.
	//
	// Output order must match input order; the index relies on this to keep
	// vectors aligned with their metadata.
	EmbedBatch(ctx context.Context, texts []string) ([][]float64, error)

	// Dimensions returns the dimension of vectors produced by this provider.
	Dimensions() int

	// Close closes the provider and releases resources.
	Close() error
}
