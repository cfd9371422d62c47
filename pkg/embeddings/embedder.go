// Package embeddings
package embeddings

import (
	"context"
	"errors"
)

// ErrEmbedding indicates an embedding operation failed.
var ErrEmbedding = errors.New("embedding error")

// Embedder provides text embedding capabilities.
type Embedder interface {
	// Embed converts text into a vector embedding.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch converts multiple texts into vector embeddings,
	// one per input text in the same order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Close releases any resources held by the embedder.
	Close() error
}
