// Package vector provides interfaces and implementations for vector storage.
package vector

import "context"

// Document represents a stored item with its embedding and metadata.
type Document struct {
	// ID is a unique identifier for the document, assigned at ingestion.
	ID string

	// Text is the chunk of source text this document holds.
	Text string

	// Embedding is the vector representation of the document content.
	Embedding []float32

	// Metadata carries arbitrary key/value pairs, e.g. the originating
	// file name and chunk index.
	Metadata map[string]any
}

// QueryResult represents a search result with similarity score.
type QueryResult struct {
	Document

	// Score represents the similarity score (higher = more similar).
	Score float32
}

// Driver handles storage and retrieval of vector embeddings.
type Driver interface {
	// Add stores documents with their embeddings.
	// If a document with the same ID already exists, implementers should
	// update the document.
	Add(ctx context.Context, docs []Document) error

	// Query finds the topK most similar documents to the given embedding.
	Query(ctx context.Context, embedding []float32, topK int) ([]QueryResult, error)

	// Get retrieves documents by their IDs.
	Get(ctx context.Context, ids []string) ([]Document, error)

	// AllIDs returns the IDs of every stored document. An empty index
	// yields an empty slice, not an error.
	AllIDs(ctx context.Context) ([]string, error)

	// Count returns the number of stored documents.
	Count(ctx context.Context) (int, error)

	// Delete removes documents by their IDs.
	Delete(ctx context.Context, ids []string) error

	// Flush discards all documents and recreates an empty index under
	// the same name. Implementations must not leave the index partially
	// cleared on failure.
	Flush(ctx context.Context) error

	// Close releases any resources held by the driver.
	Close() error
}
