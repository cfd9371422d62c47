// Package store implements the semantic document store: text in, ranked
// similar text out. It composes an embeddings.Embedder with a vector.Driver
// and owns chunk identity (uuid per stored chunk).
package store

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lectorhq/lector/pkg/embeddings"
	"github.com/lectorhq/lector/pkg/vector"
)

const (
	// flushAttempts is how many times Flush retries the whole operation
	// before giving up.
	flushAttempts = 3

	flushRetryDelay = 200 * time.Millisecond
)

// Store is a semantic document store.
type Store struct {
	embedder embeddings.Embedder
	driver   vector.Driver
	logger   *slog.Logger

	// flushMu serializes Flush against concurrent Flush calls from other
	// sessions sharing this Store instance. Cross-process races are out
	// of scope.
	flushMu sync.Mutex
}

// New creates a Store over the given embedder and vector driver.
func New(embedder embeddings.Embedder, driver vector.Driver, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Store{
		embedder: embedder,
		driver:   driver,
		logger:   logger,
	}
}

// Add embeds and stores the given text chunks. Each chunk is assigned a
// fresh uuid. metadatas may be nil, or must match texts in length.
func (s *Store) Add(ctx context.Context, texts []string, metadatas []map[string]any) error {
	if len(texts) == 0 {
		return nil
	}
	if metadatas != nil && len(metadatas) != len(texts) {
		return fmt.Errorf("%w: %d texts but %d metadatas", vector.ErrWrite, len(texts), len(metadatas))
	}

	vecs, err := s.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return fmt.Errorf("%w: embedding %d chunks: %v", vector.ErrWrite, len(texts), err)
	}

	docs := make([]vector.Document, len(texts))
	for i, text := range texts {
		docs[i] = vector.Document{
			ID:        uuid.NewString(),
			Text:      text,
			Embedding: vecs[i],
		}
		if metadatas != nil {
			docs[i].Metadata = metadatas[i]
		}
	}

	if err := s.driver.Add(ctx, docs); err != nil {
		return err
	}

	s.logger.Info("stored documents", "count", len(docs))
	return nil
}

// AllIDs returns the IDs of every stored document.
func (s *Store) AllIDs(ctx context.Context) ([]string, error) {
	return s.driver.AllIDs(ctx)
}

// Count returns the number of stored documents.
func (s *Store) Count(ctx context.Context) (int, error) {
	return s.driver.Count(ctx)
}

// Get retrieves documents by their IDs.
func (s *Store) Get(ctx context.Context, ids []string) ([]vector.Document, error) {
	return s.driver.Get(ctx, ids)
}

// QueryOption narrows query results after similarity ranking.
type QueryOption func(*queryConfig)

type queryConfig struct {
	contains    []string
	notContains []string
	metadata    map[string]any
}

// WithContains keeps only results whose text contains the given substring.
func WithContains(substr string) QueryOption {
	return func(c *queryConfig) {
		c.contains = append(c.contains, substr)
	}
}

// WithNotContains drops results whose text contains the given substring.
func WithNotContains(substr string) QueryOption {
	return func(c *queryConfig) {
		c.notContains = append(c.notContains, substr)
	}
}

// WithMetadataFilter keeps only results whose metadata has the given
// key/value pair.
func WithMetadataFilter(key string, value any) QueryOption {
	return func(c *queryConfig) {
		if c.metadata == nil {
			c.metadata = make(map[string]any)
		}
		c.metadata[key] = value
	}
}

func (c *queryConfig) keep(r vector.QueryResult) bool {
	for _, substr := range c.contains {
		if !strings.Contains(r.Text, substr) {
			return false
		}
	}
	for _, substr := range c.notContains {
		if strings.Contains(r.Text, substr) {
			return false
		}
	}
	for key, want := range c.metadata {
		got, ok := r.Metadata[key]
		if !ok || got != want {
			return false
		}
	}
	return true
}

// Query runs one similarity search per query text and returns an
// independent ranked result list for each, index-aligned with queryTexts.
// An empty index yields empty result lists rather than an error.
func (s *Store) Query(ctx context.Context, queryTexts []string, topK int, opts ...QueryOption) ([][]vector.QueryResult, error) {
	if len(queryTexts) == 0 {
		return nil, nil
	}

	cfg := queryConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}

	count, err := s.driver.Count(ctx)
	if err != nil {
		return nil, err
	}
	results := make([][]vector.QueryResult, len(queryTexts))
	if count == 0 {
		for i := range results {
			results[i] = []vector.QueryResult{}
		}
		return results, nil
	}

	vecs, err := s.embedder.EmbedBatch(ctx, queryTexts)
	if err != nil {
		return nil, fmt.Errorf("%w: embedding %d queries: %v", vector.ErrQuery, len(queryTexts), err)
	}

	for i, vec := range vecs {
		ranked, err := s.driver.Query(ctx, vec, topK)
		if err != nil {
			return nil, err
		}

		kept := make([]vector.QueryResult, 0, len(ranked))
		for _, r := range ranked {
			if cfg.keep(r) {
				kept = append(kept, r)
			}
		}
		results[i] = kept
	}

	return results, nil
}

// Flush atomically discards every stored document. The whole operation is
// retried so the index is never left partially cleared.
func (s *Store) Flush(ctx context.Context) error {
	s.flushMu.Lock()
	defer s.flushMu.Unlock()

	var err error
	for attempt := 1; attempt <= flushAttempts; attempt++ {
		err = s.driver.Flush(ctx)
		if err == nil {
			s.logger.Info("flushed store", "attempt", attempt)
			return nil
		}

		if attempt < flushAttempts {
			s.logger.Warn("flush failed, retrying",
				"attempt", attempt,
				"error", err,
			)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(flushRetryDelay):
			}
		}
	}
	return fmt.Errorf("flushing store after %d attempts: %w", flushAttempts, err)
}

// Close releases the embedder and driver.
func (s *Store) Close() error {
	embErr := s.embedder.Close()
	drvErr := s.driver.Close()
	if embErr != nil {
		return embErr
	}
	return drvErr
}
