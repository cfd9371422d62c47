// Package memory provides an in-memory vector driver.
//
// It keeps every document in a map guarded by an RWMutex and scores
// queries with cosine similarity. Intended for tests and small local
// indexes; nothing is persisted.
package memory

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"sync"

	"github.com/lectorhq/lector/pkg/vector"
)

// Driver implements vector.Driver with an in-memory map.
type Driver struct {
	mu     sync.RWMutex
	docs   map[string]vector.Document
	order  []string
	logger *slog.Logger
}

// NewDriver creates an empty in-memory vector driver.
func NewDriver(logger *slog.Logger) *Driver {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Driver{
		docs:   make(map[string]vector.Document),
		logger: logger,
	}
}

// Add stores documents, replacing any existing document with the same ID.
func (d *Driver) Add(ctx context.Context, docs []vector.Document) error {
	if len(docs) == 0 {
		return nil
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	for _, doc := range docs {
		if doc.ID == "" {
			return fmt.Errorf("%w: document with empty ID", vector.ErrWrite)
		}
		if _, exists := d.docs[doc.ID]; !exists {
			d.order = append(d.order, doc.ID)
		}
		d.docs[doc.ID] = doc
	}

	d.logger.Debug("added documents to memory store", "count", len(docs))
	return nil
}

// Query finds the topK most similar documents by cosine similarity.
func (d *Driver) Query(ctx context.Context, embedding []float32, topK int) ([]vector.QueryResult, error) {
	if topK <= 0 {
		topK = 10
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	results := make([]vector.QueryResult, 0, len(d.docs))
	for _, doc := range d.docs {
		results = append(results, vector.QueryResult{
			Document: doc,
			Score:    cosineSimilarity(embedding, doc.Embedding),
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ID < results[j].ID
	})

	if len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

// Get retrieves documents by their IDs. Unknown IDs are skipped.
func (d *Driver) Get(ctx context.Context, ids []string) ([]vector.Document, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	docs := make([]vector.Document, 0, len(ids))
	for _, id := range ids {
		if doc, ok := d.docs[id]; ok {
			docs = append(docs, doc)
		}
	}
	return docs, nil
}

// AllIDs returns every stored document ID in insertion order.
func (d *Driver) AllIDs(ctx context.Context) ([]string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	ids := make([]string, len(d.order))
	copy(ids, d.order)
	return ids, nil
}

// Count returns the number of stored documents.
func (d *Driver) Count(ctx context.Context) (int, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.docs), nil
}

// Delete removes documents by their IDs.
func (d *Driver) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	remove := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		remove[id] = struct{}{}
		delete(d.docs, id)
	}

	kept := d.order[:0]
	for _, id := range d.order {
		if _, gone := remove[id]; !gone {
			kept = append(kept, id)
		}
	}
	d.order = kept
	return nil
}

// Flush discards all documents.
func (d *Driver) Flush(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.docs = make(map[string]vector.Document)
	d.order = nil
	d.logger.Debug("flushed memory store")
	return nil
}

// Close releases resources held by the driver.
func (d *Driver) Close() error {
	return nil
}

func cosineSimilarity(a, b []float32) float32 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}

// Ensure Driver implements vector.Driver
var _ vector.Driver = (*Driver)(nil)
