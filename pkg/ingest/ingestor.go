package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
)

// Adder is the slice of the document store the ingestor writes to.
type Adder interface {
	Add(ctx context.Context, texts []string, metadatas []map[string]any) error
}

// Ingestor reads files from disk, chunks them, and writes the chunks to a
// store with source metadata.
type Ingestor struct {
	parser  Parser
	chunker Chunker
	store   Adder
	logger  *slog.Logger
}

// NewIngestor creates an ingestor over the given store using the plaintext
// parser and the default word-window chunker.
func NewIngestor(store Adder, logger *slog.Logger) *Ingestor {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Ingestor{
		parser:  NewTextParser(),
		chunker: NewWordChunker(ChunkerConfig{}),
		store:   store,
		logger:  logger,
	}
}

// IngestFile parses, chunks, and stores a single file. Returns the number of
// chunks written.
func (g *Ingestor) IngestFile(ctx context.Context, path string) (int, error) {
	if !g.parser.Supports(path) {
		return 0, fmt.Errorf("unsupported file type: %s", filepath.Base(path))
	}

	doc, err := g.parser.Parse(path)
	if err != nil {
		return 0, err
	}

	chunks := g.chunker.Chunk(doc)
	if len(chunks) == 0 {
		g.logger.Debug("no chunks produced", "file", doc.Name)
		return 0, nil
	}

	metadatas := make([]map[string]any, len(chunks))
	for i := range metadatas {
		metadatas[i] = map[string]any{"source": doc.Name}
	}

	if err := g.store.Add(ctx, chunks, metadatas); err != nil {
		return 0, fmt.Errorf("storing %s: %w", doc.Name, err)
	}

	g.logger.Debug("ingested file", "file", doc.Name, "chunks", len(chunks))
	return len(chunks), nil
}

// IngestFiles ingests each path in order and returns the total chunk count.
// The first failure aborts the batch.
func (g *Ingestor) IngestFiles(ctx context.Context, paths []string) (int, error) {
	total := 0
	for _, path := range paths {
		n, err := g.IngestFile(ctx, path)
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}
