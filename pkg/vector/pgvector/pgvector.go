// Package pgvector provides a PostgreSQL vector driver backed by the
// pgvector extension.
package pgvector

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	pgv "github.com/pgvector/pgvector-go"

	"github.com/lectorhq/lector/pkg/vector"
)

const (
	// DefaultTableName is the default table for storing document embeddings.
	DefaultTableName = "lector_documents"
)

// Driver implements vector.Driver using PostgreSQL with pgvector.
type Driver struct {
	pool   *pgxpool.Pool
	table  string
	logger *slog.Logger
}

// Config holds configuration for the pgvector driver.
type Config struct {
	// DSN is the PostgreSQL connection string.
	DSN string

	// TableName is the table to store documents in.
	// Defaults to DefaultTableName if empty.
	TableName string

	// Dimensions is the number of dimensions for the embedding vectors.
	Dimensions uint
}

// NewDriver creates a new pgvector driver and ensures the schema exists.
func NewDriver(ctx context.Context, c Config, logger *slog.Logger) (*Driver, error) {
	if c.DSN == "" {
		return nil, fmt.Errorf("%w: postgres DSN is required", vector.ErrConnection)
	}
	if c.Dimensions == 0 {
		return nil, fmt.Errorf("%w: pgvector embedding dimensions cannot be 0, must be configured", vector.ErrConnection)
	}

	table := c.TableName
	if table == "" {
		table = DefaultTableName
	}

	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	poolCfg, err := pgxpool.ParseConfig(c.DSN)
	if err != nil {
		return nil, fmt.Errorf("%w: parsing DSN: %v", vector.ErrConnection, err)
	}

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(connectCtx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("%w: creating connection pool: %v", vector.ErrConnection, err)
	}

	if err := pool.Ping(connectCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%w: pinging postgres: %v", vector.ErrConnection, err)
	}

	d := &Driver{
		pool:   pool,
		table:  table,
		logger: logger,
	}

	if err := d.ensureSchema(ctx, c.Dimensions); err != nil {
		pool.Close()
		return nil, err
	}

	logger.Info("pgvector driver initialized",
		"table", table,
		"dimensions", c.Dimensions,
	)

	return d, nil
}

func (d *Driver) ensureSchema(ctx context.Context, dimensions uint) error {
	if _, err := d.pool.Exec(ctx, `CREATE EXTENSION IF NOT EXISTS vector`); err != nil {
		return fmt.Errorf("%w: creating vector extension: %v", vector.ErrConnection, err)
	}

	createTable := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			doc_id TEXT PRIMARY KEY,
			text TEXT NOT NULL DEFAULT '',
			metadata JSONB NOT NULL DEFAULT '{}',
			embedding vector(%d) NOT NULL
		)
	`, d.table, dimensions)
	if _, err := d.pool.Exec(ctx, createTable); err != nil {
		return fmt.Errorf("%w: creating documents table: %v", vector.ErrConnection, err)
	}

	return nil
}

// Add stores documents, upserting on document ID.
func (d *Driver) Add(ctx context.Context, docs []vector.Document) error {
	if len(docs) == 0 {
		return nil
	}

	tx, err := d.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("%w: beginning transaction: %v", vector.ErrWrite, err)
	}
	defer tx.Rollback(ctx)

	upsert := fmt.Sprintf(`
		INSERT INTO %s (doc_id, text, metadata, embedding)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (doc_id) DO UPDATE SET
			text = EXCLUDED.text,
			metadata = EXCLUDED.metadata,
			embedding = EXCLUDED.embedding
	`, d.table)

	for _, doc := range docs {
		metaJSON, err := json.Marshal(doc.Metadata)
		if err != nil {
			return fmt.Errorf("%w: marshaling metadata for doc %s: %v", vector.ErrWrite, doc.ID, err)
		}

		if _, err := tx.Exec(ctx, upsert,
			doc.ID, doc.Text, metaJSON, pgv.NewVector(doc.Embedding),
		); err != nil {
			return fmt.Errorf("%w: upserting document %s: %v", vector.ErrWrite, doc.ID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("%w: committing transaction: %v", vector.ErrWrite, err)
	}

	d.logger.Debug("added documents to pgvector", "count", len(docs))

	return nil
}

// Query finds the topK most similar documents by cosine distance.
func (d *Driver) Query(ctx context.Context, embedding []float32, topK int) ([]vector.QueryResult, error) {
	if topK <= 0 {
		topK = 10
	}

	query := fmt.Sprintf(`
		SELECT doc_id, text, metadata, embedding <=> $1 AS distance
		FROM %s
		ORDER BY distance
		LIMIT $2
	`, d.table)

	rows, err := d.pool.Query(ctx, query, pgv.NewVector(embedding), topK)
	if err != nil {
		return nil, fmt.Errorf("%w: querying vectors: %v", vector.ErrQuery, err)
	}
	defer rows.Close()

	var results []vector.QueryResult
	for rows.Next() {
		var docID, text string
		var metaJSON []byte
		var distance float64
		if err := rows.Scan(&docID, &text, &metaJSON, &distance); err != nil {
			return nil, fmt.Errorf("%w: scanning query result: %v", vector.ErrQuery, err)
		}

		results = append(results, vector.QueryResult{
			Document: vector.Document{
				ID:       docID,
				Text:     text,
				Metadata: unmarshalMetadata(metaJSON),
			},
			// Convert distance to similarity score: lower distance = higher similarity
			Score: float32(1.0 / (1.0 + distance)),
		})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterating query results: %v", vector.ErrQuery, err)
	}

	d.logger.Debug("queried pgvector", "results", len(results))

	return results, nil
}

// Get retrieves documents by their IDs.
func (d *Driver) Get(ctx context.Context, ids []string) ([]vector.Document, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	query := fmt.Sprintf(`
		SELECT doc_id, text, metadata, embedding
		FROM %s
		WHERE doc_id = ANY($1)
	`, d.table)

	rows, err := d.pool.Query(ctx, query, ids)
	if err != nil {
		return nil, fmt.Errorf("%w: querying documents: %v", vector.ErrQuery, err)
	}
	defer rows.Close()

	var docs []vector.Document
	for rows.Next() {
		var docID, text string
		var metaJSON []byte
		var emb pgv.Vector
		if err := rows.Scan(&docID, &text, &metaJSON, &emb); err != nil {
			return nil, fmt.Errorf("%w: scanning document: %v", vector.ErrQuery, err)
		}

		docs = append(docs, vector.Document{
			ID:        docID,
			Text:      text,
			Metadata:  unmarshalMetadata(metaJSON),
			Embedding: emb.Slice(),
		})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterating documents: %v", vector.ErrQuery, err)
	}

	return docs, nil
}

// AllIDs returns the IDs of every stored document.
func (d *Driver) AllIDs(ctx context.Context) ([]string, error) {
	query := fmt.Sprintf(`SELECT doc_id FROM %s ORDER BY doc_id`, d.table)

	rows, err := d.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: querying document ids: %v", vector.ErrQuery, err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("%w: scanning document id: %v", vector.ErrQuery, err)
		}
		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterating document ids: %v", vector.ErrQuery, err)
	}

	return ids, nil
}

// Count returns the number of stored documents.
func (d *Driver) Count(ctx context.Context) (int, error) {
	var count int
	query := fmt.Sprintf(`SELECT COUNT(*) FROM %s`, d.table)
	if err := d.pool.QueryRow(ctx, query).Scan(&count); err != nil {
		return 0, fmt.Errorf("%w: counting documents: %v", vector.ErrQuery, err)
	}
	return count, nil
}

// Delete removes documents by their IDs.
func (d *Driver) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	query := fmt.Sprintf(`DELETE FROM %s WHERE doc_id = ANY($1)`, d.table)
	if _, err := d.pool.Exec(ctx, query, ids); err != nil {
		return fmt.Errorf("%w: deleting documents: %v", vector.ErrWrite, err)
	}

	d.logger.Debug("deleted documents from pgvector", "count", len(ids))

	return nil
}

// Flush discards all documents. TRUNCATE is transactional in PostgreSQL,
// so a failure leaves the table untouched.
func (d *Driver) Flush(ctx context.Context) error {
	query := fmt.Sprintf(`TRUNCATE %s`, d.table)
	if _, err := d.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("%w: truncating documents: %v", vector.ErrWrite, err)
	}

	d.logger.Info("flushed pgvector store", "table", d.table)

	return nil
}

// Close releases resources held by the driver.
func (d *Driver) Close() error {
	d.pool.Close()
	return nil
}

func unmarshalMetadata(raw []byte) map[string]any {
	if len(raw) == 0 {
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil || len(m) == 0 {
		return nil
	}
	return m
}

// Ensure Driver implements vector.Driver
var _ vector.Driver = (*Driver)(nil)
