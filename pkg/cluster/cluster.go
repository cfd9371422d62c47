// Package cluster groups stored documents around sampled anchor documents
// by nearest-neighbor search.
package cluster

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"

	"github.com/lectorhq/lector/pkg/store"
	"github.com/lectorhq/lector/pkg/vector"
)

// ErrInvalidPercentage indicates a cluster percentage outside (0, 1].
var ErrInvalidPercentage = errors.New("invalid cluster percentage")

// DefaultConcurrency bounds the number of in-flight anchor queries.
const DefaultConcurrency = 8

// Member is one document inside a cluster.
type Member struct {
	ID   string
	Text string
}

// Cluster is an anchor document and its nearest neighbors, anchor included.
type Cluster struct {
	AnchorID string
	Members  []Member
}

// Storer is the slice of the document store the builder needs.
type Storer interface {
	Count(ctx context.Context) (int, error)
	Get(ctx context.Context, ids []string) ([]vector.Document, error)
	Query(ctx context.Context, queryTexts []string, topK int, opts ...store.QueryOption) ([][]vector.QueryResult, error)
}

// Config holds configuration for the cluster builder.
type Config struct {
	// ClusterPercentage sizes each cluster as a share of the whole
	// index, in (0, 1].
	ClusterPercentage float64

	// MinClusterSize and MaxClusterSize clamp the computed size when
	// non-zero.
	MinClusterSize int
	MaxClusterSize int

	// Concurrency bounds in-flight anchor queries.
	// Defaults to DefaultConcurrency if zero.
	Concurrency int
}

// Builder builds clusters around sampled anchors.
type Builder struct {
	store  Storer
	cfg    Config
	logger *slog.Logger
}

// NewBuilder creates a cluster builder over the given store.
func NewBuilder(store Storer, cfg Config, logger *slog.Logger) *Builder {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConcurrency
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Builder{
		store:  store,
		cfg:    cfg,
		logger: logger,
	}
}

// Build creates one cluster per sampled anchor ID. Individual anchor
// failures are skipped with a warning; only a bad percentage or a failed
// Count aborts the whole batch. The returned clusters are ordered like
// sampleIDs with failed anchors compacted out.
func (b *Builder) Build(ctx context.Context, sampleIDs []string) ([]Cluster, error) {
	if b.cfg.ClusterPercentage <= 0 || b.cfg.ClusterPercentage > 1 {
		return nil, fmt.Errorf("%w: must be within (0, 1], got %g", ErrInvalidPercentage, b.cfg.ClusterPercentage)
	}

	total, err := b.store.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("counting documents: %w", err)
	}
	if total == 0 || len(sampleIDs) == 0 {
		return nil, nil
	}

	size := b.clusterSize(total)

	// One slot per anchor keeps output order aligned with the input.
	slots := make([]*Cluster, len(sampleIDs))

	sem := make(chan struct{}, b.cfg.Concurrency)
	var wg sync.WaitGroup

	for i, anchorID := range sampleIDs {
		if ctx.Err() != nil {
			break
		}

		sem <- struct{}{}
		wg.Add(1)
		go func(slot int, id string) {
			defer wg.Done()
			defer func() { <-sem }()

			cluster, err := b.buildOne(ctx, id, size)
			if err != nil {
				b.logger.Warn("skipping anchor", "anchor_id", id, "error", err)
				return
			}
			slots[slot] = cluster
		}(i, anchorID)
	}

	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	clusters := make([]Cluster, 0, len(slots))
	for _, c := range slots {
		if c != nil {
			clusters = append(clusters, *c)
		}
	}

	b.logCoverage(ctx, clusters, total)

	return clusters, nil
}

func (b *Builder) clusterSize(total int) int {
	size := int(math.Floor(float64(total) * b.cfg.ClusterPercentage))
	if size < 1 {
		size = 1
	}
	if b.cfg.MinClusterSize > 0 && size < b.cfg.MinClusterSize {
		size = b.cfg.MinClusterSize
	}
	if b.cfg.MaxClusterSize > 0 && size > b.cfg.MaxClusterSize {
		size = b.cfg.MaxClusterSize
	}
	if size < 1 {
		size = 1
	}
	return size
}

func (b *Builder) buildOne(ctx context.Context, anchorID string, size int) (*Cluster, error) {
	docs, err := b.store.Get(ctx, []string{anchorID})
	if err != nil {
		return nil, fmt.Errorf("fetching anchor: %w", err)
	}
	if len(docs) == 0 {
		return nil, fmt.Errorf("anchor not found")
	}
	if docs[0].Text == "" {
		return nil, fmt.Errorf("anchor has no text")
	}

	results, err := b.store.Query(ctx, []string{docs[0].Text}, size)
	if err != nil {
		return nil, fmt.Errorf("querying neighbors: %w", err)
	}
	if len(results) == 0 || len(results[0]) == 0 {
		return nil, fmt.Errorf("no neighbors found")
	}

	cluster := &Cluster{AnchorID: anchorID}
	for _, r := range results[0] {
		cluster.Members = append(cluster.Members, Member{ID: r.ID, Text: r.Text})
	}
	return cluster, nil
}

// Stats summarizes how much of the index a set of clusters covers.
type Stats struct {
	// Clusters is the number of clusters built.
	Clusters int

	// Documents is the total number of indexed documents.
	Documents int

	// Covered is the number of distinct documents inside any cluster.
	Covered int

	// Orphans is the number of indexed documents in no cluster.
	Orphans int

	// OrphanPercentage is Orphans as a percentage of Documents.
	OrphanPercentage float64
}

// Coverage computes coverage stats for clusters over a total index size.
// Documents shared between clusters count once. Orphans are expected with
// small samples.
func Coverage(clusters []Cluster, total int) Stats {
	covered := make(map[string]struct{})
	for _, c := range clusters {
		for _, m := range c.Members {
			covered[m.ID] = struct{}{}
		}
	}

	stats := Stats{
		Clusters:  len(clusters),
		Documents: total,
		Covered:   len(covered),
	}

	if orphans := total - len(covered); orphans > 0 {
		stats.Orphans = orphans
	}
	if total > 0 {
		stats.OrphanPercentage = float64(stats.Orphans) / float64(total) * 100
	}
	return stats
}

func (b *Builder) logCoverage(ctx context.Context, clusters []Cluster, total int) {
	stats := Coverage(clusters, total)
	b.logger.Info("built clusters",
		"clusters", stats.Clusters,
		"documents", stats.Documents,
		"covered", stats.Covered,
		"orphans", stats.Orphans,
		"orphan_percentage", fmt.Sprintf("%.1f", stats.OrphanPercentage),
	)
}
