// Package discovery implements the corpus-overview pipeline: sample
// anchors, build clusters, summarize each cluster, reduce into one
// overview.
package discovery

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/lectorhq/lector/pkg/cluster"
	"github.com/lectorhq/lector/pkg/human"
	"github.com/lectorhq/lector/pkg/llm"
	"github.com/lectorhq/lector/pkg/pipeline"
	"github.com/lectorhq/lector/pkg/prompts"
	"github.com/lectorhq/lector/pkg/sampler"
)

// Stage names in the discovery graph.
const (
	StageClusterRetrieve = "cluster_retrieve"
	StageMapSummarize    = "map_summarize"
	StageReduceSummarize = "reduce_summarize"
)

// Storer is the slice of the document store the discovery pipeline needs.
type Storer interface {
	cluster.Storer
	AllIDs(ctx context.Context) ([]string, error)
}

// ClusterRetrieve samples anchor documents and builds a cluster around
// each one.
type ClusterRetrieve struct {
	store      Storer
	builder    *cluster.Builder
	interactor human.Interactor
	sample     sampler.Options
}

// NewClusterRetrieve creates the sampling and clustering stage.
func NewClusterRetrieve(s Storer, cfg cluster.Config, sample sampler.Options, interactor human.Interactor, logger *slog.Logger) *ClusterRetrieve {
	return &ClusterRetrieve{
		store:      s,
		builder:    cluster.NewBuilder(s, cfg, logger),
		interactor: interactor,
		sample:     sample,
	}
}

func (c *ClusterRetrieve) Name() string { return StageClusterRetrieve }

func (c *ClusterRetrieve) Run(ctx context.Context, _ pipeline.State) (pipeline.Update, error) {
	if err := c.interactor.Notify(ctx, prompts.MsgMapRetrieving); err != nil {
		return pipeline.Update{}, err
	}

	allIDs, err := c.store.AllIDs(ctx)
	if err != nil {
		return pipeline.Update{}, fmt.Errorf("listing documents: %w", err)
	}

	anchors, err := sampler.Sample(allIDs, c.sample)
	if err != nil {
		return pipeline.Update{}, fmt.Errorf("sampling anchors: %w", err)
	}

	clusters, err := c.builder.Build(ctx, anchors)
	if err != nil {
		return pipeline.Update{}, fmt.Errorf("building clusters: %w", err)
	}

	return pipeline.Update{Clusters: &clusters}, nil
}

// MapSummarize summarizes every cluster concurrently. Unlike clustering,
// this phase is all or nothing: a single failed summary aborts the run,
// since a partial map would silently skew the reduce.
type MapSummarize struct {
	client      llm.Client
	interactor  human.Interactor
	concurrency int
}

// DefaultMapConcurrency bounds in-flight cluster summaries.
const DefaultMapConcurrency = 4

// NewMapSummarize creates the per-cluster summary stage.
// concurrency <= 0 uses DefaultMapConcurrency.
func NewMapSummarize(client llm.Client, interactor human.Interactor, concurrency int) *MapSummarize {
	if concurrency <= 0 {
		concurrency = DefaultMapConcurrency
	}
	return &MapSummarize{client: client, interactor: interactor, concurrency: concurrency}
}

func (m *MapSummarize) Name() string { return StageMapSummarize }

func (m *MapSummarize) Run(ctx context.Context, s pipeline.State) (pipeline.Update, error) {
	if err := m.interactor.Notify(ctx, prompts.MsgMapGenerating(len(s.Clusters))); err != nil {
		return pipeline.Update{}, err
	}

	summaries := make([]string, len(s.Clusters))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.concurrency)
	for i, cl := range s.Clusters {
		g.Go(func() error {
			docs := make([]string, len(cl.Members))
			for j, member := range cl.Members {
				docs[j] = member.Text
			}

			resp, err := m.client.Invoke(gctx, []llm.Message{
				llm.UserMessage(prompts.MapSummarizeCluster(docs)),
			})
			if err != nil {
				return fmt.Errorf("summarizing cluster %s: %w", cl.AnchorID, err)
			}
			summaries[i] = resp.Text
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return pipeline.Update{}, err
	}

	return pipeline.Update{ClusterSummaries: &summaries}, nil
}

// ReduceSummarize streams one overview synthesized from all cluster
// summaries.
type ReduceSummarize struct {
	client     llm.Client
	interactor human.Interactor
}

// NewReduceSummarize creates the reduce stage.
func NewReduceSummarize(client llm.Client, interactor human.Interactor) *ReduceSummarize {
	return &ReduceSummarize{client: client, interactor: interactor}
}

func (r *ReduceSummarize) Name() string { return StageReduceSummarize }

// Run synthesizes the overview. An empty summary list means the knowledge
// base had nothing to sample; the user is told so and no model call is
// made.
func (r *ReduceSummarize) Run(ctx context.Context, s pipeline.State) (pipeline.Update, error) {
	if len(s.ClusterSummaries) == 0 {
		if err := r.interactor.Notify(ctx, prompts.MsgEmptyKnowledgeBase); err != nil {
			return pipeline.Update{}, err
		}
		empty := ""
		return pipeline.Update{Summary: &empty}, nil
	}

	if err := r.interactor.Notify(ctx, prompts.MsgReduceSynthesizing); err != nil {
		return pipeline.Update{}, err
	}

	prompt := llm.UserMessage(prompts.ReduceSummaries(s.ClusterSummaries))
	msgs := append(append([]llm.Message{}, s.Messages...), prompt)

	w := r.interactor.Stream(ctx)
	resp, err := r.client.InvokeStream(ctx, msgs, func(delta string) error {
		_, werr := w.Write([]byte(delta))
		return werr
	})
	if err != nil {
		return pipeline.Update{}, fmt.Errorf("reducing summaries: %w", err)
	}

	return pipeline.Update{
		Summary:        &resp.Text,
		AppendMessages: []llm.Message{prompt, llm.AssistantMessage(resp.Text)},
	}, nil
}

// GraphConfig assembles a full discovery engine.
type GraphConfig struct {
	Client         llm.Client
	Store          Storer
	Interactor     human.Interactor
	Sample         sampler.Options
	Cluster        cluster.Config
	MapConcurrency int
	Logger         *slog.Logger
}

// NewGraph wires the three discovery stages into an engine.
func NewGraph(cfg GraphConfig) *pipeline.Engine {
	engine := pipeline.NewEngine(cfg.Logger)

	engine.Add(NewClusterRetrieve(cfg.Store, cfg.Cluster, cfg.Sample, cfg.Interactor, cfg.Logger), func(pipeline.State) string {
		return StageMapSummarize
	})
	engine.Add(NewMapSummarize(cfg.Client, cfg.Interactor, cfg.MapConcurrency), func(pipeline.State) string {
		return StageReduceSummarize
	})
	engine.Add(NewReduceSummarize(cfg.Client, cfg.Interactor), nil)

	engine.SetStart(StageClusterRetrieve)
	return engine
}
