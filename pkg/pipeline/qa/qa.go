// Package qa implements the question-answering pipeline: optimize the
// query, gate the sub-queries past the user, retrieve, summarize.
package qa

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/lectorhq/lector/pkg/human"
	"github.com/lectorhq/lector/pkg/llm"
	"github.com/lectorhq/lector/pkg/pipeline"
	"github.com/lectorhq/lector/pkg/prompts"
	"github.com/lectorhq/lector/pkg/store"
	"github.com/lectorhq/lector/pkg/vector"
)

// Stage names in the QA graph.
const (
	StageOptimizer  = "optimizer"
	StageApproval   = "approval"
	StageRetriever  = "retriever"
	StageSummarizer = "summarizer"
)

// Approval decisions.
const (
	ActionRegenerate = "regenerate_queries"
	ActionProceed    = "proceed_to_retrieval"
)

const (
	// DefaultApprovalTimeout is how long the gate waits for feedback.
	DefaultApprovalTimeout = 90 * time.Second

	// DefaultMaxRevisions bounds the regenerate loop.
	DefaultMaxRevisions = 3

	// DefaultTopK is the per-query retrieval depth.
	DefaultTopK = 10
)

// Optimizer decomposes the user query into retrieval sub-queries.
type Optimizer struct {
	client    llm.Client
	decompose bool
}

// NewOptimizer creates the query optimizer stage. With decompose false it
// passes the user query through untouched.
func NewOptimizer(client llm.Client, decompose bool) *Optimizer {
	return &Optimizer{client: client, decompose: decompose}
}

func (o *Optimizer) Name() string { return StageOptimizer }

// Run produces the sub-query list. Decomposition failures propagate and
// abort the run; callers wanting resilience configure a fallback client.
func (o *Optimizer) Run(ctx context.Context, s pipeline.State) (pipeline.Update, error) {
	if !o.decompose {
		subqueries := []string{s.UserQuery}
		return pipeline.Update{Subqueries: &subqueries}, nil
	}

	prompt := llm.UserMessage(prompts.QueryDecompose(s.UserQuery))
	msgs := append(append([]llm.Message{}, s.Messages...), prompt)

	resp, err := o.client.Invoke(ctx, msgs)
	if err != nil {
		return pipeline.Update{}, fmt.Errorf("decomposing query: %w", err)
	}

	var subqueries []string
	for _, line := range strings.Split(resp.Text, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			subqueries = append(subqueries, line)
		}
	}

	return pipeline.Update{
		Subqueries:     &subqueries,
		AppendMessages: []llm.Message{prompt, llm.AssistantMessage(resp.Text)},
	}, nil
}

// Decision is the structured interpretation of approval feedback.
type Decision struct {
	Action string `json:"action"`
}

// Validate restricts Action to the two known decisions.
func (d *Decision) Validate() error {
	if d.Action != ActionRegenerate && d.Action != ActionProceed {
		return fmt.Errorf("action must be %q or %q, got %q", ActionRegenerate, ActionProceed, d.Action)
	}
	return nil
}

// ApprovalGate asks the user to review the generated sub-queries.
//
// Silence is consent: a timeout notifies once and proceeds with the
// sub-queries as they are. Explicit feedback is interpreted by the model
// into a Decision; the regenerate loop is bounded by MaxRevisions, after
// which the gate notifies and forces a proceed.
type ApprovalGate struct {
	client       llm.Client
	interactor   human.Interactor
	timeout      time.Duration
	maxRevisions int
	logger       *slog.Logger
}

// GateConfig holds configuration for the approval gate.
type GateConfig struct {
	// Timeout is the feedback wait. Defaults to DefaultApprovalTimeout.
	Timeout time.Duration

	// MaxRevisions bounds regenerate cycles. Defaults to DefaultMaxRevisions.
	MaxRevisions int
}

// NewApprovalGate creates the human approval stage.
func NewApprovalGate(client llm.Client, interactor human.Interactor, cfg GateConfig, logger *slog.Logger) *ApprovalGate {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultApprovalTimeout
	}
	if cfg.MaxRevisions <= 0 {
		cfg.MaxRevisions = DefaultMaxRevisions
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &ApprovalGate{
		client:       client,
		interactor:   interactor,
		timeout:      cfg.Timeout,
		maxRevisions: cfg.MaxRevisions,
		logger:       logger,
	}
}

func (g *ApprovalGate) Name() string { return StageApproval }

func (g *ApprovalGate) Run(ctx context.Context, s pipeline.State) (pipeline.Update, error) {
	proceed := ActionProceed

	feedback, ok, err := g.interactor.AskText(ctx, prompts.MsgAskFeedback, g.timeout)
	if err != nil {
		return pipeline.Update{}, fmt.Errorf("asking for feedback: %w", err)
	}
	if !ok {
		if err := g.interactor.Notify(ctx, prompts.MsgApprovalTimeout(g.timeout.String())); err != nil {
			return pipeline.Update{}, err
		}
		return pipeline.Update{Approval: &proceed}, nil
	}

	msgs := append(append([]llm.Message{}, s.Messages...),
		llm.AssistantMessage(prompts.MsgAskFeedback),
		llm.UserMessage(feedback),
		llm.SystemMessage(prompts.ApprovalDecision()),
	)

	var decision Decision
	if err := g.client.InvokeStructured(ctx, msgs, &decision); err != nil {
		return pipeline.Update{}, fmt.Errorf("interpreting feedback: %w", err)
	}

	update := pipeline.Update{
		AppendMessages: []llm.Message{
			llm.AssistantMessage(prompts.MsgAskFeedback),
			llm.UserMessage(feedback),
		},
	}

	if decision.Action == ActionRegenerate {
		revisions := s.Revisions + 1
		if revisions >= g.maxRevisions {
			g.logger.Info("revision limit reached, forcing proceed", "revisions", revisions)
			if err := g.interactor.Notify(ctx, prompts.MsgForcedProceed(g.maxRevisions)); err != nil {
				return pipeline.Update{}, err
			}
			update.Revisions = &revisions
			update.Approval = &proceed
			return update, nil
		}

		regenerate := ActionRegenerate
		update.Revisions = &revisions
		update.Approval = &regenerate
		return update, nil
	}

	update.Approval = &proceed
	return update, nil
}

// Storer is the slice of the document store the retriever needs.
type Storer interface {
	Query(ctx context.Context, queryTexts []string, topK int, opts ...store.QueryOption) ([][]vector.QueryResult, error)
}

// Retriever queries the store with the user query plus every sub-query
// and merges the results.
type Retriever struct {
	store      Storer
	interactor human.Interactor
	topK       int
}

// NewRetriever creates the retrieval stage. topK <= 0 uses DefaultTopK.
func NewRetriever(s Storer, interactor human.Interactor, topK int) *Retriever {
	if topK <= 0 {
		topK = DefaultTopK
	}
	return &Retriever{store: s, interactor: interactor, topK: topK}
}

func (r *Retriever) Name() string { return StageRetriever }

// Run retrieves documents. The original user query is always prepended so
// the query set is never empty. Results are merged across sub-queries:
// union deduplicated by document ID, ordered by best score.
func (r *Retriever) Run(ctx context.Context, s pipeline.State) (pipeline.Update, error) {
	queries := append([]string{s.UserQuery}, s.Subqueries...)

	if err := r.interactor.Notify(ctx, prompts.MsgRetrieverQuerying(len(queries))); err != nil {
		return pipeline.Update{}, err
	}

	resultSets, err := r.store.Query(ctx, queries, r.topK)
	if err != nil {
		return pipeline.Update{}, fmt.Errorf("querying store: %w", err)
	}

	merged := mergeResults(resultSets)

	docs := make([]string, len(merged))
	metas := make([]map[string]any, len(merged))
	for i, res := range merged {
		docs[i] = res.Text
		metas[i] = res.Metadata
	}

	if err := r.interactor.Notify(ctx, prompts.MsgRetrieverRetrieved(len(docs))); err != nil {
		return pipeline.Update{}, err
	}

	return pipeline.Update{
		RetrievedDocuments: &docs,
		RetrievedMetadatas: &metas,
	}, nil
}

// mergeResults unions result lists, keeping each document once at its
// best score, ordered best-first. Ties keep first-seen order.
func mergeResults(resultSets [][]vector.QueryResult) []vector.QueryResult {
	best := make(map[string]vector.QueryResult)
	var order []string

	for _, set := range resultSets {
		for _, res := range set {
			existing, seen := best[res.ID]
			if !seen {
				best[res.ID] = res
				order = append(order, res.ID)
				continue
			}
			if res.Score > existing.Score {
				best[res.ID] = res
			}
		}
	}

	merged := make([]vector.QueryResult, len(order))
	for i, id := range order {
		merged[i] = best[id]
	}
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Score > merged[j].Score
	})
	return merged
}

// Summarizer streams a final answer synthesized from the retrieved
// documents.
type Summarizer struct {
	client     llm.Client
	interactor human.Interactor
}

// NewSummarizer creates the answer synthesis stage.
func NewSummarizer(client llm.Client, interactor human.Interactor) *Summarizer {
	return &Summarizer{client: client, interactor: interactor}
}

func (s *Summarizer) Name() string { return StageSummarizer }

func (s *Summarizer) Run(ctx context.Context, state pipeline.State) (pipeline.Update, error) {
	if err := s.interactor.Notify(ctx, prompts.MsgSummarizerSynthesizing(len(state.RetrievedDocuments))); err != nil {
		return pipeline.Update{}, err
	}

	prompt := llm.UserMessage(prompts.QASummarize(state.UserQuery, state.RetrievedDocuments))
	msgs := append(append([]llm.Message{}, state.Messages...), prompt)

	w := s.interactor.Stream(ctx)
	resp, err := s.client.InvokeStream(ctx, msgs, func(delta string) error {
		_, werr := w.Write([]byte(delta))
		return werr
	})
	if err != nil {
		return pipeline.Update{}, fmt.Errorf("summarizing: %w", err)
	}

	return pipeline.Update{
		Summary:        &resp.Text,
		AppendMessages: []llm.Message{prompt, llm.AssistantMessage(resp.Text)},
	}, nil
}

// GraphConfig assembles a full QA engine.
type GraphConfig struct {
	Client     llm.Client
	Store      Storer
	Interactor human.Interactor
	Decompose  bool
	Approve    bool
	TopK       int
	Gate       GateConfig
	Logger     *slog.Logger
}

// NewGraph wires the four QA stages into an engine. With Approve false the
// gate is skipped entirely (noninteractive callers such as the HTTP API).
func NewGraph(cfg GraphConfig) *pipeline.Engine {
	engine := pipeline.NewEngine(cfg.Logger)

	afterOptimizer := StageRetriever
	if cfg.Approve {
		afterOptimizer = StageApproval
	}

	engine.Add(NewOptimizer(cfg.Client, cfg.Decompose), func(pipeline.State) string {
		return afterOptimizer
	})

	if cfg.Approve {
		engine.Add(NewApprovalGate(cfg.Client, cfg.Interactor, cfg.Gate, cfg.Logger), func(s pipeline.State) string {
			if s.Approval == ActionRegenerate {
				return StageOptimizer
			}
			return StageRetriever
		})
	}

	engine.Add(NewRetriever(cfg.Store, cfg.Interactor, cfg.TopK), func(pipeline.State) string {
		return StageSummarizer
	})
	engine.Add(NewSummarizer(cfg.Client, cfg.Interactor), nil)

	engine.SetStart(StageOptimizer)
	return engine
}
