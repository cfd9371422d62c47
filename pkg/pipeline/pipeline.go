// Package pipeline runs staged LLM workflows over an explicit graph.
//
// Stages never mutate shared state: each receives a State snapshot and
// returns an Update delta, which the engine merges before routing to the
// next stage. Routing is a pure function of the merged state.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/lectorhq/lector/pkg/cluster"
	"github.com/lectorhq/lector/pkg/llm"
)

// End is the router return value that stops the run.
const End = "__end__"

// DefaultMaxSteps guards against routing cycles.
const DefaultMaxSteps = 64

var (
	// ErrUnknownStage is returned when a router names a stage that was
	// never registered.
	ErrUnknownStage = errors.New("unknown stage")

	// ErrStepLimit is returned when a run exceeds the step limit.
	ErrStepLimit = errors.New("step limit exceeded")
)

// State is a snapshot of one pipeline run.
type State struct {
	UserQuery          string
	Subqueries         []string
	RetrievedDocuments []string
	RetrievedMetadatas []map[string]any
	Clusters           []cluster.Cluster
	ClusterSummaries   []string
	Summary            string
	Messages           []llm.Message
	Revisions          int

	// Approval carries the latest human approval decision so routers
	// can branch on it.
	Approval string
}

// Update is a partial delta produced by a stage. Nil fields leave the
// corresponding state field untouched; Messages are append-only.
type Update struct {
	Subqueries         *[]string
	RetrievedDocuments *[]string
	RetrievedMetadatas *[]map[string]any
	Clusters           *[]cluster.Cluster
	ClusterSummaries   *[]string
	Summary            *string
	Revisions          *int
	Approval           *string
	AppendMessages     []llm.Message
}

// Apply merges an update into a copy of the state and returns the copy.
func (s State) Apply(u Update) State {
	if u.Subqueries != nil {
		s.Subqueries = *u.Subqueries
	}
	if u.RetrievedDocuments != nil {
		s.RetrievedDocuments = *u.RetrievedDocuments
	}
	if u.RetrievedMetadatas != nil {
		s.RetrievedMetadatas = *u.RetrievedMetadatas
	}
	if u.Clusters != nil {
		s.Clusters = *u.Clusters
	}
	if u.ClusterSummaries != nil {
		s.ClusterSummaries = *u.ClusterSummaries
	}
	if u.Summary != nil {
		s.Summary = *u.Summary
	}
	if u.Revisions != nil {
		s.Revisions = *u.Revisions
	}
	if u.Approval != nil {
		s.Approval = *u.Approval
	}
	if len(u.AppendMessages) > 0 {
		merged := make([]llm.Message, 0, len(s.Messages)+len(u.AppendMessages))
		merged = append(merged, s.Messages...)
		merged = append(merged, u.AppendMessages...)
		s.Messages = merged
	}
	return s
}

// Stage is one unit of pipeline work.
type Stage interface {
	Name() string
	Run(ctx context.Context, state State) (Update, error)
}

// Router picks the next stage name (or End) from the post-stage state.
type Router func(State) string

// Engine executes stages over an explicit graph.
type Engine struct {
	stages   map[string]Stage
	routers  map[string]Router
	start    string
	maxSteps int
	logger   *slog.Logger
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithMaxSteps overrides the cycle guard.
func WithMaxSteps(n int) EngineOption {
	return func(e *Engine) {
		if n > 0 {
			e.maxSteps = n
		}
	}
}

// NewEngine creates an empty engine.
func NewEngine(logger *slog.Logger, opts ...EngineOption) *Engine {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	e := &Engine{
		stages:   make(map[string]Stage),
		routers:  make(map[string]Router),
		maxSteps: DefaultMaxSteps,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Add registers a stage with its router. A nil router ends the run after
// the stage. The first stage added is the start stage unless SetStart is
// called.
func (e *Engine) Add(stage Stage, router Router) *Engine {
	name := stage.Name()
	e.stages[name] = stage
	if router == nil {
		router = func(State) string { return End }
	}
	e.routers[name] = router
	if e.start == "" {
		e.start = name
	}
	return e
}

// SetStart overrides the starting stage.
func (e *Engine) SetStart(name string) *Engine {
	e.start = name
	return e
}

// Run executes the graph from the start stage until a router returns End.
func (e *Engine) Run(ctx context.Context, initial State) (State, error) {
	state := initial
	current := e.start

	for step := 0; step < e.maxSteps; step++ {
		if err := ctx.Err(); err != nil {
			return state, err
		}

		stage, ok := e.stages[current]
		if !ok {
			return state, fmt.Errorf("%w: %q", ErrUnknownStage, current)
		}

		e.logger.Debug("running stage", "stage", current, "step", step)

		update, err := stage.Run(ctx, state)
		if err != nil {
			return state, fmt.Errorf("stage %s: %w", current, err)
		}
		state = state.Apply(update)

		next := e.routers[current](state)
		if next == End {
			return state, nil
		}
		current = next
	}

	return state, fmt.Errorf("%w: %d steps", ErrStepLimit, e.maxSteps)
}
