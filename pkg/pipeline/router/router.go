// Package router classifies a user query as a question-answering request
// or a corpus-discovery request.
package router

import (
	"context"
	"fmt"

	"github.com/lectorhq/lector/pkg/llm"
	"github.com/lectorhq/lector/pkg/prompts"
)

// Destinations.
const (
	DestinationQA        = "qa"
	DestinationDiscovery = "discovery"
)

// Route is the structured classification result.
type Route struct {
	Destination string `json:"destination"`
}

// Validate restricts Destination to the two known pipelines.
func (r *Route) Validate() error {
	if r.Destination != DestinationQA && r.Destination != DestinationDiscovery {
		return fmt.Errorf("destination must be %q or %q, got %q", DestinationQA, DestinationDiscovery, r.Destination)
	}
	return nil
}

// Router picks a pipeline for a query.
type Router struct {
	client llm.Client
}

// New creates a router backed by the given model.
func New(client llm.Client) *Router {
	return &Router{client: client}
}

// Route classifies the query. QA is the default destination; discovery is
// reserved for explicit whole-corpus requests.
func (r *Router) Route(ctx context.Context, userQuery string) (string, error) {
	var route Route
	err := r.client.InvokeStructured(ctx, []llm.Message{
		llm.SystemMessage(prompts.Route(userQuery)),
	}, &route)
	if err != nil {
		return "", fmt.Errorf("routing query: %w", err)
	}
	return route.Destination, nil
}
