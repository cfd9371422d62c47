// Package client constructs llm.Client implementations from model names of the
// form "provider:model" (e.g. "anthropic:claude-3-5-haiku-latest").
package client

import (
	"fmt"
	"strings"
	"time"

	"github.com/lectorhq/lector/pkg/llm"
	"github.com/lectorhq/lector/pkg/llm/client/anthropic"
	"github.com/lectorhq/lector/pkg/llm/client/ollama"
	"github.com/lectorhq/lector/pkg/llm/client/openai"
)

// Supported provider type constants.
const (
	Anthropic = "anthropic"
	OpenAI    = "openai"
	Ollama    = "ollama"
)

// Options carries provider-independent construction settings.
// Zero values fall back to each provider's defaults.
type Options struct {
	// BaseURL overrides the provider's API endpoint.
	BaseURL string

	// APIKey overrides the provider's environment-variable key lookup.
	APIKey string

	// Timeout bounds each HTTP request.
	Timeout time.Duration
}

// SupportedProviders returns the list of all supported provider type names.
func SupportedProviders() []string {
	return []string{Anthropic, OpenAI, Ollama}
}

// Parse splits a "provider:model" name. A bare name with no colon resolves to
// the ollama provider, matching local-first defaults.
func Parse(name string) (provider, model string) {
	provider, model, found := strings.Cut(name, ":")
	if !found {
		return Ollama, name
	}
	return provider, model
}

// New creates an llm.Client for the given "provider:model" name.
// Returns an error if the provider is not recognized or the provider's
// required credentials are missing.
func New(name string, opts Options) (llm.Client, error) {
	provider, model := Parse(name)

	switch provider {
	case Anthropic:
		return anthropic.NewClient(anthropic.Config{
			BaseURL: opts.BaseURL,
			APIKey:  opts.APIKey,
			Model:   model,
			Timeout: opts.Timeout,
		})
	case OpenAI:
		return openai.NewClient(openai.Config{
			BaseURL: opts.BaseURL,
			APIKey:  opts.APIKey,
			Model:   model,
			Timeout: opts.Timeout,
		})
	case Ollama:
		return ollama.NewClient(ollama.Config{
			BaseURL: opts.BaseURL,
			Model:   model,
			Timeout: opts.Timeout,
		})
	default:
		return nil, fmt.Errorf("unknown provider type: %q (supported: %v)", provider, SupportedProviders())
	}
}
