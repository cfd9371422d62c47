// Package fallback wraps a primary and a secondary llm.Client so that any
// failed primary call is retried once against the secondary before the error
// surfaces to the pipeline.
package fallback

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/lectorhq/lector/pkg/llm"
)

// Client retries failed primary calls against a secondary client.
// One fallback hop only; if both fail the joined error propagates.
type Client struct {
	primary   llm.Client
	secondary llm.Client
	logger    *slog.Logger
}

// New creates a fallback client. secondary may be nil, in which case the
// wrapper is a passthrough.
func New(primary, secondary llm.Client, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Client{
		primary:   primary,
		secondary: secondary,
		logger:    logger,
	}
}

// Name returns the primary client's identifier.
func (c *Client) Name() string {
	return c.primary.Name()
}

// Invoke calls the primary client, falling back to the secondary on failure.
func (c *Client) Invoke(ctx context.Context, msgs []llm.Message) (*llm.Response, error) {
	resp, err := c.primary.Invoke(ctx, msgs)
	if err == nil || c.secondary == nil {
		return resp, err
	}
	c.logFallback(err)

	resp, ferr := c.secondary.Invoke(ctx, msgs)
	if ferr != nil {
		return nil, fmt.Errorf("fallback %s also failed: %w", c.secondary.Name(), errors.Join(err, ferr))
	}
	return resp, nil
}

// InvokeStream calls the primary client, falling back to the secondary on failure.
// A stream that fails after deltas were already delivered is not retried; the
// fallback only covers calls that failed before producing output.
func (c *Client) InvokeStream(ctx context.Context, msgs []llm.Message, fn llm.StreamFunc) (*llm.Response, error) {
	delivered := false
	wrapped := func(delta string) error {
		delivered = true
		if fn == nil {
			return nil
		}
		return fn(delta)
	}

	resp, err := c.primary.InvokeStream(ctx, msgs, wrapped)
	if err == nil || c.secondary == nil || delivered {
		return resp, err
	}
	c.logFallback(err)

	resp, ferr := c.secondary.InvokeStream(ctx, msgs, fn)
	if ferr != nil {
		return nil, fmt.Errorf("fallback %s also failed: %w", c.secondary.Name(), errors.Join(err, ferr))
	}
	return resp, nil
}

// InvokeStructured calls the primary client, falling back to the secondary on
// a model-call failure. Validation failures are not retried: a response that
// decoded but violated its contract will not get better on another model.
func (c *Client) InvokeStructured(ctx context.Context, msgs []llm.Message, out any) error {
	err := c.primary.InvokeStructured(ctx, msgs, out)
	if err == nil || c.secondary == nil || errors.Is(err, llm.ErrValidation) {
		return err
	}
	c.logFallback(err)

	if ferr := c.secondary.InvokeStructured(ctx, msgs, out); ferr != nil {
		return fmt.Errorf("fallback %s also failed: %w", c.secondary.Name(), errors.Join(err, ferr))
	}
	return nil
}

func (c *Client) logFallback(err error) {
	c.logger.Warn("primary model call failed, retrying on fallback",
		"primary", c.primary.Name(),
		"fallback", c.secondary.Name(),
		"error", err,
	)
}
