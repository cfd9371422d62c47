// Package llmtest provides a scripted llm.Client for tests.
package llmtest

import (
	"context"
	"sync"

	"github.com/lectorhq/lector/pkg/llm"
)

// Client is a fake llm.Client. Behavior is scripted via the function fields;
// unset fields return a Response echoing the last message's text. All calls
// are recorded and safe for concurrent use.
type Client struct {
	ClientName string

	// InvokeFn, when set, handles Invoke and InvokeStream calls.
	InvokeFn func(ctx context.Context, msgs []llm.Message) (*llm.Response, error)

	// StructuredFn, when set, handles InvokeStructured calls.
	StructuredFn func(ctx context.Context, msgs []llm.Message, out any) error

	mu    sync.Mutex
	calls [][]llm.Message
}

func (c *Client) Name() string {
	if c.ClientName == "" {
		return "test:model"
	}
	return c.ClientName
}

// Calls returns a copy of every message slice the client received.
func (c *Client) Calls() [][]llm.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([][]llm.Message, len(c.calls))
	copy(out, c.calls)
	return out
}

// CallCount returns the number of invocations of any kind.
func (c *Client) CallCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.calls)
}

func (c *Client) record(msgs []llm.Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, msgs)
}

func (c *Client) Invoke(ctx context.Context, msgs []llm.Message) (*llm.Response, error) {
	c.record(msgs)
	if c.InvokeFn != nil {
		return c.InvokeFn(ctx, msgs)
	}
	return c.echo(msgs), nil
}

func (c *Client) InvokeStream(ctx context.Context, msgs []llm.Message, fn llm.StreamFunc) (*llm.Response, error) {
	c.record(msgs)

	var resp *llm.Response
	var err error
	if c.InvokeFn != nil {
		resp, err = c.InvokeFn(ctx, msgs)
	} else {
		resp = c.echo(msgs)
	}
	if err != nil {
		return nil, err
	}

	if fn != nil && resp.Text != "" {
		if err := fn(resp.Text); err != nil {
			return nil, err
		}
	}
	return resp, nil
}

func (c *Client) InvokeStructured(ctx context.Context, msgs []llm.Message, out any) error {
	c.record(msgs)
	if c.StructuredFn != nil {
		return c.StructuredFn(ctx, msgs, out)
	}
	return nil
}

func (c *Client) echo(msgs []llm.Message) *llm.Response {
	text := ""
	if len(msgs) > 0 {
		last := msgs[len(msgs)-1]
		text = last.GetText()
	}
	return &llm.Response{Model: c.Name(), Text: text, StopReason: "stop"}
}
