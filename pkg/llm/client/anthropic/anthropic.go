// Package anthropic implements the llm.Client interface against Anthropic's
// Messages API.
package anthropic

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/lectorhq/lector/pkg/llm"
)

const (
	// DefaultModel is the default chat model.
	DefaultModel = "claude-3-5-haiku-latest"

	// DefaultBaseURL is the Anthropic API URL.
	DefaultBaseURL = "https://api.anthropic.com"

	// apiVersion is the pinned Messages API version header.
	apiVersion = "2023-06-01"

	// defaultMaxTokens bounds response length; max_tokens is required by the API.
	defaultMaxTokens = 4096
)

// Client wraps Anthropic's Messages API.
type Client struct {
	baseURL    string
	apiKey     string
	model      string
	maxTokens  int
	httpClient *http.Client
}

// Config holds configuration for the Anthropic client.
type Config struct {
	// BaseURL defaults to DefaultBaseURL if empty.
	BaseURL string

	// APIKey is the Anthropic API key. Falls back to ANTHROPIC_API_KEY.
	APIKey string

	// Model defaults to DefaultModel if empty.
	Model string

	// MaxTokens defaults to defaultMaxTokens if zero.
	MaxTokens int

	// Timeout bounds each HTTP request. Defaults to 120s if zero.
	Timeout time.Duration
}

type messagesRequest struct {
	Model     string       `json:"model"`
	MaxTokens int          `json:"max_tokens"`
	System    string       `json:"system,omitempty"`
	Messages  []apiMessage `json:"messages"`
	Stream    bool         `json:"stream,omitempty"`
}

type apiMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messagesResponse struct {
	ID         string         `json:"id"`
	Type       string         `json:"type"`
	Role       string         `json:"role"`
	Model      string         `json:"model"`
	Content    []contentBlock `json:"content"`
	StopReason string         `json:"stop_reason"`
	Usage      *apiUsage      `json:"usage,omitempty"`
}

type contentBlock struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

type apiUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// streamEvent covers the SSE event payloads we care about:
// content_block_delta (text deltas) and message_delta (stop reason, usage).
type streamEvent struct {
	Type  string `json:"type"`
	Delta struct {
		Type       string `json:"type"`
		Text       string `json:"text"`
		StopReason string `json:"stop_reason"`
	} `json:"delta"`
	Message *messagesResponse `json:"message,omitempty"`
	Usage   *apiUsage         `json:"usage,omitempty"`
}

// NewClient creates a new Anthropic Messages API client.
func NewClient(cfg Config) (*Client, error) {
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("anthropic API key is required (set ANTHROPIC_API_KEY)")
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}

	maxTokens := cfg.MaxTokens
	if maxTokens == 0 {
		maxTokens = defaultMaxTokens
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 120 * time.Second
	}

	return &Client{
		baseURL:   baseURL,
		apiKey:    apiKey,
		model:     model,
		maxTokens: maxTokens,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

// Name returns the client identifier.
func (c *Client) Name() string {
	return "anthropic:" + c.model
}

// Invoke sends the messages and returns the complete response.
func (c *Client) Invoke(ctx context.Context, msgs []llm.Message) (*llm.Response, error) {
	body, err := c.send(ctx, msgs, false)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	var resp messagesResponse
	if err := json.NewDecoder(body).Decode(&resp); err != nil {
		return nil, fmt.Errorf("%w: decoding response: %v", llm.ErrModelCall, err)
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}

	return c.toResponse(resp.Model, text.String(), resp.StopReason, resp.Usage), nil
}

// InvokeStream sends the messages and calls fn with each text delta.
func (c *Client) InvokeStream(ctx context.Context, msgs []llm.Message, fn llm.StreamFunc) (*llm.Response, error) {
	body, err := c.send(ctx, msgs, true)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	var text strings.Builder
	var stopReason string
	var usage *apiUsage

	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if payload == "" {
			continue
		}

		var event streamEvent
		if err := json.Unmarshal([]byte(payload), &event); err != nil {
			return nil, fmt.Errorf("%w: decoding stream event: %v", llm.ErrModelCall, err)
		}

		switch event.Type {
		case "content_block_delta":
			if event.Delta.Text != "" {
				text.WriteString(event.Delta.Text)
				if fn != nil {
					if err := fn(event.Delta.Text); err != nil {
						return nil, fmt.Errorf("stream callback: %w", err)
					}
				}
			}
		case "message_delta":
			if event.Delta.StopReason != "" {
				stopReason = event.Delta.StopReason
			}
			if event.Usage != nil {
				usage = event.Usage
			}
		case "message_stop":
			// Terminal event; remaining lines are keep-alives.
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%w: reading stream: %v", llm.ErrModelCall, err)
	}

	return c.toResponse(c.model, text.String(), stopReason, usage), nil
}

// InvokeStructured asks for a bare JSON object and decodes it into out.
// The Messages API has no JSON mode, so the request carries an explicit
// system instruction instead.
func (c *Client) InvokeStructured(ctx context.Context, msgs []llm.Message, out any) error {
	resp, err := c.Invoke(ctx, append([]llm.Message{
		llm.SystemMessage("Respond with a single JSON object only. No prose, no code fences."),
	}, msgs...))
	if err != nil {
		return err
	}
	return llm.DecodeStructured(resp.Text, out)
}

func (c *Client) send(ctx context.Context, msgs []llm.Message, stream bool) (io.ReadCloser, error) {
	reqBody := messagesRequest{
		Model:     c.model,
		MaxTokens: c.maxTokens,
		Stream:    stream,
	}

	// The Messages API takes the system prompt as a top-level field.
	for _, m := range msgs {
		if m.Role == llm.RoleSystem {
			if reqBody.System != "" {
				reqBody.System += "\n"
			}
			reqBody.System += m.GetText()
			continue
		}
		reqBody.Messages = append(reqBody.Messages, apiMessage{
			Role:    m.Role,
			Content: m.GetText(),
		})
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("%w: marshaling request: %v", llm.ErrModelCall, err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/v1/messages", bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("%w: creating request: %v", llm.ErrModelCall, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", apiVersion)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: sending request: %v", llm.ErrModelCall, err)
	}

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, fmt.Errorf("%w: status %d: %s", llm.ErrModelCall, resp.StatusCode, string(body))
	}

	return resp.Body, nil
}

func (c *Client) toResponse(model, text, stopReason string, usage *apiUsage) *llm.Response {
	r := &llm.Response{
		Model:      model,
		Text:       text,
		StopReason: stopReason,
		CreatedAt:  time.Now(),
	}
	if usage != nil {
		r.Usage = &llm.Usage{
			PromptTokens:     usage.InputTokens,
			CompletionTokens: usage.OutputTokens,
			TotalTokens:      usage.InputTokens + usage.OutputTokens,
		}
	}
	return r
}
