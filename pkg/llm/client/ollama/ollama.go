// Package ollama implements the llm.Client interface against Ollama's chat API.
package ollama

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/lectorhq/lector/pkg/llm"
)

const (
	// DefaultModel is the default chat model.
	DefaultModel = "llama3.2"

	// DefaultBaseURL is the default Ollama API URL.
	DefaultBaseURL = "http://localhost:11434"
)

// Client wraps Ollama's chat API.
type Client struct {
	baseURL    string
	model      string
	httpClient *http.Client
}

// Config holds configuration for the Ollama chat client.
type Config struct {
	// BaseURL is the Ollama API URL (e.g., "http://localhost:11434").
	// Defaults to DefaultBaseURL if empty.
	BaseURL string

	// Model is the chat model to use. Defaults to DefaultModel if empty.
	Model string

	// Timeout bounds each HTTP request. Defaults to 120s if zero.
	Timeout time.Duration
}

// chatRequest is the request body for Ollama's chat API.
type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
	Format   string        `json:"format,omitempty"`
}

// chatMessage is an Ollama-native message.
type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatResponse is a single (or streamed) chat response chunk.
type chatResponse struct {
	Model           string      `json:"model"`
	CreatedAt       time.Time   `json:"created_at"`
	Message         chatMessage `json:"message"`
	Done            bool        `json:"done"`
	DoneReason      string      `json:"done_reason,omitempty"`
	PromptEvalCount int         `json:"prompt_eval_count,omitempty"`
	EvalCount       int         `json:"eval_count,omitempty"`
}

// NewClient creates a new chat client for Ollama's chat API.
func NewClient(cfg Config) (*Client, error) {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 120 * time.Second
	}

	return &Client{
		baseURL: baseURL,
		model:   model,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

// Name returns the client identifier.
func (c *Client) Name() string {
	return "ollama:" + c.model
}

// Invoke sends the messages and returns the complete response.
func (c *Client) Invoke(ctx context.Context, msgs []llm.Message) (*llm.Response, error) {
	body, err := c.send(ctx, msgs, false, "")
	if err != nil {
		return nil, err
	}
	defer body.Close()

	var resp chatResponse
	if err := json.NewDecoder(body).Decode(&resp); err != nil {
		return nil, fmt.Errorf("%w: decoding response: %v", llm.ErrModelCall, err)
	}

	return toResponse(&resp, resp.Message.Content), nil
}

// InvokeStream sends the messages and calls fn with each text delta.
func (c *Client) InvokeStream(ctx context.Context, msgs []llm.Message, fn llm.StreamFunc) (*llm.Response, error) {
	body, err := c.send(ctx, msgs, true, "")
	if err != nil {
		return nil, err
	}
	defer body.Close()

	var text bytes.Buffer
	var last chatResponse

	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		var chunk chatResponse
		if err := json.Unmarshal(line, &chunk); err != nil {
			return nil, fmt.Errorf("%w: decoding stream chunk: %v", llm.ErrModelCall, err)
		}

		if chunk.Message.Content != "" {
			text.WriteString(chunk.Message.Content)
			if fn != nil {
				if err := fn(chunk.Message.Content); err != nil {
					return nil, fmt.Errorf("stream callback: %w", err)
				}
			}
		}

		last = chunk
		if chunk.Done {
			break
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%w: reading stream: %v", llm.ErrModelCall, err)
	}

	return toResponse(&last, text.String()), nil
}

// InvokeStructured sends the messages in JSON mode and decodes the result into out.
func (c *Client) InvokeStructured(ctx context.Context, msgs []llm.Message, out any) error {
	body, err := c.send(ctx, msgs, false, "json")
	if err != nil {
		return err
	}
	defer body.Close()

	var resp chatResponse
	if err := json.NewDecoder(body).Decode(&resp); err != nil {
		return fmt.Errorf("%w: decoding response: %v", llm.ErrModelCall, err)
	}

	return llm.DecodeStructured(resp.Message.Content, out)
}

// send issues the chat request and returns the response body on 200.
func (c *Client) send(ctx context.Context, msgs []llm.Message, stream bool, format string) (io.ReadCloser, error) {
	reqBody := chatRequest{
		Model:    c.model,
		Messages: make([]chatMessage, 0, len(msgs)),
		Stream:   stream,
		Format:   format,
	}
	for _, m := range msgs {
		reqBody.Messages = append(reqBody.Messages, chatMessage{
			Role:    m.Role,
			Content: m.GetText(),
		})
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("%w: marshaling request: %v", llm.ErrModelCall, err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/api/chat", bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("%w: creating request: %v", llm.ErrModelCall, err)
	}
	req.Header.Set("Content-Type", "application/json")

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

func toResponse(resp *chatResponse, text string) *llm.Response {
	r := &llm.Response{
		Model:      resp.Model,
		Text:       text,
		StopReason: resp.DoneReason,
		CreatedAt:  resp.CreatedAt,
	}
	if resp.PromptEvalCount > 0 || resp.EvalCount > 0 {
		r.Usage = &llm.Usage{
			PromptTokens:     resp.PromptEvalCount,
			CompletionTokens: resp.EvalCount,
			TotalTokens:      resp.PromptEvalCount + resp.EvalCount,
		}
	}
	return r
}
