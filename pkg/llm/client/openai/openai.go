// Package openai implements the llm.Client interface against OpenAI-compatible
// chat-completion APIs.
package openai

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
	DefaultModel = "gpt-4o-mini"

	// DefaultBaseURL is the OpenAI API URL.
	DefaultBaseURL = "https://api.openai.com/v1"
)

// Client wraps an OpenAI-compatible chat-completions API.
type Client struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
}

// Config holds configuration for the OpenAI client.
type Config struct {
	// BaseURL defaults to DefaultBaseURL if empty. Any OpenAI-compatible
	// endpoint works (e.g. a local inference server).
	BaseURL string

	// APIKey is the API key. Falls back to OPENAI_API_KEY.
	APIKey string

	// Model defaults to DefaultModel if empty.
	Model string

	// Timeout bounds each HTTP request. Defaults to 120s if zero.
	Timeout time.Duration
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []apiMessage    `json:"messages"`
	Stream         bool            `json:"stream,omitempty"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type apiMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Model   string `json:"model"`
	Created int64  `json:"created"`
	Choices []struct {
		Message      apiMessage `json:"message"`
		FinishReason string     `json:"finish_reason"`
	} `json:"choices"`
	Usage *apiUsage `json:"usage,omitempty"`
}

type apiUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type streamChunk struct {
	Model   string `json:"model"`
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage *apiUsage `json:"usage,omitempty"`
}

// NewClient creates a new OpenAI-compatible chat client.
func NewClient(cfg Config) (*Client, error) {
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("openai API key is required (set OPENAI_API_KEY)")
	}

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
		apiKey:  apiKey,
		model:   model,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

// Name returns the client identifier.
func (c *Client) Name() string {
	return "openai:" + c.model
}

// Invoke sends the messages and returns the complete response.
func (c *Client) Invoke(ctx context.Context, msgs []llm.Message) (*llm.Response, error) {
	return c.invoke(ctx, msgs, nil)
}

// InvokeStructured sends the messages in JSON mode and decodes the result into out.
func (c *Client) InvokeStructured(ctx context.Context, msgs []llm.Message, out any) error {
	resp, err := c.invoke(ctx, msgs, &responseFormat{Type: "json_object"})
	if err != nil {
		return err
	}
	return llm.DecodeStructured(resp.Text, out)
}

func (c *Client) invoke(ctx context.Context, msgs []llm.Message, format *responseFormat) (*llm.Response, error) {
	body, err := c.send(ctx, msgs, false, format)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	var resp chatResponse
	if err := json.NewDecoder(body).Decode(&resp); err != nil {
		return nil, fmt.Errorf("%w: decoding response: %v", llm.ErrModelCall, err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%w: response contained no choices", llm.ErrModelCall)
	}

	r := &llm.Response{
		Model:      resp.Model,
		Text:       resp.Choices[0].Message.Content,
		StopReason: resp.Choices[0].FinishReason,
		CreatedAt:  time.Unix(resp.Created, 0),
	}
	if resp.Usage != nil {
		r.Usage = &llm.Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		}
	}
	return r, nil
}

// InvokeStream sends the messages and calls fn with each text delta.
func (c *Client) InvokeStream(ctx context.Context, msgs []llm.Message, fn llm.StreamFunc) (*llm.Response, error) {
	body, err := c.send(ctx, msgs, true, nil)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	var text strings.Builder
	var stopReason, model string
	var usage *apiUsage

	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if payload == "" || payload == "[DONE]" {
			continue
		}

		var chunk streamChunk
		if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
			return nil, fmt.Errorf("%w: decoding stream chunk: %v", llm.ErrModelCall, err)
		}

		if chunk.Model != "" {
			model = chunk.Model
		}
		if chunk.Usage != nil {
			usage = chunk.Usage
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		if delta := chunk.Choices[0].Delta.Content; delta != "" {
			text.WriteString(delta)
			if fn != nil {
				if err := fn(delta); err != nil {
					return nil, fmt.Errorf("stream callback: %w", err)
				}
			}
		}
		if fr := chunk.Choices[0].FinishReason; fr != "" {
			stopReason = fr
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%w: reading stream: %v", llm.ErrModelCall, err)
	}

	r := &llm.Response{
		Model:      model,
		Text:       text.String(),
		StopReason: stopReason,
		CreatedAt:  time.Now(),
	}
	if usage != nil {
		r.Usage = &llm.Usage{
			PromptTokens:     usage.PromptTokens,
			CompletionTokens: usage.CompletionTokens,
			TotalTokens:      usage.TotalTokens,
		}
	}
	return r, nil
}

func (c *Client) send(ctx context.Context, msgs []llm.Message, stream bool, format *responseFormat) (io.ReadCloser, error) {
	reqBody := chatRequest{
		Model:          c.model,
		Messages:       make([]apiMessage, 0, len(msgs)),
		Stream:         stream,
		ResponseFormat: format,
	}
	for _, m := range msgs {
		reqBody.Messages = append(reqBody.Messages, apiMessage{
			Role:    m.Role,
			Content: m.GetText(),
		})
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("%w: marshaling request: %v", llm.ErrModelCall, err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/chat/completions", bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("%w: creating request: %v", llm.ErrModelCall, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

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
