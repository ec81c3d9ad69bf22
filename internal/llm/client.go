package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	// OpenAIChatCompletionURL is the endpoint for OpenAI chat completions.
	OpenAIChatCompletionURL = "https://api.openai.com/v1/chat/completions"

	// AnthropicMessagesURL is the endpoint for Anthropic API access.
	AnthropicMessagesURL = "https://api.anthropic.com/v1/messages"

	defaultOpenAIModel    = "gpt-3.5-turbo"
	defaultAnthropicModel = "claude-3-sonnet-20240229"

	// Anthropic requires max_tokens; this is the fallback when the caller
	// does not set one.
	defaultMaxTokens = 1000
)

var (
	// ErrProviderNotSupported is returned when no known provider matches the
	// requested model name.
	ErrProviderNotSupported = errors.New("provider not supported")

	// ErrMissingAPIKey is returned when neither the user nor the process
	// environment holds a key for the resolved provider.
	ErrMissingAPIKey = errors.New("API key not found")

	// ErrUpstream wraps any failure reported by an LLM provider. The
	// provider's error detail is preserved; the core never retries.
	ErrUpstream = errors.New("upstream provider error")
)

// ChatOptions carries the optional parameters of a chat request.
type ChatOptions struct {
	Model       string
	MaxTokens   int
	Temperature *float64
}

// Client sends a single-turn chat message to an LLM provider.
type Client interface {
	Chat(ctx context.Context, message string, opts ChatOptions) (string, error)
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// OpenAIClient calls the OpenAI chat completions API.
type OpenAIClient struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// NewOpenAIClient creates a client for the OpenAI chat completions API.
func NewOpenAIClient(apiKey string) *OpenAIClient {
	return &OpenAIClient{
		apiKey:     apiKey,
		baseURL:    OpenAIChatCompletionURL,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

// Chat sends a message and returns the assistant's reply text.
func (c *OpenAIClient) Chat(ctx context.Context, message string, opts ChatOptions) (string, error) {
	model := opts.Model
	if model == "" {
		model = defaultOpenAIModel
	}

	payload := map[string]interface{}{
		"model":    model,
		"messages": []chatMessage{{Role: "user", Content: message}},
	}
	if opts.MaxTokens > 0 {
		payload["max_tokens"] = opts.MaxTokens
	}
	if opts.Temperature != nil {
		payload["temperature"] = *opts.Temperature
	}

	body, err := postJSON(ctx, c.httpClient, c.baseURL, payload, map[string]string{
		"Authorization": "Bearer " + c.apiKey,
	})
	if err != nil {
		return "", err
	}

	var parsed struct {
		Choices []struct {
			Message chatMessage `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("%w: decoding OpenAI response: %v", ErrUpstream, err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("%w: OpenAI returned no choices", ErrUpstream)
	}
	return parsed.Choices[0].Message.Content, nil
}

// AnthropicClient calls the Anthropic messages API.
type AnthropicClient struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// NewAnthropicClient creates a client for the Anthropic messages API.
func NewAnthropicClient(apiKey string) *AnthropicClient {
	return &AnthropicClient{
		apiKey:     apiKey,
		baseURL:    AnthropicMessagesURL,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

// Chat sends a message and returns the assistant's reply text.
func (c *AnthropicClient) Chat(ctx context.Context, message string, opts ChatOptions) (string, error) {
	model := opts.Model
	if model == "" {
		model = defaultAnthropicModel
	}
	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	payload := map[string]interface{}{
		"model":      model,
		"max_tokens": maxTokens,
		"messages":   []chatMessage{{Role: "user", Content: message}},
	}
	if opts.Temperature != nil {
		payload["temperature"] = *opts.Temperature
	}

	body, err := postJSON(ctx, c.httpClient, c.baseURL, payload, map[string]string{
		"x-api-key":         c.apiKey,
		"anthropic-version": "2023-06-01",
	})
	if err != nil {
		return "", err
	}

	var parsed struct {
		Content []struct {
			Text string `json:"text"`
		} `json:"content"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("%w: decoding Anthropic response: %v", ErrUpstream, err)
	}
	if len(parsed.Content) == 0 {
		return "", fmt.Errorf("%w: Anthropic returned no content", ErrUpstream)
	}
	return parsed.Content[0].Text, nil
}

func postJSON(ctx context.Context, client *http.Client, url string, payload interface{}, headers map[string]string) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: status %d: %s", ErrUpstream, resp.StatusCode, string(respBody))
	}
	return respBody, nil
}
