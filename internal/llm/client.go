// Package llm provides chat completion clients for the translation engine:
// an OpenAI-compatible client for cloud endpoints and a native Ollama
// client for local models, plus Ollama model management.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sublayer/sublayer/internal/errs"
)

// Client is the capability the translation engine depends on: one system
// prompt, one user prompt, one text completion.
type Client interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
	Provider() Provider
}

// Options configures a client.
type Options struct {
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
}

func (o *Options) withDefaults() {
	if o.Temperature == 0 {
		o.Temperature = 0.3
	}
	if o.Timeout == 0 {
		o.Timeout = 5 * time.Minute
	}
}

// OpenAIClient talks to any OpenAI-compatible chat completions endpoint.
type OpenAIClient struct {
	opts       Options
	httpClient *http.Client
}

// NewOpenAIClient validates the options and returns a client.
func NewOpenAIClient(opts Options) (*OpenAIClient, error) {
	if opts.BaseURL == "" {
		return nil, errs.New(errs.NotConfigured, "LLM base URL is not set")
	}
	if opts.Model == "" {
		return nil, errs.New(errs.NotConfigured, "LLM model is not set")
	}
	opts.withDefaults()

	return &OpenAIClient{
		opts:       opts,
		httpClient: &http.Client{Timeout: opts.Timeout},
	}, nil
}

func (c *OpenAIClient) Provider() Provider {
	return ProviderOpenAI
}

// Complete sends a chat completion request and returns the first choice.
func (c *OpenAIClient) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	messages := []Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: userPrompt},
	}

	request := chatRequest{
		Model:       c.opts.Model,
		Messages:    messages,
		Temperature: c.opts.Temperature,
		MaxTokens:   c.opts.MaxTokens,
	}

	var response chatResponse
	if err := postJSON(ctx, c.httpClient, c.endpoint(), c.headers(), request, &response); err != nil {
		return "", err
	}

	if response.Error != nil && response.Error.Message != "" {
		return "", errs.Wrap(errs.UpstreamUnavailable, "LLM returned an error", response.Error)
	}
	if len(response.Choices) == 0 {
		return "", errs.New(errs.UpstreamUnavailable, "LLM response contained no choices")
	}
	return response.Choices[0].Message.Content, nil
}

func (c *OpenAIClient) endpoint() string {
	return strings.TrimRight(c.opts.BaseURL, "/") + "/chat/completions"
}

func (c *OpenAIClient) headers() map[string]string {
	headers := map[string]string{"Content-Type": "application/json"}
	if c.opts.APIKey != "" {
		headers["Authorization"] = "Bearer " + c.opts.APIKey
	}
	return headers
}

// postJSON posts the payload and decodes the response into out. Non-2xx
// statuses become UpstreamUnavailable with the body attached for context.
func postJSON(ctx context.Context, client *http.Client, url string, headers map[string]string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return errs.Wrap(errs.Internal, "failed to encode LLM request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return errs.Wrap(errs.Internal, "failed to create LLM request", err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return errs.Wrap(errs.UpstreamUnavailable, "LLM request failed", err).
			WithContext("url", url)
	}
	defer resp.Body.Close()

	responseBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return errs.Wrap(errs.UpstreamUnavailable, "failed to read LLM response", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return errs.New(errs.UpstreamUnavailable,
			fmt.Sprintf("LLM request failed with status %d", resp.StatusCode)).
			WithContext("body", truncate(string(responseBody), 500))
	}

	if err := json.Unmarshal(responseBody, out); err != nil {
		return errs.Wrap(errs.UpstreamUnavailable, "failed to parse LLM response", err)
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
