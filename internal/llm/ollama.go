package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/sublayer/sublayer/internal/errs"
	"github.com/sublayer/sublayer/pkg/log"
)

// OllamaClient talks to a local Ollama server over its native API and also
// manages models (list installed, pull with observable progress).
type OllamaClient struct {
	opts       Options
	httpClient *http.Client

	mu   sync.Mutex
	pull PullStatus
}

// PullStatus is the observable state of a model pull.
type PullStatus struct {
	Model     string `json:"model"`
	State     string `json:"state"` // idle, pulling, completed, failed
	Progress  string `json:"progress,omitempty"`
	Completed int64  `json:"completedBytes,omitempty"`
	Total     int64  `json:"totalBytes,omitempty"`
	Error     string `json:"error,omitempty"`
}

// NewOllamaClient validates the options and returns a client.
func NewOllamaClient(opts Options) (*OllamaClient, error) {
	if opts.BaseURL == "" {
		return nil, errs.New(errs.NotConfigured, "Ollama URL is not set")
	}
	if opts.Model == "" {
		return nil, errs.New(errs.NotConfigured, "Ollama model is not set")
	}
	opts.withDefaults()

	return &OllamaClient{
		opts:       opts,
		httpClient: &http.Client{Timeout: opts.Timeout},
		pull:       PullStatus{State: "idle"},
	}, nil
}

func (c *OllamaClient) Provider() Provider {
	return ProviderOllama
}

func (c *OllamaClient) url(path string) string {
	return strings.TrimRight(c.opts.BaseURL, "/") + path
}

// Complete sends a non-streaming chat request to /api/chat.
func (c *OllamaClient) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	request := ollamaChatRequest{
		Model: c.opts.Model,
		Messages: []Message{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
		Stream: false,
		Options: map[string]any{
			"temperature": c.opts.Temperature,
		},
	}

	var response ollamaChatResponse
	headers := map[string]string{"Content-Type": "application/json"}
	if err := postJSON(ctx, c.httpClient, c.url("/api/chat"), headers, request, &response); err != nil {
		return "", err
	}

	if response.Error != "" {
		return "", errs.New(errs.UpstreamUnavailable, "Ollama returned an error").
			WithContext("error", response.Error)
	}
	return response.Message.Content, nil
}

// ListModels returns the models installed on the Ollama server.
func (c *OllamaClient) ListModels(ctx context.Context) ([]ModelInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url("/api/tags"), nil)
	if err != nil {
		return nil, errs.Wrap(errs.Internal, "failed to create model list request", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errs.Wrap(errs.UpstreamUnavailable, "Ollama is unreachable", err).
			WithContext("url", c.opts.BaseURL)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errs.New(errs.UpstreamUnavailable, "Ollama model list failed").
			WithContext("status", resp.StatusCode)
	}

	var payload struct {
		Models []ModelInfo `json:"models"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, errs.Wrap(errs.UpstreamUnavailable, "failed to parse model list", err)
	}
	return payload.Models, nil
}

// StartPull begins pulling a model in the background. The pull progress is
// observable through PullState; only one pull runs at a time.
func (c *OllamaClient) StartPull(model string) error {
	if model == "" {
		return errs.New(errs.BadInput, "model name is required")
	}

	c.mu.Lock()
	if c.pull.State == "pulling" {
		c.mu.Unlock()
		return errs.New(errs.Busy, "a model pull is already in progress").
			WithContext("model", c.pull.Model)
	}
	c.pull = PullStatus{Model: model, State: "pulling"}
	c.mu.Unlock()

	go c.runPull(model)
	return nil
}

// PullState returns the current pull status.
func (c *OllamaClient) PullState() PullStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pull
}

// runPull streams /api/pull status lines and folds them into PullStatus.
func (c *OllamaClient) runPull(model string) {
	body, _ := json.Marshal(map[string]any{"model": model, "stream": true})

	// Pulls can take much longer than a chat completion.
	client := &http.Client{Timeout: 2 * time.Hour}
	resp, err := client.Post(c.url("/api/pull"), "application/json", bytes.NewReader(body))
	if err != nil {
		c.finishPull(model, "failed", err.Error())
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.finishPull(model, "failed", resp.Status)
		return
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		var line struct {
			Status    string `json:"status"`
			Completed int64  `json:"completed"`
			Total     int64  `json:"total"`
			Error     string `json:"error"`
		}
		if err := json.Unmarshal(scanner.Bytes(), &line); err != nil {
			continue
		}
		if line.Error != "" {
			c.finishPull(model, "failed", line.Error)
			return
		}

		c.mu.Lock()
		c.pull.Progress = line.Status
		c.pull.Completed = line.Completed
		c.pull.Total = line.Total
		c.mu.Unlock()
	}
	if err := scanner.Err(); err != nil {
		c.finishPull(model, "failed", err.Error())
		return
	}

	c.finishPull(model, "completed", "")
	log.Info("Model pull completed: %s", model)
}

func (c *OllamaClient) finishPull(model, state, errMsg string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pull = PullStatus{Model: model, State: state, Error: errMsg}
	if errMsg != "" {
		log.Error("Model pull failed: %s: %s", model, errMsg)
	}
}
