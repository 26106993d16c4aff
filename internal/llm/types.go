package llm

import "fmt"

// Provider identifies the configured LLM backend.
type Provider string

const (
	ProviderOllama Provider = "ollama"
	ProviderOpenAI Provider = "openai"
)

// Tuning holds the batching parameters appropriate for a provider: local
// models take smaller batches with a narrower fallback fan-out, cloud
// endpoints handle larger ones.
type Tuning struct {
	BatchSize int
	Threads   int
}

// TuningFor returns the default tuning for a provider.
func TuningFor(p Provider) Tuning {
	if p == ProviderOpenAI {
		return Tuning{BatchSize: 50, Threads: 8}
	}
	return Tuning{BatchSize: 20, Threads: 6}
}

// Message is one turn of a chat conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatRequest is the OpenAI-compatible chat completion request body.
type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Stream      bool      `json:"stream"`
}

// chatResponse is the OpenAI-compatible chat completion response body.
type chatResponse struct {
	Choices []struct {
		Message      Message `json:"message"`
		FinishReason string  `json:"finish_reason"`
	} `json:"choices"`
	Error *apiError `json:"error,omitempty"`
}

type apiError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    any    `json:"code,omitempty"`
}

func (e *apiError) Error() string {
	return fmt.Sprintf("LLM API error: %s (type: %s)", e.Message, e.Type)
}

// ollamaChatRequest is the native Ollama /api/chat request body.
type ollamaChatRequest struct {
	Model    string         `json:"model"`
	Messages []Message      `json:"messages"`
	Stream   bool           `json:"stream"`
	Options  map[string]any `json:"options,omitempty"`
}

// ollamaChatResponse is the native Ollama /api/chat response body.
type ollamaChatResponse struct {
	Message Message `json:"message"`
	Done    bool    `json:"done"`
	Error   string  `json:"error,omitempty"`
}

// ModelInfo describes one installed model.
type ModelInfo struct {
	Name       string `json:"name"`
	SizeBytes  int64  `json:"size"`
	ModifiedAt string `json:"modified_at"`
}
