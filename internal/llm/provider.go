// Package llm provides a narrow chat/embedding/structured-output
// abstraction over Ollama and OpenAI-compatible completion APIs, used by
// the Decomposer (C7), Clarifier (C8), Prompt Builder + generation (C9),
// and Metadata Enricher (C14).
package llm

import (
	"context"
	"encoding/json"
	"fmt"
)

// Provider is the interface every LLM backend implements.
type Provider interface {
	// Chat sends a chat completion request.
	Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error)

	// Embed generates embeddings for a batch of texts.
	Embed(ctx context.Context, texts []string) ([][]float32, error)

	// ChatJSON sends a chat completion request constrained to produce a
	// single JSON object and returns its raw bytes, unparsed. Callers
	// (the decomposer and the date extractor) tolerate parse failure
	// themselves; the decomposer also strips code fences.
	ChatJSON(ctx context.Context, req ChatRequest) (json.RawMessage, error)
}

// ChatRequest is a chat completion request.
type ChatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature,omitempty"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
}

// Message represents a single chat message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatResponse is the response from a chat completion.
type ChatResponse struct {
	Content          string `json:"content"`
	Model            string `json:"model"`
	FinishReason     string `json:"finish_reason"`
	PromptTokens     int    `json:"prompt_tokens"`
	CompletionTokens int    `json:"completion_tokens"`
	TotalTokens      int    `json:"total_tokens"`
}

// Config configures an LLM provider.
type Config struct {
	Provider string `json:"provider"` // ollama, custom
	Model    string `json:"model"`
	BaseURL  string `json:"base_url"`
	APIKey   string `json:"api_key"`
}

// NewProvider creates an LLM provider from configuration.
func NewProvider(cfg Config) (Provider, error) {
	switch cfg.Provider {
	case "ollama":
		return NewOllama(cfg), nil
	case "custom":
		return NewOpenAICompat(cfg), nil
	case "":
		return nil, fmt.Errorf("llm: provider not specified")
	default:
		return nil, fmt.Errorf("llm: unknown provider %q", cfg.Provider)
	}
}
