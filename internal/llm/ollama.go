package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// ollamaProvider implements Provider for Ollama's native API. Ollama also
// speaks the OpenAI-compatible API, but its native /api/embed endpoint
// gives better control over batched embedding generation.
type ollamaProvider struct {
	base openAICompatClient
}

// NewOllama creates a provider for a local or remote Ollama instance.
func NewOllama(cfg Config) Provider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:11434"
	}
	return &ollamaProvider{base: newOpenAICompatClient(cfg)}
}

func (p *ollamaProvider) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	return p.base.chat(ctx, req, nil)
}

// ChatJSON constrains the completion with Ollama's `format: "json"` field
// instead of the OpenAI response_format object.
func (p *ollamaProvider) ChatJSON(ctx context.Context, req ChatRequest) (json.RawMessage, error) {
	msgs, err := json.Marshal(req.Messages)
	if err != nil {
		return nil, err
	}
	model := req.Model
	if model == "" {
		model = p.base.cfg.Model
	}

	body := struct {
		Model       string          `json:"model"`
		Messages    json.RawMessage `json:"messages"`
		Temperature float64         `json:"temperature,omitempty"`
		Format      string          `json:"format,omitempty"`
	}{Model: model, Messages: msgs, Temperature: req.Temperature, Format: "json"}

	respBody, err := p.base.doPost(ctx, p.base.pathPrefix+"/chat/completions", body)
	if err != nil {
		return nil, err
	}
	var resp chatCompletionResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("llm: decoding ollama json response: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("llm: no choices in ollama response")
	}
	return json.RawMessage(resp.Choices[0].Message.Content), nil
}

func (p *ollamaProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	body := ollamaEmbedRequest{Model: p.base.cfg.Model, Input: texts}

	data, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	url := p.base.cfg.BaseURL + "/api/embed"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.base.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("llm: ollama embed request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("llm: reading ollama response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("llm: ollama embed error %d: %s", resp.StatusCode, string(respBody))
	}

	var embedResp ollamaEmbedResponse
	if err := json.Unmarshal(respBody, &embedResp); err != nil {
		return nil, fmt.Errorf("llm: decoding ollama embed response: %w", err)
	}

	result := make([][]float32, len(embedResp.Embeddings))
	for i, emb := range embedResp.Embeddings {
		result[i] = float64sToFloat32s(emb)
	}
	return result, nil
}

type ollamaEmbedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type ollamaEmbedResponse struct {
	Embeddings [][]float64 `json:"embeddings"`
}

func float64sToFloat32s(f64 []float64) []float32 {
	f32 := make([]float32, len(f64))
	for i, v := range f64 {
		f32[i] = float32(v)
	}
	return f32
}
