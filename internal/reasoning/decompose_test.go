package reasoning

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/brunobiangulo/hybridrag/internal/llm"
	"github.com/brunobiangulo/hybridrag/internal/query"
)

type fakeProvider struct {
	chatJSON func(ctx context.Context, req llm.ChatRequest) ([]byte, error)
	calls    int
}

func (f *fakeProvider) Chat(ctx context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeProvider) ChatJSON(ctx context.Context, req llm.ChatRequest) (json.RawMessage, error) {
	f.calls++
	b, err := f.chatJSON(ctx, req)
	return json.RawMessage(b), err
}

func TestDecomposeAcronymBypassesLLM(t *testing.T) {
	fp := &fakeProvider{chatJSON: func(ctx context.Context, req llm.ChatRequest) ([]byte, error) {
		t.Fatal("LLM should not be called for an acronym query")
		return nil, nil
	}}
	d := Decompose(context.Background(), "NBP", query.Features{IsAcronym: true}, "model", fp)
	if d.MainQuestion != "NBP" || d.Type != "factual" || fp.calls != 0 {
		t.Fatalf("unexpected decomposition: %+v calls=%d", d, fp.calls)
	}
}

func TestDecomposeIDBypassesLLM(t *testing.T) {
	fp := &fakeProvider{chatJSON: func(ctx context.Context, req llm.ChatRequest) ([]byte, error) {
		t.Fatal("LLM should not be called for an ID query")
		return nil, nil
	}}
	d := Decompose(context.Background(), "dokument ABC-123", query.Features{HasID: true}, "model", fp)
	if d.Type != "factual" || fp.calls != 0 {
		t.Fatalf("unexpected decomposition: %+v", d)
	}
}

func TestDecomposeFilterBypassesLLM(t *testing.T) {
	fp := &fakeProvider{chatJSON: func(ctx context.Context, req llm.ChatRequest) ([]byte, error) {
		t.Fatal("LLM should not be called for a filter query")
		return nil, nil
	}}
	d := Decompose(context.Background(), "dokumenty z 2023 roku", query.Features{HasFilter: true}, "model", fp)
	if d.Type != "filter" || fp.calls != 0 {
		t.Fatalf("unexpected decomposition: %+v", d)
	}
}

func TestDecomposeParsesCodeFencedJSON(t *testing.T) {
	fp := &fakeProvider{chatJSON: func(ctx context.Context, req llm.ChatRequest) ([]byte, error) {
		return []byte("```json\n{\"main_question\": \"jak poprawić pracę zespołową?\", \"sub_questions\": [\"jak komunikować się w zespole?\", \"jak dzielić zadania?\"]}\n```"), nil
	}}
	d := Decompose(context.Background(), "jak poprawić pracę zespołową?", query.Features{}, "model", fp)
	if d.Type != "complex" || len(d.SubQuestions) != 2 {
		t.Fatalf("unexpected decomposition: %+v", d)
	}
	if d.MainQuestion != "jak poprawić pracę zespołową?" {
		t.Fatalf("unexpected main question: %q", d.MainQuestion)
	}
}

func TestDecomposeSimpleNoSubQuestions(t *testing.T) {
	fp := &fakeProvider{chatJSON: func(ctx context.Context, req llm.ChatRequest) ([]byte, error) {
		return []byte(`{"main_question": "co zawiera dokument X?", "sub_questions": []}`), nil
	}}
	d := Decompose(context.Background(), "co zawiera dokument X?", query.Features{}, "model", fp)
	if d.Type != "simple" || len(d.SubQuestions) != 0 {
		t.Fatalf("unexpected decomposition: %+v", d)
	}
}

func TestDecomposeLLMErrorFallsBackUnchanged(t *testing.T) {
	fp := &fakeProvider{chatJSON: func(ctx context.Context, req llm.ChatRequest) ([]byte, error) {
		return nil, errors.New("network error")
	}}
	d := Decompose(context.Background(), "jakieś pytanie", query.Features{}, "model", fp)
	if d.MainQuestion != "jakieś pytanie" || d.Type != "error" {
		t.Fatalf("unexpected decomposition: %+v", d)
	}
}

func TestDecomposeMalformedJSONFallsBackUnchanged(t *testing.T) {
	fp := &fakeProvider{chatJSON: func(ctx context.Context, req llm.ChatRequest) ([]byte, error) {
		return []byte("not json at all"), nil
	}}
	d := Decompose(context.Background(), "jakieś pytanie", query.Features{}, "model", fp)
	if d.MainQuestion != "jakieś pytanie" || d.Type != "error" {
		t.Fatalf("unexpected decomposition: %+v", d)
	}
}

func TestDecomposeMissingMainQuestionDefaultsToOriginal(t *testing.T) {
	fp := &fakeProvider{chatJSON: func(ctx context.Context, req llm.ChatRequest) ([]byte, error) {
		return []byte(`{"sub_questions": ["a", "b"]}`), nil
	}}
	d := Decompose(context.Background(), "oryginalne pytanie", query.Features{}, "model", fp)
	if d.MainQuestion != "oryginalne pytanie" || d.Type != "complex" {
		t.Fatalf("unexpected decomposition: %+v", d)
	}
}
