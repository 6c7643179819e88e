package hybridrag

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/brunobiangulo/hybridrag/internal/index"
	"github.com/brunobiangulo/hybridrag/internal/llm"
	"github.com/brunobiangulo/hybridrag/internal/memory"
	"github.com/brunobiangulo/hybridrag/internal/query"
	"github.com/brunobiangulo/hybridrag/internal/reasoning"
)

// fakeNLP returns no lemmas (so the lexical query string is empty) and never
// reports named entities; good enough for exercising the orchestrator
// without a real NLP pipeline.
type fakeNLP struct{}

func (fakeNLP) Entities(ctx context.Context, text string) ([]query.Entity, error) {
	return nil, nil
}

func (fakeNLP) Sentences(ctx context.Context, text string) ([]string, error) {
	return nil, errors.New("fakeNLP: Sentences should not be called for chunks under max_tokens")
}

func (fakeNLP) Lemmatize(ctx context.Context, text string) ([]string, error) {
	return nil, nil
}

func (fakeNLP) LexicalQuery(lemmas []string) string {
	return ""
}

type fakeLexical struct{ hits []index.Hit }

func (f fakeLexical) Search(ctx context.Context, q string) ([]index.Hit, error) {
	return f.hits, nil
}

type fakeVector struct{ hits []index.Hit }

func (f fakeVector) Search(ctx context.Context, vec []float32) ([]index.Hit, error) {
	return f.hits, nil
}

const decomposeJSONNoSubQuestions = `{"main_question":"Jaka była inflacja w 2023 roku?","sub_questions":[]}`

// fakeLLM is a configurable llm.Provider. Chat branches on temperature to
// distinguish the Clarifier's calls (0.3) from AskModel's (0.6), since the
// orchestrator routes both through the same method.
type fakeLLM struct {
	mu           sync.Mutex
	askCalls     int
	clarifyCalls int

	askContent   string
	clarifyLines string
	chatJSON     string
	chatJSONErr  error
	embedVec     []float32
}

func (f *fakeLLM) Chat(ctx context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if req.Temperature == 0.3 {
		f.clarifyCalls++
		return &llm.ChatResponse{Content: f.clarifyLines}, nil
	}
	f.askCalls++
	return &llm.ChatResponse{Content: f.askContent, TotalTokens: 10}, nil
}

func (f *fakeLLM) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	vecs := make([][]float32, len(texts))
	for i := range vecs {
		vecs[i] = f.embedVec
	}
	return vecs, nil
}

func (f *fakeLLM) ChatJSON(ctx context.Context, req llm.ChatRequest) (json.RawMessage, error) {
	if f.chatJSONErr != nil {
		return nil, f.chatJSONErr
	}
	return json.RawMessage(f.chatJSON), nil
}

func openTempMemory(t *testing.T) *memory.Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "unresolved_queries.json")
	s, err := memory.Open(path)
	if err != nil {
		t.Fatalf("open memory: %v", err)
	}
	return s
}

// richChunk builds a passage of the given keywords plus 17 distinct filler
// tokens (above the filter's min_tokens=15 threshold) that shares the keywords with whatever
// query will retrieve it, so the factual cosine-similarity fallback is
// never exercised in these orchestration tests.
func richChunk(keywords ...string) string {
	filler := []string{"dokument", "tekst", "informacja", "dane", "raport", "kraj", "miasto", "rok",
		"liczba", "procent", "wzrost", "spadek", "analiza", "wynik", "badanie", "projekt", "system"}
	words := append(append([]string{}, keywords...), filler...)
	out := ""
	for i, w := range words {
		if i > 0 {
			out += " "
		}
		out += w
	}
	return out
}

func TestAskAcronymSkipsDecompositionAndClarification(t *testing.T) {
	chunk := richChunk("pan", "skrot", "instytucji")
	hits := []index.Hit{{ID: 1, Text: chunk}}

	llmP := &fakeLLM{
		askContent: `Odpowiedź o PAN. [1] "pan skrot instytucji"`,
		chatJSON:   `{}`,
		chatJSONErr: errors.New("decomposer should not be called for an acronym query"),
		embedVec:   []float32{0.1, 0.2, 0.3},
	}
	mem := openTempMemory(t)
	e := NewEngine(fakeLexical{hits: hits}, fakeVector{hits: hits}, llmP, fakeNLP{}, mem, "test-model")

	result, err := e.Ask(context.Background(), "PAN", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Decomposition == nil || result.Decomposition.Type != "factual" {
		t.Fatalf("expected factual decomposition for an acronym query, got %+v", result.Decomposition)
	}
	if result.Clarification != nil {
		t.Fatalf("acronym query should not trigger clarification, got %+v", result.Clarification)
	}
	if llmP.clarifyCalls != 0 {
		t.Fatalf("clarifier should not call the LLM for an excluded query, got %d calls", llmP.clarifyCalls)
	}
	if len(mem.Pending()) != 0 {
		t.Fatalf("a valid answer must not be persisted, got %d pending", len(mem.Pending()))
	}
}

func TestAskValidAnswerIsNotPersisted(t *testing.T) {
	chunk := richChunk("inflacja", "2023")
	hits := []index.Hit{{ID: 1, Text: chunk}}

	llmP := &fakeLLM{
		askContent: `Inflacja wzrosła. [1] "inflacja 2023 dokument"`,
		chatJSON:   decomposeJSONNoSubQuestions,
		embedVec:   []float32{0.1, 0.2, 0.3},
	}
	mem := openTempMemory(t)
	e := NewEngine(fakeLexical{hits: hits}, fakeVector{hits: hits}, llmP, fakeNLP{}, mem, "test-model")

	result, err := e.Ask(context.Background(), "Jaka była inflacja w 2023 roku?", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Answer == "" {
		t.Fatal("expected a non-empty answer")
	}
	if llmP.askCalls != 1 {
		t.Fatalf("expected exactly 1 ask call for a valid first answer, got %d", llmP.askCalls)
	}
	if len(mem.Pending()) != 0 {
		t.Fatalf("a valid answer must not be persisted, got %d pending", len(mem.Pending()))
	}
}

// TestAskRetryBoundPersistsAfterExhaustingStrategies exercises scenario S6:
// the model always declines to answer, strategies = [modify_prompt,
// save_to_memory], 3 prompt cores -> up to 2 retries beyond the first call,
// then the query is persisted exactly once.
func TestAskRetryBoundPersistsAfterExhaustingStrategies(t *testing.T) {
	chunk := richChunk("inflacja", "2023")
	hits := []index.Hit{{ID: 1, Text: chunk}}

	llmP := &fakeLLM{
		askContent: "BRAK INFORMACJI",
		chatJSON:   decomposeJSONNoSubQuestions,
		embedVec:   []float32{0.1, 0.2, 0.3},
	}
	mem := openTempMemory(t)
	e := NewEngine(fakeLexical{hits: hits}, fakeVector{hits: hits}, llmP, fakeNLP{}, mem, "test-model")

	const query = "Jaka była inflacja w 2023 roku?"
	result, err := e.Ask(context.Background(), query, []string{StrategyModifyPrompt, StrategySaveToMemory})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Answer != "BRAK INFORMACJI" {
		t.Fatalf("expected the model's decline response, got %q", result.Answer)
	}

	wantCalls := len(reasoning.PromptCores)
	if llmP.askCalls != wantCalls {
		t.Fatalf("expected exactly %d ask calls (one per prompt core), got %d", wantCalls, llmP.askCalls)
	}

	pending := mem.Pending()
	if len(pending) != 1 {
		t.Fatalf("expected the query to be persisted exactly once, got %d pending", len(pending))
	}
	if pending[0].Query != query {
		t.Fatalf("persisted query mismatch: got %q", pending[0].Query)
	}
}

// TestAskRetryLoopRespectsInvariant11 exercises invariant 11 (retry bound
// <= |cores| + |interpretations| + 1) along an ambiguous query that fires
// both change_interpretation and modify_prompt before exhausting.
func TestAskRetryLoopRespectsInvariant11(t *testing.T) {
	chunk := richChunk("pan", "kryzys", "gospodarczy")
	hits := []index.Hit{{ID: 1, Text: chunk}}

	llmP := &fakeLLM{
		askContent:   "BRAK INFORMACJI",
		clarifyLines: "pytanie dotyczy Polskiej Akademii Nauk (instytucja)\npytanie dotyczy wypowiedzi konkretnej osoby",
		chatJSON:     decomposeJSONNoSubQuestions,
		embedVec:     []float32{0.1, 0.2, 0.3},
	}
	mem := openTempMemory(t)
	e := NewEngine(fakeLexical{hits: hits}, fakeVector{hits: hits}, llmP, fakeNLP{}, mem, "test-model")

	result, err := e.Ask(context.Background(), "Co mówi PAN o kryzysie gospodarczym?", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Clarification == nil || len(result.Clarification.Interpretations) < 2 {
		t.Fatalf("expected >= 2 interpretations, got %+v", result.Clarification)
	}
	if llmP.clarifyCalls != 1 {
		t.Fatalf("clarifier should be consulted exactly once per request, got %d calls", llmP.clarifyCalls)
	}

	bound := len(reasoning.PromptCores) + len(result.Clarification.Interpretations) + 1
	if llmP.askCalls > bound {
		t.Fatalf("invariant 11 violated: %d ask calls exceeds bound %d", llmP.askCalls, bound)
	}

	if len(mem.Pending()) != 1 {
		t.Fatalf("expected exactly one persisted entry after exhausting strategies, got %d", len(mem.Pending()))
	}
}

func TestRetryMarksEntryResolvedOnSuccess(t *testing.T) {
	chunk := richChunk("inflacja", "2023")
	hits := []index.Hit{{ID: 1, Text: chunk}}

	llmP := &fakeLLM{
		askContent: `Inflacja wzrosła. [1] "inflacja 2023 dokument"`,
		chatJSON:   decomposeJSONNoSubQuestions,
		embedVec:   []float32{0.1, 0.2, 0.3},
	}
	mem := openTempMemory(t)
	id, err := mem.Add("Jaka była inflacja w 2023 roku?", memory.Hints{})
	if err != nil {
		t.Fatalf("seed pending entry: %v", err)
	}

	e := NewEngine(fakeLexical{hits: hits}, fakeVector{hits: hits}, llmP, fakeNLP{}, mem, "test-model")
	result, err := e.Retry(context.Background(), id)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Answer == "" {
		t.Fatal("expected a non-empty answer")
	}

	entry, ok := mem.ByID(id)
	if !ok {
		t.Fatal("entry should still exist after retry")
	}
	if entry.Status != memory.StatusResolved {
		t.Fatalf("expected entry to be resolved, got status %q", entry.Status)
	}
	if entry.RetryCount != 1 {
		t.Fatalf("expected retry_count to be incremented once, got %d", entry.RetryCount)
	}
}

func TestRetryUnknownIDReturnsNotFound(t *testing.T) {
	mem := openTempMemory(t)
	e := NewEngine(fakeLexical{}, fakeVector{}, &fakeLLM{}, fakeNLP{}, mem, "test-model")

	_, err := e.Retry(context.Background(), 999)
	if !errors.Is(err, ErrEntryNotFound) {
		t.Fatalf("expected ErrEntryNotFound, got %v", err)
	}
}
