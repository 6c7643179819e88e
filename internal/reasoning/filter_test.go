package reasoning

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/brunobiangulo/hybridrag/internal/llm"
	"github.com/brunobiangulo/hybridrag/internal/query"
)

type fakeEmbedProvider struct {
	vectors map[string][]float32
	calls   int
}

func (f *fakeEmbedProvider) Chat(ctx context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeEmbedProvider) ChatJSON(ctx context.Context, req llm.ChatRequest) (json.RawMessage, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeEmbedProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	f.calls++
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = f.vectors[t]
	}
	return out, nil
}

// words builds a string of n distinct tokens sharing prefix w, since the
// filter's token set is deduplicated and a min_tokens threshold on a
// repeated single word would never be satisfied.
func words(n int, w string) string {
	s := ""
	for i := 0; i < n; i++ {
		if i > 0 {
			s += " "
		}
		s += fmt.Sprintf("%s%d", w, i)
	}
	return s
}

func TestFilterDropsShortChunks(t *testing.T) {
	fp := &fakeEmbedProvider{}
	chunks := []string{words(20, "inflacja"), words(5, "krotki")}
	kept, stats, err := FilterRetrievedWithStats(context.Background(), chunks, "inflacja w polsce", nil, query.Features{}, fp, DefaultFilterConfig())
	if err != nil {
		t.Fatal(err)
	}
	if len(kept) != 1 || stats.RejectedShort != 1 {
		t.Fatalf("unexpected result: kept=%v stats=%+v", kept, stats)
	}
}

func TestFilterFactualQueryFallsBackToCosine(t *testing.T) {
	chunk := words(20, "niepowiazany")
	fp := &fakeEmbedProvider{vectors: map[string][]float32{
		chunk: {1, 0},
	}}
	queryVec := []float32{0, 1} // orthogonal -> cosine 0 < 0.55
	_, stats, err := FilterRetrievedWithStats(context.Background(), []string{chunk}, "ABC-123", queryVec, query.Features{HasID: true}, fp, DefaultFilterConfig())
	if err != nil {
		t.Fatal(err)
	}
	if stats.RejectedOverlap != 1 || stats.KeptDocs != 0 {
		t.Fatalf("expected rejection via cosine fallback, got %+v", stats)
	}
	if fp.calls != 1 {
		t.Fatalf("expected exactly one embed call, got %d", fp.calls)
	}
}

func TestFilterFactualQueryCosineAboveThresholdIsKept(t *testing.T) {
	chunk := words(20, "niepowiazany")
	fp := &fakeEmbedProvider{vectors: map[string][]float32{
		chunk: {1, 0},
	}}
	queryVec := []float32{1, 0} // identical -> cosine 1.0
	kept, stats, err := FilterRetrievedWithStats(context.Background(), []string{chunk}, "ABC-123", queryVec, query.Features{HasID: true}, fp, DefaultFilterConfig())
	if err != nil {
		t.Fatal(err)
	}
	if stats.KeptDocs != 1 || len(kept) != 1 {
		t.Fatalf("expected chunk to survive cosine fallback, got kept=%v stats=%+v", kept, stats)
	}
}

func TestFilterNonFactualQuerySkipsCosineCheck(t *testing.T) {
	chunk := words(20, "niepowiazany")
	fp := &fakeEmbedProvider{}
	kept, stats, err := FilterRetrievedWithStats(context.Background(), []string{chunk}, "inflacja", nil, query.Features{}, fp, DefaultFilterConfig())
	if err != nil {
		t.Fatal(err)
	}
	if stats.KeptDocs != 1 || len(kept) != 1 {
		t.Fatalf("expected chunk kept without embedding call, got kept=%v stats=%+v", kept, stats)
	}
	if fp.calls != 0 {
		t.Fatalf("expected no embed call for non-factual query, got %d", fp.calls)
	}
}

func TestFilterMaxDocsTruncatesPreservingOrder(t *testing.T) {
	fp := &fakeEmbedProvider{}
	chunks := []string{
		words(20, "pierwszy"),
		words(20, "drugi"),
		words(20, "trzeci"),
	}
	cfg := FilterConfig{MinTokens: 15, MaxDocs: 2}
	kept, stats, err := FilterRetrievedWithStats(context.Background(), chunks, "x", nil, query.Features{}, fp, cfg)
	if err != nil {
		t.Fatal(err)
	}
	if len(kept) != 2 || kept[0] != chunks[0] || kept[1] != chunks[1] {
		t.Fatalf("expected first two chunks preserved in order, got %v", kept)
	}
	if stats.KeptDocs != 3 {
		t.Fatalf("stats.KeptDocs should count survivors before truncation, got %d", stats.KeptDocs)
	}
}

// Invariant 7: raising min_tokens never increases kept_docs.
func TestFilterMonotonicity(t *testing.T) {
	fp := &fakeEmbedProvider{}
	chunks := []string{
		words(10, "krotki"),
		words(20, "sredni"),
		words(30, "dlugi"),
	}
	cfgLow := FilterConfig{MinTokens: 5, MaxDocs: 10}
	cfgHigh := FilterConfig{MinTokens: 25, MaxDocs: 10}

	_, lowStats, err := FilterRetrievedWithStats(context.Background(), chunks, "x", nil, query.Features{}, fp, cfgLow)
	if err != nil {
		t.Fatal(err)
	}
	_, highStats, err := FilterRetrievedWithStats(context.Background(), chunks, "x", nil, query.Features{}, fp, cfgHigh)
	if err != nil {
		t.Fatal(err)
	}
	if highStats.KeptDocs > lowStats.KeptDocs {
		t.Fatalf("monotonicity violated: low=%d high=%d", lowStats.KeptDocs, highStats.KeptDocs)
	}
}

func TestFilterEmbedCacheAvoidsDuplicateCalls(t *testing.T) {
	chunk := words(20, "powtorzony")
	fp := &fakeEmbedProvider{vectors: map[string][]float32{chunk: {1, 0}}}
	queryVec := []float32{1, 0}
	_, _, err := FilterRetrievedWithStats(context.Background(), []string{chunk, chunk}, "ABC-1", queryVec, query.Features{HasID: true}, fp, DefaultFilterConfig())
	if err != nil {
		t.Fatal(err)
	}
	if fp.calls != 1 {
		t.Fatalf("expected embedding cache to dedupe by chunk text, got %d calls", fp.calls)
	}
}
