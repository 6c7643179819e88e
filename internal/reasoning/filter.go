package reasoning

import (
	"context"
	"math"
	"regexp"
	"strings"

	"github.com/brunobiangulo/hybridrag/internal/llm"
	"github.com/brunobiangulo/hybridrag/internal/query"
)

// FilterConfig tunes the Filter stage (spec §4.6).
type FilterConfig struct {
	MinTokens int
	MaxDocs   int
}

// DefaultFilterConfig returns the spec's default thresholds.
func DefaultFilterConfig() FilterConfig {
	return FilterConfig{MinTokens: 15, MaxDocs: 10}
}

// FilterStats reports per-stage counts for the RETRIEVE step's survivors.
type FilterStats struct {
	InputDocs       int
	KeptDocs        int
	RejectedShort   int
	RejectedOverlap int
	Overlaps        []int
}

var filterTokenRE = regexp.MustCompile(`\w+`)

func tokenSet(text string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, t := range filterTokenRE.FindAllString(text, -1) {
		if len(t) > 2 {
			set[strings.ToLower(t)] = struct{}{}
		}
	}
	return set
}

func overlapCount(a, b map[string]struct{}) int {
	n := 0
	small, large := a, b
	if len(small) > len(large) {
		small, large = large, small
	}
	for t := range small {
		if _, ok := large[t]; ok {
			n++
		}
	}
	return n
}

func isFactualQuery(f query.Features) bool {
	return f.IsAcronym || f.HasID || f.HasNumber || f.HasYear || f.HasFilter
}

func cosineSimilarity(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	denom := math.Sqrt(na) * math.Sqrt(nb)
	if denom == 0 {
		return 0
	}
	return dot / denom
}

// FilterRetrievedWithStats drops chunks below min_tokens, then for factual
// queries with zero lexical overlap falls back to a cosine-similarity check
// against the query embedding (dropping below 0.55), caching embeddings by
// chunk text. Survivors are truncated to max_docs, preserving order
// (spec §4.6).
func FilterRetrievedWithStats(
	ctx context.Context,
	chunks []string,
	queryText string,
	queryVec []float32,
	f query.Features,
	provider llm.Provider,
	cfg FilterConfig,
) ([]string, FilterStats, error) {
	queryTokens := tokenSet(queryText)
	stats := FilterStats{InputDocs: len(chunks)}

	factual := isFactualQuery(f)
	embedCache := make(map[string][]float32)
	var kept []string

	for _, text := range chunks {
		tokens := tokenSet(text)
		if len(tokens) < cfg.MinTokens {
			stats.RejectedShort++
			continue
		}

		overlap := overlapCount(tokens, queryTokens)
		stats.Overlaps = append(stats.Overlaps, overlap)

		if factual && overlap == 0 {
			vec, ok := embedCache[text]
			if !ok {
				vecs, err := provider.Embed(ctx, []string{text})
				if err != nil {
					return nil, stats, err
				}
				if len(vecs) == 0 {
					return nil, stats, errEmptyEmbedding
				}
				vec = vecs[0]
				embedCache[text] = vec
			}
			if cosineSimilarity(queryVec, vec) < 0.55 {
				stats.RejectedOverlap++
				continue
			}
		}

		kept = append(kept, text)
		stats.KeptDocs++
	}

	if len(kept) > cfg.MaxDocs {
		kept = kept[:cfg.MaxDocs]
	}
	return kept, stats, nil
}

var errEmptyEmbedding = &emptyEmbeddingError{}

type emptyEmbeddingError struct{}

func (e *emptyEmbeddingError) Error() string {
	return "reasoning: provider returned no embedding for chunk"
}
