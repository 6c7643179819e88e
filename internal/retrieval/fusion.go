// Package retrieval implements the Weighted RRF Fusion (C4): merging a
// lexical and a dense ranked id list into one scored list.
package retrieval

import (
	"sort"

	"github.com/brunobiangulo/hybridrag/internal/index"
)

// Fused is one entry of a fused result list: the resolved text and its
// combined score.
type Fused struct {
	ID    uint64
	Text  string
	Score float64
}

// DefaultK is the default top-k cutoff for FuseWeighted, per spec §4.4.
const DefaultK = 15

// FuseWeighted merges lexical and dense ranked hit lists with weights wLex,
// wDense. Score for id x = wLex/rank_lex(x) + wDense/rank_dense(x), rank is
// 1-based, a missing id contributes 0 from that side. Text for a fused id is
// resolved from whichever list contains it, lexical first (spec §4.4). Ties
// are broken by lexical-list order, matching stable-sort semantics. This is
// the plain-RRF formula from the source and spec.md §4.4 — no +k constant is
// added to rank (a different convention some RRF implementations use).
func FuseWeighted(lexical, dense []index.Hit, wLex, wDense float64, k int) []Fused {
	scores := make(map[uint64]float64)
	order := make([]uint64, 0, len(lexical)+len(dense))
	seen := make(map[uint64]bool)

	for rank, h := range lexical {
		scores[h.ID] += wLex / float64(rank+1)
		if !seen[h.ID] {
			seen[h.ID] = true
			order = append(order, h.ID)
		}
	}
	for rank, h := range dense {
		scores[h.ID] += wDense / float64(rank+1)
		if !seen[h.ID] {
			seen[h.ID] = true
			order = append(order, h.ID)
		}
	}

	lexText := make(map[uint64]string, len(lexical))
	for _, h := range lexical {
		if _, ok := lexText[h.ID]; !ok {
			lexText[h.ID] = h.Text
		}
	}
	denseText := make(map[uint64]string, len(dense))
	for _, h := range dense {
		if _, ok := denseText[h.ID]; !ok {
			denseText[h.ID] = h.Text
		}
	}

	resultText := func(id uint64) string {
		if t, ok := lexText[id]; ok {
			return t
		}
		return denseText[id]
	}

	fused := make([]Fused, 0, len(order))
	for _, id := range order {
		fused = append(fused, Fused{ID: id, Text: resultText(id), Score: scores[id]})
	}

	// Stable sort descending by score; equal scores preserve the
	// lexical-then-dense discovery order already in `order`.
	sort.SliceStable(fused, func(i, j int) bool {
		return fused[i].Score > fused[j].Score
	})

	if k > 0 && len(fused) > k {
		fused = fused[:k]
	}
	return fused
}
