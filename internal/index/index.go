// Package index defines the two retrieval-adapter interfaces (C3): Lexical
// and Vector search against an external index, each returning up to 35
// ranked hits. Concrete implementations live in the esindex, qdrantindex,
// bleveindex, and hnswindex subpackages.
package index

import (
	"context"
	"errors"
)

// ErrTransport wraps any network-level failure from an index adapter.
var ErrTransport = errors.New("index: transport error")

// MaxHits is the maximum number of hits either adapter returns, per the
// spec's "up to 35" rule for both lexical and vector search.
const MaxHits = 35

// Hit is a single ranked result from either adapter. Rank is implied by
// position in the returned slice (1-based, index 0 is rank 1).
type Hit struct {
	ID   uint64
	Text string
}

// Lexical performs BM25-like full-text search. On transport error it
// returns an empty slice and the error; callers continue the pipeline with
// whichever side succeeded (spec §4.3 failure mode).
type Lexical interface {
	Search(ctx context.Context, query string) ([]Hit, error)
}

// Vector performs approximate cosine-nearest-neighbor search over a
// 384-dim (or configured EmbeddingDim) query vector.
type Vector interface {
	Search(ctx context.Context, vec []float32) ([]Hit, error)
}

// Upserter is implemented by adapters that also support corpus ingestion
// (used by the startup bootstrap / hybridragctl ingest, not by query-time
// retrieval).
type Upserter interface {
	Upsert(ctx context.Context, id uint64, text string, vec []float32, payload map[string]any) error
	Exists(ctx context.Context, id uint64) (bool, error)
}

// Scroller is implemented by adapters that support full-corpus ID
// enumeration, used by the Document Change Detector (C13).
type Scroller interface {
	ScrollIDs(ctx context.Context) ([]uint64, error)
}
