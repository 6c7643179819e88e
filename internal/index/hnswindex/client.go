// Package hnswindex backs index.Vector with an in-process
// github.com/coder/hnsw graph, for local development and tests where no
// real Qdrant-compatible cluster is available. Grounded on
// internal/store/hnsw.go in the example pack (Aman-CERP-amanmcp).
package hnswindex

import (
	"context"
	"fmt"
	"sync"

	"github.com/coder/hnsw"

	"github.com/brunobiangulo/hybridrag/internal/index"
)

// Client wraps a cosine-distance HNSW graph keyed directly by document id.
type Client struct {
	mu    sync.RWMutex
	graph *hnsw.Graph[uint64]
	texts map[uint64]string
}

// New builds an empty HNSW graph configured for cosine similarity over
// L2-normalized vectors, matching the production Qdrant collection's metric.
func New() *Client {
	g := hnsw.NewGraph[uint64]()
	g.Distance = hnsw.CosineDistance
	return &Client{graph: g, texts: make(map[uint64]string)}
}

// Upsert inserts or replaces one vector. coder/hnsw has no in-place delete
// for the last remaining node, so updates re-add under the same key, which
// the library treats as a replace.
func (c *Client) Upsert(ctx context.Context, id uint64, text string, vec []float32, _ map[string]any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.graph.Add(hnsw.MakeNode(id, vec))
	c.texts[id] = text
	return nil
}

// Exists reports whether id has been indexed.
func (c *Client) Exists(ctx context.Context, id uint64) (bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.texts[id]
	return ok, nil
}

// Search implements index.Vector: cosine nearest-neighbor search over the
// in-memory graph, up to index.MaxHits results.
func (c *Client) Search(ctx context.Context, vec []float32) ([]index.Hit, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.graph.Len() == 0 {
		return nil, nil
	}

	nodes, err := searchGraph(c.graph, vec, index.MaxHits)
	if err != nil {
		return nil, fmt.Errorf("%w: hnsw search: %v", index.ErrTransport, err)
	}

	hits := make([]index.Hit, 0, len(nodes))
	for _, n := range nodes {
		hits = append(hits, index.Hit{ID: n.Key, Text: c.texts[n.Key]})
	}
	return hits, nil
}

// ScrollIDs returns every indexed document id. bootstrap.BuildIndices does
// not use it: the Document Change Detector scrolls the lexical adapter.
func (c *Client) ScrollIDs(ctx context.Context) ([]uint64, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ids := make([]uint64, 0, len(c.texts))
	for id := range c.texts {
		ids = append(ids, id)
	}
	return ids, nil
}

func searchGraph(g *hnsw.Graph[uint64], vec []float32, k int) ([]hnsw.Node[uint64], error) {
	return g.Search(vec, k), nil
}
