// Package bleveindex backs index.Lexical with an in-process
// github.com/blevesearch/bleve/v2 index, for local development and tests
// where no real Elasticsearch-compatible cluster is available. Grounded on
// internal/store/bm25.go in the example pack (Aman-CERP-amanmcp).
package bleveindex

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/blevesearch/bleve/v2"

	"github.com/brunobiangulo/hybridrag/internal/index"
)

type bleveDoc struct {
	Text string `json:"text"`
}

type enrichment struct {
	entities []string
	places   []string
	years    []int
}

// Client is an in-memory bleve index keyed by the document's decimal id.
type Client struct {
	mu    sync.RWMutex
	index bleve.Index
	texts map[uint64]string
	meta  map[uint64]enrichment
}

// New builds an in-memory index with bleve's default mapping.
func New() (*Client, error) {
	idx, err := bleve.NewMemOnly(bleve.NewIndexMapping())
	if err != nil {
		return nil, fmt.Errorf("bleveindex: create index: %w", err)
	}
	return &Client{index: idx, texts: make(map[uint64]string), meta: make(map[uint64]enrichment)}, nil
}

// Upsert indexes (or replaces) one document's text. payload may carry
// "entities" ([]string), "places" ([]string), and "years" ([]int), recorded
// for later Lookup calls.
func (c *Client) Upsert(ctx context.Context, id uint64, text string, _ []float32, payload map[string]any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := strconv.FormatUint(id, 10)
	if err := c.index.Index(key, bleveDoc{Text: text}); err != nil {
		return fmt.Errorf("bleveindex: index %d: %w", id, err)
	}
	c.texts[id] = text
	c.meta[id] = enrichment{
		entities: toStringSlice(payload["entities"]),
		places:   toStringSlice(payload["places"]),
		years:    toIntSlice(payload["years"]),
	}
	return nil
}

func toStringSlice(v any) []string {
	s, _ := v.([]string)
	return s
}

func toIntSlice(v any) []int {
	s, _ := v.([]int)
	return s
}

// Lookup returns a document's enrichment fields and text, implementing
// detector.DocumentLookup for the Document Change Detector (C13) in local
// development mode.
func (c *Client) Lookup(ctx context.Context, id uint64) ([]string, []string, []int, string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	text, ok := c.texts[id]
	if !ok {
		return nil, nil, nil, "", fmt.Errorf("bleveindex: no document with id %d", id)
	}
	m := c.meta[id]
	return m.entities, m.places, m.years, text, nil
}

// Exists reports whether id has been indexed.
func (c *Client) Exists(ctx context.Context, id uint64) (bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.texts[id]
	return ok, nil
}

// Search implements index.Lexical with bleve's default BM25-like scoring.
func (c *Client) Search(ctx context.Context, query string) ([]index.Hit, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if query == "" {
		return nil, nil
	}

	req := bleve.NewSearchRequest(bleve.NewMatchQuery(query))
	req.Size = index.MaxHits
	result, err := c.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("%w: bleve search: %v", index.ErrTransport, err)
	}

	hits := make([]index.Hit, 0, len(result.Hits))
	for _, h := range result.Hits {
		id, err := strconv.ParseUint(h.ID, 10, 64)
		if err != nil {
			continue
		}
		hits = append(hits, index.Hit{ID: id, Text: c.texts[id]})
	}
	return hits, nil
}

// ScrollIDs returns every indexed document id, for the Document Change
// Detector's local-mode snapshot.
func (c *Client) ScrollIDs(ctx context.Context) ([]uint64, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ids := make([]uint64, 0, len(c.texts))
	for id := range c.texts {
		ids = append(ids, id)
	}
	return ids, nil
}
