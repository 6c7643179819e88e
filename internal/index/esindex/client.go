// Package esindex is a hand-rolled HTTP client for an Elasticsearch-like
// lexical index. No Elasticsearch Go client exists anywhere in the example
// pack this module was grounded on, so the adapter follows the teacher's own
// HTTP-retry pattern (see llm/openai_compat.go) instead of a third-party SDK.
package esindex

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/brunobiangulo/hybridrag/internal/index"
)

const (
	maxRetries     = 4
	baseRetryDelay = 500 * time.Millisecond
)

// Client talks to an Elasticsearch-compatible HTTP endpoint.
type Client struct {
	baseURL string
	index   string
	http    *http.Client
	log     zerolog.Logger
}

// New constructs a Client against baseURL (e.g. "http://elasticsearch:9200")
// and the named index.
func New(baseURL, indexName string, log zerolog.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		index:   indexName,
		http:    &http.Client{Timeout: 30 * time.Second},
		log:     log.With().Str("component", "esindex").Logger(),
	}
}

type searchRequest struct {
	Size  int         `json:"size"`
	Query queryString `json:"query"`
}

type queryString struct {
	QueryString queryStringInner `json:"query_string"`
}

type queryStringInner struct {
	Query string `json:"query"`
}

type searchResponse struct {
	Hits struct {
		Hits []struct {
			ID     string          `json:"_id"`
			Source json.RawMessage `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

type sourceDoc struct {
	Text     string   `json:"text"`
	Entities []string `json:"entities"`
	Places   []string `json:"places"`
	Years    []int    `json:"years"`
}

// Search implements index.Lexical: a query_string search returning up to 35
// hits ordered by relevance, per spec §4.3 / original_source's search_es.
func (c *Client) Search(ctx context.Context, query string) ([]index.Hit, error) {
	req := searchRequest{
		Size:  index.MaxHits,
		Query: queryString{QueryString: queryStringInner{Query: query}},
	}
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("esindex: marshal request: %w", err)
	}

	respBody, err := c.doPost(ctx, fmt.Sprintf("/%s/_search", c.index), body)
	if err != nil {
		c.log.Warn().Err(err).Msg("lexical search failed")
		return nil, err
	}

	var parsed searchResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("esindex: decode response: %w", err)
	}

	hits := make([]index.Hit, 0, len(parsed.Hits.Hits))
	for _, h := range parsed.Hits.Hits {
		var src sourceDoc
		if err := json.Unmarshal(h.Source, &src); err != nil {
			continue
		}
		var id uint64
		if _, err := fmt.Sscanf(h.ID, "%d", &id); err != nil {
			continue
		}
		hits = append(hits, index.Hit{ID: id, Text: src.Text})
	}
	return hits, nil
}

// ScrollIDs enumerates every document id in the index via the scroll API, in
// pages of 1000 with a 2-minute cursor, for the Document Change Detector.
func (c *Client) ScrollIDs(ctx context.Context) ([]uint64, error) {
	body, _ := json.Marshal(map[string]any{
		"query":   map[string]any{"match_all": map[string]any{}},
		"_source": false,
	})
	respBody, err := c.doPost(ctx, fmt.Sprintf("/%s/_search?scroll=2m&size=1000", c.index), body)
	if err != nil {
		return nil, err
	}

	var ids []uint64
	for {
		var parsed struct {
			ScrollID string `json:"_scroll_id"`
			Hits     struct {
				Hits []struct {
					ID string `json:"_id"`
				} `json:"hits"`
			} `json:"hits"`
		}
		if err := json.Unmarshal(respBody, &parsed); err != nil {
			return nil, fmt.Errorf("esindex: decode scroll response: %w", err)
		}
		if len(parsed.Hits.Hits) == 0 {
			break
		}
		for _, h := range parsed.Hits.Hits {
			var id uint64
			if _, err := fmt.Sscanf(h.ID, "%d", &id); err == nil {
				ids = append(ids, id)
			}
		}

		scrollReq, _ := json.Marshal(map[string]any{"scroll": "2m", "scroll_id": parsed.ScrollID})
		respBody, err = c.doPost(ctx, "/_search/scroll", scrollReq)
		if err != nil {
			return nil, err
		}
	}
	return ids, nil
}

// EnsureIndex creates the index with the pl_lemma analyzer and dense_vector
// mapping from spec §6 if it does not already exist. Any 400 response
// (including resource_already_exists_exception) is treated as success.
func (c *Client) EnsureIndex(ctx context.Context, dims int) error {
	body, _ := json.Marshal(map[string]any{
		"settings": map[string]any{
			"analysis": map[string]any{
				"analyzer": map[string]any{
					"pl_lemma": map[string]any{
						"tokenizer": "standard",
						"filter":    []string{"lowercase"},
					},
				},
			},
		},
		"mappings": map[string]any{
			"properties": map[string]any{
				"id":     map[string]any{"type": "keyword"},
				"domain": map[string]any{"type": "keyword"},
				"date":   map[string]any{"type": "date"},
				"text":   map[string]any{"type": "text", "analyzer": "pl_lemma"},
				"vector": map[string]any{
					"type":       "dense_vector",
					"dims":       dims,
					"index":      true,
					"similarity": "cosine",
				},
				"entities": map[string]any{"type": "keyword"},
				"places":   map[string]any{"type": "keyword"},
				"years":    map[string]any{"type": "integer"},
			},
		},
	})
	putReq, err := http.NewRequestWithContext(ctx, http.MethodPut, c.baseURL+"/"+c.index, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("esindex: build request: %w", err)
	}
	putReq.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(putReq)
	if err != nil {
		return fmt.Errorf("%w: %v", index.ErrTransport, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 && resp.StatusCode != http.StatusBadRequest {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("esindex: status %d: %s", resp.StatusCode, string(respBody))
	}
	return nil
}

// Exists checks whether a document with the given id is already indexed,
// used by the ingestion bootstrap to skip records already present.
func (c *Client) Exists(ctx context.Context, id uint64) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, fmt.Sprintf("%s/%s/_doc/%d", c.baseURL, c.index, id), nil)
	if err != nil {
		return false, fmt.Errorf("esindex: build request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return false, fmt.Errorf("%w: %v", index.ErrTransport, err)
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK, nil
}

// Upsert indexes (or replaces) a single document.
func (c *Client) Upsert(ctx context.Context, id uint64, text string, vec []float32, payload map[string]any) error {
	doc := map[string]any{"text": text, "vector": vec}
	for k, v := range payload {
		doc[k] = v
	}
	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("esindex: marshal doc: %w", err)
	}
	putReq, err := http.NewRequestWithContext(ctx, http.MethodPut, fmt.Sprintf("%s/%s/_doc/%d", c.baseURL, c.index, id), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("esindex: build request: %w", err)
	}
	putReq.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(putReq)
	if err != nil {
		return fmt.Errorf("%w: %v", index.ErrTransport, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("esindex: status %d: %s", resp.StatusCode, string(respBody))
	}
	return nil
}

// Lookup fetches a single document's enrichment fields and text, implementing
// detector.DocumentLookup for the Document Change Detector (C13).
func (c *Client) Lookup(ctx context.Context, id uint64) ([]string, []string, []int, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/%s/_doc/%d", c.baseURL, c.index, id), nil)
	if err != nil {
		return nil, nil, nil, "", fmt.Errorf("esindex: build request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, nil, nil, "", fmt.Errorf("%w: %v", index.ErrTransport, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, nil, nil, "", fmt.Errorf("esindex: status %d looking up id %d", resp.StatusCode, id)
	}

	var parsed struct {
		Source sourceDoc `json:"_source"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, nil, nil, "", fmt.Errorf("esindex: decode document: %w", err)
	}
	return parsed.Source.Entities, parsed.Source.Places, parsed.Source.Years, parsed.Source.Text, nil
}

func (c *Client) doPost(ctx context.Context, path string, body []byte) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			delay := baseRetryDelay * time.Duration(1<<uint(attempt-1))
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
			c.log.Warn().Int("attempt", attempt).Msg("retrying esindex request")
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("esindex: build request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("%w: %v", index.ErrTransport, err)
			continue
		}

		respBody, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("esindex: read response: %w", err)
			continue
		}

		if resp.StatusCode >= 500 || resp.StatusCode == 429 {
			lastErr = fmt.Errorf("esindex: status %d", resp.StatusCode)
			continue
		}
		if resp.StatusCode >= 400 {
			return nil, fmt.Errorf("esindex: status %d: %s", resp.StatusCode, string(respBody))
		}
		return respBody, nil
	}
	return nil, lastErr
}
