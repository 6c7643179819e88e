// Package nlp talks to an external Polish NLP pipeline (lemmatization,
// sentence segmentation, named-entity recognition) over HTTP. No NLP
// pipeline client exists anywhere in the example corpus, so this follows
// the same doPost/backoff pattern as internal/llm's OpenAI-compatible
// client.
package nlp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog"

	"github.com/brunobiangulo/hybridrag/internal/query"
)

// Client is the HTTP-backed NLP pipeline adapter.
type Client struct {
	baseURL string
	http    *http.Client
	log     zerolog.Logger

	lemmaCache *lru.Cache[string, []string]
}

const lemmaCacheSize = 8192

// New creates a Client pointed at an NLP service base URL, e.g. a FastAPI
// wrapper around spaCy's pl_core_news_sm model.
func New(baseURL string, log zerolog.Logger) (*Client, error) {
	cache, err := lru.New[string, []string](lemmaCacheSize)
	if err != nil {
		return nil, fmt.Errorf("nlp: build lemma cache: %w", err)
	}
	return &Client{
		baseURL:    baseURL,
		http:       &http.Client{Timeout: 30 * time.Second},
		log:        log,
		lemmaCache: cache,
	}, nil
}

// Sentences segments text into a sentence list, implementing
// chunker.SentenceSplitter.
func (c *Client) Sentences(ctx context.Context, text string) ([]string, error) {
	var resp struct {
		Sentences []string `json:"sentences"`
	}
	if err := c.doJSON(ctx, "/sentences", map[string]string{"text": text}, &resp); err != nil {
		return nil, err
	}
	return resp.Sentences, nil
}

// Entities runs NER over text, implementing query.NERProvider.
func (c *Client) Entities(ctx context.Context, text string) ([]query.Entity, error) {
	var resp struct {
		Entities []query.Entity `json:"entities"`
	}
	if err := c.doJSON(ctx, "/entities", map[string]string{"text": text}, &resp); err != nil {
		return nil, err
	}
	return resp.Entities, nil
}

// Lemmatize returns the lemmas the NLP service reports for text (see
// common/util.py's extract_keywords_lemmatized), as the service returns
// them. Results are cached in lemmaCache keyed by the whole input text, so
// a repeated identical text is served without a round trip.
func (c *Client) Lemmatize(ctx context.Context, text string) ([]string, error) {
	if cached, ok := c.lemmaCache.Get(text); ok {
		return cached, nil
	}

	var resp struct {
		Lemmas []string `json:"lemmas"`
	}
	if err := c.doJSON(ctx, "/lemmatize", map[string]string{"text": text}, &resp); err != nil {
		return nil, err
	}

	c.lemmaCache.Add(text, resp.Lemmas)
	return resp.Lemmas, nil
}

func (c *Client) doJSON(ctx context.Context, path string, body any, out any) error {
	respBody, err := c.doPost(ctx, path, body)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("nlp: decoding %s response: %w", path, err)
	}
	return nil
}

const (
	maxRetries        = 4
	baseRetryDelay    = 500 * time.Millisecond
	minRateLimitDelay = 2 * time.Second
)

func retryableStatusCode(code int) bool {
	return code == http.StatusTooManyRequests ||
		code == http.StatusBadGateway ||
		code == http.StatusServiceUnavailable ||
		code == http.StatusGatewayTimeout
}

func (c *Client) doPost(ctx context.Context, path string, body any) ([]byte, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	url := c.baseURL + path

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			delay := baseRetryDelay * time.Duration(1<<(attempt-1))
			c.log.Warn().Str("url", url).Int("attempt", attempt).Dur("delay", delay).Err(lastErr).Msg("nlp: retrying request")
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = fmt.Errorf("request to %s failed: %w", url, err)
			continue
		}

		respBody, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("reading response body: %w", err)
			continue
		}

		if resp.StatusCode == http.StatusOK {
			return respBody, nil
		}

		lastErr = fmt.Errorf("nlp API error %d: %s", resp.StatusCode, string(respBody))
		if !retryableStatusCode(resp.StatusCode) {
			return nil, lastErr
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			delay := minRateLimitDelay * time.Duration(1<<attempt)
			if ra := resp.Header.Get("Retry-After"); ra != "" {
				if secs, err := strconv.Atoi(ra); err == nil && secs > 0 {
					if d := time.Duration(secs) * time.Second; d > delay {
						delay = d
					}
				}
			}
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}

	return nil, fmt.Errorf("nlp: max retries exceeded: %w", lastErr)
}

