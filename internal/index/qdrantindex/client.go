// Package qdrantindex wraps the official github.com/qdrant/go-client gRPC
// client as the production Vector adapter (C3). Grounded on the
// providers/vectorstores/qdrant package in the example pack (Tangerg-lynx/ai).
package qdrantindex

import (
	"context"
	"fmt"

	"github.com/qdrant/go-client/qdrant"

	"github.com/brunobiangulo/hybridrag/internal/index"
)

// Client is a thin adapter over *qdrant.Client scoped to one collection.
type Client struct {
	raw        *qdrant.Client
	collection string
}

// New dials a Qdrant gRPC endpoint and wraps the named collection.
func New(ctx context.Context, addr, collection string) (*Client, error) {
	raw, err := qdrant.NewClient(&qdrant.Config{Host: addr, Port: 6334})
	if err != nil {
		return nil, fmt.Errorf("qdrantindex: dial: %w", err)
	}
	return &Client{raw: raw, collection: collection}, nil
}

// EnsureCollection creates the collection (384-dim cosine distance) if it
// does not already exist.
func (c *Client) EnsureCollection(ctx context.Context, dims int) error {
	exists, err := c.raw.CollectionExists(ctx, c.collection)
	if err != nil {
		return fmt.Errorf("qdrantindex: check collection: %w", err)
	}
	if exists {
		return nil
	}
	err = c.raw.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: c.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(dims),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("qdrantindex: create collection: %w", err)
	}
	return nil
}

// Search implements index.Vector: cosine nearest-neighbor search, up to
// index.MaxHits results, payload carries the document text.
func (c *Client) Search(ctx context.Context, vec []float32) ([]index.Hit, error) {
	points, err := c.raw.Query(ctx, &qdrant.QueryPoints{
		CollectionName: c.collection,
		Query:          qdrant.NewQuery(vec...),
		Limit:          ptrOf(uint64(index.MaxHits)),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: qdrant query: %v", index.ErrTransport, err)
	}

	hits := make([]index.Hit, 0, len(points))
	for _, p := range points {
		hits = append(hits, index.Hit{
			ID:   p.GetId().GetNum(),
			Text: payloadText(p.GetPayload()),
		})
	}
	return hits, nil
}

// Upsert inserts or replaces a single point; the text is carried in the
// payload under "text" alongside any supplied metadata.
func (c *Client) Upsert(ctx context.Context, id uint64, text string, vec []float32, payload map[string]any) error {
	fields, err := qdrant.TryValueMap(mergeText(payload, text))
	if err != nil {
		return fmt.Errorf("qdrantindex: build payload: %w", err)
	}
	point := &qdrant.PointStruct{
		Id:      qdrant.NewIDNum(id),
		Vectors: qdrant.NewVectors(vec...),
		Payload: fields,
	}
	_, err = c.raw.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: c.collection,
		Points:         []*qdrant.PointStruct{point},
	})
	if err != nil {
		return fmt.Errorf("qdrantindex: upsert: %w", err)
	}
	return nil
}

// Exists checks point presence by id, used by the ingestion bootstrap to
// skip already-indexed records (point_exists in original_source).
func (c *Client) Exists(ctx context.Context, id uint64) (bool, error) {
	points, err := c.raw.Get(ctx, &qdrant.GetPoints{
		CollectionName: c.collection,
		Ids:            []*qdrant.PointId{qdrant.NewIDNum(id)},
	})
	if err != nil {
		return false, fmt.Errorf("qdrantindex: get: %w", err)
	}
	return len(points) > 0, nil
}

func (c *Client) Close() error {
	return c.raw.Close()
}

func mergeText(payload map[string]any, text string) map[string]any {
	out := make(map[string]any, len(payload)+1)
	for k, v := range payload {
		out[k] = v
	}
	out["text"] = text
	return out
}

func ptrOf[T any](v T) *T { return &v }

func payloadText(payload map[string]*qdrant.Value) string {
	if payload == nil {
		return ""
	}
	if v, ok := payload["text"]; ok {
		return v.GetStringValue()
	}
	return ""
}
