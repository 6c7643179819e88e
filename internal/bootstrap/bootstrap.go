// Package bootstrap wires together the concrete adapters (indices, LLM
// provider, NLP client, memory store, detector) behind hybridrag.Engine, and
// implements the startup sequence (index schema, model pull, corpus
// ingestion) that hybridragctl ingest runs. The server path (RunServer, used
// by cmd/hybridragd and hybridragctl serve) only ensures the index schema
// and vector collection; it does not pull the model or ingest the corpus.
package bootstrap

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/brunobiangulo/hybridrag"
	"github.com/brunobiangulo/hybridrag/internal/chunker"
	"github.com/brunobiangulo/hybridrag/internal/detector"
	"github.com/brunobiangulo/hybridrag/internal/index"
	"github.com/brunobiangulo/hybridrag/internal/index/bleveindex"
	"github.com/brunobiangulo/hybridrag/internal/index/esindex"
	"github.com/brunobiangulo/hybridrag/internal/index/hnswindex"
	"github.com/brunobiangulo/hybridrag/internal/index/qdrantindex"
	"github.com/brunobiangulo/hybridrag/internal/llm"
	"github.com/brunobiangulo/hybridrag/internal/metadata"
	"github.com/brunobiangulo/hybridrag/internal/query"
)

// ChunkMode selects how IngestCorpus splits each corpus record's text
// before upserting. ChunkModeNone (the default) upserts the record
// verbatim, matching the original pre-chunked NDJSON corpus. ChunkModeToken
// exercises the secondary token-window chunker end to end, for the
// hybridragctl ingest --chunker=token-window debug path.
type ChunkMode int

const (
	ChunkModeNone ChunkMode = iota
	ChunkModeToken
)

const (
	tokenWindowMaxTokens = 120
	tokenWindowOverlap   = 20
)

// Indices bundles the adapters the rest of bootstrap and the Engine need,
// so callers don't have to juggle four separate return values.
type Indices struct {
	Lexical  index.Lexical
	Vector   index.Vector
	Upserter struct {
		Lexical index.Upserter
		Vector  index.Upserter
	}
	Scroller index.Scroller
	Lookup   detector.DocumentLookup
}

// BuildIndices wires the lexical/vector adapters per cfg.LocalMode: the
// in-process bleve/hnsw pair for local development and tests, or the
// Elasticsearch/Qdrant HTTP/gRPC clients against a real deployment.
func BuildIndices(ctx context.Context, cfg hybridrag.Config, log zerolog.Logger) (Indices, error) {
	if cfg.LocalMode {
		lex, err := bleveindex.New()
		if err != nil {
			return Indices{}, fmt.Errorf("bleveindex: %w", err)
		}
		vec := hnswindex.New()
		out := Indices{Lexical: lex, Vector: vec, Scroller: lex, Lookup: lex}
		out.Upserter.Lexical = lex
		out.Upserter.Vector = vec
		return out, nil
	}

	lex := esindex.New(cfg.ESURL, cfg.ESIndexName, log)
	if err := lex.EnsureIndex(ctx, cfg.EmbeddingDim); err != nil {
		return Indices{}, fmt.Errorf("esindex: ensure index: %w", err)
	}

	vec, err := qdrantindex.New(ctx, cfg.QdrantURL, cfg.QdrantIndexName)
	if err != nil {
		return Indices{}, fmt.Errorf("qdrantindex: %w", err)
	}
	if err := vec.EnsureCollection(ctx, cfg.EmbeddingDim); err != nil {
		return Indices{}, fmt.Errorf("qdrantindex: ensure collection: %w", err)
	}

	out := Indices{Lexical: lex, Vector: vec, Scroller: lex, Lookup: lex}
	out.Upserter.Lexical = lex
	out.Upserter.Vector = vec
	return out, nil
}

// EnsureModel checks whether model is present on the Ollama host at
// ollamaHost, pulling it if missing. Ported from the original
// _ensure_model_exists startup check.
func EnsureModel(ctx context.Context, ollamaHost, model string, log zerolog.Logger) error {
	client := &http.Client{Timeout: 10 * time.Second}

	tagsReq, err := http.NewRequestWithContext(ctx, http.MethodGet, ollamaHost+"/api/tags", nil)
	if err != nil {
		return fmt.Errorf("bootstrap: build tags request: %w", err)
	}
	resp, err := client.Do(tagsReq)
	if err != nil {
		return fmt.Errorf("bootstrap: list ollama models: %w", err)
	}
	defer resp.Body.Close()

	var tags struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tags); err != nil {
		return fmt.Errorf("bootstrap: decode tags response: %w", err)
	}
	for _, m := range tags.Models {
		if m.Name == model {
			return nil
		}
	}

	log.Info().Str("model", model).Msg("pulling ollama model")
	body, _ := json.Marshal(map[string]any{"name": model, "stream": false})
	pullReq, err := http.NewRequestWithContext(ctx, http.MethodPost, ollamaHost+"/api/pull", strings.NewReader(string(body)))
	if err != nil {
		return fmt.Errorf("bootstrap: build pull request: %w", err)
	}
	pullReq.Header.Set("Content-Type", "application/json")
	pullClient := &http.Client{Timeout: 20 * time.Minute}
	pullResp, err := pullClient.Do(pullReq)
	if err != nil {
		return fmt.Errorf("bootstrap: pull ollama model: %w", err)
	}
	defer pullResp.Body.Close()
	if pullResp.StatusCode >= 300 {
		return fmt.Errorf("bootstrap: pull ollama model: status %d", pullResp.StatusCode)
	}
	return nil
}

type corpusRecord struct {
	ID       uint64    `json:"id"`
	Text     string    `json:"text"`
	Vector   []float32 `json:"vector"`
	Domain   string    `json:"domain,omitempty"`
	Entities []string  `json:"entities,omitempty"`
	Places   []string  `json:"places,omitempty"`
	Years    []int     `json:"years,omitempty"`
}

const ingestBatchSize = 5

// IngestCorpus streams the NDJSON corpus file at path, skipping bulk
// metadata lines and malformed records, enriching records that carry no
// entities/places/years via the Metadata Enricher (C14), and upserting into
// both stores in batches of ingestBatchSize, idempotently skipping ids
// already present in both. No NER pipeline is passed to the enricher here,
// so only years are filled in; entities and places stay empty.
// Ported from the original populate_index/populate_collection routines.
func IngestCorpus(ctx context.Context, idx Indices, path string, provider llm.Provider, model string, mode ChunkMode, log zerolog.Logger) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("bootstrap: open corpus file: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 1<<20), 16<<20)

	ingested := 0
	batch := make([]corpusRecord, 0, ingestBatchSize)

	flush := func() error {
		for _, rec := range batch {
			if err := upsertRecord(ctx, idx, rec); err != nil {
				return err
			}
			ingested++
		}
		batch = batch[:0]
		return nil
	}

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		// Elasticsearch bulk NDJSON alternates an action line with a document
		// line; only the action line (e.g. {"index": {...}}) is skipped here.
		if line == "" || strings.HasPrefix(line, `{"index"`) {
			continue
		}
		var rec corpusRecord
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			log.Warn().Err(err).Msg("ingest: skipping malformed corpus line")
			continue
		}
		if rec.ID == 0 || rec.Text == "" || len(rec.Vector) == 0 {
			continue
		}

		if len(rec.Entities) == 0 && len(rec.Places) == 0 && len(rec.Years) == 0 {
			features, err := query.Analyze(ctx, rec.Text, nil)
			if err == nil {
				hints := metadata.ExtractFromQuery(ctx, rec.Text, features, provider, model)
				rec.Entities, rec.Places, rec.Years = hints.Entities, hints.Places, hints.Years
			}
		}

		for _, piece := range splitRecord(rec, mode) {
			batch = append(batch, piece)
			if len(batch) >= ingestBatchSize {
				if err := flush(); err != nil {
					return ingested, err
				}
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return ingested, fmt.Errorf("bootstrap: scan corpus file: %w", err)
	}
	if err := flush(); err != nil {
		return ingested, err
	}

	log.Info().Int("ingested", ingested).Msg("corpus ingestion complete")
	return ingested, nil
}

// splitRecord returns rec unchanged under ChunkModeNone. Under
// ChunkModeToken it re-derives ids as rec.ID*1000+offset for each
// token-window piece, reusing the original embedding vector since this
// path is a debug exercise of the chunker, not a re-embedding pipeline.
func splitRecord(rec corpusRecord, mode ChunkMode) []corpusRecord {
	if mode != ChunkModeToken {
		return []corpusRecord{rec}
	}
	chunks := chunker.ByTokenWindow(rec.Text, 1.0, tokenWindowMaxTokens, tokenWindowOverlap)
	pieces := make([]corpusRecord, len(chunks))
	for i, c := range chunks {
		piece := rec
		piece.ID = rec.ID*1000 + uint64(i)
		piece.Text = c.Text
		pieces[i] = piece
	}
	return pieces
}

func upsertRecord(ctx context.Context, idx Indices, rec corpusRecord) error {
	lexExists, err := idx.Upserter.Lexical.Exists(ctx, rec.ID)
	if err != nil {
		return fmt.Errorf("bootstrap: check lexical existence for id %d: %w", rec.ID, err)
	}
	vecExists, err := idx.Upserter.Vector.Exists(ctx, rec.ID)
	if err != nil {
		return fmt.Errorf("bootstrap: check vector existence for id %d: %w", rec.ID, err)
	}
	if lexExists && vecExists {
		return nil
	}

	payload := map[string]any{
		"domain":   rec.Domain,
		"entities": rec.Entities,
		"places":   rec.Places,
		"years":    rec.Years,
	}
	if !lexExists {
		if err := idx.Upserter.Lexical.Upsert(ctx, rec.ID, rec.Text, rec.Vector, payload); err != nil {
			return fmt.Errorf("bootstrap: upsert lexical id %d: %w", rec.ID, err)
		}
	}
	if !vecExists {
		if err := idx.Upserter.Vector.Upsert(ctx, rec.ID, rec.Text, rec.Vector, payload); err != nil {
			return fmt.Errorf("bootstrap: upsert vector id %d: %w", rec.ID, err)
		}
	}
	return nil
}
