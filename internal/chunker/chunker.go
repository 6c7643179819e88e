// Package chunker implements the Chunker (C5): splitting a document's text
// into overlapping chunks that carry their source document's fused score.
package chunker

import (
	"context"
	"fmt"
	"strings"
)

// Config controls chunk sizing, both measured in whitespace-split words.
type Config struct {
	MaxTokens int
	Overlap   int
}

// DefaultConfig matches spec §4.5: max_tokens=200, overlap=30.
func DefaultConfig() Config {
	return Config{MaxTokens: 200, Overlap: 30}
}

// Chunk is one chunked fragment of a document, carrying the score of the
// document it was cut from.
type Chunk struct {
	Text  string
	Score float64
}

// SentenceSplitter obtains a sentence list for a text from the NLP pipeline.
type SentenceSplitter interface {
	Sentences(ctx context.Context, text string) ([]string, error)
}

// BySentence is the primary chunking strategy: accumulate sentences into
// the current chunk until adding the next one would exceed cfg.MaxTokens
// words, emit the chunk, then seed the next chunk with the trailing
// sentences of the emitted chunk whose combined word count first reaches
// cfg.Overlap. Sentence boundaries are never split. Empty text yields no
// chunks; text at or under MaxTokens words yields a single chunk.
func BySentence(ctx context.Context, text string, score float64, splitter SentenceSplitter, cfg Config) ([]Chunk, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, nil
	}
	if wordCount(text) <= cfg.MaxTokens {
		return []Chunk{{Text: text, Score: score}}, nil
	}

	sentences, err := splitter.Sentences(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("chunker: sentence split: %w", err)
	}
	if len(sentences) == 0 {
		return []Chunk{{Text: text, Score: score}}, nil
	}

	var chunks []Chunk
	var current []string
	currentWords := 0

	i := 0
	for i < len(sentences) {
		sent := sentences[i]
		sw := wordCount(sent)

		if currentWords > 0 && currentWords+sw > cfg.MaxTokens {
			chunks = append(chunks, Chunk{Text: strings.Join(current, " "), Score: score})
			seeded, seededWords := seedTail(current, cfg.Overlap)
			if len(seeded) == len(current) {
				// The tail needed to reach overlap is the whole emitted
				// chunk (e.g. one oversized sentence); drop its oldest
				// sentence so the loop keeps making forward progress.
				seeded = current[1:]
				seededWords = wordCount(strings.Join(seeded, " "))
			}
			current, currentWords = seeded, seededWords
			continue
		}

		current = append(current, sent)
		currentWords += sw
		i++
	}

	if currentWords > 0 {
		chunks = append(chunks, Chunk{Text: strings.Join(current, " "), Score: score})
	}

	return chunks, nil
}

// MergeByText merges chunks that share identical text across multiple
// source documents, keeping the maximum score (spec §4.5). Order of first
// appearance is preserved.
func MergeByText(chunks []Chunk) []Chunk {
	best := make(map[string]float64, len(chunks))
	order := make([]string, 0, len(chunks))
	seen := make(map[string]bool, len(chunks))

	for _, c := range chunks {
		if !seen[c.Text] {
			seen[c.Text] = true
			order = append(order, c.Text)
			best[c.Text] = c.Score
		} else if c.Score > best[c.Text] {
			best[c.Text] = c.Score
		}
	}

	out := make([]Chunk, 0, len(order))
	for _, t := range order {
		out = append(out, Chunk{Text: t, Score: best[t]})
	}
	return out
}

func seedTail(sentences []string, overlap int) ([]string, int) {
	if overlap <= 0 || len(sentences) == 0 {
		return nil, 0
	}
	var tail []string
	words := 0
	for i := len(sentences) - 1; i >= 0; i-- {
		tail = append([]string{sentences[i]}, tail...)
		words += wordCount(sentences[i])
		if words >= overlap {
			break
		}
	}
	return tail, words
}

func wordCount(text string) int {
	return len(strings.Fields(text))
}
