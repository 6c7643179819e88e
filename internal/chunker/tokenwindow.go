package chunker

import "regexp"

var tokenRE = regexp.MustCompile(`\w+`)

// ByTokenWindow is the secondary chunking strategy, ported from the
// source's overlapping token-window splitter. The orchestrator uses
// BySentence in production; this variant is used by tests and by the
// hybridragctl ingest --chunker=token-window debug path (spec §9 design notes).
func ByTokenWindow(text string, score float64, maxTokens, overlap int) []Chunk {
	tokens := tokenRE.FindAllString(text, -1)
	if len(tokens) <= maxTokens {
		return []Chunk{{Text: text, Score: score}}
	}

	var chunks []Chunk
	start := 0
	for start < len(tokens) {
		end := start + maxTokens
		if end > len(tokens) {
			end = len(tokens)
		}
		chunks = append(chunks, Chunk{Text: joinTokens(tokens[start:end]), Score: score})
		if end >= len(tokens) {
			break
		}
		start += maxTokens - overlap
	}
	return chunks
}

func joinTokens(tokens []string) string {
	out := ""
	for i, t := range tokens {
		if i > 0 {
			out += " "
		}
		out += t
	}
	return out
}
