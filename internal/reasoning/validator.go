package reasoning

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// FuzzyThreshold is the minimum SequenceMatcher-style ratio for a fuzzy
// grounding match (spec §4.10, GLOSSARY "Grounding").
const FuzzyThreshold = 0.75

// Citation is a single [n]-referenced span extracted from a model answer.
type Citation struct {
	DocNumber int
	Text      string
}

var (
	citationNumRE   = regexp.MustCompile(`\[(\d+)\]`)
	quotedBeforeRE  = regexp.MustCompile(`"([^"]+)"\s*\[(\d+)\]`)
	quotedAfterRE   = regexp.MustCompile(`\[(\d+)\]\s*"([^"]+)"`)
	sentenceSplitRE = regexp.MustCompile(`[.?!]\s+`)
	nonWordRE       = regexp.MustCompile(`[^\w\s]`)
	whitespaceRE    = regexp.MustCompile(`\s+`)
)

// ExtractCitations extracts citations of both shapes from an answer: the
// surrounding-sentence form around every [n], and the explicit quoted
// form which overrides it for the same citation text (spec §4.10 (a)/(b)).
func ExtractCitations(answer string) []Citation {
	var citations []Citation
	runeAnswer := []rune(answer)

	for _, loc := range citationNumRE.FindAllStringSubmatchIndex(answer, -1) {
		numStr := answer[loc[2]:loc[3]]
		num := atoiSafe(numStr)

		// loc gives byte offsets; the windows below are character (rune)
		// counts, matching the Python original's answer[before_start:start]
		// slicing, so convert to rune indices before windowing.
		start := utf8.RuneCountInString(answer[:loc[0]])
		end := utf8.RuneCountInString(answer[:loc[1]])

		beforeStart := start - 200
		if beforeStart < 0 {
			beforeStart = 0
		}
		beforeText := strings.TrimSpace(clampRunes(runeAnswer, beforeStart, start))

		afterEnd := end + 200
		if afterEnd > len(runeAnswer) {
			afterEnd = len(runeAnswer)
		}
		afterText := strings.TrimSpace(clampRunes(runeAnswer, end, afterEnd))

		var citationText string
		if len(beforeText) > len(afterText) {
			sentences := sentenceSplitRE.Split(beforeText, -1)
			citationText = lastNonEmpty(sentences, beforeText)
		} else {
			sentences := sentenceSplitRE.Split(afterText, -1)
			citationText = firstNonEmpty(sentences, afterText)
		}

		citations = append(citations, Citation{DocNumber: num, Text: citationText})
	}

	for _, m := range quotedBeforeRE.FindAllStringSubmatch(answer, -1) {
		overrideCitation(&citations, m[1], atoiSafe(m[2]))
	}
	for _, m := range quotedAfterRE.FindAllStringSubmatch(answer, -1) {
		overrideCitation(&citations, m[2], atoiSafe(m[1]))
	}

	return citations
}

func overrideCitation(citations *[]Citation, text string, num int) {
	for _, c := range *citations {
		if c.Text == text {
			return
		}
	}
	*citations = append(*citations, Citation{DocNumber: num, Text: text})
}

// ValidateAnswer reports whether every citation in answer is grounded in
// its referenced chunk. An answer with no citations is invalid.
func ValidateAnswer(answer string, chunks []string) bool {
	citations := ExtractCitations(answer)
	if len(citations) == 0 {
		return false
	}

	for _, c := range citations {
		if c.DocNumber < 1 || c.DocNumber > len(chunks) {
			return false
		}
		if !Grounded(c.Text, chunks[c.DocNumber-1]) {
			return false
		}
	}
	return true
}

// Grounded reports whether citationText is grounded in document: either a
// normalized substring match, or a sliding-window fuzzy ratio >= 0.75 over
// a window sized max(citationLen, 5) words.
func Grounded(citationText, document string) bool {
	citationNorm := normalizeText(citationText)
	docNorm := normalizeText(document)
	if citationNorm == "" {
		return false
	}
	if strings.Contains(docNorm, citationNorm) {
		return true
	}

	citationWords := strings.Fields(citationNorm)
	docWords := strings.Fields(docNorm)
	windowSize := len(citationWords)
	if windowSize < 5 {
		windowSize = 5
	}

	// If no window of this size fits in the document, no candidate is
	// ever scored and the match fails, matching the source's empty
	// range(len(doc_words) - window_size + 1) behavior.
	best := 0.0
	for i := 0; i+windowSize <= len(docWords); i++ {
		window := strings.Join(docWords[i:i+windowSize], " ")
		if r := fuzzyRatio(citationNorm, window); r > best {
			best = r
		}
	}
	return best >= FuzzyThreshold
}

func normalizeText(text string) string {
	text = whitespaceRE.ReplaceAllString(text, " ")
	text = nonWordRE.ReplaceAllString(text, "")
	return strings.ToLower(strings.TrimSpace(text))
}

func clampRunes(runes []rune, start, end int) string {
	if start < 0 {
		start = 0
	}
	if end > len(runes) {
		end = len(runes)
	}
	if start > end {
		return ""
	}
	return string(runes[start:end])
}

func lastNonEmpty(parts []string, fallback string) string {
	for i := len(parts) - 1; i >= 0; i-- {
		if strings.TrimSpace(parts[i]) != "" {
			return parts[i]
		}
	}
	return fallback
}

func firstNonEmpty(parts []string, fallback string) string {
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			return p
		}
	}
	return fallback
}

func atoiSafe(s string) int {
	n := 0
	for _, r := range s {
		if r < '0' || r > '9' {
			return n
		}
		n = n*10 + int(r-'0')
	}
	return n
}
