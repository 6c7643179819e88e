// Package metadata extracts entity, place, and year hints from a query or
// document text (C14), combining regex date patterns, NER, and an LLM
// fallback for dates the first two passes miss.
package metadata

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/araddon/dateparse"
	"github.com/samber/lo"

	"github.com/brunobiangulo/hybridrag/internal/llm"
	"github.com/brunobiangulo/hybridrag/internal/query"
)

// Hints is the entity/place/year triple attached to a memory entry or a
// corpus document, used by the Document Change Detector (C13) to match
// retried queries against newly ingested documents.
type Hints struct {
	Entities []string
	Places   []string
	Years    []int
}

// strictDateREs are the fixed Polish date/range patterns tried before NER
// or the LLM (spec §6, EXTERNAL INTERFACES / Strict date regexes).
var strictDateREs = []*regexp.Regexp{
	regexp.MustCompile(`\b\d{4}-\d{2}-\d{2}\b`),
	regexp.MustCompile(`\b\d{4}\.\d{2}\.\d{2}\b`),
	regexp.MustCompile(`\b\d{4}/\d{2}/\d{2}\b`),
	regexp.MustCompile(`\b\d{2}-\d{2}-\d{4}\b`),
	regexp.MustCompile(`\b\d{2}\.\d{2}\.\d{4}\b`),
	regexp.MustCompile(`\b\d{2}/\d{2}/\d{4}\b`),
	regexp.MustCompile(`\bw \d{4}\b`),
	regexp.MustCompile(`(?:o|O)d \d{4} do \d{4}\b`),
	regexp.MustCompile(`\d{4}-\d{4}`),
}

var fourDigitYearRE = regexp.MustCompile(`\b\d{4}\b`)

func matchRegexList(text string) []string {
	var out []string
	for _, re := range strictDateREs {
		out = append(out, re.FindAllString(text, -1)...)
	}
	return out
}

const dateExtractionPrompt = `Wyodrębnij z poniższego tekstu tylko nietypowe daty i zakresy, których nie wykryły standardowe metody.
Oto daty już znalezione: %s

TEKST:
%s

Zwróć wynik w formacie JSON:
{
  "dates": [],
  "years": [],
  "ranges": [],
  "other": []
}`

type llmDates struct {
	Dates  []string `json:"dates"`
	Years  []string `json:"years"`
	Ranges []string `json:"ranges"`
	Other  []string `json:"other"`
}

// hybridDateExtraction runs the regex → NER → LLM cascade and returns the
// deduplicated union of candidate date strings, each still containing a
// 4-digit year (spec §4.14).
func hybridDateExtraction(ctx context.Context, text string, f query.Features, provider llm.Provider, model string) []string {
	known := matchRegexList(text)
	known = append(known, query.SortedUniqueEntityTexts(f.Entities, "date")...)

	if provider != nil {
		prompt := fmt.Sprintf(dateExtractionPrompt, strings.Join(known, ", "), text)
		raw, err := provider.ChatJSON(ctx, llm.ChatRequest{
			Model:       model,
			Messages:    []llm.Message{{Role: "user", Content: prompt}},
			Temperature: 0,
		})
		if err == nil {
			var parsed llmDates
			if json.Unmarshal(raw, &parsed) == nil {
				known = append(known, parsed.Dates...)
				known = append(known, parsed.Years...)
				known = append(known, parsed.Ranges...)
				known = append(known, parsed.Other...)
			}
		}
	}

	cleaned := lo.Filter(known, func(d string, _ int) bool {
		return fourDigitYearRE.MatchString(d)
	})
	return lo.Uniq(cleaned)
}

// yearsFromDates parses each date string with fuzzy date parsing, falling
// back to a bare 4-digit-year regex scan when parsing fails.
func yearsFromDates(dates []string) []int {
	years := make(map[int]struct{})
	for _, d := range dates {
		if t, err := dateparse.ParseAny(d); err == nil {
			years[t.Year()] = struct{}{}
			continue
		}
		for _, y := range fourDigitYearRE.FindAllString(d, -1) {
			var yr int
			fmt.Sscanf(y, "%d", &yr)
			years[yr] = struct{}{}
		}
	}
	out := make([]int, 0, len(years))
	for y := range years {
		out = append(out, y)
	}
	sort.Ints(out)
	return out
}

// ExtractFromQuery computes Hints for a user query, given its already-run
// Analyze features (for NER-derived entities) and an optional LLM provider
// for the date-extraction fallback.
func ExtractFromQuery(ctx context.Context, text string, f query.Features, provider llm.Provider, model string) Hints {
	entities := query.SortedUniqueEntityTexts(f.Entities, "persName", "orgName")
	places := query.SortedUniqueEntityTexts(f.Entities, "placeName", "geogName")
	dates := hybridDateExtraction(ctx, text, f, provider, model)
	return Hints{
		Entities: entities,
		Places:   places,
		Years:    yearsFromDates(dates),
	}
}
