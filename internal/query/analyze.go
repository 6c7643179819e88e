package query

import (
	"context"
	"regexp"
	"sort"
	"strings"
)

var (
	acronymRE = regexp.MustCompile(`^[A-ZĄĆĘŁŃÓŚŻŹ]{2,}$`)
	idRE      = regexp.MustCompile(`[A-Z]{1,5}[-_]?\d+`)
	yearRE    = regexp.MustCompile(`\b(19|20)\d{2}\b`)
	tokenRE   = regexp.MustCompile(`\w+`)
)

// Entity is a named entity surfaced by the NLP pipeline, labeled with one of
// the TEI-style tags persName/orgName/placeName/geogName/date.
type Entity struct {
	Text  string `json:"text"`
	Label string `json:"label"`
}

// NERProvider is the subset of the NLP pipeline the analyzer needs: named
// entity recognition over a raw query string.
type NERProvider interface {
	Entities(ctx context.Context, text string) ([]Entity, error)
}

// Features is the output of Analyze: the fixed boolean/derived flags the
// Weight Chooser (C2), Decomposer (C7), Clarifier (C8), and Filter (C6) all
// branch on.
type Features struct {
	HasNumber        bool
	HasYear          bool
	HasID            bool
	IsAcronym        bool
	HasFilter        bool
	IsQuestion       bool
	Abstract         bool
	TokenLen         int
	HasNamedEntity   bool
	HasSpecificEntity bool
	Entities         []Entity
}

// Analyze extracts Features from a query string. It is pure given identical
// NER output: calling it twice on the same query against the same NLP
// pipeline state yields identical Features (invariant 2 in the spec).
func Analyze(ctx context.Context, q string, ner NERProvider) (Features, error) {
	trimmed := strings.TrimSpace(q)
	tokens := tokenRE.FindAllString(trimmed, -1)

	f := Features{
		IsAcronym:  acronymRE.MatchString(trimmed),
		HasID:      idRE.MatchString(trimmed),
		HasYear:    yearRE.MatchString(trimmed),
		IsQuestion: strings.HasSuffix(strings.TrimSpace(trimmed), "?"),
		TokenLen:   len(tokens),
	}

	for _, t := range tokens {
		if isAllDigits(t) {
			f.HasNumber = true
		}
		if filterWords[strings.ToLower(t)] {
			f.HasFilter = true
		}
	}

	lower := strings.ToLower(trimmed)
	for _, w := range abstractWords {
		if strings.Contains(lower, w) {
			f.Abstract = true
			break
		}
	}

	var entities []Entity
	if ner != nil {
		ents, err := ner.Entities(ctx, trimmed)
		if err != nil {
			return Features{}, err
		}
		entities = ents
	}
	f.Entities = entities

	for _, e := range entities {
		switch e.Label {
		case "persName", "orgName", "placeName", "geogName":
			f.HasNamedEntity = true
			f.HasSpecificEntity = true
		case "date":
			f.HasNamedEntity = true
			f.HasYear = true
		}
	}

	return f, nil
}

func isAllDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// SortedUniqueEntityTexts returns the sorted, deduplicated text of entities
// whose label is in labels.
func SortedUniqueEntityTexts(entities []Entity, labels ...string) []string {
	want := make(map[string]bool, len(labels))
	for _, l := range labels {
		want[l] = true
	}
	seen := make(map[string]bool)
	var out []string
	for _, e := range entities {
		if !want[e.Label] {
			continue
		}
		if seen[e.Text] {
			continue
		}
		seen[e.Text] = true
		out = append(out, e.Text)
	}
	sort.Strings(out)
	return out
}
