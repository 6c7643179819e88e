// Package query implements the Query Analyzer (C1) and Weight Chooser (C2):
// fixed-regex feature extraction over a Polish query plus the deterministic
// decision tree mapping features to a (lexical, dense) fusion weight pair.
package query

// filterWords triggers the has_filter feature when any query token matches
// one of these exactly. Kept as a data table, not inline literals, so the
// lexicon can grow without touching analyze.go.
var filterWords = map[string]bool{
	"autor":      true,
	"dokumenty":  true,
	"po":         true,
	"przed":      true,
	"od":         true,
	"dotyczące":  true,
}

// abstractWords triggers the abstract feature when any substring match is
// found in the lowercased query.
var abstractWords = []string{
	"czym",
	"co to",
	"jak",
	"dlaczego",
	"sens",
	"znaczenie",
}
