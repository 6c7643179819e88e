package nlp

import "strings"

// LexicalQuery builds the OR-joined lexical search string for a user query:
// lemmatized, non-stopword keywords longer than 2 characters, deduplicated
// in first-seen order (spec §4.3; ported from common/util.py's
// make_queries/extract_keywords_lemmatized).
func (c *Client) LexicalQuery(lemmas []string) string {
	seen := make(map[string]bool, len(lemmas))
	keywords := make([]string, 0, len(lemmas))
	for _, l := range lemmas {
		if len(l) <= 2 || seen[l] {
			continue
		}
		seen[l] = true
		keywords = append(keywords, l)
	}
	return strings.Join(keywords, " OR ")
}
