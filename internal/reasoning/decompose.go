package reasoning

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/brunobiangulo/hybridrag/internal/llm"
	"github.com/brunobiangulo/hybridrag/internal/query"
)

// Decomposition is the result of splitting a compound query into
// sub-questions.
type Decomposition struct {
	MainQuestion string
	SubQuestions []string
	Type         string
}

var codeFenceRE = regexp.MustCompile("(?s)```json\\s*|\\s*```")

const decomposePrompt = `Jesteś ekspertem od analizy zapytań. Twoim zadaniem jest rozłożyć pytanie na komponenty.

Pytanie: %s

Zasady:
1. Jeśli pytanie jest proste i konkretne (np. "Co zawiera dokument X?", "Czy inflacja rośnie?"), zwróć je jako main_question bez sub_questions.
2. Jeśli pytanie jest złożone (np. "Jak poprawić pracę zespołową?"), rozbij je na 2-3 podzapytania.
3. Format odpowiedzi (JSON):
{
  "main_question": "...",
  "sub_questions": ["...", "..."]
}

NIE dodawaj komentarzy. Zwróć TYLKO JSON.`

// Decompose skips decomposition for acronym/ID/filter queries, returning
// the query unchanged. Otherwise it asks the LLM for a JSON decomposition
// at temperature 0.2 and tolerates any parse failure with the same
// unchanged fallback (spec §4.7).
func Decompose(ctx context.Context, userQuery string, f query.Features, model string, provider llm.Provider) Decomposition {
	if f.IsAcronym || f.HasID {
		return Decomposition{MainQuestion: userQuery, Type: "factual"}
	}
	if f.HasFilter {
		return Decomposition{MainQuestion: userQuery, Type: "filter"}
	}

	raw, err := provider.ChatJSON(ctx, llm.ChatRequest{
		Model:       model,
		Messages:    []llm.Message{{Role: "user", Content: fmt.Sprintf(decomposePrompt, userQuery)}},
		Temperature: 0.2,
	})
	if err != nil {
		return Decomposition{MainQuestion: userQuery, Type: "error"}
	}

	cleaned := strings.TrimSpace(codeFenceRE.ReplaceAllString(string(raw), ""))

	var parsed struct {
		MainQuestion string   `json:"main_question"`
		SubQuestions []string `json:"sub_questions"`
	}
	if err := json.Unmarshal([]byte(cleaned), &parsed); err != nil {
		return Decomposition{MainQuestion: userQuery, Type: "error"}
	}

	if parsed.MainQuestion == "" {
		parsed.MainQuestion = userQuery
	}

	decompType := "simple"
	if len(parsed.SubQuestions) > 0 {
		decompType = "complex"
	}

	return Decomposition{
		MainQuestion: parsed.MainQuestion,
		SubQuestions: parsed.SubQuestions,
		Type:         decompType,
	}
}
