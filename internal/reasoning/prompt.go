package reasoning

import (
	"context"
	"fmt"
	"strings"

	"github.com/brunobiangulo/hybridrag/internal/llm"
)

// PromptCores are the fixed Polish prompt cores, tried in order by the
// orchestrator under the modify_prompt retry strategy. Ported verbatim
// from config.py's PROMPT_CORES_LIST.
var PromptCores = []string{
	`Twoim zadaniem jest odpowiedzieć na pytanie WYŁĄCZNIE na podstawie fragmentów poniżej.

Zasady:
- Nie używaj wiedzy spoza fragmentów.
- Napisz odpowiedź i poprzyj ją cytatem w formie [numer_fragmentu] "cytat z fragmentu".
- Cały zwrócony tekst powinien mieć formę: ODPOWIEDź, [numer_fragmentu] "cytat z fragmentu
- Jeżeli nie wypiszesz żadnej odpowiedzi, zwróć dokładnie: "BRAK ODPOWIEDZI".
- Jeśli zwrócisz jakąkolwiek odpowiedź, albo cytat to NIE PISZ "BRAK ODPOWIEDZI".
`,
	`Twoim zadaniem jest odpowiedzieć na pytanie WYŁĄCZNIE na podstawie fragmentów poniżej.

Zasady:
- Nie używaj wiedzy spoza fragmentów.
- Każde zdanie odpowiedzi musi być poparte cytatem w formacie [numer_fragmentu] "cytat z fragmentu".
- Jeśli fragmenty nie zawierają odpowiedzi na pytanie, napisz dokładnie: "BRAK INFORMACJI".
`,
	`Jesteś asystentem, który odpowiada na pytania wyłącznie na podstawie dostarczonych fragmentów.`,
}

// BuildPrompt assembles the single user message: prompt_core, the
// 1-indexed fragment list, then the question (spec §4.9).
func BuildPrompt(chunks []string, promptCore, question string) string {
	var ctx strings.Builder
	for i, chunk := range chunks {
		if i > 0 {
			ctx.WriteString("\n\n")
		}
		fmt.Fprintf(&ctx, "[%d] %s", i+1, chunk)
	}
	return fmt.Sprintf("%s\nFragmenty:\n%s\n\nPytanie:\n%s", promptCore, ctx.String(), question)
}

// AskModel builds the prompt for cores[coreIdx] and sends it to the
// model at temperature 0.6.
func AskModel(ctx context.Context, provider llm.Provider, chunks []string, cores []string, coreIdx int, question, model string) (*llm.ChatResponse, error) {
	prompt := BuildPrompt(chunks, cores[coreIdx], question)
	return provider.Chat(ctx, llm.ChatRequest{
		Model:       model,
		Messages:    []llm.Message{{Role: "user", Content: prompt}},
		Temperature: 0.6,
	})
}
