package reasoning

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/brunobiangulo/hybridrag/internal/llm"
)

// Interpretation is a declarative phrase appended to a query to
// disambiguate it.
type Interpretation struct {
	Label         string
	Clarification string
}

// ClarificationResult is the outcome of the two-stage ambiguity detector.
type ClarificationResult struct {
	NeedsClarification bool
	Interpretations    []Interpretation
	Reason             string
}

type ambiguitySignal struct {
	kind string // "entity" or "abstract"
	term string
	desc string
}

var ambiguousEntities = map[string]string{
	"pan":          "PAN (instytucja) vs pan (osoba/grzecznościowe)",
	"rada":         "która rada? (ministrów, nadzorcza, etc.)",
	"instytut":     "który instytut?",
	"komisja":      "która komisja?",
	"program":      "jaki program? (komputerowy, polityczny, edukacyjny)",
	"organizacja":  "która organizacja?",
}

var abstractConcepts = map[string]string{
	"sens":            "sens moralny/praktyczny/egzystencjalny?",
	"znaczenie":       "znaczenie słowa/wydarzenia/symboliczne?",
	"odpowiedzialność": "moralna/prawna/społeczna/zawodowa?",
	"sukces":          "sukces finansowy/osobisty/zawodowy?",
	"kryzys":          "kryzys ekonomiczny/polityczny/osobisty/zdrowotny?",
	"efektywność":     "efektywność czego dokładnie?",
	"rozwój":          "rozwój osobisty/zawodowy/gospodarczy?",
	"zarządzanie":     "zarządzanie czym? (ludźmi/projektem/firmą/czasem)",
}

var whWords = []string{"który", "jaki", "która", "jakie"}
var contextPhrases = []string{"w kontekście", "w zakresie", "odnośnie", "dotycząc", "w przypadku", "dla", "przy"}
var howToTemplates = []string{"jak zarządzać", "jak poprawić", "jak zwiększyć"}
var scopeMarkers = []string{"w firmie", "w zespole", "w projekcie", "w organizacji", "w przypadku", "dla", "przy"}

func detectAmbiguitySignals(userInput string) (signals []ambiguitySignal, excluded bool) {
	textLower := strings.ToLower(userInput)
	tokens := tokenRE.FindAllString(textLower, -1)

	// Stage 1: heuristic exclude.
	hasYearAndShort := yearRE.MatchString(userInput) && len(tokens) <= 8
	hasDigitAndShort := hasDigitToken(tokens) && len(tokens) <= 6
	if idRE.MatchString(userInput) || acronymRE.MatchString(strings.TrimSpace(userInput)) || hasYearAndShort || hasDigitAndShort {
		return nil, true
	}

	// Stage 2: heuristic signals.
	for entity, desc := range ambiguousEntities {
		if strings.Contains(textLower, entity) && !containsAny(textLower, whWords) {
			signals = append(signals, ambiguitySignal{kind: "entity", term: entity, desc: desc})
		}
	}
	for concept, desc := range abstractConcepts {
		if strings.Contains(textLower, concept) && !containsAny(textLower, contextPhrases) {
			signals = append(signals, ambiguitySignal{kind: "abstract", term: concept, desc: desc})
		}
	}
	for _, tmpl := range howToTemplates {
		if strings.Contains(textLower, tmpl) && !containsAny(textLower, scopeMarkers) {
			signals = append(signals, ambiguitySignal{kind: "scope", term: "brak zakresu", desc: "nie określono kontekstu/zakresu"})
			break
		}
	}

	return signals, false
}

func containsAny(text string, candidates []string) bool {
	for _, c := range candidates {
		if strings.Contains(text, c) {
			return true
		}
	}
	return false
}

func hasDigitToken(tokens []string) bool {
	for _, t := range tokens {
		if isAllDigits(t) {
			return true
		}
	}
	return false
}

var (
	acronymRE = regexp.MustCompile(`^[A-ZĄĆĘŁŃÓŚŻŹ]{2,}$`)
	idRE      = regexp.MustCompile(`[A-Z]{1,5}[-_]?\d+`)
	yearRE    = regexp.MustCompile(`\b(19|20)\d{2}\b`)
	tokenRE   = regexp.MustCompile(`\w+`)
)

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

const clarifyPromptTemplate = `Zapytanie użytkownika jest niejednoznaczne.
TWOJE ZADANIE:
Napisz 2-3 interpretacje W FORMIE ZDAŃ TWIERDZĄCYCH (nie pytań!).
Każda interpretacja powinna zaczynać się od "pytanie dotyczy" lub podobnego sformułowania.

PRZYKŁADY:

Zapytanie: "Co mówi PAN o kryzysie?"
Interpretacje:
pytanie dotyczy Polskiej Akademii Nauk (instytucja)
pytanie dotyczy wypowiedzi konkretnej osoby (pan jako osoba)

Zapytanie: "Jaki ma sens odpowiedzialność?"
Interpretacje:
pytanie dotyczy odpowiedzialności w kontekście moralnym
pytanie dotyczy odpowiedzialności w kontekście praktycznym (biznes, zarządzanie)
pytanie dotyczy odpowiedzialności w kontekście egzystencjalnym (filozofia życia)

ZAPYTANIE: "%s"%s

Napisz tylko interpretacje w formie zdań twierdzących, każda w nowej linii.`

var numberingRE = regexp.MustCompile(`^[\d\-\*.]+\s*`)

// Clarify runs the two-stage ambiguity detector, then (if ambiguous) asks
// the LLM for 2-3 interpretations at temperature 0.3, falling back to
// heuristic-synthesized interpretations if the LLM fails or underdelivers
// (spec §4.8).
func Clarify(ctx context.Context, userQuery, model string, provider llm.Provider) ClarificationResult {
	signals, excluded := detectAmbiguitySignals(userQuery)
	if excluded || len(signals) == 0 {
		return ClarificationResult{NeedsClarification: false}
	}

	signalDesc := ""
	if len(signals) > 0 {
		signalDesc = fmt.Sprintf("\n\nWykryto niejednoznaczność w terminie '%s': %s", signals[0].term, signals[0].desc)
	}

	prompt := fmt.Sprintf(clarifyPromptTemplate, userQuery, signalDesc)
	resp, err := provider.Chat(ctx, llm.ChatRequest{
		Model:       model,
		Messages:    []llm.Message{{Role: "user", Content: prompt}},
		Temperature: 0.3,
	})

	var interpretations []Interpretation
	if err == nil {
		interpretations = parseInterpretationLines(resp.Content)
	}
	if len(interpretations) < 2 {
		interpretations = synthesizeInterpretations(signals)
	}
	if len(interpretations) < 2 {
		interpretations = append(interpretations, Interpretation{
			Label:         fmt.Sprintf("Interpretacja %d", len(interpretations)+1),
			Clarification: "pytanie wymaga doprecyzowania kontekstu",
		})
	}
	if len(interpretations) > 3 {
		interpretations = interpretations[:3]
	}

	return ClarificationResult{
		NeedsClarification: true,
		Interpretations:    interpretations,
		Reason:             fmt.Sprintf("wykryto niejednoznaczność: %s", signals[0].desc),
	}
}

func parseInterpretationLines(content string) []Interpretation {
	var out []Interpretation
	for _, line := range strings.Split(strings.TrimSpace(content), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		line = numberingRE.ReplaceAllString(line, "")
		if len(line) > 10 && !strings.HasPrefix(line, "Interpretacje") {
			out = append(out, Interpretation{
				Label:         fmt.Sprintf("Interpretacja %d", len(out)+1),
				Clarification: line,
			})
		}
	}
	return out
}

func synthesizeInterpretations(signals []ambiguitySignal) []Interpretation {
	var out []Interpretation
	limit := signals
	if len(limit) > 3 {
		limit = limit[:3]
	}

	for _, sig := range limit {
		switch sig.kind {
		case "entity":
			if parts := strings.SplitN(sig.desc, " vs ", 2); len(parts) == 2 {
				out = append(out, newInterpretation(len(out), "pytanie dotyczy "+strings.TrimSpace(parts[0])))
				if len(out) < 3 {
					out = append(out, newInterpretation(len(out), "pytanie dotyczy "+strings.TrimSpace(parts[1])))
				}
			} else {
				out = append(out, newInterpretation(len(out), "pytanie dotyczy "+sig.term))
			}
		case "abstract":
			clean := strings.TrimSpace(strings.ReplaceAll(sig.desc, "?", ""))
			if variants := strings.Split(clean, "/"); len(variants) > 1 {
				for _, v := range variants {
					if len(out) >= 3 {
						break
					}
					out = append(out, newInterpretation(len(out), fmt.Sprintf("pytanie dotyczy %s - %s", sig.term, strings.TrimSpace(v))))
				}
			} else {
				out = append(out, newInterpretation(len(out), "pytanie dotyczy "+clean))
			}
		default:
			out = append(out, newInterpretation(len(out), "pytanie dotyczy "+strings.TrimSpace(strings.ReplaceAll(sig.desc, "?", ""))))
		}
	}
	return out
}

func newInterpretation(n int, clarification string) Interpretation {
	return Interpretation{Label: fmt.Sprintf("Interpretacja %d", n+1), Clarification: clarification}
}
