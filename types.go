package hybridrag

import "time"

// Interpretation is a declarative phrase the Clarifier proposes to
// disambiguate a query.
type Interpretation struct {
	Label          string `json:"label"`
	Clarification  string `json:"clarification"`
}

// ClarificationResult is C8's output for a single query.
type ClarificationResult struct {
	NeedsClarification bool             `json:"needs_clarification"`
	Interpretations    []Interpretation `json:"interpretations,omitempty"`
	Reason             string           `json:"reason,omitempty"`
}

// Decomposition is C7's output for a single query.
type Decomposition struct {
	MainQuestion string   `json:"main_question"`
	SubQuestions []string `json:"sub_questions"`
	Type         string   `json:"decomposition_type"`
}

// Stats accumulates counters for one request, surfaced in Result.
type Stats struct {
	InputDocs      int   `json:"input_docs"`
	KeptDocs       int   `json:"kept_docs"`
	RejectedShort  int   `json:"rejected_short"`
	RejectedOverlap int  `json:"rejected_overlap"`
	TokensUsed     int   `json:"tokens_used"`
	Citations      int   `json:"citations"`
	Overlaps       []int `json:"overlaps,omitempty"`
}

// Result is the mutable, single-owner record the Orchestrator builds up over
// the course of one request.
type Result struct {
	OriginalQuery  string                `json:"original_query"`
	Answer         string                `json:"answer"`
	Chunks         []string              `json:"chunks"`
	Decomposition  *Decomposition        `json:"decomposition,omitempty"`
	Clarification  *ClarificationResult  `json:"clarification,omitempty"`
	Stats          Stats                 `json:"stats"`
	RequestID      string                `json:"request_id,omitempty"`
}

// UnresolvedEntry is a query the pipeline could not answer, persisted by C12.
type UnresolvedEntry struct {
	ID          uint64     `json:"id"`
	Query       string     `json:"query"`
	EntitiesHint []string  `json:"entities_hint"`
	YearsHint   []string   `json:"years_hint"`
	PlacesHint  []string   `json:"places_hint"`
	RetryCount  int        `json:"retry_count"`
	Status      string     `json:"status"`
	Timestamp   time.Time  `json:"timestamp"`
	ResolvedAt  *time.Time `json:"resolved_at,omitempty"`
}

const (
	// StatusPending marks an UnresolvedEntry awaiting a retry.
	StatusPending = "pending"
	// StatusResolved marks an UnresolvedEntry a later retry answered.
	StatusResolved = "resolved"
)

// Retry strategy identifiers consumed by the Orchestrator's retry loop.
const (
	StrategyModifyPrompt        = "modify_prompt"
	StrategyChangeInterpretation = "change_interpretation"
	StrategySaveToMemory        = "save_to_memory"
)

// DefaultRetryStrategies is the default ordered strategy list for POST /ask.
func DefaultRetryStrategies() []string {
	return []string{StrategyChangeInterpretation, StrategyModifyPrompt, StrategySaveToMemory}
}
