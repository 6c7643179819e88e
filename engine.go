package hybridrag

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/brunobiangulo/hybridrag/internal/chunker"
	"github.com/brunobiangulo/hybridrag/internal/detector"
	"github.com/brunobiangulo/hybridrag/internal/index"
	"github.com/brunobiangulo/hybridrag/internal/llm"
	"github.com/brunobiangulo/hybridrag/internal/memory"
	"github.com/brunobiangulo/hybridrag/internal/metadata"
	"github.com/brunobiangulo/hybridrag/internal/query"
	"github.com/brunobiangulo/hybridrag/internal/reasoning"
	"github.com/brunobiangulo/hybridrag/internal/retrieval"
)

// maxTokensLen bounds the cumulative word count of chunks handed to ASK
// (spec §4.11).
const maxTokensLen = 250

// NLPPipeline is everything the Orchestrator needs from the NLP adapter:
// named entity recognition (C1), sentence splitting (C5), and the
// lemmatized lexical query it sends to the lexical index (C3).
type NLPPipeline interface {
	query.NERProvider
	chunker.SentenceSplitter
	Lemmatize(ctx context.Context, text string) ([]string, error)
	LexicalQuery(lemmas []string) string
}

// Engine wires the Query Analyzer, Weight Chooser, Clarifier, Decomposer,
// Fusion, Chunker, Filter, Prompt Builder, and Citation Validator into the
// retry-driven request pipeline described as the Orchestrator (C11).
type Engine struct {
	lexical index.Lexical
	vector  index.Vector
	llm     llm.Provider
	nlp     NLPPipeline
	memory  *memory.Store
	model   string

	filterCfg reasoning.FilterConfig
	chunkCfg  chunker.Config
	log       zerolog.Logger
}

// Option configures an Engine at construction.
type Option func(*Engine)

// WithFilterConfig overrides the Filter's min_tokens/max_docs thresholds.
func WithFilterConfig(cfg reasoning.FilterConfig) Option {
	return func(e *Engine) { e.filterCfg = cfg }
}

// WithChunkConfig overrides the Chunker's max_tokens/overlap thresholds.
func WithChunkConfig(cfg chunker.Config) Option {
	return func(e *Engine) { e.chunkCfg = cfg }
}

// WithLogger attaches a logger; the zero value is a no-op logger.
func WithLogger(log zerolog.Logger) Option {
	return func(e *Engine) { e.log = log }
}

// NewEngine builds an Engine from its collaborators. nlp backs both the
// query analyzer's NER and the chunker's sentence splitting.
func NewEngine(lexical index.Lexical, vector index.Vector, provider llm.Provider, nlp NLPPipeline, mem *memory.Store, model string, opts ...Option) *Engine {
	e := &Engine{
		lexical:   lexical,
		vector:    vector,
		llm:       provider,
		nlp:       nlp,
		memory:    mem,
		model:     model,
		filterCfg: reasoning.DefaultFilterConfig(),
		chunkCfg:  chunker.DefaultConfig(),
		log:       zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Memory exposes the unresolved-query store for the HTTP layer's
// /pending, /pending/{id}, and /stats handlers.
func (e *Engine) Memory() *memory.Store {
	return e.memory
}

// Ask runs the full ANALYZE → CLARIFY → DECOMPOSE → RETRIEVE → ASK →
// VALIDATE → RETRY_POLICY state machine for a fresh query. A nil or empty
// strategies list uses DefaultRetryStrategies. If every strategy is
// exhausted without a valid answer, the query is persisted to C12.
func (e *Engine) Ask(ctx context.Context, originalQuery string, strategies []string) (*Result, error) {
	if len(strategies) == 0 {
		strategies = DefaultRetryStrategies()
	}
	result, valid, features, err := e.process(ctx, originalQuery, strategies)
	if err != nil {
		return nil, err
	}
	if !valid {
		e.persistUnresolved(ctx, originalQuery, features)
	}
	return result, nil
}

// Retry re-runs the state machine for an already-pending entry, bumping
// its retry_count and marking it resolved on success. It never re-persists
// the entry: a still-failing retry simply leaves it pending.
func (e *Engine) Retry(ctx context.Context, id uint64) (*Result, error) {
	entry, ok := e.memory.ByID(id)
	if !ok {
		return nil, ErrEntryNotFound
	}
	if _, err := e.memory.IncrementRetry(id); err != nil {
		return nil, fmt.Errorf("hybridrag: increment retry count: %w", err)
	}

	result, valid, _, err := e.process(ctx, entry.Query, []string{StrategyModifyPrompt, StrategyChangeInterpretation})
	if err != nil {
		return nil, err
	}
	if valid {
		if _, err := e.memory.MarkResolved(id); err != nil {
			return nil, fmt.Errorf("hybridrag: mark resolved: %w", err)
		}
	}
	return result, nil
}

// RetryAll drives Retry for every pending entry the change detector reports
// at least one newly ingested matching document for, returning every
// result produced (spec §9: the source never returns this accumulated
// list; the orchestrator here does).
func (e *Engine) RetryAll(ctx context.Context, det *detector.Detector) ([]*Result, error) {
	newDocs, err := det.GetNewDocuments(ctx)
	if err != nil {
		return nil, fmt.Errorf("hybridrag: retry_all: scan new documents: %w", err)
	}
	if len(newDocs) == 0 {
		return nil, nil
	}

	var results []*Result
	for _, entry := range e.memory.Pending() {
		hints := detector.QueryHints{Entities: entry.EntitiesHint, Places: entry.PlacesHint, Years: entry.YearsHint}
		matched, _ := detector.MatchQueryWithNewDocs(hints, newDocs)
		if !matched {
			continue
		}
		result, err := e.Retry(ctx, entry.ID)
		if err != nil {
			e.log.Warn().Err(err).Uint64("id", entry.ID).Msg("retry_all: retry failed")
			continue
		}
		results = append(results, result)
	}
	return results, nil
}

// retryAction is RETRY_POLICY's verdict for the current strategy list.
type retryAction int

const (
	actionReturnUnresolved retryAction = iota
	actionReaskSameRetrieval
	actionReRetrieve
)

// nextRetryAction consumes strategies from the front of the list. A
// strategy stays at the front and is retried as its counter advances
// (modify_prompt's prompt-core index, change_interpretation's
// interpretation index) until exhausted, at which point it is dropped and
// the next strategy is considered — without spending an extra LLM call
// (spec §4.11).
func nextRetryAction(strategies *[]string, coreIdx *int, interpIdx *int, interpretationCount int) retryAction {
	for {
		if len(*strategies) == 0 {
			return actionReturnUnresolved
		}
		switch (*strategies)[0] {
		case StrategyModifyPrompt:
			*coreIdx++
			if *coreIdx >= len(reasoning.PromptCores) {
				*strategies = (*strategies)[1:]
				continue
			}
			return actionReaskSameRetrieval
		case StrategyChangeInterpretation:
			*interpIdx++
			if *interpIdx >= interpretationCount {
				*strategies = (*strategies)[1:]
				continue
			}
			return actionReRetrieve
		case StrategySaveToMemory:
			return actionReturnUnresolved
		default:
			*strategies = (*strategies)[1:]
		}
	}
}

// process runs the state machine to termination without touching C12
// itself; it reports whether the final answer validated so Ask and Retry
// can each decide what an invalid result means for memory.
func (e *Engine) process(ctx context.Context, originalQuery string, strategies []string) (*Result, bool, query.Features, error) {
	features, err := query.Analyze(ctx, originalQuery, e.nlp)
	if err != nil {
		return nil, false, query.Features{}, fmt.Errorf("hybridrag: analyze query: %w", err)
	}
	weights := query.ChooseWeights(features)

	clarification := reasoning.Clarify(ctx, originalQuery, e.model, e.llm)

	result := &Result{OriginalQuery: originalQuery}
	if clarification.NeedsClarification {
		result.Clarification = toClarificationResult(clarification)
	}

	// Local copy: the caller's strategies slice is never mutated (spec §9,
	// "retry strategy mutation").
	strategies = append([]string(nil), strategies...)
	coreIdx := 0
	interpIdx := -1
	activeQuery := originalQuery

	decomp, chunks, stats, err := e.retrieveAndDecompose(ctx, activeQuery, features, weights)
	if err != nil {
		return nil, false, features, fmt.Errorf("hybridrag: retrieve: %w", err)
	}
	applyRetrievalStats(result, decomp, chunks, stats)

	for {
		resp, askErr := reasoning.AskModel(ctx, e.llm, chunks, reasoning.PromptCores, coreIdx, activeQuery, e.model)
		answer := ""
		if askErr != nil {
			e.log.Warn().Err(askErr).Msg("ask: llm chat failed")
		} else {
			answer = resp.Content
			result.Stats.TokensUsed += resp.TotalTokens
		}
		result.Answer = answer

		citations := reasoning.ExtractCitations(answer)
		result.Stats.Citations = len(citations)

		valid := askErr == nil &&
			reasoning.ValidateAnswer(answer, chunks) &&
			!memory.ShouldSaveAsUnresolved(answer, len(chunks), len(citations))
		if valid {
			return result, true, features, nil
		}

		switch nextRetryAction(&strategies, &coreIdx, &interpIdx, len(clarification.Interpretations)) {
		case actionReturnUnresolved:
			return result, false, features, nil
		case actionReaskSameRetrieval:
			continue
		case actionReRetrieve:
			activeQuery = originalQuery + " " + clarification.Interpretations[interpIdx].Clarification
			decomp, chunks, stats, err = e.retrieveAndDecompose(ctx, activeQuery, features, weights)
			if err != nil {
				return nil, false, features, fmt.Errorf("hybridrag: retrieve: %w", err)
			}
			applyRetrievalStats(result, decomp, chunks, stats)
		}
	}
}

func applyRetrievalStats(result *Result, decomp reasoning.Decomposition, chunks []string, stats reasoning.FilterStats) {
	result.Decomposition = toDecomposition(decomp)
	result.Chunks = chunks
	result.Stats.InputDocs = stats.InputDocs
	result.Stats.KeptDocs = stats.KeptDocs
	result.Stats.RejectedShort = stats.RejectedShort
	result.Stats.RejectedOverlap = stats.RejectedOverlap
	result.Stats.Overlaps = stats.Overlaps
}

func (e *Engine) retrieveAndDecompose(ctx context.Context, activeQuery string, f query.Features, w query.Weights) (reasoning.Decomposition, []string, reasoning.FilterStats, error) {
	decomp := reasoning.Decompose(ctx, activeQuery, f, e.model, e.llm)
	chunks, stats, err := e.retrieve(ctx, activeQuery, decomp.SubQuestions, f, w)
	return decomp, chunks, stats, err
}

// retrieve embeds the query and every sub-question, runs C3+C4 for each in
// parallel, unions the chunked results, keeps the best score per distinct
// chunk text, sorts descending, filters via C6, then greedily picks
// chunks until their cumulative word count would exceed maxTokensLen
// (spec §4.11).
func (e *Engine) retrieve(ctx context.Context, mainQuery string, subQuestions []string, f query.Features, w query.Weights) ([]string, reasoning.FilterStats, error) {
	queries := make([]string, 0, 1+len(subQuestions))
	queries = append(queries, mainQuery)
	queries = append(queries, subQuestions...)

	// perQuery[i] holds query i's chunks; indexing (not append order) keeps
	// the union deterministic — sub-question 0 is always the original
	// query, then decomposition order — regardless of which goroutine
	// finishes first.
	perQuery := make([][]chunker.Chunk, len(queries))
	g, gctx := errgroup.WithContext(ctx)
	for i, q := range queries {
		i, q := i, q
		g.Go(func() error {
			chunks, err := e.retrieveOne(gctx, q, w)
			if err != nil {
				return err
			}
			perQuery[i] = chunks
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, reasoning.FilterStats{}, err
	}

	var all []chunker.Chunk
	for _, chunks := range perQuery {
		all = append(all, chunks...)
	}
	merged := chunker.MergeByText(all)
	sort.SliceStable(merged, func(i, j int) bool { return merged[i].Score > merged[j].Score })

	texts := make([]string, len(merged))
	for i, c := range merged {
		texts[i] = c.Text
	}

	queryVec, err := e.embedOne(ctx, mainQuery)
	if err != nil {
		return nil, reasoning.FilterStats{}, err
	}

	filtered, stats, err := reasoning.FilterRetrievedWithStats(ctx, texts, mainQuery, queryVec, f, e.llm, e.filterCfg)
	if err != nil {
		return nil, stats, fmt.Errorf("filter retrieved chunks: %w", err)
	}

	picked := make([]string, 0, len(filtered))
	wordTotal := 0
	for _, c := range filtered {
		cw := len(strings.Fields(c))
		if len(picked) > 0 && wordTotal+cw > maxTokensLen {
			break
		}
		picked = append(picked, c)
		wordTotal += cw
	}

	return picked, stats, nil
}

// retrieveOne embeds q, searches both index sides, fuses them with w, and
// chunks every resulting document.
func (e *Engine) retrieveOne(ctx context.Context, q string, w query.Weights) ([]chunker.Chunk, error) {
	vec, err := e.embedOne(ctx, q)
	if err != nil {
		return nil, err
	}

	lexQuery := q
	if lemmas, lemErr := e.nlp.Lemmatize(ctx, q); lemErr == nil {
		lexQuery = e.nlp.LexicalQuery(lemmas)
	} else {
		e.log.Warn().Err(lemErr).Str("query", q).Msg("retrieve: lemmatize failed, using raw query for lexical search")
	}

	lexHits, vecHits := e.searchBothSides(ctx, lexQuery, vec)
	fused := retrieval.FuseWeighted(lexHits, vecHits, w.Lexical, w.Dense, retrieval.DefaultK)

	var chunks []chunker.Chunk
	for _, fz := range fused {
		cs, err := chunker.BySentence(ctx, fz.Text, fz.Score, e.nlp, e.chunkCfg)
		if err != nil {
			e.log.Warn().Err(err).Msg("retrieve: chunking failed")
			continue
		}
		chunks = append(chunks, cs...)
	}
	return chunks, nil
}

// searchBothSides tolerates either side failing: a transport error yields
// an empty hit list for that side and the pipeline continues with
// whichever side succeeded (spec §4.3).
func (e *Engine) searchBothSides(ctx context.Context, lexQuery string, vec []float32) ([]index.Hit, []index.Hit) {
	lexHits, err := e.lexical.Search(ctx, lexQuery)
	if err != nil {
		e.log.Warn().Err(err).Msg("retrieve: lexical search failed")
		lexHits = nil
	}
	vecHits, err := e.vector.Search(ctx, vec)
	if err != nil {
		e.log.Warn().Err(err).Msg("retrieve: vector search failed")
		vecHits = nil
	}
	return lexHits, vecHits
}

func (e *Engine) embedOne(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.llm.Embed(ctx, []string{text})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
	}
	if len(vecs) == 0 {
		return nil, ErrEmbeddingFailed
	}
	return vecs[0], nil
}

// persistUnresolved computes C14's metadata hints for originalQuery and
// saves it to C12. Failures are logged, not returned: a failed save must
// not turn an already-terminal request into an error response.
func (e *Engine) persistUnresolved(ctx context.Context, originalQuery string, f query.Features) {
	hints := metadata.ExtractFromQuery(ctx, originalQuery, f, e.llm, e.model)
	id, err := e.memory.Add(originalQuery, memory.Hints{Entities: hints.Entities, Places: hints.Places, Years: hints.Years})
	if err != nil {
		e.log.Error().Err(err).Str("query", originalQuery).Msg("persist unresolved query failed")
		return
	}
	e.log.Info().Uint64("id", id).Str("query", originalQuery).Msg("persisted unresolved query")
}

func toClarificationResult(c reasoning.ClarificationResult) *ClarificationResult {
	out := &ClarificationResult{NeedsClarification: c.NeedsClarification, Reason: c.Reason}
	for _, i := range c.Interpretations {
		out.Interpretations = append(out.Interpretations, Interpretation{Label: i.Label, Clarification: i.Clarification})
	}
	return out
}

func toDecomposition(d reasoning.Decomposition) *Decomposition {
	return &Decomposition{MainQuestion: d.MainQuestion, SubQuestions: d.SubQuestions, Type: d.Type}
}
