package hybridrag

import "errors"

var (
	// ErrIndexUnavailable is returned when a lexical or vector index adapter
	// cannot be reached.
	ErrIndexUnavailable = errors.New("hybridrag: index unavailable")

	// ErrEmbeddingFailed is returned when the embedding model fails to
	// produce a vector for a query.
	ErrEmbeddingFailed = errors.New("hybridrag: embedding generation failed")

	// ErrLLMUnavailable is returned when the chat model is unreachable.
	ErrLLMUnavailable = errors.New("hybridrag: LLM provider unavailable")

	// ErrMalformedModelOutput is returned when a structured LLM response
	// (decomposition, date extraction, clarification) cannot be parsed.
	ErrMalformedModelOutput = errors.New("hybridrag: malformed model output")

	// ErrValidationFailed is returned when an answer fails citation or
	// statistics validation and no retry strategy remains.
	ErrValidationFailed = errors.New("hybridrag: answer failed validation")

	// ErrEntryNotFound is returned when an unresolved-query id does not exist.
	ErrEntryNotFound = errors.New("hybridrag: unresolved query not found")

	// ErrInvalidConfig is returned for invalid configuration values.
	ErrInvalidConfig = errors.New("hybridrag: invalid configuration")

	// ErrNoAnswer is returned when the pipeline could not produce any answer
	// text at all (as opposed to an answer that failed validation).
	ErrNoAnswer = errors.New("hybridrag: no answer produced")
)
