package domain

import "time"

// EvaluatorFlag marks an advisory guardrail violation on a generated
// answer. Flags never block response delivery.
type EvaluatorFlag string

const (
	FlagNoContext       EvaluatorFlag = "no_context"
	FlagHiddenRefusal   EvaluatorFlag = "hidden_refusal"
	FlagUnverifiedClaim EvaluatorFlag = "unverified_claim"
	FlagSystemLeakage   EvaluatorFlag = "system_leakage"
)

// Source is one evidence reference in the caller-facing response.
type Source struct {
	DocumentID string  `json:"document_id"`
	Section    string  `json:"section,omitempty"`
	Page       int     `json:"page,omitempty"`
	Relevance  float64 `json:"relevance_score"`
}

type TokenUsage struct {
	Input  int `json:"input"`
	Output int `json:"output"`
}

// AnswerMetadata is the metadata block attached to every answer. For
// the streaming variant it is delivered as the terminal payload after
// the token stream completes.
type AnswerMetadata struct {
	Tier               ModelTier       `json:"tier"`
	RoutingScore       int             `json:"routing_score"`
	Tokens             TokenUsage      `json:"tokens"`
	LatencyMs          int64           `json:"latency_ms"`
	RetrievalLatencyMs int64           `json:"retrieval_latency_ms"`
	DenseLatencyMs     int64           `json:"dense_latency_ms"`
	LexicalLatencyMs   int64           `json:"lexical_latency_ms"`
	RerankLatencyMs    int64           `json:"rerank_latency_ms"`
	CandidateCount     int             `json:"candidate_count"`
	MeanSimilarity     float64         `json:"mean_similarity"`
	EvaluatorFlags     []EvaluatorFlag `json:"evaluator_flags"`
	CacheHit           bool            `json:"cache_hit"`
	Degraded           bool            `json:"degraded,omitempty"`
}

// Answer is the assembled response for one query.
type Answer struct {
	Text     string         `json:"text"`
	Sources  []Source       `json:"sources"`
	Metadata AnswerMetadata `json:"metadata"`
}

// CacheEntry is an immutable cached answer. A hit only updates recency
// order, never the stored value.
type CacheEntry struct {
	Answer    Answer
	CreatedAt time.Time
}
