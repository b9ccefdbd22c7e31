package domain

import "time"

// Passage is the immutable unit of retrievable text. Embeddings and term
// statistics live inside the index artifact, not on this struct.
type Passage struct {
	ChunkID    string `json:"chunk_id"`
	DocumentID string `json:"document_id"`
	Section    string `json:"section,omitempty"`
	Page       int    `json:"page,omitempty"`
	Category   string `json:"category,omitempty"`
	Text       string `json:"text"`
}

// RankedCandidate carries a passage through the retrieval stages. Each
// stage fills its own score field; BestRank is the candidate's best
// 1-indexed rank across the source lists, kept for deterministic
// tie-breaking after fusion.
type RankedCandidate struct {
	Passage Passage

	DenseScore   float64
	LexicalScore float64
	FusedScore   float64
	TieredScore  float64
	RerankScore  float64

	BestRank int
}

// RetrievalResult is the deduplicated, thresholded evidence set handed
// to generation, plus the aggregate metrics surfaced in response
// metadata. An empty Candidates slice is a valid result, not an error.
type RetrievalResult struct {
	Candidates     []RankedCandidate
	CandidateCount int
	MeanSimilarity float64
	Reranked       bool
	Degraded       bool

	DenseLatency   time.Duration
	LexicalLatency time.Duration
	RerankLatency  time.Duration
}

// ModelTier selects the generation model class.
type ModelTier string

const (
	TierFast ModelTier = "fast"
	TierDeep ModelTier = "deep"
)

// RouteDecision is the router output: a tier plus the additive score
// that produced it.
type RouteDecision struct {
	Tier  ModelTier `json:"tier"`
	Score int       `json:"score"`
}

// ChatTurn is one prior turn of the caller-owned conversation window.
type ChatTurn struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

