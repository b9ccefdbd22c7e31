package domain

import "time"

// QueryLogEntry is the telemetry record published after every answered
// query. The API publishes it fire-and-forget; the worker persists it.
type QueryLogEntry struct {
	ID                 string          `json:"id"`
	Question           string          `json:"question"`
	Tier               ModelTier       `json:"tier"`
	RoutingScore       int             `json:"routing_score"`
	TokensInput        int             `json:"tokens_input"`
	TokensOutput       int             `json:"tokens_output"`
	LatencyMs          int64           `json:"latency_ms"`
	RetrievalLatencyMs int64           `json:"retrieval_latency_ms"`
	CandidateCount     int             `json:"candidate_count"`
	MeanSimilarity     float64         `json:"mean_similarity"`
	EvaluatorFlags     []EvaluatorFlag `json:"evaluator_flags"`
	CacheHit           bool            `json:"cache_hit"`
	CreatedAt          time.Time       `json:"created_at"`
}
