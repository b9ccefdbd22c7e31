package ports

import (
	"context"

	"github.com/smikhalev/support-rag/internal/core/domain"
)

// DenseIndex performs nearest-neighbor search over precomputed passage
// embeddings. Implementations are immutable after load and safe for
// concurrent use without locking.
type DenseIndex interface {
	Search(ctx context.Context, queryVector []float32, topN int) ([]domain.RankedCandidate, error)
}

// LexicalIndex performs term-frequency ranking over the same corpus.
type LexicalIndex interface {
	Search(ctx context.Context, queryText string, topN int) ([]domain.RankedCandidate, error)
}

// Embedder maps text to fixed-length vectors. Deterministic for
// identical text and model version.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Reranker scores (query, passage) pairs jointly. Stateless.
type Reranker interface {
	Rerank(ctx context.Context, query string, passages []string) ([]float64, error)
}

// Completion is the black-box generation service. Complete returns the
// full answer text plus token usage; CompleteStream delivers tokens
// through onDelta and returns the final usage when the stream ends.
type Completion interface {
	Complete(ctx context.Context, prompt string, tier domain.ModelTier) (string, domain.TokenUsage, error)
	CompleteStream(ctx context.Context, prompt string, tier domain.ModelTier, onDelta func(string) error) (domain.TokenUsage, error)
}

// AnswerCache memoizes final answers by normalized query key.
type AnswerCache interface {
	Get(key string) (domain.CacheEntry, bool)
	Put(key string, entry domain.CacheEntry)
}

// QueryLogQueue publishes/consumes query telemetry events.
type QueryLogQueue interface {
	PublishQueryLog(ctx context.Context, entry domain.QueryLogEntry) error
	SubscribeQueryLog(ctx context.Context, handler func(context.Context, domain.QueryLogEntry) error) error
}

// QueryLogStore persists query telemetry.
type QueryLogStore interface {
	Insert(ctx context.Context, entry domain.QueryLogEntry) error
}
