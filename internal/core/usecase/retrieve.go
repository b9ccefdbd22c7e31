package usecase

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/smikhalev/support-rag/internal/core/domain"
	"github.com/smikhalev/support-rag/internal/core/ports"
)

// RetrievalConfig holds the tuning knobs of the hybrid pipeline. The
// threshold floor, boost magnitudes and confidence gate are empirical
// and deliberately configuration, not constants.
type RetrievalConfig struct {
	TopK            int
	CandidatePool   int
	RRFK            int
	RerankTopM      int
	ThresholdFloor  float64
	StaticThreshold float64
	BypassGate      float64
	TierBoosts      map[string]float64
}

func (c RetrievalConfig) normalize() RetrievalConfig {
	if c.TopK <= 0 {
		c.TopK = 5
	}
	if c.CandidatePool <= c.TopK {
		c.CandidatePool = c.TopK * 4
	}
	if c.RRFK <= 0 {
		c.RRFK = 60
	}
	if c.RerankTopM <= 0 {
		c.RerankTopM = 6
	}
	if c.ThresholdFloor <= 0 {
		c.ThresholdFloor = 0.15
	}
	if c.BypassGate <= 0 {
		c.BypassGate = 0.6
	}
	return c
}

// HybridRetriever produces the deduplicated, confidence-filtered
// evidence list for a query: parallel dense+lexical candidate
// generation, RRF fusion, source-tier boosting, dedup, reranking and
// dynamic thresholding.
type HybridRetriever struct {
	embedder ports.Embedder
	dense    ports.DenseIndex
	lexical  ports.LexicalIndex
	reranker ports.Reranker
	expander *Expander
	cfg      RetrievalConfig
	log      *slog.Logger
}

func NewHybridRetriever(
	embedder ports.Embedder,
	dense ports.DenseIndex,
	lexical ports.LexicalIndex,
	reranker ports.Reranker,
	expander *Expander,
	cfg RetrievalConfig,
	log *slog.Logger,
) *HybridRetriever {
	if log == nil {
		log = slog.Default()
	}
	return &HybridRetriever{
		embedder: embedder,
		dense:    dense,
		lexical:  lexical,
		reranker: reranker,
		expander: expander,
		cfg:      cfg.normalize(),
		log:      log,
	}
}

// Retrieve runs the full hybrid pipeline. A failed source degrades to
// single-source ranking; a failed reranker degrades to the tiered
// ordering with a static threshold; only an embedding failure aborts
// retrieval for the request.
func (r *HybridRetriever) Retrieve(ctx context.Context, question string) (domain.RetrievalResult, error) {
	var (
		wg sync.WaitGroup

		denseCands   []domain.RankedCandidate
		denseErr     error
		denseLatency time.Duration

		lexCands   []domain.RankedCandidate
		lexErr     error
		lexLatency time.Duration
	)

	// The lexical path always runs on the raw query and never waits on
	// expansion; only the dense branch is suspended by HyDE.
	wg.Add(2)
	go func() {
		defer wg.Done()
		start := time.Now()
		denseCands, denseErr = r.denseSearch(ctx, question)
		denseLatency = time.Since(start)
	}()
	go func() {
		defer wg.Done()
		start := time.Now()
		lexCands, lexErr = r.lexical.Search(ctx, question, r.cfg.CandidatePool)
		lexLatency = time.Since(start)
	}()
	wg.Wait()

	if denseErr != nil && domain.IsKind(denseErr, domain.ErrEmbedding) {
		return domain.RetrievalResult{}, denseErr
	}

	degraded := false
	if denseErr != nil {
		r.log.Warn("dense_retrieval_failed", "error", denseErr)
		denseCands = nil
		degraded = true
	}
	if lexErr != nil {
		r.log.Warn("lexical_retrieval_failed", "error", lexErr)
		lexCands = nil
		degraded = true
	}

	result := domain.RetrievalResult{
		Degraded:       degraded,
		DenseLatency:   denseLatency,
		LexicalLatency: lexLatency,
	}
	if len(denseCands) == 0 && len(lexCands) == 0 {
		return result, nil
	}

	fused := fuseRRF(denseCands, lexCands, r.cfg.RRFK)
	tiered := applyTierBoost(fused, r.cfg.TierBoosts)
	deduped := dedupeByChunkID(tiered)
	result.CandidateCount = len(deduped)

	surfaced := deduped
	if r.reranker != nil && len(deduped) > 1 && deduped[0].DenseScore <= r.cfg.BypassGate {
		rerankStart := time.Now()
		reranked, err := rerankCandidates(ctx, r.reranker, question, deduped, r.cfg.RerankTopM)
		result.RerankLatency = time.Since(rerankStart)
		if err != nil {
			r.log.Warn("rerank_failed", "error", err)
			result.Degraded = true
			surfaced = applyStaticThreshold(deduped, r.cfg.StaticThreshold)
		} else {
			head := r.cfg.RerankTopM
			if head > len(reranked) {
				head = len(reranked)
			}
			// The threshold judges rerank scores, so it only applies
			// to the reranked head; the tiered tail follows unchanged.
			surfaced = applyDynamicThreshold(reranked[:head], r.cfg.ThresholdFloor)
			surfaced = append(surfaced, reranked[head:]...)
			result.Reranked = true
		}
	} else {
		surfaced = applyStaticThreshold(deduped, r.cfg.StaticThreshold)
	}

	result.Candidates = trimCandidates(surfaced, r.cfg.TopK)
	result.MeanSimilarity = meanDenseSimilarity(result.Candidates)
	return result, nil
}

func (r *HybridRetriever) denseSearch(ctx context.Context, question string) ([]domain.RankedCandidate, error) {
	embedText := question
	if expansion := r.expander.Expand(ctx, question); expansion != "" {
		embedText = question + " " + expansion
	}

	vector, err := r.embedder.EmbedQuery(ctx, strings.TrimSpace(embedText))
	if err != nil {
		return nil, domain.WrapError(domain.ErrEmbedding, "embed query", err)
	}
	return r.dense.Search(ctx, vector, r.cfg.CandidatePool)
}

func meanDenseSimilarity(cands []domain.RankedCandidate) float64 {
	if len(cands) == 0 {
		return 0
	}
	sum := 0.0
	for _, c := range cands {
		sum += c.DenseScore
	}
	return sum / float64(len(cands))
}
