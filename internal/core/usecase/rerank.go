package usecase

import (
	"context"
	"sort"

	"github.com/smikhalev/support-rag/internal/core/domain"
	"github.com/smikhalev/support-rag/internal/core/ports"
)

// rerankCandidates sends the top topM tiered candidates to the joint
// query-passage scorer and reorders that head by rerank score. The
// tail keeps its tiered order. A reranker error is returned to the
// caller, which degrades to the fused/tiered ordering.
func rerankCandidates(
	ctx context.Context,
	reranker ports.Reranker,
	question string,
	cands []domain.RankedCandidate,
	topM int,
) ([]domain.RankedCandidate, error) {
	if len(cands) == 0 {
		return cands, nil
	}
	if topM <= 0 || topM > len(cands) {
		topM = len(cands)
	}

	head := make([]domain.RankedCandidate, topM)
	copy(head, cands[:topM])

	passages := make([]string, topM)
	for i, c := range head {
		passages[i] = c.Passage.Text
	}

	scores, err := reranker.Rerank(ctx, question, passages)
	if err != nil {
		return nil, err
	}
	for i := range head {
		if i < len(scores) {
			head[i].RerankScore = scores[i]
		}
	}

	sort.SliceStable(head, func(i, j int) bool {
		if head[i].RerankScore != head[j].RerankScore {
			return head[i].RerankScore > head[j].RerankScore
		}
		return head[i].BestRank < head[j].BestRank
	})

	if topM == len(cands) {
		return head, nil
	}
	out := make([]domain.RankedCandidate, 0, len(cands))
	out = append(out, head...)
	out = append(out, cands[topM:]...)
	return out, nil
}
