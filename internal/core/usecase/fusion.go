package usecase

import (
	"sort"

	"github.com/smikhalev/support-rag/internal/core/domain"
)

// fuseRRF combines the dense and lexical rankings with reciprocal rank
// fusion: each candidate scores the sum of 1/(k+rank) over every list
// it appears in, ranks 1-indexed. Ties break by the candidate's best
// individual rank across lists, then by first-seen insertion order.
func fuseRRF(dense, lexical []domain.RankedCandidate, rrfK int) []domain.RankedCandidate {
	if rrfK <= 0 {
		rrfK = 60
	}

	acc := make(map[string]*domain.RankedCandidate, len(dense)+len(lexical))
	order := make([]string, 0, len(dense)+len(lexical))

	merge := func(list []domain.RankedCandidate, lexicalList bool) {
		for i, cand := range list {
			rank := i + 1
			key := cand.Passage.ChunkID
			existing, ok := acc[key]
			if !ok {
				c := cand
				c.BestRank = rank
				acc[key] = &c
				order = append(order, key)
				existing = acc[key]
			} else {
				if lexicalList {
					existing.LexicalScore = cand.LexicalScore
				} else {
					existing.DenseScore = cand.DenseScore
				}
				if cand.Passage.Text != "" && existing.Passage.Text == "" {
					existing.Passage = cand.Passage
				}
				if rank < existing.BestRank {
					existing.BestRank = rank
				}
			}
			existing.FusedScore += 1.0 / float64(rrfK+rank)
		}
	}

	merge(dense, false)
	merge(lexical, true)

	out := make([]domain.RankedCandidate, 0, len(order))
	for _, key := range order {
		out = append(out, *acc[key])
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].FusedScore != out[j].FusedScore {
			return out[i].FusedScore > out[j].FusedScore
		}
		return out[i].BestRank < out[j].BestRank
	})
	return out
}

// applyTierBoost multiplies each fused score by the boost configured
// for the candidate's source category, 1.0 when the category is not in
// the table. Runs after fusion and before reranking, so authority can
// outweigh small similarity gaps but never the reranker.
func applyTierBoost(cands []domain.RankedCandidate, boosts map[string]float64) []domain.RankedCandidate {
	out := make([]domain.RankedCandidate, len(cands))
	copy(out, cands)
	for i := range out {
		boost := 1.0
		if b, ok := boosts[out[i].Passage.Category]; ok && b > 0 {
			boost = b
		}
		out[i].TieredScore = out[i].FusedScore * boost
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].TieredScore != out[j].TieredScore {
			return out[i].TieredScore > out[j].TieredScore
		}
		return out[i].BestRank < out[j].BestRank
	})
	return out
}

// dedupeByChunkID drops repeated chunk ids, keeping the highest-placed
// occurrence. Fusion already merges the common case; this guards
// against duplicate ids inside a single source list.
func dedupeByChunkID(cands []domain.RankedCandidate) []domain.RankedCandidate {
	seen := make(map[string]struct{}, len(cands))
	out := cands[:0:0]
	for _, c := range cands {
		if _, ok := seen[c.Passage.ChunkID]; ok {
			continue
		}
		seen[c.Passage.ChunkID] = struct{}{}
		out = append(out, c)
	}
	return out
}

func trimCandidates(cands []domain.RankedCandidate, limit int) []domain.RankedCandidate {
	if limit <= 0 || len(cands) <= limit {
		return cands
	}
	return cands[:limit]
}
