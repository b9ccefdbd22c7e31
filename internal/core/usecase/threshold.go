package usecase

import (
	"math"

	"github.com/smikhalev/support-rag/internal/core/domain"
)

// applyDynamicThreshold drops reranked candidates scoring below
// max(mean − stddev, floor). The floor keeps a flat or uniformly low
// score distribution from admitting clearly irrelevant passages.
// Dropping everything is a valid outcome.
func applyDynamicThreshold(cands []domain.RankedCandidate, floor float64) []domain.RankedCandidate {
	if len(cands) == 0 {
		return cands
	}

	mean, std := meanStd(rerankScores(cands))
	threshold := math.Max(mean-std, floor)

	out := cands[:0:0]
	for _, c := range cands {
		if c.RerankScore >= threshold {
			out = append(out, c)
		}
	}
	return out
}

// applyStaticThreshold is the coarser fallback used when the reranker
// was skipped or unavailable: keep candidates whose tiered score
// reaches a fixed minimum.
func applyStaticThreshold(cands []domain.RankedCandidate, min float64) []domain.RankedCandidate {
	if min <= 0 {
		return cands
	}
	out := cands[:0:0]
	for _, c := range cands {
		if c.TieredScore >= min {
			out = append(out, c)
		}
	}
	return out
}

func rerankScores(cands []domain.RankedCandidate) []float64 {
	scores := make([]float64, len(cands))
	for i, c := range cands {
		scores[i] = c.RerankScore
	}
	return scores
}

func meanStd(values []float64) (float64, float64) {
	if len(values) == 0 {
		return 0, 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(len(values))

	variance := 0.0
	for _, v := range values {
		d := v - mean
		variance += d * d
	}
	variance /= float64(len(values))
	return mean, math.Sqrt(variance)
}
