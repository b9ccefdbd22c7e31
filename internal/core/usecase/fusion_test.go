package usecase

import (
	"math"
	"testing"

	"github.com/smikhalev/support-rag/internal/core/domain"
)

func cand(chunkID, category string) domain.RankedCandidate {
	return domain.RankedCandidate{
		Passage: domain.Passage{
			ChunkID:    chunkID,
			DocumentID: chunkID,
			Category:   category,
			Text:       "text " + chunkID,
		},
	}
}

func TestFuseRRFExactScoreForSharedCandidate(t *testing.T) {
	dense := []domain.RankedCandidate{cand("a", ""), cand("b", "")}
	lexical := []domain.RankedCandidate{cand("c", ""), cand("a", "")}

	fused := fuseRRF(dense, lexical, 60)

	var shared *domain.RankedCandidate
	for i := range fused {
		if fused[i].Passage.ChunkID == "a" {
			shared = &fused[i]
		}
	}
	if shared == nil {
		t.Fatalf("candidate a missing from fused output")
	}

	want := 1.0/61.0 + 1.0/62.0
	if math.Abs(shared.FusedScore-want) > 1e-12 {
		t.Fatalf("expected fused score %.12f, got %.12f", want, shared.FusedScore)
	}
	if fused[0].Passage.ChunkID != "a" {
		t.Fatalf("expected shared candidate ranked first, got %s", fused[0].Passage.ChunkID)
	}
}

func TestFuseRRFSingleListCandidateUsesOnlyThatTerm(t *testing.T) {
	dense := []domain.RankedCandidate{cand("only-dense", "")}
	fused := fuseRRF(dense, nil, 60)
	if len(fused) != 1 {
		t.Fatalf("expected 1 candidate, got %d", len(fused))
	}
	want := 1.0 / 61.0
	if math.Abs(fused[0].FusedScore-want) > 1e-12 {
		t.Fatalf("expected %.12f, got %.12f", want, fused[0].FusedScore)
	}
}

func TestFuseRRFNeverInventsCandidates(t *testing.T) {
	dense := []domain.RankedCandidate{cand("a", "")}
	lexical := []domain.RankedCandidate{cand("b", "")}
	fused := fuseRRF(dense, lexical, 60)
	for _, c := range fused {
		if c.Passage.ChunkID != "a" && c.Passage.ChunkID != "b" {
			t.Fatalf("unexpected candidate %s in fused output", c.Passage.ChunkID)
		}
	}
}

func TestFuseRRFTieBreaksByBestRankThenInsertion(t *testing.T) {
	// Same fused score for both; b has better individual rank via the
	// dense list order.
	dense := []domain.RankedCandidate{cand("b", "")}
	lexical := []domain.RankedCandidate{cand("a", "")}
	fused := fuseRRF(dense, lexical, 60)
	if len(fused) != 2 {
		t.Fatalf("expected 2 candidates, got %d", len(fused))
	}
	// Equal score, equal best rank: insertion order (dense merged
	// first) must win, deterministically.
	if fused[0].Passage.ChunkID != "b" {
		t.Fatalf("expected insertion-order tie-break (b first), got %s", fused[0].Passage.ChunkID)
	}
	again := fuseRRF(dense, lexical, 60)
	if again[0].Passage.ChunkID != fused[0].Passage.ChunkID {
		t.Fatalf("fusion not deterministic for identical inputs")
	}
}

func TestTierBoostReordersAcrossTiers(t *testing.T) {
	community := cand("community", "community")
	official := cand("official", "official")

	fused := []domain.RankedCandidate{community, official}
	fused[0].FusedScore = 0.030
	fused[0].BestRank = 1
	fused[1].FusedScore = 0.028
	fused[1].BestRank = 2

	boosted := applyTierBoost(fused, map[string]float64{"official": 1.2})
	if boosted[0].Passage.ChunkID != "official" {
		t.Fatalf("expected boosted official source first, got %s", boosted[0].Passage.ChunkID)
	}
	wantTop := 0.028 * 1.2
	if math.Abs(boosted[0].TieredScore-wantTop) > 1e-12 {
		t.Fatalf("expected tiered score %.12f, got %.12f", wantTop, boosted[0].TieredScore)
	}
}

func TestTierBoostKeepsSameTierOrder(t *testing.T) {
	first := cand("first", "official")
	second := cand("second", "official")

	fused := []domain.RankedCandidate{first, second}
	fused[0].FusedScore = 0.030
	fused[0].BestRank = 1
	fused[1].FusedScore = 0.028
	fused[1].BestRank = 2

	boosted := applyTierBoost(fused, map[string]float64{"official": 1.5})
	if boosted[0].Passage.ChunkID != "first" || boosted[1].Passage.ChunkID != "second" {
		t.Fatalf("same-tier order changed: %s, %s", boosted[0].Passage.ChunkID, boosted[1].Passage.ChunkID)
	}
}

func TestDedupeByChunkIDKeepsHighestPlacedOccurrence(t *testing.T) {
	a1 := cand("dup", "")
	a1.TieredScore = 0.9
	a2 := cand("dup", "")
	a2.TieredScore = 0.5
	b := cand("other", "")
	b.TieredScore = 0.7

	out := dedupeByChunkID([]domain.RankedCandidate{a1, b, a2})
	if len(out) != 2 {
		t.Fatalf("expected 2 candidates after dedup, got %d", len(out))
	}
	seen := map[string]int{}
	for _, c := range out {
		seen[c.Passage.ChunkID]++
	}
	if seen["dup"] != 1 {
		t.Fatalf("duplicate chunk id survived dedup")
	}
	if out[0].TieredScore != 0.9 {
		t.Fatalf("expected highest-placed occurrence kept, got score %v", out[0].TieredScore)
	}
}
