package usecase

import (
	"testing"

	"github.com/smikhalev/support-rag/internal/core/domain"
)

func TestRouteEmptyQueryIsFast(t *testing.T) {
	r := NewRouter(15, 2)
	decision := r.Route("")
	if decision.Score != 0 {
		t.Fatalf("expected score 0 for empty query, got %d", decision.Score)
	}
	if decision.Tier != domain.TierFast {
		t.Fatalf("expected fast tier, got %s", decision.Tier)
	}
}

func TestRouteIsDeterministic(t *testing.T) {
	r := NewRouter(15, 2)
	question := "Why does the webhook integration fail after the billing plan change?"
	first := r.Route(question)
	for i := 0; i < 10; i++ {
		if got := r.Route(question); got != first {
			t.Fatalf("route changed between calls: %+v vs %+v", first, got)
		}
	}
}

func TestRouteLongQueryWithoutKeywordsScoresLengthPointsOnly(t *testing.T) {
	r := NewRouter(15, 2)
	question := "please tell me about the available workspace options and also about " +
		"the included storage limits along with the seat counts per plan today"
	decision := r.Route(question)
	if decision.Score != lengthPoints {
		t.Fatalf("expected exactly %d length points, got %d", lengthPoints, decision.Score)
	}
	if decision.Tier != domain.TierFast {
		t.Fatalf("expected fast tier at score %d, got %s", decision.Score, decision.Tier)
	}
}

func TestRouteCategoryCountedOnce(t *testing.T) {
	r := NewRouter(15, 2)
	single := r.Route("why is this")
	repeated := r.Route("why why why explain compare")
	if single.Score != repeated.Score {
		t.Fatalf("repeated reasoning keywords changed score: %d vs %d", single.Score, repeated.Score)
	}
}

func TestRouteCategoriesSum(t *testing.T) {
	r := NewRouter(15, 2)
	decision := r.Route("explain why the export fails with an error, this is urgent")
	// reasoning (2) + troubleshooting (2) + urgency (1)
	if decision.Score != 5 {
		t.Fatalf("expected summed score 5, got %d", decision.Score)
	}
	if decision.Tier != domain.TierDeep {
		t.Fatalf("expected deep tier, got %s", decision.Tier)
	}
}

func TestRouteThresholdSelectsDeep(t *testing.T) {
	r := NewRouter(15, 2)
	decision := r.Route("compare the enterprise and team plans")
	if decision.Score < 2 {
		t.Fatalf("expected score >= 2, got %d", decision.Score)
	}
	if decision.Tier != domain.TierDeep {
		t.Fatalf("expected deep tier, got %s", decision.Tier)
	}
}
