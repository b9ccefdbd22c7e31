package usecase

import (
	"strings"
	"unicode"

	"github.com/smikhalev/support-rag/internal/core/domain"
)

// Keyword vocabularies for the additive router score. Each category
// contributes its points at most once no matter how many of its
// keywords match.
var (
	reasoningKeywords       = []string{"why", "compare", "evaluate", "difference", "explain", "reason"}
	troubleshootingKeywords = []string{"fail", "error", "broken", "bug", "issue", "crash"}
	troubleshootingPhrases  = []string{"doesn't work", "not working"}
	proceduralPhrases       = []string{"how to", "steps", "process", "walk me through", "guide", "tutorial"}
	urgencyKeywords         = []string{"frustrated", "complaint", "urgent", "asap", "angry", "terrible", "worst"}
)

const (
	reasoningPoints       = 2
	troubleshootingPoints = 2
	proceduralPoints      = 2
	urgencyPoints         = 1
	lengthPoints          = 1
	multiQuestionPoints   = 1
)

// Router classifies query complexity and picks the generation tier.
// Pure and deterministic: no I/O, no model calls, no shared state.
type Router struct {
	lengthThreshold int
	scoreThreshold  int
}

func NewRouter(lengthThreshold, scoreThreshold int) *Router {
	if lengthThreshold <= 0 {
		lengthThreshold = 15
	}
	if scoreThreshold <= 0 {
		scoreThreshold = 2
	}
	return &Router{
		lengthThreshold: lengthThreshold,
		scoreThreshold:  scoreThreshold,
	}
}

func (r *Router) Route(question string) domain.RouteDecision {
	lower := strings.ToLower(question)
	words := strings.Fields(lower)
	tokens := toTokenSet(lower)

	score := 0
	if len(words) > r.lengthThreshold {
		score += lengthPoints
	}
	if strings.Count(question, "?") > 1 {
		score += multiQuestionPoints
	}
	if anyTokenMatch(tokens, reasoningKeywords) {
		score += reasoningPoints
	}
	if anyTokenMatch(tokens, troubleshootingKeywords) || anyPhraseMatch(lower, troubleshootingPhrases) {
		score += troubleshootingPoints
	}
	if anyPhraseMatch(lower, proceduralPhrases) {
		score += proceduralPoints
	}
	if anyTokenMatch(tokens, urgencyKeywords) {
		score += urgencyPoints
	}

	tier := domain.TierFast
	if score >= r.scoreThreshold {
		tier = domain.TierDeep
	}
	return domain.RouteDecision{Tier: tier, Score: score}
}

func anyTokenMatch(tokens map[string]struct{}, keywords []string) bool {
	for _, kw := range keywords {
		if _, ok := tokens[kw]; ok {
			return true
		}
	}
	return false
}

func anyPhraseMatch(lower string, phrases []string) bool {
	for _, phrase := range phrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}

func toTokenSet(s string) map[string]struct{} {
	tokens := splitAlphaNumLower(s)
	out := make(map[string]struct{}, len(tokens))
	for _, token := range tokens {
		out[token] = struct{}{}
	}
	return out
}

func splitAlphaNumLower(s string) []string {
	if s == "" {
		return nil
	}

	tokens := make([]string, 0, 16)
	var b strings.Builder
	for _, r := range s {
		r = unicode.ToLower(r)
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			continue
		}
		if b.Len() > 0 {
			tokens = append(tokens, b.String())
			b.Reset()
		}
	}
	if b.Len() > 0 {
		tokens = append(tokens, b.String())
	}
	return tokens
}
