package usecase

import (
	"regexp"
	"sort"
	"strings"

	"github.com/smikhalev/support-rag/internal/core/domain"
)

// Stopwords removed before keyword overlap analysis. Mix of English
// functional words and support-doc navigation terms.
var evaluatorStopwords = map[string]struct{}{}

func init() {
	for _, w := range strings.Fields(
		"a an the and or but is are was were be been being have has had do does did " +
			"will would could should may might must can shall to of in on at for from " +
			"with by about as into through during before after above below between under " +
			"this that these those i you he she it we they me him her us them my your " +
			"his its our their what which who whom when where why how all each every " +
			"both few more most other some such no not only same than too very just own " +
			"so if then also up out any here there now get use used using like well new " +
			"user click go see make note please refer") {
		evaluatorStopwords[w] = struct{}{}
	}
}

var refusalPhrases = []string{
	"i don't know", "i do not know", "i could not find",
	"i am sorry", "i'm sorry", "not mentioned in the provided",
	"cannot answer", "does not contain information",
	"no information available",
}

// Queries mentioning these product areas get the claim-verification
// overlap check; generic chit-chat does not.
var featureDomainTerms = []string{
	"workspace", "billing", "permissions", "integration", "api",
	"plan", "enterprise", "sso", "oauth", "webhook", "pricing",
	"subscription", "admin", "role", "access",
}

var leakagePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)system\s*prompt`),
	regexp.MustCompile(`(?i)hidden\s*polic`),
	regexp.MustCompile(`(?i)ignore\s*previous`),
	regexp.MustCompile(`(?i)developer\s*mode`),
	regexp.MustCompile(`(?i)internal\s*reasoning`),
	regexp.MustCompile(`(?i)untrusted\s*data`),
}

const (
	keywordMinLength  = 4
	keywordTopN       = 15
	minKeywordOverlap = 2
	claimSimilarity   = 0.3
)

// EvaluateAnswer inspects the generated answer against the retrieved
// evidence and returns advisory guardrail flags. Pure and synchronous;
// flags never block delivery.
func EvaluateAnswer(question, answer string, evidence []domain.RankedCandidate) []domain.EvaluatorFlag {
	flags := make([]domain.EvaluatorFlag, 0, 2)
	answerLower := strings.ToLower(answer)

	if len(evidence) == 0 {
		flags = append(flags, domain.FlagNoContext)
	}

	refused := false
	for _, phrase := range refusalPhrases {
		if strings.Contains(answerLower, phrase) {
			refused = true
			flags = append(flags, domain.FlagHiddenRefusal)
			break
		}
	}

	if !refused && len(evidence) > 0 && mentionsFeatureDomain(question) {
		if !claimVerified(answer, evidence) {
			flags = append(flags, domain.FlagUnverifiedClaim)
		}
	}

	for _, pattern := range leakagePatterns {
		if pattern.MatchString(answer) {
			flags = append(flags, domain.FlagSystemLeakage)
			break
		}
	}

	return flags
}

func mentionsFeatureDomain(question string) bool {
	tokens := toTokenSet(question)
	for _, term := range featureDomainTerms {
		if _, ok := tokens[term]; ok {
			return true
		}
	}
	return false
}

// claimVerified requires the answer's key terms to overlap the
// evidence keywords, counting only passages with a usable similarity
// signal.
func claimVerified(answer string, evidence []domain.RankedCandidate) bool {
	contextKeywords := make(map[string]struct{})
	validContext := false
	for _, c := range evidence {
		if c.DenseScore <= claimSimilarity {
			continue
		}
		validContext = true
		for kw := range extractKeywords(c.Passage.Text, keywordTopN) {
			contextKeywords[kw] = struct{}{}
		}
	}
	if !validContext {
		return false
	}

	overlap := 0
	for kw := range extractKeywords(answer, keywordTopN) {
		if _, ok := contextKeywords[kw]; ok {
			overlap++
		}
	}
	return overlap >= minKeywordOverlap
}

// extractKeywords returns the topN most frequent meaningful terms of
// the text after stopword and short-token filtering.
func extractKeywords(text string, topN int) map[string]struct{} {
	freq := make(map[string]int)
	for _, token := range splitAlphaNumLower(text) {
		if len(token) < keywordMinLength {
			continue
		}
		if _, stop := evaluatorStopwords[token]; stop {
			continue
		}
		freq[token]++
	}

	type kv struct {
		token string
		count int
	}
	ranked := make([]kv, 0, len(freq))
	for token, count := range freq {
		ranked = append(ranked, kv{token, count})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].count != ranked[j].count {
			return ranked[i].count > ranked[j].count
		}
		return ranked[i].token < ranked[j].token
	})
	if len(ranked) > topN {
		ranked = ranked[:topN]
	}

	out := make(map[string]struct{}, len(ranked))
	for _, entry := range ranked {
		out[entry.token] = struct{}{}
	}
	return out
}

var sanitizePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)system\s*prompt`),
	regexp.MustCompile(`(?i)hidden\s*polic\w*`),
	regexp.MustCompile(`(?i)untrusted\s*data`),
	regexp.MustCompile(`(?i)ignore\s*previous`),
	regexp.MustCompile(`(?i)\[START\s*OF\s*SEARCH`),
	regexp.MustCompile(`(?i)documentation\s*chunk`),
}

// SanitizeAnswer redacts internal tokens a model might echo back.
func SanitizeAnswer(text string) string {
	for _, pattern := range sanitizePatterns {
		text = pattern.ReplaceAllString(text, "[REDACTED]")
	}
	return text
}
