package index

import (
	"context"
	"math"
	"sort"
	"strings"
	"unicode"

	"github.com/smikhalev/support-rag/internal/core/domain"
)

const (
	bm25K1 = 1.2
	bm25B  = 0.75
)

// Lexical is an in-memory BM25 index over the corpus artifact.
// Immutable after construction and safe for concurrent readers.
type Lexical struct {
	entries   []Entry
	termFreqs []map[string]int
	docLens   []int
	docFreq   map[string]int
	avgDocLen float64
}

func NewLexical(entries []Entry) *Lexical {
	idx := &Lexical{
		entries:   entries,
		termFreqs: make([]map[string]int, len(entries)),
		docLens:   make([]int, len(entries)),
		docFreq:   make(map[string]int),
	}

	totalLen := 0
	for i, entry := range entries {
		tokens := tokenize(entry.Text)
		tf := make(map[string]int, len(tokens))
		for _, token := range tokens {
			tf[token]++
		}
		idx.termFreqs[i] = tf
		idx.docLens[i] = len(tokens)
		totalLen += len(tokens)
		for token := range tf {
			idx.docFreq[token]++
		}
	}
	if len(entries) > 0 {
		idx.avgDocLen = float64(totalLen) / float64(len(entries))
	}
	return idx
}

func (l *Lexical) Search(ctx context.Context, queryText string, topN int) ([]domain.RankedCandidate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if topN <= 0 || len(l.entries) == 0 {
		return nil, nil
	}

	queryTerms := tokenize(queryText)
	if len(queryTerms) == 0 {
		return nil, nil
	}

	n := float64(len(l.entries))
	var scored []domain.RankedCandidate
	for i, entry := range l.entries {
		score := 0.0
		docLen := float64(l.docLens[i])
		for _, term := range queryTerms {
			tf := float64(l.termFreqs[i][term])
			if tf == 0 {
				continue
			}
			df := float64(l.docFreq[term])
			idf := math.Log(1 + (n-df+0.5)/(df+0.5))
			score += idf * (tf * (bm25K1 + 1)) /
				(tf + bm25K1*(1-bm25B+bm25B*docLen/l.avgDocLen))
		}
		if score <= 0 {
			continue
		}
		scored = append(scored, domain.RankedCandidate{
			Passage:      entry.passage(),
			LexicalScore: score,
		})
	}

	sort.Slice(scored, func(i, j int) bool {
		if scored[i].LexicalScore != scored[j].LexicalScore {
			return scored[i].LexicalScore > scored[j].LexicalScore
		}
		return scored[i].Passage.ChunkID < scored[j].Passage.ChunkID
	})
	if topN < len(scored) {
		scored = scored[:topN]
	}
	return scored, nil
}

func tokenize(s string) []string {
	if s == "" {
		return nil
	}
	tokens := make([]string, 0, 32)
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
