package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/smikhalev/support-rag/internal/core/domain"
	"github.com/smikhalev/support-rag/internal/core/ports"
)

type stubEmbedder struct {
	mu       sync.Mutex
	vec      []float32
	err      error
	lastText string
}

func (s *stubEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = s.vec
	}
	return out, s.err
}

func (s *stubEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	s.mu.Lock()
	s.lastText = text
	s.mu.Unlock()
	return s.vec, s.err
}

type stubDense struct {
	cands []domain.RankedCandidate
	err   error
	delay time.Duration
}

func (s *stubDense) Search(context.Context, []float32, int) ([]domain.RankedCandidate, error) {
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	return s.cands, s.err
}

type stubLexical struct {
	cands []domain.RankedCandidate
	err   error
	delay time.Duration
}

func (s *stubLexical) Search(context.Context, string, int) ([]domain.RankedCandidate, error) {
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	return s.cands, s.err
}

type stubReranker struct {
	mu     sync.Mutex
	scores []float64
	err    error
	calls  int
}

func (s *stubReranker) Rerank(_ context.Context, _ string, passages []string) ([]float64, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	if len(s.scores) >= len(passages) {
		return s.scores[:len(passages)], nil
	}
	return s.scores, nil
}

type stubCompletion struct {
	mu    sync.Mutex
	text  string
	err   error
	calls int
}

func (s *stubCompletion) Complete(context.Context, string, domain.ModelTier) (string, domain.TokenUsage, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	return s.text, domain.TokenUsage{Input: 10, Output: 5}, s.err
}

func (s *stubCompletion) CompleteStream(ctx context.Context, prompt string, tier domain.ModelTier, onDelta func(string) error) (domain.TokenUsage, error) {
	text, usage, err := s.Complete(ctx, prompt, tier)
	if err != nil {
		return usage, err
	}
	if err := onDelta(text); err != nil {
		return usage, err
	}
	return usage, nil
}

func denseCand(chunkID string, score float64) domain.RankedCandidate {
	c := cand(chunkID, "")
	c.DenseScore = score
	return c
}

func lexCand(chunkID string, score float64) domain.RankedCandidate {
	c := cand(chunkID, "")
	c.LexicalScore = score
	return c
}

func testRetrievalConfig() RetrievalConfig {
	return RetrievalConfig{
		TopK:           3,
		CandidatePool:  10,
		RRFK:           60,
		RerankTopM:     6,
		ThresholdFloor: 0.01,
		BypassGate:     0.6,
	}
}

func newTestRetriever(e *stubEmbedder, d *stubDense, l *stubLexical, rr *stubReranker, exp *Expander) *HybridRetriever {
	var reranker ports.Reranker
	if rr != nil {
		reranker = rr
	}
	return NewHybridRetriever(e, d, l, reranker, exp, testRetrievalConfig(), slog.Default())
}

func TestRetrieveMergesBothSourcesAndDeduplicates(t *testing.T) {
	embedder := &stubEmbedder{vec: []float32{1, 0}}
	dense := &stubDense{cands: []domain.RankedCandidate{denseCand("shared", 0.5), denseCand("dense-only", 0.4)}}
	lexical := &stubLexical{cands: []domain.RankedCandidate{lexCand("shared", 3.1), lexCand("lex-only", 2.0)}}
	reranker := &stubReranker{scores: []float64{0.9, 0.8, 0.7}}

	r := newTestRetriever(embedder, dense, lexical, reranker, nil)
	result, err := r.Retrieve(context.Background(), "how do refunds work for annual plans")
	if err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}
	if result.Degraded {
		t.Fatalf("unexpected degraded result")
	}

	seen := map[string]struct{}{}
	for _, c := range result.Candidates {
		if _, dup := seen[c.Passage.ChunkID]; dup {
			t.Fatalf("duplicate chunk id %s in result", c.Passage.ChunkID)
		}
		seen[c.Passage.ChunkID] = struct{}{}
	}
	if result.Candidates[0].Passage.ChunkID != "shared" {
		t.Fatalf("expected shared candidate first, got %s", result.Candidates[0].Passage.ChunkID)
	}
	if !result.Reranked {
		t.Fatalf("expected reranked result")
	}
}

func TestRetrieveKeepsTieredTailBeyondRerankHead(t *testing.T) {
	embedder := &stubEmbedder{vec: []float32{1, 0}}
	dense := &stubDense{cands: []domain.RankedCandidate{
		denseCand("a", 0.5), denseCand("b", 0.4), denseCand("c", 0.3), denseCand("d", 0.2),
	}}
	lexical := &stubLexical{}
	reranker := &stubReranker{scores: []float64{0.9, 0.8}}

	cfg := testRetrievalConfig()
	cfg.TopK = 5
	cfg.RerankTopM = 2
	r := NewHybridRetriever(embedder, dense, lexical, reranker, nil, cfg, slog.Default())

	result, err := r.Retrieve(context.Background(), "how do seat licenses transfer between workspaces")
	if err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}
	if !result.Reranked {
		t.Fatalf("expected reranked result")
	}
	if len(result.Candidates) != 4 {
		t.Fatalf("expected reranked head plus tiered tail, got %d candidates", len(result.Candidates))
	}
	if result.Candidates[2].Passage.ChunkID != "c" || result.Candidates[3].Passage.ChunkID != "d" {
		t.Fatalf("tail lost its tiered order: %s, %s",
			result.Candidates[2].Passage.ChunkID, result.Candidates[3].Passage.ChunkID)
	}
}

func TestRetrieveDegradesWhenDenseFails(t *testing.T) {
	embedder := &stubEmbedder{vec: []float32{1, 0}}
	dense := &stubDense{err: errors.New("index unavailable")}
	lexical := &stubLexical{cands: []domain.RankedCandidate{lexCand("lex-a", 2.0), lexCand("lex-b", 1.0)}}
	reranker := &stubReranker{scores: []float64{0.9, 0.8}}

	r := newTestRetriever(embedder, dense, lexical, reranker, nil)
	result, err := r.Retrieve(context.Background(), "export permissions")
	if err != nil {
		t.Fatalf("expected degraded result, got error %v", err)
	}
	if !result.Degraded {
		t.Fatalf("expected Degraded=true")
	}
	if len(result.Candidates) == 0 {
		t.Fatalf("expected lexical-only candidates")
	}
}

func TestRetrieveMeasuresPerSourceLatency(t *testing.T) {
	embedder := &stubEmbedder{vec: []float32{1, 0}}
	dense := &stubDense{cands: []domain.RankedCandidate{denseCand("a", 0.5)}, delay: 5 * time.Millisecond}
	lexical := &stubLexical{cands: []domain.RankedCandidate{lexCand("b", 2.0)}, delay: 5 * time.Millisecond}
	reranker := &stubReranker{scores: []float64{0.9, 0.8}}

	r := newTestRetriever(embedder, dense, lexical, reranker, nil)
	result, err := r.Retrieve(context.Background(), "how do refunds work for annual plans")
	if err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}
	if result.DenseLatency < 5*time.Millisecond {
		t.Fatalf("dense latency not measured: %v", result.DenseLatency)
	}
	if result.LexicalLatency < 5*time.Millisecond {
		t.Fatalf("lexical latency not measured: %v", result.LexicalLatency)
	}
}

func TestRetrieveAbortsOnEmbeddingFailure(t *testing.T) {
	embedder := &stubEmbedder{err: errors.New("embedding backend down")}
	dense := &stubDense{}
	lexical := &stubLexical{cands: []domain.RankedCandidate{lexCand("lex-a", 2.0)}}

	r := newTestRetriever(embedder, dense, lexical, &stubReranker{}, nil)
	_, err := r.Retrieve(context.Background(), "billing question")
	if err == nil {
		t.Fatalf("expected error")
	}
	if !domain.IsKind(err, domain.ErrEmbedding) {
		t.Fatalf("expected ErrEmbedding, got %v", err)
	}
}

func TestRetrieveFallsBackToTieredOrderWhenRerankerFails(t *testing.T) {
	embedder := &stubEmbedder{vec: []float32{1, 0}}
	dense := &stubDense{cands: []domain.RankedCandidate{denseCand("a", 0.5), denseCand("b", 0.4)}}
	lexical := &stubLexical{cands: []domain.RankedCandidate{lexCand("b", 2.0), lexCand("c", 1.0)}}
	reranker := &stubReranker{err: errors.New("rerank service down")}

	r := newTestRetriever(embedder, dense, lexical, reranker, nil)
	result, err := r.Retrieve(context.Background(), "api limits")
	if err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}
	if result.Reranked {
		t.Fatalf("expected fallback ordering, not reranked")
	}
	if !result.Degraded {
		t.Fatalf("expected Degraded=true after rerank failure")
	}
	if result.Candidates[0].Passage.ChunkID != "b" {
		t.Fatalf("expected fused/tiered leader b, got %s", result.Candidates[0].Passage.ChunkID)
	}
}

func TestRetrieveBypassesRerankOnHighConfidence(t *testing.T) {
	embedder := &stubEmbedder{vec: []float32{1, 0}}
	dense := &stubDense{cands: []domain.RankedCandidate{denseCand("top", 0.95), denseCand("next", 0.5)}}
	lexical := &stubLexical{cands: []domain.RankedCandidate{lexCand("top", 4.0)}}
	reranker := &stubReranker{scores: []float64{0.1, 0.9}}

	r := newTestRetriever(embedder, dense, lexical, reranker, nil)
	result, err := r.Retrieve(context.Background(), "reset password")
	if err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}
	if reranker.calls != 0 {
		t.Fatalf("expected rerank bypass, reranker called %d times", reranker.calls)
	}
	if result.Reranked {
		t.Fatalf("bypassed result must not be marked reranked")
	}
	if result.Candidates[0].Passage.ChunkID != "top" {
		t.Fatalf("bypass changed ranking, got %s first", result.Candidates[0].Passage.ChunkID)
	}
}

func TestRetrieveShortQueryExpandsBeforeEmbedding(t *testing.T) {
	embedder := &stubEmbedder{vec: []float32{1, 0}}
	dense := &stubDense{cands: []domain.RankedCandidate{denseCand("a", 0.5)}}
	lexical := &stubLexical{}
	completion := &stubCompletion{text: "Plans start at ten dollars per seat per month."}
	expander := NewExpander(completion, 8, time.Second, slog.Default())

	r := newTestRetriever(embedder, dense, lexical, &stubReranker{scores: []float64{0.9}}, expander)
	if _, err := r.Retrieve(context.Background(), "pricing?"); err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}
	if completion.calls != 1 {
		t.Fatalf("expected one expansion call, got %d", completion.calls)
	}
	if !strings.Contains(embedder.lastText, "Plans start at ten dollars") {
		t.Fatalf("embedded text missing expansion: %q", embedder.lastText)
	}
	if !strings.HasPrefix(embedder.lastText, "pricing?") {
		t.Fatalf("embedded text should keep the raw query prefix: %q", embedder.lastText)
	}
}

func TestRetrieveLongQuerySkipsExpansion(t *testing.T) {
	embedder := &stubEmbedder{vec: []float32{1, 0}}
	dense := &stubDense{cands: []domain.RankedCandidate{denseCand("a", 0.5)}}
	lexical := &stubLexical{}
	completion := &stubCompletion{text: "should not be used"}
	expander := NewExpander(completion, 4, time.Second, slog.Default())

	r := newTestRetriever(embedder, dense, lexical, &stubReranker{scores: []float64{0.9}}, expander)
	question := "how does workspace member billing work exactly"
	if _, err := r.Retrieve(context.Background(), question); err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}
	if completion.calls != 0 {
		t.Fatalf("expected no expansion call, got %d", completion.calls)
	}
	if embedder.lastText != question {
		t.Fatalf("expected raw query embedded, got %q", embedder.lastText)
	}
}

func TestRetrieveExpansionFailureFallsBackToRawQuery(t *testing.T) {
	embedder := &stubEmbedder{vec: []float32{1, 0}}
	dense := &stubDense{cands: []domain.RankedCandidate{denseCand("a", 0.5)}}
	completion := &stubCompletion{err: errors.New("llm timeout")}
	expander := NewExpander(completion, 8, time.Second, slog.Default())

	r := newTestRetriever(embedder, dense, &stubLexical{}, &stubReranker{scores: []float64{0.9}}, expander)
	if _, err := r.Retrieve(context.Background(), "pricing?"); err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}
	if embedder.lastText != "pricing?" {
		t.Fatalf("expected raw query fallback, got %q", embedder.lastText)
	}
}
