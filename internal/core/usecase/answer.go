package usecase

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/smikhalev/support-rag/internal/core/domain"
	"github.com/smikhalev/support-rag/internal/core/ports"
)

// PipelineConfig tunes the answer orchestration around the retriever.
type PipelineConfig struct {
	MaxHistoryTurns int
	TelemetryWait   time.Duration
}

func (c PipelineConfig) normalize() PipelineConfig {
	if c.MaxHistoryTurns <= 0 {
		c.MaxHistoryTurns = 6
	}
	if c.TelemetryWait <= 0 {
		c.TelemetryWait = 3 * time.Second
	}
	return c
}

// AnswerUseCase runs the full question-answering pipeline: cache
// lookup, routing, hybrid retrieval, grounded generation, output
// evaluation, cache write and telemetry publish.
type AnswerUseCase struct {
	router     *Router
	retriever  *HybridRetriever
	completion ports.Completion
	cache      ports.AnswerCache
	telemetry  ports.QueryLogQueue
	cfg        PipelineConfig
	log        *slog.Logger
}

func NewAnswerUseCase(
	router *Router,
	retriever *HybridRetriever,
	completion ports.Completion,
	cache ports.AnswerCache,
	telemetry ports.QueryLogQueue,
	cfg PipelineConfig,
	log *slog.Logger,
) *AnswerUseCase {
	if log == nil {
		log = slog.Default()
	}
	return &AnswerUseCase{
		router:     router,
		retriever:  retriever,
		completion: completion,
		cache:      cache,
		telemetry:  telemetry,
		cfg:        cfg.normalize(),
		log:        log,
	}
}

func (uc *AnswerUseCase) Answer(ctx context.Context, question string, history []domain.ChatTurn) (*domain.Answer, error) {
	return uc.run(ctx, question, history, nil)
}

// AnswerStream behaves like Answer but delivers the answer text
// incrementally through onDelta before the assembled Answer (with its
// metadata block) is returned. A cache hit replays the cached text as
// a single delta.
func (uc *AnswerUseCase) AnswerStream(
	ctx context.Context,
	question string,
	history []domain.ChatTurn,
	onDelta func(string) error,
) (*domain.Answer, error) {
	return uc.run(ctx, question, history, onDelta)
}

func (uc *AnswerUseCase) run(
	ctx context.Context,
	question string,
	history []domain.ChatTurn,
	onDelta func(string) error,
) (*domain.Answer, error) {
	start := time.Now()
	if strings.TrimSpace(question) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "answer", errEmptyQuestion)
	}
	history = boundHistory(history, uc.cfg.MaxHistoryTurns)

	key := cacheKey(question, history)
	if entry, ok := uc.cache.Get(key); ok {
		answer := entry.Answer
		answer.Metadata.CacheHit = true
		answer.Metadata.LatencyMs = time.Since(start).Milliseconds()
		if onDelta != nil {
			if err := onDelta(answer.Text); err != nil {
				return nil, err
			}
		}
		return &answer, nil
	}

	route := uc.router.Route(question)

	retrievalStart := time.Now()
	retrieval, err := uc.retriever.Retrieve(ctx, question)
	if err != nil {
		return nil, err
	}
	retrievalLatency := time.Since(retrievalStart)

	prompt := buildAnswerPrompt(question, history, retrieval.Candidates)

	var (
		text  string
		usage domain.TokenUsage
	)
	if onDelta == nil {
		text, usage, err = uc.completion.Complete(ctx, prompt, route.Tier)
	} else {
		var b strings.Builder
		usage, err = uc.completion.CompleteStream(ctx, prompt, route.Tier, func(delta string) error {
			b.WriteString(delta)
			return onDelta(delta)
		})
		text = b.String()
	}
	if err != nil {
		return nil, domain.WrapError(domain.ErrGeneration, "generate answer", err)
	}

	text = SanitizeAnswer(text)
	flags := EvaluateAnswer(question, text, retrieval.Candidates)

	answer := &domain.Answer{
		Text:    text,
		Sources: buildSources(retrieval.Candidates),
		Metadata: domain.AnswerMetadata{
			Tier:               route.Tier,
			RoutingScore:       route.Score,
			Tokens:             usage,
			LatencyMs:          time.Since(start).Milliseconds(),
			RetrievalLatencyMs: retrievalLatency.Milliseconds(),
			DenseLatencyMs:     retrieval.DenseLatency.Milliseconds(),
			LexicalLatencyMs:   retrieval.LexicalLatency.Milliseconds(),
			RerankLatencyMs:    retrieval.RerankLatency.Milliseconds(),
			CandidateCount:     retrieval.CandidateCount,
			MeanSimilarity:     retrieval.MeanSimilarity,
			EvaluatorFlags:     flags,
			Degraded:           retrieval.Degraded,
		},
	}

	uc.cache.Put(key, domain.CacheEntry{Answer: *answer, CreatedAt: time.Now()})
	uc.publishTelemetry(question, answer)
	return answer, nil
}

func (uc *AnswerUseCase) publishTelemetry(question string, answer *domain.Answer) {
	if uc.telemetry == nil {
		return
	}

	entry := domain.QueryLogEntry{
		ID:                 uuid.NewString(),
		Question:           question,
		Tier:               answer.Metadata.Tier,
		RoutingScore:       answer.Metadata.RoutingScore,
		TokensInput:        answer.Metadata.Tokens.Input,
		TokensOutput:       answer.Metadata.Tokens.Output,
		LatencyMs:          answer.Metadata.LatencyMs,
		RetrievalLatencyMs: answer.Metadata.RetrievalLatencyMs,
		CandidateCount:     answer.Metadata.CandidateCount,
		MeanSimilarity:     answer.Metadata.MeanSimilarity,
		EvaluatorFlags:     answer.Metadata.EvaluatorFlags,
		CacheHit:           answer.Metadata.CacheHit,
		CreatedAt:          time.Now().UTC(),
	}

	// Fire-and-forget: telemetry must never delay or fail the response.
	go func() {
		publishCtx, cancel := context.WithTimeout(context.Background(), uc.cfg.TelemetryWait)
		defer cancel()
		if err := uc.telemetry.PublishQueryLog(publishCtx, entry); err != nil {
			uc.log.Warn("query_log_publish_failed", "error", err)
		}
	}()
}

func buildSources(cands []domain.RankedCandidate) []domain.Source {
	out := make([]domain.Source, 0, len(cands))
	for _, c := range cands {
		out = append(out, domain.Source{
			DocumentID: c.Passage.DocumentID,
			Section:    c.Passage.Section,
			Page:       c.Passage.Page,
			Relevance:  finalScore(c),
		})
	}
	return out
}

func finalScore(c domain.RankedCandidate) float64 {
	if c.RerankScore != 0 {
		return c.RerankScore
	}
	if c.TieredScore != 0 {
		return c.TieredScore
	}
	return c.FusedScore
}

func boundHistory(history []domain.ChatTurn, max int) []domain.ChatTurn {
	if len(history) <= max {
		return history
	}
	return history[len(history)-max:]
}
