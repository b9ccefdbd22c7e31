package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/smikhalev/support-rag/internal/config"
	"github.com/smikhalev/support-rag/internal/core/ports"
	"github.com/smikhalev/support-rag/internal/core/usecase"
	"github.com/smikhalev/support-rag/internal/infrastructure/cache"
	"github.com/smikhalev/support-rag/internal/infrastructure/index"
	"github.com/smikhalev/support-rag/internal/infrastructure/llm/ollama"
	natsqueue "github.com/smikhalev/support-rag/internal/infrastructure/queue/nats"
	"github.com/smikhalev/support-rag/internal/infrastructure/rerank"
	"github.com/smikhalev/support-rag/internal/infrastructure/repository/postgres"
	"github.com/smikhalev/support-rag/internal/infrastructure/resilience"
	"github.com/smikhalev/support-rag/internal/observability/logging"
)

// API wires the full question-answering stack: corpus indices, LLM
// client, reranker, cache, telemetry queue and the answer use case.
type API struct {
	Config config.Config
	Log    *slog.Logger

	QueryService ports.QueryService

	closeFn func()
}

func NewAPI(cfg config.Config) (*API, error) {
	log := logging.NewJSONLogger("support-rag-api", cfg.LogLevel)

	entries, err := index.LoadArtifact(cfg.IndexPath)
	if err != nil {
		return nil, fmt.Errorf("load index artifact: %w", err)
	}
	dense, err := index.NewDense(entries)
	if err != nil {
		return nil, fmt.Errorf("build dense index: %w", err)
	}
	lexical := index.NewLexical(entries)
	log.Info("index_loaded", "path", cfg.IndexPath, "chunks", len(entries))

	boosts, err := config.LoadTierBoosts(cfg.TierBoostsPath)
	if err != nil {
		return nil, fmt.Errorf("load tier boosts: %w", err)
	}

	executor := resilience.NewExecutor(resilience.DefaultPolicy(), log)
	llm := ollama.New(ollama.Config{
		BaseURL:    cfg.OllamaURL,
		FastModel:  cfg.OllamaFastModel,
		DeepModel:  cfg.OllamaDeepModel,
		EmbedModel: cfg.OllamaEmbedModel,
	}, executor)
	reranker := rerank.New(rerank.Config{
		BaseURL:       cfg.RerankerURL,
		MaxConcurrent: cfg.RerankerMaxConcurrent,
	}, executor)

	queue, err := natsqueue.New(cfg.NATSURL, cfg.NATSSubject, natsqueue.Options{
		ResilienceExecutor: executor,
		Logger:             log,
	})
	if err != nil {
		return nil, fmt.Errorf("init telemetry queue: %w", err)
	}

	router := usecase.NewRouter(cfg.RouterLengthThreshold, cfg.RouterScoreThreshold)
	expander := usecase.NewExpander(llm, cfg.ExpansionWordLimit, time.Duration(cfg.ExpansionTimeoutSec)*time.Second, log)
	retriever := usecase.NewHybridRetriever(llm, dense, lexical, reranker, expander, usecase.RetrievalConfig{
		TopK:            cfg.RetrievalTopK,
		CandidatePool:   cfg.RetrievalCandidates,
		RRFK:            cfg.FusionRRFK,
		RerankTopM:      cfg.RerankTopM,
		ThresholdFloor:  cfg.ThresholdFloor,
		StaticThreshold: cfg.StaticThreshold,
		BypassGate:      cfg.RerankBypassGate,
		TierBoosts:      boosts,
	}, log)

	answerCache := cache.NewLRU(cfg.CacheCapacity, time.Duration(cfg.CacheTTLMinutes)*time.Minute)
	queryService := usecase.NewAnswerUseCase(router, retriever, llm, answerCache, queue, usecase.PipelineConfig{
		MaxHistoryTurns: cfg.MaxHistoryTurns,
	}, log)

	return &API{
		Config:       cfg,
		Log:          log,
		QueryService: queryService,
		closeFn: func() {
			queue.Close()
		},
	}, nil
}

func (a *API) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}

// Worker wires the telemetry consumer: queue subscription plus the
// Postgres store it persists into.
type Worker struct {
	Config config.Config
	Log    *slog.Logger

	Queue ports.QueryLogQueue
	Store ports.QueryLogStore

	closeFn func()
}

func NewWorker(ctx context.Context, cfg config.Config) (*Worker, error) {
	log := logging.NewJSONLogger("support-rag-worker", cfg.LogLevel)

	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	repo := postgres.NewQueryLogRepository(db)
	if err := repo.EnsureSchema(ctx); err != nil {
		closeDB(db)
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	queue, err := natsqueue.New(cfg.NATSURL, cfg.NATSSubject, natsqueue.Options{Logger: log})
	if err != nil {
		closeDB(db)
		return nil, fmt.Errorf("init telemetry queue: %w", err)
	}

	return &Worker{
		Config: cfg,
		Log:    log,
		Queue:  queue,
		Store:  repo,
		closeFn: func() {
			queue.Close()
			closeDB(db)
		},
	}, nil
}

func (w *Worker) Close() {
	if w.closeFn != nil {
		w.closeFn()
	}
}

func closeDB(db *sql.DB) {
	_ = db.Close()
}
