package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/smikhalev/support-rag/internal/config"
	"github.com/smikhalev/support-rag/internal/infrastructure/llm/ollama"
	"github.com/smikhalev/support-rag/internal/infrastructure/resilience"
	"github.com/smikhalev/support-rag/internal/ingest"
	"github.com/smikhalev/support-rag/internal/observability/logging"
)

func main() {
	cfg := config.Load()
	corpusDir := flag.String("corpus", "./corpus", "directory with documentation sources")
	outputPath := flag.String("out", cfg.IndexPath, "path for the index artifact")
	chunkSize := flag.Int("chunk-size", 300, "chunk size in words")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := logging.NewJSONLogger("support-rag-indexer", cfg.LogLevel)
	executor := resilience.NewExecutor(resilience.DefaultPolicy(), logger)
	embedder := ollama.New(ollama.Config{
		BaseURL:    cfg.OllamaURL,
		FastModel:  cfg.OllamaFastModel,
		DeepModel:  cfg.OllamaDeepModel,
		EmbedModel: cfg.OllamaEmbedModel,
	}, executor)

	pipeline := ingest.NewPipeline(embedder, ingest.Config{ChunkSize: *chunkSize}, logger)
	count, err := pipeline.Run(ctx, *corpusDir, *outputPath)
	if err != nil {
		log.Fatalf("indexing error: %v", err)
	}
	logger.Info("index_written", "path", *outputPath, "chunks", count)
}
