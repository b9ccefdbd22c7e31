package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/smikhalev/support-rag/internal/core/ports"
	"github.com/smikhalev/support-rag/internal/infrastructure/extractor"
	"github.com/smikhalev/support-rag/internal/infrastructure/index"
)

// Pipeline walks a corpus directory, extracts and chunks every
// document, embeds the chunks in batches and writes the JSONL index
// artifact the API loads at startup. The first path element under the
// corpus root becomes the chunk's category.
type Pipeline struct {
	embedder  ports.Embedder
	chunkSize int
	overlap   int
	batchSize int
	log       *slog.Logger
}

type Config struct {
	ChunkSize int
	Overlap   int
	BatchSize int
}

func NewPipeline(embedder ports.Embedder, cfg Config, log *slog.Logger) *Pipeline {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = 300
	}
	if cfg.Overlap < 0 || cfg.Overlap >= cfg.ChunkSize {
		cfg.Overlap = cfg.ChunkSize / 6
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 32
	}
	if log == nil {
		log = slog.Default()
	}
	return &Pipeline{
		embedder:  embedder,
		chunkSize: cfg.ChunkSize,
		overlap:   cfg.Overlap,
		batchSize: cfg.BatchSize,
		log:       log,
	}
}

func (p *Pipeline) Run(ctx context.Context, corpusDir, outputPath string) (int, error) {
	entries, err := p.collect(corpusDir)
	if err != nil {
		return 0, err
	}
	if len(entries) == 0 {
		return 0, fmt.Errorf("no indexable documents under %s", corpusDir)
	}

	if err := p.embedAll(ctx, entries); err != nil {
		return 0, err
	}
	if err := writeArtifact(outputPath, entries); err != nil {
		return 0, err
	}
	return len(entries), nil
}

func (p *Pipeline) collect(corpusDir string) ([]index.Entry, error) {
	var entries []index.Entry
	err := filepath.WalkDir(corpusDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || strings.HasPrefix(d.Name(), ".") {
			return nil
		}

		rel, err := filepath.Rel(corpusDir, path)
		if err != nil {
			return err
		}
		docID := filepath.ToSlash(rel)

		segments, err := extractor.Extract(path)
		if err != nil {
			p.log.Warn("document_skipped", "document", docID, "error", err)
			return nil
		}

		chunkIdx := 0
		for _, segment := range segments {
			for _, text := range ChunkText(segment.Text, p.chunkSize, p.overlap) {
				entries = append(entries, index.Entry{
					ChunkID:    fmt.Sprintf("%s#%d", docID, chunkIdx),
					DocumentID: docID,
					Section:    segment.Section,
					Page:       segment.Page,
					Category:   categoryOf(docID),
					Text:       text,
				})
				chunkIdx++
			}
		}
		if chunkIdx > 0 {
			p.log.Info("document_indexed", "document", docID, "chunks", chunkIdx)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk corpus: %w", err)
	}
	return entries, nil
}

func (p *Pipeline) embedAll(ctx context.Context, entries []index.Entry) error {
	for start := 0; start < len(entries); start += p.batchSize {
		end := start + p.batchSize
		if end > len(entries) {
			end = len(entries)
		}

		texts := make([]string, 0, end-start)
		for _, entry := range entries[start:end] {
			texts = append(texts, entry.Text)
		}
		vectors, err := p.embedder.Embed(ctx, texts)
		if err != nil {
			return fmt.Errorf("embed batch at %d: %w", start, err)
		}
		if len(vectors) != len(texts) {
			return fmt.Errorf("embed batch at %d: got %d vectors for %d texts", start, len(vectors), len(texts))
		}
		for i := range vectors {
			entries[start+i].Embedding = vectors[i]
		}
	}
	return nil
}

func writeArtifact(path string, entries []index.Entry) error {
	tmp := path + ".tmp"
	file, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create artifact: %w", err)
	}

	enc := json.NewEncoder(file)
	for _, entry := range entries {
		if err := enc.Encode(entry); err != nil {
			file.Close()
			return fmt.Errorf("encode chunk %s: %w", entry.ChunkID, err)
		}
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("close artifact: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("publish artifact: %w", err)
	}
	return nil
}

// categoryOf derives the source tier from the first directory of the
// document path, e.g. "official/billing.md" -> "official".
func categoryOf(docID string) string {
	if i := strings.IndexByte(docID, '/'); i > 0 {
		return docID[:i]
	}
	return "general"
}
