package ingest

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/smikhalev/support-rag/internal/infrastructure/index"
)

type seqEmbedder struct {
	calls int
}

func (e *seqEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	e.calls++
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{float32(len(texts[i])), 1}
	}
	return out, nil
}

func (e *seqEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func TestChunkTextOverlapsWindows(t *testing.T) {
	words := make([]string, 25)
	for i := range words {
		words[i] = "w"
	}
	chunks := ChunkText(strings.Join(words, " "), 10, 2)
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(chunks))
	}
	if got := len(strings.Fields(chunks[0])); got != 10 {
		t.Fatalf("first chunk has %d words", got)
	}
	if got := len(strings.Fields(chunks[2])); got != 9 {
		t.Fatalf("last chunk has %d words, expected the remainder", got)
	}
}

func TestChunkTextEmptyInput(t *testing.T) {
	if chunks := ChunkText("   ", 10, 2); chunks != nil {
		t.Fatalf("expected nil for blank text, got %v", chunks)
	}
}

func TestPipelineProducesLoadableArtifact(t *testing.T) {
	corpus := t.TempDir()
	if err := os.MkdirAll(filepath.Join(corpus, "official"), 0o755); err != nil {
		t.Fatal(err)
	}
	doc := `# Billing

Invoices are generated monthly and emailed to workspace owners.

## Refunds

Annual plans are prorated to the unused months.
`
	if err := os.WriteFile(filepath.Join(corpus, "official", "billing.md"), []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(corpus, "faq.txt"), []byte("How do I reset my password? Use the account page."), 0o644); err != nil {
		t.Fatal(err)
	}

	out := filepath.Join(t.TempDir(), "index.jsonl")
	pipeline := NewPipeline(&seqEmbedder{}, Config{ChunkSize: 50, Overlap: 5, BatchSize: 2}, nil)

	count, err := pipeline.Run(context.Background(), corpus, out)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if count == 0 {
		t.Fatalf("expected chunks")
	}

	entries, err := index.LoadArtifact(out)
	if err != nil {
		t.Fatalf("LoadArtifact() error = %v", err)
	}
	if len(entries) != count {
		t.Fatalf("artifact has %d entries, Run reported %d", len(entries), count)
	}

	byDoc := map[string][]index.Entry{}
	for _, entry := range entries {
		if len(entry.Embedding) == 0 {
			t.Fatalf("chunk %s has no embedding", entry.ChunkID)
		}
		byDoc[entry.DocumentID] = append(byDoc[entry.DocumentID], entry)
	}

	official := byDoc["official/billing.md"]
	if len(official) == 0 {
		t.Fatalf("markdown document not indexed: %v", byDoc)
	}
	if official[0].Category != "official" {
		t.Fatalf("expected category from top-level dir, got %q", official[0].Category)
	}
	if official[0].ChunkID != "official/billing.md#0" {
		t.Fatalf("unexpected chunk id %q", official[0].ChunkID)
	}
	if official[0].Section != "Billing" {
		t.Fatalf("section metadata lost: %+v", official[0])
	}

	faq := byDoc["faq.txt"]
	if len(faq) == 0 || faq[0].Category != "general" {
		t.Fatalf("root-level document should default to general: %+v", faq)
	}
}

func TestPipelineSkipsUnsupportedFiles(t *testing.T) {
	corpus := t.TempDir()
	if err := os.WriteFile(filepath.Join(corpus, "logo.png"), []byte{0x89, 0x50}, 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(corpus, "faq.txt"), []byte("Reset your password from the account page."), 0o644); err != nil {
		t.Fatal(err)
	}

	out := filepath.Join(t.TempDir(), "index.jsonl")
	pipeline := NewPipeline(&seqEmbedder{}, Config{}, nil)

	count, err := pipeline.Run(context.Background(), corpus, out)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	entries, err := index.LoadArtifact(out)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != count {
		t.Fatalf("artifact size mismatch")
	}
	for _, entry := range entries {
		if entry.DocumentID == "logo.png" {
			t.Fatalf("unsupported file was indexed")
		}
	}
}
