package index

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/smikhalev/support-rag/internal/core/domain"
)

// Entry is a single JSONL record of the corpus artifact produced by
// the indexer: one chunk of documentation plus its embedding vector.
type Entry struct {
	ChunkID    string    `json:"chunk_id"`
	DocumentID string    `json:"document_id"`
	Section    string    `json:"section,omitempty"`
	Page       int       `json:"page,omitempty"`
	Category   string    `json:"category,omitempty"`
	Text       string    `json:"text"`
	Embedding  []float32 `json:"embedding"`
}

func (e Entry) passage() domain.Passage {
	return domain.Passage{
		ChunkID:    e.ChunkID,
		DocumentID: e.DocumentID,
		Section:    e.Section,
		Page:       e.Page,
		Category:   e.Category,
		Text:       e.Text,
	}
}

// LoadArtifact reads the indexer's JSONL output. Blank lines are
// skipped; a malformed line is a hard error since the artifact is
// produced by our own tooling.
func LoadArtifact(path string) ([]Entry, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open index artifact: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 16*1024*1024)

	var entries []Entry
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var entry Entry
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			return nil, fmt.Errorf("parse index artifact line %d: %w", lineNo, err)
		}
		if entry.ChunkID == "" {
			return nil, fmt.Errorf("index artifact line %d: missing chunk_id", lineNo)
		}
		entries = append(entries, entry)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read index artifact: %w", err)
	}
	return entries, nil
}
