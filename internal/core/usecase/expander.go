package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/smikhalev/support-rag/internal/core/domain"
	"github.com/smikhalev/support-rag/internal/core/ports"
)

// Expander enriches short queries before dense retrieval by generating
// a hypothetical documentation passage and embedding that instead of
// the bare question. Long queries skip expansion; any failure falls
// back to the raw query. Only the embedding step ever waits on the
// expansion call.
type Expander struct {
	completion    ports.Completion
	wordThreshold int
	timeout       time.Duration
	log           *slog.Logger
}

func NewExpander(completion ports.Completion, wordThreshold int, timeout time.Duration, log *slog.Logger) *Expander {
	if wordThreshold <= 0 {
		wordThreshold = 8
	}
	if timeout <= 0 {
		timeout = 4 * time.Second
	}
	if log == nil {
		log = slog.Default()
	}
	return &Expander{
		completion:    completion,
		wordThreshold: wordThreshold,
		timeout:       timeout,
		log:           log,
	}
}

// Expand returns the synthetic passage for a short query, or "" when
// expansion was skipped or failed.
func (e *Expander) Expand(ctx context.Context, question string) string {
	if e == nil || e.completion == nil {
		return ""
	}
	if len(strings.Fields(question)) >= e.wordThreshold {
		return ""
	}

	expandCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	prompt := buildExpansionPrompt(question)
	text, _, err := e.completion.Complete(expandCtx, prompt, domain.TierFast)
	if err != nil {
		e.log.Warn("query_expansion_failed", "error", err)
		return ""
	}
	return strings.TrimSpace(text)
}

func buildExpansionPrompt(question string) string {
	return fmt.Sprintf(
		"Given the user query: %q, write a single professional paragraph that might appear in a technical manual answering this question. Focus on technical terminology and descriptive details. Do not explain that you are an AI. Just provide the paragraph.",
		question,
	)
}
