package ports

import (
	"context"

	"github.com/smikhalev/support-rag/internal/core/domain"
)

// QueryService is the inbound contract for answering questions over
// the corpus.
type QueryService interface {
	Answer(ctx context.Context, question string, history []domain.ChatTurn) (*domain.Answer, error)
	AnswerStream(ctx context.Context, question string, history []domain.ChatTurn, onDelta func(string) error) (*domain.Answer, error)
}
