package usecase

import (
	"fmt"
	"hash/fnv"
	"strings"

	"github.com/smikhalev/support-rag/internal/core/domain"
)

// normalizeQuestion folds case, collapses whitespace and strips
// trailing punctuation so near-identical phrasings share a cache slot.
// Lookup and write use the exact same function.
func normalizeQuestion(question string) string {
	normalized := strings.Join(strings.Fields(strings.ToLower(question)), " ")
	return strings.TrimRight(normalized, "?!. ")
}

// cacheKey combines the normalized question with a fingerprint of the
// history window, so the same question in a different conversation
// context never collides.
func cacheKey(question string, history []domain.ChatTurn) string {
	key := normalizeQuestion(question)
	if len(history) == 0 {
		return key
	}

	h := fnv.New64a()
	for _, turn := range history {
		_, _ = h.Write([]byte(turn.Role))
		_, _ = h.Write([]byte{0})
		_, _ = h.Write([]byte(turn.Text))
		_, _ = h.Write([]byte{0})
	}
	return fmt.Sprintf("%s|h:%x", key, h.Sum64())
}
