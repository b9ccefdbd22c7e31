package httpadapter

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/smikhalev/support-rag/internal/core/domain"
)

// sseWriter emits the streaming answer protocol: "data:" events carry
// text deltas, an "event: metadata" message carries the final metadata
// block, and "data: [DONE]" terminates the stream.
type sseWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

func newSSEWriter(w http.ResponseWriter) (*sseWriter, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("streaming is not supported by response writer")
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	return &sseWriter{w: w, flusher: flusher}, nil
}

func (s *sseWriter) WriteDelta(delta string) error {
	payload, err := json.Marshal(map[string]string{"delta": delta})
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", payload); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

// WriteMetadata sends the terminal metadata event with sources and the
// metadata block, after all deltas.
func (s *sseWriter) WriteMetadata(answer *domain.Answer) error {
	payload, err := json.Marshal(struct {
		Sources  []domain.Source       `json:"sources"`
		Metadata domain.AnswerMetadata `json:"metadata"`
	}{
		Sources:  answer.Sources,
		Metadata: answer.Metadata,
	})
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(s.w, "event: metadata\ndata: %s\n\n", payload); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

func (s *sseWriter) WriteErrorEvent(err error) {
	payload, marshalErr := json.Marshal(map[string]string{"error": err.Error()})
	if marshalErr != nil {
		return
	}
	_, _ = fmt.Fprintf(s.w, "event: error\ndata: %s\n\n", payload)
	s.flusher.Flush()
}

func (s *sseWriter) Close() {
	_, _ = io.WriteString(s.w, "data: [DONE]\n\n")
	s.flusher.Flush()
}
