package extractor

import (
	"fmt"
	"os"
	"strings"
	"unicode/utf8"
)

func extractPlaintext(path string) ([]Segment, error) {
	text, err := readUTF8(path)
	if err != nil {
		return nil, err
	}
	if text == "" {
		return nil, nil
	}
	return []Segment{{Text: text}}, nil
}

// extractMarkdown splits on top- and second-level headings so each
// segment carries its section title.
func extractMarkdown(path string) ([]Segment, error) {
	text, err := readUTF8(path)
	if err != nil {
		return nil, err
	}
	if text == "" {
		return nil, nil
	}

	var (
		segments []Segment
		section  string
		body     []string
	)
	flush := func() {
		joined := strings.TrimSpace(strings.Join(body, "\n"))
		if joined != "" {
			segments = append(segments, Segment{Text: joined, Section: section})
		}
		body = body[:0]
	}

	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "# ") || strings.HasPrefix(trimmed, "## ") {
			flush()
			section = strings.TrimSpace(strings.TrimLeft(trimmed, "# "))
			continue
		}
		body = append(body, line)
	}
	flush()
	return segments, nil
}

func readUTF8(path string) (string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read document: %w", err)
	}
	if !utf8.Valid(raw) {
		return "", fmt.Errorf("document is not valid utf-8: %s", path)
	}
	return strings.TrimSpace(string(raw)), nil
}
