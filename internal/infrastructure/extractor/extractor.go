package extractor

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Segment is one extracted region of a source document: a markdown
// section, a PDF page or a spreadsheet sheet. Section and Page are
// zero-valued when the format has no such notion.
type Segment struct {
	Text    string
	Section string
	Page    int
}

// Extract pulls text segments out of a corpus file, dispatching on the
// file extension.
func Extract(path string) ([]Segment, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return extractPDF(path)
	case ".xlsx":
		return extractXLSX(path)
	case ".md", ".markdown":
		return extractMarkdown(path)
	case ".txt", "":
		return extractPlaintext(path)
	default:
		return nil, fmt.Errorf("unsupported document format: %s", filepath.Base(path))
	}
}
