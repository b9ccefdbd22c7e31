package extractor

import (
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

// extractXLSX flattens each sheet into pipe-delimited rows, one
// segment per sheet with the sheet name as the section.
func extractXLSX(path string) ([]Segment, error) {
	file, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open xlsx: %w", err)
	}
	defer file.Close()

	var segments []Segment
	for _, sheet := range file.GetSheetList() {
		rows, err := file.GetRows(sheet)
		if err != nil {
			return nil, fmt.Errorf("read sheet %s: %w", sheet, err)
		}

		var lines []string
		for _, row := range rows {
			line := strings.TrimSpace(strings.Join(row, " | "))
			if line != "" {
				lines = append(lines, line)
			}
		}
		if len(lines) == 0 {
			continue
		}
		segments = append(segments, Segment{
			Text:    strings.Join(lines, "\n"),
			Section: sheet,
		})
	}
	return segments, nil
}
