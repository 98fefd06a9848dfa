package extract

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/vitalio/medsearch/internal/chunker"
)

// XLSXExtractor turns every sheet of a workbook into an explicit table
// payload plus a pipe-delimited text rendering. Sheets stand in for pages:
// sheet N is page N.
type XLSXExtractor struct{}

// Extract reads all sheets. The first row of a sheet is its header row;
// sheets without rows are skipped. Ragged rows are padded to the header
// width so every table payload stays rectangular.
func (e *XLSXExtractor) Extract(ctx context.Context, r io.Reader, size int64) (*Result, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	var (
		builder strings.Builder
		tables  []TablePayload
		pageMap []chunker.PageSpan
	)
	for sheetIdx, sheetName := range f.GetSheetList() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		rows, err := f.GetRows(sheetName)
		if err != nil || len(rows) == 0 {
			continue
		}

		page := sheetIdx + 1
		headers := rows[0]
		body := make([][]string, 0, len(rows)-1)
		for _, row := range rows[1:] {
			body = append(body, padRow(row, len(headers)))
		}

		tables = append(tables, TablePayload{
			Headers: headers,
			Rows:    body,
			Page:    page,
		})

		start := builder.Len()
		builder.WriteString(renderPipeTable(sheetName, headers, body))
		pageMap = append(pageMap, chunker.PageSpan{
			Page:  page,
			Start: start,
			End:   builder.Len(),
		})
		builder.WriteString("\n\n")
	}

	return &Result{
		Text:    builder.String(),
		Tables:  tables,
		PageMap: pageMap,
	}, nil
}

// renderPipeTable renders a sheet as a pipe-delimited block so the table
// also lives in the searchable text body.
func renderPipeTable(title string, headers []string, rows [][]string) string {
	var b strings.Builder
	b.WriteString("## " + title + "\n")
	b.WriteString("| " + strings.Join(headers, " | ") + " |\n")
	for _, row := range rows {
		b.WriteString("| " + strings.Join(row, " | ") + " |\n")
	}
	return b.String()
}

func padRow(row []string, width int) []string {
	if len(row) >= width {
		return row[:width]
	}
	padded := make([]string, width)
	copy(padded, row)
	return padded
}

var _ Extractor = (*XLSXExtractor)(nil)
