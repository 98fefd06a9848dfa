package extract

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/vitalio/medsearch/internal/chunker"
)

// ErrInvalidPayload is returned when a JSON document does not follow the
// structured upload schema.
var ErrInvalidPayload = errors.New("invalid structured document payload")

// jsonDocument is the explicit upload schema for structured documents.
// Shape violations are boundary errors, never silently coerced.
type jsonDocument struct {
	Title  string `json:"title"`
	Text   string `json:"text"`
	Tables []struct {
		Headers []string   `json:"headers"`
		Rows    [][]string `json:"rows"`
		Page    int        `json:"page"`
	} `json:"tables"`
}

// JSONExtractor handles structured JSON uploads carrying pre-tabulated
// data, the export format of upstream health record systems.
type JSONExtractor struct{}

// Extract parses and validates a structured document. Every table must
// have at least one header and rectangular rows matching the header width.
func (e *JSONExtractor) Extract(ctx context.Context, r io.Reader, size int64) (*Result, error) {
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()

	var doc jsonDocument
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if doc.Text == "" && len(doc.Tables) == 0 {
		return nil, fmt.Errorf("%w: neither text nor tables present", ErrInvalidPayload)
	}

	var (
		builder strings.Builder
		tables  []TablePayload
		pageMap []chunker.PageSpan
	)
	if doc.Title != "" {
		builder.WriteString("## " + doc.Title + "\n\n")
	}
	if doc.Text != "" {
		builder.WriteString(doc.Text)
		builder.WriteString("\n\n")
	}

	for i, t := range doc.Tables {
		if len(t.Headers) == 0 {
			return nil, fmt.Errorf("%w: table %d has no headers", ErrInvalidPayload, i)
		}
		for j, row := range t.Rows {
			if len(row) != len(t.Headers) {
				return nil, fmt.Errorf("%w: table %d row %d has %d cells, want %d",
					ErrInvalidPayload, i, j, len(row), len(t.Headers))
			}
		}
		if t.Page < 0 {
			return nil, fmt.Errorf("%w: table %d has negative page %d", ErrInvalidPayload, i, t.Page)
		}

		tables = append(tables, TablePayload{
			Headers: t.Headers,
			Rows:    t.Rows,
			Page:    t.Page,
		})

		start := builder.Len()
		builder.WriteString(renderPipeTable(fmt.Sprintf("Table %d", i+1), t.Headers, t.Rows))
		if t.Page > 0 {
			pageMap = append(pageMap, chunker.PageSpan{
				Page:  t.Page,
				Start: start,
				End:   builder.Len(),
			})
		}
		builder.WriteString("\n\n")
	}

	return &Result{
		Text:    builder.String(),
		Tables:  tables,
		PageMap: pageMap,
	}, nil
}

var _ Extractor = (*JSONExtractor)(nil)
