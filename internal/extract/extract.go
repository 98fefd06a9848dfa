package extract

import (
	"context"
	"errors"
	"io"
	"strings"

	"github.com/vitalio/medsearch/internal/chunker"
)

// ErrUnsupportedFormat is returned when no extractor handles the sniffed
// file format.
var ErrUnsupportedFormat = errors.New("unsupported document format")

// TablePayload is a table delivered explicitly by a format that knows its
// tabular structure (spreadsheet sheets, structured JSON). Page is
// 1-based; 0 means the format carries no page notion.
type TablePayload struct {
	Headers []string   `json:"headers"`
	Rows    [][]string `json:"rows"`
	Page    int        `json:"page"`
}

// Result is the outcome of extracting one document.
type Result struct {
	// Text is the full extracted plain text, in reading order.
	Text string
	// Tables holds structurally explicit tables. Tables embedded in free
	// text are found later by the chunker's boundary detection.
	Tables []TablePayload
	// PageMap maps page numbers to character ranges of Text. Nil when the
	// format has no pages.
	PageMap []chunker.PageSpan
}

// PageCount derives the page count from the page map.
func (r *Result) PageCount() int {
	max := 0
	for _, p := range r.PageMap {
		if p.Page > max {
			max = p.Page
		}
	}
	return max
}

// Extractor converts one file format into extracted text, explicit tables
// and a page map.
type Extractor interface {
	Extract(ctx context.Context, r io.Reader, size int64) (*Result, error)
}

// MIME types the dispatcher understands.
const (
	mimeText = "text/plain"
	mimePDF  = "application/pdf"
	mimeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	mimeJSON = "application/json"
)

// ForMime returns the extractor for a sniffed MIME type. Parameters such
// as charset are ignored; only the media type matters.
func ForMime(mediaType string) (Extractor, error) {
	if i := strings.IndexByte(mediaType, ';'); i >= 0 {
		mediaType = strings.TrimSpace(mediaType[:i])
	}
	switch mediaType {
	case mimeText:
		return &TextExtractor{}, nil
	case mimePDF:
		return &PDFExtractor{}, nil
	case mimeXLSX:
		return &XLSXExtractor{}, nil
	case mimeJSON:
		return &JSONExtractor{}, nil
	default:
		return nil, ErrUnsupportedFormat
	}
}
