package extract

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/vitalio/medsearch/internal/chunker"
)

// PDFExtractor extracts text page by page and records each page's
// character range, so chunk provenance can be mapped back to pages.
type PDFExtractor struct{}

// Extract reads all pages of the PDF. Pages whose text cannot be decoded
// are skipped rather than failing the whole document; a document where
// every page fails still reaches the caller as empty text, which the
// pipeline treats as an extraction failure.
func (e *PDFExtractor) Extract(ctx context.Context, r io.Reader, size int64) (*Result, error) {
	readerAt, n, err := toReaderAt(r, size)
	if err != nil {
		return nil, fmt.Errorf("failed to buffer pdf: %w", err)
	}

	doc, err := pdf.NewReader(readerAt, n)
	if err != nil {
		return nil, fmt.Errorf("failed to parse pdf: %w", err)
	}

	var (
		builder strings.Builder
		pageMap []chunker.PageSpan
	)
	for i := 1; i <= doc.NumPage(); i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		page := doc.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil || strings.TrimSpace(text) == "" {
			continue
		}

		start := builder.Len()
		builder.WriteString(text)
		pageMap = append(pageMap, chunker.PageSpan{
			Page:  i,
			Start: start,
			End:   builder.Len(),
		})
		// Page break; the separator belongs to no page.
		builder.WriteString("\n\n")
	}

	return &Result{
		Text:    builder.String(),
		PageMap: pageMap,
	}, nil
}

// toReaderAt adapts a stream to the random-access reader the pdf parser
// needs, buffering only when the source is not already seekable.
func toReaderAt(r io.Reader, size int64) (io.ReaderAt, int64, error) {
	if ra, ok := r.(io.ReaderAt); ok && size > 0 {
		return ra, size, nil
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, 0, err
	}
	return bytes.NewReader(data), int64(len(data)), nil
}

var _ Extractor = (*PDFExtractor)(nil)
