package extract

import (
	"context"
	"fmt"
	"io"
)

// TextExtractor handles plain text files. The whole file is one page-less
// text body; any tables inside it are left to the chunker's boundary
// detection.
type TextExtractor struct{}

// Extract reads the full file as UTF-8 text.
func (e *TextExtractor) Extract(ctx context.Context, r io.Reader, size int64) (*Result, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read text file: %w", err)
	}
	return &Result{Text: string(data)}, nil
}

var _ Extractor = (*TextExtractor)(nil)
