package chunker

import (
	"sort"
	"strings"
)

// Span is a half-open character range [Start, End) into the extracted text.
type Span struct {
	Start int
	End   int
}

// PageSpan maps a page number to the character range its text occupies in
// the full extracted text.
type PageSpan struct {
	Page  int
	Start int
	End   int
}

type delimiterKind int

const (
	delimNone delimiterKind = iota
	delimPipe
	delimTab
)

// classifyLine reports the delimiter kind and column count of a line,
// or delimNone if the line does not look like a table row.
func classifyLine(line string) (delimiterKind, int) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return delimNone, 0
	}
	if strings.Count(trimmed, "|") >= 2 {
		cells := strings.Split(strings.Trim(trimmed, "|"), "|")
		return delimPipe, len(cells)
	}
	if strings.Count(trimmed, "\t") >= 1 {
		cells := strings.Split(trimmed, "\t")
		if len(cells) >= 2 {
			return delimTab, len(cells)
		}
	}
	return delimNone, 0
}

// DetectTableSpans scans raw text for table-like regions: runs of at least
// two consecutive lines sharing the same delimiter kind and a consistent
// column count. Returned spans are sorted and non-overlapping.
func DetectTableSpans(text string) []Span {
	if text == "" {
		return nil
	}

	var spans []Span

	lineStart := 0
	runStart := -1
	runKind := delimNone
	runCols := 0
	runLines := 0
	runEnd := 0

	flush := func() {
		if runLines >= 2 {
			spans = append(spans, Span{Start: runStart, End: runEnd})
		}
		runStart = -1
		runKind = delimNone
		runCols = 0
		runLines = 0
	}

	for lineStart <= len(text) {
		lineEnd := strings.IndexByte(text[lineStart:], '\n')
		var line string
		var nextStart int
		if lineEnd < 0 {
			line = text[lineStart:]
			nextStart = len(text) + 1
			lineEnd = len(text)
		} else {
			lineEnd += lineStart
			line = text[lineStart:lineEnd]
			nextStart = lineEnd + 1
		}

		kind, cols := classifyLine(line)
		// A markdown separator row (|---|---|) may report a different column
		// count than the header; tolerate a difference of one.
		consistent := kind != delimNone && kind == runKind &&
			(cols == runCols || cols == runCols+1 || cols == runCols-1)

		switch {
		case consistent:
			runLines++
			runEnd = lineEnd
		case kind != delimNone:
			flush()
			runStart = lineStart
			runKind = kind
			runCols = cols
			runLines = 1
			runEnd = lineEnd
		default:
			flush()
		}

		lineStart = nextStart
	}
	flush()

	return spans
}

// PagesForSpan returns every page whose character span overlaps [start, end),
// sorted and deduplicated. A nil page map yields nil: page data is
// unavailable, not page zero.
func PagesForSpan(pageMap []PageSpan, start, end int) []int {
	if len(pageMap) == 0 {
		return nil
	}

	seen := make(map[int]bool)
	var pages []int
	for _, ps := range pageMap {
		if ps.Start < end && ps.End > start && !seen[ps.Page] {
			seen[ps.Page] = true
			pages = append(pages, ps.Page)
		}
	}
	sort.Ints(pages)
	return pages
}

// normalizeSpans clamps spans to [0, limit), drops empty or inverted ones,
// sorts them, and merges overlaps so region iteration is well defined.
func normalizeSpans(spans []Span, limit int) []Span {
	var out []Span
	for _, s := range spans {
		if s.Start < 0 {
			s.Start = 0
		}
		if s.End > limit {
			s.End = limit
		}
		if s.End > s.Start {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start < out[j].Start })

	merged := out[:0]
	for _, s := range out {
		if len(merged) > 0 && s.Start < merged[len(merged)-1].End {
			if s.End > merged[len(merged)-1].End {
				merged[len(merged)-1].End = s.End
			}
			continue
		}
		merged = append(merged, s)
	}
	return merged
}
