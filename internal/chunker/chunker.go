package chunker

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/vitalio/medsearch/internal/config"
)

// ErrEmptyDocument is returned when the extracted text contains nothing to
// chunk. Callers must treat this as an ingestion failure, not as success
// with zero chunks.
var ErrEmptyDocument = errors.New("chunker: document text is empty")

// defaultSeparators is the split hierarchy in decreasing granularity:
// section markers, paragraph breaks, line breaks, sentence and clause
// breaks, word boundaries, and a character-level fallback. The final empty
// separator always matches, so the splitter can never fail to find a
// boundary.
var defaultSeparators = []string{"\n\n## ", "\n\n", "\n", ". ", "? ", "! ", "; ", ", ", " ", ""}

// tableSeparators is the hierarchy for re-splitting oversized tables: row
// delimiter first so partial rows are never produced mid-chunk when
// avoidable, then cell and word boundaries.
var tableSeparators = []string{"\n", "|", " ", ""}

// Chunk is one retrieval unit produced by the splitter.
type Chunk struct {
	Index     int
	Text      string
	WordCount int
	CharCount int
	Pages     []int // sorted, deduplicated; nil when no page map was supplied
	IsTable   bool
}

// Splitter splits document text into overlapping chunks while preserving
// table boundaries and page provenance. It has no I/O and is fully
// deterministic for identical inputs and configuration.
type Splitter struct {
	chunkSize    int
	chunkOverlap int
	tableCeiling int
}

// NewSplitter creates a Splitter from configuration. Zero values fall back
// to defaults. The overlap must be strictly less than the chunk size to
// guarantee forward progress.
func NewSplitter(cfg config.ChunkerConfig) (*Splitter, error) {
	size := cfg.ChunkSize
	if size <= 0 {
		size = 1000
	}
	overlap := cfg.ChunkOverlap
	if overlap < 0 {
		overlap = 0
	}
	ceiling := cfg.TableCeiling
	if ceiling <= 0 {
		ceiling = 2 * size
	}
	if overlap >= size {
		return nil, fmt.Errorf("chunker: overlap (%d) must be less than chunk size (%d)", overlap, size)
	}
	return &Splitter{chunkSize: size, chunkOverlap: overlap, tableCeiling: ceiling}, nil
}

// piece is an atomic split with its absolute offset in the original text.
type piece struct {
	start int
	text  string
}

// Split chunks text into retrieval units. Text covered by a table span is
// kept atomic when it fits under the table ceiling and re-split on row
// boundaries otherwise; all other text follows the generic separator
// hierarchy. When a page map is supplied each chunk records every page its
// span overlaps.
func (s *Splitter) Split(text string, pageMap []PageSpan, tableSpans []Span) ([]Chunk, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyDocument
	}

	spans := normalizeSpans(tableSpans, len(text))

	var chunks []Chunk
	emit := func(start int, body string, isTable bool) {
		trimmed := strings.TrimSpace(body)
		if trimmed == "" {
			return
		}
		chunks = append(chunks, Chunk{
			Index:     len(chunks),
			Text:      body,
			WordCount: len(strings.Fields(body)),
			CharCount: utf8.RuneCountInString(body),
			Pages:     PagesForSpan(pageMap, start, start+len(body)),
			IsTable:   isTable,
		})
	}

	cursor := 0
	for _, span := range spans {
		if span.Start > cursor {
			s.splitRegion(text[cursor:span.Start], cursor, defaultSeparators, func(start int, body string) {
				emit(start, body, false)
			})
		}
		table := text[span.Start:span.End]
		if len(table) <= s.tableCeiling {
			emit(span.Start, table, true)
		} else {
			s.splitRegion(table, span.Start, tableSeparators, func(start int, body string) {
				emit(start, body, true)
			})
		}
		cursor = span.End
	}
	if cursor < len(text) {
		s.splitRegion(text[cursor:], cursor, defaultSeparators, func(start int, body string) {
			emit(start, body, false)
		})
	}

	return chunks, nil
}

// splitRegion breaks one region into atomic pieces along the separator
// hierarchy and merges them into overlapping windows of at most chunkSize.
func (s *Splitter) splitRegion(region string, offset int, separators []string, emit func(start int, body string)) {
	pieces := s.atomize(region, offset, separators)
	s.merge(pieces, emit)
}

// atomize recursively splits region until every piece fits in chunkSize,
// falling through to coarser separators and finally to single characters.
// Separators stay attached to the preceding piece so concatenating all
// pieces reproduces the region exactly.
func (s *Splitter) atomize(region string, offset int, separators []string) []piece {
	if region == "" {
		return nil
	}
	if len(region) <= s.chunkSize {
		return []piece{{start: offset, text: region}}
	}

	sep, rest := nextSeparator(region, separators)
	if sep == "" {
		// Character-level fallback: split into rune-sized pieces.
		var out []piece
		for i, r := range region {
			out = append(out, piece{start: offset + i, text: string(r)})
		}
		return out
	}

	var out []piece
	pos := 0
	for pos < len(region) {
		idx := strings.Index(region[pos:], sep)
		var part string
		if idx < 0 {
			part = region[pos:]
		} else {
			part = region[pos : pos+idx+len(sep)]
		}
		if len(part) <= s.chunkSize {
			out = append(out, piece{start: offset + pos, text: part})
		} else {
			out = append(out, s.atomize(part, offset+pos, rest)...)
		}
		pos += len(part)
	}
	return out
}

// nextSeparator returns the first separator present in region along with
// the remaining (finer) hierarchy to recurse with.
func nextSeparator(region string, separators []string) (string, []string) {
	for i, sep := range separators {
		if sep == "" {
			return "", nil
		}
		if strings.Contains(region, sep) {
			return sep, separators[i+1:]
		}
	}
	return "", nil
}

// merge greedily packs pieces into windows of at most chunkSize and starts
// each new window with up to chunkOverlap trailing characters of the
// previous one.
func (s *Splitter) merge(pieces []piece, emit func(start int, body string)) {
	if len(pieces) == 0 {
		return
	}

	var window []piece
	winLen := 0

	flush := func() {
		if len(window) == 0 {
			return
		}
		var b strings.Builder
		for _, p := range window {
			b.WriteString(p.text)
		}
		emit(window[0].start, b.String())
	}

	for _, p := range pieces {
		if winLen+len(p.text) > s.chunkSize && winLen > 0 {
			flush()
			// Retain the overlap tail for the next window.
			keep := len(window)
			kept := 0
			for keep > 0 && kept+len(window[keep-1].text) <= s.chunkOverlap {
				kept += len(window[keep-1].text)
				keep--
			}
			window = append([]piece(nil), window[keep:]...)
			winLen = kept
			// The carried tail plus a large next piece can still exceed
			// chunkSize; shed head pieces until the piece fits.
			for winLen > 0 && winLen+len(p.text) > s.chunkSize {
				winLen -= len(window[0].text)
				window = window[1:]
			}
		}
		window = append(window, p)
		winLen += len(p.text)
	}
	flush()
}
