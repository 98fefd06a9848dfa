package chunker

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vitalio/medsearch/internal/config"
)

func newTestSplitter(t *testing.T, size, overlap int) *Splitter {
	t.Helper()
	s, err := NewSplitter(config.ChunkerConfig{ChunkSize: size, ChunkOverlap: overlap})
	require.NoError(t, err)
	return s
}

func TestNewSplitter(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		s, err := NewSplitter(config.ChunkerConfig{})
		require.NoError(t, err)
		assert.Equal(t, 1000, s.chunkSize)
		assert.Equal(t, 2000, s.tableCeiling)
	})

	t.Run("overlap must be less than size", func(t *testing.T) {
		_, err := NewSplitter(config.ChunkerConfig{ChunkSize: 100, ChunkOverlap: 100})
		assert.Error(t, err)
	})
}

func TestSplitEmptyInput(t *testing.T) {
	s := newTestSplitter(t, 1000, 200)

	for _, input := range []string{"", "   ", "\n\n\t"} {
		_, err := s.Split(input, nil, nil)
		assert.ErrorIs(t, err, ErrEmptyDocument)
	}
}

func TestSplitSeparatorFreeBlob(t *testing.T) {
	// A single blob with no separators at all falls through to
	// character-level splitting rather than erroring.
	s := newTestSplitter(t, 100, 10)
	blob := strings.Repeat("x", 350)

	chunks, err := s.Split(blob, nil, nil)
	require.NoError(t, err)
	require.NotEmpty(t, chunks)
	for _, c := range chunks {
		assert.LessOrEqual(t, len(c.Text), 100)
	}
}

func TestSplitWordBoundaries(t *testing.T) {
	// 2,400 characters, target 1,000, overlap 200, spaces as the only
	// separator: expect 3 chunks of at most 1,000 characters each with
	// roughly 200 characters of overlap between consecutive chunks.
	words := make([]string, 343)
	for i := range words {
		words[i] = fmt.Sprintf("w%05d", i)
	}
	text := strings.Join(words, " ") // 2,400 characters
	require.Equal(t, 2400, len(text))

	s := newTestSplitter(t, 1000, 200)
	chunks, err := s.Split(text, nil, nil)
	require.NoError(t, err)

	assert.Len(t, chunks, 3)
	for _, c := range chunks {
		assert.LessOrEqual(t, len(c.Text), 1000)
		assert.False(t, c.IsTable)
	}
	for i := 1; i < len(chunks); i++ {
		overlap := overlapLen(chunks[i-1].Text, chunks[i].Text)
		assert.Greater(t, overlap, 100)
		assert.LessOrEqual(t, overlap, 200)
	}
}

func TestSplitLargeParagraphAfterOverlapCarry(t *testing.T) {
	// A paragraph larger than chunkSize-chunkOverlap arriving right after a
	// window flush must not ride on top of the carried overlap tail: the
	// tail is shed so no emitted chunk ever exceeds the configured size.
	blocks := []string{
		strings.Repeat("a", 150),
		strings.Repeat("b", 150),
		strings.Repeat("c", 900),
		strings.Repeat("d", 150),
	}
	text := strings.Join(blocks, "\n\n")

	s := newTestSplitter(t, 1000, 200)
	chunks, err := s.Split(text, nil, nil)
	require.NoError(t, err)
	require.Len(t, chunks, 3)

	for _, c := range chunks {
		assert.LessOrEqual(t, len(c.Text), 1000, "chunk %d", c.Index)
	}
	// The large paragraph stands alone; the small ones pair up around it.
	assert.Contains(t, chunks[1].Text, strings.Repeat("c", 900))
	assert.NotContains(t, chunks[1].Text, "b")
}

// overlapLen returns the length of the longest suffix of a that is a
// prefix of b.
func overlapLen(a, b string) int {
	max := len(a)
	if len(b) < max {
		max = len(b)
	}
	for n := max; n > 0; n-- {
		if strings.HasSuffix(a, b[:n]) {
			return n
		}
	}
	return 0
}

func TestSplitIdempotence(t *testing.T) {
	s := newTestSplitter(t, 120, 20)
	text := "Patient presented with fever. Vitals were stable; labs pending. " +
		strings.Repeat("Follow-up notes were recorded in detail. ", 12)

	first, err := s.Split(text, nil, nil)
	require.NoError(t, err)
	second, err := s.Split(text, nil, nil)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestSplitCoverage(t *testing.T) {
	// Concatenating chunk texts in order must reproduce the original text
	// modulo overlap duplication.
	s := newTestSplitter(t, 80, 0)
	text := strings.Repeat("alpha beta gamma delta epsilon zeta. ", 10)

	chunks, err := s.Split(text, nil, nil)
	require.NoError(t, err)

	var b strings.Builder
	for _, c := range chunks {
		b.WriteString(c.Text)
	}
	assert.Equal(t, text, b.String())
}

func TestSplitMonotonicIndices(t *testing.T) {
	s := newTestSplitter(t, 60, 10)
	text := strings.Repeat("one two three four five six seven eight nine ten. ", 8)

	chunks, err := s.Split(text, nil, nil)
	require.NoError(t, err)
	require.NotEmpty(t, chunks)

	for i, c := range chunks {
		assert.Equal(t, i, c.Index)
	}
}

func TestSplitAtomicTable(t *testing.T) {
	prefix := strings.Repeat("Narrative text before the table. ", 8)
	table := "Glucose|95|70-99\nSodium|140|135-145"
	suffix := strings.Repeat(" Narrative text after the table.", 8)
	text := prefix + table + suffix

	span := Span{Start: len(prefix), End: len(prefix) + len(table)}

	s := newTestSplitter(t, 1000, 200)
	chunks, err := s.Split(text, nil, []Span{span})
	require.NoError(t, err)

	var tableChunks []Chunk
	for _, c := range chunks {
		if c.IsTable {
			tableChunks = append(tableChunks, c)
		}
	}
	require.Len(t, tableChunks, 1)
	assert.Equal(t, table, tableChunks[0].Text)
}

func TestSplitOversizedTableOnRows(t *testing.T) {
	var rows []string
	for i := 0; i < 200; i++ {
		rows = append(rows, "Metformin|500mg|twice daily|oral")
	}
	table := strings.Join(rows, "\n")

	s, err := NewSplitter(config.ChunkerConfig{ChunkSize: 300, ChunkOverlap: 0, TableCeiling: 400})
	require.NoError(t, err)

	chunks, err := s.Split(table, nil, []Span{{Start: 0, End: len(table)}})
	require.NoError(t, err)
	require.Greater(t, len(chunks), 1)

	for _, c := range chunks {
		assert.True(t, c.IsTable)
		// Row-oriented re-splitting: no chunk starts or ends mid-row.
		for _, line := range strings.Split(strings.TrimRight(c.Text, "\n"), "\n") {
			assert.Equal(t, "Metformin|500mg|twice daily|oral", line)
		}
	}
}

func TestSplitPageAttribution(t *testing.T) {
	page1 := strings.Repeat("First page sentence here. ", 10)
	page2 := strings.Repeat("Second page sentence here. ", 10)
	text := page1 + page2
	pageMap := []PageSpan{
		{Page: 1, Start: 0, End: len(page1)},
		{Page: 2, Start: len(page1), End: len(text)},
	}

	t.Run("chunk spanning both pages records both", func(t *testing.T) {
		s := newTestSplitter(t, len(text)+10, 0)
		chunks, err := s.Split(text, pageMap, nil)
		require.NoError(t, err)
		require.Len(t, chunks, 1)
		assert.Equal(t, []int{1, 2}, chunks[0].Pages)
	})

	t.Run("no page map means no page data", func(t *testing.T) {
		s := newTestSplitter(t, 200, 0)
		chunks, err := s.Split(text, nil, nil)
		require.NoError(t, err)
		for _, c := range chunks {
			assert.Nil(t, c.Pages)
		}
	})
}

func TestSplitCounts(t *testing.T) {
	s := newTestSplitter(t, 1000, 0)
	chunks, err := s.Split("alpha beta gamma", nil, nil)
	require.NoError(t, err)
	require.Len(t, chunks, 1)

	assert.Equal(t, 3, chunks[0].WordCount)
	assert.Equal(t, 16, chunks[0].CharCount)
}
