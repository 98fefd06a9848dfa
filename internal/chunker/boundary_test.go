package chunker

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectTableSpans(t *testing.T) {
	t.Run("no tables", func(t *testing.T) {
		text := "Plain narrative text.\nMore narrative text.\n"
		assert.Empty(t, DetectTableSpans(text))
	})

	t.Run("pipe delimited run", func(t *testing.T) {
		text := "Intro line.\n" +
			"| Test | Result | Range |\n" +
			"| Glucose | 95 | 70-99 |\n" +
			"| Sodium | 140 | 135-145 |\n" +
			"Closing line.\n"

		spans := DetectTableSpans(text)
		require.Len(t, spans, 1)

		region := text[spans[0].Start:spans[0].End]
		assert.Contains(t, region, "Glucose")
		assert.Contains(t, region, "Sodium")
		assert.NotContains(t, region, "Intro")
		assert.NotContains(t, region, "Closing")
	})

	t.Run("single table-like line is not a table", func(t *testing.T) {
		text := "before\n| a | b |\nafter\n"
		assert.Empty(t, DetectTableSpans(text))
	})

	t.Run("tab delimited run", func(t *testing.T) {
		text := "Medication\tDose\tFrequency\nMetformin\t500mg\tBID\n"
		spans := DetectTableSpans(text)
		require.Len(t, spans, 1)
	})

	t.Run("inconsistent column counts break the run", func(t *testing.T) {
		text := "a\tb\tc\td\te\nx\ty\n"
		assert.Empty(t, DetectTableSpans(text))
	})

	t.Run("two separate tables", func(t *testing.T) {
		text := "| a | b |\n| c | d |\n\nnarrative\n\ne\tf\ng\th\n"
		spans := DetectTableSpans(text)
		assert.Len(t, spans, 2)
	})
}

func TestPagesForSpan(t *testing.T) {
	pageMap := []PageSpan{
		{Page: 1, Start: 0, End: 100},
		{Page: 2, Start: 100, End: 200},
		{Page: 3, Start: 200, End: 300},
	}

	t.Run("span inside one page", func(t *testing.T) {
		assert.Equal(t, []int{2}, PagesForSpan(pageMap, 120, 180))
	})

	t.Run("span across pages", func(t *testing.T) {
		assert.Equal(t, []int{1, 2, 3}, PagesForSpan(pageMap, 50, 250))
	})

	t.Run("boundary is exclusive", func(t *testing.T) {
		assert.Equal(t, []int{1}, PagesForSpan(pageMap, 0, 100))
	})

	t.Run("nil page map yields nil", func(t *testing.T) {
		assert.Nil(t, PagesForSpan(nil, 0, 100))
	})
}
