package extract

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestForMime(t *testing.T) {
	t.Run("known types", func(t *testing.T) {
		for _, mt := range []string{
			"text/plain",
			"text/plain; charset=utf-8",
			"application/pdf",
			"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
			"application/json",
		} {
			ex, err := ForMime(mt)
			require.NoError(t, err, mt)
			require.NotNil(t, ex, mt)
		}
	})

	t.Run("unsupported type", func(t *testing.T) {
		_, err := ForMime("image/png")
		assert.ErrorIs(t, err, ErrUnsupportedFormat)
	})
}

func TestTextExtractor(t *testing.T) {
	content := "Patient presented with fatigue.\nLab work ordered."
	res, err := (&TextExtractor{}).Extract(context.Background(), strings.NewReader(content), int64(len(content)))
	require.NoError(t, err)

	assert.Equal(t, content, res.Text)
	assert.Empty(t, res.Tables)
	assert.Nil(t, res.PageMap)
	assert.Equal(t, 0, res.PageCount())
}

func TestJSONExtractor(t *testing.T) {
	t.Run("valid payload", func(t *testing.T) {
		payload := `{
			"title": "Discharge Summary",
			"text": "Patient stable at discharge.",
			"tables": [
				{
					"headers": ["Test", "Result", "Reference Range"],
					"rows": [["Glucose", "105 mg/dL", "70-100"], ["HbA1c", "6.1%", "<5.7"]],
					"page": 2
				}
			]
		}`
		res, err := (&JSONExtractor{}).Extract(context.Background(), strings.NewReader(payload), int64(len(payload)))
		require.NoError(t, err)

		assert.Contains(t, res.Text, "Discharge Summary")
		assert.Contains(t, res.Text, "Patient stable at discharge.")
		assert.Contains(t, res.Text, "| Glucose | 105 mg/dL | 70-100 |")

		require.Len(t, res.Tables, 1)
		assert.Equal(t, []string{"Test", "Result", "Reference Range"}, res.Tables[0].Headers)
		assert.Len(t, res.Tables[0].Rows, 2)
		assert.Equal(t, 2, res.Tables[0].Page)
		assert.Equal(t, 2, res.PageCount())

		require.Len(t, res.PageMap, 1)
		span := res.PageMap[0]
		assert.Equal(t, 2, span.Page)
		assert.Contains(t, res.Text[span.Start:span.End], "Glucose")
	})

	t.Run("tables only", func(t *testing.T) {
		payload := `{"tables": [{"headers": ["Drug", "Dose"], "rows": [["Metformin", "500mg"]], "page": 0}]}`
		res, err := (&JSONExtractor{}).Extract(context.Background(), strings.NewReader(payload), int64(len(payload)))
		require.NoError(t, err)
		require.Len(t, res.Tables, 1)
		assert.Empty(t, res.PageMap) // page 0 carries no provenance
	})

	t.Run("empty payload rejected", func(t *testing.T) {
		payload := `{"title": "Empty"}`
		_, err := (&JSONExtractor{}).Extract(context.Background(), strings.NewReader(payload), int64(len(payload)))
		assert.ErrorIs(t, err, ErrInvalidPayload)
	})

	t.Run("ragged rows rejected", func(t *testing.T) {
		payload := `{"tables": [{"headers": ["A", "B"], "rows": [["only one cell"]], "page": 1}]}`
		_, err := (&JSONExtractor{}).Extract(context.Background(), strings.NewReader(payload), int64(len(payload)))
		assert.ErrorIs(t, err, ErrInvalidPayload)
	})

	t.Run("headerless table rejected", func(t *testing.T) {
		payload := `{"tables": [{"headers": [], "rows": [["x", "y"]], "page": 1}]}`
		_, err := (&JSONExtractor{}).Extract(context.Background(), strings.NewReader(payload), int64(len(payload)))
		assert.ErrorIs(t, err, ErrInvalidPayload)
	})

	t.Run("unknown fields rejected", func(t *testing.T) {
		payload := `{"text": "hello", "unexpected": true}`
		_, err := (&JSONExtractor{}).Extract(context.Background(), strings.NewReader(payload), int64(len(payload)))
		assert.ErrorIs(t, err, ErrInvalidPayload)
	})

	t.Run("malformed json rejected", func(t *testing.T) {
		payload := `{"text": "unterminated`
		_, err := (&JSONExtractor{}).Extract(context.Background(), strings.NewReader(payload), int64(len(payload)))
		assert.ErrorIs(t, err, ErrInvalidPayload)
	})
}

func TestParseDelimited(t *testing.T) {
	t.Run("pipe table", func(t *testing.T) {
		text := "| Test | Result |\n|---|---|\n| Glucose | 105 |\n| HbA1c | 6.1 |"
		headers, rows, ok := ParseDelimited(text)
		require.True(t, ok)
		assert.Equal(t, []string{"Test", "Result"}, headers)
		assert.Equal(t, [][]string{{"Glucose", "105"}, {"HbA1c", "6.1"}}, rows)
	})

	t.Run("tab table", func(t *testing.T) {
		text := "Drug\tDose\nMetformin\t500mg"
		headers, rows, ok := ParseDelimited(text)
		require.True(t, ok)
		assert.Equal(t, []string{"Drug", "Dose"}, headers)
		assert.Equal(t, [][]string{{"Metformin", "500mg"}}, rows)
	})

	t.Run("ragged body row padded", func(t *testing.T) {
		text := "| A | B | C |\n| 1 | 2 | 3 |\n| 4 | 5 |"
		// The two-cell line still splits into >= 2 cells and is kept.
		headers, rows, ok := ParseDelimited(text)
		require.True(t, ok)
		assert.Len(t, headers, 3)
		assert.Equal(t, []string{"4", "5", ""}, rows[1])
	})

	t.Run("too few lines", func(t *testing.T) {
		_, _, ok := ParseDelimited("| only | header |")
		assert.False(t, ok)
	})

	t.Run("prose is not a table", func(t *testing.T) {
		_, _, ok := ParseDelimited("The patient was seen today.\nNo complaints reported.")
		assert.False(t, ok)
	})
}
