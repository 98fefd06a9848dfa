package classifier

import (
	"strings"

	"github.com/vitalio/medsearch/internal/models"
)

// Classifier assigns clinical categories to extracted tables and extracts
// normalized entities from text. It is a pure keyword matcher: given fixed
// vocabularies, identical input always yields the identical category.
type Classifier struct{}

// New creates a Classifier.
func New() *Classifier {
	return &Classifier{}
}

// countHits returns the number of vocabulary keywords present in content.
func countHits(content string, vocabulary []string) int {
	hits := 0
	for _, kw := range vocabulary {
		if strings.Contains(content, kw) {
			hits++
		}
	}
	return hits
}

// Classify assigns a category to a table from its headers and a sample of
// its row content. The category with the strictly highest keyword hit
// count wins; ties break in fixed priority order (lab results, then
// medications, then vitals), and zero hits across all vocabularies falls
// back to the general category. The returned confidence is in [0, 1].
func (c *Classifier) Classify(headers []string, sample string) (models.TableCategory, float64) {
	content := strings.ToLower(strings.Join(headers, " ") + " " + sample)

	scores := []struct {
		category models.TableCategory
		hits     int
	}{
		{models.TableCategoryLabResults, countHits(content, labKeywords)},
		{models.TableCategoryMedications, countHits(content, medicationKeywords)},
		{models.TableCategoryVitals, countHits(content, vitalsKeywords)},
	}

	best := scores[0]
	for _, s := range scores[1:] {
		if s.hits > best.hits {
			best = s
		}
	}
	if best.hits == 0 {
		return models.TableCategoryGeneral, 0.25
	}

	confidence := 0.5 + 0.1*float64(best.hits)
	if confidence > 0.95 {
		confidence = 0.95
	}
	return best.category, confidence
}

// ExtractEntities returns the normalized vocabulary entities present in
// text, in insertion order of first match, with duplicates removed.
func (c *Classifier) ExtractEntities(text string) []string {
	lowered := strings.ToLower(text)

	seen := make(map[string]bool)
	var entities []string
	for _, entity := range entityVocabulary {
		if seen[entity] {
			continue
		}
		if strings.Contains(lowered, strings.ToLower(entity)) {
			seen[entity] = true
			entities = append(entities, entity)
		}
	}
	return entities
}

// IsMedicalTable is the cheap pre-filter that decides whether an extracted
// table is worth persisting. Tables failing it are dropped silently by the
// ingestion pipeline (counted, not treated as an error).
func (c *Classifier) IsMedicalTable(headers []string, sample string) bool {
	content := strings.ToLower(strings.Join(headers, " ") + " " + sample)

	if countHits(content, labKeywords) > 0 ||
		countHits(content, medicationKeywords) > 0 ||
		countHits(content, vitalsKeywords) > 0 {
		return true
	}
	return countHits(content, generalMedicalKeywords) > 0
}

// SearchableText builds the lexical projection of a table: headers followed
// by the flattened row content. The projection is what gets embedded and
// what the structured search mode matches against.
func (c *Classifier) SearchableText(headers []string, rows [][]string) string {
	var b strings.Builder
	b.WriteString(strings.Join(headers, " "))
	for _, row := range rows {
		b.WriteString("\n")
		b.WriteString(strings.Join(row, " "))
	}
	return b.String()
}
