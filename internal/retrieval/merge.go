package retrieval

import (
	"sort"

	"github.com/vitalio/medsearch/internal/models"
)

// Source tags which sub-query produced (or contributed to) a result.
const (
	SourceSemantic = "semantic"
	SourceLexical  = "lexical"
)

// Hit is a scored reference returned by one datastore query. The retrieval
// engine consumes hits; it never talks to the datastores' native types.
type Hit struct {
	ID         string
	DocumentID string
	Text       string
	Score      float64
	Pages      []int
	IsTable    bool
	Category   models.TableCategory
}

// Result is a ranked entry of the final merged result list. Transient, not
// persisted.
type Result struct {
	ID            string               `json:"id"`
	DocumentID    string               `json:"document_id"`
	Text          string               `json:"text"`
	SemanticScore float64              `json:"semantic_score"`
	LexicalScore  float64              `json:"lexical_score"`
	Score         float64              `json:"score"`
	Sources       []string             `json:"sources"`
	Pages         []int                `json:"pages,omitempty"`
	IsTable       bool                 `json:"is_table,omitempty"`
	Category      models.TableCategory `json:"category,omitempty"`
}

// mergeWeighted unions semantic and lexical hits keyed by identity. A hit
// present in both sets has its two weighted scores summed (not max'd) and
// carries both source tags; a hit present in one set carries only that
// source's weighted contribution. The merged size is therefore at most
// |semantic| + |lexical|, and strictly less whenever the sets intersect.
func mergeWeighted(semantic, lexical []Hit, semanticWeight, lexicalWeight float64) []Result {
	merged := make(map[string]*Result, len(semantic)+len(lexical))
	order := make([]string, 0, len(semantic)+len(lexical))

	for _, h := range semantic {
		r := &Result{
			ID:            h.ID,
			DocumentID:    h.DocumentID,
			Text:          h.Text,
			SemanticScore: h.Score,
			Score:         h.Score * semanticWeight,
			Sources:       []string{SourceSemantic},
			Pages:         h.Pages,
			IsTable:       h.IsTable,
			Category:      h.Category,
		}
		merged[h.ID] = r
		order = append(order, h.ID)
	}

	for _, h := range lexical {
		if r, ok := merged[h.ID]; ok {
			r.LexicalScore = h.Score
			r.Score += h.Score * lexicalWeight
			r.Sources = append(r.Sources, SourceLexical)
			continue
		}
		merged[h.ID] = &Result{
			ID:           h.ID,
			DocumentID:   h.DocumentID,
			Text:         h.Text,
			LexicalScore: h.Score,
			Score:        h.Score * lexicalWeight,
			Sources:      []string{SourceLexical},
			Pages:        h.Pages,
			IsTable:      h.IsTable,
			Category:     h.Category,
		}
		order = append(order, h.ID)
	}

	results := make([]Result, 0, len(order))
	for _, id := range order {
		results = append(results, *merged[id])
	}
	return results
}

// rank filters results below threshold, sorts descending by combined score
// (id ascending as a stable tiebreak), and caps the list at limit.
func rank(results []Result, threshold float64, limit int) []Result {
	filtered := results[:0]
	for _, r := range results {
		if r.Score >= threshold {
			filtered = append(filtered, r)
		}
	}

	sort.Slice(filtered, func(i, j int) bool {
		if filtered[i].Score != filtered[j].Score {
			return filtered[i].Score > filtered[j].Score
		}
		return filtered[i].ID < filtered[j].ID
	})

	if limit > 0 && len(filtered) > limit {
		filtered = filtered[:limit]
	}
	return filtered
}
