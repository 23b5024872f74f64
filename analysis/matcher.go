package analysis

import (
	"math"
	"sort"

	"github.com/fewie27/ultimate/backend/config"
	"github.com/fewie27/ultimate/backend/corpus"
	"github.com/fewie27/ultimate/backend/model"
)

// Decision classifies the outcome of a similarity lookup.
type Decision int

const (
	// DecisionNoMatch means no exemplar came close; the clause is present
	// but raises no issue.
	DecisionNoMatch Decision = iota
	// DecisionAmbiguous means the best match sits between the thresholds
	// (or is a missing-candidate) and needs an LLM judgment.
	DecisionAmbiguous
	// DecisionResolved means the best match is confident enough to adopt
	// the exemplar's category directly.
	DecisionResolved
)

// Neighbor is one exemplar together with its similarity to a clause.
type Neighbor struct {
	Exemplar   *corpus.Exemplar
	Similarity float64
}

// MatchResult is the outcome of matching one clause embedding against the
// reference corpus. For ambiguous results, Category and Description carry
// the hint forwarded to the escalator.
type MatchResult struct {
	Decision    Decision
	Category    string
	Description string
	Similarity  float64
	Neighbors   []Neighbor
}

// Matcher scores clause embeddings against one corpus snapshot. It is pure
// computation over in-memory vectors; the snapshot never changes under it.
type Matcher struct {
	library *corpus.Library
	cfg     *config.AnalysisConfig
}

func NewMatcher(library *corpus.Library, cfg *config.AnalysisConfig) *Matcher {
	return &Matcher{library: library, cfg: cfg}
}

// tieEpsilon bounds the similarity difference under which two exemplars
// count as tied and severity breaks the tie.
const tieEpsilon = 1e-6

// severity orders categories for tie-breaking: invalid > unusual > fehlend.
func severity(category string) int {
	switch category {
	case model.CategoryInvalid:
		return 3
	case model.CategoryUnusual:
		return 2
	case model.CategoryMissing:
		return 1
	}
	return 0
}

// Cosine returns the cosine similarity of two vectors, 0 for mismatched
// dimensions or zero vectors.
func Cosine(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// Decide matches one clause embedding against the corpus and applies the
// threshold policy. Missing-candidate exemplars always escalate, even above
// the high threshold, because "this clause looks like something that is
// usually absent" is a document-level question the matcher cannot settle.
func (m *Matcher) Decide(embedding []float32) MatchResult {
	neighbors := m.nearest(embedding)
	if len(neighbors) == 0 {
		return MatchResult{Decision: DecisionNoMatch}
	}

	best := neighbors[0]
	result := MatchResult{
		Category:    best.Exemplar.Category,
		Description: best.Exemplar.Description,
		Similarity:  best.Similarity,
		Neighbors:   neighbors,
	}

	switch {
	case best.Similarity < m.cfg.LowThreshold:
		result.Decision = DecisionNoMatch
		result.Category = ""
		result.Description = ""
	case best.Similarity >= m.cfg.HighThreshold && best.Exemplar.Category != model.CategoryMissing:
		result.Decision = DecisionResolved
	default:
		result.Decision = DecisionAmbiguous
	}
	return result
}

// nearest returns the top-k exemplars by cosine similarity. Exemplars tied
// within tieEpsilon are ordered by severity.
func (m *Matcher) nearest(embedding []float32) []Neighbor {
	if m.library == nil || len(m.library.Exemplars) == 0 {
		return nil
	}

	neighbors := make([]Neighbor, 0, len(m.library.Exemplars))
	for i := range m.library.Exemplars {
		ex := &m.library.Exemplars[i]
		neighbors = append(neighbors, Neighbor{
			Exemplar:   ex,
			Similarity: Cosine(embedding, ex.Embedding),
		})
	}

	sort.SliceStable(neighbors, func(i, j int) bool {
		if math.Abs(neighbors[i].Similarity-neighbors[j].Similarity) <= tieEpsilon {
			return severity(neighbors[i].Exemplar.Category) > severity(neighbors[j].Exemplar.Category)
		}
		return neighbors[i].Similarity > neighbors[j].Similarity
	})

	k := m.cfg.TopK
	if k <= 0 || k > len(neighbors) {
		k = len(neighbors)
	}
	return neighbors[:k]
}

// Checklist reports, for every required clause, whether any clause of the
// document covers it. Requirements missing everywhere are document-level
// signals; they never attach to individual clause findings.
func (m *Matcher) Checklist(clauseEmbeddings [][]float32) []model.ChecklistItem {
	if m.library == nil {
		return []model.ChecklistItem{}
	}

	items := make([]model.ChecklistItem, 0, len(m.library.Requirements))
	for i := range m.library.Requirements {
		req := &m.library.Requirements[i]
		present := false
		for _, emb := range clauseEmbeddings {
			if Cosine(emb, req.Embedding) >= m.cfg.PresenceThreshold {
				present = true
				break
			}
		}
		items = append(items, model.ChecklistItem{
			Requirement: req.Text,
			Description: req.Description,
			Present:     present,
		})
	}
	return items
}
