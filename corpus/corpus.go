// Package corpus holds the reference set the similarity matcher scores
// against: exemplar clauses with known categories, and the checklist of
// clauses every rental agreement must contain. The loaded library is
// immutable; replacing it is an explicit swap, never an in-place mutation,
// so in-flight analyses always see a consistent corpus.
package corpus

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync/atomic"

	"github.com/fewie27/ultimate/backend/model"
	"gopkg.in/yaml.v3"
)

// Embedder is the slice of the embedding provider the corpus needs to fill
// in vectors that the corpus file does not carry.
type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// Exemplar is a pre-embedded reference clause with a known category.
type Exemplar struct {
	Text        string    `yaml:"text"`
	Category    string    `yaml:"category"`
	Description string    `yaml:"description"`
	Embedding   []float32 `yaml:"embedding,omitempty"`
}

// Requirement is one entry of the mandatory-clause checklist.
type Requirement struct {
	Text        string    `yaml:"text"`
	Description string    `yaml:"description"`
	Embedding   []float32 `yaml:"embedding,omitempty"`
}

// Library is one immutable snapshot of the reference corpus.
type Library struct {
	Exemplars    []Exemplar    `yaml:"exemplars"`
	Requirements []Requirement `yaml:"requirements"`
}

type corpusFile struct {
	Exemplars    []Exemplar    `yaml:"exemplars"`
	Requirements []Requirement `yaml:"requirements"`
}

// Load reads and validates a corpus file. Embeddings may be missing; call
// EnsureEmbeddings before putting the library into service.
func Load(path string) (*Library, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read corpus file: %w", err)
	}

	var file corpusFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse corpus file: %w", err)
	}

	for i, ex := range file.Exemplars {
		if ex.Text == "" {
			return nil, fmt.Errorf("exemplar %d has empty text", i)
		}
		switch ex.Category {
		case model.CategoryMissing, model.CategoryUnusual, model.CategoryInvalid:
		default:
			return nil, fmt.Errorf("exemplar %d has unknown category %q", i, ex.Category)
		}
	}
	for i, req := range file.Requirements {
		if req.Text == "" {
			return nil, fmt.Errorf("requirement %d has empty text", i)
		}
	}

	return &Library{
		Exemplars:    file.Exemplars,
		Requirements: file.Requirements,
	}, nil
}

// EnsureEmbeddings computes vectors for all entries that do not carry one in
// the corpus file. It batches one call for exemplars and one for
// requirements to keep startup cheap.
func (l *Library) EnsureEmbeddings(ctx context.Context, embedder Embedder) error {
	var missingTexts []string
	var missingIdx []int
	for i := range l.Exemplars {
		if len(l.Exemplars[i].Embedding) == 0 {
			missingTexts = append(missingTexts, l.Exemplars[i].Text)
			missingIdx = append(missingIdx, i)
		}
	}
	if len(missingTexts) > 0 {
		vectors, err := embedder.EmbedBatch(ctx, missingTexts)
		if err != nil {
			return fmt.Errorf("failed to embed exemplars: %w", err)
		}
		if len(vectors) != len(missingTexts) {
			return fmt.Errorf("embedder returned %d vectors for %d exemplars", len(vectors), len(missingTexts))
		}
		for j, i := range missingIdx {
			l.Exemplars[i].Embedding = vectors[j]
		}
	}

	missingTexts = missingTexts[:0]
	missingIdx = missingIdx[:0]
	for i := range l.Requirements {
		if len(l.Requirements[i].Embedding) == 0 {
			missingTexts = append(missingTexts, l.Requirements[i].Text)
			missingIdx = append(missingIdx, i)
		}
	}
	if len(missingTexts) > 0 {
		vectors, err := embedder.EmbedBatch(ctx, missingTexts)
		if err != nil {
			return fmt.Errorf("failed to embed requirements: %w", err)
		}
		if len(vectors) != len(missingTexts) {
			return fmt.Errorf("embedder returned %d vectors for %d requirements", len(vectors), len(missingTexts))
		}
		for j, i := range missingIdx {
			l.Requirements[i].Embedding = vectors[j]
		}
	}

	slog.Info("reference corpus ready",
		"exemplars", len(l.Exemplars),
		"requirements", len(l.Requirements),
	)
	return nil
}

var active atomic.Pointer[Library]

// Swap replaces the process-wide corpus snapshot.
func Swap(l *Library) {
	active.Store(l)
}

// Active returns the current corpus snapshot, or nil before the first Swap.
func Active() *Library {
	return active.Load()
}
