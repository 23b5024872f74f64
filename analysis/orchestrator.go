// Package analysis implements the clause analysis engine: segmentation of
// raw agreement text into clauses, similarity matching against the reference
// corpus, LLM escalation of ambiguous matches, and extraction of the
// document's essential facts. The engine is transport-independent; callers
// submit text and poll the analysis store for the result.
package analysis

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/fewie27/ultimate/backend/config"
	"github.com/fewie27/ultimate/backend/corpus"
	"github.com/fewie27/ultimate/backend/model"
	"github.com/fewie27/ultimate/backend/pkg/logger"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Embedder turns clause text into a fixed-length vector. Implementations
// must honor the context deadline.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// ResultStore is the slice of the analysis store the orchestrator writes to.
type ResultStore interface {
	Save(a *model.Analysis)
	UpdateStatus(id, status, errMsg string)
	SetResult(id string, findings []model.Finding, essentials model.Essentials, checklist []model.ChecklistItem)
}

// Archiver keeps the submitted raw text retrievable per analysis. Archiving
// is best-effort; a failed archive never fails an analysis.
type Archiver interface {
	StoreText(ctx context.Context, analysisID, filename, text string) error
}

// Orchestrator drives the pipeline for each submitted document and owns the
// analysis identifier lifecycle. Each submission runs as one independent
// unit of work; the only shared state is the read-only corpus snapshot.
type Orchestrator struct {
	cfg       *config.AnalysisConfig
	segmenter *Segmenter
	embedder  Embedder
	escalator *Escalator
	extractor *Extractor
	store     ResultStore
	archive   Archiver

	mu       sync.Mutex
	inflight map[string]context.CancelFunc
}

// NewOrchestrator wires the engine. archive may be nil when no document
// archive is configured.
func NewOrchestrator(cfg *config.AnalysisConfig, embedder Embedder, judge Judge, store ResultStore, archive Archiver) *Orchestrator {
	return &Orchestrator{
		cfg:       cfg,
		segmenter: NewSegmenter(cfg.MinClauseTokens),
		embedder:  embedder,
		escalator: NewEscalator(judge),
		extractor: NewExtractor(judge),
		store:     store,
		archive:   archive,
		inflight:  make(map[string]context.CancelFunc),
	}
}

// Submit mints a new analysis ID, stores a pending placeholder so retrieval
// never races against processing, and starts the pipeline asynchronously.
// The ID is returned immediately; callers poll for completion.
func (o *Orchestrator) Submit(text, filename, tenant string) string {
	id := uuid.New().String()
	now := time.Now()
	o.store.Save(&model.Analysis{
		ID:        id,
		Filename:  filename,
		Tenant:    tenant,
		Text:      text,
		Status:    model.StatusPending,
		Findings:  []model.Finding{},
		Checklist: []model.ChecklistItem{},
		CreatedAt: now,
		UpdatedAt: now,
	})

	ctx, cancel := context.WithCancel(context.Background())
	o.mu.Lock()
	o.inflight[id] = cancel
	o.mu.Unlock()

	go o.run(ctx, id, text, filename)
	return id
}

// Cancel abandons in-flight work for id. The stored entry is untouched; an
// abandoned analysis simply never reaches a terminal state.
func (o *Orchestrator) Cancel(id string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if cancel, ok := o.inflight[id]; ok {
		cancel()
		delete(o.inflight, id)
	}
}

// InflightCount returns the number of running analyses.
func (o *Orchestrator) InflightCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.inflight)
}

func (o *Orchestrator) run(ctx context.Context, id, text, filename string) {
	defer func() {
		o.mu.Lock()
		delete(o.inflight, id)
		o.mu.Unlock()
	}()
	defer func() {
		if r := recover(); r != nil {
			logger.Error(ctx, "analysis pipeline panicked", "analysis_id", id, "panic", r)
			o.store.UpdateStatus(id, model.StatusFailed, fmt.Sprintf("pipeline panic: %v", r))
		}
	}()

	ctx = context.WithValue(ctx, logger.AnalysisIDKey, id)
	start := time.Now()

	// Empty input degrades to an empty complete result, not an error.
	// Whitespace-only input keeps the coverage guarantee: one unremarkable
	// finding spans the whole document.
	if strings.TrimSpace(text) == "" {
		findings := []model.Finding{}
		if len(text) > 0 {
			findings = append(findings, model.Finding{
				ID:         "finding-1",
				Text:       text,
				Start:      0,
				End:        len(text),
				Categories: model.NewCategorySet(model.CategoryMatchFound),
			})
		}
		o.store.SetResult(id, findings, model.Essentials{}, []model.ChecklistItem{})
		logger.Info(ctx, "analysis complete", "clauses", len(findings), "empty_input", true)
		return
	}

	o.store.UpdateStatus(id, model.StatusProcessing, "")

	if o.archive != nil {
		if err := o.archive.StoreText(ctx, id, filename, text); err != nil {
			logger.Warn(ctx, "failed to archive document text", "error", err)
		}
	}

	matcher := NewMatcher(corpus.Active(), o.cfg)

	// Essentials extraction and the clause pipeline have no data dependency
	// and run concurrently; neither branch aborts the other.
	var (
		essentials    model.Essentials
		essErr        error
		findings      []model.Finding
		checklist     []model.ChecklistItem
		matcherFailed bool
	)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		essentials, essErr = o.extractor.Extract(ctx, text)
		if essErr != nil {
			logger.Warn(ctx, "essentials extraction failed", "error", essErr)
		}
	}()
	go func() {
		defer wg.Done()
		findings, checklist, matcherFailed = o.classifyClauses(ctx, matcher, text)
	}()
	wg.Wait()

	if ctx.Err() != nil {
		logger.Info(ctx, "analysis abandoned", "reason", ctx.Err())
		return
	}

	// Total pipeline failure only: both branches dead. A failed essentials
	// pass or sporadic per-clause degradation still completes.
	if matcherFailed && essErr != nil {
		o.store.UpdateStatus(id, model.StatusFailed, "clause matching and essentials extraction both failed")
		return
	}

	o.store.SetResult(id, findings, essentials, checklist)
	logger.Info(ctx, "analysis complete",
		"clauses", len(findings),
		"duration_ms", time.Since(start).Milliseconds(),
	)
}

// classifyClauses runs the clause pipeline: segment, then match and escalate
// each clause with bounded parallelism. The returned bool reports total
// matcher failure (every single clause failed to embed).
func (o *Orchestrator) classifyClauses(ctx context.Context, matcher *Matcher, text string) ([]model.Finding, []model.ChecklistItem, bool) {
	clauses := o.segmenter.Segment(text)
	if len(clauses) == 0 {
		return []model.Finding{}, matcher.Checklist(nil), false
	}

	findings := make([]model.Finding, len(clauses))
	embeddings := make([][]float32, len(clauses))

	g := new(errgroup.Group)
	g.SetLimit(o.cfg.MaxClauseWorkers)
	for i, clause := range clauses {
		g.Go(func() error {
			finding := model.Finding{
				ID:    fmt.Sprintf("finding-%d", i+1),
				Text:  text[clause.Start:clause.End],
				Start: clause.Start,
				End:   clause.End,
			}
			cats, desc, emb := o.classifyClause(ctx, matcher, strings.TrimSpace(finding.Text), text)
			finding.Categories = cats
			finding.Description = desc
			findings[i] = finding
			embeddings[i] = emb
			return nil
		})
	}
	g.Wait()

	var clauseEmbeddings [][]float32
	for _, emb := range embeddings {
		if emb != nil {
			clauseEmbeddings = append(clauseEmbeddings, emb)
		}
	}
	checklist := matcher.Checklist(clauseEmbeddings)

	return findings, checklist, len(clauseEmbeddings) == 0
}

// classifyClause resolves one clause to its category set. Every failure path
// degrades: embedding failure marks the clause match_found, escalation
// failure falls back to the similarity hint.
func (o *Orchestrator) classifyClause(ctx context.Context, matcher *Matcher, clauseText, document string) (model.CategorySet, string, []float32) {
	embedding, err := o.embedder.Embed(ctx, clauseText)
	if err != nil {
		logger.Warn(ctx, "clause embedding failed, marking clause as match_found", "error", err)
		return model.NewCategorySet(model.CategoryMatchFound), "", nil
	}

	result := matcher.Decide(embedding)
	switch result.Decision {
	case DecisionResolved:
		return model.NewCategorySet(result.Category), result.Description, embedding
	case DecisionAmbiguous:
		cats, desc, err := o.escalator.Escalate(ctx, clauseText, result.Category, result.Description, document)
		if err != nil {
			logger.Warn(ctx, "escalation failed, falling back to similarity hint",
				"error", err,
				"hint", result.Category,
			)
			return model.NewCategorySet(result.Category), result.Description, embedding
		}
		return cats, desc, embedding
	default:
		return model.NewCategorySet(model.CategoryMatchFound), "", embedding
	}
}
