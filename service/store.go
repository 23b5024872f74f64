package service

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/fewie27/ultimate/backend/config"
	"github.com/fewie27/ultimate/backend/model"
)

// AnalysisStore is an in-memory store for analyses
// In production, this should be replaced with a database
type AnalysisStore struct {
	analyses    map[string]*model.Analysis
	mu          sync.RWMutex
	maxAnalyses int // Maximum analyses to keep, 0 = unlimited
}

var (
	globalStore *AnalysisStore
	storeOnce   sync.Once
)

// InitAnalysisStore initializes the global analysis store with configuration
func InitAnalysisStore(cfg *config.StoreConfig) {
	storeOnce.Do(func() {
		maxAnalyses := cfg.MaxAnalyses
		if maxAnalyses < 0 {
			maxAnalyses = 0
		}
		globalStore = &AnalysisStore{
			analyses:    make(map[string]*model.Analysis),
			maxAnalyses: maxAnalyses,
		}
		slog.Info("analysis store initialized", "max_analyses", maxAnalyses)
	})
}

// GetAnalysisStore returns the global analysis store
func GetAnalysisStore() *AnalysisStore {
	if globalStore == nil {
		// Fallback initialization with default settings
		globalStore = &AnalysisStore{
			analyses:    make(map[string]*model.Analysis),
			maxAnalyses: 100, // Default: keep 100 analyses
		}
	}
	return globalStore
}

func (s *AnalysisStore) Save(a *model.Analysis) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a.UpdatedAt = time.Now()
	s.analyses[a.ID] = a

	// Cleanup if exceeds max
	s.cleanupIfNeeded()
}

// Get returns a deep copy of the analysis, or nil for an unknown ID. The
// pipeline goroutine mutates the stored entry under the store lock; handing
// out the live pointer would let retrieval callers read it unsynchronized.
func (s *AnalysisStore) Get(id string) *model.Analysis {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if a, ok := s.analyses[id]; ok {
		return a.Clone()
	}
	return nil
}

func (s *AnalysisStore) GetByTenant(tenant string) []*model.Analysis {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*model.Analysis
	for _, a := range s.analyses {
		if a.Tenant == tenant {
			result = append(result, a.Clone())
		}
	}
	return result
}

func (s *AnalysisStore) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.analyses, id)
}

// UpdateStatus transitions an analysis to a new status. Terminal analyses
// are immutable; late writes from abandoned pipelines are dropped.
func (s *AnalysisStore) UpdateStatus(id, status string, errMsg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a, ok := s.analyses[id]; ok {
		if model.Terminal(a.Status) {
			slog.Warn("ignoring status update on terminal analysis",
				"analysis_id", id,
				"status", a.Status,
				"attempted", status,
			)
			return
		}
		a.Status = status
		a.ErrorMsg = errMsg
		a.UpdatedAt = time.Now()
	}
}

// SetResult stores the complete analysis outcome and marks the analysis
// complete in one critical section, so readers never observe a half-written
// result.
func (s *AnalysisStore) SetResult(id string, findings []model.Finding, essentials model.Essentials, checklist []model.ChecklistItem) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a, ok := s.analyses[id]; ok {
		if model.Terminal(a.Status) {
			slog.Warn("ignoring result write on terminal analysis",
				"analysis_id", id,
				"status", a.Status,
			)
			return
		}
		a.Findings = findings
		a.Essentials = essentials
		a.Checklist = checklist
		a.Status = model.StatusComplete
		a.ErrorMsg = ""
		a.UpdatedAt = time.Now()
	}
}

// cleanupIfNeeded removes oldest analyses if store exceeds maxAnalyses
// Must be called with lock held
func (s *AnalysisStore) cleanupIfNeeded() {
	if s.maxAnalyses <= 0 {
		return // Unlimited
	}

	if len(s.analyses) <= s.maxAnalyses {
		return
	}

	// Sort analyses by creation time
	analyses := make([]*model.Analysis, 0, len(s.analyses))
	for _, a := range s.analyses {
		analyses = append(analyses, a)
	}
	sort.Slice(analyses, func(i, j int) bool {
		return analyses[i].CreatedAt.Before(analyses[j].CreatedAt)
	})

	// Remove oldest analyses
	removeCount := len(analyses) - s.maxAnalyses
	for i := 0; i < removeCount; i++ {
		slog.Info("auto-cleaning old analysis",
			"analysis_id", analyses[i].ID,
			"created_at", analyses[i].CreatedAt,
		)
		delete(s.analyses, analyses[i].ID)
	}
}

// Count returns the number of analyses in the store
func (s *AnalysisStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.analyses)
}
