package model

import (
	"time"
)

// Finding categories. A clause can carry more than one: matching and
// escalation assert labels independently.
const (
	CategoryMissing    = "fehlend"
	CategoryUnusual    = "unusual"
	CategoryInvalid    = "invalid"
	CategoryValid      = "valid"
	CategoryMatchFound = "match_found"
)

// KnownCategory reports whether c is one of the finding categories.
func KnownCategory(c string) bool {
	switch c {
	case CategoryMissing, CategoryUnusual, CategoryInvalid, CategoryValid, CategoryMatchFound:
		return true
	}
	return false
}

// CategorySet is an insertion-ordered set of finding categories.
// It marshals as a plain JSON array, which is the shape the UI expects.
type CategorySet []string

// NewCategorySet builds a set from the given categories, dropping duplicates.
func NewCategorySet(categories ...string) CategorySet {
	var s CategorySet
	for _, c := range categories {
		s = s.Add(c)
	}
	return s
}

// Add returns the set with c included. Duplicates are ignored.
func (s CategorySet) Add(c string) CategorySet {
	if s.Has(c) {
		return s
	}
	return append(s, c)
}

// Has reports whether c is in the set.
func (s CategorySet) Has(c string) bool {
	for _, v := range s {
		if v == c {
			return true
		}
	}
	return false
}

// Finding is the classification attached to one clause of the document.
// Text is the exact slice of the original document, including trailing
// whitespace, so that concatenating all findings reproduces the document.
type Finding struct {
	ID          string      `json:"id"`
	Text        string      `json:"text"`
	Start       int         `json:"start"`
	End         int         `json:"end"`
	Categories  CategorySet `json:"category"`
	Description string      `json:"description"`
}

// Essentials are the four document-level facts extracted independently of
// clause classification. A nil field means "not found in the document",
// which is a valid result, never an error.
type Essentials struct {
	Vertragsparteien *string `json:"vertragsparteien"`
	Mietgegenstand   *string `json:"mietgegenstand"`
	Miete            *string `json:"miete"`
	Mietbeginn       *string `json:"mietbeginn"`
}

// ChecklistItem reports whether a mandatory clause is covered anywhere in
// the document. Absent requirements are document-level signals; they are
// never attached to a specific clause finding.
type ChecklistItem struct {
	Requirement string `json:"requirement"`
	Description string `json:"description"`
	Present     bool   `json:"present"`
}

// Analysis is one submitted document together with its (eventual) results.
type Analysis struct {
	ID         string          `json:"id"`
	Filename   string          `json:"filename"`
	Tenant     string          `json:"tenant"`
	Text       string          `json:"-"`
	Status     string          `json:"status"`
	Findings   []Finding       `json:"results"`
	Essentials Essentials      `json:"essentials"`
	Checklist  []ChecklistItem `json:"checklist"`
	ErrorMsg   string          `json:"error_msg,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// Clone returns a deep copy of the analysis. Retrieval callers read the
// copy while the pipeline keeps mutating the stored original under the
// store lock, so the copy must not share any mutable state with it.
func (a *Analysis) Clone() *Analysis {
	cp := *a
	if a.Findings != nil {
		cp.Findings = make([]Finding, len(a.Findings))
		copy(cp.Findings, a.Findings)
		for i := range cp.Findings {
			cp.Findings[i].Categories = append(CategorySet(nil), a.Findings[i].Categories...)
		}
	}
	if a.Checklist != nil {
		cp.Checklist = append([]ChecklistItem(nil), a.Checklist...)
	}
	cp.Essentials = Essentials{
		Vertragsparteien: cloneFact(a.Essentials.Vertragsparteien),
		Mietgegenstand:   cloneFact(a.Essentials.Mietgegenstand),
		Miete:            cloneFact(a.Essentials.Miete),
		Mietbeginn:       cloneFact(a.Essentials.Mietbeginn),
	}
	return &cp
}

func cloneFact(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

// Analysis status constants. pending and processing are non-terminal;
// complete and failed are terminal and immutable.
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusComplete   = "complete"
	StatusFailed     = "failed"
)

// Terminal reports whether status is a terminal state.
func Terminal(status string) bool {
	return status == StatusComplete || status == StatusFailed
}
