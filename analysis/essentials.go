package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/fewie27/ultimate/backend/model"
)

// Extractor locates the four essential facts of a rental agreement in one
// LLM pass over the whole document. It runs independently of clause
// classification and shares no state with it.
type Extractor struct {
	judge Judge
}

func NewExtractor(judge Judge) *Extractor {
	return &Extractor{judge: judge}
}

const essentialsPromptFmt = `Extract the essential facts from this German residential rental agreement. Locate each fact by its semantic role, not by keyword, since phrasing varies between agreements.

Agreement:
---
%s
---

Respond with JSON only, no other text:
{"vertragsparteien": "...", "mietgegenstand": "...", "miete": "...", "mietbeginn": "..."}

vertragsparteien: the contracting parties (landlord and tenant)
mietgegenstand: the rented object (address, rooms, size)
miete: the monthly rent amount
mietbeginn: the start date of the tenancy

Use null for any fact the agreement does not state. Quote the agreement's own wording where possible.`

// Extract returns the essentials found in the document. A missing field is
// a nil pointer in the result, never an error; only a failed or unparseable
// LLM call errors, and even that does not fail the analysis on its own.
func (x *Extractor) Extract(ctx context.Context, document string) (model.Essentials, error) {
	raw, err := x.judge.Judge(ctx, fmt.Sprintf(essentialsPromptFmt, document))
	if err != nil {
		return model.Essentials{}, fmt.Errorf("essentials call failed: %w", err)
	}

	var parsed struct {
		Vertragsparteien *string `json:"vertragsparteien"`
		Mietgegenstand   *string `json:"mietgegenstand"`
		Miete            *string `json:"miete"`
		Mietbeginn       *string `json:"mietbeginn"`
	}
	if err := json.Unmarshal([]byte(extractJSON(raw)), &parsed); err != nil {
		return model.Essentials{}, fmt.Errorf("failed to parse essentials: %w", err)
	}

	return model.Essentials{
		Vertragsparteien: normalizeFact(parsed.Vertragsparteien),
		Mietgegenstand:   normalizeFact(parsed.Mietgegenstand),
		Miete:            normalizeFact(parsed.Miete),
		Mietbeginn:       normalizeFact(parsed.Mietbeginn),
	}, nil
}

// normalizeFact maps empty and whitespace-only extractions to "not found".
func normalizeFact(s *string) *string {
	if s == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*s)
	if trimmed == "" || strings.EqualFold(trimmed, "null") {
		return nil
	}
	return &trimmed
}
