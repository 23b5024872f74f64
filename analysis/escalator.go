package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/fewie27/ultimate/backend/model"
)

// Judge is the LLM capability the engine depends on. Implementations must
// honor the context deadline; the engine treats every call as fallible and
// degrades on error.
type Judge interface {
	Judge(ctx context.Context, prompt string) (string, error)
}

// Escalator asks the LLM to confirm, reject, or recategorize a similarity
// match that the matcher could not settle on its own.
type Escalator struct {
	judge Judge
}

func NewEscalator(judge Judge) *Escalator {
	return &Escalator{judge: judge}
}

type judgmentResponse struct {
	Verdict     string   `json:"verdict"`
	Categories  []string `json:"categories"`
	Description string   `json:"description"`
}

const escalationPromptFmt = `You are reviewing a clause from a German residential rental agreement.

Clause under review:
%s

Preliminary classification from similarity matching: %s (%s)

The categories are:
- "fehlend": the clause hints at a mandatory provision that the agreement lacks
- "unusual": the clause is atypical for a residential rental agreement
- "invalid": the clause is legally void under German tenancy law
- "valid": the clause is a normal, enforceable provision

Consider the full agreement for cross-clause context (for example, an auto-renewal term that is unusually long only in combination with the notice period):
---
%s
---

Respond with JSON only, no other text:
{"verdict": "confirm" | "reject" | "recategorize", "categories": ["..."], "description": "kurze Begründung auf Deutsch"}

Use "confirm" to keep the preliminary category, "reject" if the clause is unremarkable, "recategorize" to assign different categories.`

// Escalate judges one ambiguous clause. On any failure (transport, timeout,
// unparseable output) the caller falls back to the similarity hint; errors
// here are never fatal for the analysis.
func (e *Escalator) Escalate(ctx context.Context, clauseText, hintCategory, hintDescription, document string) (model.CategorySet, string, error) {
	hintDesc := hintDescription
	if hintDesc == "" {
		hintDesc = "no description"
	}
	prompt := fmt.Sprintf(escalationPromptFmt, clauseText, hintCategory, hintDesc, document)

	raw, err := e.judge.Judge(ctx, prompt)
	if err != nil {
		return nil, "", fmt.Errorf("judgment call failed: %w", err)
	}

	var resp judgmentResponse
	if err := json.Unmarshal([]byte(extractJSON(raw)), &resp); err != nil {
		return nil, "", fmt.Errorf("failed to parse judgment: %w", err)
	}

	switch resp.Verdict {
	case "reject":
		return model.NewCategorySet(model.CategoryMatchFound), "", nil
	case "confirm":
		return model.NewCategorySet(hintCategory), pickDescription(resp.Description, hintDescription), nil
	case "recategorize":
		var cats model.CategorySet
		for _, c := range resp.Categories {
			if model.KnownCategory(c) {
				cats = cats.Add(c)
			}
		}
		if len(cats) == 0 {
			return nil, "", fmt.Errorf("judgment carried no usable categories: %v", resp.Categories)
		}
		return cats, resp.Description, nil
	default:
		return nil, "", fmt.Errorf("unknown judgment verdict %q", resp.Verdict)
	}
}

func pickDescription(primary, fallback string) string {
	if strings.TrimSpace(primary) != "" {
		return primary
	}
	return fallback
}

// extractJSON strips markdown fences and surrounding prose from an LLM
// response, keeping the outermost JSON object.
func extractJSON(raw string) string {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return raw
	}
	return raw[start : end+1]
}
