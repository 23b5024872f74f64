package analysis

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/fewie27/ultimate/backend/model"
)

// stubJudge returns canned responses or errors and records prompts.
type stubJudge struct {
	respond func(prompt string) (string, error)

	mu      sync.Mutex
	prompts []string
}

func (s *stubJudge) Judge(ctx context.Context, prompt string) (string, error) {
	s.mu.Lock()
	s.prompts = append(s.prompts, prompt)
	s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return s.respond(prompt)
}

// recorded returns a copy of all prompts seen so far.
func (s *stubJudge) recorded() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.prompts...)
}

func TestEscalateConfirm(t *testing.T) {
	judge := &stubJudge{respond: func(string) (string, error) {
		return `{"verdict": "confirm", "categories": [], "description": "Verlängerung um 24 Monate ist unzulässig lang"}`, nil
	}}
	e := NewEscalator(judge)

	cats, desc, err := e.Escalate(context.Background(), "clause", model.CategoryInvalid, "hint desc", "document")
	if err != nil {
		t.Fatalf("Escalate failed: %v", err)
	}
	if !cats.Has(model.CategoryInvalid) || len(cats) != 1 {
		t.Errorf("Expected {invalid}, got %v", cats)
	}
	if !strings.Contains(desc, "unzulässig") {
		t.Errorf("Expected judgment description to win, got %q", desc)
	}
}

func TestEscalateConfirmKeepsHintDescription(t *testing.T) {
	judge := &stubJudge{respond: func(string) (string, error) {
		return `{"verdict": "confirm", "description": ""}`, nil
	}}
	e := NewEscalator(judge)

	_, desc, err := e.Escalate(context.Background(), "clause", model.CategoryUnusual, "hint desc", "doc")
	if err != nil {
		t.Fatalf("Escalate failed: %v", err)
	}
	if desc != "hint desc" {
		t.Errorf("Expected hint description fallback, got %q", desc)
	}
}

func TestEscalateReject(t *testing.T) {
	judge := &stubJudge{respond: func(string) (string, error) {
		return `{"verdict": "reject"}`, nil
	}}
	e := NewEscalator(judge)

	cats, _, err := e.Escalate(context.Background(), "clause", model.CategoryUnusual, "", "doc")
	if err != nil {
		t.Fatalf("Escalate failed: %v", err)
	}
	if !cats.Has(model.CategoryMatchFound) || len(cats) != 1 {
		t.Errorf("Expected {match_found}, got %v", cats)
	}
}

func TestEscalateRecategorize(t *testing.T) {
	judge := &stubJudge{respond: func(string) (string, error) {
		// Fenced output with an unknown category mixed in
		return "```json\n{\"verdict\": \"recategorize\", \"categories\": [\"unusual\", \"invalid\", \"bogus\"], \"description\": \"beides\"}\n```", nil
	}}
	e := NewEscalator(judge)

	cats, desc, err := e.Escalate(context.Background(), "clause", model.CategoryUnusual, "", "doc")
	if err != nil {
		t.Fatalf("Escalate failed: %v", err)
	}
	if len(cats) != 2 || !cats.Has(model.CategoryUnusual) || !cats.Has(model.CategoryInvalid) {
		t.Errorf("Expected {unusual, invalid}, got %v", cats)
	}
	if desc != "beides" {
		t.Errorf("Expected description 'beides', got %q", desc)
	}
}

func TestEscalateRecategorizeNoUsableCategories(t *testing.T) {
	judge := &stubJudge{respond: func(string) (string, error) {
		return `{"verdict": "recategorize", "categories": ["bogus"]}`, nil
	}}
	e := NewEscalator(judge)

	if _, _, err := e.Escalate(context.Background(), "clause", model.CategoryUnusual, "", "doc"); err == nil {
		t.Error("Expected error when no usable categories remain")
	}
}

func TestEscalateMalformedOutput(t *testing.T) {
	judge := &stubJudge{respond: func(string) (string, error) {
		return "I think this clause is fine, no JSON for you", nil
	}}
	e := NewEscalator(judge)

	if _, _, err := e.Escalate(context.Background(), "clause", model.CategoryUnusual, "", "doc"); err == nil {
		t.Error("Expected error for malformed judgment output")
	}
}

func TestEscalateJudgeFailure(t *testing.T) {
	judge := &stubJudge{respond: func(string) (string, error) {
		return "", errors.New("upstream timeout")
	}}
	e := NewEscalator(judge)

	if _, _, err := e.Escalate(context.Background(), "clause", model.CategoryUnusual, "", "doc"); err == nil {
		t.Error("Expected error when judge call fails")
	}
}

func TestEscalatePromptContents(t *testing.T) {
	judge := &stubJudge{respond: func(string) (string, error) {
		return `{"verdict": "reject"}`, nil
	}}
	e := NewEscalator(judge)

	clause := "Der Vertrag verlängert sich automatisch um 24 Monate."
	document := "Volltext des Vertrags."
	if _, _, err := e.Escalate(context.Background(), clause, model.CategoryUnusual, "", document); err != nil {
		t.Fatalf("Escalate failed: %v", err)
	}
	if len(judge.prompts) != 1 {
		t.Fatalf("Expected 1 judge call, got %d", len(judge.prompts))
	}
	prompt := judge.prompts[0]
	if !strings.Contains(prompt, clause) {
		t.Error("Expected clause text in prompt")
	}
	if !strings.Contains(prompt, document) {
		t.Error("Expected full document in prompt for cross-clause context")
	}
	if !strings.Contains(prompt, model.CategoryUnusual) {
		t.Error("Expected hint category in prompt")
	}
}
