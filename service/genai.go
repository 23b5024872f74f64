package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/fewie27/ultimate/backend/config"
	"google.golang.org/genai"
)

// GenAIService wraps one Gemini client for both workloads of the engine:
// embedding clause text and judging escalated clauses. It satisfies the
// analysis.Embedder, analysis.Judge and corpus.Embedder interfaces.
type GenAIService struct {
	client  *genai.Client
	config  *config.GenAIConfig
	timeout time.Duration
}

func NewGenAIService(ctx context.Context, cfg *config.GenAIConfig) (*GenAIService, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("GenAI API key is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey: cfg.APIKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}

	return &GenAIService{
		client:  client,
		config:  cfg,
		timeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
	}, nil
}

// Embed generates an embedding for a single text.
func (s *GenAIService) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := s.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch generates embeddings for multiple texts in one call.
func (s *GenAIService) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	contents := make([]*genai.Content, len(texts))
	for i, text := range texts {
		contents[i] = genai.NewContentFromText(text, genai.RoleUser)
	}

	var result *genai.EmbedContentResponse
	err := s.withRetry(ctx, "embed", func(callCtx context.Context) error {
		var callErr error
		result, callErr = s.client.Models.EmbedContent(callCtx,
			s.config.EmbedModel,
			contents,
			&genai.EmbedContentConfig{
				TaskType: "SEMANTIC_SIMILARITY",
			},
		)
		return callErr
	})
	if err != nil {
		return nil, fmt.Errorf("GenAI embed failed: %w", err)
	}

	if len(result.Embeddings) != len(texts) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(result.Embeddings))
	}

	embeddings := make([][]float32, len(result.Embeddings))
	for i, emb := range result.Embeddings {
		embeddings[i] = emb.Values
	}
	return embeddings, nil
}

// Judge sends a judgment prompt to the generative model and returns the raw
// model output. Parsing is the caller's concern.
func (s *GenAIService) Judge(ctx context.Context, prompt string) (string, error) {
	var resp *genai.GenerateContentResponse
	err := s.withRetry(ctx, "judge", func(callCtx context.Context) error {
		var callErr error
		resp, callErr = s.client.Models.GenerateContent(callCtx,
			s.config.JudgeModel,
			genai.Text(prompt),
			nil,
		)
		return callErr
	})
	if err != nil {
		return "", fmt.Errorf("GenAI judgment failed: %w", err)
	}

	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("empty judgment response")
	}
	return text, nil
}

// withRetry runs fn with a per-call timeout, retrying up to MaxRetries times
// with linear backoff. The caller's context cancels the whole sequence.
func (s *GenAIService) withRetry(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	var err error
	for attempt := 0; attempt <= s.config.MaxRetries; attempt++ {
		if attempt > 0 {
			slog.Warn("retrying GenAI call", "op", op, "attempt", attempt, "error", err)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(attempt) * time.Second):
			}
		}

		callCtx, cancel := context.WithTimeout(ctx, s.timeout)
		err = fn(callCtx)
		cancel()
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return err
		}
	}
	return err
}
