// Package summarizer abstracts the text-reasoning collaborator that turns
// transcript text into observation entries and condenses an oversized
// store. The deterministic lifecycle logic lives in internal/engine; this
// package owns prompt construction, backend calls, and response
// validation.
package summarizer

import (
	"context"
	"errors"
	"fmt"

	"github.com/rcliao/observational-memory/internal/config"
	"github.com/rcliao/observational-memory/internal/model"
)

// ErrInvalidResponse marks a backend reply that failed store-grammar
// validation. Callers must not mutate any state when they see it.
var ErrInvalidResponse = errors.New("summarizer response failed validation")

// ExtractRequest asks for new observations from unobserved transcript
// content.
type ExtractRequest struct {
	// PreviousTail is recent store text used as do-not-repeat context.
	PreviousTail string
	// Segment is the unobserved transcript text.
	Segment string
	// Today is the extraction date, YYYY-MM-DD.
	Today string
}

// ExtractResult carries either new entries or the nothing-new signal.
type ExtractResult struct {
	NothingNew bool
	Groups     []model.DateGroup

	// Task continuity, carried into the cursor for the next session.
	CurrentTask       string
	SuggestedResponse string
}

// ReflectRequest asks for a condensed rendering of one age band of the
// store.
type ReflectRequest struct {
	// Band is "moderate" or "aged"; it selects how aggressively the
	// backend may compress.
	Band        string
	StoreText   string
	Today       string
	TargetChars int
}

// Summarizer is the external text-reasoning collaborator. Both calls are
// blocking and fallible; responses are validated against the store
// grammar before being returned.
type Summarizer interface {
	Extract(ctx context.Context, req ExtractRequest) (*ExtractResult, error)
	Reflect(ctx context.Context, req ReflectRequest) (string, error)
}

// completer is the raw text-in/text-out backend shared by the LLM-backed
// implementations.
type completer interface {
	complete(ctx context.Context, model, system, user string) (string, error)
}

// textSummarizer wraps a completer with prompt construction and response
// parsing.
type textSummarizer struct {
	c              completer
	observerModel  string
	reflectorModel string
}

func (s *textSummarizer) Extract(ctx context.Context, req ExtractRequest) (*ExtractResult, error) {
	raw, err := s.c.complete(ctx, s.observerModel, observerSystemPrompt, buildExtractPrompt(req))
	if err != nil {
		return nil, fmt.Errorf("extract: %w", err)
	}
	return parseExtractOutput(raw)
}

func (s *textSummarizer) Reflect(ctx context.Context, req ReflectRequest) (string, error) {
	raw, err := s.c.complete(ctx, s.reflectorModel, reflectorSystemPrompt, buildReflectPrompt(req))
	if err != nil {
		return "", fmt.Errorf("reflect: %w", err)
	}
	return parseReflectOutput(raw)
}

// New builds a summarizer from configuration.
func New(cfg config.SummarizerConfig) (Summarizer, error) {
	switch cfg.Provider {
	case "", "claude-cli":
		return &textSummarizer{
			c:              newClaudeCLI(cfg),
			observerModel:  cfg.ObserverModel,
			reflectorModel: cfg.ReflectorModel,
		}, nil
	case "openai":
		c, err := newOpenAIClient(cfg)
		if err != nil {
			return nil, err
		}
		return &textSummarizer{
			c:              c,
			observerModel:  cfg.ObserverModel,
			reflectorModel: cfg.ReflectorModel,
		}, nil
	case "disabled":
		return Noop{}, nil
	}
	return nil, fmt.Errorf("unknown summarizer provider: %q", cfg.Provider)
}

// Noop is the disabled backend: it never finds anything new and never
// compresses. Useful for tests and for running om with extraction turned
// off.
type Noop struct{}

func (Noop) Extract(ctx context.Context, req ExtractRequest) (*ExtractResult, error) {
	return &ExtractResult{NothingNew: true}, nil
}

func (Noop) Reflect(ctx context.Context, req ReflectRequest) (string, error) {
	return req.StoreText, nil
}
