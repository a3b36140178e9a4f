package translate

import (
	"context"
	"fmt"

	"github.com/captionlabs/caption-core/internal/config"
)

// Request describes a single completion call.
type Request struct {
	System      string
	Prompt      string
	Temperature float64
	MaxTokens   int
}

// Result carries the completion text and the token usage the service reported.
type Result struct {
	Text             string
	PromptTokens     int
	CompletionTokens int
}

// Completer abstracts the text formatting/translation backend.
type Completer interface {
	Complete(ctx context.Context, req Request) (Result, error)
}

// NewCompleter builds a completer from config, or nil when translation is
// disabled or no credential is available. A nil completer means pass-through.
func NewCompleter(cfg config.TranslatorConfig, apiKey string) (Completer, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	switch cfg.Mode {
	case "mock":
		return NewMockCompleter(), nil
	case "openai":
		if apiKey == "" {
			return nil, nil
		}
		return NewOpenAICompleter(cfg.Endpoint, cfg.Model, apiKey), nil
	default:
		return nil, fmt.Errorf("unknown translator mode %q", cfg.Mode)
	}
}
