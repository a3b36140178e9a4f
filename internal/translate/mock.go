package translate

import (
	"context"
	"strings"
	"time"
)

type mockCompleter struct{}

func NewMockCompleter() Completer {
	return &mockCompleter{}
}

func (m *mockCompleter) Complete(ctx context.Context, req Request) (Result, error) {
	select {
	case <-ctx.Done():
		return Result{}, ctx.Err()
	case <-time.After(20 * time.Millisecond):
	}
	return Result{
		Text:             "[mock completion for " + strings.TrimSpace(req.Prompt) + "]",
		PromptTokens:     len(strings.Fields(req.Prompt)),
		CompletionTokens: 8,
	}, nil
}
