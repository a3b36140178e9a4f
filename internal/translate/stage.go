package translate

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/captionlabs/caption-core/internal/config"
	"github.com/captionlabs/caption-core/internal/langs"
	"github.com/captionlabs/caption-core/internal/transcribe"
	"github.com/captionlabs/caption-core/internal/usage"
)

const (
	duplicateCutoff = 0.9
	maxRecent       = 5
	callTimeout     = 60 * time.Second
)

// Stage consumes transcripts and forwards display-ready text. A transcript
// never vanishes here: any failure falls back to emitting the original text.
type Stage struct {
	cfg       config.TranslatorConfig
	completer Completer
	ledger    *usage.Ledger
	logger    *slog.Logger

	targetName string
	targetCode string

	lastCall time.Time
	recent   []string
	sleep    func(time.Duration)
}

func NewStage(cfg config.TranslatorConfig, completer Completer, ledger *usage.Ledger, logger *slog.Logger) *Stage {
	s := &Stage{
		cfg:       cfg,
		completer: completer,
		ledger:    ledger,
		logger:    logger.With(slog.String("component", "translate")),
		sleep:     time.Sleep,
	}
	s.targetName = cfg.TargetLanguage
	if code, ok := langs.Code(cfg.TargetLanguage); ok {
		s.targetCode = code
	} else if completer != nil {
		s.logger.Warn("unknown target language, passing transcripts through",
			slog.String("language", cfg.TargetLanguage))
	}
	return s
}

// Run drains in until it is closed, then closes out.
func (s *Stage) Run(ctx context.Context, in <-chan transcribe.Transcript, out chan<- string) {
	for tr := range in {
		text := s.translate(ctx, tr.Text)
		select {
		case out <- text:
		case <-ctx.Done():
		}
	}
	close(out)
}

func (s *Stage) translate(ctx context.Context, original string) string {
	if s.completer == nil || s.targetCode == "" {
		// Degraded mode: no backend or unresolvable target, pass through.
		s.ledger.Passthrough()
		return original
	}

	s.throttle()

	if s.isDuplicate(original) {
		s.logger.Debug("skipping near-duplicate transcript")
		s.ledger.Passthrough()
		return original
	}
	s.remember(original)

	req := Request{
		System:      systemPrompt,
		Prompt:      buildPrompt(original, s.targetName, s.targetCode, s.cfg.SourceLanguage),
		Temperature: s.cfg.Temperature,
		MaxTokens:   s.cfg.MaxTokens,
	}

	callCtx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	result, err := s.completer.Complete(callCtx, req)
	s.lastCall = time.Now()
	if err != nil {
		// Fallback rule: a translation failure must never lose the transcript.
		s.logger.Warn("translation failed, emitting original text", slog.String("error", err.Error()))
		s.ledger.Passthrough()
		return original
	}

	text := strings.TrimSpace(result.Text)
	if text == "" {
		s.ledger.Passthrough()
		return original
	}
	s.ledger.TranslationCompleted(result.PromptTokens, result.CompletionTokens)
	return text
}

// throttle enforces the minimum interval between service calls.
func (s *Stage) throttle() {
	interval := time.Duration(s.cfg.MinCallInterval) * time.Millisecond
	if interval <= 0 || s.lastCall.IsZero() {
		return
	}
	if wait := interval - time.Since(s.lastCall); wait > 0 {
		s.sleep(wait)
	}
}

func (s *Stage) isDuplicate(text string) bool {
	for _, prev := range s.recent {
		if similarity(text, prev) > duplicateCutoff {
			return true
		}
	}
	return false
}

func (s *Stage) remember(text string) {
	s.recent = append(s.recent, text)
	if len(s.recent) > maxRecent {
		s.recent = s.recent[1:]
	}
}
