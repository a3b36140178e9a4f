package translate

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/captionlabs/caption-core/internal/config"
	"github.com/captionlabs/caption-core/internal/transcribe"
	"github.com/captionlabs/caption-core/internal/usage"
)

type stubCompleter struct {
	result   Result
	err      error
	requests []Request
}

func (s *stubCompleter) Complete(_ context.Context, req Request) (Result, error) {
	s.requests = append(s.requests, req)
	return s.result, s.err
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func translatorConfig(target string) config.TranslatorConfig {
	return config.TranslatorConfig{
		Enabled:        true,
		Mode:           "mock",
		TargetLanguage: target,
		SourceLanguage: "en",
		Temperature:    0.3,
		MaxTokens:      200,
		InputRate:      0.10,
		OutputRate:     0.40,
	}
}

func newTestStage(cfg config.TranslatorConfig, completer Completer, ledger *usage.Ledger) *Stage {
	s := NewStage(cfg, completer, ledger, testLogger())
	s.sleep = func(time.Duration) {}
	return s
}

func runOne(t *testing.T, stage *Stage, text string) string {
	t.Helper()
	in := make(chan transcribe.Transcript, 1)
	out := make(chan string, 1)
	in <- transcribe.Transcript{Text: text}
	close(in)

	done := make(chan struct{})
	go func() {
		stage.Run(context.Background(), in, out)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("stage did not drain input")
	}
	return <-out
}

func TestSuccessEmitsTrimmedTranslation(t *testing.T) {
	completer := &stubCompleter{result: Result{Text: " Hola mundo. ", PromptTokens: 40, CompletionTokens: 5}}
	ledger := usage.NewLedger(usage.Rates{InputPerMTok: 0.10, OutputPerMTok: 0.40})
	ledger.Reset(time.Now())
	stage := newTestStage(translatorConfig("Spanish"), completer, ledger)

	if got := runOne(t, stage, "hello world"); got != "Hola mundo." {
		t.Fatalf("got %q, want %q", got, "Hola mundo.")
	}
	report := ledger.Snapshot(time.Now())
	if report.Translations != 1 || report.InputTokens != 40 || report.OutputTokens != 5 {
		t.Fatalf("ledger not updated: %+v", report)
	}
}

func TestFailureFallsBackToOriginal(t *testing.T) {
	completer := &stubCompleter{err: errors.New("service unavailable")}
	ledger := usage.NewLedger(usage.Rates{})
	stage := newTestStage(translatorConfig("Spanish"), completer, ledger)

	if got := runOne(t, stage, "hello world"); got != "hello world" {
		t.Fatalf("fallback = %q, want original", got)
	}
	if report := ledger.Snapshot(time.Now()); report.Passthroughs != 1 {
		t.Fatalf("expected passthrough recorded, got %+v", report)
	}
}

func TestNilCompleterPassesThrough(t *testing.T) {
	stage := newTestStage(translatorConfig("Spanish"), nil, usage.NewLedger(usage.Rates{}))
	if got := runOne(t, stage, "raw transcript"); got != "raw transcript" {
		t.Fatalf("degraded mode output = %q", got)
	}
}

func TestMatchingLanguageRequestsFormattingOnly(t *testing.T) {
	completer := &stubCompleter{result: Result{Text: "Hello world."}}
	stage := newTestStage(translatorConfig("English"), completer, usage.NewLedger(usage.Rates{}))

	runOne(t, stage, "hello world")
	if len(completer.requests) != 1 {
		t.Fatalf("expected 1 request, got %d", len(completer.requests))
	}
	if strings.Contains(strings.ToLower(completer.requests[0].Prompt), "translate") {
		t.Fatalf("formatting-only prompt mentions translation: %q", completer.requests[0].Prompt)
	}
}

func TestMismatchedLanguageRequestsTranslation(t *testing.T) {
	completer := &stubCompleter{result: Result{Text: "Hola mundo."}}
	stage := newTestStage(translatorConfig("Spanish"), completer, usage.NewLedger(usage.Rates{}))

	runOne(t, stage, "hello world")
	prompt := completer.requests[0].Prompt
	if !strings.Contains(prompt, "translate it to Spanish") {
		t.Fatalf("translation prompt missing target language: %q", prompt)
	}
}

func TestDuplicateTranscriptSkipsServiceCall(t *testing.T) {
	completer := &stubCompleter{result: Result{Text: "Done."}}
	stage := newTestStage(translatorConfig("Spanish"), completer, usage.NewLedger(usage.Rates{}))

	in := make(chan transcribe.Transcript, 2)
	out := make(chan string, 2)
	in <- transcribe.Transcript{Text: "exactly the same words"}
	in <- transcribe.Transcript{Text: "exactly the same words"}
	close(in)

	stage.Run(context.Background(), in, out)
	if len(completer.requests) != 1 {
		t.Fatalf("expected duplicate to skip the backend, got %d calls", len(completer.requests))
	}
	<-out
	if got := <-out; got != "exactly the same words" {
		t.Fatalf("duplicate should emit original text, got %q", got)
	}
}

func TestSimilarity(t *testing.T) {
	if got := similarity("hello world", "hello world"); got != 1 {
		t.Fatalf("identical similarity = %v, want 1", got)
	}
	if got := similarity("hello world", "entirely different phrase"); got != 0 {
		t.Fatalf("disjoint similarity = %v, want 0", got)
	}
	if got := similarity("", "anything"); got != 0 {
		t.Fatalf("empty similarity = %v, want 0", got)
	}
}

func TestUnknownTargetLanguagePassesThrough(t *testing.T) {
	completer := &stubCompleter{result: Result{Text: "nope"}}
	stage := newTestStage(translatorConfig("Klingon"), completer, usage.NewLedger(usage.Rates{}))

	if got := runOne(t, stage, "live long"); got != "live long" {
		t.Fatalf("unknown target output = %q, want original", got)
	}
	if len(completer.requests) != 0 {
		t.Fatal("unknown target must not call the backend")
	}
}
