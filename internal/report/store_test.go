package report

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/captionlabs/caption-core/internal/config"
	"github.com/captionlabs/caption-core/internal/usage"
)

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func sampleReport(id string, started time.Time) usage.Report {
	return usage.Report{
		SessionID:      id,
		TargetLanguage: "Spanish",
		StartedAt:      started,
		EndedAt:        started.Add(90 * time.Second),
		Segments:       30,
		Transcripts:    12,
		Translations:   10,
		Passthroughs:   2,
		InputTokens:    4200,
		OutputTokens:   900,
		Cost:           0.00078,
	}
}

func TestOpenEphemeralAcceptsWrites(t *testing.T) {
	cfg := config.ReportsConfig{RetentionMode: "ephemeral"}
	store, err := Open(context.Background(), cfg, newLogger())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	if err := store.Save(context.Background(), sampleReport("s1", time.Now())); err != nil {
		t.Fatalf("save: %v", err)
	}
	reports, err := store.ListRecent(context.Background(), 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(reports) != 0 {
		t.Fatalf("ephemeral store kept %d reports", len(reports))
	}
}

func TestSaveAndListRoundTrip(t *testing.T) {
	cfg := config.ReportsConfig{
		Path:          filepath.Join(t.TempDir(), "sessions.db"),
		RetentionMode: "session",
	}
	store, err := Open(context.Background(), cfg, newLogger())
	if err != nil {
		t.Fatalf("open report store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	want := sampleReport("session-abc", time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	if err := store.Save(context.Background(), want); err != nil {
		t.Fatalf("save: %v", err)
	}

	reports, err := store.ListRecent(context.Background(), 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(reports) != 1 {
		t.Fatalf("expected 1 report, got %d", len(reports))
	}
	got := reports[0]
	if got.SessionID != want.SessionID || got.TargetLanguage != want.TargetLanguage {
		t.Fatalf("unexpected report %+v", got)
	}
	if got.Translations != 10 || got.Passthroughs != 2 {
		t.Fatalf("counters not preserved: %+v", got)
	}
	if got.Cost != want.Cost {
		t.Fatalf("cost = %v, want %v", got.Cost, want.Cost)
	}
	if !got.StartedAt.Equal(want.StartedAt) {
		t.Fatalf("started_at = %v, want %v", got.StartedAt, want.StartedAt)
	}
}

func TestSaveUpsertsSameSession(t *testing.T) {
	cfg := config.ReportsConfig{
		Path:          filepath.Join(t.TempDir(), "sessions.db"),
		RetentionMode: "session",
	}
	store, err := Open(context.Background(), cfg, newLogger())
	if err != nil {
		t.Fatalf("open report store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	r := sampleReport("session-up", time.Now().UTC())
	if err := store.Save(context.Background(), r); err != nil {
		t.Fatalf("save: %v", err)
	}
	r.Translations = 99
	if err := store.Save(context.Background(), r); err != nil {
		t.Fatalf("save again: %v", err)
	}

	reports, err := store.ListRecent(context.Background(), 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(reports) != 1 {
		t.Fatalf("expected upsert, got %d rows", len(reports))
	}
	if reports[0].Translations != 99 {
		t.Fatalf("expected latest numbers, got %+v", reports[0])
	}
}

func TestPruneByDaysAndSessions(t *testing.T) {
	cfg := config.ReportsConfig{
		Path:          filepath.Join(t.TempDir(), "sessions.db"),
		RetentionMode: "persistent",
		RetentionDays: 1,
		MaxSessions:   1,
	}
	store, err := Open(context.Background(), cfg, newLogger())
	if err != nil {
		t.Fatalf("open report store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	old := sampleReport("old-session", time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	recent := sampleReport("new-session", time.Date(2025, 1, 3, 0, 0, 0, 0, time.UTC))
	if err := store.Save(context.Background(), old); err != nil {
		t.Fatalf("save old: %v", err)
	}
	if err := store.Save(context.Background(), recent); err != nil {
		t.Fatalf("save new: %v", err)
	}

	store.clock = func() time.Time { return time.Date(2025, 1, 3, 12, 0, 0, 0, time.UTC) }
	if err := store.Prune(context.Background()); err != nil {
		t.Fatalf("prune: %v", err)
	}

	reports, err := store.ListRecent(context.Background(), 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(reports) != 1 || reports[0].SessionID != "new-session" {
		t.Fatalf("expected only new-session to survive, got %+v", reports)
	}
}
