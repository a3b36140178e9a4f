package secrets

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/captionlabs/caption-core/internal/config"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(config.SecretsConfig{Dir: t.TempDir()}, slog.New(slog.NewTextHandler(os.Stderr, nil)))
}

func TestSaveLoadRoundTrip(t *testing.T) {
	store := newTestStore(t)

	if err := store.Save("sk-test-credential"); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, ok := store.Load()
	if !ok {
		t.Fatal("expected stored credential to load")
	}
	if got != "sk-test-credential" {
		t.Fatalf("unexpected credential %q", got)
	}
}

func TestLoadMissingStore(t *testing.T) {
	store := newTestStore(t)

	if _, ok := store.Load(); ok {
		t.Fatal("expected missing store to report not found")
	}
}

func TestSaveOverwritesCredential(t *testing.T) {
	store := newTestStore(t)

	if err := store.Save("first"); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := store.Save("second"); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, _ := store.Load()
	if got != "second" {
		t.Fatalf("expected latest credential, got %q", got)
	}
}

func TestCredentialNotStoredInPlaintext(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(config.SecretsConfig{Dir: dir}, slog.New(slog.NewTextHandler(os.Stderr, nil)))

	if err := store.Save("sk-plaintext-check"); err != nil {
		t.Fatalf("save: %v", err)
	}
	raw, err := os.ReadFile(filepath.Join(dir, credentialFile))
	if err != nil {
		t.Fatalf("read credential file: %v", err)
	}
	if bytes.Contains(raw, []byte("sk-plaintext-check")) {
		t.Fatal("credential written in plaintext")
	}
}
