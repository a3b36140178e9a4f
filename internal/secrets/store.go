package secrets

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/captionlabs/caption-core/internal/config"
)

const (
	keyFile        = "secret.key"
	credentialFile = "api_key.enc"
)

// Store keeps a single API credential encrypted at rest under the user
// config directory. A per-install random key lives next to the ciphertext;
// this protects against casual file sharing, not a local attacker.
type Store struct {
	dir string
	log *slog.Logger
}

func NewStore(cfg config.SecretsConfig, log *slog.Logger) *Store {
	dir := cfg.Dir
	if dir == "" {
		base, err := os.UserConfigDir()
		if err != nil {
			base = "."
		}
		dir = filepath.Join(base, "caption-core")
	}
	return &Store{dir: dir, log: log.With(slog.String("component", "secrets"))}
}

// Load returns the stored credential. A missing or unreadable store is not
// an error; the caller falls back to environment configuration.
func (s *Store) Load() (string, bool) {
	key, err := os.ReadFile(filepath.Join(s.dir, keyFile))
	if err != nil {
		return "", false
	}
	sealed, err := os.ReadFile(filepath.Join(s.dir, credentialFile))
	if err != nil {
		return "", false
	}
	plaintext, err := open(key, sealed)
	if err != nil {
		s.log.Warn("stored credential is unreadable", slog.String("error", err.Error()))
		return "", false
	}
	return string(plaintext), true
}

// Save encrypts and persists the credential, creating the per-install key
// on first use.
func (s *Store) Save(secret string) error {
	if err := os.MkdirAll(s.dir, 0o700); err != nil {
		return fmt.Errorf("create secrets dir: %w", err)
	}

	keyPath := filepath.Join(s.dir, keyFile)
	key, err := os.ReadFile(keyPath)
	if err != nil {
		key = make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			return fmt.Errorf("generate key: %w", err)
		}
		if err := os.WriteFile(keyPath, key, 0o600); err != nil {
			return fmt.Errorf("write key: %w", err)
		}
	}

	sealed, err := seal(key, []byte(secret))
	if err != nil {
		return fmt.Errorf("encrypt credential: %w", err)
	}
	if err := os.WriteFile(filepath.Join(s.dir, credentialFile), sealed, 0o600); err != nil {
		return fmt.Errorf("write credential: %w", err)
	}
	return nil
}

func seal(key, plaintext []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}
	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

func open(key, sealed []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	if len(sealed) < gcm.NonceSize() {
		return nil, fmt.Errorf("ciphertext too short")
	}
	nonce, ciphertext := sealed[:gcm.NonceSize()], sealed[gcm.NonceSize():]
	return gcm.Open(nil, nonce, ciphertext, nil)
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
