package transcribe

import (
	"context"
	"fmt"
	"time"

	"github.com/captionlabs/caption-core/internal/config"
)

// Transcript is the text produced from exactly one audio segment. Text is
// never empty once a Transcript exists.
type Transcript struct {
	Text     string
	Captured time.Time
}

// Recognizer abstracts speech-to-text backends. Implementations receive a
// finite, already-buffered clip and return best-effort plain text, which may
// be empty.
type Recognizer interface {
	Transcribe(ctx context.Context, samples []int16, sampleRate int) (string, error)
}

// NewRecognizer builds a recognizer from config, or nil when transcription is
// disabled. A nil recognizer is a valid degraded mode, not an error.
func NewRecognizer(cfg config.TranscriberConfig) (Recognizer, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	switch cfg.Mode {
	case "mock":
		return NewMockRecognizer(), nil
	case "exec":
		return NewExecRecognizer(cfg)
	default:
		return nil, fmt.Errorf("unknown transcriber mode %q", cfg.Mode)
	}
}
