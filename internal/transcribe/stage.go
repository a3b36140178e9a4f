package transcribe

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/captionlabs/caption-core/internal/audio"
	"github.com/captionlabs/caption-core/internal/config"
	"github.com/captionlabs/caption-core/internal/usage"
	"github.com/captionlabs/caption-core/internal/vad"
)

const transcribeTimeout = 45 * time.Second

// Stage consumes audio segments, applies the voice-activity gate and forwards
// non-empty transcripts. Recognition runs on a bounded worker pool; with more
// than one worker, output order is not guaranteed.
type Stage struct {
	cfg        config.TranscriberConfig
	gate       vad.Gate
	recognizer Recognizer
	ledger     *usage.Ledger
	logger     *slog.Logger
}

func NewStage(cfg config.TranscriberConfig, gate vad.Gate, recognizer Recognizer, ledger *usage.Ledger, logger *slog.Logger) *Stage {
	return &Stage{
		cfg:        cfg,
		gate:       gate,
		recognizer: recognizer,
		ledger:     ledger,
		logger:     logger.With(slog.String("component", "transcribe")),
	}
}

// Run drains in until it is closed, then closes out. Errors on individual
// segments are absorbed here: the segment is dropped and the loop continues.
func (s *Stage) Run(ctx context.Context, in <-chan audio.Segment, out chan<- Transcript) {
	workers := s.cfg.Workers
	if workers <= 0 {
		workers = 1
	}

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for seg := range in {
				s.process(ctx, seg, out)
			}
		}()
	}
	wg.Wait()
	close(out)
}

func (s *Stage) process(ctx context.Context, seg audio.Segment, out chan<- Transcript) {
	s.ledger.SegmentProcessed()

	if s.recognizer == nil {
		// Degraded mode: no backend configured, segments are discarded.
		return
	}
	if !s.gate.Accepts(seg) {
		s.logger.Debug("segment below speech threshold",
			slog.Float64("rms", seg.RMS()),
			slog.Float64("threshold", s.gate.Threshold()))
		return
	}

	callCtx, cancel := context.WithTimeout(ctx, transcribeTimeout)
	defer cancel()

	text, err := s.recognizer.Transcribe(callCtx, seg.Samples, seg.SampleRate)
	if err != nil {
		s.logger.Warn("transcription failed", slog.String("error", err.Error()))
		return
	}
	text = strings.TrimSpace(text)
	if text == "" {
		// Nothing to say; not an error.
		return
	}

	s.ledger.TranscriptProduced()
	select {
	case out <- Transcript{Text: text, Captured: seg.Captured}:
	case <-ctx.Done():
	}
}
