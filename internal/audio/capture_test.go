package audio

import (
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/captionlabs/caption-core/internal/config"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func captureConfig() config.CaptureConfig {
	return config.CaptureConfig{
		Mode:           "mock",
		SampleRate:     16000,
		Channels:       1,
		BufferSamples:  1024,
		SegmentSeconds: 3,
		QueueDepth:     32,
	}
}

func TestSegmentSamplesRoundsUpToWholeBuffers(t *testing.T) {
	c := NewCapture(captureConfig(), &MockDevice{}, testLogger())
	got := c.SegmentSamples()
	if got%1024 != 0 {
		t.Fatalf("segment length %d is not buffer aligned", got)
	}
	if got < 48000 {
		t.Fatalf("segment length %d shorter than 3s at 16kHz", got)
	}
}

func TestRunEmitsCompleteSegments(t *testing.T) {
	cfg := captureConfig()
	feed := make(chan []int16, 64)
	dev := &MockDevice{SampleRate: cfg.SampleRate, BufferSamples: cfg.BufferSamples, Feed: feed}
	c := NewCapture(cfg, dev, testLogger())

	buffers := c.SegmentSamples() / cfg.BufferSamples
	for i := 0; i < buffers; i++ {
		chunk := make([]int16, cfg.BufferSamples)
		for j := range chunk {
			chunk[j] = 1000
		}
		feed <- chunk
	}

	var recording atomic.Bool
	recording.Store(true)
	out := make(chan Segment, cfg.QueueDepth)
	done := make(chan struct{})
	if err := c.Open(); err != nil {
		t.Fatalf("open: %v", err)
	}
	go func() {
		c.Run(recording.Load, out)
		close(done)
	}()

	select {
	case seg := <-out:
		if len(seg.Samples) != c.SegmentSamples() {
			t.Fatalf("expected %d samples, got %d", c.SegmentSamples(), len(seg.Samples))
		}
		if seg.SampleRate != 16000 || seg.Channels != 1 {
			t.Fatalf("unexpected segment format: %d Hz, %d ch", seg.SampleRate, seg.Channels)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for segment")
	}

	recording.Store(false)
	close(feed)
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("capture loop did not exit")
	}
}

func TestRunDiscardsPartialSegmentOnStop(t *testing.T) {
	cfg := captureConfig()
	feed := make(chan []int16, 8)
	dev := &MockDevice{SampleRate: cfg.SampleRate, BufferSamples: cfg.BufferSamples, Feed: feed}
	c := NewCapture(cfg, dev, testLogger())

	// Only a few buffers: far short of a full segment.
	for i := 0; i < 3; i++ {
		feed <- make([]int16, cfg.BufferSamples)
	}

	var recording atomic.Bool
	recording.Store(true)
	out := make(chan Segment, cfg.QueueDepth)
	done := make(chan struct{})
	if err := c.Open(); err != nil {
		t.Fatalf("open: %v", err)
	}
	go func() {
		c.Run(recording.Load, out)
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)
	recording.Store(false)
	close(feed)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("capture loop did not exit")
	}
	select {
	case seg := <-out:
		t.Fatalf("expected no segment from partial assembly, got %d samples", len(seg.Samples))
	default:
	}
}

func TestMockDeviceRejectsDoubleOpen(t *testing.T) {
	dev := &MockDevice{SampleRate: 16000, BufferSamples: 1024}
	if err := dev.Open(); err != nil {
		t.Fatalf("first open: %v", err)
	}
	if err := dev.Open(); err == nil {
		t.Fatal("expected second open to fail")
	}
	if err := dev.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := dev.Open(); err != nil {
		t.Fatalf("reopen after close: %v", err)
	}
}

func TestSegmentRMS(t *testing.T) {
	silent := Segment{Samples: make([]int16, 1024), SampleRate: 16000, Channels: 1}
	if got := silent.RMS(); got != 0 {
		t.Fatalf("silent RMS = %v, want 0", got)
	}

	loud := Segment{Samples: make([]int16, 1024), SampleRate: 16000, Channels: 1}
	for i := range loud.Samples {
		loud.Samples[i] = 2000
	}
	if got := loud.RMS(); got < 1999 || got > 2001 {
		t.Fatalf("constant-amplitude RMS = %v, want ~2000", got)
	}
}
