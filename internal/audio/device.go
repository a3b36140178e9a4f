package audio

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/captionlabs/caption-core/internal/config"
)

// ErrDeviceUnavailable reports that the capture device could not be opened.
// It is the only capture failure escalated to the controller.
var ErrDeviceUnavailable = errors.New("audio device unavailable")

// Device abstracts a microphone-like source of fixed-size PCM buffers.
// A Device is exclusively owned by the capture stage: opened and closed there,
// never shared.
type Device interface {
	Open() error
	// Read fills buf with the next samples. A failed read may leave buf
	// undefined; the capture loop treats it as silence.
	Read(buf []int16) error
	Close() error
}

// NewDevice builds a device from config.
func NewDevice(cfg config.CaptureConfig) (Device, error) {
	switch cfg.Mode {
	case "mock":
		return &MockDevice{SampleRate: cfg.SampleRate, BufferSamples: cfg.BufferSamples}, nil
	case "exec":
		return newExecDevice(cfg)
	default:
		return nil, fmt.Errorf("unknown capture mode %q", cfg.Mode)
	}
}

// MockDevice emits scripted buffers from Feed, or paced silence when Feed is
// nil or drained. Double-open fails, which lets tests assert the controller
// never leaks a device handle.
type MockDevice struct {
	SampleRate    int
	BufferSamples int
	Feed          chan []int16

	mu     sync.Mutex
	opened bool
}

func (m *MockDevice) Open() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.opened {
		return fmt.Errorf("mock device already open: %w", ErrDeviceUnavailable)
	}
	m.opened = true
	return nil
}

func (m *MockDevice) Read(buf []int16) error {
	if m.Feed != nil {
		if data, ok := <-m.Feed; ok {
			n := copy(buf, data)
			for i := n; i < len(buf); i++ {
				buf[i] = 0
			}
			return nil
		}
	}
	// No scripted input: behave like a quiet microphone, paced in real time.
	time.Sleep(m.bufferDuration())
	for i := range buf {
		buf[i] = 0
	}
	return nil
}

func (m *MockDevice) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.opened = false
	return nil
}

func (m *MockDevice) bufferDuration() time.Duration {
	rate := m.SampleRate
	if rate <= 0 {
		rate = 16000
	}
	samples := m.BufferSamples
	if samples <= 0 {
		samples = 1024
	}
	return time.Duration(samples) * time.Second / time.Duration(rate)
}
