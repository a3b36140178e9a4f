package audio

import (
	"log/slog"
	"time"

	"github.com/captionlabs/caption-core/internal/config"
)

// Capture owns the input device and slices its stream into fixed-duration
// segments. It is the only producer on the segment queue.
type Capture struct {
	cfg    config.CaptureConfig
	device Device
	logger *slog.Logger
}

func NewCapture(cfg config.CaptureConfig, device Device, logger *slog.Logger) *Capture {
	return &Capture{
		cfg:    cfg,
		device: device,
		logger: logger.With(slog.String("component", "capture")),
	}
}

// SegmentSamples is the assembled segment length: whole buffers covering at
// least the nominal segment duration.
func (c *Capture) SegmentSamples() int {
	want := c.cfg.SampleRate * c.cfg.SegmentSeconds
	buffers := (want + c.cfg.BufferSamples - 1) / c.cfg.BufferSamples
	return buffers * c.cfg.BufferSamples
}

// Open acquires the device. Failure here is the only capture error escalated
// to the controller.
func (c *Capture) Open() error {
	return c.device.Open()
}

// Run reads buffers while recording() reports true, assembling complete
// segments and handing them to out. A partial segment is discarded when
// recording stops mid-assembly. The device is released on exit.
func (c *Capture) Run(recording func() bool, out chan Segment) {
	defer func() {
		if err := c.device.Close(); err != nil {
			c.logger.Warn("failed to close capture device", slog.String("error", err.Error()))
		}
	}()

	segLen := c.SegmentSamples()
	buf := make([]int16, c.cfg.BufferSamples)
	assembly := make([]int16, 0, segLen)

	for recording() {
		if err := c.device.Read(buf); err != nil {
			// A single bad read is tolerated as silence; capture goes on.
			c.logger.Debug("buffer read failed", slog.String("error", err.Error()))
			for i := range buf {
				buf[i] = 0
			}
		}
		assembly = append(assembly, buf...)
		if len(assembly) < segLen {
			continue
		}

		seg := Segment{
			Samples:    assembly[:segLen:segLen],
			SampleRate: c.cfg.SampleRate,
			Channels:   c.cfg.Channels,
			Captured:   time.Now().UTC(),
		}
		assembly = make([]int16, 0, segLen)
		c.push(out, seg)
	}

	if len(assembly) > 0 {
		c.logger.Debug("discarding partial segment", slog.Int("samples", len(assembly)))
	}
}

// push never blocks the capture loop: when the queue is full the oldest
// pending segment is dropped to make room for the new one.
func (c *Capture) push(out chan Segment, seg Segment) {
	select {
	case out <- seg:
		return
	default:
	}
	select {
	case <-out:
		c.logger.Warn("segment queue full, dropping oldest segment")
	default:
	}
	select {
	case out <- seg:
	default:
		c.logger.Warn("segment queue still full, dropping segment")
	}
}
