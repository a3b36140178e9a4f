// Package pipeline assembles the capture, transcription, translation, and
// display stages into a controllable captioning pipeline.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/captionlabs/caption-core/internal/audio"
	"github.com/captionlabs/caption-core/internal/config"
	"github.com/captionlabs/caption-core/internal/display"
	"github.com/captionlabs/caption-core/internal/report"
	"github.com/captionlabs/caption-core/internal/transcribe"
	"github.com/captionlabs/caption-core/internal/translate"
	"github.com/captionlabs/caption-core/internal/usage"
	"github.com/google/uuid"
)

// Controller owns the stage goroutines and the queues between them. The
// downstream stages run for the process lifetime; recording sessions start
// and stop the capture loop only, so stop never loses segments already in
// flight.
type Controller struct {
	cfg         config.Config
	capture     *audio.Capture
	transcriber *transcribe.Stage
	translator  *translate.Stage
	display     *display.Loop
	ledger      *usage.Ledger
	reports     *report.Store
	log         *slog.Logger
	metrics     *pipelineMetrics

	recording atomic.Bool
	captureWG sync.WaitGroup

	segments  chan audio.Segment
	closeOnce sync.Once

	mu         sync.Mutex
	sessionID  string
	lastReport usage.Report
}

// Status describes the pipeline for the control API.
type Status struct {
	Recording bool         `json:"recording"`
	SessionID string       `json:"session_id,omitempty"`
	Report    usage.Report `json:"report"`
}

func NewController(
	cfg config.Config,
	capture *audio.Capture,
	transcriber *transcribe.Stage,
	translator *translate.Stage,
	displayLoop *display.Loop,
	ledger *usage.Ledger,
	reports *report.Store,
	logger *slog.Logger,
) *Controller {
	depth := cfg.Capture.QueueDepth
	if depth <= 0 {
		depth = 32
	}
	c := &Controller{
		cfg:         cfg,
		capture:     capture,
		transcriber: transcriber,
		translator:  translator,
		display:     displayLoop,
		ledger:      ledger,
		reports:     reports,
		log:         logger.With(slog.String("component", "pipeline")),
		segments:    make(chan audio.Segment, depth),
	}
	m, err := newPipelineMetrics()
	if err != nil {
		c.log.Warn("failed to initialize metrics", slog.String("error", err.Error()))
	} else {
		c.metrics = m
	}
	return c
}

// Run drives the downstream stages until Close propagates through the
// queues. Each stage closes its output when its input closes, so shutdown
// drains everything already accepted.
func (c *Controller) Run(ctx context.Context) {
	transcripts := make(chan transcribe.Transcript, cap(c.segments))
	depth := c.cfg.Display.QueueDepth
	if depth <= 0 {
		depth = 32
	}
	texts := make(chan string, depth)

	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		c.transcriber.Run(ctx, c.segments, transcripts)
	}()
	go func() {
		defer wg.Done()
		c.translator.Run(ctx, transcripts, texts)
	}()
	go func() {
		defer wg.Done()
		c.display.Run(ctx, texts)
	}()
	wg.Wait()
}

// Start begins a recording session. Starting while already recording is a
// no-op. A device that cannot be opened leaves the pipeline idle.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.recording.Load() {
		return nil
	}
	if err := c.capture.Open(); err != nil {
		return fmt.Errorf("open capture device: %w", err)
	}

	c.sessionID = uuid.NewString()
	c.ledger.Reset(time.Now())
	c.recording.Store(true)

	c.captureWG.Add(1)
	go func() {
		defer c.captureWG.Done()
		c.capture.Run(c.recording.Load, c.segments)
	}()

	if c.metrics != nil {
		c.metrics.sessionsStarted.Add(ctx, 1)
	}
	c.log.Info("recording started", slog.String("session_id", c.sessionID))
	return nil
}

// Stop ends the current session, waits for the capture loop to exit, and
// archives the usage report. Stopping while idle returns the previous
// report.
func (c *Controller) Stop(ctx context.Context) (usage.Report, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.recording.Load() {
		return c.lastReport, nil
	}
	c.recording.Store(false)
	c.captureWG.Wait()

	rep := c.ledger.Snapshot(time.Now())
	rep.SessionID = c.sessionID
	rep.TargetLanguage = c.cfg.Translator.TargetLanguage
	c.lastReport = rep

	if c.metrics != nil {
		c.metrics.sessionsEnded.Add(ctx, 1)
		c.metrics.segments.Add(ctx, rep.Segments)
		c.metrics.serviceCost.Add(ctx, rep.Cost)
	}

	if c.reports != nil {
		if err := c.reports.Save(ctx, rep); err != nil {
			c.log.Warn("failed to archive session report", slog.String("error", err.Error()))
		}
	}

	c.log.Info("recording stopped",
		slog.String("session_id", rep.SessionID),
		slog.Duration("duration", rep.Duration()),
		slog.Int64("segments", rep.Segments),
		slog.Int64("transcripts", rep.Transcripts),
		slog.Int64("translations", rep.Translations),
		slog.Float64("cost_usd", rep.Cost))
	return rep, nil
}

// Status reports the live session counters while recording, or the last
// completed session otherwise.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.recording.Load() {
		rep := c.ledger.Snapshot(time.Now())
		rep.SessionID = c.sessionID
		rep.TargetLanguage = c.cfg.Translator.TargetLanguage
		return Status{Recording: true, SessionID: c.sessionID, Report: rep}
	}
	return Status{Recording: false, SessionID: c.lastReport.SessionID, Report: c.lastReport}
}

// Close stops any active session and shuts the pipeline down. Closing the
// segment queue cascades stage by stage; Run returns once the display loop
// has rendered everything in flight.
func (c *Controller) Close(ctx context.Context) error {
	_, err := c.Stop(ctx)
	c.closeOnce.Do(func() { close(c.segments) })
	return err
}
