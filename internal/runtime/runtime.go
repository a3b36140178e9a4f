// Package runtime wires configuration, telemetry, the caption pipeline, and
// the HTTP control surface into a single long-running service.
package runtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/captionlabs/caption-core/internal/audio"
	"github.com/captionlabs/caption-core/internal/bus"
	"github.com/captionlabs/caption-core/internal/config"
	"github.com/captionlabs/caption-core/internal/display"
	"github.com/captionlabs/caption-core/internal/natsserver"
	"github.com/captionlabs/caption-core/internal/pipeline"
	"github.com/captionlabs/caption-core/internal/report"
	"github.com/captionlabs/caption-core/internal/secrets"
	"github.com/captionlabs/caption-core/internal/transcribe"
	"github.com/captionlabs/caption-core/internal/translate"
	"github.com/captionlabs/caption-core/internal/usage"
	"github.com/captionlabs/caption-core/internal/vad"
)

const apiKeyEnv = "CAPTION_OPENAI_API_KEY"

type Runtime struct {
	cfg         config.Config
	logger      *slog.Logger
	httpServer  *http.Server
	tracerClose func(context.Context) error
	ready       atomic.Bool
	wg          sync.WaitGroup

	controller *pipeline.Controller
	reports    *report.Store
	busClient  *bus.Client
}

func New(cfg config.Config, logger *slog.Logger) *Runtime {
	return &Runtime{
		cfg:    cfg,
		logger: logger,
	}
}

// Start brings the service up and blocks until ctx is cancelled, then
// drains the pipeline and releases every resource in reverse order.
func (r *Runtime) Start(ctx context.Context) error {
	shutdownTelemetry, metricHandler, err := setupTelemetry(r.cfg, r.logger)
	if err != nil {
		return fmt.Errorf("failed to setup telemetry: %w", err)
	}
	r.tracerClose = shutdownTelemetry

	var embedded *natsserver.EmbeddedServer
	if r.cfg.Bus.Enabled {
		embedded, err = natsserver.Start(r.cfg.Bus, r.logger)
		if err != nil {
			return fmt.Errorf("failed to start embedded bus: %w", err)
		}
		r.busClient, err = bus.Connect(r.cfg.Bus, r.logger)
		if err != nil {
			embedded.Shutdown()
			return fmt.Errorf("failed to connect to bus: %w", err)
		}
	}

	r.reports, err = report.Open(ctx, r.cfg.Reports, r.logger)
	if err != nil {
		return fmt.Errorf("failed to open report store: %w", err)
	}

	controller, err := r.buildPipeline()
	if err != nil {
		return err
	}
	r.controller = controller

	pipelineDone := make(chan struct{})
	go func() {
		// The pipeline outlives ctx so cancellation drains in-flight
		// captions instead of dropping them.
		controller.Run(context.Background())
		close(pipelineDone)
	}()

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", r.handleHealth)
	mux.HandleFunc("/readyz", r.handleReady)
	if metricHandler != nil {
		mux.Handle("/metrics", metricHandler)
	}
	mux.HandleFunc("/record/start", r.handleRecordStart)
	mux.HandleFunc("/record/stop", r.handleRecordStop)
	mux.HandleFunc("/session", r.handleSession)
	mux.HandleFunc("/sessions", r.handleSessions)

	addr := fmt.Sprintf("%s:%d", r.cfg.HTTP.Bind, r.cfg.HTTP.Port)
	r.httpServer = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		if err := r.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			r.logger.Error("http server failed", slog.String("error", err.Error()))
		}
	}()

	r.ready.Store(true)
	r.logger.Info("runtime started", slog.String("addr", addr))

	<-ctx.Done()
	r.ready.Store(false)
	r.logger.Info("runtime stopping")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := r.httpServer.Shutdown(shutdownCtx); err != nil {
		r.logger.Error("http shutdown error", slog.String("error", err.Error()))
	}
	r.wg.Wait()

	if err := controller.Close(shutdownCtx); err != nil {
		r.logger.Error("pipeline shutdown error", slog.String("error", err.Error()))
	}
	select {
	case <-pipelineDone:
	case <-shutdownCtx.Done():
		r.logger.Warn("pipeline did not drain before shutdown deadline")
	}

	r.busClient.Close()
	embedded.Shutdown()
	if err := r.reports.Close(); err != nil {
		r.logger.Error("report store close error", slog.String("error", err.Error()))
	}

	if r.tracerClose != nil {
		if err := r.tracerClose(shutdownCtx); err != nil {
			r.logger.Error("telemetry shutdown error", slog.String("error", err.Error()))
		}
	}

	return nil
}

func (r *Runtime) buildPipeline() (*pipeline.Controller, error) {
	device, err := audio.NewDevice(r.cfg.Capture)
	if err != nil {
		return nil, fmt.Errorf("failed to build capture device: %w", err)
	}
	capture := audio.NewCapture(r.cfg.Capture, device, r.logger)

	recognizer, err := transcribe.NewRecognizer(r.cfg.Transcriber)
	if err != nil {
		return nil, fmt.Errorf("failed to build recognizer: %w", err)
	}
	if recognizer == nil {
		r.logger.Warn("transcription disabled, captions will not be produced")
	}

	completer, err := translate.NewCompleter(r.cfg.Translator, r.resolveAPIKey())
	if err != nil {
		return nil, fmt.Errorf("failed to build translator: %w", err)
	}
	if completer == nil && r.cfg.Translator.Enabled {
		r.logger.Warn("translation credentials missing, transcripts will pass through unmodified")
	}

	ledger := usage.NewLedger(usage.Rates{
		InputPerMTok:  r.cfg.Translator.InputRate,
		OutputPerMTok: r.cfg.Translator.OutputRate,
	})

	var sinks display.Fanout
	if r.cfg.Display.Console {
		sinks = append(sinks, display.NewConsoleSink(os.Stdout))
	}
	if r.cfg.Display.PublishToBus {
		if r.busClient == nil {
			return nil, errors.New("display.publish_to_bus requires bus.enabled")
		}
		sinks = append(sinks, display.NewBusSink(r.busClient.Conn(), r.cfg.Display.Subject, r.logger))
	}
	loop := display.NewLoop(r.cfg.Display, sinks, r.logger)

	transcriber := transcribe.NewStage(r.cfg.Transcriber, vad.NewGate(r.cfg.VAD), recognizer, ledger, r.logger)
	translator := translate.NewStage(r.cfg.Translator, completer, ledger, r.logger)

	return pipeline.NewController(r.cfg, capture, transcriber, translator, loop, ledger, r.reports, r.logger), nil
}

// resolveAPIKey prefers the environment, then the encrypted local store.
func (r *Runtime) resolveAPIKey() string {
	if key := os.Getenv(apiKeyEnv); key != "" {
		return key
	}
	store := secrets.NewStore(r.cfg.Secrets, r.logger)
	if key, ok := store.Load(); ok {
		return key
	}
	return ""
}

func (r *Runtime) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (r *Runtime) handleReady(w http.ResponseWriter, _ *http.Request) {
	if r.ready.Load() {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
		return
	}
	w.WriteHeader(http.StatusServiceUnavailable)
	_, _ = w.Write([]byte("not ready"))
}

func (r *Runtime) handleRecordStart(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := r.controller.Start(req.Context()); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, audio.ErrDeviceUnavailable) {
			status = http.StatusServiceUnavailable
		}
		writeJSON(w, status, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, r.controller.Status())
}

func (r *Runtime) handleRecordStop(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	rep, err := r.controller.Stop(req.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

func (r *Runtime) handleSession(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, r.controller.Status())
}

func (r *Runtime) handleSessions(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	limit := 50
	if raw := req.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			limit = n
		}
	}
	reports, err := r.reports.ListRecent(req.Context(), limit)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, reports)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
