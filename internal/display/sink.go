package display

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/captionlabs/caption-core/internal/protocol"
	"github.com/nats-io/nats.go"
)

// Sink receives display-ready caption text. Render with an empty string
// clears the current caption. Sinks are only ever called from the display
// loop goroutine.
type Sink interface {
	Render(text string)
}

// ConsoleSink writes captions as lines to a writer, typically stdout.
type ConsoleSink struct {
	w io.Writer
}

func NewConsoleSink(w io.Writer) *ConsoleSink {
	return &ConsoleSink{w: w}
}

func (s *ConsoleSink) Render(text string) {
	if text == "" {
		return
	}
	fmt.Fprintln(s.w, text)
}

// BusSink publishes captions on the bus for overlay subscribers.
type BusSink struct {
	conn    *nats.Conn
	subject string
	log     *slog.Logger
}

func NewBusSink(conn *nats.Conn, subject string, log *slog.Logger) *BusSink {
	if subject == "" {
		subject = protocol.SubjectCaptionDisplay
	}
	return &BusSink{conn: conn, subject: subject, log: log}
}

func (s *BusSink) Render(text string) {
	msg := protocol.Caption{
		Text:      text,
		Timestamp: time.Now().UTC(),
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		s.log.Warn("marshal caption", slog.String("error", err.Error()))
		return
	}
	if err := s.conn.Publish(s.subject, payload); err != nil {
		s.log.Warn("publish caption", slog.String("error", err.Error()))
	}
}

// Fanout renders to every sink in order.
type Fanout []Sink

func (f Fanout) Render(text string) {
	for _, sink := range f {
		sink.Render(text)
	}
}
