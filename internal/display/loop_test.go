package display

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/captionlabs/caption-core/internal/config"
)

type recordingSink struct {
	mu     sync.Mutex
	frames []string
}

func (s *recordingSink) Render(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames = append(s.frames, text)
}

func (s *recordingSink) snapshot() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.frames))
	copy(out, s.frames)
	return out
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, nil))
}

func TestLoopRendersUntilChannelCloses(t *testing.T) {
	sink := &recordingSink{}
	loop := NewLoop(config.DisplayConfig{}, sink, testLogger())

	in := make(chan string, 4)
	in <- "hello"
	in <- "world"
	close(in)

	done := make(chan struct{})
	go func() {
		loop.Run(context.Background(), in)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("loop did not exit after channel close")
	}

	got := sink.snapshot()
	want := []string{"hello", "world", ""}
	if len(got) != len(want) {
		t.Fatalf("unexpected frames %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("frame %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestLoopAutoClearsAfterInterval(t *testing.T) {
	sink := &recordingSink{}
	loop := NewLoop(config.DisplayConfig{AutoClear: true, AutoClearMS: 20}, sink, testLogger())

	in := make(chan string, 1)
	in <- "caption"

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		loop.Run(ctx, in)
		close(done)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for {
		frames := sink.snapshot()
		if len(frames) >= 2 && frames[len(frames)-1] == "" {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("auto-clear never fired, frames %v", frames)
		}
		time.Sleep(5 * time.Millisecond)
	}

	cancel()
	<-done
}

func TestConsoleSinkSkipsEmptyRenders(t *testing.T) {
	var buf bytes.Buffer
	sink := NewConsoleSink(&buf)

	sink.Render("first")
	sink.Render("")
	sink.Render("second")

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 2 || lines[0] != "first" || lines[1] != "second" {
		t.Fatalf("unexpected console output %q", buf.String())
	}
}

func TestFanoutRendersAllSinks(t *testing.T) {
	a := &recordingSink{}
	b := &recordingSink{}

	Fanout{a, b}.Render("caption")

	if len(a.snapshot()) != 1 || len(b.snapshot()) != 1 {
		t.Fatal("expected both sinks to render")
	}
}
