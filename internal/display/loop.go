package display

import (
	"context"
	"log/slog"
	"time"

	"github.com/captionlabs/caption-core/internal/config"
)

// Loop drains the display queue into a sink. It owns the sink for its
// lifetime: all renders, including auto-clear, happen on this goroutine.
type Loop struct {
	cfg  config.DisplayConfig
	sink Sink
	log  *slog.Logger
}

func NewLoop(cfg config.DisplayConfig, sink Sink, log *slog.Logger) *Loop {
	return &Loop{
		cfg:  cfg,
		sink: sink,
		log:  log.With(slog.String("component", "display")),
	}
}

// Run renders captions until the input channel closes. When auto-clear is
// enabled, a caption left on screen past the configured interval is
// replaced with an empty render.
func (l *Loop) Run(ctx context.Context, in <-chan string) {
	var clear <-chan time.Time
	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case text, ok := <-in:
			if !ok {
				l.sink.Render("")
				return
			}
			l.sink.Render(text)
			if l.cfg.AutoClear && l.cfg.AutoClearMS > 0 {
				if timer != nil {
					timer.Stop()
				}
				timer = time.NewTimer(time.Duration(l.cfg.AutoClearMS) * time.Millisecond)
				clear = timer.C
			}
		case <-clear:
			l.sink.Render("")
			clear = nil
		case <-ctx.Done():
			return
		}
	}
}
