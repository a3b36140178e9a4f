package audio

import (
	"encoding/binary"
	"fmt"
	"io"
	"os/exec"
	"sync"

	"github.com/captionlabs/caption-core/internal/config"
	"github.com/mattn/go-shellwords"
)

// execDevice captures audio by spawning an external recorder (arecord, sox,
// ffmpeg) that streams raw little-endian s16 mono PCM on stdout.
type execDevice struct {
	args []string
	cfg  config.CaptureConfig

	mu     sync.Mutex
	cmd    *exec.Cmd
	stdout io.ReadCloser
}

func newExecDevice(cfg config.CaptureConfig) (Device, error) {
	parser := shellwords.NewParser()
	args, err := parser.Parse(cfg.Command)
	if err != nil {
		return nil, fmt.Errorf("parse capture command: %w", err)
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("capture command is empty")
	}
	return &execDevice{args: args, cfg: cfg}, nil
}

func (d *execDevice) Open() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.cmd != nil {
		return fmt.Errorf("capture command already running: %w", ErrDeviceUnavailable)
	}

	cmd := exec.Command(d.args[0], d.args[1:]...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("capture stdout pipe: %w: %v", ErrDeviceUnavailable, err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start capture command: %w: %v", ErrDeviceUnavailable, err)
	}
	d.cmd = cmd
	d.stdout = stdout
	return nil
}

func (d *execDevice) Read(buf []int16) error {
	d.mu.Lock()
	stdout := d.stdout
	d.mu.Unlock()
	if stdout == nil {
		return fmt.Errorf("capture command not running")
	}

	raw := make([]byte, len(buf)*2)
	if _, err := io.ReadFull(stdout, raw); err != nil {
		return fmt.Errorf("read capture stream: %w", err)
	}
	for i := range buf {
		buf[i] = int16(binary.LittleEndian.Uint16(raw[i*2:]))
	}
	return nil
}

func (d *execDevice) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.cmd == nil {
		return nil
	}
	_ = d.stdout.Close()
	_ = d.cmd.Process.Kill()
	// The recorder is killed on stop; its exit status is expected noise.
	_ = d.cmd.Wait()
	d.cmd = nil
	d.stdout = nil
	return nil
}
