package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"sync"

	"github.com/captionlabs/caption-core/internal/config"
	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/mattn/go-shellwords"
)

// execRecognizer shells out to a whisper-style CLI. The clip is written to a
// scratch WAV file which is removed on every exit path.
type execRecognizer struct {
	cmd []string
	cfg config.TranscriberConfig
	mu  sync.Mutex
}

type execResult struct {
	Text string `json:"text"`
}

func NewExecRecognizer(cfg config.TranscriberConfig) (Recognizer, error) {
	parser := shellwords.NewParser()
	args, err := parser.Parse(cfg.Command)
	if err != nil {
		return nil, fmt.Errorf("parse transcriber command: %w", err)
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("transcriber command is empty")
	}
	return &execRecognizer{cmd: args, cfg: cfg}, nil
}

func (r *execRecognizer) Transcribe(ctx context.Context, samples []int16, sampleRate int) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	file, err := os.CreateTemp(os.TempDir(), "caption_stt_*.wav")
	if err != nil {
		return "", fmt.Errorf("temp file: %w", err)
	}
	defer os.Remove(file.Name())
	defer file.Close()

	if err := writeSamplesToWav(file, samples, sampleRate); err != nil {
		return "", err
	}

	cmdArgs := append([]string{}, r.cmd[1:]...)
	cmdArgs = append(cmdArgs, "--audio", file.Name())
	if r.cfg.ModelPath != "" {
		cmdArgs = append(cmdArgs, "--model", r.cfg.ModelPath)
	}
	if r.cfg.Language != "" {
		cmdArgs = append(cmdArgs, "--language", r.cfg.Language)
	}

	command := exec.CommandContext(ctx, r.cmd[0], cmdArgs...)
	var stdout bytes.Buffer
	var stderr bytes.Buffer
	command.Stdout = &stdout
	command.Stderr = &stderr

	if err := command.Run(); err != nil {
		return "", fmt.Errorf("transcriber command failed: %w: %s", err, stderr.String())
	}

	var resp execResult
	if err := json.Unmarshal(stdout.Bytes(), &resp); err != nil {
		return "", fmt.Errorf("decode transcriber response: %w", err)
	}
	return resp.Text, nil
}

func writeSamplesToWav(file *os.File, samples []int16, sampleRate int) error {
	buffer := &audio.IntBuffer{Format: &audio.Format{NumChannels: 1, SampleRate: sampleRate}}
	data := make([]int, len(samples))
	for i, sample := range samples {
		data[i] = int(sample)
	}
	buffer.Data = data

	enc := wav.NewEncoder(file, sampleRate, 16, 1, 1)
	if err := enc.Write(buffer); err != nil {
		return fmt.Errorf("write wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("close wav encoder: %w", err)
	}
	return nil
}
