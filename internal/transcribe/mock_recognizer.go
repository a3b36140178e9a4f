package transcribe

import (
	"context"
	"fmt"
)

type mockRecognizer struct{}

func NewMockRecognizer() Recognizer {
	return &mockRecognizer{}
}

func (m *mockRecognizer) Transcribe(_ context.Context, samples []int16, sampleRate int) (string, error) {
	seconds := float64(len(samples)) / float64(sampleRate)
	return fmt.Sprintf("[mock transcript %.1fs]", seconds), nil
}
