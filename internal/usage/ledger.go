// Package usage tracks per-session counters and estimated translation cost.
package usage

import (
	"sync"
	"time"
)

// Rates are fixed per-million-token prices used for cost estimation.
type Rates struct {
	InputPerMTok  float64
	OutputPerMTok float64
}

// Report is the end-of-session snapshot handed to the report store.
type Report struct {
	SessionID      string    `json:"session_id"`
	TargetLanguage string    `json:"target_language"`
	StartedAt      time.Time `json:"started_at"`
	EndedAt        time.Time `json:"ended_at"`
	Segments       int64     `json:"segments"`
	Transcripts    int64     `json:"transcripts"`
	Translations   int64     `json:"translations"`
	Passthroughs   int64     `json:"passthroughs"`
	InputTokens    int64     `json:"input_tokens"`
	OutputTokens   int64     `json:"output_tokens"`
	Cost           float64   `json:"cost"`
}

func (r Report) Duration() time.Duration {
	return r.EndedAt.Sub(r.StartedAt)
}

// Ledger accumulates session counters. Increments are serialized so the
// translation stage may be parallelized without losing counts.
type Ledger struct {
	mu    sync.Mutex
	rates Rates

	started      time.Time
	segments     int64
	transcripts  int64
	translations int64
	passthroughs int64
	inputTokens  int64
	outputTokens int64
	cost         float64
}

func NewLedger(rates Rates) *Ledger {
	return &Ledger{rates: rates}
}

// Reset clears all counters and marks the session start.
func (l *Ledger) Reset(start time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.started = start
	l.segments = 0
	l.transcripts = 0
	l.translations = 0
	l.passthroughs = 0
	l.inputTokens = 0
	l.outputTokens = 0
	l.cost = 0
}

func (l *Ledger) SegmentProcessed() {
	l.mu.Lock()
	l.segments++
	l.mu.Unlock()
}

func (l *Ledger) TranscriptProduced() {
	l.mu.Lock()
	l.transcripts++
	l.mu.Unlock()
}

// TranslationCompleted records one successful service call and its token
// usage, accumulating the estimated cost at the configured rates.
func (l *Ledger) TranslationCompleted(inputTokens, outputTokens int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.translations++
	l.inputTokens += int64(inputTokens)
	l.outputTokens += int64(outputTokens)
	l.cost += float64(inputTokens)/1_000_000*l.rates.InputPerMTok +
		float64(outputTokens)/1_000_000*l.rates.OutputPerMTok
}

// Passthrough records a transcript that reached the display without a
// translation call (disabled backend, failure fallback, or duplicate skip).
func (l *Ledger) Passthrough() {
	l.mu.Lock()
	l.passthroughs++
	l.mu.Unlock()
}

// Snapshot returns the session totals as of end.
func (l *Ledger) Snapshot(end time.Time) Report {
	l.mu.Lock()
	defer l.mu.Unlock()
	return Report{
		StartedAt:    l.started,
		EndedAt:      end,
		Segments:     l.segments,
		Transcripts:  l.transcripts,
		Translations: l.translations,
		Passthroughs: l.passthroughs,
		InputTokens:  l.inputTokens,
		OutputTokens: l.outputTokens,
		Cost:         l.cost,
	}
}
