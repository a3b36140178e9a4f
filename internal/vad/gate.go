// Package vad implements energy-based voice activity detection.
package vad

import (
	"github.com/captionlabs/caption-core/internal/audio"
	"github.com/captionlabs/caption-core/internal/config"
)

// DefaultThreshold separates typical speech volume from silence and
// background noise on a 16-bit mono stream. Fixed, not adaptive to mic gain.
const DefaultThreshold = 150.0

// Gate decides whether a segment carries enough signal energy to be worth
// transcribing. Pure: no side effects, no I/O.
type Gate struct {
	threshold float64
}

func NewGate(cfg config.VADConfig) Gate {
	threshold := cfg.Threshold
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return Gate{threshold: threshold}
}

// Accepts reports whether the segment's RMS amplitude reaches the threshold.
// An all-zero segment is always rejected.
func (g Gate) Accepts(seg audio.Segment) bool {
	return seg.RMS() >= g.threshold
}

func (g Gate) Threshold() float64 {
	return g.threshold
}
