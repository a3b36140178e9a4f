package audio

import (
	"math"
	"time"
)

// Segment is one fixed-duration clip of mono 16-bit PCM handed downstream for
// transcription. It is immutable after emission and consumed exactly once.
type Segment struct {
	Samples    []int16
	SampleRate int
	Channels   int
	Captured   time.Time
}

func (s Segment) Duration() time.Duration {
	if s.SampleRate <= 0 {
		return 0
	}
	return time.Duration(len(s.Samples)) * time.Second / time.Duration(s.SampleRate)
}

// RMS returns the root-mean-square amplitude of the segment.
func (s Segment) RMS() float64 {
	if len(s.Samples) == 0 {
		return 0
	}
	var sum float64
	for _, sample := range s.Samples {
		v := float64(sample)
		sum += v * v
	}
	return math.Sqrt(sum / float64(len(s.Samples)))
}

// PCMBytes returns the samples as little-endian bytes, the layout expected by
// WAV scratch files and external recognizers.
func (s Segment) PCMBytes() []byte {
	out := make([]byte, len(s.Samples)*2)
	for i, sample := range s.Samples {
		out[i*2] = byte(uint16(sample))
		out[i*2+1] = byte(uint16(sample) >> 8)
	}
	return out
}
