package waveform

import (
	"errors"
	"fmt"
)

// DefaultBuckets is the number of peaks drawn for an uploaded track.
const DefaultBuckets = 100

var (
	ErrEmptyBuffer    = errors.New("waveform: empty sample buffer")
	ErrInvalidBuckets = errors.New("waveform: bucket count must be positive")
)

// Summary is a fixed-length sequence of peak magnitudes, one per bucket.
type Summary []float32

// Summarize reduces a single channel of samples to exactly buckets peak
// values. Each value is the largest absolute sample in a contiguous block of
// len(samples)/buckets samples; the trailing remainder is dropped.
//
// When there are fewer samples than buckets, every sample gets its own bucket
// and the buckets past the end of the input stay at zero.
func Summarize(samples []float32, buckets int) (Summary, error) {
	if buckets <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidBuckets, buckets)
	}
	if len(samples) == 0 {
		return nil, ErrEmptyBuffer
	}

	block := len(samples) / buckets
	filled := buckets
	if block == 0 {
		block = 1
		filled = len(samples)
	}

	out := make(Summary, buckets)
	for i := 0; i < filled; i++ {
		var peak float32
		for _, s := range samples[i*block : (i+1)*block] {
			if s < 0 {
				s = -s
			}
			if s > peak {
				peak = s
			}
		}
		out[i] = peak
	}
	return out, nil
}

// Max returns the largest value in the summary.
func (s Summary) Max() float32 {
	var m float32
	for _, v := range s {
		if v > m {
			m = v
		}
	}
	return m
}
