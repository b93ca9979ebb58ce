package audio

import "time"

// Preview playback format. Frames are interleaved int16 PCM.
const (
	SampleRate    = 48000
	Channels      = 2
	BitDepth      = 16
	FrameDuration = 20 * time.Millisecond
	FrameSize     = 960                  // samples per channel per 20ms frame
	FrameSamples  = FrameSize * Channels // total interleaved samples per frame
	FrameBytes    = FrameSamples * 2     // bytes per frame (int16 = 2 bytes)
)

// Buffer is decoded audio normalized to [-1, 1]. Samples are interleaved.
type Buffer struct {
	SampleRate int
	Channels   int
	Samples    []float32
}

// Frames returns the number of samples per channel.
func (b *Buffer) Frames() int {
	if b.Channels <= 0 {
		return 0
	}
	return len(b.Samples) / b.Channels
}

// Duration returns the playback length of the buffer.
func (b *Buffer) Duration() time.Duration {
	if b.SampleRate <= 0 {
		return 0
	}
	return time.Duration(b.Frames()) * time.Second / time.Duration(b.SampleRate)
}

// Channel de-interleaves channel ch into a new slice.
func (b *Buffer) Channel(ch int) ([]float32, error) {
	if ch < 0 || ch >= b.Channels {
		return nil, ErrNoChannel
	}
	if b.Channels == 1 {
		return b.Samples, nil
	}
	out := make([]float32, b.Frames())
	for i := range out {
		out[i] = b.Samples[i*b.Channels+ch]
	}
	return out, nil
}
