package audio

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/go-audio/wav"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported audio format")
	ErrNoChannel         = errors.New("channel out of range")
)

const wavFormatPCM = 1

// Decode reads an audio file into a normalized float buffer. WAV files are
// decoded in-process; anything else is handed to FFmpeg, which returns the
// first channel only, resampled to SampleRate.
func Decode(ctx context.Context, path string) (*Buffer, error) {
	if strings.EqualFold(filepath.Ext(path), ".wav") {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", path, err)
		}
		buf, err := DecodeWAV(f)
		f.Close()
		if err == nil {
			return buf, nil
		}
		if !errors.Is(err, ErrUnsupportedFormat) {
			return nil, fmt.Errorf("decode %s: %w", path, err)
		}
		// non-PCM or 8-bit WAV: let FFmpeg deal with it
	}
	return decodeFFmpeg(ctx, path)
}

// DecodeWAV decodes 16, 24 or 32-bit integer PCM WAV data.
func DecodeWAV(r io.ReadSeeker) (*Buffer, error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return nil, fmt.Errorf("%w: not a wav file", ErrUnsupportedFormat)
	}
	if dec.WavAudioFormat != wavFormatPCM {
		return nil, fmt.Errorf("%w: wav format %d", ErrUnsupportedFormat, dec.WavAudioFormat)
	}
	switch dec.BitDepth {
	case 16, 24, 32:
	default:
		return nil, fmt.Errorf("%w: %d-bit wav", ErrUnsupportedFormat, dec.BitDepth)
	}

	pcm, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("read pcm: %w", err)
	}

	scale := float32(math.Exp2(float64(dec.BitDepth) - 1))
	samples := make([]float32, len(pcm.Data))
	for i, v := range pcm.Data {
		samples[i] = clamp(float32(v) / scale)
	}
	return &Buffer{
		SampleRate: int(dec.SampleRate),
		Channels:   int(dec.NumChans),
		Samples:    samples,
	}, nil
}

// decodeFFmpeg runs FFmpeg to decode channel 0 of any container it supports
// into raw little-endian float32 samples.
func decodeFFmpeg(ctx context.Context, path string) (*Buffer, error) {
	cmd := exec.CommandContext(ctx, "ffmpeg",
		"-i", path,
		"-af", "pan=mono|c0=c0",
		"-f", "f32le",
		"-acodec", "pcm_f32le",
		"-ar", "48000",
		"-loglevel", "error",
		"pipe:1",
	)

	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("ffmpeg decode %s: %w", path, err)
	}

	samples := make([]float32, len(out)/4)
	for i := range samples {
		samples[i] = clamp(math.Float32frombits(binary.LittleEndian.Uint32(out[i*4:])))
	}
	return &Buffer{SampleRate: SampleRate, Channels: 1, Samples: samples}, nil
}

// DecodePCM runs FFmpeg to decode an audio file to raw PCM int16 samples in
// the preview playback format (interleaved stereo at 48kHz).
func DecodePCM(ctx context.Context, path string) ([]int16, error) {
	cmd := exec.CommandContext(ctx, "ffmpeg",
		"-i", path,
		"-f", "s16le",
		"-acodec", "pcm_s16le",
		"-ar", "48000",
		"-ac", "2",
		"-loglevel", "error",
		"pipe:1",
	)

	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("ffmpeg decode %s: %w", path, err)
	}

	samples := make([]int16, len(out)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(out[i*2 : i*2+2]))
	}
	return samples, nil
}

// SamplesToBytes converts int16 samples to little-endian bytes.
func SamplesToBytes(samples []int16) []byte {
	buf := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(s))
	}
	return buf
}

func clamp(v float32) float32 {
	switch {
	case v > 1:
		return 1
	case v < -1:
		return -1
	case math.IsNaN(float64(v)):
		return 0
	}
	return v
}
