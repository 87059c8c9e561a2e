// Package sample holds decoded audio in memory.
package sample

import (
	"errors"
	"fmt"
	"math"

	"github.com/cwbudde/algo-mixer/dsp/resample"
)

// ErrInvalidBuffer is returned when channel data or the sample rate is
// unusable.
var ErrInvalidBuffer = errors.New("sample: invalid buffer")

// Buffer is immutable decoded audio. It is shared read-only between every
// voice that plays it, so callers must not modify the slices returned by
// Channel.
type Buffer struct {
	sampleRate float64
	data       [][]float64
}

// New wraps per-channel data. The buffer takes ownership of the slices.
func New(sampleRate float64, channels [][]float64) (*Buffer, error) {
	if sampleRate <= 0 || math.IsNaN(sampleRate) || math.IsInf(sampleRate, 0) {
		return nil, fmt.Errorf("%w: sample rate %v", ErrInvalidBuffer, sampleRate)
	}

	if len(channels) == 0 {
		return nil, fmt.Errorf("%w: no channels", ErrInvalidBuffer)
	}

	for i, ch := range channels {
		if len(ch) != len(channels[0]) {
			return nil, fmt.Errorf("%w: channel %d has %d frames, want %d", ErrInvalidBuffer, i, len(ch), len(channels[0]))
		}
	}

	return &Buffer{sampleRate: sampleRate, data: channels}, nil
}

// FromInterleaved splits interleaved samples into channels.
func FromInterleaved(sampleRate float64, channels int, interleaved []float32) (*Buffer, error) {
	if channels <= 0 {
		return nil, fmt.Errorf("%w: %d channels", ErrInvalidBuffer, channels)
	}

	frames := len(interleaved) / channels
	data := make([][]float64, channels)

	for c := range data {
		ch := make([]float64, frames)
		for i := range ch {
			ch[i] = float64(interleaved[i*channels+c])
		}

		data[c] = ch
	}

	return New(sampleRate, data)
}

// Silence returns a buffer of zeros.
func Silence(sampleRate float64, channels, frames int) (*Buffer, error) {
	if channels <= 0 || frames < 0 {
		return nil, fmt.Errorf("%w: %d channels, %d frames", ErrInvalidBuffer, channels, frames)
	}

	data := make([][]float64, channels)
	for c := range data {
		data[c] = make([]float64, frames)
	}

	return New(sampleRate, data)
}

// SampleRate returns the rate in Hz.
func (b *Buffer) SampleRate() float64 { return b.sampleRate }

// Channels returns the channel count.
func (b *Buffer) Channels() int { return len(b.data) }

// Frames returns the number of sample frames.
func (b *Buffer) Frames() int { return len(b.data[0]) }

// Duration returns the length in seconds.
func (b *Buffer) Duration() float64 { return float64(b.Frames()) / b.sampleRate }

// Channel returns the samples of channel c. The slice must not be modified.
func (b *Buffer) Channel(c int) []float64 { return b.data[c] }

// Stereo returns the left and right source channels. Mono buffers return
// the same slice twice; extra channels are ignored.
func (b *Buffer) Stereo() (left, right []float64) {
	if len(b.data) == 1 {
		return b.data[0], b.data[0]
	}

	return b.data[0], b.data[1]
}

// Interleaved returns the samples as interleaved float32.
func (b *Buffer) Interleaved() []float32 {
	ch := len(b.data)
	out := make([]float32, b.Frames()*ch)

	for c, data := range b.data {
		for i, v := range data {
			out[i*ch+c] = float32(v)
		}
	}

	return out
}

// Peak returns the largest absolute sample value.
func (b *Buffer) Peak() float64 {
	peak := 0.0

	for _, ch := range b.data {
		for _, v := range ch {
			peak = math.Max(peak, math.Abs(v))
		}
	}

	return peak
}

// Resample returns the buffer converted to rate. A buffer already at rate
// is returned unchanged.
func (b *Buffer) Resample(rate float64, q resample.Quality) (*Buffer, error) {
	if rate == b.sampleRate {
		return b, nil
	}

	conv, err := resample.New(b.sampleRate, rate, q)
	if err != nil {
		return nil, fmt.Errorf("sample: %w", err)
	}

	data := make([][]float64, len(b.data))
	for c, ch := range b.data {
		data[c] = conv.Convert(ch)
	}

	return New(rate, data)
}
