// Package export writes rendered buffers to WAV files.
package export

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/cwbudde/algo-mixer/dsp/core"
	"github.com/cwbudde/algo-mixer/dsp/dither"
	"github.com/cwbudde/algo-mixer/sample"
)

// ErrBitDepth is returned for a bit depth other than 16, 24 or 32.
var ErrBitDepth = errors.New("export: unsupported bit depth")

const (
	formatPCM   = 1
	formatFloat = 3
)

// WriteWAV encodes buf as a WAV stream. 16 and 24 bits are integer PCM
// with triangular dither; 32 bits is IEEE float.
func WriteWAV(w io.WriteSeeker, buf *sample.Buffer, bitDepth int) error {
	format := formatPCM

	switch bitDepth {
	case 16, 24:
	case 32:
		format = formatFloat
	default:
		return fmt.Errorf("%w: %d", ErrBitDepth, bitDepth)
	}

	data, err := interleave(buf, bitDepth)
	if err != nil {
		return err
	}

	channels := buf.Channels()
	rate := int(math.Round(buf.SampleRate()))

	enc := wav.NewEncoder(w, rate, bitDepth, channels, format)

	ib := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: channels, SampleRate: rate},
		Data:           data,
		SourceBitDepth: bitDepth,
	}

	if err := enc.Write(ib); err != nil {
		return fmt.Errorf("export: write samples: %w", err)
	}

	if err := enc.Close(); err != nil {
		return fmt.Errorf("export: finish wav: %w", err)
	}

	return nil
}

// WriteFile writes buf to a new WAV file at path.
func WriteFile(path string, buf *sample.Buffer, bitDepth int) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("export: %w", err)
	}

	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("export: %w", cerr)
		}
	}()

	return WriteWAV(f, buf, bitDepth)
}

func interleave(buf *sample.Buffer, bitDepth int) ([]int, error) {
	channels, frames := buf.Channels(), buf.Frames()
	data := make([]int, channels*frames)

	if bitDepth == 32 {
		for c := range channels {
			for i, v := range buf.Channel(c) {
				// The encoder writes 32-bit samples verbatim, so the float
				// bits travel through an int32.
				data[i*channels+c] = int(int32(math.Float32bits(float32(v))))
			}
		}

		return data, nil
	}

	for c := range channels {
		q, err := dither.NewQuantizer(bitDepth, dither.WithType(dither.Triangular))
		if err != nil {
			return nil, fmt.Errorf("export: %w", err)
		}

		for i, v := range buf.Channel(c) {
			data[i*channels+c] = q.Quantize(v)
		}
	}

	return data, nil
}

// Normalize returns a copy of buf scaled so its peak sits at peakDB dBFS.
// A silent buffer is returned unchanged.
func Normalize(buf *sample.Buffer, peakDB float64) (*sample.Buffer, error) {
	if peakDB > 0 || !core.IsFinite(peakDB) {
		return nil, fmt.Errorf("export: normalize target must be finite and at most 0 dBFS: %v", peakDB)
	}

	peak := buf.Peak()
	if peak == 0 {
		return buf, nil
	}

	gain := core.DBToLinear(peakDB) / peak
	data := make([][]float64, buf.Channels())

	for c := range data {
		data[c] = append([]float64(nil), buf.Channel(c)...)
		core.Scale(data[c], gain)
	}

	return sample.New(buf.SampleRate(), data)
}
