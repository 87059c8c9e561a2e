package codec

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/go-audio/aiff"
	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	gomp3 "github.com/hajimehoshi/go-mp3"
	"github.com/jfreymuth/oggvorbis"

	"github.com/cwbudde/algo-mixer/sample"
)

const (
	wavFormatPCM        = 1
	wavFormatFloat      = 3
	wavFormatExtensible = 0xFFFE
)

var (
	errNotWAV   = errors.New("not a RIFF/WAVE file")
	errNotAIFF  = errors.New("not an AIFF file")
	errNoFrames = errors.New("no audio frames")
)

// intScale returns the full-scale divisor for signed integer samples.
func intScale(bitDepth int) (float64, error) {
	switch bitDepth {
	case 8:
		return 1 << 7, nil
	case 16:
		return 1 << 15, nil
	case 24:
		return 1 << 23, nil
	case 32:
		return 1 << 31, nil
	}

	return 0, fmt.Errorf("unsupported bit depth %d", bitDepth)
}

// deinterleave converts go-audio integer frames into per-channel floats.
// conv maps one raw sample to [-1, 1].
func deinterleave(data []int, channels int, conv func(int) float64) [][]float64 {
	frames := len(data) / channels
	out := make([][]float64, channels)

	for c := range out {
		ch := make([]float64, frames)
		for i := range ch {
			ch[i] = conv(data[i*channels+c])
		}

		out[c] = ch
	}

	return out
}

func decodeWAV(raw []byte) (*sample.Buffer, error) {
	dec := wav.NewDecoder(bytes.NewReader(raw))
	if !dec.IsValidFile() {
		return nil, &DecodeError{Format: "wav", Err: errNotWAV}
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, &DecodeError{Format: "wav", Err: err}
	}

	channels := int(dec.NumChans)
	if channels == 0 || len(buf.Data) < channels {
		return nil, &DecodeError{Format: "wav", Err: errNoFrames}
	}

	var conv func(int) float64

	switch {
	case dec.WavAudioFormat == wavFormatFloat && dec.BitDepth == 32:
		// go-audio hands back the raw little-endian word.
		conv = func(v int) float64 { return float64(math.Float32frombits(uint32(int32(v)))) }
	case dec.WavAudioFormat == wavFormatPCM || dec.WavAudioFormat == wavFormatExtensible:
		scale, err := intScale(int(dec.BitDepth))
		if err != nil {
			return nil, &DecodeError{Format: "wav", Err: err}
		}

		if dec.BitDepth == 8 {
			// 8-bit WAV is unsigned.
			conv = func(v int) float64 { return float64(v-128) / scale }
		} else {
			conv = func(v int) float64 { return float64(v) / scale }
		}
	default:
		return nil, &DecodeError{
			Format: "wav",
			Err:    fmt.Errorf("unsupported encoding %d at %d bits", dec.WavAudioFormat, dec.BitDepth),
		}
	}

	return sample.New(float64(dec.SampleRate), deinterleave(buf.Data, channels, conv))
}

func decodeAIFF(raw []byte) (*sample.Buffer, error) {
	dec := aiff.NewDecoder(bytes.NewReader(raw))
	if !dec.IsValidFile() {
		return nil, &DecodeError{Format: "aiff", Err: errNotAIFF}
	}

	dec.ReadInfo()

	format := dec.Format()
	if format == nil || format.NumChannels == 0 {
		return nil, &DecodeError{Format: "aiff", Err: errNoFrames}
	}

	scale, err := intScale(int(dec.BitDepth))
	if err != nil {
		return nil, &DecodeError{Format: "aiff", Err: err}
	}

	var data []int

	chunk := &goaudio.IntBuffer{Data: make([]int, 4096*format.NumChannels), Format: format}

	for {
		n, err := dec.PCMBuffer(chunk)
		data = append(data, chunk.Data[:n]...)

		if err != nil && !errors.Is(err, io.EOF) {
			return nil, &DecodeError{Format: "aiff", Err: err}
		}

		if n == 0 || err != nil {
			break
		}
	}

	if len(data) < format.NumChannels {
		return nil, &DecodeError{Format: "aiff", Err: errNoFrames}
	}

	conv := func(v int) float64 { return float64(v) / scale }

	return sample.New(float64(format.SampleRate), deinterleave(data, format.NumChannels, conv))
}

func decodeMP3(raw []byte) (*sample.Buffer, error) {
	dec, err := gomp3.NewDecoder(bytes.NewReader(raw))
	if err != nil {
		return nil, &DecodeError{Format: "mp3", Err: err}
	}

	pcm, err := io.ReadAll(dec)
	if err != nil {
		return nil, &DecodeError{Format: "mp3", Err: err}
	}

	// go-mp3 always produces interleaved 16-bit little-endian stereo.
	frames := len(pcm) / 4
	if frames == 0 {
		return nil, &DecodeError{Format: "mp3", Err: errNoFrames}
	}

	left := make([]float64, frames)
	right := make([]float64, frames)

	for i := range frames {
		left[i] = float64(int16(uint16(pcm[4*i])|uint16(pcm[4*i+1])<<8)) / 32768
		right[i] = float64(int16(uint16(pcm[4*i+2])|uint16(pcm[4*i+3])<<8)) / 32768
	}

	return sample.New(float64(dec.SampleRate()), [][]float64{left, right})
}

func decodeVorbis(raw []byte) (*sample.Buffer, error) {
	data, format, err := oggvorbis.ReadAll(bytes.NewReader(raw))
	if err != nil {
		return nil, &DecodeError{Format: "ogg", Err: err}
	}

	if format == nil || format.Channels == 0 || len(data) < format.Channels {
		return nil, &DecodeError{Format: "ogg", Err: errNoFrames}
	}

	return sample.FromInterleaved(float64(format.SampleRate), format.Channels, data)
}
