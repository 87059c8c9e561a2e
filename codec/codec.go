// Package codec decodes raw file bytes into immutable sample buffers.
//
// WAV and AIFF go through go-audio, MP3 through go-mp3 and Ogg Vorbis
// through oggvorbis. The format is chosen by file extension and falls back
// to sniffing the header.
package codec

import (
	"bytes"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/cwbudde/algo-mixer/sample"
)

var (
	// ErrDecode is matched by every DecodeError.
	ErrDecode = errors.New("codec: cannot decode")
	// ErrUnsupported is wrapped when no decoder recognises the input.
	ErrUnsupported = errors.New("codec: unsupported format")
)

// DecodeError reports malformed or unsupported input.
type DecodeError struct {
	Format string
	Name   string
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Name == "" {
		return fmt.Sprintf("codec: decode %s: %v", e.Format, e.Err)
	}

	return fmt.Sprintf("codec: decode %s %q: %v", e.Format, e.Name, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrDecode) true for any DecodeError.
func (e *DecodeError) Is(target error) bool { return target == ErrDecode }

// Decoder turns a complete encoded file into a buffer.
type Decoder interface {
	Decode(raw []byte) (*sample.Buffer, error)
}

// DecoderFunc adapts a function to Decoder.
type DecoderFunc func(raw []byte) (*sample.Buffer, error)

// Decode calls f.
func (f DecoderFunc) Decode(raw []byte) (*sample.Buffer, error) { return f(raw) }

// Registry maps format names to decoders.
type Registry struct {
	mu       sync.RWMutex
	decoders map[string]Decoder
	aliases  map[string]string
}

// NewRegistry returns a registry with the WAV, AIFF, MP3 and Vorbis
// decoders installed.
func NewRegistry() *Registry {
	r := &Registry{
		decoders: make(map[string]Decoder),
		aliases:  make(map[string]string),
	}

	r.Register("wav", DecoderFunc(decodeWAV), "wave")
	r.Register("aiff", DecoderFunc(decodeAIFF), "aif")
	r.Register("mp3", DecoderFunc(decodeMP3))
	r.Register("ogg", DecoderFunc(decodeVorbis), "oga")

	return r
}

// Register installs d under format and any extension aliases. A later
// registration replaces an earlier one.
func (r *Registry) Register(format string, d Decoder, aliases ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	format = strings.ToLower(format)
	r.decoders[format] = d

	for _, a := range aliases {
		r.aliases[strings.ToLower(a)] = format
	}
}

// Formats lists the registered format names.
func (r *Registry) Formats() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.decoders))
	for f := range r.decoders {
		out = append(out, f)
	}

	return out
}

// Decode picks a decoder from name's extension, or from the header when
// the extension is unknown, and decodes raw. Failures are *DecodeError.
func (r *Registry) Decode(name string, raw []byte) (*sample.Buffer, error) {
	format := r.resolve(strings.TrimPrefix(strings.ToLower(filepath.Ext(name)), "."))
	if format == "" {
		format = Sniff(raw)
	}

	r.mu.RLock()
	d := r.decoders[format]
	r.mu.RUnlock()

	if d == nil {
		return nil, &DecodeError{Format: "unknown", Name: name, Err: ErrUnsupported}
	}

	buf, err := d.Decode(raw)
	if err != nil {
		var de *DecodeError
		if errors.As(err, &de) {
			if de.Name == "" {
				de.Name = name
			}

			return nil, de
		}

		return nil, &DecodeError{Format: format, Name: name, Err: err}
	}

	return buf, nil
}

func (r *Registry) resolve(ext string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if _, ok := r.decoders[ext]; ok {
		return ext
	}

	return r.aliases[ext]
}

// Sniff guesses the format from magic bytes, or returns "".
func Sniff(raw []byte) string {
	switch {
	case len(raw) >= 12 && bytes.Equal(raw[:4], []byte("RIFF")) && bytes.Equal(raw[8:12], []byte("WAVE")):
		return "wav"
	case len(raw) >= 12 && bytes.Equal(raw[:4], []byte("FORM")) &&
		(bytes.Equal(raw[8:12], []byte("AIFF")) || bytes.Equal(raw[8:12], []byte("AIFC"))):
		return "aiff"
	case len(raw) >= 4 && bytes.Equal(raw[:4], []byte("OggS")):
		return "ogg"
	case len(raw) >= 3 && bytes.Equal(raw[:3], []byte("ID3")):
		return "mp3"
	case len(raw) >= 2 && raw[0] == 0xFF && raw[1]&0xE0 == 0xE0:
		return "mp3"
	}

	return ""
}
