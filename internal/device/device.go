// Package device opens the real-time audio output.
package device

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/hajimehoshi/oto/v2"
)

// ErrUnavailable is matched by every device Error.
var ErrUnavailable = errors.New("device: audio output unavailable")

// Error reports a failure of the output device. Playback can be retried
// after it.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string { return fmt.Sprintf("device: %s: %v", e.Op, e.Err) }

func (e *Error) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrUnavailable) true for any Error.
func (e *Error) Is(target error) bool { return target == ErrUnavailable }

// Output is a device that pulls audio from a stream and can be suspended.
type Output interface {
	// Resume starts or restarts the device, blocking until it is running
	// or ctx is done.
	Resume(ctx context.Context) error
	// Suspend pauses the device clock.
	Suspend() error
	Close() error
}

// Oto plays a stream of interleaved float32 little-endian stereo frames
// through the system output.
type Oto struct {
	sampleRate int
	stream     io.Reader

	mu     sync.Mutex
	ctx    *oto.Context
	ready  chan struct{}
	player oto.Player
}

// NewOto prepares an output for stream. The device is opened lazily by
// the first Resume.
func NewOto(sampleRate int, stream io.Reader) *Oto {
	return &Oto{sampleRate: sampleRate, stream: stream}
}

// Resume opens the device on first use, waits until it is ready and
// starts pulling from the stream.
func (o *Oto) Resume(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.ctx == nil {
		c, ready, err := oto.NewContext(o.sampleRate, 2, oto.FormatFloat32LE)
		if err != nil {
			return &Error{Op: "open", Err: err}
		}

		o.ctx, o.ready = c, ready
	}

	select {
	case <-o.ready:
	case <-ctx.Done():
		return &Error{Op: "wait ready", Err: ctx.Err()}
	}

	if err := o.ctx.Resume(); err != nil {
		return &Error{Op: "resume", Err: err}
	}

	if o.player == nil {
		o.player = o.ctx.NewPlayer(o.stream)
	}

	o.player.Play()

	if err := o.player.Err(); err != nil {
		return &Error{Op: "play", Err: err}
	}

	return nil
}

// Suspend pauses the device and drops audio the player has buffered, so
// the next Resume starts with freshly rendered frames.
func (o *Oto) Suspend() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.ctx == nil {
		return nil
	}

	if o.player != nil {
		o.player.Reset()
	}

	if err := o.ctx.Suspend(); err != nil {
		return &Error{Op: "suspend", Err: err}
	}

	return nil
}

// Close releases the player.
func (o *Oto) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.player == nil {
		return nil
	}

	err := o.player.Close()
	o.player = nil

	if err != nil {
		return &Error{Op: "close", Err: err}
	}

	return nil
}
