// Package render mixes an arrangement offline, faster than real time, into
// a sample buffer.
package render

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"

	"github.com/cwbudde/algo-mixer/dsp/core"
	"github.com/cwbudde/algo-mixer/mixer"
	"github.com/cwbudde/algo-mixer/sample"
	"github.com/cwbudde/algo-mixer/transport"
)

// Track is a track's id and strip settings as seen by the arrangement.
type Track struct {
	ID       int
	Settings mixer.TrackSettings
}

// Arrangement is everything an offline render needs. Sources must be at
// SampleRate.
type Arrangement interface {
	transport.Arrangement
	SampleRate() float64
	Tracks() []Track
	Master() mixer.MasterSettings
}

// Options tunes an offline render.
type Options struct {
	// BlockFrames is the render block size. Zero selects
	// transport.DefaultBlockFrames.
	BlockFrames int
	// Tail extends the render past the arrangement end, in seconds.
	Tail float64
	Logger *slog.Logger
	// Progress, if set, is called after each block.
	Progress func(done, total int)
}

// Offline renders the arrangement from time zero to its end through a
// private mixer and transport built from the same settings. Nothing is
// shared with a live transport. The render stops early with ctx's error
// when ctx is done.
func Offline(ctx context.Context, arr Arrangement, opts Options) (*sample.Buffer, error) {
	log := opts.Logger
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	block := opts.BlockFrames
	if block <= 0 {
		block = transport.DefaultBlockFrames
	}

	if opts.Tail < 0 || !core.IsFinite(opts.Tail) {
		return nil, fmt.Errorf("render: invalid tail %v", opts.Tail)
	}

	sr := arr.SampleRate()

	m, ids, err := build(arr, sr, log)
	if err != nil {
		return nil, err
	}

	tr := transport.New(m, remap{Arrangement: arr, ids: ids},
		transport.WithBlockFrames(block), transport.WithLogger(log))
	defer func() { _ = tr.Close() }()

	total := int(math.Ceil((tr.CalculateDuration() + opts.Tail) * sr))
	out := [][]float64{make([]float64, total), make([]float64, total)}

	if err := tr.Play(ctx, 0); err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}

	log.Info("render: offline start", "frames", total, "tracks", len(ids))

	for done := 0; done < total; {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("render: cancelled at frame %d: %w", done, err)
		}

		n := min(block, total-done)
		tr.Render(out[0][done:done+n], out[1][done:done+n])
		done += n

		if opts.Progress != nil {
			opts.Progress(done, total)
		}
	}

	return sample.New(sr, out)
}

func build(arr Arrangement, sr float64, log *slog.Logger) (*mixer.Mixer, map[int]int, error) {
	tracks := arr.Tracks()

	m, err := mixer.New(
		mixer.WithSampleRate(sr),
		mixer.WithMaxTracks(max(len(tracks), 1)),
		mixer.WithLogger(log),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("render: %w", err)
	}

	if err := m.SetMaster(arr.Master()); err != nil {
		return nil, nil, fmt.Errorf("render: master: %w", err)
	}

	ids := make(map[int]int, len(tracks))

	for _, t := range tracks {
		id, err := m.AddTrack(t.Settings)
		if err != nil {
			return nil, nil, fmt.Errorf("render: track %d: %w", t.ID, err)
		}

		ids[t.ID] = id
	}

	return m, ids, nil
}

// remap translates arrangement track ids to the private mixer's ids.
type remap struct {
	Arrangement
	ids map[int]int
}

func (r remap) Clips() []transport.ClipRef {
	clips := r.Arrangement.Clips()
	out := make([]transport.ClipRef, 0, len(clips))

	for _, c := range clips {
		id, ok := r.ids[c.Track]
		if !ok {
			continue
		}

		c.Track = id
		out = append(out, c)
	}

	return out
}
