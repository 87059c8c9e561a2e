package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/cwbudde/algo-mixer/export"
	"github.com/cwbudde/algo-mixer/measure/loudness"
	"github.com/cwbudde/algo-mixer/render"
)

// RenderCmd mixes an arrangement offline.
type RenderCmd struct {
	Arrangement string   `arg:"" type:"existingfile" help:"Arrangement YAML file."`
	Output      string   `short:"o" default:"mix.wav" help:"Output WAV file."`
	Bits        int      `default:"16" help:"Bit depth: 16, 24 or 32 (float)."`
	Tail        float64  `default:"0" help:"Seconds of silence rendered after the last clip."`
	Normalize   *float64 `help:"Normalise the peak to this level in dBFS." xor:"level"`
	TargetLUFS  *float64 `name:"target-lufs" help:"Scale the mix to this integrated loudness in LUFS." xor:"level"`
}

// Run renders and writes the file.
func (c *RenderCmd) Run(a *app) error {
	if c.Bits != 16 && c.Bits != 24 && c.Bits != 32 {
		return fmt.Errorf("%w: %d", export.ErrBitDepth, c.Bits)
	}

	s, err := a.load(c.Arrangement)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	start := time.Now()

	buf, err := s.Render(ctx, render.Options{BlockFrames: a.cfg.BufferFrames, Tail: c.Tail})
	if err != nil {
		return err
	}

	if c.Normalize != nil {
		if buf, err = export.Normalize(buf, *c.Normalize); err != nil {
			return err
		}
	}

	if c.TargetLUFS != nil {
		if buf, err = loudness.Normalize(buf, *c.TargetLUFS); err != nil {
			return err
		}
	}

	report, err := loudness.Analyze(buf)
	if err != nil {
		return err
	}

	if report.PeakDB > 0 && c.Bits != 32 {
		a.log.Warn("mix exceeds full scale and will clip", "peak_db", report.PeakDB)
	}

	if err := export.WriteFile(c.Output, buf, c.Bits); err != nil {
		return err
	}

	fmt.Println(titleStyle.Render("Rendered " + c.Output))
	fmt.Println(keyValue("Duration", fmt.Sprintf("%.2f s", buf.Duration())))
	fmt.Println(keyValue("Format", fmt.Sprintf("%d ch, %.0f Hz, %d bit", buf.Channels(), buf.SampleRate(), c.Bits)))
	fmt.Println(keyValue("Peak", fmt.Sprintf("%.2f dBFS", report.PeakDB)))
	fmt.Println(keyValue("RMS", fmt.Sprintf("%.2f dBFS", report.RMSDB)))
	fmt.Println(keyValue("Crest", fmt.Sprintf("%.2f dB", report.CrestDB)))
	fmt.Println(keyValue("Loudness", fmt.Sprintf("%.1f LUFS integrated, %.1f LUFS max short-term", report.Integrated, report.MaxShortTerm)))
	fmt.Println(keyValue("Took", time.Since(start).Round(time.Millisecond)))

	return nil
}
