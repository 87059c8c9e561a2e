// Command mixdown renders, plays and inspects YAML arrangements.
//
// Usage:
//
//	mixdown render song.yaml -o song.wav --bits 24
//	mixdown play song.yaml --from 12.5
//	mixdown info song.yaml
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/alecthomas/kong"

	"github.com/cwbudde/algo-mixer/internal/config"
	"github.com/cwbudde/algo-mixer/project"
	"github.com/cwbudde/algo-mixer/store"
)

var version = "0.1.0"

// CLI is the command line. Global flags override the MIXER_* environment.
type CLI struct {
	SampleRate float64          `help:"Mixing sample rate in Hz (default from MIXER_SAMPLE_RATE)."`
	LogLevel   string           `help:"Log level: debug, info, warn or error (default from MIXER_LOG_LEVEL)."`
	Version    kong.VersionFlag `short:"v" help:"Show version information."`

	Render RenderCmd `cmd:"" help:"Render an arrangement to a WAV file."`
	Play   PlayCmd   `cmd:"" help:"Play an arrangement through the audio output."`
	Info   InfoCmd   `cmd:"" help:"Print tracks, clips and routing of an arrangement."`
}

// app is the state every command runs with.
type app struct {
	cfg config.Config
	log *slog.Logger
}

func (a *app) load(path string) (*project.Session, error) {
	opts := []project.Option{
		project.WithSampleRate(a.cfg.SampleRate),
		project.WithMaxTracks(a.cfg.MaxTracks),
		project.WithLogger(a.log),
	}

	if a.cfg.StoreDir != "" {
		dir, err := store.NewDir(a.cfg.StoreDir)
		if err != nil {
			return nil, err
		}

		opts = append(opts, project.WithStore(dir))
	}

	return project.LoadArrangement(path, opts...)
}

func main() {
	cli := &CLI{}
	ctx := kong.Parse(cli,
		kong.Name("mixdown"),
		kong.Description("Multi-track arrangement renderer and player"),
		kong.UsageOnError(),
		kong.Vars{"version": version},
	)

	cfg := config.Load()
	if cli.SampleRate > 0 {
		cfg.SampleRate = cli.SampleRate
	}

	if cli.LogLevel != "" {
		cfg.LogLevel = cli.LogLevel
	}

	if err := cfg.Validate(); err != nil {
		printError(err.Error())
		os.Exit(2)
	}

	level, _ := cfg.Level()
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	if err := ctx.Run(&app{cfg: cfg, log: log}); err != nil {
		printError(fmt.Sprintf("%s: %v", ctx.Command(), err))
		os.Exit(1)
	}
}
