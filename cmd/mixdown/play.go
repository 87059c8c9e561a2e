package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/cwbudde/algo-mixer/internal/device"
	"github.com/cwbudde/algo-mixer/transport"
)

// PlayCmd plays an arrangement in real time.
type PlayCmd struct {
	Arrangement string  `arg:"" type:"existingfile" help:"Arrangement YAML file."`
	From        float64 `default:"0" help:"Start position in seconds."`
	LogFile     string  `help:"Append logs to this file while the player runs. Logs are discarded when empty."`
}

// Run opens the output device and shows the transport view.
func (c *PlayCmd) Run(a *app) error {
	level, _ := a.cfg.Level()

	log, closeLog, err := playLogger(c.LogFile, level)
	if err != nil {
		return err
	}

	defer func() { _ = closeLog() }()

	a.log = log

	s, err := a.load(c.Arrangement)
	if err != nil {
		return err
	}

	sr := int(s.SampleRate())
	tr := s.NewTransport(
		transport.WithBlockFrames(a.cfg.BufferFrames),
		transport.WithOutput(func(r io.Reader) device.Output { return device.NewOto(sr, r) }),
	)

	defer func() { _ = tr.Close() }()

	ctx := context.Background()
	if err := tr.Play(ctx, c.From); err != nil {
		return err
	}

	m := newPlayModel(ctx, tr, c.Arrangement, s.Duration())
	final, err := tea.NewProgram(m).Run()
	if err != nil {
		return err
	}

	return final.(playModel).err
}

// playLogger keeps log output off the terminal while the player view owns
// it: records go to path, or nowhere when path is empty.
func playLogger(path string, level slog.Level) (*slog.Logger, func() error, error) {
	opts := &slog.HandlerOptions{Level: level}

	if path == "" {
		return slog.New(slog.NewTextHandler(io.Discard, opts)), func() error { return nil }, nil
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, err
	}

	return slog.New(slog.NewTextHandler(f, opts)), f.Close, nil
}

type tickMsg time.Time

func tick() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// playModel is the transport view: a position bar with pause, stop and
// quit keys.
type playModel struct {
	ctx      context.Context
	tr       *transport.Transport
	name     string
	duration float64
	err      error
}

func newPlayModel(ctx context.Context, tr *transport.Transport, name string, duration float64) playModel {
	return playModel{ctx: ctx, tr: tr, name: name, duration: duration}
}

func (m playModel) Init() tea.Cmd { return tick() }

func (m playModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case " ":
			if m.tr.Playing() {
				m.err = m.tr.Pause()
			} else {
				m.err = m.tr.Play(m.ctx, m.tr.Position())
			}
		case "s":
			m.err = m.tr.Stop()
		case "q", "ctrl+c":
			m.err = m.tr.Stop()
			return m, tea.Quit
		}

	case tickMsg:
		if m.tr.Finished() {
			m.err = m.tr.Stop()
			return m, tea.Quit
		}

		return m, tick()
	}

	return m, nil
}

const barWidth = 40

func (m playModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("mixdown  " + m.name))
	b.WriteString("\n")

	pos := m.tr.Position()

	filled := 0
	if m.duration > 0 {
		filled = min(barWidth, int(pos/m.duration*barWidth))
	}

	b.WriteString("[" + strings.Repeat("#", filled) + strings.Repeat("-", barWidth-filled) + "]\n")
	b.WriteString(keyValue("Position", fmt.Sprintf("%6.2f / %.2f s", pos, m.duration)) + "\n")

	state := "stopped"
	if m.tr.Playing() {
		state = fmt.Sprintf("playing (%d voices)", m.tr.LiveVoices())
	} else if pos > 0 {
		state = "paused"
	}

	b.WriteString(keyValue("State", state) + "\n")

	if m.err != nil {
		b.WriteString(errorStyle.Render(m.err.Error()) + "\n")
	}

	b.WriteString(keyStyle.Render("space pause/resume  s stop  q quit") + "\n")

	return b.String()
}
