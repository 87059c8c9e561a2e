package main

import (
	"fmt"
	"strings"

	"github.com/cwbudde/algo-mixer/mixer"
)

// InfoCmd prints an arrangement summary.
type InfoCmd struct {
	Arrangement string `arg:"" type:"existingfile" help:"Arrangement YAML file."`
}

var responseFreqs = []float64{50, 100, 300, 1000, 3000, 10000, 16000}

// Run loads the arrangement and prints it.
func (c *InfoCmd) Run(a *app) error {
	s, err := a.load(c.Arrangement)
	if err != nil {
		return err
	}

	var b strings.Builder

	b.WriteString(titleStyle.Render(c.Arrangement))
	b.WriteString("\n")
	b.WriteString(keyValue("Sample rate", fmt.Sprintf("%.0f Hz", s.SampleRate())) + "\n")
	b.WriteString(keyValue("Duration", fmt.Sprintf("%.2f s", s.Duration())) + "\n")

	m := s.Mixer()
	clips := s.Clips()

	for _, t := range s.Tracks() {
		topo, _ := m.Topology(t.ID)
		gain, _ := m.EffectiveGain(t.ID)

		b.WriteString(sectionStyle.Render(fmt.Sprintf("Track %d  %s", t.ID, t.Settings.Name)))
		b.WriteString("\n")
		b.WriteString(keyValue("Routing", topo) + "\n")
		b.WriteString(keyValue("Gain", fmt.Sprintf("%.2f (volume %.2f, pan %+.2f)", gain, t.Settings.Volume, t.Settings.Pan)) + "\n")

		if t.Settings.EQEnabled {
			eq := t.Settings.EQ
			b.WriteString(keyValue("EQ", fmt.Sprintf("%+.1f / %+.1f / %+.1f dB", eq.Low, eq.Mid, eq.High)) + "\n")
		}

		for _, ref := range clips {
			if ref.Track != t.ID {
				continue
			}

			cl := ref.Clip
			b.WriteString(keyValue("Clip "+shortID(cl.ID), fmt.Sprintf("%s  %.2f-%.2f s  offset %.2f  gain %+.1f dB",
				cl.SourceID, cl.StartTime, cl.End(), cl.Offset, cl.Gain)) + "\n")
		}
	}

	b.WriteString(sectionStyle.Render("Master"))
	b.WriteString("\n")
	b.WriteString(keyValue("Volume", fmt.Sprintf("%.2f", s.Master().Volume)) + "\n")
	b.WriteString(masterResponse(m))

	fmt.Print(b.String())

	return nil
}

func masterResponse(m *mixer.Mixer) string {
	var b strings.Builder

	for _, f := range responseFreqs {
		b.WriteString(keyValue(fmt.Sprintf("EQ %g Hz", f), fmt.Sprintf("%+.2f dB", m.MasterEQResponseDB(f))) + "\n")
	}

	return b.String()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}

	return id
}
