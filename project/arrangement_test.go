package project

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cwbudde/algo-mixer/automation"
	"github.com/cwbudde/algo-mixer/internal/testutil"
	"github.com/cwbudde/algo-mixer/mixer"
)

const arrangementYAML = `
sample_rate: 48000
master:
  volume: 0.5
  limiter: {threshold: -3, knee: 0, ratio: 20, attack: 0.003, release: 0.25}
sources:
  - id: tone
    path: tone.wav
tracks:
  - name: lead
    pan: -0.5
    eq_enabled: true
    eq: {low: 3, mid: 0, high: -2}
    clips:
      - id: intro
        source: tone
        start: 0
        fade_in: 0.25
        automation:
          volume:
            - {time: 0, value: 0, interpolation: ease-in}
            - {time: 0.5, value: 1, interpolation: linear}
  - name: echo
    mute: true
    clips:
      - id: tail
        source: tone
        start: 2
        offset: 0.25
        duration: 1
`

func loadFixture(t *testing.T) (*Session, string) {
	t.Helper()

	dir := t.TempDir()
	writeTone(t, dir, "tone.wav", DefaultSampleRate, 1)

	path := filepath.Join(dir, "song.yaml")
	if err := os.WriteFile(path, []byte(arrangementYAML), 0o600); err != nil {
		t.Fatal(err)
	}

	s, err := LoadArrangement(path)
	if err != nil {
		t.Fatalf("LoadArrangement() error = %v", err)
	}

	return s, dir
}

func TestLoadArrangement(t *testing.T) {
	s, _ := loadFixture(t)

	tracks := s.Tracks()
	if len(tracks) != 2 {
		t.Fatalf("len(Tracks()) = %d, want 2", len(tracks))
	}

	lead := tracks[0].Settings
	if lead.Name != "lead" || lead.Volume != 1 || lead.Pan != -0.5 || !lead.EQEnabled || lead.EQ.Low != 3 {
		t.Fatalf("lead = %+v", lead)
	}

	if lead.Limiter != mixer.DefaultLimiter() {
		t.Fatalf("lead limiter lost its defaults: %+v", lead.Limiter)
	}

	if topo, _ := s.Mixer().Topology(tracks[0].ID); topo != mixer.TopologyEQ {
		t.Fatalf("lead topology = %v", topo)
	}

	if g, _ := s.Mixer().EffectiveGain(tracks[1].ID); g != 0 {
		t.Fatalf("muted track gain = %v", g)
	}

	if s.Master().Volume != 0.5 || s.Master().Limiter.Threshold != -3 {
		t.Fatalf("master = %+v", s.Master())
	}

	_, intro, err := s.FindClip("intro")
	if err != nil {
		t.Fatal(err)
	}

	testutil.RequireNear(t, "default duration", intro.Duration, 1, 1e-9)
	testutil.RequireNear(t, "automation", s.Keyframes().ValueAt("intro", automation.Volume, 0.25, 1), 0.25, 1e-12)
	testutil.RequireNear(t, "duration", s.Duration(), 3, 1e-9)
}

func TestSaveRoundTrip(t *testing.T) {
	s, dir := loadFixture(t)

	var out bytes.Buffer
	if err := s.Save(&out); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	if !strings.Contains(out.String(), "interpolation: ease-in") {
		t.Fatalf("saved arrangement lacks keyframe modes:\n%s", out.String())
	}

	again, err := Load(&out, dir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if len(again.Clips()) != 2 {
		t.Fatalf("reloaded %d clips, want 2", len(again.Clips()))
	}

	_, tail, err := again.FindClip("tail")
	if err != nil || tail.Offset != 0.25 || tail.StartTime != 2 {
		t.Fatalf("tail = %+v, %v", tail, err)
	}

	if n := len(again.Keyframes().Keyframes("intro", automation.Volume)); n != 2 {
		t.Fatalf("reloaded %d keyframes, want 2", n)
	}
}

func TestLoadRejectsUnknownFields(t *testing.T) {
	if _, err := Load(strings.NewReader("trakcs: []\n"), t.TempDir()); err == nil {
		t.Fatal("Load() with unknown field: error = nil")
	}
}
