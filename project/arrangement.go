package project

import (
	"cmp"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/cwbudde/algo-mixer/automation"
	"github.com/cwbudde/algo-mixer/mixer"
	"github.com/cwbudde/algo-mixer/timeline"
)

// Arrangement is the YAML form of a session.
type Arrangement struct {
	SampleRate float64               `yaml:"sample_rate,omitempty"`
	Master     *mixer.MasterSettings `yaml:"master,omitempty"`
	Sources    []SourceFile          `yaml:"sources"`
	Tracks     []TrackFile           `yaml:"tracks"`
}

// SourceFile names an audio file. Relative paths are resolved against the
// arrangement's directory.
type SourceFile struct {
	ID   string `yaml:"id"`
	Path string `yaml:"path"`
}

// TrackFile is a track's strip settings and clips.
type TrackFile struct {
	mixer.TrackSettings `yaml:",inline"`
	Clips               []ClipFile `yaml:"clips,omitempty"`
}

// UnmarshalYAML starts from the session track defaults so omitted fields
// keep them.
func (t *TrackFile) UnmarshalYAML(n *yaml.Node) error {
	type plain TrackFile

	p := plain{TrackSettings: mixer.DefaultTrackSettings("")}
	p.Volume = 1

	if err := n.Decode(&p); err != nil {
		return err
	}

	*t = TrackFile(p)

	return nil
}

// ClipFile is a clip and its keyframes. A zero duration spans the whole
// source.
type ClipFile struct {
	timeline.Clip `yaml:",inline"`
	Automation    map[automation.Parameter][]automation.Keyframe `yaml:"automation,omitempty"`
}

// LoadArrangement reads an arrangement file and builds a session from it.
// Options given here override the file's sample rate.
func LoadArrangement(path string, opts ...Option) (*Session, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("project: %w", err)
	}
	defer f.Close()

	return Load(f, filepath.Dir(path), opts...)
}

// Load decodes an arrangement from r. dir resolves relative source paths.
func Load(r io.Reader, dir string, opts ...Option) (*Session, error) {
	var arr Arrangement

	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	if err := dec.Decode(&arr); err != nil {
		return nil, fmt.Errorf("project: parse arrangement: %w", err)
	}

	if arr.SampleRate > 0 {
		opts = append([]Option{WithSampleRate(arr.SampleRate)}, opts...)
	}

	s, err := New(opts...)
	if err != nil {
		return nil, err
	}

	if err := s.apply(arr, dir); err != nil {
		return nil, err
	}

	return s, nil
}

func (s *Session) apply(arr Arrangement, dir string) error {
	if arr.Master != nil {
		if err := s.mixer.SetMaster(*arr.Master); err != nil {
			return fmt.Errorf("project: master: %w", err)
		}
	}

	for _, src := range arr.Sources {
		path := src.Path
		if !filepath.IsAbs(path) {
			path = filepath.Join(dir, path)
		}

		raw, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("project: source %q: %w", src.ID, err)
		}

		if _, err := s.ImportSource(src.ID, src.Path, raw); err != nil {
			return fmt.Errorf("project: source %q: %w", src.ID, err)
		}
	}

	for i, tf := range arr.Tracks {
		track, err := s.AddTrackWithSettings(tf.TrackSettings)
		if err != nil {
			return fmt.Errorf("project: track %d: %w", i, err)
		}

		for _, cf := range tf.Clips {
			if err := s.applyClip(track, cf); err != nil {
				return fmt.Errorf("project: track %d: %w", i, err)
			}
		}
	}

	return nil
}

func (s *Session) applyClip(track int, cf ClipFile) error {
	c := cf.Clip

	if c.Duration == 0 {
		src, err := s.Source(c.SourceID)
		if err != nil {
			return err
		}

		c.Duration = src.Duration()
	}

	c, err := s.PlaceClip(track, c)
	if err != nil {
		return err
	}

	params := make([]automation.Parameter, 0, len(cf.Automation))
	for p := range cf.Automation {
		params = append(params, p)
	}

	slices.Sort(params)

	for _, p := range params {
		for _, kf := range cf.Automation[p] {
			if _, err := s.AddKeyframe(c.ID, p, kf.Time, kf.Value, kf.Interpolation); err != nil {
				return fmt.Errorf("clip %q %s keyframe: %w", c.ID, p, err)
			}
		}
	}

	return nil
}

// Arrangement captures the session in its YAML form. Sources keep the
// file names they were imported under.
func (s *Session) Arrangement() Arrangement {
	master := s.mixer.Master()
	arr := Arrangement{SampleRate: s.sampleRate, Master: &master}

	s.mu.RLock()
	for id, name := range s.names {
		arr.Sources = append(arr.Sources, SourceFile{ID: id, Path: name})
	}
	s.mu.RUnlock()

	slices.SortFunc(arr.Sources, func(a, b SourceFile) int { return cmp.Compare(a.ID, b.ID) })

	for _, t := range s.Tracks() {
		tf := TrackFile{TrackSettings: t.Settings}

		tl, err := s.Timeline(t.ID)
		if err != nil {
			continue
		}

		for _, c := range tl.Clips() {
			cf := ClipFile{Clip: c}

			if curves := s.keyframes.Snapshot(c.ID); len(curves) > 0 {
				cf.Automation = make(map[automation.Parameter][]automation.Keyframe, len(curves))
				for p, curve := range curves {
					cf.Automation[p] = slices.Clone([]automation.Keyframe(curve))
				}
			}

			tf.Clips = append(tf.Clips, cf)
		}

		arr.Tracks = append(arr.Tracks, tf)
	}

	return arr
}

// Save writes the session as YAML.
func (s *Session) Save(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)

	if err := enc.Encode(s.Arrangement()); err != nil {
		return fmt.Errorf("project: save: %w", err)
	}

	return enc.Close()
}
