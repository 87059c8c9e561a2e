// Package mixer owns the tracks and the master bus of a session and the
// audio graph they are wired into.
//
// Every track is a fixed channel strip whose tail is routed through one of
// four topologies selected by its EQ and limiter flags. Mute, solo and
// volume are resolved across all tracks at once whenever one of them
// changes. Control methods are synchronous and safe to call while another
// goroutine renders.
package mixer

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"slices"
	"sync"

	"github.com/cwbudde/algo-mixer/dsp/core"
	"github.com/cwbudde/algo-mixer/dsp/spectrum"
	"github.com/cwbudde/algo-mixer/mixer/graph"
	"github.com/cwbudde/algo-mixer/mixer/node"
)

var (
	// ErrUnknownTrack is returned for operations on a track id that does
	// not exist. Callers treat it as a no-op.
	ErrUnknownTrack = errors.New("mixer: unknown track")
	// ErrTooManyTracks is returned by AddTrack when the track limit is reached.
	ErrTooManyTracks = errors.New("mixer: too many tracks")
)

// DefaultMaxTracks is the track limit used when none is configured.
const DefaultMaxTracks = 30

type config struct {
	processor core.ProcessorConfig
	maxTracks int
	logger    *slog.Logger
	analyzer  bool
}

// Option configures a Mixer.
type Option func(*config)

// WithSampleRate sets the processing sample rate.
func WithSampleRate(sampleRate float64) Option {
	return func(c *config) { core.WithSampleRate(sampleRate)(&c.processor) }
}

// WithMaxTracks overrides DefaultMaxTracks.
func WithMaxTracks(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.maxTracks = n
		}
	}
}

// WithLogger sets the logger for control-plane events.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithSpectrum attaches a spectrum analyser to the master output.
func WithSpectrum() Option {
	return func(c *config) { c.analyzer = true }
}

// Mixer is the audio graph of one session.
type Mixer struct {
	mu         sync.Mutex
	sampleRate float64
	maxTracks  int
	log        *slog.Logger

	graph  *graph.Graph
	tracks []*track
	nextID int

	master         MasterSettings
	masterLow      strip
	masterMid      strip
	masterHigh     strip
	masterLimiter  strip
	masterGain     strip
	masterAnalyzer *spectrum.Analyzer
}

// New builds a mixer with an empty track list and a master bus.
func New(opts ...Option) (*Mixer, error) {
	cfg := config{
		processor: core.DefaultProcessorConfig(),
		maxTracks: DefaultMaxTracks,
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	if err := cfg.processor.Validate(); err != nil {
		return nil, fmt.Errorf("mixer: %w", err)
	}

	m := &Mixer{
		sampleRate: cfg.processor.SampleRate,
		maxTracks:  cfg.maxTracks,
		log:        cfg.logger,
		graph:      graph.New(),
		nextID:     1,
		master:     DefaultMasterSettings(),
	}

	if err := m.buildMaster(); err != nil {
		return nil, err
	}

	if cfg.analyzer {
		a, err := spectrum.NewAnalyzer(m.sampleRate)
		if err != nil {
			return nil, fmt.Errorf("mixer: %w", err)
		}

		m.masterAnalyzer = a
	}

	return m, nil
}

func (m *Mixer) buildMaster() error {
	kinds := []struct {
		dst  *strip
		kind node.Kind
	}{
		{&m.masterLow, node.KindLowShelf},
		{&m.masterMid, node.KindPeaking},
		{&m.masterHigh, node.KindHighShelf},
		{&m.masterLimiter, node.KindCompressor},
		{&m.masterGain, node.KindGain},
	}

	for _, k := range kinds {
		n, err := node.New(k.kind, m.sampleRate)
		if err != nil {
			return fmt.Errorf("mixer: master: %w", err)
		}

		*k.dst = strip{id: m.graph.Add(n), node: n}
	}

	edges := []graph.Edge{
		{From: m.masterLow.id, To: m.masterMid.id},
		{From: m.masterMid.id, To: m.masterHigh.id},
		{From: m.masterHigh.id, To: m.masterLimiter.id},
		{From: m.masterLimiter.id, To: m.masterGain.id},
	}
	if err := m.graph.Rewire(nil, edges); err != nil {
		return fmt.Errorf("mixer: master: %w", err)
	}

	if err := m.graph.SetOutput(m.masterGain.id); err != nil {
		return fmt.Errorf("mixer: master: %w", err)
	}

	return m.applyMaster()
}

func (m *Mixer) applyMaster() error {
	if err := applyEQ(m.masterLow.node, m.masterMid.node, m.masterHigh.node, m.master.EQ); err != nil {
		return fmt.Errorf("mixer: master: %w", err)
	}

	if err := applyLimiter(m.masterLimiter.node, m.master.Limiter); err != nil {
		return fmt.Errorf("mixer: master: %w", err)
	}

	if err := m.masterGain.node.Set(node.ParamGain, m.master.Volume); err != nil {
		return fmt.Errorf("mixer: master: %w", err)
	}

	return nil
}

// SampleRate returns the processing sample rate.
func (m *Mixer) SampleRate() float64 { return m.sampleRate }

// Graph exposes the underlying audio graph, mainly for inspection.
func (m *Mixer) Graph() *graph.Graph { return m.graph }

// MasterInput returns the first node of the master bus.
func (m *Mixer) MasterInput() graph.NodeID { return m.masterLow.id }

// AddTrack creates a track with the given settings, routes it to the
// master bus and returns its id.
func (m *Mixer) AddTrack(settings TrackSettings) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.tracks) >= m.maxTracks {
		return 0, fmt.Errorf("%w: limit is %d", ErrTooManyTracks, m.maxTracks)
	}

	id := m.nextID

	if settings.Name == "" {
		settings.Name = fmt.Sprintf("Track %d", id)
	}

	t, err := newTrack(m.graph, id, settings, m.sampleRate)
	if err != nil {
		return 0, err
	}

	if err := t.applyParams(); err != nil {
		return 0, err
	}

	m.nextID++
	m.tracks = append(m.tracks, t)

	if err := m.rebuild(t); err != nil {
		return 0, err
	}

	m.applyGains()
	m.log.Debug("track added", "track", id, "name", settings.Name)

	return id, nil
}

// RemoveTrack disconnects the track and drops its nodes from the graph.
func (m *Mixer) RemoveTrack(id int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	i := m.index(id)
	if i < 0 {
		return m.unknown("RemoveTrack", id)
	}

	t := m.tracks[i]
	for _, s := range t.strips() {
		if err := m.graph.Remove(s.id); err != nil {
			return fmt.Errorf("mixer: remove track %d: %w", id, err)
		}
	}

	m.tracks = slices.Delete(m.tracks, i, i+1)
	m.applyGains()
	m.log.Debug("track removed", "track", id)

	return nil
}

// TrackIDs returns the ids of all tracks in creation order.
func (m *Mixer) TrackIDs() []int {
	m.mu.Lock()
	defer m.mu.Unlock()

	ids := make([]int, len(m.tracks))
	for i, t := range m.tracks {
		ids[i] = t.id
	}

	return ids
}

// Track returns a copy of the track's settings.
func (m *Mixer) Track(id int) (TrackSettings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t := m.find(id)
	if t == nil {
		return TrackSettings{}, m.unknown("Track", id)
	}

	return t.settings, nil
}

// Topology returns the routing currently applied to the track.
func (m *Mixer) Topology(id int) (Topology, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t := m.find(id)
	if t == nil {
		return 0, m.unknown("Topology", id)
	}

	return t.topology, nil
}

// Input returns the graph node that playback voices of the track feed.
func (m *Mixer) Input(id int) (graph.NodeID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t := m.find(id)
	if t == nil {
		return graph.None, m.unknown("Input", id)
	}

	return t.gain.id, nil
}

// EffectiveGain returns the gain the track's gain node currently applies.
func (m *Mixer) EffectiveGain(id int) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t := m.find(id)
	if t == nil {
		return 0, m.unknown("EffectiveGain", id)
	}

	return t.gain.node.Get(node.ParamGain), nil
}

// SetMute sets the mute flag and re-resolves every track's gain.
func (m *Mixer) SetMute(id int, mute bool) error {
	return m.updateGain(id, "SetMute", func(s *TrackSettings) { s.Mute = mute })
}

// SetSolo sets the solo flag and re-resolves every track's gain.
func (m *Mixer) SetSolo(id int, solo bool) error {
	return m.updateGain(id, "SetSolo", func(s *TrackSettings) { s.Solo = solo })
}

// SetVolume sets the linear volume and re-resolves every track's gain.
func (m *Mixer) SetVolume(id int, volume float64) error {
	if volume < 0 || !core.IsFinite(volume) {
		return fmt.Errorf("mixer: volume must be finite and non-negative: %v", volume)
	}

	return m.updateGain(id, "SetVolume", func(s *TrackSettings) { s.Volume = volume })
}

func (m *Mixer) updateGain(id int, op string, mutate func(*TrackSettings)) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	t := m.find(id)
	if t == nil {
		return m.unknown(op, id)
	}

	mutate(&t.settings)
	m.applyGains()

	return nil
}

// applyGains recomputes the effective gain of every track. Callers hold mu.
func (m *Mixer) applyGains() {
	states := make([]GainState, len(m.tracks))
	for i, t := range m.tracks {
		states[i] = GainState{Volume: t.settings.Volume, Mute: t.settings.Mute, Solo: t.settings.Solo}
	}

	for i, g := range EffectiveGains(states) {
		// Gains are finite and non-negative, which Set accepts.
		_ = m.tracks[i].gain.node.Set(node.ParamGain, g)
	}
}

// Rename changes the display name.
func (m *Mixer) Rename(id int, name string) error {
	return m.update(id, "Rename", false, func(s *TrackSettings) { s.Name = name })
}

// SetPan sets the stereo position in [-1, 1].
func (m *Mixer) SetPan(id int, pan float64) error {
	return m.update(id, "SetPan", false, func(s *TrackSettings) { s.Pan = core.Clamp(pan, -1, 1) })
}

// SetEQEnabled splices the EQ into or out of the track's routing.
func (m *Mixer) SetEQEnabled(id int, enabled bool) error {
	return m.update(id, "SetEQEnabled", true, func(s *TrackSettings) { s.EQEnabled = enabled })
}

// SetEQBand sets one band's gain in dB.
func (m *Mixer) SetEQBand(id int, band Band, dB float64) error {
	return m.update(id, "SetEQBand", false, func(s *TrackSettings) { s.EQ.setBand(band, dB) })
}

// ApplyEQPreset loads a named preset into the track's EQ and enables it.
func (m *Mixer) ApplyEQPreset(id int, name string) error {
	eq, err := EQPreset(name)
	if err != nil {
		return err
	}

	return m.update(id, "ApplyEQPreset", true, func(s *TrackSettings) {
		s.EQ = eq
		s.EQEnabled = true
	})
}

// SetLimiterEnabled splices the limiter into or out of the track's routing.
func (m *Mixer) SetLimiterEnabled(id int, enabled bool) error {
	return m.update(id, "SetLimiterEnabled", true, func(s *TrackSettings) { s.LimiterEnabled = enabled })
}

// SetLimiter replaces the limiter parameters.
func (m *Mixer) SetLimiter(id int, l LimiterSettings) error {
	return m.update(id, "SetLimiter", false, func(s *TrackSettings) { s.Limiter = l })
}

// SetExpander replaces the expander settings. Disabling the expander pins
// its ratio to 1 instead of disconnecting it.
func (m *Mixer) SetExpander(id int, e ExpanderSettings) error {
	return m.update(id, "SetExpander", false, func(s *TrackSettings) { s.Expander = e })
}

// SetNoiseReduction replaces the noise filter settings. Disabled filters
// are pinned to 20 Hz and 20 kHz instead of being disconnected.
func (m *Mixer) SetNoiseReduction(id int, n NoiseReduction) error {
	return m.update(id, "SetNoiseReduction", false, func(s *TrackSettings) { s.NoiseReduction = n })
}

// update mutates a track's settings, pushes them into its nodes and
// rebuilds the routing when rewire is set. On error the previous settings
// are restored.
func (m *Mixer) update(id int, op string, rewire bool, mutate func(*TrackSettings)) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	t := m.find(id)
	if t == nil {
		return m.unknown(op, id)
	}

	prev := t.settings
	mutate(&t.settings)

	if err := t.applyParams(); err != nil {
		t.settings = prev
		_ = t.applyParams()

		return err
	}

	if rewire {
		return m.rebuild(t)
	}

	return nil
}

// RebuildChain re-resolves the track's topology from its flags and
// rewires the graph. Calling it again without a flag change leaves the
// edge set unchanged.
func (m *Mixer) RebuildChain(id int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	t := m.find(id)
	if t == nil {
		return m.unknown("RebuildChain", id)
	}

	return m.rebuild(t)
}

func (m *Mixer) rebuild(t *track) error {
	topo := TopologyFor(t.settings.EQEnabled, t.settings.LimiterEnabled)
	nodes := t.chainNodes(m.masterLow.id)

	if err := m.graph.Rewire(nodes.Sources(), ChainEdges(topo, nodes)); err != nil {
		return fmt.Errorf("mixer: rebuild track %d (%s): %w", t.id, topo, err)
	}

	if topo != t.topology {
		m.log.Debug("track rewired", "track", t.id, "from", t.topology, "to", topo)
	}

	t.topology = topo

	return nil
}

// Master returns a copy of the master bus settings.
func (m *Mixer) Master() MasterSettings {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.master
}

// SetMaster replaces every master bus setting.
func (m *Mixer) SetMaster(s MasterSettings) error {
	return m.updateMaster(func(ms *MasterSettings) { *ms = s })
}

// SetMasterVolume sets the master gain.
func (m *Mixer) SetMasterVolume(v float64) error {
	return m.updateMaster(func(ms *MasterSettings) { ms.Volume = v })
}

// SetMasterEQBand sets one master EQ band in dB.
func (m *Mixer) SetMasterEQBand(band Band, dB float64) error {
	return m.updateMaster(func(ms *MasterSettings) { ms.EQ.setBand(band, dB) })
}

// SetMasterLimiter replaces the master limiter parameters.
func (m *Mixer) SetMasterLimiter(l LimiterSettings) error {
	return m.updateMaster(func(ms *MasterSettings) { ms.Limiter = l })
}

// SetCeiling applies |ceilingDB| of make-up gain after the master limiter,
// so a limiter threshold of -x dB with a ceiling of -x dB restores full
// scale.
func (m *Mixer) SetCeiling(ceilingDB float64) error {
	return m.SetMasterVolume(core.DBToLinear(math.Abs(ceilingDB)))
}

func (m *Mixer) updateMaster(mutate func(*MasterSettings)) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	prev := m.master
	mutate(&m.master)

	if err := m.applyMaster(); err != nil {
		m.master = prev
		_ = m.applyMaster()

		return err
	}

	return nil
}

// MasterEQResponseDB returns the master EQ magnitude response at freq.
func (m *Mixer) MasterEQResponseDB(freq float64) float64 {
	return m.masterLow.node.Coefficients().MagnitudeDB(freq, m.sampleRate) +
		m.masterMid.node.Coefficients().MagnitudeDB(freq, m.sampleRate) +
		m.masterHigh.node.Coefficients().MagnitudeDB(freq, m.sampleRate)
}

// Spectrum returns the smoothed master spectrum in dBFS at freqs, or nil
// when the mixer was built without WithSpectrum.
func (m *Mixer) Spectrum(freqs []float64) []float64 {
	if m.masterAnalyzer == nil {
		return nil
	}

	return m.masterAnalyzer.CurveDB(freqs)
}

// Render produces one stereo block of master output. feed injects voice
// audio into track inputs. Render must only be called from one goroutine.
func (m *Mixer) Render(left, right []float64, feed graph.Feeder) {
	m.graph.Render(left, right, feed)

	if m.masterAnalyzer != nil {
		m.masterAnalyzer.Push(left, right)
	}
}

func (m *Mixer) find(id int) *track {
	if i := m.index(id); i >= 0 {
		return m.tracks[i]
	}

	return nil
}

func (m *Mixer) index(id int) int {
	return slices.IndexFunc(m.tracks, func(t *track) bool { return t.id == id })
}

func (m *Mixer) unknown(op string, id int) error {
	m.log.Debug("ignoring operation on unknown track", "op", op, "track", id)
	return fmt.Errorf("%w: %d", ErrUnknownTrack, id)
}
