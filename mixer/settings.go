package mixer

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrUnknownPreset is returned by ApplyEQPreset for an unregistered name.
var ErrUnknownPreset = errors.New("mixer: unknown eq preset")

const (
	// Cutoffs the noise filters are pinned to while disabled.
	bypassHighPassHz = 20.0
	bypassLowPassHz  = 20000.0

	eqLowHz  = 100.0
	eqMidHz  = 1000.0
	eqMidQ   = 1.0
	eqHighHz = 10000.0

	defaultMasterVolume = 0.8
)

// Band selects one of the three EQ bands.
type Band int

const (
	BandLow Band = iota
	BandMid
	BandHigh
)

func (b Band) String() string {
	switch b {
	case BandLow:
		return "low"
	case BandMid:
		return "mid"
	case BandHigh:
		return "high"
	default:
		return fmt.Sprintf("Band(%d)", int(b))
	}
}

// ParseBand maps "low", "mid" or "high" to a Band.
func ParseBand(s string) (Band, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "low":
		return BandLow, nil
	case "mid":
		return BandMid, nil
	case "high":
		return BandHigh, nil
	}

	return 0, fmt.Errorf("mixer: unknown eq band %q", s)
}

// EQ holds the gains in dB of the low shelf (100 Hz), the peaking band
// (1 kHz) and the high shelf (10 kHz).
type EQ struct {
	Low  float64 `yaml:"low"`
	Mid  float64 `yaml:"mid"`
	High float64 `yaml:"high"`
}

func (e *EQ) setBand(b Band, dB float64) {
	switch b {
	case BandLow:
		e.Low = dB
	case BandMid:
		e.Mid = dB
	default:
		e.High = dB
	}
}

var eqPresets = map[string]EQ{
	"flat":  {Low: 0, Mid: 0, High: 0},
	"phone": {Low: -24, Mid: 24, High: -24},
	"clear": {Low: -10, Mid: 3, High: 11},
	"wall":  {Low: 24, Mid: -24, High: -24},
}

// EQPreset returns the band gains registered under name.
func EQPreset(name string) (EQ, error) {
	eq, ok := eqPresets[strings.ToLower(name)]
	if !ok {
		return EQ{}, fmt.Errorf("%w: %q", ErrUnknownPreset, name)
	}

	return eq, nil
}

// EQPresetNames lists the registered presets in sorted order.
func EQPresetNames() []string {
	names := make([]string, 0, len(eqPresets))
	for name := range eqPresets {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

// LimiterSettings configures a compressor used as a limiter. Times are in
// seconds.
type LimiterSettings struct {
	Threshold float64 `yaml:"threshold"`
	Knee      float64 `yaml:"knee"`
	Ratio     float64 `yaml:"ratio"`
	Attack    float64 `yaml:"attack"`
	Release   float64 `yaml:"release"`
}

// DefaultLimiter is a brickwall-style setting: -6 dB threshold, hard knee,
// 20:1, 3 ms attack and 250 ms release.
func DefaultLimiter() LimiterSettings {
	return LimiterSettings{Threshold: -6, Knee: 0, Ratio: 20, Attack: 0.003, Release: 0.25}
}

// ExpanderSettings configures the per-track downward expander. While
// Enabled is false the expander runs at ratio 1.
type ExpanderSettings struct {
	Enabled   bool    `yaml:"enabled"`
	Threshold float64 `yaml:"threshold"`
	Knee      float64 `yaml:"knee"`
	Ratio     float64 `yaml:"ratio"`
	Attack    float64 `yaml:"attack"`
	Release   float64 `yaml:"release"`
}

// DefaultExpander returns the disabled noise-suppression expander.
func DefaultExpander() ExpanderSettings {
	return ExpanderSettings{Threshold: -40, Knee: 10, Ratio: 0.5, Attack: 0.003, Release: 0.25}
}

func (e ExpanderSettings) effectiveRatio() float64 {
	if !e.Enabled {
		return 1
	}

	return e.Ratio
}

// NoiseReduction configures the high-pass and low-pass noise filters.
// Each filter only leaves its pinned bypass cutoff when both Enabled and
// its own flag are set.
type NoiseReduction struct {
	Enabled         bool    `yaml:"enabled"`
	HighPassEnabled bool    `yaml:"highpass_enabled"`
	LowPassEnabled  bool    `yaml:"lowpass_enabled"`
	HighPassHz      float64 `yaml:"highpass_hz"`
	HighPassQ       float64 `yaml:"highpass_q"`
	LowPassHz       float64 `yaml:"lowpass_hz"`
	LowPassQ        float64 `yaml:"lowpass_q"`
}

// DefaultNoiseReduction returns disabled filters with 80 Hz / 8 kHz
// cutoffs and a resonance of 0.7.
func DefaultNoiseReduction() NoiseReduction {
	return NoiseReduction{HighPassHz: 80, HighPassQ: 0.7, LowPassHz: 8000, LowPassQ: 0.7}
}

func (n NoiseReduction) cutoffs() (highPass, lowPass float64) {
	highPass, lowPass = bypassHighPassHz, bypassLowPassHz

	if n.Enabled && n.HighPassEnabled {
		highPass = n.HighPassHz
	}

	if n.Enabled && n.LowPassEnabled {
		lowPass = n.LowPassHz
	}

	return highPass, lowPass
}

// TrackSettings is the complete user-facing state of a track's channel
// strip.
type TrackSettings struct {
	Name           string           `yaml:"name"`
	Volume         float64          `yaml:"volume"`
	Pan            float64          `yaml:"pan"`
	Mute           bool             `yaml:"mute"`
	Solo           bool             `yaml:"solo"`
	EQEnabled      bool             `yaml:"eq_enabled"`
	EQ             EQ               `yaml:"eq"`
	LimiterEnabled bool             `yaml:"limiter_enabled"`
	Limiter        LimiterSettings  `yaml:"limiter"`
	Expander       ExpanderSettings `yaml:"expander"`
	NoiseReduction NoiseReduction   `yaml:"noise_reduction"`
}

// DefaultTrackSettings returns a track at volume 0.8 with every optional
// processor disabled.
func DefaultTrackSettings(name string) TrackSettings {
	return TrackSettings{
		Name:           name,
		Volume:         0.8,
		Limiter:        DefaultLimiter(),
		Expander:       DefaultExpander(),
		NoiseReduction: DefaultNoiseReduction(),
	}
}

// MasterSettings is the state of the master bus.
type MasterSettings struct {
	Volume  float64         `yaml:"volume"`
	EQ      EQ              `yaml:"eq"`
	Limiter LimiterSettings `yaml:"limiter"`
}

// DefaultMasterSettings returns volume 0.8, flat EQ and the default limiter.
func DefaultMasterSettings() MasterSettings {
	return MasterSettings{Volume: defaultMasterVolume, Limiter: DefaultLimiter()}
}
