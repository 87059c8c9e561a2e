package loudness

import (
	"errors"
	"math"
	"testing"

	"github.com/cwbudde/algo-mixer/internal/testutil"
	"github.com/cwbudde/algo-mixer/sample"
)

const testRate = 48000.0

func sine(seconds float64) []float64 {
	return testutil.DeterministicSine(1000, testRate, 1, int(seconds*testRate))
}

func TestKWeightingMatchesTabulatedCoefficients(t *testing.T) {
	shelf, hpf := kWeighting(48000)

	testutil.RequireNear(t, "shelf b0", shelf.B0, 1.53512485958697, 1e-9)
	testutil.RequireNear(t, "shelf b1", shelf.B1, -2.69169618940638, 1e-9)
	testutil.RequireNear(t, "shelf b2", shelf.B2, 1.19839281085285, 1e-9)
	testutil.RequireNear(t, "shelf a1", shelf.A1, -1.69065929318241, 1e-9)
	testutil.RequireNear(t, "shelf a2", shelf.A2, 0.73248077421585, 1e-9)
	testutil.RequireNear(t, "hpf a1", hpf.A1, -1.99004745483398, 1e-9)
	testutil.RequireNear(t, "hpf a2", hpf.A2, 0.99007225036621, 1e-9)
}

func TestMeterMonoSineReadsMinusThree(t *testing.T) {
	m, err := NewMeter(testRate)
	if err != nil {
		t.Fatal(err)
	}

	m.Process(sine(4))

	// A full-scale 1 kHz sine in one channel reads -3.01 LUFS by definition.
	testutil.RequireNear(t, "integrated", m.Integrated(), -3.01, 0.2)
	testutil.RequireNear(t, "momentary", m.Momentary(), -3.01, 0.2)
	testutil.RequireNear(t, "short-term", m.ShortTerm(), -3.01, 0.2)
}

func TestMeterStereoSumsChannelPower(t *testing.T) {
	mono, _ := NewMeter(testRate)
	stereo, _ := NewMeter(testRate)

	sig := sine(4)
	mono.Process(sig)
	stereo.Process(sig, sig)

	testutil.RequireNear(t, "stereo - mono", stereo.Integrated()-mono.Integrated(), 10*math.Log10(2), 1e-6)
}

func TestMeterIgnoresExtraChannels(t *testing.T) {
	a, _ := NewMeter(testRate)
	b, _ := NewMeter(testRate)

	sig := sine(1)
	a.Process(sig, sig)
	b.Process(sig, sig, sig)

	testutil.RequireNear(t, "integrated", b.Integrated(), a.Integrated(), 1e-12)
}

func TestMeterBlockwiseMatchesWhole(t *testing.T) {
	whole, _ := NewMeter(testRate)
	blocks, _ := NewMeter(testRate)

	sig := sine(2)
	whole.Process(sig)

	for i := 0; i < len(sig); i += 512 {
		blocks.Process(sig[i:min(i+512, len(sig))])
	}

	testutil.RequireNear(t, "integrated", blocks.Integrated(), whole.Integrated(), 1e-9)
	testutil.RequireNear(t, "max momentary", blocks.MaxMomentary(), whole.MaxMomentary(), 1e-9)
}

func TestMeterGatesSilence(t *testing.T) {
	continuous, _ := NewMeter(testRate)
	continuous.Process(sine(3))

	gapped, _ := NewMeter(testRate)
	gapped.Process(append(sine(3), make([]float64, int(3*testRate))...))

	// Without gating the trailing silence would pull the reading down by 3 dB.
	testutil.RequireNear(t, "integrated", gapped.Integrated(), continuous.Integrated(), 0.5)
}

func TestMeterSilenceAndShortInput(t *testing.T) {
	m, _ := NewMeter(testRate)
	m.Process(make([]float64, int(testRate)))

	if got := m.Integrated(); !math.IsInf(got, -1) {
		t.Fatalf("silent integrated = %v, want -Inf", got)
	}

	if got := m.Momentary(); got != Floor {
		t.Fatalf("silent momentary = %v, want %v", got, Floor)
	}

	m.Reset()
	m.Process(sine(0.2))

	if got := m.MaxMomentary(); !math.IsInf(got, -1) {
		t.Fatalf("max momentary after 200 ms = %v, want -Inf", got)
	}

	if got := m.Integrated(); !math.IsInf(got, -1) {
		t.Fatalf("integrated after 200 ms = %v, want -Inf", got)
	}
}

func TestNewMeterRejectsLowRate(t *testing.T) {
	for _, rate := range []float64{0, -1, 1000, math.NaN()} {
		if _, err := NewMeter(rate); err == nil {
			t.Errorf("NewMeter(%v): expected error", rate)
		}
	}
}

func TestAnalyze(t *testing.T) {
	sig := sine(2)

	buf, err := sample.New(testRate, [][]float64{sig, sig})
	if err != nil {
		t.Fatal(err)
	}

	r, err := Analyze(buf)
	if err != nil {
		t.Fatal(err)
	}

	testutil.RequireNear(t, "peak", r.PeakDB, 0, 1e-6)
	testutil.RequireNear(t, "rms", r.RMSDB, -10*math.Log10(2), 0.01)
	testutil.RequireNear(t, "crest", r.CrestDB, 10*math.Log10(2), 0.01)
	testutil.RequireNear(t, "integrated", r.Integrated, 0, 0.2)

	if r.MaxMomentary < r.Integrated-0.1 {
		t.Fatalf("max momentary %v below integrated %v", r.MaxMomentary, r.Integrated)
	}
}

func TestNormalize(t *testing.T) {
	sig := testutil.DeterministicSine(440, testRate, 0.1, int(2*testRate))

	buf, _ := sample.New(testRate, [][]float64{sig, sig})
	before := sig[100]

	out, err := Normalize(buf, -23)
	if err != nil {
		t.Fatal(err)
	}

	r, err := Analyze(out)
	if err != nil {
		t.Fatal(err)
	}

	testutil.RequireNear(t, "integrated", r.Integrated, -23, 1e-6)

	if sig[100] != before {
		t.Fatal("Normalize modified its input")
	}

	if _, err := Normalize(buf, 3); err == nil {
		t.Fatal("expected error for positive target")
	}

	silent, _ := sample.Silence(testRate, 2, int(testRate))
	if _, err := Normalize(silent, -23); !errors.Is(err, ErrSilent) {
		t.Fatalf("silent: err = %v, want ErrSilent", err)
	}
}
