package loudness

import (
	"errors"
	"fmt"
	"math"

	"github.com/cwbudde/algo-mixer/dsp/core"
	"github.com/cwbudde/algo-mixer/sample"
)

// ErrSilent is returned by Normalize when the buffer has no gated loudness.
var ErrSilent = errors.New("loudness: buffer is silent")

// Report summarises the level of a rendered buffer.
type Report struct {
	// Integrated, MaxMomentary and MaxShortTerm are in LUFS.
	Integrated   float64
	MaxMomentary float64
	MaxShortTerm float64
	// PeakDB and RMSDB are in dBFS over all measured channels.
	PeakDB float64
	RMSDB  float64
	// CrestDB is PeakDB - RMSDB.
	CrestDB float64
}

// Analyze measures the whole buffer.
func Analyze(buf *sample.Buffer) (Report, error) {
	m, err := NewMeter(buf.SampleRate())
	if err != nil {
		return Report{}, err
	}

	channels := make([][]float64, min(buf.Channels(), MaxChannels))
	for c := range channels {
		channels[c] = buf.Channel(c)
	}

	m.Process(channels...)

	rms := rootMeanSquare(channels...)
	r := Report{
		Integrated:   m.Integrated(),
		MaxMomentary: m.MaxMomentary(),
		MaxShortTerm: m.MaxShortTerm(),
		PeakDB:       core.LinearToDB(m.SamplePeak()),
		RMSDB:        core.LinearToDB(rms),
		CrestDB:      math.Inf(-1),
	}

	if rms > 0 {
		r.CrestDB = r.PeakDB - r.RMSDB
	}

	return r, nil
}

// Normalize returns a copy of buf scaled so its integrated loudness equals
// target LUFS. The result may exceed full scale.
func Normalize(buf *sample.Buffer, target float64) (*sample.Buffer, error) {
	if !core.IsFinite(target) || target > 0 {
		return nil, fmt.Errorf("loudness: target must be finite and at most 0 LUFS: %v", target)
	}

	r, err := Analyze(buf)
	if err != nil {
		return nil, err
	}

	if math.IsInf(r.Integrated, -1) {
		return nil, ErrSilent
	}

	gain := core.DBToLinear(target - r.Integrated)
	data := make([][]float64, buf.Channels())

	for c := range data {
		data[c] = append([]float64(nil), buf.Channel(c)...)
		core.Scale(data[c], gain)
	}

	return sample.New(buf.SampleRate(), data)
}

func rootMeanSquare(channels ...[]float64) float64 {
	var (
		sum float64
		n   int
	)

	for _, ch := range channels {
		for _, v := range ch {
			sum += v * v
		}

		n += len(ch)
	}

	if n == 0 {
		return 0
	}

	return math.Sqrt(sum / float64(n))
}
