// Package diag provides offline spectral diagnostics for tuning a new SDR
// front end against the NFC-B ASK carrier — never on the decode hot path.
package diag

import (
	"math"
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"
)

// SpectrumAnalyzer finds the dominant frequency component of a baseband
// magnitude capture, useful for confirming the ASK sideband energy an
// operator expects to see around a candidate powerLevelThreshold.
type SpectrumAnalyzer struct {
	SampleRate float64
	FFTSize    int
	window     []float64
}

// NewSpectrumAnalyzer builds a Hanning-windowed analyzer for fftSize-point
// FFTs over a sampleRate Hz capture.
func NewSpectrumAnalyzer(sampleRate float64, fftSize int) *SpectrumAnalyzer {
	window := make([]float64, fftSize)
	for i := 0; i < fftSize; i++ {
		window[i] = 0.5 * (1 - math.Cos(2*math.Pi*float64(i)/float64(fftSize-1)))
	}
	return &SpectrumAnalyzer{SampleRate: sampleRate, FFTSize: fftSize, window: window}
}

// FindDominantFrequency returns the dominant frequency (Hz) and its
// magnitude within [minFreq, maxFreq), refined with parabolic
// interpolation across the peak bin and its neighbors.
func (sa *SpectrumAnalyzer) FindDominantFrequency(samples []float64, minFreq, maxFreq float64) (freq, magnitude float64) {
	if len(samples) < sa.FFTSize {
		return 0, 0
	}

	input := make([]complex128, sa.FFTSize)
	for i := 0; i < sa.FFTSize; i++ {
		input[i] = complex(samples[i]*sa.window[i], 0)
	}
	spectrum := fft.FFT(input)

	binWidth := sa.SampleRate / float64(sa.FFTSize)
	startIndex := int(minFreq / binWidth)
	if startIndex < 0 {
		startIndex = 0
	}
	endIndex := int(maxFreq / binWidth)
	if endIndex > len(spectrum)/2 {
		endIndex = len(spectrum) / 2
	}

	mags := make([]float64, len(spectrum)/2+1)
	maxMag, maxIndex := 0.0, 0
	for i := startIndex; i < endIndex; i++ {
		mag := cmplx.Abs(spectrum[i])
		mags[i] = mag
		if mag > maxMag {
			maxMag = mag
			maxIndex = i
		}
	}

	if maxIndex > 0 && maxIndex < len(mags)-1 {
		alpha, beta, gamma := mags[maxIndex-1], mags[maxIndex], mags[maxIndex+1]
		if denom := alpha - 2*beta + gamma; denom != 0 {
			p := 0.5 * (alpha - gamma) / denom
			return (float64(maxIndex) + p) * binWidth, maxMag
		}
	}
	return float64(maxIndex) * binWidth, maxMag
}

// Goertzel tracks the energy at a single target frequency across a block
// of samples — a cheaper alternative to a full FFT when only one sideband
// needs watching continuously.
type Goertzel struct {
	coeff  float64
	q1, q2 float64
}

// NewGoertzel builds a detector for targetFreq at sampleRate.
func NewGoertzel(sampleRate, targetFreq float64) *Goertzel {
	normalized := targetFreq / sampleRate
	return &Goertzel{coeff: 2.0 * math.Cos(2.0*math.Pi*normalized)}
}

// Reset clears accumulated state; call between blocks.
func (g *Goertzel) Reset() {
	g.q1, g.q2 = 0, 0
}

// ProcessBlock feeds a block of samples through the filter.
func (g *Goertzel) ProcessBlock(samples []float64) {
	for _, s := range samples {
		q0 := g.coeff*g.q1 - g.q2 + s
		g.q2 = g.q1
		g.q1 = q0
	}
}

// Magnitude returns the energy accumulated since the last Reset.
func (g *Goertzel) Magnitude() float64 {
	sq := g.q1*g.q1 + g.q2*g.q2 - g.q1*g.q2*g.coeff
	if sq < 0 {
		return 0
	}
	return math.Sqrt(sq)
}
