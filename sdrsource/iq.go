package sdrsource

import "math"

// biquadSection is one second-order IIR stage; several cascade into a
// butterworthLowpass.
type biquadSection struct {
	a0, a1, a2, b1, b2 float64
	z1, z2             float64
}

func (s *biquadSection) process(in float64) float64 {
	out := in*s.a0 + s.z1
	s.z1 = in*s.a1 - out*s.b1 + s.z2
	s.z2 = in*s.a2 - out*s.b2
	return out
}

// butterworthLowpass is an even-order Butterworth low-pass filter built from
// cascaded biquad sections via the bilinear transform. IQDemodulator uses
// one per mixer arm to reject the downconversion's image frequency.
type butterworthLowpass struct {
	sections []*biquadSection
}

func newButterworthLowpass(order int, sampleRate, cutoffFreq float64) *butterworthLowpass {
	if order%2 != 0 {
		panic("sdrsource: butterworth filter order must be even")
	}
	if cutoffFreq >= sampleRate*0.499 {
		cutoffFreq = sampleRate * 0.499
	}

	sections := make([]*biquadSection, order/2)
	w := 2.0 * sampleRate * math.Tan(math.Pi*cutoffFreq/sampleRate)

	for i := 0; i < order/2; i++ {
		poleIdx := (order/2 - 1) - i
		theta := math.Pi * (2.0*float64(poleIdx) + 1.0) / (2.0 * float64(order))

		pRe := -w * math.Sin(theta)
		pIm := w * math.Cos(theta)

		alpha := 4.0*sampleRate*sampleRate - 4.0*sampleRate*pRe + pRe*pRe + pIm*pIm
		b1 := (-8.0*sampleRate*sampleRate + 2.0*(pRe*pRe+pIm*pIm)) / alpha
		b2 := (4.0*sampleRate*sampleRate + 4.0*sampleRate*pRe + pRe*pRe + pIm*pIm) / alpha
		a0 := (w * w) / alpha
		a1 := (2.0 * w * w) / alpha
		a2 := (w * w) / alpha

		sections[i] = &biquadSection{a0: a0, a1: a1, a2: a2, b1: b1, b2: b2}
	}
	return &butterworthLowpass{sections: sections}
}

func (f *butterworthLowpass) process(in float64) float64 {
	out := in
	for _, s := range f.sections {
		out = s.process(out)
	}
	return out
}

// carrierTracker follows slow clock drift between a cheap SDR dongle's local
// oscillator and the 13.56 MHz reference: it measures the I/Q phase step per
// sample, converts it to a frequency error, and applies a small fraction of
// the correction each sample so front-end noise can't yank the LO around —
// the same phase-error feedback shape as a software PLL.
type carrierTracker struct {
	sampleRate  float64
	consecutive int
	currentFreq float64
	targetFreq  float64
	prevPhase   float64
	phaseInc    float64
	gain        float64
}

func newCarrierTracker(sampleRate, targetFreq float64) *carrierTracker {
	t := &carrierTracker{sampleRate: sampleRate, targetFreq: targetFreq, currentFreq: targetFreq, gain: 0.0002}
	t.updatePhaseInc()
	return t
}

func (t *carrierTracker) update(filteredI, filteredQ, envelope float64) float64 {
	if envelope > 0.005 {
		currentPhase := math.Atan2(filteredQ, filteredI)
		if t.consecutive > 5 {
			delta := currentPhase - t.prevPhase
			if delta > math.Pi {
				delta -= 2 * math.Pi
			} else if delta < -math.Pi {
				delta += 2 * math.Pi
			}
			freqError := delta * t.sampleRate / (2 * math.Pi)
			// Deadband: errors under 2 Hz are noise, not real drift.
			if math.Abs(freqError) > 2.0 {
				t.currentFreq += freqError * t.gain
				if t.currentFreq > t.targetFreq+100 {
					t.currentFreq = t.targetFreq + 100
				} else if t.currentFreq < t.targetFreq-100 {
					t.currentFreq = t.targetFreq - 100
				}
				t.updatePhaseInc()
			}
		}
		t.prevPhase = currentPhase
		t.consecutive++
	} else {
		t.consecutive = 0
	}
	return t.phaseInc
}

func (t *carrierTracker) updatePhaseInc() {
	t.phaseInc = 2 * math.Pi * t.currentFreq / t.sampleRate
}

// IQDemodulator downconverts a raw real-valued IF capture — an SDR dongle
// tuned near the 13.56 MHz carrier, with some intermediate-frequency offset
// left uncorrected by the hardware — into the baseband magnitude envelope a
// RingBuffer expects. It exists for front ends that hand over raw IF rather
// than an already-demodulated envelope (contrast MicSource, which assumes
// the latter).
type IQDemodulator struct {
	sampleRate      float64
	targetFreq      float64
	trackingEnabled bool

	lpfI, lpfQ *butterworthLowpass
	tracker    *carrierTracker
	phase      float64
}

// NewIQDemodulator builds a demodulator for a carrier near targetFreq Hz
// sampled at sampleRate Hz. filterBW sets the low-pass cutoff that rejects
// the mixer's image frequency; trackingEnabled follows slow local-oscillator
// drift instead of assuming a perfectly locked reference clock.
func NewIQDemodulator(sampleRate, targetFreq, filterBW float64, trackingEnabled bool) *IQDemodulator {
	return &IQDemodulator{
		sampleRate:      sampleRate,
		targetFreq:      targetFreq,
		trackingEnabled: trackingEnabled,
		lpfI:            newButterworthLowpass(4, sampleRate, filterBW),
		lpfQ:            newButterworthLowpass(4, sampleRate, filterBW),
		tracker:         newCarrierTracker(sampleRate, targetFreq),
	}
}

// Process downconverts one raw IF sample and returns the demodulated
// magnitude envelope, ready to feed RingBuffer.Feed.
func (d *IQDemodulator) Process(sample float64) float32 {
	loI := math.Cos(d.phase)
	loQ := math.Sin(d.phase)

	mixI := sample * loI
	mixQ := sample * loQ

	filteredI := d.lpfI.process(mixI)
	filteredQ := d.lpfQ.process(mixQ)

	envelope := 2.0 * math.Sqrt(filteredI*filteredI+filteredQ*filteredQ)

	var phaseInc float64
	if d.trackingEnabled {
		phaseInc = d.tracker.update(filteredI, filteredQ, envelope)
	} else {
		phaseInc = 2.0 * math.Pi * d.targetFreq / d.sampleRate
	}
	d.advancePhase(phaseInc)

	return float32(envelope)
}

func (d *IQDemodulator) advancePhase(inc float64) {
	d.phase += inc
	if d.phase > 2*math.Pi {
		d.phase -= 2 * math.Pi
	}
}
