// Package sdrsource provides nfcb.SignalSource implementations: a live
// ring buffer fed from a capture front end, and WAV-file replay/record for
// offline testing.
package sdrsource

import (
	"fmt"

	"github.com/n3fcb/nfcbdecode"
)

// RingBuffer is a power-of-two ring of real magnitude samples plus the
// monotonic sample clock and slow exponential power average the nfcb
// decoder reads every sample. Feed appends newly captured samples; the
// decoder drains them one at a time via NextSample.
type RingBuffer struct {
	data           []float32
	mask           uint64
	clock          uint64
	sampleRate     uint32
	sampleTimeUnit float32

	powerAverage        float32
	powerLevelThreshold float32
	averageWeight       float32
	squelch             *autoSquelch

	pending []float32
	pos     int
}

// NewRingBuffer creates a ring of size (must be a power of two) backing a
// source sampled at sampleRate Hz. averageWindow is the number of samples
// over which the exponential power average's time constant is computed
// (recommended: a few symbol periods).
func NewRingBuffer(size int, sampleRate uint32, threshold float32, averageWindow int) (*RingBuffer, error) {
	if size <= 0 || size&(size-1) != 0 {
		return nil, fmt.Errorf("sdrsource: ring buffer size %d is not a power of two", size)
	}
	if averageWindow < 1 {
		averageWindow = 1
	}

	return &RingBuffer{
		data:                make([]float32, size),
		mask:                uint64(size - 1),
		sampleRate:          sampleRate,
		sampleTimeUnit:      float32(float64(sampleRate) / nfcb.NfcFC),
		powerLevelThreshold: threshold,
		averageWeight:       1.0 / float32(averageWindow),
	}, nil
}

// Feed appends newly captured samples to the pending queue.
func (r *RingBuffer) Feed(samples []float32) {
	r.pending = append(r.pending, samples...)
}

// Pending reports how many fed samples have not yet been consumed.
func (r *RingBuffer) Pending() int {
	return len(r.pending) - r.pos
}

// compact drops already-consumed samples once the pending queue has grown
// large, so a long-running capture doesn't retain every sample forever.
func (r *RingBuffer) compact() {
	if r.pos == 0 {
		return
	}
	if r.pos == len(r.pending) {
		r.pending = r.pending[:0]
		r.pos = 0
		return
	}
	if r.pos > 4096 {
		r.pending = append(r.pending[:0], r.pending[r.pos:]...)
		r.pos = 0
	}
}

func (r *RingBuffer) NextSample() bool {
	if r.pos >= len(r.pending) {
		r.compact()
		return false
	}

	sample := r.pending[r.pos]
	r.pos++
	r.clock++
	r.data[r.clock&r.mask] = sample

	r.powerAverage += r.averageWeight * (sample - r.powerAverage)
	if r.squelch != nil {
		r.powerLevelThreshold = r.squelch.update(sample)
	}

	r.compact()
	return true
}

func (r *RingBuffer) SignalClock() uint64         { return r.clock }
func (r *RingBuffer) Data() []float32             { return r.data }
func (r *RingBuffer) PowerAverage() float32       { return r.powerAverage }
func (r *RingBuffer) PowerLevelThreshold() float32 { return r.powerLevelThreshold }
func (r *RingBuffer) SampleRate() uint32          { return r.sampleRate }
func (r *RingBuffer) SampleTimeUnit() float32     { return r.sampleTimeUnit }

var _ nfcb.SignalSource = (*RingBuffer)(nil)
