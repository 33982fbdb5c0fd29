package nfcb

// testSource is a mock SignalSource: a fully pre-built sample slice played
// back through a ring buffer exactly like sdrsource.RingBuffer, but with a
// constant PowerAverage instead of a drifting exponential one. A real
// average would still be settling over the ~10 ETU SOF low, making the
// depth threshold crossing timing-dependent and the test fragile; a
// constant average isolates the state machine under test, the same way
// mockSerialPort stands in for a real front end in package sdrsource.
type testSource struct {
	samples []float32
	pos     int

	data []float32
	mask uint64
	clock uint64

	powerAverage        float32
	powerLevelThreshold float32
	sampleRate          uint32
	sampleTimeUnit      float32
}

const testRingSize = 4096 // comfortably above maxSymbolDelay at any sampleRate this suite uses

func newTestSource(samples []float32, sampleRate uint32, powerAverage, threshold float32) *testSource {
	return &testSource{
		samples:             samples,
		data:                make([]float32, testRingSize),
		mask:                uint64(testRingSize - 1),
		powerAverage:        powerAverage,
		powerLevelThreshold: threshold,
		sampleRate:          sampleRate,
		sampleTimeUnit:      float32(float64(sampleRate) / NfcFC),
	}
}

func (t *testSource) NextSample() bool {
	if t.pos >= len(t.samples) {
		return false
	}
	t.clock++
	t.data[t.clock&t.mask] = t.samples[t.pos]
	t.pos++
	return true
}

func (t *testSource) SignalClock() uint64          { return t.clock }
func (t *testSource) Data() []float32              { return t.data }
func (t *testSource) PowerAverage() float32        { return t.powerAverage }
func (t *testSource) PowerLevelThreshold() float32 { return t.powerLevelThreshold }
func (t *testSource) SampleRate() uint32           { return t.sampleRate }
func (t *testSource) SampleTimeUnit() float32      { return t.sampleTimeUnit }

var _ SignalSource = (*testSource)(nil)

// waveformBuilder assembles a synthetic ASK baseband magnitude signal out of
// the same vocabulary spec §8's seed suite is written in: ETU-counted
// stretches of carrier (unmodulated, PatternH level) and low (modulated,
// PatternL level), composed into SOF marks, bit-coded bytes and the EOF
// all-zero-byte-with-forced-L-stop marker.
type waveformBuilder struct {
	period1 float64 // samples per ETU, as float for fractional ETU counts
	high    float32
	low     float32

	samples []float32
}

// newWaveformBuilder builds against period1, computed the same way Configure
// would for the given sampleRate (via computeBitrateParams), so the
// synthetic waveform's ETU boundaries always match what the decoder under
// test will itself compute — no hand-duplicated rounding.
func newWaveformBuilder(sampleRate uint32, depth float32) *waveformBuilder {
	sampleTimeUnit := float32(float64(sampleRate) / NfcFC)
	bp := computeBitrateParams(sampleTimeUnit, testRingSize)[Rate106k]
	return &waveformBuilder{
		period1: float64(bp.period1),
		high:    1.0,
		low:     1.0 - depth,
	}
}

func (w *waveformBuilder) appendLevel(etus float64, level float32) *waveformBuilder {
	n := int(etus * w.period1)
	for i := 0; i < n; i++ {
		w.samples = append(w.samples, level)
	}
	return w
}

func (w *waveformBuilder) carrier(etus float64) *waveformBuilder { return w.appendLevel(etus, w.high) }
func (w *waveformBuilder) silence(etus float64) *waveformBuilder { return w.appendLevel(etus, w.low) }

// sof appends lowEtus of modulated low followed by highEtus of unmodulated
// high — the SOF mark, spec §4.3 / §8 scenario shape "SOF(N ETU L, M ETU H)".
func (w *waveformBuilder) sof(lowEtus, highEtus float64) *waveformBuilder {
	return w.silence(lowEtus).carrier(highEtus)
}

// bit appends one symbol period at the level corresponding to a 0 (L) or 1
// (H) data/start/stop bit.
func (w *waveformBuilder) bit(one bool) *waveformBuilder {
	if one {
		return w.carrier(1)
	}
	return w.silence(1)
}

// byteSym appends one NFC-B coded byte: start bit (always L), eight data
// bits LSB-first, stop bit (always H) — spec §4.5.
func (w *waveformBuilder) byteSym(v byte) *waveformBuilder {
	w.bit(false)
	for i := 0; i < 8; i++ {
		w.bit((v>>uint(i))&1 == 1)
	}
	return w.bit(true)
}

// bytesSym appends each of vs via byteSym, back-to-back with no inter-byte
// gap, matching how the framer expects consecutive bytes of one frame.
func (w *waveformBuilder) bytesSym(vs []byte) *waveformBuilder {
	for _, v := range vs {
		w.byteSym(v)
	}
	return w
}

// eof appends the end-of-frame marker: a phantom all-zero byte whose stop
// bit position is also L instead of H — ten consecutive PatternL symbols,
// the exact shape advanceFramer's endOfFrame guard looks for.
func (w *waveformBuilder) eof() *waveformBuilder {
	w.bit(false)
	for i := 0; i < 8; i++ {
		w.bit(false)
	}
	return w.bit(false)
}

func (w *waveformBuilder) build() []float32 { return w.samples }

// runDecoder configures a fresh Decoder over samples (sampled at sampleRate,
// constant power average 1.0, threshold well below it) and drains every
// frame Decode can produce in one pass.
func runDecoder(t interface{ Fatalf(string, ...interface{}) }, samples []float32, sampleRate uint32) (*Decoder, []NfcFrame) {
	src := newTestSource(samples, sampleRate, 1.0, 0.5)
	d := NewDecoder()
	if err := d.Configure(src); err != nil {
		t.Fatalf("Configure: %v", err)
	}
	var frames []NfcFrame
	d.Decode(&frames)
	return d, frames
}
