package nfcb

import (
	"io"
	"log"
)

// minSampleRateDivisor comes from spec §3's worked invariant for the
// fastest rate (848k, divisor 16): period1 = sampleTimeUnit*16 must stay
// >= 8, i.e. sampleRate >= NfcFC/16*8 == NfcFC/2. §4.1's prose ("4x base
// frequency") implies a higher floor; the worked formula is authoritative
// since it is the one that makes the seed-suite's 10 MHz example legal.
const minSampleRateDivisor = 2

// Decoder is the NFC-B ASK demodulator, bit/byte framer, CRC validator and
// protocol classifier described by this package. It is single-threaded and
// cooperative: the only suspension point is the Signal Source running dry
// (spec §5). A zero-value Decoder is not usable; construct with NewDecoder.
type Decoder struct {
	source SignalSource

	minModulationThreshold float64
	maxModulationThreshold float64

	sampleRate     uint32
	sampleTimeUnit float32

	bitrate    [rateCount]BitrateParams
	modulation [rateCount]ModulationStatus

	activeBitrate    *BitrateParams
	activeModulation *ModulationStatus

	stream   StreamStatus
	protocol ProtocolStatus
	frame    FrameStatus

	logger  *log.Logger
	metrics Recorder
	debug   SignalDebugger
}

// NewDecoder constructs a Decoder with the default modulation thresholds
// (10%/50%) and no logging, metrics, or debug recording attached. Use the
// setters below to attach collaborators before Configure.
func NewDecoder() *Decoder {
	return &Decoder{
		minModulationThreshold: 0.10,
		maxModulationThreshold: 0.50,
		logger:                 log.New(io.Discard, "", 0),
		metrics:                noopRecorder{},
		debug:                  NoOpDebugger{},
	}
}

// SetModulationThreshold overrides the default 10%/50% modulation-depth
// gates used by the SOF detector and symbol tracker.
func (d *Decoder) SetModulationThreshold(min, max float64) {
	d.minModulationThreshold = min
	d.maxModulationThreshold = max
}

// SetLogger attaches a logger for the configuration summary Configure
// writes. Nothing on the per-sample hot path logs; SOF aborts are not logged.
func (d *Decoder) SetLogger(l *log.Logger) {
	if l == nil {
		l = log.New(io.Discard, "", 0)
	}
	d.logger = l
}

// SetMetrics attaches a Recorder; pass nil to revert to a no-op recorder.
func (d *Decoder) SetMetrics(r Recorder) {
	if r == nil {
		r = noopRecorder{}
	}
	d.metrics = r
}

// SetDebugger attaches a SignalDebugger for offline signal inspection.
func (d *Decoder) SetDebugger(dbg SignalDebugger) {
	if dbg == nil {
		dbg = NoOpDebugger{}
	}
	d.debug = dbg
}

// Configure recomputes the per-rate timing tables for source's sample rate
// and resets all demodulation state. Returns a *ConfigError if the sample
// rate is below NfcFC/minSampleRateDivisor (the floor set by the fastest
// tabulated rate) or if source's ring buffer is not longer than the largest
// symbol delay (spec §4.1).
func (d *Decoder) Configure(source SignalSource) error {
	rate := source.SampleRate()
	minRate := uint32(NfcFC / minSampleRateDivisor)
	if rate < minRate {
		return &ConfigError{SampleRate: rate, MinRate: minRate}
	}

	d.sampleRate = rate
	d.sampleTimeUnit = source.SampleTimeUnit()

	bufferLen := len(source.Data())
	bitrate := computeBitrateParams(d.sampleTimeUnit, bufferLen)
	if bufferLen <= maxSymbolDelay(bitrate) {
		return &ConfigError{SampleRate: rate, MinRate: minRate}
	}
	d.bitrate = bitrate
	d.source = source

	d.protocol, d.frame = configureProtocol(d.sampleTimeUnit)
	d.resetModulation()

	d.logger.Printf("nfcb: configured sampleRate=%d Hz period1(106k)=%d samples symbolDelay=%d",
		rate, d.bitrate[Rate106k].period1, d.bitrate[Rate106k].symbolDelayDetect)

	return nil
}

// BitrateParams exposes the derived timing table for a rate, mainly for
// tests and diagnostics; see SPEC_FULL.md's "per-bitrate table" note.
func (d *Decoder) BitrateParams(r RateType) BitrateParams {
	return d.bitrate[r]
}

// resetModulation clears the SOF search sub-state for every rate, detaches
// the active (bitrate, modulation) selection, and clears the stream and
// frame-in-flight state. Invoked after every terminal frame outcome —
// spec §4.8.
func (d *Decoder) resetModulation() {
	for i := range d.modulation {
		d.modulation[i].reset()
	}
	d.activeBitrate = nil
	d.activeModulation = nil
	d.stream.reset()
	// frameType is left as classify/onSofConfirmed last set it: a
	// ListenFrame value must survive into Decode's next iteration so the
	// listen dispatch branch below actually runs, the same way NfcB.cpp's
	// frameStatus.frameType is only ever overwritten by those two call
	// sites, never cleared on every reset.
	d.frame.frameStart = 0
	d.frame.frameEnd = 0
}

// Detect consumes exactly one sample and runs it through the 106k SOF
// state machine. It returns true iff this sample just confirmed a new SOF
// lock, and false at end of stream or while still searching.
func (d *Decoder) Detect() bool {
	if !d.source.NextSample() {
		return false
	}
	confirmed := d.detectModulation()
	if confirmed {
		d.metrics.SofConfirmed()
	}
	return confirmed
}

// Decode consumes samples from the configured Signal Source, appending any
// frames completed along the way to out. It returns when the source runs
// dry; the caller re-enters with the next chunk of samples once more are
// available (spec §5).
func (d *Decoder) Decode(out *[]NfcFrame) {
	for {
		if d.frame.frameType == ListenFrame {
			d.decodeListenFrame()
		}

		if d.activeBitrate == nil {
			if !d.source.NextSample() {
				return
			}
			if d.detectModulation() {
				d.metrics.SofConfirmed()
			}
			continue
		}

		sym, ok := d.decodeSymbol()
		if !ok {
			return
		}

		frame, terminal := d.advanceFramer(sym)
		if !terminal {
			continue
		}
		if frame != nil {
			d.metrics.FrameEmitted(frame.Flags)
			*out = append(*out, *frame)
		}
	}
}
