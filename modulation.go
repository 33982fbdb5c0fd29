package nfcb

import "math"

// SOF search stages, mirroring the three-stage state machine of spec §4.3.
const (
	sofBegin = iota
	sofIdle
	sofEnd
)

// ModulationStatus is the mutable per-rate demodulation state: the two
// integrator accumulators, the SOF search sub-state, and (once locked) the
// symbol-tracker's predicted boundaries.
type ModulationStatus struct {
	filterIntegrate float64
	detectIntegrate float64

	searchStage int
	searchStart int64 // outer window lower bound for the active SOF stage
	searchEnd   int64 // outer window upper bound
	closeTime   int64 // 0 when no peak is being tracked; else the extremum's closing deadline
	peakTime    int64
	peekValue   float64 // detectorPeek: the extremum held during the active window

	symbolStartTime int64
	symbolEndTime   int64
	symbolSyncTime  int64

	// phaseIntegrate is reserved for BPSK listen-frame demodulation; never
	// read by the ASK poll-frame path.
	phaseIntegrate float64
}

func (m *ModulationStatus) reset() {
	*m = ModulationStatus{}
}

// stepIntegrators advances the dual moving-average edge detector by one
// sample and returns the raw signal value, the signed edge E(t), and the
// modulation depth D(t). This is the hot path described in spec §4.2.
func stepIntegrators(src SignalSource, bp *BitrateParams, mod *ModulationStatus) (signal, edge, depth float64) {
	data := src.Data()
	mask := uint64(len(data) - 1)
	clock := src.SignalClock()

	signalIdx := (clock + uint64(bp.offsetSignal)) & mask
	filterIdx := (clock + uint64(bp.offsetFilter)) & mask
	detectIdx := (clock + uint64(bp.offsetDetect)) & mask

	signal = float64(data[signalIdx])
	mod.filterIntegrate += signal - float64(data[filterIdx])
	mod.detectIntegrate += signal - float64(data[detectIdx])

	edge = mod.filterIntegrate/float64(bp.period4) - mod.detectIntegrate/float64(bp.period8)

	if avg := float64(src.PowerAverage()); avg != 0 {
		depth = (avg - signal) / avg
	}
	return signal, edge, depth
}

// detectModulation consumes exactly one sample against the 106k rate's SOF
// state machine and returns true iff that sample confirmed a new SOF lock.
func (d *Decoder) detectModulation() bool {
	src := d.source
	if float64(src.PowerAverage()) <= float64(src.PowerLevelThreshold()) {
		return false
	}

	bp := &d.bitrate[Rate106k]
	mod := &d.modulation[Rate106k]
	t := int64(src.SignalClock())

	signal, edge, depth := stepIntegrators(src, bp, mod)
	d.debug.Record(uint64(t), signal, edge, depth, mod.searchStage)

	if depth > d.maxModulationThreshold {
		mod.reset()
		return false
	}

	switch mod.searchStage {
	case sofBegin:
		d.sofBeginStep(mod, bp, t, edge, depth)
	case sofIdle:
		d.sofIdleStep(mod, bp, t, edge, depth)
	case sofEnd:
		return d.sofEndStep(mod, bp, t, edge, depth)
	}
	return false
}

// sofBeginStep looks for the first falling edge of the SOF low.
func (d *Decoder) sofBeginStep(mod *ModulationStatus, bp *BitrateParams, t int64, edge, depth float64) {
	if edge > 0.001 && depth > d.minModulationThreshold && edge > mod.peekValue {
		mod.peekValue = edge
		mod.peakTime = t
		mod.closeTime = t + int64(bp.period4)
	}

	if mod.closeTime != 0 && t == mod.closeTime {
		if mod.peekValue > 0 {
			mod.symbolStartTime = mod.peakTime - int64(bp.period8)
			mod.searchStage = sofIdle
			mod.searchStart = mod.peakTime + 10*int64(bp.period1) - int64(bp.period2)
			mod.searchEnd = mod.peakTime + 11*int64(bp.period1) + int64(bp.period2)
		}
		mod.closeTime = 0
		mod.peekValue = 0
	}
}

// sofIdleStep expects the SOF low to end with a rising (negative signed)
// edge between 10 and 11 ETU after the first falling edge.
func (d *Decoder) sofIdleStep(mod *ModulationStatus, bp *BitrateParams, t int64, edge, depth float64) {
	switch {
	case t < mod.searchStart:
		// Illegal modulation during the SOF low, ahead of the legal
		// window: abandon the search.
		if math.Abs(edge) > 0.001 {
			mod.reset()
			return
		}
	case t <= mod.searchEnd:
		if edge < -0.001 && edge < mod.peekValue {
			mod.peekValue = edge
			mod.peakTime = t
			mod.closeTime = t + int64(bp.period4)
		}
	default:
		// Window closed with no rising edge ever recorded: give up and
		// let BEGIN look for a fresh falling edge.
		if mod.closeTime == 0 {
			mod.reset()
			return
		}
	}

	if mod.closeTime != 0 && t == mod.closeTime {
		mod.searchStage = sofEnd
		mod.searchStart = mod.peakTime + 2*int64(bp.period1) - int64(bp.period2)
		mod.searchEnd = mod.peakTime + 3*int64(bp.period1) + int64(bp.period2)
		mod.closeTime = 0
		mod.peekValue = 0
	}
}

// sofEndStep expects the closing falling edge between 2 and 3 ETU after the
// rising edge; returns true iff this sample confirmed the SOF.
func (d *Decoder) sofEndStep(mod *ModulationStatus, bp *BitrateParams, t int64, edge, depth float64) bool {
	inside := t >= mod.searchStart && t <= mod.searchEnd

	if inside {
		if edge > 0.001 && depth > d.minModulationThreshold && edge > mod.peekValue {
			mod.peekValue = edge
			mod.peakTime = t
			mod.closeTime = t + int64(bp.period8)
		}
	} else if t > mod.searchEnd && mod.closeTime == 0 {
		// Window closed with no closing falling edge ever recorded.
		mod.reset()
		return false
	}

	if mod.closeTime == 0 || t != mod.closeTime {
		return false
	}

	confirmed := mod.peekValue > 0
	if confirmed {
		mod.symbolEndTime = mod.peakTime - int64(bp.period8)
		mod.symbolSyncTime = 0
		// The SOF search window is spent; decodeSymbol starts the re-sync
		// window fresh once the first symbol's boundary is known, as
		// NfcB.cpp:369-370 does.
		mod.searchStart = 0
		mod.searchEnd = 0
		mod.peekValue = 0
		d.onSofConfirmed(bp, mod)
	} else {
		mod.reset()
	}
	return confirmed
}

// decodeSymbol advances the signal clock, sample by sample, until one
// symbol is produced against the active (locked) rate, or the source is
// exhausted — spec §4.4.
func (d *Decoder) decodeSymbol() (SymbolStatus, bool) {
	bp := d.activeBitrate
	mod := d.activeModulation

	for d.source.NextSample() {
		t := int64(d.source.SignalClock())
		signal, edge, depth := stepIntegrators(d.source, bp, mod)
		d.debug.Record(uint64(t), signal, edge, depth, mod.searchStage)
		absEdge := math.Abs(edge)

		// Re-sync window: fixed bounds stored at the previous symbol's
		// decision time (below), not derived live from symbolEndTime, which
		// the prediction step just below mutates mid-symbol — matching
		// NfcB.cpp:567/616-617.
		if t > mod.searchStart && t < mod.searchEnd {
			if depth > d.minModulationThreshold && absEdge > mod.peekValue {
				mod.peekValue = absEdge
				mod.symbolEndTime = t - int64(bp.period8)
				mod.symbolSyncTime = 0
			}
		}

		if mod.symbolSyncTime == 0 {
			mod.symbolStartTime = mod.symbolEndTime
			mod.symbolEndTime = mod.symbolStartTime + int64(bp.period1)
			mod.symbolSyncTime = mod.symbolStartTime + int64(bp.period2)
		}

		if t == mod.symbolSyncTime {
			var sym SymbolStatus
			if depth > d.minModulationThreshold {
				sym.Pattern = PatternL
				sym.Value = 0
			} else {
				sym.Pattern = PatternH
				sym.Value = 1
			}
			sym.Start = mod.symbolStartTime - int64(bp.symbolDelayDetect)
			sym.End = mod.symbolEndTime - int64(bp.symbolDelayDetect)
			sym.Length = sym.End - sym.Start

			// Fix the next symbol's re-sync window now, around this
			// symbol's end, before the next call's prediction step moves
			// symbolEndTime forward again.
			mod.searchStart = mod.symbolEndTime - int64(bp.period4)
			mod.searchEnd = mod.symbolEndTime + int64(bp.period4)

			mod.symbolSyncTime = 0
			mod.peekValue = 0
			return sym, true
		}
	}

	return SymbolStatus{Pattern: PatternInvalid}, false
}
