package nfcb

// ProtocolStatus holds the protocol-level defaults re-applied at Configure
// and whenever a REQB/WUPB is recognized. Values are stored already
// converted to sample counts (cycles * sampleTimeUnit).
type ProtocolStatus struct {
	maxFrameSize     int
	frameGuardTime   int64
	frameWaitingTime int64
	startUpGuardTime int64
	requestGuardTime int64

	// chainedFlags is OR'd onto every emitted frame and cleared whenever a
	// REQB/WUPB is recognized. Nothing in this revision sets it to
	// anything but zero — see SPEC_FULL.md "chainedFlags".
	chainedFlags FrameFlags
}

// FrameStatus tracks the timing budget and phase bookkeeping for the frame
// currently in flight and the upcoming listen window.
type FrameStatus struct {
	frameType FrameType

	frameStart int64
	frameEnd   int64
	guardEnd   int64
	waitingEnd int64

	lastCommand    byte
	hasLastCommand bool

	frameGuardTime   int64
	frameWaitingTime int64
	startUpGuardTime int64
	requestGuardTime int64
	symbolRate       float64

	// lastFrameEnd is retained for diagnostics/tests; nothing downstream
	// reads it yet — see SPEC_FULL.md "lastFrameEnd bookkeeping".
	lastFrameEnd int64
}

func configureProtocol(sampleTimeUnit float32) (ProtocolStatus, FrameStatus) {
	unit := float64(sampleTimeUnit)
	p := ProtocolStatus{
		maxFrameSize:     defaultMaxFrameSize,
		frameGuardTime:   int64(float64(nfcbFrameGuardCycles) * unit),
		frameWaitingTime: int64(float64(nfcbFrameWaitingCycles) * unit),
		startUpGuardTime: int64(float64(nfcbStartUpGuardCycles) * unit),
		requestGuardTime: int64(float64(nfcbRequestGuardCycles) * unit),
	}
	f := FrameStatus{
		frameGuardTime:   p.frameGuardTime,
		frameWaitingTime: p.frameWaitingTime,
		startUpGuardTime: p.startUpGuardTime,
		requestGuardTime: p.requestGuardTime,
	}
	return p, f
}

// onSofConfirmed is invoked by the SOF detector the instant it locks: it
// selects the active rate, primes FrameStatus for the frame about to be
// received, and hands the symbol tracker its starting point.
func (d *Decoder) onSofConfirmed(bp *BitrateParams, mod *ModulationStatus) {
	d.activeBitrate = bp
	d.activeModulation = mod

	d.frame.frameType = PollFrame
	d.frame.symbolRate = bp.symbolsPerSecond
	d.frame.frameStart = mod.symbolStartTime - int64(bp.symbolDelayDetect)
	d.frame.frameEnd = 0
}

// classify implements spec §4.6: inspects the finalized frame's first byte
// and length, sets phase and CRC flag, adjusts the guard/waiting budgets
// for the upcoming listen window, and rolls the protocol state forward.
func (d *Decoder) classify(frame *NfcFrame, crcOK bool) {
	if frame.Type == PollFrame {
		d.frame.frameWaitingTime = d.protocol.frameWaitingTime
	}

	isReqb := len(frame.Payload) == ReqbLength && frame.Payload[0] == ReqbCommand
	if isReqb {
		d.protocol.maxFrameSize = defaultMaxFrameSize
		d.frame.frameGuardTime = int64(float64(nfcbReqbFrameGuardCycles) * float64(d.sampleTimeUnit))
		d.frame.frameWaitingTime = int64(float64(nfcbReqbFrameWaitingCycles) * float64(d.sampleTimeUnit))
		d.protocol.chainedFlags = 0
		frame.Phase = SelectionFrame
		if !crcOK {
			frame.Flags |= FlagCrcError
		}
		d.frame.lastCommand = ReqbCommand
		d.frame.hasLastCommand = true
	} else {
		frame.Phase = ApplicationFrame
		if !crcOK {
			frame.Flags |= FlagCrcError
		}
	}

	frame.Flags |= d.protocol.chainedFlags

	if frame.Type == PollFrame {
		d.frame.guardEnd = frame.SampleEnd + d.frame.frameGuardTime + int64(d.activeBitrate.symbolDelayDetect)
		d.frame.waitingEnd = frame.SampleEnd + d.frame.frameWaitingTime + int64(d.activeBitrate.symbolDelayDetect)
		d.frame.frameType = ListenFrame
	} else {
		d.frame.frameType = FrameNone
		d.frame.hasLastCommand = false
	}

	d.frame.lastFrameEnd = frame.SampleEnd
	d.frame.frameStart = 0
	d.frame.frameEnd = 0
}
