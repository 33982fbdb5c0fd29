package nfcb

// decodeListenFrame is the listen-side counterpart to advanceFramer. BPSK
// sub-carrier demodulation is not implemented in this revision (spec.md's
// "Listen-frame decoder unimplemented in source" extension point), so it
// simply releases the active rate lock and reports no frame, exactly as
// NfcB.cpp's decodeListenFrame does while its own BPSK path is stubbed out.
func (d *Decoder) decodeListenFrame() (*NfcFrame, bool) {
	d.activeBitrate = nil
	d.activeModulation = nil
	return nil, false
}

// decodeListenFrameSymbolBpsk is the listen-side symbol-tracker hook,
// shaped like decodeSymbol so a future BPSK sub-carrier demodulator can
// drop in without changing decodeListenFrame's call shape. Always reports
// no symbol, mirroring NfcB.cpp's decodeListenFrameSymbolBpsk stub.
func (d *Decoder) decodeListenFrameSymbolBpsk() (SymbolStatus, bool) {
	return SymbolStatus{Pattern: PatternInvalid}, false
}
