package nfcb

// NfcFrame is the decoder's output artifact: a fully framed, classified,
// and CRC-checked NFC-B frame with sample-accurate and wall-clock-accurate
// boundaries.
type NfcFrame struct {
	Tech  TechType
	Type  FrameType
	Phase FramePhase

	SampleStart int64
	SampleEnd   int64
	TimeStart   float64 // seconds
	TimeEnd     float64 // seconds

	Payload []byte
	Flags   FrameFlags
}

// finalizeFrame builds the NfcFrame for the bytes accumulated in the
// stream buffer up to the terminating symbol, runs the CRC check, and
// hands it to the protocol classifier before returning it — spec §4.5/4.6.
func (d *Decoder) finalizeFrame(terminator SymbolStatus, truncated bool) *NfcFrame {
	payload := make([]byte, len(d.stream.buffer))
	copy(payload, d.stream.buffer)

	sampleStart := d.frame.frameStart
	sampleEnd := terminator.End

	frame := &NfcFrame{
		Tech:        TechNfcB,
		Type:        PollFrame,
		Phase:       CarrierFrame,
		SampleStart: sampleStart,
		SampleEnd:   sampleEnd,
		TimeStart:   float64(sampleStart) / float64(d.sampleRate),
		TimeEnd:     float64(sampleEnd) / float64(d.sampleRate),
		Payload:     payload,
		Flags:       0,
	}
	if truncated {
		frame.Flags |= FlagTruncated
	}

	d.frame.frameEnd = sampleEnd
	crcOK := crc16Valid(payload)
	d.classify(frame, crcOK)

	return frame
}
