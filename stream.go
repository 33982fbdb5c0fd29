package nfcb

// StreamStatus accumulates symbols into bytes for the frame currently being
// received. bits counts 0..9: bit 0 is the start-bit position, bits 1..8
// are the eight LSB-first data bits, bit 9 is the stop-bit position.
type StreamStatus struct {
	buffer []byte
	bytes  int
	data   byte
	bits   int
}

func (s *StreamStatus) reset() {
	s.buffer = s.buffer[:0]
	s.bytes = 0
	s.data = 0
	s.bits = 0
}

// advanceFramer consumes one symbol against the NFC-B poll bit coding (one
// start bit L, eight data bits LSB-first, one stop bit H) per spec §4.5.
// It returns a non-nil frame when a frame was finalized, and terminal=true
// whenever the stream reached an end-of-frame, stream-error, or
// truncate-error condition — in every terminal case the modulation state is
// reset and the caller should resume SOF search.
func (d *Decoder) advanceFramer(sym SymbolStatus) (*NfcFrame, bool) {
	s := &d.stream
	b := s.bits
	data := s.data

	// Design note (a): the stream-error guard's (bits==9, PatternL) arm
	// shares its shape with the end-of-frame guard, so it is qualified with
	// data != 0 to only fire once the end-of-frame reading is ruled out.
	endOfFrame := b == 9 && data == 0 && sym.Pattern == PatternL
	streamError := (b == 0 && sym.Pattern == PatternH) || (b == 9 && sym.Pattern == PatternL && data != 0)
	truncateError := s.bytes == d.protocol.maxFrameSize

	if endOfFrame || streamError || truncateError {
		var frame *NfcFrame
		if s.bytes > 0 {
			frame = d.finalizeFrame(sym, streamError || truncateError)
		}
		d.resetModulation()
		return frame, true
	}

	if b >= 9 {
		s.buffer = append(s.buffer, data)
		s.bytes++
		data = 0
		b = 0
	} else {
		// Design note (b): "b > 0" guards the write so bit position 0 (the
		// start bit) never contributes to the byte accumulator.
		if b > 0 {
			data |= byte(sym.Value) << uint(b-1)
		}
		b++
	}

	s.data = data
	s.bits = b
	return nil, false
}
