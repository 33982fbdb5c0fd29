package nfcb

import "testing"

const testSampleRate uint32 = 10_000_000 // spec §8 seed suite's nominal rate

// cleanReqbPayload is REQB/WUPB (0x05 0x00 0x00) with a valid CRC-16
// trailer, verified by hand against crc16Valid's algorithm.
var cleanReqbPayload = []byte{0x05, 0x00, 0x00, 0x71, 0xFF}

func mustFrame(t *testing.T, frames []NfcFrame) NfcFrame {
	t.Helper()
	if len(frames) != 1 {
		t.Fatalf("expected exactly one frame, got %d", len(frames))
	}
	return frames[0]
}

// Scenario 1: clean REQB.
func TestDecodeCleanReqb(t *testing.T) {
	wb := newWaveformBuilder(testSampleRate, 0.2)
	wb.carrier(30).sof(10, 3).bytesSym(cleanReqbPayload).eof().carrier(10)

	_, frames := runDecoder(t, wb.build(), testSampleRate)
	frame := mustFrame(t, frames)

	if string(frame.Payload) != string(cleanReqbPayload) {
		t.Errorf("payload = % x, want % x", frame.Payload, cleanReqbPayload)
	}
	if frame.Phase != SelectionFrame {
		t.Errorf("phase = %v, want SelectionFrame", frame.Phase)
	}
	if frame.Flags != 0 {
		t.Errorf("flags = %#x, want 0", frame.Flags)
	}
	if frame.Type != PollFrame {
		t.Errorf("type = %v, want PollFrame", frame.Type)
	}
	if frame.SampleStart > frame.SampleEnd {
		t.Errorf("sampleStart %d > sampleEnd %d", frame.SampleStart, frame.SampleEnd)
	}
}

// Scenario 2: REQB with CRC flip.
func TestDecodeReqbCrcFlip(t *testing.T) {
	payload := append([]byte(nil), cleanReqbPayload...)
	payload[len(payload)-1] = 0xFE

	wb := newWaveformBuilder(testSampleRate, 0.2)
	wb.carrier(30).sof(10, 3).bytesSym(payload).eof().carrier(10)

	_, frames := runDecoder(t, wb.build(), testSampleRate)
	frame := mustFrame(t, frames)

	if len(frame.Payload) != 5 {
		t.Errorf("payload length = %d, want 5", len(frame.Payload))
	}
	if frame.Flags&FlagCrcError == 0 {
		t.Errorf("flags = %#x, want CrcError set", frame.Flags)
	}
	if frame.Phase != SelectionFrame {
		t.Errorf("phase = %v, want SelectionFrame", frame.Phase)
	}
}

// Scenario 3: spurious edge during the SOF low must abandon the search
// (exercising IDLE's illegal-edge abort back to BEGIN, since the glitch lands
// ahead of the 10-11 ETU window) without preventing a subsequent clean REQB
// from being decoded.
func TestDecodeSpuriousEdgeDuringSofLow(t *testing.T) {
	wb := newWaveformBuilder(testSampleRate, 0.2)
	wb.carrier(30).
		silence(5).carrier(1).silence(4). // broken SOF low: glitch at ETU 5
		carrier(30).
		sof(10, 3).bytesSym(cleanReqbPayload).eof().carrier(10)

	_, frames := runDecoder(t, wb.build(), testSampleRate)
	frame := mustFrame(t, frames)

	if string(frame.Payload) != string(cleanReqbPayload) {
		t.Errorf("payload = % x, want % x", frame.Payload, cleanReqbPayload)
	}
	if frame.Flags != 0 {
		t.Errorf("flags = %#x, want 0", frame.Flags)
	}
}

// Scenario 4: a 257-byte frame must truncate at exactly maxFrameSize bytes.
func TestDecodeOverLongFrameTruncates(t *testing.T) {
	wb := newWaveformBuilder(testSampleRate, 0.2)
	wb.carrier(30).sof(10, 3)
	for i := 0; i < defaultMaxFrameSize; i++ {
		wb.byteSym(byte(i))
	}
	wb.bit(false) // the 257th byte's start bit: fires truncateError on arrival
	wb.carrier(10)

	_, frames := runDecoder(t, wb.build(), testSampleRate)
	frame := mustFrame(t, frames)

	if len(frame.Payload) != defaultMaxFrameSize {
		t.Errorf("payload length = %d, want %d", len(frame.Payload), defaultMaxFrameSize)
	}
	if frame.Flags&FlagTruncated == 0 {
		t.Errorf("flags = %#x, want Truncated set", frame.Flags)
	}
	if frame.Phase != ApplicationFrame {
		t.Errorf("phase = %v, want ApplicationFrame", frame.Phase)
	}
}

// Scenario 5: modulation depth below minModulationThreshold throughout
// never confirms a SOF, so no frame is ever emitted.
func TestDecodeBelowThresholdModulationYieldsNoFrame(t *testing.T) {
	wb := newWaveformBuilder(testSampleRate, 0.08) // default min is 0.10
	wb.carrier(30).sof(10, 3).bytesSym(cleanReqbPayload).eof().carrier(10)

	_, frames := runDecoder(t, wb.build(), testSampleRate)
	if len(frames) != 0 {
		t.Errorf("expected no frames, got %d", len(frames))
	}
}

// Scenario 6: two REQBs separated by at least requestGuardTime samples of
// carrier both decode, with the gap between them preserved.
func TestDecodeBackToBackReqbs(t *testing.T) {
	sampleTimeUnit := float32(float64(testSampleRate) / NfcFC)
	requestGuardTime := int64(float64(nfcbRequestGuardCycles) * float64(sampleTimeUnit))

	wb := newWaveformBuilder(testSampleRate, 0.2)
	requestGuardEtus := float64(requestGuardTime) / wb.period1
	wb.carrier(30).sof(10, 3).bytesSym(cleanReqbPayload).eof().
		carrier(requestGuardEtus + 5).
		sof(10, 3).bytesSym(cleanReqbPayload).eof().carrier(10)

	_, frames := runDecoder(t, wb.build(), testSampleRate)
	if len(frames) != 2 {
		t.Fatalf("expected exactly two frames, got %d", len(frames))
	}
	gap := frames[1].SampleStart - frames[0].SampleEnd
	if gap < requestGuardTime {
		t.Errorf("gap between frames = %d samples, want >= requestGuardTime (%d)", gap, requestGuardTime)
	}
	for i, f := range frames {
		if string(f.Payload) != string(cleanReqbPayload) {
			t.Errorf("frame %d payload = % x, want % x", i, f.Payload, cleanReqbPayload)
		}
	}
}

// Boundary: an SOF low of 9.5 ETU (just short of the 10-11 ETU IDLE window)
// is rejected; the otherwise-identical 10.5 ETU low is accepted.
func TestDecodeSofLowBoundary(t *testing.T) {
	short := newWaveformBuilder(testSampleRate, 0.2)
	short.carrier(30).sof(9.5, 3).bytesSym(cleanReqbPayload).eof().carrier(10)
	_, frames := runDecoder(t, short.build(), testSampleRate)
	if len(frames) != 0 {
		t.Errorf("9.5 ETU SOF low: expected no frame, got %d", len(frames))
	}

	long := newWaveformBuilder(testSampleRate, 0.2)
	long.carrier(30).sof(10.5, 3).bytesSym(cleanReqbPayload).eof().carrier(10)
	_, frames = runDecoder(t, long.build(), testSampleRate)
	if len(frames) != 1 {
		t.Errorf("10.5 ETU SOF low: expected one frame, got %d", len(frames))
	}
}

// Boundary: modulation depth exceeding maxModulationThreshold during SOF
// aborts the search; no frame is emitted.
func TestDecodeModulationOverMaxThresholdYieldsNoFrame(t *testing.T) {
	wb := newWaveformBuilder(testSampleRate, 0.6) // default max is 0.50
	wb.carrier(30).sof(10, 3).bytesSym(cleanReqbPayload).eof().carrier(10)

	_, frames := runDecoder(t, wb.build(), testSampleRate)
	if len(frames) != 0 {
		t.Errorf("expected no frames, got %d", len(frames))
	}
}

// Boundary: a payload one byte short of maxFrameSize, followed by a clean
// EOF, is emitted without the Truncated flag. Exactly maxFrameSize bytes
// can never complete cleanly: truncateError is checked unconditionally
// against streamStatus.bytes on every symbol once the cap is hit (see
// advanceFramer and NfcB.cpp's equivalent else-if chain), so the symbol
// immediately following the maxFrameSize-th byte's stop bit always
// truncates, whether or not it would otherwise have been a genuine EOF.
func TestDecodeMaxFrameSizeMinusOneNotTruncated(t *testing.T) {
	wb := newWaveformBuilder(testSampleRate, 0.2)
	wb.carrier(30).sof(10, 3)
	for i := 0; i < defaultMaxFrameSize-1; i++ {
		wb.byteSym(byte(i))
	}
	wb.eof().carrier(10)

	_, frames := runDecoder(t, wb.build(), testSampleRate)
	frame := mustFrame(t, frames)
	if len(frame.Payload) != defaultMaxFrameSize-1 {
		t.Errorf("payload length = %d, want %d", len(frame.Payload), defaultMaxFrameSize-1)
	}
	if frame.Flags&FlagTruncated != 0 {
		t.Errorf("flags = %#x, want Truncated clear", frame.Flags)
	}
}

// ConfigError: a sample rate below the NfcFC/2 floor is rejected.
func TestConfigureRejectsLowSampleRate(t *testing.T) {
	src := newTestSource(nil, 1_000_000, 1.0, 0.5)
	d := NewDecoder()
	err := d.Configure(src)
	if err == nil {
		t.Fatal("expected ConfigError, got nil")
	}
	if _, ok := err.(*ConfigError); !ok {
		t.Errorf("expected *ConfigError, got %T", err)
	}
}
