package nfcb

// SignalSource is the collaborator contract the decoder pulls samples
// through. Implementations own the ring buffer, the sample clock, and the
// exponential power average — the decoder only ever reads them. See package
// sdrsource for concrete implementations (ring buffer over a live capture,
// or WAV replay).
type SignalSource interface {
	// NextSample advances the signal clock by one and makes
	// Data()[SignalClock() & (N-1)] valid for the new clock. Returns false
	// at end of stream; the caller should stop decoding for this chunk and
	// resume once more samples are available.
	NextSample() bool

	// SignalClock is the monotonic count of samples consumed since start.
	SignalClock() uint64

	// Data is the backing ring buffer; its length is a power of two.
	Data() []float32

	// PowerAverage is the slow exponential average the depth estimator
	// compares each sample against.
	PowerAverage() float32

	// PowerLevelThreshold gates whether the SOF detector runs at all —
	// below it, the channel is considered carrier-off.
	PowerLevelThreshold() float32

	// SampleRate is the source's sampling frequency in Hz.
	SampleRate() uint32

	// SampleTimeUnit is SampleRate() / NfcFC, precomputed by the source so
	// the decoder never repeats the division on the hot path.
	SampleTimeUnit() float32
}
