package nfcb

import "fmt"

// ConfigError is returned by Decoder.Configure when the requested sample
// rate is below the floor set by the fastest tabulated bit rate, or when the
// source's ring buffer is too short for the symbol delays. It is fatal for the
// decoder instance — per spec, CRC and framing problems are never errors,
// only frame flags; ConfigError is the one failure mode that is.
type ConfigError struct {
	SampleRate uint32
	MinRate    uint32
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("nfcb: sample rate %d Hz too low, need at least %d Hz", e.SampleRate, e.MinRate)
}
