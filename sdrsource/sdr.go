package sdrsource

import (
	"fmt"
	"strings"
	"unsafe"

	"github.com/gen2brain/malgo"
)

// SdrSource captures raw real-valued IF samples from an SDR-style capture
// device over malgo, downconverts each one through an IQDemodulator, and
// feeds the resulting baseband magnitude into an embedded RingBuffer. Unlike
// MicSource, which assumes the front end already hands over a demodulated
// envelope, SdrSource owns the downconversion itself.
type SdrSource struct {
	*RingBuffer

	demod *IQDemodulator

	ctx    *malgo.AllocatedContext
	device *malgo.Device
}

// OpenSdrSource opens a capture device (the first whose name contains
// targetDeviceName, case-insensitively, or the system default if empty) at
// sampleRate, demodulates around targetFreq/filterBW via an IQDemodulator,
// and wires the result into a ring buffer of ringSize.
func OpenSdrSource(sampleRate uint32, targetDeviceName string, targetFreq, filterBW float64, trackingEnabled bool, ringSize int, threshold float32, averageWindow int) (*SdrSource, error) {
	ring, err := NewRingBuffer(ringSize, sampleRate, threshold, averageWindow)
	if err != nil {
		return nil, err
	}

	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("sdrsource: malgo init context: %w", err)
	}

	ss := &SdrSource{
		RingBuffer: ring,
		demod:      NewIQDemodulator(float64(sampleRate), targetFreq, filterBW, trackingEnabled),
		ctx:        ctx,
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatF32
	deviceConfig.Capture.Channels = 1
	deviceConfig.SampleRate = sampleRate
	deviceConfig.Alsa.NoMMap = 1

	if targetDeviceName != "" {
		if infos, err := ctx.Devices(malgo.Capture); err == nil {
			for _, info := range infos {
				if strings.Contains(strings.ToLower(info.Name()), strings.ToLower(targetDeviceName)) {
					deviceConfig.Capture.DeviceID = info.ID.Pointer()
					break
				}
			}
		}
	}

	onRecvFrames := func(pOutputSample, pInputSamples []byte, framecount uint32) {
		if len(pInputSamples) == 0 {
			return
		}
		raw := unsafe.Slice((*float32)(unsafe.Pointer(&pInputSamples[0])), int(framecount))
		demodulated := make([]float32, len(raw))
		for i, sample := range raw {
			demodulated[i] = ss.demod.Process(float64(sample))
		}
		ss.Feed(demodulated)
	}

	device, err := malgo.InitDevice(ctx.Context, deviceConfig, malgo.DeviceCallbacks{Data: onRecvFrames})
	if err != nil {
		_ = ctx.Uninit()
		ctx.Free()
		return nil, fmt.Errorf("sdrsource: malgo init device: %w", err)
	}
	ss.device = device

	return ss, nil
}

// Start begins capture; raw IF samples begin arriving via the malgo
// callback, are demodulated in place, and accumulate in the ring buffer for
// NextSample to drain.
func (s *SdrSource) Start() error {
	if s.device == nil {
		return fmt.Errorf("sdrsource: device not initialized")
	}
	return s.device.Start()
}

// Close stops capture and releases the malgo device and context.
func (s *SdrSource) Close() {
	if s.device != nil {
		s.device.Uninit()
		s.device = nil
	}
	if s.ctx != nil {
		_ = s.ctx.Uninit()
		s.ctx.Free()
		s.ctx = nil
	}
}
