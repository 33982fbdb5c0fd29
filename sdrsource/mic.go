package sdrsource

import (
	"fmt"
	"strings"
	"unsafe"

	"github.com/gen2brain/malgo"
)

// MicSource captures from a sound-card-style front end over malgo and
// feeds the samples straight into an embedded RingBuffer, for front ends
// that present the ASK baseband magnitude as an audio input.
type MicSource struct {
	*RingBuffer

	ctx    *malgo.AllocatedContext
	device *malgo.Device
}

// OpenMicSource opens a capture device (the first whose name contains
// targetDeviceName, case-insensitively, or the system default if empty)
// at sampleRate and wires its frames into a ring buffer of ringSize.
func OpenMicSource(sampleRate uint32, targetDeviceName string, ringSize int, threshold float32, averageWindow int) (*MicSource, error) {
	ring, err := NewRingBuffer(ringSize, sampleRate, threshold, averageWindow)
	if err != nil {
		return nil, err
	}

	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("sdrsource: malgo init context: %w", err)
	}

	ms := &MicSource{RingBuffer: ring, ctx: ctx}

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
		samples := unsafe.Slice((*float32)(unsafe.Pointer(&pInputSamples[0])), int(framecount))
		ms.Feed(samples)
	}

	device, err := malgo.InitDevice(ctx.Context, deviceConfig, malgo.DeviceCallbacks{Data: onRecvFrames})
	if err != nil {
		_ = ctx.Uninit()
		ctx.Free()
		return nil, fmt.Errorf("sdrsource: malgo init device: %w", err)
	}
	ms.device = device

	return ms, nil
}

// Start begins capture; samples begin arriving via the malgo callback and
// accumulate in the ring buffer for NextSample to drain.
func (m *MicSource) Start() error {
	if m.device == nil {
		return fmt.Errorf("sdrsource: device not initialized")
	}
	return m.device.Start()
}

// Close stops capture and releases the malgo device and context.
func (m *MicSource) Close() {
	if m.device != nil {
		m.device.Uninit()
		m.device = nil
	}
	if m.ctx != nil {
		_ = m.ctx.Uninit()
		m.ctx.Free()
		m.ctx = nil
	}
}
