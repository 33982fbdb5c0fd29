package sdrsource

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"io"
	"time"

	"github.com/tarm/serial"
)

// Front-end control-plane framing: a command channel separate from the
// sample path, used to adjust an external SDR dongle's gain and carrier
// lock before or during a capture.
const (
	framePreamble = 0xFE
	frameEnd      = 0xFD
	addrHost      = 0xE0
	addrFrontEnd  = 0x94
)

// SerialPort is the interface FrontEnd talks over; defined so tests can
// substitute a mock instead of a real port.
type SerialPort interface {
	io.ReadWriteCloser
}

// FrontEnd is a serial control-plane client for an external SDR front
// end: it sends gain and threshold commands, never samples — those arrive
// separately through a RingBuffer/MicSource/WavSource.
type FrontEnd struct {
	Port     string
	BaudRate int
	conn     SerialPort
}

// NewFrontEnd creates a client for the named serial port; call Open before
// sending commands.
func NewFrontEnd(port string, baudRate int) *FrontEnd {
	return &FrontEnd{Port: port, BaudRate: baudRate}
}

// Open opens the serial connection.
func (c *FrontEnd) Open() error {
	cfg := &serial.Config{
		Name:        c.Port,
		Baud:        c.BaudRate,
		ReadTimeout: 500 * time.Millisecond,
	}
	s, err := serial.OpenPort(cfg)
	if err != nil {
		return err
	}
	c.conn = s
	return nil
}

// Close closes the serial connection.
func (c *FrontEnd) Close() error {
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// sendCommand writes a framed command: preamble, preamble, to, from, cmd,
// payload, end.
func (c *FrontEnd) sendCommand(cmd byte, payload []byte) error {
	if c.conn == nil {
		return fmt.Errorf("sdrsource: connection not open")
	}
	frame := []byte{framePreamble, framePreamble, addrFrontEnd, addrHost, cmd}
	frame = append(frame, payload...)
	frame = append(frame, frameEnd)
	_, err := c.conn.Write(frame)
	return err
}

// SetGain sets the front end's RF gain in dB (cmd 0x10).
func (c *FrontEnd) SetGain(gainDB int) error {
	return c.sendCommand(0x10, []byte{byte(gainDB)})
}

// SetModulationThreshold pushes the minimum power level, scaled 0-255,
// below which the front end should stop forwarding samples (cmd 0x11) —
// the hardware-side counterpart of Decoder.SetModulationThreshold.
func (c *FrontEnd) SetModulationThreshold(level byte) error {
	return c.sendCommand(0x11, []byte{level})
}

// ReadGain reads back the currently configured gain (cmd 0x20).
func (c *FrontEnd) ReadGain() (int, error) {
	if err := c.sendCommand(0x20, nil); err != nil {
		return 0, err
	}
	resp, err := c.readResponse(0x20)
	if err != nil {
		return 0, err
	}
	if len(resp) < 1 {
		return 0, fmt.Errorf("sdrsource: empty gain response")
	}
	return int(int8(resp[0])), nil
}

// readResponse reads one response frame and extracts its payload,
// matching on the expected command byte. Real hardware may echo the
// outbound frame or split a response across reads; this is a best-effort
// single-read parse suitable for a request/response control channel.
func (c *FrontEnd) readResponse(expectedCmd byte) ([]byte, error) {
	if c.conn == nil {
		return nil, fmt.Errorf("sdrsource: connection not open")
	}

	buf := make([]byte, 1024)
	n, err := c.conn.Read(buf)
	if err != nil && err != io.EOF {
		return nil, err
	}
	if n == 0 {
		return nil, fmt.Errorf("sdrsource: timeout or no data")
	}

	data := buf[:n]
	header := []byte{framePreamble, framePreamble, addrHost, addrFrontEnd, expectedCmd}
	idx := bytes.Index(data, header)
	if idx == -1 {
		return nil, fmt.Errorf("sdrsource: response header not found in %s", hex.EncodeToString(data))
	}

	frame := data[idx:]
	endIdx := bytes.IndexByte(frame, frameEnd)
	if endIdx == -1 {
		return nil, fmt.Errorf("sdrsource: frame end not found")
	}
	if endIdx <= len(header) {
		return []byte{}, nil
	}
	return frame[len(header):endIdx], nil
}
