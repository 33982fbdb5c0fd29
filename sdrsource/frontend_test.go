package sdrsource

import (
	"bytes"
	"testing"
)

type mockSerialPort struct {
	ReadBuffer  *bytes.Buffer
	WriteBuffer *bytes.Buffer
	Closed      bool
}

func newMockSerialPort() *mockSerialPort {
	return &mockSerialPort{ReadBuffer: new(bytes.Buffer), WriteBuffer: new(bytes.Buffer)}
}

func (m *mockSerialPort) Read(p []byte) (int, error)  { return m.ReadBuffer.Read(p) }
func (m *mockSerialPort) Write(p []byte) (int, error) { return m.WriteBuffer.Write(p) }
func (m *mockSerialPort) Close() error                { m.Closed = true; return nil }

func makeResponseFrame(cmd byte, data []byte) []byte {
	frame := []byte{framePreamble, framePreamble, addrHost, addrFrontEnd, cmd}
	frame = append(frame, data...)
	frame = append(frame, frameEnd)
	return frame
}

func TestFrontEndSetGain(t *testing.T) {
	mock := newMockSerialPort()
	client := &FrontEnd{conn: mock}

	if err := client.SetGain(20); err != nil {
		t.Fatalf("SetGain failed: %v", err)
	}

	expected := []byte{0xFE, 0xFE, addrFrontEnd, addrHost, 0x10, 20, 0xFD}
	if !bytes.Equal(mock.WriteBuffer.Bytes(), expected) {
		t.Errorf("expected frame %X, got %X", expected, mock.WriteBuffer.Bytes())
	}
}

func TestFrontEndReadGain(t *testing.T) {
	mock := newMockSerialPort()
	client := &FrontEnd{conn: mock}

	mock.ReadBuffer.Write(makeResponseFrame(0x20, []byte{30}))

	gain, err := client.ReadGain()
	if err != nil {
		t.Fatalf("ReadGain failed: %v", err)
	}
	if gain != 30 {
		t.Errorf("expected gain 30, got %d", gain)
	}
}

func TestFrontEndReadResponseEchoFiltered(t *testing.T) {
	mock := newMockSerialPort()
	client := &FrontEnd{conn: mock}

	echo := []byte{0xFE, 0xFE, addrFrontEnd, addrHost, 0x20, 0xFD}
	mock.ReadBuffer.Write(echo)
	mock.ReadBuffer.Write(makeResponseFrame(0x20, []byte{45}))

	gain, err := client.ReadGain()
	if err != nil {
		t.Fatalf("ReadGain with echo present failed: %v", err)
	}
	if gain != 45 {
		t.Errorf("expected gain 45, got %d", gain)
	}
}

func TestFrontEndClose(t *testing.T) {
	mock := newMockSerialPort()
	client := &FrontEnd{conn: mock}

	if err := client.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if !mock.Closed {
		t.Error("expected port to be closed")
	}
}
