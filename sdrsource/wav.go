package sdrsource

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
)

// WavSource replays a 16-bit PCM WAV capture as an nfcb.SignalSource. The
// file's samples are the baseband ASK magnitude stream, not audio — this
// mirrors the chunked file-reading idiom of a live front end so replay and
// live capture share the same RingBuffer plumbing.
type WavSource struct {
	*RingBuffer

	file       *os.File
	channels   int
	bitsPerSample int
	dataRemain int // bytes left in the data chunk
}

// OpenWavSource opens filename, parses its RIFF/WAVE/fmt/data chunks, and
// returns a WavSource backed by a ring buffer sized to ringSize (power of
// two) with the given modulation power threshold.
func OpenWavSource(filename string, ringSize int, threshold float32, averageWindow int) (*WavSource, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}

	riffHeader := make([]byte, 12)
	if _, err := io.ReadFull(f, riffHeader); err != nil {
		f.Close()
		return nil, err
	}
	if string(riffHeader[0:4]) != "RIFF" || string(riffHeader[8:12]) != "WAVE" {
		f.Close()
		return nil, fmt.Errorf("sdrsource: %s is not a RIFF/WAVE file", filename)
	}

	var channels, sampleRate, bitsPerSample, dataSize int
	foundFmt, foundData := false, false

	for {
		chunkHeader := make([]byte, 8)
		if _, err := io.ReadFull(f, chunkHeader); err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				break
			}
			f.Close()
			return nil, err
		}

		chunkID := string(chunkHeader[0:4])
		chunkSize := binary.LittleEndian.Uint32(chunkHeader[4:8])
		padding := int64(chunkSize % 2)

		switch chunkID {
		case "fmt ":
			if chunkSize < 16 {
				f.Close()
				return nil, fmt.Errorf("sdrsource: fmt chunk too small in %s", filename)
			}
			fmtData := make([]byte, chunkSize)
			if _, err := io.ReadFull(f, fmtData); err != nil {
				f.Close()
				return nil, err
			}
			if padding > 0 {
				f.Seek(padding, io.SeekCurrent)
			}
			channels = int(binary.LittleEndian.Uint16(fmtData[2:4]))
			sampleRate = int(binary.LittleEndian.Uint32(fmtData[4:8]))
			bitsPerSample = int(binary.LittleEndian.Uint16(fmtData[14:16]))
			foundFmt = true
		case "data":
			dataSize = int(chunkSize)
			foundData = true
		default:
			if _, err := f.Seek(int64(chunkSize)+padding, io.SeekCurrent); err != nil {
				f.Close()
				return nil, err
			}
		}

		if foundFmt && foundData {
			break
		}
	}

	if !foundFmt || !foundData {
		f.Close()
		return nil, fmt.Errorf("sdrsource: %s missing fmt or data chunk", filename)
	}
	if bitsPerSample != 16 {
		f.Close()
		return nil, fmt.Errorf("sdrsource: only 16-bit wav supported, got %d in %s", bitsPerSample, filename)
	}

	ring, err := NewRingBuffer(ringSize, uint32(sampleRate), threshold, averageWindow)
	if err != nil {
		f.Close()
		return nil, err
	}

	return &WavSource{
		RingBuffer:    ring,
		file:          f,
		channels:      channels,
		bitsPerSample: bitsPerSample,
		dataRemain:    dataSize,
	}, nil
}

// Refill reads up to count frames (one sample per frame, first channel
// only) from the file and feeds them into the ring buffer. Returns the
// number of samples actually read; 0 means end of file.
func (w *WavSource) Refill(count int) (int, error) {
	if w.dataRemain <= 0 {
		return 0, nil
	}

	frameBytes := 2 * w.channels
	if count*frameBytes > w.dataRemain {
		count = w.dataRemain / frameBytes
	}
	if count <= 0 {
		return 0, nil
	}

	buf := make([]byte, count*frameBytes)
	n, err := io.ReadFull(w.file, buf)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return 0, err
	}

	frames := n / frameBytes
	samples := make([]float32, frames)
	for i := 0; i < frames; i++ {
		offset := i * frameBytes
		val := int16(binary.LittleEndian.Uint16(buf[offset : offset+2]))
		samples[i] = float32(val) / 32768.0
	}

	w.dataRemain -= n
	w.Feed(samples)
	return frames, nil
}

// Close releases the underlying file.
func (w *WavSource) Close() error {
	return w.file.Close()
}

// WavSink records a float32 magnitude stream to a 16-bit PCM mono WAV file
// — typically a capture of RingBuffer samples for later replay through
// WavSource.
type WavSink struct {
	file       *os.File
	sampleRate uint32
	written    uint32
}

// NewWavSink creates filename and reserves a 44-byte header to be
// rewritten with final sizes on Close.
func NewWavSink(filename string, sampleRate uint32) (*WavSink, error) {
	f, err := os.Create(filename)
	if err != nil {
		return nil, err
	}

	header := make([]byte, 44)
	if _, err := f.Write(header); err != nil {
		f.Close()
		return nil, err
	}

	return &WavSink{file: f, sampleRate: sampleRate}, nil
}

// Write appends samples as 16-bit PCM.
func (w *WavSink) Write(samples []float32) error {
	buf := make([]byte, len(samples)*2)
	for i, s := range samples {
		v := int16(s * 32767)
		binary.LittleEndian.PutUint16(buf[i*2:i*2+2], uint16(v))
	}
	if _, err := w.file.Write(buf); err != nil {
		return err
	}
	w.written += uint32(len(samples))
	return nil
}

// Close rewrites the WAV header with the final sizes and closes the file.
func (w *WavSink) Close() error {
	dataSize := w.written * 2
	riffSize := dataSize + 36

	header := make([]byte, 44)
	copy(header[0:4], "RIFF")
	binary.LittleEndian.PutUint32(header[4:8], riffSize)
	copy(header[8:12], "WAVE")
	copy(header[12:16], "fmt ")
	binary.LittleEndian.PutUint32(header[16:20], 16)
	binary.LittleEndian.PutUint16(header[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(header[22:24], 1)  // mono
	binary.LittleEndian.PutUint32(header[24:28], w.sampleRate)
	binary.LittleEndian.PutUint32(header[28:32], w.sampleRate*2)
	binary.LittleEndian.PutUint16(header[32:34], 2)
	binary.LittleEndian.PutUint16(header[34:36], 16)
	copy(header[36:40], "data")
	binary.LittleEndian.PutUint32(header[40:44], dataSize)

	if _, err := w.file.WriteAt(header, 0); err != nil {
		w.file.Close()
		return err
	}
	return w.file.Close()
}
