package nfcb

import (
	"bufio"
	"fmt"
	"os"
)

// SignalDebugger is an optional hook the decoder calls on every sample the
// edge detector processes (samples skipped while the power average is below
// PowerLevelThreshold are not recorded), so an operator can inspect the edge
// detector while tuning a new front end.
// The decoder depends only on this interface, never on a concrete file
// implementation.
type SignalDebugger interface {
	Record(clock uint64, signal, edge, depth float64, stage int)
	Close()
}

// NoOpDebugger is the default, zero-cost SignalDebugger used in
// production so the hot path never needs a nil check.
type NoOpDebugger struct{}

func (NoOpDebugger) Record(clock uint64, signal, edge, depth float64, stage int) {}
func (NoOpDebugger) Close() {}

// CsvFileDebugger is a SignalDebugger that appends one CSV row per sample:
// clock, the raw signal value, the signed edge E(t), the modulation depth
// D(t), and the SOF search stage. Intended for short offline captures only
// — it is not rate-limited and will grow without bound on a live feed.
type CsvFileDebugger struct {
	file   *os.File
	writer *bufio.Writer
}

// NewCsvFileDebugger creates filename and writes the CSV header.
func NewCsvFileDebugger(filename string) (*CsvFileDebugger, error) {
	f, err := os.Create(filename)
	if err != nil {
		return nil, err
	}

	w := bufio.NewWriter(f)
	if _, err := w.WriteString("Clock,Signal,Edge,Depth,Stage\n"); err != nil {
		f.Close()
		return nil, err
	}

	return &CsvFileDebugger{file: f, writer: w}, nil
}

func (d *CsvFileDebugger) Record(clock uint64, signal, edge, depth float64, stage int) {
	fmt.Fprintf(d.writer, "%d,%f,%f,%f,%d\n", clock, signal, edge, depth, stage)
}

func (d *CsvFileDebugger) Close() {
	if d.writer != nil {
		d.writer.Flush()
	}
	if d.file != nil {
		d.file.Close()
	}
}
