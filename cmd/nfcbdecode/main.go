// Command nfcbdecode replays or captures an NFC-B ASK baseband signal,
// decodes frames, and optionally exposes them over a websocket feed and
// Prometheus metrics.
package main

import (
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/n3fcb/nfcbdecode"
	"github.com/n3fcb/nfcbdecode/config"
	"github.com/n3fcb/nfcbdecode/sdrsource"
	"github.com/n3fcb/nfcbdecode/sink"
)

func main() {
	configFile := flag.String("config", "", "YAML config file (defaults applied if omitted)")
	wavFile := flag.String("file", "", "Input wav file for replay, overrides config source.wavFile")
	recordWav := flag.String("record", "", "Mirror the live capture to this wav file, overrides config sink.recordWav")
	flag.Parse()

	cfg := config.DefaultConfig()
	if *configFile != "" {
		loaded, err := config.Load(*configFile)
		if err != nil {
			log.Fatalf("nfcbdecode: %v", err)
		}
		cfg = loaded
	}
	if *wavFile != "" {
		cfg.Source.Kind = "wav"
		cfg.Source.WavFile = *wavFile
	}
	if *recordWav != "" {
		cfg.Sink.RecordWav = *recordWav
	}

	logger := log.New(os.Stderr, "nfcbdecode: ", log.LstdFlags)

	decoder := nfcb.NewDecoder()
	decoder.SetModulationThreshold(cfg.Decoder.MinModulationThreshold, cfg.Decoder.MaxModulationThreshold)
	decoder.SetLogger(logger)

	if cfg.Debug.CsvFile != "" {
		dbg, err := nfcb.NewCsvFileDebugger(cfg.Debug.CsvFile)
		if err != nil {
			log.Fatalf("nfcbdecode: debug trace: %v", err)
		}
		defer dbg.Close()
		decoder.SetDebugger(dbg)
	}

	registry := prometheus.NewRegistry()
	if cfg.Metrics.Enabled {
		decoder.SetMetrics(nfcb.NewPrometheusRecorder(registry))
	}

	var wsSink *sink.WebSocketSink
	if cfg.Sink.WebSocketAddr != "" {
		wsSink = sink.NewWebSocketSink(logger)
		mux := http.NewServeMux()
		mux.HandleFunc("/frames", wsSink.HandleUpgrade)
		if cfg.Metrics.Enabled {
			mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
		}
		go func() {
			if err := http.ListenAndServe(cfg.Sink.WebSocketAddr, mux); err != nil {
				logger.Printf("websocket server stopped: %v", err)
			}
		}()
		logger.Printf("frame feed listening on %s/frames", cfg.Sink.WebSocketAddr)
	} else if cfg.Metrics.Enabled && cfg.Metrics.Addr != "" {
		go func() {
			if err := http.ListenAndServe(cfg.Metrics.Addr, promhttp.HandlerFor(registry, promhttp.HandlerOpts{})); err != nil {
				logger.Printf("metrics server stopped: %v", err)
			}
		}()
		logger.Printf("metrics listening on %s/metrics", cfg.Metrics.Addr)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	switch cfg.Source.Kind {
	case "wav":
		runReplay(cfg, decoder, wsSink, logger)
	case "mic", "sdr":
		runCapture(cfg, decoder, wsSink, logger, sigChan)
	default:
		log.Fatalf("nfcbdecode: unknown source kind %q", cfg.Source.Kind)
	}
}

// captureSource is the subset of a live ring-buffer-backed front end that
// runCapture and mirrorToRecorder need, satisfied by both MicSource (a
// pre-demodulated audio-style front end) and SdrSource (a raw-IF front end
// demodulated in-process).
type captureSource interface {
	nfcb.SignalSource
	Start() error
	Close()
	Pending() int
	EnableAutoSquelch(decayRate, minRange float32)
}

func runReplay(cfg *config.Config, decoder *nfcb.Decoder, wsSink *sink.WebSocketSink, logger *log.Logger) {
	src, err := sdrsource.OpenWavSource(cfg.Source.WavFile, cfg.Source.RingSize, cfg.Source.Threshold, cfg.Source.AverageWindow)
	if err != nil {
		log.Fatalf("nfcbdecode: open replay file: %v", err)
	}
	defer src.Close()

	if err := decoder.Configure(src); err != nil {
		log.Fatalf("nfcbdecode: configure: %v", err)
	}

	const chunkSamples = 4096
	var frames []nfcb.NfcFrame
	for {
		n, err := src.Refill(chunkSamples)
		if n == 0 {
			break
		}

		frames = frames[:0]
		decoder.Decode(&frames)
		for _, f := range frames {
			emit(f, wsSink, logger)
		}

		if err != nil {
			break
		}
	}
	logger.Println("replay finished")
}

func runCapture(cfg *config.Config, decoder *nfcb.Decoder, wsSink *sink.WebSocketSink, logger *log.Logger, sigChan chan os.Signal) {
	var src captureSource
	var err error
	switch cfg.Source.Kind {
	case "sdr":
		src, err = sdrsource.OpenSdrSource(cfg.Source.SampleRate, cfg.Source.DeviceName,
			cfg.Source.TargetFreq, cfg.Source.FilterBandwidth, cfg.Source.TrackCarrier,
			cfg.Source.RingSize, cfg.Source.Threshold, cfg.Source.AverageWindow)
	default:
		src, err = sdrsource.OpenMicSource(cfg.Source.SampleRate, cfg.Source.DeviceName, cfg.Source.RingSize, cfg.Source.Threshold, cfg.Source.AverageWindow)
	}
	if err != nil {
		log.Fatalf("nfcbdecode: open capture device: %v", err)
	}
	defer src.Close()

	if cfg.Source.AutoSquelch.Enabled {
		src.EnableAutoSquelch(cfg.Source.AutoSquelch.DecayRate, cfg.Source.AutoSquelch.MinRange)
	}

	var recorder *sdrsource.WavSink
	if cfg.Sink.RecordWav != "" {
		recorder, err = sdrsource.NewWavSink(cfg.Sink.RecordWav, cfg.Source.SampleRate)
		if err != nil {
			log.Fatalf("nfcbdecode: record wav: %v", err)
		}
		defer recorder.Close()
	}

	if cfg.FrontEnd.Port != "" {
		fe := sdrsource.NewFrontEnd(cfg.FrontEnd.Port, cfg.FrontEnd.BaudRate)
		if err := fe.Open(); err != nil {
			logger.Printf("front end not available: %v", err)
		} else {
			defer fe.Close()
			if err := fe.SetGain(cfg.FrontEnd.GainDB); err != nil {
				logger.Printf("front end gain command failed: %v", err)
			}
		}
	}

	if err := decoder.Configure(src); err != nil {
		log.Fatalf("nfcbdecode: configure: %v", err)
	}
	if err := src.Start(); err != nil {
		log.Fatalf("nfcbdecode: start capture: %v", err)
	}

	done := make(chan struct{})
	go func() {
		var frames []nfcb.NfcFrame
		var lastClock uint64
		for {
			select {
			case <-done:
				return
			default:
			}
			frames = frames[:0]
			decoder.Decode(&frames)
			for _, f := range frames {
				emit(f, wsSink, logger)
			}
			if recorder != nil {
				lastClock = mirrorToRecorder(recorder, src, lastClock, logger)
			}
			if src.Pending() == 0 {
				time.Sleep(2 * time.Millisecond)
			}
		}
	}()

	logger.Println("capture started, press Ctrl-C to stop")
	<-sigChan
	close(done)
	logger.Println("shutting down")
}

func emit(f nfcb.NfcFrame, wsSink *sink.WebSocketSink, logger *log.Logger) {
	logger.Printf("frame type=%d phase=%d flags=%#x payload=% x", f.Type, f.Phase, f.Flags, f.Payload)
	if wsSink != nil {
		wsSink.Publish(f)
	}
}

// mirrorToRecorder writes every ring sample consumed since lastClock to
// recorder, and returns the new high-water mark. A clock delta larger than
// the ring itself means samples were dropped before this goroutine ran;
// that gap is simply not recoverable for the mirror.
func mirrorToRecorder(recorder *sdrsource.WavSink, src captureSource, lastClock uint64, logger *log.Logger) uint64 {
	clock := src.SignalClock()
	delta := clock - lastClock
	data := src.Data()
	if uint64(len(data)) == 0 {
		return clock
	}
	if delta > uint64(len(data)) {
		delta = uint64(len(data))
	}

	samples := make([]float32, delta)
	mask := uint64(len(data) - 1)
	for i := uint64(0); i < delta; i++ {
		samples[i] = data[(lastClock+1+i)&mask]
	}
	if err := recorder.Write(samples); err != nil {
		logger.Printf("record mirror write failed: %v", err)
	}
	return clock
}
