// Package config centralizes every tunable parameter of an nfcbdecode
// deployment, loaded from YAML so a front end can be retuned without a
// rebuild.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds everything a running decoder instance needs: where its
// samples come from, how aggressively it classifies modulation, and where
// its frames and diagnostics go.
type Config struct {
	// Source selects and configures the SignalSource.
	Source struct {
		Kind          string  `yaml:"kind"`          // "wav", "mic", or "sdr"
		WavFile       string  `yaml:"wavFile"`       // used when kind == "wav"
		DeviceName    string  `yaml:"deviceName"`    // substring match, used when kind == "mic" or "sdr"
		SampleRate    uint32  `yaml:"sampleRate"`    // Hz; ignored for "wav", read from the file header
		RingSize      int     `yaml:"ringSize"`      // power of two, samples
		Threshold     float32 `yaml:"threshold"`     // PowerLevelThreshold
		AverageWindow int     `yaml:"averageWindow"` // samples, power-average IIR window

		// SDR-only: raw-IF downconversion parameters for kind == "sdr".
		TargetFreq      float64 `yaml:"targetFreq"`      // Hz, expected carrier/IF offset
		FilterBandwidth float64 `yaml:"filterBandwidth"` // Hz, image-reject low-pass cutoff
		TrackCarrier    bool    `yaml:"trackCarrier"`    // enable slow LO drift tracking

		// AutoSquelch replaces the fixed Threshold above with one recomputed
		// every sample, for front ends whose absolute gain isn't known ahead
		// of time (an uncalibrated dongle, a mic with automatic input gain).
		AutoSquelch struct {
			Enabled   bool    `yaml:"enabled"`
			DecayRate float32 `yaml:"decayRate"`
			MinRange  float32 `yaml:"minRange"`
		} `yaml:"autoSquelch"`
	} `yaml:"source"`

	// Decoder carries the two modulation-depth thresholds the core state
	// machine uses to tell carrier-only signal from a genuine ASK dip.
	Decoder struct {
		MinModulationThreshold float64 `yaml:"minModulationThreshold"`
		MaxModulationThreshold float64 `yaml:"maxModulationThreshold"`
	} `yaml:"decoder"`

	// FrontEnd configures the optional serial gain/threshold control
	// channel to an external SDR dongle. Port empty disables it.
	FrontEnd struct {
		Port     string `yaml:"port"`
		BaudRate int    `yaml:"baudRate"`
		GainDB   int    `yaml:"gainDB"`
	} `yaml:"frontEnd"`

	// Sink configures where decoded frames are published.
	Sink struct {
		WebSocketAddr string `yaml:"webSocketAddr"` // e.g. ":8080", empty disables
		RecordWav     string `yaml:"recordWav"`      // optional raw-capture mirror, empty disables
	} `yaml:"sink"`

	// Metrics configures the optional Prometheus exporter.
	Metrics struct {
		Enabled bool   `yaml:"enabled"`
		Addr    string `yaml:"addr"`
	} `yaml:"metrics"`

	// Debug enables the per-sample CSV trace used to tune new hardware.
	Debug struct {
		CsvFile string `yaml:"csvFile"` // empty disables
	} `yaml:"debug"`
}

// DefaultConfig returns a configuration suitable for replaying a captured
// wav file with no external hardware or network sinks attached.
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Source.Kind = "wav"
	cfg.Source.SampleRate = 48000
	cfg.Source.RingSize = 1 << 16
	cfg.Source.Threshold = 0.01
	cfg.Source.AverageWindow = 256
	cfg.Source.TargetFreq = 0
	cfg.Source.FilterBandwidth = 848000 // covers the fastest (848k) NFC-B rate's sidebands
	cfg.Source.AutoSquelch.DecayRate = 0.9995
	cfg.Source.AutoSquelch.MinRange = 0.2

	cfg.Decoder.MinModulationThreshold = 0.05
	cfg.Decoder.MaxModulationThreshold = 0.40

	cfg.FrontEnd.BaudRate = 115200

	cfg.Metrics.Addr = ":9090"

	return cfg
}

// Load reads and parses a YAML config file, starting from DefaultConfig
// so an omitted field keeps its default rather than zeroing out.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}
