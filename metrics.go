package nfcb

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder is the metrics collaborator the decoder reports to. It is
// always non-nil (Decoder defaults to noopRecorder) so the hot path never
// needs a nil check.
type Recorder interface {
	SofConfirmed()
	FrameEmitted(flags FrameFlags)
}

type noopRecorder struct{}

func (noopRecorder) SofConfirmed() {}
func (noopRecorder) FrameEmitted(FrameFlags) {}

// PrometheusRecorder reports decoder activity to a prometheus registry:
// SOF locks, frames by CRC/Truncated outcome. Construct with
// NewPrometheusRecorder and attach via Decoder.SetMetrics.
type PrometheusRecorder struct {
	sofConfirmedTotal prometheus.Counter
	framesTotal       *prometheus.CounterVec
}

// NewPrometheusRecorder registers its collectors against reg and returns a
// Recorder ready to attach to a Decoder. Pass prometheus.DefaultRegisterer
// to use the global registry.
func NewPrometheusRecorder(reg prometheus.Registerer) *PrometheusRecorder {
	factory := promauto.With(reg)
	return &PrometheusRecorder{
		sofConfirmedTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "nfcb_sof_confirmed_total",
			Help: "Total number of confirmed NFC-B start-of-frame locks.",
		}),
		framesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "nfcb_frames_total",
			Help: "Total number of emitted NFC-B frames, by outcome.",
		}, []string{"outcome"}),
	}
}

func (r *PrometheusRecorder) SofConfirmed() {
	r.sofConfirmedTotal.Inc()
}

func (r *PrometheusRecorder) FrameEmitted(flags FrameFlags) {
	outcome := "ok"
	switch {
	case flags&FlagCrcError != 0 && flags&FlagTruncated != 0:
		outcome = "crc_error_truncated"
	case flags&FlagCrcError != 0:
		outcome = "crc_error"
	case flags&FlagTruncated != 0:
		outcome = "truncated"
	}
	r.framesTotal.WithLabelValues(outcome).Inc()
}
