package nfcb

// BitrateParams holds the timing table derived once at Configure time for a
// single ISO 14443-3 bit rate. Only Rate106k is ever selected by the SOF
// detector (see modulation.go), but all four rates are tabulated — see
// SPEC_FULL.md §4 "Per-bitrate table sized for all four rates".
type BitrateParams struct {
	rate RateType

	// period1 is one full symbol period in samples; period2/4/8 are a half,
	// a quarter and an eighth of a symbol, each rounded to the nearest
	// integer sample.
	period1 int
	period2 int
	period4 int
	period8 int

	// symbolDelayDetect is the cumulative pipeline delay contributed by
	// all slower (lower-index) rates, in samples: rate 0 starts at zero,
	// each subsequent rate adds the previous rate's period1.
	symbolDelayDetect int

	// Ring buffer index offsets, added to SignalClock() mod len(buffer) to
	// find the sample position each accumulator reads from this tick.
	// offsetSignal is "N - delay" (current sample), offsetFilter is
	// "N - delay - period4" (tail of the slow integrator), offsetDetect is
	// "N - delay - period8" (tail of the fast integrator).
	//
	// offsetSymbol ("N - delay - period1") is carried for parity with the
	// original per-rate table but has no reader in the ASK poll-frame
	// path; left unused deliberately, same as ModulationStatus.phaseIntegrate.
	offsetSignal int
	offsetSymbol int
	offsetFilter int
	offsetDetect int

	// weightW0/weightW1 are exponential-average weights derived from
	// period1. Reserved for BPSK listen-frame demodulation; unused by the
	// ASK poll path in this revision.
	weightW0 float64
	weightW1 float64

	symbolsPerSecond float64
}

// divisorForRate returns the 128 >> r divisor used to derive period1 from
// sampleTimeUnit, per ISO 14443-3's halving of symbol length at each faster
// rate.
func divisorForRate(r RateType) int {
	return 128 >> uint(r)
}

// computeBitrateParams builds the table for all four rates given the
// signal source's sampleTimeUnit (sampleRate / NfcFC) and the ring buffer
// length N.
func computeBitrateParams(sampleTimeUnit float32, bufferLen int) [rateCount]BitrateParams {
	var table [rateCount]BitrateParams
	cumulativeDelay := 0

	for r := RateType(0); r < rateCount; r++ {
		period1 := int(float64(sampleTimeUnit)*float64(divisorForRate(r)) + 0.5)
		if period1 < 1 {
			period1 = 1
		}

		p := BitrateParams{
			rate:              r,
			period1:           period1,
			period2:           int(float64(sampleTimeUnit)*float64(divisorForRate(r))/2 + 0.5),
			period4:           int(float64(sampleTimeUnit)*float64(divisorForRate(r))/4 + 0.5),
			period8:           int(float64(sampleTimeUnit)*float64(divisorForRate(r))/8 + 0.5),
			symbolDelayDetect: cumulativeDelay,
			weightW0:          1.0 / float64(period1),
		}
		p.weightW1 = 1.0 - p.weightW0
		p.symbolsPerSecond = float64(NfcFC) / float64(divisorForRate(r))

		p.offsetSignal = bufferLen - p.symbolDelayDetect
		p.offsetSymbol = bufferLen - p.symbolDelayDetect - p.period1
		p.offsetFilter = bufferLen - p.symbolDelayDetect - p.period4
		p.offsetDetect = bufferLen - p.symbolDelayDetect - p.period8

		table[r] = p
		cumulativeDelay += period1
	}

	return table
}

// maxSymbolDelay returns the largest symbolDelayDetect across the table,
// used to validate the Signal Window invariant N > maxDelay.
func maxSymbolDelay(table [rateCount]BitrateParams) int {
	max := 0
	for _, p := range table {
		if p.symbolDelayDetect > max {
			max = p.symbolDelayDetect
		}
	}
	return max
}
