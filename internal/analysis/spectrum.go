package analysis

import (
	"fmt"
	"math"
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"

	"github.com/san-kum/thermloop/internal/dynamo"
)

// minSamples is the shortest signal a spectrum is computed for.
const minSamples = 4

// Spectrum is the one-sided amplitude spectrum of a uniformly sampled
// signal. Amplitudes are in the signal's units.
type Spectrum struct {
	Frequencies []float64 // Hz
	Amplitudes  []float64
}

// PowerSpectrum removes the mean of samples and transforms them. interval is
// the sample spacing in seconds.
func PowerSpectrum(samples []float64, interval float64) (Spectrum, error) {
	n := len(samples)
	if n < minSamples {
		return Spectrum{}, fmt.Errorf("spectrum of %d samples: %w", n, dynamo.ErrParameterBounds)
	}
	if !(interval > 0) {
		return Spectrum{}, fmt.Errorf("sample interval %v: %w", interval, dynamo.ErrParameterBounds)
	}

	mean := 0.0
	for _, v := range samples {
		mean += v
	}
	mean /= float64(n)
	centred := make([]float64, n)
	for i, v := range samples {
		centred[i] = v - mean
	}

	coeffs := fft.FFTReal(centred)
	bins := n/2 + 1
	s := Spectrum{
		Frequencies: make([]float64, bins),
		Amplitudes:  make([]float64, bins),
	}
	for i := 0; i < bins; i++ {
		s.Frequencies[i] = float64(i) / (float64(n) * interval)
		amp := cmplx.Abs(coeffs[i]) / float64(n)
		if i != 0 && !(n%2 == 0 && i == n/2) {
			amp *= 2
		}
		s.Amplitudes[i] = amp
	}
	return s, nil
}

// Dominant returns the strongest non-zero frequency and its amplitude.
func (s Spectrum) Dominant() (freq, amp float64) {
	for i := 1; i < len(s.Amplitudes); i++ {
		if s.Amplitudes[i] > amp {
			freq, amp = s.Frequencies[i], s.Amplitudes[i]
		}
	}
	return freq, amp
}

// Resample interpolates values, taken at increasing times, onto a uniform
// grid. A zero interval uses the mean spacing of times.
func Resample(times, values []float64, interval float64) ([]float64, float64, error) {
	if len(times) != len(values) {
		return nil, 0, fmt.Errorf("%d times for %d values: %w", len(times), len(values), dynamo.ErrParameterBounds)
	}
	if len(times) < 2 {
		return append([]float64(nil), values...), interval, nil
	}
	span := times[len(times)-1] - times[0]
	if !(span > 0) {
		return nil, 0, fmt.Errorf("times do not increase: %w", dynamo.ErrParameterBounds)
	}
	if interval <= 0 {
		interval = span / float64(len(times)-1)
	}

	n := int(math.Floor(span/interval+1e-9)) + 1
	out := make([]float64, n)
	j := 0
	for i := range out {
		t := times[0] + float64(i)*interval
		for j < len(times)-2 && times[j+1] < t {
			j++
		}
		t0, t1 := times[j], times[j+1]
		if t1 <= t0 {
			out[i] = values[j+1]
			continue
		}
		frac := math.Max(0, math.Min(1, (t-t0)/(t1-t0)))
		out[i] = values[j] + frac*(values[j+1]-values[j])
	}
	return out, interval, nil
}
