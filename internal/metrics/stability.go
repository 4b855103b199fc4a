package metrics

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/san-kum/thermloop/internal/sim"
)

// PeakTemperature is the hottest node seen during the run, K.
type PeakTemperature struct {
	name string
	peak float64
}

func NewPeakTemperature() *PeakTemperature {
	return &PeakTemperature{name: "peak_temperature"}
}

func (p *PeakTemperature) Name() string { return p.name }

func (p *PeakTemperature) Observe(t sim.Telemetry) {
	for _, temps := range t.Temperatures {
		if len(temps) > 0 {
			p.peak = math.Max(p.peak, floats.Max(temps))
		}
	}
	if len(t.VolumeTemperatures) > 0 {
		p.peak = math.Max(p.peak, floats.Max(values(t.VolumeTemperatures)))
	}
}

func (p *PeakTemperature) Value() float64 { return p.peak }

func (p *PeakTemperature) Reset() { p.peak = 0 }

// Stability is the fraction of iterations in which every node stayed at or
// below threshold.
type Stability struct {
	name       string
	threshold  float64
	violations int
	samples    int
}

func NewStability(threshold float64) *Stability {
	return &Stability{
		name:      "stability",
		threshold: threshold,
	}
}

func (s *Stability) Name() string {
	return s.name
}

func (s *Stability) Observe(t sim.Telemetry) {
	s.samples++
	if t.MaxTemperature() > s.threshold {
		s.violations++
	}
}

func (s *Stability) Value() float64 {
	if s.samples == 0 {
		return 1.0
	}
	return 1.0 - float64(s.violations)/float64(s.samples)
}

func (s *Stability) Reset() {
	s.violations = 0
	s.samples = 0
}

// Standard is the metric set every run reports.
func Standard(limit float64) []sim.Metric {
	return []sim.Metric{
		NewPeakTemperature(),
		NewHeaterEnergy(),
		NewControlEffort(),
		NewStability(limit),
	}
}
