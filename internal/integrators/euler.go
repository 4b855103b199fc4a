package integrators

import "github.com/san-kum/thermloop/internal/thermal"

// Advancer applies its accumulated rates over a step.
// *thermal.ControlVolume and *thermal.FluidSegment implement it.
type Advancer interface {
	Advance(dt float64) error
}

// Euler advances every item once with properties at the start of the step.
// Links must have been applied for the step before Step is called.
type Euler struct{}

func NewEuler() *Euler {
	return &Euler{}
}

func (e *Euler) Step(items []Advancer, dt float64) error {
	for _, it := range items {
		if err := it.Advance(dt); err != nil {
			return err
		}
	}
	return nil
}

// Volumes collects the control volumes of segments followed by standalone volumes.
func Volumes(segments []*thermal.FluidSegment, extra ...*thermal.ControlVolume) []*thermal.ControlVolume {
	var out []*thermal.ControlVolume
	for _, s := range segments {
		out = append(out, s.Nodes...)
	}
	return append(out, extra...)
}
