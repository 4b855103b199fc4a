package flow

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/san-kum/thermloop/internal/thermal"
)

// Element is one series piece of a branch.
type Element interface {
	// PressureChange is the pressure needed to push massFlow through the
	// element. It must not modify the element.
	PressureChange(massFlow float64) (float64, error)
}

// Quadratic is a lumped k*m*|m| loss with no volume, for valves and
// flowmeters that are not worth discretizing.
type Quadratic struct {
	Name string
	K    float64 // Pa/(kg/s)^2
}

func (q Quadratic) PressureChange(massFlow float64) (float64, error) {
	return q.K * massFlow * math.Abs(massFlow), nil
}

// Branch is a series path of elements between two network nodes.
// Blocked and Driving are set by the caller every iteration.
type Branch struct {
	Name     string
	Elements []Element
	Diode    bool
	Blocked  bool
	Driving  float64 // Pa, pump head acting in the positive flow direction

	massFlow float64
}

func NewBranch(name string, elements ...Element) *Branch {
	return &Branch{Name: name, Elements: elements}
}

// PressureChange sums the element characteristics at massFlow.
func (b *Branch) PressureChange(massFlow float64) (float64, error) {
	parts := make([]float64, len(b.Elements))
	for i, e := range b.Elements {
		dp, err := e.PressureChange(massFlow)
		if err != nil {
			return 0, err
		}
		parts[i] = dp
	}
	return floats.Sum(parts), nil
}

// Segments returns the discretized elements in flow order.
func (b *Branch) Segments() []*thermal.FluidSegment {
	var out []*thermal.FluidSegment
	for _, e := range b.Elements {
		if s, ok := e.(*thermal.FluidSegment); ok {
			out = append(out, s)
		}
	}
	return out
}

func (b *Branch) MassFlow() float64 { return b.massFlow }

// SetMassFlow records the solved flow on the branch and all of its segments.
func (b *Branch) SetMassFlow(massFlow float64) {
	b.massFlow = massFlow
	for _, s := range b.Segments() {
		s.SetMassFlow(massFlow)
	}
}

// Clone deep-copies segments. Other elements are shared; they must be
// immutable.
func (b *Branch) Clone() *Branch {
	c := *b
	c.Elements = make([]Element, len(b.Elements))
	for i, e := range b.Elements {
		if s, ok := e.(*thermal.FluidSegment); ok {
			c.Elements[i] = s.Clone()
			continue
		}
		c.Elements[i] = e
	}
	return &c
}

// HydrostaticHead is the elevation part of the branch characteristic, the sum
// of rho*g*dz over its segments. Comparing legs of a loop gives the buoyancy
// driving natural circulation.
func HydrostaticHead(b *Branch) (float64, error) {
	segs := b.Segments()
	heads := make([]float64, len(segs))
	for i, s := range segs {
		h, err := s.ElevationHead()
		if err != nil {
			return 0, err
		}
		heads[i] = h
	}
	return floats.Sum(heads), nil
}
