package thermal

import (
	"fmt"
	"math"

	"github.com/san-kum/thermloop/internal/material"
)

const Gravity = 9.81

// SegmentSpec is the static description of a pipe or duct.
type SegmentSpec struct {
	Name               string
	Length             float64 // m
	HydraulicDiameter  float64 // m
	FlowArea           float64 // m^2, derived from the diameter when zero
	Incline            float64 // degrees above horizontal along the front-to-back direction
	Roughness          float64 // m
	FormLoss           float64 // K, spread evenly over the nodes
	AmbientHTC         float64 // W/(m^2 K)
	WallThickness      float64 // m
	WallConductivity   float64 // W/(m K), needed for lateral links through a wall
	Nodes              int
	Fluid              material.Material
	InitialTemperature float64 // K
	Pressure           float64 // Pa
	Friction           FrictionFactor
}

// FluidSegment is a 1-D chain of control volumes, front to back.
type FluidSegment struct {
	Name              string
	Length            float64
	HydraulicDiameter float64
	FlowArea          float64
	Incline           float64
	Roughness         float64
	FormLoss          float64
	AmbientHTC        float64
	WallConductivity  float64
	Friction          FrictionFactor
	Nodes             []*ControlVolume

	massFlow float64
}

func NewFluidSegment(spec SegmentSpec) (*FluidSegment, error) {
	switch {
	case spec.Length <= 0:
		return nil, fmt.Errorf("segment %s: length must be positive", spec.Name)
	case spec.HydraulicDiameter <= 0:
		return nil, fmt.Errorf("segment %s: hydraulic diameter must be positive", spec.Name)
	case spec.Nodes < 1:
		return nil, fmt.Errorf("segment %s: needs at least one node", spec.Name)
	case spec.Fluid == nil || spec.Fluid.Phase() != material.Fluid:
		return nil, fmt.Errorf("segment %s: needs a fluid material", spec.Name)
	case spec.Roughness < 0 || spec.FormLoss < 0 || spec.WallThickness < 0 || spec.AmbientHTC < 0 || spec.WallConductivity < 0:
		return nil, fmt.Errorf("segment %s: negative roughness, form loss, wall or ambient coefficient", spec.Name)
	}

	area := spec.FlowArea
	if area <= 0 {
		area = math.Pi * spec.HydraulicDiameter * spec.HydraulicDiameter / 4
	}
	pressure := spec.Pressure
	if pressure <= 0 {
		pressure = 101325
	}
	friction := spec.Friction
	if friction == nil {
		friction = Churchill
	}

	s := &FluidSegment{
		Name:              spec.Name,
		Length:            spec.Length,
		HydraulicDiameter: spec.HydraulicDiameter,
		FlowArea:          area,
		Incline:           spec.Incline,
		Roughness:         spec.Roughness,
		FormLoss:          spec.FormLoss,
		AmbientHTC:        spec.AmbientHTC,
		WallConductivity:  spec.WallConductivity,
		Friction:          friction,
		Nodes:             make([]*ControlVolume, spec.Nodes),
	}

	dl := spec.Length / float64(spec.Nodes)
	for i := range s.Nodes {
		cv := NewControlVolume(fmt.Sprintf("%s[%d]", spec.Name, i), spec.Fluid, area*dl, spec.InitialTemperature, pressure)
		cv.Geometry = &Cylinder{
			InnerDiameter: spec.HydraulicDiameter,
			OuterDiameter: spec.HydraulicDiameter + 2*spec.WallThickness,
			Length:        dl,
		}
		s.Nodes[i] = cv
	}

	return s, nil
}

func (s *FluidSegment) isEntity() {}

func (s *FluidSegment) Front() *ControlVolume {
	if len(s.Nodes) == 0 {
		return nil
	}
	return s.Nodes[0]
}

func (s *FluidSegment) Back() *ControlVolume {
	if len(s.Nodes) == 0 {
		return nil
	}
	return s.Nodes[len(s.Nodes)-1]
}

func (s *FluidSegment) MassFlow() float64        { return s.massFlow }
func (s *FluidSegment) SetMassFlow(flow float64) { s.massFlow = flow }

// Rise is the elevation gained from front to back.
func (s *FluidSegment) Rise() float64 {
	return s.Length * math.Sin(s.Incline*math.Pi/180)
}

// PressureChange is the pressure needed to push massFlow through the
// segment: friction and form losses in the flow direction plus the
// hydrostatic head of the fluid column. It does not modify the segment.
func (s *FluidSegment) PressureChange(massFlow float64) (float64, error) {
	n := float64(len(s.Nodes))
	dl := s.Length / n
	sinTheta := math.Sin(s.Incline * math.Pi / 180)
	relRough := s.Roughness / s.HydraulicDiameter

	total := 0.0
	for _, cv := range s.Nodes {
		rho, err := cv.Density()
		if err != nil {
			return 0, err
		}
		total += rho * Gravity * dl * sinTheta

		if massFlow == 0 {
			continue
		}
		mu, err := viscosity(cv)
		if err != nil {
			return 0, err
		}
		re := math.Abs(massFlow) * s.HydraulicDiameter / (s.FlowArea * mu)
		f := s.Friction(re, relRough)
		dynamic := massFlow * math.Abs(massFlow) / (2 * rho * s.FlowArea * s.FlowArea)
		total += (f*dl/s.HydraulicDiameter + s.FormLoss/n) * dynamic
	}

	return total, nil
}

func viscosity(cv *ControlVolume) (float64, error) {
	v, ok := cv.Material.(material.Viscous)
	if !ok {
		return 0, fmt.Errorf("%s: material %s has no viscosity", cv.Name, cv.Material.Name())
	}
	return v.Viscosity(cv.Temperature, cv.Pressure)
}

// ElevationHead is the hydrostatic part of PressureChange.
func (s *FluidSegment) ElevationHead() (float64, error) {
	return s.PressureChange(0)
}

// LinkInternal links each interior node pair by advection at the segment flow.
func (s *FluidSegment) LinkInternal() error {
	for i := 0; i+1 < len(s.Nodes); i++ {
		if err := Link(s.Nodes[i], s.Nodes[i+1], Advection{MassFlow: s.massFlow}); err != nil {
			return err
		}
	}
	return nil
}

// LinkFront links the outlet of other to the inlet of this segment.
func (s *FluidSegment) LinkFront(other Entity, it Interaction) error {
	return Link(other, s, it)
}

func (s *FluidSegment) ResetAccumulators() {
	for _, cv := range s.Nodes {
		cv.ResetAccumulators()
	}
}

// Advance advances each node in flow order.
func (s *FluidSegment) Advance(dt float64) error {
	n := len(s.Nodes)
	for i := 0; i < n; i++ {
		idx := i
		if s.massFlow < 0 {
			idx = n - 1 - i
		}
		if err := s.Nodes[idx].Advance(dt); err != nil {
			return fmt.Errorf("segment %s: %w", s.Name, err)
		}
	}
	return nil
}

// Outlet is the node fluid leaves through at the current flow direction.
func (s *FluidSegment) Outlet() *ControlVolume {
	if s.massFlow < 0 {
		return s.Front()
	}
	return s.Back()
}

func (s *FluidSegment) MeanTemperature() float64 {
	if len(s.Nodes) == 0 {
		return 0
	}
	sum := 0.0
	for _, cv := range s.Nodes {
		sum += cv.Temperature
	}
	return sum / float64(len(s.Nodes))
}

func (s *FluidSegment) Temperatures() []float64 {
	out := make([]float64, len(s.Nodes))
	for i, cv := range s.Nodes {
		out[i] = cv.Temperature
	}
	return out
}

// Clone deep-copies the segment and its nodes.
func (s *FluidSegment) Clone() *FluidSegment {
	c := *s
	c.Nodes = make([]*ControlVolume, len(s.Nodes))
	for i, cv := range s.Nodes {
		c.Nodes[i] = cv.Clone()
	}
	return &c
}
