package thermal

import "github.com/san-kum/thermloop/internal/material"

// Entity is implemented by *ControlVolume, *FluidSegment and
// *BoundaryCondition only.
type Entity interface {
	isEntity()
}

type BoundaryKind int

const (
	FixedTemperature BoundaryKind = iota
	FixedHeatRate
)

func (k BoundaryKind) String() string {
	if k == FixedHeatRate {
		return "fixed heat rate"
	}
	return "fixed temperature"
}

// BoundaryCondition takes part in links but is never advanced.
// A fixed-temperature boundary with a Fluid can supply or absorb advected fluid.
type BoundaryCondition struct {
	Name        string
	Kind        BoundaryKind
	Temperature float64
	HeatRate    float64
	Pressure    float64
	Fluid       material.Material
}

func NewFixedTemperature(name string, temperature float64, fluid material.Material) *BoundaryCondition {
	return &BoundaryCondition{
		Name:        name,
		Kind:        FixedTemperature,
		Temperature: temperature,
		Pressure:    101325,
		Fluid:       fluid,
	}
}

func NewFixedHeatRate(name string, rate float64) *BoundaryCondition {
	return &BoundaryCondition{Name: name, Kind: FixedHeatRate, HeatRate: rate}
}

func (bc *BoundaryCondition) isEntity() {}

// Interaction is implemented by Advection, ConductionConvection and
// HeatAddition only.
type Interaction interface {
	Kind() string
	isInteraction()
}

// Advection carries upwind enthalpy from a's outlet into b's inlet.
// A negative MassFlow runs from b to a. Zero densities are looked up from
// the entities.
type Advection struct {
	MassFlow float64 // kg/s
	DensityA float64 // kg/m^3
	DensityB float64 // kg/m^3
}

// ConductionConvection transfers heat through a convective film of HTC at the
// inner surface of a cylinder, plus conduction through its wall when the
// cylinder has thickness. WallConductivity overrides the solid side's material.
type ConductionConvection struct {
	HTC              float64 // W/(m^2 K)
	WallConductivity float64 // W/(m K)
}

// HeatAddition adds Power to a. When b is a fixed-heat-rate boundary its
// HeatRate is used instead; when b is not a boundary the same power leaves b.
type HeatAddition struct {
	Power float64 // W
}

func (Advection) Kind() string            { return "advection" }
func (ConductionConvection) Kind() string { return "conduction-convection" }
func (HeatAddition) Kind() string         { return "heat addition" }

func (Advection) isInteraction()            {}
func (ConductionConvection) isInteraction() {}
func (HeatAddition) isInteraction()         {}

// EntityName returns a printable name for any entity.
func EntityName(e Entity) string {
	switch e := e.(type) {
	case *ControlVolume:
		return e.Name
	case *FluidSegment:
		return e.Name
	case *BoundaryCondition:
		return e.Name
	case nil:
		return "<nil>"
	default:
		return "<unknown>"
	}
}
