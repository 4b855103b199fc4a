package thermal

import (
	"fmt"
	"math"

	"github.com/san-kum/thermloop/internal/dynamo"
	"github.com/san-kum/thermloop/internal/material"
)

// Cylinder is a pipe wall around a control volume. InnerDiameter equal to
// OuterDiameter means a bare surface with no conduction resistance.
type Cylinder struct {
	InnerDiameter float64
	OuterDiameter float64
	Length        float64
}

func (c Cylinder) InnerArea() float64 {
	return math.Pi * c.InnerDiameter * c.Length
}

// ControlVolume is a single lumped node. Temperature only changes in Advance.
type ControlVolume struct {
	Name        string
	Temperature float64 // K
	Pressure    float64 // Pa
	Volume      float64 // m^3
	Material    material.Material
	Geometry    *Cylinder

	heatRate    float64 // W, net into the volume this step
	throughflow float64 // m^3/s, largest advective flow through the volume this step
}

func NewControlVolume(name string, m material.Material, volume, temperature, pressure float64) *ControlVolume {
	return &ControlVolume{
		Name:        name,
		Temperature: temperature,
		Pressure:    pressure,
		Volume:      volume,
		Material:    m,
	}
}

func (cv *ControlVolume) isEntity() {}

func (cv *ControlVolume) Accumulate(rate float64) { cv.heatRate += rate }

func (cv *ControlVolume) AccumulateThroughflow(q float64) {
	q = math.Abs(q)
	if q > cv.throughflow {
		cv.throughflow = q
	}
}

func (cv *ControlVolume) ResetAccumulators() {
	cv.heatRate = 0
	cv.throughflow = 0
}

func (cv *ControlVolume) HeatRate() float64    { return cv.heatRate }
func (cv *ControlVolume) Throughflow() float64 { return cv.throughflow }

func (cv *ControlVolume) Density() (float64, error) {
	return cv.Material.Density(cv.Temperature, cv.Pressure)
}

func (cv *ControlVolume) Mass() (float64, error) {
	rho, err := cv.Density()
	if err != nil {
		return 0, err
	}
	return rho * cv.Volume, nil
}

func (cv *ControlVolume) Enthalpy() (float64, error) {
	return cv.Material.Enthalpy(cv.Temperature, cv.Pressure)
}

// HeatingRate is dT/dt implied by the accumulated heat rate.
func (cv *ControlVolume) HeatingRate() (float64, error) {
	m, err := cv.Mass()
	if err != nil {
		return 0, err
	}
	cp, err := cv.Material.SpecificHeat(cv.Temperature, cv.Pressure)
	if err != nil {
		return 0, err
	}
	return cv.heatRate / (m * cp), nil
}

// Advance applies the accumulated heat rate over dt using properties at the
// current temperature. Solids integrate temperature directly; fluids
// integrate specific enthalpy and invert it.
func (cv *ControlVolume) Advance(dt float64) error {
	if dt < 0 || math.IsNaN(dt) {
		return fmt.Errorf("%s: advance by %v: %w", cv.Name, dt, dynamo.ErrParameterBounds)
	}
	if cv.heatRate == 0 {
		return nil
	}

	m, err := cv.Mass()
	if err != nil {
		return err
	}

	var next float64
	switch cv.Material.Phase() {
	case material.Solid:
		cp, err := cv.Material.SpecificHeat(cv.Temperature, cv.Pressure)
		if err != nil {
			return err
		}
		next = cv.Temperature + cv.heatRate*dt/(m*cp)
		if _, err := cv.Material.SpecificHeat(next, cv.Pressure); err != nil {
			return err
		}
	default:
		h, err := cv.Enthalpy()
		if err != nil {
			return err
		}
		next, err = cv.Material.TemperatureFromEnthalpy(h+cv.heatRate*dt/m, cv.Pressure)
		if err != nil {
			return err
		}
	}

	if math.IsNaN(next) || math.IsInf(next, 0) {
		return fmt.Errorf("%s: %w", cv.Name, dynamo.ErrInvalidState)
	}
	cv.Temperature = next
	return nil
}

// MaxStableTimestep is the step that would change the temperature by
// maxTemperatureStep at the current heating rate. +Inf when nothing heats it.
func (cv *ControlVolume) MaxStableTimestep(maxTemperatureStep float64) (float64, error) {
	if cv.heatRate == 0 {
		return math.Inf(1), nil
	}
	rate, err := cv.HeatingRate()
	if err != nil {
		return 0, err
	}
	if rate == 0 {
		return math.Inf(1), nil
	}
	return maxTemperatureStep / math.Abs(rate), nil
}

// CourantLimit is the step at which the recorded throughflow would displace
// maxCourant volumes of fluid.
func (cv *ControlVolume) CourantLimit(maxCourant float64) float64 {
	if cv.throughflow == 0 {
		return math.Inf(1)
	}
	return maxCourant * cv.Volume / cv.throughflow
}

func (cv *ControlVolume) Clone() *ControlVolume {
	c := *cv
	if cv.Geometry != nil {
		g := *cv.Geometry
		c.Geometry = &g
	}
	return &c
}
