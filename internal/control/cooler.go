package control

import (
	"math"

	"github.com/san-kum/thermloop/internal/dynamo"
)

// Cooler maps a controller output u onto a heat-transfer coefficient
// ReferenceHTC*(1+u), never below MinHTC.
type Cooler struct {
	Name         string
	ReferenceHTC float64 // W/(m^2 K)
	MinHTC       float64 // W/(m^2 K)
	Controller   Controller

	htc    float64
	output float64
}

func NewCooler(name string, referenceHTC, minHTC float64, c Controller) (*Cooler, error) {
	switch {
	case !(referenceHTC > 0):
		return nil, &dynamo.ControllerError{Controller: name, Reason: "reference coefficient must be positive"}
	case !(minHTC > 0):
		return nil, &dynamo.ControllerError{Controller: name, Reason: "minimum coefficient must be positive"}
	case c == nil:
		return nil, &dynamo.ControllerError{Controller: name, Reason: "missing controller"}
	}
	return &Cooler{Name: name, ReferenceHTC: referenceHTC, MinHTC: minHTC, Controller: c, htc: referenceHTC}, nil
}

// Command returns the coefficient that drives measured toward setpoint.
// A measurement above the setpoint raises the coefficient.
func (c *Cooler) Command(setpoint, measured, t float64) (float64, error) {
	u, err := c.Controller.SetInputAndCompute(measured-setpoint, t)
	if err != nil {
		return 0, err
	}
	c.output = u
	c.htc = math.Max(c.MinHTC, c.ReferenceHTC*(1+u))
	return c.htc, nil
}

// HTC is the last commanded coefficient, ReferenceHTC before the first command.
func (c *Cooler) HTC() float64    { return c.htc }
func (c *Cooler) Output() float64 { return c.output }
