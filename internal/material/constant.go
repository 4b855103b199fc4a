package material

import "math"

// Constant is a material with temperature-independent properties.
// Enthalpy is cp*(T - 273.15).
type Constant struct {
	Label string
	State Phase
	Valid Range
	Rho   float64
	Cp    float64
	K     float64
	Mu    float64
}

func (c *Constant) Name() string { return c.Label }
func (c *Constant) Phase() Phase { return c.State }

func (c *Constant) Density(t, p float64) (float64, error) {
	return c.Rho, c.Valid.check(c.Label, "density", t, p)
}

func (c *Constant) SpecificHeat(t, p float64) (float64, error) {
	return c.Cp, c.Valid.check(c.Label, "specific heat", t, p)
}

func (c *Constant) Conductivity(t, p float64) (float64, error) {
	return c.K, c.Valid.check(c.Label, "conductivity", t, p)
}

func (c *Constant) Viscosity(t, p float64) (float64, error) {
	return c.Mu, c.Valid.check(c.Label, "viscosity", t, p)
}

func (c *Constant) Enthalpy(t, p float64) (float64, error) {
	return c.Cp * (t - celsius), c.Valid.check(c.Label, "enthalpy", t, p)
}

func (c *Constant) TemperatureFromEnthalpy(h, p float64) (float64, error) {
	t := celsius + h/c.Cp
	if math.IsNaN(t) || math.IsInf(t, 0) {
		t = c.Valid.TMin - 1
	}
	return t, c.Valid.check(c.Label, "temperature from enthalpy", t, p)
}
