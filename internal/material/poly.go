package material

import "math"

// Poly is a polynomial in (T - Offset): Coeffs[0] + Coeffs[1]*x + ...
type Poly struct {
	Offset float64
	Coeffs []float64
}

func (p Poly) At(t float64) float64 {
	x := t - p.Offset
	v := 0.0
	for i := len(p.Coeffs) - 1; i >= 0; i-- {
		v = v*x + p.Coeffs[i]
	}
	return v
}

// linearHeat is cp = A + B*(T - Offset). Enthalpy is its integral from Offset,
// which keeps the enthalpy inversion closed-form.
type linearHeat struct {
	A, B   float64
	Offset float64
}

func (c linearHeat) cp(t float64) float64 {
	return c.A + c.B*(t-c.Offset)
}

func (c linearHeat) enthalpy(t float64) float64 {
	x := t - c.Offset
	return c.A*x + 0.5*c.B*x*x
}

func (c linearHeat) temperature(h float64) float64 {
	if c.B == 0 {
		return c.Offset + h/c.A
	}
	disc := c.A*c.A + 2*c.B*h
	if disc < 0 {
		return math.NaN()
	}
	return c.Offset + (-c.A+math.Sqrt(disc))/c.B
}
