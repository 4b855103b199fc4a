package material

import (
	"math"
)

const celsius = 273.15

// Liquid is an incompressible liquid with polynomial property correlations.
type Liquid struct {
	name         string
	valid        Range
	density      Poly
	heat         linearHeat
	conductivity Poly
	viscosity    func(t float64) float64
}

func (l *Liquid) Name() string { return l.name }
func (l *Liquid) Phase() Phase { return Fluid }

func (l *Liquid) Density(t, p float64) (float64, error) {
	if err := l.valid.check(l.name, "density", t, p); err != nil {
		return 0, err
	}
	return l.density.At(t), nil
}

func (l *Liquid) SpecificHeat(t, p float64) (float64, error) {
	if err := l.valid.check(l.name, "specific heat", t, p); err != nil {
		return 0, err
	}
	return l.heat.cp(t), nil
}

func (l *Liquid) Conductivity(t, p float64) (float64, error) {
	if err := l.valid.check(l.name, "conductivity", t, p); err != nil {
		return 0, err
	}
	return l.conductivity.At(t), nil
}

func (l *Liquid) Viscosity(t, p float64) (float64, error) {
	if err := l.valid.check(l.name, "viscosity", t, p); err != nil {
		return 0, err
	}
	return l.viscosity(t), nil
}

func (l *Liquid) Enthalpy(t, p float64) (float64, error) {
	if err := l.valid.check(l.name, "enthalpy", t, p); err != nil {
		return 0, err
	}
	return l.heat.enthalpy(t), nil
}

func (l *Liquid) TemperatureFromEnthalpy(h, p float64) (float64, error) {
	t := l.heat.temperature(h)
	if math.IsNaN(t) {
		t = l.valid.TMin - 1
	}
	if err := l.valid.check(l.name, "temperature from enthalpy", t, p); err != nil {
		return 0, err
	}
	return t, nil
}

// DowthermA is the heat transfer oil used in both loops, valid 20..180 C.
func DowthermA() *Liquid {
	return &Liquid{
		name:         "dowtherm_a",
		valid:        Range{TMin: 20 + celsius, TMax: 180 + celsius, PMin: 1e3, PMax: 1e7},
		density:      Poly{Offset: celsius, Coeffs: []float64{1078, -0.85}},
		heat:         linearHeat{A: 1518, B: 2.82, Offset: celsius},
		conductivity: Poly{Offset: celsius, Coeffs: []float64{0.142, -0.00016}},
		viscosity: func(t float64) float64 {
			return 0.130 / math.Pow(t-celsius, 1.072)
		},
	}
}

// Water is liquid water near atmospheric pressure, valid 1..99 C.
func Water() *Liquid {
	return &Liquid{
		name:         "water",
		valid:        Range{TMin: 1 + celsius, TMax: 99 + celsius, PMin: 1e3, PMax: 1e7},
		density:      Poly{Offset: celsius, Coeffs: []float64{1000.6, -0.0128, -0.00407}},
		heat:         linearHeat{A: 4184, Offset: celsius},
		conductivity: Poly{Offset: celsius, Coeffs: []float64{0.5706, 0.001756, -6.46e-6}},
		viscosity: func(t float64) float64 {
			return 2.414e-5 * math.Pow(10, 247.8/(t-140))
		},
	}
}
