package material

// Metal is a solid with constant density and linear conductivity.
type Metal struct {
	name         string
	valid        Range
	density      float64
	heat         linearHeat
	conductivity Poly
}

func (m *Metal) Name() string { return m.name }
func (m *Metal) Phase() Phase { return Solid }

func (m *Metal) Density(t, p float64) (float64, error) {
	if err := m.valid.check(m.name, "density", t, p); err != nil {
		return 0, err
	}
	return m.density, nil
}

func (m *Metal) SpecificHeat(t, p float64) (float64, error) {
	if err := m.valid.check(m.name, "specific heat", t, p); err != nil {
		return 0, err
	}
	return m.heat.cp(t), nil
}

func (m *Metal) Conductivity(t, p float64) (float64, error) {
	if err := m.valid.check(m.name, "conductivity", t, p); err != nil {
		return 0, err
	}
	return m.conductivity.At(t), nil
}

func (m *Metal) Enthalpy(t, p float64) (float64, error) {
	if err := m.valid.check(m.name, "enthalpy", t, p); err != nil {
		return 0, err
	}
	return m.heat.enthalpy(t), nil
}

func (m *Metal) TemperatureFromEnthalpy(h, p float64) (float64, error) {
	t := m.heat.temperature(h)
	if err := m.valid.check(m.name, "temperature from enthalpy", t, p); err != nil {
		return 0, err
	}
	return t, nil
}

func Steel304() *Metal {
	return &Metal{
		name:         "steel_304",
		valid:        Range{TMin: 250, TMax: 1200},
		density:      8000,
		heat:         linearHeat{A: 477, B: 0.18, Offset: celsius},
		conductivity: Poly{Offset: celsius, Coeffs: []float64{14.6, 0.0127}},
	}
}

func Copper() *Metal {
	return &Metal{
		name:         "copper",
		valid:        Range{TMin: 250, TMax: 1000},
		density:      8940,
		heat:         linearHeat{A: 385, B: 0.1, Offset: celsius},
		conductivity: Poly{Offset: celsius, Coeffs: []float64{401, -0.07}},
	}
}
