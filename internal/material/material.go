// Package material provides temperature-dependent property lookup for the
// fluids and solids a facility is built from.
//
// Every lookup checks the correlation's validity range first and returns a
// [dynamo.PropertyLookupError] instead of extrapolating: a fluid past its
// range is boiling or freezing, and the caller has to stop the step.
package material

import (
	"fmt"
	"math"
	"sort"

	"github.com/san-kum/thermloop/internal/dynamo"
)

type Phase int

const (
	Fluid Phase = iota
	Solid
)

func (p Phase) String() string {
	if p == Solid {
		return "solid"
	}
	return "fluid"
}

// Material is the lookup capability shared by fluids and solids.
// Temperatures are in K, pressures in Pa, enthalpies in J/kg.
type Material interface {
	Name() string
	Phase() Phase
	Density(t, p float64) (float64, error)
	SpecificHeat(t, p float64) (float64, error)
	Conductivity(t, p float64) (float64, error)
	Enthalpy(t, p float64) (float64, error)
	TemperatureFromEnthalpy(h, p float64) (float64, error)
}

// Viscous is implemented by materials that can flow.
type Viscous interface {
	Material
	Viscosity(t, p float64) (float64, error)
}

// Range bounds a correlation. A zero-valued Range accepts everything.
type Range struct {
	TMin, TMax float64
	PMin, PMax float64
}

func (r Range) check(name, property string, t, p float64) error {
	if math.IsNaN(t) || math.IsNaN(p) {
		return &dynamo.PropertyLookupError{Material: name, Property: property, Temperature: t, Pressure: p, Min: r.TMin, Max: r.TMax}
	}
	if r.TMax > r.TMin && (t < r.TMin || t > r.TMax) {
		return &dynamo.PropertyLookupError{Material: name, Property: property, Temperature: t, Pressure: p, Min: r.TMin, Max: r.TMax}
	}
	if r.PMax > r.PMin && (p < r.PMin || p > r.PMax) {
		return &dynamo.PropertyLookupError{Material: name, Property: property + " (pressure)", Temperature: t, Pressure: p, Min: r.PMin, Max: r.PMax}
	}
	return nil
}

var registry = map[string]func() Material{
	"dowtherm_a": func() Material { return DowthermA() },
	"water":      func() Material { return Water() },
	"steel_304":  func() Material { return Steel304() },
	"copper":     func() Material { return Copper() },
}

// Lookup returns the registered material with the given name.
func Lookup(name string) (Material, error) {
	fn, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("unknown material: %s (available: %v)", name, Names())
	}
	return fn(), nil
}

func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
