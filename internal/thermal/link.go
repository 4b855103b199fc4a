package thermal

import (
	"fmt"
	"math"

	"github.com/san-kum/thermloop/internal/dynamo"
	"github.com/san-kum/thermloop/internal/material"
)

// Link computes the rate carried by it between a and b and adds it to both
// accumulators. Conservative interactions add equal and opposite rates.
func Link(a, b Entity, it Interaction) error {
	if isNil(a) {
		return linkErr(a, b, it, "missing entity")
	}

	switch it := it.(type) {
	case Advection:
		return linkAdvection(a, b, it)
	case ConductionConvection:
		return linkConduction(a, b, it)
	case HeatAddition:
		return linkHeat(a, b, it)
	default:
		return &dynamo.LinkError{A: EntityName(a), B: EntityName(b), Interaction: fmt.Sprintf("%T", it), Reason: "unknown interaction"}
	}
}

func isNil(e Entity) bool {
	switch e := e.(type) {
	case *ControlVolume:
		return e == nil
	case *FluidSegment:
		return e == nil
	case *BoundaryCondition:
		return e == nil
	default:
		return e == nil
	}
}

func linkErr(a, b Entity, it Interaction, reason string) error {
	kind := "<nil>"
	if it != nil {
		kind = it.Kind()
	}
	return &dynamo.LinkError{A: EntityName(a), B: EntityName(b), Interaction: kind, Reason: reason}
}

// side is one participant reduced to a single node.
type side struct {
	cv *ControlVolume
	bc *BoundaryCondition
}

func (s side) temperature() float64 {
	if s.cv != nil {
		return s.cv.Temperature
	}
	return s.bc.Temperature
}

func (s side) accumulate(rate float64) {
	if s.cv != nil {
		s.cv.Accumulate(rate)
	}
}

func (s side) throughflow(q float64) {
	if s.cv != nil {
		s.cv.AccumulateThroughflow(q)
	}
}

// fluid reports why a side cannot carry advected fluid, if it cannot.
func (s side) fluid() (material.Material, float64, string) {
	if s.cv != nil {
		if s.cv.Material.Phase() != material.Fluid {
			return nil, 0, s.cv.Name + " is solid"
		}
		return s.cv.Material, s.cv.Pressure, ""
	}
	if s.bc.Kind != FixedTemperature || s.bc.Fluid == nil {
		return nil, 0, s.bc.Name + " has no fluid"
	}
	return s.bc.Fluid, s.bc.Pressure, ""
}

// port resolves the advective end of an entity. Segments expose their back
// node as outlet and their front node as inlet.
func port(e Entity, outlet bool) side {
	switch e := e.(type) {
	case *ControlVolume:
		return side{cv: e}
	case *FluidSegment:
		if outlet {
			return side{cv: e.Back()}
		}
		return side{cv: e.Front()}
	case *BoundaryCondition:
		return side{bc: e}
	}
	return side{}
}

func linkAdvection(a, b Entity, it Advection) error {
	if isNil(b) {
		return linkErr(a, b, it, "missing entity")
	}
	pa, pb := port(a, true), port(b, false)
	if pa.bc != nil && pb.bc != nil {
		return linkErr(a, b, it, "both sides are boundaries")
	}
	if pa.cv == nil && pa.bc == nil || pb.cv == nil && pb.bc == nil {
		return linkErr(a, b, it, "segment has no nodes")
	}

	ma, pressA, why := pa.fluid()
	if why != "" {
		return linkErr(a, b, it, why)
	}
	mb, pressB, why := pb.fluid()
	if why != "" {
		return linkErr(a, b, it, why)
	}
	if it.MassFlow == 0 {
		return nil
	}

	rhoA, rhoB := it.DensityA, it.DensityB
	var err error
	if rhoA <= 0 {
		if rhoA, err = ma.Density(pa.temperature(), pressA); err != nil {
			return err
		}
	}
	if rhoB <= 0 {
		if rhoB, err = mb.Density(pb.temperature(), pressB); err != nil {
			return err
		}
	}

	var h float64
	if it.MassFlow > 0 {
		h, err = ma.Enthalpy(pa.temperature(), pressA)
	} else {
		h, err = mb.Enthalpy(pb.temperature(), pressB)
	}
	if err != nil {
		return err
	}

	rate := it.MassFlow * h
	pa.accumulate(-rate)
	pb.accumulate(rate)
	pa.throughflow(it.MassFlow / rhoA)
	pb.throughflow(it.MassFlow / rhoB)
	return nil
}

// sides expands an entity into the nodes that exchange heat laterally.
func sides(e Entity) []side {
	switch e := e.(type) {
	case *ControlVolume:
		return []side{{cv: e}}
	case *FluidSegment:
		out := make([]side, len(e.Nodes))
		for i, cv := range e.Nodes {
			out[i] = side{cv: cv}
		}
		return out
	case *BoundaryCondition:
		return []side{{bc: e}}
	}
	return nil
}

func linkConduction(a, b Entity, it ConductionConvection) error {
	if isNil(b) {
		return linkErr(a, b, it, "missing entity")
	}
	if it.HTC < 0 || it.WallConductivity < 0 {
		return linkErr(a, b, it, "negative coefficient")
	}
	if _, ok := a.(*BoundaryCondition); ok {
		if _, ok := b.(*BoundaryCondition); ok {
			return linkErr(a, b, it, "both sides are boundaries")
		}
	}
	for _, e := range []Entity{a, b} {
		if bc, ok := e.(*BoundaryCondition); ok && bc.Kind != FixedTemperature {
			return linkErr(a, b, it, bc.Name+" has no temperature")
		}
	}

	la, lb := sides(a), sides(b)
	switch {
	case len(la) == len(lb):
		for i := range la {
			if err := conduct(la[i], lb[i], it, a, b); err != nil {
				return err
			}
		}
	case len(la) == 1:
		for i := range lb {
			if err := conduct(la[0], lb[i], it, a, b); err != nil {
				return err
			}
		}
	case len(lb) == 1:
		for i := range la {
			if err := conduct(la[i], lb[0], it, a, b); err != nil {
				return err
			}
		}
	default:
		return linkErr(a, b, it, fmt.Sprintf("node count mismatch %d vs %d", len(la), len(lb)))
	}
	return nil
}

// conduct applies one node pair. The first side with a cylinder supplies the
// geometry.
func conduct(x, y side, it ConductionConvection, a, b Entity) error {
	var g *Cylinder
	switch {
	case x.cv != nil && x.cv.Geometry != nil:
		g = x.cv.Geometry
	case y.cv != nil && y.cv.Geometry != nil:
		g = y.cv.Geometry
	default:
		return linkErr(a, b, it, "no cylindrical geometry on either side")
	}
	if g.InnerDiameter <= 0 || g.Length <= 0 || g.OuterDiameter < g.InnerDiameter {
		return linkErr(a, b, it, "degenerate cylinder")
	}
	if it.HTC == 0 {
		return nil
	}

	resistance := 1 / (it.HTC * g.InnerArea())
	if g.OuterDiameter > g.InnerDiameter {
		k := it.WallConductivity
		if k == 0 {
			solid := solidSide(x, y)
			if solid == nil {
				return linkErr(a, b, it, "wall conductivity unknown")
			}
			var err error
			if k, err = solid.Material.Conductivity(solid.Temperature, solid.Pressure); err != nil {
				return err
			}
		}
		resistance += math.Log(g.OuterDiameter/g.InnerDiameter) / (2 * math.Pi * k * g.Length)
	}

	q := (x.temperature() - y.temperature()) / resistance
	x.accumulate(-q)
	y.accumulate(q)
	return nil
}

func solidSide(x, y side) *ControlVolume {
	for _, s := range []side{x, y} {
		if s.cv != nil && s.cv.Material.Phase() == material.Solid {
			return s.cv
		}
	}
	return nil
}

func linkHeat(a, b Entity, it HeatAddition) error {
	if _, ok := a.(*BoundaryCondition); ok {
		return linkErr(a, b, it, "boundary cannot receive heat")
	}

	power := it.Power
	var sources []side
	switch b := b.(type) {
	case *BoundaryCondition:
		if b != nil && b.Kind == FixedHeatRate {
			power = b.HeatRate
		}
	case nil:
	default:
		if !isNil(b) {
			sources = sides(b)
		}
	}

	targets := sides(a)
	if len(targets) == 0 {
		return linkErr(a, b, it, "segment has no nodes")
	}
	for _, t := range targets {
		t.accumulate(power / float64(len(targets)))
	}
	for _, s := range sources {
		s.accumulate(-power / float64(len(sources)))
	}
	return nil
}
