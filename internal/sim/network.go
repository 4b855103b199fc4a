package sim

import (
	"fmt"

	"github.com/san-kum/thermloop/internal/control"
	"github.com/san-kum/thermloop/internal/flow"
	"github.com/san-kum/thermloop/internal/thermal"
)

// Connection carries fluid from the outlet of From into the inlet of To at
// the flow of whichever end is a segment, To first.
type Connection struct {
	From, To string
}

// Heater adds the heater power setpoint to a segment.
type Heater struct {
	Segment string
}

// CoolerLoop removes heat from a segment into a coolant at a coefficient
// commanded from the segment outlet temperature.
type CoolerLoop struct {
	Segment  string
	Coolant  *thermal.BoundaryCondition
	Cooler   *control.Cooler
	Setpoint float64 // K, used until a setpoint is written
}

// ThermalLink couples two entities by conduction-convection, for example the
// two sides of a heat exchanger or a fluid and its solid shell.
type ThermalLink struct {
	A, B             string
	HTC              float64 // W/(m^2 K)
	WallConductivity float64 // W/(m K)
}

// Network is the complete facility the orchestrator advances.
type Network struct {
	Name         string
	Groups       []*flow.SuperCollection
	Segments     []*thermal.FluidSegment
	Nodes        []*thermal.ControlVolume // fluid mixing volumes at branch junctions
	Solids       []*thermal.ControlVolume
	Boundaries   []*thermal.BoundaryCondition
	Connections  []Connection
	Heater       *Heater
	Coolers      []*CoolerLoop
	ThermalLinks []ThermalLink
	Ambient      *thermal.BoundaryCondition
	Pump         string // branch driven by the pump pressure setpoint
}

func (n *Network) Segment(name string) *thermal.FluidSegment {
	for _, s := range n.Segments {
		if s.Name == name {
			return s
		}
	}
	return nil
}

func (n *Network) Branch(name string) (*flow.Branch, *flow.SuperCollection) {
	for _, g := range n.Groups {
		if b := g.Branch(name); b != nil {
			return b, g
		}
	}
	return nil, nil
}

func (n *Network) BranchNames() []string {
	var out []string
	for _, g := range n.Groups {
		for _, b := range g.Branches {
			out = append(out, b.Name)
		}
	}
	return out
}

// Entity resolves a segment, volume or boundary by name.
func (n *Network) Entity(name string) (thermal.Entity, bool) {
	if s := n.Segment(name); s != nil {
		return s, true
	}
	for _, cv := range append(append([]*thermal.ControlVolume{}, n.Nodes...), n.Solids...) {
		if cv.Name == name {
			return cv, true
		}
	}
	for _, bc := range n.Boundaries {
		if bc.Name == name {
			return bc, true
		}
	}
	if n.Ambient != nil && n.Ambient.Name == name {
		return n.Ambient, true
	}
	return nil, false
}

// Volumes lists every control volume that is advanced.
func (n *Network) Volumes() []*thermal.ControlVolume {
	var out []*thermal.ControlVolume
	for _, s := range n.Segments {
		out = append(out, s.Nodes...)
	}
	out = append(out, n.Nodes...)
	return append(out, n.Solids...)
}

// Validate checks names and references. It does not evaluate any link.
func (n *Network) Validate() error {
	names := map[string]string{}
	claim := func(name, kind string) error {
		if name == "" {
			return fmt.Errorf("network %s: unnamed %s", n.Name, kind)
		}
		if prev, ok := names[name]; ok {
			return fmt.Errorf("network %s: %s %q already names a %s", n.Name, kind, name, prev)
		}
		names[name] = kind
		return nil
	}
	for _, s := range n.Segments {
		if err := claim(s.Name, "segment"); err != nil {
			return err
		}
	}
	for _, cv := range n.Nodes {
		if err := claim(cv.Name, "node"); err != nil {
			return err
		}
	}
	for _, cv := range n.Solids {
		if err := claim(cv.Name, "solid"); err != nil {
			return err
		}
	}
	for _, bc := range n.Boundaries {
		if err := claim(bc.Name, "boundary"); err != nil {
			return err
		}
	}

	owner := map[*thermal.FluidSegment]string{}
	branches := map[string]bool{}
	for _, g := range n.Groups {
		for _, b := range g.Branches {
			if branches[b.Name] {
				return fmt.Errorf("network %s: duplicate branch %q", n.Name, b.Name)
			}
			branches[b.Name] = true
			for _, s := range b.Segments() {
				if n.Segment(s.Name) != s {
					return fmt.Errorf("network %s: branch %s uses unregistered segment %s", n.Name, b.Name, s.Name)
				}
				if prev, ok := owner[s]; ok {
					return fmt.Errorf("network %s: segment %s is in branches %s and %s", n.Name, s.Name, prev, b.Name)
				}
				owner[s] = b.Name
			}
		}
	}

	for _, c := range n.Connections {
		from, ok := n.Entity(c.From)
		if !ok {
			return fmt.Errorf("network %s: connection from unknown %q", n.Name, c.From)
		}
		to, ok := n.Entity(c.To)
		if !ok {
			return fmt.Errorf("network %s: connection to unknown %q", n.Name, c.To)
		}
		fs, fromSeg := from.(*thermal.FluidSegment)
		ts, toSeg := to.(*thermal.FluidSegment)
		switch {
		case !fromSeg && !toSeg:
			return fmt.Errorf("network %s: connection %s -> %s has no segment to carry flow", n.Name, c.From, c.To)
		case fromSeg && toSeg && !n.sameFlow(fs, ts, owner):
			return fmt.Errorf("network %s: connection %s -> %s joins segments with different flows; add a node", n.Name, c.From, c.To)
		}
	}

	if n.Heater != nil && n.Segment(n.Heater.Segment) == nil {
		return fmt.Errorf("network %s: heater on unknown segment %q", n.Name, n.Heater.Segment)
	}
	for _, c := range n.Coolers {
		if c.Cooler == nil || c.Coolant == nil || c.Coolant.Kind != thermal.FixedTemperature {
			return fmt.Errorf("network %s: cooler on %s needs a controller and a fixed-temperature coolant", n.Name, c.Segment)
		}
		if n.Segment(c.Segment) == nil {
			return fmt.Errorf("network %s: cooler %s on unknown segment %q", n.Name, c.Cooler.Name, c.Segment)
		}
	}
	for _, l := range n.ThermalLinks {
		for _, name := range []string{l.A, l.B} {
			if _, ok := n.Entity(name); !ok {
				return fmt.Errorf("network %s: thermal link to unknown %q", n.Name, name)
			}
		}
	}
	if n.Pump != "" && !branches[n.Pump] {
		return fmt.Errorf("network %s: pump on unknown branch %q", n.Name, n.Pump)
	}
	return nil
}

// sameFlow reports whether two segments always carry the same flow: the same
// branch, or branches of one series group.
func (n *Network) sameFlow(a, b *thermal.FluidSegment, owner map[*thermal.FluidSegment]string) bool {
	ba, okA := owner[a]
	bb, okB := owner[b]
	if !okA || !okB {
		return !okA && !okB
	}
	if ba == bb {
		return true
	}
	_, ga := n.Branch(ba)
	_, gb := n.Branch(bb)
	return ga == gb && ga.Arrangement == flow.Series
}
