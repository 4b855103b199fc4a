package facility

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/san-kum/thermloop/internal/control"
	"github.com/san-kum/thermloop/internal/flow"
	"github.com/san-kum/thermloop/internal/material"
	"github.com/san-kum/thermloop/internal/sim"
	"github.com/san-kum/thermloop/internal/thermal"
)

// Build creates a fresh network from d and validates it. Cooler PIDs log to
// logger, which may be nil.
func Build(d *Description, logger *logrus.Logger) (*sim.Network, error) {
	b := &builder{desc: d, logger: logger, net: &sim.Network{Name: d.Name}}
	steps := []func() error{
		b.segments,
		b.volumes,
		b.groups,
		b.wiring,
		b.coolers,
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return nil, fmt.Errorf("facility %s: %w", d.Name, err)
		}
	}
	if err := b.net.Validate(); err != nil {
		return nil, err
	}
	return b.net, nil
}

// InitialSetpoints are the defaults of d with every cooler at its setpoint.
func InitialSetpoints(d *Description) sim.Setpoints {
	sp := sim.Setpoints{
		HeaterPower:     d.Defaults.HeaterPower,
		PumpPressure:    d.Defaults.PumpPressure,
		Blocked:         map[string]bool{},
		CoolerSetpoints: make(map[string]float64, len(d.Coolers)),
	}
	for _, c := range d.Coolers {
		sp.CoolerSetpoints[c.Name] = c.Setpoint
	}
	return sp
}

type builder struct {
	desc   *Description
	logger *logrus.Logger
	net    *sim.Network
}

func (b *builder) segments() error {
	for _, s := range b.desc.Segments {
		fluid, err := material.Lookup(b.desc.fluid(s.Fluid))
		if err != nil {
			return fmt.Errorf("segment %s: %w", s.Name, err)
		}
		nodes := s.Nodes
		if nodes == 0 {
			nodes = DefaultNodes
		}
		seg, err := thermal.NewFluidSegment(thermal.SegmentSpec{
			Name:               s.Name,
			Length:             s.Length,
			HydraulicDiameter:  s.Diameter,
			FlowArea:           s.FlowArea,
			Incline:            s.Incline,
			Roughness:          s.Roughness,
			FormLoss:           s.FormLoss,
			AmbientHTC:         s.AmbientHTC,
			WallThickness:      s.WallThickness,
			WallConductivity:   s.WallConductivity,
			Nodes:              nodes,
			Fluid:              fluid,
			InitialTemperature: b.desc.initialTemperature(s.InitialTemperature),
		})
		if err != nil {
			return err
		}
		b.net.Segments = append(b.net.Segments, seg)
	}
	return nil
}

func (b *builder) volumes() error {
	for _, n := range b.desc.Nodes {
		fluid, err := material.Lookup(b.desc.fluid(n.Fluid))
		if err != nil {
			return fmt.Errorf("node %s: %w", n.Name, err)
		}
		if fluid.Phase() != material.Fluid {
			return fmt.Errorf("node %s: %s is not a fluid", n.Name, fluid.Name())
		}
		if !(n.Volume > 0) {
			return fmt.Errorf("node %s: volume must be positive", n.Name)
		}
		cv := thermal.NewControlVolume(n.Name, fluid, n.Volume, b.desc.initialTemperature(n.InitialTemperature), 101325)
		b.net.Nodes = append(b.net.Nodes, cv)
	}
	for _, s := range b.desc.Solids {
		m, err := material.Lookup(s.Material)
		if err != nil {
			return fmt.Errorf("solid %s: %w", s.Name, err)
		}
		if m.Phase() != material.Solid {
			return fmt.Errorf("solid %s: %s is not a solid", s.Name, m.Name())
		}
		if !(s.Volume > 0) {
			return fmt.Errorf("solid %s: volume must be positive", s.Name)
		}
		cv := thermal.NewControlVolume(s.Name, m, s.Volume, b.desc.initialTemperature(s.InitialTemperature), 101325)
		b.net.Solids = append(b.net.Solids, cv)
	}
	if b.desc.Ambient != nil {
		b.net.Ambient = thermal.NewFixedTemperature("ambient", b.desc.Ambient.Temperature, nil)
	}
	return nil
}

func (b *builder) groups() error {
	pumps := 0
	for _, g := range b.desc.Groups {
		arrangement, err := flow.ParseArrangement(g.Arrangement)
		if err != nil {
			return fmt.Errorf("group %s: %w", g.Name, err)
		}
		if len(g.Branches) == 0 {
			return fmt.Errorf("group %s: no branches", g.Name)
		}

		branches := make([]*flow.Branch, 0, len(g.Branches))
		for _, bd := range g.Branches {
			var elements []flow.Element
			for _, name := range bd.Segments {
				seg := b.net.Segment(name)
				if seg == nil {
					return fmt.Errorf("branch %s: unknown segment %q", bd.Name, name)
				}
				elements = append(elements, seg)
			}
			for _, l := range bd.Losses {
				if l.K < 0 {
					return fmt.Errorf("branch %s: negative loss coefficient on %s", bd.Name, l.Name)
				}
				elements = append(elements, flow.Quadratic{Name: l.Name, K: l.K})
			}
			if len(elements) == 0 {
				return fmt.Errorf("branch %s: empty", bd.Name)
			}
			branch := flow.NewBranch(bd.Name, elements...)
			branch.Diode = bd.Diode
			if bd.Pump {
				pumps++
				b.net.Pump = bd.Name
			}
			branches = append(branches, branch)
		}

		if arrangement == flow.Parallel {
			b.net.Groups = append(b.net.Groups, flow.NewParallel(g.Name, g.TotalFlow, branches...))
		} else {
			b.net.Groups = append(b.net.Groups, flow.NewSeries(g.Name, branches...))
		}
	}
	if pumps > 1 {
		return fmt.Errorf("%d pumped branches, at most one is supported", pumps)
	}
	return nil
}

func (b *builder) wiring() error {
	for _, c := range b.desc.Connections {
		b.net.Connections = append(b.net.Connections, sim.Connection{From: c.From, To: c.To})
	}
	for _, l := range b.desc.ThermalLinks {
		if l.HTC < 0 || l.WallConductivity < 0 {
			return fmt.Errorf("thermal link %s-%s: negative coefficient", l.A, l.B)
		}
		b.net.ThermalLinks = append(b.net.ThermalLinks, sim.ThermalLink{A: l.A, B: l.B, HTC: l.HTC, WallConductivity: l.WallConductivity})
	}
	if b.desc.Heater != nil {
		b.net.Heater = &sim.Heater{Segment: b.desc.Heater.Segment}
	}
	return nil
}

func (b *builder) coolers() error {
	for _, c := range b.desc.Coolers {
		ctrl, err := b.controller(c)
		if err != nil {
			return err
		}
		cooler, err := control.NewCooler(c.Name, c.ReferenceHTC, c.MinHTC, ctrl)
		if err != nil {
			return err
		}
		seg := b.net.Segment(c.Segment)
		if seg == nil {
			return fmt.Errorf("cooler %s: unknown segment %q", c.Name, c.Segment)
		}
		b.net.Coolers = append(b.net.Coolers, &sim.CoolerLoop{
			Segment:  c.Segment,
			Coolant:  thermal.NewFixedTemperature(c.Name+" coolant", c.CoolantTemperature, nil),
			Cooler:   cooler,
			Setpoint: c.Setpoint,
		})
	}
	return nil
}

func (b *builder) controller(c CoolerDesc) (control.Controller, error) {
	switch c.Control {
	case "", "pid":
		return control.NewPID(c.Name, c.PID, b.logger)
	case "manual":
		return control.NewManual(c.Command), nil
	case "none":
		return control.NewNone(), nil
	}
	return nil, fmt.Errorf("cooler %s: unknown control %q", c.Name, c.Control)
}
