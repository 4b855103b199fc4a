package sim_test

import (
	"math"

	. "github.com/onsi/gomega"

	"github.com/san-kum/thermloop/internal/control"
	"github.com/san-kum/thermloop/internal/flow"
	"github.com/san-kum/thermloop/internal/material"
	"github.com/san-kum/thermloop/internal/sim"
	"github.com/san-kum/thermloop/internal/thermal"
)

func oil() *material.Constant {
	return &material.Constant{Label: "oil", State: material.Fluid, Rho: 1000, Cp: 2000, K: 0.1, Mu: 0.01}
}

func segment(name string, m material.Material, temperature float64) *thermal.FluidSegment {
	s, err := thermal.NewFluidSegment(thermal.SegmentSpec{
		Name:               name,
		Length:             1,
		HydraulicDiameter:  0.02,
		FormLoss:           1,
		Nodes:              4,
		Fluid:              m,
		InitialTemperature: temperature,
	})
	Expect(err).NotTo(HaveOccurred())
	return s
}

// ring is a pumped two-segment loop with a heater on "hot".
func ring(m material.Material) *sim.Network {
	hot := segment("hot", m, 330)
	cold := segment("cold", m, 310)
	return &sim.Network{
		Name:        "ring",
		Groups:      []*flow.SuperCollection{flow.NewSeries("loop", flow.NewBranch("hot", hot), flow.NewBranch("cold", cold))},
		Segments:    []*thermal.FluidSegment{hot, cold},
		Connections: []sim.Connection{{From: "hot", To: "cold"}, {From: "cold", To: "hot"}},
		Heater:      &sim.Heater{Segment: "hot"},
		Pump:        "hot",
	}
}

// withCooler adds a PID-controlled cooler on "cold".
func withCooler(net *sim.Network, setpoint float64) *sim.Network {
	pid, err := control.NewPID("chiller", control.PIDConfig{Gain: 0.5, IntegralTime: 5}, nil)
	Expect(err).NotTo(HaveOccurred())
	cooler, err := control.NewCooler("chiller", 200, 1, pid)
	Expect(err).NotTo(HaveOccurred())
	net.Coolers = append(net.Coolers, &sim.CoolerLoop{
		Segment:  "cold",
		Coolant:  thermal.NewFixedTemperature("coolant", 290, nil),
		Cooler:   cooler,
		Setpoint: setpoint,
	})
	return net
}

func energy(net *sim.Network) float64 {
	total := 0.0
	for _, cv := range net.Volumes() {
		m, err := cv.Mass()
		Expect(err).NotTo(HaveOccurred())
		h, err := cv.Enthalpy()
		Expect(err).NotTo(HaveOccurred())
		total += m * h
	}
	return total
}

func relative(a, b float64) float64 {
	return math.Abs(a-b) / math.Max(math.Abs(a), math.Abs(b))
}
