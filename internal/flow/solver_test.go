package flow_test

import (
	"errors"
	"math"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/thermloop/internal/dynamo"
	"github.com/san-kum/thermloop/internal/flow"
	"github.com/san-kum/thermloop/internal/material"
	"github.com/san-kum/thermloop/internal/thermal"
)

type nanElement struct{}

func (nanElement) PressureChange(float64) (float64, error) { return math.NaN(), nil }

// stepElement needs nothing below Threshold and Jump above it.
type stepElement struct {
	Threshold, Jump float64
}

func (s stepElement) PressureChange(f float64) (float64, error) {
	if f < s.Threshold {
		return 0, nil
	}
	return s.Jump, nil
}

type failingElement struct{ err error }

func (e failingElement) PressureChange(float64) (float64, error) { return 0, e.err }

func pipe(name string, length, diameter, loss, incline, temperature float64) *thermal.FluidSegment {
	seg, err := thermal.NewFluidSegment(thermal.SegmentSpec{
		Name:               name,
		Length:             length,
		HydraulicDiameter:  diameter,
		FormLoss:           loss,
		Incline:            incline,
		Nodes:              6,
		Fluid:              material.DowthermA(),
		InitialTemperature: temperature,
	})
	Expect(err).NotTo(HaveOccurred())
	return seg
}

func quadratic(name string, k float64) *flow.Branch {
	return flow.NewBranch(name, flow.Quadratic{Name: name, K: k})
}

var _ = Describe("Solver", func() {
	var solver *flow.Solver

	BeforeEach(func() {
		solver = flow.NewSolver()
	})

	Describe("single branch", func() {
		It("returns exactly zero flow for a horizontal pipe with no driving pressure", func() {
			b := flow.NewBranch("pipe", pipe("pipe", 3.0, 0.0279, 2.75, 0, 320))

			f, err := solver.SolveBranch(b, 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(f).To(Equal(0.0))
		})

		DescribeTable("inverts a quadratic characteristic",
			func(driving, want float64) {
				f, err := solver.SolveBranch(quadratic("q", 1000), driving)
				Expect(err).NotTo(HaveOccurred())
				Expect(f).To(BeNumerically("~", want, 1e-10))
			},
			Entry("forward", 0.4, 0.02),
			Entry("reverse", -0.4, -0.02),
			Entry("strong pump", 1e6, math.Sqrt(1e3)),
		)

		It("finds a pipe flow whose pressure change matches the pump", func() {
			b := flow.NewBranch("pipe", pipe("pipe", 3.0, 0.0279, 2.75, 0, 320))

			f, err := solver.SolveBranch(b, 2000)
			Expect(err).NotTo(HaveOccurred())
			Expect(f).To(BeNumerically(">", 0))

			dp, err := b.PressureChange(f)
			Expect(err).NotTo(HaveOccurred())
			Expect(dp).To(BeNumerically("~", 2000, 1e-6))
		})

		It("never lets a diode run backwards", func() {
			b := quadratic("check valve", 1000)
			b.Diode = true

			f, err := solver.SolveBranch(b, -500)
			Expect(err).NotTo(HaveOccurred())
			Expect(f).To(Equal(0.0))
		})

		DescribeTable("blocked branches carry no flow",
			func(driving float64) {
				b := quadratic("valve", 1000)
				b.Blocked = true

				f, err := solver.SolveBranch(b, driving)
				Expect(err).NotTo(HaveOccurred())
				Expect(f).To(Equal(0.0))
			},
			Entry("reverse", -5000.0),
			Entry("none", 0.0),
			Entry("forward", 5000.0),
		)
	})

	Describe("parallel groups", func() {
		It("splits the imposed flow evenly between identical branches", func() {
			group := flow.NewParallel("pair", 0.04, quadratic("a", 1000), quadratic("b", 1000))

			sol, err := solver.Solve(group)
			Expect(err).NotTo(HaveOccurred())
			Expect(sol.Flows[0]).To(Equal(sol.Flows[1]))
			Expect(sol.Flows[0]).To(BeNumerically("~", 0.02, 1e-9))
			Expect(sol.PressureDifference).To(BeNumerically("~", 0.4, 1e-6))
		})

		It("balances pressure and mass across unequal branches", func() {
			pump := flow.NewBranch("pump", pipe("heater", 2, 0.0279, 4, 0, 350), flow.Quadratic{Name: "flowmeter", K: 500})
			pump.Driving = 1500
			group := flow.NewParallel("primary", 0,
				pump,
				quadratic("dhx", 4000),
				flow.NewBranch("ctah", pipe("ctah", 3, 0.0279, 2.75, 0, 330)),
			)

			sol, err := solver.Solve(group)
			Expect(err).NotTo(HaveOccurred())
			Expect(sol.Flows[0]).To(BeNumerically(">", 0))
			Expect(sol.Flows[1]).To(BeNumerically("<", 0))
			Expect(sol.Flows[2]).To(BeNumerically("<", 0))
			Expect(sol.Flows[0] + sol.Flows[1] + sol.Flows[2]).To(BeNumerically("~", 0, 1e-9))

			for i, b := range group.Branches {
				pc, err := b.PressureChange(sol.Flows[i])
				Expect(err).NotTo(HaveOccurred())
				Expect(pc - b.Driving).To(BeNumerically("~", sol.PressureDifference, 1e-6))
			}
		})

		It("is exactly at rest when nothing drives it", func() {
			group := flow.NewParallel("idle", 0, quadratic("a", 1000), quadratic("b", 3000))

			sol, err := solver.Solve(group)
			Expect(err).NotTo(HaveOccurred())
			Expect(sol.Flows).To(Equal([]float64{0, 0}))
		})

		It("forces blocked branches to zero and routes flow through the rest", func() {
			blocked := quadratic("bypass", 10)
			blocked.Blocked = true
			blocked.Driving = 1e5
			group := flow.NewParallel("trio", 0.06, quadratic("a", 1000), blocked, quadratic("c", 1000))

			sol, err := solver.Solve(group)
			Expect(err).NotTo(HaveOccurred())
			Expect(sol.Flows[1]).To(Equal(0.0))
			Expect(sol.Flows[0]).To(BeNumerically("~", 0.03, 1e-9))
			Expect(sol.Flows[2]).To(BeNumerically("~", 0.03, 1e-9))
		})

		It("returns zero everywhere when every branch is blocked", func() {
			a, b := quadratic("a", 1000), quadratic("b", 1000)
			a.Blocked, b.Blocked = true, true

			sol, err := solver.Solve(flow.NewParallel("shut", 0.04, a, b))
			Expect(err).NotTo(HaveOccurred())
			Expect(sol.Flows).To(Equal([]float64{0, 0}))
		})

		It("gives a lone open branch the whole imposed flow", func() {
			a, b := quadratic("a", 1000), quadratic("b", 1000)
			b.Blocked = true

			sol, err := solver.Solve(flow.NewParallel("one", 0.04, a, b))
			Expect(err).NotTo(HaveOccurred())
			Expect(sol.Flows).To(Equal([]float64{0.04, 0}))
			Expect(sol.PressureDifference).To(BeNumerically("~", 1.6, 1e-12))
		})

		Context("with diodes", func() {
			It("clamps a diode that would run backwards", func() {
				pump := quadratic("pump", 1000)
				pump.Driving = 1000
				check := quadratic("check", 1000)
				check.Diode = true
				open := quadratic("open", 1000)

				sol, err := solver.Solve(flow.NewParallel("loop", 0, pump, check, open))
				Expect(err).NotTo(HaveOccurred())
				Expect(sol.Flows[1]).To(Equal(0.0))
				Expect(sol.Flows[0]).To(BeNumerically(">", 0))
				Expect(sol.Flows[0] + sol.Flows[2]).To(BeNumerically("~", 0, 1e-9))
				Expect(sol.Passes).To(Equal(2))
			})

			It("leaves a forward-running diode open", func() {
				pump := quadratic("pump", 1000)
				pump.Driving = 1000
				pump.Diode = true

				sol, err := solver.Solve(flow.NewParallel("loop", 0, pump, quadratic("return", 1000)))
				Expect(err).NotTo(HaveOccurred())
				Expect(sol.Flows[0]).To(BeNumerically("~", math.Sqrt(0.5), 1e-9))
				Expect(sol.Passes).To(Equal(1))
			})

			It("stops the loop when the only path back is a diode", func() {
				pump := quadratic("pump", 1000)
				pump.Driving = 1000
				check := quadratic("check", 1000)
				check.Diode = true

				sol, err := solver.Solve(flow.NewParallel("loop", 0, pump, check))
				Expect(err).NotTo(HaveOccurred())
				Expect(sol.Flows).To(Equal([]float64{0, 0}))
			})

			It("rejects an imposed flow that only closed diodes could carry", func() {
				a, b := quadratic("a", 1000), quadratic("b", 1000)
				a.Diode, b.Diode = true, true

				_, err := solver.Solve(flow.NewParallel("checks", -0.04, a, b))
				Expect(errors.Is(err, dynamo.ErrNoOpenBranch)).To(BeTrue())
				var fe *dynamo.FlowSolveError
				Expect(errors.As(err, &fe)).To(BeTrue())
				Expect(fe.Group).To(Equal("checks"))
			})

			It("still returns zeros when the imposed flow meets only blocked branches", func() {
				a, b := quadratic("a", 1000), quadratic("b", 1000)
				a.Diode = true
				a.Blocked, b.Blocked = true, true

				sol, err := solver.Solve(flow.NewParallel("shut", -0.04, a, b))
				Expect(err).NotTo(HaveOccurred())
				Expect(sol.Flows).To(Equal([]float64{0, 0}))
			})

			It("reports a bounded active-set iteration that did not settle", func() {
				solver.MaxDiodePasses = 1
				pump := quadratic("pump", 1000)
				pump.Driving = 1000
				check := quadratic("check", 1000)
				check.Diode = true

				_, err := solver.Solve(flow.NewParallel("loop", 0, pump, check, quadratic("open", 1000)))
				Expect(errors.Is(err, dynamo.ErrDiodeCycling)).To(BeTrue())
				var fe *dynamo.FlowSolveError
				Expect(errors.As(err, &fe)).To(BeTrue())
				Expect(fe.Group).To(Equal("loop"))
			})
		})
	})

	Describe("series groups", func() {
		It("circulates by buoyancy when the riser is hotter than the downcomer", func() {
			riser := flow.NewBranch("riser", pipe("riser", 2, 0.0279, 1, 90, 380))
			downcomer := flow.NewBranch("downcomer", pipe("downcomer", 2, 0.0279, 1, -90, 320))
			loop := flow.NewSeries("natural", riser, downcomer)

			up, err := flow.HydrostaticHead(riser)
			Expect(err).NotTo(HaveOccurred())
			down, err := flow.HydrostaticHead(downcomer)
			Expect(err).NotTo(HaveOccurred())
			Expect(up + down).To(BeNumerically("<", 0))

			sol, err := solver.Solve(loop)
			Expect(err).NotTo(HaveOccurred())
			Expect(sol.Flows[0]).To(BeNumerically(">", 0))
			Expect(sol.Flows[1]).To(Equal(sol.Flows[0]))

			a, _ := riser.PressureChange(sol.Flows[0])
			b, _ := downcomer.PressureChange(sol.Flows[0])
			Expect(a + b).To(BeNumerically("~", 0, 1e-6))
		})

		It("stops entirely when any branch is blocked", func() {
			pump := quadratic("pump", 1000)
			pump.Driving = 400
			valve := quadratic("valve", 1000)
			valve.Blocked = true

			sol, err := solver.Solve(flow.NewSeries("line", pump, valve))
			Expect(err).NotTo(HaveOccurred())
			Expect(sol.Flows).To(Equal([]float64{0, 0}))
		})

		It("adds the driving pressures of its branches", func() {
			a, b := quadratic("a", 500), quadratic("b", 500)
			a.Driving, b.Driving = 0.3, 0.1

			sol, err := solver.Solve(flow.NewSeries("line", a, b))
			Expect(err).NotTo(HaveOccurred())
			Expect(sol.Flows[0]).To(BeNumerically("~", 0.02, 1e-10))
		})
	})

	Describe("failures", func() {
		It("reports a characteristic that never changes sign", func() {
			_, err := solver.SolveBranch(flow.NewBranch("broken", nanElement{}), 10)

			var fe *dynamo.FlowSolveError
			Expect(errors.As(err, &fe)).To(BeTrue())
			Expect(fe.Branch).To(Equal("broken"))
			Expect(fe.Attempts).To(Equal(2))
			Expect(errors.Is(err, dynamo.ErrNoBracket)).To(BeTrue())
		})

		It("rejects a root that sits on a discontinuity", func() {
			_, err := solver.SolveBranch(flow.NewBranch("step", stepElement{Threshold: 0.3, Jump: 1000}), 500)

			Expect(errors.Is(err, dynamo.ErrNotConverged)).To(BeTrue())
		})

		It("passes property errors through without retrying", func() {
			lookup := &dynamo.PropertyLookupError{Material: "dowtherm_a", Property: "density"}
			_, err := solver.Solve(flow.NewParallel("hot", 0.1, flow.NewBranch("a", failingElement{lookup}), quadratic("b", 1)))

			Expect(errors.Is(err, dynamo.ErrPropertyRange)).To(BeTrue())
		})
	})
})

var _ = Describe("Branch", func() {
	It("clones segments so snapshots do not share state", func() {
		seg := pipe("leg", 1, 0.0279, 0, 0, 320)
		b := flow.NewBranch("leg", seg, flow.Quadratic{K: 10})

		c := b.Clone()
		c.Segments()[0].Nodes[0].Temperature = 400
		c.SetMassFlow(0.5)

		Expect(seg.Nodes[0].Temperature).To(Equal(320.0))
		Expect(seg.MassFlow()).To(Equal(0.0))
		Expect(b.MassFlow()).To(Equal(0.0))
	})

	It("assigns solved flows to every segment", func() {
		a := flow.NewBranch("a", pipe("a1", 1, 0.0279, 0, 0, 320), pipe("a2", 1, 0.0279, 0, 0, 320))
		b := quadratic("b", 100)
		group := flow.NewParallel("g", 0, a, b)

		Expect(group.Assign(flow.Solution{Flows: []float64{0.1, -0.1}})).To(Succeed())
		for _, s := range a.Segments() {
			Expect(s.MassFlow()).To(Equal(0.1))
		}
		Expect(group.Flows()).To(Equal([]float64{0.1, -0.1}))
		Expect(group.Assign(flow.Solution{Flows: []float64{1}})).NotTo(Succeed())
	})

	It("parses arrangements from descriptions", func() {
		a, err := flow.ParseArrangement("Series")
		Expect(err).NotTo(HaveOccurred())
		Expect(a).To(Equal(flow.Series))

		_, err = flow.ParseArrangement("ring")
		Expect(err).To(HaveOccurred())
	})
})
