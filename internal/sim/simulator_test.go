package sim_test

import (
	"context"
	"errors"
	"math"
	"sync/atomic"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/thermloop/internal/dynamo"
	"github.com/san-kum/thermloop/internal/flow"
	"github.com/san-kum/thermloop/internal/integrators"
	"github.com/san-kum/thermloop/internal/material"
	"github.com/san-kum/thermloop/internal/sim"
	"github.com/san-kum/thermloop/internal/thermal"
)

type nanElement struct{}

func (nanElement) PressureChange(float64) (float64, error) { return math.NaN(), nil }

type countingMetric struct {
	n int
}

func (m *countingMetric) Name() string          { return "iterations" }
func (m *countingMetric) Observe(sim.Telemetry) { m.n++ }
func (m *countingMetric) Value() float64        { return float64(m.n) }
func (m *countingMetric) Reset()                { m.n = 0 }

var _ = Describe("Orchestrator", func() {
	var (
		ctx   context.Context
		store *sim.SetpointStore
	)

	BeforeEach(func() {
		ctx = context.Background()
		store = sim.NewSetpointStore(sim.Setpoints{FastForward: true})
	})

	newOrchestrator := func(net *sim.Network, ts integrators.Timestep) *sim.Orchestrator {
		o, err := sim.New(net, store, ts, nil)
		Expect(err).NotTo(HaveOccurred())
		return o
	}

	It("conserves enthalpy in a pumped loop with no sources", func() {
		net := ring(oil())
		store.SetPumpPressure(200)
		o := newOrchestrator(net, integrators.Fixed{Step: 0.05})

		before := energy(net)
		for i := 0; i < 50; i++ {
			_, err := o.Step(ctx)
			Expect(err).NotTo(HaveOccurred())
		}

		Expect(relative(energy(net), before)).To(BeNumerically("<", 1e-10))
		Expect(net.Segment("hot").MassFlow()).To(BeNumerically(">", 0))
	})

	It("adds exactly the heater energy", func() {
		net := ring(oil())
		store.SetPumpPressure(200)
		store.SetHeaterPower(500)
		o := newOrchestrator(net, integrators.Fixed{Step: 0.1})

		before := energy(net)
		res, err := o.Run(ctx, sim.Config{Duration: 2})
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Iterations).To(Equal(20))
		Expect(res.Time).To(BeNumerically("~", 2, 1e-9))

		Expect(energy(net) - before).To(BeNumerically("~", 500*2, 1e-5))
	})

	It("publishes flows, temperatures and the setpoint version", func() {
		net := ring(oil())
		version := store.SetPumpPressure(150)
		o := newOrchestrator(net, integrators.Fixed{Step: 0.1})

		tel, err := o.Step(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(tel.Iteration).To(Equal(1))
		Expect(tel.SetpointVersion).To(Equal(version))
		Expect(tel.Flows["hot"]).To(BeNumerically(">", 0))
		Expect(tel.Flows["cold"]).To(Equal(tel.Flows["hot"]))
		Expect(tel.Temperatures["hot"]).To(HaveLen(4))

		latest, ok := o.Board().Latest()
		Expect(ok).To(BeTrue())
		Expect(latest.Iteration).To(Equal(1))

		latest.Flows["hot"] = -1
		again, _ := o.Board().Latest()
		Expect(again.Flows["hot"]).To(Equal(tel.Flows["hot"]))
	})

	It("stops flow in a blocked branch from the next iteration on", func() {
		net := ring(oil())
		store.SetPumpPressure(150)
		o := newOrchestrator(net, integrators.Fixed{Step: 0.1})

		tel, err := o.Step(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(tel.Flows["hot"]).NotTo(BeZero())

		store.SetBlocked("cold", true)
		tel, err = o.Step(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(tel.Flows["hot"]).To(Equal(0.0))
		Expect(tel.Flows["cold"]).To(Equal(0.0))
	})

	It("solves independent groups concurrently and matches a direct solve", func() {
		left, right := segment("left", oil(), 320), segment("right", oil(), 320)
		bypass := segment("bypass", oil(), 320)
		pumped := flow.NewBranch("pumped", left)
		net := &sim.Network{
			Name: "two groups",
			Groups: []*flow.SuperCollection{
				flow.NewParallel("split", 0.05, pumped, flow.NewBranch("return", right)),
				flow.NewSeries("solo", flow.NewBranch("bypass", bypass)),
			},
			Segments: []*thermal.FluidSegment{left, right, bypass},
		}
		o := newOrchestrator(net, integrators.Fixed{Step: 0.01})

		tel, err := o.Step(ctx)
		Expect(err).NotTo(HaveOccurred())

		direct, err := flow.NewSolver().Solve(flow.NewParallel("split", 0.05,
			flow.NewBranch("pumped", segment("left", oil(), 320)),
			flow.NewBranch("return", segment("right", oil(), 320))))
		Expect(err).NotTo(HaveOccurred())
		Expect(tel.Flows["pumped"]).To(BeNumerically("~", direct.Flows[0], 1e-12))
		Expect(tel.Flows["return"]).To(BeNumerically("~", direct.Flows[1], 1e-12))
		Expect(tel.Flows["bypass"]).To(Equal(0.0))
		Expect(tel.PressureDifferences).To(HaveKey("split"))
	})

	It("drives the cooler coefficient from its outlet temperature", func() {
		net := withCooler(ring(oil()), 300)
		store.SetPumpPressure(200)
		o := newOrchestrator(net, integrators.Fixed{Step: 0.1})

		tel, err := o.Step(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(tel.CoolerHTC["chiller"]).To(BeNumerically(">", 200))
		Expect(tel.CoolerSetpoints["chiller"]).To(Equal(300.0))

		store.SetCoolerSetpoint("chiller", 400)
		tel, err = o.Step(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(tel.CoolerSetpoints["chiller"]).To(Equal(400.0))
		Expect(tel.CoolerHTC["chiller"]).To(BeNumerically("<", 200))
	})

	It("takes stable steps when automatic stepping is on", func() {
		net := ring(oil())
		store.SetHeaterPower(2000)
		sc := integrators.NewStabilityController(0.5, 1e-4, 1)
		o := newOrchestrator(net, sc)

		for i := 0; i < 20; i++ {
			before := net.Segment("hot").Temperatures()
			tel, err := o.Step(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(tel.Timestep).To(BeNumerically("<=", 1))
			for j, t := range net.Segment("hot").Temperatures() {
				Expect(t - before[j]).To(BeNumerically("<=", 0.5+1e-9))
			}
		}
	})

	It("aborts instead of overstepping when the stable step is below the minimum", func() {
		net := ring(oil())
		store.SetHeaterPower(1e9)
		before := net.Segment("hot").Temperatures()
		o := newOrchestrator(net, integrators.NewStabilityController(0.5, 1e-4, 1))

		_, err := o.Run(ctx, sim.Config{MaxIterations: 5})
		Expect(errors.Is(err, dynamo.ErrStepTooSmall)).To(BeTrue())

		var se *dynamo.SimulationError
		Expect(errors.As(err, &se)).To(BeTrue())
		Expect(se.Component).To(Equal("timestep"))
		Expect(net.Segment("hot").Temperatures()).To(Equal(before))
	})

	It("aborts with the failing component and time when a property leaves its range", func() {
		net := ring(material.DowthermA())
		store.SetHeaterPower(1e9)
		o := newOrchestrator(net, integrators.Fixed{Step: 1})

		_, err := o.Run(ctx, sim.Config{MaxIterations: 5})
		Expect(errors.Is(err, dynamo.ErrPropertyRange)).To(BeTrue())

		var se *dynamo.SimulationError
		Expect(errors.As(err, &se)).To(BeTrue())
		Expect(se.Component).To(Equal("advance"))
		Expect(se.Iteration).To(Equal(0))
		Expect(se.Time).To(Equal(0.0))
	})

	It("aborts when a flow group cannot be solved", func() {
		hot := segment("hot", oil(), 320)
		net := &sim.Network{
			Name:     "stuck",
			Groups:   []*flow.SuperCollection{flow.NewSeries("dead", flow.NewBranch("dead", hot, nanElement{}))},
			Segments: []*thermal.FluidSegment{hot},
			Pump:     "dead",
		}
		store.SetPumpPressure(100)
		o := newOrchestrator(net, integrators.Fixed{Step: 0.1})
		o.Solver.MaxWidenings = 1

		_, err := o.Step(ctx)
		var se *dynamo.SimulationError
		Expect(errors.As(err, &se)).To(BeTrue())
		Expect(se.Component).To(Equal("flow dead"))
		Expect(se.Iteration).To(Equal(0))
		Expect(errors.Is(err, dynamo.ErrNoBracket)).To(BeTrue())
		var fe *dynamo.FlowSolveError
		Expect(errors.As(err, &fe)).To(BeTrue())
	})

	It("reports metrics and notifies observers every iteration", func() {
		o := newOrchestrator(ring(oil()), integrators.Fixed{Step: 0.1})
		metric := &countingMetric{}
		var seen atomic.Int32
		o.AddMetric(metric)
		o.AddObserver(sim.ObserverFunc(func(sim.Telemetry) { seen.Add(1) }))

		res, err := o.Run(ctx, sim.Config{MaxIterations: 7})
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Metrics).To(HaveKeyWithValue("iterations", 7.0))
		Expect(seen.Load()).To(BeEquivalentTo(7))
		Expect(res.Final.Iteration).To(Equal(7))
	})

	It("returns the context error when cancelled", func() {
		o := newOrchestrator(ring(oil()), integrators.Fixed{Step: 0.1})
		cctx, cancel := context.WithCancel(ctx)
		cancel()

		res, err := o.Run(cctx, sim.Config{})
		Expect(err).To(MatchError(context.Canceled))
		Expect(res.Iterations).To(Equal(0))
	})

	It("rejects networks that do not validate", func() {
		net := ring(oil())
		net.Heater = &sim.Heater{Segment: "missing"}
		_, err := sim.New(net, store, integrators.Fixed{Step: 0.1}, nil)
		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("Sweep", func() {
	It("runs every case on its own network", func() {
		sweep := &sim.Sweep{
			Build:    func() (*sim.Network, error) { return ring(oil()), nil },
			Timestep: func() integrators.Timestep { return integrators.Fixed{Step: 0.1} },
		}
		cases := []sim.Setpoints{
			{HeaterPower: 0, PumpPressure: 100},
			{HeaterPower: 1000, PumpPressure: 100},
			{HeaterPower: 2000, PumpPressure: 100},
		}

		results, err := sweep.Run(context.Background(), cases, sim.Config{Duration: 1})
		Expect(err).NotTo(HaveOccurred())
		Expect(results).To(HaveLen(3))
		Expect(results[0].Final.MaxTemperature()).To(BeNumerically("<", results[1].Final.MaxTemperature()))
		Expect(results[1].Final.MaxTemperature()).To(BeNumerically("<", results[2].Final.MaxTemperature()))
	})
})
