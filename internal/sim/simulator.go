package sim

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"runtime"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/san-kum/thermloop/internal/dynamo"
	"github.com/san-kum/thermloop/internal/flow"
	"github.com/san-kum/thermloop/internal/integrators"
	"github.com/san-kum/thermloop/internal/thermal"
)

// connection is a Connection resolved to entities.
type connection struct {
	from, to thermal.Entity
	carrier  *thermal.FluidSegment
}

// slot receives one flow worker's result.
type slot struct {
	mu  sync.Mutex
	sol flow.Solution
}

func (s *slot) store(sol flow.Solution) {
	s.mu.Lock()
	s.sol = sol
	s.mu.Unlock()
}

func (s *slot) load() flow.Solution {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sol
}

// Orchestrator owns the network and advances it one iteration at a time:
// read setpoints, solve flow groups concurrently, apply links, advance,
// publish, pace.
type Orchestrator struct {
	net        *Network
	setpoints  *SetpointStore
	board      *Board
	timestep   integrators.Timestep
	integrator *integrators.Euler
	logger     *logrus.Logger

	Solver *flow.Solver

	metrics   []Metric
	observers []Observer

	connections []connection
	heater      *thermal.BoundaryCondition
	heaterSeg   *thermal.FluidSegment
	advancers   []integrators.Advancer
	volumes     []*thermal.ControlVolume

	iteration int
	time      float64
}

func New(net *Network, setpoints *SetpointStore, timestep integrators.Timestep, logger *logrus.Logger) (*Orchestrator, error) {
	if err := net.Validate(); err != nil {
		return nil, err
	}
	if timestep == nil {
		return nil, fmt.Errorf("network %s: no timestep policy", net.Name)
	}
	if logger == nil {
		logger = logrus.New()
		logger.SetOutput(io.Discard)
	}

	o := &Orchestrator{
		net:        net,
		setpoints:  setpoints,
		board:      NewBoard(),
		timestep:   timestep,
		integrator: integrators.NewEuler(),
		logger:     logger,
		Solver:     flow.NewSolver(),
		volumes:    net.Volumes(),
	}

	for _, c := range net.Connections {
		from, _ := net.Entity(c.From)
		to, _ := net.Entity(c.To)
		carrier, ok := to.(*thermal.FluidSegment)
		if !ok {
			carrier = from.(*thermal.FluidSegment)
		}
		o.connections = append(o.connections, connection{from: from, to: to, carrier: carrier})
	}
	if net.Heater != nil {
		o.heaterSeg = net.Segment(net.Heater.Segment)
		o.heater = thermal.NewFixedHeatRate(net.Heater.Segment+" heater", 0)
	}
	for _, s := range net.Segments {
		o.advancers = append(o.advancers, s)
	}
	for _, cv := range append(append([]*thermal.ControlVolume{}, net.Nodes...), net.Solids...) {
		o.advancers = append(o.advancers, cv)
	}

	return o, nil
}

func (o *Orchestrator) AddMetric(m Metric)     { o.metrics = append(o.metrics, m) }
func (o *Orchestrator) AddObserver(v Observer) { o.observers = append(o.observers, v) }

func (o *Orchestrator) Board() *Board             { return o.board }
func (o *Orchestrator) Setpoints() *SetpointStore { return o.setpoints }
func (o *Orchestrator) Network() *Network         { return o.net }
func (o *Orchestrator) Time() float64             { return o.time }
func (o *Orchestrator) Iteration() int            { return o.iteration }

func (o *Orchestrator) fail(component string, err error) error {
	return &dynamo.SimulationError{Component: component, Iteration: o.iteration, Time: o.time, Wrapped: err}
}

// Step runs one iteration without pacing.
func (o *Orchestrator) Step(ctx context.Context) (Telemetry, error) {
	start := time.Now()

	sp := o.setpoints.Snapshot()
	o.applySetpoints(sp)

	sols, err := o.solveFlows(ctx)
	if err != nil {
		return Telemetry{}, err
	}

	htc, err := o.applyLinks(sp, sols)
	if err != nil {
		return Telemetry{}, err
	}

	dt, err := o.advance()
	if err != nil {
		return Telemetry{}, err
	}

	tel := o.publish(sp, sols, htc, dt, time.Since(start))
	return tel, nil
}

func (o *Orchestrator) applySetpoints(sp Setpoints) {
	for _, g := range o.net.Groups {
		for _, b := range g.Branches {
			b.Blocked = sp.Blocked[b.Name]
			b.Driving = 0
			if b.Name == o.net.Pump {
				b.Driving = sp.PumpPressure
			}
		}
	}
}

// solveFlows solves every group on its own goroutine against a clone taken
// before any worker starts. No result is read before all workers finish.
func (o *Orchestrator) solveFlows(ctx context.Context) ([]flow.Solution, error) {
	snapshots := make([]*flow.SuperCollection, len(o.net.Groups))
	for i, g := range o.net.Groups {
		snapshots[i] = g.Clone()
	}
	slots := make([]slot, len(snapshots))

	eg, ctx := errgroup.WithContext(ctx)
	for i, g := range snapshots {
		i, g := i, g
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			sol, err := o.Solver.Solve(g)
			if err != nil {
				return o.fail("flow "+g.Name, err)
			}
			slots[i].store(sol)
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		var se *dynamo.SimulationError
		if errors.As(err, &se) {
			return nil, err
		}
		return nil, o.fail("flow", err)
	}

	sols := make([]flow.Solution, len(slots))
	for i := range slots {
		sols[i] = slots[i].load()
	}
	return sols, nil
}

// applyLinks resets the accumulators and applies every link of the step.
// It returns the commanded cooler coefficients.
func (o *Orchestrator) applyLinks(sp Setpoints, sols []flow.Solution) (map[string]float64, error) {
	for _, s := range o.net.Segments {
		s.ResetAccumulators()
	}
	for _, cv := range o.net.Nodes {
		cv.ResetAccumulators()
	}
	for _, cv := range o.net.Solids {
		cv.ResetAccumulators()
	}

	for i, g := range o.net.Groups {
		if err := g.Assign(sols[i]); err != nil {
			return nil, o.fail("flow "+g.Name, err)
		}
	}

	for _, s := range o.net.Segments {
		if err := s.LinkInternal(); err != nil {
			return nil, o.fail("segment "+s.Name, err)
		}
	}
	for _, c := range o.connections {
		if err := thermal.Link(c.from, c.to, thermal.Advection{MassFlow: c.carrier.MassFlow()}); err != nil {
			return nil, o.fail("connection", err)
		}
	}

	if o.heater != nil {
		o.heater.HeatRate = sp.HeaterPower
		if err := thermal.Link(o.heaterSeg, o.heater, thermal.HeatAddition{}); err != nil {
			return nil, o.fail("heater", err)
		}
	}

	htc := make(map[string]float64, len(o.net.Coolers))
	for _, c := range o.net.Coolers {
		seg := o.net.Segment(c.Segment)
		setpoint, ok := sp.CoolerSetpoints[c.Cooler.Name]
		if !ok {
			setpoint = c.Setpoint
		}
		h, err := c.Cooler.Command(setpoint, seg.Outlet().Temperature, o.time)
		if err != nil {
			return nil, o.fail("cooler "+c.Cooler.Name, err)
		}
		htc[c.Cooler.Name] = h
		if err := thermal.Link(seg, c.Coolant, thermal.ConductionConvection{HTC: h, WallConductivity: seg.WallConductivity}); err != nil {
			return nil, o.fail("cooler "+c.Cooler.Name, err)
		}
	}

	for _, l := range o.net.ThermalLinks {
		a, _ := o.net.Entity(l.A)
		b, _ := o.net.Entity(l.B)
		if err := thermal.Link(a, b, thermal.ConductionConvection{HTC: l.HTC, WallConductivity: l.WallConductivity}); err != nil {
			return nil, o.fail("thermal link", err)
		}
	}

	if o.net.Ambient != nil {
		for _, s := range o.net.Segments {
			if s.AmbientHTC == 0 {
				continue
			}
			if err := thermal.Link(s, o.net.Ambient, thermal.ConductionConvection{HTC: s.AmbientHTC, WallConductivity: s.WallConductivity}); err != nil {
				return nil, o.fail("ambient", err)
			}
		}
	}
	return htc, nil
}

func (o *Orchestrator) advance() (float64, error) {
	dt, err := o.timestep.Next(o.volumes)
	if err != nil {
		return 0, o.fail("timestep", err)
	}
	if err := o.integrator.Step(o.advancers, dt); err != nil {
		return 0, o.fail("advance", err)
	}
	o.time += dt
	o.iteration++
	return dt, nil
}

func (o *Orchestrator) publish(sp Setpoints, sols []flow.Solution, htc map[string]float64, dt float64, compute time.Duration) Telemetry {
	tel := Telemetry{
		Iteration:           o.iteration,
		Time:                o.time,
		Timestep:            dt,
		Compute:             compute,
		SetpointVersion:     sp.Version,
		FastForward:         sp.FastForward,
		HeaterPower:         sp.HeaterPower,
		PumpPressure:        sp.PumpPressure,
		Flows:               make(map[string]float64),
		PressureDifferences: make(map[string]float64),
		Temperatures:        make(map[string][]float64, len(o.net.Segments)),
		VolumeTemperatures:  make(map[string]float64),
		CoolerHTC:           htc,
		CoolerOutputs:       make(map[string]float64, len(o.net.Coolers)),
		CoolerSetpoints:     make(map[string]float64, len(o.net.Coolers)),
	}
	for i, g := range o.net.Groups {
		for j, b := range g.Branches {
			tel.Flows[b.Name] = sols[i].Flows[j]
		}
		if g.Arrangement == flow.Parallel {
			tel.PressureDifferences[g.Name] = sols[i].PressureDifference
		}
	}
	for _, s := range o.net.Segments {
		tel.Temperatures[s.Name] = s.Temperatures()
	}
	for _, cv := range o.net.Nodes {
		tel.VolumeTemperatures[cv.Name] = cv.Temperature
	}
	for _, cv := range o.net.Solids {
		tel.VolumeTemperatures[cv.Name] = cv.Temperature
	}
	for _, c := range o.net.Coolers {
		v, ok := sp.CoolerSetpoints[c.Cooler.Name]
		if !ok {
			v = c.Setpoint
		}
		tel.CoolerSetpoints[c.Cooler.Name] = v
		tel.CoolerOutputs[c.Cooler.Name] = c.Cooler.Output()
	}

	o.board.Publish(tel)
	for _, m := range o.metrics {
		m.Observe(tel)
	}
	for _, v := range o.observers {
		v.OnIteration(tel)
	}

	o.logger.WithFields(logrus.Fields{
		"iteration": tel.Iteration,
		"time":      tel.Time,
		"dt":        dt,
		"compute":   compute,
	}).Debug("iteration published")
	return tel
}

// pace sleeps for whatever is left of dt after compute, or yields in fast-forward.
func (o *Orchestrator) pace(ctx context.Context, fastForward bool, dt float64, compute time.Duration) {
	if fastForward {
		runtime.Gosched()
		return
	}
	wait := time.Duration(dt*float64(time.Second)) - compute
	if wait <= 0 {
		return
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

// Run iterates until the configured duration or iteration count is reached,
// ctx ends, or an iteration fails.
func (o *Orchestrator) Run(ctx context.Context, cfg Config) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	for _, m := range o.metrics {
		m.Reset()
	}

	wall := time.Now()
	result := &Result{Metrics: make(map[string]float64)}
	finish := func() {
		result.Iterations = o.iteration
		result.Time = o.time
		result.Wall = time.Since(wall)
		for _, m := range o.metrics {
			result.Metrics[m.Name()] = m.Value()
		}
	}

	o.logger.WithFields(logrus.Fields{
		"network":  o.net.Name,
		"groups":   len(o.net.Groups),
		"volumes":  len(o.volumes),
		"duration": cfg.Duration,
	}).Info("simulation started")

	startIter := o.iteration
	for {
		if cfg.Duration > 0 && o.time >= cfg.Duration-1e-12 {
			break
		}
		if cfg.MaxIterations > 0 && o.iteration-startIter >= cfg.MaxIterations {
			break
		}
		if err := ctx.Err(); err != nil {
			finish()
			return result, err
		}

		tel, err := o.Step(ctx)
		if err != nil {
			finish()
			o.logger.WithError(err).Error("simulation aborted")
			return result, err
		}
		result.Final = tel

		if math.IsInf(tel.Timestep, 0) || tel.Timestep <= 0 {
			finish()
			return result, o.fail("timestep", dynamo.ErrInvalidState)
		}
		o.pace(ctx, tel.FastForward, tel.Timestep, tel.Compute)
	}

	finish()
	o.logger.WithFields(logrus.Fields{
		"iterations": result.Iterations,
		"time":       result.Time,
		"wall":       result.Wall,
	}).Info("simulation finished")
	return result, nil
}
