package metrics

import "github.com/san-kum/thermloop/internal/sim"

// HeaterEnergy integrates the heater power setpoint over simulated time, J.
type HeaterEnergy struct {
	name  string
	total float64
}

func NewHeaterEnergy() *HeaterEnergy {
	return &HeaterEnergy{name: "heater_energy"}
}

func (e *HeaterEnergy) Name() string { return e.name }

func (e *HeaterEnergy) Observe(t sim.Telemetry) {
	e.total += t.HeaterPower * t.Timestep
}

func (e *HeaterEnergy) Value() float64 { return e.total }

func (e *HeaterEnergy) Reset() { e.total = 0 }

// MeanFlow is the time-averaged flow through one branch, kg/s.
type MeanFlow struct {
	name     string
	branch   string
	integral float64
	elapsed  float64
}

func NewMeanFlow(branch string) *MeanFlow {
	return &MeanFlow{name: "mean_flow_" + branch, branch: branch}
}

func (m *MeanFlow) Name() string { return m.name }

func (m *MeanFlow) Observe(t sim.Telemetry) {
	f, ok := t.Flows[m.branch]
	if !ok {
		return
	}
	m.integral += f * t.Timestep
	m.elapsed += t.Timestep
}

func (m *MeanFlow) Value() float64 {
	if m.elapsed == 0 {
		return 0
	}
	return m.integral / m.elapsed
}

func (m *MeanFlow) Reset() {
	m.integral = 0
	m.elapsed = 0
}
